// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
	"github.com/AleutianAI/rendergraph/services/rendergraph/harness"
)

const tutorialYAML = "graph: TutorialPass\nlibraries: [TutorialPass]\npasses:\n  - {name: TutorialPass, type: TutorialPass}\noutputs: [TutorialPass.output]\n"

func TestOp_String(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "write", OpWrite.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "rename", OpRename.String())
	assert.Equal(t, "unknown", Op(42).String())
}

func TestDeduplicate(t *testing.T) {
	in := []Change{
		{Path: "a.yaml", Op: OpCreate},
		{Path: "b.yaml", Op: OpWrite},
		{Path: "a.yaml", Op: OpWrite},
	}
	out := deduplicate(in)
	require.Len(t, out, 2)
	assert.Equal(t, Change{Path: "a.yaml", Op: OpWrite}, out[0])
	assert.Equal(t, "b.yaml", out[1].Path)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, isHidden("/tmp/.g.yaml"))
	assert.False(t, isHidden("/tmp/g.yaml"))
}

func TestReloader_Handle(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "tutorial.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte(tutorialYAML), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("graph: g\npasses:\n  - {name: D, type: NoSuchPass}\n"), 0o644))

	var buf bytes.Buffer
	h := harness.New()
	var results []Result
	r := NewReloader(h, slog.New(slog.NewTextHandler(&buf, nil)), func(res Result) {
		results = append(results, res)
	})

	r.Handle(context.Background(), []Change{
		{Path: good, Op: OpWrite},
		{Path: bad, Op: OpCreate},
		{Path: filepath.Join(dir, "gone.yaml"), Op: OpRemove},
	})

	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "TutorialPass", results[0].Graph.Name())
	assert.Error(t, results[1].Err)

	recs := h.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, good, recs[0].Source)
	assert.Contains(t, buf.String(), "script removed")

	r.Handle(context.Background(), []Change{{Path: good, Op: OpWrite}})
	reloaded := h.Records()
	require.Len(t, reloaded, 1, "reloading a script replaces its graph")
	assert.NotEqual(t, recs[0].ID, reloaded[0].ID)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	results := make(chan Result, 4)
	r := NewReloader(nil, nil, func(res Result) { results <- res })

	w, err := New(dir, r.Handle, &Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()
	assert.True(t, w.IsWatching())
	assert.Equal(t, dir, w.Dir())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	tmp := filepath.Join(dir, "tutorial.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(tutorialYAML), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, "tutorial.yaml")))

	select {
	case res := <-results:
		require.NoError(t, res.Err)
		assert.Equal(t, filepath.Join(dir, "tutorial.yaml"), res.Path)
		assert.Equal(t, []graph.PortRef{{Pass: "TutorialPass", Port: "output"}}, res.Graph.Outputs())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_StopIsFinal(t *testing.T) {
	w, err := New(t.TempDir(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	assert.False(t, w.IsWatching())
	assert.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStopped)
}

func TestWatcher_MissingDir(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"), nil, nil)
	require.NoError(t, err)
	defer w.Stop()
	assert.Error(t, w.Start(context.Background()))
	assert.False(t, w.IsWatching())
}
