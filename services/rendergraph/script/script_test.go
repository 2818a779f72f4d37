// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/rendergraph/services/rendergraph/compile"
	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
	"github.com/AleutianAI/rendergraph/services/rendergraph/harness"
	"github.com/AleutianAI/rendergraph/services/rendergraph/passes"
)

const temporalDelayYAML = `
graph: Temporal Delay Graph
libraries: [ImageLoader.dll, TemporalDelayPass.dll]
passes:
  - {name: ImageLoader, type: ImageLoader, options: {filename: smoke-puff.png, mips: false, srgb: true}}
  - {name: DepthPass, type: DepthPass}
  - {name: ForwardLightingPass, type: ForwardLightingPass}
  - {name: TemporalDelayPass, type: TemporalDelayPass, options: {delay: 16}}
edges:
  - {from: ImageLoader.dst, to: ForwardLightingPass.color}
  - {from: DepthPass.depth, to: ForwardLightingPass.depth}
  - {from: ForwardLightingPass.color, to: TemporalDelayPass.src}
outputs: [TemporalDelayPass.maxDelay]
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(temporalDelayYAML))
	require.NoError(t, err)

	assert.Equal(t, "Temporal Delay Graph", doc.Name())
	assert.Equal(t, []string{"ImageLoader.dll", "TemporalDelayPass.dll"}, doc.Libraries)
	require.Len(t, doc.Passes, 4)
	assert.Equal(t, graph.Options{"filename": "smoke-puff.png", "mips": false, "srgb": true}, doc.Passes[0].Options)
	assert.Equal(t, graph.Options{"delay": 16}, doc.Passes[3].Options)
	assert.Len(t, doc.Edges, 3)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not yaml", "graph: [unterminated"},
		{"unknown field", "graph: g\npasses: []\nrenderer: vulkan\n"},
		{"missing graph name", "passes: []\n"},
		{"pass without type", "graph: g\npasses:\n  - name: A\n"},
		{"edge without destination", "graph: g\nedges:\n  - from: A.out\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidScript)
		})
	}
}

func TestRun_TemporalDelay(t *testing.T) {
	doc, err := Parse([]byte(temporalDelayYAML))
	require.NoError(t, err)

	var registered []*graph.Graph
	reg := harness.RegistrarFunc(func(_ context.Context, g *graph.Graph) error {
		registered = append(registered, g)
		return nil
	})

	g, err := Run(context.Background(), doc, WithRegistrar(reg))
	require.NoError(t, err)
	assert.Equal(t, 4, g.PassCount())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, 1, g.OutputCount())
	require.Len(t, registered, 1)
	assert.Same(t, g, registered[0])

	delay, ok := g.Pass("TemporalDelayPass")
	require.True(t, ok)
	assert.Equal(t, 16, delay.(*passes.TemporalDelayPass).Settings().Delay)
}

func TestRun_WithoutRegistrar(t *testing.T) {
	doc, err := Parse([]byte(temporalDelayYAML))
	require.NoError(t, err)

	g, err := Run(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Temporal Delay Graph", g.Name())
}

func TestRun_MissingLibrary(t *testing.T) {
	doc, err := Parse([]byte(`
graph: g
passes:
  - {name: Delay, type: TemporalDelayPass}
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), doc)
	require.ErrorIs(t, err, passes.ErrUnresolvedType)

	var buildErr *BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, "g", buildErr.Script)
	assert.Equal(t, `createPass("TemporalDelayPass")`, buildErr.Step)
}

func TestRun_GraphErrorsSurface(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{
			name: "duplicate pass",
			data: "graph: g\npasses:\n  - {name: D, type: DepthPass}\n  - {name: D, type: DepthPass}\n",
			want: graph.ErrDuplicateName,
		},
		{
			name: "unknown pass in edge",
			data: "graph: g\npasses:\n  - {name: D, type: DepthPass}\nedges:\n  - {from: D.depth, to: X.in}\n",
			want: graph.ErrUnknownPass,
		},
		{
			name: "port already connected",
			data: "graph: g\npasses:\n  - {name: A, type: DepthPass}\n  - {name: B, type: DepthPass}\n  - {name: F, type: ForwardLightingPass}\n" +
				"edges:\n  - {from: A.depth, to: F.depth}\n  - {from: B.depth, to: F.depth}\n",
			want: graph.ErrPortAlreadyConnected,
		},
		{
			name: "invalid output reference",
			data: "graph: g\npasses:\n  - {name: D, type: DepthPass}\noutputs: [D]\n",
			want: graph.ErrInvalidReference,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.data))
			require.NoError(t, err)
			_, err = Run(context.Background(), doc)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRun_RegistrarError(t *testing.T) {
	doc, err := Parse([]byte(temporalDelayYAML))
	require.NoError(t, err)

	boom := errors.New("boom")
	g, err := Run(context.Background(), doc, WithRegistrar(harness.RegistrarFunc(
		func(context.Context, *graph.Graph) error { return boom },
	)))
	assert.ErrorIs(t, err, boom)
	assert.NotNil(t, g)
}

func TestRun_NilScriptAndCanceled(t *testing.T) {
	_, err := Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilScript)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc, err := Parse([]byte(temporalDelayYAML))
	require.NoError(t, err)
	_, err = Run(ctx, doc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_FuncWithoutGraph(t *testing.T) {
	registered := false
	empty := NewFunc("empty", func(*Env) (*graph.Graph, error) { return nil, nil })

	g, err := Run(context.Background(), empty, WithRegistrar(harness.RegistrarFunc(
		func(context.Context, *graph.Graph) error {
			registered = true
			return nil
		},
	)))
	assert.ErrorIs(t, err, ErrInvalidScript)
	assert.Contains(t, err.Error(), `"empty"`)
	assert.Nil(t, g)
	assert.False(t, registered, "nothing is handed to the registrar")
}

func TestRun_SharedRegistry(t *testing.T) {
	reg := passes.NewDefaultRegistry(nil)
	doc, err := Parse([]byte(temporalDelayYAML))
	require.NoError(t, err)

	_, err = Run(context.Background(), doc, WithRegistry(reg))
	require.NoError(t, err)
	assert.True(t, reg.IsLoaded(passes.TemporalDelayLibrary))
}

func TestRun_HarnessRecordsSource(t *testing.T) {
	doc, err := Parse([]byte(temporalDelayYAML))
	require.NoError(t, err)

	h := harness.New(harness.WithCompile(true, compile.WithStrictPorts()))
	ctx := harness.WithSource(context.Background(), "TemporalDelay.yaml")
	_, err = Run(ctx, doc, WithRegistrar(h))
	require.NoError(t, err)

	recs := h.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "TemporalDelay.yaml", recs[0].Source)
	require.NotNil(t, recs[0].Plan)
	assert.Equal(t, []string{"ImageLoader", "DepthPass", "ForwardLightingPass", "TemporalDelayPass"}, recs[0].Plan.Order)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "TemporalDelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(temporalDelayYAML), 0o644))

	doc, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Source)

	_, err = LoadFile(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	require.NoError(t, os.WriteFile(path, make([]byte, MaxScriptFileSize+1), 0o644))

	_, err := LoadFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrScriptTooLarge)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(temporalDelayYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte("graph: A\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	docs, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "A", docs[0].Name())
	assert.Equal(t, "Temporal Delay Graph", docs[1].Name())
}

func TestLoadDir_FailsOnBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(temporalDelayYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("nonsense: true\n"), 0o644))

	_, err := LoadDir(context.Background(), dir)
	assert.ErrorIs(t, err, ErrInvalidScript)
}

func TestIsScriptFile(t *testing.T) {
	assert.True(t, IsScriptFile("a.yaml"))
	assert.True(t, IsScriptFile("a.YML"))
	assert.False(t, IsScriptFile("a.py"))
}
