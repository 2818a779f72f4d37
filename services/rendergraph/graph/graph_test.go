// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemporalDelayGraph(t *testing.T) *Graph {
	t.Helper()

	g := New("Temporal Delay Graph")
	require.NoError(t, g.AddPass(NewPass("ImageLoader", Options{"filename": "smoke-puff.png", "mips": false, "srgb": true}), "ImageLoader"))
	require.NoError(t, g.AddPass(NewPass("DepthPass", nil), "DepthPass"))
	require.NoError(t, g.AddPass(NewPass("ForwardLightingPass", nil), "ForwardLightingPass"))
	require.NoError(t, g.AddPass(NewPass("TemporalDelayPass", Options{"delay": 16}), "TemporalDelayPass"))

	require.NoError(t, g.AddEdge("ImageLoader.dst", "ForwardLightingPass.color"))
	require.NoError(t, g.AddEdge("DepthPass.depth", "ForwardLightingPass.depth"))
	require.NoError(t, g.AddEdge("ForwardLightingPass.color", "TemporalDelayPass.src"))
	require.NoError(t, g.MarkOutput("TemporalDelayPass.maxDelay"))
	return g
}

// --- Scenario Tests ---

func TestGraph_TutorialScenario(t *testing.T) {
	g := New("TutorialPass")
	require.NoError(t, g.AddPass(NewPass("TutorialPass", nil), "TutorialPass"))
	require.NoError(t, g.MarkOutput("TutorialPass.output"))

	assert.Equal(t, "TutorialPass", g.Name())
	assert.Equal(t, 1, g.PassCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, 1, g.OutputCount())
	assert.Equal(t, []PortRef{{Pass: "TutorialPass", Port: "output"}}, g.Outputs())
}

func TestGraph_TemporalDelayScenario(t *testing.T) {
	g := newTemporalDelayGraph(t)

	assert.Equal(t, 4, g.PassCount())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, 1, g.OutputCount())

	err := g.AddEdge("ImageLoader.dst", "ForwardLightingPass.color")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPortAlreadyConnected)
	assert.Equal(t, 3, g.EdgeCount(), "failed AddEdge must not record anything")
}

// --- AddPass Tests ---

func TestGraph_AddPass_DistinctNames(t *testing.T) {
	g := New("test")
	require.NoError(t, g.AddPass(NewPass("A", nil), "n1"))
	require.NoError(t, g.AddPass(NewPass("A", nil), "n2"))
	assert.Equal(t, []string{"n1", "n2"}, g.PassNames())
}

func TestGraph_AddPass_Duplicate(t *testing.T) {
	g := New("test")
	first := NewPass("A", nil)
	require.NoError(t, g.AddPass(first, "n1"))

	err := g.AddPass(NewPass("B", nil), "n1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)

	var passErr *PassError
	require.True(t, errors.As(err, &passErr))
	assert.Equal(t, "n1", passErr.PassName)

	got, ok := g.Pass("n1")
	require.True(t, ok)
	assert.Same(t, first, got, "original pass must be kept")
	assert.Equal(t, 1, g.PassCount())
}

func TestGraph_AddPass_Nil(t *testing.T) {
	err := New("test").AddPass(nil, "n1")
	assert.ErrorIs(t, err, ErrNilPass)
}

func TestGraph_AddPass_EmptyName(t *testing.T) {
	err := New("test").AddPass(NewPass("A", nil), "")
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestGraph_AddPass_NonScalarOption(t *testing.T) {
	g := New("test")
	err := g.AddPass(NewPass("A", Options{"list": []int{1, 2}}), "n1")
	assert.ErrorIs(t, err, ErrInvalidOption)
	assert.False(t, g.HasPass("n1"))
}

func TestGraph_PassOptionsImmutable(t *testing.T) {
	opts := Options{"delay": 16}
	g := New("test")
	require.NoError(t, g.AddPass(NewPass("TemporalDelayPass", opts), "delay"))

	opts["delay"] = 1
	p, _ := g.Pass("delay")
	got := p.Options()
	assert.Equal(t, 16, got["delay"])

	got["delay"] = 2
	assert.Equal(t, 16, p.Options()["delay"])
}

// --- AddEdge Tests ---

func TestGraph_AddEdge_UnknownPass(t *testing.T) {
	g := New("test")
	require.NoError(t, g.AddPass(NewPass("B", nil), "b"))

	tests := []struct {
		name string
		src  string
		dst  string
		miss string
	}{
		{name: "unknown source", src: "x.out", dst: "b.p2", miss: "x"},
		{name: "unknown destination", src: "b.out", dst: "y.in", miss: "y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AddEdge(tt.src, tt.dst)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnknownPass)

			var passErr *PassError
			require.True(t, errors.As(err, &passErr))
			assert.Equal(t, tt.miss, passErr.PassName)
		})
	}
	assert.Equal(t, 0, g.EdgeCount())
}

func TestGraph_AddEdge_DestinationOnce(t *testing.T) {
	g := New("test")
	require.NoError(t, g.AddPass(NewPass("A", nil), "a"))
	require.NoError(t, g.AddPass(NewPass("B", nil), "b"))
	require.NoError(t, g.AddPass(NewPass("C", nil), "c"))

	require.NoError(t, g.AddEdge("a.p1", "b.p2"))
	err := g.AddEdge("c.out", "b.p2")
	assert.ErrorIs(t, err, ErrPortAlreadyConnected)

	// A different port on the same pass is still free, and a source may fan out.
	require.NoError(t, g.AddEdge("a.p1", "b.p3"))
	require.NoError(t, g.AddEdge("a.p1", "c.in"))
	assert.Equal(t, 3, g.EdgeCount())

	e, ok := g.IncomingEdge(PortRef{Pass: "b", Port: "p2"})
	require.True(t, ok)
	assert.Equal(t, "a.p1 -> b.p2", e.String())
}

func TestGraph_AddEdge_InvalidReference(t *testing.T) {
	g := New("test")
	require.NoError(t, g.AddPass(NewPass("A", nil), "a"))

	for _, ref := range []string{"a", "", ".out", "a."} {
		t.Run(ref, func(t *testing.T) {
			err := g.AddEdge(ref, "a.in")
			assert.ErrorIs(t, err, ErrInvalidReference)

			err = g.AddEdge("a.out", ref)
			assert.ErrorIs(t, err, ErrInvalidReference)
		})
	}
}

// --- MarkOutput Tests ---

func TestGraph_MarkOutput_Idempotent(t *testing.T) {
	g := New("test")
	require.NoError(t, g.AddPass(NewPass("A", nil), "a"))

	require.NoError(t, g.MarkOutput("a.out"))
	require.NoError(t, g.MarkOutput("a.out"))

	assert.Equal(t, 1, g.OutputCount())
	assert.True(t, g.IsOutput(PortRef{Pass: "a", Port: "out"}))
}

func TestGraph_MarkOutput_Errors(t *testing.T) {
	g := New("test")
	assert.ErrorIs(t, g.MarkOutput("missing.out"), ErrUnknownPass)
	assert.ErrorIs(t, g.MarkOutput("noseparator"), ErrInvalidReference)
}

func TestGraph_UnmarkOutput(t *testing.T) {
	g := New("test")
	require.NoError(t, g.AddPass(NewPass("A", nil), "a"))
	require.NoError(t, g.MarkOutput("a.out"))
	require.NoError(t, g.MarkOutput("a.aux"))

	require.NoError(t, g.UnmarkOutput("a.out"))
	require.NoError(t, g.UnmarkOutput("a.out"))
	assert.Equal(t, []PortRef{{Pass: "a", Port: "aux"}}, g.Outputs())
	assert.ErrorIs(t, g.UnmarkOutput("b.out"), ErrUnknownPass)
}

// --- Removal Tests ---

func TestGraph_RemoveEdge(t *testing.T) {
	g := newTemporalDelayGraph(t)

	require.NoError(t, g.RemoveEdge("ImageLoader.dst", "ForwardLightingPass.color"))
	assert.Equal(t, 2, g.EdgeCount())

	// Port is free again.
	require.NoError(t, g.AddEdge("ImageLoader.dst", "ForwardLightingPass.color"))

	err := g.RemoveEdge("DepthPass.depth", "ForwardLightingPass.color")
	assert.ErrorIs(t, err, ErrEdgeNotFound)
}

func TestGraph_RemovePass(t *testing.T) {
	g := newTemporalDelayGraph(t)

	require.NoError(t, g.RemovePass("ForwardLightingPass"))
	assert.Equal(t, 3, g.PassCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, []string{"ImageLoader", "DepthPass", "TemporalDelayPass"}, g.PassNames())

	require.NoError(t, g.RemovePass("TemporalDelayPass"))
	assert.Equal(t, 0, g.OutputCount())

	assert.ErrorIs(t, g.RemovePass("TemporalDelayPass"), ErrUnknownPass)
}

func TestGraph_RemovePass_KeepsIncomingIndex(t *testing.T) {
	g := New("test")
	for _, n := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddPass(NewPass("T", nil), n))
	}
	require.NoError(t, g.AddEdge("a.out", "b.in"))
	require.NoError(t, g.AddEdge("b.out", "c.in"))

	require.NoError(t, g.RemovePass("a"))

	e, ok := g.IncomingEdge(PortRef{Pass: "c", Port: "in"})
	require.True(t, ok)
	assert.Equal(t, "b.out", e.From.String())
	assert.ErrorIs(t, g.AddEdge("b.aux", "c.in"), ErrPortAlreadyConnected)
}

// --- Describe Tests ---

func TestGraph_Describe(t *testing.T) {
	d := newTemporalDelayGraph(t).Describe()

	assert.Equal(t, "Temporal Delay Graph", d.Name)
	require.Len(t, d.Passes, 4)
	assert.Equal(t, "ImageLoader", d.Passes[0].Name)
	assert.Equal(t, "smoke-puff.png", d.Passes[0].Options["filename"])
	assert.Nil(t, d.Passes[1].Options)
	assert.Equal(t, []EdgeDescription{
		{From: "ImageLoader.dst", To: "ForwardLightingPass.color"},
		{From: "DepthPass.depth", To: "ForwardLightingPass.depth"},
		{From: "ForwardLightingPass.color", To: "TemporalDelayPass.src"},
	}, d.Edges)
	assert.Equal(t, []string{"TemporalDelayPass.maxDelay"}, d.Outputs)
}
