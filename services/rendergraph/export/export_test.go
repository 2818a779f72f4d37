// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

func temporalDelayDescription(t *testing.T) graph.Description {
	t.Helper()
	g := graph.New("Temporal Delay Graph")
	require.NoError(t, g.AddPass(graph.NewPass("ImageLoader", graph.Options{"filename": "smoke-puff.png"}), "ImageLoader"))
	require.NoError(t, g.AddPass(graph.NewPass("DepthPass", nil), "DepthPass"))
	require.NoError(t, g.AddPass(graph.NewPass("ForwardLightingPass", nil), "ForwardLightingPass"))
	require.NoError(t, g.AddPass(graph.NewPass("TemporalDelayPass", graph.Options{"delay": 16}), "TemporalDelayPass"))
	require.NoError(t, g.AddEdge("ImageLoader.dst", "ForwardLightingPass.color"))
	require.NoError(t, g.AddEdge("DepthPass.depth", "ForwardLightingPass.depth"))
	require.NoError(t, g.AddEdge("ForwardLightingPass.color", "TemporalDelayPass.src"))
	require.NoError(t, g.MarkOutput("TemporalDelayPass.maxDelay"))
	return g.Describe()
}

func TestDOT(t *testing.T) {
	out := DOT(temporalDelayDescription(t), Options{})

	assert.True(t, strings.HasPrefix(out, "digraph \"Temporal Delay Graph\" {\n"))
	assert.Contains(t, out, "rankdir=LR;")
	assert.Contains(t, out, `"ImageLoader":dst -> "ForwardLightingPass":color;`)
	assert.Contains(t, out, `"DepthPass":depth -> "ForwardLightingPass":depth;`)
	assert.Contains(t, out, `"TemporalDelayPass":maxDelay -> "__outputs" [style=dashed, label="TemporalDelayPass.maxDelay"];`)
	assert.Contains(t, out, `<maxDelay> maxDelay`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestDOT_CulledAndDirection(t *testing.T) {
	out := DOT(temporalDelayDescription(t), Options{Direction: "TB", Culled: []string{"DepthPass"}})
	assert.Contains(t, out, "rankdir=TB;")
	assert.Contains(t, out, `"DepthPass" [label="{DepthPass\nDepthPass|<depth> depth}", fillcolor="#b2bec3"];`)

	out = DOT(temporalDelayDescription(t), Options{Direction: "sideways"})
	assert.Contains(t, out, "rankdir=LR;")
}

func TestDOT_EscapesPortIDs(t *testing.T) {
	g := graph.New("g")
	require.NoError(t, g.AddPass(graph.NewPass("TemporalDelayPass", nil), "Delay"))
	require.NoError(t, g.MarkOutput("Delay.maxDelay-3"))

	out := DOT(g.Describe(), Options{})
	assert.Contains(t, out, `"Delay":maxDelay_3 -> "__outputs"`)
	assert.Contains(t, out, `<maxDelay_3> maxDelay-3`)
}

func TestMermaid(t *testing.T) {
	out := Mermaid(temporalDelayDescription(t), Options{Culled: []string{"DepthPass"}})
	assert.True(t, strings.HasPrefix(out, "flowchart LR\n"))
	assert.Contains(t, out, `ImageLoader -->|"dst → color"| ForwardLightingPass`)
	assert.Contains(t, out, `TemporalDelayPass -.->|"maxDelay"| __outputs`)
	assert.Contains(t, out, "style DepthPass fill:#b2bec3")
}

func TestJSON(t *testing.T) {
	data, err := JSON(temporalDelayDescription(t))
	require.NoError(t, err)

	var decoded graph.Description
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Temporal Delay Graph", decoded.Name)
	assert.Len(t, decoded.Passes, 4)
	assert.Equal(t, float64(16), decoded.Passes[3].Options["delay"])
}

func TestRender(t *testing.T) {
	d := temporalDelayDescription(t)
	for _, f := range Formats() {
		out, err := Render(f, d, Options{})
		require.NoError(t, err, f)
		assert.NotEmpty(t, out)
	}

	_, err := Render("svg", d, Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
