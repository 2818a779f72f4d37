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

// Description is a serializable snapshot of a graph.
//
// Passes, edges and outputs keep the graph's insertion order so two
// descriptions of the same construction sequence compare equal.
type Description struct {
	Name    string            `json:"name"`
	Passes  []PassDescription `json:"passes"`
	Edges   []EdgeDescription `json:"edges"`
	Outputs []string          `json:"outputs"`
}

// PassDescription describes one pass in a Description.
type PassDescription struct {
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	Options Options    `json:"options,omitempty"`
	Ports   []PortInfo `json:"ports,omitempty"`
}

// EdgeDescription describes one edge in a Description.
type EdgeDescription struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Describe returns a snapshot of the graph.
func (g *Graph) Describe() Description {
	d := Description{
		Name:    g.name,
		Passes:  make([]PassDescription, 0, len(g.passOrder)),
		Edges:   make([]EdgeDescription, 0, len(g.edges)),
		Outputs: make([]string, 0, len(g.outputs)),
	}

	for _, name := range g.passOrder {
		p := g.passes[name]
		pd := PassDescription{
			Name: name,
			Type: p.Type(),
		}
		if opts := p.Options(); len(opts) > 0 {
			pd.Options = opts
		}
		if r, ok := p.(Reflector); ok {
			pd.Ports = r.Reflect().Ports
		}
		d.Passes = append(d.Passes, pd)
	}

	for _, e := range g.edges {
		d.Edges = append(d.Edges, EdgeDescription{From: e.From.String(), To: e.To.String()})
	}

	for _, o := range g.outputs {
		d.Outputs = append(d.Outputs, o.String())
	}

	return d
}
