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
	"fmt"
	"slices"
)

// Graph is a render graph under construction.
//
// Description:
//
//	Graph accumulates a validated description of passes, the edges between
//	their ports and the ports designated as outputs. Each mutation either
//	succeeds completely or leaves the graph untouched.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent mutation.
type Graph struct {
	name string

	passes    map[string]Pass
	passOrder []string

	edges    []Edge
	incoming map[PortRef]int // destination port → index into edges

	outputs   []PortRef
	outputSet map[PortRef]struct{}
}

// New creates an empty graph.
//
// Inputs:
//
//	name - Diagnostic name for logging and registration.
//
// Outputs:
//
//	*Graph - The empty graph.
func New(name string) *Graph {
	return &Graph{
		name:      name,
		passes:    make(map[string]Pass),
		passOrder: make([]string, 0),
		edges:     make([]Edge, 0),
		incoming:  make(map[PortRef]int),
		outputs:   make([]PortRef, 0),
		outputSet: make(map[PortRef]struct{}),
	}
}

// Name returns the graph's diagnostic name.
func (g *Graph) Name() string {
	return g.name
}

// AddPass registers a pass instance under name.
//
// Description:
//
//	The pass becomes a node of the graph. Its options are validated to
//	contain scalar values only.
//
// Inputs:
//
//	pass - The pass instance. Must not be nil.
//	name - Unique name within this graph. Must not be empty.
//
// Outputs:
//
//	error - *PassError wrapping ErrDuplicateName, ErrNilPass, ErrEmptyName
//	        or ErrInvalidOption.
func (g *Graph) AddPass(pass Pass, name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if pass == nil {
		return NewPassError(name, ErrNilPass)
	}
	if _, exists := g.passes[name]; exists {
		return NewPassError(name, ErrDuplicateName)
	}
	if err := pass.Options().Validate(); err != nil {
		return NewPassError(name, err)
	}

	g.passes[name] = pass
	g.passOrder = append(g.passOrder, name)
	return nil
}

// AddEdge connects a source port to a destination port.
//
// Description:
//
//	Parses both references, checks that both passes exist and that the
//	destination port has no incoming edge yet, then records the edge.
//
// Inputs:
//
//	src - Source reference, e.g. "ImageLoader.dst".
//	dst - Destination reference, e.g. "ForwardLightingPass.color".
//
// Outputs:
//
//	error - Wraps ErrInvalidReference, ErrUnknownPass or ErrPortAlreadyConnected.
func (g *Graph) AddEdge(src, dst string) error {
	from, err := ParsePortRef(src)
	if err != nil {
		return err
	}
	to, err := ParsePortRef(dst)
	if err != nil {
		return err
	}
	if err := g.requirePass(from.Pass); err != nil {
		return err
	}
	if err := g.requirePass(to.Pass); err != nil {
		return err
	}
	if idx, connected := g.incoming[to]; connected {
		return NewReferenceError(dst, fmt.Errorf("%w (from %s)", ErrPortAlreadyConnected, g.edges[idx].From))
	}

	g.incoming[to] = len(g.edges)
	g.edges = append(g.edges, Edge{From: from, To: to})
	return nil
}

// MarkOutput designates a port as a graph output.
//
// Marking the same port twice has no additional effect.
//
// Outputs:
//
//	error - Wraps ErrInvalidReference or ErrUnknownPass.
func (g *Graph) MarkOutput(ref string) error {
	port, err := ParsePortRef(ref)
	if err != nil {
		return err
	}
	if err := g.requirePass(port.Pass); err != nil {
		return err
	}
	if _, marked := g.outputSet[port]; marked {
		return nil
	}

	g.outputSet[port] = struct{}{}
	g.outputs = append(g.outputs, port)
	return nil
}

// UnmarkOutput removes a port from the output set.
//
// Unmarking a port that is not an output is a no-op.
//
// Outputs:
//
//	error - Wraps ErrInvalidReference or ErrUnknownPass.
func (g *Graph) UnmarkOutput(ref string) error {
	port, err := ParsePortRef(ref)
	if err != nil {
		return err
	}
	if err := g.requirePass(port.Pass); err != nil {
		return err
	}
	if _, marked := g.outputSet[port]; !marked {
		return nil
	}

	delete(g.outputSet, port)
	g.outputs = slices.DeleteFunc(g.outputs, func(p PortRef) bool { return p == port })
	return nil
}

// RemoveEdge deletes the edge src → dst.
//
// Outputs:
//
//	error - Wraps ErrInvalidReference or ErrEdgeNotFound.
func (g *Graph) RemoveEdge(src, dst string) error {
	from, err := ParsePortRef(src)
	if err != nil {
		return err
	}
	to, err := ParsePortRef(dst)
	if err != nil {
		return err
	}

	idx, ok := g.incoming[to]
	if !ok || g.edges[idx].From != from {
		return NewReferenceError(dst, fmt.Errorf("%w: %s -> %s", ErrEdgeNotFound, from, to))
	}

	g.edges = slices.Delete(g.edges, idx, idx+1)
	g.reindexEdges()
	return nil
}

// RemovePass deletes a pass together with every edge and output that touches it.
//
// Outputs:
//
//	error - *PassError wrapping ErrUnknownPass if the pass is absent.
func (g *Graph) RemovePass(name string) error {
	if err := g.requirePass(name); err != nil {
		return err
	}

	delete(g.passes, name)
	g.passOrder = slices.DeleteFunc(g.passOrder, func(n string) bool { return n == name })

	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool {
		return e.From.Pass == name || e.To.Pass == name
	})
	g.reindexEdges()

	g.outputs = slices.DeleteFunc(g.outputs, func(p PortRef) bool {
		if p.Pass == name {
			delete(g.outputSet, p)
			return true
		}
		return false
	})
	return nil
}

// Pass returns a pass by name.
func (g *Graph) Pass(name string) (Pass, bool) {
	p, ok := g.passes[name]
	return p, ok
}

// HasPass reports whether a pass named name exists.
func (g *Graph) HasPass(name string) bool {
	_, ok := g.passes[name]
	return ok
}

// PassNames returns pass names in insertion order.
func (g *Graph) PassNames() []string {
	return slices.Clone(g.passOrder)
}

// PassCount returns the number of passes.
func (g *Graph) PassCount() int {
	return len(g.passes)
}

// Edges returns edges in insertion order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// IncomingEdge returns the edge feeding dst, if any.
func (g *Graph) IncomingEdge(dst PortRef) (Edge, bool) {
	idx, ok := g.incoming[dst]
	if !ok {
		return Edge{}, false
	}
	return g.edges[idx], true
}

// Outputs returns output ports in the order they were marked.
func (g *Graph) Outputs() []PortRef {
	return slices.Clone(g.outputs)
}

// OutputCount returns the number of outputs.
func (g *Graph) OutputCount() int {
	return len(g.outputs)
}

// IsOutput reports whether ref is marked as an output.
func (g *Graph) IsOutput(ref PortRef) bool {
	_, ok := g.outputSet[ref]
	return ok
}

func (g *Graph) requirePass(name string) error {
	if _, ok := g.passes[name]; !ok {
		return NewPassError(name, ErrUnknownPass)
	}
	return nil
}

func (g *Graph) reindexEdges() {
	clear(g.incoming)
	for i, e := range g.edges {
		g.incoming[e.To] = i
	}
}
