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
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

// Document is a declarative graph script.
//
// Description:
//
//	A document lists the libraries to load, the passes to create, the edges
//	between their ports and the ports to expose as outputs. Building a
//	document replays those statements against a fresh graph in order.
//
// Example:
//
//	graph: TutorialPass
//	libraries: [TutorialPass]
//	passes:
//	  - name: TutorialPass
//	    type: TutorialPass
//	outputs: [TutorialPass.output]
type Document struct {
	Graph     string     `yaml:"graph"`
	Libraries []string   `yaml:"libraries,omitempty"`
	Passes    []PassSpec `yaml:"passes"`
	Edges     []EdgeSpec `yaml:"edges,omitempty"`
	Outputs   []string   `yaml:"outputs,omitempty"`

	// Source is the file the document was loaded from, if any.
	Source string `yaml:"-"`
}

// PassSpec declares one pass instance.
type PassSpec struct {
	Name    string        `yaml:"name"`
	Type    string        `yaml:"type"`
	Options graph.Options `yaml:"options,omitempty"`
}

// EdgeSpec declares one edge.
type EdgeSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Parse decodes a single YAML document.
//
// Description:
//
//	Unknown fields are rejected so that typos do not silently drop
//	statements. The result is checked for structural completeness but not
//	built; graph-level errors surface from Build.
//
// Outputs:
//
//	*Document - The parsed document.
//	error - Wraps ErrInvalidScript.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScript)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks that every statement carries its required fields.
func (d *Document) Validate() error {
	if d.Graph == "" {
		return fmt.Errorf("%w: missing graph name", ErrInvalidScript)
	}
	for i, p := range d.Passes {
		if p.Name == "" || p.Type == "" {
			return fmt.Errorf("%w: passes[%d] needs both name and type", ErrInvalidScript, i)
		}
	}
	for i, e := range d.Edges {
		if e.From == "" || e.To == "" {
			return fmt.Errorf("%w: edges[%d] needs both from and to", ErrInvalidScript, i)
		}
	}
	return nil
}

// Name returns the graph name.
func (d *Document) Name() string {
	return d.Graph
}

// Build replays the document's statements against a new graph.
//
// Outputs:
//
//	*graph.Graph - The constructed graph.
//	error - *BuildError naming the failing statement.
func (d *Document) Build(env *Env) (*graph.Graph, error) {
	fail := func(step string, err error) (*graph.Graph, error) {
		return nil, &BuildError{Script: d.Graph, Step: step, Err: err}
	}

	for _, lib := range d.Libraries {
		if err := env.LoadLibrary(lib); err != nil {
			return fail(fmt.Sprintf("loadLibrary(%q)", lib), err)
		}
	}

	g := graph.New(d.Graph)
	for _, p := range d.Passes {
		pass, err := env.CreatePass(p.Type, p.Options)
		if err != nil {
			return fail(fmt.Sprintf("createPass(%q)", p.Type), err)
		}
		if err := g.AddPass(pass, p.Name); err != nil {
			return fail(fmt.Sprintf("addPass(%q)", p.Name), err)
		}
	}
	for _, e := range d.Edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return fail(fmt.Sprintf("addEdge(%q, %q)", e.From, e.To), err)
		}
	}
	for _, out := range d.Outputs {
		if err := g.MarkOutput(out); err != nil {
			return fail(fmt.Sprintf("markOutput(%q)", out), err)
		}
	}
	return g, nil
}
