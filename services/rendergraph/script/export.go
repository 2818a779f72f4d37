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
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
	"github.com/AleutianAI/rendergraph/services/rendergraph/passes"
)

// FromGraph converts a graph back into a script document.
//
// Description:
//
//	Statements are emitted in the graph's insertion order, so building the
//	returned document reproduces an equivalent graph. When registry is not
//	nil, the libraries that registered the graph's pass types are listed,
//	excluding the core library which is always loaded.
func FromGraph(g *graph.Graph, registry *passes.Registry) *Document {
	doc := &Document{Graph: g.Name()}

	for _, name := range g.PassNames() {
		p, _ := g.Pass(name)
		spec := PassSpec{Name: name, Type: p.Type()}
		if opts := p.Options(); len(opts) > 0 {
			spec.Options = opts
		}
		doc.Passes = append(doc.Passes, spec)

		if registry == nil {
			continue
		}
		lib := registry.LibraryOf(p.Type())
		if lib != "" && lib != passes.CoreLibrary && !slices.Contains(doc.Libraries, lib) {
			doc.Libraries = append(doc.Libraries, lib)
		}
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, EdgeSpec{From: e.From.String(), To: e.To.String()})
	}
	for _, out := range g.Outputs() {
		doc.Outputs = append(doc.Outputs, out.String())
	}
	return doc
}

// Marshal encodes a document as YAML with two-space indentation.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
