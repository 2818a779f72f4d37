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
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
	"github.com/AleutianAI/rendergraph/services/rendergraph/passes"
)

//go:embed scripts/*.yaml
var embeddedScripts embed.FS

// SpatioTemporalReprojectionName is the graph name of the stereo reprojection script.
const SpatioTemporalReprojectionName = "SpatioTemporalReprojection"

// EmbeddedDocuments parses the YAML scripts shipped with the module,
// ordered by file name.
func EmbeddedDocuments() ([]*Document, error) {
	names, err := fs.Glob(embeddedScripts, "scripts/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	docs := make([]*Document, 0, len(names))
	for _, name := range names {
		data, err := embeddedScripts.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading embedded script %s: %w", name, err)
		}
		doc, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("embedded script %s: %w", name, err)
		}
		doc.Source = path.Join("builtin", path.Base(name))
		docs = append(docs, doc)
	}
	return docs, nil
}

// Builtins returns every built-in script: the embedded YAML documents plus
// the Go-built SpatioTemporalReprojection graph with reprojection enabled.
func Builtins() ([]Script, error) {
	docs, err := EmbeddedDocuments()
	if err != nil {
		return nil, err
	}
	scripts := make([]Script, 0, len(docs)+1)
	for _, doc := range docs {
		scripts = append(scripts, doc)
	}
	scripts = append(scripts, SpatioTemporalReprojection(true))
	return scripts, nil
}

// Builtin looks up a built-in script by graph name.
func Builtin(name string) (Script, error) {
	scripts, err := Builtins()
	if err != nil {
		return nil, err
	}
	for _, s := range scripts {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrScriptNotFound, name)
}

// SpatioTemporalReprojection returns the stereo reprojection graph script.
//
// Description:
//
//	The left eye is shaded by a deferred lighting pass fed by a G-buffer and
//	a shadow map. With useReprojection set, a reprojection pass derives the
//	right eye from the shaded left eye and the G-buffer, and its result is
//	exposed as a second output.
func SpatioTemporalReprojection(useReprojection bool) *Func {
	return NewFunc(SpatioTemporalReprojectionName, func(env *Env) (*graph.Graph, error) {
		fail := func(step string, err error) (*graph.Graph, error) {
			return nil, &BuildError{Script: SpatioTemporalReprojectionName, Step: step, Err: err}
		}

		for _, lib := range []string{passes.SpatioTemporalReprojectionLibrary, passes.ReprojectionLibrary} {
			if err := env.LoadLibrary(lib); err != nil {
				return fail(fmt.Sprintf("loadLibrary(%q)", lib), err)
			}
		}

		g := graph.New(SpatioTemporalReprojectionName)
		add := []struct{ typeName, name string }{
			{"GBufferRaster", "GBuffer"},
			{"SimpleShadowPass", "SimpleShadowPass"},
			{"Lighting", "Light"},
			{"ReprojectionPass", "Reprojection"},
		}
		for _, p := range add {
			pass, err := env.CreatePass(p.typeName, nil)
			if err != nil {
				return fail(fmt.Sprintf("createPass(%q)", p.typeName), err)
			}
			if err := g.AddPass(pass, p.name); err != nil {
				return fail(fmt.Sprintf("addPass(%q)", p.name), err)
			}
		}

		edges := [][2]string{
			{"GBuffer.posW", "Light.posW"},
			{"GBuffer.normW", "Light.normW"},
			{"GBuffer.diffuseOpacity", "Light.diffuseOpacity"},
			{"GBuffer.specRough", "Light.specRough"},
			{"SimpleShadowPass.depthStencil", "Light.ShadowDepth"},

			{"GBuffer.depthStencil", "Reprojection.depth"},
			{"GBuffer.normW", "Reprojection.gbufferNormal"},
			{"GBuffer.posW", "Reprojection.gbufferPosition"},
			{"Light.out", "Reprojection.leftIn"},
			{"SimpleShadowPass.depthStencil", "Reprojection.shadowDepth"},
		}
		for _, e := range edges {
			if err := g.AddEdge(e[0], e[1]); err != nil {
				return fail(fmt.Sprintf("addEdge(%q, %q)", e[0], e[1]), err)
			}
		}

		outputs := []string{"Light.out"}
		if useReprojection {
			outputs = append(outputs, "Reprojection.out")
		}
		for _, out := range outputs {
			if err := g.MarkOutput(out); err != nil {
				return fail(fmt.Sprintf("markOutput(%q)", out), err)
			}
		}
		return g, nil
	})
}
