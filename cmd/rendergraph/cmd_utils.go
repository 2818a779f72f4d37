// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/AleutianAI/rendergraph/services/rendergraph/catalog"
	"github.com/AleutianAI/rendergraph/services/rendergraph/compile"
	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
	"github.com/AleutianAI/rendergraph/services/rendergraph/harness"
	"github.com/AleutianAI/rendergraph/services/rendergraph/passes"
	"github.com/AleutianAI/rendergraph/services/rendergraph/script"
)

// resolveScript returns the built-in script called arg, or loads arg as
// a YAML file when no built-in matches.
func resolveScript(ctx context.Context, arg string) (script.Script, error) {
	s, err := script.Builtin(arg)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, script.ErrScriptNotFound) {
		return nil, err
	}

	if _, statErr := os.Stat(arg); statErr != nil {
		return nil, fmt.Errorf("%w: %q is neither a built-in script nor a file", script.ErrScriptNotFound, arg)
	}
	return script.LoadFile(ctx, arg)
}

// allScripts returns the built-ins followed by the scripts directory, if
// it exists.
func allScripts(ctx context.Context) ([]script.Script, error) {
	scripts, err := script.Builtins()
	if err != nil {
		return nil, err
	}
	if cfg.Scripts.Dir == "" {
		return scripts, nil
	}
	if info, err := os.Stat(cfg.Scripts.Dir); err != nil || !info.IsDir() {
		return scripts, nil
	}
	docs, err := script.LoadDir(ctx, cfg.Scripts.Dir)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		scripts = append(scripts, d)
	}
	return scripts, nil
}

func scriptSource(s script.Script) string {
	if doc, ok := s.(*script.Document); ok && doc.Source != "" {
		return doc.Source
	}
	return "builtin/" + s.Name()
}

func compileOptions() []compile.Option {
	opts := []compile.Option{compile.WithLogger(logger.Slog())}
	if cfg.Compile.StrictPorts {
		opts = append(opts, compile.WithStrictPorts())
	}
	return opts
}

// buildAndCompile runs s and compiles the graph. The graph is returned
// even when compilation fails.
func buildAndCompile(ctx context.Context, s script.Script, registry *passes.Registry) (*graph.Graph, *compile.Plan, error) {
	g, err := script.Run(ctx, s, script.WithRegistry(registry), script.WithLogger(logger.Slog()))
	if err != nil {
		return nil, nil, err
	}
	plan, err := compile.Compile(ctx, g, compileOptions()...)
	return g, plan, err
}

// openStore opens the configured catalog. The caller closes the DB.
func openStore() (*catalog.DB, *catalog.Store, error) {
	c := cfg.Catalog
	c.Logger = logger.Slog()
	db, err := catalog.Open(c)
	if err != nil {
		return nil, nil, err
	}
	return db, catalog.NewStore(db), nil
}

func newHarness(store *catalog.Store) *harness.Harness {
	opts := []harness.Option{harness.WithLogger(logger.Slog())}
	if store != nil {
		opts = append(opts, harness.WithStore(store))
	}
	if cfg.Compile.OnRegister {
		opts = append(opts, harness.WithCompile(cfg.Compile.Required, compileOptions()...))
	}
	return harness.New(opts...)
}
