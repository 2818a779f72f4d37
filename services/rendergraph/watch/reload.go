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
	"context"
	"log/slog"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
	"github.com/AleutianAI/rendergraph/services/rendergraph/harness"
	"github.com/AleutianAI/rendergraph/services/rendergraph/passes"
	"github.com/AleutianAI/rendergraph/services/rendergraph/script"
)

// Result is the outcome of re-running one changed script.
type Result struct {
	Path  string
	Graph *graph.Graph
	Err   error
}

// Reloader runs changed scripts against a registrar.
//
// Every run gets a fresh pass registry so libraries loaded by one script
// never leak into another.
type Reloader struct {
	registrar harness.Registrar
	logger    *slog.Logger
	onResult  func(Result)
}

// NewReloader creates a Reloader. onResult may be nil.
func NewReloader(registrar harness.Registrar, logger *slog.Logger, onResult func(Result)) *Reloader {
	if registrar == nil {
		registrar = harness.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{registrar: registrar, logger: logger, onResult: onResult}
}

// Handle is a Handler. Removed and renamed files are logged and skipped.
func (r *Reloader) Handle(ctx context.Context, changes []Change) {
	for _, c := range changes {
		if c.Op == OpRemove || c.Op == OpRename {
			r.logger.Info("script removed", slog.String("path", c.Path), slog.String("op", c.Op.String()))
			continue
		}
		res := r.reload(ctx, c.Path)
		if r.onResult != nil {
			r.onResult(res)
		}
	}
}

func (r *Reloader) reload(ctx context.Context, path string) Result {
	doc, err := script.LoadFile(ctx, path)
	if err != nil {
		r.logger.Error("script reload failed", slog.String("path", path), slog.String("error", err.Error()))
		return Result{Path: path, Err: err}
	}

	g, err := script.Run(harness.WithSource(ctx, path), doc,
		script.WithRegistrar(r.registrar),
		script.WithRegistry(passes.NewDefaultRegistry(r.logger)),
		script.WithLogger(r.logger),
	)
	if err != nil {
		r.logger.Error("script run failed", slog.String("path", path), slog.String("error", err.Error()))
		return Result{Path: path, Graph: g, Err: err}
	}

	r.logger.Info("script reloaded",
		slog.String("path", path),
		slog.String("graph", g.Name()),
		slog.Int("passes", g.PassCount()),
	)
	return Result{Path: path, Graph: g}
}
