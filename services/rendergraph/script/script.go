// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package script builds render graphs from graph scripts.
//
// A script is either a declarative YAML Document or a Go function wrapped
// in Func. Run builds the script's graph against a pass registry and hands
// it to a harness.Registrar. When no registrar is supplied the graph is
// built and returned without being registered anywhere.
//
// Thread Safety:
//
//	Documents are immutable after parsing and may be run concurrently.
//	An Env must not be shared between concurrent runs.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
	"github.com/AleutianAI/rendergraph/services/rendergraph/harness"
	"github.com/AleutianAI/rendergraph/services/rendergraph/passes"
)

var tracer = otel.Tracer("rendergraph.script")

var (
	scriptRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rendergraph_script_runs_total",
		Help: "Total graph script runs by outcome",
	}, []string{"outcome"})

	scriptRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rendergraph_script_run_duration_seconds",
		Help:    "Duration of graph script runs",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})
)

// Script produces a render graph.
type Script interface {
	// Name identifies the script in logs and errors.
	Name() string

	// Build constructs the graph using env to load libraries and create passes.
	Build(env *Env) (*graph.Graph, error)
}

// Func adapts a Go function to the Script interface.
type Func struct {
	name  string
	build func(env *Env) (*graph.Graph, error)
}

// NewFunc wraps build as a script called name.
func NewFunc(name string, build func(env *Env) (*graph.Graph, error)) *Func {
	return &Func{name: name, build: build}
}

// Name returns the script name.
func (f *Func) Name() string {
	return f.name
}

// Build calls the wrapped function.
func (f *Func) Build(env *Env) (*graph.Graph, error) {
	return f.build(env)
}

// Env is the environment a script builds against.
type Env struct {
	registry *passes.Registry
	logger   *slog.Logger
}

// NewEnv creates an environment over a pass registry.
//
// Inputs:
//
//	registry - Pass registry. If nil, uses passes.NewDefaultRegistry.
//	logger - Logger. If nil, uses slog.Default().
func NewEnv(registry *passes.Registry, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = passes.NewDefaultRegistry(logger)
	}
	return &Env{registry: registry, logger: logger}
}

// LoadLibrary loads a pass library, e.g. "TemporalDelayPass.dll".
func (e *Env) LoadLibrary(name string) error {
	return e.registry.LoadLibrary(name)
}

// CreatePass instantiates a pass of a loaded type.
func (e *Env) CreatePass(typeName string, opts graph.Options) (graph.Pass, error) {
	return e.registry.Create(typeName, opts)
}

// Registry returns the underlying pass registry.
func (e *Env) Registry() *passes.Registry {
	return e.registry
}

// Logger returns the environment's logger.
func (e *Env) Logger() *slog.Logger {
	return e.logger
}

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	registrar harness.Registrar
	registry  *passes.Registry
	logger    *slog.Logger
}

// WithRegistrar hands the built graph to r.
func WithRegistrar(r harness.Registrar) RunOption {
	return func(c *runConfig) { c.registrar = r }
}

// WithRegistry builds against an existing registry instead of a fresh one.
func WithRegistry(r *passes.Registry) RunOption {
	return func(c *runConfig) { c.registry = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) { c.logger = logger }
}

// Run builds a script's graph and registers it.
//
// Description:
//
//	Each run gets a fresh registry with only the core library loaded
//	unless WithRegistry is given, so a script must load every library it
//	uses. The built graph is passed to the registrar; harness.Nop is used
//	when none is configured.
//
// Inputs:
//
//	ctx - Context for tracing and cancellation.
//	s - The script.
//	opts - Optional settings.
//
// Outputs:
//
//	*graph.Graph - The built graph, also returned when registration fails.
//	error - The build or registration error.
//
// Example:
//
//	g, err := script.Run(ctx, doc, script.WithRegistrar(h))
func Run(ctx context.Context, s Script, opts ...RunOption) (*graph.Graph, error) {
	if s == nil {
		return nil, ErrNilScript
	}
	cfg := runConfig{registrar: harness.Nop{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := tracer.Start(ctx, "script.Run",
		trace.WithAttributes(attribute.String("script.name", s.Name())),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		scriptRunDuration.Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		scriptRuns.WithLabelValues("canceled").Inc()
		return nil, err
	}

	env := NewEnv(cfg.registry, cfg.logger)
	g, err := s.Build(env)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		scriptRuns.WithLabelValues("build_error").Inc()
		return nil, err
	}
	if g == nil {
		err := fmt.Errorf("%w: script %q returned no graph", ErrInvalidScript, s.Name())
		span.RecordError(err)
		span.SetStatus(codes.Error, "no graph")
		scriptRuns.WithLabelValues("build_error").Inc()
		return nil, err
	}

	span.SetAttributes(
		attribute.String("graph.name", g.Name()),
		attribute.Int("graph.pass_count", g.PassCount()),
		attribute.Int("graph.edge_count", g.EdgeCount()),
		attribute.Int("graph.output_count", g.OutputCount()),
	)

	if err := cfg.registrar.AddGraph(ctx, g); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
		scriptRuns.WithLabelValues("register_error").Inc()
		return g, fmt.Errorf("registering graph %q: %w", g.Name(), err)
	}

	scriptRuns.WithLabelValues("ok").Inc()
	cfg.logger.Debug("graph script run",
		slog.String("script", s.Name()),
		slog.String("graph", g.Name()),
		slog.Int("passes", g.PassCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("outputs", g.OutputCount()),
	)
	return g, nil
}
