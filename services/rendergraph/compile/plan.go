// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compile turns a constructed render graph into an execution plan.
//
// Construction never checks ports, cycles or reachability; those checks live
// here so a graph can be built incrementally and validated once complete.
package compile

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

var tracer = otel.Tracer("rendergraph.compile")

var compileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "rendergraph_compile_duration_seconds",
	Help:    "Time spent compiling render graphs.",
	Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
}, []string{"status"})

// Plan is the result of compiling a graph.
type Plan struct {
	// Name is the compiled graph's name.
	Name string `json:"name"`

	// Order lists contributing passes so that every pass follows the
	// passes it reads from. Ties keep the graph's insertion order.
	Order []string `json:"order"`

	// Culled lists passes that feed no output, in insertion order.
	Culled []string `json:"culled,omitempty"`

	// Edges holds the edges between contributing passes.
	Edges []graph.Edge `json:"edges"`

	// Outputs holds the graph outputs in marking order.
	Outputs []graph.PortRef `json:"outputs"`
}

// Option configures Compile.
type Option func(*options)

type options struct {
	strictPorts bool
	logger      *slog.Logger
}

// WithStrictPorts rejects passes that do not implement graph.Reflector.
func WithStrictPorts() Option {
	return func(o *options) { o.strictPorts = true }
}

// WithLogger sets the logger for compile diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Compile validates a graph and computes its execution plan.
//
// Description:
//
//	Compile checks, in order: that the graph has an output, that every
//	edge and output respects declared ports, that pass dependencies are
//	acyclic, and that required inputs of contributing passes are
//	connected. It then culls passes that feed no output and orders the
//	rest topologically.
//
// Inputs:
//
//	ctx - Context for tracing.
//	g - The graph. Not modified.
//	opts - Optional settings.
//
// Outputs:
//
//	*Plan - The plan on success.
//	error - ErrNoOutputs, *PortError, *CycleError or ErrNilGraph.
//
// Example:
//
//	plan, err := compile.Compile(ctx, g, compile.WithStrictPorts())
//	if errors.Is(err, compile.ErrCycleDetected) { ... }
func Compile(ctx context.Context, g *graph.Graph, opts ...Option) (*Plan, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	_, span := tracer.Start(ctx, "compile.Compile",
		trace.WithAttributes(
			attribute.String("graph.name", g.Name()),
			attribute.Int("graph.pass_count", g.PassCount()),
			attribute.Int("graph.edge_count", g.EdgeCount()),
		),
	)
	defer span.End()

	start := time.Now()
	plan, err := compile(g, o)
	if err != nil {
		compileDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	compileDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("plan.pass_count", len(plan.Order)),
		attribute.Int("plan.culled_count", len(plan.Culled)),
	)
	if len(plan.Culled) > 0 {
		o.logger.Debug("culled passes without output contribution",
			slog.String("graph", g.Name()),
			slog.Any("passes", plan.Culled),
		)
	}
	return plan, nil
}

func compile(g *graph.Graph, o options) (*Plan, error) {
	if g.OutputCount() == 0 {
		return nil, ErrNoOutputs
	}

	c := newCompiler(g)
	if err := c.checkPorts(o.strictPorts); err != nil {
		return nil, err
	}
	if err := c.detectCycles(); err != nil {
		return nil, err
	}

	kept := c.contributing()
	if err := c.checkRequiredInputs(kept); err != nil {
		return nil, err
	}

	plan := &Plan{
		Name:    g.Name(),
		Order:   c.order(kept),
		Outputs: g.Outputs(),
		Edges:   make([]graph.Edge, 0, len(c.edges)),
	}
	for _, name := range c.names {
		if !kept[name] {
			plan.Culled = append(plan.Culled, name)
		}
	}
	for _, e := range c.edges {
		if kept[e.From.Pass] && kept[e.To.Pass] {
			plan.Edges = append(plan.Edges, e)
		}
	}
	return plan, nil
}

// compiler holds a snapshot of the graph for the duration of one compile.
type compiler struct {
	g     *graph.Graph
	names []string
	index map[string]int
	edges []graph.Edge

	// deps maps a pass to the distinct passes it reads from, in edge order.
	deps map[string][]string
}

func newCompiler(g *graph.Graph) *compiler {
	c := &compiler{
		g:     g,
		names: g.PassNames(),
		edges: g.Edges(),
		deps:  make(map[string][]string),
	}
	c.index = make(map[string]int, len(c.names))
	for i, name := range c.names {
		c.index[name] = i
	}
	for _, e := range c.edges {
		if !slices.Contains(c.deps[e.To.Pass], e.From.Pass) {
			c.deps[e.To.Pass] = append(c.deps[e.To.Pass], e.From.Pass)
		}
	}
	return c
}

func (c *compiler) reflection(passName string, strict bool) (graph.Reflection, bool, error) {
	p, _ := c.g.Pass(passName)
	r, ok := p.(graph.Reflector)
	if !ok {
		if strict {
			return graph.Reflection{}, false, &PortError{
				Ref: graph.PortRef{Pass: passName},
				Err: ErrNoReflection,
			}
		}
		return graph.Reflection{}, false, nil
	}
	return r.Reflect(), true, nil
}

func (c *compiler) checkPort(ref graph.PortRef, wantOutput, strict bool) error {
	refl, ok, err := c.reflection(ref.Pass, strict)
	if err != nil || !ok {
		return err
	}
	info, found := refl.Port(ref.Port)
	if !found {
		return &PortError{Ref: ref, Err: ErrUnknownPort}
	}
	if wantOutput && !info.Kind.IsOutput() || !wantOutput && !info.Kind.IsInput() {
		return &PortError{Ref: ref, Err: ErrPortDirection}
	}
	return nil
}

func (c *compiler) checkPorts(strict bool) error {
	if strict {
		for _, name := range c.names {
			if _, _, err := c.reflection(name, true); err != nil {
				return err
			}
		}
	}
	for _, e := range c.edges {
		if err := c.checkPort(e.From, true, strict); err != nil {
			return err
		}
		if err := c.checkPort(e.To, false, strict); err != nil {
			return err
		}
	}
	for _, out := range c.g.Outputs() {
		if err := c.checkPort(out, true, strict); err != nil {
			return err
		}
	}
	return nil
}

// detectCycles runs a DFS over pass dependencies in insertion order.
func (c *compiler) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	var dfs func(node string) error
	dfs = func(node string) error {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, dep := range c.deps[node] {
			if !visited[dep] {
				if err := dfs(dep); err != nil {
					return err
				}
			} else if recStack[dep] {
				start := slices.Index(path, dep)
				cycle := append(slices.Clone(path[start:]), dep)
				// Report in data-flow direction.
				slices.Reverse(cycle)
				return &CycleError{Path: cycle}
			}
		}

		path = path[:len(path)-1]
		recStack[node] = false
		return nil
	}

	for _, name := range c.names {
		if !visited[name] {
			if err := dfs(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// contributing returns the set of passes that some output depends on.
func (c *compiler) contributing() map[string]bool {
	kept := make(map[string]bool)
	var queue []string
	for _, out := range c.g.Outputs() {
		if !kept[out.Pass] {
			kept[out.Pass] = true
			queue = append(queue, out.Pass)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dep := range c.deps[name] {
			if !kept[dep] {
				kept[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return kept
}

func (c *compiler) checkRequiredInputs(kept map[string]bool) error {
	for _, name := range c.names {
		if !kept[name] {
			continue
		}
		refl, ok, _ := c.reflection(name, false)
		if !ok {
			continue
		}
		for _, port := range refl.Ports {
			if port.Kind != graph.PortInput || port.Optional {
				continue
			}
			ref := graph.PortRef{Pass: name, Port: port.Name}
			if _, connected := c.g.IncomingEdge(ref); !connected {
				return &PortError{Ref: ref, Err: ErrMissingInput}
			}
		}
	}
	return nil
}

// order performs Kahn's algorithm over the kept passes, always taking the
// ready pass that was added to the graph first.
func (c *compiler) order(kept map[string]bool) []string {
	pending := make(map[string]int, len(kept))
	dependents := make(map[string][]string)
	for _, name := range c.names {
		if !kept[name] {
			continue
		}
		pending[name] = len(c.deps[name])
		for _, dep := range c.deps[name] {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range c.names {
		if kept[name] && pending[name] == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(kept))
	for len(ready) > 0 {
		next := 0
		for i := 1; i < len(ready); i++ {
			if c.index[ready[i]] < c.index[ready[next]] {
				next = i
			}
		}
		name := ready[next]
		ready = slices.Delete(ready, next, next+1)
		order = append(order, name)

		for _, d := range dependents[name] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	return order
}
