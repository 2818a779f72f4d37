// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package harness receives graphs built by scripts.
//
// A Registrar is the optional host a script hands its finished graph to.
// Scripts run without a host use Nop, so building a graph never depends on
// one being present.
package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/rendergraph/services/rendergraph/catalog"
	"github.com/AleutianAI/rendergraph/services/rendergraph/compile"
	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

var tracer = otel.Tracer("rendergraph.harness")

// ErrNilGraph is returned when AddGraph is given a nil graph.
var ErrNilGraph = errors.New("graph must not be nil")

// Registrar accepts finished graphs.
type Registrar interface {
	AddGraph(ctx context.Context, g *graph.Graph) error
}

// Nop discards every graph.
type Nop struct{}

// AddGraph does nothing.
func (Nop) AddGraph(context.Context, *graph.Graph) error {
	return nil
}

// RegistrarFunc adapts a function to Registrar.
type RegistrarFunc func(ctx context.Context, g *graph.Graph) error

// AddGraph calls f.
func (f RegistrarFunc) AddGraph(ctx context.Context, g *graph.Graph) error {
	return f(ctx, g)
}

// sourceKey carries the originating script name through AddGraph.
type sourceKey struct{}

// WithSource annotates ctx with the script a graph is built from.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

// Option configures a Harness.
type Option func(*Harness)

// WithStore persists every registration to store.
func WithStore(store *catalog.Store) Option {
	return func(h *Harness) { h.store = store }
}

// WithCompile compiles every graph on registration.
//
// With required set, a compile failure rejects the registration. Otherwise
// the failure is recorded on the Record and the graph is still accepted.
func WithCompile(required bool, opts ...compile.Option) Option {
	return func(h *Harness) {
		h.compile = true
		h.compileRequired = required
		h.compileOpts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// WithMaxGraphs bounds how many graphs are kept in memory. Once full, the
// oldest registration is evicted from memory; its catalog record is kept.
// A value of zero or less selects DefaultMaxGraphs.
func WithMaxGraphs(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.maxGraphs = n
		}
	}
}

// DefaultMaxGraphs is the in-memory graph limit used unless WithMaxGraphs
// overrides it.
const DefaultMaxGraphs = 256

// entry pairs a registered graph with its record.
type entry struct {
	graph  *graph.Graph
	record catalog.Record
}

// Harness is a Registrar that keeps the graphs it receives.
//
// Description:
//
//	Each registration gets a uuid and a Record describing the graph. When
//	a store is configured, records are persisted to the catalog as well.
//	Registering a graph from a source that already produced one replaces
//	the earlier registration, in memory and in the catalog, so reloading
//	a script does not accumulate stale graphs. At most WithMaxGraphs
//	graphs are held in memory.
//
// Thread Safety:
//
//	Harness is safe for concurrent use.
type Harness struct {
	logger          *slog.Logger
	store           *catalog.Store
	compile         bool
	compileRequired bool
	compileOpts     []compile.Option
	maxGraphs       int

	mu      sync.RWMutex
	entries []entry
	now     func() time.Time
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger:    slog.Default(),
		maxGraphs: DefaultMaxGraphs,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddGraph registers g.
//
// Outputs:
//
//	error - ErrNilGraph, a compile error when compilation is required, or
//	        a catalog error.
func (h *Harness) AddGraph(ctx context.Context, g *graph.Graph) error {
	_, err := h.Register(ctx, g)
	return err
}

// Register registers g and returns its record.
func (h *Harness) Register(ctx context.Context, g *graph.Graph) (catalog.Record, error) {
	if g == nil {
		return catalog.Record{}, ErrNilGraph
	}

	ctx, span := tracer.Start(ctx, "harness.Register",
		trace.WithAttributes(attribute.String("graph.name", g.Name())),
	)
	defer span.End()

	rec := catalog.Record{
		ID:           uuid.NewString(),
		Name:         g.Name(),
		Source:       sourceFrom(ctx),
		RegisteredAt: h.now().UTC().UnixMilli(),
		Graph:        g.Describe(),
	}

	if h.compile {
		plan, err := compile.Compile(ctx, g, h.compileOpts...)
		switch {
		case err == nil:
			rec.Plan = plan
		case h.compileRequired:
			span.RecordError(err)
			span.SetStatus(codes.Error, "compile failed")
			return catalog.Record{}, err
		default:
			rec.CompileError = err.Error()
			h.logger.Warn("registered graph does not compile",
				slog.String("graph", g.Name()),
				slog.String("error", err.Error()),
			)
		}
	}

	var replaced []string
	if h.store != nil {
		ids, err := h.store.PutReplacingSource(ctx, rec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist failed")
			return catalog.Record{}, err
		}
		replaced = ids
	}

	h.mu.Lock()
	if rec.Source != "" {
		h.entries = slices.DeleteFunc(h.entries, func(e entry) bool {
			if e.record.Source != rec.Source {
				return false
			}
			if !slices.Contains(replaced, e.record.ID) {
				replaced = append(replaced, e.record.ID)
			}
			return true
		})
	}
	h.entries = append(h.entries, entry{graph: g, record: rec})
	evicted := 0
	if over := len(h.entries) - h.maxGraphs; over > 0 {
		h.entries = slices.Delete(h.entries, 0, over)
		evicted = over
	}
	h.mu.Unlock()

	span.SetAttributes(
		attribute.String("graph.id", rec.ID),
		attribute.Int("graph.replaced", len(replaced)),
	)
	h.logger.Info("graph registered",
		slog.String("id", rec.ID),
		slog.String("graph", rec.Name),
		slog.Int("passes", g.PassCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("outputs", g.OutputCount()),
	)
	if len(replaced) > 0 {
		h.logger.Debug("replaced earlier registrations",
			slog.String("source", rec.Source),
			slog.Any("ids", replaced),
		)
	}
	if evicted > 0 {
		h.logger.Debug("evicted graphs from memory", slog.Int("count", evicted))
	}
	return rec, nil
}

// Forget removes the registration with the given id from memory and from
// the catalog.
//
// Outputs:
//
//	error - catalog.ErrNotFound when neither holds id, or a catalog error.
func (h *Harness) Forget(ctx context.Context, id string) error {
	h.mu.Lock()
	before := len(h.entries)
	h.entries = slices.DeleteFunc(h.entries, func(e entry) bool {
		return e.record.ID == id
	})
	found := len(h.entries) < before
	h.mu.Unlock()

	if h.store != nil {
		err := h.store.Delete(ctx, id)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, catalog.ErrNotFound):
		default:
			return err
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", catalog.ErrNotFound, id)
	}
	h.logger.Info("graph forgotten", slog.String("id", id))
	return nil
}

// Graphs returns the graphs held in memory in registration order.
func (h *Harness) Graphs() []*graph.Graph {
	h.mu.RLock()
	defer h.mu.RUnlock()
	graphs := make([]*graph.Graph, len(h.entries))
	for i, e := range h.entries {
		graphs[i] = e.graph
	}
	return graphs
}

// Records returns the records of the graphs held in memory in registration
// order.
func (h *Harness) Records() []catalog.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	records := make([]catalog.Record, len(h.entries))
	for i, e := range h.entries {
		records[i] = e.record
	}
	return records
}

// Graph returns the graph registered under id, if still held in memory.
func (h *Harness) Graph(id string) (*graph.Graph, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, e := range h.entries {
		if e.record.ID == id {
			return e.graph, true
		}
	}
	return nil, false
}
