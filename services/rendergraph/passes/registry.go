// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package passes provides the typed pass factory registry.
//
// Pass types are grouped in libraries. A library must be loaded before its
// types can be created, mirroring how render pass plugins are loaded into an
// engine before a graph script references them. Every type is registered
// explicitly with a factory; nothing is looked up by reflection.
//
// Thread Safety:
//
//	Registry is safe for concurrent use.
package passes

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
)

var (
	passesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rendergraph_passes_created_total",
		Help: "Total pass instances created by type",
	}, []string{"type"})

	passCreateErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rendergraph_pass_create_errors_total",
		Help: "Total pass creation failures by reason",
	}, []string{"reason"})

	librariesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rendergraph_libraries_loaded_total",
		Help: "Total pass libraries loaded",
	})
)

// Factory creates a pass from validated options.
//
// The options handed to a factory only contain keys listed in the
// descriptor's Keys; unknown keys are dropped by the registry beforehand.
type Factory func(opts graph.Options) (graph.Pass, error)

// Descriptor registers one pass type.
type Descriptor struct {
	// Type is the pass type name used by scripts, e.g. "ImageLoader".
	Type string `json:"type"`

	// Description is a one-line summary shown by listings.
	Description string `json:"description"`

	// Keys lists the option keys the type understands.
	Keys []string `json:"keys,omitempty"`

	// Factory creates instances. Required.
	Factory Factory `json:"-"`
}

// Library is a named bundle of pass types loaded together.
type Library struct {
	Name   string
	Passes []Descriptor
}

// Registry maps pass type names to factories.
//
// Description:
//
//	Registry knows a set of available libraries and tracks which of them
//	have been loaded. Create only resolves types that are registered, either
//	through a loaded library or through Register.
type Registry struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	available map[string]Library
	loaded    map[string]bool
	types     map[string]registration
}

type registration struct {
	desc    Descriptor
	library string
}

// NewRegistry creates a registry that can load the given libraries.
//
// Inputs:
//
//	logger - Logger for warnings about dropped options. If nil, uses slog.Default().
//	libraries - Libraries available to LoadLibrary.
//
// Outputs:
//
//	*Registry - The registry. No library is loaded yet.
func NewRegistry(logger *slog.Logger, libraries ...Library) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:    logger,
		available: make(map[string]Library, len(libraries)),
		loaded:    make(map[string]bool),
		types:     make(map[string]registration),
	}
	for _, lib := range libraries {
		r.available[NormalizeLibraryName(lib.Name)] = lib
	}
	return r
}

// NewDefaultRegistry creates a registry with the built-in libraries
// available and the core library already loaded.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger, BuiltinLibraries()...)
	if err := r.LoadLibrary(CoreLibrary); err != nil {
		// The core library is part of BuiltinLibraries; failure is a programming error.
		panic(fmt.Sprintf("load core library: %v", err))
	}
	return r
}

// NormalizeLibraryName strips directories and platform decoration from a
// library name, so "ImageLoader.dll", "libImageLoader.so" and "ImageLoader"
// all name the same library.
func NormalizeLibraryName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	switch ext := strings.ToLower(filepath.Ext(base)); ext {
	case ".dll":
		base = strings.TrimSuffix(base, filepath.Ext(base))
	case ".so", ".dylib":
		base = strings.TrimSuffix(base, filepath.Ext(base))
		base = strings.TrimPrefix(base, "lib")
	}
	return base
}

// LoadLibrary makes the types of a library available to Create.
//
// Description:
//
//	Loading is idempotent. Loading fails without registering anything if
//	one of the library's types clashes with an already registered type.
//
// Inputs:
//
//	name - Library name, optionally with a platform suffix.
//
// Outputs:
//
//	error - ErrUnknownLibrary, or ErrDuplicateType wrapped in *TypeError.
func (r *Registry) LoadLibrary(name string) error {
	key := NormalizeLibraryName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded[key] {
		return nil
	}
	lib, ok := r.available[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLibrary, name)
	}

	for _, d := range lib.Passes {
		if err := validateDescriptor(d); err != nil {
			return err
		}
		if _, exists := r.types[d.Type]; exists {
			return &TypeError{Type: d.Type, Err: ErrDuplicateType}
		}
	}
	for _, d := range lib.Passes {
		r.types[d.Type] = registration{desc: d, library: key}
	}
	r.loaded[key] = true
	librariesLoaded.Inc()

	r.logger.Debug("pass library loaded",
		slog.String("library", key),
		slog.Int("types", len(lib.Passes)),
	)
	return nil
}

// Register adds a single pass type outside any library.
//
// Outputs:
//
//	error - *TypeError wrapping ErrInvalidDescriptor or ErrDuplicateType.
func (r *Registry) Register(d Descriptor) error {
	if err := validateDescriptor(d); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[d.Type]; exists {
		return &TypeError{Type: d.Type, Err: ErrDuplicateType}
	}
	r.types[d.Type] = registration{desc: d}
	return nil
}

// Create instantiates a pass of the given type.
//
// Description:
//
//	Resolves the type, drops option keys the type does not understand
//	(logging each at Warn), then calls the type's factory.
//
// Inputs:
//
//	typeName - Registered pass type name.
//	opts - Creation options. May be nil.
//
// Outputs:
//
//	graph.Pass - The new pass.
//	error - *TypeError wrapping ErrUnresolvedType, ErrInvalidOptions or the
//	        factory's error.
func (r *Registry) Create(typeName string, opts graph.Options) (graph.Pass, error) {
	r.mu.RLock()
	reg, ok := r.types[typeName]
	r.mu.RUnlock()

	if !ok {
		passCreateErrors.WithLabelValues("unresolved").Inc()
		return nil, &TypeError{Type: typeName, Err: ErrUnresolvedType}
	}

	if err := opts.Validate(); err != nil {
		passCreateErrors.WithLabelValues("invalid_options").Inc()
		return nil, &TypeError{Type: typeName, Err: fmt.Errorf("%w: %w", ErrInvalidOptions, err)}
	}

	known := make(graph.Options, len(opts))
	for _, key := range opts.Keys() {
		if !slices.Contains(reg.desc.Keys, key) {
			r.logger.Warn("dropping unknown pass option",
				slog.String("type", typeName),
				slog.String("option", key),
			)
			continue
		}
		known[key] = opts[key]
	}

	pass, err := reg.desc.Factory(known)
	if err != nil {
		passCreateErrors.WithLabelValues("factory").Inc()
		return nil, &TypeError{Type: typeName, Err: err}
	}
	passesCreated.WithLabelValues(typeName).Inc()
	return pass, nil
}

// Lookup returns the descriptor registered for a type.
func (r *Registry) Lookup(typeName string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.types[typeName]
	return reg.desc, ok
}

// Types returns registered descriptors sorted by type name.
func (r *Registry) Types() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.types))
	for _, reg := range r.types {
		out = append(out, reg.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// LibraryOf returns the library that registered typeName, or "" for types
// added with Register.
func (r *Registry) LibraryOf(typeName string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[typeName].library
}

// Libraries returns the names of all available libraries, sorted.
func (r *Registry) Libraries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.available))
	for name := range r.available {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadAll loads every available library, stopping at the first failure.
func (r *Registry) LoadAll() error {
	for _, name := range r.Libraries() {
		if err := r.LoadLibrary(name); err != nil {
			return err
		}
	}
	return nil
}

// Loaded returns the names of loaded libraries, sorted.
func (r *Registry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.loaded))
	for name := range r.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsLoaded reports whether a library has been loaded.
func (r *Registry) IsLoaded(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded[NormalizeLibraryName(name)]
}

func validateDescriptor(d Descriptor) error {
	if d.Type == "" {
		return &TypeError{Type: d.Type, Err: fmt.Errorf("%w: empty type name", ErrInvalidDescriptor)}
	}
	if d.Factory == nil {
		return &TypeError{Type: d.Type, Err: fmt.Errorf("%w: nil factory", ErrInvalidDescriptor)}
	}
	return nil
}
