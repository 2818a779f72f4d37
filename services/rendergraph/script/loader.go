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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxScriptFileSize is the largest script file LoadFile accepts (1MB).
	MaxScriptFileSize = 1024 * 1024

	// maxConcurrentLoads bounds parallel file reads in LoadDir.
	maxConcurrentLoads = 8
)

var scriptLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rendergraph_script_load_errors_total",
	Help: "Total graph script files that failed to load",
})

// IsScriptFile reports whether path has a script file extension.
func IsScriptFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads and parses a script file.
//
// Outputs:
//
//	*Document - The parsed document with Source set to path.
//	error - ErrScriptTooLarge, ErrInvalidScript or an I/O error.
func LoadFile(ctx context.Context, path string) (*Document, error) {
	_, span := tracer.Start(ctx, "script.LoadFile",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	doc, err := loadFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		scriptLoadErrors.Inc()
		return nil, err
	}
	return doc, nil
}

func loadFile(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat script: %w", err)
	}
	if info.Size() > MaxScriptFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrScriptTooLarge, path, info.Size(), MaxScriptFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// LoadDir loads every script file directly inside dir.
//
// Description:
//
//	Files are read concurrently. The result is ordered by file name and the
//	first failure cancels the remaining loads.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	dir - Directory to scan. Subdirectories are not visited.
//
// Outputs:
//
//	[]*Document - Parsed documents ordered by file name.
//	error - The first load error.
func LoadDir(ctx context.Context, dir string) ([]*Document, error) {
	ctx, span := tracer.Start(ctx, "script.LoadDir",
		trace.WithAttributes(attribute.String("dir", dir)),
	)
	defer span.End()

	entries, err := os.ReadDir(dir)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reading script dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !IsScriptFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	docs := make([]*Document, len(paths))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentLoads)
	for i, path := range paths {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			doc, err := LoadFile(egCtx, path)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("script_count", len(docs)))
	return docs, nil
}
