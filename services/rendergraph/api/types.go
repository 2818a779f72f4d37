// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import "github.com/AleutianAI/rendergraph/services/rendergraph/catalog"

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Graphs  int    `json:"graphs"`
}

// PassType describes one available pass type.
type PassType struct {
	Type        string   `json:"type"`
	Library     string   `json:"library"`
	Description string   `json:"description"`
	Keys        []string `json:"keys,omitempty"`
}

// PassesResponse lists every available pass type.
type PassesResponse struct {
	Passes []PassType `json:"passes"`
}

// GraphSummary is a catalog listing entry.
type GraphSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Source       string `json:"source,omitempty"`
	RegisteredAt int64  `json:"registered_at"`
	Passes       int    `json:"passes"`
	Edges        int    `json:"edges"`
	Outputs      int    `json:"outputs"`
	Compiled     bool   `json:"compiled"`
	CompileError string `json:"compile_error,omitempty"`
}

// GraphsResponse lists registered graphs.
type GraphsResponse struct {
	Graphs []GraphSummary `json:"graphs"`
}

func summarize(rec catalog.Record) GraphSummary {
	return GraphSummary{
		ID:           rec.ID,
		Name:         rec.Name,
		Source:       rec.Source,
		RegisteredAt: rec.RegisteredAt,
		Passes:       len(rec.Graph.Passes),
		Edges:        len(rec.Graph.Edges),
		Outputs:      len(rec.Graph.Outputs),
		Compiled:     rec.Plan != nil,
		CompileError: rec.CompileError,
	}
}
