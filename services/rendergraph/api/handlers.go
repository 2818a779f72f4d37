// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves registered render graphs over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/rendergraph/pkg/validation"
	"github.com/AleutianAI/rendergraph/services/rendergraph/catalog"
	"github.com/AleutianAI/rendergraph/services/rendergraph/compile"
	"github.com/AleutianAI/rendergraph/services/rendergraph/export"
	"github.com/AleutianAI/rendergraph/services/rendergraph/graph"
	"github.com/AleutianAI/rendergraph/services/rendergraph/harness"
	"github.com/AleutianAI/rendergraph/services/rendergraph/passes"
	"github.com/AleutianAI/rendergraph/services/rendergraph/script"
	"github.com/AleutianAI/rendergraph/services/rendergraph/telemetry"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the render graph service.
type Handlers struct {
	harness         *harness.Harness
	store           *catalog.Store
	logger          *slog.Logger
	registerLimiter *RateLimiter
}

// HandlersOption configures Handlers.
type HandlersOption func(*Handlers)

// WithRegisterLimit throttles POST /v1/rendergraph/graphs with l.
func WithRegisterLimit(l *RateLimiter) HandlersOption {
	return func(h *Handlers) { h.registerLimiter = l }
}

// NewHandlers creates handlers backed by h. When store is nil, listings
// come from the harness's in-memory records.
func NewHandlers(h *harness.Harness, store *catalog.Store, logger *slog.Logger, opts ...HandlersOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	handlers := &Handlers{harness: h, store: store, logger: logger}
	for _, opt := range opts {
		opt(handlers)
	}
	return handlers
}

// HandleHealth handles GET /v1/rendergraph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	recs, err := h.records(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "CATALOG_UNAVAILABLE"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Graphs:  len(recs),
	})
}

// HandlePasses handles GET /v1/rendergraph/passes.
//
// Description:
//
//	Lists every pass type from every available library, whether or not a
//	script has loaded it yet.
func (h *Handlers) HandlePasses(c *gin.Context) {
	reg := passes.NewDefaultRegistry(h.logger)
	if err := reg.LoadAll(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "REGISTRY_ERROR"})
		return
	}

	resp := PassesResponse{Passes: []PassType{}}
	for _, d := range reg.Types() {
		resp.Passes = append(resp.Passes, PassType{
			Type:        d.Type,
			Library:     reg.LibraryOf(d.Type),
			Description: d.Description,
			Keys:        d.Keys,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListGraphs handles GET /v1/rendergraph/graphs.
func (h *Handlers) HandleListGraphs(c *gin.Context) {
	recs, err := h.records(c.Request.Context())
	if err != nil {
		h.requestLogger(c).Error("List graphs failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "CATALOG_ERROR"})
		return
	}

	resp := GraphsResponse{Graphs: make([]GraphSummary, 0, len(recs))}
	for _, rec := range recs {
		resp.Graphs = append(resp.Graphs, summarize(rec))
	}
	c.JSON(http.StatusOK, resp)
}

// HandleGetGraph handles GET /v1/rendergraph/graphs/:id.
//
// Response:
//
//	200 OK: catalog.Record
//	400 Bad Request: Malformed id
//	404 Not Found: No graph with that id
func (h *Handlers) HandleGetGraph(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleExportGraph handles GET /v1/rendergraph/graphs/:id/export.
//
// Query Parameters:
//
//	format: dot, mermaid or json (default dot)
//	direction: TB, LR, BT or RL (default LR)
func (h *Handlers) HandleExportGraph(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}

	format := export.Format(c.DefaultQuery("format", string(export.FormatDOT)))
	opts := export.Options{Direction: c.Query("direction")}
	if rec.Plan != nil {
		opts.Culled = rec.Plan.Culled
	}

	out, err := export.Render(format, rec.Graph, opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_FORMAT"})
		return
	}

	contentType := "text/plain; charset=utf-8"
	switch format {
	case export.FormatDOT:
		contentType = "text/vnd.graphviz; charset=utf-8"
	case export.FormatJSON:
		contentType = "application/json; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, out)
}

// HandleRegisterGraph handles POST /v1/rendergraph/graphs.
//
// Description:
//
//	Runs the YAML graph script in the request body and registers the
//	resulting graph.
//
// Response:
//
//	201 Created: catalog.Record
//	400 Bad Request: Invalid script
//	422 Unprocessable Entity: The script failed to build or compile
func (h *Handlers) HandleRegisterGraph(c *gin.Context) {
	logger := h.requestLogger(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, script.MaxScriptFileSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "READ_ERROR"})
		return
	}
	if len(body) > script.MaxScriptFileSize {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: script.ErrScriptTooLarge.Error(), Code: "SCRIPT_TOO_LARGE"})
		return
	}

	doc, err := script.Parse(body)
	if err != nil {
		logger.Warn("Invalid graph script", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_SCRIPT"})
		return
	}

	var rec catalog.Record
	registrar := harness.RegistrarFunc(func(ctx context.Context, g *graph.Graph) error {
		var err error
		rec, err = h.harness.Register(ctx, g)
		return err
	})

	// Posting a graph with the same name again replaces the earlier one.
	ctx := harness.WithSource(c.Request.Context(), "api/"+doc.Name())
	if _, err := script.Run(ctx, doc,
		script.WithRegistrar(registrar),
		script.WithRegistry(passes.NewDefaultRegistry(h.logger)),
		script.WithLogger(logger),
	); err != nil {
		logger.Warn("Graph script failed", "graph", doc.Name(), "error", err)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: errorCode(err)})
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// HandleDeleteGraph handles DELETE /v1/rendergraph/graphs/:id.
func (h *Handlers) HandleDeleteGraph(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateRecordID(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_ID"})
		return
	}

	err := h.harness.Forget(c.Request.Context(), id)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "GRAPH_NOT_FOUND"})
	default:
		h.requestLogger(c).Error("Delete graph failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "CATALOG_ERROR"})
	}
}

func (h *Handlers) records(ctx context.Context) ([]catalog.Record, error) {
	if h.store != nil {
		return h.store.List(ctx)
	}
	return h.harness.Records(), nil
}

func (h *Handlers) lookup(c *gin.Context) (catalog.Record, bool) {
	id := c.Param("id")
	if err := validation.ValidateRecordID(id); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_ID"})
		return catalog.Record{}, false
	}

	if h.store != nil {
		rec, err := h.store.Get(c.Request.Context(), id)
		switch {
		case err == nil:
			return rec, true
		case errors.Is(err, catalog.ErrNotFound):
		default:
			h.requestLogger(c).Error("Get graph failed", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "CATALOG_ERROR"})
			return catalog.Record{}, false
		}
	} else {
		for _, rec := range h.harness.Records() {
			if rec.ID == id {
				return rec, true
			}
		}
	}
	c.JSON(http.StatusNotFound, ErrorResponse{Error: catalog.ErrNotFound.Error(), Code: "GRAPH_NOT_FOUND"})
	return catalog.Record{}, false
}

func (h *Handlers) requestLogger(c *gin.Context) *slog.Logger {
	return telemetry.LoggerWithTrace(c.Request.Context(), h.logger).With("request_id", getOrCreateRequestID(c))
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, graph.ErrDuplicateName):
		return "DUPLICATE_NAME"
	case errors.Is(err, graph.ErrUnknownPass):
		return "UNKNOWN_PASS"
	case errors.Is(err, graph.ErrPortAlreadyConnected):
		return "PORT_ALREADY_CONNECTED"
	case errors.Is(err, graph.ErrInvalidReference):
		return "INVALID_REFERENCE"
	case errors.Is(err, passes.ErrUnresolvedType):
		return "UNRESOLVED_PASS_TYPE"
	case errors.Is(err, passes.ErrUnknownLibrary):
		return "UNKNOWN_LIBRARY"
	case errors.Is(err, compile.ErrCycleDetected):
		return "CYCLE_DETECTED"
	case errors.Is(err, compile.ErrNoOutputs):
		return "NO_OUTPUTS"
	default:
		return "BUILD_FAILED"
	}
}
