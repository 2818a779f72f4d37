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

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/rendergraph/services/rendergraph/telemetry"
)

// RegisterRoutes registers the /rendergraph endpoints on rg.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET    /v1/rendergraph/health - Service health
//	GET    /v1/rendergraph/passes - Available pass types
//	GET    /v1/rendergraph/graphs - List registered graphs
//	POST   /v1/rendergraph/graphs - Run a YAML script and register its graph (rate limited)
//	GET    /v1/rendergraph/graphs/:id - Get a graph record
//	GET    /v1/rendergraph/graphs/:id/export - Render a graph (dot, mermaid, json)
//	DELETE /v1/rendergraph/graphs/:id - Delete a graph record
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	r := rg.Group("/rendergraph")
	r.GET("/health", handlers.HandleHealth)
	r.GET("/passes", handlers.HandlePasses)
	r.GET("/graphs", handlers.HandleListGraphs)
	if handlers.registerLimiter != nil {
		r.POST("/graphs", handlers.registerLimiter.Middleware(), handlers.HandleRegisterGraph)
	} else {
		r.POST("/graphs", handlers.HandleRegisterGraph)
	}
	r.GET("/graphs/:id", handlers.HandleGetGraph)
	r.GET("/graphs/:id/export", handlers.HandleExportGraph)
	r.DELETE("/graphs/:id", handlers.HandleDeleteGraph)
}

// NewRouter builds the service engine with recovery, tracing middleware,
// the v1 routes and, when telemetry exposes one, GET /metrics.
func NewRouter(serviceName string, handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	RegisterRoutes(router.Group("/v1"), handlers)

	if mh := telemetry.MetricsHandler(); mh != nil {
		router.GET("/metrics", gin.WrapH(mh))
	}
	return router
}
