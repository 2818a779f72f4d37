// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command rendergraph builds, checks and serves render graphs.
//
// Usage:
//
//	rendergraph validate                       # run and compile every built-in script
//	rendergraph show "Temporal Delay Graph"    # print a graph and its execution order
//	rendergraph export scripts/my.yaml --format dot | dot -Tsvg > my.svg
//	rendergraph register scripts/my.yaml       # store in the catalog
//	rendergraph serve --watch                  # HTTP API plus script reloading
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/rendergraph/pkg/ux"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ux.Error(err.Error())
		teardown(nil, nil)
		stop()
		os.Exit(1)
	}
}
