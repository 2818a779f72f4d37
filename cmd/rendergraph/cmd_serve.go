// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/rendergraph/pkg/ux"
	"github.com/AleutianAI/rendergraph/services/rendergraph/api"
	"github.com/AleutianAI/rendergraph/services/rendergraph/harness"
	"github.com/AleutianAI/rendergraph/services/rendergraph/script"
	"github.com/AleutianAI/rendergraph/services/rendergraph/watch"
)

const shutdownTimeout = 10 * time.Second

// runServe handles 'rendergraph serve'.
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	h := newHarness(store)

	if !serveNoScripts {
		if err := registerDir(ctx, h, cfg.Scripts.Dir); err != nil {
			return err
		}
	}

	if serveWatch {
		w, err := startWatcher(ctx, h, cfg.Scripts.Dir)
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	var handlerOpts []api.HandlersOption
	if cfg.API.RegisterRate > 0 {
		handlerOpts = append(handlerOpts, api.WithRegisterLimit(
			api.NewRateLimiter(cfg.API.RegisterRate, cfg.API.RegisterBurst)))
	}
	router := api.NewRouter("rendergraph", api.NewHandlers(h, store, logger.Slog(), handlerOpts...))

	addr := cfg.API.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting rendergraph server", slog.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()
	ux.Success("serving on " + addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down rendergraph server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runWatch handles 'rendergraph watch'.
func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := cfg.Scripts.Dir
	if len(args) == 1 {
		dir = args[0]
	}

	var h *harness.Harness
	if watchRegister {
		db, store, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		h = newHarness(store)
	} else {
		h = newHarness(nil)
	}

	w, err := startWatcher(ctx, h, dir)
	if err != nil {
		return err
	}
	defer w.Stop()

	ux.Info("watching " + dir + " (Ctrl-C to stop)")
	<-ctx.Done()
	return nil
}

// registerDir registers every script in dir. A missing directory is not
// an error.
func registerDir(ctx context.Context, h *harness.Harness, dir string) error {
	if dir == "" {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Debug("scripts directory not found, skipping", "dir", dir)
		return nil
	}

	docs, err := script.LoadDir(ctx, dir)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if _, err := script.Run(harness.WithSource(ctx, doc.Source), doc,
			script.WithRegistrar(h),
			script.WithLogger(logger.Slog()),
		); err != nil {
			logger.Error("script failed", "script", doc.Source, "error", err)
		}
	}
	return nil
}

func startWatcher(ctx context.Context, h *harness.Harness, dir string) (*watch.Watcher, error) {
	reloader := watch.NewReloader(h, logger.Slog(), func(res watch.Result) {
		if res.Err != nil {
			ux.Error(fmt.Sprintf("%s: %v", res.Path, res.Err))
			return
		}
		ux.Success(fmt.Sprintf("%s: reloaded %s", res.Path, res.Graph.Name()))
	})

	w, err := watch.New(dir, reloader.Handle, &watch.Options{
		Debounce: cfg.Scripts.Debounce,
		Logger:   logger.Slog(),
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}
