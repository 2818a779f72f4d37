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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/rendergraph/pkg/ux"
	"github.com/AleutianAI/rendergraph/pkg/validation"
	"github.com/AleutianAI/rendergraph/services/rendergraph/harness"
	"github.com/AleutianAI/rendergraph/services/rendergraph/script"
)

// runRegister handles 'rendergraph register'.
func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	h := newHarness(store)

	for _, arg := range args {
		s, err := resolveScript(ctx, arg)
		if err != nil {
			return err
		}
		if _, err := script.Run(harness.WithSource(ctx, scriptSource(s)), s,
			script.WithRegistrar(h),
			script.WithLogger(logger.Slog()),
		); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
	}

	for _, rec := range h.Records() {
		msg := fmt.Sprintf("%s %s", rec.ID, rec.Name)
		if rec.CompileError != "" {
			ux.Warning(msg + " (does not compile: " + rec.CompileError + ")")
			continue
		}
		ux.Success(msg)
	}
	return nil
}

// runCatalogList handles 'rendergraph catalog list'.
func runCatalogList(cmd *cobra.Command, _ []string) error {
	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	recs, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		ux.Muted("catalog is empty")
		return nil
	}

	lines := make([]string, 0, len(recs))
	for _, rec := range recs {
		status := ux.IconSuccess.Render()
		switch {
		case rec.CompileError != "":
			status = ux.IconError.Render()
		case rec.Plan == nil:
			status = ux.IconPending.Render()
		}
		registered := time.UnixMilli(rec.RegisteredAt).UTC().Format(time.RFC3339)
		lines = append(lines, fmt.Sprintf("%s %s\t%s\t%s", status, rec.ID, rec.Name, registered))
	}
	ux.List("Graphs", lines)
	return nil
}

// runCatalogShow handles 'rendergraph catalog show'.
func runCatalogShow(cmd *cobra.Command, args []string) error {
	id, err := validation.SanitizeRecordID(args[0])
	if err != nil {
		return err
	}
	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// runCatalogDelete handles 'rendergraph catalog delete'.
func runCatalogDelete(cmd *cobra.Command, args []string) error {
	id, err := validation.SanitizeRecordID(args[0])
	if err != nil {
		return err
	}
	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := newHarness(store).Forget(cmd.Context(), id); err != nil {
		return err
	}
	ux.Success("deleted " + id)
	return nil
}
