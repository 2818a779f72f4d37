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
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/rendergraph/pkg/ux"
	"github.com/AleutianAI/rendergraph/services/rendergraph/export"
	"github.com/AleutianAI/rendergraph/services/rendergraph/passes"
	"github.com/AleutianAI/rendergraph/services/rendergraph/script"
)

// runValidate handles 'rendergraph validate'.
func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var scripts []script.Script
	if len(args) == 0 {
		all, err := allScripts(ctx)
		if err != nil {
			return err
		}
		scripts = all
	} else {
		for _, arg := range args {
			s, err := resolveScript(ctx, arg)
			if err != nil {
				return err
			}
			scripts = append(scripts, s)
		}
	}

	failed := 0
	for _, s := range scripts {
		g, plan, err := buildAndCompile(ctx, s, nil)
		if err != nil {
			failed++
			ux.Error(fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		msg := fmt.Sprintf("%s: %d passes, %d edges, %d outputs", g.Name(), g.PassCount(), g.EdgeCount(), g.OutputCount())
		if len(plan.Culled) > 0 {
			msg += fmt.Sprintf(", %d culled", len(plan.Culled))
		}
		ux.Success(msg)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(scripts))
	}
	return nil
}

// runShow handles 'rendergraph show'.
func runShow(cmd *cobra.Command, args []string) error {
	s, err := resolveScript(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	g, plan, compileErr := buildAndCompile(cmd.Context(), s, nil)
	if g == nil {
		return compileErr
	}
	d := g.Describe()

	ux.Title(d.Name)
	ux.KeyValue("source", scriptSource(s))
	ux.KeyValue("passes", len(d.Passes))
	ux.KeyValue("edges", len(d.Edges))

	passLines := make([]string, 0, len(d.Passes))
	for _, p := range d.Passes {
		line := fmt.Sprintf("%s (%s)", p.Name, p.Type)
		if len(p.Options) > 0 {
			var opts []string
			for _, k := range p.Options.Keys() {
				opts = append(opts, fmt.Sprintf("%s=%v", k, p.Options[k]))
			}
			line += " " + strings.Join(opts, " ")
		}
		passLines = append(passLines, line)
	}
	ux.List("Passes", passLines)

	edgeLines := make([]string, 0, len(d.Edges))
	for _, e := range d.Edges {
		edgeLines = append(edgeLines, fmt.Sprintf("%s %s %s", e.From, ux.IconArrow, e.To))
	}
	ux.List("Edges", edgeLines)
	ux.List("Outputs", d.Outputs)

	if compileErr != nil {
		ux.Warning("does not compile: " + compileErr.Error())
		return nil
	}
	ux.List("Execution order", plan.Order)
	if len(plan.Culled) > 0 {
		ux.List("Culled", plan.Culled)
	}
	return nil
}

// runExport handles 'rendergraph export'.
func runExport(cmd *cobra.Command, args []string) error {
	s, err := resolveScript(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	registry := passes.NewDefaultRegistry(logger.Slog())
	g, plan, compileErr := buildAndCompile(cmd.Context(), s, registry)
	if g == nil {
		return compileErr
	}
	if compileErr != nil {
		logger.Warn("exporting graph that does not compile", "graph", g.Name(), "error", compileErr)
	}

	var out []byte
	if exportFormat == "yaml" {
		out, err = script.Marshal(script.FromGraph(g, registry))
	} else {
		opts := export.Options{Direction: exportDirection}
		if plan != nil {
			opts.Culled = plan.Culled
		}
		out, err = export.Render(export.Format(exportFormat), g.Describe(), opts)
	}
	if err != nil {
		return err
	}

	if exportOutput != "" {
		if err := os.WriteFile(exportOutput, out, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportOutput, err)
		}
		ux.Success(fmt.Sprintf("wrote %s", exportOutput))
		return nil
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// runPasses handles 'rendergraph passes'.
func runPasses(_ *cobra.Command, _ []string) error {
	registry := passes.NewDefaultRegistry(logger.Slog())
	if err := registry.LoadAll(); err != nil {
		return err
	}

	byLibrary := make(map[string][]string)
	for _, d := range registry.Types() {
		lib := registry.LibraryOf(d.Type)
		line := d.Type
		if d.Description != "" {
			line += " " + ux.Styles.Muted.Render(d.Description)
		}
		if len(d.Keys) > 0 {
			line += " [" + strings.Join(d.Keys, ", ") + "]"
		}
		byLibrary[lib] = append(byLibrary[lib], line)
	}
	for _, lib := range registry.Libraries() {
		ux.List(lib, byLibrary[lib])
	}
	return nil
}

// runScripts handles 'rendergraph scripts'.
func runScripts(cmd *cobra.Command, _ []string) error {
	scripts, err := allScripts(cmd.Context())
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(scripts))
	for _, s := range scripts {
		lines = append(lines, fmt.Sprintf("%s\t%s", s.Name(), scriptSource(s)))
	}
	ux.List("Scripts", lines)
	return nil
}
