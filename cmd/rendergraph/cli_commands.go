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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/rendergraph/pkg/logging"
	"github.com/AleutianAI/rendergraph/pkg/ux"
	"github.com/AleutianAI/rendergraph/services/rendergraph/config"
	"github.com/AleutianAI/rendergraph/services/rendergraph/telemetry"
)

// =============================================================================
// GLOBAL STATE
// =============================================================================

var (
	// Persistent flags
	configPath      string
	logLevelFlag    string
	personalityFlag string

	cfg               config.Config
	logger            *logging.Logger
	telemetryShutdown func(context.Context) error
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "rendergraph",
	Short: "Build, check and serve render graphs",
	Long: `rendergraph runs render graph scripts, compiles the resulting graphs into
execution plans and keeps a catalog of registered graphs.

A script is either a built-in name (see 'rendergraph scripts') or the path
to a YAML script file.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

var validateCmd = &cobra.Command{
	Use:   "validate [SCRIPT...]",
	Short: "Run and compile scripts, reporting every failure",
	Long: `Runs each script and compiles the graph it builds. With no arguments
every built-in script and every script in the configured scripts
directory is checked.

Examples:
  rendergraph validate
  rendergraph validate "Temporal Delay Graph" scripts/custom.yaml`,
	RunE: runValidate,
}

var showCmd = &cobra.Command{
	Use:   "show SCRIPT",
	Short: "Print a graph and its execution plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var exportCmd = &cobra.Command{
	Use:   "export SCRIPT",
	Short: "Render a graph as dot, mermaid, json or yaml",
	Long: `Renders the graph a script builds. The yaml format writes a script that
rebuilds the same graph.

Examples:
  rendergraph export TutorialPass --format yaml
  rendergraph export "Temporal Delay Graph" --format dot --output td.dot`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "List pass types by library",
	Args:  cobra.NoArgs,
	RunE:  runPasses,
}

var scriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "List built-in scripts and scripts in the scripts directory",
	Args:  cobra.NoArgs,
	RunE:  runScripts,
}

var registerCmd = &cobra.Command{
	Use:   "register SCRIPT...",
	Short: "Run scripts and store their graphs in the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRegister,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the graph catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered graphs",
	Args:  cobra.NoArgs,
	RunE:  runCatalogList,
}

var catalogShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a registered graph record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogShow,
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a registered graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogDelete,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over HTTP",
	Long: `Starts the HTTP API. Scripts in the scripts directory are registered at
startup; with --watch they are re-registered whenever they change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Re-run scripts in DIR whenever they change",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	exportFormat    string
	exportDirection string
	exportOutput    string

	serveAddr       string
	serveWatch      bool
	serveNoScripts  bool
	watchRegister   bool
	catalogInMemory bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default: ./rendergraph.yaml if present)")
	pf.StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&personalityFlag, "personality", "", "output style: full, minimal, machine")
	pf.BoolVar(&catalogInMemory, "in-memory", false, "use a throwaway in-memory catalog")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "dot", "output format: dot, mermaid, json, yaml")
	exportCmd.Flags().StringVar(&exportDirection, "direction", "LR", "layout direction for dot and mermaid: TB, LR, BT, RL")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides api.addr)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "re-register scripts when they change")
	serveCmd.Flags().BoolVar(&serveNoScripts, "no-scripts", false, "do not register scripts at startup")

	watchCmd.Flags().BoolVar(&watchRegister, "register", false, "store reloaded graphs in the catalog")

	catalogCmd.AddCommand(catalogListCmd, catalogShowCmd, catalogDeleteCmd)
	rootCmd.AddCommand(validateCmd, showCmd, exportCmd, passesCmd, scriptsCmd,
		registerCmd, catalogCmd, serveCmd, watchCmd)
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads configuration and initializes logging and telemetry before
// any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevelFlag != "" {
		loaded.Logging.Level = logLevelFlag
	}
	if catalogInMemory {
		loaded.Catalog.InMemory = true
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	ux.InitPersonality()
	if personalityFlag != "" {
		ux.SetPersonality(ux.ParsePersonalityLevel(personalityFlag))
	}

	logger = logging.New(logging.Config{
		Level:   cfg.LogLevel(),
		LogDir:  cfg.Logging.Dir,
		Service: "rendergraph",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	telemetryShutdown = shutdown
	return nil
}

func teardown(_ *cobra.Command, _ []string) {
	if telemetryShutdown != nil {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
		telemetryShutdown = nil
	}
	if logger != nil {
		logger.Close()
	}
}
