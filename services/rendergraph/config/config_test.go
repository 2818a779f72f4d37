// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/rendergraph/pkg/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8090", cfg.API.Addr)
	assert.Equal(t, 5.0, cfg.API.RegisterRate)
	assert.Equal(t, 10, cfg.API.RegisterBurst)
	assert.True(t, cfg.Compile.OnRegister)
	assert.False(t, cfg.Compile.Required)
	assert.Equal(t, 10*time.Minute, cfg.Catalog.GCInterval)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
logging:
  level: debug
  json: true
catalog:
  in_memory: true
  gc_interval: 1m
api:
  addr: 127.0.0.1:9000
scripts:
  dir: /srv/graphs
  debounce: 250ms
compile:
  required: true
`))
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())
	assert.True(t, cfg.Logging.JSON)
	assert.True(t, cfg.Catalog.InMemory)
	assert.Equal(t, time.Minute, cfg.Catalog.GCInterval)
	assert.Equal(t, "127.0.0.1:9000", cfg.API.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Scripts.Debounce)
	assert.True(t, cfg.Compile.Required)
	assert.True(t, cfg.Compile.OnRegister, "unset fields keep defaults")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown field", "renderer: vulkan\n"},
		{"bad level", "logging: {level: loud}\n"},
		{"bad exporter", "telemetry: {trace_exporter: zipkin}\n"},
		{"empty addr", "api: {addr: \"\"}\n"},
		{"bad ratio", "catalog: {gc_discard_ratio: 2}\n"},
		{"negative register rate", "api: {register_rate: -1}\n"},
		{"not yaml", "api: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().API, cfg.API)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: {addr: \":7000\"}\nlogging: {level: warn}\n"), 0o644))

	t.Setenv("RENDERGRAPH_LOG_LEVEL", "error")
	t.Setenv("RENDERGRAPH_CATALOG_INMEMORY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.API.Addr)
	assert.Equal(t, logging.LevelError, cfg.LogLevel())
	assert.True(t, cfg.Catalog.InMemory)
}

func TestLoad_BadEnvBool(t *testing.T) {
	t.Setenv("RENDERGRAPH_LOG_JSON", "sometimes")
	t.Chdir(t.TempDir())
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().API.Addr, cfg.API.Addr)
}

func TestLoad_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.yaml")
	require.NoError(t, os.WriteFile(path, make([]byte, MaxConfigFileSize+1), 0o644))
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrConfigTooLarge)
}
