// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads rendergraph.yaml.
//
// Precedence, lowest first: Default, the YAML file, RENDERGRAPH_*
// environment variables. Command-line flags are applied by the caller.
//
// Thread Safety:
//
//	Config values are plain data. Load is safe for concurrent use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/rendergraph/pkg/logging"
	"github.com/AleutianAI/rendergraph/services/rendergraph/catalog"
	"github.com/AleutianAI/rendergraph/services/rendergraph/telemetry"
)

// MaxConfigFileSize is the largest config file Load will read (1MB).
const MaxConfigFileSize = 1024 * 1024

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "rendergraph.yaml"

var (
	// ErrInvalidConfig wraps every parse or validation failure.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrConfigTooLarge is returned when the file exceeds MaxConfigFileSize.
	ErrConfigTooLarge = errors.New("config file too large")
)

var validate = validator.New()

// Config is the root of rendergraph.yaml.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	Catalog   catalog.Config   `yaml:"catalog"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	API       APIConfig        `yaml:"api"`
	Scripts   ScriptsConfig    `yaml:"scripts"`
	Compile   CompileConfig    `yaml:"compile"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// RegisterRate is the per-client rate of script registrations per
	// second. Zero disables the limit.
	RegisterRate float64 `yaml:"register_rate" validate:"gte=0"`

	// RegisterBurst is the number of registrations allowed at once.
	RegisterBurst int `yaml:"register_burst" validate:"gte=0"`
}

// ScriptsConfig says where graph scripts live.
type ScriptsConfig struct {
	Dir      string        `yaml:"dir"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// CompileConfig controls compilation of registered graphs.
type CompileConfig struct {
	// OnRegister compiles every graph as it is registered.
	OnRegister bool `yaml:"on_register"`

	// Required rejects graphs that fail to compile.
	Required bool `yaml:"required"`

	// StrictPorts requires every pass to describe its ports.
	StrictPorts bool `yaml:"strict_ports"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".rendergraph")

	return Config{
		Logging:   LoggingConfig{Level: "info"},
		Catalog:   catalog.DefaultConfig(filepath.Join(base, "catalog")),
		Telemetry: telemetry.DefaultConfig(),
		API: APIConfig{
			Addr:          ":8090",
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  30 * time.Second,
			RegisterRate:  5,
			RegisterBurst: 10,
		},
		Scripts: ScriptsConfig{
			Dir:      "scripts",
			Debounce: 100 * time.Millisecond,
		},
		Compile: CompileConfig{OnRegister: true, StrictPorts: true},
	}
}

// Load reads path over Default and applies environment overrides.
//
// Inputs:
//
//	path - Config file. When empty, DefaultFileName is used if it exists.
//
// Outputs:
//
//	Config - The merged configuration.
//	error - ErrInvalidConfig, ErrConfigTooLarge or a read error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := readFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, err
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes data over Default without reading the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LogLevel returns the parsed logging level.
func (c Config) LogLevel() logging.Level {
	lvl, _ := logging.ParseLevel(c.Logging.Level)
	return lvl
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > MaxConfigFileSize {
		return nil, fmt.Errorf("%w: %s", ErrConfigTooLarge, path)
	}
	return data, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv applies RENDERGRAPH_* overrides.
func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"RENDERGRAPH_LOG_LEVEL":    &cfg.Logging.Level,
		"RENDERGRAPH_LOG_DIR":      &cfg.Logging.Dir,
		"RENDERGRAPH_CATALOG_PATH": &cfg.Catalog.Path,
		"RENDERGRAPH_API_ADDR":     &cfg.API.Addr,
		"RENDERGRAPH_SCRIPTS_DIR":  &cfg.Scripts.Dir,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"RENDERGRAPH_LOG_JSON":         &cfg.Logging.JSON,
		"RENDERGRAPH_CATALOG_INMEMORY": &cfg.Catalog.InMemory,
		"RENDERGRAPH_COMPILE_REQUIRED": &cfg.Compile.Required,
	}
	for key, dst := range bools {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
		}
		*dst = b
	}
	return nil
}
