// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

// Package config provides centralized configuration for the loader.
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority
// wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (SONG_DATA_DIR, DUCKDB_PATH, LOG_LEVEL, ...)
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"strings"
)

// Config holds all loader configuration.
type Config struct {
	Data     DataConfig     `koanf:"data"`
	Database DatabaseConfig `koanf:"database"`
	Load     LoadConfig     `koanf:"load"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DataConfig locates the source data trees.
//
// Environment Variables:
//   - SONG_DATA_DIR: Root of the song metadata tree (default: data/song_data)
//   - LOG_DATA_DIR: Root of the activity log tree (default: data/log_data)
type DataConfig struct {
	SongDir string `koanf:"song_dir"`
	LogDir  string `koanf:"log_dir"`
}

// DatabaseConfig holds DuckDB warehouse settings.
//
// Environment Variables:
//   - DUCKDB_PATH: Database file path, or :memory: (default: data/harmonium.duckdb)
//   - DUCKDB_MAX_MEMORY: DuckDB memory limit (default: 2GB)
//   - DUCKDB_THREADS: Worker threads, 0 = runtime.NumCPU() (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// LoadConfig controls pipeline behavior.
//
// SkipMalformed selects the malformed-record policy: when true (default) a
// record missing required fields or carrying an unparseable timestamp is
// logged, counted, and skipped so a rerun over the same data stays repeatable;
// when false the first malformed record aborts and rolls back the whole run.
//
// DryRun transforms and resolves everything but rolls the transaction back
// instead of committing, leaving the warehouse untouched.
type LoadConfig struct {
	SkipMalformed bool `koanf:"skip_malformed"`
	DryRun        bool `koanf:"dry_run"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateData(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateData() error {
	if c.Data.SongDir == "" {
		return fmt.Errorf("SONG_DATA_DIR must not be empty")
	}
	if c.Data.LogDir == "" {
		return fmt.Errorf("LOG_DATA_DIR must not be empty")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH must not be empty")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT %q is not valid (want json or console)", c.Logging.Format)
	}
	return nil
}
