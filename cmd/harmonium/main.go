// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

// Command harmonium runs one warehouse load: it discovers song metadata and
// activity log JSON files under the configured directories, transforms them
// into the star schema, and loads everything in a single transaction.
//
// Configuration comes from config.yaml and environment variables (see the
// config package). The process exits 0 on a committed or dry run and 1 on any
// failure; a failed run leaves the warehouse untouched.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/harmonium/internal/config"
	"github.com/tomtom215/harmonium/internal/database"
	"github.com/tomtom215/harmonium/internal/etl"
	"github.com/tomtom215/harmonium/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Error().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open warehouse")
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close warehouse")
		}
	}()

	run, err := etl.New(db, cfg).Run(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Warehouse load failed")
		return 1
	}

	logging.Info().
		Str("run_id", run.RunID.String()).
		Str("status", run.Status).
		Msg("Done")
	return 0
}
