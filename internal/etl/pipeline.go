// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/harmonium/internal/config"
	"github.com/tomtom215/harmonium/internal/database"
	"github.com/tomtom215/harmonium/internal/logging"
	"github.com/tomtom215/harmonium/internal/models"
)

// Run status values recorded in ingest_runs.
const (
	StatusCommitted = "committed"
	StatusDryRun    = "dry-run"
)

// Load phases, in execution order. Used for log context and error wrapping so
// a failure names the phase it happened in.
const (
	phaseLoadingSongs = "loading_songs"
	phaseLoadingLogs  = "loading_logs"
	phasePostProcess  = "post_process"
)

// Pipeline orchestrates one warehouse load: file discovery, transformation,
// and loading through a single transaction.
type Pipeline struct {
	db  *database.DB
	cfg *config.Config

	// OnProgress, when set, is called after each processed file.
	OnProgress ProgressFunc
}

// New creates a pipeline over an open warehouse.
func New(db *database.DB, cfg *config.Config) *Pipeline {
	return &Pipeline{db: db, cfg: cfg}
}

// Run executes the full load and returns the audit record describing it.
//
// The song partition loads before the log partition so that reference
// resolution sees the catalog from this run. All writes, including the audit
// row, share one transaction; any error rolls everything back and the
// warehouse is left exactly as it was. In dry-run mode the transaction is
// rolled back deliberately after all phases complete, which exercises every
// transform and load path without persisting anything.
func (p *Pipeline) Run(ctx context.Context) (*models.IngestRun, error) {
	stats := NewRunStats()
	runID := uuid.New()

	logging.Info().
		Str("run_id", runID.String()).
		Str("song_dir", p.cfg.Data.SongDir).
		Str("log_dir", p.cfg.Data.LogDir).
		Bool("dry_run", p.cfg.Load.DryRun).
		Msg("Starting warehouse load")

	songFiles, err := ListJSONFiles(p.cfg.Data.SongDir)
	if err != nil {
		return nil, fmt.Errorf("discovering song files: %w", err)
	}
	logFiles, err := ListJSONFiles(p.cfg.Data.LogDir)
	if err != nil {
		return nil, fmt.Errorf("discovering log files: %w", err)
	}
	stats.SongFiles = int64(len(songFiles))
	stats.LogFiles = int64(len(logFiles))
	if len(songFiles) == 0 {
		logging.Warn().Str("dir", p.cfg.Data.SongDir).Msg("No song files found")
	}
	if len(logFiles) == 0 {
		logging.Warn().Str("dir", p.cfg.Data.LogDir).Msg("No log files found")
	}

	var run *models.IngestRun
	err = p.db.RunInTx(ctx, func(tx *database.Tx) error {
		if err := p.loadSongs(ctx, tx, songFiles, stats); err != nil {
			return fmt.Errorf("%s: %w", phaseLoadingSongs, err)
		}
		if err := p.loadLogs(ctx, tx, logFiles, stats); err != nil {
			return fmt.Errorf("%s: %w", phaseLoadingLogs, err)
		}
		if err := tx.NormalizeSentinels(ctx); err != nil {
			return fmt.Errorf("%s: %w", phasePostProcess, err)
		}

		status := StatusCommitted
		if p.cfg.Load.DryRun {
			status = StatusDryRun
		}
		run = &models.IngestRun{
			RunID:            runID,
			StartedAt:        stats.Started,
			FinishedAt:       time.Now().UTC(),
			SongFiles:        stats.SongFiles,
			LogFiles:         stats.LogFiles,
			Events:           stats.Events,
			Songplays:        stats.Songplays,
			Duplicates:       stats.Duplicates,
			ResolutionMisses: stats.ResolutionMisses,
			Skipped:          stats.Skipped,
			Status:           status,
		}
		if err := tx.RecordRun(ctx, run); err != nil {
			return err
		}

		if p.cfg.Load.DryRun {
			return database.ErrRollback
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("run_id", runID.String()).
		Str("status", run.Status).
		Int64("song_files", run.SongFiles).
		Int64("log_files", run.LogFiles).
		Int64("events", run.Events).
		Int64("songplays", run.Songplays).
		Int64("duplicates", run.Duplicates).
		Int64("resolution_misses", run.ResolutionMisses).
		Int64("skipped", run.Skipped).
		Dur("duration", stats.Duration()).
		Msg("Warehouse load finished")
	return run, nil
}

// loadSongs transforms each song file and upserts its song and artist rows.
// Song goes first within a file; the store enforces no ordering between the
// two dimensions, so this only fixes the trace order in logs.
func (p *Pipeline) loadSongs(ctx context.Context, tx *database.Tx, files []string, stats *RunStats) error {
	prog := newProgress(phaseLoadingSongs, len(files), p.OnProgress)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		song, artist, err := TransformSongFile(file)
		if err != nil {
			if errors.Is(err, ErrMalformedRecord) && p.cfg.Load.SkipMalformed {
				stats.Skipped++
				logging.Warn().Str("file", file).Err(err).Msg("Skipping malformed song file")
				prog.Step(file)
				continue
			}
			return err
		}

		if err := tx.UpsertSong(ctx, song); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if err := tx.UpsertArtist(ctx, artist); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		prog.Step(file)
	}
	return nil
}

// loadLogs transforms each activity log file and loads the time, user, and
// songplay rows for every played-song event, resolving each play against the
// song catalog on the way.
func (p *Pipeline) loadLogs(ctx context.Context, tx *database.Tx, files []string, stats *RunStats) error {
	strict := !p.cfg.Load.SkipMalformed
	prog := newProgress(phaseLoadingLogs, len(files), p.OnProgress)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates, skipped, err := TransformLogFile(file, strict)
		if err != nil {
			return err
		}
		stats.Skipped += skipped

		for i := range candidates {
			if err := p.loadPlay(ctx, tx, &candidates[i], stats); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
		}
		prog.Step(file)
	}
	return nil
}

// loadPlay loads the three rows of one play candidate: time and user
// dimensions first to satisfy the fact table's foreign keys, then the fact
// row itself after catalog resolution.
func (p *Pipeline) loadPlay(ctx context.Context, tx *database.Tx, cand *models.PlayCandidate, stats *RunStats) error {
	stats.Events++

	if err := tx.UpsertTime(ctx, &cand.Time); err != nil {
		return err
	}
	if err := tx.UpsertUser(ctx, &cand.User); err != nil {
		return err
	}

	songID, artistID, err := tx.LookupSongArtist(ctx, cand.SongTitle, cand.ArtistName, cand.Duration)
	if err != nil {
		return err
	}
	if songID == nil {
		stats.ResolutionMisses++
		logging.Debug().
			Str("song", cand.SongTitle).
			Str("artist", cand.ArtistName).
			Float64("duration", cand.Duration).
			Msg("No catalog match for play")
	}
	cand.Play.SongID = songID
	cand.Play.ArtistID = artistID

	inserted, err := tx.InsertSongplay(ctx, &cand.Play)
	if err != nil {
		return err
	}
	if inserted {
		stats.Songplays++
	} else {
		stats.Duplicates++
	}
	return nil
}
