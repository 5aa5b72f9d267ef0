// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package etl

import (
	"time"

	"github.com/tomtom215/harmonium/internal/logging"
)

// RunStats accumulates counters over one pipeline invocation. The pipeline is
// single-threaded, so plain fields suffice.
type RunStats struct {
	Started time.Time

	SongFiles        int64
	LogFiles         int64
	Events           int64 // played-song events seen (pre-dedup)
	Songplays        int64 // fact rows actually inserted
	Duplicates       int64 // fact rows skipped by natural-key dedup
	ResolutionMisses int64 // plays with no catalog match
	Skipped          int64 // malformed records dropped
}

// NewRunStats returns stats anchored at the current time.
func NewRunStats() *RunStats {
	return &RunStats{Started: time.Now().UTC()}
}

// Duration reports elapsed time since the run started.
func (s *RunStats) Duration() time.Duration {
	return time.Since(s.Started)
}

// progressInterval controls how often file progress is promoted to info level;
// every file is still logged at debug.
const progressInterval = 10

// ProgressFunc receives per-file progress: the phase name, files processed so
// far, and the total files in that phase.
type ProgressFunc func(phase string, processed, total int)

// progress tracks per-phase file counting and emits periodic progress logs,
// one line per processed file at debug and a milestone line every
// progressInterval files. An optional callback sees every step.
type progress struct {
	phase    string
	total    int
	done     int
	callback ProgressFunc
}

func newProgress(phase string, total int, callback ProgressFunc) *progress {
	return &progress{phase: phase, total: total, callback: callback}
}

// Step records one processed file.
func (p *progress) Step(file string) {
	p.done++
	if p.callback != nil {
		p.callback(p.phase, p.done, p.total)
	}
	logging.Debug().
		Str("phase", p.phase).
		Str("file", file).
		Int("processed", p.done).
		Int("total", p.total).
		Msg("File processed")
	if p.done%progressInterval == 0 || p.done == p.total {
		logging.Info().
			Str("phase", p.phase).
			Int("processed", p.done).
			Int("total", p.total).
			Msg("Progress")
	}
}
