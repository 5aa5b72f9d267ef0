// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

// Package models defines the warehouse row tuples produced by the transformers
// and the raw source record shapes decoded from the JSON data files.
//
// Row tuples are transient: the transformers build them, the load orchestrator
// hands them to the store, and they are discarded once the corresponding load
// call returns. The store owns all persisted state.
package models

import (
	"time"

	"github.com/google/uuid"
)

// SongRow is one row for the songs dimension table.
//
// Every field is carried in its canonical string form, matching the transport
// contract of the load layer: numeric fields are formatted with strconv, a
// missing or NaN numeric becomes the literal token "NaN", and a missing string
// becomes "". The store casts these back to typed columns on insert and
// rewrites remaining sentinel tokens to true NULLs in the post-process phase.
type SongRow struct {
	SongID   string
	Title    string
	ArtistID string
	Year     string
	Duration string
}

// ArtistRow is one row for the artists dimension table, in canonical string
// form (see SongRow).
type ArtistRow struct {
	ArtistID  string
	Name      string
	Location  string
	Latitude  string
	Longitude string
}

// TimeRow is one row for the time dimension table. All calendar fields are
// pure functions of StartTime.
type TimeRow struct {
	StartTime time.Time // millisecond precision, UTC
	Hour      int
	Day       int
	Week      int // ISO week number
	Month     int
	Year      int // calendar year, not ISO year
	Weekday   int // Monday=0 .. Sunday=6
}

// UserRow is one row for the users dimension table. Level is the only mutable
// attribute; the store applies last-write-wins on it.
type UserRow struct {
	UserID    int64
	FirstName string
	LastName  string
	Gender    string // single char, "" when absent
	Level     string
}

// SongplayRow is one fact row. SongID and ArtistID are nil when reference
// resolution found no match, which is the expected case for plays outside the
// loaded song catalog.
type SongplayRow struct {
	StartTime time.Time
	UserID    int64
	Level     string
	SongID    *string
	ArtistID  *string
	SessionID int
	Location  string
	UserAgent string
}

// PlayCandidate bundles the three logical rows derived from one played-song
// event, plus the attributes needed to resolve the song/artist reference.
type PlayCandidate struct {
	Time TimeRow
	User UserRow
	Play SongplayRow

	// Resolution keys (exact-match lookup against the song catalog).
	SongTitle  string
	ArtistName string
	Duration   float64
}

// IngestRun is the audit record written for each pipeline invocation.
type IngestRun struct {
	RunID            uuid.UUID
	StartedAt        time.Time
	FinishedAt       time.Time
	SongFiles        int64
	LogFiles         int64
	Events           int64
	Songplays        int64
	Duplicates       int64
	ResolutionMisses int64
	Skipped          int64
	Status           string // "committed" or "dry-run"
}
