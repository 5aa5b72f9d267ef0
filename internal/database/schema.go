// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package database

// schemaQueries returns the table and index creation statements for the
// warehouse star schema.
//
// Schema notes:
//   - songs/artists/"time" are static dimensions: rows are created once per
//     key and never updated (first-write-wins via ON CONFLICT DO NOTHING).
//   - users.level is the only mutable attribute in the schema; the upsert in
//     tx.go overwrites it on conflict (last-write-wins).
//   - songplays carries a UNIQUE(start_time, user_id, song_id) natural key so
//     reruns over overlapping data cannot duplicate resolved plays. Plays with
//     a NULL song_id (resolution misses) are deduplicated by the NOT EXISTS
//     guard in tx.go, since SQL UNIQUE treats NULLs as distinct.
//   - songplay_id is sequence-backed; DuckDB has no IDENTITY column that can
//     also be a PRIMARY KEY.
//   - "time" is quoted everywhere because TIME is a reserved type name.
func schemaQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS songs (
			song_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist_id TEXT NOT NULL,
			year INTEGER NOT NULL,
			duration DOUBLE NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS artists (
			artist_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			location TEXT,
			latitude DOUBLE,
			longitude DOUBLE
		);`,

		`CREATE TABLE IF NOT EXISTS "time" (
			start_time TIMESTAMP PRIMARY KEY,
			hour INTEGER NOT NULL,
			day INTEGER NOT NULL,
			week INTEGER NOT NULL,
			month INTEGER NOT NULL,
			year INTEGER NOT NULL,
			weekday INTEGER NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			first_name TEXT,
			last_name TEXT,
			gender TEXT,
			level TEXT
		);`,

		`CREATE SEQUENCE IF NOT EXISTS seq_songplay_id;`,

		`CREATE TABLE IF NOT EXISTS songplays (
			songplay_id BIGINT PRIMARY KEY DEFAULT nextval('seq_songplay_id'),
			start_time TIMESTAMP NOT NULL REFERENCES "time" (start_time),
			user_id BIGINT NOT NULL REFERENCES users (user_id),
			level TEXT,
			song_id TEXT,
			artist_id TEXT,
			session_id INTEGER,
			location TEXT,
			user_agent TEXT,
			UNIQUE (start_time, user_id, song_id)
		);`,

		// Per-invocation audit trail, written inside the run transaction.
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			run_id UUID PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			song_files BIGINT NOT NULL,
			log_files BIGINT NOT NULL,
			events BIGINT NOT NULL,
			songplays BIGINT NOT NULL,
			duplicates BIGINT NOT NULL,
			resolution_misses BIGINT NOT NULL,
			skipped BIGINT NOT NULL,
			status TEXT NOT NULL
		);`,

		// Reference resolution scans songs by (title, duration) joined to
		// artists by name; index both sides of the lookup.
		`CREATE INDEX IF NOT EXISTS idx_songs_title_duration ON songs (title, duration);`,
		`CREATE INDEX IF NOT EXISTS idx_artists_name ON artists (name);`,
	}
}
