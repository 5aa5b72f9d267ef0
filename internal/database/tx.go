// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomtom215/harmonium/internal/logging"
	"github.com/tomtom215/harmonium/internal/models"
)

// ErrRollback can be returned from a RunInTx callback to roll the transaction
// back without reporting an error to the caller. Used for dry runs.
var ErrRollback = errors.New("rollback requested")

// Tx is a transaction-scoped view of the warehouse. All load operations of one
// pipeline invocation go through a single Tx so that a failure anywhere rolls
// back the entire run.
type Tx struct {
	tx *sql.Tx
}

// RunInTx executes fn inside a single database transaction.
//
// Exactly one of commit or rollback happens on every exit path:
//   - fn returns nil: commit
//   - fn returns ErrRollback: rollback, RunInTx returns nil
//   - fn returns any other error: rollback, error is propagated
//   - fn panics: rollback, panic is re-raised
func (db *DB) RunInTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(sqlTx, fmt.Errorf("panic: %v", p))
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		rollback(sqlTx, err)
		if errors.Is(err, ErrRollback) {
			return nil
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rollback aborts the transaction, logging a rollback failure alongside the
// error that triggered it.
func rollback(sqlTx *sql.Tx, cause error) {
	if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		logging.Error().
			Err(rbErr).
			AnErr("original_error", cause).
			Msg("Transaction rollback failed")
	}
}

// UpsertSong inserts a song row, keeping the existing row on a song_id
// conflict (first-write-wins).
//
// Year and duration arrive in canonical string form from the transformer; the
// CASTs push them back into the typed columns. Both are guaranteed parseable
// because the transformer rejects records where they are absent or invalid.
func (t *Tx) UpsertSong(ctx context.Context, song *models.SongRow) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO songs (song_id, title, artist_id, year, duration)
		VALUES (?, ?, ?, CAST(? AS INTEGER), CAST(? AS DOUBLE))
		ON CONFLICT DO NOTHING`,
		song.SongID, song.Title, song.ArtistID, song.Year, song.Duration,
	)
	if err != nil {
		return fmt.Errorf("upsert song %s: %w", song.SongID, err)
	}
	return nil
}

// UpsertArtist inserts an artist row, keeping the existing row on an artist_id
// conflict (first-write-wins).
//
// Latitude and longitude arrive as canonical strings that may hold sentinel
// tokens. TRY_CAST maps unparseable tokens ('', 'None', 'NULL') straight to
// NULL; the literal token "NaN" parses to a NaN double, which the post-load
// NormalizeSentinels pass rewrites to NULL.
func (t *Tx) UpsertArtist(ctx context.Context, artist *models.ArtistRow) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO artists (artist_id, name, location, latitude, longitude)
		VALUES (?, ?, ?, TRY_CAST(? AS DOUBLE), TRY_CAST(? AS DOUBLE))
		ON CONFLICT DO NOTHING`,
		artist.ArtistID, artist.Name, artist.Location, artist.Latitude, artist.Longitude,
	)
	if err != nil {
		return fmt.Errorf("upsert artist %s: %w", artist.ArtistID, err)
	}
	return nil
}

// UpsertTime inserts a time dimension row, keeping the existing row on a
// start_time conflict. All derived fields are pure functions of start_time, so
// the existing row is always identical to the discarded one.
func (t *Tx) UpsertTime(ctx context.Context, row *models.TimeRow) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO "time" (start_time, hour, day, week, month, year, weekday)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		row.StartTime, row.Hour, row.Day, row.Week, row.Month, row.Year, row.Weekday,
	)
	if err != nil {
		return fmt.Errorf("upsert time %s: %w", row.StartTime, err)
	}
	return nil
}

// UpsertUser inserts a user row, or updates only the level field when the user
// already exists. Level is the single mutable attribute: the latest observed
// value wins.
func (t *Tx) UpsertUser(ctx context.Context, user *models.UserRow) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (user_id, first_name, last_name, gender, level)
		VALUES (?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT (user_id) DO UPDATE SET level = excluded.level`,
		user.UserID, user.FirstName, user.LastName, user.Gender, user.Level,
	)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", user.UserID, err)
	}
	return nil
}

// InsertSongplay appends one fact row unless a row with the same natural key
// (start_time, user_id, song_id) already exists. Reports whether a row was
// actually inserted; a false return is an expected duplicate skip on rerun,
// never an error.
//
// The NOT EXISTS guard uses IS NOT DISTINCT FROM so that plays with a NULL
// song_id (resolution misses) also deduplicate; the UNIQUE constraint alone
// would admit them because SQL treats NULLs as distinct.
func (t *Tx) InsertSongplay(ctx context.Context, play *models.SongplayRow) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM songplays
			WHERE start_time = ? AND user_id = ? AND song_id IS NOT DISTINCT FROM ?
		)`,
		play.StartTime, play.UserID, play.Level, play.SongID, play.ArtistID,
		play.SessionID, play.Location, play.UserAgent,
		play.StartTime, play.UserID, play.SongID,
	)
	if err != nil {
		return false, fmt.Errorf("insert songplay user=%d start=%s: %w", play.UserID, play.StartTime, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert songplay rows affected: %w", err)
	}
	if rows == 0 {
		logging.Debug().
			Int64("user_id", play.UserID).
			Time("start_time", play.StartTime).
			Msg("Duplicate songplay skipped")
		return false, nil
	}
	return true, nil
}

// LookupSongArtist resolves a played song against the catalog by exact match
// on title, artist name, and duration. No match returns (nil, nil, nil): a
// resolution miss is an expected outcome, not an error.
//
// Duration is compared with the store's native double equality. Values that
// survived string/float round-trips in upstream exports may fail to match;
// this mirrors the source system's behavior and is documented rather than
// papered over with a tolerance window.
func (t *Tx) LookupSongArtist(ctx context.Context, title, artistName string, duration float64) (songID, artistID *string, err error) {
	var s, a string
	err = t.tx.QueryRowContext(ctx, `
		SELECT s.song_id, a.artist_id
		FROM songs s
		JOIN artists a ON s.artist_id = a.artist_id
		WHERE s.title = ? AND a.name = ? AND s.duration = ?
		LIMIT 1`,
		title, artistName, duration,
	).Scan(&s, &a)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lookup song %q by %q: %w", title, artistName, err)
	}
	return &s, &a, nil
}

// NormalizeSentinels rewrites missing-value sentinel tokens that reached the
// warehouse as text ('', 'NULL', 'NaN', 'None') and NaN doubles to true NULLs.
// Runs as the post-process phase, inside the run transaction.
func (t *Tx) NormalizeSentinels(ctx context.Context) error {
	statements := []string{
		`UPDATE artists SET location = NULL WHERE location IN ('', 'NULL', 'NaN', 'None');`,
		`UPDATE artists SET latitude = NULL WHERE isnan(latitude);`,
		`UPDATE artists SET longitude = NULL WHERE isnan(longitude);`,
		`UPDATE songplays SET song_id = NULL WHERE song_id IN ('', 'NULL', 'NaN', 'None');`,
		`UPDATE songplays SET artist_id = NULL WHERE artist_id IN ('', 'NULL', 'NaN', 'None');`,
	}

	for _, stmt := range statements {
		if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("normalize sentinels: %s: %w", stmt, err)
		}
	}
	return nil
}

// RecordRun writes the audit row for this invocation.
func (t *Tx) RecordRun(ctx context.Context, run *models.IngestRun) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ingest_runs (
			run_id, started_at, finished_at, song_files, log_files,
			events, songplays, duplicates, resolution_misses, skipped, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.FinishedAt, run.SongFiles, run.LogFiles,
		run.Events, run.Songplays, run.Duplicates, run.ResolutionMisses, run.Skipped, run.Status,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}
