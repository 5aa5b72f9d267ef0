// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/harmonium/internal/config"
	"github.com/tomtom215/harmonium/internal/models"
)

// setupTestDB creates an in-memory warehouse for a test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "500MB",
		Threads:   1,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

// inTx runs fn in a committed transaction, failing the test on error.
func inTx(t *testing.T, db *DB, fn func(*Tx) error) {
	t.Helper()
	if err := db.RunInTx(context.Background(), fn); err != nil {
		t.Fatalf("RunInTx failed: %v", err)
	}
}

func countRows(t *testing.T, db *DB, table string) int {
	t.Helper()
	var n int
	if err := db.Conn().QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func testSong() *models.SongRow {
	return &models.SongRow{
		SongID:   "SOUPIRU12A6D4FA1E1",
		Title:    "Der Kleine Dompfaff",
		ArtistID: "ARJIE2Y1187B994AB7",
		Year:     "0",
		Duration: "152.92036",
	}
}

func testArtist() *models.ArtistRow {
	return &models.ArtistRow{
		ArtistID:  "ARJIE2Y1187B994AB7",
		Name:      "Line Renaud",
		Location:  "",
		Latitude:  "NaN",
		Longitude: "NaN",
	}
}

// mustTime parses an RFC3339 timestamp for fixtures.
func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return ts
}

func TestUpsertSongFirstWriteWins(t *testing.T) {
	db := setupTestDB(t)

	inTx(t, db, func(tx *Tx) error {
		return tx.UpsertSong(context.Background(), testSong())
	})

	// Same key, different attributes: the original row must survive.
	changed := testSong()
	changed.Title = "Renamed"
	changed.Duration = "1.0"
	inTx(t, db, func(tx *Tx) error {
		return tx.UpsertSong(context.Background(), changed)
	})

	if n := countRows(t, db, "songs"); n != 1 {
		t.Fatalf("songs count = %d, want 1", n)
	}
	var title string
	var duration float64
	if err := db.Conn().QueryRow(`SELECT title, duration FROM songs WHERE song_id = ?`,
		"SOUPIRU12A6D4FA1E1").Scan(&title, &duration); err != nil {
		t.Fatalf("query song: %v", err)
	}
	if title != "Der Kleine Dompfaff" {
		t.Errorf("title = %q, want original to win", title)
	}
	if duration != 152.92036 {
		t.Errorf("duration = %v, want 152.92036", duration)
	}
}

func TestUpsertArtistSentinelCoordinates(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		name     string
		artist   *models.ArtistRow
		wantNull bool
		wantLat  float64
	}{
		{
			name: "real coordinates",
			artist: &models.ArtistRow{
				ArtistID: "AR1", Name: "A", Location: "NY",
				Latitude: "40.71455", Longitude: "-74.00712",
			},
			wantLat: 40.71455,
		},
		{
			name: "None token becomes NULL via TRY_CAST",
			artist: &models.ArtistRow{
				ArtistID: "AR2", Name: "B", Location: "",
				Latitude: "None", Longitude: "None",
			},
			wantNull: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTx(t, db, func(tx *Tx) error {
				return tx.UpsertArtist(context.Background(), tt.artist)
			})

			var lat *float64
			if err := db.Conn().QueryRow(`SELECT latitude FROM artists WHERE artist_id = ?`,
				tt.artist.ArtistID).Scan(&lat); err != nil {
				t.Fatalf("query artist: %v", err)
			}
			if tt.wantNull {
				if lat != nil {
					t.Errorf("latitude = %v, want NULL", *lat)
				}
				return
			}
			if lat == nil || *lat != tt.wantLat {
				t.Errorf("latitude = %v, want %v", lat, tt.wantLat)
			}
		})
	}
}

func TestNormalizeSentinels(t *testing.T) {
	db := setupTestDB(t)

	inTx(t, db, func(tx *Tx) error {
		// "NaN" survives TRY_CAST as a NaN double; location keeps the token.
		a := testArtist()
		a.Location = "None"
		if err := tx.UpsertArtist(context.Background(), a); err != nil {
			return err
		}
		return tx.NormalizeSentinels(context.Background())
	})

	var location *string
	var lat, lon *float64
	err := db.Conn().QueryRow(`SELECT location, latitude, longitude FROM artists WHERE artist_id = ?`,
		"ARJIE2Y1187B994AB7").Scan(&location, &lat, &lon)
	if err != nil {
		t.Fatalf("query artist: %v", err)
	}
	if location != nil {
		t.Errorf("location = %q, want NULL", *location)
	}
	if lat != nil || lon != nil {
		t.Errorf("coordinates = (%v, %v), want NULLs", lat, lon)
	}
}

func TestUpsertUserLevelLastWriteWins(t *testing.T) {
	db := setupTestDB(t)

	inTx(t, db, func(tx *Tx) error {
		ctx := context.Background()
		if err := tx.UpsertUser(ctx, &models.UserRow{
			UserID: 91, FirstName: "Jayden", LastName: "Bell", Gender: "M", Level: "free",
		}); err != nil {
			return err
		}
		// Same user upgrades mid-stream; level must follow, names must stay.
		return tx.UpsertUser(ctx, &models.UserRow{
			UserID: 91, FirstName: "Jayden", LastName: "Bell", Gender: "M", Level: "paid",
		})
	})

	if n := countRows(t, db, "users"); n != 1 {
		t.Fatalf("users count = %d, want 1", n)
	}
	var level string
	if err := db.Conn().QueryRow(`SELECT level FROM users WHERE user_id = 91`).Scan(&level); err != nil {
		t.Fatalf("query user: %v", err)
	}
	if level != "paid" {
		t.Errorf("level = %q, want paid", level)
	}
}

func TestUpsertUserEmptyGenderStoredAsNull(t *testing.T) {
	db := setupTestDB(t)

	inTx(t, db, func(tx *Tx) error {
		return tx.UpsertUser(context.Background(), &models.UserRow{
			UserID: 7, FirstName: "Adelyn", LastName: "Jordan", Gender: "", Level: "free",
		})
	})

	var gender *string
	if err := db.Conn().QueryRow(`SELECT gender FROM users WHERE user_id = 7`).Scan(&gender); err != nil {
		t.Fatalf("query user: %v", err)
	}
	if gender != nil {
		t.Errorf("gender = %q, want NULL", *gender)
	}
}

func TestUpsertTimeIdempotent(t *testing.T) {
	db := setupTestDB(t)

	row := &models.TimeRow{
		StartTime: mustTime(t, "2018-11-15T00:30:26.796Z"),
		Hour:      0, Day: 15, Week: 46, Month: 11, Year: 2018, Weekday: 3,
	}
	inTx(t, db, func(tx *Tx) error {
		ctx := context.Background()
		if err := tx.UpsertTime(ctx, row); err != nil {
			return err
		}
		return tx.UpsertTime(ctx, row)
	})

	if n := countRows(t, db, `"time"`); n != 1 {
		t.Errorf(`time count = %d, want 1`, n)
	}
}

// seedPlayRefs inserts the time and user rows a songplay references.
func seedPlayRefs(t *testing.T, tx *Tx, start time.Time, userID int64) {
	t.Helper()
	ctx := context.Background()
	if err := tx.UpsertTime(ctx, &models.TimeRow{
		StartTime: start, Hour: start.Hour(), Day: start.Day(),
		Month: int(start.Month()), Year: start.Year(),
	}); err != nil {
		t.Fatalf("seed time: %v", err)
	}
	if err := tx.UpsertUser(ctx, &models.UserRow{
		UserID: userID, FirstName: "Lily", LastName: "Koch", Gender: "F", Level: "paid",
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestInsertSongplayDeduplicatesNullSongID(t *testing.T) {
	db := setupTestDB(t)
	start := mustTime(t, "2018-11-15T00:30:26.796Z")

	play := &models.SongplayRow{
		StartTime: start,
		UserID:    15,
		Level:     "paid",
		SessionID: 818,
		Location:  "Chicago-Naperville-Elgin, IL-IN-WI",
		UserAgent: `"Mozilla/5.0"`,
	}

	inTx(t, db, func(tx *Tx) error {
		seedPlayRefs(t, tx, start, 15)
		ctx := context.Background()

		inserted, err := tx.InsertSongplay(ctx, play)
		if err != nil {
			return err
		}
		if !inserted {
			t.Error("first insert reported as duplicate")
		}

		// Identical natural key with NULL song_id must be skipped; the UNIQUE
		// constraint alone would let it through.
		inserted, err = tx.InsertSongplay(ctx, play)
		if err != nil {
			return err
		}
		if inserted {
			t.Error("second insert not deduplicated")
		}
		return nil
	})

	if n := countRows(t, db, "songplays"); n != 1 {
		t.Errorf("songplays count = %d, want 1", n)
	}
}

func TestInsertSongplayDeduplicatesAcrossTransactions(t *testing.T) {
	db := setupTestDB(t)
	start := mustTime(t, "2018-11-21T01:20:18.796Z")

	song := "SOZCTXZ12AB0182364"
	artist := "AR5KOSW1187FB35FF4"
	play := &models.SongplayRow{
		StartTime: start, UserID: 15, Level: "paid",
		SongID: &song, ArtistID: &artist, SessionID: 818,
	}

	run := func() bool {
		var inserted bool
		inTx(t, db, func(tx *Tx) error {
			seedPlayRefs(t, tx, start, 15)
			var err error
			inserted, err = tx.InsertSongplay(context.Background(), play)
			return err
		})
		return inserted
	}

	if !run() {
		t.Error("first run should insert")
	}
	if run() {
		t.Error("rerun should deduplicate")
	}
	if n := countRows(t, db, "songplays"); n != 1 {
		t.Errorf("songplays count = %d, want 1", n)
	}
}

func TestLookupSongArtist(t *testing.T) {
	db := setupTestDB(t)

	inTx(t, db, func(tx *Tx) error {
		ctx := context.Background()
		if err := tx.UpsertArtist(ctx, testArtist()); err != nil {
			return err
		}
		return tx.UpsertSong(ctx, testSong())
	})

	tests := []struct {
		name     string
		title    string
		artist   string
		duration float64
		wantHit  bool
	}{
		{"exact match", "Der Kleine Dompfaff", "Line Renaud", 152.92036, true},
		{"wrong title", "Setanta matins", "Line Renaud", 152.92036, false},
		{"wrong artist", "Der Kleine Dompfaff", "Elena", 152.92036, false},
		{"duration off", "Der Kleine Dompfaff", "Line Renaud", 152.92, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTx(t, db, func(tx *Tx) error {
				songID, artistID, err := tx.LookupSongArtist(
					context.Background(), tt.title, tt.artist, tt.duration)
				if err != nil {
					return err
				}
				if tt.wantHit {
					if songID == nil || artistID == nil {
						t.Fatal("expected a match, got nils")
					}
					if *songID != "SOUPIRU12A6D4FA1E1" {
						t.Errorf("songID = %q", *songID)
					}
					if *artistID != "ARJIE2Y1187B994AB7" {
						t.Errorf("artistID = %q", *artistID)
					}
				} else if songID != nil || artistID != nil {
					t.Error("expected a miss, got a match")
				}
				return nil
			})
		})
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)

	boom := errors.New("load failed")
	err := db.RunInTx(context.Background(), func(tx *Tx) error {
		if err := tx.UpsertSong(context.Background(), testSong()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx error = %v, want %v", err, boom)
	}

	if n := countRows(t, db, "songs"); n != 0 {
		t.Errorf("songs count after rollback = %d, want 0", n)
	}
}

func TestRunInTxDryRunRollback(t *testing.T) {
	db := setupTestDB(t)

	err := db.RunInTx(context.Background(), func(tx *Tx) error {
		if err := tx.UpsertSong(context.Background(), testSong()); err != nil {
			return err
		}
		return ErrRollback
	})
	if err != nil {
		t.Fatalf("ErrRollback should not surface: %v", err)
	}

	if n := countRows(t, db, "songs"); n != 0 {
		t.Errorf("songs count after dry run = %d, want 0", n)
	}
}

func TestRecordRun(t *testing.T) {
	db := setupTestDB(t)

	run := &models.IngestRun{
		RunID:            uuid.New(),
		StartedAt:        mustTime(t, "2018-11-01T00:00:00Z"),
		FinishedAt:       mustTime(t, "2018-11-01T00:00:07Z"),
		SongFiles:        71,
		LogFiles:         30,
		Events:           6820,
		Songplays:        6820,
		Duplicates:       0,
		ResolutionMisses: 6819,
		Status:           "committed",
	}
	inTx(t, db, func(tx *Tx) error {
		return tx.RecordRun(context.Background(), run)
	})

	var status string
	var misses int64
	err := db.Conn().QueryRow(`SELECT status, resolution_misses FROM ingest_runs WHERE run_id = ?`,
		run.RunID).Scan(&status, &misses)
	if err != nil {
		t.Fatalf("query run: %v", err)
	}
	if status != "committed" || misses != 6819 {
		t.Errorf("run row = (%q, %d), want (committed, 6819)", status, misses)
	}
}
