// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package etl

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/harmonium/internal/logging"
	"github.com/tomtom215/harmonium/internal/models"
)

// maxLogLine bounds a single activity log line. Real export lines are well
// under 4KB; 1MB leaves room for pathological user agents.
const maxLogLine = 1 << 20

// TransformLogFile reads one activity log file and produces a play candidate
// for every played-song event in it.
//
// Files are newline-delimited JSON by default; a file whose first significant
// byte is '[' is decoded as a single JSON array instead. Events whose page is
// not "NextSong" are filtered out silently; they are navigation noise, not
// plays. A NextSong event that fails to decode or validate is handled per the
// strict flag: strict mode wraps ErrMalformedRecord and aborts, otherwise the
// record is logged, counted in skipped, and dropped.
func TransformLogFile(path string, strict bool) (candidates []models.PlayCandidate, skipped int64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading %s: %w", ErrFileSystem, path, err)
	}

	events, skipped, err := decodeEvents(data, path, strict)
	if err != nil {
		return nil, skipped, err
	}

	for i := range events {
		ev := &events[i]
		if ev.Page != "NextSong" {
			continue
		}
		cand, verr := buildPlayCandidate(ev)
		if verr != nil {
			if strict {
				return nil, skipped, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, path, verr)
			}
			skipped++
			logging.Warn().
				Str("file", path).
				Err(verr).
				Msg("Skipping malformed play event")
			continue
		}
		candidates = append(candidates, *cand)
	}
	return candidates, skipped, nil
}

// decodeEvents parses the raw file bytes as either a JSON array or NDJSON.
func decodeEvents(data []byte, path string, strict bool) ([]models.LogEvent, int64, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []models.LogEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, 0, fmt.Errorf("%w: decoding %s: %w", ErrMalformedRecord, path, err)
		}
		return events, 0, nil
	}

	var (
		events  []models.LogEvent
		skipped int64
		lineNo  int
	)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), maxLogLine)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev models.LogEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			if strict {
				return nil, skipped, fmt.Errorf("%w: %s line %d: %w", ErrMalformedRecord, path, lineNo, err)
			}
			skipped++
			logging.Warn().
				Str("file", path).
				Int("line", lineNo).
				Err(err).
				Msg("Skipping undecodable log line")
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("%w: scanning %s: %w", ErrFileSystem, path, err)
	}
	return events, skipped, nil
}

// buildPlayCandidate validates a NextSong event and derives its three
// warehouse rows plus the catalog resolution keys.
func buildPlayCandidate(ev *models.LogEvent) (*models.PlayCandidate, error) {
	switch {
	case !ev.UserID.Valid:
		return nil, fmt.Errorf("missing userId")
	case ev.Timestamp <= 0:
		return nil, fmt.Errorf("invalid ts %d", ev.Timestamp)
	case ev.Song == nil:
		return nil, fmt.Errorf("missing song")
	case ev.Artist == nil:
		return nil, fmt.Errorf("missing artist")
	case ev.Length == nil:
		return nil, fmt.Errorf("missing length")
	}

	timeRow := DeriveTimeRow(ev.Timestamp)
	return &models.PlayCandidate{
		Time: timeRow,
		User: models.UserRow{
			UserID:    ev.UserID.Value,
			FirstName: stringOrEmpty(ev.FirstName),
			LastName:  stringOrEmpty(ev.LastName),
			Gender:    stringOrEmpty(ev.Gender),
			Level:     ev.Level,
		},
		Play: models.SongplayRow{
			StartTime: timeRow.StartTime,
			UserID:    ev.UserID.Value,
			Level:     ev.Level,
			SessionID: ev.SessionID,
			Location:  ev.Location,
			UserAgent: ev.UserAgent,
		},
		SongTitle:  *ev.Song,
		ArtistName: *ev.Artist,
		Duration:   *ev.Length,
	}, nil
}

// DeriveTimeRow expands a millisecond epoch timestamp into the time dimension
// row. All fields are computed in UTC: week is the ISO-8601 week number, year
// is the calendar year (which differs from the ISO year near year boundaries),
// and weekday counts Monday as 0 through Sunday as 6.
func DeriveTimeRow(tsMillis int64) models.TimeRow {
	t := time.UnixMilli(tsMillis).UTC()
	_, week := t.ISOWeek()
	return models.TimeRow{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   (int(t.Weekday()) + 6) % 7,
	}
}
