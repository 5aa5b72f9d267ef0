// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package etl

import (
	"fmt"
	"math"
	"os"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/harmonium/internal/models"
)

// TransformSongFile reads one song metadata file and produces the song and
// artist dimension rows it carries. Each file holds exactly one record.
//
// Identity and catalog fields (song_id, title, artist_id, artist_name, year,
// duration) are required; a record missing any of them wraps
// ErrMalformedRecord. Artist attributes (location, coordinates) are optional
// and coerced to canonical string form: absent or NaN numerics become the
// token "NaN", absent strings become "". The store maps those back to NULLs.
func TransformSongFile(path string) (*models.SongRow, *models.ArtistRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading %s: %w", ErrFileSystem, path, err)
	}

	var rec models.SongRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("%w: decoding %s: %w", ErrMalformedRecord, path, err)
	}

	if err := validateSongRecord(&rec); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, path, err)
	}

	song := &models.SongRow{
		SongID:   *rec.SongID,
		Title:    *rec.Title,
		ArtistID: *rec.ArtistID,
		Year:     strconv.Itoa(*rec.Year),
		Duration: strconv.FormatFloat(*rec.Duration, 'f', -1, 64),
	}
	artist := &models.ArtistRow{
		ArtistID:  *rec.ArtistID,
		Name:      *rec.ArtistName,
		Location:  stringOrEmpty(rec.ArtistLocation),
		Latitude:  floatOrNaN(rec.ArtistLatitude),
		Longitude: floatOrNaN(rec.ArtistLongitude),
	}
	return song, artist, nil
}

func validateSongRecord(rec *models.SongRecord) error {
	switch {
	case rec.SongID == nil || *rec.SongID == "":
		return fmt.Errorf("missing song_id")
	case rec.Title == nil || *rec.Title == "":
		return fmt.Errorf("missing title")
	case rec.ArtistID == nil || *rec.ArtistID == "":
		return fmt.Errorf("missing artist_id")
	case rec.ArtistName == nil || *rec.ArtistName == "":
		return fmt.Errorf("missing artist_name")
	case rec.Year == nil:
		return fmt.Errorf("missing year")
	case *rec.Year < 0:
		return fmt.Errorf("negative year %d", *rec.Year)
	case rec.Duration == nil:
		return fmt.Errorf("missing duration")
	case !(*rec.Duration > 0):
		return fmt.Errorf("non-positive duration %v", *rec.Duration)
	}
	return nil
}

// stringOrEmpty coerces an optional string to canonical form.
func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// floatOrNaN coerces an optional float to canonical string form. Absent and
// NaN both map to the token "NaN", matching how the source exports serialize
// missing coordinates.
func floatOrNaN(f *float64) string {
	if f == nil || math.IsNaN(*f) {
		return "NaN"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
