// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package models

import (
	"bytes"
	"fmt"
	"strconv"
)

// SongRecord is the raw shape of one song metadata file. All fields are
// pointers because real exports omit or null out individual attributes;
// the transformer decides which absences are fatal.
type SongRecord struct {
	NumSongs        int      `json:"num_songs"`
	SongID          *string  `json:"song_id"`
	Title           *string  `json:"title"`
	ArtistID        *string  `json:"artist_id"`
	Year            *int     `json:"year"`
	Duration        *float64 `json:"duration"`
	ArtistName      *string  `json:"artist_name"`
	ArtistLocation  *string  `json:"artist_location"`
	ArtistLatitude  *float64 `json:"artist_latitude"`
	ArtistLongitude *float64 `json:"artist_longitude"`
}

// LogEvent is the raw shape of one activity log record.
//
// Fields that are blank for anonymous sessions (userId, names) use tolerant
// types so that a log file containing a mix of authenticated and anonymous
// events still decodes; the event transformer filters and validates after
// decoding.
type LogEvent struct {
	Artist        *string     `json:"artist"`
	FirstName     *string     `json:"firstName"`
	Gender        *string     `json:"gender"`
	ItemInSession int         `json:"itemInSession"`
	LastName      *string     `json:"lastName"`
	Length        *float64    `json:"length"`
	Level         string      `json:"level"`
	Location      string      `json:"location"`
	Page          string      `json:"page"`
	SessionID     int         `json:"sessionId"`
	Song          *string     `json:"song"`
	Timestamp     int64       `json:"ts"`
	UserAgent     string      `json:"userAgent"`
	UserID        OptionalInt `json:"userId"`
}

// OptionalInt decodes a JSON value that may be a number, a quoted number, an
// empty string, or null. Activity log exports are inconsistent here: userId is
// a quoted number for authenticated events and "" for anonymous ones.
type OptionalInt struct {
	Value int64
	Valid bool
}

// UnmarshalJSON implements tolerant integer decoding.
func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if s == "null" {
		o.Valid = false
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		o.Valid = false
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	o.Value = v
	o.Valid = true
	return nil
}

// MarshalJSON round-trips the value; absent encodes as null.
func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(o.Value, 10)), nil
}
