// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package models

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestOptionalIntDecoding(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValue int64
		wantValid bool
		wantErr   bool
	}{
		{"bare number", `{"userId": 26}`, 26, true, false},
		{"quoted number", `{"userId": "26"}`, 26, true, false},
		{"empty string", `{"userId": ""}`, 0, false, false},
		{"null", `{"userId": null}`, 0, false, false},
		{"garbage", `{"userId": "abc"}`, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev LogEvent
			err := json.Unmarshal([]byte(tt.input), &ev)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected decode error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.UserID.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", ev.UserID.Valid, tt.wantValid)
			}
			if ev.UserID.Value != tt.wantValue {
				t.Errorf("Value = %d, want %d", ev.UserID.Value, tt.wantValue)
			}
		})
	}
}

func TestLogEventDecoding(t *testing.T) {
	line := `{"artist":"Sydney Youngblood","auth":"Logged In","firstName":"Jacob","gender":"M",` +
		`"itemInSession":53,"lastName":"Klein","length":238.07955,"level":"paid",` +
		`"location":"Tampa-St. Petersburg-Clearwater, FL","method":"PUT","page":"NextSong",` +
		`"registration":1540558108796.0,"sessionId":954,"song":"Ain't No Sunshine","status":200,` +
		`"ts":1543449657796,"userAgent":"Mozilla/5.0","userId":"73"}`

	var ev LogEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if ev.Page != "NextSong" {
		t.Errorf("Page = %q, want NextSong", ev.Page)
	}
	if ev.UserID.Value != 73 || !ev.UserID.Valid {
		t.Errorf("UserID = %+v, want 73/valid", ev.UserID)
	}
	if ev.Length == nil || *ev.Length != 238.07955 {
		t.Errorf("Length = %v, want 238.07955", ev.Length)
	}
	if ev.Timestamp != 1543449657796 {
		t.Errorf("Timestamp = %d, want 1543449657796", ev.Timestamp)
	}
}

func TestSongRecordDecodingWithNulls(t *testing.T) {
	data := `{"num_songs":1,"artist_id":"ARD7TVE1187B99BFB1","artist_latitude":null,` +
		`"artist_longitude":null,"artist_location":"California - LA","artist_name":"Casual",` +
		`"song_id":"SOMZWCG12A8C13C480","title":"I Didn't Mean To","duration":218.93179,"year":0}`

	var rec SongRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if rec.SongID == nil || *rec.SongID != "SOMZWCG12A8C13C480" {
		t.Errorf("SongID = %v, want SOMZWCG12A8C13C480", rec.SongID)
	}
	if rec.ArtistLatitude != nil {
		t.Errorf("ArtistLatitude = %v, want nil", rec.ArtistLatitude)
	}
	if rec.Year == nil || *rec.Year != 0 {
		t.Errorf("Year = %v, want 0", rec.Year)
	}
}
