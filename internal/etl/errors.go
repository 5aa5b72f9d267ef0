// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package etl

import "errors"

var (
	// ErrFileSystem indicates a source directory or file could not be read.
	ErrFileSystem = errors.New("filesystem error")

	// ErrMalformedRecord indicates a source record that could not be decoded
	// or failed validation. Surfaces only when skip_malformed is disabled;
	// otherwise malformed records are logged, counted, and skipped.
	ErrMalformedRecord = errors.New("malformed record")
)
