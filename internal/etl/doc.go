// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

// Package etl implements the batch load pipeline: discover JSON source files,
// transform song metadata and activity log events into warehouse rows, and
// load them through a single database transaction.
//
// The pipeline runs as a one-shot invocation. It is safe to rerun over
// overlapping input: dimension upserts and natural-key fact deduplication in
// the store make the load idempotent, so a rerun inserts only what a previous
// run has not.
//
// Phases run strictly in order: song files first, then log files (reference
// resolution reads the song catalog loaded in the same transaction), then the
// sentinel normalization post-pass. Any failure rolls the whole run back.
package etl
