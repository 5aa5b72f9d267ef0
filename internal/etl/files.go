// Harmonium - Music Streaming Analytics Warehouse Loader
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonium

package etl

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// ListJSONFiles walks root recursively and returns the absolute paths of all
// regular files with a .json extension, in deterministic lexical order.
//
// An unreadable or missing root wraps ErrFileSystem. A root containing no
// JSON files returns an empty slice and no error: an empty partition is a
// legitimate (if suspicious) input, and the caller decides whether to warn.
func ListJSONFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walking %s: %w", ErrFileSystem, path, err)
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("%w: resolving %s: %w", ErrFileSystem, path, err)
		}
		files = append(files, abs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
