// Package ingest reads documents off the filesystem for submission to the
// pipeline.
package ingest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/docuscan/extraction-pipeline/internal/entity"
)

// DirStats aggregates one directory walk.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// FileResult records one file that could not be read.
type FileResult struct {
	Path string
	Err  string
}

var extMediaTypes = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"txt":  "text/plain",
}

// CollectDirectory walks root, filters by includeExts (or the supported
// defaults), skips hidden entries if requested, and loads each matched file
// into a Document. Unreadable files are reported per-file; the walk
// continues.
func CollectDirectory(root string, includeExts []string, skipHidden bool) ([]entity.Document, []FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	exts := map[string]struct{}{}
	if len(includeExts) == 0 {
		for e := range extMediaTypes {
			exts[e] = struct{}{}
		}
	} else {
		for _, e := range includeExts {
			e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
			if e != "" {
				exts[e] = struct{}{}
			}
		}
	}

	var docs []entity.Document
	var failures []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			failures = append(failures, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		mediaType, known := extMediaTypes[ext]
		if _, ok := exts[ext]; !ok || !known {
			return nil
		}
		stats.Matched++

		data, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		docs = append(docs, entity.Document{
			Bytes:     data,
			MediaType: mediaType,
			Filename:  filepath.Base(path),
		})
		return nil
	})
	if err != nil {
		return nil, nil, stats, err
	}
	return docs, failures, stats, nil
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
