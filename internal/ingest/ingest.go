// Package ingest reads OCR text dumps from the filesystem and feeds
// them through the scan pipeline. One file is one scan.
package ingest

import (
	"context"
)

// FileResult is the per-file ingest outcome.
type FileResult struct {
	SourcePath  string
	ScanID      string
	Records     int
	Dropped     int
	NeedsReview int
	Duplicated  bool
	Err         string
}

// Failed reports whether ingesting the file errored.
func (r FileResult) Failed() bool {
	return r.Err != ""
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned    uint32
	Matched    uint32
	Succeeded  uint32
	Duplicated uint32
	Failed     uint32
}

// Ingestor is the behavior the batch command depends on.
type Ingestor interface {
	// IngestPath processes a single scan file.
	IngestPath(ctx context.Context, path string) (FileResult, error)
	// IngestDirectory processes all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]FileResult, DirStats, error)
}
