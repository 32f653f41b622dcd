package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/pipeline"
)

// FSIngestor reads scan files from the local filesystem. Files may open
// with a "# type: label" header to override the default scan type; the
// header line is not part of the scan text.
type FSIngestor struct {
	svc         *pipeline.Service
	logger      *slog.Logger
	defaultType constants.ScanType
}

func NewFSIngestor(svc *pipeline.Service, defaultType constants.ScanType, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{svc: svc, logger: logger, defaultType: defaultType}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (FileResult, error) {
	out := FileResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("resolving path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if !AllowedExt(ext) {
		return out, fmt.Errorf("unsupported extension %q", ext)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("reading scan file: %w", err)
	}

	lines := splitLines(string(data))
	scanType, lines := consumeTypeHeader(lines, i.defaultType)

	report, err := i.svc.ProcessScan(ctx, entity.RawScan{
		Type:  scanType,
		Lines: lines,
	})
	if errors.Is(err, common.ErrDuplicateScan) {
		i.logger.Info("ingest skipped duplicate", "path", abs)
		out.Duplicated = true
		return out, nil
	}
	if err != nil {
		return out, err
	}

	out.ScanID = report.Scan.ID.String()
	out.Records = len(report.Records)
	out.Dropped = report.Dropped
	for _, rec := range report.Records {
		if rec.NeedsReview {
			out.NeedsReview++
		}
	}
	return out, nil
}

// IngestDirectory walks root and ingests every allowed file. Per-file
// failures are recorded, not fatal.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(constants.NormalizeExt(filepath.Ext(path))) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			i.logger.Warn("ingest failed", "path", path, "error", err)
			return nil
		}

		results = append(results, r)
		if r.Duplicated {
			stats.Duplicated++
		} else {
			stats.Succeeded++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walking %s: %w", root, err)
	}
	return results, stats, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
