package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/export"
	"github.com/mediscan/mediscan/internal/extract"
	"github.com/mediscan/mediscan/internal/ingest"
	"github.com/mediscan/mediscan/internal/pipeline"
	"github.com/mediscan/mediscan/internal/reference"
	"github.com/mediscan/mediscan/internal/repository"
)

func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory of OCR text dumps to process (required)")
		scanType = flag.String("type", "label", "default scan type for files without a type header")
		out      = flag.String("out", "", "write all extracted records to this XLSX file")
		dbPath   = flag.String("db", "", "sqlite database path; empty uses a throwaway database")
		refPath  = flag.String("reference", "", "reference set JSON path")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: -dir is required\n")
		os.Exit(1)
	}
	defType, ok := constants.CanonicalizeScanType(*scanType)
	if !ok {
		printError("Error: unknown -type %q (label, prescription, handwritten, ...)\n", *scanType)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// Without -db the results only live for this run, which still
	// exercises dedup and feeds the export.
	path := *dbPath
	if path == "" {
		tmpDir, err := os.MkdirTemp("", "mediscan-batch-*")
		if err != nil {
			logger.Error("creating throwaway database dir", "error", err)
			os.Exit(1)
		}
		defer func() { _ = os.RemoveAll(tmpDir) }()
		path = filepath.Join(tmpDir, "batch.db")
	}

	db, err := repository.Open(ctx, common.DatabaseConfig{
		Driver: repository.DriverSQLite,
		Path:   path,
	}, logger)
	if err != nil {
		logger.Error("opening database", "path", path, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	var refSet *reference.Set
	if *refPath != "" {
		refSet, err = reference.Load(*refPath)
		if err != nil {
			logger.Error("loading reference set", "path", *refPath, "error", err)
			os.Exit(1)
		}
	}

	scans := repository.NewScanRepository(db, logger)
	medicines := repository.NewMedicineRepository(db, logger)
	svc := pipeline.NewService(extract.New(extract.DefaultConfig(), refSet), scans, medicines, logger)
	ingestor := ingest.NewFSIngestor(svc, defType, logger)

	results, stats, err := ingestor.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("ingesting directory", "dir", *dir, "error", err)
		os.Exit(1)
	}

	fmt.Printf("%-40s %-8s %8s %8s %8s\n", "FILE", "STATUS", "RECORDS", "REVIEW", "DROPPED")
	for _, r := range results {
		status := "ok"
		switch {
		case r.Failed():
			status = "FAILED"
		case r.Duplicated:
			status = "dup"
		}
		name := filepath.Base(r.SourcePath)
		fmt.Printf("%-40s %-8s %8d %8d %8d\n", name, status, r.Records, r.NeedsReview, r.Dropped)
		if r.Failed() {
			fmt.Printf("  %s\n", r.Err)
		}
	}
	fmt.Printf("\nmatched %d, succeeded %d, duplicated %d, failed %d\n",
		stats.Matched, stats.Succeeded, stats.Duplicated, stats.Failed)

	if *out != "" {
		exporter := export.NewService(medicines, 7, logger)
		buf, err := exporter.ExportXLSX(ctx)
		if err != nil {
			logger.Error("exporting records", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
			logger.Error("writing output file", "path", *out, "error", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *out)
	}

	if stats.Failed > 0 {
		os.Exit(1)
	}
}
