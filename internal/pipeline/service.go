// Package pipeline coordinates scan processing: dedup, extraction, and
// persistence. The extract package stays pure; identity, clock, and
// storage live here.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/extract"
	"github.com/mediscan/mediscan/internal/repository"
)

// Service runs scans through the extractor and persists the outcome.
type Service struct {
	extractor *extract.Extractor
	scans     repository.ScanRepository
	medicines repository.MedicineRepository
	logger    *slog.Logger
}

func NewService(extractor *extract.Extractor, scans repository.ScanRepository, medicines repository.MedicineRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{extractor: extractor, scans: scans, medicines: medicines, logger: logger}
}

// ProcessScan ingests one scan end to end: canonicalize the type,
// dedup by content hash, extract, assign record identity, persist, and
// mark the scan DONE or FAILED. Duplicate content surfaces as an error
// wrapping common.ErrDuplicateScan with the original scan preserved.
func (s *Service) ProcessScan(ctx context.Context, raw entity.RawScan) (*entity.ScanReport, error) {
	started := time.Now()

	st, ok := constants.CanonicalizeScanType(string(raw.Type))
	if !ok {
		return nil, common.NewAppError("INVALID_SCAN_TYPE",
			fmt.Sprintf("unsupported scan type %q", raw.Type), common.ErrInvalidScanType)
	}
	raw.Type = st

	if !hasText(raw.Lines) {
		return nil, common.NewAppError("EMPTY_SCAN", "scan has no usable text", common.ErrEmptyScan)
	}
	if raw.ID == uuid.Nil {
		raw.ID = uuid.New()
	}

	scan := &entity.Scan{
		ID:          raw.ID,
		Type:        st,
		ContentHash: repository.ContentHash(raw.Lines),
		LineCount:   len(raw.Lines),
		Status:      constants.ScanStatusRunning,
		CreatedAt:   started.UTC(),
	}
	if _, err := s.scans.UpsertByHash(ctx, scan); err != nil {
		return nil, err
	}

	res, err := s.extractor.Extract(raw)
	if err != nil {
		if stErr := s.scans.SetStatus(ctx, scan.ID, constants.ScanStatusFailed, err.Error()); stErr != nil {
			s.logger.Error("pipeline.status.failed", "scan_id", scan.ID, "error", stErr)
		}
		s.logger.Error("pipeline.extract.failed",
			"scan_id", scan.ID, "type", st,
			"request_id", common.RequestIDFromContext(ctx), "error", err)
		return nil, err
	}

	now := time.Now().UTC()
	for i := range res.Records {
		res.Records[i].ID = uuid.New()
		res.Records[i].ScanID = scan.ID
		res.Records[i].CreatedAt = now
	}
	if err := s.medicines.Save(ctx, res.Records); err != nil {
		if stErr := s.scans.SetStatus(ctx, scan.ID, constants.ScanStatusFailed, "persist failed"); stErr != nil {
			s.logger.Error("pipeline.status.failed", "scan_id", scan.ID, "error", stErr)
		}
		return nil, err
	}
	if err := s.scans.SetStatus(ctx, scan.ID, constants.ScanStatusDone, ""); err != nil {
		return nil, err
	}
	scan.Status = constants.ScanStatusDone

	report := &entity.ScanReport{
		Scan:       *scan,
		Records:    res.Records,
		Dropped:    res.Dropped,
		DurationMS: time.Since(started).Milliseconds(),
	}
	s.logger.Info("pipeline.scan.done",
		"scan_id", scan.ID,
		"type", st,
		"records", len(res.Records),
		"dropped", res.Dropped,
		"duration_ms", report.DurationMS,
		"request_id", common.RequestIDFromContext(ctx),
	)
	return report, nil
}

func hasText(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}
