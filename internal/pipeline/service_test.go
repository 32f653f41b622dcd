package pipeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/extract"
	"github.com/mediscan/mediscan/internal/repository"
)

type testEnv struct {
	svc       *Service
	scans     repository.ScanRepository
	medicines repository.MedicineRepository
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(context.Background(), common.DatabaseConfig{
		Driver: repository.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "pipeline.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	scans := repository.NewScanRepository(db, logger)
	medicines := repository.NewMedicineRepository(db, logger)
	svc := NewService(extract.New(extract.Config{}, nil), scans, medicines, logger)
	return testEnv{svc: svc, scans: scans, medicines: medicines}
}

func TestProcessScanLabel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	raw := entity.RawScan{
		Type: constants.ScanTypeLabel,
		Lines: []string{
			"PARACETAMOL 500mg",
			"EXP 12/2026",
			"B.No: AB1234",
			"Mfr: ABC Pharma",
		},
	}
	report, err := env.svc.ProcessScan(ctx, raw)
	require.NoError(t, err)

	assert.Equal(t, constants.ScanStatusDone, report.Scan.Status)
	assert.Equal(t, 4, report.Scan.LineCount)
	assert.NotEmpty(t, report.Scan.ContentHash)
	require.Len(t, report.Records, 1)

	rec := report.Records[0]
	assert.NotEqual(t, uuid.Nil, rec.ID, "pipeline assigns record identity")
	assert.Equal(t, report.Scan.ID, rec.ScanID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, "Paracetamol", rec.Name)
	assert.GreaterOrEqual(t, report.DurationMS, int64(0))

	stored, err := env.scans.GetScan(ctx, report.Scan.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusDone, stored.Status)

	persisted, err := env.medicines.ByScan(ctx, report.Scan.ID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, rec.ID, persisted[0].ID)
	assert.Equal(t, rec.Name, persisted[0].Name)
}

func TestProcessScanDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	raw := entity.RawScan{
		Type:  constants.ScanTypeLabel,
		Lines: []string{"PARACETAMOL 500mg", "EXP 12/2026"},
	}
	first, err := env.svc.ProcessScan(ctx, raw)
	require.NoError(t, err)

	_, err = env.svc.ProcessScan(ctx, entity.RawScan{
		Type:  constants.ScanTypeLabel,
		Lines: []string{"PARACETAMOL 500mg", "EXP 12/2026"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateScan)

	// Only the first scan and its records exist.
	history, err := env.scans.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.Scan.ID, history[0].ID)
}

func TestProcessScanInvalidType(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ProcessScan(ctx, entity.RawScan{
		Type:  "RECEIPT",
		Lines: []string{"PARACETAMOL 500mg"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidScanType)

	history, err := env.scans.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history, "invalid scans are rejected before persistence")
}

func TestProcessScanEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.ProcessScan(ctx, entity.RawScan{
		Type:  constants.ScanTypeLabel,
		Lines: []string{"   ", ""},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrEmptyScan)

	history, err := env.scans.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProcessScanExtractionFailureMarksScan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A prescription with no extractable fields fails after the scan row
	// is persisted, so the row records the failure.
	_, err := env.svc.ProcessScan(ctx, entity.RawScan{
		Type:  constants.ScanTypePrescriptionPrinted,
		Lines: []string{"a b c"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNoRequiredFields)

	history, err := env.scans.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, constants.ScanStatusFailed, history[0].Status)
	require.NotNil(t, history[0].Error)
	assert.Contains(t, *history[0].Error, "no record")
}

func TestProcessScanKeepsCallerID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id := uuid.New()
	report, err := env.svc.ProcessScan(ctx, entity.RawScan{
		ID:    id,
		Type:  constants.ScanTypeLabel,
		Lines: []string{"IBUPROFEN 200mg", "EXP 01/2027"},
	})
	require.NoError(t, err)
	assert.Equal(t, id, report.Scan.ID)
}
