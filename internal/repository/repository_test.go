package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := common.DatabaseConfig{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "mediscan.db"),
	}
	db, err := Open(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedScan(t *testing.T, db *DB, lines ...string) *entity.Scan {
	t.Helper()
	scan := &entity.Scan{
		ID:          uuid.New(),
		Type:        constants.ScanTypeLabel,
		ContentHash: ContentHash(lines),
		LineCount:   len(lines),
		Status:      constants.ScanStatusQueued,
	}
	_, err := NewScanRepository(db, testLogger()).UpsertByHash(context.Background(), scan)
	require.NoError(t, err)
	return scan
}

func testRecord(scanID uuid.UUID, name string) entity.MedicineRecord {
	return entity.MedicineRecord{
		ID:                uuid.New(),
		ScanID:            scanID,
		Name:              name,
		OverallConfidence: 0.8,
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), common.DatabaseConfig{Driver: "mysql"}, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background(), time.Second))
	assert.Equal(t, DriverSQLite, db.Driver())
}

func TestRebind(t *testing.T) {
	sqlite := &DB{driver: DriverSQLite}
	assert.Equal(t, `SELECT ?, ?`, sqlite.rebind(`SELECT ?, ?`))

	pg := &DB{driver: DriverPostgres}
	assert.Equal(t, `SELECT $1, $2`, pg.rebind(`SELECT ?, ?`))
	assert.Equal(t, `UPDATE scans SET status = $1 WHERE id = $2`,
		pg.rebind(`UPDATE scans SET status = ? WHERE id = ?`))
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]string{"PARACETAMOL 500mg", "EXP 12/2026"})
	b := ContentHash([]string{"PARACETAMOL 500mg", "EXP 12/2026"})
	c := ContentHash([]string{"EXP 12/2026", "PARACETAMOL 500mg"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestScanUpsertByHash(t *testing.T) {
	db := openTestDB(t)
	repo := NewScanRepository(db, testLogger())
	ctx := context.Background()

	lines := []string{"PARACETAMOL 500mg", "EXP 12/2026"}
	scan := &entity.Scan{
		ID:          uuid.New(),
		Type:        constants.ScanTypeLabel,
		ContentHash: ContentHash(lines),
		LineCount:   2,
		Status:      constants.ScanStatusQueued,
	}
	stored, err := repo.UpsertByHash(ctx, scan)
	require.NoError(t, err)
	assert.Equal(t, scan.ID, stored.ID)

	dup := &entity.Scan{
		ID:          uuid.New(),
		Type:        constants.ScanTypeLabel,
		ContentHash: ContentHash(lines),
		LineCount:   2,
		Status:      constants.ScanStatusQueued,
	}
	existing, err := repo.UpsertByHash(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateScan)
	require.NotNil(t, existing)
	assert.Equal(t, scan.ID, existing.ID, "duplicate reports the original scan")

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestScanStatusAndHistory(t *testing.T) {
	db := openTestDB(t)
	repo := NewScanRepository(db, testLogger())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		scan := &entity.Scan{
			ID:          uuid.New(),
			Type:        constants.ScanTypeLabel,
			ContentHash: ContentHash([]string{fmt.Sprintf("line %d", i)}),
			LineCount:   1,
			Status:      constants.ScanStatusQueued,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		_, err := repo.UpsertByHash(ctx, scan)
		require.NoError(t, err)
		ids = append(ids, scan.ID)
	}

	require.NoError(t, repo.SetStatus(ctx, ids[0], constants.ScanStatusDone, ""))
	require.NoError(t, repo.SetStatus(ctx, ids[1], constants.ScanStatusFailed, "no usable text"))

	got, err := repo.GetScan(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "no usable text", *got.Error)

	got, err = repo.GetScan(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, constants.ScanStatusDone, got.Status)
	assert.Nil(t, got.Error)

	err = repo.SetStatus(ctx, uuid.New(), constants.ScanStatusDone, "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = repo.GetScan(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)

	history, err := repo.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ids[2], history[0].ID, "newest first")
	assert.Equal(t, ids[0], history[2].ID)

	history, err = repo.History(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestMedicineSaveAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewMedicineRepository(db, testLogger())
	ctx := context.Background()
	scan := seedScan(t, db, "PARACETAMOL 500mg", "EXP 06/2026")

	rec := entity.MedicineRecord{
		ID:              uuid.New(),
		ScanID:          scan.ID,
		Name:            "Paracetamol",
		GenericName:     "Acetaminophen",
		NameCorrected:   true,
		Category:        "Analgesic",
		ExpiryDate:      &entity.Date{Year: 2026, Month: time.June},
		ManufactureDate: &entity.Date{Year: 2024, Month: time.January, Day: 15},
		BatchNumber:     "AB1234",
		Dosage:          "500mg",
		Strength:        "500mg",
		Form:            constants.FormTablet,
		Manufacturer:    "ABC Pharma",
		Frequency:       "twice daily",
		Duration:        "for 5 days",
		Quantity:        "1 tablet",
		OverallConfidence: 0.83,
		NeedsReview:       false,
		FieldConfidence: map[constants.FieldKind]float64{
			constants.FieldName:       0.95,
			constants.FieldExpiryDate: 0.85,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Save(ctx, []entity.MedicineRecord{rec}))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.GenericName, got.GenericName)
	assert.True(t, got.NameCorrected)
	assert.Equal(t, rec.Category, got.Category)
	require.NotNil(t, got.ExpiryDate)
	assert.Equal(t, *rec.ExpiryDate, *got.ExpiryDate)
	require.NotNil(t, got.ManufactureDate)
	assert.Equal(t, *rec.ManufactureDate, *got.ManufactureDate)
	assert.Equal(t, rec.BatchNumber, got.BatchNumber)
	assert.Equal(t, rec.Form, got.Form)
	assert.Equal(t, rec.FieldConfidence, got.FieldConfidence)
	assert.Equal(t, rec.CreatedAt, got.CreatedAt)
	assert.InDelta(t, 0.83, got.OverallConfidence, 1e-9)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMedicineSaveEmptyIsNoop(t *testing.T) {
	db := openTestDB(t)
	repo := NewMedicineRepository(db, testLogger())
	require.NoError(t, repo.Save(context.Background(), nil))
}

func TestMedicineList(t *testing.T) {
	db := openTestDB(t)
	repo := NewMedicineRepository(db, testLogger())
	ctx := context.Background()
	scan := seedScan(t, db, "bulk scan")

	gofakeit.Seed(11)
	var records []entity.MedicineRecord
	for i := 0; i < 20; i++ {
		rec := testRecord(scan.ID, gofakeit.AppName())
		rec.Category = "Supplement"
		records = append(records, rec)
	}
	amox := testRecord(scan.ID, "Amoxicillin")
	amox.Category = "Antibiotic"
	amox.Form = constants.FormCapsule
	amox.NeedsReview = true
	records = append(records, amox)
	require.NoError(t, repo.Save(ctx, records))

	t.Run("needs review", func(t *testing.T) {
		review := true
		got, err := repo.List(ctx, ListFilter{NeedsReview: &review})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, amox.ID, got[0].ID)
	})

	t.Run("by form", func(t *testing.T) {
		got, err := repo.List(ctx, ListFilter{Form: constants.FormCapsule})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Amoxicillin", got[0].Name)
	})

	t.Run("by category case-insensitive", func(t *testing.T) {
		got, err := repo.List(ctx, ListFilter{Category: "antibiotic"})
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("search matches substring", func(t *testing.T) {
		got, err := repo.List(ctx, ListFilter{Search: "amox"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Amoxicillin", got[0].Name)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := repo.List(ctx, ListFilter{Limit: 5})
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("no filter returns all", func(t *testing.T) {
		got, err := repo.List(ctx, ListFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 21)
	})
}

func TestExpiryQueries(t *testing.T) {
	db := openTestDB(t)
	repo := NewMedicineRepository(db, testLogger())
	ctx := context.Background()
	scan := seedScan(t, db, "expiry scan")
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	expired := testRecord(scan.ID, "Expiril")
	expired.ExpiryDate = &entity.Date{Year: 2026, Month: time.May, Day: 1}

	soon := testRecord(scan.ID, "Soonex")
	soon.ExpiryDate = &entity.Date{Year: 2026, Month: time.June, Day: 20}

	later := testRecord(scan.ID, "Latofen")
	later.ExpiryDate = &entity.Date{Year: 2027, Month: time.June, Day: 1}

	undated := testRecord(scan.ID, "Nodate")
	undated.NeedsReview = true

	require.NoError(t, repo.Save(ctx, []entity.MedicineRecord{expired, soon, later, undated}))

	t.Run("expiring within", func(t *testing.T) {
		got, err := repo.ExpiringWithin(ctx, 30, now)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Soonex", got[0].Name)
	})

	t.Run("expired", func(t *testing.T) {
		got, err := repo.Expired(ctx, now)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Expiril", got[0].Name)
	})

	t.Run("month precision resolves to month end", func(t *testing.T) {
		monthOnly := testRecord(scan.ID, "Junefen")
		monthOnly.ExpiryDate = &entity.Date{Year: 2026, Month: time.June}
		require.NoError(t, repo.Save(ctx, []entity.MedicineRecord{monthOnly}))

		got, err := repo.ExpiringWithin(ctx, 30, now)
		require.NoError(t, err)
		names := make([]string, len(got))
		for i, r := range got {
			names[i] = r.Name
		}
		assert.Contains(t, names, "Junefen", "2026-06 resolves to June 30")
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := repo.Stats(ctx, now, 7)
		require.NoError(t, err)
		assert.Equal(t, 5, stats.TotalRecords)
		assert.Equal(t, 1, stats.NeedsReview)
		assert.Equal(t, 1, stats.Expired)
		assert.Equal(t, 1, stats.ExpiringSoon, "only Soonex inside 7 days")
	})
}

func TestMedicineDelete(t *testing.T) {
	db := openTestDB(t)
	repo := NewMedicineRepository(db, testLogger())
	ctx := context.Background()
	scan := seedScan(t, db, "delete scan")

	rec := testRecord(scan.ID, "Tempral")
	require.NoError(t, repo.Save(ctx, []entity.MedicineRecord{rec}))
	require.NoError(t, repo.Delete(ctx, rec.ID))

	_, err := repo.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, rec.ID), common.ErrNotFound)
}

func TestByScanCascade(t *testing.T) {
	db := openTestDB(t)
	medicines := NewMedicineRepository(db, testLogger())
	ctx := context.Background()
	scan := seedScan(t, db, "cascade scan")

	recs := []entity.MedicineRecord{
		testRecord(scan.ID, "Alpha"),
		testRecord(scan.ID, "Beta"),
	}
	require.NoError(t, medicines.Save(ctx, recs))

	got, err := medicines.ByScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Deleting the scan row cascades to its records.
	_, err = db.conn.ExecContext(ctx, db.rebind(`DELETE FROM scans WHERE id = ?`), scan.ID.String())
	require.NoError(t, err)
	got, err = medicines.ByScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReminderRoundtrip(t *testing.T) {
	db := openTestDB(t)
	medicines := NewMedicineRepository(db, testLogger())
	reminders := NewReminderRepository(db, testLogger())
	ctx := context.Background()
	scan := seedScan(t, db, "reminder scan")

	rec := testRecord(scan.ID, "Dosinex")
	require.NoError(t, medicines.Save(ctx, []entity.MedicineRecord{rec}))

	rem := &entity.Reminder{
		ID:       uuid.New(),
		RecordID: rec.ID,
		Times:    []string{"08:00", "20:00"},
		Active:   true,
	}
	require.NoError(t, reminders.Save(ctx, rem))

	got, err := reminders.Get(ctx, rem.ID)
	require.NoError(t, err)
	assert.Equal(t, rem.Times, got.Times)
	assert.True(t, got.Active)

	active, err := reminders.ActiveForRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)

	all, err := reminders.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, reminders.SetActive(ctx, rem.ID, false))
	active, err = reminders.ActiveForRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, reminders.SetActive(ctx, uuid.New(), true), common.ErrNotFound)
	_, err = reminders.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDoseEvents(t *testing.T) {
	db := openTestDB(t)
	medicines := NewMedicineRepository(db, testLogger())
	reminders := NewReminderRepository(db, testLogger())
	ctx := context.Background()
	scan := seedScan(t, db, "dose scan")

	rec := testRecord(scan.ID, "Dosinex")
	require.NoError(t, medicines.Save(ctx, []entity.MedicineRecord{rec}))
	rem := &entity.Reminder{ID: uuid.New(), RecordID: rec.ID, Times: []string{"08:00"}, Active: true}
	require.NoError(t, reminders.Save(ctx, rem))

	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	statuses := []constants.DoseStatus{constants.DoseTaken, constants.DoseTaken, constants.DoseMissed}
	for i, st := range statuses {
		ev := &entity.DoseEvent{
			ID:         uuid.New(),
			ReminderID: rem.ID,
			Status:     st,
			At:         base.AddDate(0, 0, i),
		}
		require.NoError(t, reminders.LogDose(ctx, ev))
	}

	t.Run("events between", func(t *testing.T) {
		events, err := reminders.EventsBetween(ctx, rem.ID, base, base.AddDate(0, 0, 1))
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, constants.DoseTaken, events[0].Status)
		assert.True(t, events[0].At.Before(events[1].At))
	})

	t.Run("events for record", func(t *testing.T) {
		events, err := reminders.EventsForRecord(ctx, rec.ID, base, base.AddDate(0, 0, 7))
		require.NoError(t, err)
		assert.Len(t, events, 3)
	})

	t.Run("history trimmed at cap", func(t *testing.T) {
		for i := 0; i < doseHistoryCap+5; i++ {
			ev := &entity.DoseEvent{
				ID:         uuid.New(),
				ReminderID: rem.ID,
				Status:     constants.DoseTaken,
				At:         base.AddDate(1, 0, 0).Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, reminders.LogDose(ctx, ev))
		}
		events, err := reminders.EventsBetween(ctx, rem.ID, base, base.AddDate(2, 0, 0))
		require.NoError(t, err)
		assert.Len(t, events, doseHistoryCap)
	})
}
