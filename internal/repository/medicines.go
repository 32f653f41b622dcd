package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
)

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	NeedsReview *bool
	Form        constants.DoseForm
	Category    string
	Search      string // matches name or generic name, case-insensitive
	Limit       int
}

const listDefaultLimit = 500

type MedicineRepository interface {
	Save(ctx context.Context, records []entity.MedicineRecord) error
	Get(ctx context.Context, id uuid.UUID) (*entity.MedicineRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.MedicineRecord, error)
	ByScan(ctx context.Context, scanID uuid.UUID) ([]*entity.MedicineRecord, error)
	ExpiringWithin(ctx context.Context, days int, now time.Time) ([]*entity.MedicineRecord, error)
	Expired(ctx context.Context, now time.Time) ([]*entity.MedicineRecord, error)
	Stats(ctx context.Context, now time.Time, soonDays int) (*entity.StoreStats, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type medicineRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewMedicineRepository(db *DB, logger *slog.Logger) MedicineRepository {
	return &medicineRepository{db: db, logger: logger}
}

const recordColumns = `id, scan_id, name, generic_name, name_corrected, category,
	expiry_date, manufacture_date, batch_number, dosage, strength, form,
	manufacturer, frequency, duration, quantity, overall_confidence,
	needs_review, field_confidence, created_at`

func (r *medicineRepository) Save(ctx context.Context, records []entity.MedicineRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.db.rebind(
		`INSERT INTO records (id, scan_id, name, generic_name, name_corrected, category,
			expiry_date, expiry_time, manufacture_date, batch_number, dosage, strength,
			form, manufacturer, frequency, duration, quantity, overall_confidence,
			needs_review, field_confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		fieldConf, err := marshalFieldConfidence(rec.FieldConfidence)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			rec.ID.String(), rec.ScanID.String(), rec.Name, rec.GenericName,
			boolToInt(rec.NameCorrected), rec.Category,
			nullDate(rec.ExpiryDate), nullDateTime(rec.ExpiryDate), nullDate(rec.ManufactureDate),
			rec.BatchNumber, rec.Dosage, rec.Strength, string(rec.Form),
			rec.Manufacturer, rec.Frequency, rec.Duration, rec.Quantity,
			rec.OverallConfidence, boolToInt(rec.NeedsReview), fieldConf,
			rec.CreatedAt.UTC().Format(time.RFC3339))
		if err != nil {
			r.logger.Error("failed to insert record", "record_id", rec.ID, "error", err)
			return fmt.Errorf("inserting record %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
	}
	r.logger.Debug("records saved", "count", len(records))
	return nil
}

func (r *medicineRepository) Get(ctx context.Context, id uuid.UUID) (*entity.MedicineRecord, error) {
	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+recordColumns+` FROM records WHERE id = ?`), id.String())
	rec, err := scanRecordRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError(fmt.Sprintf("record %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading record: %w", err)
	}
	return rec, nil
}

func (r *medicineRepository) List(ctx context.Context, filter ListFilter) ([]*entity.MedicineRecord, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.NeedsReview != nil {
		conds = append(conds, `needs_review = ?`)
		args = append(args, boolToInt(*filter.NeedsReview))
	}
	if filter.Form != "" {
		conds = append(conds, `form = ?`)
		args = append(args, string(filter.Form))
	}
	if filter.Category != "" {
		conds = append(conds, `LOWER(category) = LOWER(?)`)
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		conds = append(conds, `(LOWER(name) LIKE LOWER(?) OR LOWER(generic_name) LIKE LOWER(?))`)
		pat := "%" + filter.Search + "%"
		args = append(args, pat, pat)
	}

	query := `SELECT ` + recordColumns + ` FROM records`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	limit := filter.Limit
	if limit <= 0 || limit > listDefaultLimit {
		limit = listDefaultLimit
	}
	args = append(args, limit)

	return r.queryRecords(ctx, query, args...)
}

func (r *medicineRepository) ByScan(ctx context.Context, scanID uuid.UUID) ([]*entity.MedicineRecord, error) {
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records WHERE scan_id = ? ORDER BY created_at, id`,
		scanID.String())
}

func (r *medicineRepository) ExpiringWithin(ctx context.Context, days int, now time.Time) ([]*entity.MedicineRecord, error) {
	from := now.UTC().Format(time.RFC3339)
	to := now.UTC().AddDate(0, 0, days).Format(time.RFC3339)
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE expiry_time IS NOT NULL AND expiry_time >= ? AND expiry_time <= ?
		 ORDER BY expiry_time, id`,
		from, to)
}

func (r *medicineRepository) Expired(ctx context.Context, now time.Time) ([]*entity.MedicineRecord, error) {
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE expiry_time IS NOT NULL AND expiry_time < ?
		 ORDER BY expiry_time, id`,
		now.UTC().Format(time.RFC3339))
}

func (r *medicineRepository) Stats(ctx context.Context, now time.Time, soonDays int) (*entity.StoreStats, error) {
	stats := &entity.StoreStats{
		ByForm:     map[string]int{},
		ByCategory: map[string]int{},
	}
	nowStr := now.UTC().Format(time.RFC3339)
	soonStr := now.UTC().AddDate(0, 0, soonDays).Format(time.RFC3339)

	counts := []struct {
		dest  *int
		query string
		args  []interface{}
	}{
		{&stats.TotalRecords, `SELECT COUNT(*) FROM records`, nil},
		{&stats.NeedsReview, `SELECT COUNT(*) FROM records WHERE needs_review = 1`, nil},
		{&stats.Expired,
			`SELECT COUNT(*) FROM records WHERE expiry_time IS NOT NULL AND expiry_time < ?`,
			[]interface{}{nowStr}},
		{&stats.ExpiringSoon,
			`SELECT COUNT(*) FROM records WHERE expiry_time IS NOT NULL AND expiry_time >= ? AND expiry_time <= ?`,
			[]interface{}{nowStr, soonStr}},
	}
	for _, c := range counts {
		if err := r.db.conn.QueryRowContext(ctx, r.db.rebind(c.query), c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting records: %w", err)
		}
	}

	groups := []struct {
		dest  map[string]int
		query string
	}{
		{stats.ByForm, `SELECT form, COUNT(*) FROM records WHERE form != '' GROUP BY form`},
		{stats.ByCategory, `SELECT category, COUNT(*) FROM records WHERE category != '' GROUP BY category`},
	}
	for _, g := range groups {
		rows, err := r.db.conn.QueryContext(ctx, g.query)
		if err != nil {
			return nil, fmt.Errorf("grouping records: %w", err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning group row: %w", err)
			}
			g.dest[key] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return stats, nil
}

func (r *medicineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.conn.ExecContext(ctx, r.db.rebind(`DELETE FROM records WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewNotFoundError(fmt.Sprintf("record %s not found", id))
	}
	r.logger.Info("record deleted", "record_id", id)
	return nil
}

func (r *medicineRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*entity.MedicineRecord, error) {
	rows, err := r.db.conn.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []*entity.MedicineRecord
	for rows.Next() {
		rec, err := scanRecordRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecordRow(row rowScanner) (*entity.MedicineRecord, error) {
	var (
		rec             entity.MedicineRecord
		id, scanID      string
		nameCorrected   int64
		needsReview     int64
		expiryDate      sql.NullString
		manufactureDate sql.NullString
		form            string
		fieldConf       sql.NullString
		createdAt       string
	)
	if err := row.Scan(&id, &scanID, &rec.Name, &rec.GenericName, &nameCorrected,
		&rec.Category, &expiryDate, &manufactureDate, &rec.BatchNumber, &rec.Dosage,
		&rec.Strength, &form, &rec.Manufacturer, &rec.Frequency, &rec.Duration,
		&rec.Quantity, &rec.OverallConfidence, &needsReview, &fieldConf, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing record id %q: %w", id, err)
	}
	if rec.ScanID, err = uuid.Parse(scanID); err != nil {
		return nil, fmt.Errorf("parsing record scan_id %q: %w", scanID, err)
	}
	rec.NameCorrected = nameCorrected != 0
	rec.NeedsReview = needsReview != 0
	rec.Form = constants.DoseForm(form)
	if expiryDate.Valid {
		d, err := entity.ParseISODate(expiryDate.String)
		if err != nil {
			return nil, fmt.Errorf("parsing expiry_date %q: %w", expiryDate.String, err)
		}
		rec.ExpiryDate = &d
	}
	if manufactureDate.Valid {
		d, err := entity.ParseISODate(manufactureDate.String)
		if err != nil {
			return nil, fmt.Errorf("parsing manufacture_date %q: %w", manufactureDate.String, err)
		}
		rec.ManufactureDate = &d
	}
	if fieldConf.Valid && fieldConf.String != "" {
		if err := json.Unmarshal([]byte(fieldConf.String), &rec.FieldConfidence); err != nil {
			return nil, fmt.Errorf("parsing field_confidence: %w", err)
		}
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing record created_at %q: %w", createdAt, err)
	}
	return &rec, nil
}

func marshalFieldConfidence(m map[constants.FieldKind]float64) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding field_confidence: %w", err)
	}
	return string(b), nil
}

func nullDate(d *entity.Date) interface{} {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

// nullDateTime stores the sortable instant for an expiry date so range
// queries can compare RFC 3339 strings directly.
func nullDateTime(d *entity.Date) interface{} {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time().UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
