package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
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

// historyDefaultLimit caps GetHistory when the caller passes no limit.
const historyDefaultLimit = 500

// ContentHash fingerprints scan text for duplicate detection. Lines are
// joined verbatim so reordered or edited scans hash differently.
func ContentHash(lines []string) string {
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

type ScanRepository interface {
	// UpsertByHash inserts the scan unless its content hash already
	// exists; on a duplicate it returns the stored scan alongside an
	// error wrapping common.ErrDuplicateScan.
	UpsertByHash(ctx context.Context, scan *entity.Scan) (*entity.Scan, error)
	SetStatus(ctx context.Context, id uuid.UUID, status constants.ScanStatus, errMsg string) error
	GetScan(ctx context.Context, id uuid.UUID) (*entity.Scan, error)
	History(ctx context.Context, limit int) ([]*entity.Scan, error)
}

type scanRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewScanRepository(db *DB, logger *slog.Logger) ScanRepository {
	return &scanRepository{db: db, logger: logger}
}

func (r *scanRepository) UpsertByHash(ctx context.Context, scan *entity.Scan) (*entity.Scan, error) {
	existing, err := r.byHash(ctx, scan.ContentHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking scan hash: %w", err)
	}
	if existing != nil {
		r.logger.Info("duplicate scan content", "scan_id", existing.ID, "hash", scan.ContentHash)
		return existing, common.NewConflictError(
			fmt.Sprintf("scan content already ingested as %s", existing.ID), common.ErrDuplicateScan)
	}

	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	_, err = r.db.conn.ExecContext(ctx, r.db.rebind(
		`INSERT INTO scans (id, type, content_hash, line_count, status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		scan.ID.String(), string(scan.Type), scan.ContentHash, scan.LineCount,
		string(scan.Status), nullStr(scan.Error), scan.CreatedAt.Format(time.RFC3339))
	if err != nil {
		r.logger.Error("failed to insert scan", "scan_id", scan.ID, "error", err)
		return nil, fmt.Errorf("inserting scan: %w", err)
	}
	return scan, nil
}

func (r *scanRepository) SetStatus(ctx context.Context, id uuid.UUID, status constants.ScanStatus, errMsg string) error {
	var errCol interface{}
	if errMsg != "" {
		errCol = errMsg
	}
	res, err := r.db.conn.ExecContext(ctx, r.db.rebind(
		`UPDATE scans SET status = ?, error = ? WHERE id = ?`),
		string(status), errCol, id.String())
	if err != nil {
		return fmt.Errorf("updating scan status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewNotFoundError(fmt.Sprintf("scan %s not found", id))
	}
	return nil
}

func (r *scanRepository) GetScan(ctx context.Context, id uuid.UUID) (*entity.Scan, error) {
	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, type, content_hash, line_count, status, error, created_at
		 FROM scans WHERE id = ?`), id.String())
	scan, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError(fmt.Sprintf("scan %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading scan: %w", err)
	}
	return scan, nil
}

func (r *scanRepository) History(ctx context.Context, limit int) ([]*entity.Scan, error) {
	if limit <= 0 || limit > historyDefaultLimit {
		limit = historyDefaultLimit
	}
	rows, err := r.db.conn.QueryContext(ctx, r.db.rebind(
		`SELECT id, type, content_hash, line_count, status, error, created_at
		 FROM scans ORDER BY created_at DESC, id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	defer rows.Close()

	var scans []*entity.Scan
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	return scans, rows.Err()
}

func (r *scanRepository) byHash(ctx context.Context, hash string) (*entity.Scan, error) {
	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, type, content_hash, line_count, status, error, created_at
		 FROM scans WHERE content_hash = ?`), hash)
	return scanRow(row)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (*entity.Scan, error) {
	var (
		s         entity.Scan
		id        string
		typ       string
		status    string
		errMsg    sql.NullString
		createdAt string
	)
	if err := row.Scan(&id, &typ, &s.ContentHash, &s.LineCount, &status, &errMsg, &createdAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing scan id %q: %w", id, err)
	}
	s.ID = parsed
	s.Type = constants.ScanType(typ)
	s.Status = constants.ScanStatus(status)
	if errMsg.Valid {
		s.Error = &errMsg.String
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing scan created_at %q: %w", createdAt, err)
	}
	return &s, nil
}

func nullStr(p *string) interface{} {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}
