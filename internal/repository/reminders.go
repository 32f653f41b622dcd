package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
)

// doseHistoryCap bounds stored events per reminder; the oldest are
// trimmed after each insert.
const doseHistoryCap = 1000

type ReminderRepository interface {
	Save(ctx context.Context, rem *entity.Reminder) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Reminder, error)
	ActiveForRecord(ctx context.Context, recordID uuid.UUID) ([]*entity.Reminder, error)
	ListActive(ctx context.Context) ([]*entity.Reminder, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	LogDose(ctx context.Context, event *entity.DoseEvent) error
	EventsBetween(ctx context.Context, reminderID uuid.UUID, from, to time.Time) ([]*entity.DoseEvent, error)
	EventsForRecord(ctx context.Context, recordID uuid.UUID, from, to time.Time) ([]*entity.DoseEvent, error)
}

type reminderRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReminderRepository(db *DB, logger *slog.Logger) ReminderRepository {
	return &reminderRepository{db: db, logger: logger}
}

func (r *reminderRepository) Save(ctx context.Context, rem *entity.Reminder) error {
	if rem.CreatedAt.IsZero() {
		rem.CreatedAt = time.Now().UTC()
	}
	times, err := json.Marshal(rem.Times)
	if err != nil {
		return fmt.Errorf("encoding reminder times: %w", err)
	}
	_, err = r.db.conn.ExecContext(ctx, r.db.rebind(
		`INSERT INTO reminders (id, record_id, times, active, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		rem.ID.String(), rem.RecordID.String(), string(times),
		boolToInt(rem.Active), rem.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		r.logger.Error("failed to insert reminder", "reminder_id", rem.ID, "error", err)
		return fmt.Errorf("inserting reminder: %w", err)
	}
	return nil
}

func (r *reminderRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Reminder, error) {
	row := r.db.conn.QueryRowContext(ctx, r.db.rebind(
		`SELECT id, record_id, times, active, created_at FROM reminders WHERE id = ?`),
		id.String())
	rem, err := scanReminderRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError(fmt.Sprintf("reminder %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("loading reminder: %w", err)
	}
	return rem, nil
}

func (r *reminderRepository) ActiveForRecord(ctx context.Context, recordID uuid.UUID) ([]*entity.Reminder, error) {
	return r.queryReminders(ctx,
		`SELECT id, record_id, times, active, created_at FROM reminders
		 WHERE record_id = ? AND active = 1 ORDER BY created_at, id`,
		recordID.String())
}

func (r *reminderRepository) ListActive(ctx context.Context) ([]*entity.Reminder, error) {
	return r.queryReminders(ctx,
		`SELECT id, record_id, times, active, created_at FROM reminders
		 WHERE active = 1 ORDER BY created_at, id`)
}

func (r *reminderRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.conn.ExecContext(ctx, r.db.rebind(
		`UPDATE reminders SET active = ? WHERE id = ?`),
		boolToInt(active), id.String())
	if err != nil {
		return fmt.Errorf("updating reminder: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewNotFoundError(fmt.Sprintf("reminder %s not found", id))
	}
	return nil
}

func (r *reminderRepository) LogDose(ctx context.Context, event *entity.DoseEvent) error {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	_, err := r.db.conn.ExecContext(ctx, r.db.rebind(
		`INSERT INTO dose_events (id, reminder_id, status, at) VALUES (?, ?, ?, ?)`),
		event.ID.String(), event.ReminderID.String(), string(event.Status),
		event.At.UTC().Format(time.RFC3339))
	if err != nil {
		r.logger.Error("failed to log dose event", "reminder_id", event.ReminderID, "error", err)
		return fmt.Errorf("inserting dose event: %w", err)
	}

	// Trim history beyond the cap, oldest first.
	_, err = r.db.conn.ExecContext(ctx, r.db.rebind(
		`DELETE FROM dose_events WHERE reminder_id = ? AND id NOT IN (
			SELECT id FROM dose_events WHERE reminder_id = ?
			ORDER BY at DESC, id DESC LIMIT ?)`),
		event.ReminderID.String(), event.ReminderID.String(), doseHistoryCap)
	if err != nil {
		return fmt.Errorf("trimming dose history: %w", err)
	}
	return nil
}

func (r *reminderRepository) EventsBetween(ctx context.Context, reminderID uuid.UUID, from, to time.Time) ([]*entity.DoseEvent, error) {
	return r.queryEvents(ctx,
		`SELECT id, reminder_id, status, at FROM dose_events
		 WHERE reminder_id = ? AND at >= ? AND at <= ? ORDER BY at, id`,
		reminderID.String(), from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

func (r *reminderRepository) EventsForRecord(ctx context.Context, recordID uuid.UUID, from, to time.Time) ([]*entity.DoseEvent, error) {
	return r.queryEvents(ctx,
		`SELECT e.id, e.reminder_id, e.status, e.at FROM dose_events e
		 JOIN reminders m ON m.id = e.reminder_id
		 WHERE m.record_id = ? AND e.at >= ? AND e.at <= ? ORDER BY e.at, e.id`,
		recordID.String(), from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

func (r *reminderRepository) queryReminders(ctx context.Context, query string, args ...interface{}) ([]*entity.Reminder, error) {
	rows, err := r.db.conn.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*entity.Reminder
	for rows.Next() {
		rem, err := scanReminderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reminder row: %w", err)
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

func (r *reminderRepository) queryEvents(ctx context.Context, query string, args ...interface{}) ([]*entity.DoseEvent, error) {
	rows, err := r.db.conn.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying dose events: %w", err)
	}
	defer rows.Close()

	var events []*entity.DoseEvent
	for rows.Next() {
		var (
			ev         entity.DoseEvent
			id, remID  string
			status, at string
		)
		if err := rows.Scan(&id, &remID, &status, &at); err != nil {
			return nil, fmt.Errorf("scanning dose event row: %w", err)
		}
		if ev.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing event id %q: %w", id, err)
		}
		if ev.ReminderID, err = uuid.Parse(remID); err != nil {
			return nil, fmt.Errorf("parsing event reminder_id %q: %w", remID, err)
		}
		ev.Status = constants.DoseStatus(status)
		if ev.At, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("parsing event time %q: %w", at, err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func scanReminderRow(row rowScanner) (*entity.Reminder, error) {
	var (
		rem       entity.Reminder
		id, recID string
		times     string
		active    int64
		createdAt string
	)
	if err := row.Scan(&id, &recID, &times, &active, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if rem.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing reminder id %q: %w", id, err)
	}
	if rem.RecordID, err = uuid.Parse(recID); err != nil {
		return nil, fmt.Errorf("parsing reminder record_id %q: %w", recID, err)
	}
	if err := json.Unmarshal([]byte(times), &rem.Times); err != nil {
		return nil, fmt.Errorf("parsing reminder times: %w", err)
	}
	rem.Active = active != 0
	if rem.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing reminder created_at %q: %w", createdAt, err)
	}
	return &rem, nil
}
