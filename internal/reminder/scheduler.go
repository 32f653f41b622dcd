// Package reminder schedules dose reminders for extracted medicine
// records and tracks taken/missed compliance.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/repository"
)

// Config carries the scheduler knobs. Now defaults to time.Now; tests
// inject a fixed clock.
type Config struct {
	DefaultTime    string // "HH:MM" used when no frequency maps
	ExpirySoonDays int
	Now            func() time.Time
}

func (c *Config) applyDefaults() {
	if c.DefaultTime == "" {
		c.DefaultTime = "09:00"
	}
	if c.ExpirySoonDays <= 0 {
		c.ExpirySoonDays = 7
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Scheduler derives dose times from extraction output and answers
// what-is-due queries.
type Scheduler struct {
	medicines repository.MedicineRepository
	reminders repository.ReminderRepository
	cfg       Config
	logger    *slog.Logger
}

func NewScheduler(medicines repository.MedicineRepository, reminders repository.ReminderRepository, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{medicines: medicines, reminders: reminders, cfg: cfg, logger: logger}
}

// Dose slot anchors for frequency mapping.
const (
	slotMorning   = "08:00"
	slotAfternoon = "14:00"
	slotEvening   = "20:00"
)

// TimesForFrequency maps an extracted frequency string to clock times.
// Unknown or as-needed frequencies fall back to the default time.
func (s *Scheduler) TimesForFrequency(freq string) []string {
	switch strings.ToLower(strings.TrimSpace(freq)) {
	case "once daily", "od", "daily":
		return []string{s.cfg.DefaultTime}
	case "twice daily", "bd", "bid":
		return []string{slotMorning, slotEvening}
	case "three times daily", "tds", "tid":
		return []string{slotMorning, slotAfternoon, slotEvening}
	case "four times daily", "qid", "qds":
		return []string{"06:00", "12:00", "18:00", "22:00"}
	case "at bedtime", "hs":
		return []string{"22:00"}
	}
	if times := dosePatternTimes(freq); times != nil {
		return times
	}
	return []string{s.cfg.DefaultTime}
}

// dosePatternTimes reads "1-0-1" style morning-afternoon-night counts.
func dosePatternTimes(freq string) []string {
	parts := strings.Split(strings.TrimSpace(freq), "-")
	if len(parts) != 3 {
		return nil
	}
	slots := []string{slotMorning, slotAfternoon, slotEvening}
	var times []string
	for i, p := range parts {
		switch strings.TrimSpace(p) {
		case "0":
		case "1", "2":
			times = append(times, slots[i])
		default:
			return nil
		}
	}
	if len(times) == 0 {
		return nil
	}
	return times
}

// CreateOptions tunes CreateForRecord. Explicit Times win over the
// Frequency mapping; an empty Frequency falls back to the record's own.
type CreateOptions struct {
	Times     []string
	Frequency string
}

// CreateForRecord attaches a new active reminder to a stored record.
func (s *Scheduler) CreateForRecord(ctx context.Context, recordID uuid.UUID, opts CreateOptions) (*entity.Reminder, error) {
	rec, err := s.medicines.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	times := opts.Times
	if len(times) == 0 {
		freq := opts.Frequency
		if freq == "" {
			freq = rec.Frequency
		}
		times = s.TimesForFrequency(freq)
	}
	times, err = normalizeTimes(times)
	if err != nil {
		return nil, err
	}

	rem := &entity.Reminder{
		ID:        uuid.New(),
		RecordID:  rec.ID,
		Times:     times,
		Active:    true,
		CreatedAt: s.cfg.Now().UTC(),
	}
	if err := s.reminders.Save(ctx, rem); err != nil {
		return nil, err
	}
	s.logger.Info("reminder created",
		"reminder_id", rem.ID, "record_id", rec.ID, "times", strings.Join(times, ","))
	return rem, nil
}

func normalizeTimes(times []string) ([]string, error) {
	seen := make(map[string]struct{}, len(times))
	out := make([]string, 0, len(times))
	for _, t := range times {
		t = strings.TrimSpace(t)
		if _, err := time.Parse("15:04", t); err != nil {
			return nil, common.NewValidationErrorf("invalid reminder time %q, want HH:MM", t)
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, common.NewValidationError("reminder needs at least one time")
	}
	sort.Strings(out)
	return out, nil
}

// NextDue finds the next occurrence strictly after now: the first
// remaining time today, else the earliest time tomorrow.
func (s *Scheduler) NextDue(rem *entity.Reminder, now time.Time) time.Time {
	if len(rem.Times) == 0 {
		return now.Add(24 * time.Hour)
	}
	times := append([]string(nil), rem.Times...)
	sort.Strings(times)

	for _, t := range times {
		occ, err := occurrenceOn(now, t)
		if err != nil {
			continue
		}
		if occ.After(now) {
			return occ
		}
	}
	occ, err := occurrenceOn(now.AddDate(0, 0, 1), times[0])
	if err != nil {
		return now.Add(24 * time.Hour)
	}
	return occ
}

// Due is one reminder occurrence inside a DueBetween window.
type Due struct {
	Reminder *entity.Reminder       `json:"reminder"`
	Record   *entity.MedicineRecord `json:"record"`
	At       time.Time              `json:"at"`
}

// DueBetween expands every active reminder into its occurrences within
// [from, to], soonest first.
func (s *Scheduler) DueBetween(ctx context.Context, from, to time.Time) ([]Due, error) {
	if to.Before(from) {
		return nil, common.NewValidationError("due window end precedes start")
	}
	active, err := s.reminders.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var due []Due
	for _, rem := range active {
		var rec *entity.MedicineRecord
		for day := from.Truncate(24 * time.Hour); !day.After(to); day = day.AddDate(0, 0, 1) {
			for _, t := range rem.Times {
				occ, err := occurrenceOn(day, t)
				if err != nil {
					continue
				}
				if occ.Before(from) || occ.After(to) {
					continue
				}
				if rec == nil {
					rec, err = s.medicines.Get(ctx, rem.RecordID)
					if err != nil {
						return nil, fmt.Errorf("loading record for reminder %s: %w", rem.ID, err)
					}
				}
				due = append(due, Due{Reminder: rem, Record: rec, At: occ})
			}
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].At.Equal(due[j].At) {
			return due[i].At.Before(due[j].At)
		}
		return due[i].Reminder.ID.String() < due[j].Reminder.ID.String()
	})
	return due, nil
}

func occurrenceOn(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// MarkTaken logs a TAKEN dose event. A zero at means now.
func (s *Scheduler) MarkTaken(ctx context.Context, reminderID uuid.UUID, at time.Time) error {
	return s.logDose(ctx, reminderID, constants.DoseTaken, at)
}

// MarkMissed logs a MISSED dose event. A zero at means now.
func (s *Scheduler) MarkMissed(ctx context.Context, reminderID uuid.UUID, at time.Time) error {
	return s.logDose(ctx, reminderID, constants.DoseMissed, at)
}

func (s *Scheduler) logDose(ctx context.Context, reminderID uuid.UUID, status constants.DoseStatus, at time.Time) error {
	if _, err := s.reminders.Get(ctx, reminderID); err != nil {
		return err
	}
	if at.IsZero() {
		at = s.cfg.Now()
	}
	return s.reminders.LogDose(ctx, &entity.DoseEvent{
		ID:         uuid.New(),
		ReminderID: reminderID,
		Status:     status,
		At:         at.UTC(),
	})
}

// Compliance summarizes dose events for a record over the trailing
// window. No events reads as full compliance, not zero.
func (s *Scheduler) Compliance(ctx context.Context, recordID uuid.UUID, window time.Duration) (entity.ComplianceReport, error) {
	if _, err := s.medicines.Get(ctx, recordID); err != nil {
		return entity.ComplianceReport{}, err
	}
	to := s.cfg.Now().UTC()
	from := to.Add(-window)

	events, err := s.reminders.EventsForRecord(ctx, recordID, from, to)
	if err != nil {
		return entity.ComplianceReport{}, err
	}

	report := entity.ComplianceReport{RecordID: recordID, From: from, To: to}
	for _, ev := range events {
		switch ev.Status {
		case constants.DoseTaken:
			report.Taken++
		case constants.DoseMissed:
			report.Missed++
		}
	}
	if total := report.Taken + report.Missed; total > 0 {
		report.Rate = float64(report.Taken) / float64(total)
	} else {
		report.Rate = 1.0
	}
	return report, nil
}

// Alert flags a record that is expired or expiring soon.
type Alert struct {
	Record   *entity.MedicineRecord `json:"record"`
	DaysLeft int                    `json:"days_left"`
	Status   constants.ExpiryStatus `json:"status"`
}

// ExpiryAlerts returns expired records and those inside the soon
// window, most urgent first.
func (s *Scheduler) ExpiryAlerts(ctx context.Context) ([]Alert, error) {
	now := s.cfg.Now().UTC()

	expired, err := s.medicines.Expired(ctx, now)
	if err != nil {
		return nil, err
	}
	soon, err := s.medicines.ExpiringWithin(ctx, s.cfg.ExpirySoonDays, now)
	if err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(expired)+len(soon))
	for _, rec := range append(expired, soon...) {
		days, ok := rec.DaysUntilExpiry(now)
		if !ok {
			continue
		}
		alerts = append(alerts, Alert{
			Record:   rec,
			DaysLeft: days,
			Status:   rec.ExpiryStatus(now, s.cfg.ExpirySoonDays),
		})
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].DaysLeft < alerts[j].DaysLeft })
	return alerts, nil
}
