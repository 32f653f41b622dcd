package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediscan/mediscan/constants"
)

// Reminder represents a dose reminder attached to a medicine record.
type Reminder struct {
	ID        uuid.UUID `json:"id"`
	RecordID  uuid.UUID `json:"record_id"`
	Times     []string  `json:"times"` // "HH:MM", sorted ascending
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// DoseEvent is one taken/missed mark against a reminder.
type DoseEvent struct {
	ID         uuid.UUID            `json:"id"`
	ReminderID uuid.UUID            `json:"reminder_id"`
	Status     constants.DoseStatus `json:"status"`
	At         time.Time            `json:"at"`
}

// ComplianceReport summarizes dose events for a record over a window.
type ComplianceReport struct {
	RecordID uuid.UUID `json:"record_id"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Taken    int       `json:"taken"`
	Missed   int       `json:"missed"`
	Rate     float64   `json:"rate"` // taken / (taken + missed); 1.0 when no events
}
