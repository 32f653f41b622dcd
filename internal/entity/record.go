package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediscan/mediscan/constants"
)

// MedicineRecord represents one extracted medicine for data transfer
// between layers. Every field is best-effort: a record missing even the
// name is kept and flagged for review instead of being discarded.
type MedicineRecord struct {
	ID                uuid.UUID                       `json:"id"`
	ScanID            uuid.UUID                       `json:"scan_id"`
	Name              string                          `json:"name"`
	GenericName       string                          `json:"generic_name,omitempty"`
	NameCorrected     bool                            `json:"name_corrected,omitempty"`
	Category          string                          `json:"category,omitempty"`
	ExpiryDate        *Date                           `json:"expiry_date,omitempty"`
	ManufactureDate   *Date                           `json:"manufacture_date,omitempty"`
	BatchNumber       string                          `json:"batch_number,omitempty"`
	Dosage            string                          `json:"dosage,omitempty"`
	Strength          string                          `json:"strength,omitempty"`
	Form              constants.DoseForm              `json:"form,omitempty"`
	Manufacturer      string                          `json:"manufacturer,omitempty"`
	Frequency         string                          `json:"frequency,omitempty"`
	Duration          string                          `json:"duration,omitempty"`
	Quantity          string                          `json:"quantity,omitempty"`
	OverallConfidence float64                         `json:"overall_confidence"`
	NeedsReview       bool                            `json:"needs_review"`
	FieldConfidence   map[constants.FieldKind]float64 `json:"field_confidence,omitempty"`
	CreatedAt         time.Time                       `json:"created_at"`
}

// DaysUntilExpiry returns days from now to the expiry date. The second
// return is false when the record has no expiry date.
func (r *MedicineRecord) DaysUntilExpiry(now time.Time) (int, bool) {
	if r.ExpiryDate == nil || r.ExpiryDate.IsZero() {
		return 0, false
	}
	return r.ExpiryDate.DaysUntil(now), true
}

// ExpiryStatus buckets the record by proximity to expiry.
func (r *MedicineRecord) ExpiryStatus(now time.Time, soonDays int) constants.ExpiryStatus {
	days, ok := r.DaysUntilExpiry(now)
	if !ok {
		return constants.ExpiryUnknown
	}
	return constants.ExpiryBucket(days, soonDays)
}
