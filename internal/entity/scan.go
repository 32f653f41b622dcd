package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediscan/mediscan/constants"
)

// RawScan is the extraction input: OCR text lines plus capture metadata.
type RawScan struct {
	ID              uuid.UUID          `json:"id"`
	Type            constants.ScanType `json:"type"`
	Lines           []string           `json:"lines"`
	TokenConfidence []LineConfidence   `json:"token_confidence,omitempty"`
	CapturedAt      *time.Time         `json:"captured_at,omitempty"`
}

// LineConfidence carries per-token OCR confidence for one input line,
// aligned with the line's whitespace tokens. Scores are in [0,1].
type LineConfidence struct {
	Line   int       `json:"line"`
	Scores []float64 `json:"scores"`
}

// Scan represents a persisted scan row for data transfer between layers.
type Scan struct {
	ID          uuid.UUID            `json:"id"`
	Type        constants.ScanType   `json:"type"`
	ContentHash string               `json:"content_hash"`
	LineCount   int                  `json:"line_count"`
	Status      constants.ScanStatus `json:"status"`
	Error       *string              `json:"error,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

// ScanReport is the outcome of processing one scan through the pipeline.
type ScanReport struct {
	Scan       Scan             `json:"scan"`
	Records    []MedicineRecord `json:"records"`
	Dropped    int              `json:"dropped_candidates"`
	DurationMS int64            `json:"duration_ms"`
}
