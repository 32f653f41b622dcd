package entity

import (
	"github.com/mediscan/mediscan/constants"
)

// Candidate is a span the scanner matched, before classification. Start and
// End are rune offsets into the normalized line, end-exclusive.
type Candidate struct {
	Hint       constants.CandidateHint `json:"hint"`
	Value      string                  `json:"value"`
	Line       int                     `json:"line"`
	Start      int                     `json:"start"`
	End        int                     `json:"end"`
	Confidence float64                 `json:"confidence"`
	Context    string                  `json:"context,omitempty"`
}

// ClassifiedField is a candidate resolved to a concrete field kind. Every
// field keeps its source candidate, so no value appears without a span of
// input text behind it.
type ClassifiedField struct {
	Kind       constants.FieldKind `json:"kind"`
	Value      string              `json:"value"`
	Normalized string              `json:"normalized,omitempty"`
	Confidence float64             `json:"confidence"`
	Line       int                 `json:"line"`
	Date       *Date               `json:"date,omitempty"`
	Corrected  bool                `json:"corrected,omitempty"`
	Ref        *ReferenceEntry     `json:"-"`
	Source     Candidate           `json:"source"`
}
