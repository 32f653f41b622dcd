package constants

import (
	"strings"
)

// ScanType identifies what kind of document a raw scan came from.
type ScanType string

// Stable values (store these exact strings in DB).
const (
	ScanTypeLabel                   ScanType = "LABEL"
	ScanTypePrescriptionPrinted     ScanType = "PRESCRIPTION_PRINTED"
	ScanTypePrescriptionHandwritten ScanType = "PRESCRIPTION_HANDWRITTEN"
)

var allScanTypes = []ScanType{
	ScanTypeLabel,
	ScanTypePrescriptionPrinted,
	ScanTypePrescriptionHandwritten,
}

// ScanTypeStrings returns the stable string values in declaration order.
func ScanTypeStrings() []string {
	result := make([]string, len(allScanTypes))
	for i, st := range allScanTypes {
		result[i] = string(st)
	}
	return result
}

// IsPrescription reports whether the scan type yields multi-record output.
func (st ScanType) IsPrescription() bool {
	return st == ScanTypePrescriptionPrinted || st == ScanTypePrescriptionHandwritten
}

// CanonicalizeScanType maps user input to a ScanType. Accepts the stable
// values plus common shorthand.
func CanonicalizeScanType(input string) (ScanType, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]ScanType{
		"label":        ScanTypeLabel,
		"box":          ScanTypeLabel,
		"strip":        ScanTypeLabel,
		"package":      ScanTypeLabel,
		"rx":           ScanTypePrescriptionPrinted,
		"printed":      ScanTypePrescriptionPrinted,
		"prescription": ScanTypePrescriptionPrinted,
		"handwritten":  ScanTypePrescriptionHandwritten,
		"handwriting":  ScanTypePrescriptionHandwritten,
		"script":       ScanTypePrescriptionHandwritten,
	}

	if st, ok := synonyms[normalized]; ok {
		return st, true
	}

	for _, st := range allScanTypes {
		if normalized == strings.ToLower(string(st)) {
			return st, true
		}
	}

	return "", false
}
