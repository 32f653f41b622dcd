package extract

import (
	"strings"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/reference"
)

// Validate checks NAME fields against the reference set. Exact matches get
// a confidence floor, near-misses are corrected to the reference spelling,
// and unknown names pass through untouched: an unmatched name is still the
// best evidence the scan offers.
func Validate(fields []entity.ClassifiedField, ref *reference.Set, cfg Config) []entity.ClassifiedField {
	cfg.applyDefaults()
	if ref == nil || ref.Len() == 0 {
		return fields
	}

	caser := cases.Title(language.English)

	for i := range fields {
		if fields[i].Kind != constants.FieldName {
			continue
		}

		if entry, ok := ref.Lookup(fields[i].Value); ok {
			fields[i].Value = displayName(caser, entry.Name)
			fields[i].Normalized = entry.Name
			fields[i].Ref = entry
			if fields[i].Confidence < 0.95 {
				fields[i].Confidence = 0.95
			}
			continue
		}

		// a generic name printed on the pack is as good as the brand name
		if entry, ok := ref.LookupGeneric(fields[i].Value); ok {
			fields[i].Value = displayName(caser, entry.GenericName)
			fields[i].Normalized = entry.GenericName
			fields[i].Ref = entry
			if fields[i].Confidence < 0.95 {
				fields[i].Confidence = 0.95
			}
			continue
		}

		entry, spelling, sim := closestEntry(ref, fields[i].Value)
		if entry == nil || sim < cfg.SimilarityThreshold {
			continue
		}
		fields[i].Value = displayName(caser, spelling)
		fields[i].Normalized = spelling
		fields[i].Ref = entry
		fields[i].Corrected = true
		if c := sim * 0.92; c > fields[i].Confidence {
			fields[i].Confidence = c
		}
	}
	return fields
}

// closestEntry returns the most similar reference entry by Levenshtein
// similarity over both the brand and generic names, plus the spelling
// that actually matched. Ties keep the earliest entry in reference order,
// and the brand name over the generic within one entry.
func closestEntry(ref *reference.Set, name string) (*entity.ReferenceEntry, string, float64) {
	lower := strings.ToLower(strings.TrimSpace(name))
	entries := ref.Entries()

	best := -1
	bestSpelling := ""
	bestSim := 0.0
	for i := range entries {
		if sim := levenshtein.Similarity(lower, strings.ToLower(entries[i].Name), nil); sim > bestSim {
			bestSim = sim
			bestSpelling = entries[i].Name
			best = i
		}
		if entries[i].GenericName == "" {
			continue
		}
		if sim := levenshtein.Similarity(lower, strings.ToLower(entries[i].GenericName), nil); sim > bestSim {
			bestSim = sim
			bestSpelling = entries[i].GenericName
			best = i
		}
	}
	if best < 0 {
		return nil, "", 0
	}
	e := entries[best]
	return &e, bestSpelling, bestSim
}

func displayName(caser cases.Caser, name string) string {
	return caser.String(strings.ToLower(name))
}
