package extract

import (
	"sort"
	"strings"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
)

// Assemble merges classified fields into one medicine record per scan
// unit. A label yields exactly one record, a prescription one per
// segmented unit that produced any field at all. Fields on header lines
// before the first unit are shared context and contribute to every
// record. Records missing the required name or expiry date are still
// returned, flagged for review, rather than discarded; only a
// prescription whose every unit came up empty is an extraction failure.
func Assemble(norm NormScan, fields []entity.ClassifiedField, cfg Config) ([]entity.MedicineRecord, error) {
	cfg.applyDefaults()

	units, _ := segmentUnits(norm)
	if len(units) == 0 {
		return nil, common.ErrNoRequiredFields
	}

	var header []entity.ClassifiedField
	perUnit := make([][]entity.ClassifiedField, len(units))
	for _, f := range fields {
		u := unitIndex(units, f.Line)
		if u < 0 {
			header = append(header, f)
			continue
		}
		perUnit[u] = append(perUnit[u], f)
	}

	var records []entity.MedicineRecord
	for u := range units {
		// header lines precede every unit line, so this stays ordered
		// by line and start offset
		merged := make([]entity.ClassifiedField, 0, len(header)+len(perUnit[u]))
		merged = append(merged, header...)
		merged = append(merged, perUnit[u]...)

		if len(merged) == 0 && norm.Type.IsPrescription() {
			continue
		}
		records = append(records, buildRecord(norm, merged, cfg))
	}
	if len(records) == 0 {
		return nil, common.ErrNoRequiredFields
	}
	return records, nil
}

// buildRecord resolves one unit's fields into a record. One value per
// kind: highest confidence wins, ties go to the earliest occurrence.
func buildRecord(norm NormScan, fields []entity.ClassifiedField, cfg Config) entity.MedicineRecord {
	best := make(map[constants.FieldKind]entity.ClassifiedField, len(fields))
	var names []entity.ClassifiedField
	for _, f := range fields {
		if f.Kind == constants.FieldName {
			names = append(names, f)
		}
		if cur, ok := best[f.Kind]; !ok || f.Confidence > cur.Confidence {
			best[f.Kind] = f
		}
	}

	rec := entity.MedicineRecord{
		FieldConfidence: make(map[constants.FieldKind]float64, len(best)),
	}

	name, hasName := best[constants.FieldName]
	if hasName {
		rec.Name = name.Value
		rec.NameCorrected = name.Corrected
		rec.FieldConfidence[constants.FieldName] = name.Confidence

		if name.Ref != nil {
			rec.Category = name.Ref.Category
			if name.Ref.GenericName != "" {
				// back-filled generics carry a discount; a generic name
				// actually printed on the pack overrides it below
				rec.GenericName = name.Ref.GenericName
				rec.FieldConfidence[constants.FieldGenericName] = name.Confidence * 0.9
			}
		}
		for _, n := range names {
			if rec.GenericName == "" {
				break
			}
			if n.Line == name.Line && n.Source.Start == name.Source.Start {
				continue
			}
			if strings.EqualFold(n.Value, rec.GenericName) || strings.EqualFold(n.Normalized, rec.GenericName) {
				if n.Confidence > rec.FieldConfidence[constants.FieldGenericName] {
					rec.FieldConfidence[constants.FieldGenericName] = n.Confidence
				}
				break
			}
		}
	}

	if f, ok := best[constants.FieldExpiryDate]; ok && f.Date != nil {
		d := *f.Date
		rec.ExpiryDate = &d
		rec.FieldConfidence[constants.FieldExpiryDate] = f.Confidence
	}
	if f, ok := best[constants.FieldManufactureDate]; ok && f.Date != nil {
		d := *f.Date
		rec.ManufactureDate = &d
		rec.FieldConfidence[constants.FieldManufactureDate] = f.Confidence
	}
	if f, ok := best[constants.FieldBatchNumber]; ok {
		rec.BatchNumber = f.Normalized
		rec.FieldConfidence[constants.FieldBatchNumber] = f.Confidence
	}
	if f, ok := best[constants.FieldDosage]; ok {
		rec.Dosage = f.Normalized
		rec.FieldConfidence[constants.FieldDosage] = f.Confidence
	}
	if f, ok := best[constants.FieldStrength]; ok {
		rec.Strength = f.Normalized
		rec.FieldConfidence[constants.FieldStrength] = f.Confidence
	} else if f, ok := best[constants.FieldDosage]; ok && hasName && dosageActsAsStrength(norm, name, f) {
		rec.Strength = f.Normalized
		rec.FieldConfidence[constants.FieldStrength] = f.Confidence
	}
	if f, ok := best[constants.FieldForm]; ok {
		rec.Form = constants.DoseForm(f.Normalized)
		conf := f.Confidence
		if hasName && name.Ref != nil && len(name.Ref.CommonForms) > 0 && !formAllowed(rec.Form, name.Ref.CommonForms) {
			conf /= 2
		}
		rec.FieldConfidence[constants.FieldForm] = conf
	}
	if f, ok := best[constants.FieldManufacturer]; ok {
		rec.Manufacturer = f.Value
		rec.FieldConfidence[constants.FieldManufacturer] = f.Confidence
	}
	if f, ok := best[constants.FieldFrequency]; ok {
		rec.Frequency = f.Normalized
		rec.FieldConfidence[constants.FieldFrequency] = f.Confidence
	}
	if f, ok := best[constants.FieldDuration]; ok {
		rec.Duration = f.Normalized
		rec.FieldConfidence[constants.FieldDuration] = f.Confidence
	}
	if f, ok := best[constants.FieldQuantity]; ok {
		rec.Quantity = f.Normalized
		rec.FieldConfidence[constants.FieldQuantity] = f.Confidence
	}

	rec.OverallConfidence = overallConfidence(rec.FieldConfidence, cfg.FieldWeights)
	rec.NeedsReview = rec.OverallConfidence < cfg.ReviewThreshold ||
		rec.Name == "" ||
		rec.ExpiryDate == nil ||
		rec.NameCorrected ||
		norm.Type == constants.ScanTypePrescriptionHandwritten

	return rec
}

// dosageActsAsStrength reports whether a plain dosage doubles as the
// medicine strength: same line as the name, at most one token between the
// name run and the amount ("PARACETAMOL 500mg").
func dosageActsAsStrength(norm NormScan, name, dosage entity.ClassifiedField) bool {
	if dosage.Line != name.Line || dosage.Source.Start < name.Source.End {
		return false
	}
	line := norm.Lines[dosage.Line]
	between := 0
	for _, t := range line.Tokens {
		if t.Start >= name.Source.End && t.End <= dosage.Source.Start {
			between++
		}
	}
	return between <= 1
}

func formAllowed(form constants.DoseForm, allowed []constants.DoseForm) bool {
	for _, f := range allowed {
		if f == form {
			return true
		}
	}
	return false
}

// overallConfidence is the weighted sum of per-field confidences plus a
// coverage bonus for the fraction of primary kinds present. Weights are
// iterated in sorted kind order so the float sum is reproducible.
func overallConfidence(fieldConf map[constants.FieldKind]float64, weights map[constants.FieldKind]float64) float64 {
	kinds := make([]string, 0, len(weights))
	for k := range weights {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	sum := 0.0
	for _, k := range kinds {
		if c, ok := fieldConf[constants.FieldKind(k)]; ok {
			sum += weights[constants.FieldKind(k)] * c
		}
	}

	covered := 0
	for _, k := range constants.PrimaryFieldKinds {
		if _, ok := fieldConf[k]; ok {
			covered++
		}
	}
	sum += coverageWeight * float64(covered) / float64(len(constants.PrimaryFieldKinds))

	return clamp01(sum)
}
