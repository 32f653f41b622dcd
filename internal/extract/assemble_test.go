package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
	"github.com/mediscan/mediscan/internal/reference"
)

func cf(kind constants.FieldKind, value string, conf float64, line, start, end int) entity.ClassifiedField {
	return entity.ClassifiedField{
		Kind:       kind,
		Value:      value,
		Normalized: value,
		Confidence: conf,
		Line:       line,
		Source:     entity.Candidate{Line: line, Start: start, End: end},
	}
}

func dateCF(kind constants.FieldKind, d entity.Date, conf float64, line, start, end int) entity.ClassifiedField {
	f := cf(kind, d.String(), conf, line, start, end)
	f.Date = &d
	return f
}

func refEntry(t *testing.T, name string) *entity.ReferenceEntry {
	t.Helper()
	entry, ok := reference.BuiltinSet().Lookup(name)
	require.True(t, ok)
	return entry
}

func TestAssembleLabelRecord(t *testing.T) {
	norm := normScan(constants.ScanTypeLabel,
		"PARACETAMOL 500mg",
		"EXP 12/2026",
	)
	name := cf(constants.FieldName, "Paracetamol", 0.95, 0, 0, 11)
	name.Ref = refEntry(t, "Paracetamol")
	fields := []entity.ClassifiedField{
		name,
		cf(constants.FieldDosage, "500mg", 0.85, 0, 12, 17),
		dateCF(constants.FieldExpiryDate, entity.Date{Year: 2026, Month: 12}, 0.95, 1, 4, 11),
	}

	records, err := Assemble(norm, fields, Config{})

	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]

	assert.Equal(t, "Paracetamol", rec.Name)
	assert.Equal(t, "Acetaminophen", rec.GenericName)
	assert.Equal(t, "Analgesic", rec.Category)
	require.NotNil(t, rec.ExpiryDate)
	assert.Equal(t, "2026-12", rec.ExpiryDate.String())
	assert.Equal(t, "500mg", rec.Dosage)
	assert.Equal(t, "500mg", rec.Strength, "an amount right after the name doubles as strength")

	assert.InDelta(t, 0.95, rec.FieldConfidence[constants.FieldName], 1e-9)
	assert.InDelta(t, 0.855, rec.FieldConfidence[constants.FieldGenericName], 1e-9)
	assert.InDelta(t, 0.85, rec.FieldConfidence[constants.FieldStrength], 1e-9)

	assert.InDelta(t, 0.658, rec.OverallConfidence, 0.001)
	assert.False(t, rec.NeedsReview)
}

func TestAssembleConflictResolution(t *testing.T) {
	norm := normScan(constants.ScanTypeLabel,
		"Crocin 500mg",
		"also contains",
		"Dolo 650mg",
	)
	fields := []entity.ClassifiedField{
		cf(constants.FieldName, "Crocin", 0.80, 0, 0, 6),
		cf(constants.FieldDosage, "500mg", 0.85, 0, 7, 12),
		cf(constants.FieldName, "Dolo", 0.80, 2, 0, 4),
		cf(constants.FieldDosage, "650mg", 0.90, 2, 5, 10),
	}

	records, err := Assemble(norm, fields, Config{})

	require.NoError(t, err)
	require.Len(t, records, 1, "a label is one medicine; conflicts merge, not multiply")
	rec := records[0]

	assert.Equal(t, "Crocin", rec.Name, "equal confidence keeps the earlier occurrence")
	assert.Equal(t, "650mg", rec.Dosage, "higher confidence wins")
	assert.Empty(t, rec.Strength, "winning dosage sits on another line than the name")
}

func TestAssembleGenericNamePromotion(t *testing.T) {
	newFields := func(loserConf float64) []entity.ClassifiedField {
		name := cf(constants.FieldName, "Paracetamol", 0.90, 0, 0, 11)
		name.Ref = refEntry(t, "Paracetamol")
		return []entity.ClassifiedField{
			name,
			cf(constants.FieldName, "ACETAMINOPHEN", loserConf, 1, 0, 13),
		}
	}
	norm := normScan(constants.ScanTypeLabel, "PARACETAMOL", "ACETAMINOPHEN")

	t.Run("printed generic overrides the backfill discount", func(t *testing.T) {
		records, err := Assemble(norm, newFields(0.85), Config{})
		require.NoError(t, err)
		rec := records[0]
		assert.Equal(t, "Acetaminophen", rec.GenericName)
		assert.InDelta(t, 0.85, rec.FieldConfidence[constants.FieldGenericName], 1e-9)
	})

	t.Run("weak duplicate keeps the discounted backfill", func(t *testing.T) {
		records, err := Assemble(norm, newFields(0.70), Config{})
		require.NoError(t, err)
		rec := records[0]
		assert.Equal(t, "Acetaminophen", rec.GenericName)
		assert.InDelta(t, 0.81, rec.FieldConfidence[constants.FieldGenericName], 1e-9) // 0.90 * 0.9
	})
}

func TestAssembleFormGating(t *testing.T) {
	norm := normScan(constants.ScanTypeLabel, "PARACETAMOL", "Injection")
	name := cf(constants.FieldName, "Paracetamol", 0.95, 0, 0, 11)
	name.Ref = refEntry(t, "Paracetamol")

	t.Run("unknown pairing halves confidence", func(t *testing.T) {
		fields := []entity.ClassifiedField{
			name,
			cf(constants.FieldForm, "INJECTION", 0.90, 1, 0, 9),
		}
		records, err := Assemble(norm, fields, Config{})
		require.NoError(t, err)
		rec := records[0]
		assert.Equal(t, constants.FormInjection, rec.Form, "the form is kept, just distrusted")
		assert.InDelta(t, 0.45, rec.FieldConfidence[constants.FieldForm], 1e-9)
	})

	t.Run("known pairing untouched", func(t *testing.T) {
		fields := []entity.ClassifiedField{
			name,
			cf(constants.FieldForm, "TABLET", 0.90, 1, 0, 6),
		}
		records, err := Assemble(norm, fields, Config{})
		require.NoError(t, err)
		assert.InDelta(t, 0.90, records[0].FieldConfidence[constants.FieldForm], 1e-9)
	})
}

func TestAssembleHeaderFieldsShared(t *testing.T) {
	norm := normScan(constants.ScanTypePrescriptionPrinted,
		"City Pharmacy valid till 01/2025",
		"1. Paracetamol 500mg",
		"2. Ibuprofen 400mg",
	)
	fields := []entity.ClassifiedField{
		dateCF(constants.FieldExpiryDate, entity.Date{Year: 2025, Month: 1}, 0.80, 0, 25, 32),
		cf(constants.FieldName, "Paracetamol", 0.85, 1, 3, 14),
		cf(constants.FieldName, "Ibuprofen", 0.85, 2, 3, 12),
	}

	records, err := Assemble(norm, fields, Config{})

	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		require.NotNil(t, rec.ExpiryDate, "header dates attach to every unit")
		assert.Equal(t, "2025-01", rec.ExpiryDate.String())
	}
	assert.Equal(t, "Paracetamol", records[0].Name)
	assert.Equal(t, "Ibuprofen", records[1].Name)
}

func TestAssembleMissingNameStillReturned(t *testing.T) {
	norm := normScan(constants.ScanTypeLabel, "500mg", "EXP 12/2026")
	fields := []entity.ClassifiedField{
		cf(constants.FieldDosage, "500mg", 0.85, 0, 0, 5),
		dateCF(constants.FieldExpiryDate, entity.Date{Year: 2026, Month: 12}, 0.95, 1, 4, 11),
	}

	records, err := Assemble(norm, fields, Config{})

	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Empty(t, rec.Name)
	assert.True(t, rec.NeedsReview, "a nameless record is returned for review, not dropped")
	require.NotNil(t, rec.ExpiryDate)
}

func TestAssembleEmptyLabelYieldsOneRecord(t *testing.T) {
	norm := normScan(constants.ScanTypeLabel, "Store in a cool dry place")

	records, err := Assemble(norm, nil, Config{})

	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Empty(t, rec.Name)
	assert.Zero(t, rec.OverallConfidence)
	assert.True(t, rec.NeedsReview)
}

func TestAssemblePrescriptionSkipsEmptyUnits(t *testing.T) {
	norm := normScan(constants.ScanTypePrescriptionPrinted,
		"1. Paracetamol 500mg",
		"2. illegible scrawl",
	)
	fields := []entity.ClassifiedField{
		cf(constants.FieldName, "Paracetamol", 0.85, 0, 3, 14),
		cf(constants.FieldDosage, "500mg", 0.85, 0, 15, 20),
	}

	records, err := Assemble(norm, fields, Config{})

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Paracetamol", records[0].Name)
}

func TestAssemblePrescriptionAllEmpty(t *testing.T) {
	norm := normScan(constants.ScanTypePrescriptionPrinted,
		"1. illegible",
		"2. illegible",
	)

	_, err := Assemble(norm, nil, Config{})

	assert.ErrorIs(t, err, common.ErrNoRequiredFields)
}

func TestAssembleStrengthMirror(t *testing.T) {
	t.Run("too far from the name", func(t *testing.T) {
		norm := normScan(constants.ScanTypeLabel, "PARACETAMOL tablet pack 500mg")
		fields := []entity.ClassifiedField{
			cf(constants.FieldName, "Paracetamol", 0.95, 0, 0, 11),
			cf(constants.FieldDosage, "500mg", 0.85, 0, 24, 29),
		}
		records, err := Assemble(norm, fields, Config{})
		require.NoError(t, err)
		assert.Empty(t, records[0].Strength, "two tokens between name and amount is too loose a link")
		assert.Equal(t, "500mg", records[0].Dosage)
	})

	t.Run("explicit strength wins", func(t *testing.T) {
		norm := normScan(constants.ScanTypeLabel, "AMOXICILLIN 125mg/5ml syrup 5ml")
		fields := []entity.ClassifiedField{
			cf(constants.FieldName, "Amoxicillin", 0.95, 0, 0, 11),
			cf(constants.FieldStrength, "125mg/5ml", 0.85, 0, 12, 21),
			cf(constants.FieldDosage, "5ml", 0.85, 0, 28, 31),
		}
		records, err := Assemble(norm, fields, Config{})
		require.NoError(t, err)
		assert.Equal(t, "125mg/5ml", records[0].Strength)
	})
}

func TestAssembleNeedsReview(t *testing.T) {
	expiry := dateCF(constants.FieldExpiryDate, entity.Date{Year: 2026, Month: 12}, 0.95, 1, 0, 7)

	t.Run("corrected name is flagged", func(t *testing.T) {
		norm := normScan(constants.ScanTypeLabel, "PARACETMOL 500mg", "12/2026")
		name := cf(constants.FieldName, "Paracetamol", 0.90, 0, 0, 10)
		name.Corrected = true
		fields := []entity.ClassifiedField{
			name,
			cf(constants.FieldDosage, "500mg", 0.85, 0, 11, 16),
			expiry,
		}
		records, err := Assemble(norm, fields, Config{})
		require.NoError(t, err)
		assert.True(t, records[0].NeedsReview)
		assert.True(t, records[0].NameCorrected)
	})

	t.Run("missing expiry is flagged", func(t *testing.T) {
		norm := normScan(constants.ScanTypeLabel, "PARACETAMOL 500mg")
		fields := []entity.ClassifiedField{
			cf(constants.FieldName, "Paracetamol", 0.95, 0, 0, 11),
			cf(constants.FieldDosage, "500mg", 0.85, 0, 12, 17),
		}
		records, err := Assemble(norm, fields, Config{})
		require.NoError(t, err)
		assert.True(t, records[0].NeedsReview)
	})

	t.Run("handwritten is always flagged", func(t *testing.T) {
		norm := normScan(constants.ScanTypePrescriptionHandwritten, "Paracetamol 500mg", "12/2026")
		fields := []entity.ClassifiedField{
			cf(constants.FieldName, "Paracetamol", 0.95, 0, 0, 11),
			cf(constants.FieldDosage, "500mg", 0.85, 0, 12, 17),
			expiry,
		}
		records, err := Assemble(norm, fields, Config{})
		require.NoError(t, err)
		assert.True(t, records[0].NeedsReview)
		assert.GreaterOrEqual(t, records[0].OverallConfidence, 0.60,
			"the flag comes from the scan type, not the score")
	})

	t.Run("confident printed record is not flagged", func(t *testing.T) {
		norm := normScan(constants.ScanTypePrescriptionPrinted, "Paracetamol 500mg", "12/2026")
		fields := []entity.ClassifiedField{
			cf(constants.FieldName, "Paracetamol", 0.95, 0, 0, 11),
			cf(constants.FieldDosage, "500mg", 0.85, 0, 12, 17),
			expiry,
		}
		records, err := Assemble(norm, fields, Config{})
		require.NoError(t, err)
		assert.False(t, records[0].NeedsReview)
	})
}
