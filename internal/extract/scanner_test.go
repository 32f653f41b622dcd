package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/entity"
)

func candidatesByHint(cands []entity.Candidate, hint constants.CandidateHint) []entity.Candidate {
	var out []entity.Candidate
	for _, c := range cands {
		if c.Hint == hint {
			out = append(out, c)
		}
	}
	return out
}

func TestScanCandidatesLabel(t *testing.T) {
	norm := normScan(constants.ScanTypeLabel,
		"PARACETAMOL 500mg",
		"EXP 12/2026",
		"B.No: AB1234",
		"Mfr: ABC Pharma",
	)

	cands, dropped := ScanCandidates(norm, Config{})

	assert.Equal(t, 0, dropped)
	require.Len(t, cands, 5)

	hints := make([]constants.CandidateHint, len(cands))
	for i, c := range cands {
		hints[i] = c.Hint
	}
	assert.Equal(t, []constants.CandidateHint{
		constants.HintNameLike,
		constants.HintDosage,
		constants.HintDate,
		constants.HintBatch,
		constants.HintNameLike,
	}, hints)

	name := cands[0]
	assert.Equal(t, "PARACETAMOL", name.Value)
	assert.InDelta(t, 0.95, name.Confidence, 1e-9) // top line, all caps, -ol, dosage alongside

	assert.Equal(t, "500mg", cands[1].Value)
	assert.Equal(t, "12/2026", cands[2].Value)
	assert.Equal(t, "AB1234", cands[3].Value)

	mfr := cands[4]
	assert.Equal(t, "ABC Pharma", mfr.Value)
	assert.InDelta(t, 0.60, mfr.Confidence, 1e-9)
}

func TestScanCandidatesCompoundStrength(t *testing.T) {
	norm := normScan(constants.ScanTypeLabel, "AMOXICILLIN 125mg/5ml")

	cands, dropped := ScanCandidates(norm, Config{})

	assert.Equal(t, 0, dropped)
	require.Len(t, cands, 2)

	assert.Equal(t, constants.HintNameLike, cands[0].Hint)
	assert.Equal(t, "AMOXICILLIN", cands[0].Value)

	assert.Equal(t, constants.HintStrength, cands[1].Hint)
	assert.Equal(t, "125mg/5ml", cands[1].Value)

	// "125mg" and "5ml" inside the compound must not surface as dosages
	assert.Empty(t, candidatesByHint(cands, constants.HintDosage))
}

func TestScanBatch(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		conf float64
	}{
		{"keyword colon", "Batch No: AB1234", "AB1234", confBatchKeyword},
		{"b dot no", "B.No: XY99", "XY99", confBatchKeyword},
		{"lot", "LOT # C-2210", "C-2210", confBatchKeyword},
		{"shape only", "AB1234", "AB1234", confBatchShape},
		{"too short", "Batch No: AB1", "", 0},
		{"no digits", "Batch No: ABCDEF", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := NormLine{Text: tt.text, Orig: 0, Tokens: tokenize(tt.text)}
			cands := scanBatch(line, 0)
			if tt.want == "" {
				assert.Empty(t, cands)
				return
			}
			require.Len(t, cands, 1, "keyword and shape must not double-report")
			assert.Equal(t, tt.want, cands[0].Value)
			assert.InDelta(t, tt.conf, cands[0].Confidence, 1e-9)
		})
	}
}

func TestScanCandidatesConfidenceFloor(t *testing.T) {
	norm := NormScan{
		Type: constants.ScanTypeLabel,
		Lines: []NormLine{{
			Text:      "XYZAB 123mg",
			Orig:      0,
			Tokens:    tokenize("XYZAB 123mg"),
			TokenConf: []float64{0.3, 0.9},
		}},
	}

	cands, dropped := ScanCandidates(norm, Config{})

	// the name run scales to 0.85*0.3 and falls under the floor, the
	// dosage scales to 0.85*0.9 and survives
	assert.Equal(t, 1, dropped)
	require.Len(t, cands, 1)
	assert.Equal(t, constants.HintDosage, cands[0].Hint)
	assert.InDelta(t, 0.765, cands[0].Confidence, 1e-9)
}

func TestScanCandidatesBareYearInsideAmount(t *testing.T) {
	norm := normScan(constants.ScanTypeLabel, "PARACETAMOL 2000 mg")

	cands, _ := ScanCandidates(norm, Config{})

	assert.Empty(t, candidatesByHint(cands, constants.HintDate),
		"a year-shaped number inside a dosage is not a date")
	require.Len(t, candidatesByHint(cands, constants.HintDosage), 1)

	// a genuinely bare year still scans
	norm = normScan(constants.ScanTypeLabel, "Use before 2026")
	cands, _ = ScanCandidates(norm, Config{})
	dates := candidatesByHint(cands, constants.HintDate)
	require.Len(t, dates, 1)
	assert.Equal(t, "2026", dates[0].Value)
	assert.InDelta(t, 0.55, dates[0].Confidence, 1e-9)
}

func TestScanNameRuns(t *testing.T) {
	t.Run("company suffix continues run", func(t *testing.T) {
		line := NormLine{Text: "Sunrise Pharma Ltd", Orig: 2, Tokens: tokenize("Sunrise Pharma Ltd")}
		cands := scanNameRuns(line, 2, false)
		require.Len(t, cands, 1)
		assert.Equal(t, "Sunrise Pharma Ltd", cands[0].Value)
		assert.InDelta(t, 0.50, cands[0].Confidence, 1e-9) // base only: deep line, mixed case
		assert.Equal(t, 0, cands[0].Start)
		assert.Equal(t, 18, cands[0].End)
	})

	t.Run("lowercase past the top lines", func(t *testing.T) {
		line := NormLine{Text: "take paracetamol", Orig: 3, Tokens: tokenize("take paracetamol")}
		assert.Empty(t, scanNameRuns(line, 3, false))
	})

	t.Run("lowercase allowed on top lines", func(t *testing.T) {
		line := NormLine{Text: "paracetamol syrup", Orig: 0, Tokens: tokenize("paracetamol syrup")}
		cands := scanNameRuns(line, 0, false)
		require.Len(t, cands, 1)
		assert.Equal(t, "paracetamol", cands[0].Value) // "syrup" is a dose form, not a name token
	})

	t.Run("stop words break runs", func(t *testing.T) {
		line := NormLine{Text: "Store Crocin Advance away from light", Orig: 2, Tokens: tokenize("Store Crocin Advance away from light")}
		cands := scanNameRuns(line, 2, false)
		require.Len(t, cands, 1)
		assert.Equal(t, "Crocin Advance", cands[0].Value)
	})
}

func TestScanCandidatesPrescriptionLine(t *testing.T) {
	norm := normScan(constants.ScanTypePrescriptionPrinted, "Take 1 tablet BD for 5 days")

	cands, dropped := ScanCandidates(norm, Config{})

	assert.Equal(t, 0, dropped)
	require.Len(t, cands, 4)

	assert.Equal(t, constants.HintQuantity, cands[0].Hint)
	assert.Equal(t, "1 tablet", cands[0].Value)

	// "tablet" doubles as the dose form; overlapping spans both survive
	assert.Equal(t, constants.HintForm, cands[1].Hint)
	assert.Equal(t, "tablet", cands[1].Value)

	assert.Equal(t, constants.HintFrequency, cands[2].Hint)
	assert.Equal(t, "BD", cands[2].Value)

	assert.Equal(t, constants.HintDuration, cands[3].Hint)
	assert.Equal(t, "for 5 days", cands[3].Value)

	assert.Empty(t, candidatesByHint(cands, constants.HintNameLike),
		"dose abbreviations never read as names")
}

func TestDedupeSameSpan(t *testing.T) {
	in := []entity.Candidate{
		{Hint: constants.HintDate, Line: 0, Start: 0, End: 4, Confidence: 0.55},
		{Hint: constants.HintQuantity, Line: 0, Start: 0, End: 4, Confidence: 0.70},
		{Hint: constants.HintForm, Line: 0, Start: 5, End: 11, Confidence: 0.90},
	}

	out := dedupeSameSpan(in)

	require.Len(t, out, 2)
	assert.Equal(t, constants.HintQuantity, out[0].Hint)
	assert.Equal(t, constants.HintForm, out[1].Hint)
}
