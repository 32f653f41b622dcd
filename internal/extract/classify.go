package extract

import (
	"sort"
	"strings"
	"time"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/entity"
)

type dateRole int

const (
	roleNone dateRole = iota
	roleExpiry
	roleManufacture
)

// unhintedDate is a parsed date whose role no keyword decided.
type unhintedDate struct {
	cand   entity.Candidate
	date   entity.Date
	layout string
}

// nameVetoTokens mark prescription header lines (doctor, patient, clinic)
// whose name-like runs are people and places, not medicines.
var nameVetoTokens = map[string]struct{}{
	"dr": {}, "doctor": {}, "patient": {}, "clinic": {}, "hospital": {},
	"physician": {}, "age": {}, "address": {}, "regn": {}, "license": {},
	"phone": {}, "tel": {}, "email": {},
}

// manufacturerBigrams fix a name-like run as the maker when they appear on
// its line.
var manufacturerBigrams = map[string]struct{}{
	"mfg by": {}, "mfd by": {}, "manufactured by": {}, "marketed by": {},
	"mkt by": {}, "distributed by": {}, "packed by": {}, "made by": {},
}

var manufacturerTokens = map[string]struct{}{
	"mfr": {},
}

// canonicalFrequency expands prescription shorthand.
var canonicalFrequency = map[string]string{
	"od":   "once daily",
	"bd":   "twice daily",
	"bid":  "twice daily",
	"tds":  "three times daily",
	"tid":  "three times daily",
	"qid":  "four times daily",
	"qds":  "four times daily",
	"hs":   "at bedtime",
	"sos":  "as needed",
	"prn":  "as needed",
	"stat": "immediately",
}

// Classify resolves candidate hints into concrete field kinds using the
// surrounding text: date roles from keyword windows, name runs split into
// medicine names and manufacturers. Returns the fields plus the number of
// candidates dropped as unassignable.
func Classify(norm NormScan, cands []entity.Candidate, cfg Config) ([]entity.ClassifiedField, int) {
	cfg.applyDefaults()

	units, _ := segmentUnits(norm)
	expiryKW := keywordMatcher(cfg.ExpiryKeywords)
	mfgKW := keywordMatcher(cfg.MfgKeywords)

	var fields []entity.ClassifiedField
	dropped := 0

	hintedExpiry := make(map[int]bool)
	hintedMfg := make(map[int][]entity.Date)
	unhinted := make(map[int][]unhintedDate)

	dateLines := make(map[int]bool)
	for _, c := range cands {
		if c.Hint == constants.HintDate {
			dateLines[c.Line] = true
		}
	}

	for _, c := range cands {
		switch c.Hint {
		case constants.HintDate:
			d, layout, ok := ParseDate(c.Value)
			if !ok {
				dropped++
				continue
			}
			u := unitIndex(units, c.Line)
			role := dateRoleFor(norm.Lines[c.Line], c, cfg.DateKeywordWindow, expiryKW, mfgKW)
			switch role {
			case roleExpiry:
				hintedExpiry[u] = true
				fields = append(fields, dateField(c, d, layout, constants.FieldExpiryDate, clamp01(c.Confidence+0.1)))
			case roleManufacture:
				hintedMfg[u] = append(hintedMfg[u], d)
				fields = append(fields, dateField(c, d, layout, constants.FieldManufactureDate, clamp01(c.Confidence+0.1)))
			default:
				unhinted[u] = append(unhinted[u], unhintedDate{cand: c, date: d, layout: layout})
			}

		case constants.HintNameLike:
			line := norm.Lines[c.Line]
			isMaker := isManufacturerRun(c, line, dateLines[c.Line])
			if !isMaker && lineVetoed(line) {
				dropped++
				continue
			}
			kind := constants.FieldName
			if isMaker {
				kind = constants.FieldManufacturer
			}
			fields = append(fields, entity.ClassifiedField{
				Kind:       kind,
				Value:      c.Value,
				Confidence: c.Confidence,
				Line:       c.Line,
				Source:     c,
			})

		case constants.HintDosage:
			fields = append(fields, simpleField(c, constants.FieldDosage, compactUnits(c.Value)))
		case constants.HintStrength:
			fields = append(fields, simpleField(c, constants.FieldStrength, compactUnits(c.Value)))
		case constants.HintBatch:
			fields = append(fields, simpleField(c, constants.FieldBatchNumber, strings.ToUpper(c.Value)))
		case constants.HintForm:
			form, _ := constants.CanonicalizeForm(c.Value)
			fields = append(fields, simpleField(c, constants.FieldForm, string(form)))
		case constants.HintFrequency:
			fields = append(fields, simpleField(c, constants.FieldFrequency, normalizeFrequency(c.Value)))
		case constants.HintDuration:
			fields = append(fields, simpleField(c, constants.FieldDuration, strings.ToLower(c.Value)))
		case constants.HintQuantity:
			fields = append(fields, simpleField(c, constants.FieldQuantity, strings.ToLower(c.Value)))
		}
	}

	// role heuristics for unhinted dates, per unit
	for u, dates := range unhinted {
		assigned, unitDropped := resolveUnitDates(dates, hintedExpiry[u], hintedMfg[u])
		fields = append(fields, assigned...)
		dropped += unitDropped
	}

	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Line != fields[j].Line {
			return fields[i].Line < fields[j].Line
		}
		if fields[i].Source.Start != fields[j].Source.Start {
			return fields[i].Source.Start < fields[j].Source.Start
		}
		return fields[i].Kind < fields[j].Kind
	})
	return fields, dropped
}

func dateField(c entity.Candidate, d entity.Date, layout string, kind constants.FieldKind, conf float64) entity.ClassifiedField {
	// a bare year read as a manufacture date means "made that year":
	// January is the conservative earliest, December stays for expiry
	if layout == layoutYearOnly && kind == constants.FieldManufactureDate {
		d.Month = time.January
	}
	return entity.ClassifiedField{
		Kind:       kind,
		Value:      c.Value,
		Normalized: d.String(),
		Confidence: conf,
		Line:       c.Line,
		Date:       &d,
		Source:     c,
	}
}

func simpleField(c entity.Candidate, kind constants.FieldKind, normalized string) entity.ClassifiedField {
	return entity.ClassifiedField{
		Kind:       kind,
		Value:      c.Value,
		Normalized: normalized,
		Confidence: c.Confidence,
		Line:       c.Line,
		Source:     c,
	}
}

// keywordMatcher splits configured keywords into single-token and bigram
// lookups, both lowercased with edge punctuation removed.
type kwMatcher struct {
	single  map[string]struct{}
	bigrams map[string]struct{}
}

func keywordMatcher(keywords []string) kwMatcher {
	m := kwMatcher{
		single:  make(map[string]struct{}),
		bigrams: make(map[string]struct{}),
	}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		parts := strings.Fields(kw)
		switch len(parts) {
		case 1:
			m.single[stripPunct(parts[0])] = struct{}{}
		case 2:
			m.bigrams[stripPunct(parts[0])+" "+stripPunct(parts[1])] = struct{}{}
		}
	}
	return m
}

// matchesAt reports whether the token at i is a keyword, alone or as
// either half of a bigram.
func (m kwMatcher) matchesAt(tokens []Token, i int) bool {
	if i < 0 || i >= len(tokens) {
		return false
	}
	word := strings.ToLower(stripPunct(tokens[i].Text))
	if _, ok := m.single[word]; ok {
		return true
	}
	if i+1 < len(tokens) {
		next := strings.ToLower(stripPunct(tokens[i+1].Text))
		if _, ok := m.bigrams[word+" "+next]; ok {
			return true
		}
	}
	if i > 0 {
		prev := strings.ToLower(stripPunct(tokens[i-1].Text))
		if _, ok := m.bigrams[prev+" "+word]; ok {
			return true
		}
	}
	return false
}

// dateRoleFor walks outward from the date span, one token at a time up to
// the window, and lets the nearest keyword decide the role. At equal
// distance the keyword before the date wins over the one after it, since
// labels precede their values ("Mfg: 01/2024 Exp: 06/2026"); a token
// matching both keyword sets reads as expiry.
func dateRoleFor(line NormLine, c entity.Candidate, window int, expiryKW, mfgKW kwMatcher) dateRole {
	covering := overlappingTokens(line.Tokens, c.Start, c.End)
	if len(covering) == 0 {
		return roleNone
	}
	lo := covering[0]
	hi := covering[len(covering)-1]

	for d := 0; d <= window; d++ {
		for _, i := range [2]int{lo - d, hi + d} {
			if expiryKW.matchesAt(line.Tokens, i) {
				return roleExpiry
			}
			if mfgKW.matchesAt(line.Tokens, i) {
				return roleManufacture
			}
		}
	}
	return roleNone
}

// resolveUnitDates applies the no-keyword heuristics to one unit's
// unhinted dates. With nothing else to go on and exactly two dates, the
// later one is the expiry and the earlier the manufacture date. Otherwise
// the latest date is read as expiry at reduced confidence, but only when
// it is strictly later than every keyword-confirmed manufacture date;
// anything left over is dropped rather than guessed.
func resolveUnitDates(dates []unhintedDate, hintedExpiry bool, hintedMfg []entity.Date) ([]entity.ClassifiedField, int) {
	if len(dates) == 0 {
		return nil, 0
	}

	// textual order is the final tie-break for equal dates
	ordered := make([]unhintedDate, len(dates))
	copy(ordered, dates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].cand.Line != ordered[j].cand.Line {
			return ordered[i].cand.Line < ordered[j].cand.Line
		}
		return ordered[i].cand.Start < ordered[j].cand.Start
	})

	latest := 0
	earliest := 0
	for i := 1; i < len(ordered); i++ {
		if !ordered[i].date.Time().Before(ordered[latest].date.Time()) {
			latest = i // ties go to the later occurrence
		}
		if ordered[i].date.Time().Before(ordered[earliest].date.Time()) {
			earliest = i
		}
	}

	// the plain two-date case: no keyword hints anywhere in the unit
	if !hintedExpiry && len(hintedMfg) == 0 && len(ordered) == 2 {
		exp := ordered[latest]
		mfg := ordered[1-latest]
		return []entity.ClassifiedField{
			dateField(exp.cand, exp.date, exp.layout, constants.FieldExpiryDate, exp.cand.Confidence),
			dateField(mfg.cand, mfg.date, mfg.layout, constants.FieldManufactureDate, mfg.cand.Confidence),
		}, 0
	}

	var fields []entity.ClassifiedField
	dropped := 0
	assignedExpiry := -1

	laterThanAllMfg := true
	for _, m := range hintedMfg {
		if !ordered[latest].date.After(m) {
			laterThanAllMfg = false
			break
		}
	}
	if laterThanAllMfg {
		exp := ordered[latest]
		fields = append(fields, dateField(exp.cand, exp.date, exp.layout, constants.FieldExpiryDate, clamp01(exp.cand.Confidence-0.15)))
		assignedExpiry = latest
	}

	if len(hintedMfg) == 0 && len(ordered) >= 2 && earliest != assignedExpiry {
		mfg := ordered[earliest]
		fields = append(fields, dateField(mfg.cand, mfg.date, mfg.layout, constants.FieldManufactureDate, clamp01(mfg.cand.Confidence-0.15)))
	} else {
		earliest = -1
	}

	for i := range ordered {
		if i != assignedExpiry && i != earliest {
			dropped++
		}
	}
	return fields, dropped
}

// isManufacturerRun decides maker-vs-medicine for a name-like run: company
// suffixes inside the run, a "marketed by" style bigram on the line, or a
// mfg keyword on a line that carries no date.
func isManufacturerRun(c entity.Candidate, line NormLine, lineHasDate bool) bool {
	for _, w := range strings.Fields(c.Value) {
		if _, ok := companySuffixes[strings.ToLower(stripPunct(w))]; ok {
			return true
		}
	}

	words := make([]string, len(line.Tokens))
	for i, t := range line.Tokens {
		words[i] = strings.ToLower(stripPunct(t.Text))
	}
	for i, w := range words {
		if _, ok := manufacturerTokens[w]; ok {
			return true
		}
		if i+1 < len(words) {
			if _, ok := manufacturerBigrams[w+" "+words[i+1]]; ok {
				return true
			}
		}
	}

	if !lineHasDate {
		for _, w := range words {
			if w == "mfg" || w == "mfd" || w == "manufactured" || w == "marketed" {
				return true
			}
		}
	}
	return false
}

func lineVetoed(line NormLine) bool {
	for _, t := range line.Tokens {
		if _, ok := nameVetoTokens[strings.ToLower(stripPunct(t.Text))]; ok {
			return true
		}
	}
	return false
}

// compactUnits lowercases a dosage or strength and removes interior
// spaces: "500 MG" becomes "500mg", "µg" becomes "mcg".
func compactUnits(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "µg", "mcg")
	s = strings.Join(strings.Fields(s), "")
	return s
}

func normalizeFrequency(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	if expanded, ok := canonicalFrequency[lower]; ok {
		return expanded
	}
	return strings.Join(strings.Fields(lower), " ")
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
