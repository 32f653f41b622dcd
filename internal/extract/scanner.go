package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/entity"
)

var (
	reDosage         = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*((?:mg|mcg|µg|g|ml|iu)\b|%)`)
	reStrengthPerVol = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(mg|mcg|µg|g)\s*/\s*(\d+(?:\.\d+)?)\s*(ml|l|dose|tab(?:let)?s?|cap(?:sule)?s?)\b`)
	reStrengthRatio  = regexp.MustCompile(`\b(\d{1,2})\s*:\s*(\d{3,6})\b`)
	reBatchKeyword   = regexp.MustCompile(`(?i)\b(?:batch(?:\s*no)?|lot(?:\s*no)?|b\.?\s*no)\.?\s*[:#\-]?\s*([A-Za-z0-9][A-Za-z0-9\-]{2,13})`)
	reBatchShape     = regexp.MustCompile(`\b[A-Z]{1,4}\d{3,9}\b`)
	reFreqTriple     = regexp.MustCompile(`\b\d\s*-\s*\d\s*-\s*\d\b`)
	reFreqWords      = regexp.MustCompile(`(?i)\b(?:once|twice|thrice|three\s+times|four\s+times)\s+(?:a\s+|per\s+)?(?:day|daily)\b|\b(?:every\s+\d{1,2}\s+hours?)\b|\bdaily\b`)
	reFreqAbbrev     = regexp.MustCompile(`(?i)\b(od|bd|bid|tds|tid|qid|qds|hs|sos|prn|stat)\b`)
	reDuration       = regexp.MustCompile(`(?i)\b(?:for|x)\s*(\d{1,3})\s*(days?|weeks?|months?)\b`)
	reQuantity       = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(tablets?|capsules?|strips?|bottles?|tubes?|sachets?|vials?|ampoules?|puffs?|units?)\b`)
)

// Base match confidences per pattern family.
const (
	confDosage       = 0.85
	confStrength     = 0.85
	confBatchKeyword = 0.90
	confBatchShape   = 0.45
	confForm         = 0.90
	confFreqExplicit = 0.80
	confFreqAbbrev   = 0.70
	confDuration     = 0.85
	confQuantity     = 0.70
	confNameBase     = 0.50
)

// nameStopWords never start or join a name-like run. Mostly label
// boilerplate and field keywords.
var nameStopWords = map[string]struct{}{
	"exp": {}, "expiry": {}, "expires": {}, "expire": {}, "expdate": {},
	"mfg": {}, "mfd": {}, "manufactured": {}, "manufacture": {}, "marketed": {},
	"packed": {}, "batch": {}, "lot": {}, "date": {}, "dosage": {}, "dose": {},
	"composition": {}, "contains": {}, "each": {}, "store": {}, "stored": {},
	"storage": {}, "keep": {}, "cool": {}, "place": {}, "away": {},
	"light": {}, "protect": {}, "children": {}, "reach": {}, "warning": {},
	"caution": {}, "read": {}, "label": {}, "directions": {}, "take": {},
	"before": {}, "best": {}, "medicine": {},
	"medicines": {}, "film": {}, "coated": {}, "sugar": {}, "free": {},
	"only": {}, "with": {}, "without": {}, "after": {}, "food": {},
	"water": {}, "schedule": {}, "price": {}, "india": {}, "made": {},
	// frequency and duration vocabulary, never part of a medicine name
	"daily": {}, "once": {}, "twice": {}, "thrice": {}, "times": {},
	"every": {}, "hour": {}, "hours": {}, "weekly": {}, "needed": {},
	"day": {}, "days": {}, "week": {}, "weeks": {}, "month": {}, "months": {},
	"od": {}, "bd": {}, "bid": {}, "tds": {}, "tid": {}, "qid": {},
	"qds": {}, "hs": {}, "sos": {}, "prn": {}, "stat": {},
	// pharmacopeia marks trail the name proper
	"ip": {}, "bp": {}, "usp": {},
}

// companySuffixes mark a name-like run as a manufacturer, and short ones
// may continue a run they could not start ("Cipla Ltd").
var companySuffixes = map[string]struct{}{
	"pharma": {}, "pharmaceuticals": {}, "pharmaceutical": {}, "labs": {},
	"laboratories": {}, "lab": {}, "ltd": {}, "limited": {}, "inc": {},
	"llc": {}, "gmbh": {}, "corp": {}, "corporation": {}, "co": {},
	"pvt": {}, "industries": {}, "healthcare": {}, "biotech": {},
	"lifesciences": {}, "remedies": {},
}

// pharmaSuffixes are word endings common in drug names; a run containing
// one gets a confidence boost.
var pharmaSuffixes = []string{
	"cillin", "mycin", "azole", "zole", "pril", "olol", "statin",
	"sartan", "dipine", "prazole", "cetam", "ine", "ide", "ol",
}

// ScanCandidates runs every pattern family over the normalized scan and
// returns surviving candidates plus the number dropped by the confidence
// floor. Output is ordered by line, start offset, then hint.
func ScanCandidates(norm NormScan, cfg Config) ([]entity.Candidate, int) {
	cfg.applyDefaults()

	var all []entity.Candidate
	for i := range norm.Lines {
		all = append(all, scanLine(norm.Lines[i], i)...)
	}

	all = scaleByTokenConfidence(norm, all)
	all = dedupeSameSpan(all)

	kept := all[:0]
	dropped := 0
	for _, c := range all {
		if c.Confidence < cfg.CandidateFloor {
			dropped++
			continue
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Line != kept[j].Line {
			return kept[i].Line < kept[j].Line
		}
		if kept[i].Start != kept[j].Start {
			return kept[i].Start < kept[j].Start
		}
		return kept[i].Hint < kept[j].Hint
	})
	return kept, dropped
}

func scanLine(line NormLine, lineIdx int) []entity.Candidate {
	var cands []entity.Candidate

	strengths := matchAll(line, lineIdx, reStrengthPerVol, constants.HintStrength, confStrength, 0)
	strengths = append(strengths, matchAll(line, lineIdx, reStrengthRatio, constants.HintStrength, confStrength, 0)...)

	// dosage matches inside a compound strength ("5ml" in "125mg/5ml")
	// are not standalone dosages
	var dosages []entity.Candidate
	for _, d := range matchAll(line, lineIdx, reDosage, constants.HintDosage, confDosage, 0) {
		if !coveredBy(d, strengths) {
			dosages = append(dosages, d)
		}
	}
	quantities := matchAll(line, lineIdx, reQuantity, constants.HintQuantity, confQuantity, 0)

	// a bare year inside an amount span ("2000 mg", "2020 tablets") is a
	// number, not a date
	amounts := make([]entity.Candidate, 0, len(strengths)+len(dosages)+len(quantities))
	amounts = append(amounts, strengths...)
	amounts = append(amounts, dosages...)
	amounts = append(amounts, quantities...)
	for _, d := range scanLineDates(line, lineIdx) {
		if _, layout, ok := ParseDate(d.Value); ok && layout == layoutYearOnly && coveredBy(d, amounts) {
			continue
		}
		cands = append(cands, d)
	}

	cands = append(cands, strengths...)
	cands = append(cands, dosages...)
	cands = append(cands, scanBatch(line, lineIdx)...)
	cands = append(cands, scanForms(line, lineIdx)...)

	cands = append(cands, matchAll(line, lineIdx, reFreqTriple, constants.HintFrequency, confFreqExplicit, 0)...)
	cands = append(cands, matchAll(line, lineIdx, reFreqWords, constants.HintFrequency, confFreqExplicit, 0)...)
	cands = append(cands, matchAll(line, lineIdx, reFreqAbbrev, constants.HintFrequency, confFreqAbbrev, 0)...)
	cands = append(cands, matchAll(line, lineIdx, reDuration, constants.HintDuration, confDuration, 0)...)
	cands = append(cands, quantities...)

	hasDosage := false
	for _, c := range cands {
		if c.Line == lineIdx && (c.Hint == constants.HintDosage || c.Hint == constants.HintStrength) {
			hasDosage = true
			break
		}
	}
	cands = append(cands, scanNameRuns(line, lineIdx, hasDosage)...)

	return cands
}

// matchAll emits one candidate per regexp match. group 0 means the whole
// match is the value; otherwise the numbered submatch is.
func matchAll(line NormLine, lineIdx int, re *regexp.Regexp, hint constants.CandidateHint, conf float64, group int) []entity.Candidate {
	var cands []entity.Candidate
	for _, m := range re.FindAllStringSubmatchIndex(line.Text, -1) {
		lo, hi := m[2*group], m[2*group+1]
		if lo < 0 {
			continue
		}
		cands = append(cands, entity.Candidate{
			Hint:       hint,
			Value:      line.Text[lo:hi],
			Line:       lineIdx,
			Start:      runeOffset(line.Text, lo),
			End:        runeOffset(line.Text, hi),
			Confidence: conf,
			Context:    line.Text,
		})
	}
	return cands
}

func coveredBy(c entity.Candidate, within []entity.Candidate) bool {
	for _, w := range within {
		if c.Line == w.Line && c.Start >= w.Start && c.End <= w.End {
			return true
		}
	}
	return false
}

// scanBatch finds batch/lot codes. A keyword match is strong; a bare
// letters-then-digits token is a weak shape-only signal.
func scanBatch(line NormLine, lineIdx int) []entity.Candidate {
	var cands []entity.Candidate
	var covered []entity.Candidate

	for _, m := range reBatchKeyword.FindAllStringSubmatchIndex(line.Text, -1) {
		lo, hi := m[2], m[3]
		if lo < 0 {
			continue
		}
		code := line.Text[lo:hi]
		if !validBatchCode(code) {
			continue
		}
		c := entity.Candidate{
			Hint:       constants.HintBatch,
			Value:      code,
			Line:       lineIdx,
			Start:      runeOffset(line.Text, lo),
			End:        runeOffset(line.Text, hi),
			Confidence: confBatchKeyword,
			Context:    line.Text,
		}
		cands = append(cands, c)
		covered = append(covered, c)
	}

	for _, c := range matchAll(line, lineIdx, reBatchShape, constants.HintBatch, confBatchShape, 0) {
		if validBatchCode(c.Value) && !coveredBy(c, covered) {
			cands = append(cands, c)
		}
	}
	return cands
}

// validBatchCode enforces the alphanumeric 4-12 shape with at least one
// digit. Hyphens are separators, not part of the length.
func validBatchCode(code string) bool {
	cleaned := strings.ReplaceAll(code, "-", "")
	if len(cleaned) < 4 || len(cleaned) > 12 {
		return false
	}
	return isAlphanumeric(cleaned) && hasDigit(cleaned)
}

// scanForms emits one candidate per token in the dose form vocabulary.
func scanForms(line NormLine, lineIdx int) []entity.Candidate {
	var cands []entity.Candidate
	for _, tok := range line.Tokens {
		word := stripPunct(tok.Text)
		if _, ok := constants.CanonicalizeForm(word); !ok {
			continue
		}
		cands = append(cands, entity.Candidate{
			Hint:       constants.HintForm,
			Value:      word,
			Line:       lineIdx,
			Start:      tok.Start,
			End:        tok.End,
			Confidence: confForm,
			Context:    line.Text,
		})
	}
	return cands
}

// scanNameRuns merges consecutive name-worthy tokens into runs. Top-of-scan
// position, all-caps, pharmaceutical suffixes, and a dosage on the same
// line all raise confidence.
func scanNameRuns(line NormLine, lineIdx int, lineHasDosage bool) []entity.Candidate {
	var cands []entity.Candidate
	tokens := line.Tokens

	i := 0
	for i < len(tokens) {
		if !nameRunStart(tokens[i], lineIdx) {
			i++
			continue
		}
		j := i + 1
		for j < len(tokens) && nameRunContinue(tokens[j], lineIdx) {
			j++
		}

		words := make([]string, 0, j-i)
		for k := i; k < j; k++ {
			words = append(words, stripPunct(tokens[k].Text))
		}
		value := strings.Join(words, " ")

		conf := confNameBase
		if lineIdx <= 1 {
			conf += 0.15
		}
		if isAllCaps(words[0]) {
			conf += 0.10
		}
		if hasPharmaSuffix(words) {
			conf += 0.10
		}
		if lineHasDosage {
			conf += 0.10
		}
		if conf > 0.95 {
			conf = 0.95
		}

		cands = append(cands, entity.Candidate{
			Hint:       constants.HintNameLike,
			Value:      value,
			Line:       lineIdx,
			Start:      tokens[i].Start,
			End:        tokens[j-1].End,
			Confidence: conf,
			Context:    line.Text,
		})
		i = j
	}
	return cands
}

func nameRunStart(tok Token, lineIdx int) bool {
	word := stripPunct(tok.Text)
	if !isAlphabetic(word) {
		return false
	}
	lower := strings.ToLower(word)
	if _, stop := nameStopWords[lower]; stop {
		return false
	}
	if _, isForm := constants.CanonicalizeForm(lower); isForm {
		return false
	}
	runes := []rune(word)
	if len(runes) >= 4 || (len(runes) >= 2 && isAllCaps(word)) {
		return unicode.IsUpper(runes[0]) || lineIdx <= 1
	}
	return false
}

func nameRunContinue(tok Token, lineIdx int) bool {
	if nameRunStart(tok, lineIdx) {
		return true
	}
	lower := strings.ToLower(stripPunct(tok.Text))
	_, ok := companySuffixes[lower]
	return ok
}

func isAllCaps(s string) bool {
	hasUpper := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

func hasPharmaSuffix(words []string) bool {
	for _, w := range words {
		lower := strings.ToLower(w)
		for _, suf := range pharmaSuffixes {
			if len(lower) > len(suf) && strings.HasSuffix(lower, suf) {
				return true
			}
		}
	}
	return false
}

// scaleByTokenConfidence multiplies candidate confidence by the mean OCR
// confidence of the tokens its span covers, when scores are present.
func scaleByTokenConfidence(norm NormScan, cands []entity.Candidate) []entity.Candidate {
	for i, c := range cands {
		line := norm.Lines[c.Line]
		if line.TokenConf == nil {
			continue
		}
		idx := overlappingTokens(line.Tokens, c.Start, c.End)
		if len(idx) == 0 {
			continue
		}
		sum := 0.0
		for _, t := range idx {
			sum += line.TokenConf[t]
		}
		cands[i].Confidence *= sum / float64(len(idx))
	}
	return cands
}

// dedupeSameSpan collapses candidates sharing an identical span, keeping
// the most confident. Partial overlaps are left alone: "30 tablets" is a
// quantity and "tablets" inside it is still the dose form.
func dedupeSameSpan(cands []entity.Candidate) []entity.Candidate {
	type key struct{ line, start, end int }
	best := make(map[key]int, len(cands))
	var out []entity.Candidate
	for _, c := range cands {
		k := key{c.Line, c.Start, c.End}
		if prev, ok := best[k]; ok {
			if c.Confidence > out[prev].Confidence {
				out[prev] = c
			}
			continue
		}
		best[k] = len(out)
		out = append(out, c)
	}
	return out
}
