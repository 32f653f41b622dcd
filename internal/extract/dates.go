package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/entity"
)

// Layout names reported by ParseDate.
const (
	layoutYMD        = "ymd"
	layoutDMY        = "dmy"
	layoutDMYShort   = "dmy-short"
	layoutDayMonName = "day-monthname"
	layoutMonName    = "monthname-year"
	layoutMonthYear  = "month-year"
	layoutMYShort    = "month-year-short"
	layoutYearOnly   = "year"
)

// Match confidence by precision: full dates beat month precision, a bare
// year is a weak signal.
var layoutConfidence = map[string]float64{
	layoutYMD:        0.95,
	layoutDMY:        0.95,
	layoutDMYShort:   0.95,
	layoutDayMonName: 0.95,
	layoutMonName:    0.85,
	layoutMonthYear:  0.85,
	layoutMYShort:    0.85,
	layoutYearOnly:   0.55,
}

var (
	reDateYMD        = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	reDateDMY        = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})\b`)
	reDateDMYShort   = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2})\b`)
	reDateDayMonName = regexp.MustCompile(`(?i)\b(\d{1,2})[\s\-/.]*([a-z]{3,9})[\s\-/.,]*(\d{2,4})\b`)
	reDateMonName    = regexp.MustCompile(`(?i)\b([a-z]{3,9})[\s\-/.,]+(\d{4})\b`)
	reDateMonthYear  = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{4})\b`)
	reDateMYShort    = regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{2})\b`)
	reDateYearOnly   = regexp.MustCompile(`\b(199\d|20\d{2})\b`)
)

// dateLayout pairs a pattern with its submatch parser. Scanning walks the
// table in order and suppresses later matches inside spans already taken,
// so "06/2026" never fires inside "30/06/2026".
type dateLayout struct {
	name string
	re   *regexp.Regexp
	// groups are the submatch strings, groups[0] the full match
	parse func(groups []string) (entity.Date, bool)
}

var dateLayouts = []dateLayout{
	{layoutYMD, reDateYMD, parseYMD},
	{layoutDMY, reDateDMY, parseDMY},
	{layoutDMYShort, reDateDMYShort, parseDMY},
	{layoutDayMonName, reDateDayMonName, parseDayMonName},
	{layoutMonName, reDateMonName, parseMonNameYear},
	{layoutMonthYear, reDateMonthYear, parseMonthYear},
	{layoutMYShort, reDateMYShort, parseMonthYear},
	{layoutYearOnly, reDateYearOnly, parseYearOnly},
}

func parseYMD(g []string) (entity.Date, bool) {
	y, _ := strconv.Atoi(g[1])
	m, _ := strconv.Atoi(g[2])
	d, _ := strconv.Atoi(g[3])
	if !plausibleYear(y) || !validMonth(m) || !validDay(y, time.Month(m), d) {
		return entity.Date{}, false
	}
	return entity.Date{Year: y, Month: time.Month(m), Day: d}, true
}

// parseDMY reads day/month/year, falling back to month/day/year when the
// middle group cannot be a month but the leading one can.
func parseDMY(g []string) (entity.Date, bool) {
	d, _ := strconv.Atoi(g[1])
	m, _ := strconv.Atoi(g[2])
	y := normalizeYear(atoiSafe(g[3]))
	if !validMonth(m) && validMonth(d) {
		d, m = m, d
	}
	if !plausibleYear(y) || !validMonth(m) || !validDay(y, time.Month(m), d) {
		return entity.Date{}, false
	}
	return entity.Date{Year: y, Month: time.Month(m), Day: d}, true
}

func parseDayMonName(g []string) (entity.Date, bool) {
	d, _ := strconv.Atoi(g[1])
	m, ok := monthByName(g[2])
	if !ok {
		return entity.Date{}, false
	}
	y := normalizeYear(atoiSafe(g[3]))
	if !plausibleYear(y) || !validDay(y, m, d) {
		return entity.Date{}, false
	}
	return entity.Date{Year: y, Month: m, Day: d}, true
}

func parseMonNameYear(g []string) (entity.Date, bool) {
	m, ok := monthByName(g[1])
	if !ok {
		return entity.Date{}, false
	}
	y := atoiSafe(g[2])
	if !plausibleYear(y) {
		return entity.Date{}, false
	}
	return entity.Date{Year: y, Month: m}, true
}

func parseMonthYear(g []string) (entity.Date, bool) {
	m, _ := strconv.Atoi(g[1])
	y := normalizeYear(atoiSafe(g[2]))
	if !validMonth(m) || !plausibleYear(y) {
		return entity.Date{}, false
	}
	return entity.Date{Year: y, Month: time.Month(m)}, true
}

// parseYearOnly defaults to December: for the dominant expiry reading a
// bare year means "valid through that year". The classifier flips it to
// January when the date turns out to be a manufacture date.
func parseYearOnly(g []string) (entity.Date, bool) {
	y := atoiSafe(g[1])
	if !plausibleYear(y) {
		return entity.Date{}, false
	}
	return entity.Date{Year: y, Month: time.December}, true
}

// ParseDate parses a whole token previously matched by the date scanner.
// It returns the layout name so callers can tell precision levels apart.
func ParseDate(s string) (entity.Date, string, bool) {
	s = strings.TrimSpace(s)
	for _, dl := range dateLayouts {
		g := dl.re.FindStringSubmatch(s)
		if g == nil || g[0] != s {
			continue
		}
		if d, ok := dl.parse(g); ok {
			return d, dl.name, true
		}
	}
	return entity.Date{}, "", false
}

// scanLineDates emits date candidates for one normalized line.
func scanLineDates(line NormLine, lineIdx int) []entity.Candidate {
	var cands []entity.Candidate
	var covered [][2]int

	overlapsCovered := func(start, end int) bool {
		for _, c := range covered {
			if start < c[1] && c[0] < end {
				return true
			}
		}
		return false
	}

	for _, dl := range dateLayouts {
		for _, m := range dl.re.FindAllStringSubmatchIndex(line.Text, -1) {
			start := runeOffset(line.Text, m[0])
			end := runeOffset(line.Text, m[1])
			if overlapsCovered(start, end) {
				continue
			}
			groups := submatchStrings(line.Text, m)
			if _, ok := dl.parse(groups); !ok {
				continue
			}
			covered = append(covered, [2]int{start, end})
			cands = append(cands, entity.Candidate{
				Hint:       constants.HintDate,
				Value:      groups[0],
				Line:       lineIdx,
				Start:      start,
				End:        end,
				Confidence: layoutConfidence[dl.name],
				Context:    line.Text,
			})
		}
	}
	return cands
}

func submatchStrings(s string, idx []int) []string {
	groups := make([]string, len(idx)/2)
	for i := range groups {
		lo, hi := idx[2*i], idx[2*i+1]
		if lo >= 0 {
			groups[i] = s[lo:hi]
		}
	}
	return groups
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// normalizeYear windows two-digit years: below 50 is 2000s, else 1900s.
func normalizeYear(y int) int {
	switch {
	case y < 50:
		return 2000 + y
	case y < 100:
		return 1900 + y
	default:
		return y
	}
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func validDay(y int, m time.Month, d int) bool {
	return d >= 1 && d <= daysIn(y, m)
}

func validMonth(m int) bool {
	return m >= 1 && m <= 12
}

func plausibleYear(y int) bool {
	return y >= 1990 && y <= 2099
}

func monthByName(word string) (time.Month, bool) {
	w := strings.ToLower(word)
	if len(w) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if w == name || strings.HasPrefix(name, w) {
			return m, true
		}
	}
	return 0, false
}
