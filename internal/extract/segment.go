package extract

import (
	"regexp"

	"github.com/mediscan/mediscan/constants"
)

// unit is a contiguous range of normalized lines treated as one medicine.
type unit struct {
	start int // norm line index, inclusive
	end   int // inclusive
}

var reNumberedMarker = regexp.MustCompile(`^\(?\d{1,2}[.)\]]\s+`)

// segmentUnits splits a scan into per-medicine units. Labels are always a
// single unit. Prescriptions split on numbered list markers first, then on
// dose-form line prefixes ("Tab. Paracetamol"), then on gaps where blank
// lines were dropped during normalization. headerEnd is the count of
// leading lines that precede the first unit; fields found there are shared
// scan context and attach to every unit.
func segmentUnits(norm NormScan) (units []unit, headerEnd int) {
	last := len(norm.Lines) - 1
	if last < 0 {
		return nil, 0
	}
	if !norm.Type.IsPrescription() {
		return []unit{{start: 0, end: last}}, 0
	}

	markers := numberedMarkers(norm)
	if len(markers) == 0 {
		markers = formPrefixMarkers(norm)
	}
	if len(markers) == 0 {
		markers = gapMarkers(norm)
	}
	if len(markers) == 0 {
		return []unit{{start: 0, end: last}}, 0
	}

	headerEnd = markers[0]
	for i, m := range markers {
		end := last
		if i+1 < len(markers) {
			end = markers[i+1] - 1
		}
		units = append(units, unit{start: m, end: end})
	}
	return units, headerEnd
}

func numberedMarkers(norm NormScan) []int {
	var markers []int
	for i, line := range norm.Lines {
		if reNumberedMarker.MatchString(line.Text) {
			markers = append(markers, i)
		}
	}
	return markers
}

func formPrefixMarkers(norm NormScan) []int {
	var markers []int
	for i, line := range norm.Lines {
		if len(line.Tokens) < 2 {
			continue
		}
		if _, ok := constants.CanonicalizeForm(stripPunct(line.Tokens[0].Text)); ok {
			markers = append(markers, i)
		}
	}
	return markers
}

// gapMarkers falls back to grouping by dropped-line gaps: a jump in the
// original line numbering means at least one blank or noise line separated
// the groups.
func gapMarkers(norm NormScan) []int {
	var markers []int
	for i := 1; i < len(norm.Lines); i++ {
		if norm.Lines[i].Orig-norm.Lines[i-1].Orig >= 2 {
			markers = append(markers, i)
		}
	}
	if len(markers) == 0 {
		return nil
	}
	// the leading group is a unit too, not a header
	return append([]int{0}, markers...)
}

// unitIndex maps a normalized line to its unit, or -1 for header lines.
func unitIndex(units []unit, line int) int {
	for i, u := range units {
		if line >= u.start && line <= u.end {
			return i
		}
	}
	return -1
}
