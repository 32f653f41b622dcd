package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mediscan/mediscan/constants"
	"github.com/mediscan/mediscan/internal/common"
	"github.com/mediscan/mediscan/internal/entity"
)

var (
	reTabs       = regexp.MustCompile(`[\t\v\f]+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reDashes     = regexp.MustCompile(`[\x{2013}\x{2014}\x{2015}]`) // en/em/horizontal bar
	reZeroWidth  = regexp.MustCompile(`[\x{200B}\x{200C}\x{200D}\x{FEFF}]`)
)

// NormLine is one kept line of a normalized scan. Orig is the line's index
// in the RawScan, so output stays traceable to input after noise lines are
// dropped.
type NormLine struct {
	Text      string
	Orig      int
	Tokens    []Token
	TokenConf []float64 // aligned with Tokens; nil when absent or misaligned
}

// NormScan is the cleaned form of a RawScan.
type NormScan struct {
	Type  constants.ScanType
	Lines []NormLine
}

// NormalizeScan collapses noisy whitespace, unifies dashes, repairs OCR
// digit confusions, and drops lines with no letters or digits.
// Conservative: alphabetic words are never altered.
func NormalizeScan(scan entity.RawScan) (NormScan, error) {
	norm := NormScan{Type: scan.Type}

	confByLine := make(map[int][]float64, len(scan.TokenConfidence))
	for _, lc := range scan.TokenConfidence {
		confByLine[lc.Line] = lc.Scores
	}

	for i, raw := range scan.Lines {
		line := strings.TrimRight(raw, "\r")
		line = reZeroWidth.ReplaceAllString(line, "")
		line = reDashes.ReplaceAllString(line, "-")
		line = reTabs.ReplaceAllString(line, " ")
		line = reMultiSpace.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		if line == "" || !hasLetterOrDigit(line) {
			continue
		}

		words := strings.Split(line, " ")
		for w := range words {
			words[w] = repairToken(words[w])
		}
		text := strings.Join(words, " ")

		nl := NormLine{
			Text:   text,
			Orig:   i,
			Tokens: tokenize(text),
		}
		if scores, ok := confByLine[i]; ok && len(scores) == len(nl.Tokens) {
			nl.TokenConf = scores
		}
		norm.Lines = append(norm.Lines, nl)
	}

	if len(norm.Lines) == 0 {
		return norm, common.ErrEmptyScan
	}
	return norm, nil
}

// repairToken fixes OCR letter-for-digit confusions inside tokens that
// carry digits. Pure alphabetic words pass through untouched, so names
// like Olanzapine keep their O. A lone pipe between letters becomes I,
// restoring words the OCR split with a vertical bar.
func repairToken(tok string) string {
	if tok == "" || isAlphabetic(tok) {
		return tok
	}

	runes := []rune(tok)

	if hasDigit(tok) {
		for i, r := range runes {
			var repl rune
			switch r {
			case 'O', 'o':
				repl = '0'
			case 'l', 'I', '|':
				repl = '1'
			default:
				continue
			}
			prevDigit := i > 0 && unicode.IsDigit(runes[i-1])
			nextDigit := i+1 < len(runes) && unicode.IsDigit(runes[i+1])
			if prevDigit || nextDigit {
				runes[i] = repl
			}
		}
		return string(runes)
	}

	// no digits: only the bar-for-I confusion is safe to repair
	for i, r := range runes {
		if r != '|' {
			continue
		}
		prevLetter := i > 0 && unicode.IsLetter(runes[i-1])
		nextLetter := i+1 < len(runes) && unicode.IsLetter(runes[i+1])
		if prevLetter || nextLetter {
			runes[i] = 'I'
		}
	}
	return string(runes)
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
