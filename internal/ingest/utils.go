package ingest

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mediscan/mediscan/constants"
)

// AllowedExt checks if a file extension is in the allowed scan set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

var typeHeaderRe = regexp.MustCompile(`(?i)^#\s*type\s*:\s*(\S+)\s*$`)

// consumeTypeHeader reads an optional "# type: <value>" first line. An
// unrecognized value falls back to def and keeps the line as scan text.
func consumeTypeHeader(lines []string, def constants.ScanType) (constants.ScanType, []string) {
	for idx, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := typeHeaderRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			return def, lines
		}
		st, ok := constants.CanonicalizeScanType(m[1])
		if !ok {
			return def, lines
		}
		rest := make([]string, 0, len(lines)-1)
		rest = append(rest, lines[:idx]...)
		rest = append(rest, lines[idx+1:]...)
		return st, rest
	}
	return def, lines
}
