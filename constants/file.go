package constants

import "strings"

// AllowedExtensions holds the allowed file extensions for scan text ingestion.
// Scans arrive as plain-text OCR dumps, one file per scanned document.
var AllowedExtensions = map[string]struct{}{
	"txt": {},
	"ocr": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
