package placement

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxFilenameLength bounds the part of a file name before its extension.
const MaxFilenameLength = 100

// FallbackName is used when a job has no usable title.
const FallbackName = "extracted"

// SanitizeFilename keeps letters, digits, spaces and ._- then trims
// surrounding whitespace and caps the name before its extension at
// MaxFilenameLength runes. Applying it twice changes nothing.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFC.String(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	clean := strings.TrimSpace(norm.NFC.String(b.String()))

	ext := filepath.Ext(clean)
	stem := strings.TrimSuffix(clean, ext)
	if utf8.RuneCountInString(stem) > MaxFilenameLength {
		stem = string([]rune(stem)[:MaxFilenameLength])
		clean = strings.TrimSpace(stem + ext)
	}
	return clean
}

// BuildFilename names the placed file for a title and output format.
func BuildFilename(title, format string) string {
	ext := "." + format
	base := strings.TrimSpace(title)
	if base == "" {
		base = FallbackName
	}

	name := SanitizeFilename(base + ext)
	if strings.TrimSpace(strings.TrimSuffix(name, ext)) == "" {
		name = FallbackName + ext
	}
	return name
}
