package utils

import (
	"strings"
	"unicode/utf8"
)

// CleanText drops NUL bytes and invalid UTF-8 sequences from free text typed on the tablets.
// The result is safe for postgres text columns.
func CleanText(input string) string {
	if !strings.Contains(input, "\x00") && utf8.ValidString(input) {
		return input
	}

	cleaned := strings.ToValidUTF8(input, "")
	return strings.ReplaceAll(cleaned, "\x00", "")
}
