package util

import (
	"fmt"
	"strings"
	"time"
)

const maxSheetNameRunes = 100

var sheetNameReplacer = strings.NewReplacer(
	":", "_",
	`\`, "_",
	"/", "_",
	"?", "_",
	"*", "_",
	"[", "_",
	"]", "_",
)

// SanitizeSheetName turns a survey id into a name usable as a sheet or object prefix.
func SanitizeSheetName(name string, now time.Time) string {
	s := sheetNameReplacer.Replace(name)
	if r := []rune(s); len(r) > maxSheetNameRunes {
		s = string(r[:maxSheetNameRunes])
	}
	if strings.TrimSpace(s) == "" {
		s = fmt.Sprintf("sheet_%d", now.UnixMilli())
	}
	return s
}

// SanitizePostgresText strips NUL bytes and invalid UTF-8 before storing text.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}
