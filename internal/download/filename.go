// internal/download/filename.go
package download

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

const maxNameRunes = 120

// invalidNameChars are rejected by at least one supported filesystem.
const invalidNameChars = `\/:*?"<>|`

// SanitizeName turns a derived display name into a safe filename base.
// Invalid characters collapse to spaces, runs of whitespace collapse to one
// space, and overlong names are truncated on a rune boundary. An empty
// result falls back to the content identifier, and failing that to a random
// token, so a download never ends up with an empty name.
func SanitizeName(name, fallback string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(invalidNameChars, r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	cleaned = strings.Trim(cleaned, " .")

	if runes := []rune(cleaned); len(runes) > maxNameRunes {
		cleaned = strings.TrimSpace(string(runes[:maxNameRunes]))
	}

	if cleaned != "" {
		return cleaned
	}
	if fallback != "" {
		return fallback
	}
	return uuid.NewString()[:8]
}
