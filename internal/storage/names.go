package storage

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SafeName turns free text (names, job titles) into an ASCII token usable in
// download and archive entry names. Spaces become underscores; anything that
// is not a letter, digit, dot or dash is dropped.
func SafeName(str string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, str)
	if err != nil {
		folded = str
	}

	var b strings.Builder
	lastUnderscore := true
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.'):
			b.WriteRune(r)
			lastUnderscore = false
		case unicode.IsSpace(r) || r == '_':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_.")
	if out == "" {
		return "file"
	}
	return out
}

// JoinName builds an underscore separated name from parts, skipping empty ones.
func JoinName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, SafeName(p))
		}
	}
	return strings.Join(kept, "_")
}
