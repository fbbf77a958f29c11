package xlsxstream

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// escapeTokenRe matches text that already looks like an escape token.
var escapeTokenRe = regexp.MustCompile(`(?i)_x[0-9a-f]{4}_`)

// EscapeText escapes the characters XML cannot carry in inline strings using
// the _xhhhh_ token syntax. Tab and newline are kept. Substrings that already
// read as a token get their leading underscore escaped as _x005F first, so
// "_x0002_" and "\x02" never produce the same output.
func EscapeText(s string) string {
	if !needsEscape(s) {
		return s
	}
	s = escapeTokenRe.ReplaceAllStringFunc(s, func(m string) string {
		return "_x005F" + m
	})

	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); {
		if cp, ok := surrogateAt(s[i:]); ok {
			fmt.Fprintf(&b, "_x%04x_", cp)
			i += 3
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == utf8.RuneError && size == 1:
			b.WriteRune(utf8.RuneError)
		case illegalRune(r):
			fmt.Fprintf(&b, "_x%04x_", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func needsEscape(s string) bool {
	if escapeTokenRe.MatchString(s) {
		return true
	}
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || illegalRune(r) {
			return true
		}
		i += size
	}
	return false
}

func illegalRune(r rune) bool {
	switch {
	case r == '\t' || r == '\n':
		return false
	case r < 0x20:
		return true
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	case r == 0xFFFE || r == 0xFFFF:
		return true
	}
	return false
}

// surrogateAt decodes a UTF-16 surrogate encoded as three UTF-8 style bytes
// (ED A0..BF 80..BF), which Go strings can carry but utf8 rejects.
func surrogateAt(s string) (rune, bool) {
	if len(s) < 3 || s[0] != 0xED || s[1] < 0xA0 || s[1] > 0xBF || s[2] < 0x80 || s[2] > 0xBF {
		return 0, false
	}
	return rune(0xD000) | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F), true
}
