package m3u

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	lineEndings   = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	entityPattern = regexp.MustCompile(`&(amp|lt|gt|quot|#[0-9]+|#[xX][0-9a-fA-F]+);`)

	// Tried in order when valid UTF-8 text looks like it was decoded
	// with a single-byte charset somewhere upstream.
	redecodeCharmaps = []*charmap.Charmap{charmap.ISO8859_1, charmap.Windows1252}
)

// Normalize turns raw playlist bytes into UTF-8 text with "\n" line endings,
// no byte-order mark and the common HTML entities unescaped.
// Encoding repair is best-effort: anything that cannot be repaired is kept as is.
func Normalize(raw []byte) string {
	if decoded, _, err := transform.Bytes(xunicode.BOMOverride(transform.Nop), raw); err == nil {
		raw = decoded
	}
	text := repairEncoding(raw)
	text = strings.TrimPrefix(text, "\uFEFF")
	text = lineEndings.Replace(text)
	return UnescapeEntities(text)
}

// NormalizeString is Normalize for text that is already a Go string.
func NormalizeString(s string) string {
	return Normalize([]byte(s))
}

func repairEncoding(raw []byte) string {
	if !utf8.Valid(raw) {
		// Pure single-byte text (no multi-byte sequence at all) is most
		// likely Windows-1252; mixed content keeps its valid parts.
		if !hasMultiByteRune(raw) {
			if b, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
				return string(b)
			}
		}
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	}

	text := string(raw)
	if !looksMisdecoded(text) {
		return text
	}
	for _, cm := range redecodeCharmaps {
		b, err := cm.NewEncoder().String(text)
		if err != nil || b == text || !utf8.ValidString(b) {
			continue
		}
		return b
	}
	return text
}

func hasMultiByteRune(b []byte) bool {
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if size > 1 && r != utf8.RuneError {
			return true
		}
		b = b[size:]
	}
	return false
}

// looksMisdecoded reports replacement characters or a run of three or more
// runes from the U+0080..U+00FF block.
func looksMisdecoded(s string) bool {
	run := 0
	for _, r := range s {
		switch {
		case r == utf8.RuneError:
			return true
		case r >= 0x80 && r <= 0xFF:
			run++
			if run >= 3 {
				return true
			}
		default:
			run = 0
		}
	}
	return false
}

// UnescapeEntities replaces &amp; &lt; &gt; &quot; &#39; and numeric
// character references in a single pass. Invalid references are left alone.
func UnescapeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityPattern.ReplaceAllStringFunc(s, func(ref string) string {
		body := ref[1 : len(ref)-1]
		switch body {
		case "amp":
			return "&"
		case "lt":
			return "<"
		case "gt":
			return ">"
		case "quot":
			return `"`
		}
		var (
			n   int64
			err error
		)
		if body[1] == 'x' || body[1] == 'X' {
			n, err = strconv.ParseInt(body[2:], 16, 32)
		} else {
			n, err = strconv.ParseInt(body[1:], 10, 32)
		}
		if err != nil || n == 0 || !utf8.ValidRune(rune(n)) {
			return ref
		}
		return string(rune(n))
	})
}
