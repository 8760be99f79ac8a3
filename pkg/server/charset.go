package server

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// legacyCharsets maps normalized charset names to single-byte code pages.
// UTF-8 is the default and needs no entry.
var legacyCharsets = map[string]*charmap.Charmap{
	"CP437":       charmap.CodePage437,
	"IBM437":      charmap.CodePage437,
	"CP850":       charmap.CodePage850,
	"ISO88591":    charmap.ISO8859_1,
	"LATIN1":      charmap.ISO8859_1,
	"ISO885915":   charmap.ISO8859_15,
	"WINDOWS1252": charmap.Windows1252,
	"CP1252":      charmap.Windows1252,
	"KOI8R":       charmap.KOI8R,
	"MACINTOSH":   charmap.Macintosh,
}

// normalizeToken upper-cases a charset name and drops separators.
func normalizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if r == '-' || r == '_' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// lookupCharset returns the code page for name, or nil for UTF-8.
func lookupCharset(name string) (*charmap.Charmap, error) {
	tok := normalizeToken(name)
	if tok == "" || tok == "UTF8" {
		return nil, nil
	}
	cm, ok := legacyCharsets[tok]
	if !ok {
		return nil, fmt.Errorf("unknown charset %q", name)
	}
	return cm, nil
}

// encodeWithCharmap converts UTF-8 text to cm. Runes the code page lacks
// become '?'.
func encodeWithCharmap(cm *charmap.Charmap, data []byte) []byte {
	if cm == nil {
		return data
	}
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if b, ok := cm.EncodeRune(r); ok {
			out = append(out, b)
		} else {
			out = append(out, '?')
		}
	}
	return out
}

// decodeWithCharmap converts client input from cm to UTF-8.
func decodeWithCharmap(cm *charmap.Charmap, data []byte) string {
	if cm == nil {
		return string(data)
	}
	var b strings.Builder
	for _, c := range data {
		b.WriteRune(cm.DecodeByte(c))
	}
	return b.String()
}
