// Package encoding implements the Encoding Detector (C2): identifying
// the text encoding of raw document bytes and decoding them to
// Unicode via a BOM-then-heuristics detection cascade.
package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Name identifies a detected encoding.
type Name string

const (
	UTF16LE    Name = "utf-16le"
	UTF16BE    Name = "utf-16be"
	MacRoman   Name = "macintosh"
	UTF8       Name = "utf-8"
	Windows1252 Name = "windows-1252"
	ISO88591   Name = "iso-8859-1"
)

// Detect runs the four-step cascade against buf and returns the name
// of the first matching encoding.
func Detect(buf []byte) Name {
	// Step 1: UTF-16 BOM.
	if len(buf) >= 2 {
		if buf[0] == 0xFF && buf[1] == 0xFE {
			return UTF16LE
		}
		if buf[0] == 0xFE && buf[1] == 0xFF {
			return UTF16BE
		}
	}

	// Step 2: null-byte heuristic for BOM-less UTF-16LE.
	if looksLikeUTF16LE(buf) {
		return UTF16LE
	}

	// Step 3: charset guess. statisticalGuess checks UTF-8 validity
	// and otherwise returns windows-1252; it does no byte-frequency
	// analysis.
	guess := statisticalGuess(buf)

	// Step 4: Mac Roman disambiguation overrides windows-1252/ISO-8859-1.
	if guess == Windows1252 || guess == ISO88591 {
		if looksLikeMacRoman(buf) {
			return MacRoman
		}
	}

	return guess
}

// looksLikeUTF16LE checks, in the first 100
// bytes, the null-byte count; if more than 20 and the odd-position nulls
// outnumber the even-position nulls by more than 2x, conclude
// BOM-less UTF-16LE (ASCII text encoded as UTF-16LE has a null byte
// after every ASCII code unit, i.e. at odd positions).
func looksLikeUTF16LE(buf []byte) bool {
	n := len(buf)
	if n > 100 {
		n = 100
	}
	var nulls, oddNulls, evenNulls int
	for i := 0; i < n; i++ {
		if buf[i] == 0 {
			nulls++
			if i%2 == 1 {
				oddNulls++
			} else {
				evenNulls++
			}
		}
	}
	return nulls > 20 && oddNulls > 2*evenNulls
}

// looksLikeMacRoman scans the first 1000 bytes for byte 0x8E or 0xD0
// adjacent to an ASCII byte.
func looksLikeMacRoman(buf []byte) bool {
	n := len(buf)
	if n > 1000 {
		n = 1000
	}
	isASCII := func(b byte) bool { return b >= 0x20 && b <= 0x7E }
	for i := 0; i < n; i++ {
		if buf[i] == 0x8E || buf[i] == 0xD0 {
			if (i > 0 && isASCII(buf[i-1])) || (i+1 < n && isASCII(buf[i+1])) {
				return true
			}
		}
	}
	return false
}

// statisticalGuess performs a lightweight statistical charset guess:
// valid UTF-8 wins outright; otherwise fall back to windows-1252,
// the common superset encoding for legacy single-byte text.
func statisticalGuess(buf []byte) Name {
	if len(buf) == 0 || utf8.Valid(buf) {
		return UTF8
	}
	// htmlindex exposes encodings by IANA name; windows-1252 is the
	// practical default for undetected single-byte legacy text.
	if _, err := htmlindex.Get("windows-1252"); err == nil {
		return Windows1252
	}
	return ISO88591
}

// Decode converts buf to a Unicode string using the detected
// encoding, falling back in order to ISO-8859-1, windows-1252, and
// UTF-8-with-replacement on failure.
func Decode(buf []byte) (string, error) {
	name := Detect(buf)

	switch name {
	case UTF16LE:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		if out, err := dec.Bytes(buf); err == nil {
			return string(out), nil
		}
	case UTF16BE:
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		if out, err := dec.Bytes(buf); err == nil {
			return string(out), nil
		}
	case UTF8:
		return string(buf), nil
	case MacRoman:
		if out, err := charmap.Macintosh.NewDecoder().Bytes(buf); err == nil {
			return string(out), nil
		}
	case Windows1252:
		if out, err := charmap.Windows1252.NewDecoder().Bytes(buf); err == nil {
			return string(out), nil
		}
	}

	// Fallback chain: ISO-8859-1, windows-1252, UTF-8 with replacement.
	if out, err := charmap.ISO8859_1.NewDecoder().Bytes(buf); err == nil {
		return string(out), nil
	}
	if out, err := charmap.Windows1252.NewDecoder().Bytes(buf); err == nil {
		return string(out), nil
	}
	return strings.ToValidUTF8(string(buf), "�"), nil
}
