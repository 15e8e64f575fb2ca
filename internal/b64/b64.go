// Package b64 decodes the loosely encoded base64 blobs found in subscription
// payloads and proxy URIs.
package b64

import (
	"encoding/base64"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Decode strips whitespace, re-pads s to a multiple of 4 and decodes it with
// the standard alphabet, then the URL-safe one. ok is false when neither
// alphabet accepts the input; callers treat that as "plain text", not as an
// error.
func Decode(s string) (text string, ok bool) {
	b, ok := DecodeBytes(s)
	if !ok {
		return "", false
	}
	return Text(b), true
}

// DecodeBytes is Decode without the text conversion.
func DecodeBytes(s string) ([]byte, bool) {
	s = strings.TrimRight(stripSpace(s), "=")
	if s == "" {
		return nil, false
	}
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}

// Text converts b to a string. A leading BOM is dropped and invalid UTF-8
// sequences are replaced with U+FFFD rather than rejected.
func Text(b []byte) string {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}

func stripSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
