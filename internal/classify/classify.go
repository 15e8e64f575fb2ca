// Package classify decides how a fetched subscription body is encoded and
// turns it into normalized nodes.
package classify

import (
	"strings"

	"github.com/John-Robertt/submerge/internal/b64"
)

type Kind int

const (
	// KindLines is one proxy URI per line.
	KindLines Kind = iota
	// KindDocument is a full config document with a proxies list.
	KindDocument
	// KindBareList is a list of structured records without a document.
	KindBareList
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindBareList:
		return "bare-list"
	default:
		return "lines"
	}
}

const (
	markerLines   = 10
	compactWindow = 20
	minItems      = 2
)

var documentMarkers = []string{"proxies:", "proxy-groups:", "rules:", "mixed-port:", "port:"}

// Detection is the classifier verdict. Payload is the text to parse, which
// differs from the input when Base64 is set.
type Detection struct {
	Kind    Kind
	Payload string
	Base64  bool
}

// Detect classifies text. Only one level of base64 wrapping is removed.
func Detect(text string) Detection {
	d := Detection{Payload: strings.TrimSpace(text)}
	if decoded, ok := b64.Decode(d.Payload); ok && strings.TrimSpace(decoded) != "" {
		d.Payload = strings.TrimSpace(decoded)
		d.Base64 = true
	}
	lines := strings.Split(strings.ReplaceAll(d.Payload, "\r\n", "\n"), "\n")

	switch {
	case hasMarker(lines):
		d.Kind = KindDocument
	case countItems(lines) >= minItems:
		d.Kind = KindBareList
	case proxiesWithItems(lines):
		d.Kind = KindDocument
	default:
		d.Kind = KindLines
	}
	return d
}

// hasMarker looks for a top-level document key in the first non-blank,
// non-comment lines.
func hasMarker(lines []string) bool {
	seen := 0
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		for _, m := range documentMarkers {
			if strings.HasPrefix(l, m) {
				return true
			}
		}
		if seen++; seen >= markerLines {
			return false
		}
	}
	return false
}

// countItems counts record lines ("- {...}" or "- key: value") within the
// first compactWindow lines.
func countItems(lines []string) int {
	n := 0
	for i, l := range lines {
		if i >= compactWindow {
			break
		}
		if isCompact(l) || isDashKey(l) {
			n++
		}
	}
	return n
}

func isCompact(l string) bool {
	t := strings.TrimSpace(l)
	if !strings.HasPrefix(t, "-") {
		return false
	}
	body := strings.TrimSpace(t[1:])
	return strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}")
}

func isDashKey(l string) bool {
	t := strings.TrimSpace(l)
	if !strings.HasPrefix(t, "- ") {
		return false
	}
	return isKeyValue(strings.TrimSpace(t[2:]))
}

func isKeyValue(s string) bool {
	if strings.Contains(s, "://") {
		return false
	}
	k, _, ok := strings.Cut(s, ":")
	return ok && k != "" && !strings.ContainsAny(k, " \t{}[]")
}

// proxiesWithItems reports whether a proxies key appears anywhere and is
// followed by at least minItems list items or indented key: value lines.
func proxiesWithItems(lines []string) bool {
	for i, l := range lines {
		if strings.TrimSpace(l) != "proxies:" {
			continue
		}
		n := 0
		for _, next := range lines[i+1:] {
			t := strings.TrimSpace(next)
			if t == "" {
				continue
			}
			indented := next[0] == ' ' || next[0] == '\t'
			if strings.HasPrefix(t, "- ") || t == "-" || (indented && isKeyValue(t)) {
				n++
				if n >= minItems {
					return true
				}
				continue
			}
			if !indented {
				break
			}
		}
	}
	return false
}
