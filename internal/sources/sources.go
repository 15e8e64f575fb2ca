// Package sources scans a subscription source list: one URL per line, with
// optional "# label" annotation lines.
package sources

import (
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/John-Robertt/submerge/internal/model"
)

// MaxLabelRunes caps the length of a label.
const MaxLabelRunes = 20

// Parse returns the source entries of text in order. A label annotation
// applies to the next URL line only and is cleared by a blank line.
func Parse(text string) []model.SourceEntry {
	var (
		out   []model.SourceEntry
		label string
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			label = ""
		case strings.HasPrefix(line, "#"):
			label = Label(line)
		default:
			out = append(out, model.SourceEntry{URL: line, Label: label})
			label = ""
		}
	}
	return out
}

// Label derives a label from an annotation line: leading '#' and spaces are
// removed, the text is cut at the first whitespace or punctuation other than
// '-' and '_', and at most MaxLabelRunes runes are kept.
func Label(line string) string {
	s := strings.TrimLeft(strings.TrimSpace(line), "# \t")
	if i := strings.IndexFunc(s, isBoundary); i >= 0 {
		s = s[:i]
	}
	if r := []rune(s); len(r) > MaxLabelRunes {
		s = string(r[:MaxLabelRunes])
	}
	return s
}

func isBoundary(r rune) bool {
	if r == '-' || r == '_' {
		return false
	}
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}

// Labels returns the distinct non-empty labels of entries in first-seen
// order.
func Labels(entries []model.SourceEntry) []string {
	labels := lo.Map(entries, func(e model.SourceEntry, _ int) string { return e.Label })
	return lo.Uniq(lo.Compact(labels))
}
