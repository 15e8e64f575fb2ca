package model

import (
	"strings"
	"unicode/utf8"
)

// Stages reported in AppError.Stage.
const (
	StageFetch     = "fetch_sub"
	StageDecode    = "decode_node"
	StageExtract   = "extract_config"
	StageTemplate  = "load_template"
	StageValidate  = "validate_request"
	StageAggregate = "aggregate"
	StageRender    = "render"
)

// AppError is the error payload shared by every stage of the pipeline and by
// the HTTP API error body.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage"`

	URL     string `json:"url,omitempty"`
	Line    int    `json:"line,omitempty"`    // 1-based; 0 means "not set"
	Snippet string `json:"snippet,omitempty"` // <= 200 chars
	Hint    string `json:"hint,omitempty"`
}

type ErrorResponse struct {
	Error AppError `json:"error"`
}

// TruncateSnippet flattens s to a single line of at most max bytes, cutting on
// a rune boundary.
func TruncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
