// Package uri holds the helpers shared by the per-scheme proxy URI decoders.
package uri

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/John-Robertt/submerge/internal/model"
)

// DecodeError reports why a single proxy URI could not be turned into a node.
type DecodeError struct {
	AppError model.AppError
	Cause    error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Reason is the short human readable failure reason.
func (e *DecodeError) Reason() string {
	if e == nil {
		return ""
	}
	return e.AppError.Message
}

// NewError builds a DecodeError for line. The snippet never carries the
// credential part of the URI.
func NewError(scheme, line, message string, cause error) error {
	return &DecodeError{
		AppError: model.AppError{
			Code:    "NODE_DECODE_ERROR",
			Message: message,
			Stage:   model.StageDecode,
			Snippet: model.TruncateSnippet(Redact(line), 200),
			Hint:    "scheme: " + scheme,
		},
		Cause: cause,
	}
}

// Redact replaces everything between the scheme and the last '@' with "***".
// Lines without '@' keep only the scheme.
func Redact(line string) string {
	scheme, rest, ok := strings.Cut(line, "://")
	if !ok {
		return "***"
	}
	rest, _, _ = strings.Cut(rest, "#")
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return scheme + "://***"
}

// Scheme returns the lower-cased scheme token of line and the text after
// "://".
func Scheme(line string) (scheme, rest string, ok bool) {
	scheme, rest, ok = strings.Cut(line, "://")
	if !ok || scheme == "" {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(scheme)), rest, true
}

// CutFragment splits off "#fragment" and returns it percent-decoded. A
// fragment that fails to decode is kept verbatim.
func CutFragment(s string) (rest, fragment string) {
	rest, frag, ok := strings.Cut(s, "#")
	if !ok {
		return s, ""
	}
	if dec, err := url.PathUnescape(frag); err == nil {
		frag = dec
	}
	frag = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == 0 {
			return -1
		}
		return r
	}, frag)
	return rest, strings.TrimSpace(frag)
}

// CutQuery splits off "?query".
func CutQuery(s string) (rest, query string) {
	rest, query, _ = strings.Cut(s, "?")
	return rest, query
}

// ParseQuery decodes an '&' separated query. Values are percent-decoded
// without turning '+' into a space; the first occurrence of a key wins and
// keys are matched case-insensitively.
func ParseQuery(q string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(q, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		if dk, err := url.PathUnescape(k); err == nil {
			k = dk
		}
		if dv, err := url.PathUnescape(v); err == nil {
			v = dv
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := out[k]; !dup {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

var (
	errEmptyHost = errors.New("empty host")
	errNoPort    = errors.New("missing port")
)

// HostPort parses "host:port", tolerating a trailing path and IPv6 brackets.
// The port must be numeric but is not range-checked.
func HostPort(s string) (string, int, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		i := strings.LastIndexByte(s, ':')
		if i < 0 {
			return "", 0, errNoPort
		}
		host, portStr = s[:i], s[i+1:]
	}
	host = strings.Trim(strings.TrimSpace(host), "[]")
	if host == "" {
		return "", 0, errEmptyHost
	}
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return "", 0, fmt.Errorf("port %q: %w", portStr, err)
	}
	return host, port, nil
}

// SplitUserinfo splits "user@host:port" at the last '@'.
func SplitUserinfo(s string) (user, hostport string, ok bool) {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return "", s, false
	}
	return s[:at], s[at+1:], true
}

// DisplayName applies the naming precedence shared by the URI schemes:
// label-fragment, label-TAG-host:port, fragment, TAG-host:port.
func DisplayName(label, fragment, tag, host string, port int) string {
	label = strings.TrimSpace(label)
	fallback := fmt.Sprintf("%s-%s:%d", tag, host, port)
	switch {
	case label != "" && fragment != "":
		return label + "-" + fragment
	case label != "":
		return label + "-" + fallback
	case fragment != "":
		return fragment
	default:
		return fallback
	}
}

// WithLabel prefixes name with label when label is set.
func WithLabel(label, name string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return name
	}
	return label + "-" + name
}

// Truthy reports whether a query flag is switched on.
func Truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// SplitList splits a comma separated query value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Transport fills network and ws-opts/grpc-opts from the v2ray style query
// keys shared by trojan and vless.
func Transport(n model.Node, q map[string]string) {
	switch network := strings.ToLower(q["type"]); network {
	case "ws":
		n["network"] = network
		opts := map[string]any{"path": q["path"]}
		if h := q["host"]; h != "" {
			opts["headers"] = map[string]any{"Host": h}
		}
		n["ws-opts"] = opts
	case "grpc":
		n["network"] = network
		n["grpc-opts"] = map[string]any{"grpc-service-name": q["servicename"]}
	case "", "tcp":
	default:
		n["network"] = network
	}
}
