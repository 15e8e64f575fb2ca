// Package extract pulls candidate proxy records out of Clash style YAML: a
// full config document carrying a proxies list, or a bare list of records in
// compact ("- {k: v}") or indented ("- k: v" followed by "  k: v") form.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/submerge/internal/model"
)

type ExtractError struct {
	AppError model.AppError
	Cause    error
}

func (e *ExtractError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ExtractError) Unwrap() error { return e.Cause }

func newExtractError(code, message, snippet string, cause error) error {
	return &ExtractError{
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   model.StageExtract,
			Snippet: model.TruncateSnippet(snippet, 200),
		},
		Cause: cause,
	}
}

// Result is the outcome of one extraction. Dropped counts records that were
// discarded for lacking name, server or type.
type Result struct {
	Nodes   []model.Node
	Dropped int
}

// Document extracts the proxies list of a full config document. Text that is
// not valid YAML is retried as a bare list.
func Document(text, label string) (Result, error) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		res := BareList(text, label)
		if len(res.Nodes) == 0 && res.Dropped == 0 {
			return res, newExtractError("CONFIG_YAML_ERROR", "配置文件 YAML 解析失败", text, err)
		}
		return res, nil
	}
	raw, ok := doc["proxies"]
	if !ok {
		return Result{}, newExtractError("CONFIG_NO_PROXIES", "配置文件缺少 proxies 字段", text, nil)
	}
	items, ok := raw.([]any)
	if !ok {
		return Result{}, newExtractError("CONFIG_NO_PROXIES", "proxies 字段不是列表", text, nil)
	}

	var res Result
	for _, item := range items {
		m, ok := toStringMap(deepcopy.Copy(item))
		if !ok {
			res.Dropped++
			continue
		}
		res.add(m, label)
	}
	return res, nil
}

// BareList extracts records from a list that is not wrapped in a document.
// Lines outside any record are ignored.
func BareList(text, label string) Result {
	var (
		res    Result
		block  []string
		indent int
	)
	flush := func() {
		if len(block) == 0 {
			return
		}
		if m, ok := parseBlock(block); ok {
			res.add(m, label)
		} else {
			res.Dropped++
		}
		block = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		ind := len(line) - len(strings.TrimLeft(line, " \t"))

		if isItem(trimmed) && (block == nil || ind <= indent) {
			flush()
			body := strings.TrimSpace(trimmed[1:])
			if strings.HasPrefix(body, "{") {
				if m, ok := parseCompact(body); ok {
					res.add(m, label)
				} else {
					res.Dropped++
				}
				continue
			}
			block = []string{line}
			indent = ind
			continue
		}
		if block != nil && ind > indent {
			block = append(block, line)
			continue
		}
		flush()
	}
	flush()
	return res
}

func isItem(trimmed string) bool {
	return trimmed == "-" || strings.HasPrefix(trimmed, "- ")
}

func (r *Result) add(m map[string]any, label string) {
	for _, k := range []string{model.KeyName, model.KeyServer, model.KeyType} {
		if model.IsEmpty(m[k]) {
			r.Dropped++
			return
		}
	}
	name := fmt.Sprint(m[model.KeyName])
	if label = strings.TrimSpace(label); label != "" {
		name = label + "-" + name
	}
	m[model.KeyName] = name
	r.Nodes = append(r.Nodes, model.Node(m))
}

// parseCompact parses one inline mapping such as
// "{name: a, type: ss, server: 1.2.3.4, port: 443}".
func parseCompact(body string) (map[string]any, bool) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(body), &doc); err == nil {
		if m, ok := fromYAML(&doc).(map[string]any); ok {
			return m, true
		}
	}
	return looseCompact(body)
}

// parseBlock parses the lines of one indented record, the first of which
// carries the dash.
func parseBlock(lines []string) (map[string]any, bool) {
	first := lines[0]
	pad := len(first) - len(strings.TrimLeft(first, " \t"))
	var b strings.Builder
	for _, l := range lines {
		if len(l) >= pad {
			l = l[pad:]
		}
		b.WriteString(l)
		b.WriteByte('\n')
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(b.String()), &doc); err == nil {
		if seq, ok := fromYAML(&doc).([]any); ok && len(seq) == 1 {
			if m, ok := seq[0].(map[string]any); ok {
				return m, true
			}
		}
	}
	return looseBlock(lines)
}

// fromYAML converts a yaml.Node tree into plain values. Unquoted scalars are
// coerced with Coerce; quoted scalars stay strings.
func fromYAML(n *yaml.Node) any {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return fromYAML(n.Content[0])
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[n.Content[i].Value] = fromYAML(n.Content[i+1])
		}
		return m
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			s = append(s, fromYAML(c))
		}
		return s
	case yaml.ScalarNode:
		if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
			return n.Value
		}
		return Coerce(n.Value)
	}
	return nil
}

// Coerce applies the scalar typing used for bare records: true/false become
// booleans, all-digit strings become integers, null and ~ become nil, and
// everything else stays a string.
func Coerce(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "", "null", "~":
		return nil
	}
	if isDigits(s) {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func looseCompact(body string) (map[string]any, bool) {
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(strings.TrimPrefix(body, "{"), "}")
	m := make(map[string]any)
	for _, part := range strings.Split(body, ",") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		putLoose(m, k, v)
	}
	return m, len(m) > 0
}

func looseBlock(lines []string) (map[string]any, bool) {
	m := make(map[string]any)
	for i, l := range lines {
		l = strings.TrimSpace(l)
		if i == 0 {
			l = strings.TrimSpace(strings.TrimPrefix(l, "-"))
		}
		k, v, ok := strings.Cut(l, ":")
		if !ok {
			continue
		}
		putLoose(m, k, v)
	}
	return m, len(m) > 0
}

func putLoose(m map[string]any, k, v string) {
	k = strings.TrimSpace(k)
	v = strings.TrimSpace(v)
	if k == "" {
		return
	}
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		m[k] = v[1 : len(v)-1]
		return
	}
	m[k] = Coerce(v)
}

// toStringMap converts a decoded YAML mapping into map[string]any, recursing
// into nested mappings and sequences.
func toStringMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t, true
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m, true
	}
	return nil, false
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		m, _ := toStringMap(t)
		return m
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	}
	return v
}
