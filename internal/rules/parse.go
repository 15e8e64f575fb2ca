// Package rules parses and validates Clash classical rule lines.
package rules

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/John-Robertt/submerge/internal/model"
)

type RuleError struct {
	Code    string
	Message string
	Hint    string
	Cause   error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *RuleError) Unwrap() error { return e.Cause }

// ParseError is a RuleError located in a rule list.
type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ParseList parses lines in order and then validates the whole list: exactly
// one MATCH, placed last, and every action in targets. source names the list
// in errors (a file path or "embedded").
func ParseList(source string, lines []string, targets []string) ([]model.Rule, error) {
	out := make([]model.Rule, 0, len(lines))
	for i, raw := range lines {
		r, err := ParseInlineRule(raw)
		if err != nil {
			return nil, listError(source, i+1, raw, err)
		}
		out = append(out, r)
	}
	if err := Validate(out, targets); err != nil {
		line, snippet := 0, ""
		var le *lineError
		if errors.As(err, &le) {
			line, snippet = le.index+1, lines[le.index]
		}
		return nil, listError(source, line, snippet, err)
	}
	return out, nil
}

func listError(source string, line int, raw string, err error) error {
	var re *RuleError
	if !errors.As(err, &re) {
		re = &RuleError{Code: "RULE_PARSE_ERROR", Message: "invalid rule line", Cause: err}
	}
	return &ParseError{
		AppError: model.AppError{
			Code:    re.Code,
			Message: re.Message,
			Stage:   model.StageTemplate,
			URL:     source,
			Line:    line,
			Snippet: model.TruncateSnippet(raw, 200),
			Hint:    re.Hint,
		},
		Cause: re.Cause,
	}
}

// lineError attaches the offending rule index to a validation failure.
type lineError struct {
	index int
	*RuleError
}

func (e *lineError) Unwrap() error { return e.RuleError }

// Validate checks that rs ends with its only MATCH rule and that every action
// is DIRECT, REJECT or one of targets.
func Validate(rs []model.Rule, targets []string) error {
	matchCount := 0
	matchIndex := -1
	for i, r := range rs {
		if r.Type == "MATCH" {
			matchCount++
			matchIndex = i
		}
	}
	if matchCount != 1 {
		return &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: fmt.Sprintf("兜底规则 MATCH 数量不合法（got=%d, want=1）", matchCount),
		}
	}
	if matchIndex != len(rs)-1 {
		return &lineError{index: matchIndex, RuleError: &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: "兜底规则 MATCH 必须是最后一条",
		}}
	}

	allowed := make(map[string]struct{}, len(targets)+2)
	allowed[model.DirectTarget] = struct{}{}
	allowed[model.RejectTarget] = struct{}{}
	for _, t := range targets {
		allowed[t] = struct{}{}
	}
	for i, r := range rs {
		if _, ok := allowed[r.Action]; !ok {
			return &lineError{index: i, RuleError: &RuleError{
				Code:    "REFERENCE_NOT_FOUND",
				Message: fmt.Sprintf("规则 ACTION 引用不存在：%s", r.Action),
				Hint:    "allowed: DIRECT, REJECT, " + strings.Join(targets, ", "),
			}}
		}
	}
	return nil
}

// ParseInlineRule parses a single rule line. ACTION is required.
func ParseInlineRule(line string) (model.Rule, error) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if line == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "rule line is empty"}
	}
	if strings.HasPrefix(line, "#") {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "rule line is comment"}
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "规则类型不能为空"}
	}

	typ := strings.ToUpper(parts[0])
	switch typ {
	case "DOMAIN", "DOMAIN-SUFFIX", "DOMAIN-KEYWORD", "GEOIP", "GEOSITE", "DST-PORT":
		return parseSimple3(typ, parts)
	case "IP-CIDR", "IP-CIDR6":
		return parseIPCidr(typ, parts)
	case "MATCH":
		if len(parts) != 2 || parts[1] == "" {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: "MATCH 规则必须是 MATCH,<ACTION>",
			}
		}
		return model.Rule{Type: "MATCH", Action: parts[1]}, nil
	default:
		return model.Rule{}, &RuleError{
			Code:    "UNSUPPORTED_RULE_TYPE",
			Message: fmt.Sprintf("不支持的规则类型：%s", typ),
		}
	}
}

func parseSimple3(typ string, parts []string) (model.Rule, error) {
	if len(parts) != 3 {
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: "规则字段数量不合法",
			Hint:    "expected: TYPE,VALUE,ACTION",
		}
	}
	if parts[1] == "" || parts[2] == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "规则 VALUE/ACTION 不能为空"}
	}
	return model.Rule{Type: typ, Value: parts[1], Action: parts[2]}, nil
}

func parseIPCidr(typ string, parts []string) (model.Rule, error) {
	hint := "expected: " + typ + ",CIDR,ACTION[,no-resolve]"
	if len(parts) != 3 && len(parts) != 4 {
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: typ + " 规则字段数量不合法",
			Hint:    hint,
		}
	}
	if parts[2] == "" {
		return model.Rule{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: typ + " 的 ACTION 不能为空"}
	}
	if strings.EqualFold(parts[2], "no-resolve") {
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: typ + " 缺少 ACTION（不允许仅写 no-resolve）",
			Hint:    hint,
		}
	}
	noResolve := false
	if len(parts) == 4 {
		if !strings.EqualFold(parts[3], "no-resolve") {
			return model.Rule{}, &RuleError{
				Code:    "RULE_PARSE_ERROR",
				Message: typ + " 的可选项仅支持 no-resolve",
				Hint:    hint,
			}
		}
		noResolve = true
	}
	if err := validateCIDR(typ, parts[1]); err != nil {
		return model.Rule{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: typ + " 的 CIDR 不合法",
			Hint:    hint,
			Cause:   err,
		}
	}
	return model.Rule{Type: typ, Value: parts[1], Action: parts[2], NoResolve: noResolve}, nil
}

func validateCIDR(typ, s string) error {
	ip, _, err := net.ParseCIDR(s)
	if err != nil {
		return err
	}
	is4 := ip.To4() != nil
	if typ == "IP-CIDR" && !is4 {
		return errors.New("not an ipv4 cidr")
	}
	if typ == "IP-CIDR6" && is4 {
		return errors.New("not an ipv6 cidr")
	}
	return nil
}
