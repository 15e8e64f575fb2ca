package rules

import (
	"errors"
	"testing"

	"github.com/John-Robertt/submerge/internal/model"
)

var groups = []string{model.GroupSelector, model.GroupBalance, model.GroupAuto}

func TestParseInlineRule_RequireAction(t *testing.T) {
	_, err := ParseInlineRule("DOMAIN,example.com")
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RuleError, got %T: %v", err, err)
	}
	if re.Code != "RULE_PARSE_ERROR" {
		t.Fatalf("code=%q, want=%q", re.Code, "RULE_PARSE_ERROR")
	}
}

func TestParseInlineRule_IPCIDR_NoResolveWithoutAction_Error(t *testing.T) {
	_, err := ParseInlineRule("IP-CIDR,1.1.1.1/32,no-resolve")
	var re *RuleError
	if !errors.As(err, &re) || re.Code != "RULE_PARSE_ERROR" {
		t.Fatalf("err=%v", err)
	}
}

func TestParseInlineRule_UnsupportedType(t *testing.T) {
	_, err := ParseInlineRule("PROCESS-NAME,WeChat,DIRECT")
	var re *RuleError
	if !errors.As(err, &re) || re.Code != "UNSUPPORTED_RULE_TYPE" {
		t.Fatalf("err=%v", err)
	}
}

func TestParseInlineRule_Forms(t *testing.T) {
	tests := []struct {
		in   string
		want model.Rule
	}{
		{"domain-suffix, google.com , 节点选择", model.Rule{Type: "DOMAIN-SUFFIX", Value: "google.com", Action: "节点选择"}},
		{"GEOIP,CN,DIRECT", model.Rule{Type: "GEOIP", Value: "CN", Action: "DIRECT"}},
		{"IP-CIDR,10.0.0.0/8,DIRECT,no-resolve", model.Rule{Type: "IP-CIDR", Value: "10.0.0.0/8", Action: "DIRECT", NoResolve: true}},
		{"IP-CIDR6,fe80::/10,DIRECT", model.Rule{Type: "IP-CIDR6", Value: "fe80::/10", Action: "DIRECT"}},
		{"MATCH,节点选择", model.Rule{Type: "MATCH", Action: "节点选择"}},
	}
	for _, tt := range tests {
		got, err := ParseInlineRule(tt.in)
		if err != nil {
			t.Fatalf("ParseInlineRule(%q) err=%v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseInlineRule(%q)=%+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseInlineRule_CIDRFamily(t *testing.T) {
	for _, in := range []string{"IP-CIDR,fe80::/10,DIRECT", "IP-CIDR6,10.0.0.0/8,DIRECT", "IP-CIDR,10.0.0.300/8,DIRECT"} {
		if _, err := ParseInlineRule(in); err == nil {
			t.Fatalf("ParseInlineRule(%q) expected error", in)
		}
	}
}

func TestParseList_OK(t *testing.T) {
	lines := []string{"DOMAIN-SUFFIX,local,DIRECT", "GEOIP,CN,DIRECT", "MATCH,节点选择"}
	got, err := ParseList("embedded", lines, groups)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[2].String() != "MATCH,节点选择" {
		t.Fatalf("rules=%+v", got)
	}
}

func TestParseList_Errors(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		code     string
		wantLine int
	}{
		{"no match", []string{"GEOIP,CN,DIRECT"}, "RULE_PARSE_ERROR", 0},
		{"two matches", []string{"MATCH,DIRECT", "MATCH,DIRECT"}, "RULE_PARSE_ERROR", 0},
		{"match not last", []string{"MATCH,DIRECT", "GEOIP,CN,DIRECT"}, "RULE_PARSE_ERROR", 1},
		{"unknown action", []string{"GEOIP,CN,PROXY", "MATCH,DIRECT"}, "REFERENCE_NOT_FOUND", 1},
		{"bad line", []string{"GEOIP,CN,DIRECT", "DOMAIN,,DIRECT", "MATCH,DIRECT"}, "RULE_PARSE_ERROR", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseList("base.yaml", tt.lines, groups)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if pe.AppError.Code != tt.code || pe.AppError.Line != tt.wantLine {
				t.Fatalf("code=%q line=%d, want %q/%d", pe.AppError.Code, pe.AppError.Line, tt.code, tt.wantLine)
			}
			if pe.AppError.Stage != model.StageTemplate || pe.AppError.URL != "base.yaml" {
				t.Fatalf("app error=%+v", pe.AppError)
			}
		})
	}
}
