package model

import "strings"

type Rule struct {
	Type      string // e.g. "DOMAIN-SUFFIX", "IP-CIDR", "MATCH"
	Value     string // domain/suffix/keyword/cidr/cc/process
	Action    string // DIRECT/REJECT/group name
	NoResolve bool   // only meaningful for IP-CIDR/IP-CIDR6
}

// String renders the rule in Clash classical form.
func (r Rule) String() string {
	if r.Type == "MATCH" {
		return "MATCH," + r.Action
	}
	parts := []string{r.Type, r.Value, r.Action}
	if r.NoResolve && (r.Type == "IP-CIDR" || r.Type == "IP-CIDR6") {
		parts = append(parts, "no-resolve")
	}
	return strings.Join(parts, ",")
}
