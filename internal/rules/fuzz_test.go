package rules

import "testing"

func FuzzParseInlineRule(f *testing.F) {
	for _, s := range []string{
		"",
		"# comment",
		"MATCH,节点选择",
		"DOMAIN,example.com,DIRECT",
		"DOMAIN-SUFFIX,example.com,负载均衡",
		"GEOSITE,cn,DIRECT",
		"DST-PORT,25,REJECT",
		"IP-CIDR,1.2.3.0/24,DIRECT,no-resolve",
		"IP-CIDR6,2001:db8::/32,REJECT",
	} {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, line string) {
		r, err := ParseInlineRule(line)
		if err != nil {
			return
		}
		if r.Type == "" || r.Action == "" {
			t.Fatalf("incomplete rule %+v from %q", r, line)
		}
		if r.NoResolve && r.Type != "IP-CIDR" && r.Type != "IP-CIDR6" {
			t.Fatalf("no-resolve on non-cidr rule: type=%q", r.Type)
		}
		again, err := ParseInlineRule(r.String())
		if err != nil || again != r {
			t.Fatalf("String() does not reparse: %q -> %+v (%v)", r.String(), again, err)
		}
	})
}
