package sub

import (
	"errors"
	"reflect"
	"testing"

	"github.com/John-Robertt/submerge/internal/model"
	"github.com/John-Robertt/submerge/internal/sub/uri"
)

func TestSchemes(t *testing.T) {
	want := []string{"hy2", "hysteria2", "ss", "trojan", "vless", "vmess"}
	if got := Schemes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Schemes=%v, want %v", got, want)
	}
}

func TestLookup(t *testing.T) {
	for _, s := range Schemes() {
		if d, ok := Lookup(s); !ok || d == nil {
			t.Fatalf("Lookup(%q) missing", s)
		}
	}
	if _, ok := Lookup("socks5"); ok {
		t.Fatalf("Lookup(socks5) should miss")
	}
}

func TestDecodeLine_Dispatch(t *testing.T) {
	tests := []struct {
		line       string
		wantScheme string
		wantType   string
	}{
		{"ss://YWVzLTI1Ni1nY206cGFzcw==@1.2.3.4:8388#a", "ss", model.TypeSS},
		{"SS://YWVzLTI1Ni1nY206cGFzcw==@1.2.3.4:8388#a", "ss", model.TypeSS},
		{"trojan://pw@h.com:443#b", "trojan", model.TypeTrojan},
		{"vless://id@h.com:443#c", "vless", model.TypeVLESS},
		{"hy2://pw@h.com:443#d", "hy2", model.TypeHysteria2},
		{"hysteria2://pw@h.com:443#e", "hysteria2", model.TypeHysteria2},
	}
	for _, tt := range tests {
		n, scheme, err := DecodeLine(tt.line, "")
		if err != nil {
			t.Fatalf("DecodeLine(%q): %v", tt.line, err)
		}
		if scheme != tt.wantScheme || n.Type() != tt.wantType {
			t.Fatalf("DecodeLine(%q) scheme=%q type=%q", tt.line, scheme, n.Type())
		}
	}
}

func TestDecodeLine_Unsupported(t *testing.T) {
	for _, line := range []string{"socks5://h.com:1080", "just text", "://x"} {
		_, _, err := DecodeLine(line, "")
		var de *uri.DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("DecodeLine(%q) err=%v, want *uri.DecodeError", line, err)
		}
	}
}

func TestDecodeLine_RecoversPanic(t *testing.T) {
	decoders["boom"] = func(string, string) (model.Node, error) { panic("bad") }
	defer delete(decoders, "boom")

	n, scheme, err := DecodeLine("boom://x", "")
	if n != nil || scheme != "boom" {
		t.Fatalf("n=%v scheme=%q", n, scheme)
	}
	var de *uri.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err=%v, want *uri.DecodeError", err)
	}
}
