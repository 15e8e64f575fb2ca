package assemble

import (
	"testing"

	"github.com/John-Robertt/submerge/internal/compiler"
	"github.com/John-Robertt/submerge/internal/model"
)

func TestAssemble_NoNodesEmitsPlaceholder(t *testing.T) {
	res := Assemble(nil, compiler.Input{}, compiler.Options{})
	if !res.Placeholder {
		t.Fatalf("placeholder not flagged")
	}
	doc := res.Document
	if len(doc.Proxies) != 1 || doc.Proxies[0].Name() != compiler.PlaceholderName {
		t.Fatalf("proxies=%v", doc.Proxies)
	}
	if len(doc.ProxyGroups) != 3 {
		t.Fatalf("groups=%s", compiler.GroupSummary(doc.ProxyGroups))
	}
	for i, want := range model.BaseGroups {
		g := doc.ProxyGroups[i]
		if g.Name != want {
			t.Fatalf("group[%d]=%q, want %q", i, g.Name, want)
		}
		if len(g.Proxies) == 0 {
			t.Fatalf("group %q is empty", g.Name)
		}
		for _, p := range g.Proxies {
			switch p {
			case compiler.PlaceholderName, model.DirectTarget, model.GroupBalance, model.GroupAuto:
			default:
				t.Fatalf("group %q references %q", g.Name, p)
			}
		}
	}
	if doc.MixedPort != 7890 || len(doc.Rules) == 0 {
		t.Fatalf("template parts missing: %+v", doc)
	}
}

func TestAssemble_Nodes(t *testing.T) {
	n := model.Node{model.KeyName: "HK-a", model.KeyType: "ss", model.KeyServer: "h", model.KeyPort: 1, model.KeyUDP: true}
	res := Assemble(nil, compiler.Input{
		Nodes:   []model.Node{n, n},
		Labels:  []string{"HK"},
		ByLabel: map[string][]model.Node{"HK": {n, n}},
	}, compiler.Options{})
	if res.Placeholder || len(res.Document.Proxies) != 1 || res.Duplicates != 1 {
		t.Fatalf("res=%+v", res)
	}
	if len(res.Document.ProxyGroups) != 4 || res.Document.ProxyGroups[3].Name != "HK" {
		t.Fatalf("groups=%s", compiler.GroupSummary(res.Document.ProxyGroups))
	}
}
