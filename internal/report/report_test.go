package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/submerge/internal/model"
)

func sampleSummary() Summary {
	return Summary{
		GeneratedAt: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC),
		Template:    "embedded",
		Outcomes: []model.FetchOutcome{
			{URL: "https://a.example.com/api/v1/client/subscribe?token=SECRET", Label: "Home", Success: true, NodeCount: 12, Format: "lines", Attempts: 1},
			{URL: "https://b.example.com/sub/SECRET", Label: "Home", Error: "timed out", Attempts: 3},
			{URL: "https://c.example.com/x", Success: true, NodeCount: 3, Format: "document", Attempts: 1},
		},
		Labels:        []string{"Home"},
		LabelSuccess:  map[string]int{"Home": 1},
		LabelFailures: map[string][]string{"Home": {"timed out"}},
		LabelNodes:    map[string]int{"Home": 12},
		Collected:     15,
		Duplicates:    2,
		Emitted:       13,
		Groups:        4,
	}
}

func TestPreamble(t *testing.T) {
	got := Preamble(sampleSummary())
	for _, want := range []string{
		"submerge 生成于 2026-10-16 08:00:00 UTC\n",
		"订阅源 3 个：成功 2，失败 1\n",
		"  [OK]   Home https://a.example.com 节点 12 (lines)\n",
		"  [FAIL] Home https://b.example.com timed out\n",
		"  [OK]   - https://c.example.com 节点 3 (document)\n",
		"标签 Home：成功 1，失败 1，节点 12\n",
		"节点：收集 15，重复 2，截断 0，输出 13\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("preamble missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "SECRET") {
		t.Fatalf("preamble leaks url path or query:\n%s", got)
	}
}

func TestPreamble_Placeholder(t *testing.T) {
	s := Summary{GeneratedAt: time.Unix(0, 0).UTC(), Placeholder: true, Emitted: 1}
	if got := Preamble(s); !strings.Contains(got, "占位节点") {
		t.Fatalf("preamble=%s", got)
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, sampleSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# submerge 运行报告", "## 订阅源", "## 标签统计", "`https://b.example.com`", "timed out", "[!WARNING]", "```mermaid", "Home：timed out"} {
		if !strings.Contains(out, want) {
			t.Fatalf("markdown missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "SECRET") {
		t.Fatalf("markdown leaks url path or query")
	}
}
