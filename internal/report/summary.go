// Package report renders run summaries: the comment preamble placed on top of
// the generated document and an optional Markdown report.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/John-Robertt/submerge/internal/fetch"
	"github.com/John-Robertt/submerge/internal/model"
)

// Summary describes one aggregation run. Source URLs are only ever shown
// redacted to scheme://host.
type Summary struct {
	GeneratedAt time.Time
	Template    string

	Outcomes      []model.FetchOutcome
	Labels        []string
	LabelSuccess  map[string]int
	LabelFailures map[string][]string
	LabelNodes    map[string]int

	Collected   int // nodes decoded across all sources, before dedup
	Duplicates  int
	Truncated   int
	Renamed     int
	Emitted     int
	Groups      int
	Placeholder bool
}

func (s Summary) Succeeded() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

func (s Summary) Failed() int { return len(s.Outcomes) - s.Succeeded() }

const timeLayout = "2006-01-02 15:04:05 MST"

func labelOrDash(l string) string {
	if l == "" {
		return "-"
	}
	return l
}

// Preamble is the plain-text summary written as comments above the document.
func Preamble(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "submerge 生成于 %s\n", s.GeneratedAt.Format(timeLayout))
	fmt.Fprintf(&b, "订阅源 %d 个：成功 %d，失败 %d\n", len(s.Outcomes), s.Succeeded(), s.Failed())
	for _, o := range s.Outcomes {
		if o.Success {
			fmt.Fprintf(&b, "  [OK]   %s %s 节点 %d (%s)\n", labelOrDash(o.Label), fetch.Redact(o.URL), o.NodeCount, o.Format)
			continue
		}
		fmt.Fprintf(&b, "  [FAIL] %s %s %s\n", labelOrDash(o.Label), fetch.Redact(o.URL), o.Error)
	}
	for _, l := range s.Labels {
		fmt.Fprintf(&b, "标签 %s：成功 %d，失败 %d，节点 %d\n", l, s.LabelSuccess[l], len(s.LabelFailures[l]), s.LabelNodes[l])
	}
	fmt.Fprintf(&b, "节点：收集 %d，重复 %d，截断 %d，输出 %d\n", s.Collected, s.Duplicates, s.Truncated, s.Emitted)
	if s.Placeholder {
		b.WriteString("没有可用节点，已写入占位节点\n")
	}
	return b.String()
}
