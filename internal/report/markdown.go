package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/John-Robertt/submerge/internal/fetch"
)

// WriteMarkdown writes the run report as GitHub flavored Markdown.
func WriteMarkdown(w io.Writer, s Summary) error {
	md := markdown.NewMarkdown(w)

	md.H1("submerge 运行报告")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"项目", "值"},
		Rows: [][]string{
			{"生成时间", s.GeneratedAt.Format(timeLayout)},
			{"模板", s.Template},
			{"订阅源", strconv.Itoa(len(s.Outcomes))},
			{"成功 / 失败", strconv.Itoa(s.Succeeded()) + " / " + strconv.Itoa(s.Failed())},
			{"收集节点", strconv.Itoa(s.Collected)},
			{"重复 / 截断 / 重命名", strconv.Itoa(s.Duplicates) + " / " + strconv.Itoa(s.Truncated) + " / " + strconv.Itoa(s.Renamed)},
			{"输出节点", strconv.Itoa(s.Emitted)},
			{"策略组", strconv.Itoa(s.Groups)},
		},
	})
	md.PlainText("")

	switch {
	case s.Placeholder:
		md.Caution("没有任何订阅源产出可用节点，输出中只有占位节点。")
	case s.Failed() > 0:
		md.Warningf("%d 个订阅源失败，详见下表。", s.Failed())
	default:
		md.Tip("全部订阅源均成功。")
	}
	md.PlainText("")

	writeSources(md, s)
	writeLabels(md, s)
	return md.Build()
}

func writeSources(md *markdown.Markdown, s Summary) {
	md.H2("订阅源")
	md.PlainText("")
	if len(s.Outcomes) == 0 {
		md.PlainText("没有订阅源。")
		md.PlainText("")
		return
	}
	rows := make([][]string, 0, len(s.Outcomes))
	for i, o := range s.Outcomes {
		status := "✅"
		detail := strconv.Itoa(o.NodeCount) + " 节点"
		if !o.Success {
			status = "❌"
			detail = o.Error
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			labelOrDash(o.Label),
			"`" + fetch.Redact(o.URL) + "`",
			status,
			o.Format,
			strconv.Itoa(o.Attempts),
			strconv.Itoa(o.Skipped),
			detail,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "标签", "来源", "状态", "格式", "尝试", "跳过", "结果"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeLabels(md *markdown.Markdown, s Summary) {
	if len(s.Labels) == 0 {
		return
	}
	md.H2("标签统计")
	md.PlainText("")

	rows := make([][]string, 0, len(s.Labels))
	chart := piechart.NewPieChart(io.Discard, piechart.WithTitle("节点来源分布"), piechart.WithShowData(true))
	charted := 0
	for _, l := range s.Labels {
		rows = append(rows, []string{
			l,
			strconv.Itoa(s.LabelSuccess[l]),
			strconv.Itoa(len(s.LabelFailures[l])),
			strconv.Itoa(s.LabelNodes[l]),
		})
		if n := s.LabelNodes[l]; n > 0 {
			chart.LabelAndIntValue(l, uint64(n))
			charted++
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"标签", "成功", "失败", "节点"},
		Rows:   rows,
	})
	md.PlainText("")

	if charted > 0 {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	var failures []string
	for _, l := range s.Labels {
		for _, reason := range s.LabelFailures[l] {
			failures = append(failures, l+"："+reason)
		}
	}
	if len(failures) > 0 {
		md.H3("失败原因")
		md.PlainText("")
		md.BulletList(failures...)
		md.PlainText("")
	}
}
