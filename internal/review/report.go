package review

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// BuildReportMarkdown renders a reviewer-facing summary of one run.
// Remarks already explain every PENDING, so the report is actionable
// without reading logs.
func BuildReportMarkdown(projectID, bidderName string, result RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# 评审结果报告\n\n")
	fmt.Fprintf(&b, "- 项目: %s\n", projectID)
	fmt.Fprintf(&b, "- 投标人: %s\n", bidderName)
	fmt.Fprintf(&b, "- 评审批次: %s\n", result.RunID)
	fmt.Fprintf(&b, "- 时间: %s\n\n", time.Now().Format(time.RFC3339))

	s := result.Stats
	fmt.Fprintf(&b, "## 汇总\n\n")
	fmt.Fprintf(&b, "| 总计 | 通过 | 不通过 | 警告 | 待人工 |\n")
	fmt.Fprintf(&b, "| --- | --- | --- | --- | --- |\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n", s.Total, s.Pass, s.Fail, s.Warn, s.Pending)

	if len(s.ByEvaluator) > 0 {
		fmt.Fprintf(&b, "各评审环节处理条数：")
		first := true
		for _, name := range []string{EvaluatorOutOfScope, EvaluatorHardGate, EvaluatorQuantitative, EvaluatorSemantic, EvaluatorSemanticPending, EvaluatorConsistency} {
			if n := s.ByEvaluator[name]; n > 0 {
				if !first {
					b.WriteString("，")
				}
				fmt.Fprintf(&b, "%s %d", name, n)
				first = false
			}
		}
		b.WriteString("\n\n")
	}

	writeSection(&b, "不通过项", result.Items, StatusFail)
	writeSection(&b, "警告项", result.Items, StatusWarn)
	writeSection(&b, "待人工复核项", result.Items, StatusPending)
	writeSection(&b, "通过项", result.Items, StatusPass)
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []ReviewItem, status Status) {
	var matched []ReviewItem
	for _, item := range items {
		if item.Status == status {
			matched = append(matched, item)
		}
	}
	if len(matched) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, item := range matched {
		hard := ""
		if item.IsHard {
			hard = "（硬性条款）"
		}
		fmt.Fprintf(b, "- **%s**%s — %s\n", item.RequirementID, hard, item.Remark)
		if item.MatchedResponseID != "" {
			fmt.Fprintf(b, "  - 对应应答: %s（%s）\n", item.MatchedResponseID, item.Evaluator)
		} else {
			fmt.Fprintf(b, "  - 评审环节: %s\n", item.Evaluator)
		}
		for _, e := range item.Evidence {
			if e.Quote == "" {
				continue
			}
			fmt.Fprintf(b, "  - [%s] %s\n", e.Role, e.Quote)
		}
	}
	b.WriteString("\n")
}

// RenderReportHTML converts the markdown report into a standalone HTML
// fragment for preview surfaces.
func RenderReportHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render report html: %w", err)
	}
	return buf.String(), nil
}
