package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	pstrings "github.com/intel/test-framework-and-suites-for-android-sub002/pkg/strings"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown renders the campaign summary.
func Markdown(o Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Campaign %s\n\n", o.Campaign)
	fmt.Fprintf(&b, "**Verdict:** %s\n\n", o.Verdict)
	fmt.Fprintf(&b, "- Campaign file: `%s`\n", o.CampaignPath)
	fmt.Fprintf(&b, "- Hardware variant: %s\n", o.HwVariant)
	if !o.Start.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", o.Start.Format(time.RFC3339))
		fmt.Fprintf(&b, "- Duration: %s\n", o.End.Sub(o.Start).Round(time.Second))
	}
	if o.RemoteURL != "" {
		fmt.Fprintf(&b, "- Remote report: <%s>\n", o.RemoteURL)
	}
	fmt.Fprintf(&b, "- Executed: %d, pass rate %.2f%%\n\n", o.Metrics.TCExecutedCount, o.Metrics.PassRate)

	b.WriteString("| # | Test case | Verdict | Attempts | Comment |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, c := range o.Cases {
		fmt.Fprintf(&b, "| %d | %s | %s | %d | %s |\n",
			c.Index, escapeCell(c.Name), c.Verdict, c.Attempts, escapeCell(pstrings.FirstLine(c.Message)))
	}
	return b.String()
}

// WriteSummary writes summary.md and its HTML rendering.
func (t *Tree) WriteSummary(o Outcome) (string, string, error) {
	md := Markdown(o)
	mdPath := t.Path(SummaryMD)
	if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", SummaryMD, err)
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return "", "", fmt.Errorf("failed to render summary: %w", err)
	}
	page := fmt.Sprintf("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n%s</body></html>\n",
		o.Campaign, body.String())
	htmlPath := t.Path(SummaryHTML)
	if err := os.WriteFile(htmlPath, []byte(page), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write %s: %w", SummaryHTML, err)
	}
	return mdPath, htmlPath, nil
}

// PrintTable writes the per-case table and the verdict counts to w.
func PrintTable(w io.Writer, o Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("#"),
		text.FgHiCyan.Sprint("TEST CASE"),
		text.FgHiCyan.Sprint("VERDICT"),
		text.FgHiCyan.Sprint("ATTEMPTS"),
		text.FgHiCyan.Sprint("DURATION"),
		text.FgHiCyan.Sprint("COMMENT"),
	})
	for _, c := range o.Cases {
		t.AppendRow(table.Row{
			c.Index,
			c.Name,
			colorVerdict(c.Verdict),
			c.Attempts,
			c.Duration().Round(time.Millisecond),
			pstrings.Summary(c.Message, pstrings.SummaryWidth),
		})
	}

	counts := o.Counts()
	verdicts := make([]string, 0, len(counts))
	for v := range counts {
		verdicts = append(verdicts, string(v))
	}
	sort.Strings(verdicts)
	var parts []string
	for _, v := range verdicts {
		parts = append(parts, fmt.Sprintf("%s=%d", v, counts[api.Verdict(v)]))
	}
	t.AppendFooter(table.Row{"", "Total " + fmt.Sprint(len(o.Cases)), strings.Join(parts, " "), "", "", ""})
	t.Render()
}

func colorVerdict(v api.Verdict) string {
	switch {
	case v.IsSuccess():
		return text.FgHiGreen.Sprint(v)
	case v.IsFailure():
		return text.FgHiRed.Sprint(v)
	case v == api.VerdictBlocked, v == api.VerdictInterrupted:
		return text.FgHiYellow.Sprint(v)
	}
	return string(v)
}

// ColorOutcome renders a verdict for the one-line outcome.
func ColorOutcome(v api.Verdict) string { return colorVerdict(v) }


func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
