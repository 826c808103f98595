package common

import (
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ounols/jekyll-news/internal/pipeline"
)

// RenderSummary prints one row per article followed by the totals.
func RenderSummary(w io.Writer, summary *pipeline.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Title", "Status", "Reason", "State", "File", "Duration"})

	for _, r := range summary.Results {
		file := ""
		if r.Outcome.Record != nil {
			file = r.Outcome.Record.FilePath
		}
		t.AppendRow(table.Row{
			r.Source,
			truncate(r.Article.Title, 50),
			r.Outcome.Status.String(),
			r.Outcome.Reason,
			r.Outcome.State.String(),
			file,
			r.Duration.Round(time.Millisecond).String(),
		})
	}

	reasons := summary.Reasons()
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.AppendFooter(table.Row{"", "", "", k, reasons[k]})
	}
	failed := make([]string, 0, len(summary.ListErrors))
	for id := range summary.ListErrors {
		failed = append(failed, id)
	}
	sort.Strings(failed)
	for _, id := range failed {
		t.AppendFooter(table.Row{id, "listing failed", "", summary.ListErrors[id].Error()})
	}
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
