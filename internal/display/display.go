// Package display renders job events and result tables to a terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/sells-group/serp-scraper/internal/model"
)

const barWidth = 30

// MaxCell caps the width of a table cell.
const MaxCell = 60

// Renderer writes human-readable output for one job.
type Renderer struct {
	w io.Writer
}

// New creates a Renderer writing to w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Event prints one line for ev. Result events print nothing; call Table.
func (r *Renderer) Event(ev model.Event) {
	switch ev.Kind {
	case model.EventKeyword:
		_, _ = fmt.Fprintf(r.w, "[%s] %s\n", colorCyan("KEYWORD"), ev.Keyword)
	case model.EventProgress:
		_, _ = fmt.Fprintf(r.w, "[%s] %s\n", colorGreen("PROGRESS"), Bar(ev.Progress.Percent()))
	case model.EventError:
		_, _ = fmt.Fprintf(r.w, "[%s] %s\n", colorRed("ERROR"), ev.Message)
	case model.EventFinished:
		label := colorGreen(strings.ToUpper(string(ev.State)))
		if ev.State != model.JobStateCompleted {
			label = colorYellow(strings.ToUpper(string(ev.State)))
		}
		_, _ = fmt.Fprintf(r.w, "[%s] %s\n", label, Bar(100))
	}
}

// Bar draws a fixed-width progress bar with its percentage.
func Bar(pct int) string {
	pct = max(0, min(pct, 100))
	filled := pct * barWidth / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat("-", barWidth-filled), pct)
}

// Table prints rows under the URL / TITLE / DESCRIPTION / KEYWORD header,
// prefixed with the row index used by export selection.
func (r *Renderer) Table(rows []model.ResultRow) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(r.w, "No results.")
		return
	}

	tw := tabwriter.NewWriter(r.w, 0, 0, 2, ' ', 0)
	header := make([]string, len(model.ResultColumns))
	for i, c := range model.ResultColumns {
		header[i] = colorBold(c)
	}
	_, _ = fmt.Fprintf(tw, "#\t%s\n", strings.Join(header, "\t"))
	for i, row := range rows {
		cells := row.Record()
		for j := range cells {
			cells[j] = truncate(cells[j], MaxCell)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\n", i, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(r.w, "%d rows\n", len(rows))
}

// truncate flattens whitespace and shortens s to n runes.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
