package pivot

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/KaramelBytes/rowloom-cli/internal/csvtext"
)

// Output formats accepted by Render.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// RenderOptions controls how a table is written.
type RenderOptions struct {
	Format string
	// Totals appends a total column and a total row.
	Totals bool
	// Corner labels the header cell above the row labels.
	Corner string
}

// Render writes t to w in the requested format.
func Render(w io.Writer, t *Table, opt RenderOptions) error {
	switch strings.ToLower(opt.Format) {
	case "", FormatTable:
		return renderTable(w, t, opt)
	case FormatMarkdown, "md":
		_, err := io.WriteString(w, t.Markdown(opt))
		return err
	case FormatCSV:
		return renderCSV(w, t, opt)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	default:
		return fmt.Errorf("unsupported format: %s (use table|markdown|csv|json)", opt.Format)
	}
}

// records lays the table out as header + body rows of display strings.
func (t *Table) records(opt RenderOptions) [][]string {
	head := append([]string{opt.Corner}, t.ColHeaders...)
	if opt.Totals {
		head = append(head, "Total")
	}
	out := [][]string{head}
	for _, rk := range t.RowHeaders {
		line := []string{rk}
		for _, ck := range t.ColHeaders {
			line = append(line, formatNumber(t.Cell(rk, ck)))
		}
		if opt.Totals {
			line = append(line, formatNumber(t.RowTotal(rk)))
		}
		out = append(out, line)
	}
	if opt.Totals {
		line := []string{"Total"}
		for _, ck := range t.ColHeaders {
			line = append(line, formatNumber(t.ColTotal(ck)))
		}
		line = append(line, formatNumber(t.GrandTotal()))
		out = append(out, line)
	}
	return out
}

func renderTable(w io.Writer, t *Table, opt RenderOptions) error {
	if len(t.RowHeaders) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	recs := t.records(opt)
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(toRow(recs[0]))
	body := recs[1:]
	if opt.Totals {
		body = recs[1 : len(recs)-1]
	}
	for _, r := range body {
		tw.AppendRow(toRow(r))
	}
	if opt.Totals {
		tw.AppendFooter(toRow(recs[len(recs)-1]))
	}
	tw.Render()
	return nil
}

func renderCSV(w io.Writer, t *Table, opt RenderOptions) error {
	for _, r := range t.records(opt) {
		if _, err := fmt.Fprintln(w, csvtext.FormatRecord(r)); err != nil {
			return err
		}
	}
	return nil
}

// Markdown renders the table as a pipe table.
func (t *Table) Markdown(opt RenderOptions) string {
	var b strings.Builder
	recs := t.records(opt)
	for i, r := range recs {
		cells := make([]string, len(r))
		for j, c := range r {
			cells[j] = safeCell(c)
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
		if i == 0 {
			seps := make([]string, len(r))
			for j := range seps {
				seps[j] = "---"
			}
			b.WriteString("| ")
			b.WriteString(strings.Join(seps, " | "))
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func toRow(rec []string) table.Row {
	row := make(table.Row, len(rec))
	for i, v := range rec {
		row[i] = v
	}
	return row
}

func formatNumber(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func safeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
