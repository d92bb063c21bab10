package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/KaramelBytes/rowloom-cli/internal/dataimport"
	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
)

// Item layouts accepted by --keys.
const (
	keysRole   = "role"
	keysHeader = "header"
)

// buildOverride merges an optional mapping file with per-role flags and
// --type pairs. Flags win over the file. It returns nil when nothing was
// given so the guessed mapping is used as is.
func buildOverride(path string, roles map[mapping.Role]string, typePairs []string) (*mapping.Mapping, error) {
	var m *mapping.Mapping
	if path != "" {
		loaded, err := mapping.LoadFile(path)
		if err != nil {
			return nil, err
		}
		m = loaded
	}
	for _, r := range mapping.Roles {
		col, ok := roles[r]
		if !ok || col == "" {
			continue
		}
		if m == nil {
			m = &mapping.Mapping{}
		}
		if err := m.Set(r, col); err != nil {
			return nil, err
		}
	}
	types, err := parseTypePairs(typePairs)
	if err != nil {
		return nil, err
	}
	for col, t := range types {
		if m == nil {
			m = &mapping.Mapping{}
		}
		m.SetType(col, t)
	}
	return m, nil
}

// parseTypePairs reads column=type pairs such as "score=number".
func parseTypePairs(pairs []string) (map[string]mapping.ColumnType, error) {
	out := make(map[string]mapping.ColumnType, len(pairs))
	for _, p := range pairs {
		i := strings.LastIndex(p, "=")
		if i <= 0 {
			return nil, fmt.Errorf("invalid --type %q (use column=string|number)", p)
		}
		t, err := mapping.ParseType(p[i+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid --type %q: %w", p, err)
		}
		out[p[:i]] = t
	}
	return out, nil
}

// itemsPayload shapes plan items for output.
func itemsPayload(plan *dataimport.Plan, keys string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(keys)) {
	case "", keysRole:
		return plan.Items, nil
	case keysHeader:
		out := make([]map[string]any, len(plan.Items))
		for i, it := range plan.Items {
			out[i] = it.HeaderKeyed(plan.Mapping)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported --keys: %s (use role|header)", keys)
}

// renderMapping prints the role assignments as a table.
func renderMapping(w io.Writer, m mapping.Mapping) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Role", "Column", "Type"})
	for _, r := range mapping.Roles {
		col := m.Column(r)
		if col == "" {
			tw.AppendRow(table.Row{r, "(unset)", ""})
			continue
		}
		tw.AppendRow(table.Row{r, col, m.TypeOf(col)})
	}
	tw.Render()
}

// renderSample prints up to n rows of the raw table.
func renderSample(w io.Writer, headers []string, rows [][]string, n int) {
	if n > len(rows) {
		n = len(rows)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	head := make(table.Row, len(headers))
	for i, h := range headers {
		if h == "" {
			h = "(blank)"
		}
		head[i] = h
	}
	tw.AppendHeader(head)
	for _, r := range rows[:n] {
		row := make(table.Row, len(headers))
		for i := range headers {
			if i < len(r) {
				row[i] = r[i]
			} else {
				row[i] = ""
			}
		}
		tw.AppendRow(row)
	}
	tw.Render()
}
