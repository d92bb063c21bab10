package pivot

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
)

// KeySeparator joins the values of several grouping fields into one label.
const KeySeparator = " / "

// Row is one generic input record keyed by field name.
type Row map[string]any

// Table is a dense cross-tab of summed values. Row and column headers are
// sorted; combinations never seen in the input read as 0.
type Table struct {
	RowHeaders []string
	ColHeaders []string
	cells      map[string]map[string]float64
}

// Aggregate groups rows by the composite keys built from rowFields and
// colFields and sums valueField into each (row, col) cell. Values that are
// missing, non-numeric or not finite count as 0. Missing grouping fields
// contribute empty key segments. The result depends only on the inputs.
func Aggregate(rows []Row, rowFields, colFields []string, valueField string) *Table {
	acc := map[string]map[string]float64{}
	rowKeys := map[string]struct{}{}
	colKeys := map[string]struct{}{}
	for _, r := range rows {
		rk := compositeKey(r, rowFields)
		ck := compositeKey(r, colFields)
		rowKeys[rk] = struct{}{}
		colKeys[ck] = struct{}{}
		inner := acc[rk]
		if inner == nil {
			inner = map[string]float64{}
			acc[rk] = inner
		}
		inner[ck] += toNumber(r[valueField])
	}
	return &Table{
		RowHeaders: sortedKeys(rowKeys),
		ColHeaders: sortedKeys(colKeys),
		cells:      acc,
	}
}

// Cell returns the sum for (rowKey, colKey), or 0 when that combination was
// never observed.
func (t *Table) Cell(rowKey, colKey string) float64 {
	if t == nil {
		return 0
	}
	return t.cells[rowKey][colKey]
}

// Grid materializes the dense table in header order.
func (t *Table) Grid() [][]float64 {
	grid := make([][]float64, len(t.RowHeaders))
	for i, rk := range t.RowHeaders {
		line := make([]float64, len(t.ColHeaders))
		for j, ck := range t.ColHeaders {
			line[j] = t.Cell(rk, ck)
		}
		grid[i] = line
	}
	return grid
}

// RowTotal sums one row across all columns.
func (t *Table) RowTotal(rowKey string) float64 {
	var sum float64
	for _, ck := range t.ColHeaders {
		sum += t.Cell(rowKey, ck)
	}
	return sum
}

// ColTotal sums one column across all rows.
func (t *Table) ColTotal(colKey string) float64 {
	var sum float64
	for _, rk := range t.RowHeaders {
		sum += t.Cell(rk, colKey)
	}
	return sum
}

// GrandTotal sums every cell.
func (t *Table) GrandTotal() float64 {
	var sum float64
	for _, rk := range t.RowHeaders {
		sum += t.RowTotal(rk)
	}
	return sum
}

// MarshalJSON encodes the dense form of the table.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RowHeaders []string    `json:"row_headers"`
		ColHeaders []string    `json:"col_headers"`
		Cells      [][]float64 `json:"cells"`
	}{t.RowHeaders, t.ColHeaders, t.Grid()})
}

func compositeKey(r Row, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = cast.ToString(r[f])
	}
	return strings.Join(parts, KeySeparator)
}

func toNumber(v any) float64 {
	if s, ok := v.(string); ok {
		f, _ := mapping.ParseNumber(s)
		return f
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
