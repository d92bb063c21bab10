package csvtext

import "strings"

// RawTable is parsed CSV text: a header row plus a grid of string cells.
// Rows are not guaranteed to be as wide as Headers.
type RawTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Width returns the number of header columns.
func (t RawTable) Width() int { return len(t.Headers) }

// Cell returns the value at (row, col), or "" when the row is short or the
// indexes are out of range.
func (t RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 {
		return ""
	}
	r := t.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// Parse scans text in a single pass and returns its header row and data rows.
// Quoted fields may contain commas, newlines and doubled quotes. Carriage
// returns outside quotes are dropped, and trailing rows made only of empty
// fields are trimmed. Parse never fails: irregular row widths are left for
// the caller to deal with.
func Parse(text string) RawTable {
	var (
		records [][]string
		row     []string
		field   strings.Builder
		quoted  bool
	)
	endField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quoted {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
					continue
				}
				quoted = false
				continue
			}
			field.WriteByte(c)
			continue
		}
		switch c {
		case '"':
			quoted = true
		case ',':
			endField()
		case '\n':
			endField()
			records = append(records, row)
			row = nil
		case '\r':
		default:
			field.WriteByte(c)
		}
	}
	endField()
	if len(row) > 1 || row[0] != "" {
		records = append(records, row)
	}

	for len(records) > 0 && blank(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	if len(records) == 0 {
		return RawTable{Headers: []string{}, Rows: [][]string{}}
	}
	return RawTable{Headers: records[0], Rows: append([][]string{}, records[1:]...)}
}

func blank(rec []string) bool {
	for _, f := range rec {
		if f != "" {
			return false
		}
	}
	return true
}
