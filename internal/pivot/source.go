package pivot

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/KaramelBytes/rowloom-cli/internal/csvtext"
)

// RowsFromTable turns parsed CSV into generic rows keyed by header. Short rows
// read missing cells as "". With duplicated headers the last cell wins.
func RowsFromTable(t csvtext.RawTable) []Row {
	rows := make([]Row, 0, len(t.Rows))
	for i := range t.Rows {
		r := make(Row, len(t.Headers))
		for j, h := range t.Headers {
			r[h] = t.Cell(i, j)
		}
		rows = append(rows, r)
	}
	return rows
}

// LoadJSONRows decodes a JSON array of flat objects.
func LoadJSONRows(r io.Reader) ([]Row, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}
