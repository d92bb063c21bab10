package mapping

// Item is one structured record produced from a data row. A nil field means
// the role was not assigned.
type Item struct {
	Input          *Scalar `json:"input,omitempty"`
	ExpectedOutput *Scalar `json:"expected_output,omitempty"`
	Metadata       *Scalar `json:"metadata,omitempty"`
}

// Get returns the value for role r.
func (it Item) Get(r Role) *Scalar {
	switch r {
	case RoleInput:
		return it.Input
	case RoleExpectedOutput:
		return it.ExpectedOutput
	case RoleMetadata:
		return it.Metadata
	}
	return nil
}

func (it *Item) set(r Role, s Scalar) {
	v := s
	switch r {
	case RoleInput:
		it.Input = &v
	case RoleExpectedOutput:
		it.ExpectedOutput = &v
	case RoleMetadata:
		it.Metadata = &v
	}
}

// HeaderKeyed renders the item keyed by the original header names. A column
// shared by several roles appears once.
func (it Item) HeaderKeyed(m Mapping) map[string]any {
	out := make(map[string]any, len(Roles))
	for _, r := range Roles {
		col := m.Column(r)
		v := it.Get(r)
		if col == "" || v == nil {
			continue
		}
		out[col] = v.Value()
	}
	return out
}

// Apply casts every data row through the mapping. Each header equal to an
// assigned column is cast with that column's type; other headers are
// dropped. With duplicated headers the last matching cell wins. Short rows
// read missing cells as "".
func Apply(headers []string, rows [][]string, m Mapping) []Item {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		var it Item
		for i, h := range headers {
			if h == "" {
				continue
			}
			raw := ""
			if i < len(row) {
				raw = row[i]
			}
			for _, r := range Roles {
				if m.Column(r) == h {
					it.set(r, Cast(raw, m.TypeOf(h)))
				}
			}
		}
		items = append(items, it)
	}
	return items
}
