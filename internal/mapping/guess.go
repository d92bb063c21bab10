package mapping

import (
	"strings"

	"golang.org/x/text/cases"
)

// Candidate header names per role, highest priority first.
var candidates = map[Role][]string{
	RoleInput:          {"input", "prompt", "question", "id"},
	RoleExpectedOutput: {"expected", "output", "answer", "label", "name"},
	RoleMetadata:       {"metadata", "meta", "value", "score", "cost", "tokens"},
}

// positional fallback index per role
var fallbackIndex = map[Role]int{
	RoleInput:          0,
	RoleExpectedOutput: 1,
	RoleMetadata:       2,
}

// normalizeHeader folds case and strips surrounding whitespace. A Caser is
// stateful, so callers pass their own.
func normalizeHeader(folder cases.Caser, h string) string {
	return folder.String(strings.TrimSpace(h))
}

// Guess picks a column for every role and infers the type of each picked
// column. Candidate names are tried in priority order; the first one found
// among the headers wins. Roles without a candidate fall back to a header by
// position, so every role resolves when at least one non-empty header exists.
func Guess(headers []string, rows [][]string) Mapping {
	return GuessWith(headers, rows, Options{}, DefaultSampleRows)
}

// GuessWith is Guess with explicit options. In strict mode a header already
// taken by an earlier role is skipped, and a role is left unset rather than
// sharing a column.
func GuessWith(headers []string, rows [][]string, opt Options, sample int) Mapping {
	var m Mapping
	if len(headers) == 0 {
		return m
	}
	folder := cases.Fold()
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = normalizeHeader(folder, h)
	}
	used := map[string]bool{}
	for _, r := range Roles {
		col := ""
		for _, cand := range candidates[r] {
			for i, n := range norm {
				if n == cand && !(opt.Strict && used[headers[i]]) {
					col = headers[i]
					break
				}
			}
			if col != "" {
				break
			}
		}
		if col == "" {
			col = fallback(headers, fallbackIndex[r], used, opt.Strict)
		}
		if col == "" {
			continue
		}
		used[col] = true
		_ = m.Set(r, col)
	}
	for _, c := range m.Selected() {
		m.SetType(c, InferType(headers, rows, c, sample))
	}
	return m
}

// fallback takes the header at idx, or the next usable one after it,
// wrapping to the start. Empty headers are never usable.
func fallback(headers []string, idx int, used map[string]bool, strict bool) string {
	usable := func(h string) bool {
		return h != "" && !(strict && used[h])
	}
	for i := idx; i < len(headers); i++ {
		if usable(headers[i]) {
			return headers[i]
		}
	}
	for i := 0; i < idx && i < len(headers); i++ {
		if usable(headers[i]) {
			return headers[i]
		}
	}
	return ""
}

// InferType samples up to sample data rows of column and returns TypeNumber
// only when every sampled value is non-empty and a finite number. A column
// with no rows, or one missing from headers, is a string column.
func InferType(headers []string, rows [][]string, column string, sample int) ColumnType {
	if sample <= 0 {
		sample = DefaultSampleRows
	}
	idx := columnIndex(headers, column)
	if idx < 0 || len(rows) == 0 {
		return TypeString
	}
	n := len(rows)
	if n > sample {
		n = sample
	}
	for _, row := range rows[:n] {
		v := ""
		if idx < len(row) {
			v = row[idx]
		}
		if _, ok := ParseNumber(v); !ok {
			return TypeString
		}
	}
	return TypeNumber
}

// columnIndex returns the last position of column in headers, matching the
// cell that wins when duplicated headers are cast.
func columnIndex(headers []string, column string) int {
	idx := -1
	for i, h := range headers {
		if h == column {
			idx = i
		}
	}
	return idx
}

// Unmapped lists the headers not assigned to any role, in header order.
func Unmapped(headers []string, m Mapping) []string {
	selected := map[string]bool{}
	for _, c := range m.Selected() {
		selected[c] = true
	}
	var out []string
	for _, h := range headers {
		if !selected[h] {
			out = append(out, h)
		}
	}
	return out
}
