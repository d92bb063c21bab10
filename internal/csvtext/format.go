package csvtext

import "strings"

// Quote returns field in CSV form, wrapping it in double quotes (and doubling
// embedded quotes) when it contains a comma, quote, newline or carriage return.
func Quote(field string) string {
	if !strings.ContainsAny(field, ",\"\n\r") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// FormatRecord joins one record into a CSV line without a trailing newline.
func FormatRecord(rec []string) string {
	parts := make([]string, len(rec))
	for i, f := range rec {
		parts[i] = Quote(f)
	}
	return strings.Join(parts, ",")
}

// Format serializes a table so that Parse(Format(t)) yields t again, except
// for trailing blank rows which Parse always trims.
func Format(t RawTable) string {
	var b strings.Builder
	b.WriteString(FormatRecord(t.Headers))
	b.WriteString("\n")
	for _, r := range t.Rows {
		b.WriteString(FormatRecord(r))
		b.WriteString("\n")
	}
	return b.String()
}
