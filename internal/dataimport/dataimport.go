package dataimport

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/KaramelBytes/rowloom-cli/internal/csvtext"
	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
)

var csvContentTypes = map[string]bool{
	"text/csv":                    true,
	"application/csv":             true,
	"text/x-csv":                  true,
	"application/x-csv":           true,
	"text/comma-separated-values": true,
	"application/vnd.ms-excel":    true,
}

// CheckFileType accepts a file when its name ends in .csv or its declared
// content type is a csv type. Parameters such as charset are ignored.
func CheckFileType(name, contentType string) error {
	if strings.EqualFold(filepath.Ext(name), ".csv") {
		return nil
	}
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil && csvContentTypes[strings.ToLower(mt)] {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnrecognizedFileType, filepath.Base(name))
}

// DecodeText converts file bytes to a string. A UTF-8 or UTF-16 byte order
// mark selects the encoding and is removed; otherwise UTF-8 is assumed.
func DecodeText(b []byte) (string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, b)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}

// Validate reports the caller-level failures of a parsed table.
func Validate(t csvtext.RawTable) error {
	if len(t.Headers) == 0 || (len(t.Headers) == 1 && strings.TrimSpace(t.Headers[0]) == "") {
		return ErrEmptyHeader
	}
	if len(t.Rows) == 0 {
		return ErrNoDataRows
	}
	return nil
}

// Importer runs the csv-to-items pipeline.
type Importer struct {
	logger *zap.Logger
	opts   mapping.Options
	sample int
}

// NewImporter builds an Importer. A nil logger disables logging.
func NewImporter(logger *zap.Logger, opts mapping.Options, sampleRows int) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sampleRows <= 0 {
		sampleRows = mapping.DefaultSampleRows
	}
	return &Importer{logger: logger, opts: opts, sample: sampleRows}
}

// LoadFile checks, reads, decodes, parses and validates a csv file.
func (im *Importer) LoadFile(path, contentType string) (csvtext.RawTable, error) {
	if err := CheckFileType(path, contentType); err != nil {
		return csvtext.RawTable{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return csvtext.RawTable{}, fmt.Errorf("read file: %w", err)
	}
	text, err := DecodeText(b)
	if err != nil {
		return csvtext.RawTable{}, err
	}
	t := csvtext.Parse(text)
	im.logger.Debug("parsed csv",
		zap.String("file", filepath.Base(path)),
		zap.Int("bytes", len(b)),
		zap.Int("columns", len(t.Headers)),
		zap.Int("rows", len(t.Rows)))
	if err := Validate(t); err != nil {
		return csvtext.RawTable{}, err
	}
	return t, nil
}

// Plan is the outcome of mapping a table.
type Plan struct {
	Mapping  mapping.Mapping `json:"mapping"`
	Items    []mapping.Item  `json:"items"`
	Unmapped []string        `json:"unmapped"`
	// NullCasts counts numeric cells that failed to parse.
	NullCasts int `json:"null_casts"`
}

// ClearColumn in an override mapping unsets the role instead of replacing it.
const ClearColumn = "-"

// Build guesses a mapping for t, lets override replace individual roles or
// types, validates it and casts every row.
func (im *Importer) Build(t csvtext.RawTable, override *mapping.Mapping) (*Plan, error) {
	m := mapping.GuessWith(t.Headers, t.Rows, im.opts, im.sample)
	if override != nil {
		for _, r := range mapping.Roles {
			c := override.Column(r)
			if c == ClearColumn {
				_ = m.Clear(r)
				continue
			}
			if c != "" {
				_ = m.Set(r, c)
				if _, typed := override.Types[c]; !typed {
					m.SetType(c, mapping.InferType(t.Headers, t.Rows, c, im.sample))
				}
			}
		}
		for c, typ := range override.Types {
			m.SetType(c, typ)
		}
	}
	if err := m.Validate(t.Headers, im.opts); err != nil {
		return nil, fmt.Errorf("invalid mapping: %w", err)
	}
	items := mapping.Apply(t.Headers, t.Rows, m)
	p := &Plan{
		Mapping:  m,
		Items:    items,
		Unmapped: mapping.Unmapped(t.Headers, m),
	}
	for _, it := range items {
		for _, r := range mapping.Roles {
			if v := it.Get(r); v != nil && v.IsNull() {
				p.NullCasts++
			}
		}
	}
	im.logger.Info("mapped csv rows",
		zap.String("input", m.Input),
		zap.String("expected_output", m.ExpectedOutput),
		zap.String("metadata", m.Metadata),
		zap.Int("items", len(items)),
		zap.Strings("unmapped", p.Unmapped),
		zap.Int("null_casts", p.NullCasts))
	return p, nil
}
