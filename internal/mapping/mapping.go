package mapping

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Role is a semantic slot a CSV column can be assigned to.
type Role string

const (
	RoleInput          Role = "input"
	RoleExpectedOutput Role = "expected_output"
	RoleMetadata       Role = "metadata"
)

// Roles lists every role in display order.
var Roles = []Role{RoleInput, RoleExpectedOutput, RoleMetadata}

// ColumnType is the inferred scalar kind of a selected column.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeNumber ColumnType = "number"
)

// DefaultSampleRows is how many data rows type inference looks at.
const DefaultSampleRows = 50

var (
	// ErrUnknownColumn is returned when a role names a header that is not in the table.
	ErrUnknownColumn = errors.New("column not found in headers")
	// ErrColumnReused is returned in strict mode when one header serves several roles.
	ErrColumnReused = errors.New("column assigned to more than one role")
	// ErrUnknownRole is returned when a role name cannot be resolved.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUnknownType is returned when a column type name cannot be resolved.
	ErrUnknownType = errors.New("unknown column type")
)

// Mapping assigns header names to roles. An empty name leaves the role unset.
// Types are kept per column, so a column shared by two roles is cast the same
// way for both.
type Mapping struct {
	Input          string                `json:"input" yaml:"input"`
	ExpectedOutput string                `json:"expected_output" yaml:"expected_output"`
	Metadata       string                `json:"metadata" yaml:"metadata"`
	Types          map[string]ColumnType `json:"types,omitempty" yaml:"types,omitempty"`
}

// Options controls how a mapping is validated.
type Options struct {
	// Strict rejects a header selected for more than one role.
	Strict bool
}

// Column returns the header assigned to r.
func (m Mapping) Column(r Role) string {
	switch r {
	case RoleInput:
		return m.Input
	case RoleExpectedOutput:
		return m.ExpectedOutput
	case RoleMetadata:
		return m.Metadata
	}
	return ""
}

// Set assigns header to role r.
func (m *Mapping) Set(r Role, header string) error {
	switch r {
	case RoleInput:
		m.Input = header
	case RoleExpectedOutput:
		m.ExpectedOutput = header
	case RoleMetadata:
		m.Metadata = header
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRole, r)
	}
	return nil
}

// Clear unsets role r.
func (m *Mapping) Clear(r Role) error { return m.Set(r, "") }

// SetType records the cast type for a column.
func (m *Mapping) SetType(column string, t ColumnType) {
	if m.Types == nil {
		m.Types = make(map[string]ColumnType)
	}
	m.Types[column] = t
}

// TypeOf returns the cast type for a column, defaulting to string.
func (m Mapping) TypeOf(column string) ColumnType {
	if t, ok := m.Types[column]; ok && t == TypeNumber {
		return TypeNumber
	}
	return TypeString
}

// Selected returns the distinct assigned columns in role order.
func (m Mapping) Selected() []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range Roles {
		c := m.Column(r)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Validate checks the mapping against the table headers.
func (m Mapping) Validate(headers []string, opt Options) error {
	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	owner := map[string]Role{}
	for _, r := range Roles {
		c := m.Column(r)
		if c == "" {
			continue
		}
		if !known[c] {
			return fmt.Errorf("%s: %w: %q", r, ErrUnknownColumn, c)
		}
		if prev, ok := owner[c]; ok && opt.Strict {
			return fmt.Errorf("%w: %q is both %s and %s", ErrColumnReused, c, prev, r)
		}
		if _, ok := owner[c]; !ok {
			owner[c] = r
		}
	}
	return nil
}

// ParseRole resolves user spellings of a role name.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input", "in":
		return RoleInput, nil
	case "expected_output", "expected-output", "expected", "expectedoutput":
		return RoleExpectedOutput, nil
	case "metadata", "meta":
		return RoleMetadata, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// ParseType resolves a column type name.
func ParseType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text", "":
		return TypeString, nil
	case "number", "numeric":
		return TypeNumber, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// LoadFile reads a YAML mapping file such as:
//
//	input: question
//	expected_output: answer
//	metadata: score
//	types:
//	  score: number
func LoadFile(path string) (*Mapping, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	var m Mapping
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}
	for col, t := range m.Types {
		pt, err := ParseType(string(t))
		if err != nil {
			return nil, fmt.Errorf("mapping type for %q: %w", col, err)
		}
		m.Types[col] = pt
	}
	return &m, nil
}
