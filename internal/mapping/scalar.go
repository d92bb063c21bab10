package mapping

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind tags the value held by a Scalar.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

// Scalar is a cast cell value: a number, a string or null.
type Scalar struct {
	Kind Kind
	Str  string
	Num  float64
}

// Null is the outcome of a failed numeric cast.
func Null() Scalar { return Scalar{Kind: KindNull} }

// String wraps a string value.
func String(s string) Scalar { return Scalar{Kind: KindString, Str: s} }

// Number wraps a numeric value.
func Number(f float64) Scalar { return Scalar{Kind: KindNumber, Num: f} }

// IsNull reports whether the scalar is null.
func (s Scalar) IsNull() bool { return s.Kind == KindNull }

// Value returns the scalar as nil, string or float64.
func (s Scalar) Value() any {
	switch s.Kind {
	case KindString:
		return s.Str
	case KindNumber:
		return s.Num
	}
	return nil
}

func (s Scalar) String() string {
	switch s.Kind {
	case KindString:
		return s.Str
	case KindNumber:
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	}
	return "null"
}

// MarshalJSON encodes the scalar as a bare JSON null, string or number.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Value())
}

// UnmarshalJSON accepts null, strings and numbers.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*s = Null()
	case string:
		*s = String(x)
	case float64:
		*s = Number(x)
	default:
		*s = String(strings.TrimSpace(string(b)))
	}
	return nil
}

// ParseNumber parses a trimmed decimal or scientific literal and reports
// whether it is a finite number. Go literal forms that ParseFloat also
// accepts, digit separators and hex floats, are not numbers here.
func ParseNumber(raw string) (float64, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || goLiteral(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func goLiteral(v string) bool {
	if strings.Contains(v, "_") {
		return true
	}
	v = strings.TrimLeft(v, "+-")
	return len(v) > 1 && v[0] == '0' && (v[1] == 'x' || v[1] == 'X')
}

// Cast converts a raw cell to a Scalar of type t. Numeric misses are null.
func Cast(raw string, t ColumnType) Scalar {
	if t != TypeNumber {
		return String(raw)
	}
	if f, ok := ParseNumber(raw); ok {
		return Number(f)
	}
	return Null()
}
