package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind tags the concrete type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// Value is a single cell: null, a number, or a string.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Null returns the null cell.
func Null() Value { return Value{} }

// Number wraps f. NaN is allowed but never counts as a valid number.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, str: s} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) IsNumber() bool { return v.kind == KindNumber }

// Float returns the numeric payload. ok is false for non-numbers and NaN.
func (v Value) Float() (f float64, ok bool) {
	if v.kind != KindNumber || math.IsNaN(v.num) {
		return 0, false
	}
	return v.num, true
}

// String returns the stringified cell. Null stringifies to "".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return formatNumber(v.num)
	case KindString:
		return v.str
	default:
		return ""
	}
}

// IsBlank reports whether the cell is null or a whitespace-only string.
func (v Value) IsBlank() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	default:
		return false
	}
}

// Equal compares kind and payload. Two NaN numbers are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
	case KindString:
		return v.str == o.str
	default:
		return true
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// floatPattern accepts plain decimal and scientific notation, nothing else
// (no "NaN", "Inf", hex or thousands separators).
var floatPattern = regexp.MustCompile(`^-?(\d+\.?|\.\d+|\d+\.\d+)([eE][-+]?\d+)?$`)

// ParseValue applies dynamic typing to a raw text cell: blank becomes null,
// numeric-looking text becomes a number, anything else stays a string.
func ParseValue(s string) Value {
	t := strings.TrimSpace(s)
	if t == "" {
		return Null()
	}
	if floatPattern.MatchString(t) {
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return Number(f)
		}
	}
	return String(s)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*v = Null()
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var bl bool
		if err := json.Unmarshal(b, &bl); err != nil {
			return err
		}
		*v = String(strconv.FormatBool(bl))
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("cell must be a string, number or null: %w", err)
		}
		*v = Number(f)
	}
	return nil
}
