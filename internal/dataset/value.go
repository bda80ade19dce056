package dataset

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
)

// Value is one dataset cell: number, string, or null. Raw JSON is parsed
// into this union at the boundary so nothing downstream handles untyped
// maps.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

func Null() Value            { return Value{Kind: KindNull} }
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func String(s string) Value  { return Value{Kind: KindString, Str: s} }

var numericStringPattern = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

// Numeric coerces the cell to a float: numbers pass through, numeric-looking
// strings are parsed, everything else (including null) fails.
func (v Value) Numeric() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		s := strings.TrimSpace(v.Str)
		if !numericStringPattern.MatchString(s) {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		if v.Num == float64(int64(v.Num)) {
			return []byte(strconv.FormatInt(int64(v.Num), 10)), nil
		}
		return []byte(strconv.FormatFloat(v.Num, 'f', -1, 64)), nil
	case KindString:
		return json.Marshal(v.Str)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = Null()
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil && trimmed[0] != '"' {
		*v = Number(num)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*v = String(str)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = String(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("dataset cell must be number, string, or null, got %s", trimmed)
}

// Display renders a cell for tables and chart labels.
func (v Value) Display() string {
	switch v.Kind {
	case KindNumber:
		return FormatNumber(v.Num)
	case KindString:
		return v.Str
	default:
		return ""
	}
}

// FormatNumber drops trailing fractional noise: integral values render as
// integers, others round to 4 decimal places.
func FormatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(round(f, 4), 'f', -1, 64)
}

func round(f float64, places int) float64 {
	shift := 1.0
	for i := 0; i < places; i++ {
		shift *= 10
	}
	if f < 0 {
		return float64(int64(f*shift-0.5)) / shift
	}
	return float64(int64(f*shift+0.5)) / shift
}
