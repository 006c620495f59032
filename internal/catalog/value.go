// Package catalog implements the typed data model described in the engine's
// design: columns, tables, rows, foreign keys, and the Value type that
// backs every cell, index key, and predicate literal.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Type identifies the runtime type of a column or a Value.
type Type int

const (
	// Int is a 64-bit signed integer column.
	Int Type = iota
	// Double is a 64-bit binary float column.
	Double
	// String is a UTF-8, unbounded-length column.
	String
)

// String renders a Type using the SQL keyword spelling.
func (t Type) String() string {
	switch t {
	case Int:
		return "INT"
	case Double:
		return "DOUBLE"
	case String:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// ParseType maps a SQL type keyword to a Type, ignoring case. ok is false
// for anything else.
func ParseType(s string) (Type, bool) {
	switch strings.ToUpper(s) {
	case "INT":
		return Int, true
	case "DOUBLE":
		return Double, true
	case "STRING":
		return String, true
	default:
		return 0, false
	}
}

// Value is the discriminated union every cell, index key, and literal is
// represented as. A Value carries its Type even when Null so comparisons
// and index maintenance never need to consult the column definition.
type Value struct {
	Type   Type
	Null   bool
	Int    int64
	Float  float64
	String string
}

// NewInt builds a non-null INT value.
func NewInt(v int64) Value { return Value{Type: Int, Int: v} }

// NewDouble builds a non-null DOUBLE value.
func NewDouble(v float64) Value { return Value{Type: Double, Float: v} }

// NewString builds a non-null STRING value.
func NewString(v string) Value { return Value{Type: String, String: v} }

// NewNull builds a null value of the given type.
func NewNull(t Type) Value { return Value{Type: t, Null: true} }

// Native returns the value as a plain Go value suitable for JSON encoding:
// int64, float64, string, or nil.
func (v Value) Native() interface{} {
	if v.Null {
		return nil
	}
	switch v.Type {
	case Int:
		return v.Int
	case Double:
		return v.Float
	case String:
		return v.String
	default:
		return nil
	}
}

// MarshalJSON lets a bare catalog.Value be embedded in a response map and
// serialize exactly like its Native() counterpart.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.Null:
		return []byte("null"), nil
	case v.Type == Int:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case v.Type == Double:
		return []byte(strconv.FormatFloat(v.Float, 'g', -1, 64)), nil
	case v.Type == String:
		return marshalJSONString(v.String), nil
	default:
		return []byte("null"), nil
	}
}

func marshalJSONString(s string) []byte {
	quoted, err := json.Marshal(s)
	if err != nil {
		return []byte(`""`)
	}
	return quoted
}

// Equal reports whether two values of the same type and nullness are equal.
func (v Value) Equal(o Value) bool {
	return v.Compare(o) == 0
}

// Compare gives a total order over values of the same Type: Null sorts
// before every non-null value, then INT/DOUBLE sort numerically and
// STRING sorts by Go's native byte-wise comparison, which is code-point
// order for well-formed UTF-8.
func (v Value) Compare(o Value) int {
	if v.Null && o.Null {
		return 0
	}
	if v.Null {
		return -1
	}
	if o.Null {
		return 1
	}
	switch v.Type {
	case Int:
		switch {
		case v.Int < o.Int:
			return -1
		case v.Int > o.Int:
			return 1
		default:
			return 0
		}
	case Double:
		switch {
		case v.Float < o.Float:
			return -1
		case v.Float > o.Float:
			return 1
		default:
			return 0
		}
	case String:
		return strings.Compare(v.String, o.String)
	default:
		return 0
	}
}

// CoerceLiteral converts a parsed literal Value to the declared column
// Type, allowing INT literals to widen to DOUBLE columns (the common SQL
// convenience); any other type mismatch is left to the caller to reject.
func CoerceLiteral(v Value, want Type) (Value, bool) {
	if v.Null {
		return NewNull(want), true
	}
	if v.Type == want {
		return v, true
	}
	if v.Type == Int && want == Double {
		return NewDouble(float64(v.Int)), true
	}
	return Value{}, false
}

// Matches reports whether v's runtime type equals t, ignoring Null (a null
// cell always matches its declared column type).
func (v Value) Matches(t Type) bool {
	return v.Null || v.Type == t
}

// Render returns a human-readable form of the value, used by error messages.
func (v Value) Render() string {
	if v.Null {
		return "NULL"
	}
	switch v.Type {
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Double:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case String:
		return v.String
	default:
		return fmt.Sprintf("%v", v.Native())
	}
}
