// Package tensor provides the static tensor metadata of the graph: data types
// and rank-4 symbolic shapes.
package tensor

import "fmt"

// Kind is the family of a data type.
type Kind int

// Supported data type families, ordered from least to most general.
const (
	Bool Kind = iota
	Uint
	Int
	Float
	Complex
)

// String returns the lower-case family name.
func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Uint:
		return "uint"
	case Int:
		return "int"
	case Float:
		return "float"
	case Complex:
		return "complex"
	default:
		return "unknown"
	}
}

// DataType is a (kind, precision) pair. Bool only exists at 8 bits.
type DataType struct {
	Kind Kind
	Bits int
}

// Common data types.
var (
	Bool8     = DataType{Kind: Bool, Bits: 8}
	Uint8     = DataType{Kind: Uint, Bits: 8}
	Int32     = DataType{Kind: Int, Bits: 32}
	Int64     = DataType{Kind: Int, Bits: 64}
	Float32   = DataType{Kind: Float, Bits: 32}
	Float64   = DataType{Kind: Float, Bits: 64}
	Complex64 = DataType{Kind: Complex, Bits: 64}
)

// NewDataType validates and returns a data type.
func NewDataType(kind Kind, bits int) (DataType, error) {
	switch bits {
	case 8, 16, 32, 64:
	default:
		return DataType{}, fmt.Errorf("invalid precision %d (must be 8, 16, 32 or 64)", bits)
	}
	if kind < Bool || kind > Complex {
		return DataType{}, fmt.Errorf("invalid data type kind %d", kind)
	}
	if kind == Bool && bits != 8 {
		return DataType{}, fmt.Errorf("bool only exists at 8 bits, got %d", bits)
	}
	return DataType{Kind: kind, Bits: bits}, nil
}

// ParseDataType parses names such as "float32", "int64" or "bool".
func ParseDataType(s string) (DataType, error) {
	if s == "bool" {
		return Bool8, nil
	}
	for _, k := range []Kind{Uint, Int, Float, Complex} {
		prefix := k.String()
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			var bits int
			if _, err := fmt.Sscanf(s[len(prefix):], "%d", &bits); err != nil {
				return DataType{}, fmt.Errorf("invalid data type %q", s)
			}
			return NewDataType(k, bits)
		}
	}
	return DataType{}, fmt.Errorf("invalid data type %q", s)
}

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	return dt.Bits / 8
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	if dt.Kind == Bool {
		return "bool"
	}
	return fmt.Sprintf("%s%d", dt.Kind, dt.Bits)
}

// IsFloat reports whether dt is a real floating point type.
func (dt DataType) IsFloat() bool {
	return dt.Kind == Float
}

// IsInteger reports whether dt is a signed or unsigned integer type.
func (dt DataType) IsInteger() bool {
	return dt.Kind == Int || dt.Kind == Uint
}

// IsNumeric reports whether dt supports arithmetic.
func (dt DataType) IsNumeric() bool {
	return dt.Kind != Bool
}

// Promote returns the type both a and b convert to implicitly: the more
// general kind wins, then the wider precision.
func Promote(a, b DataType) DataType {
	switch {
	case a.Kind > b.Kind:
		return a
	case b.Kind > a.Kind:
		return b
	case a.Bits >= b.Bits:
		return a
	default:
		return b
	}
}
