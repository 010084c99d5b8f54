package tensor

import (
	"fmt"
	"strings"

	"github.com/born-ml/symgraph/internal/symbolic"
)

// MaxRank is the fixed rank of every shape. Lower ranks are expressed with
// trailing dimensions equal to 1.
const MaxRank = 4

// Shape holds the symbolic dimensions of a tensor.
type Shape [MaxRank]symbolic.Poly

// Scalar returns the rank-0 shape (1, 1, 1, 1).
func Scalar() Shape {
	var s Shape
	for i := range s {
		s[i] = symbolic.Const(1)
	}
	return s
}

// NewShape builds a shape from up to four dimensions, padding with 1.
func NewShape(dims ...symbolic.Poly) (Shape, error) {
	if len(dims) > MaxRank {
		return Shape{}, fmt.Errorf("rank %d exceeds maximum rank %d", len(dims), MaxRank)
	}
	s := Scalar()
	copy(s[:], dims)
	if err := s.Validate(); err != nil {
		return Shape{}, err
	}
	return s, nil
}

// Dims builds a shape from constant dimensions.
func Dims(dims ...int) (Shape, error) {
	polys := make([]symbolic.Poly, len(dims))
	for i, d := range dims {
		polys[i] = symbolic.Const(int64(d))
	}
	return NewShape(polys...)
}

// Validate checks that no dimension is a non-positive constant.
func (s Shape) Validate() error {
	for i, dim := range s {
		if c, ok := dim.Constant(); ok && c <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, c)
		}
	}
	return nil
}

// Rank returns the index of the last dimension that is not the constant 1,
// plus one. A scalar has rank 0.
func (s Shape) Rank() int {
	for i := MaxRank - 1; i >= 0; i-- {
		if !s[i].IsOne() {
			return i + 1
		}
	}
	return 0
}

// IsScalar reports whether every dimension is 1.
func (s Shape) IsScalar() bool {
	return s.Rank() == 0
}

// NumElements returns the symbolic element count.
func (s Shape) NumElements() symbolic.Poly {
	n := symbolic.Const(1)
	for _, dim := range s {
		n = n.Mul(dim)
	}
	return n
}

// Equal checks if two shapes are symbolically equal.
func (s Shape) Equal(other Shape) bool {
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Evaluate computes concrete dimensions under subst.
func (s Shape) Evaluate(subst symbolic.Substitution) ([MaxRank]int, error) {
	var out [MaxRank]int
	for i, dim := range s {
		v, err := dim.Evaluate(subst)
		if err != nil {
			return out, fmt.Errorf("dimension %d: %w", i, err)
		}
		out[i] = int(v)
	}
	return out, nil
}

// Symbols returns all symbols appearing in s.
func (s Shape) Symbols() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, dim := range s {
		for _, name := range dim.Symbols() {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	return out
}

// String renders the shape as "(n, 3, 1, 1)".
func (s Shape) String() string {
	parts := make([]string, MaxRank)
	for i, dim := range s {
		parts[i] = dim.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// BroadcastShapes implements NumPy-style broadcasting over symbolic dims.
//
// Dimensions are compatible if they are symbolically equal or one of them is
// the constant 1. Since every shape has rank 4, no left-padding happens.
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed,
// and an error if incompatible.
//
// Examples:
//
//	(1, n, 1, 1) + (m, n, 1, 1) → (m, n, 1, 1), true, nil
//	(n, 3, 1, 1) + (n, 3, 1, 1) → (n, 3, 1, 1), false, nil
//	(n, 3, 1, 1) + (m, 3, 1, 1) → error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	var result Shape
	needsBroadcast := false

	for i := range result {
		aDim, bDim := a[i], b[i]
		switch {
		case aDim.Equal(bDim):
			result[i] = aDim
		case aDim.IsOne():
			result[i] = bDim
			needsBroadcast = true
		case bDim.IsOne():
			result[i] = aDim
			needsBroadcast = true
		default:
			return Shape{}, false, fmt.Errorf("shapes not compatible for broadcasting: %s vs %s (dimension %d: %s vs %s)",
				a, b, i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// CanBroadcastTo reports whether s can be broadcast to target.
func (s Shape) CanBroadcastTo(target Shape) bool {
	for i := range s {
		if !s[i].Equal(target[i]) && !s[i].IsOne() {
			return false
		}
	}
	return true
}

// BroadcastAxes returns the axes along which s is expanded to reach target.
func (s Shape) BroadcastAxes(target Shape) []int {
	var axes []int
	for i := range s {
		if s[i].IsOne() && !target[i].IsOne() {
			axes = append(axes, i)
		}
	}
	return axes
}
