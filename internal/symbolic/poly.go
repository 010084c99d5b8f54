// Package symbolic implements the symbolic integer type used for tensor
// dimensions whose value is only known at run time (for example a batch size).
//
// A Poly is an immutable integer polynomial over named symbols:
//
//	n := symbolic.Sym("n")
//	rows := n.Mul(symbolic.Const(3)).Add(symbolic.Const(1)) // 3*n + 1
//	v, err := rows.Evaluate(symbolic.Substitution{"n": 4})  // 13
//
// Polynomials are kept in a canonical form so structural equality is
// symbolic equality.
package symbolic

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnderdetermined is returned by Evaluate when a symbol has no value.
var ErrUnderdetermined = errors.New("symbolic: under-determined expression")

// ErrBindConflict is returned by Bind when a concrete value contradicts an
// existing binding.
var ErrBindConflict = errors.New("symbolic: conflicting binding")

// Substitution maps symbol names to concrete values.
type Substitution map[string]int64

// factor is one symbol raised to a positive power.
type factor struct {
	name string
	pow  int
}

// term is coef * Π factors. Factors are sorted by name.
type term struct {
	factors []factor
	coef    int64
}

func (t term) key() string {
	if len(t.factors) == 0 {
		return ""
	}
	parts := make([]string, len(t.factors))
	for i, f := range t.factors {
		if f.pow == 1 {
			parts[i] = f.name
		} else {
			parts[i] = f.name + "^" + strconv.Itoa(f.pow)
		}
	}
	return strings.Join(parts, "*")
}

func (t term) degree() int {
	d := 0
	for _, f := range t.factors {
		d += f.pow
	}
	return d
}

// Poly is a polynomial with integer coefficients. The zero value is the
// constant 0.
type Poly struct {
	terms []term // canonical order, no zero coefficients
}

// Const returns the constant polynomial c.
func Const(c int64) Poly {
	if c == 0 {
		return Poly{}
	}
	return Poly{terms: []term{{coef: c}}}
}

// Sym returns the polynomial consisting of the single symbol name.
func Sym(name string) Poly {
	return Poly{terms: []term{{factors: []factor{{name: name, pow: 1}}, coef: 1}}}
}

// normalize merges equal monomials, drops zeros and sorts terms
// by descending degree then by monomial key.
func normalize(in []term) Poly {
	acc := make(map[string]term, len(in))
	for _, t := range in {
		k := t.key()
		if prev, ok := acc[k]; ok {
			prev.coef += t.coef
			acc[k] = prev
			continue
		}
		acc[k] = t
	}
	out := make([]term, 0, len(acc))
	for _, t := range acc {
		if t.coef != 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].degree(), out[j].degree()
		if di != dj {
			return di > dj
		}
		return out[i].key() < out[j].key()
	})
	if len(out) == 0 {
		return Poly{}
	}
	return Poly{terms: out}
}

// Add returns p + q.
func (p Poly) Add(q Poly) Poly {
	all := make([]term, 0, len(p.terms)+len(q.terms))
	all = append(all, p.terms...)
	all = append(all, q.terms...)
	return normalize(all)
}

// Neg returns -p.
func (p Poly) Neg() Poly {
	out := make([]term, len(p.terms))
	for i, t := range p.terms {
		out[i] = term{factors: t.factors, coef: -t.coef}
	}
	return Poly{terms: out}
}

// Sub returns p - q.
func (p Poly) Sub(q Poly) Poly {
	return p.Add(q.Neg())
}

// Mul returns p * q.
func (p Poly) Mul(q Poly) Poly {
	out := make([]term, 0, len(p.terms)*len(q.terms))
	for _, a := range p.terms {
		for _, b := range q.terms {
			out = append(out, term{factors: mergeFactors(a.factors, b.factors), coef: a.coef * b.coef})
		}
	}
	return normalize(out)
}

func mergeFactors(a, b []factor) []factor {
	pows := make(map[string]int, len(a)+len(b))
	for _, f := range a {
		pows[f.name] += f.pow
	}
	for _, f := range b {
		pows[f.name] += f.pow
	}
	out := make([]factor, 0, len(pows))
	for name, pow := range pows {
		out = append(out, factor{name: name, pow: pow})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Equal reports whether p and q are the same polynomial.
func (p Poly) Equal(q Poly) bool {
	if len(p.terms) != len(q.terms) {
		return false
	}
	for i := range p.terms {
		if p.terms[i].coef != q.terms[i].coef || p.terms[i].key() != q.terms[i].key() {
			return false
		}
	}
	return true
}

// IsConstant reports whether p contains no symbols.
func (p Poly) IsConstant() bool {
	for _, t := range p.terms {
		if len(t.factors) > 0 {
			return false
		}
	}
	return true
}

// Constant returns the value of p when p is constant.
func (p Poly) Constant() (int64, bool) {
	if !p.IsConstant() {
		return 0, false
	}
	if len(p.terms) == 0 {
		return 0, true
	}
	return p.terms[0].coef, true
}

// IsOne reports whether p is the constant 1.
func (p Poly) IsOne() bool {
	c, ok := p.Constant()
	return ok && c == 1
}

// Symbols returns the sorted, de-duplicated symbol names in p.
func (p Poly) Symbols() []string {
	seen := make(map[string]struct{})
	for _, t := range p.terms {
		for _, f := range t.factors {
			seen[f.name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Evaluate computes the value of p under subst. It fails with
// ErrUnderdetermined if a symbol of p is missing from subst.
func (p Poly) Evaluate(subst Substitution) (int64, error) {
	var missing []string
	var total int64
	for _, t := range p.terms {
		v := t.coef
		for _, f := range t.factors {
			x, ok := subst[f.name]
			if !ok {
				missing = append(missing, f.name)
				continue
			}
			for i := 0; i < f.pow; i++ {
				v *= x
			}
		}
		total += v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return 0, fmt.Errorf("%w: missing %s in %s", ErrUnderdetermined, strings.Join(missing, ", "), p)
	}
	return total, nil
}

// Bind records in subst the symbol value implied by p == value.
//
// Only polynomials of the form "s + c" can introduce a new binding; any
// other shape must already be fully determined by subst and is then checked
// against value. Symbols are dimension extents, so a binding must be positive.
func (p Poly) Bind(value int64, subst Substitution) error {
	if got, err := p.Evaluate(subst); err == nil {
		if got != value {
			return fmt.Errorf("%w: %s = %d, got %d", ErrBindConflict, p, got, value)
		}
		return nil
	}
	var offset int64
	var sym string
	for _, t := range p.terms {
		switch {
		case len(t.factors) == 0:
			offset = t.coef
		case len(t.factors) == 1 && t.factors[0].pow == 1 && t.coef == 1 && sym == "":
			sym = t.factors[0].name
		default:
			return fmt.Errorf("%w: cannot bind %s from a single value", ErrUnderdetermined, p)
		}
	}
	if value-offset <= 0 {
		return fmt.Errorf("%w: %s = %d leaves %s = %d", ErrBindConflict, p, value, sym, value-offset)
	}
	subst[sym] = value - offset
	return nil
}

// String renders p in canonical form, e.g. "n*m + 2*n + 1".
func (p Poly) String() string {
	if len(p.terms) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, t := range p.terms {
		coef := t.coef
		switch {
		case i == 0 && coef < 0:
			sb.WriteString("-")
			coef = -coef
		case i > 0 && coef < 0:
			sb.WriteString(" - ")
			coef = -coef
		case i > 0:
			sb.WriteString(" + ")
		}
		k := t.key()
		switch {
		case k == "":
			sb.WriteString(strconv.FormatInt(coef, 10))
		case coef == 1:
			sb.WriteString(k)
		default:
			sb.WriteString(strconv.FormatInt(coef, 10))
			sb.WriteString("*")
			sb.WriteString(k)
		}
	}
	return sb.String()
}
