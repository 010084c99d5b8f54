package graph

// Kind is the closed set of operator kinds. Operator traits are small
// capability checks on Kind instead of a type hierarchy.
type Kind int

// Operator kinds.
const (
	KindInput Kind = iota
	KindParameter
	KindConstant
	KindSymbolValue

	KindAdd
	KindSub
	KindMul
	KindDiv
	KindPow
	KindMaximum
	KindMinimum

	KindNeg
	KindExp
	KindLog
	KindSqrt
	KindSin
	KindCos
	KindTanh
	KindSigmoid
	KindAbs
	KindSign

	KindGreater
	KindLess
	KindEqual
	KindAnd
	KindOr
	KindNot

	KindWhere
	KindCast

	KindBroadcast
	KindReshape
	KindTranspose

	KindSum
	KindMax

	KindMatMul
	KindSolve
	KindInverse

	KindGather
	KindScatterAdd

	numKinds
)

type capability uint8

const (
	capLeaf capability = 1 << iota
	capElementwise
	capReduce
	capLogical
	capFloat
	capLinalg
)

type kindInfo struct {
	name string
	caps capability
}

var kindTable = [numKinds]kindInfo{
	KindInput:       {"input", capLeaf},
	KindParameter:   {"parameter", capLeaf},
	KindConstant:    {"constant", capLeaf},
	KindSymbolValue: {"symbol_value", capLeaf},

	KindAdd:     {"add", capElementwise},
	KindSub:     {"sub", capElementwise},
	KindMul:     {"mul", capElementwise},
	KindDiv:     {"div", capElementwise},
	KindPow:     {"pow", capElementwise | capFloat},
	KindMaximum: {"maximum", capElementwise},
	KindMinimum: {"minimum", capElementwise},

	KindNeg:     {"neg", capElementwise},
	KindExp:     {"exp", capElementwise | capFloat},
	KindLog:     {"log", capElementwise | capFloat},
	KindSqrt:    {"sqrt", capElementwise | capFloat},
	KindSin:     {"sin", capElementwise | capFloat},
	KindCos:     {"cos", capElementwise | capFloat},
	KindTanh:    {"tanh", capElementwise | capFloat},
	KindSigmoid: {"sigmoid", capElementwise | capFloat},
	KindAbs:     {"abs", capElementwise},
	KindSign:    {"sign", capElementwise | capLogical},

	KindGreater: {"greater", capElementwise | capLogical},
	KindLess:    {"less", capElementwise | capLogical},
	KindEqual:   {"equal", capElementwise | capLogical},
	KindAnd:     {"and", capElementwise | capLogical},
	KindOr:      {"or", capElementwise | capLogical},
	KindNot:     {"not", capElementwise | capLogical},

	KindWhere: {"where", capElementwise},
	KindCast:  {"cast", capElementwise},

	KindBroadcast: {"broadcast", 0},
	KindReshape:   {"reshape", 0},
	KindTranspose: {"transpose", 0},

	KindSum: {"sum", capReduce},
	KindMax: {"max", capReduce},

	KindMatMul:  {"matmul", capLinalg},
	KindSolve:   {"solve", capLinalg | capFloat},
	KindInverse: {"inverse", capLinalg | capFloat},

	KindGather:     {"gather", 0},
	KindScatterAdd: {"scatter_add", 0},
}

func (k Kind) has(c capability) bool {
	if k < 0 || k >= numKinds {
		return false
	}
	return kindTable[k].caps&c != 0
}

// String returns the operator name of the kind.
func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return "unknown"
	}
	return kindTable[k].name
}

// IsLeaf reports whether the kind has no ancestors.
func (k Kind) IsLeaf() bool { return k.has(capLeaf) }

// IsElementwise reports whether output element i depends only on input element i.
func (k Kind) IsElementwise() bool { return k.has(capElementwise) }

// ReducesOverAxes reports whether the kind collapses axes to size 1.
func (k Kind) ReducesOverAxes() bool { return k.has(capReduce) }

// IsLogical reports whether the kind is a comparison or boolean kind. Logical
// kinds are never differentiable.
func (k Kind) IsLogical() bool { return k.has(capLogical) }

// ProducesFloat reports whether the kind requires and produces floats.
func (k Kind) ProducesFloat() bool { return k.has(capFloat) }

// IsLinearAlgebra reports whether the kind is a matrix operation.
func (k Kind) IsLinearAlgebra() bool { return k.has(capLinalg) }

// ParseKind returns the kind with the given operator name.
func ParseKind(name string) (Kind, bool) {
	for k := Kind(0); k < numKinds; k++ {
		if kindTable[k].name == name {
			return k, true
		}
	}
	return 0, false
}
