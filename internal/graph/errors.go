package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExpired is returned when a node or handle refers to an id that is no
// longer registered in its graph.
var ErrExpired = errors.New("graph: expired node handle")

// ErrForeignNode is returned when a node from another graph is used as an
// operand.
var ErrForeignNode = errors.New("graph: node belongs to a different graph")

// ConstructionError reports a failed operator precondition (bad rank,
// incompatible shapes, wrong dtype family, ...).
type ConstructionError struct {
	Op     string // operator name
	Nodes  []ID   // offending nodes
	Reason string
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	if len(e.Nodes) == 0 {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	ids := make([]string, len(e.Nodes))
	for i, id := range e.Nodes {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s [%s]: %s", e.Op, strings.Join(ids, ", "), e.Reason)
}

// Constructionf builds a ConstructionError for op naming the given nodes.
func Constructionf(op string, nodes []*Node, format string, args ...any) *ConstructionError {
	ids := make([]ID, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			ids = append(ids, n.id)
		}
	}
	return &ConstructionError{Op: op, Nodes: ids, Reason: fmt.Sprintf(format, args...)}
}

// InternalError reports a violated algorithmic invariant. It always signals
// a bug and is never retried.
type InternalError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return fmt.Sprintf("internal graph error in %s: %s", e.Op, e.Reason)
}

// Internalf builds an InternalError.
func Internalf(op, format string, args ...any) *InternalError {
	return &InternalError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// PolicyError is raised when a policy-governed condition fires under the
// PolicyRaise setting.
type PolicyError struct {
	Trigger Trigger
	Reason  string
}

// Error implements the error interface.
func (e *PolicyError) Error() string {
	return fmt.Sprintf("policy %s: %s", e.Trigger, e.Reason)
}
