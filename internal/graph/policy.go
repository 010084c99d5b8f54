package graph

import (
	"fmt"
	"strings"
)

// Policy selects how a graph reacts to an implicit or suspicious condition.
type Policy int

// Policies, from most to least permissive.
const (
	PolicyQuiet Policy = iota // continue silently
	PolicyWarn                // log a warning and continue
	PolicyRaise               // fail with *PolicyError
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyQuiet:
		return "quiet"
	case PolicyWarn:
		return "warn"
	case PolicyRaise:
		return "raise"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "quiet" (or "silent"), "warn" and "raise".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "quiet", "silent":
		return PolicyQuiet, nil
	case "warn":
		return PolicyWarn, nil
	case "raise":
		return PolicyRaise, nil
	default:
		return 0, fmt.Errorf("unknown policy %q (want quiet, warn or raise)", s)
	}
}

// Trigger identifies the condition a policy applies to.
type Trigger int

// Policy triggers.
const (
	TriggerBroadcast Trigger = iota
	TriggerCast
	TriggerIndependentGradient
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerBroadcast:
		return "implicit-broadcast"
	case TriggerCast:
		return "implicit-cast"
	case TriggerIndependentGradient:
		return "independent-gradient"
	default:
		return "unknown"
	}
}

// Policies holds one policy per trigger.
type Policies struct {
	Broadcast           Policy
	Cast                Policy
	IndependentGradient Policy
}

// DefaultPolicies returns the policies used by New.
func DefaultPolicies() Policies {
	return Policies{
		Broadcast:           PolicyQuiet,
		Cast:                PolicyWarn,
		IndependentGradient: PolicyWarn,
	}
}

// For returns the policy configured for trigger.
func (p Policies) For(trigger Trigger) Policy {
	switch trigger {
	case TriggerBroadcast:
		return p.Broadcast
	case TriggerCast:
		return p.Cast
	default:
		return p.IndependentGradient
	}
}

// ApplyPolicy reacts to trigger according to the graph's policies: nothing
// happens under PolicyQuiet, a warning is logged under PolicyWarn and a
// *PolicyError is returned under PolicyRaise.
func (g *Graph) ApplyPolicy(trigger Trigger, format string, args ...any) error {
	reason := fmt.Sprintf(format, args...)
	switch g.policies.For(trigger) {
	case PolicyWarn:
		g.logger.Warn(reason, "trigger", trigger.String(), "graph", g.name)
		return nil
	case PolicyRaise:
		return &PolicyError{Trigger: trigger, Reason: reason}
	default:
		return nil
	}
}

// CheckPolicy reports whether trigger would raise, without logging. Callers
// use it to validate before they start inserting nodes.
func (g *Graph) CheckPolicy(trigger Trigger, format string, args ...any) error {
	if g.policies.For(trigger) == PolicyRaise {
		return &PolicyError{Trigger: trigger, Reason: fmt.Sprintf(format, args...)}
	}
	return nil
}
