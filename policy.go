package appstate

import (
	"fmt"
	"time"
)

// PolicyContext carries the inputs a thaw-policy expression can reference.
type PolicyContext struct {
	// URL is the page being resolved, bound as `url` in expressions.
	URL string
	// Route is the route the app is currently on, when known.
	Route string
	// Metadata carries caller-supplied bindings, bound as `metadata`.
	Metadata map[string]any
	// Now pins the evaluation timestamp; defaults to time.Now.
	Now *time.Time
}

func (ctx PolicyContext) withDefaults() PolicyContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx PolicyContext) timestamp() time.Time {
	ctx = ctx.withDefaults()
	return *ctx.Now
}

// PolicyEvaluator executes thaw-policy pattern expressions against a context.
type PolicyEvaluator interface {
	Evaluate(ctx PolicyContext, expression string) (any, error)
	Compile(expression string, opts ...PolicyCompileOption) (CompiledPolicy, error)
}

// CompiledPolicy is a pre-compiled pattern expression reusable across calls.
type CompiledPolicy interface {
	Evaluate(ctx PolicyContext) (any, error)
}

// PolicyCompileOption reserves room for engine-specific compile behaviour.
type PolicyCompileOption func(*policyCompileConfig)

type policyCompileConfig struct{}

func policyEngineName(e PolicyEvaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*appstate.exprPolicyEvaluator":
		return "expr"
	case "*appstate.celPolicyEvaluator":
		return "cel"
	case "*appstate.jsPolicyEvaluator":
		return "js"
	default:
		return "custom"
	}
}
