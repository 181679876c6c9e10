package appstate

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprPolicyOption configures an expr policy evaluator instance.
type ExprPolicyOption func(*exprPolicyEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr policy evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprPolicyOption {
	return func(e *exprPolicyEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr policy
// evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprPolicyOption {
	return func(e *exprPolicyEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprPolicyEvaluator executes pattern expressions using expr-lang/expr.
// Patterns see `url`, `route`, `now`, `metadata`, plus any registered
// functions; the language's `matches` operator covers regex patterns.
type exprPolicyEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprPolicyEvaluator constructs a PolicyEvaluator backed by
// expr-lang/expr. This is the engine the Engine falls back to when none is
// configured.
func NewExprPolicyEvaluator(opts ...ExprPolicyOption) PolicyEvaluator {
	e := &exprPolicyEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate compiles and runs expression against ctx.
func (e *exprPolicyEvaluator) Evaluate(ctx PolicyContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapPolicyError("expr", fmt.Errorf("pattern must not be empty"))
	}
	ctx = ctx.withDefaults()
	env := e.environment(ctx)
	if e.cache == nil {
		result, err := exprlang.Eval(expression, env)
		if err != nil {
			return nil, wrapPolicyEvaluationError("expr", expression, ctx.URL, err)
		}
		return result, nil
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapPolicyEvaluationError("expr", expression, ctx.URL, err)
	}
	return result, nil
}

// Compile returns a compiled pattern reusable across resolutions.
func (e *exprPolicyEvaluator) Compile(expression string, _ ...PolicyCompileOption) (CompiledPolicy, error) {
	if expression == "" {
		return nil, wrapPolicyError("expr", fmt.Errorf("pattern must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledPolicy{
		evaluator:  e,
		program:    program,
		expression: expression,
	}, nil
}

func (e *exprPolicyEvaluator) loadOrCompile(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registryNames() {
		fn := e.registryFunction(name)
		options = append(options, exprlang.Function(name, fn))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapPolicyEvaluationError("expr", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

type exprCompiledPolicy struct {
	evaluator  *exprPolicyEvaluator
	program    *exprvm.Program
	expression string
}

func (p *exprCompiledPolicy) Evaluate(ctx PolicyContext) (any, error) {
	if p.evaluator == nil {
		return nil, wrapPolicyError("expr", fmt.Errorf("compiled pattern missing evaluator"))
	}
	ctx = ctx.withDefaults()
	if p.program == nil {
		return p.evaluator.Evaluate(ctx, p.expression)
	}
	env := p.evaluator.environment(ctx)
	result, err := exprlang.Run(p.program, env)
	if err != nil {
		return nil, wrapPolicyEvaluationError("expr", p.expression, ctx.URL, err)
	}
	return result, nil
}

func (e *exprPolicyEvaluator) environment(ctx PolicyContext) map[string]any {
	env := map[string]any{
		"url":      ctx.URL,
		"route":    ctx.Route,
		"now":      ctx.timestamp(),
		"metadata": ctx.Metadata,
	}
	if e.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
		for _, name := range e.registry.Names() {
			fn := name
			env[fn] = func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}
		}
	}
	return env
}

func (e *exprPolicyEvaluator) registryNames() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

func (e *exprPolicyEvaluator) registryFunction(name string) func(...any) (any, error) {
	if e == nil || e.registry == nil {
		return nil
	}
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}
