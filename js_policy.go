//go:build js_eval

package appstate

import (
	"fmt"

	"github.com/dop251/goja"
)

// jsPolicyEvaluator executes pattern expressions in a goja runtime. Patterns
// see `url`, `route`, `now`, `metadata` as globals and may use the full JS
// expression grammar.
type jsPolicyEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSPolicyEvaluator constructs a PolicyEvaluator backed by goja.
func NewJSPolicyEvaluator(opts ...JSPolicyOption) PolicyEvaluator {
	cfg := applyJSPolicyOptions(opts)
	return &jsPolicyEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
	}
}

func (e *jsPolicyEvaluator) Evaluate(ctx PolicyContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapPolicyError("js", fmt.Errorf("pattern must not be empty"))
	}
	ctx = ctx.withDefaults()
	if e.cache == nil {
		return e.run(ctx, expression, nil)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapPolicyEvaluationError("js", expression, ctx.URL, err)
	}
	return e.run(ctx, expression, program)
}

func (e *jsPolicyEvaluator) Compile(expression string, _ ...PolicyCompileOption) (CompiledPolicy, error) {
	if expression == "" {
		return nil, wrapPolicyError("js", fmt.Errorf("pattern must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapPolicyEvaluationError("js", expression, "", err)
	}
	return &jsCompiledPolicy{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

func (e *jsPolicyEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", e.wrapExpression(expression), false)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *jsPolicyEvaluator) run(ctx PolicyContext, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	e.injectContext(vm, ctx)
	if program != nil {
		value, err := vm.RunProgram(program)
		if err != nil {
			return nil, wrapPolicyEvaluationError("js", expression, ctx.URL, err)
		}
		return value.Export(), nil
	}
	value, err := vm.RunString(e.wrapExpression(expression))
	if err != nil {
		return nil, wrapPolicyEvaluationError("js", expression, ctx.URL, err)
	}
	return value.Export(), nil
}

func (e *jsPolicyEvaluator) injectContext(vm *goja.Runtime, ctx PolicyContext) {
	vm.Set("url", ctx.URL)
	vm.Set("route", ctx.Route)
	vm.Set("now", ctx.timestamp())
	vm.Set("metadata", ctx.Metadata)
	if e.registry != nil {
		vm.Set("call", func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		})
		for _, name := range e.registry.Names() {
			fn := name
			vm.Set(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			})
		}
	}
}

func (e *jsPolicyEvaluator) wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledPolicy struct {
	evaluator  *jsPolicyEvaluator
	expression string
	program    *goja.Program
}

func (p *jsCompiledPolicy) Evaluate(ctx PolicyContext) (any, error) {
	if p.evaluator == nil {
		return nil, wrapPolicyError("js", fmt.Errorf("compiled pattern missing evaluator"))
	}
	ctx = ctx.withDefaults()
	return p.evaluator.run(ctx, p.expression, p.program)
}
