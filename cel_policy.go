package appstate

import (
	"fmt"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELPolicyOption configures the CEL policy evaluator.
type CELPolicyOption func(*celPolicyEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL policy evaluator.
func CELWithProgramCache(cache ProgramCache) CELPolicyOption {
	return func(e *celPolicyEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL policy
// evaluator.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELPolicyOption {
	return func(e *celPolicyEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

// celPolicyEvaluator executes pattern expressions using cel-go. Patterns see
// `url`, `route`, `now`, `metadata`; CEL's `startsWith`/`matches` string
// functions cover the usual URL patterns.
type celPolicyEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELPolicyEvaluator constructs a PolicyEvaluator backed by cel-go.
func NewCELPolicyEvaluator(opts ...CELPolicyOption) PolicyEvaluator {
	e := &celPolicyEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celPolicyEvaluator) Evaluate(ctx PolicyContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapPolicyError("cel", fmt.Errorf("pattern must not be empty"))
	}
	ctx = ctx.withDefaults()
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, wrapPolicyEvaluationError("cel", expression, ctx.URL, err)
	}
	out, _, err := program.program.Eval(e.activation(ctx))
	if err != nil {
		return nil, wrapPolicyEvaluationError("cel", expression, ctx.URL, err)
	}
	return out.Value(), nil
}

func (e *celPolicyEvaluator) Compile(expression string, _ ...PolicyCompileOption) (CompiledPolicy, error) {
	if expression == "" {
		return nil, wrapPolicyError("cel", fmt.Errorf("pattern must not be empty"))
	}
	return &celCompiledPolicy{
		evaluator:  e,
		expression: expression,
	}, nil
}

func (e *celPolicyEvaluator) loadOrCompile(expression string) (*celProgram, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	checked, issues := env.Check(ast)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{
		env:     env,
		program: prg,
	}
	if e.cache != nil {
		e.cache.Set(expression, bundle)
	}
	return bundle, nil
}

func (e *celPolicyEvaluator) buildEnv() (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("url", celgo.StringType),
		celgo.Variable("route", celgo.StringType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("metadata", celgo.DynType),
	}
	if e.registry != nil {
		// CEL overloads are fixed-arity, so the variadic `call` is declared
		// once per arity: call(name), call(name, arg1), ... up to 8 args.
		binding := e.callBinding()
		argTypes := []*celgo.Type{celgo.StringType}
		overloads := make([]celgo.FunctionOpt, 0, 9)
		for i := 0; i <= 8; i++ {
			overloads = append(overloads, celgo.Overload(
				fmt.Sprintf("call_dyn_%d", i),
				append([]*celgo.Type(nil), argTypes...),
				celgo.DynType,
				celgo.FunctionBinding(binding),
			))
			argTypes = append(argTypes, celgo.DynType)
		}
		opts = append(opts, celgo.Function("call", overloads...))
	}
	return celgo.NewEnv(opts...)
}

func (e *celPolicyEvaluator) activation(ctx PolicyContext) map[string]any {
	activation := map[string]any{
		"url":      ctx.URL,
		"route":    ctx.Route,
		"now":      ctx.timestamp(),
		"metadata": ctx.Metadata,
	}
	if e.registry != nil {
		activation["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
	}
	return activation
}

type celCompiledPolicy struct {
	evaluator  *celPolicyEvaluator
	expression string
}

func (p *celCompiledPolicy) Evaluate(ctx PolicyContext) (any, error) {
	if p.evaluator == nil {
		return nil, wrapPolicyError("cel", fmt.Errorf("compiled pattern missing evaluator"))
	}
	ctx = ctx.withDefaults()
	program, err := p.evaluator.loadOrCompile(p.expression)
	if err != nil {
		return nil, wrapPolicyEvaluationError("cel", p.expression, ctx.URL, err)
	}
	out, _, err := program.program.Eval(p.evaluator.activation(ctx))
	if err != nil {
		return nil, wrapPolicyEvaluationError("cel", p.expression, ctx.URL, err)
	}
	return out.Value(), nil
}

func (e *celPolicyEvaluator) callBinding() func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if e.registry == nil {
			return types.NewErr("appstate: function registry not configured")
		}
		if len(values) == 0 {
			return types.NewErr("appstate: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("appstate: call name must be string")
		}
		args := make([]any, 0, len(values)-1)
		for _, val := range values[1:] {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
