package appstate

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]any
	sets int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string]any{}}
}

func (c *mapCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	return value, ok
}

func (c *mapCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
}

func TestExprEvaluateBindings(t *testing.T) {
	evaluator := NewExprPolicyEvaluator()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := PolicyContext{
		URL:      "/admin/users",
		Route:    "/admin/users",
		Metadata: map[string]any{"tier": "pro"},
		Now:      &now,
	}

	result, err := evaluator.Evaluate(ctx, `url startsWith "/admin" && metadata.tier == "pro"`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}

	result, err = evaluator.Evaluate(ctx, `now.Year()`)
	if err != nil {
		t.Fatalf("evaluate now: %v", err)
	}
	if result != 2026 {
		t.Fatalf("expected pinned year, got %v", result)
	}
}

func TestExprEmptyPattern(t *testing.T) {
	evaluator := NewExprPolicyEvaluator()
	if _, err := evaluator.Evaluate(PolicyContext{}, ""); err == nil {
		t.Fatal("expected empty pattern to fail")
	}
	if _, err := evaluator.Compile(""); err == nil {
		t.Fatal("expected empty pattern to fail compilation")
	}
}

func TestExprRegistryFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("isAdmin", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("isAdmin expects one argument")
		}
		url, _ := args[0].(string)
		return len(url) >= 6 && url[:6] == "/admin", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	evaluator := NewExprPolicyEvaluator(ExprWithFunctionRegistry(registry))
	ctx := PolicyContext{URL: "/admin/users"}

	result, err := evaluator.Evaluate(ctx, `isadmin(url)`)
	if err != nil {
		t.Fatalf("evaluate named function: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}

	result, err = evaluator.Evaluate(ctx, `call("isAdmin", url)`)
	if err != nil {
		t.Fatalf("evaluate call helper: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}
}

func TestExprProgramCacheReuse(t *testing.T) {
	cache := newMapCache()
	evaluator := NewExprPolicyEvaluator(ExprWithProgramCache(cache))

	for range 3 {
		result, err := evaluator.Evaluate(PolicyContext{URL: "/a"}, `url == "/a"`)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if result != true {
			t.Fatalf("expected true, got %v", result)
		}
	}
	if cache.sets != 1 {
		t.Fatalf("expected one compilation, got %d", cache.sets)
	}
}

func TestExprCompiledPolicy(t *testing.T) {
	evaluator := NewExprPolicyEvaluator()
	compiled, err := evaluator.Compile(`url startsWith "/docs"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	result, err := compiled.Evaluate(PolicyContext{URL: "/docs/intro"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}

	result, err = compiled.Evaluate(PolicyContext{URL: "/blog"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result != false {
		t.Fatalf("expected false, got %v", result)
	}
}

func TestExprFailureWrapsPolicyError(t *testing.T) {
	evaluator := NewExprPolicyEvaluator()
	_, err := evaluator.Evaluate(PolicyContext{URL: "/a"}, `((`)
	if err == nil {
		t.Fatal("expected a compile failure")
	}
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected PolicyError, got %T", err)
	}
	if policyErr.Engine != "expr" {
		t.Fatalf("expected expr engine on error, got %q", policyErr.Engine)
	}
}

func TestCELEvaluateBindings(t *testing.T) {
	evaluator := NewCELPolicyEvaluator()
	ctx := PolicyContext{
		URL:      "/admin/users",
		Route:    "/admin/users",
		Metadata: map[string]any{"tier": "pro"},
	}

	result, err := evaluator.Evaluate(ctx, `url.startsWith("/admin") && metadata.tier == "pro"`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}

	result, err = evaluator.Evaluate(ctx, `url.matches("^/admin/[a-z]+$")`)
	if err != nil {
		t.Fatalf("evaluate regex: %v", err)
	}
	if result != true {
		t.Fatalf("expected regex match, got %v", result)
	}
}

func TestCELRegistryCall(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("greet", func(args ...any) (any, error) {
		name, _ := args[0].(string)
		return "hello " + name, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	evaluator := NewCELPolicyEvaluator(CELWithFunctionRegistry(registry))
	result, err := evaluator.Evaluate(PolicyContext{}, `call("greet", "world") == "hello world"`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}
}

func TestCELProgramCacheReuse(t *testing.T) {
	cache := newMapCache()
	evaluator := NewCELPolicyEvaluator(CELWithProgramCache(cache))

	for range 3 {
		if _, err := evaluator.Evaluate(PolicyContext{URL: "/a"}, `url == "/a"`); err != nil {
			t.Fatalf("evaluate: %v", err)
		}
	}
	if cache.sets != 1 {
		t.Fatalf("expected one compilation, got %d", cache.sets)
	}
}

func TestCELFailureWrapsPolicyError(t *testing.T) {
	evaluator := NewCELPolicyEvaluator()
	_, err := evaluator.Evaluate(PolicyContext{URL: "/a"}, `undefined_symbol + 1`)
	if err == nil {
		t.Fatal("expected a check failure")
	}
	var policyErr *PolicyError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected PolicyError, got %T", err)
	}
	if policyErr.Engine != "cel" {
		t.Fatalf("expected cel engine on error, got %q", policyErr.Engine)
	}
}

func TestPolicyEngineName(t *testing.T) {
	if name := policyEngineName(NewExprPolicyEvaluator()); name != "expr" {
		t.Fatalf("expected expr, got %q", name)
	}
	if name := policyEngineName(NewCELPolicyEvaluator()); name != "cel" {
		t.Fatalf("expected cel, got %q", name)
	}
	if name := policyEngineName(nil); name != "unknown" {
		t.Fatalf("expected unknown, got %q", name)
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("Upper", func(args ...any) (any, error) {
		return args[0], nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("upper", func(args ...any) (any, error) {
		return nil, nil
	}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	result, err := registry.Call("UPPER", "x")
	if err != nil {
		t.Fatalf("case-insensitive call: %v", err)
	}
	if result != "x" {
		t.Fatalf("unexpected result %v", result)
	}

	clone := registry.Clone()
	if err := clone.Register("extra", func(args ...any) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("register on clone: %v", err)
	}
	if _, err := registry.Call("extra"); err == nil {
		t.Fatal("expected clone registration to be invisible to the original")
	}
}
