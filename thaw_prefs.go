package appstate

import (
	"errors"
	"fmt"
)

// PatternRule pairs a policy expression with the preference it declares.
// The expression is evaluated by the configured PolicyEvaluator with the
// candidate URL bound as `url`; a rule applies when it evaluates to true.
type PatternRule struct {
	Pattern      string
	PreferFrozen bool
}

// PageThawPrefs declares, per page, whether frozen state wins over active
// state. Exact URL overrides are consulted first, then pattern rules in
// declaration order, then the default.
type PageThawPrefs struct {
	// PreferFrozenDefault applies when no override or rule matches.
	PreferFrozenDefault bool
	// Exact maps a URL to its preference, bypassing rule evaluation.
	Exact map[string]bool
	// Rules are evaluated in order; the first matching rule wins.
	Rules []PatternRule
}

// ThawPrefs is the policy object staged alongside a frozen snapshot. It is
// immutable for the lifetime of one thaw cycle and replaced wholesale by the
// next Thaw call.
type ThawPrefs struct {
	// GlobalPreferFrozen controls the app-wide state slot.
	GlobalPreferFrozen bool
	// Page controls the per-page slots.
	Page PageThawPrefs
}

// PreferFrozenAll returns preferences that favour frozen state everywhere,
// global slot included.
func PreferFrozenAll() ThawPrefs {
	return ThawPrefs{
		GlobalPreferFrozen: true,
		Page:               PageThawPrefs{PreferFrozenDefault: true},
	}
}

// PreferActiveAll returns preferences that favour active state everywhere.
func PreferActiveAll() ThawPrefs {
	return ThawPrefs{}
}

// PreferFrozenExcept returns preferences that favour frozen state for every
// URL except the listed ones.
func PreferFrozenExcept(urls ...string) ThawPrefs {
	prefs := PreferFrozenAll()
	if len(urls) == 0 {
		return prefs
	}
	prefs.Page.Exact = make(map[string]bool, len(urls))
	for _, url := range urls {
		prefs.Page.Exact[url] = false
	}
	return prefs
}

// PreferFrozenOnly returns preferences that favour frozen state for the
// listed URLs only.
func PreferFrozenOnly(urls ...string) ThawPrefs {
	prefs := ThawPrefs{}
	if len(urls) == 0 {
		return prefs
	}
	prefs.Page.Exact = make(map[string]bool, len(urls))
	for _, url := range urls {
		prefs.Page.Exact[url] = true
	}
	return prefs
}

// Resolve reports whether frozen state is preferred for url. Rule evaluation
// failures do not abort resolution: the failing rule is skipped and the
// failures come back joined so the caller can log them. Exact overrides never
// fail. A nil evaluator skips pattern rules entirely.
func (p PageThawPrefs) Resolve(url string, evaluator PolicyEvaluator) (bool, error) {
	if pref, ok := p.Exact[url]; ok {
		return pref, nil
	}
	if evaluator == nil || len(p.Rules) == 0 {
		return p.PreferFrozenDefault, nil
	}

	var errs []error
	for _, rule := range p.Rules {
		matched, err := evaluatePolicyBool(evaluator, PolicyContext{URL: url}, rule.Pattern)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if matched {
			return rule.PreferFrozen, errors.Join(errs...)
		}
	}
	return p.PreferFrozenDefault, errors.Join(errs...)
}

// evaluatePolicyBool runs expression and requires a boolean verdict.
func evaluatePolicyBool(evaluator PolicyEvaluator, ctx PolicyContext, expression string) (bool, error) {
	result, err := evaluator.Evaluate(ctx, expression)
	if err != nil {
		return false, err
	}
	verdict, ok := result.(bool)
	if !ok {
		engine := policyEngineName(evaluator)
		return false, wrapPolicyEvaluationError(engine, expression, ctx.URL,
			fmt.Errorf("policy expression must evaluate to bool, got %T", result))
	}
	return verdict, nil
}
