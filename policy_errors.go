package appstate

import (
	"errors"
	"fmt"
	"strings"
)

// PolicyError captures policy-engine metadata alongside the originating
// evaluation failure.
type PolicyError struct {
	Engine string
	Expr   string
	URL    string
	Err    error
}

func (e *PolicyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("appstate: %s policy %s url=%s: %v", e.Engine, describePattern(e.Expr), e.URL, e.Err)
}

func (e *PolicyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describePattern(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapPolicyError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var policyErr *PolicyError
	if errors.As(err, &policyErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "appstate:") {
		return err
	}
	return fmt.Errorf("appstate: %s policy: %w", engine, err)
}

func wrapPolicyEvaluationError(engine, expr, url string, err error) error {
	if err == nil {
		return nil
	}

	var policyErr *PolicyError
	if errors.As(err, &policyErr) {
		if policyErr.Engine == "" {
			policyErr.Engine = engine
		}
		if policyErr.Expr == "" {
			policyErr.Expr = expr
		}
		if policyErr.URL == "" {
			policyErr.URL = url
		}
		return policyErr
	}

	return &PolicyError{
		Engine: engine,
		Expr:   expr,
		URL:    url,
		Err:    err,
	}
}
