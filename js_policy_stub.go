//go:build !js_eval

package appstate

// NewJSPolicyEvaluator is unavailable without the js_eval build tag.
func NewJSPolicyEvaluator(opts ...JSPolicyOption) PolicyEvaluator {
	_ = applyJSPolicyOptions(opts)
	return nil
}
