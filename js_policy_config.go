package appstate

type jsPolicyConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// JSPolicyOption configures the JS policy evaluator.
type JSPolicyOption func(*jsPolicyConfig)

// JSWithProgramCache applies a ProgramCache to the JS policy evaluator.
func JSWithProgramCache(cache ProgramCache) JSPolicyOption {
	return func(cfg *jsPolicyConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry applies a FunctionRegistry to the JS policy
// evaluator.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSPolicyOption {
	return func(cfg *jsPolicyConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyJSPolicyOptions(opts []JSPolicyOption) jsPolicyConfig {
	cfg := jsPolicyConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
