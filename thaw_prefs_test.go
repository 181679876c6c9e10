package appstate

import (
	"errors"
	"fmt"
	"testing"
)

// policyFactories enumerates the in-tree policy engines. Pattern syntax
// differs per engine, so each factory carries a prefix-match builder.
var policyFactories = []struct {
	name       string
	factory    func() PolicyEvaluator
	startsWith func(prefix string) string
}{
	{
		name:       "expr",
		factory:    func() PolicyEvaluator { return NewExprPolicyEvaluator() },
		startsWith: func(prefix string) string { return fmt.Sprintf("url startsWith %q", prefix) },
	},
	{
		name:       "cel",
		factory:    func() PolicyEvaluator { return NewCELPolicyEvaluator() },
		startsWith: func(prefix string) string { return fmt.Sprintf("url.startsWith(%q)", prefix) },
	},
}

func TestResolveExactOverrideWinsOverRules(t *testing.T) {
	for _, engine := range policyFactories {
		t.Run(engine.name, func(t *testing.T) {
			prefs := PageThawPrefs{
				PreferFrozenDefault: true,
				Exact:               map[string]bool{"/admin/users": false},
				Rules:               []PatternRule{{Pattern: engine.startsWith("/admin"), PreferFrozen: true}},
			}
			pref, err := prefs.Resolve("/admin/users", engine.factory())
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if pref {
				t.Fatal("expected exact override to win over the matching rule")
			}
		})
	}
}

func TestResolveFirstMatchingRuleWins(t *testing.T) {
	for _, engine := range policyFactories {
		t.Run(engine.name, func(t *testing.T) {
			prefs := PageThawPrefs{
				PreferFrozenDefault: true,
				Rules: []PatternRule{
					{Pattern: engine.startsWith("/admin"), PreferFrozen: false},
					{Pattern: engine.startsWith("/"), PreferFrozen: true},
				},
			}

			pref, err := prefs.Resolve("/admin/users", engine.factory())
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if pref {
				t.Fatal("expected the admin rule to win")
			}

			pref, err = prefs.Resolve("/dashboard", engine.factory())
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !pref {
				t.Fatal("expected the catch-all rule to win")
			}
		})
	}
}

func TestResolveDefaultWhenNothingMatches(t *testing.T) {
	for _, engine := range policyFactories {
		t.Run(engine.name, func(t *testing.T) {
			prefs := PageThawPrefs{
				PreferFrozenDefault: true,
				Rules:               []PatternRule{{Pattern: engine.startsWith("/admin"), PreferFrozen: false}},
			}
			pref, err := prefs.Resolve("/public", engine.factory())
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if !pref {
				t.Fatal("expected the default to apply")
			}
		})
	}
}

func TestResolveSkipsFailingRules(t *testing.T) {
	for _, engine := range policyFactories {
		t.Run(engine.name, func(t *testing.T) {
			prefs := PageThawPrefs{
				PreferFrozenDefault: false,
				Rules: []PatternRule{
					{Pattern: "((", PreferFrozen: false},
					{Pattern: engine.startsWith("/a"), PreferFrozen: true},
				},
			}
			pref, err := prefs.Resolve("/a", engine.factory())
			if err == nil {
				t.Fatal("expected the broken rule's failure to be reported")
			}
			var policyErr *PolicyError
			if !errors.As(err, &policyErr) {
				t.Fatalf("expected PolicyError, got %T", err)
			}
			if !pref {
				t.Fatal("expected resolution to continue past the broken rule")
			}
		})
	}
}

func TestResolveNonBooleanVerdictFails(t *testing.T) {
	prefs := PageThawPrefs{
		PreferFrozenDefault: true,
		Rules:               []PatternRule{{Pattern: `len(url)`, PreferFrozen: false}},
	}
	pref, err := prefs.Resolve("/a", NewExprPolicyEvaluator())
	if err == nil {
		t.Fatal("expected a non-boolean verdict to be reported")
	}
	if !pref {
		t.Fatal("expected the default to apply")
	}
}

func TestResolveNilEvaluatorSkipsRules(t *testing.T) {
	prefs := PageThawPrefs{
		PreferFrozenDefault: true,
		Rules:               []PatternRule{{Pattern: `url == "/a"`, PreferFrozen: false}},
	}
	pref, err := prefs.Resolve("/a", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !pref {
		t.Fatal("expected the default when no evaluator is configured")
	}
}

func TestPrefFactories(t *testing.T) {
	all := PreferFrozenAll()
	if pref, _ := all.Page.Resolve("/any", nil); !pref || !all.GlobalPreferFrozen {
		t.Fatal("PreferFrozenAll must prefer frozen everywhere")
	}
	active := PreferActiveAll()
	if pref, _ := active.Page.Resolve("/any", nil); pref || active.GlobalPreferFrozen {
		t.Fatal("PreferActiveAll must prefer active everywhere")
	}

	except := PreferFrozenExcept("/live")
	if pref, _ := except.Page.Resolve("/live", nil); pref {
		t.Fatal("excepted URL must prefer active")
	}
	if pref, _ := except.Page.Resolve("/other", nil); !pref {
		t.Fatal("non-excepted URL must prefer frozen")
	}

	only := PreferFrozenOnly("/restore")
	if pref, _ := only.Page.Resolve("/restore", nil); !pref {
		t.Fatal("listed URL must prefer frozen")
	}
	if pref, _ := only.Page.Resolve("/other", nil); pref {
		t.Fatal("unlisted URL must prefer active")
	}
}
