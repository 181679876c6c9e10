package appstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-appstate/internal/codec"
	"github.com/goliatone/go-appstate/pkg/activity"
	"github.com/google/uuid"
)

// DefaultStoreSize bounds the page state store when no size is configured.
const DefaultStoreSize = 25

// pendingFrozen pairs a staged snapshot with the preferences that govern its
// consumption. At most one is pending at a time.
type pendingFrozen struct {
	app   FrozenApp
	prefs ThawPrefs
}

// Engine owns the page state store, the global state slot, and the single
// pending-frozen slot, and reconciles every state request against them.
// External components never mutate those directly; they go through the
// engine's entry points, which serialize access internally.
type Engine struct {
	mu      sync.Mutex
	frozen  *pendingFrozen
	isFirst bool

	router  Router
	matcher RouteMatcher
	pss     *PageStateStore
	global  *GlobalStateSlot

	policy       PolicyEvaluator
	policyCache  ProgramCache
	registry     *FunctionRegistry
	policyLogger PolicyLogger
	emitter      *activity.Emitter

	traces      map[string]Trace
	globalTrace *Trace
}

type engineConfig struct {
	storeSize    int
	router       Router
	matcher      RouteMatcher
	transport    Transport
	policy       PolicyEvaluator
	policyCache  ProgramCache
	registry     *FunctionRegistry
	policyLogger PolicyLogger
	hooks        activity.Hooks
	channel      string
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithRouter wires the navigation collaborator. Freeze and Thaw both require
// one.
func WithRouter(router Router) Option {
	return func(cfg *engineConfig) {
		cfg.router = router
	}
}

// WithRouteMatcher wires the route-matching collaborator used by preloads.
func WithRouteMatcher(matcher RouteMatcher) Option {
	return func(cfg *engineConfig) {
		cfg.matcher = matcher
	}
}

// WithTransport wires the page-data fetcher used by preloads.
func WithTransport(transport Transport) Option {
	return func(cfg *engineConfig) {
		cfg.transport = transport
	}
}

// WithStoreSize bounds the page state store. Zero or below retains nothing,
// which is the configuration used where no state should accumulate.
func WithStoreSize(size int) Option {
	return func(cfg *engineConfig) {
		cfg.storeSize = size
	}
}

// WithPolicyEvaluator replaces the default expr-backed thaw-policy engine.
func WithPolicyEvaluator(evaluator PolicyEvaluator) Option {
	return func(cfg *engineConfig) {
		cfg.policy = evaluator
	}
}

// WithPolicyCache registers a compiled-pattern cache on the default policy
// engine.
func WithPolicyCache(cache ProgramCache) Option {
	return func(cfg *engineConfig) {
		cfg.policyCache = cache
	}
}

// WithFunctionRegistry exposes custom helpers to thaw-policy expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// WithPolicyLogger records thaw-policy evaluations.
func WithPolicyLogger(logger PolicyLogger) Option {
	return func(cfg *engineConfig) {
		if logger == nil {
			cfg.policyLogger = noopPolicyLogger{}
			return
		}
		cfg.policyLogger = logger
	}
}

// WithActivityHooks attaches lifecycle hooks; without any the engine emits
// nothing.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(cfg *engineConfig) {
		cfg.hooks = hooks
	}
}

// WithActivityChannel overrides the default channel stamped on emitted
// events.
func WithActivityChannel(channel string) Option {
	return func(cfg *engineConfig) {
		cfg.channel = channel
	}
}

// New constructs an engine for one session. The page state store bound is
// fixed for the engine's lifetime.
func New(opts ...Option) *Engine {
	cfg := engineConfig{
		storeSize:    DefaultStoreSize,
		policyLogger: noopPolicyLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Engine{
		isFirst:      true,
		router:       cfg.router,
		matcher:      cfg.matcher,
		pss:          NewPageStateStore(cfg.storeSize, cfg.transport),
		global:       NewGlobalStateSlot(),
		policy:       cfg.policy,
		policyCache:  cfg.policyCache,
		registry:     cfg.registry,
		policyLogger: cfg.policyLogger,
		emitter:      activity.NewEmitter(cfg.hooks, activity.Config{Enabled: len(cfg.hooks) > 0, Channel: cfg.channel}),
		traces:       make(map[string]Trace),
	}
}

// Store returns the page state store. Mutating entry points remain the
// documented ones; the accessor exists for flag and preload inspection.
func (e *Engine) Store() *PageStateStore {
	return e.pss
}

// Global returns the global state slot.
func (e *Engine) Global() *GlobalStateSlot {
	return e.global
}

// IsFirst reports whether the session is still on its very first render,
// before any completed navigation.
func (e *Engine) IsFirst() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isFirst
}

// FrozenPending reports whether a thawed snapshot is staged for consumption.
func (e *Engine) FrozenPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frozen != nil
}

// CompleteNavigation is the route-transition hook: the router layer calls it
// after a navigation has successfully landed on route. It expires
// route-scoped preloads and ends the first-render window.
func (e *Engine) CompleteNavigation(route string) {
	e.mu.Lock()
	e.isFirst = false
	e.mu.Unlock()
	e.pss.InvalidateRoutePreloads()
}

// Reset clears all live state, pending frozen state, and traces. The
// stateless flags are cleared too: this is the app-wide reset, not a
// navigation.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frozen = nil
	e.traces = make(map[string]Trace)
	e.globalTrace = nil
	e.pss.Clear()
	e.global.Clear()
}

// Freeze serialises the current live global state, the current route, and a
// copy of every entry in the page state store into a portable snapshot.
// Freezing never mutates the live stores.
//
// Freeze panics when no route is known (e.g. a non-interactive context):
// there is nothing sensible to restore to in a snapshot without a route.
func (e *Engine) Freeze() (string, error) {
	route := e.currentRoute()
	if route == "" || route == RouteServer {
		panic("appstate: freeze requires an interactive context with a known route")
	}

	globalState := GlobalStateNone
	if value, ok := e.global.raw(); ok {
		encoded, err := codec.Encode(value)
		if err != nil {
			return "", fmt.Errorf("appstate: freeze global state: %w", err)
		}
		globalState = encoded
	}

	pages, err := e.pss.freezeToMap(codec.Encode)
	if err != nil {
		return "", err
	}

	frozen, err := FrozenApp{
		Route:          route,
		GlobalState:    globalState,
		PageStateStore: pages,
	}.Encode()
	if err != nil {
		return "", err
	}

	e.emit(activity.BuildStateFrozenEvent(activity.StateEventInput{
		Route:      route,
		SnapshotID: uuid.NewString(),
		PageCount:  len(pages),
	}))
	return frozen, nil
}

// Thaw parses frozen and stages it, together with prefs, as the pending
// snapshot for subsequent reconciliation calls. A parse failure returns a
// ThawError and leaves any previously pending snapshot untouched. On success
// the engine reloads the current route when it matches the snapshot's (or the
// snapshot predates any route), and navigates to the snapshot's route
// otherwise. Thawing itself never reads page or global values.
//
// Thaw panics outside an interactive context: restoring UI state where no UI
// exists has no sensible recovery.
func (e *Engine) Thaw(frozen string, prefs ThawPrefs) error {
	app, err := ParseFrozenApp(frozen)
	if err != nil {
		return &ThawError{Err: err}
	}

	current := e.currentRoute()
	if current == "" || current == RouteServer {
		panic("appstate: thaw requires an interactive context (browser-side only)")
	}

	e.mu.Lock()
	e.frozen = &pendingFrozen{app: app.clone(), prefs: prefs}
	e.mu.Unlock()

	action := "navigate"
	if current == app.Route || app.Route == RouteServer {
		action = "reload"
		e.router.Reload()
	} else {
		e.router.Navigate(app.Route)
	}

	e.emit(activity.BuildStateThawedEvent(activity.StateEventInput{
		Route:  app.Route,
		Action: action,
	}))
	return nil
}

// RegisterPageNoState permanently flags url as stateless, allowing its
// rendered output to be cached aggressively. Later state registrations for it
// are silently rejected.
func (e *Engine) RegisterPageNoState(url string) {
	e.pss.SetStateNever(url)
	e.emit(activity.BuildPageStatelessEvent(activity.StateEventInput{URL: url}))
}

// TryPreload fetches and caches the page data for url for the rest of the
// session.
func (e *Engine) TryPreload(ctx context.Context, url string) error {
	return e.preload(ctx, url, false)
}

// TryRoutePreload fetches and caches the page data for url until the next
// completed navigation.
func (e *Engine) TryRoutePreload(ctx context.Context, url string) error {
	return e.preload(ctx, url, true)
}

func (e *Engine) preload(ctx context.Context, url string, routeScoped bool) error {
	if e.matcher == nil {
		return fmt.Errorf("appstate: preload %q: route matcher not configured", url)
	}
	match := e.matcher.Match(url)
	switch match.Verdict {
	case VerdictFound:
	case VerdictNotFound:
		return ErrPreloadNotFound
	case VerdictLocaleRedirect:
		return ErrPreloadLocaleRedirect
	default:
		return fmt.Errorf("appstate: preload %q: unknown route verdict %d", url, match.Verdict)
	}

	info := match.Info
	if err := e.pss.Preload(ctx, url, info.Locale, info.Template, info.WasIncrementalMatch, routeScoped); err != nil {
		return err
	}
	e.emit(activity.BuildPreloadCompletedEvent(activity.StateEventInput{URL: url}))
	return nil
}

// Trace returns the provenance of the last reconciliation decision for url.
func (e *Engine) Trace(url string) (Trace, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	trace, ok := e.traces[url]
	return trace, ok
}

// GlobalTrace returns the provenance of the last global-state reconciliation.
func (e *Engine) GlobalTrace() (Trace, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.globalTrace == nil {
		return Trace{}, false
	}
	return *e.globalTrace, true
}

func (e *Engine) currentRoute() string {
	if e.router == nil {
		return RouteServer
	}
	return e.router.CurrentRoute()
}

// policyEvaluator returns the configured engine, lazily defaulting to expr
// with whatever cache and registry were supplied.
func (e *Engine) policyEvaluator() PolicyEvaluator {
	if e.policy != nil {
		return e.policy
	}
	var exprOpts []ExprPolicyOption
	if e.policyCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(e.policyCache))
	}
	if e.registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(e.registry))
	}
	e.policy = NewExprPolicyEvaluator(exprOpts...)
	return e.policy
}

// pagePrefersFrozenLocked resolves the per-page policy. Rule failures are
// logged and resolution falls through to the remaining rules and default.
// Caller holds e.mu.
func (e *Engine) pagePrefersFrozenLocked(url string) bool {
	prefs := e.frozen.prefs.Page
	evaluator := e.policyEvaluator()
	start := time.Now()
	pref, err := prefs.Resolve(url, evaluator)
	e.policyLogger.LogPolicy(PolicyLogEvent{
		Engine:   policyEngineName(evaluator),
		URL:      url,
		Duration: time.Since(start),
		Err:      err,
	})
	return pref
}

func (e *Engine) emit(event activity.Event) {
	if e.emitter == nil || !e.emitter.Enabled() {
		return
	}
	_ = e.emitter.Emit(context.Background(), event)
}

func (e *Engine) recordTraceLocked(url string, source Source, preferFrozen, corrupt bool) {
	trace := Trace{
		URL:           url,
		Source:        source,
		PreferFrozen:  preferFrozen,
		FrozenCorrupt: corrupt,
		ResolvedAt:    time.Now(),
	}
	if url == "" {
		e.globalTrace = &trace
		return
	}
	e.traces[url] = trace
}
