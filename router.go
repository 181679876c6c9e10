package appstate

import "context"

// RouteServer is the load-state sentinel a Router reports outside interactive
// contexts (server-side rendering, tests without a live router). Snapshots
// captured before the first interactive render carry it as their route.
const RouteServer = "SERVER"

// Router exposes the navigation primitives the engine depends on. The engine
// never inspects router internals beyond the current route.
type Router interface {
	// CurrentRoute returns the route the app is currently on, or RouteServer
	// when no route is known yet.
	CurrentRoute() string
	// Reload re-renders the current route in place so a freshly staged frozen
	// snapshot gets a chance to be consumed.
	Reload()
	// Navigate moves the app to the given route.
	Navigate(route string)
}

// RouteVerdict classifies the outcome of matching a path against the app's
// render configuration.
type RouteVerdict int

const (
	// VerdictFound means the path resolved to a template.
	VerdictFound RouteVerdict = iota
	// VerdictNotFound means no template serves the path.
	VerdictNotFound
	// VerdictLocaleRedirect means the path must first be redirected to a
	// localised variant before it can be served.
	VerdictLocaleRedirect
)

// RouteInfo describes a successfully matched route.
type RouteInfo struct {
	// Locale the matched page renders in.
	Locale string
	// Template identifies the template that renders the page.
	Template string
	// WasIncrementalMatch reports whether the match came from incremental
	// generation rather than a prerendered page.
	WasIncrementalMatch bool
}

// RouteMatch is the full verdict for one path.
type RouteMatch struct {
	Verdict RouteVerdict
	Info    RouteInfo
	// RedirectTo carries the localised destination for VerdictLocaleRedirect.
	RedirectTo string
}

// RouteMatcher maps a path onto the app's render configuration. Implemented by
// the routing layer; the engine only consumes verdicts during preloads.
type RouteMatcher interface {
	Match(path string) RouteMatch
}

// Transport fetches the serialized state for one page from the server.
type Transport interface {
	// FetchPageState returns the serialized state string for the
	// (url, locale, template) tuple. wasIncremental mirrors
	// RouteInfo.WasIncrementalMatch so servers can pick the right source.
	FetchPageState(ctx context.Context, url, locale, template string, wasIncremental bool) (string, error)
}

// TransportFunc adapts a plain function to Transport.
type TransportFunc func(ctx context.Context, url, locale, template string, wasIncremental bool) (string, error)

// FetchPageState dispatches to the underlying function.
func (fn TransportFunc) FetchPageState(ctx context.Context, url, locale, template string, wasIncremental bool) (string, error) {
	return fn(ctx, url, locale, template, wasIncremental)
}
