// Package appstate implements the client-side state reconciliation engine for
// a server-rendered, hydrated single-page application. For every page visit it
// decides whether to serve freshly generated state, state already active from
// an earlier visit, or state restored from a previously frozen snapshot of the
// whole app.
//
// Responsibilities:
//   - Engine owns the page state store, the global state slot, and the single
//     pending frozen slot; all mutation happens through its entry points.
//   - Freeze serialises every live state value plus the current route into a
//     portable JSON snapshot; Thaw stages a snapshot together with
//     ThawPrefs and navigates back to the captured route.
//   - ActiveOrFrozenPageState / ActiveOrFrozenGlobalState resolve one request
//     to frozen, active, or absent, consuming frozen entries exactly once and
//     falling back silently on corrupt entries.
//
// Precedence between frozen and active state is user-declared through
// ThawPrefs: a global boolean for the app-wide slot and, per page, exact URL
// overrides plus ordered pattern rules evaluated by a pluggable
// PolicyEvaluator (expr and CEL engines ship in-tree, a goja engine is
// available behind the js_eval build tag).
//
// The routing layer, the transport that fetches page data, and the reactive UI
// binding are collaborators consumed through the Router, RouteMatcher and
// Transport interfaces; the engine owns none of their internals.
package appstate
