package appstate

import (
	"encoding/json"
	"fmt"
)

// GlobalStateNone is the wire sentinel recording that no global state existed
// at freeze time. It is distinct from an empty string, which is a valid
// (if unusual) serialized value.
const GlobalStateNone = "None"

// FrozenApp is a portable snapshot of every piece of live state the app held
// at freeze time, still serialized. It is immutable once parsed except for the
// engine removing entries it has consumed (each entry is read exactly once).
//
// The wire form is exactly three fields; consumers must preserve the
// GlobalStateNone sentinel distinctly from an empty string.
type FrozenApp struct {
	// Route the app was on when the snapshot was captured, or RouteServer for
	// captures that predate the first interactive render.
	Route string `json:"route"`
	// GlobalState is the serialized global state, or GlobalStateNone.
	GlobalState string `json:"global_state"`
	// PageStateStore maps each URL that held state to its serialized value.
	PageStateStore map[string]string `json:"page_state_store"`
}

// ParseFrozenApp parses a serialized snapshot atomically: a malformed payload
// fails as a whole before any state could be applied. Individual page entries
// are not validated here; a corrupt entry only surfaces (silently) when the
// engine attempts to consume it.
func ParseFrozenApp(frozen string) (FrozenApp, error) {
	// Pointer fields distinguish a field that is genuinely missing from one
	// holding an empty string, which remains a legal (if undecodable) value.
	var raw struct {
		Route          *string           `json:"route"`
		GlobalState    *string           `json:"global_state"`
		PageStateStore map[string]string `json:"page_state_store"`
	}
	if err := json.Unmarshal([]byte(frozen), &raw); err != nil {
		return FrozenApp{}, fmt.Errorf("appstate: parse frozen app: %w", err)
	}
	if raw.Route == nil || *raw.Route == "" {
		return FrozenApp{}, fmt.Errorf("appstate: parse frozen app: missing route")
	}
	if raw.GlobalState == nil {
		return FrozenApp{}, fmt.Errorf("appstate: parse frozen app: missing global state (use %q for absence)", GlobalStateNone)
	}
	app := FrozenApp{
		Route:          *raw.Route,
		GlobalState:    *raw.GlobalState,
		PageStateStore: raw.PageStateStore,
	}
	if app.PageStateStore == nil {
		app.PageStateStore = map[string]string{}
	}
	return app, nil
}

// Encode serialises the snapshot into its wire form.
func (a FrozenApp) Encode() (string, error) {
	if a.GlobalState == "" {
		a.GlobalState = GlobalStateNone
	}
	if a.PageStateStore == nil {
		a.PageStateStore = map[string]string{}
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("appstate: encode frozen app: %w", err)
	}
	return string(payload), nil
}

// HasGlobalState reports whether the snapshot carries global state.
func (a FrozenApp) HasGlobalState() bool {
	return a.GlobalState != GlobalStateNone && a.GlobalState != ""
}

// clone detaches the page map so a staged snapshot cannot be mutated through
// the caller's copy.
func (a FrozenApp) clone() FrozenApp {
	out := a
	out.PageStateStore = make(map[string]string, len(a.PageStateStore))
	for url, state := range a.PageStateStore {
		out.PageStateStore[url] = state
	}
	return out
}
