package appstate

import (
	"github.com/goliatone/go-appstate/internal/codec"
	"github.com/goliatone/go-appstate/pkg/activity"
)

// ActiveOrFrozenPageState resolves the state for url against the pending
// frozen snapshot and the live page state store. With no snapshot pending it
// is a plain store read. With one pending, the per-page thaw preference picks
// which source is consulted first and the other serves as fallback.
//
// A frozen entry that wins is consumed exactly once: it is decoded, promoted
// into the live store, and removed from the snapshot, all atomically with the
// lookup. A frozen entry that fails to decode is a soft miss; the entry stays
// in place and resolution falls through to the other source.
func ActiveOrFrozenPageState[T any](e *Engine, url string) (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.frozen == nil {
		value, ok := GetPageState[T](e.pss, url)
		e.recordTraceLocked(url, activeSource(ok), false, false)
		return value, ok
	}

	preferFrozen := e.pagePrefersFrozenLocked(url)
	if preferFrozen {
		if value, ok, corrupt := consumeFrozenPageLocked[T](e, url); ok {
			e.recordTraceLocked(url, SourceFrozen, true, false)
			return value, true
		} else if value, active := GetPageState[T](e.pss, url); active {
			e.recordTraceLocked(url, SourceActive, true, corrupt)
			return value, true
		} else {
			e.recordTraceLocked(url, SourceAbsent, true, corrupt)
			return value, false
		}
	}

	if value, ok := GetPageState[T](e.pss, url); ok {
		e.recordTraceLocked(url, SourceActive, false, false)
		return value, true
	}
	value, ok, corrupt := consumeFrozenPageLocked[T](e, url)
	e.recordTraceLocked(url, frozenSource(ok), false, corrupt)
	return value, ok
}

// ActiveOrFrozenGlobalState is the global-state counterpart of
// ActiveOrFrozenPageState, resolving against the pending snapshot's global
// field and the live slot. The snapshot's global state is likewise consumed
// exactly once: on success the field collapses to the absent sentinel.
func ActiveOrFrozenGlobalState[T any](e *Engine) (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.frozen == nil {
		value, ok := GetGlobal[T](e.global)
		e.recordTraceLocked("", activeSource(ok), false, false)
		return value, ok
	}

	preferFrozen := e.frozen.prefs.GlobalPreferFrozen
	if preferFrozen {
		if value, ok, corrupt := consumeFrozenGlobalLocked[T](e); ok {
			e.recordTraceLocked("", SourceFrozen, true, false)
			return value, true
		} else if value, active := GetGlobal[T](e.global); active {
			e.recordTraceLocked("", SourceActive, true, corrupt)
			return value, true
		} else {
			e.recordTraceLocked("", SourceAbsent, true, corrupt)
			return value, false
		}
	}

	if value, ok := GetGlobal[T](e.global); ok {
		e.recordTraceLocked("", SourceActive, false, false)
		return value, true
	}
	value, ok, corrupt := consumeFrozenGlobalLocked[T](e)
	e.recordTraceLocked("", frozenSource(ok), false, corrupt)
	return value, ok
}

// RegisterPageState decodes raw as T and installs it as the live state for
// url. A decode failure surfaces as a StateInvalidError and installs nothing.
// Registration for a stateless-flagged page is silently dropped; the decoded
// value is still returned so the caller can render with it.
func RegisterPageState[T any](e *Engine, url, raw string) (T, error) {
	value, err := codec.Decode[T](codec.Context{URL: url, Source: "registration"}, raw)
	if err != nil {
		var zero T
		return zero, &StateInvalidError{URL: url, Err: err}
	}
	_ = e.pss.AddState(url, value)
	e.emit(activity.BuildPageStateRegisteredEvent(activity.StateEventInput{URL: url}))
	return value, nil
}

// RegisterGlobalState decodes raw as T and installs it in the global slot,
// replacing any previous value.
func RegisterGlobalState[T any](e *Engine, raw string) (T, error) {
	value, err := codec.Decode[T](codec.Context{Source: "registration"}, raw)
	if err != nil {
		var zero T
		return zero, &StateInvalidError{Err: err}
	}
	e.global.Set(value)
	e.emit(activity.BuildGlobalStateRegisteredEvent(activity.StateEventInput{}))
	return value, nil
}

// consumeFrozenPageLocked attempts the frozen branch for url. The three
// results are (value, hit, corrupt): corrupt marks an entry that was present
// but undecodable and was deliberately left in the snapshot. A hit removes
// the entry and promotes the value into the live store; a page flagged
// stateless rejects the promotion and the entry is treated as absent.
// Caller holds e.mu.
func consumeFrozenPageLocked[T any](e *Engine, url string) (T, bool, bool) {
	var zero T
	raw, present := e.frozen.app.PageStateStore[url]
	if !present {
		return zero, false, false
	}
	value, err := codec.Decode[T](codec.Context{URL: url, Source: "frozen"}, raw)
	if err != nil {
		return zero, false, true
	}
	if !e.pss.AddState(url, value) {
		return zero, false, false
	}
	delete(e.frozen.app.PageStateStore, url)
	return value, true, false
}

// consumeFrozenGlobalLocked mirrors consumeFrozenPageLocked for the global
// field, where absence is the sentinel value rather than a missing key.
func consumeFrozenGlobalLocked[T any](e *Engine) (T, bool, bool) {
	var zero T
	if !e.frozen.app.HasGlobalState() {
		return zero, false, false
	}
	value, err := codec.Decode[T](codec.Context{Source: "frozen"}, e.frozen.app.GlobalState)
	if err != nil {
		return zero, false, true
	}
	e.global.Set(value)
	e.frozen.app.GlobalState = GlobalStateNone
	return value, true, false
}

func activeSource(ok bool) Source {
	if ok {
		return SourceActive
	}
	return SourceAbsent
}

func frozenSource(ok bool) Source {
	if ok {
		return SourceFrozen
	}
	return SourceAbsent
}
