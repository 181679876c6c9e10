package appstate

import (
	"errors"
	"fmt"
)

// ErrPreloadNotFound is returned when a preloaded path matches no route.
var ErrPreloadNotFound = errors.New("appstate: preload route not found")

// ErrPreloadLocaleRedirect is returned when a preloaded path needs a locale
// redirect before it can be served; preloading does not follow redirects.
var ErrPreloadLocaleRedirect = errors.New("appstate: preload route requires locale redirect")

// ThawError reports that a serialized snapshot failed to parse as a whole.
// Any previously pending snapshot is left untouched when this is returned.
type ThawError struct {
	Err error
}

func (e *ThawError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("appstate: thaw failed: %v", e.Err)
}

func (e *ThawError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StateInvalidError reports that a serialized state string handed to one of
// the register entry points could not be deserialized. Unlike a corrupt entry
// inside a pending snapshot, there is no fallback source at that boundary, so
// the failure is surfaced instead of swallowed.
type StateInvalidError struct {
	// URL the state was being registered for; empty for global state.
	URL string
	Err error
}

func (e *StateInvalidError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.URL == "" {
		return fmt.Sprintf("appstate: invalid global state: %v", e.Err)
	}
	return fmt.Sprintf("appstate: invalid state for %q: %v", e.URL, e.Err)
}

func (e *StateInvalidError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
