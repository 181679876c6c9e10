package activity

import (
	"strings"
	"time"
)

// StateEventInput describes the common fields for state lifecycle events.
type StateEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any

	// Route the app was on when the event occurred.
	Route string
	// URL of the page involved, when the event is page-scoped.
	URL string
	// SnapshotID identifies the frozen snapshot involved, when any.
	SnapshotID string
	// Source names where a reconciled value came from (frozen/active/absent).
	Source string
	// PageCount is the number of page entries captured by a freeze.
	PageCount int
	// Action records how a thaw resumed the app (reload or navigate).
	Action string

	OccurredAt time.Time
}

// BuildStateFrozenEvent constructs a normalized event for a completed freeze.
func BuildStateFrozenEvent(input StateEventInput) Event {
	return buildStateEvent("state.frozen", "appstate.snapshot", input)
}

// BuildStateThawedEvent constructs a normalized event for a staged thaw.
func BuildStateThawedEvent(input StateEventInput) Event {
	return buildStateEvent("state.thawed", "appstate.snapshot", input)
}

// BuildPageStateRegisteredEvent constructs an event for a page state
// registration.
func BuildPageStateRegisteredEvent(input StateEventInput) Event {
	return buildStateEvent("page.state.registered", "appstate.page", input)
}

// BuildGlobalStateRegisteredEvent constructs an event for a global state
// registration.
func BuildGlobalStateRegisteredEvent(input StateEventInput) Event {
	return buildStateEvent("global.state.registered", "appstate.global", input)
}

// BuildPageStatelessEvent constructs an event for a page permanently flagged
// as stateless.
func BuildPageStatelessEvent(input StateEventInput) Event {
	return buildStateEvent("page.stateless", "appstate.page", input)
}

// BuildPreloadCompletedEvent constructs an event for a completed preload.
func BuildPreloadCompletedEvent(input StateEventInput) Event {
	return buildStateEvent("page.preloaded", "appstate.page", input)
}

func buildStateEvent(verb, objectType string, input StateEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if input.Route != "" {
		set("route", input.Route)
	}
	if input.URL != "" {
		set("url", input.URL)
	}
	if input.SnapshotID != "" {
		set("snapshot_id", input.SnapshotID)
	}
	if input.Source != "" {
		set("source", input.Source)
	}
	if input.PageCount > 0 {
		set("page_count", input.PageCount)
	}
	if input.Action != "" {
		set("action", input.Action)
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.URL)
	if objectID == "" {
		objectID = strings.TrimSpace(input.SnapshotID)
	}
	if objectID == "" {
		objectID = strings.TrimSpace(input.Route)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     objectType,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}
