package appstate

import (
	"encoding/json"
	"time"
)

// Source identifies which side of the reconciliation served a request.
type Source string

const (
	// SourceFrozen means the value was recovered from the pending snapshot
	// and promoted to active.
	SourceFrozen Source = "frozen"
	// SourceActive means the value was already live in the stores.
	SourceActive Source = "active"
	// SourceAbsent means neither side held a value; the caller must generate
	// state fresh.
	SourceAbsent Source = "absent"
)

// Trace captures provenance for one reconciliation decision: which source
// served the request and what the policy preferred at the time.
type Trace struct {
	// URL of the resolved page; empty for the global slot.
	URL string `json:"url,omitempty"`
	// Source that ultimately served the request.
	Source Source `json:"source"`
	// PreferFrozen records the policy verdict that ordered the two branches.
	PreferFrozen bool `json:"prefer_frozen"`
	// FrozenCorrupt reports that a frozen entry existed but failed to decode,
	// forcing the silent fallback.
	FrozenCorrupt bool `json:"frozen_corrupt,omitempty"`
	// ResolvedAt is when the decision was made.
	ResolvedAt time.Time `json:"resolved_at"`
}

// ToJSON serialises the trace for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload previously generated via ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
