package appstate

import (
	"testing"
	"time"
)

func TestTraceJSONRoundTrip(t *testing.T) {
	trace := Trace{
		URL:           "/a",
		Source:        SourceFrozen,
		PreferFrozen:  true,
		FrozenCorrupt: false,
		ResolvedAt:    time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	if decoded != trace {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, trace)
	}
}

func TestTraceFromJSONMalformed(t *testing.T) {
	if _, err := TraceFromJSON([]byte(`{"source":`)); err == nil {
		t.Fatal("expected malformed payload to fail")
	}
}
