package codec

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type payload struct {
	Count int    `json:"count"`
	Label string `json:"label,omitempty"`
}

func TestDecode(t *testing.T) {
	value, err := Decode[payload](Context{URL: "/a", Source: "frozen"}, `{"count":3,"label":"x"}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if value.Count != 3 || value.Label != "x" {
		t.Fatalf("unexpected value %+v", value)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	if _, err := Decode[payload](Context{URL: "/a"}, `{"count":1}{"count":2}`); err == nil {
		t.Fatal("expected trailing data to be rejected")
	}
}

func TestDecodeErrorNamesTarget(t *testing.T) {
	_, err := Decode[payload](Context{URL: "/profile"}, `{`)
	if err == nil {
		t.Fatal("expected malformed payload to fail")
	}
	if !strings.Contains(err.Error(), `"/profile"`) {
		t.Fatalf("expected URL in message, got %v", err)
	}

	_, err = Decode[payload](Context{}, `{`)
	if err == nil {
		t.Fatal("expected malformed payload to fail")
	}
	if !strings.Contains(err.Error(), "global state") {
		t.Fatalf("expected global-state wording, got %v", err)
	}
}

func TestDecoderPreHook(t *testing.T) {
	decoder := NewDecoder[payload](
		WithPreHook[payload](func(_ Context, state string) (string, error) {
			return strings.TrimSpace(state), nil
		}),
	)
	value, err := decoder.Decode(Context{URL: "/a"}, "  {\"count\":2}\n")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if value.Count != 2 {
		t.Fatalf("unexpected value %+v", value)
	}
}

func TestDecoderPostHookValidation(t *testing.T) {
	decoder := NewDecoder[payload](
		WithPostHook[payload](func(_ Context, value *payload) error {
			if value.Count < 0 {
				return errors.New("count must not be negative")
			}
			return nil
		}),
	)
	if _, err := decoder.Decode(Context{URL: "/a"}, `{"count":-1}`); err == nil {
		t.Fatal("expected post-hook rejection")
	}
	if _, err := decoder.Decode(Context{URL: "/a"}, `{"count":1}`); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestDecoderDisallowUnknownFields(t *testing.T) {
	decoder := NewDecoder[payload](WithDisallowUnknownFields[payload]())
	if _, err := decoder.Decode(Context{URL: "/a"}, `{"count":1,"extra":true}`); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestDecoderUseNumber(t *testing.T) {
	decoder := NewDecoder[map[string]any](WithUseNumber[map[string]any]())
	value, err := decoder.Decode(Context{URL: "/a"}, `{"count":9007199254740993}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	number, ok := value["count"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", value["count"])
	}
	if number.String() != "9007199254740993" {
		t.Fatalf("unexpected number %s", number)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	encoded, err := Encode(payload{Count: 5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded != `{"count":5}` {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	value, err := Decode[payload](Context{}, encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if value.Count != 5 {
		t.Fatalf("unexpected value %+v", value)
	}
}

func TestEncodeFailure(t *testing.T) {
	if _, err := Encode(func() {}); err == nil {
		t.Fatal("expected unencodable value to fail")
	}
}
