// Package codec converts typed state values to and from the portable string
// representation used by frozen snapshots and the page-data transport. It is
// pure: no shared state beyond the hooks a Decoder is constructed with.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Context carries identifiers tied to a serialized state payload, mostly for
// error messages and hooks.
type Context struct {
	// URL of the page the payload belongs to; empty for global state.
	URL string
	// Source names where the payload came from (frozen, transport, caller).
	Source string
}

func (ctx Context) describe() string {
	if ctx.URL == "" {
		return "global state"
	}
	return fmt.Sprintf("state for %q", ctx.URL)
}

// PreHook lets callers normalise the raw payload before decoding.
type PreHook func(Context, string) (string, error)

// PostHook lets callers adjust or validate the decoded value.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts serialized state strings into strongly typed values.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithDecoderConfig allows callers to configure the json.Decoder directly.
func WithDecoderConfig[T any](configure func(*json.Decoder)) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if configure != nil {
			d.configureDec = append(d.configureDec, configure)
		}
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts state into the target type T applying configured hooks.
// Trailing data after the first JSON value is rejected: a snapshot entry must
// round-trip through exactly the type it was produced from.
func (d *Decoder[T]) Decode(ctx Context, state string) (T, error) {
	var zero T

	current := state
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("codec: pre-hook for %s failed: %w", ctx.describe(), err)
		}
		current = next
	}

	decoder := json.NewDecoder(strings.NewReader(current))
	for _, configure := range d.configureDec {
		if configure != nil {
			configure(decoder)
		}
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("codec: decode %s: %w", ctx.describe(), err)
	}
	if decoder.More() {
		return zero, fmt.Errorf("codec: decode %s: trailing data after value", ctx.describe())
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("codec: post-hook for %s failed: %w", ctx.describe(), err)
		}
	}

	return result, nil
}

// Decode converts state into T with a default (hook-free) decoder.
func Decode[T any](ctx Context, state string) (T, error) {
	return NewDecoder[T]().Decode(ctx, state)
}

// Encode serialises value to its portable string form.
func Encode(value any) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("codec: encode %T: %w", value, err)
	}
	return string(payload), nil
}
