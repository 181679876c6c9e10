package appstate

import (
	"fmt"
	"sync"
)

// GlobalStateSlot holds the single app-wide state value behind a type-erased
// handle. The slot is optional by default; there is no notion of a page that
// "never receives state" here, absence is simply the initial condition.
type GlobalStateSlot struct {
	mu    sync.Mutex
	value any
	set   bool
}

// NewGlobalStateSlot constructs an empty slot.
func NewGlobalStateSlot() *GlobalStateSlot {
	return &GlobalStateSlot{}
}

// Set replaces the current value unconditionally, discarding the previous one.
func (g *GlobalStateSlot) Set(value any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
	g.set = true
}

// Present reports whether the slot holds a value.
func (g *GlobalStateSlot) Present() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.set
}

// Clear empties the slot; used on app-wide reset.
func (g *GlobalStateSlot) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = nil
	g.set = false
}

// raw returns the erased value without type checking.
func (g *GlobalStateSlot) raw() (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value, g.set
}

// GetGlobal performs a type-checked read of the slot. A populated slot holding
// a different type than requested is a contract violation in the surrounding
// template layer and panics rather than reporting a miss.
func GetGlobal[T any](g *GlobalStateSlot) (T, bool) {
	var zero T
	value, ok := g.raw()
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		panic(fmt.Sprintf("appstate: global state holds %T, requested %T", value, zero))
	}
	return typed, true
}
