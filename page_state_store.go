package appstate

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PageStateFlag is the tri-state record the store keeps per URL.
type PageStateFlag int

const (
	// FlagUnset means the store knows nothing about the URL.
	FlagUnset PageStateFlag = iota
	// FlagNeverReceivesState permanently marks the URL as stateless; callers
	// may cache its rendered output on that assumption, so the flag can never
	// transition to FlagHasState.
	FlagNeverReceivesState
	// FlagHasState means a state value is registered for the URL.
	FlagHasState
)

// PreloadStatus tracks per-URL preload bookkeeping.
type PreloadStatus int

const (
	// PreloadNone means no preload exists for the URL.
	PreloadNone PreloadStatus = iota
	// PreloadInFlight means a fetch is outstanding.
	PreloadInFlight
	// PreloadRoutePreloaded means the payload is cached until the next
	// successful navigation away from the current route.
	PreloadRoutePreloaded
	// PreloadPreloaded means the payload is cached for the session.
	PreloadPreloaded
)

type pageEntry struct {
	value any
	elem  *list.Element
}

type preloadRecord struct {
	status      PreloadStatus
	state       string
	routeScoped bool
}

// PageStateStore is a capacity-bounded mapping from page URL to a type-erased
// state value, plus the per-URL stateless flag and preload bookkeeping.
//
// Eviction is least-recently-used, counting both registration and retrieval
// as use. A bound of zero (or below) retains nothing: AddState still reports
// acceptance, but the value is dropped immediately, which is the behaviour
// wanted on the server side where no store should accumulate.
type PageStateStore struct {
	mu      sync.Mutex
	entries map[string]*pageEntry
	never   map[string]struct{}
	order   *list.List // of url string, front = most recently used
	maxSize int

	transport Transport
	flight    singleflight.Group
	preloads  map[string]*preloadRecord
}

// NewPageStateStore constructs a store bounded to maxSize entries, fetching
// preloads through transport (nil disables preloading).
func NewPageStateStore(maxSize int, transport Transport) *PageStateStore {
	return &PageStateStore{
		entries:   make(map[string]*pageEntry),
		never:     make(map[string]struct{}),
		order:     list.New(),
		maxSize:   maxSize,
		transport: transport,
		preloads:  make(map[string]*preloadRecord),
	}
}

// AddState registers value for url. It reports false without touching the
// store when the URL is flagged as never receiving state; otherwise the flag
// becomes FlagHasState and the insertion may evict the least-recently-used
// entry to honour the bound.
func (s *PageStateStore) AddState(url string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, never := s.never[url]; never {
		return false
	}
	if s.maxSize <= 0 {
		// No-store mode: accept and drop.
		return true
	}
	if entry, ok := s.entries[url]; ok {
		entry.value = value
		s.order.MoveToFront(entry.elem)
		return true
	}
	s.entries[url] = &pageEntry{
		value: value,
		elem:  s.order.PushFront(url),
	}
	for s.order.Len() > s.maxSize {
		s.evictOldest()
	}
	return true
}

// evictOldest removes the least-recently-used entry. Caller holds s.mu.
func (s *PageStateStore) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	url := back.Value.(string)
	s.order.Remove(back)
	delete(s.entries, url)
}

// SetStateNever permanently marks url as stateless. Any value already stored
// for it is discarded first so the flag and the contents cannot disagree.
func (s *PageStateStore) SetStateNever(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[url]; ok {
		s.order.Remove(entry.elem)
		delete(s.entries, url)
	}
	s.never[url] = struct{}{}
}

// Flag returns the tri-state record for url.
func (s *PageStateStore) Flag(url string) PageStateFlag {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, never := s.never[url]; never {
		return FlagNeverReceivesState
	}
	if _, ok := s.entries[url]; ok {
		return FlagHasState
	}
	return FlagUnset
}

// Remove deletes any stored value for url and resets its preload status. The
// stateless flag survives removal.
func (s *PageStateStore) Remove(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[url]; ok {
		s.order.Remove(entry.elem)
		delete(s.entries, url)
	}
	delete(s.preloads, url)
}

// Clear resets the store to its initial condition, dropping values, stateless
// flags, and preload bookkeeping. Used on app-wide reset.
func (s *PageStateStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*pageEntry)
	s.never = make(map[string]struct{})
	s.order.Init()
	s.preloads = make(map[string]*preloadRecord)
}

// Len reports the number of state values currently retained.
func (s *PageStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// rawState returns the erased value for url, counting the read as a use for
// eviction ordering.
func (s *PageStateStore) rawState(url string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[url]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(entry.elem)
	return entry.value, true
}

// freezeToMap serialises every retained value through encode without touching
// use ordering. Caller supplies the codec so the store stays format-agnostic.
func (s *PageStateStore) freezeToMap(encode func(any) (string, error)) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.entries))
	for url, entry := range s.entries {
		state, err := encode(entry.value)
		if err != nil {
			return nil, fmt.Errorf("appstate: freeze state for %q: %w", url, err)
		}
		out[url] = state
	}
	return out, nil
}

// GetPageState performs a type-checked read of the state stored for url. A
// stored value of a different type than requested means the surrounding
// template layer is internally inconsistent, which is unrecoverable and
// panics; it is not reported as a normal miss.
func GetPageState[T any](s *PageStateStore, url string) (T, bool) {
	var zero T
	value, ok := s.rawState(url)
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		panic(fmt.Sprintf("appstate: state for %q holds %T, requested %T", url, value, zero))
	}
	return typed, true
}

// Preload fetches and caches the serialized state for url unless it is
// already stored, already preloaded, or a fetch is outstanding. Concurrent
// preloads for one URL coalesce onto a single transport fetch. Route-scoped
// payloads are dropped by InvalidateRoutePreloads on the next navigation;
// session payloads persist until taken or removed.
func (s *PageStateStore) Preload(ctx context.Context, url, locale, template string, wasIncremental, routeScoped bool) error {
	if s.transport == nil {
		return fmt.Errorf("appstate: preload %q: transport not configured", url)
	}

	s.mu.Lock()
	if _, ok := s.entries[url]; ok {
		s.mu.Unlock()
		return nil
	}
	if record, ok := s.preloads[url]; ok && record.status != PreloadInFlight {
		// Already preloaded; a session-scoped request upgrades a payload that
		// was only cached for the current route.
		if !routeScoped && record.routeScoped {
			record.routeScoped = false
			record.status = PreloadPreloaded
		}
		s.mu.Unlock()
		return nil
	}
	if _, ok := s.preloads[url]; !ok {
		s.preloads[url] = &preloadRecord{status: PreloadInFlight, routeScoped: routeScoped}
	}
	s.mu.Unlock()

	state, err, _ := s.flight.Do(url, func() (any, error) {
		return s.transport.FetchPageState(ctx, url, locale, template, wasIncremental)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.preloads[url]
	if err != nil {
		if ok && record.status == PreloadInFlight {
			delete(s.preloads, url)
		}
		return fmt.Errorf("appstate: preload %q: %w", url, err)
	}
	if !ok {
		// Invalidated while the fetch was outstanding; drop the result.
		return nil
	}
	record.state = state.(string)
	if !routeScoped {
		record.routeScoped = false
	}
	if record.routeScoped {
		record.status = PreloadRoutePreloaded
	} else {
		record.status = PreloadPreloaded
	}
	return nil
}

// PreloadStatusOf reports the preload bookkeeping for url.
func (s *PageStateStore) PreloadStatusOf(url string) PreloadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.preloads[url]
	if !ok {
		return PreloadNone
	}
	return record.status
}

// TakePreloaded hands the cached serialized payload for url to the caller and
// removes it, so each preload is consumed at most once.
func (s *PageStateStore) TakePreloaded(url string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.preloads[url]
	if !ok || record.status == PreloadInFlight {
		return "", false
	}
	delete(s.preloads, url)
	return record.state, true
}

// InvalidateRoutePreloads drops payloads that were cached only for the route
// being navigated away from. The router layer calls this through
// Engine.CompleteNavigation after a successful transition.
func (s *PageStateStore) InvalidateRoutePreloads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for url, record := range s.preloads {
		if record.routeScoped {
			delete(s.preloads, url)
		}
	}
}
