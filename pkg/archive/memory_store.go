package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	appstate "github.com/goliatone/go-appstate"
	"github.com/google/uuid"
)

// MemoryStore is a minimal in-memory Store implementation intended for tests
// and examples. Snapshots are keyed by Meta.SnapshotID and never expire.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	latest  string
}

type memoryRecord struct {
	frozen string
	meta   Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}}
}

func (s *MemoryStore) Load(_ context.Context, snapshotID string) (string, Meta, bool, error) {
	if snapshotID == "" {
		return "", Meta{}, false, fmt.Errorf("archive: snapshot id is required")
	}

	s.mu.RLock()
	record, ok := s.records[snapshotID]
	s.mu.RUnlock()
	if !ok {
		return "", Meta{}, false, nil
	}
	return record.frozen, cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Latest(_ context.Context) (string, Meta, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == "" {
		return "", Meta{}, false, nil
	}
	record, ok := s.records[s.latest]
	if !ok {
		return "", Meta{}, false, nil
	}
	return record.frozen, cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, frozen string, meta Meta) (Meta, error) {
	if _, err := appstate.ParseFrozenApp(frozen); err != nil {
		return Meta{}, fmt.Errorf("archive: save: %w", err)
	}

	stored := cloneMeta(meta)
	if stored.SnapshotID == "" {
		stored.SnapshotID = uuid.NewString()
	}
	if stored.CapturedAt.IsZero() {
		stored.CapturedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[stored.SnapshotID]; ok {
		if meta.ETag != "" && existing.meta.ETag != "" && meta.ETag != existing.meta.ETag {
			return cloneMeta(existing.meta), fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, existing.meta.ETag)
		}
	}
	stored.ETag = uuid.NewString()
	s.records[stored.SnapshotID] = memoryRecord{frozen: frozen, meta: stored}
	s.latest = stored.SnapshotID
	return cloneMeta(stored), nil
}
