package archive

import (
	"context"
	"errors"
	"time"
)

var ErrETagMismatch = errors.New("archive: etag mismatch")

// Meta is storage-owned metadata for one archived snapshot.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	CapturedAt time.Time         `json:"captured_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves serialized frozen snapshots.
type Store interface {
	// Load returns the snapshot stored under snapshotID.
	Load(ctx context.Context, snapshotID string) (frozen string, meta Meta, ok bool, err error)
	// Latest returns the most recently captured snapshot.
	Latest(ctx context.Context) (frozen string, meta Meta, ok bool, err error)
	// Save stores frozen under meta.SnapshotID, assigning an ID and capture
	// time when missing, and returns the metadata as stored.
	Save(ctx context.Context, frozen string, meta Meta) (Meta, error)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
