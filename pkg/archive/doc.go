// Package archive defines persistence-facing contracts for keeping frozen
// snapshots between sessions. The engine itself never persists anything: it
// hands the caller a serialized snapshot on Freeze and accepts one back on
// Thaw. Where that string lives in the meantime is the caller's business, and
// Store is the contract for callers that want one.
//
// Responsibilities:
//   - Store only loads/saves one serialized snapshot per ID, plus metadata.
//   - Meta.SnapshotID provides snapshot identity; Meta.ETag provides
//     optimistic concurrency for stores shared between tabs or devices.
//   - Save validates that the payload parses as a frozen snapshot, so an
//     archive never accumulates strings a later Thaw would reject.
//
// MemoryStore is an in-memory implementation intended for tests and examples.
package archive
