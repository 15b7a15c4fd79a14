// Package repositories persists rdex's local state.
//
// Two kinds of storage live here:
//   - SQLite history: [CallRepository] logs every RDE request and [AIResultRepository] logs every
//     prompt dispatch. Both implement models.Repository and read newest first.
//   - File snapshots: [SnapshotStore] caches raw API responses under output/rde/data, one file per
//     collection (dataset.json) or per resource (datasets/{id}.json). Bytes are written atomically
//     and never re-encoded.
package repositories
