// Package store implements the Local Store: durable keyed storage for the
// cached entity collections (guardians, patients, faqs) on SQLite.
//
// # Overview
//
// Every entity is persisted as a models.Record envelope (key, version,
// updated_at and a JSON body holding the top-level fields). Writes are atomic
// per record; there is no cross-collection transaction guarantee.
//
// Secondary lookups go through Query with a registered index field, e.g.
// patients by "guardianId". References between entities are never resolved
// eagerly, so a patient may point at a guardian that is not cached yet.
//
// # Subscriptions
//
// Subscribe registers a callback for a whole collection (empty key) or a
// single key. Callbacks run on a per-subscription goroutine and receive
// changes in commit order; they may read or write the store freely.
//
// # Errors
//
// Every persistence failure is returned as *StorageError, which matches
// ErrStorage with errors.Is. Failures are never swallowed.
package store
