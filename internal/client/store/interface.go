package store

import (
	"context"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
)

// Store describes the Local Store used by the cache loader, the sync
// coordinator and the UI-facing services.
type Store interface {
	// Get returns the record stored under key, or nil when absent.
	Get(ctx context.Context, c models.Collection, key string) (*models.Record, error)

	// Put upserts rec under key. The write is atomic per record.
	Put(ctx context.Context, c models.Collection, key string, rec models.Record) error

	// Delete removes the record stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, c models.Collection, key string) error

	// Query returns records whose indexField equals value, ordered by key.
	Query(ctx context.Context, c models.Collection, indexField, value string) ([]models.Record, error)

	// List returns every record of the collection, ordered by key.
	List(ctx context.Context, c models.Collection) ([]models.Record, error)

	// Clear removes every record of the collection.
	Clear(ctx context.Context, c models.Collection) error

	// Subscribe registers fn for committed changes; empty key means the
	// whole collection. The returned function unsubscribes.
	Subscribe(c models.Collection, key string, fn func(Change)) (unsubscribe func())
}
