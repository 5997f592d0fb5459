// Package metadata stores small client-side key/value facts next to the
// cache: the signed-in guardian and when each entity was last refreshed.
package metadata

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyGuardianID    = "session.guardian_id"
	keyRefreshPrefix = "refreshed."
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

// RefreshKey is the key under which the last refresh of scope is recorded.
// Scope is a collection name, optionally followed by "/" and an entity id.
func RefreshKey(scope string) string {
	return keyRefreshPrefix + scope
}

// SetTime stores t under key in RFC 3339 form.
func SetTime(ctx context.Context, r Repository, key string, t time.Time) error {
	return r.Set(ctx, key, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// GetTime returns the time stored under key, or the zero time when absent.
func GetTime(ctx context.Context, r Repository, key string) (time.Time, error) {
	v, err := r.Get(ctx, key)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, string(v))
}
