package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable indicates the backing key-value store could not be reached or timed out.
	ErrStoreUnavailable = errors.New("cache.store_unavailable")
	// ErrWrongType indicates a scalar operation hit a set key or the other way around.
	ErrWrongType = errors.New("cache.wrong_type")
)

// Client is the capability surface of the external TTL key-value store.
// Deleting an absent key or removing an absent member is a no-op, not an error.
type Client interface {
	SetWithExpiration(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get returns found=false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, key string) error
	SetExpiration(ctx context.Context, key string, ttl time.Duration) error
	AddToSet(ctx context.Context, key string, member string) error
	RemoveFromSet(ctx context.Context, key string, member string) error
	Members(ctx context.Context, key string) ([]string, error)
}

// TrackingWriter is implemented by clients that can store a value and record it in a set
// in a single atomic step.
type TrackingWriter interface {
	// SetAndTrack writes key=value with ttl, adds member to setKey and stamps setKey with ttl.
	SetAndTrack(ctx context.Context, key string, value string, setKey string, member string, ttl time.Duration) error
}
