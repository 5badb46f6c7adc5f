package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryClient is an in-process Client intended for tests and local development.
// Expiry is evaluated lazily against the configured clock.
type MemoryClient struct {
	mutex   sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	scalar    string
	members   map[string]struct{}
	isSet     bool
	expiresAt time.Time
}

// NewMemoryClient constructs an empty in-memory store using the wall clock.
func NewMemoryClient() *MemoryClient {
	return NewMemoryClientWithClock(time.Now)
}

// NewMemoryClientWithClock constructs an in-memory store driven by the supplied clock.
func NewMemoryClientWithClock(now func() time.Time) *MemoryClient {
	if now == nil {
		now = time.Now
	}
	return &MemoryClient{
		entries: make(map[string]*memoryEntry),
		now:     now,
	}
}

// SetWithExpiration stores a scalar value, replacing any previous value or set.
func (client *MemoryClient) SetWithExpiration(ctx context.Context, key string, value string, ttl time.Duration) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.setLocked(key, value, ttl)
	return nil
}

// Get returns the scalar stored under key.
func (client *MemoryClient) Get(ctx context.Context, key string) (string, bool, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	entry := client.liveLocked(key)
	if entry == nil {
		return "", false, nil
	}
	if entry.isSet {
		return "", false, fmt.Errorf("cache.memory.get: %w", ErrWrongType)
	}
	return entry.scalar, true, nil
}

// Delete removes a key of any type.
func (client *MemoryClient) Delete(ctx context.Context, key string) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	delete(client.entries, key)
	return nil
}

// SetExpiration re-stamps the ttl of an existing key; absent keys are ignored.
func (client *MemoryClient) SetExpiration(ctx context.Context, key string, ttl time.Duration) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.expireLocked(key, ttl)
	return nil
}

// AddToSet inserts member into the set stored under key, creating it without expiry.
func (client *MemoryClient) AddToSet(ctx context.Context, key string, member string) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	if err := client.addLocked(key, member); err != nil {
		return fmt.Errorf("cache.memory.add_to_set: %w", err)
	}
	return nil
}

// RemoveFromSet removes member from the set; the key disappears with its last member.
func (client *MemoryClient) RemoveFromSet(ctx context.Context, key string, member string) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	entry := client.liveLocked(key)
	if entry == nil {
		return nil
	}
	if !entry.isSet {
		return fmt.Errorf("cache.memory.remove_from_set: %w", ErrWrongType)
	}
	delete(entry.members, member)
	if len(entry.members) == 0 {
		delete(client.entries, key)
	}
	return nil
}

// Members returns the set members in lexical order.
func (client *MemoryClient) Members(ctx context.Context, key string) ([]string, error) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	entry := client.liveLocked(key)
	if entry == nil {
		return []string{}, nil
	}
	if !entry.isSet {
		return nil, fmt.Errorf("cache.memory.members: %w", ErrWrongType)
	}
	members := make([]string, 0, len(entry.members))
	for member := range entry.members {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

// SetAndTrack performs the scalar write and set bookkeeping under one lock.
func (client *MemoryClient) SetAndTrack(ctx context.Context, key string, value string, setKey string, member string, ttl time.Duration) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	if entry := client.liveLocked(setKey); entry != nil && !entry.isSet {
		return fmt.Errorf("cache.memory.set_and_track: %w", ErrWrongType)
	}
	client.setLocked(key, value, ttl)
	if err := client.addLocked(setKey, member); err != nil {
		return fmt.Errorf("cache.memory.set_and_track: %w", err)
	}
	client.expireLocked(setKey, ttl)
	return nil
}

// TTL reports the remaining lifetime of key. Keys without expiry report zero.
func (client *MemoryClient) TTL(key string) (time.Duration, bool) {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	entry := client.liveLocked(key)
	if entry == nil {
		return 0, false
	}
	if entry.expiresAt.IsZero() {
		return 0, true
	}
	return entry.expiresAt.Sub(client.now()), true
}

func (client *MemoryClient) setLocked(key string, value string, ttl time.Duration) {
	client.entries[key] = &memoryEntry{
		scalar:    value,
		expiresAt: client.deadline(ttl),
	}
}

func (client *MemoryClient) addLocked(key string, member string) error {
	entry := client.liveLocked(key)
	if entry == nil {
		entry = &memoryEntry{isSet: true, members: make(map[string]struct{})}
		client.entries[key] = entry
	}
	if !entry.isSet {
		return ErrWrongType
	}
	entry.members[member] = struct{}{}
	return nil
}

func (client *MemoryClient) expireLocked(key string, ttl time.Duration) {
	entry := client.liveLocked(key)
	if entry == nil {
		return
	}
	if ttl <= 0 {
		delete(client.entries, key)
		return
	}
	entry.expiresAt = client.deadline(ttl)
}

func (client *MemoryClient) liveLocked(key string) *memoryEntry {
	entry, ok := client.entries[key]
	if !ok {
		return nil
	}
	if !entry.expiresAt.IsZero() && !client.now().Before(entry.expiresAt) {
		delete(client.entries, key)
		return nil
	}
	return entry
}

func (client *MemoryClient) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return client.now().Add(ttl)
}
