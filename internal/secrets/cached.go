// File: internal/secrets/cached.go
package secrets

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cached wraps a Store with a run-scoped read cache. A password read once
// stays stable for the rest of the run even if the backing secret rotates,
// and concurrent reads of the same secret (e.g. the mailbox password during
// polling) collapse into a single store call.
type Cached struct {
	inner Store
	group singleflight.Group

	mu       sync.RWMutex
	payloads map[string]Payload
	strings  map[string]string
}

var _ Store = (*Cached)(nil)

// NewCached wraps inner with caching. Intended lifetime is a single
// orchestration run.
func NewCached(inner Store) *Cached {
	return &Cached{
		inner:    inner,
		payloads: make(map[string]Payload),
		strings:  make(map[string]string),
	}
}

func (c *Cached) Get(ctx context.Context, secretID string) (Payload, error) {
	c.mu.RLock()
	cached, ok := c.payloads[secretID]
	c.mu.RUnlock()
	if ok {
		return cached.Merge(nil), nil
	}

	v, err, _ := c.group.Do("payload:"+secretID, func() (interface{}, error) {
		payload, err := c.inner.Get(ctx, secretID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.payloads[secretID] = payload
		c.mu.Unlock()
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Payload).Merge(nil), nil
}

func (c *Cached) GetString(ctx context.Context, secretID string) (string, error) {
	c.mu.RLock()
	cached, ok := c.strings[secretID]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := c.group.Do("string:"+secretID, func() (interface{}, error) {
		raw, err := c.inner.GetString(ctx, secretID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.strings[secretID] = raw
		c.mu.Unlock()
		return raw, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Patch writes through to the store and refreshes the cached payload so a
// later read inside the same run observes the merge.
func (c *Cached) Patch(ctx context.Context, secretID string, updates Payload) error {
	if err := c.inner.Patch(ctx, secretID, updates); err != nil {
		return err
	}
	c.mu.Lock()
	if cached, ok := c.payloads[secretID]; ok {
		c.payloads[secretID] = cached.Merge(updates)
	}
	c.mu.Unlock()
	return nil
}
