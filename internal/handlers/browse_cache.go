package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// BrowseCache holds the most recent public-browse response body for a short
// TTL so anonymous traffic does not hit the database on every request.
type BrowseCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	body    []byte
	etag    string
	expires time.Time
}

// NewBrowseCache returns a cache with the given TTL.
func NewBrowseCache(ttl time.Duration) *BrowseCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &BrowseCache{ttl: ttl}
}

// Get returns the cached body and its ETag when the entry is still fresh.
func (c *BrowseCache) Get() ([]byte, string, bool) {
	if c == nil {
		return nil, "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.body == nil || !time.Now().Before(c.expires) {
		return nil, "", false
	}
	return c.body, c.etag, true
}

// Set stores the body and computes its ETag.
func (c *BrowseCache) Set(body []byte) string {
	etag := bodyETag(body)
	if c == nil {
		return etag
	}

	c.mu.Lock()
	c.body = body
	c.etag = etag
	c.expires = time.Now().Add(c.ttl)
	c.mu.Unlock()

	return etag
}

// Invalidate drops the cached entry. Called after moderation actions so the
// public listing reflects them without waiting out the TTL.
func (c *BrowseCache) Invalidate() {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.body = nil
	c.etag = ""
	c.mu.Unlock()
}

func bodyETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
