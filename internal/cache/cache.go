package cache

import (
	"crypto/sha256"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedToken represents a cached service token
type CachedToken struct {
	Token     string
	BlogID    string
	ExpiresAt time.Time
}

// GeneratePromptKey generates a fingerprint of a prompt for history lookups
func GeneratePromptKey(prompt string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// TokenCache keeps service tokens until they expire
type TokenCache struct {
	items  *gocache.Cache
	maxTTL time.Duration
}

// NewTokenCache creates a token cache whose entries never outlive maxTTL
func NewTokenCache(maxTTL time.Duration) *TokenCache {
	return &TokenCache{
		items:  gocache.New(maxTTL, 2*maxTTL),
		maxTTL: maxTTL,
	}
}

// Load returns the cached token for key
func (c *TokenCache) Load(key string) (CachedToken, bool) {
	val, ok := c.items.Get(key)
	if !ok {
		return CachedToken{}, false
	}
	return val.(CachedToken), true
}

// Store caches a token until its expiry or the cache ceiling, whichever comes first
func (c *TokenCache) Store(key string, token CachedToken) {
	ttl := c.maxTTL
	if !token.ExpiresAt.IsZero() {
		if untilExpiry := time.Until(token.ExpiresAt); untilExpiry < ttl {
			ttl = untilExpiry
		}
	}
	if ttl <= 0 {
		return
	}
	c.items.Set(key, token, ttl)
}

// Delete drops a cached token, e.g. after the service rejected it
func (c *TokenCache) Delete(key string) {
	c.items.Delete(key)
}
