// Package cache provides the namespaced TTL cache facade shared by the
// citation validator, the LLM gateway, and the workflow status endpoint.
// It prefers Redis when a URL is configured and reachable at startup,
// falling back to an in-process store; a missing backend never surfaces
// as an application error, only as a cache miss.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Namespace groups keys sharing a TTL policy.
type Namespace string

const (
	NamespaceCitation       Namespace = "citation"
	NamespaceCrossRefSearch Namespace = "crossref_search"
	NamespaceWorkflowStatus Namespace = "workflow_status"
	NamespaceLLMResponse    Namespace = "llm_response"
	NamespaceReadability    Namespace = "readability"
)

var namespaceTTLs = map[Namespace]time.Duration{
	NamespaceCitation:       24 * time.Hour,
	NamespaceCrossRefSearch: time.Hour,
	NamespaceWorkflowStatus: 5 * time.Minute,
	NamespaceLLMResponse:    2 * time.Hour,
	NamespaceReadability:    time.Hour,
}

const keyPrefix = "docflow"

// Key builds the namespaced key `prefix:namespace:identifier`.
func Key(ns Namespace, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, ns, identifier)
}

// Cache is the facade every component depends on.
type Cache interface {
	Get(ctx context.Context, ns Namespace, identifier string) (string, bool)
	Set(ctx context.Context, ns Namespace, identifier, value string) error
	Delete(ctx context.Context, ns Namespace, identifier string) error
	Exists(ctx context.Context, ns Namespace, identifier string) bool
	ClearUser(ctx context.Context, userID string) error
}

// redisCache is backed by go-redis, falling back to memoryCache per call
// on any transport error so a transient Redis outage degrades to misses
// rather than propagating as an application error.
type redisCache struct {
	client   *redis.Client
	fallback *memoryCache
	log      *logrus.Logger
}

// New constructs a Cache, pinging redisURL (if non-empty) once at
// startup; a failed ping falls back to the in-process store for the
// lifetime of the process.
func New(ctx context.Context, redisURL string, log *logrus.Logger) Cache {
	if log == nil {
		log = logrus.New()
	}
	fallback := newMemoryCache()
	if redisURL == "" {
		return fallback
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithError(err).Warn("invalid cache URL, falling back to in-process cache")
		return fallback
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("cache backend unreachable, falling back to in-process cache")
		return fallback
	}

	return &redisCache{client: client, fallback: fallback, log: log}
}

func (c *redisCache) Get(ctx context.Context, ns Namespace, identifier string) (string, bool) {
	val, err := c.client.Get(ctx, Key(ns, identifier)).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Warn("cache get failed, treating as miss")
		}
		return c.fallback.Get(ctx, ns, identifier)
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, ns Namespace, identifier, value string) error {
	ttl := namespaceTTLs[ns]
	if err := c.client.Set(ctx, Key(ns, identifier), value, ttl).Err(); err != nil {
		c.log.WithError(err).Warn("cache set failed, writing to in-process fallback")
		return c.fallback.Set(ctx, ns, identifier, value)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, ns Namespace, identifier string) error {
	c.client.Del(ctx, Key(ns, identifier))
	return c.fallback.Delete(ctx, ns, identifier)
}

func (c *redisCache) Exists(ctx context.Context, ns Namespace, identifier string) bool {
	n, err := c.client.Exists(ctx, Key(ns, identifier)).Result()
	if err != nil {
		return c.fallback.Exists(ctx, ns, identifier)
	}
	return n > 0
}

func (c *redisCache) ClearUser(ctx context.Context, userID string) error {
	prefix := fmt.Sprintf("%s:*:%s*", keyPrefix, userID)
	iter := c.client.Scan(ctx, 0, prefix, 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	return c.fallback.ClearUser(ctx, userID)
}

// memoryCache is an RWMutex-guarded map store used standalone and as the
// Redis fallback.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	value     string
	expiresAt time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]entry)}
}

func (c *memoryCache) Get(_ context.Context, ns Namespace, identifier string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[Key(ns, identifier)]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

func (c *memoryCache) Set(_ context.Context, ns Namespace, identifier, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(ns, identifier)] = entry{value: value, expiresAt: time.Now().Add(namespaceTTLs[ns])}
	return nil
}

func (c *memoryCache) Delete(_ context.Context, ns Namespace, identifier string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, Key(ns, identifier))
	return nil
}

func (c *memoryCache) Exists(ctx context.Context, ns Namespace, identifier string) bool {
	_, ok := c.Get(ctx, ns, identifier)
	return ok
}

func (c *memoryCache) ClearUser(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.Contains(k, userID) {
			delete(c.entries, k)
		}
	}
	return nil
}
