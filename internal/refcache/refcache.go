// Package refcache caches reference lists (accounts, projects, ...) per
// session, resource and scope with a TTL and explicit invalidation.
package refcache

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"backoffice/internal/model"

	"github.com/rs/zerolog/log"
)

// Store persists cached lists. Implementations must be safe for concurrent
// use.
type Store interface {
	Get(ctx context.Context, key string) ([]model.Option, bool, error)
	Set(ctx context.Context, key string, opts []model.Option, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Key identifies one cached list.
type Key struct {
	Session  string
	Resource model.ReferenceResource
	Scope    map[string]string
}

func (k Key) String() string {
	return sessionPrefix(k.Session) + string(k.Resource) + ":" + encodeScope(k.Scope)
}

func sessionPrefix(session string) string {
	return "ref:" + url.QueryEscape(session) + ":"
}

func encodeScope(scope map[string]string) string {
	keys := make([]string, 0, len(scope))
	for k, v := range scope {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(scope[k]))
	}
	return strings.Join(parts, "&")
}

// Loader fetches a list on a cache miss.
type Loader func(ctx context.Context) ([]model.Option, error)

type Cache struct {
	store Store
	ttl   time.Duration
}

func New(store Store, ttl time.Duration) *Cache {
	return &Cache{store: store, ttl: ttl}
}

// Get returns the cached list for key or loads and stores it. Store
// failures degrade to a direct load.
func (c *Cache) Get(ctx context.Context, key Key, load Loader) ([]model.Option, error) {
	k := key.String()
	opts, ok, err := c.store.Get(ctx, k)
	if err != nil {
		log.Warn().Err(err).Str("key", k).Msg("reference cache read failed")
	}
	if ok {
		return opts, nil
	}

	opts, err = load(ctx)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = []model.Option{}
	}
	if err := c.store.Set(ctx, k, opts, c.ttl); err != nil {
		log.Warn().Err(err).Str("key", k).Msg("reference cache write failed")
	}
	return opts, nil
}

// Invalidate drops every list cached for session.
func (c *Cache) Invalidate(ctx context.Context, session string) error {
	if err := c.store.DeletePrefix(ctx, sessionPrefix(session)); err != nil {
		return fmt.Errorf("failed to invalidate reference cache: %w", err)
	}
	return nil
}

// InvalidateResource drops every scope of one resource for session.
func (c *Cache) InvalidateResource(ctx context.Context, session string, res model.ReferenceResource) error {
	if err := c.store.DeletePrefix(ctx, sessionPrefix(session)+string(res)+":"); err != nil {
		return fmt.Errorf("failed to invalidate %s cache: %w", res, err)
	}
	return nil
}
