package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/glefebvre/housou/internal/models"
)

// configCache keeps the backend configuration for ttl. Concurrent misses share
// one fetch; failures are not cached.
type configCache struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group

	mu        sync.Mutex
	cfg       *models.Config
	fetchedAt time.Time
}

func newConfigCache(backend Backend, ttl time.Duration, now func() time.Time) *configCache {
	return &configCache{backend: backend, ttl: ttl, now: now}
}

func (c *configCache) get(ctx context.Context) (*models.Config, error) {
	c.mu.Lock()
	if c.cfg != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		cfg := c.cfg
		c.mu.Unlock()
		return cfg, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("config", func() (interface{}, error) {
		cfg, err := c.backend.FetchConfig(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cfg = cfg
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Config), nil
}
