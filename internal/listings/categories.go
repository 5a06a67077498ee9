package listings

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/koseken/game-trading/pkg/db/models"
)

const (
	categoryCacheSize = 128
	categoryCacheTTL  = 5 * time.Minute
	allCategoriesKey  = "all"
)

type categoryLoader interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type cachedCategories struct {
	rows    []models.Category
	expires time.Time
}

// CategoryCache keeps the seeded category list in memory. Categories change
// only through migrations, so a short TTL is enough to pick up new rows.
type CategoryCache struct {
	loader categoryLoader
	cache  *lru.Cache
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

func NewCategoryCache(loader categoryLoader, ttl time.Duration) (*CategoryCache, error) {
	cache, err := lru.New(categoryCacheSize)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = categoryCacheTTL
	}
	return &CategoryCache{loader: loader, cache: cache, ttl: ttl, now: time.Now}, nil
}

// All returns every category ordered by name.
func (c *CategoryCache) All(ctx context.Context) ([]models.Category, error) {
	if entry, ok := c.cache.Get(allCategoriesKey); ok {
		cached := entry.(cachedCategories)
		if c.now().Before(cached.expires) {
			return cached.rows, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rows, err := c.loader.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	expires := c.now().Add(c.ttl)
	c.cache.Add(allCategoriesKey, cachedCategories{rows: rows, expires: expires})
	for i := range rows {
		c.cache.Add(rows[i].ID, cachedCategories{rows: rows[i : i+1], expires: expires})
	}
	return rows, nil
}

// Get returns the category or nil when it does not exist.
func (c *CategoryCache) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if entry, ok := c.cache.Get(id); ok {
		cached := entry.(cachedCategories)
		if c.now().Before(cached.expires) && len(cached.rows) == 1 {
			category := cached.rows[0]
			return &category, nil
		}
	}
	rows, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ID == id {
			category := rows[i]
			return &category, nil
		}
	}
	return nil, nil
}

// Purge drops everything cached.
func (c *CategoryCache) Purge() {
	c.cache.Purge()
}
