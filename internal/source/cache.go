package source

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"defdoc/internal/config"
)

// Cache memoizes ReadLines for the current version. Checkout drops
// everything read so far. Concurrent reads of one path share a single read.
type Cache struct {
	inner Provider

	mu    sync.Mutex
	files map[string][]string
	group singleflight.Group
}

func NewCache(inner Provider) *Cache {
	return &Cache{inner: inner, files: make(map[string][]string)}
}

func (c *Cache) Checkout(ctx context.Context, v config.Version) error {
	c.mu.Lock()
	c.files = make(map[string][]string)
	c.mu.Unlock()
	return c.inner.Checkout(ctx, v)
}

// ReadLines returns the shared, read-only slice for path.
func (c *Cache) ReadLines(path string) ([]string, error) {
	c.mu.Lock()
	lines, ok := c.files[path]
	c.mu.Unlock()
	if ok {
		return lines, nil
	}

	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		c.mu.Lock()
		if lines, ok := c.files[path]; ok {
			c.mu.Unlock()
			return lines, nil
		}
		c.mu.Unlock()

		lines, err := c.inner.ReadLines(path)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.files[path] = lines
		c.mu.Unlock()
		return lines, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
