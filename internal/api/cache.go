package api

import (
	"sync"

	"github.com/jamesarrow/kpi-vet/internal/model"
)

// viewCache memoizes rendered period views. Entries are indexed by the
// months they were built from; ingestion invalidates by touched month, so a
// re-upload correcting October drops every view that showed October data.
type viewCache struct {
	mu      sync.Mutex
	items   map[string]interface{}
	byMonth map[model.YearMonth][]string
}

func newViewCache() *viewCache {
	return &viewCache{
		items:   make(map[string]interface{}),
		byMonth: make(map[model.YearMonth][]string),
	}
}

func (c *viewCache) get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *viewCache) put(key string, payload interface{}, months ...model.YearMonth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = payload
	for _, ym := range months {
		c.byMonth[ym] = append(c.byMonth[ym], key)
	}
}

// invalidate drops every cached view built from any of the given months.
func (c *viewCache) invalidate(months []model.YearMonth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ym := range months {
		for _, key := range c.byMonth[ym] {
			delete(c.items, key)
		}
		delete(c.byMonth, ym)
	}
}
