package instance

import "mercator-hq/mixer/pkg/attribute"

type cacheEntry struct {
	inst *Instance
	err  error
}

// Cache memoizes instance builds by name for one request. A name is built at
// most once; later lookups return the same result, errors included. A Cache
// belongs to a single request and is not safe for concurrent use.
type Cache struct {
	builder Builder
	bag     attribute.Bag
	entries map[string]cacheEntry
	builds  int
}

// NewCache returns a cache building against bag. A nil builder uses
// DefaultBuilder.
func NewCache(builder Builder, bag attribute.Bag) *Cache {
	if builder == nil {
		builder = DefaultBuilder{}
	}
	return &Cache{
		builder: builder,
		bag:     bag,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the built instance for def, building it on first use.
func (c *Cache) Get(def *Definition) (*Instance, error) {
	if e, ok := c.entries[def.Name]; ok {
		return e.inst, e.err
	}
	c.builds++
	inst, err := c.builder.Build(def, c.bag)
	c.entries[def.Name] = cacheEntry{inst: inst, err: err}
	return inst, err
}

// Builds returns the number of builds actually performed.
func (c *Cache) Builds() int {
	return c.builds
}

// Len returns the number of memoized instances.
func (c *Cache) Len() int {
	return len(c.entries)
}
