package usecase

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Context is the key → value store shared by the test steps of one test
// case run. It is safe for concurrent use.
type Context struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{m: make(map[string]any)}
}

// Set stores value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

// Delete removes key.
func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// Keys returns the stored keys, sorted.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.m))
}

// Snapshot returns a copy of the stored values.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.m)
}

// Lookup returns the value under key formatted as a string. It makes a
// Context usable for FROM_CTX: references.
func (c *Context) Lookup(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []string:
		return strings.Join(t, ";"), true
	}
	return fmt.Sprint(v), true
}
