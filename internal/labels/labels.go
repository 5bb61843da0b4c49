// Package labels hands out display names for generated objects.
package labels

import (
	"fmt"
	"sync"
)

// Counter produces increasing, prefix-scoped labels. Each generation run
// owns its own Counter so repeated runs in one process label identically.
type Counter struct {
	mu   sync.Mutex
	next map[string]int
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{next: make(map[string]int)}
}

// Next returns "<prefix>_<n>" with n starting at 0 per prefix.
func (c *Counter) Next(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.next[prefix]
	c.next[prefix] = n + 1
	return fmt.Sprintf("%s_%d", prefix, n)
}

// Count returns how many labels were issued for prefix.
func (c *Counter) Count(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next[prefix]
}

// Reset forgets all prefixes.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.next)
}
