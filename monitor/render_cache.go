package monitor

import "sync"

// renderCache keeps the last rendered dashboard until the stats change or
// the terminal is resized.
type renderCache struct {
	mu            sync.RWMutex
	view          string
	dirty         bool
	width, height int
}

func newRenderCache() *renderCache {
	return &renderCache{dirty: true}
}

func (c *renderCache) get(width, height int, render func() string) string {
	c.mu.RLock()
	if !c.dirty && c.width == width && c.height == height {
		view := c.view
		c.mu.RUnlock()
		return view
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty && c.width == width && c.height == height {
		return c.view
	}
	c.width, c.height = width, height
	c.view = render()
	c.dirty = false
	return c.view
}

func (c *renderCache) invalidate() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}
