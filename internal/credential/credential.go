package credential

import (
	"sync"
	"time"
)

// Credential holds the process-wide bearer token attached to outgoing
// requests. Readers must call Get at request-issue time.
type Credential struct {
	mu         sync.RWMutex
	token      string
	generation uint64
	updatedAt  time.Time
}

func New() *Credential {
	return &Credential{}
}

// Set replaces the current bearer token.
func (c *Credential) Set(token string) {
	c.mu.Lock()
	c.token = token
	c.generation++
	c.updatedAt = time.Now()
	c.mu.Unlock()
}

// Clear drops the current bearer token.
func (c *Credential) Clear() {
	c.Set("")
}

// Get returns the current bearer token, or "" when none is attached.
func (c *Credential) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Current returns the token together with its generation, which changes on
// every Set or Clear. A response can be matched to the credential it was
// issued with by comparing generations.
func (c *Credential) Current() (token string, generation uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.generation
}

// Generation returns the current generation.
func (c *Credential) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// UpdatedAt returns the last time the credential was set or cleared.
func (c *Credential) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
