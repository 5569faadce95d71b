package pool

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is one logical connection to an upstream base address. It is
// owned exclusively by the Pool that created it and is never shared across
// pools.
type Connection struct {
	// ID uniquely identifies the connection within the process.
	ID string

	// BaseAddress is the owning pool's upstream base address.
	BaseAddress string

	// CreatedAt is when the connection was created.
	CreatedAt time.Time

	mu           sync.Mutex
	inUse        bool
	healthy      bool
	lastUsed     time.Time
	requestCount int64
}

// newConnection creates a healthy, idle connection for the given address.
func newConnection(baseAddress string) *Connection {
	now := time.Now()
	return &Connection{
		ID:          uuid.NewString(),
		BaseAddress: baseAddress,
		CreatedAt:   now,
		healthy:     true,
		lastUsed:    now,
	}
}

// InUse reports whether the connection is currently checked out.
func (c *Connection) InUse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inUse
}

// Healthy reports whether the connection is usable. An unhealthy
// connection is discarded by its pool on release.
func (c *Connection) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// MarkUnhealthy flags the connection for discard on release. Executors call
// this when the underlying transport is no longer trustworthy.
func (c *Connection) MarkUnhealthy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = false
}

// LastUsed returns when the connection last completed a request.
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// RequestCount returns the cumulative number of requests run on the
// connection.
func (c *Connection) RequestCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCount
}

// touch records a completed request on the connection.
func (c *Connection) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUsed = time.Now()
	c.requestCount++
}

// setInUse updates the checked-out flag.
func (c *Connection) setInUse(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inUse = v
}
