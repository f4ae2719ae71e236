package croutine

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the pool size used when no capacity is configured.
const DefaultCapacity = 100

var (
	ErrPoolExhausted = errors.New("croutine: context pool exhausted")
	ErrPoolClosed    = errors.New("croutine: context pool closed")
)

// Pool is a bounded arena of execution contexts.
//
// Slots are created up front; the goroutine behind a slot is started the
// first time the slot is handed out and then reused for every later routine
// that receives it. Acquire never waits: an empty pool is an error.
type Pool struct {
	mu     sync.Mutex
	slots  []*Context
	free   []int
	inUse  int
	closed bool
}

// NewPool creates a pool of capacity contexts. Non-positive capacity selects DefaultCapacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		slots: make([]*Context, capacity),
		free:  make([]int, capacity),
	}
	// Hand out low slots first.
	for i := range p.free {
		p.free[i] = capacity - 1 - i
	}
	return p
}

// Acquire returns an idle context. It is safe for concurrent use.
func (p *Pool) Acquire() (*Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	n := len(p.free)
	if n == 0 {
		return nil, fmt.Errorf("%w (capacity %d)", ErrPoolExhausted, len(p.slots))
	}
	slot := p.free[n-1]
	p.free = p.free[:n-1]

	c := p.slots[slot]
	if c == nil {
		c = newContext(slot)
		p.slots[slot] = c
	}
	c.inUse = true
	p.inUse++
	return c, nil
}

// Release returns c to the pool. Releasing a context twice, or one that
// belongs to another pool, is ignored.
func (p *Pool) Release(c *Context) {
	if c == nil || c.slot < 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c.slot >= len(p.slots) || p.slots[c.slot] != c || !c.inUse {
		return
	}
	c.inUse = false
	c.entry, c.arg = nil, nil
	if c.dead.Load() {
		// The goroutine behind this slot exited; start over with a fresh one.
		c = newContext(c.slot)
		p.slots[c.slot] = c
	}
	if p.closed {
		c.shutdown()
	}
	p.free = append(p.free, c.slot)
	p.inUse--
}

// Cap returns the pool capacity.
func (p *Pool) Cap() int {
	return len(p.slots)
}

// InUse returns how many contexts are currently handed out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Close stops the goroutines of idle contexts and fails later Acquire calls.
// Contexts still in use are stopped when they are released.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for _, c := range p.slots {
		if c != nil && !c.inUse {
			c.shutdown()
		}
	}
}

var (
	defaultOnce  sync.Once
	defaultMu    sync.Mutex
	defaultCap   = DefaultCapacity
	defaultBuilt bool
	defaultPool  *Pool
)

// SetDefaultCapacity records the capacity of the process-wide pool. It only
// takes effect before the pool is first used and reports whether it did.
func SetDefaultCapacity(n int) bool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultBuilt {
		return false
	}
	defaultCap = n
	return true
}

// DefaultPool returns the process-wide pool, building it on first use.
func DefaultPool() *Pool {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		n := defaultCap
		defaultBuilt = true
		defaultMu.Unlock()
		defaultPool = NewPool(n)
	})
	return defaultPool
}
