package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"strand/hal"
)

const (
	DefaultBufferSize    = 4096
	DefaultFlushInterval = 200 * time.Millisecond
	defaultBatchSize     = 512
)

// Store persists drained events for offline analysis.
type Store interface {
	InsertEvents(ctx context.Context, session string, events []SchedEvent) error
}

// CacheOptions configures a Cache. Zero values select defaults.
type CacheOptions struct {
	BufferSize    int
	FlushInterval time.Duration
	BatchSize     int
	// Session tags every flushed batch. Empty means NewSession().
	Session string
	Logger  hal.Logger
}

// Stats reports cache counters.
type Stats struct {
	Added   uint64
	Dropped uint64
	Flushed uint64
	Failed  uint64
}

// Cache is a Sink that buffers events in a bounded ring and flushes them to a
// Store from a single background goroutine.
//
// AddSchedEvent is safe for concurrent use, never blocks and drops the event
// when the ring is full.
type Cache struct {
	store   Store
	opts    CacheOptions
	session string
	q       *ring

	added   atomic.Uint64
	dropped atomic.Uint64
	flushed atomic.Uint64
	failed  atomic.Uint64

	drainMu sync.Mutex
	batch   []SchedEvent

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

// NewCache creates a cache writing to store. A nil store discards flushed batches.
func NewCache(store Store, opts CacheOptions) *Cache {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = hal.Discard
	}
	session := opts.Session
	if session == "" {
		session = NewSession()
	}
	return &Cache{
		store:   store,
		opts:    opts,
		session: session,
		q:       newRing(opts.BufferSize),
		batch:   make([]SchedEvent, 0, opts.BatchSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Session returns the session id attached to flushed events.
func (c *Cache) Session() string { return c.session }

// AddSchedEvent implements Sink.
func (c *Cache) AddSchedEvent(ev SchedEvent) {
	if ev.At == 0 {
		ev.At = time.Now().UnixNano()
	}
	if c.q.tryPush(ev) {
		c.added.Add(1)
		return
	}
	c.dropped.Add(1)
}

// Start launches the flusher. It returns immediately; later calls are no-ops.
func (c *Cache) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.loop(ctx)
	})
}

func (c *Cache) loop(ctx context.Context) {
	defer close(c.done)

	t := time.NewTicker(c.opts.FlushInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-t.C:
			if err := c.Flush(ctx); err != nil {
				c.opts.Logger.WriteLineString(fmt.Sprintf("event: flush failed session=%s: %v", c.session, err))
			}
		}
	}
}

// Flush drains everything currently buffered into the store.
//
// A failed batch is counted and discarded; the remaining batches are still attempted.
func (c *Cache) Flush(ctx context.Context) error {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	var firstErr error
	for {
		c.batch = c.batch[:0]
		for len(c.batch) < c.opts.BatchSize {
			ev, ok := c.q.tryPop()
			if !ok {
				break
			}
			c.batch = append(c.batch, ev)
		}
		if len(c.batch) == 0 {
			return firstErr
		}
		if c.store == nil {
			c.flushed.Add(uint64(len(c.batch)))
			continue
		}
		if err := c.store.InsertEvents(ctx, c.session, c.batch); err != nil {
			c.failed.Add(uint64(len(c.batch)))
			if firstErr == nil {
				firstErr = fmt.Errorf("insert %d events: %w", len(c.batch), err)
			}
			continue
		}
		c.flushed.Add(uint64(len(c.batch)))
	}
}

// Close stops the flusher and writes whatever is left in the buffer.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		if c.started.Load() {
			<-c.done
		}
		err = c.Flush(context.Background())
	})
	return err
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Added:   c.added.Load(),
		Dropped: c.dropped.Load(),
		Flushed: c.flushed.Load(),
		Failed:  c.failed.Load(),
	}
}
