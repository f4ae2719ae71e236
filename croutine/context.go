package croutine

import "sync/atomic"

// Context is a reusable execution context: everything needed to resume a
// function exactly where it last suspended.
//
// A pooled Context is backed by one parked goroutine, whose stack holds the
// suspended frames. A main Context has no goroutine of its own; the scheduling
// goroutine parks on it while a routine runs. Control moves between contexts
// only through SwapContext and ExitContext, which hand a single token over
// unbuffered channels, so exactly one side of a swap executes at a time.
type Context struct {
	slot int
	wake chan struct{}

	entry func(any)
	arg   any

	running bool // backing goroutine started
	inUse   bool // guarded by the owning Pool's mutex
	shut    bool // guarded by the owning Pool's mutex
	dead    atomic.Bool
}

func newContext(slot int) *Context {
	return &Context{slot: slot, wake: make(chan struct{})}
}

func newMainContext() *Context {
	return newContext(-1)
}

// Make materialises c so that the next swap into it starts entry(arg).
//
// Any previous assignment is overwritten. c must be idle: never started, or
// returned from its last entry through ExitContext.
func (c *Context) Make(entry func(any), arg any) {
	c.entry, c.arg = entry, arg
	if !c.running {
		c.running = true
		go c.run()
	}
}

// run is the backing goroutine. Each token received here starts a freshly
// made entry; entries leave through ExitContext, which parks the goroutine
// back on this loop.
func (c *Context) run() {
	for range c.wake {
		c.entry(c.arg)
	}
}

// shutdown stops an idle context's goroutine.
func (c *Context) shutdown() {
	if c.shut {
		return
	}
	c.shut = true
	if c.running {
		close(c.wake)
	}
}

// SwapContext transfers execution from 'from' to 'to'. It does not return
// until a later swap targets 'from' again.
func SwapContext(from, to *Context) {
	to.wake <- struct{}{}
	<-from.wake
}

// ExitContext transfers execution to 'to' for the last time in the current
// entry. The caller must return to the context loop immediately afterwards
// and must not touch state that 'to' now owns.
func ExitContext(from, to *Context) {
	to.wake <- struct{}{}
}
