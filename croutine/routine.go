// Package croutine implements stackful cooperative routines.
//
// A Routine runs its body on a pooled execution context. A scheduling
// goroutine calls Resume with its Thread; control transfers into the body
// until the body calls Yield or returns, then comes back and Resume reports
// the routine's new state. One Thread runs at most one routine at a time;
// many Threads may run different routines in parallel.
package croutine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"time"

	"strand/event"
)

var (
	ErrNilBody = errors.New("croutine: nil routine body")
	ErrRunning = errors.New("croutine: routine is running")
)

var nextID atomic.Uint64

// Routine is a cooperative unit of execution.
//
// state, thread and the body-side flags are only touched by whichever side of
// a swap currently holds the CPU; the channel handoff orders them. forceStop,
// updated and claimed may be used from any goroutine.
type Routine struct {
	fn  func(ctx context.Context)
	ctx context.Context

	cancel context.CancelFunc
	pool   *Pool
	ec     *Context
	sink   event.Sink

	state  State
	thread *Thread
	err    error

	id          uint64
	processorID int
	name        string
	group       string
	priority    uint32
	wakeTime    time.Time

	started bool // body entered at least once
	exited  bool // trampoline left through its final yield
	killed  bool

	gid       atomic.Uint64 // goroutine running the body
	forceStop atomic.Bool
	updated   atomic.Bool
	claimed   atomic.Bool
	closed    atomic.Bool
}

// Option configures a Routine at construction.
type Option func(*Routine)

// WithID sets the routine id. Without it the id is derived from the name, or
// taken from a process-wide counter.
func WithID(id uint64) Option { return func(r *Routine) { r.id = id } }

// WithName sets a diagnostic name.
func WithName(name string) Option { return func(r *Routine) { r.name = name } }

// WithGroup sets the scheduling group the routine belongs to.
func WithGroup(group string) Option { return func(r *Routine) { r.group = group } }

// WithProcessor sets the processor affinity reported in trace events.
func WithProcessor(id int) Option { return func(r *Routine) { r.processorID = id } }

// WithPriority sets the scheduling priority.
func WithPriority(p uint32) Option { return func(r *Routine) { r.priority = p } }

// WithPool acquires the execution context from p instead of DefaultPool.
func WithPool(p *Pool) Option { return func(r *Routine) { r.pool = p } }

// WithSink sends trace events to s instead of event.Default().
func WithSink(s event.Sink) Option { return func(r *Routine) { r.sink = s } }

// New creates a Ready routine running fn.
//
// It acquires an execution context immediately. When the pool cannot supply
// one the routine cannot exist: the failure is logged and returned.
func New(fn func(ctx context.Context), opts ...Option) (*Routine, error) {
	if fn == nil {
		return nil, ErrNilBody
	}
	r := &Routine{fn: fn, processorID: -1}
	for _, opt := range opts {
		opt(r)
	}
	if r.pool == nil {
		r.pool = DefaultPool()
	}
	if r.id == 0 {
		r.id = routineID(r.name)
	}

	ec, err := r.pool.Acquire()
	if err != nil {
		logf("croutine: cannot create routine id=%d name=%q: %v", r.id, r.name, err)
		return nil, fmt.Errorf("new routine %q: %w", r.name, err)
	}
	r.ec = ec
	r.ctx, r.cancel = context.WithCancel(context.WithValue(context.Background(), routineKey{}, r))
	ec.Make(trampoline, r)
	r.state = Ready
	r.updated.Store(true)
	return r, nil
}

func routineID(name string) uint64 {
	if name != "" {
		h := fnv.New64a()
		_, _ = h.Write([]byte(name))
		if id := h.Sum64(); id != 0 {
			return id
		}
	}
	return nextID.Add(1)
}

// Resume runs the routine on t until it yields or finishes, and returns the
// resulting state.
//
// A force-stopped routine finishes without entering its body. Resuming a
// routine that is not Ready, or resuming on a Thread that already runs a
// routine, is reported and returns the state unchanged.
func (r *Routine) Resume(t *Thread) State {
	if r.forceStop.Load() {
		r.state = Finished
		return r.state
	}
	if r.state != Ready {
		logf("croutine: invalid routine state id=%d name=%q state=%s", r.id, r.name, r.state)
		return r.state
	}
	if t == nil {
		logf("croutine: resume without thread id=%d name=%q", r.id, r.name)
		return r.state
	}
	if cur := t.current; cur != nil {
		logf("croutine: thread busy id=%d name=%q current=%d", r.id, r.name, cur.id)
		return r.state
	}

	t.current = r
	r.thread = t
	r.emit(event.SwapIn)
	r.state = Running
	r.started = true
	SwapContext(t.mainContext(), r.ec)
	r.emit(event.SwapOut)
	t.current = nil
	return r.state
}

// Stop requests a forced stop. The next Resume finishes the routine without
// entering the body; the body's context is cancelled right away so a running
// body can notice. Safe from any goroutine, idempotent.
func (r *Routine) Stop() {
	r.forceStop.Store(true)
	r.cancel()
}

// Close releases the routine's execution context back to its pool.
//
// A body suspended mid-execution is unwound first: its pending Yield panics
// with an internal signal, deferred calls run, and the context is returned
// clean. The body's context is cancelled before the unwind. A body that
// recovers panics it does not recognise keeps running until it returns, so
// such bodies should stop once ctx is done. Close must not race with Resume;
// calling it from the routine's own body returns ErrRunning.
func (r *Routine) Close() error {
	if r.state == Running {
		return ErrRunning
	}
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.cancel()
	if r.started && !r.exited {
		r.kill()
	}
	r.state = Finished
	r.pool.Release(r.ec)
	r.ec = nil
	return nil
}

func (r *Routine) kill() {
	t := NewThread()
	r.killed = true
	r.thread = t
	t.current = r
	SwapContext(t.mainContext(), r.ec)
	t.current = nil
}

func (r *Routine) emit(p event.Phase) {
	sink := r.sink
	if sink == nil {
		sink = event.Default()
	}
	defer func() { _ = recover() }()
	sink.AddSchedEvent(event.SchedEvent{
		Phase:       p,
		RoutineID:   r.id,
		ProcessorID: r.processorID,
		State:       int32(r.state),
	})
}

// State returns the current state.
func (r *Routine) State() State { return r.state }

// SetState overrides the state between resumes. Schedulers use it to move a
// suspended routine back to Ready once whatever it waited for has happened.
func (r *Routine) SetState(s State) {
	if r.state == Running || r.state == Finished {
		return
	}
	r.state = s
}

// Updated reports whether the update flag was set, clearing it.
func (r *Routine) Updated() bool { return r.updated.Swap(false) }

// SetUpdateFlag marks the routine as having a pending update.
func (r *Routine) SetUpdateFlag() { r.updated.Store(true) }

// TryClaim takes the routine for exclusive resumption, reporting success.
func (r *Routine) TryClaim() bool { return r.claimed.CompareAndSwap(false, true) }

// Unclaim releases a claim taken by TryClaim.
func (r *Routine) Unclaim() { r.claimed.Store(false) }

// Stopped reports whether Stop was called.
func (r *Routine) Stopped() bool { return r.forceStop.Load() }

// Err returns the body fault that finished the routine, if any.
func (r *Routine) Err() error { return r.err }

func (r *Routine) ID() uint64          { return r.id }
func (r *Routine) ProcessorID() int    { return r.processorID }
func (r *Routine) Name() string        { return r.name }
func (r *Routine) Group() string       { return r.group }
func (r *Routine) Priority() uint32    { return r.priority }
func (r *Routine) WakeTime() time.Time { return r.wakeTime }

// SetProcessorID records the processor the routine is bound to.
func (r *Routine) SetProcessorID(id int) { r.processorID = id }

// SetWakeTime stores a scheduler-owned wake-up deadline. The core never reads it.
func (r *Routine) SetWakeTime(at time.Time) { r.wakeTime = at }
