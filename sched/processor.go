package sched

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"strand/croutine"
	"strand/hal"
)

// DefaultIdlePoll bounds how long an idle processor sleeps without a signal.
const DefaultIdlePoll = 10 * time.Millisecond

// Processor resumes its routines round-robin on a single Thread.
//
// Step and Run belong to one goroutine. Add and Notify may be called from any
// goroutine.
type Processor struct {
	id       int
	thread   *croutine.Thread
	log      hal.Logger
	idlePoll time.Duration

	mu      sync.Mutex
	pending []*croutine.Routine
	wake    chan struct{}

	routines []*croutine.Routine
	rr       int

	live     atomic.Int64
	resumes  atomic.Uint64
	finished atomic.Uint64
	faults   atomic.Uint64
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithLogger sends processor diagnostics to l.
func WithLogger(l hal.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

// WithIdlePoll overrides DefaultIdlePoll.
func WithIdlePoll(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.idlePoll = d
		}
	}
}

// NewProcessor creates an idle processor.
func NewProcessor(id int, opts ...ProcessorOption) *Processor {
	p := &Processor{
		id:       id,
		thread:   croutine.NewThread(),
		log:      hal.Discard,
		idlePoll: DefaultIdlePoll,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the processor id.
func (p *Processor) ID() int { return p.id }

// Add hands r to the processor and binds it to the processor's id. The
// routine's construction flag is consumed here, so only a later Notify wakes a
// waiting body.
func (p *Processor) Add(r *croutine.Routine) {
	r.SetProcessorID(p.id)
	r.Updated()

	p.mu.Lock()
	p.pending = append(p.pending, r)
	p.mu.Unlock()
	p.live.Add(1)
	p.signal()
}

// Notify marks r as updated and wakes the processor.
func (p *Processor) Notify(r *croutine.Routine) {
	r.SetUpdateFlag()
	p.signal()
}

func (p *Processor) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) drain() {
	p.mu.Lock()
	if len(p.pending) > 0 {
		p.routines = append(p.routines, p.pending...)
		p.pending = p.pending[:0]
	}
	p.mu.Unlock()
}

// Step resumes at most one ready routine and reports whether it did.
func (p *Processor) Step(now time.Time) bool {
	p.drain()
	n := len(p.routines)
	if n == 0 {
		return false
	}

	for i := 0; i < n; i++ {
		idx := (p.rr + i) % n
		r := p.routines[idx]
		if !r.Stopped() && UpdateState(r, now) != croutine.Ready {
			continue
		}
		if !r.TryClaim() {
			continue
		}

		p.rr = idx + 1
		st := r.Resume(p.thread)
		r.Unclaim()
		p.resumes.Add(1)

		if st == croutine.Finished {
			p.retire(idx)
		}
		return true
	}
	return false
}

func (p *Processor) retire(idx int) {
	r := p.routines[idx]
	if err := r.Err(); err != nil {
		p.faults.Add(1)
		p.log.WriteLineString(fmt.Sprintf("sched: proc=%d routine %d failed: %v", p.id, r.ID(), err))
	}
	if err := r.Close(); err != nil {
		p.log.WriteLineString(fmt.Sprintf("sched: proc=%d close routine %d: %v", p.id, r.ID(), err))
	}
	p.routines = append(p.routines[:idx], p.routines[idx+1:]...)
	if p.rr > idx {
		p.rr--
	}
	p.live.Add(-1)
	p.finished.Add(1)
}

// Run steps the processor until every added routine has finished or ctx is
// done. Routines still alive when ctx ends are closed, which unwinds their
// bodies.
func (p *Processor) Run(ctx context.Context) error {
	timer := time.NewTimer(p.idlePoll)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			p.Close()
			return err
		}
		if p.Step(time.Now()) {
			continue
		}
		if p.live.Load() == 0 {
			return nil
		}

		timer.Reset(p.nextWait(time.Now()))
		select {
		case <-ctx.Done():
		case <-p.wake:
		case <-timer.C:
		}
	}
}

// nextWait is the time until the earliest sleeper is due, capped by idlePoll.
func (p *Processor) nextWait(now time.Time) time.Duration {
	wait := p.idlePoll
	for _, r := range p.routines {
		if r.State() != Sleep {
			continue
		}
		if d := r.WakeTime().Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Close closes every routine still held by the processor. It must not run
// concurrently with Step or Run.
func (p *Processor) Close() {
	p.drain()
	for len(p.routines) > 0 {
		p.retire(len(p.routines) - 1)
	}
}

// ProcessorStats is a snapshot of processor counters.
type ProcessorStats struct {
	ID       int
	Live     int64
	Resumes  uint64
	Finished uint64
	Faults   uint64
}

// Stats returns the current counters. Safe from any goroutine.
func (p *Processor) Stats() ProcessorStats {
	return ProcessorStats{
		ID:       p.id,
		Live:     p.live.Load(),
		Resumes:  p.resumes.Load(),
		Finished: p.finished.Load(),
		Faults:   p.faults.Load(),
	}
}
