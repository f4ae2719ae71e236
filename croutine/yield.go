package croutine

import (
	"context"
	"runtime/debug"
)

type routineKey struct{}

// Current returns the routine whose body received ctx, or nil when ctx does
// not belong to a routine body.
func Current(ctx context.Context) *Routine {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(routineKey{}).(*Routine)
	return r
}

// Yield suspends the calling routine body with state s and returns control
// to the Thread that resumed it. Execution continues right after the call on
// the next Resume.
//
// ctx must be the context handed to the body, and Yield must be called from
// the body's own goroutine. A goroutine the body starts may carry ctx, but
// its Yield calls are reported and ignored, as is any Yield outside a running
// body.
func Yield(ctx context.Context, s State) {
	r := Current(ctx)
	if r == nil {
		logf("croutine: yield without current routine state=%s", s)
		return
	}
	if r.gid.Load() != goroutineID() {
		logf("croutine: yield from goroutine not running routine id=%d name=%q state=%s", r.id, r.name, s)
		return
	}
	if r.killed {
		panic(killSignal{})
	}
	t := r.thread
	if t == nil || t.current != r {
		logf("croutine: yield from routine that is not running id=%d name=%q state=%s", r.id, r.name, s)
		return
	}

	r.state = s
	SwapContext(r.ec, t.mainContext())
	if r.killed {
		panic(killSignal{})
	}
}

// trampoline is the entry of every routine context: run the body, then leave
// through the final yield.
func trampoline(arg any) {
	r := arg.(*Routine)
	r.gid.Store(goroutineID())
	r.invoke()
	r.finish()
}

func (r *Routine) invoke() {
	returned := false
	defer func() {
		if returned {
			return
		}
		v := recover()
		switch v.(type) {
		case nil:
			// runtime.Goexit: this goroutine is going away, so the final
			// yield has to happen here and the context cannot be reused.
			r.err = ErrGoexit
			logf("croutine: routine called runtime.Goexit id=%d name=%q", r.id, r.name)
			r.ec.dead.Store(true)
			r.finish()
		case killSignal:
		default:
			r.fault(v)
		}
	}()
	r.fn(r.ctx)
	returned = true
}

func (r *Routine) fault(v any) {
	pe := &PanicError{RoutineID: r.id, Name: r.name, Value: v, Stack: debug.Stack()}
	r.err = pe
	logf("croutine: routine panicked id=%d name=%q: %v", r.id, r.name, v)
	reportPanic(pe)
}

func (r *Routine) finish() {
	r.state = Finished
	r.exited = true
	ExitContext(r.ec, r.thread.mainContext())
}
