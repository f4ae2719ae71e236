package croutine

// Thread is the per-scheduling-goroutine registry: the main context routines
// swap back to, and the routine currently running on top of it.
//
// A Thread belongs to exactly one scheduling goroutine and is never shared.
// Go has no thread-local storage, so the scheduler passes its Thread to
// Resume and routine bodies reach it through their context.Context.
type Thread struct {
	main    *Context
	current *Routine
}

// NewThread creates an empty registry. Its main context is created on first use.
func NewThread() *Thread {
	return &Thread{}
}

// Current returns the routine running on t, or nil between resumes.
func (t *Thread) Current() *Routine {
	return t.current
}

func (t *Thread) mainContext() *Context {
	if t.main == nil {
		t.main = newMainContext()
	}
	return t.main
}
