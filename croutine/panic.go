package croutine

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrGoexit marks a routine whose body called runtime.Goexit.
var ErrGoexit = errors.New("croutine: routine body called runtime.Goexit")

// PanicError records a panic recovered from a routine body.
type PanicError struct {
	RoutineID uint64
	Name      string
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("croutine: routine %d (%s) panicked: %v", e.RoutineID, e.Name, e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// killSignal unwinds a suspended body when its routine is closed.
type killSignal struct{}

var (
	faultCount   atomic.Uint64
	panicHandler atomic.Value // func(*PanicError)
)

// SetPanicHandler installs a process-wide hook called for every body fault.
//
// The handler runs on the faulting routine's stack before control returns to
// the scheduler. It must not block; a panic inside it is swallowed.
func SetPanicHandler(fn func(*PanicError)) {
	panicHandler.Store(fn)
}

// Faults returns how many routine bodies have faulted in this process.
func Faults() uint64 {
	return faultCount.Load()
}

func reportPanic(e *PanicError) {
	faultCount.Add(1)
	v := panicHandler.Load()
	if v == nil {
		return
	}
	fn, ok := v.(func(*PanicError))
	if !ok || fn == nil {
		return
	}
	defer func() { _ = recover() }()
	fn(e)
}
