package croutine

import "fmt"

// State is a routine's lifecycle state.
//
// The core only interprets Ready, Running and Finished. Schedulers define
// their own suspended states at or above FirstSchedulerState and pass them to
// Yield; the core stores and returns them untouched.
type State int32

const (
	// Ready means Resume may be called.
	Ready State = iota
	// Running holds only between swap-in and the next yield.
	Running
	// Finished is terminal: the body returned, faulted or was force-stopped.
	Finished

	// FirstSchedulerState is the lowest value reserved for scheduler-defined states.
	FirstSchedulerState State = 16
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
