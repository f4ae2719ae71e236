// Package sched drives croutine routines from processor goroutines.
//
// It owns the wait states a body can yield with and the bookkeeping that turns
// them back into croutine.Ready.
package sched

import (
	"context"
	"time"

	"strand/croutine"
)

const (
	// Sleep waits until the routine's wake time has passed.
	Sleep croutine.State = croutine.FirstSchedulerState + iota
	// IOWait waits for a Notify from an I/O completion.
	IOWait
	// DataWait waits for a Notify from a data producer.
	DataWait
)

// StateName renders core and scheduler states alike.
func StateName(s croutine.State) string {
	switch s {
	case Sleep:
		return "SLEEP"
	case IOWait:
		return "IO_WAIT"
	case DataWait:
		return "DATA_WAIT"
	default:
		return s.String()
	}
}

// SleepFor suspends the calling body for at least d.
func SleepFor(ctx context.Context, d time.Duration) {
	if r := croutine.Current(ctx); r != nil {
		r.SetWakeTime(time.Now().Add(d))
	}
	croutine.Yield(ctx, Sleep)
}

// HangUp suspends the calling body until its processor is notified.
func HangUp(ctx context.Context) {
	croutine.Yield(ctx, DataWait)
}

// WaitIO suspends the calling body until an I/O completion notifies it.
func WaitIO(ctx context.Context) {
	croutine.Yield(ctx, IOWait)
}

// UpdateState moves a waiting routine back to Ready once its condition holds
// at now, and returns the resulting state.
func UpdateState(r *croutine.Routine, now time.Time) croutine.State {
	switch r.State() {
	case Sleep:
		if !now.Before(r.WakeTime()) {
			r.SetState(croutine.Ready)
		}
	case IOWait, DataWait:
		if r.Updated() {
			r.SetState(croutine.Ready)
		}
	}
	return r.State()
}
