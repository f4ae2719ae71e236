// Package event carries scheduling trace events out of the routine core.
//
// The core reports every context swap to a Sink. Sinks must be cheap and must
// never block: recording is best-effort and a lost event never changes how a
// routine runs.
package event

import (
	"fmt"
	"sync/atomic"
)

// Phase identifies which side of a context swap an event was taken on.
type Phase uint8

const (
	SwapIn Phase = iota
	SwapOut
)

func (p Phase) String() string {
	switch p {
	case SwapIn:
		return "SWAP_IN"
	case SwapOut:
		return "SWAP_OUT"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// SchedEvent is one swap-in or swap-out record.
type SchedEvent struct {
	Phase       Phase
	RoutineID   uint64
	ProcessorID int
	State       int32
	// At is a monotonic-ish wall clock in Unix nanoseconds.
	At int64
}

// Sink receives scheduling events.
type Sink interface {
	AddSchedEvent(ev SchedEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(SchedEvent)

func (f SinkFunc) AddSchedEvent(ev SchedEvent) { f(ev) }

// NopSink drops every event.
type NopSink struct{}

func (NopSink) AddSchedEvent(SchedEvent) {}

type sinkHolder struct{ s Sink }

var defaultSink atomic.Pointer[sinkHolder]

// SetDefault installs the process-wide sink. A nil sink restores NopSink.
func SetDefault(s Sink) {
	if s == nil {
		s = NopSink{}
	}
	defaultSink.Store(&sinkHolder{s: s})
}

// Default returns the process-wide sink.
func Default() Sink {
	if h := defaultSink.Load(); h != nil {
		return h.s
	}
	return NopSink{}
}
