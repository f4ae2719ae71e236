package repository

import "time"

// Session summarises one recorded trace session.
type Session struct {
	ID       string
	Events   int
	Routines int
	First    time.Time
	Last     time.Time
}

// RoutineSummary aggregates the swap events of one routine in a session.
type RoutineSummary struct {
	RoutineID  uint64
	Resumes    int
	TotalOnCPU time.Duration
	MaxOnCPU   time.Duration
	LastState  int32
	Processors []int
}
