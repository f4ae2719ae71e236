package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"strand/event"
	"strand/internal/database"
)

// EventRepo stores scheduling trace events.
//
// Routine ids are uint64 and stored bit-for-bit in sqlite's signed INTEGER.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// InsertEvents writes evs under session in one transaction, keeping their order.
func (r *EventRepo) InsertEvents(ctx context.Context, session string, evs []event.SchedEvent) error {
	if len(evs) == 0 {
		return nil
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sched_events(session, phase, routine_id, processor_id, state, at_ns)
		VALUES(?, ?, ?, ?, ?, ?);
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, ev := range evs {
			if _, err := stmt.ExecContext(ctx, session, int(ev.Phase), int64(ev.RoutineID), ev.ProcessorID, ev.State, ev.At); err != nil {
				return fmt.Errorf("insert event: %w", err)
			}
		}
		return nil
	})
}

// Sessions lists recorded sessions, most recent first.
func (r *EventRepo) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT session, COUNT(*), COUNT(DISTINCT routine_id), MIN(at_ns), MAX(at_ns)
	FROM sched_events
	GROUP BY session
	ORDER BY MAX(at_ns) DESC, session;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var first, last int64
		if err := rows.Scan(&s.ID, &s.Events, &s.Routines, &first, &last); err != nil {
			return nil, err
		}
		s.First = time.Unix(0, first)
		s.Last = time.Unix(0, last)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Summaries aggregates a session per routine. On-CPU time is measured between
// each swap-in and the swap-out that follows it.
func (r *EventRepo) Summaries(ctx context.Context, session string) ([]RoutineSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT phase, routine_id, processor_id, state, at_ns
	FROM sched_events
	WHERE session = ?
	ORDER BY routine_id, id;
	`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[uint64]*RoutineSummary{}
	swapIn := map[uint64]int64{}
	seenProc := map[uint64]map[int]bool{}
	for rows.Next() {
		var phase int
		var rid, at int64
		var proc int
		var state int32
		if err := rows.Scan(&phase, &rid, &proc, &state, &at); err != nil {
			return nil, err
		}
		id := uint64(rid)
		s, ok := byID[id]
		if !ok {
			s = &RoutineSummary{RoutineID: id}
			byID[id] = s
			seenProc[id] = map[int]bool{}
		}
		if !seenProc[id][proc] {
			seenProc[id][proc] = true
			s.Processors = append(s.Processors, proc)
		}

		switch event.Phase(phase) {
		case event.SwapIn:
			s.Resumes++
			swapIn[id] = at
		case event.SwapOut:
			s.LastState = state
			start, ok := swapIn[id]
			if !ok {
				continue
			}
			delete(swapIn, id)
			d := time.Duration(at - start)
			s.TotalOnCPU += d
			if d > s.MaxOnCPU {
				s.MaxOnCPU = d
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]RoutineSummary, 0, len(byID))
	for _, s := range byID {
		sort.Ints(s.Processors)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoutineID < out[j].RoutineID })
	return out, nil
}
