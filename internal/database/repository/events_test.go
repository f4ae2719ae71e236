package repository

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strand/event"
	"strand/internal/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	require.NoError(t, database.RunMigrations(path))
	db, err := database.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func swap(p event.Phase, id uint64, proc int, state int32, at int64) event.SchedEvent {
	return event.SchedEvent{Phase: p, RoutineID: id, ProcessorID: proc, State: state, At: at}
}

func TestEventRepoSummaries(t *testing.T) {
	t.Parallel()
	repo := NewEventRepo(openTestDB(t))
	ctx := context.Background()

	big := uint64(math.MaxUint64 - 5)
	require.NoError(t, repo.InsertEvents(ctx, "s1", []event.SchedEvent{
		swap(event.SwapIn, 7, 0, 0, 100),
		swap(event.SwapIn, big, 1, 0, 110),
		swap(event.SwapOut, 7, 0, 0, 130),
		swap(event.SwapOut, big, 1, 2, 115),
		swap(event.SwapIn, 7, 1, 0, 200),
		swap(event.SwapOut, 7, 1, 2, 280),
	}))
	require.NoError(t, repo.InsertEvents(ctx, "s2", []event.SchedEvent{
		swap(event.SwapIn, 7, 0, 0, 1000),
	}))

	got, err := repo.Summaries(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, uint64(7), got[0].RoutineID)
	assert.Equal(t, 2, got[0].Resumes)
	assert.Equal(t, 110*time.Nanosecond, got[0].TotalOnCPU)
	assert.Equal(t, 80*time.Nanosecond, got[0].MaxOnCPU)
	assert.Equal(t, int32(2), got[0].LastState)
	assert.Equal(t, []int{0, 1}, got[0].Processors)

	assert.Equal(t, big, got[1].RoutineID)
	assert.Equal(t, 1, got[1].Resumes)
	assert.Equal(t, 5*time.Nanosecond, got[1].TotalOnCPU)
}

func TestEventRepoSessions(t *testing.T) {
	t.Parallel()
	repo := NewEventRepo(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.InsertEvents(ctx, "old", []event.SchedEvent{
		swap(event.SwapIn, 1, 0, 0, 10),
		swap(event.SwapOut, 1, 0, 2, 20),
	}))
	require.NoError(t, repo.InsertEvents(ctx, "new", []event.SchedEvent{
		swap(event.SwapIn, 1, 0, 0, 50),
		swap(event.SwapIn, 2, 0, 0, 60),
		swap(event.SwapOut, 2, 0, 2, 70),
	}))
	require.NoError(t, repo.InsertEvents(ctx, "empty", nil))

	got, err := repo.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, 3, got[0].Events)
	assert.Equal(t, 2, got[0].Routines)
	assert.Equal(t, time.Unix(0, 50), got[0].First)
	assert.Equal(t, time.Unix(0, 70), got[0].Last)
	assert.Equal(t, "old", got[1].ID)
}

func TestEventRepoFeedsCache(t *testing.T) {
	t.Parallel()
	repo := NewEventRepo(openTestDB(t))
	ctx := context.Background()

	c := event.NewCache(repo, event.CacheOptions{BufferSize: 16, Session: "cached"})
	c.AddSchedEvent(swap(event.SwapIn, 3, 0, 0, 1))
	c.AddSchedEvent(swap(event.SwapOut, 3, 0, 2, 4))
	require.NoError(t, c.Flush(ctx))

	got, err := repo.Summaries(ctx, "cached")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3*time.Nanosecond, got[0].TotalOnCPU)
}
