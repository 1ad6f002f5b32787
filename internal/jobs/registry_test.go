package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusExecuting, true},
		{StatusQueued, StatusStopped, true},
		{StatusQueued, StatusFailed, true},
		{StatusQueued, StatusCompleted, false},
		{StatusExecuting, StatusCompleted, true},
		{StatusExecuting, StatusFailed, true},
		{StatusExecuting, StatusStopped, true},
		{StatusExecuting, StatusQueued, false},
		{StatusCompleted, StatusStopped, false},
		{StatusFailed, StatusExecuting, false},
		{StatusStopped, StatusCompleted, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			require.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestRegistryCreateDuplicate(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	job, err := reg.Create("a", "echo hi")
	require.NoError(t, err)
	require.Equal(t, StatusQueued, job.Status)
	require.Nil(t, job.StartTime)
	require.Nil(t, job.EndTime)
	require.Nil(t, job.Output)
	require.Nil(t, job.Error)

	_, err = reg.Create("a", "echo again")
	require.ErrorIs(t, err, ErrDuplicateID)
	require.Equal(t, 1, reg.Len())
}

func TestRegistryGetUnknown(t *testing.T) {
	t.Parallel()
	_, err := NewRegistry().Get("missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestRegistrySnapshotsDoNotAlias(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	_, err := reg.Create("a", "code")
	require.NoError(t, err)

	now := time.Now()
	_, ok := reg.Update("a", markExecuting(now))
	require.True(t, ok)
	_, ok = reg.Update("a", markCompleted("out", now))
	require.True(t, ok)

	snap, err := reg.Get("a")
	require.NoError(t, err)
	*snap.Output = "tampered"
	*snap.StartTime = now.Add(time.Hour)

	again, err := reg.Get("a")
	require.NoError(t, err)
	require.Equal(t, "out", *again.Output)
	require.True(t, again.StartTime.Equal(now))
}

func TestRegistryUpdateGuards(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	_, err := reg.Create("a", "code")
	require.NoError(t, err)

	now := time.Now()

	// completed requires executing
	_, ok := reg.Update("a", markCompleted("out", now))
	require.False(t, ok)

	_, ok = reg.Update("a", func(j *Job) bool {
		j.Code = "other"
		return true
	})
	require.False(t, ok, "code is immutable")

	_, ok = reg.Update("a", markExecuting(now))
	require.True(t, ok)

	_, ok = reg.Update("a", func(j *Job) bool {
		later := now.Add(time.Second)
		j.StartTime = &later
		return true
	})
	require.False(t, ok, "startTime is set once")

	job, ok := reg.Update("a", markStopped(now))
	require.True(t, ok)
	require.Equal(t, StatusStopped, job.Status)

	// Terminal records never change again.
	job, ok = reg.Update("a", markFailed("late", now))
	require.False(t, ok)
	require.Equal(t, StatusStopped, job.Status)
	require.Nil(t, job.Error)

	_, ok = reg.Update("missing", markStopped(now))
	require.False(t, ok)
}

func TestRegistryListOrder(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	for _, id := range []string{"unstarted", "late", "early", "early-tie"} {
		_, err := reg.Create(id, "code")
		require.NoError(t, err)
	}

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, ok := reg.Update("late", markExecuting(t0.Add(time.Minute)))
	require.True(t, ok)
	_, ok = reg.Update("early", markExecuting(t0))
	require.True(t, ok)
	_, ok = reg.Update("early-tie", markExecuting(t0))
	require.True(t, ok)

	ids := func(list []Job) []string {
		out := make([]string, len(list))
		for i, j := range list {
			out[i] = j.ID
		}
		return out
	}

	require.Equal(t,
		[]string{"unstarted", "early", "early-tie", "late"},
		ids(reg.List(ListOptions{})))
	require.Equal(t,
		[]string{"late", "early", "early-tie", "unstarted"},
		ids(reg.List(ListOptions{Order: OrderDesc})))
}

func TestRegistryListStatusFilter(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		_, err := reg.Create(id, "code")
		require.NoError(t, err)
	}
	_, ok := reg.Update("b", markExecuting(time.Now()))
	require.True(t, ok)

	executing := reg.List(ListOptions{Status: StatusExecuting})
	require.Len(t, executing, 1)
	require.Equal(t, "b", executing[0].ID)

	require.Len(t, reg.List(ListOptions{Status: StatusQueued}), 2)
	require.Empty(t, reg.List(ListOptions{Status: StatusCompleted}))
}

func TestRegistryRemove(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	_, _, err := reg.create("a", "code", cancel)
	require.NoError(t, err)

	done, err := reg.Done("a")
	require.NoError(t, err)

	reg.Remove("a")
	reg.Remove("a")

	require.Error(t, ctx.Err(), "remove releases the cancellation handle")
	select {
	case <-done:
	default:
		t.Fatal("expected done channel to be closed after remove")
	}

	_, err = reg.Get("a")
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, reg.Cancel("a"))
}

func TestRegistryCreateAttachesHandle(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	_, err := reg.Create("plain", "code")
	require.NoError(t, err)
	require.False(t, reg.Cancel("plain"), "no handle attached")

	// The handle is cancellable as soon as the job is visible.
	ctx, cancel := context.WithCancel(context.Background())
	job, events, err := reg.create("a", "code", cancel)
	require.NoError(t, err)
	require.Equal(t, StatusQueued, job.Status)
	require.NotNil(t, events)
	require.True(t, reg.Cancel("a"))
	require.Error(t, ctx.Err())

	reg.Release("a")
	require.False(t, reg.Cancel("a"))

	_, _, err = reg.create("a", "again", func() {})
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestRegistryQueuesEventsInApplyOrder(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	_, events, err := reg.create("a", "code", func() {})
	require.NoError(t, err)

	now := time.Now()
	_, _, ok := reg.update("a", markExecuting(now))
	require.True(t, ok)
	_, _, ok = reg.update("a", markStopped(now))
	require.True(t, ok)
	// Rejected changes queue nothing.
	_, _, ok = reg.update("a", markCompleted("late", now))
	require.False(t, ok)

	var got []string
	events.drain(func(ev Event) {
		got = append(got, string(ev.From)+"->"+string(ev.Job.Status))
	})
	require.Equal(t, []string{"->queued", "queued->executing", "executing->stopped"}, got)
}

func TestRegistrySweep(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	for _, id := range []string{"old", "recent", "running"} {
		_, err := reg.Create(id, "code")
		require.NoError(t, err)
	}

	now := time.Now()
	old := now.Add(-2 * time.Hour)

	_, ok := reg.Update("old", markExecuting(old))
	require.True(t, ok)
	_, ok = reg.Update("old", markCompleted("x", old))
	require.True(t, ok)

	_, ok = reg.Update("recent", markFailed("boom", now))
	require.True(t, ok)

	_, ok = reg.Update("running", markExecuting(old))
	require.True(t, ok)

	require.Equal(t, 1, reg.Sweep(now.Add(-time.Hour)))

	_, err := reg.Get("old")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = reg.Get("recent")
	require.NoError(t, err)
	_, err = reg.Get("running")
	require.NoError(t, err)
}
