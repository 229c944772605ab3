package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kesterson/x1kernel/internal/constants"
	"github.com/kesterson/x1kernel/internal/platform"
)

func newTestScheduler() *Scheduler {
	return New(platform.NewGoroutine(1000), nil)
}

func TestCreateAddsToRunQueueBeforeSchedulerEnabled(t *testing.T) {
	s := newTestScheduler()

	_, err := s.Create(func(any) {}, nil, "a", 4096, 5)
	require.NoError(t, err)
	_, err = s.Create(func(any) {}, nil, "b", 4096, 3)
	require.NoError(t, err)

	assert.Equal(t, uint32(2), s.NrThreads())
}

func TestCreateRejectsInvalidPriority(t *testing.T) {
	s := newTestScheduler()

	_, err := s.Create(func(any) {}, nil, "bad", 4096, 0)
	assert.ErrorIs(t, err, ErrInvalidPriority)

	_, err = s.Create(func(any) {}, nil, "bad", 4096, constants.NrPriorities)
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestThreadRunsAndExits(t *testing.T) {
	s := newTestScheduler()

	done := make(chan struct{})
	_, err := s.Create(func(any) {
		close(done)
	}, nil, "worker", 4096, 5)
	require.NoError(t, err)

	go s.EnableScheduler()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker thread never ran")
	}
}

func TestJoinObservesChildExit(t *testing.T) {
	s := newTestScheduler()

	var trace int32
	done := make(chan struct{})

	_, err := s.Create(func(any) {
		child, cerr := s.Create(func(any) {
			atomic.AddInt32(&trace, 1)
		}, nil, "child", 4096, 3)
		if cerr != nil {
			panic(cerr)
		}
		s.Join(child)
		atomic.AddInt32(&trace, 10)
		close(done)
	}, nil, "parent", 4096, 5)
	require.NoError(t, err)

	go s.EnableScheduler()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("join sequence never completed")
	}
	assert.Equal(t, int32(11), atomic.LoadInt32(&trace))
}

// TestHigherPriorityRunsFirst exercises the S1-style expectation: a
// higher-priority thread created while a lower-priority one is runnable
// gets scheduled ahead of it once the scheduler is enabled, since
// EnableScheduler always starts from the highest nonempty priority list.
func TestHigherPriorityRunsFirst(t *testing.T) {
	s := newTestScheduler()

	var order []string
	done := make(chan struct{})

	_, err := s.Create(func(any) {
		order = append(order, "low")
		close(done)
	}, nil, "low", 4096, 1)
	require.NoError(t, err)

	_, err = s.Create(func(any) {
		order = append(order, "high")
	}, nil, "high", 4096, 10)
	require.NoError(t, err)

	go s.EnableScheduler()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("threads never ran")
	}
	require.Len(t, order, 2)
	assert.Equal(t, "high", order[0])
	assert.Equal(t, "low", order[1])
}

func TestWakeupOfCurrentAndNilAreNoops(t *testing.T) {
	s := newTestScheduler()
	assert.NotPanics(t, func() {
		s.Wakeup(nil)
		s.Wakeup(s.Self())
	})
}

func TestPreemptDisableEnableBalances(t *testing.T) {
	s := newTestScheduler()
	assert.True(t, s.PreemptEnabled())
	s.PreemptDisable()
	assert.False(t, s.PreemptEnabled())
	s.PreemptEnableNoYield()
	assert.True(t, s.PreemptEnabled())
}
