package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kesterson/x1kernel/internal/platform"
	"github.com/kesterson/x1kernel/internal/sched"
)

func TestExpiredAndOccurredHandleWrap(t *testing.T) {
	// Ordinary, non-wrapped case.
	assert.True(t, Expired(5, 10))
	assert.False(t, Expired(10, 5))
	assert.True(t, Occurred(10, 10))

	// Wrapped case: a deadline just before the wrap is expired relative
	// to a "now" just after it.
	assert.True(t, Expired(0xFFFFFFFE, 0x00000001))
	assert.False(t, Expired(0x00000001, 0xFFFFFFFE))
}

func newTestSubsystem(t *testing.T) (*sched.Scheduler, *Subsystem) {
	t.Helper()
	s := sched.New(platform.NewGoroutine(1000), nil)
	ts := New(s, nil)
	require.NoError(t, ts.StartWorker())
	return s, ts
}

func TestTimerFiresWhenDeadlineOccurs(t *testing.T) {
	s, ts := newTestSubsystem(t)

	var mu sync.Mutex
	fired := false
	timer := New(func(any) {
		mu.Lock()
		fired = true
		mu.Unlock()
	}, nil)

	done := make(chan struct{})
	_, err := s.Create(func(any) {
		ts.Schedule(timer, ts.Now()+2)
		for i := 0; i < 5; i++ {
			ts.Tick()
		}
		close(done)
	}, nil, "driver", 4096, 10)
	require.NoError(t, err)

	go s.EnableScheduler()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("driver never finished driving ticks")
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		f := fired
		mu.Unlock()
		if f {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timer never fired")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestTimerWrapOrder exercises S4: with the tick counter near wraparound,
// three timers scheduled across the wrap boundary must fire in the order
// dictated by modular distance from "now", not by raw numeric deadline.
func TestTimerWrapOrder(t *testing.T) {
	s, ts := newTestSubsystem(t)
	ts.ticks.Store(0xFFFFFFF0)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(any) {
		return func(any) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	ta := New(record("a"), nil)
	tb := New(record("b"), nil)
	tc := New(record("c"), nil)

	done := make(chan struct{})
	_, err := s.Create(func(any) {
		ts.Schedule(ta, 0xFFFFFFF5)
		ts.Schedule(tb, 0x00000005)
		ts.Schedule(tc, 0x00000001)

		for i := 0; i < 32; i++ {
			ts.Tick()
		}
		close(done)
	}, nil, "driver", 4096, 10)
	require.NoError(t, err)

	go s.EnableScheduler()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("driver never finished driving ticks")
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("only %d of 3 timers fired", n)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "c", "b"}, order)
}

func TestCachedListEmptySettlesAfterLastTimerFires(t *testing.T) {
	s, ts := newTestSubsystem(t)

	timer := New(func(any) {}, nil)
	done := make(chan struct{})
	_, err := s.Create(func(any) {
		ts.Schedule(timer, ts.Now()+1)
		ts.Tick()
		ts.Tick()
		close(done)
	}, nil, "driver", 4096, 10)
	require.NoError(t, err)

	go s.EnableScheduler()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("driver never finished")
	}

	deadline := time.Now().Add(time.Second)
	for {
		if ts.listEmpty.Load() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("listEmpty cache never settled back to true")
		}
		time.Sleep(time.Millisecond)
	}
}
