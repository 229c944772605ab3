// Package timer is the kernel's software-timer subsystem: a monotonic,
// wrapping tick counter, a sorted deferred-timer list, and a dedicated
// worker thread that fires due timers in thread context. Grounded 1:1 on
// original_source/src/timer.c (timer_ticks_expired, timer_ticks_occurred,
// timer_schedule, timer_report_tick, timer_run): same modular-ordering
// comparison, same release-the-mutex-around-the-callback protocol in the
// worker loop, same interrupt-masked window to refresh the cached head.
package timer

import (
	"sync/atomic"

	"github.com/kesterson/x1kernel/internal/constants"
	"github.com/kesterson/x1kernel/internal/list"
	"github.com/kesterson/x1kernel/internal/logging"
	"github.com/kesterson/x1kernel/internal/sched"
	"github.com/kesterson/x1kernel/internal/syncx"
)

// Expired reports whether a is "expired relative to" b under modular
// ordering: interpreting the unsigned distance a-b on the wrapping circle,
// a counts as expired when that distance falls in the far half. Computed
// as a signed 32-bit subtraction, valid as long as no two ticks values
// compared this way are ever more than 2^31 ticks apart — true of any
// timer actually in flight relative to the current tick count.
func Expired(a, b uint32) bool {
	return int32(a-b) < 0
}

// Occurred reports whether a has occurred by b: a equals b, or a is
// expired relative to b.
func Occurred(a, b uint32) bool {
	return a == b || Expired(a, b)
}

// Fn is a timer callback, invoked in thread context with the argument it
// was initialized with.
type Fn func(arg any)

// Timer is a caller-owned deferred callback. The core never frees a
// Timer; callers create, schedule, and discard them as they please.
// Rescheduling or freeing a Timer from inside its own callback is
// forbidden while the worker is still iterating the list that callback
// came from — the callback may reschedule itself only after returning.
type Timer struct {
	deadline uint32
	fn       Fn
	arg      any
	node     list.Node[*Timer]
}

// New returns an unscheduled Timer bound to fn and arg. Equivalent to the
// original port's timer_init.
func New(fn Fn, arg any) *Timer {
	t := &Timer{fn: fn, arg: arg}
	t.node.Value = t
	return t
}

// Deadline returns the tick value this timer last was, or will be, fired
// at. Equivalent to timer_get_time, without the subsystem's own mutex:
// callers that need the mutex-synchronized read use Subsystem.GetTime.
func (t *Timer) Deadline() uint32 {
	return t.deadline
}

// Subsystem is one kernel's worth of timer state: the sorted deadline
// list, the cached head used by interrupt context, the tick counter, and
// the worker thread that fires due timers.
type Subsystem struct {
	s      *sched.Scheduler
	logger *logging.Logger

	list *list.List[*Timer]
	mu   *syncx.Mutex

	ticks atomic.Uint32

	// listEmpty and wakeupTicks cache the head of list for Tick, which
	// runs at interrupt priority and must never take mu. Only thread
	// context (Schedule, the worker) mutates them, and only under an
	// interrupt-masked section, per the original port's split between
	// "interrupt context reads the cache" and "thread context owns the
	// list".
	listEmpty   atomic.Bool
	wakeupTicks atomic.Uint32

	worker *sched.Thread
}

// New builds a Subsystem bound to s. Call StartWorker once to spawn its
// dedicated worker thread before any timer can actually fire.
func New(s *sched.Scheduler, logger *logging.Logger) *Subsystem {
	ts := &Subsystem{
		s:      s,
		logger: logger,
		list:   list.New[*Timer](),
		mu:     syncx.NewMutex(s),
	}
	ts.listEmpty.Store(true)
	return ts
}

// StartWorker spawns the dedicated timer worker thread at a priority high
// enough to run promptly once a timer becomes due. Call once, after the
// scheduler's other startup threads are created.
func (ts *Subsystem) StartWorker() error {
	worker, err := ts.s.Create(func(any) { ts.run() }, nil, "timer",
		constants.TimerStackSize, constants.TimerWorkerPriority)
	if err != nil {
		return err
	}
	ts.worker = worker
	return nil
}

// Now returns the current tick count.
func (ts *Subsystem) Now() uint32 {
	return ts.ticks.Load()
}

// GetTime returns t's scheduled deadline, synchronized the same way the
// original port's timer_get_time is: under the subsystem's mutex, so a
// caller never observes a Schedule call's deadline write torn against its
// list-insertion.
func (ts *Subsystem) GetTime(t *Timer) uint32 {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return t.deadline
}

// Schedule arms t to fire at deadline (a tick value, not a duration),
// inserting it into the sorted list at the position that keeps the list
// ascending under modular ordering. If t is already scheduled, it is
// repositioned.
func (ts *Subsystem) Schedule(t *Timer, deadline uint32) {
	ts.mu.Lock()

	if t.node.Linked() {
		ts.list.Remove(&t.node)
	}
	t.deadline = deadline

	var mark *list.Node[*Timer]
	for n := ts.list.Front(); n != nil; n = ts.list.Next(n) {
		if !Expired(n.Value.deadline, deadline) {
			mark = n
			break
		}
	}
	if mark != nil {
		ts.list.InsertBefore(mark, &t.node)
	} else {
		ts.list.PushBack(&t.node)
	}

	ts.refreshCache()

	// Release order matters: the cache refresh above must be visible
	// before Tick (running concurrently on the ticker goroutine) can
	// observe listEmpty=false and decide to wake the worker, but the
	// mutex itself must be released only after that, so a tick landing
	// between the refresh and the unlock still sees a consistent cache
	// without ever being able to acquire mu itself (Tick never locks it).
	ts.mu.Unlock()
}

// refreshCache updates listEmpty/wakeupTicks from the current list head
// (or marks the list empty) inside an interrupt-masked section, matching
// the original port's cpu_intr_save/cpu_intr_restore bracket around the
// same two writes.
func (ts *Subsystem) refreshCache() {
	prevMasked := ts.s.IntrSave()
	empty := ts.list.Empty()
	ts.listEmpty.Store(empty)
	if !empty {
		ts.wakeupTicks.Store(ts.list.Front().Value.deadline)
	}
	ts.s.IntrRestore(prevMasked)
}

// Tick advances the tick counter by one and, if the cached head is now
// due, wakes the worker thread. The kernel's tick handler calls it from
// IRQ dispatch with the scheduler locked; it must not block and must not
// touch ts.mu.
func (ts *Subsystem) Tick() {
	now := ts.ticks.Add(1)
	if !ts.listEmpty.Load() && Occurred(ts.wakeupTicks.Load(), now) {
		ts.s.Wakeup(ts.worker)
	}
}

// run is the worker thread body: wait for work, capture "now", process
// every timer due by then, repeat.
func (ts *Subsystem) run() {
	for {
		now := ts.waitForWork()
		ts.processList(now)
	}
}

// waitForWork blocks, with preemption disabled and interrupts masked,
// until the cached head is due, then returns the tick count observed at
// that moment before releasing both.
func (ts *Subsystem) waitForWork() uint32 {
	ts.s.PreemptDisable()
	prevMasked := ts.s.IntrSave()

	var now uint32
	for {
		now = ts.ticks.Load()
		if !ts.listEmpty.Load() && Occurred(ts.wakeupTicks.Load(), now) {
			break
		}
		ts.s.Sleep()
	}

	ts.s.IntrRestore(prevMasked)
	ts.s.PreemptEnable()
	return now
}

// processList fires every timer due by now, releasing mu around each
// callback invocation so a callback may itself call Schedule on a
// different timer without deadlocking, then refreshes the cache.
func (ts *Subsystem) processList(now uint32) {
	ts.mu.Lock()

	for {
		head := ts.list.Front()
		if head == nil || !Occurred(head.Value.deadline, now) {
			break
		}
		t := head.Value
		ts.list.Remove(&t.node)

		ts.mu.Unlock()
		if ts.logger != nil {
			ts.logger.Debugf("timer: firing deadline=%d now=%d", t.deadline, now)
		}
		t.fn(t.arg)
		ts.mu.Lock()
	}

	ts.refreshCache()

	ts.mu.Unlock()
}
