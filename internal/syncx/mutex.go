// Package syncx provides the kernel's blocking synchronization
// primitives: a priority-ordered mutex with direct ownership handoff and a
// condition variable immune to spurious wakeups. Both are implemented
// fresh from the priority-aware design spelled out for this kernel, since
// original_source has no mutex.c of its own to port from — only
// condvar.c, which this package's Condvar is grounded on directly.
package syncx

import (
	"github.com/kesterson/x1kernel/internal/list"
	"github.com/kesterson/x1kernel/internal/sched"
)

// mxWaiter is the stack-allocated waiter record a contended Lock links
// into the mutex's wait list for the duration of the call, per §9's
// stack-allocated-waiter idiom: a thread's run-queue node (sched.Thread's
// own list.Node) is already linked into a priority run-queue list
// whenever the thread isn't current, so a mutex waiter needs a node of
// its own rather than aliasing that one — otherwise Sleep's call into
// runqSchedule tries to link the same node into a run-queue list a
// second time. Condvar's cvWaiter is the same idiom; see condvar.go.
type mxWaiter struct {
	t    *sched.Thread
	node list.Node[*mxWaiter]
}

// Mutex is not reentrant: a thread that already owns it deadlocks if it
// calls Lock again, per the kernel's own open-question resolution.
type Mutex struct {
	s       *sched.Scheduler
	owner   *sched.Thread
	waiters *list.List[*mxWaiter]
}

// NewMutex returns an unlocked mutex bound to s.
func NewMutex(s *sched.Scheduler) *Mutex {
	return &Mutex{s: s, waiters: list.New[*mxWaiter]()}
}

// Lock acquires m, blocking if it is already held. Waiters are kept sorted
// by non-increasing priority, ties broken FIFO, so a released mutex always
// hands off to the highest-priority, longest-waiting thread.
func (m *Mutex) Lock() {
	m.s.PreemptDisable()

	if m.owner == nil {
		m.owner = m.s.Self()
		m.s.PreemptEnable()
		return
	}

	self := m.s.Self()
	w := &mxWaiter{t: self}
	w.node.Value = w
	m.insertByPriority(w)

	for m.owner != self || w.node.Linked() {
		m.s.Sleep()
	}

	m.s.PreemptEnable()
}

// TryLock acquires m only if it is currently free, never blocking.
func (m *Mutex) TryLock() bool {
	m.s.PreemptDisable()
	defer m.s.PreemptEnable()

	if m.owner != nil {
		return false
	}
	m.owner = m.s.Self()
	return true
}

// Unlock releases m. If a thread is waiting, ownership transfers directly
// to the head of the waiter list (the highest priority, or the
// longest-waiting among equals) rather than leaving lock acquisition to a
// fresh race among waiters.
func (m *Mutex) Unlock() {
	m.s.PreemptDisable()

	if m.owner != m.s.Self() {
		panic("syncx: unlock of mutex not held by the calling thread")
	}

	if m.waiters.Empty() {
		m.owner = nil
	} else {
		next := m.waiters.PopFront().Value.t
		m.owner = next
		m.s.Wakeup(next)
	}

	m.s.PreemptEnable()
}

// insertByPriority links w into the waiter list at the position that
// keeps the list in non-increasing priority order, equal priorities
// staying FIFO.
func (m *Mutex) insertByPriority(w *mxWaiter) {
	for n := m.waiters.Front(); n != nil; n = m.waiters.Next(n) {
		if n.Value.t.Priority() < w.t.Priority() {
			m.waiters.InsertBefore(n, &w.node)
			return
		}
	}
	m.waiters.PushBack(&w.node)
}
