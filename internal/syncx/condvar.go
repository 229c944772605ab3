package syncx

import (
	"github.com/kesterson/x1kernel/internal/list"
	"github.com/kesterson/x1kernel/internal/sched"
)

// cvWaiter is the local waiter record described by the kernel's
// stack-allocated-waiter idiom: Wait builds one on its own stack, links it
// into the condvar's list for the duration of the call, and unlinks it
// before returning. awaken is the flag that defeats spurious wakeups —
// Wait only stops sleeping once its own waiter observed awaken set by a
// matching Signal/Broadcast, never merely because something else called
// thread.Wakeup on the same thread for an unrelated reason.
type cvWaiter struct {
	t      *sched.Thread
	awaken bool
	node   list.Node[*cvWaiter]
}

// Condvar is a condition variable: a waiter list with no state of its own
// beyond that. Grounded 1:1 on original_source/src/condvar.c.
type Condvar struct {
	s       *sched.Scheduler
	waiters *list.List[*cvWaiter]
}

// NewCondvar returns an empty condition variable bound to s.
func NewCondvar(s *sched.Scheduler) *Condvar {
	return &Condvar{s: s, waiters: list.New[*cvWaiter]()}
}

// Wait atomically unlocks mx and blocks the calling thread until a
// matching Signal or Broadcast wakes it, then reacquires mx before
// returning. mx must be locked by the calling thread.
func (c *Condvar) Wait(mx *Mutex) {
	w := &cvWaiter{t: c.s.Self()}
	w.node.Value = w

	c.s.PreemptDisable()
	mx.Unlock()

	c.waiters.PushBack(&w.node)
	for !w.awaken {
		c.s.Sleep()
	}
	c.waiters.Remove(&w.node)

	c.s.PreemptEnable()
	mx.Lock()
}

// Signal wakes the longest-waiting blocked thread, if any. A no-op on an
// empty waiter list.
func (c *Condvar) Signal() {
	c.s.PreemptDisable()
	defer c.s.PreemptEnable()

	n := c.waiters.Front()
	if n == nil {
		return
	}
	w := n.Value
	w.awaken = true
	c.s.Wakeup(w.t)
}

// Broadcast wakes every blocked thread. Each woken waiter removes its own
// node from the list once Wait resumes, so Broadcast captures each node's
// successor before waking it, the same "safe under self-removal" iteration
// internal/list.List.Each provides.
func (c *Condvar) Broadcast() {
	c.s.PreemptDisable()
	defer c.s.PreemptEnable()

	c.waiters.Each(func(n *list.Node[*cvWaiter]) {
		w := n.Value
		w.awaken = true
		c.s.Wakeup(w.t)
	})
}
