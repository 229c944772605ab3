// Package x1kernel is a preemptive, priority-scheduled uniprocessor
// kernel core: a boundary-tag heap allocator, a thread scheduler with
// mutexes and condition variables, a software-timer subsystem, and an
// IRQ dispatch table, wired together as one Kernel value. It is a direct
// port of a small teaching kernel's thread/timer/mem subsystems
// (original_source/src), adapted to run its "hardware" as Go goroutines
// instead of an x86 boot environment — see SPEC_FULL.md's note on how
// interrupts and context switches are resolved onto that model.
package x1kernel

import (
	"fmt"

	"github.com/kesterson/x1kernel/internal/constants"
	"github.com/kesterson/x1kernel/internal/irq"
	"github.com/kesterson/x1kernel/internal/logging"
	"github.com/kesterson/x1kernel/internal/mem"
	"github.com/kesterson/x1kernel/internal/platform"
	"github.com/kesterson/x1kernel/internal/sched"
	"github.com/kesterson/x1kernel/internal/syncx"
	"github.com/kesterson/x1kernel/internal/timer"
)

// Kernel is one fully wired instance of the kernel core: its own heap,
// scheduler, timer subsystem, and IRQ table. Every field is independent
// of every other Kernel, so tests can run several in the same process.
// Modeled on the donor repo's Device: one struct built by a single
// constructor, exposing the subsystems' operations as methods rather than
// the subsystems themselves as public fields.
type Kernel struct {
	cfg Config

	plat   platform.Platform
	ticker *platform.Goroutine
	heap   *mem.Heap
	sched  *sched.Scheduler
	timer  *timer.Subsystem
	irq    *irq.Table

	metrics  *Metrics
	observer Observer

	stopTicker func()
}

// New builds a Kernel from cfg, but does not start it: the timer worker
// thread and scheduler are created, but no ticks are delivered and no
// thread has been scheduled yet. Call Start to bring it up.
func New(cfg Config) (*Kernel, error) {
	if cfg.HeapSize <= 0 {
		return nil, NewError("New", ErrCodeInvalidArgument, "HeapSize must be positive")
	}
	if cfg.TickFrequencyHz <= 0 {
		return nil, NewError("New", ErrCodeInvalidArgument, "TickFrequencyHz must be positive")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	observer := cfg.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}
	metrics := NewMetrics()

	plat := platform.NewGoroutine(cfg.TickFrequencyHz)
	heap := mem.New(cfg.HeapSize, cfg.HeapAlignment)
	s := sched.New(plat, schedObserver{metrics: metrics, observer: observer})
	irqTable := irq.NewTable(cfg.Logger)

	k := &Kernel{
		cfg:      cfg,
		plat:     plat,
		ticker:   plat,
		heap:     heap,
		sched:    s,
		irq:      irqTable,
		metrics:  metrics,
		observer: observer,
	}
	k.timer = timer.New(s, cfg.Logger)

	if err := k.timer.StartWorker(); err != nil {
		return nil, WrapError("New", ErrCodeInvalidArgument, "failed to start timer worker", err)
	}

	if err := irqTable.Register(constants.TickIRQLine, k.tickHandler, nil); err != nil {
		return nil, WrapError("New", ErrCodeAgain, "failed to register tick handler", err)
	}

	return k, nil
}

// tickHandler is the IRQ handler bound to constants.TickIRQLine: it
// advances the timer subsystem's tick counter and reports the tick to
// the scheduler so the running thread picks up a pending yield request
// at its next checkpoint. Preemption is disabled around both calls, so
// together with the masked interrupts the scheduler is locked and a
// wakeup made here never reschedules from the ticking goroutine.
func (k *Kernel) tickHandler(any) {
	k.sched.PreemptDisable()
	k.timer.Tick()
	k.sched.ReportTick()
	k.sched.PreemptEnableNoYield()
	k.metrics.RecordTick()
	k.observer.ObserveTick()
}

// Start enables the scheduler (so the idle thread and any threads
// created before Start begin running) and starts the periodic tick. It
// never returns, not even after Stop, so callers typically run Start in
// its own goroutine.
func (k *Kernel) Start() {
	k.stopTicker = k.ticker.StartTicker(func() {
		prevMasked := k.plat.IntrSave()
		k.irq.Dispatch(k.plat, constants.TickIRQLine)
		k.plat.IntrRestore(prevMasked)
	})
	k.sched.EnableScheduler()
}

// Stop halts the periodic tick. The scheduler itself has no shutdown
// path, matching the original port: a kernel runs until its process
// exits.
func (k *Kernel) Stop() {
	if k.stopTicker != nil {
		k.stopTicker()
	}
}

// CreateThread creates a new thread running fn(arg) at priority, with a
// dedicated stack of stackSize bytes, and returns a handle usable with
// Join. priority must be in [1, constants.NrPriorities-1]; priority 0 is
// reserved for the idle thread.
func (k *Kernel) CreateThread(fn func(arg any), arg any, name string, stackSize int, priority int) (*sched.Thread, error) {
	t, err := k.sched.Create(fn, arg, name, stackSize, priority)
	if err != nil {
		return nil, WrapError("CreateThread", ErrCodeInvalidArgument, fmt.Sprintf("create thread %q", name), err)
	}
	k.metrics.RecordThreadCreated()
	k.observer.ObserveThreadCreated()
	return t, nil
}

// Exit terminates the calling thread. It never returns.
func (k *Kernel) Exit() { k.sched.Exit() }

// Join blocks the calling thread until t has exited.
func (k *Kernel) Join(t *sched.Thread) { k.sched.Join(t) }

// Self returns the thread currently holding the CPU.
func (k *Kernel) Self() *sched.Thread { return k.sched.Self() }

// Yield voluntarily gives up the CPU to another runnable thread of equal
// or higher priority.
func (k *Kernel) Yield() { k.sched.Yield() }

// Sleep blocks the calling thread until another thread calls Wakeup on it.
// It takes the scheduler lock around the scheduler's own Sleep, which
// requires that lock, so the caller need not hold it.
func (k *Kernel) Sleep() {
	prevMasked := k.sched.LockScheduler()
	k.sched.Sleep()
	k.sched.UnlockScheduler(prevMasked, true)
}

// Wakeup makes t runnable again.
func (k *Kernel) Wakeup(t *sched.Thread) {
	k.sched.Wakeup(t)
	k.metrics.RecordWakeup()
	k.observer.ObserveWakeup()
}

// NewMutex returns a Mutex bound to this kernel's scheduler.
func (k *Kernel) NewMutex() *syncx.Mutex { return syncx.NewMutex(k.sched) }

// NewCondvar returns a Condvar bound to this kernel's scheduler.
func (k *Kernel) NewCondvar() *syncx.Condvar { return syncx.NewCondvar(k.sched) }

// Alloc carves n bytes out of the kernel's heap.
func (k *Kernel) Alloc(n int) ([]byte, error) {
	p, err := k.heap.Alloc(n)
	ok := err == nil
	k.metrics.RecordAlloc(ok)
	k.observer.ObserveAlloc(ok)
	if err != nil {
		return nil, WrapError("Alloc", ErrCodeOutOfMemory, fmt.Sprintf("allocate %d bytes", n), err)
	}
	return p, nil
}

// Free returns p, previously returned by Alloc, to the heap.
func (k *Kernel) Free(p []byte) {
	k.heap.Free(p)
	k.metrics.RecordFree()
	k.observer.ObserveFree()
}

// HeapFreeBytes reports the number of bytes currently free in the heap.
func (k *Kernel) HeapFreeBytes() int { return k.heap.FreeBytes() }

// ScheduleTimer arms t to fire at the given absolute tick deadline. Use
// k.Now()+n to schedule n ticks from now.
func (k *Kernel) ScheduleTimer(t *timer.Timer, deadline uint32) {
	k.timer.Schedule(t, deadline)
	k.metrics.RecordTimerScheduled()
	k.observer.ObserveTimerScheduled()
}

// Now returns the current tick count.
func (k *Kernel) Now() uint32 { return k.timer.Now() }

// RegisterIRQ binds fn to the given IRQ line. Line constants.TickIRQLine
// is reserved for the periodic tick and cannot be registered.
func (k *Kernel) RegisterIRQ(line int, fn irq.Handler, arg any) error {
	if line == constants.TickIRQLine {
		return NewError("RegisterIRQ", ErrCodeInvalidArgument, "line 0 is reserved for the periodic tick")
	}
	if line < 0 || line >= constants.MaxIRQLines {
		return NewError("RegisterIRQ", ErrCodeInvalidArgument, fmt.Sprintf("line %d out of range", line))
	}
	if err := k.irq.Register(line, fn, arg); err != nil {
		return WrapError("RegisterIRQ", ErrCodeAgain, fmt.Sprintf("register line %d", line), err)
	}
	return nil
}

// DispatchIRQ dispatches line's handler. Exposed for tests and for
// platforms that deliver interrupts other than the periodic tick; real
// callers must have interrupts masked before calling it, matching
// irq.Table.Dispatch's precondition.
func (k *Kernel) DispatchIRQ(line int) {
	k.irq.Dispatch(k.plat, line)
}

// Metrics returns the kernel's running counters.
func (k *Kernel) Metrics() *Metrics { return k.metrics }

// MetricsSnapshot returns a point-in-time copy of the kernel's counters.
func (k *Kernel) MetricsSnapshot() MetricsSnapshot { return k.metrics.Snapshot() }
