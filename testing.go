package x1kernel

import "github.com/kesterson/x1kernel/internal/constants"

// ManualPlatform wraps a Kernel for deterministic testing: instead of a
// real-time ticker goroutine delivering ticks on a wall-clock cadence, a
// test drives ticks one at a time by calling Tick, then polls for the
// effect it expects. Modeled on the donor repo's MockBackend: a
// hand-drivable stand-in for the piece of the system that would
// otherwise run on its own schedule, so tests stay fast and free of
// timing flakiness.
type ManualPlatform struct {
	k       *Kernel
	started bool
}

// NewManualKernel builds a Kernel from cfg and wraps it in a
// ManualPlatform, but does not boot the scheduler or deliver any ticks.
func NewManualKernel(cfg Config) (*ManualPlatform, error) {
	k, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return &ManualPlatform{k: k}, nil
}

// Kernel returns the underlying Kernel, for creating threads, mutexes,
// timers, and so on before (or after) Boot.
func (mp *ManualPlatform) Kernel() *Kernel { return mp.k }

// Boot enables the scheduler in its own goroutine and returns once it
// has been launched. Unlike Kernel.Start, it never starts a ticker:
// ticks only happen when Tick is called.
func (mp *ManualPlatform) Boot() {
	if mp.started {
		return
	}
	mp.started = true
	go mp.k.sched.EnableScheduler()
}

// Tick delivers exactly one periodic tick: masks interrupts, dispatches
// the tick IRQ line (advancing the timer subsystem and flagging the
// running thread's yield request), then unmasks. Equivalent to one
// firing of the ticker goroutine Kernel.Start would otherwise launch.
func (mp *ManualPlatform) Tick() {
	prevMasked := mp.k.plat.IntrSave()
	mp.k.irq.Dispatch(mp.k.plat, constants.TickIRQLine)
	mp.k.plat.IntrRestore(prevMasked)
}

// Ticks delivers n periodic ticks in sequence.
func (mp *ManualPlatform) Ticks(n int) {
	for i := 0; i < n; i++ {
		mp.Tick()
	}
}
