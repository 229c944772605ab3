package x1kernel

import "sync/atomic"

// Metrics tracks the running counters a kernel instance accumulates over
// its lifetime. Shaped directly on the donor repo's atomic-counter
// Metrics struct, with the I/O-specific fields (read/write/discard
// operations, latency histogram) replaced by the counters a scheduler,
// heap, and timer subsystem actually produce.
type Metrics struct {
	Ticks           atomic.Uint64 // periodic timer ticks delivered
	ContextSwitches atomic.Uint64 // thread context switches performed
	ThreadsCreated  atomic.Uint64 // threads created through Kernel.CreateThread
	Wakeups         atomic.Uint64 // Kernel.Wakeup calls (internal mutex/condvar/timer wakeups are not counted)
	Allocations     atomic.Uint64 // successful heap allocations
	AllocFailures   atomic.Uint64 // heap allocations that returned ErrOutOfMemory
	Frees           atomic.Uint64 // heap frees
	TimersScheduled atomic.Uint64 // timer_schedule calls
	TimersFired     atomic.Uint64 // RecordTimerFired calls; Kernel itself never records a fired timer
}

// NewMetrics returns a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordTick()            { m.Ticks.Add(1) }
func (m *Metrics) RecordContextSwitch()   { m.ContextSwitches.Add(1) }
func (m *Metrics) RecordThreadCreated()   { m.ThreadsCreated.Add(1) }
func (m *Metrics) RecordWakeup()          { m.Wakeups.Add(1) }
func (m *Metrics) RecordTimerScheduled()  { m.TimersScheduled.Add(1) }
func (m *Metrics) RecordTimerFired()      { m.TimersFired.Add(1) }

// RecordAlloc records a heap allocation attempt's outcome.
func (m *Metrics) RecordAlloc(ok bool) {
	if ok {
		m.Allocations.Add(1)
	} else {
		m.AllocFailures.Add(1)
	}
}

func (m *Metrics) RecordFree() { m.Frees.Add(1) }

// MetricsSnapshot is a point-in-time, non-atomic copy of Metrics suitable
// for logging or exposing to a caller without exposing the atomics
// themselves.
type MetricsSnapshot struct {
	Ticks           uint64
	ContextSwitches uint64
	ThreadsCreated  uint64
	Wakeups         uint64
	Allocations     uint64
	AllocFailures   uint64
	Frees           uint64
	TimersScheduled uint64
	TimersFired     uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Ticks:           m.Ticks.Load(),
		ContextSwitches: m.ContextSwitches.Load(),
		ThreadsCreated:  m.ThreadsCreated.Load(),
		Wakeups:         m.Wakeups.Load(),
		Allocations:     m.Allocations.Load(),
		AllocFailures:   m.AllocFailures.Load(),
		Frees:           m.Frees.Load(),
		TimersScheduled: m.TimersScheduled.Load(),
		TimersFired:     m.TimersFired.Load(),
	}
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.Ticks.Store(0)
	m.ContextSwitches.Store(0)
	m.ThreadsCreated.Store(0)
	m.Wakeups.Store(0)
	m.Allocations.Store(0)
	m.AllocFailures.Store(0)
	m.Frees.Store(0)
	m.TimersScheduled.Store(0)
	m.TimersFired.Store(0)
}

// Observer lets a caller plug in its own metrics collection (e.g. to
// export to a monitoring system) without the kernel core depending on
// any particular backend. Mirrors the donor repo's Observer interface.
type Observer interface {
	ObserveTick()
	ObserveContextSwitch()
	ObserveThreadCreated()
	ObserveWakeup()
	ObserveAlloc(ok bool)
	ObserveFree()
	ObserveTimerScheduled()
	ObserveTimerFired()
}

// NoOpObserver discards every observation. It is the default Observer
// when a caller does not supply one.
type NoOpObserver struct{}

func (NoOpObserver) ObserveTick()           {}
func (NoOpObserver) ObserveContextSwitch()  {}
func (NoOpObserver) ObserveThreadCreated()  {}
func (NoOpObserver) ObserveWakeup()         {}
func (NoOpObserver) ObserveAlloc(bool)      {}
func (NoOpObserver) ObserveFree()           {}
func (NoOpObserver) ObserveTimerScheduled() {}
func (NoOpObserver) ObserveTimerFired()     {}

// MetricsObserver is an Observer that records every observation into a
// Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an Observer backed by m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveTick()          { o.metrics.RecordTick() }
func (o *MetricsObserver) ObserveContextSwitch() { o.metrics.RecordContextSwitch() }
func (o *MetricsObserver) ObserveThreadCreated() { o.metrics.RecordThreadCreated() }
func (o *MetricsObserver) ObserveWakeup()        { o.metrics.RecordWakeup() }
func (o *MetricsObserver) ObserveAlloc(ok bool)  { o.metrics.RecordAlloc(ok) }
func (o *MetricsObserver) ObserveFree()          { o.metrics.RecordFree() }
func (o *MetricsObserver) ObserveTimerScheduled() { o.metrics.RecordTimerScheduled() }
func (o *MetricsObserver) ObserveTimerFired()     { o.metrics.RecordTimerFired() }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)

// schedObserver is the sched.ContextSwitchObserver handed to the scheduler
// at construction time: it records every context switch into both the
// kernel's own Metrics and the caller-supplied Observer, the same two
// places every other counter in this file is recorded, without
// internal/sched needing to import either.
type schedObserver struct {
	metrics  *Metrics
	observer Observer
}

func (o schedObserver) ObserveContextSwitch() {
	o.metrics.RecordContextSwitch()
	o.observer.ObserveContextSwitch()
}
