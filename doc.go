// Package x1kernel ties internal/sched, internal/mem, internal/timer, and
// internal/irq together into one buildable kernel core, and exposes a
// Kernel type as its public surface: create threads, allocate heap
// memory, arm timers, and register interrupt handlers, all against a
// single priority-preemptive uniprocessor scheduler.
//
// A Kernel is built with New and a Config (see DefaultConfig), then
// brought up with Start, which enables the scheduler and begins
// delivering the periodic tick. For deterministic tests, ManualPlatform
// wraps a Kernel and lets a test drive ticks one at a time instead of on
// a wall-clock cadence.
package x1kernel
