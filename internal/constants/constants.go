// Package constants holds the tunables shared across the kernel core.
package constants

import "time"

// Scheduling constants
const (
	// NrPriorities is the number of distinct thread priority levels (P).
	// Priority 0 is reserved for the idle thread; user threads use [1, NrPriorities-1].
	NrPriorities = 20

	// IdlePriority is the priority reserved for the idle thread.
	IdlePriority = 0

	// DefaultStackSize is the default stack size for a new thread, in bytes.
	DefaultStackSize = 16 * 1024

	// MinStackSize is the minimum stack size the platform will forge.
	MinStackSize = 4096

	// NameMaxLen is the maximum length of a thread's diagnostic name.
	NameMaxLen = 32
)

// Heap constants
const (
	// HeapSize is the size in bytes of the single fixed heap region.
	HeapSize = 32 * 1024 * 1024

	// HeapAlignment is the alignment, in bytes, of every heap block.
	HeapAlignment = 4
)

// Timer constants
const (
	// TickFrequencyHz is the frequency, in Hz, at which the platform
	// delivers the periodic timer tick.
	TickFrequencyHz = 100

	// TickPeriod is the wall-clock period implied by TickFrequencyHz.
	TickPeriod = time.Second / TickFrequencyHz

	// TimerStackSize is the stack size given to the timer worker thread.
	TimerStackSize = 4096

	// TimerWorkerPriority is the priority the timer worker thread runs
	// at: one below the top of the range, so an application thread that
	// genuinely needs to preempt everything still can, while the worker
	// still runs promptly ahead of ordinary work.
	TimerWorkerPriority = NrPriorities - 2
)

// IRQ constants
const (
	// MaxIRQLines is the number of handler slots in the IRQ dispatch table.
	MaxIRQLines = 16

	// TickIRQLine is the line the platform's periodic tick is wired to.
	TickIRQLine = 0
)
