// Package platform is the machine-specific port the kernel core runs on:
// interrupt masking, idle/halt, context switching between kernel threads,
// stack forging, and IRQ line control. On real x86 this hides boot code,
// the IDT, PIC programming, and hand-written assembly; here it hides the
// fact that each kernel thread is, underneath, a goroutine, and that "the
// CPU" is a baton passed between those goroutines one at a time.
package platform

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Thread is the platform-managed execution context for one kernel thread:
// the goroutine running its body and the baton channel that hands it the
// CPU. internal/sched embeds a *Thread in place of a raw stack pointer.
type Thread struct {
	name   string
	resume chan struct{}
	done   chan struct{}
}

// Name returns the thread's diagnostic name.
func (t *Thread) Name() string {
	return t.name
}

// Platform is the port the scheduler, timer, and IRQ dispatch core consume.
// Every method here is the Go analogue of one primitive from the original
// port: intr_save/intr_restore, idle, halt, context_switch, context_load,
// stack_forge, irq_enable/disable/eoi, tick_frequency_hz.
type Platform interface {
	// IntrSave masks interrupts and returns the previous masked state, so
	// a nested IntrSave/IntrRestore pair taken while already masked is a
	// no-op rather than a deadlock.
	IntrSave() bool

	// IntrRestore restores the masked state returned by a matching
	// IntrSave.
	IntrRestore(prevMasked bool)

	// IntrEnabled reports whether interrupts are currently unmasked.
	IntrEnabled() bool

	// Idle is invoked by the idle thread when the run-queue is empty. It
	// must return promptly once there is new work to consider.
	Idle()

	// Halt stops the virtual CPU permanently. Used only when the kernel
	// has nothing left to schedule and is not expected to resume.
	Halt()

	// StackForge creates a new thread of execution that begins running
	// entry only once it is first scheduled via ContextSwitch or
	// ContextLoad. stackSize is accepted for interface fidelity with the
	// original port; goroutine stacks grow on demand and are not
	// preallocated.
	StackForge(name string, stackSize int, entry func()) *Thread

	// ContextSwitch hands the CPU baton from prev to next and blocks the
	// calling goroutine (prev's) until it is handed back. A no-op if
	// prev == next.
	ContextSwitch(prev, next *Thread)

	// ContextLoad hands the CPU baton to next and never returns; used
	// once, at scheduler enable time, to leave the bootstrap stack.
	ContextLoad(next *Thread)

	// IRQEnable unmasks the given line at the (virtual) interrupt
	// controller.
	IRQEnable(line int)

	// IRQDisable masks the given line.
	IRQDisable(line int)

	// IRQEOI acknowledges the interrupt on the given line.
	IRQEOI(line int)

	// TickFrequencyHz is the frequency, in Hz, at which the platform
	// delivers the periodic tick.
	TickFrequencyHz() int
}

// Goroutine is the production Platform: real concurrency underneath, a
// single baton enforcing that only one kernel thread's goroutine ever runs
// core logic at a time. The baton-handoff technique is the toy G/P
// scheduler idiom of signalling a per-goroutine channel and blocking on
// one's own, generalized from a two-state run/block model to full
// cooperative context switching.
type Goroutine struct {
	masked   atomic.Bool
	schedMu  sync.Mutex
	irqMu    sync.Mutex
	irqLines [16]bool
	tickHz   int
}

var _ Platform = (*Goroutine)(nil)

// NewGoroutine returns a Platform backed by real OS goroutines, delivering
// ticks at tickHz.
func NewGoroutine(tickHz int) *Goroutine {
	return &Goroutine{tickHz: tickHz}
}

func (g *Goroutine) IntrSave() bool {
	prev := g.masked.Swap(true)
	if !prev {
		g.schedMu.Lock()
	}
	return prev
}

func (g *Goroutine) IntrRestore(prevMasked bool) {
	if prevMasked {
		return
	}
	g.masked.Store(false)
	g.schedMu.Unlock()
}

func (g *Goroutine) IntrEnabled() bool {
	return !g.masked.Load()
}

func (g *Goroutine) Idle() {
	period := time.Second / time.Duration(g.tickHz)
	ts := unix.NsecToTimespec(period.Nanoseconds() / 4)
	_ = unix.Nanosleep(&ts, nil)
}

func (g *Goroutine) Halt() {
	select {}
}

func (g *Goroutine) StackForge(name string, stackSize int, entry func()) *Thread {
	t := &Thread{
		name:   name,
		resume: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		<-t.resume
		entry()
		close(t.done)
	}()
	return t
}

func (g *Goroutine) ContextSwitch(prev, next *Thread) {
	if prev == next {
		return
	}
	next.resume <- struct{}{}
	<-prev.resume
}

func (g *Goroutine) ContextLoad(next *Thread) {
	next.resume <- struct{}{}
	select {}
}

func (g *Goroutine) IRQEnable(line int) {
	g.irqMu.Lock()
	defer g.irqMu.Unlock()
	g.irqLines[line] = true
}

func (g *Goroutine) IRQDisable(line int) {
	g.irqMu.Lock()
	defer g.irqMu.Unlock()
	g.irqLines[line] = false
}

func (g *Goroutine) IRQEOI(int) {}

func (g *Goroutine) TickFrequencyHz() int {
	return g.tickHz
}

// StartTicker spawns the goroutine that stands in for the periodic
// hardware tick. Each period it masks interrupts, invokes dispatch (the
// core's IRQ dispatch entry point for the tick vector), and unmasks again.
// It never itself reschedules: only the thread holding the CPU baton at
// its next checkpoint does that, per the kernel's single-current-thread
// invariant. StartTicker returns a function that stops the ticker.
func (g *Goroutine) StartTicker(dispatch func()) (stop func()) {
	done := make(chan struct{})
	period := time.Second / time.Duration(g.tickHz)
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				prev := g.IntrSave()
				dispatch()
				g.IntrRestore(prev)
			}
		}
	}()
	return func() { close(done) }
}
