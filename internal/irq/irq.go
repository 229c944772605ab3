// Package irq is the kernel's interrupt dispatch table: up to 16 lines,
// each bound to at most one handler, invoked by the platform's low-level
// glue when a line fires. Grounded directly on the original port's
// fixed-size table-of-handlers shape (no dynamic registration, EAGAIN on a
// slot collision), with the table-dispatch-by-index idiom also echoed in
// internal/ctrl/control.go's op-code handling, adapted here from a
// switch over op codes to a flat array indexed by IRQ line.
package irq

import (
	"errors"
	"fmt"

	"github.com/kesterson/x1kernel/internal/constants"
	"github.com/kesterson/x1kernel/internal/logging"
	"github.com/kesterson/x1kernel/internal/platform"
)

// ErrBusy is returned by Register when the requested line already has a
// handler bound to it.
var ErrBusy = errors.New("irq: line already registered")

// Handler is invoked with the argument it was registered with.
type Handler func(arg any)

type slot struct {
	fn  Handler
	arg any
}

// Table is a fixed-size IRQ dispatch table.
type Table struct {
	slots  [constants.MaxIRQLines]*slot
	logger *logging.Logger
}

// NewTable returns an empty dispatch table. A nil logger is valid; missing
// handlers are then acknowledged without being logged.
func NewTable(logger *logging.Logger) *Table {
	return &Table{logger: logger}
}

// Register binds fn to line. It fails with ErrBusy if line already has a
// handler, matching the original port's single-owner-per-line rule.
func (t *Table) Register(line int, fn Handler, arg any) error {
	if line < 0 || line >= constants.MaxIRQLines {
		return fmt.Errorf("irq: line %d out of range", line)
	}
	if t.slots[line] != nil {
		return fmt.Errorf("%w: line %d", ErrBusy, line)
	}
	t.slots[line] = &slot{fn: fn, arg: arg}
	return nil
}

// Unregister clears whatever handler is bound to line, if any.
func (t *Table) Unregister(line int) {
	if line < 0 || line >= constants.MaxIRQLines {
		return
	}
	t.slots[line] = nil
}

// Dispatch looks up the handler for line and invokes it. plat is used only
// to assert the entry precondition that interrupts are masked; callers in
// thread context that actually hold the CPU baton are responsible for
// calling sched.Checkpoint() afterward themselves — Dispatch deliberately
// does not do it on their behalf, since in this port an interrupt may be
// "delivered" by a goroutine (the ticker) that never holds the baton and
// so must not attempt a context switch. See SPEC_FULL.md's note on this
// adaptation.
func (t *Table) Dispatch(plat platform.Platform, line int) {
	if plat.IntrEnabled() {
		panic("irq: dispatch called with interrupts enabled")
	}
	if line < 0 || line >= constants.MaxIRQLines {
		panic("irq: dispatch of out-of-range line")
	}

	s := t.slots[line]
	if s == nil {
		if t.logger != nil {
			t.logger.Printf("irq: no handler registered for line %d, acknowledging anyway", line)
		}
		plat.IRQEOI(line)
		return
	}

	s.fn(s.arg)
	plat.IRQEOI(line)
}
