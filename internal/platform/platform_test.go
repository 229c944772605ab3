package platform

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrSaveRestoreNesting(t *testing.T) {
	g := NewGoroutine(100)
	assert.True(t, g.IntrEnabled())

	outer := g.IntrSave()
	assert.False(t, outer)
	assert.False(t, g.IntrEnabled())

	inner := g.IntrSave()
	assert.True(t, inner, "nested save while already masked must report masked")

	g.IntrRestore(inner)
	assert.False(t, g.IntrEnabled(), "inner restore must not unmask while outer still holds it")

	g.IntrRestore(outer)
	assert.True(t, g.IntrEnabled())
}

func TestContextSwitchHandsOffInOrder(t *testing.T) {
	g := NewGoroutine(100)

	var order []int
	done := make(chan struct{})

	var a, b, c *Thread
	a = g.StackForge("a", 4096, func() {
		order = append(order, 1)
		g.ContextSwitch(a, b)
	})
	b = g.StackForge("b", 4096, func() {
		order = append(order, 2)
		g.ContextSwitch(b, c)
	})
	c = g.StackForge("c", 4096, func() {
		order = append(order, 3)
		close(done)
	})

	go g.ContextLoad(a)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("context switch chain never completed")
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestContextSwitchSameThreadIsNoop(t *testing.T) {
	g := NewGoroutine(100)
	a := g.StackForge("a", 4096, func() {})
	assert.NotPanics(t, func() { g.ContextSwitch(a, a) })
}

func TestStartTickerDrivesDispatch(t *testing.T) {
	g := NewGoroutine(1000)

	var ticks int32
	stop := g.StartTicker(func() {
		atomic.AddInt32(&ticks, 1)
	})
	defer stop()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && atomic.LoadInt32(&ticks) < 3 {
		time.Sleep(time.Millisecond)
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&ticks), int32(3))
}

func TestIRQLineTracking(t *testing.T) {
	g := NewGoroutine(100)
	g.IRQEnable(5)
	require.True(t, g.irqLines[5])
	g.IRQDisable(5)
	require.False(t, g.irqLines[5])
}
