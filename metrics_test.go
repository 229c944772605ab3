package x1kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshotReflectsRecordedCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordTick()
	m.RecordTick()
	m.RecordContextSwitch()
	m.RecordThreadCreated()
	m.RecordWakeup()
	m.RecordAlloc(true)
	m.RecordAlloc(false)
	m.RecordFree()
	m.RecordTimerScheduled()
	m.RecordTimerFired()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Ticks)
	assert.Equal(t, uint64(1), snap.ContextSwitches)
	assert.Equal(t, uint64(1), snap.ThreadsCreated)
	assert.Equal(t, uint64(1), snap.Wakeups)
	assert.Equal(t, uint64(1), snap.Allocations)
	assert.Equal(t, uint64(1), snap.AllocFailures)
	assert.Equal(t, uint64(1), snap.Frees)
	assert.Equal(t, uint64(1), snap.TimersScheduled)
	assert.Equal(t, uint64(1), snap.TimersFired)
}

func TestMetricsResetZeroesAllCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordTick()
	m.RecordAlloc(true)
	m.Reset()

	snap := m.Snapshot()
	assert.Zero(t, snap.Ticks)
	assert.Zero(t, snap.Allocations)
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveTick()
	obs.ObserveAlloc(true)
	obs.ObserveTimerFired()

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.Ticks)
	assert.Equal(t, uint64(1), snap.Allocations)
	assert.Equal(t, uint64(1), snap.TimersFired)
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var obs Observer = NoOpObserver{}
	obs.ObserveTick()
	obs.ObserveAlloc(false)
	obs.ObserveFree()
}
