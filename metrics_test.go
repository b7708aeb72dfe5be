package multiplexer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerMetricsRecordingAccumulates(t *testing.T) {
	m := newWorkerMetrics()

	m.RecordPoll(10 * time.Millisecond)
	m.RecordPoll(20 * time.Millisecond)
	m.RecordPark()
	m.RecordSteal(3)
	m.RecordLocalSchedule()
	m.RecordOverflow()
	m.SetLocalQueueDepth(7)

	require.Equal(t, uint64(2), m.PollCount())
	require.Equal(t, uint64(1), m.ParkCount())
	require.Equal(t, uint64(3), m.StealCount())
	require.Equal(t, uint64(1), m.LocalScheduleCount())
	require.Equal(t, uint64(1), m.OverflowCount())
	require.Equal(t, 7, m.LocalQueueDepth())
	require.Equal(t, 30*time.Millisecond, m.BusyDuration())
}

func TestSchedulerMetricsAggregatesAcrossWorkers(t *testing.T) {
	idle := newIdle(2)
	inject := NewInject()
	inject.Push(&Notified{id: 1})
	inject.Push(&Notified{id: 2})

	w0 := newWorkerMetrics()
	w1 := newWorkerMetrics()
	w0.RecordSteal(2)
	w1.RecordSteal(3)
	w0.RecordOverflow()

	sm := newSchedulerMetrics([]*WorkerMetrics{w0, w1}, idle, inject)

	require.Equal(t, 2, sm.NumWorkers())
	require.Equal(t, uint64(5), sm.TotalStealCount())
	require.Equal(t, uint64(1), sm.TotalOverflowCount())
	require.Equal(t, 2, sm.InjectionQueueDepth())
	require.Same(t, w0, sm.Worker(0))
}
