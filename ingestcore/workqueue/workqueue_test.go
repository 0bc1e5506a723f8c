package workqueue_test

import (
	"sync/atomic"
	"testing"

	"github.com/featurebasedb/bulkload/ingestcore/errcode"
	"github.com/featurebasedb/bulkload/ingestcore/workqueue"
	"github.com/stretchr/testify/require"
)

func TestRunBarrierRunsEveryTask(t *testing.T) {
	p := workqueue.New(4)
	var n int64
	tasks := make([]workqueue.Task, 50)
	for i := range tasks {
		tasks[i] = func() error {
			atomic.AddInt64(&n, 1)
			return nil
		}
	}
	require.NoError(t, p.RunBarrier(tasks))
	require.EqualValues(t, 50, n)
}

func TestRunBarrierSingleWorkerDoesNotDeadlock(t *testing.T) {
	p := workqueue.New(1)
	var n int64
	tasks := make([]workqueue.Task, 10)
	for i := range tasks {
		tasks[i] = func() error {
			atomic.AddInt64(&n, 1)
			return nil
		}
	}
	require.NoError(t, p.RunBarrier(tasks))
	require.EqualValues(t, 10, n)
}

func TestRunBarrierReturnsFirstError(t *testing.T) {
	p := workqueue.New(2)
	boom := errcode.New(errcode.IO, "boom")
	tasks := []workqueue.Task{
		func() error { return nil },
		func() error { return boom },
		func() error { return nil },
	}
	err := p.RunBarrier(tasks)
	require.Error(t, err)
	require.True(t, errcode.Is(err, errcode.IO))
}

func TestRunBarrierCollectReturnsEveryError(t *testing.T) {
	p := workqueue.New(2)
	boom := errcode.New(errcode.Attach, "nope")
	tasks := []workqueue.Task{
		func() error { return nil },
		func() error { return boom },
	}
	errs := p.RunBarrierCollect(tasks)
	require.Len(t, errs, 2)
	require.NoError(t, errs[0])
	require.Error(t, errs[1])
}

func TestErrorSlotFirstFaultWins(t *testing.T) {
	var slot workqueue.ErrorSlot
	require.False(t, slot.Faulted())
	slot.Set(errcode.New(errcode.IO, "first"))
	slot.Set(errcode.New(errcode.IO, "second"))
	require.True(t, slot.Faulted())
	require.EqualError(t, slot.Get(), "first")
}
