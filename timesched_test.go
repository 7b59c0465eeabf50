package mayus

import (
	"container/heap"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskHeapOrder(t *testing.T) {
	now := time.Now()
	var h taskHeap
	for _, d := range []int{3, 1, 2} {
		heap.Push(&h, timedTask{execute: func() {}, ts: now.Add(time.Duration(d) * time.Second)})
	}
	var got []time.Duration
	for h.Len() > 0 {
		got = append(got, heap.Pop(&h).(timedTask).ts.Sub(now))
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, got)
}

func TestTimedSchedRunsInDeadlineOrder(t *testing.T) {
	ts := NewTimedSched()
	defer ts.Close()

	var mu sync.Mutex
	var order []int
	record := func(i int) func() {
		return func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}
	}
	now := time.Now()
	ts.Put(record(2), now.Add(120*time.Millisecond))
	ts.Put(record(1), now.Add(60*time.Millisecond))
	ts.Put(record(0), now)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestTimedSchedNotEarly(t *testing.T) {
	ts := NewTimedSched()
	defer ts.Close()

	ddl := time.Now().Add(80 * time.Millisecond)
	ran := make(chan time.Time, 1)
	ts.Put(func() { ran <- time.Now() }, ddl)
	select {
	case at := <-ran:
		assert.False(t, at.Before(ddl))
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestTimedSchedClose(t *testing.T) {
	ts := NewTimedSched()
	ran := make(chan struct{}, 1)
	ts.Put(func() { ran <- struct{}{} }, time.Now().Add(200*time.Millisecond))
	ts.Close()
	ts.Close()
	select {
	case <-ran:
		t.Fatal("task ran after Close")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestTimedSchedPutFromTask(t *testing.T) {
	ts := NewTimedSched()
	defer ts.Close()

	done := make(chan int, 1)
	var n int
	var tick func()
	tick = func() {
		n++
		if n < 3 {
			ts.Put(tick, time.Now().Add(10*time.Millisecond))
			return
		}
		done <- n
	}
	ts.Put(tick, time.Now())
	select {
	case got := <-done:
		assert.Equal(t, 3, got)
	case <-time.After(2 * time.Second):
		t.Fatal("rescheduled task never ran")
	}
}
