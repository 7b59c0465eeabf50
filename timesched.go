package mayus

import (
	"container/heap"
	"sync"
	"time"
)

type (
	timedTask struct {
		execute func()
		ts      time.Time
	}
	// 按执行时间排序的最小堆
	taskHeap []timedTask
)

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].ts.Before(h[j].ts) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x interface{}) {
	*h = append(*h, x.(timedTask))
}

func (h *taskHeap) Pop() (x interface{}) {
	n := len(*h)
	x = (*h)[n-1]
	(*h)[n-1].execute = nil
	*h = (*h)[:n-1]
	return
}

// TimedSched runs functions at (or after) their deadline on one goroutine.
// The server uses it to check sessions for idleness.
type TimedSched struct {
	mu    sync.Mutex
	tasks taskHeap
	wake  chan struct{}

	die     chan struct{}
	dieOnce sync.Once
}

func NewTimedSched() *TimedSched {
	ts := &TimedSched{
		wake: make(chan struct{}, 1),
		die:  make(chan struct{}),
	}
	go ts.run()
	return ts
}

func (ts *TimedSched) run() {
	var due []func()
	for {
		now := time.Now()
		wait := time.Duration(-1)
		ts.mu.Lock()
		for len(ts.tasks) > 0 && !ts.tasks[0].ts.After(now) {
			due = append(due, heap.Pop(&ts.tasks).(timedTask).execute)
		}
		if len(ts.tasks) > 0 {
			wait = ts.tasks[0].ts.Sub(now)
		}
		ts.mu.Unlock()

		// 任务可能再次调用 Put, 所以在锁外执行
		if len(due) > 0 {
			for i, f := range due {
				select {
				case <-ts.die:
					return
				default:
				}
				f()
				due[i] = nil
			}
			due = due[:0]
			continue
		}

		var timer *time.Timer
		var fire <-chan time.Time
		if wait >= 0 {
			timer = time.NewTimer(wait)
			fire = timer.C
		}
		select {
		case <-fire:
		case <-ts.wake:
		case <-ts.die:
		}
		if timer != nil {
			timer.Stop()
		}
		select {
		case <-ts.die:
			return
		default:
		}
	}
}

// Put schedules f to run at ddl.
func (ts *TimedSched) Put(f func(), ddl time.Time) {
	ts.mu.Lock()
	heap.Push(&ts.tasks, timedTask{f, ddl})
	ts.mu.Unlock()

	select {
	case ts.wake <- struct{}{}:
	default:
	}
}

// Close stops the scheduler. Pending tasks are dropped.
func (ts *TimedSched) Close() {
	ts.dieOnce.Do(func() {
		close(ts.die)
	})
}
