// Package throttle serializes outbound calls to the Strava API so consecutive
// executions are separated by a minimum delay. Higher priority tasks run
// first; within a priority, arrival order is preserved.
package throttle

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type task struct {
	priority int
	seq      uint64
	ctx      context.Context
	fn       func(ctx context.Context) (any, error)
	done     chan result
}

type result struct {
	value any
	err   error
}

type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

type Queue struct {
	mu      sync.Mutex
	pending taskHeap
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
	seq     uint64
	pacer   *rate.Limiter
}

// NewQueue starts the drain goroutine. minSpacing is the smallest gap between
// consecutive task starts.
func NewQueue(minSpacing time.Duration) *Queue {
	if minSpacing <= 0 {
		minSpacing = 120 * time.Millisecond
	}
	q := &Queue{
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		pacer: rate.NewLimiter(rate.Every(minSpacing), 1),
	}
	go q.drain()
	return q
}

// Do enqueues fn and blocks until it has run or ctx is cancelled. A failure in
// fn is returned only to this caller; the queue keeps draining.
func (q *Queue) Do(ctx context.Context, priority int, fn func(ctx context.Context) (any, error)) (any, error) {
	t := &task{
		priority: priority,
		ctx:      ctx,
		fn:       fn,
		done:     make(chan result, 1),
	}

	q.mu.Lock()
	q.seq++
	t.seq = q.seq
	heap.Push(&q.pending, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-t.done:
		return res.value, res.err
	}
}

func (q *Queue) Stop() {
	q.once.Do(func() { close(q.stop) })
}

func (q *Queue) drain() {
	for {
		t := q.next()
		if t == nil {
			select {
			case <-q.stop:
				return
			case <-q.wake:
				continue
			}
		}

		// Callers that gave up before their turn don't consume a slot.
		if t.ctx.Err() != nil {
			continue
		}
		if err := q.pacer.Wait(t.ctx); err != nil {
			t.done <- result{err: err}
			continue
		}
		value, err := t.fn(t.ctx)
		t.done <- result{value: value, err: err}
	}
}

func (q *Queue) next() *task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.pending).(*task)
}
