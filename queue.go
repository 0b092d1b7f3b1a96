package mobius

import "sync"

// taskQueue is an unbounded, thread-safe FIFO of work items.
//
// Unbounded so that Post never blocks: effect handlers running inline on the
// serial runner enqueue follow-up events while the runner is busy.
//
// The signal channel has a buffer of one and coalesces wake-ups, so a waiter
// must drain with dequeue until it reports empty.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]func(), 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// enqueue appends a task. Returns false if the queue is closed.
func (q *taskQueue) enqueue(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, task)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// dequeue removes the front task. The closed result is only meaningful when
// ok is false: it reports that the queue is closed and fully drained.
func (q *taskQueue) dequeue() (task func(), ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false, q.closed
	}

	task = q.tasks[0]
	// Release the closure for GC.
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}

	return task, true, false
}

// wait returns a channel that signals when tasks may be available.
func (q *taskQueue) wait() <-chan struct{} {
	return q.signal
}

// len returns the number of queued tasks.
func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// close rejects further tasks and wakes the waiter. Already queued tasks
// remain and can still be dequeued.
func (q *taskQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
