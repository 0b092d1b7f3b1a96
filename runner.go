package mobius

import "sync/atomic"

// WorkRunner is an execution context. Posted work runs in submission order
// for serial runners; Post returns false once the runner is disposed.
type WorkRunner interface {
	Post(work func()) bool
	Dispose()
}

// SerialRunner executes posted work one item at a time, in FIFO order, on a
// dedicated goroutine. Post never blocks.
type SerialRunner struct {
	queue *taskQueue
	done  chan struct{}
}

// NewSerialRunner starts a SerialRunner.
func NewSerialRunner() *SerialRunner {
	r := &SerialRunner{
		queue: newTaskQueue(),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Post enqueues work.
func (r *SerialRunner) Post(work func()) bool {
	return r.queue.enqueue(work)
}

// Dispose rejects new work. Work already queued still runs, after which the
// goroutine exits. Dispose does not wait; use Done for that.
func (r *SerialRunner) Dispose() {
	r.queue.close()
}

// Done is closed when the runner goroutine has exited.
func (r *SerialRunner) Done() <-chan struct{} {
	return r.done
}

// Pending returns the number of queued work items.
func (r *SerialRunner) Pending() int {
	return r.queue.len()
}

func (r *SerialRunner) run() {
	defer close(r.done)
	for {
		task, ok, closed := r.queue.dequeue()
		if ok {
			task()
			continue
		}
		if closed {
			return
		}
		<-r.queue.wait()
	}
}

// ImmediateRunner executes posted work synchronously on the calling goroutine.
// Use it for observers that are themselves thread-safe, or in tests.
type ImmediateRunner struct {
	disposed atomic.Bool
}

// NewImmediateRunner returns an ImmediateRunner.
func NewImmediateRunner() *ImmediateRunner {
	return &ImmediateRunner{}
}

// Post runs work before returning.
func (r *ImmediateRunner) Post(work func()) bool {
	if r.disposed.Load() {
		return false
	}
	work()
	return true
}

// Dispose makes later Post calls no-ops.
func (r *ImmediateRunner) Dispose() {
	r.disposed.Store(true)
}

// GoRunner starts a goroutine for every posted work item. Work items may run
// concurrently and in any order.
type GoRunner struct {
	disposed atomic.Bool
}

// NewGoRunner returns a GoRunner.
func NewGoRunner() *GoRunner {
	return &GoRunner{}
}

// Post starts work on a new goroutine.
func (r *GoRunner) Post(work func()) bool {
	if r.disposed.Load() {
		return false
	}
	go work()
	return true
}

// Dispose makes later Post calls no-ops. Running work is not interrupted.
func (r *GoRunner) Dispose() {
	r.disposed.Store(true)
}

var (
	_ WorkRunner = (*SerialRunner)(nil)
	_ WorkRunner = (*ImmediateRunner)(nil)
	_ WorkRunner = (*GoRunner)(nil)
)
