package mobius

import "sync"

// Failure is an error reported by a router handler.
type Failure struct {
	Route string
	Err   error
}

// Error implements error.
func (f Failure) Error() string {
	return f.Route + ": " + f.Err.Error()
}

// Unwrap returns the handler error.
func (f Failure) Unwrap() error {
	return f.Err
}

// failureRing is a thread-safe ring buffer of recent handler failures.
type failureRing struct {
	mu       sync.RWMutex
	failures []Failure
	size     int
	head     int
	count    int
}

// newFailureRing creates a ring with the given capacity.
// If size is 0, the ring is disabled and all methods are no-ops.
func newFailureRing(size int) *failureRing {
	if size <= 0 {
		return nil
	}
	return &failureRing{
		failures: make([]Failure, size),
		size:     size,
	}
}

func (r *failureRing) push(f Failure) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures[r.head] = f
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

func (r *failureRing) clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.failures)
	r.head = 0
	r.count = 0
}

// all returns the retained failures, oldest first.
func (r *failureRing) all() []Failure {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	result := make([]Failure, r.count)
	start := (r.head - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		result[i] = r.failures[(start+i)%r.size]
	}
	return result
}
