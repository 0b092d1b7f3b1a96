package mobius

import (
	"container/list"

	"github.com/google/uuid"
)

// observer is a registered model observer. It is only touched on the loop's
// serial runner.
type observer[M, E any] struct {
	key    uuid.UUID
	runner WorkRunner
	source Connectable[M, E]
	owned  bool

	// conn is non-nil while the loop is started.
	conn *guardedConnection[M, E]
}

// wire connects the observer, feeding its events into sink, and replays model.
func (o *observer[M, E]) wire(model M, sink Consumer[E]) {
	o.conn = guardConnect(o.source, sink)
	o.deliver(model)
}

// deliver posts model to the observer's runner. A delivery still queued when
// the connection is disposed is dropped by the guard.
func (o *observer[M, E]) deliver(model M) {
	conn := o.conn
	if conn == nil {
		return
	}
	o.runner.Post(func() {
		conn.Accept(model)
	})
}

// unwire disposes the active connection, if any.
func (o *observer[M, E]) unwire() {
	if o.conn == nil {
		return
	}
	o.conn.Dispose()
	o.conn = nil
}

// registry is an insertion-ordered set of observers keyed by uuid.
// Removal is O(1). It is not safe for concurrent use; the loop confines it to
// its serial runner.
type registry[M, E any] struct {
	order *list.List
	index map[uuid.UUID]*list.Element
}

func newRegistry[M, E any]() *registry[M, E] {
	return &registry[M, E]{
		order: list.New(),
		index: make(map[uuid.UUID]*list.Element),
	}
}

// insert registers o under a fresh key and returns the key.
func (r *registry[M, E]) insert(o *observer[M, E]) uuid.UUID {
	o.key = uuid.New()
	r.index[o.key] = r.order.PushBack(o)
	return o.key
}

// remove unregisters the observer with the given key.
func (r *registry[M, E]) remove(key uuid.UUID) (*observer[M, E], bool) {
	el, ok := r.index[key]
	if !ok {
		return nil, false
	}
	delete(r.index, key)
	return r.order.Remove(el).(*observer[M, E]), true
}

// get returns the observer with the given key.
func (r *registry[M, E]) get(key uuid.UUID) (*observer[M, E], bool) {
	el, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*observer[M, E]), true
}

// snapshot returns the observers in insertion order. Callers iterate the
// copy, so removals during iteration are safe.
func (r *registry[M, E]) snapshot() []*observer[M, E] {
	out := make([]*observer[M, E], 0, r.order.Len())
	for el := r.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*observer[M, E]))
	}
	return out
}

func (r *registry[M, E]) len() int {
	return r.order.Len()
}
