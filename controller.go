package mobius

import "sync"

// Controller wraps a Loop for the common case of a single view: at most one
// view is connected at a time and it can only be swapped while the loop is
// stopped. Every misuse is reported through the error handler and returned.
type Controller[M, E, F any] struct {
	loop       *Loop[M, E, F]
	viewRunner WorkRunner

	mu   sync.Mutex
	view Disposable
}

// NewController returns a Controller over loop.
func NewController[M, E, F any](loop *Loop[M, E, F]) *Controller[M, E, F] {
	return &Controller[M, E, F]{loop: loop}
}

// ViewRunner sets the runner models are delivered to the view on.
// Default: a dedicated SerialRunner per connected view. Must be called before ConnectView().
func (c *Controller[M, E, F]) ViewRunner(runner WorkRunner) *Controller[M, E, F] {
	c.viewRunner = runner
	return c
}

// Loop returns the wrapped loop.
func (c *Controller[M, E, F]) Loop() *Loop[M, E, F] {
	return c.loop
}

// ConnectView connects the view. It fails if a view is already connected.
// If the loop is running the view immediately receives the current model.
func (c *Controller[M, E, F]) ConnectView(view Connectable[M, E]) error {
	site := captureCallSite()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != nil {
		return report(site.violation(KindLifecycle, "connect view", "a view is already connected"))
	}

	d, err := c.loop.Connect(view, c.viewRunner)
	if err != nil {
		return err
	}
	c.view = d
	return nil
}

// DisconnectView disconnects the view. It fails if no view is connected or
// while the loop is running.
func (c *Controller[M, E, F]) DisconnectView() error {
	site := captureCallSite()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view == nil {
		return report(site.violation(KindLifecycle, "disconnect view", "no view is connected"))
	}
	if c.loop.IsRunning() {
		return report(site.violation(KindLifecycle, "disconnect view", "cannot disconnect the view while the loop is running"))
	}

	c.view.Dispose()
	c.view = nil
	return nil
}

// HasView reports whether a view is connected.
func (c *Controller[M, E, F]) HasView() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view != nil
}

// Start starts the loop. See Loop.Start.
func (c *Controller[M, E, F]) Start() error {
	site := captureCallSite()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop.startAt(site)
}

// Stop stops the loop. See Loop.Stop.
func (c *Controller[M, E, F]) Stop() error {
	site := captureCallSite()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop.stopAt(site)
}

// IsRunning reports whether the loop is started.
func (c *Controller[M, E, F]) IsRunning() bool {
	return c.loop.IsRunning()
}

// Model returns the loop's model, running or not.
func (c *Controller[M, E, F]) Model() M {
	return c.loop.Model()
}

// ReplaceModel seeds the stopped loop with model. See Loop.ReplaceModel.
func (c *Controller[M, E, F]) ReplaceModel(model M) error {
	site := captureCallSite()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop.replaceModelAt(site, model)
}

// Dispatch forwards event to the loop.
func (c *Controller[M, E, F]) Dispatch(event E) {
	c.loop.Dispatch(event)
}
