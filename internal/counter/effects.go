package counter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zoobzio/mobius"
)

// ErrSaveExhausted is reported when every attempt to persist the model failed.
var ErrSaveExhausted = errors.New("could not write the model file")

// Effects returns the router that performs the counter's effects. Persist
// writes the model to path with codec, retrying up to attempts times;
// Announce writes a line to out. out is shared with the view, so it must be
// safe for concurrent use (see SyncWriter).
func Effects(path string, codec mobius.Codec, attempts int, out io.Writer) *mobius.Router[Effect, Event] {
	return mobius.NewRouter[Effect, Event]().
		RoutePipeline("persist", mobius.Is[Effect, Persist](),
			func(_ context.Context, e Effect) ([]Event, error) {
				data, err := codec.Marshal(e.(Persist).Model)
				if err != nil {
					return nil, fmt.Errorf("encoding model: %w", err)
				}
				if err := os.WriteFile(path, data, 0o600); err != nil {
					return nil, err
				}
				return []Event{Saved{Path: path}}, nil
			},
			mobius.WithRetry[Effect, Event](attempts),
			mobius.WithFallback[Effect, Event](
				mobius.UseApply[Effect, Event]("persist:failed", "Reports a model that could not be saved",
					func(_ context.Context, req *mobius.Request[Effect, Event]) (*mobius.Request[Effect, Event], error) {
						return &mobius.Request[Effect, Event]{
							Route:  req.Route,
							Effect: req.Effect,
							Events: []Event{SaveFailed{Err: ErrSaveExhausted}},
						}, nil
					}),
			),
		).
		RouteAction("announce", mobius.Is[Effect, Announce](),
			func(_ context.Context, e Effect) error {
				_, err := fmt.Fprintln(out, e.(Announce).Message)
				return err
			},
		)
}
