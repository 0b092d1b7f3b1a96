package counter

import (
	"fmt"
	"io"

	"github.com/zoobzio/mobius"
)

// View renders every model it receives as one line on out. out must be safe
// for concurrent use when it is shared with Effects.
func View(out io.Writer) mobius.Connectable[Model, Event] {
	return mobius.ConnectableFunc[Model, Event](func(_ mobius.Consumer[Event]) mobius.Connection[Model] {
		return mobius.NewConnection[Model](func(m Model) {
			fmt.Fprintln(out, Render(m)) //nolint:errcheck // best-effort terminal output
		}, nil)
	})
}

// Render formats a model.
func Render(m Model) string {
	s := fmt.Sprintf("count=%d step=%d", m.Count, m.Step)
	if m.Max > 0 {
		s += fmt.Sprintf(" max=%d", m.Max)
	}
	if m.Dirty {
		s += " *"
	}
	return s
}
