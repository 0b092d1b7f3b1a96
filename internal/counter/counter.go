// Package counter is a small loop used by the mobius-counter command: a
// bounded counter whose settings can be reloaded from a file and whose value
// is saved on request.
package counter

import (
	"fmt"

	"github.com/zoobzio/mobius"
)

// Model is the counter state.
type Model struct {
	Count int  `json:"count" yaml:"count"`
	Step  int  `json:"step" yaml:"step"`
	Max   int  `json:"max" yaml:"max"`
	Dirty bool `json:"-" yaml:"-"`
}

// Settings is the reloadable part of the model.
type Settings struct {
	Step int `json:"step" yaml:"step" validate:"min=0"`
	Max  int `json:"max" yaml:"max" validate:"min=0"`
}

// Event is anything the counter reacts to.
type Event interface{ event() }

// Events.
type (
	Increment  struct{}
	Decrement  struct{}
	Reset      struct{}
	Save       struct{}
	Tick       struct{}
	Configure  struct{ Settings Settings }
	Saved      struct{ Path string }
	SaveFailed struct{ Err error }
)

func (Increment) event()  {}
func (Decrement) event()  {}
func (Reset) event()      {}
func (Save) event()       {}
func (Tick) event()       {}
func (Configure) event()  {}
func (Saved) event()      {}
func (SaveFailed) event() {}

// Effect is work the counter asks the outside world to do.
type Effect interface{ effect() }

// Effects.
type (
	Persist  struct{ Model Model }
	Announce struct{ Message string }
)

func (Persist) effect()  {}
func (Announce) effect() {}

// Init clamps the loaded model and announces the starting value.
func Init(m Model) mobius.First[Model, Effect] {
	if m.Step == 0 {
		m.Step = 1
	}
	m.Count = clamp(m.Count, m.Max)
	return mobius.FirstModel[Model, Effect](m, Announce{Message: fmt.Sprintf("starting at %d", m.Count)})
}

// Update is the counter's transition function.
func Update(m Model, e Event) mobius.Next[Model, Effect] {
	switch e := e.(type) {
	case Increment, Tick:
		return step(m, m.Step)
	case Decrement:
		return step(m, -m.Step)
	case Reset:
		if m.Count == 0 {
			return mobius.NoChange[Model, Effect]()
		}
		m.Count = 0
		m.Dirty = true
		return mobius.NextModel[Model, Effect](m)
	case Configure:
		m.Step = e.Settings.Step
		if m.Step == 0 {
			m.Step = 1
		}
		m.Max = e.Settings.Max
		m.Count = clamp(m.Count, m.Max)
		return mobius.NextModel[Model, Effect](m, Announce{Message: fmt.Sprintf("step %d, max %d", m.Step, m.Max)})
	case Save:
		if !m.Dirty {
			return mobius.Dispatch[Model, Effect](Announce{Message: "nothing to save"})
		}
		return mobius.Dispatch[Model, Effect](Persist{Model: m})
	case Saved:
		m.Dirty = false
		return mobius.NextModel[Model, Effect](m, Announce{Message: "saved to " + e.Path})
	case SaveFailed:
		return mobius.Dispatch[Model, Effect](Announce{Message: "save failed: " + e.Err.Error()})
	default:
		return mobius.NoChange[Model, Effect]()
	}
}

func step(m Model, delta int) mobius.Next[Model, Effect] {
	next := clamp(m.Count+delta, m.Max)
	if next == m.Count {
		return mobius.Dispatch[Model, Effect](Announce{Message: fmt.Sprintf("limit reached at %d", m.Count)})
	}
	m.Count = next
	m.Dirty = true
	return mobius.NextModel[Model, Effect](m)
}

// clamp bounds count to [-max, max]. A max of 0 means unbounded.
func clamp(count, maxAbs int) int {
	if maxAbs <= 0 {
		return count
	}
	return min(max(count, -maxAbs), maxAbs)
}

// Parse maps a command line to an event.
func Parse(line string) (Event, bool) {
	switch line {
	case "+", "inc", "increment":
		return Increment{}, true
	case "-", "dec", "decrement":
		return Decrement{}, true
	case "0", "reset":
		return Reset{}, true
	case "s", "save":
		return Save{}, true
	default:
		return nil, false
	}
}
