package drag

import (
	"fmt"

	"github.com/mikaelstaldal/mycal/internal/contract"
)

// StaticColumns is a fixed-geometry ColumnGeometry, for replayed traces and
// layouts that do not move during a gesture.
type StaticColumns []ColumnRect

func (c StaticColumns) Columns() []ColumnRect { return c }

// EvenColumns builds n equal-width columns starting at left.
func EvenColumns(n int, left, width float64) StaticColumns {
	cols := make(StaticColumns, n)
	for i := range cols {
		cols[i] = ColumnRect{Left: left + float64(i)*width, Right: left + float64(i+1)*width}
	}
	return cols
}

// Step is one recorded pointer sample in a trace.
type Step struct {
	Kind  string  `json:"kind"` // press, move, release, cancel
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Touch bool    `json:"touch,omitempty"`
}

// Trace is a recorded gesture: the event it acted on, the mode, optional
// fixed column geometry, and the pointer samples in order.
type Trace struct {
	Event       contract.Event `json:"event"`
	Mode        string         `json:"mode"`
	Columns     StaticColumns  `json:"columns,omitempty"`
	StartColumn int            `json:"start_column,omitempty"`
	Steps       []Step         `json:"steps"`
}

// Outcome is what a replayed trace settled to.
type Outcome struct {
	GestureID string  `json:"gesture_id"`
	State     string  `json:"state"`
	Click     bool    `json:"click"`
	Commit    *Commit `json:"commit,omitempty"`
}

// Replay drives a fresh gesture through the trace and reports how it
// settled. A trace ending without a release or cancel step is an error.
func Replay(tr Trace, cfg Config) (Outcome, error) {
	mode, err := ParseMode(tr.Mode)
	if err != nil {
		return Outcome{}, err
	}
	opts := Options{StartColumn: tr.StartColumn}
	if len(tr.Columns) > 0 {
		opts.Columns = tr.Columns
	}
	g, err := NewGesture(tr.Event, mode, cfg, opts)
	if err != nil {
		return Outcome{}, err
	}

	for i, step := range tr.Steps {
		ev := PointerEvent{X: step.X, Y: step.Y, Touch: step.Touch}
		switch step.Kind {
		case "press":
			g.Press(ev)
		case "move":
			g.Move(ev)
		case "release":
			commit, ok := g.Release()
			out := Outcome{GestureID: g.ID(), State: g.State().String()}
			if ok {
				out.Commit = &commit
			} else {
				out.Click = !g.SuppressClick()
			}
			return out, nil
		case "cancel":
			g.Cancel()
			return Outcome{GestureID: g.ID(), State: g.State().String()}, nil
		default:
			return Outcome{}, fmt.Errorf("step %d: unknown kind %q", i, step.Kind)
		}
	}
	return Outcome{}, fmt.Errorf("trace ended without release or cancel")
}
