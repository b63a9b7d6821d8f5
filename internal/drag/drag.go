// Package drag converts pointer gestures on calendar occurrence blocks into
// committed reschedules. Each gesture is an explicit state machine owned by
// its own Gesture value; nothing is shared between gestures. The engine only
// computes the new start and end stamps, applying them is the caller's job.
package drag

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/mikaelstaldal/mycal/internal/contract"
	"github.com/mikaelstaldal/mycal/internal/timeparse"
)

// Defaults chosen to match the slot layout: one hour renders 48 pixels tall,
// deltas snap to the quarter hour, and an event can never be resized below a
// quarter hour.
const (
	DefaultPixelsPerHour      = 48
	DefaultSnapMinutes        = 15
	DefaultMinDurationMinutes = 15
	DefaultArmThresholdPx     = 4
)

// ErrNotDraggable reports an occurrence that must go through the edit dialog
// instead of direct manipulation.
var ErrNotDraggable = errors.New("occurrence is not draggable")

// Mode selects what a gesture changes.
type Mode int

const (
	// ModeMove shifts both start and end, keeping duration fixed. Vertical
	// movement maps to a time delta, horizontal movement (when column
	// geometry is supplied) to a whole-day delta.
	ModeMove Mode = iota
	// ModeResize moves only the end.
	ModeResize
	// ModeMoveHorizontal shifts whole calendar days with no time-of-day
	// change, for all-day chips.
	ModeMoveHorizontal
)

func (m Mode) String() string {
	switch m {
	case ModeMove:
		return "move"
	case ModeResize:
		return "resize"
	case ModeMoveHorizontal:
		return "move-horizontal"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses the wire form used by traces and flags.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "move":
		return ModeMove, nil
	case "resize":
		return ModeResize, nil
	case "move-horizontal":
		return ModeMoveHorizontal, nil
	default:
		return 0, fmt.Errorf("unknown drag mode %q", s)
	}
}

// State is a gesture's position in the Idle, Armed, Dragging, Settled cycle.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateDragging
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateDragging:
		return "dragging"
	case StateSettled:
		return "settled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PointerEvent is one raw input sample. Mouse and touch share this shape.
type PointerEvent struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Touch bool    `json:"touch,omitempty"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ColumnRect is the horizontal extent of one day column.
type ColumnRect struct {
	Left  float64
	Right float64
}

// ColumnGeometry reports the live bounds of the day columns. It is queried
// again on every movement event because layout may shift mid-gesture.
type ColumnGeometry interface {
	Columns() []ColumnRect
}

// Config holds the gesture tuning knobs. The zero value selects the defaults.
type Config struct {
	PixelsPerHour      float64
	SnapMinutes        int
	MinDurationMinutes int
	ArmThresholdPx     float64
}

func (c Config) withDefaults() Config {
	if c.PixelsPerHour <= 0 {
		c.PixelsPerHour = DefaultPixelsPerHour
	}
	if c.SnapMinutes <= 0 {
		c.SnapMinutes = DefaultSnapMinutes
	}
	if c.MinDurationMinutes <= 0 {
		c.MinDurationMinutes = DefaultMinDurationMinutes
	}
	if c.ArmThresholdPx <= 0 {
		c.ArmThresholdPx = DefaultArmThresholdPx
	}
	return c
}

// Options carries the optional collaborators for a gesture.
type Options struct {
	// Columns enables horizontal day detection. StartColumn is the index of
	// the column the block lives in when the gesture begins.
	Columns     ColumnGeometry
	StartColumn int
}

// Commit is the outcome of a settled gesture with a net delta. Start and End
// are absolute stamps in the same form the event carries them.
type Commit struct {
	GestureID    string `json:"gesture_id"`
	EventID      int64  `json:"event_id"`
	Mode         string `json:"mode"`
	Start        string `json:"start_time"`
	End          string `json:"end_time"`
	DeltaMinutes int    `json:"delta_minutes"`
	DayDelta     int    `json:"day_delta"`
}

// Gesture tracks one pointer interaction from press to release. It never
// mutates the event it was created for; authoritative state changes only
// when the caller applies the Commit.
type Gesture struct {
	id   string
	ev   contract.Event
	mode Mode
	cfg  Config
	opts Options

	state           State
	startX, startY  float64
	touch           bool
	durationMinutes int
	deltaMinutes    int
	dayDelta        int
	suppressPending bool
}

// NewGesture prepares a gesture for one occurrence. Generated repeats and
// instance overrides are rejected up front so the gesture never arms on them.
func NewGesture(ev contract.Event, mode Mode, cfg Config, opts Options) (*Gesture, error) {
	if ev.Kind() != contract.KindAnchor {
		return nil, fmt.Errorf("%w: %s event %d", ErrNotDraggable, ev.Kind(), ev.ID)
	}
	g := &Gesture{
		id:   uuid.NewString(),
		ev:   ev,
		mode: mode,
		cfg:  cfg.withDefaults(),
		opts: opts,
	}
	if mode == ModeResize {
		start, err := ev.StartAt()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		end, err := ev.EndAt()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.ID, err)
		}
		g.durationMinutes = int(end.Sub(start).Minutes())
	}
	return g, nil
}

// ID identifies the gesture for logging and commit correlation.
func (g *Gesture) ID() string { return g.id }

// State reports the current machine state.
func (g *Gesture) State() State { return g.state }

// Press records the gesture origin and arms the machine. Non-finite
// coordinates are ignored and the gesture stays idle.
func (g *Gesture) Press(ev PointerEvent) {
	if g.state != StateIdle || !finite(ev.X) || !finite(ev.Y) {
		return
	}
	g.startX, g.startY = ev.X, ev.Y
	g.touch = ev.Touch
	g.state = StateArmed
}

// Move feeds one movement sample. The returned flag asks the caller to
// suppress default touch scrolling, which is wanted only once dragging.
func (g *Gesture) Move(ev PointerEvent) (suppressScroll bool) {
	if g.state != StateArmed && g.state != StateDragging {
		return false
	}
	if !finite(ev.X) || !finite(ev.Y) {
		return g.state == StateDragging && ev.Touch
	}
	dx := ev.X - g.startX
	dy := ev.Y - g.startY

	if g.state == StateArmed {
		if math.Abs(dx) < g.cfg.ArmThresholdPx && math.Abs(dy) < g.cfg.ArmThresholdPx {
			return false
		}
		g.state = StateDragging
	}

	if g.mode != ModeMoveHorizontal {
		g.deltaMinutes = timeparse.SnapMinutes(dy/g.cfg.PixelsPerHour*60, g.cfg.SnapMinutes)
	}
	if g.mode == ModeResize {
		// Clamp by adjusting the delta so the committed duration is exact.
		if g.durationMinutes+g.deltaMinutes < g.cfg.MinDurationMinutes {
			g.deltaMinutes = g.cfg.MinDurationMinutes - g.durationMinutes
		}
	}
	if g.mode != ModeResize {
		g.detectColumn(ev.X)
	}
	return ev.Touch
}

// detectColumn hit-tests the pointer against the current column bounds. The
// geometry is re-read every call since the layout can move mid-gesture.
func (g *Gesture) detectColumn(x float64) {
	if g.opts.Columns == nil {
		return
	}
	rects := g.opts.Columns.Columns()
	if len(rects) == 0 || g.opts.StartColumn < 0 || g.opts.StartColumn >= len(rects) {
		return
	}
	col := g.opts.StartColumn
	for i, r := range rects {
		if x >= r.Left && x < r.Right {
			col = i
			break
		}
	}
	g.dayDelta = col - g.opts.StartColumn
}

// Release settles the gesture. It returns a Commit only when a net delta was
// accumulated; a release while still armed, or with everything snapped back
// to zero, is a click.
func (g *Gesture) Release() (Commit, bool) {
	switch g.state {
	case StateArmed:
		// Below the threshold the gesture was a plain click and the normal
		// click handler must run.
		g.state = StateSettled
		return Commit{}, false
	case StateDragging:
		g.state = StateSettled
		g.suppressPending = true
	default:
		return Commit{}, false
	}

	if g.deltaMinutes == 0 && g.dayDelta == 0 {
		return Commit{}, false
	}
	start, end, err := g.apply()
	if err != nil {
		return Commit{}, false
	}
	return Commit{
		GestureID:    g.id,
		EventID:      g.ev.ID,
		Mode:         g.mode.String(),
		Start:        start,
		End:          end,
		DeltaMinutes: g.deltaMinutes,
		DayDelta:     g.dayDelta,
	}, true
}

func (g *Gesture) apply() (string, string, error) {
	switch g.mode {
	case ModeMoveHorizontal:
		start, err := timeparse.ShiftDateStamp(g.ev.StartTime, g.dayDelta)
		if err != nil {
			return "", "", err
		}
		end, err := timeparse.ShiftDateStamp(g.ev.EndTime, g.dayDelta)
		if err != nil {
			return "", "", err
		}
		return start, end, nil
	case ModeResize:
		end, err := timeparse.AddMinutesStamp(g.ev.EndTime, g.deltaMinutes)
		if err != nil {
			return "", "", err
		}
		return g.ev.StartTime, end, nil
	default:
		start, err := timeparse.AddMinutesStamp(g.ev.StartTime, g.deltaMinutes)
		if err != nil {
			return "", "", err
		}
		end, err := timeparse.AddMinutesStamp(g.ev.EndTime, g.deltaMinutes)
		if err != nil {
			return "", "", err
		}
		if g.dayDelta != 0 {
			if start, err = timeparse.ShiftDaysStamp(start, g.dayDelta); err != nil {
				return "", "", err
			}
			if end, err = timeparse.ShiftDaysStamp(end, g.dayDelta); err != nil {
				return "", "", err
			}
		}
		return start, end, nil
	}
}

// SuppressClick reports whether the synthetic click following release must be
// swallowed. It fires at most once per gesture, and only when the gesture had
// actually been dragging.
func (g *Gesture) SuppressClick() bool {
	if !g.suppressPending {
		return false
	}
	g.suppressPending = false
	return true
}

// Cancel abandons the gesture without a commit, for escape or loss of
// pointer capture. All accumulated deltas are discarded.
func (g *Gesture) Cancel() {
	g.state = StateIdle
	g.deltaMinutes = 0
	g.dayDelta = 0
	g.suppressPending = false
}

// Tracker enforces the one-active-gesture rule. Arming a new gesture is
// refused while another one is dragging.
type Tracker struct {
	active *Gesture
}

// Start builds and registers a gesture. It fails if the occurrence is not
// draggable or another tracked gesture is still dragging.
func (t *Tracker) Start(ev contract.Event, mode Mode, cfg Config, opts Options) (*Gesture, error) {
	if t.active != nil && t.active.State() == StateDragging {
		return nil, errors.New("another drag gesture is in progress")
	}
	g, err := NewGesture(ev, mode, cfg, opts)
	if err != nil {
		return nil, err
	}
	t.active = g
	return g, nil
}

// Active returns the tracked gesture, or nil.
func (t *Tracker) Active() *Gesture {
	return t.active
}
