// Package editscope decides what an edit on a calendar occurrence actually
// targets: the occurrence's own override record, the whole series through its
// anchor, or a pending user choice between the two. The choice is modeled as
// an explicit session state instead of a blocking prompt, so callers drive it
// asynchronously.
package editscope

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikaelstaldal/mycal/internal/contract"
)

// TargetKind classifies what an activation edits.
type TargetKind int

const (
	// TargetSeriesAnchor edits the event record directly: a non-recurring
	// event or the first occurrence of a series.
	TargetSeriesAnchor TargetKind = iota
	// TargetOverride edits an existing detached instance record.
	TargetOverride
	// TargetChoice is a generated repeat; the user must pick instance or
	// series before anything can be edited.
	TargetChoice
)

func (k TargetKind) String() string {
	switch k {
	case TargetSeriesAnchor:
		return "series-anchor"
	case TargetOverride:
		return "override"
	case TargetChoice:
		return "choice"
	default:
		return fmt.Sprintf("target(%d)", int(k))
	}
}

// EditTarget is the classification result. ParentEventID is set only for
// overrides.
type EditTarget struct {
	Kind          TargetKind
	ParentEventID int64
}

// Classify maps an occurrence to its edit target. Overrides are recognized
// by their parent back-reference, generated repeats by a nonzero index;
// everything else edits the record itself.
func Classify(ev contract.Event) EditTarget {
	switch ev.Kind() {
	case contract.KindOverride:
		return EditTarget{Kind: TargetOverride, ParentEventID: *ev.RecurrenceParentID}
	case contract.KindGenerated:
		return EditTarget{Kind: TargetChoice}
	default:
		return EditTarget{Kind: TargetSeriesAnchor}
	}
}

// Choice resolves a pending instance-or-series decision.
type Choice int

const (
	ChooseInstance Choice = iota
	ChooseSeries
)

// Fetcher loads the authoritative event record for an id. The API client
// satisfies it.
type Fetcher interface {
	GetEvent(ctx context.Context, id int64) (contract.Event, error)
}

// State is a session's lifecycle position.
type State int

const (
	// StateReady means the editable record is loaded and saves may proceed.
	StateReady State = iota
	// StateAwaitingChoice suspends the session until Resolve is called.
	StateAwaitingChoice
)

// ErrAwaitingChoice reports an operation attempted while the instance-or-
// series decision is still pending.
var ErrAwaitingChoice = errors.New("edit scope not resolved: choose instance or series")

// ErrChoiceSettled reports a Resolve on a session that is not waiting.
var ErrChoiceSettled = errors.New("edit scope already resolved")

// Session is one edit interaction with an occurrence. For a generated repeat
// it starts in StateAwaitingChoice and must be resolved before the editable
// record, save shape, or delete shape can be read.
type Session struct {
	target   contract.Event
	state    State
	editable contract.Event

	// instanceStart is the occurrence's original start, recorded before any
	// edit can move it. It scopes instance-level saves and deletes.
	instanceStart string
}

// Begin classifies the occurrence and opens a session. Anchors and overrides
// are ready immediately; a generated repeat parks in StateAwaitingChoice and
// fetches nothing yet.
func Begin(ctx context.Context, f Fetcher, occ contract.Event) (*Session, error) {
	s := &Session{target: occ}
	if Classify(occ).Kind == TargetChoice {
		s.state = StateAwaitingChoice
		return s, nil
	}
	ev, err := f.GetEvent(ctx, occ.ID)
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", occ.ID, err)
	}
	s.editable = ev
	return s, nil
}

// State reports whether the session is ready or still awaiting the choice.
func (s *Session) State() State { return s.state }

// Resolve supplies the instance-or-series decision for a waiting session.
// Both choices load the series anchor so the dialog shows series fields, not
// the clicked occurrence's shifted copy; choosing the instance additionally
// records the occurrence's original start as the scoping key.
func (s *Session) Resolve(ctx context.Context, f Fetcher, c Choice) error {
	if s.state != StateAwaitingChoice {
		return ErrChoiceSettled
	}
	anchor, err := f.GetEvent(ctx, s.target.ID)
	if err != nil {
		return fmt.Errorf("load series anchor %d: %w", s.target.ID, err)
	}
	s.editable = anchor
	if c == ChooseInstance {
		s.instanceStart = s.target.StartTime
	}
	s.state = StateReady
	return nil
}

// Editable returns the record whose fields the edit dialog should show.
func (s *Session) Editable() (contract.Event, error) {
	if s.state != StateReady {
		return contract.Event{}, ErrAwaitingChoice
	}
	return s.editable, nil
}

// InstanceScoped reports whether saves and deletes target a single
// occurrence rather than the series.
func (s *Session) InstanceScoped() bool {
	return s.state == StateReady && s.instanceStart != ""
}

// SaveShape finalizes an update request for this session's scope. Instance-
// scoped saves have every recurrence-rule field stripped, since the rule is
// immutable from a single occurrence, and carry the original start as the
// scoping key. Series and direct saves pass through unchanged with no key.
func (s *Session) SaveShape(req contract.UpdateEventRequest) (contract.UpdateEventRequest, string, error) {
	if s.state != StateReady {
		return contract.UpdateEventRequest{}, "", ErrAwaitingChoice
	}
	if s.instanceStart != "" {
		req.ClearRecurrence()
		return req, s.instanceStart, nil
	}
	return req, "", nil
}

// DeleteShape returns the id to delete and the instance-scoping key, empty
// for a whole-series or direct delete.
func (s *Session) DeleteShape() (int64, string, error) {
	if s.state != StateReady {
		return 0, "", ErrAwaitingChoice
	}
	return s.editable.ID, s.instanceStart, nil
}
