package editscope

import (
	"context"
	"errors"
	"testing"

	"github.com/mikaelstaldal/mycal/internal/contract"
)

type fakeFetcher struct {
	events map[int64]contract.Event
	calls  int
	err    error
}

func (f *fakeFetcher) GetEvent(_ context.Context, id int64) (contract.Event, error) {
	f.calls++
	if f.err != nil {
		return contract.Event{}, f.err
	}
	ev, ok := f.events[id]
	if !ok {
		return contract.Event{}, errors.New("not found")
	}
	return ev, nil
}

func seriesAnchor() contract.Event {
	return contract.Event{
		ID:              7,
		Title:           "Yoga",
		StartTime:       "2026-03-09T18:00:00Z",
		EndTime:         "2026-03-09T19:00:00Z",
		RecurrenceFreq:  "WEEKLY",
		RecurrenceByDay: "MO",
	}
}

func generatedRepeat() contract.Event {
	occ := seriesAnchor()
	occ.StartTime = "2026-03-16T18:00:00Z"
	occ.EndTime = "2026-03-16T19:00:00Z"
	occ.RecurrenceIndex = 1
	return occ
}

func TestClassify(t *testing.T) {
	parent := int64(7)
	cases := []struct {
		name string
		ev   contract.Event
		want TargetKind
	}{
		{"non-recurring", contract.Event{ID: 1, StartTime: "2026-03-09T10:00:00Z"}, TargetSeriesAnchor},
		{"series anchor", seriesAnchor(), TargetSeriesAnchor},
		{"generated repeat", generatedRepeat(), TargetChoice},
		{"override", contract.Event{ID: 8, RecurrenceParentID: &parent}, TargetOverride},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.ev)
			if got.Kind != tc.want {
				t.Fatalf("kind = %s, want %s", got.Kind, tc.want)
			}
			if tc.want == TargetOverride && got.ParentEventID != parent {
				t.Fatalf("parent = %d, want %d", got.ParentEventID, parent)
			}
		})
	}
}

func TestBeginAnchorIsReadyImmediately(t *testing.T) {
	f := &fakeFetcher{events: map[int64]contract.Event{7: seriesAnchor()}}
	s, err := Begin(context.Background(), f, seriesAnchor())
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != StateReady {
		t.Fatalf("state = %d", s.State())
	}
	req, key, err := s.SaveShape(contract.UpdateEventRequest{})
	if err != nil || key != "" {
		t.Fatalf("anchor save should be unscoped, key=%q err=%v", key, err)
	}
	_ = req
}

func TestBeginGeneratedRepeatAwaitsChoice(t *testing.T) {
	f := &fakeFetcher{events: map[int64]contract.Event{7: seriesAnchor()}}
	s, err := Begin(context.Background(), f, generatedRepeat())
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != StateAwaitingChoice {
		t.Fatalf("generated repeat must await a choice")
	}
	if f.calls != 0 {
		t.Fatalf("nothing should be fetched before the choice, got %d calls", f.calls)
	}
	if _, err := s.Editable(); !errors.Is(err, ErrAwaitingChoice) {
		t.Fatalf("editable before choice: %v", err)
	}
	if _, _, err := s.SaveShape(contract.UpdateEventRequest{}); !errors.Is(err, ErrAwaitingChoice) {
		t.Fatalf("save before choice: %v", err)
	}
	if _, _, err := s.DeleteShape(); !errors.Is(err, ErrAwaitingChoice) {
		t.Fatalf("delete before choice: %v", err)
	}
}

func TestResolveInstanceScopesTheSave(t *testing.T) {
	f := &fakeFetcher{events: map[int64]contract.Event{7: seriesAnchor()}}
	s, err := Begin(context.Background(), f, generatedRepeat())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Resolve(context.Background(), f, ChooseInstance); err != nil {
		t.Fatal(err)
	}
	ev, err := s.Editable()
	if err != nil {
		t.Fatal(err)
	}
	// The dialog shows the anchor's fields, not the shifted occurrence.
	if ev.StartTime != "2026-03-09T18:00:00Z" {
		t.Fatalf("editable start = %s, want the anchor's", ev.StartTime)
	}
	if !s.InstanceScoped() {
		t.Fatal("session should be instance scoped")
	}

	freq := "DAILY"
	title := "Hot yoga"
	req, key, err := s.SaveShape(contract.UpdateEventRequest{Title: &title, RecurrenceFreq: &freq})
	if err != nil {
		t.Fatal(err)
	}
	if key != "2026-03-16T18:00:00Z" {
		t.Fatalf("scoping key = %q, want the occurrence's original start", key)
	}
	if req.HasRecurrence() {
		t.Fatal("instance-scoped save must strip recurrence fields")
	}
	if req.Title == nil || *req.Title != "Hot yoga" {
		t.Fatal("non-recurrence fields must survive")
	}

	id, delKey, err := s.DeleteShape()
	if err != nil || id != 7 || delKey != "2026-03-16T18:00:00Z" {
		t.Fatalf("delete shape = (%d, %q, %v)", id, delKey, err)
	}
}

func TestResolveSeriesIsUnscoped(t *testing.T) {
	f := &fakeFetcher{events: map[int64]contract.Event{7: seriesAnchor()}}
	s, err := Begin(context.Background(), f, generatedRepeat())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Resolve(context.Background(), f, ChooseSeries); err != nil {
		t.Fatal(err)
	}
	if f.calls != 1 {
		t.Fatalf("series resolution must still fetch the anchor, calls=%d", f.calls)
	}
	if s.InstanceScoped() {
		t.Fatal("series edit must not be instance scoped")
	}
	freq := "DAILY"
	req, key, err := s.SaveShape(contract.UpdateEventRequest{RecurrenceFreq: &freq})
	if err != nil || key != "" {
		t.Fatalf("series save: key=%q err=%v", key, err)
	}
	if !req.HasRecurrence() {
		t.Fatal("series save must keep recurrence fields")
	}
}

func TestResolveTwiceFails(t *testing.T) {
	f := &fakeFetcher{events: map[int64]contract.Event{7: seriesAnchor()}}
	s, _ := Begin(context.Background(), f, generatedRepeat())
	if err := s.Resolve(context.Background(), f, ChooseSeries); err != nil {
		t.Fatal(err)
	}
	if err := s.Resolve(context.Background(), f, ChooseInstance); !errors.Is(err, ErrChoiceSettled) {
		t.Fatalf("second resolve: %v", err)
	}
}

func TestBeginPropagatesFetchError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("unavailable")}
	if _, err := Begin(context.Background(), f, seriesAnchor()); err == nil {
		t.Fatal("fetch failure must surface")
	}
}
