package app

import (
	"encoding/json"
	"testing"

	"github.com/mikaelstaldal/mycal/internal/contract"
)

func decodeRows(t *testing.T, out string) (rows []occurrenceRow, meta map[string]any) {
	t.Helper()
	var env struct {
		Data []occurrenceRow `json:"data"`
		Meta map[string]any  `json:"meta"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", out, err)
	}
	return env.Data, env.Meta
}

func viewFixtures() []contract.Event {
	return []contract.Event{
		{
			ID:             7,
			Title:          "Standup",
			StartTime:      "2026-03-09T09:00:00Z",
			EndTime:        "2026-03-09T09:30:00Z",
			RecurrenceFreq: "WEEKLY",
		},
		{
			ID:        8,
			Title:     "Conference",
			StartTime: "2026-03-10",
			EndTime:   "2026-03-12",
			AllDay:    true,
		},
	}
}

func TestViewWeekResolvesRecurringAndAllDay(t *testing.T) {
	svc := &fakeService{listed: viewFixtures()}
	out, _, err := runCommand(t, svc, "view", "week", "--json",
		"--of", "2026-03-11", "--tz", "UTC")
	if err != nil {
		t.Fatal(err)
	}
	rows, meta := decodeRows(t, out)
	if meta["view"] != "week" {
		t.Fatalf("meta = %v", meta)
	}
	if meta["window_start"] != "2026-03-09T00:00:00Z" || meta["window_end"] != "2026-03-16T00:00:00Z" {
		t.Fatalf("window = %v..%v", meta["window_start"], meta["window_end"])
	}
	want := []struct {
		day, title string
	}{
		{"2026-03-09", "Standup"},
		{"2026-03-10", "Conference"},
		{"2026-03-11", "Conference"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %+v", rows)
	}
	for i, w := range want {
		if rows[i].Day != w.day || rows[i].Title != w.title {
			t.Fatalf("row %d = %+v, want %s %s", i, rows[i], w.day, w.title)
		}
	}
	// The all-day row keeps the event's own date stamps, exclusive end included.
	if rows[1].StartTime != "2026-03-10" || rows[1].EndTime != "2026-03-12" {
		t.Fatalf("all-day bounds = %s..%s", rows[1].StartTime, rows[1].EndTime)
	}
}

func TestViewDayOnlyShowsMembers(t *testing.T) {
	svc := &fakeService{listed: viewFixtures()}
	out, _, err := runCommand(t, svc, "view", "day", "--json",
		"--of", "2026-03-12", "--tz", "UTC")
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := decodeRows(t, out)
	// March 12 is the exclusive end of the all-day span and has no timed events.
	if len(rows) != 0 {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestViewWeekSummaryCoversEveryDay(t *testing.T) {
	svc := &fakeService{listed: viewFixtures()}
	out, _, err := runCommand(t, svc, "view", "week", "--json", "--summary",
		"--of", "2026-03-11", "--tz", "UTC")
	if err != nil {
		t.Fatal(err)
	}
	var env struct {
		Data []daySummary   `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}
	if len(env.Data) != 7 {
		t.Fatalf("summary days = %d, want 7", len(env.Data))
	}
	if env.Data[0].Date != "2026-03-09" || env.Data[0].Total != 1 || env.Data[0].Timed != 1 {
		t.Fatalf("monday = %+v", env.Data[0])
	}
	if env.Data[1].AllDay != 1 || env.Data[6].Total != 0 {
		t.Fatalf("summary = %+v", env.Data)
	}
}

func TestViewWeekSundayStart(t *testing.T) {
	svc := &fakeService{listed: viewFixtures()}
	out, _, err := runCommand(t, svc, "view", "week", "--json",
		"--of", "2026-03-11", "--tz", "UTC", "--week-start", "sunday")
	if err != nil {
		t.Fatal(err)
	}
	_, meta := decodeRows(t, out)
	if meta["window_start"] != "2026-03-08T00:00:00Z" {
		t.Fatalf("window_start = %v", meta["window_start"])
	}
}

func TestViewBadAnchor(t *testing.T) {
	_, _, err := runCommand(t, &fakeService{}, "view", "day", "--of", "whenever")
	if ExitCode(err) != 2 {
		t.Fatalf("exit = %d, want 2", ExitCode(err))
	}
}
