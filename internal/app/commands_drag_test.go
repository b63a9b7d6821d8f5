package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mikaelstaldal/mycal/internal/drag"
)

func writeTrace(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func decodeOutcome(t *testing.T, out string) drag.Outcome {
	t.Helper()
	var env struct {
		Data drag.Outcome `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", out, err)
	}
	return env.Data
}

func TestDragReplayCommit(t *testing.T) {
	path := writeTrace(t, `{
  "event": {"id": 5, "title": "Gym", "start_time": "2026-03-10T09:00:00Z", "end_time": "2026-03-10T10:00:00Z"},
  "mode": "move",
  "steps": [
    {"kind": "press", "x": 100, "y": 100},
    {"kind": "move", "x": 100, "y": 148},
    {"kind": "release"}
  ]
}`)
	out, _, err := runCommand(t, &fakeService{}, "drag", "replay", "--json", "--file", path)
	if err != nil {
		t.Fatal(err)
	}
	outcome := decodeOutcome(t, out)
	if outcome.State != "settled" || outcome.Commit == nil {
		t.Fatalf("outcome = %+v", outcome)
	}
	// 48 pixels at 48 px/hour is one hour.
	if outcome.Commit.Start != "2026-03-10T10:00:00Z" || outcome.Commit.End != "2026-03-10T11:00:00Z" {
		t.Fatalf("commit = %+v", outcome.Commit)
	}
	if outcome.Click {
		t.Fatal("a committed drag is not a click")
	}
}

func TestDragReplayPlainClick(t *testing.T) {
	path := writeTrace(t, `{
  "event": {"id": 5, "title": "Gym", "start_time": "2026-03-10T09:00:00Z", "end_time": "2026-03-10T10:00:00Z"},
  "mode": "move",
  "steps": [
    {"kind": "press", "x": 100, "y": 100},
    {"kind": "move", "x": 101, "y": 102},
    {"kind": "release"}
  ]
}`)
	out, _, err := runCommand(t, &fakeService{}, "drag", "replay", "--json", "--file", path)
	if err != nil {
		t.Fatal(err)
	}
	outcome := decodeOutcome(t, out)
	if !outcome.Click || outcome.Commit != nil {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestDragReplayModeOverride(t *testing.T) {
	path := writeTrace(t, `{
  "event": {"id": 5, "title": "Gym", "start_time": "2026-03-10T09:00:00Z", "end_time": "2026-03-10T10:00:00Z"},
  "mode": "move",
  "steps": [
    {"kind": "press", "x": 100, "y": 100},
    {"kind": "move", "x": 100, "y": 148},
    {"kind": "release"}
  ]
}`)
	out, _, err := runCommand(t, &fakeService{}, "drag", "replay", "--json",
		"--file", path, "--mode", "resize")
	if err != nil {
		t.Fatal(err)
	}
	outcome := decodeOutcome(t, out)
	if outcome.Commit == nil {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Commit.Start != "2026-03-10T09:00:00Z" || outcome.Commit.End != "2026-03-10T11:00:00Z" {
		t.Fatalf("commit = %+v", outcome.Commit)
	}
}

func TestDragReplayRejectsGeneratedRepeat(t *testing.T) {
	path := writeTrace(t, `{
  "event": {"id": 5, "start_time": "2026-03-10T09:00:00Z", "end_time": "2026-03-10T10:00:00Z", "recurrence_index": 2},
  "mode": "move",
  "steps": [{"kind": "press", "x": 100, "y": 100}, {"kind": "release"}]
}`)
	_, _, err := runCommand(t, &fakeService{}, "drag", "replay", "--file", path)
	if ExitCode(err) != 2 {
		t.Fatalf("exit = %d, want 2", ExitCode(err))
	}
}

func TestDragReplayMissingFile(t *testing.T) {
	_, _, err := runCommand(t, &fakeService{}, "drag", "replay")
	if ExitCode(err) != 2 {
		t.Fatalf("exit = %d, want 2", ExitCode(err))
	}
}
