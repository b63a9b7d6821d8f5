package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mikaelstaldal/mycal/internal/contract"
)

func TestSuccessJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{Mode: ModeJSON, Command: "events.list", Out: &buf}
	events := []contract.Event{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}}
	if err := p.Success(events, map[string]any{"count": 2}, nil); err != nil {
		t.Fatal(err)
	}
	var env map[string]any
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if env["schema_version"] != contract.SchemaVersion {
		t.Fatalf("schema_version = %v", env["schema_version"])
	}
	if env["command"] != "events.list" {
		t.Fatalf("command = %v", env["command"])
	}
	if meta := env["meta"].(map[string]any); meta["count"].(float64) != 2 {
		t.Fatalf("meta = %v", meta)
	}
}

func TestSuccessJSONLOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{Mode: ModeJSONL, Out: &buf}
	events := []contract.Event{{ID: 1}, {ID: 2}, {ID: 3}}
	if err := p.Success(events, nil, nil); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	for _, line := range lines {
		var ev contract.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
	}
}

func TestPlainFieldsProjection(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{Mode: ModePlain, Fields: []string{"id", "title", "start_time"}, Out: &buf}
	events := []contract.Event{{ID: 7, Title: "Standup", StartTime: "2026-03-09T09:00:00Z"}}
	if err := p.Success(events, nil, nil); err != nil {
		t.Fatal(err)
	}
	got := strings.TrimSpace(buf.String())
	if got != "7\tStandup\t2026-03-09T09:00:00Z" {
		t.Fatalf("plain row = %q", got)
	}
}

func TestPlainEmptySlice(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{Mode: ModePlain, Out: &buf}
	if err := p.Success([]contract.Event{}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "no results" {
		t.Fatalf("out = %q", buf.String())
	}

	buf.Reset()
	p.Quiet = true
	if err := p.Success([]contract.Event{}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("quiet mode should print nothing, got %q", buf.String())
	}
}

func TestErrorEnvelope(t *testing.T) {
	var errBuf bytes.Buffer
	p := Printer{Mode: ModeJSON, Err: &errBuf}
	if err := p.Error(contract.ErrNotFound, "event not found", "Check the ID"); err != nil {
		t.Fatal(err)
	}
	var env contract.ErrorEnvelope
	if err := json.Unmarshal(errBuf.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Error.Code != contract.ErrNotFound || env.Error.Hint != "Check the ID" {
		t.Fatalf("envelope = %+v", env)
	}

	errBuf.Reset()
	p.Mode = ModePlain
	if err := p.Error(contract.ErrGeneric, "boom", ""); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(errBuf.String()) != "error: boom" {
		t.Fatalf("plain error = %q", errBuf.String())
	}
}
