package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikaelstaldal/mycal/internal/contract"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Username: "alice", Password: "secret"})
}

func TestListEventsSendsWindow(t *testing.T) {
	var gotFrom, gotTo string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotFrom = r.URL.Query().Get("from")
		gotTo = r.URL.Query().Get("to")
		if user, pass, ok := r.BasicAuth(); !ok || user != "alice" || pass != "secret" {
			t.Errorf("basic auth not sent")
		}
		json.NewEncoder(w).Encode([]contract.Event{{ID: 1, Title: "A"}})
	})

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC)
	events, err := c.ListEvents(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if gotFrom != "2026-03-01T00:00:00Z" || gotTo != "2026-04-08T00:00:00Z" {
		t.Fatalf("window = %s..%s", gotFrom, gotTo)
	}
	if len(events) != 1 || events[0].Title != "A" {
		t.Fatalf("events = %+v", events)
	}
}

func TestUpdateEventInstanceScoping(t *testing.T) {
	var gotInstance, gotRequestID string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v1/events/7" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		gotInstance = r.URL.Query().Get("instance_start")
		gotRequestID = r.Header.Get("X-Request-Id")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(contract.Event{ID: 7, Title: "Moved"})
	})

	title := "Moved"
	req := contract.UpdateEventRequest{Title: &title}
	ev, err := c.UpdateEvent(context.Background(), 7, req, "2026-03-16T18:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Title != "Moved" {
		t.Fatalf("event = %+v", ev)
	}
	if gotInstance != "2026-03-16T18:00:00Z" {
		t.Fatalf("instance_start = %q", gotInstance)
	}
	if gotRequestID == "" {
		t.Fatal("mutations must carry X-Request-Id")
	}
	if _, present := gotBody["recurrence_freq"]; present {
		t.Fatal("unset pointer fields must be omitted from the payload")
	}
	if gotBody["title"] != "Moved" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestUpdateEventSeriesOmitsInstanceParam(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("instance_start") {
			t.Errorf("series update must not carry instance_start")
		}
		json.NewEncoder(w).Encode(contract.Event{ID: 7})
	})
	if _, err := c.UpdateEvent(context.Background(), 7, contract.UpdateEventRequest{}, ""); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteEventInstanceScoping(t *testing.T) {
	var gotInstance string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/v1/events/9" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		gotInstance = r.URL.Query().Get("instance_start")
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.DeleteEvent(context.Background(), 9, "2026-03-16T18:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if gotInstance != "2026-03-16T18:00:00Z" {
		t.Fatalf("instance_start = %q", gotInstance)
	}
}

func TestServerErrorMessageSurfaces(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "title too long"})
	})
	_, err := c.CreateEvent(context.Background(), contract.CreateEventRequest{Title: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	se, ok := err.(*ServerError)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if se.StatusCode != http.StatusBadRequest || se.Message != "title too long" {
		t.Fatalf("server error = %+v", se)
	}
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"event not found"}`, http.StatusNotFound)
	})
	_, err := c.GetEvent(context.Background(), 123)
	if !NotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if NotFound(nil) {
		t.Fatal("nil is not not-found")
	}
}
