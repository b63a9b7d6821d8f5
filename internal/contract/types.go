package contract

import "time"

const SchemaVersion = "v1"

type ErrorCode string

const (
	ErrGeneric           ErrorCode = "GENERIC_FAILURE"
	ErrInvalidUsage      ErrorCode = "INVALID_USAGE"
	ErrValidation        ErrorCode = "VALIDATION_FAILURE"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrChoiceRequired    ErrorCode = "CHOICE_REQUIRED"
	ErrServerUnavailable ErrorCode = "SERVER_UNAVAILABLE"
)

type ErrorEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Error         ErrorBody      `json:"error"`
	Meta          map[string]any `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

type SuccessEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Command       string         `json:"command"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Data          any            `json:"data"`
	Meta          map[string]any `json:"meta"`
	Warnings      []string       `json:"warnings"`
}

// Kind distinguishes the three shapes an event record can arrive in. The
// server delivers them all through the same JSON object; consumers switch on
// Kind instead of probing optional fields.
type Kind int

const (
	// KindAnchor is the stored event itself: a non-recurring event or the
	// index-0 definition of a series.
	KindAnchor Kind = iota
	// KindGenerated is a repeat synthesized from a recurrence rule. It is
	// ephemeral and cannot be edited or dragged directly.
	KindGenerated
	// KindOverride is a detached record replacing one occurrence of a
	// series; it points back at the series via RecurrenceParentID.
	KindOverride
)

func (k Kind) String() string {
	switch k {
	case KindGenerated:
		return "generated"
	case KindOverride:
		return "override"
	default:
		return "anchor"
	}
}

type Event struct {
	ID                      int64    `json:"id"`
	Title                   string   `json:"title"`
	Description             string   `json:"description"`
	StartTime               string   `json:"start_time"`
	EndTime                 string   `json:"end_time"`
	AllDay                  bool     `json:"all_day"`
	Color                   string   `json:"color"`
	RecurrenceFreq          string   `json:"recurrence_freq"`
	RecurrenceInterval      int      `json:"recurrence_interval"`
	RecurrenceCount         int      `json:"recurrence_count"`
	RecurrenceUntil         string   `json:"recurrence_until"`
	RecurrenceByDay         string   `json:"recurrence_by_day"`
	RecurrenceByMonthDay    string   `json:"recurrence_by_monthday"`
	RecurrenceByMonth       string   `json:"recurrence_by_month"`
	ExDates                 string   `json:"exdates"`
	RDates                  string   `json:"rdates"`
	RecurrenceIndex         int      `json:"recurrence_index,omitempty"`
	RecurrenceParentID      *int64   `json:"recurrence_parent_id,omitempty"`
	RecurrenceOriginalStart string   `json:"recurrence_original_start,omitempty"`
	Duration                string   `json:"duration,omitempty"`
	Categories              string   `json:"categories,omitempty"`
	URL                     string   `json:"url,omitempty"`
	ReminderMinutes         int      `json:"reminder_minutes"`
	Location                string   `json:"location"`
	Latitude                *float64 `json:"latitude"`
	Longitude               *float64 `json:"longitude"`
	CreatedAt               string   `json:"created_at,omitempty"`
	UpdatedAt               string   `json:"updated_at,omitempty"`
}

func (e *Event) IsRecurring() bool {
	return e.RecurrenceFreq != ""
}

// Kind classifies the record. An override always carries a parent reference;
// a generated repeat carries a nonzero index (the server marks rdate-sourced
// repeats with -1, which still means "not the anchor").
func (e *Event) Kind() Kind {
	if e.RecurrenceParentID != nil {
		return KindOverride
	}
	if e.RecurrenceIndex != 0 {
		return KindGenerated
	}
	return KindAnchor
}

const dateOnly = "2006-01-02"

// StartDate and EndDate return the calendar-date portion of the boundaries.
// All-day membership tests compare these strings, never instants.
func (e *Event) StartDate() string { return datePart(e.StartTime) }
func (e *Event) EndDate() string   { return datePart(e.EndTime) }

func datePart(s string) string {
	if len(s) >= len(dateOnly) {
		return s[:len(dateOnly)]
	}
	return s
}

func (e *Event) StartAt() (time.Time, error) { return ParseStamp(e.StartTime) }
func (e *Event) EndAt() (time.Time, error)   { return ParseStamp(e.EndTime) }

// ParseStamp accepts the two interchange layouts: RFC 3339 instants for
// timed boundaries and plain dates (midnight UTC) for all-day boundaries.
func ParseStamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(dateOnly, s)
}

type CreateEventRequest struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	StartTime            string   `json:"start_time"`
	EndTime              string   `json:"end_time"`
	AllDay               bool     `json:"all_day"`
	Color                string   `json:"color"`
	RecurrenceFreq       string   `json:"recurrence_freq"`
	RecurrenceInterval   int      `json:"recurrence_interval"`
	RecurrenceCount      int      `json:"recurrence_count"`
	RecurrenceUntil      string   `json:"recurrence_until"`
	RecurrenceByDay      string   `json:"recurrence_by_day"`
	RecurrenceByMonthDay string   `json:"recurrence_by_monthday"`
	RecurrenceByMonth    string   `json:"recurrence_by_month"`
	ExDates              string   `json:"exdates"`
	RDates               string   `json:"rdates"`
	Duration             string   `json:"duration,omitempty"`
	Categories           string   `json:"categories,omitempty"`
	URL                  string   `json:"url,omitempty"`
	ReminderMinutes      int      `json:"reminder_minutes"`
	Location             string   `json:"location"`
	Latitude             *float64 `json:"latitude,omitempty"`
	Longitude            *float64 `json:"longitude,omitempty"`
}

// UpdateEventRequest is a partial update: nil fields are left untouched by
// the server. When an update is instance-scoped the recurrence-rule fields
// are ignored by contract; ClearRecurrence strips them client-side so an
// instance-scoped payload never carries them at all.
type UpdateEventRequest struct {
	Title                *string  `json:"title,omitempty"`
	Description          *string  `json:"description,omitempty"`
	StartTime            *string  `json:"start_time,omitempty"`
	EndTime              *string  `json:"end_time,omitempty"`
	AllDay               *bool    `json:"all_day,omitempty"`
	Color                *string  `json:"color,omitempty"`
	RecurrenceFreq       *string  `json:"recurrence_freq,omitempty"`
	RecurrenceInterval   *int     `json:"recurrence_interval,omitempty"`
	RecurrenceCount      *int     `json:"recurrence_count,omitempty"`
	RecurrenceUntil      *string  `json:"recurrence_until,omitempty"`
	RecurrenceByDay      *string  `json:"recurrence_by_day,omitempty"`
	RecurrenceByMonthDay *string  `json:"recurrence_by_monthday,omitempty"`
	RecurrenceByMonth    *string  `json:"recurrence_by_month,omitempty"`
	ExDates              *string  `json:"exdates,omitempty"`
	RDates               *string  `json:"rdates,omitempty"`
	Duration             *string  `json:"duration,omitempty"`
	Categories           *string  `json:"categories,omitempty"`
	URL                  *string  `json:"url,omitempty"`
	ReminderMinutes      *int     `json:"reminder_minutes,omitempty"`
	Location             *string  `json:"location,omitempty"`
	Latitude             *float64 `json:"latitude,omitempty"`
	Longitude            *float64 `json:"longitude,omitempty"`
}

func (r *UpdateEventRequest) ClearRecurrence() {
	r.RecurrenceFreq = nil
	r.RecurrenceInterval = nil
	r.RecurrenceCount = nil
	r.RecurrenceUntil = nil
	r.RecurrenceByDay = nil
	r.RecurrenceByMonthDay = nil
	r.RecurrenceByMonth = nil
	r.ExDates = nil
	r.RDates = nil
}

func (r *UpdateEventRequest) HasRecurrence() bool {
	return r.RecurrenceFreq != nil || r.RecurrenceInterval != nil ||
		r.RecurrenceCount != nil || r.RecurrenceUntil != nil ||
		r.RecurrenceByDay != nil || r.RecurrenceByMonthDay != nil ||
		r.RecurrenceByMonth != nil || r.ExDates != nil || r.RDates != nil
}
