package contract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	maxTitleLen           = 500
	maxDescriptionLen     = 10000
	maxLocationLen        = 500
	maxCategoriesLen      = 500
	maxURLLen             = 2000
	maxReminderMinutes    = 40320
	maxRecurrenceCount    = 1000
	maxRecurrenceInterval = 999
	maxRecurrenceListLen  = 5000
	maxEventDuration      = 366 * 24 * time.Hour
)

var validFreqs = map[string]bool{
	"":        true,
	"DAILY":   true,
	"WEEKLY":  true,
	"MONTHLY": true,
	"YEARLY":  true,
}

var validWeekdayCodes = map[string]bool{
	"SU": true, "MO": true, "TU": true, "WE": true,
	"TH": true, "FR": true, "SA": true,
}

// Validate checks an outgoing create payload against the server's limits so
// obviously bad requests fail before any network round trip. All-day events
// use plain dates with an exclusive end; a missing or equal end defaults to
// the next day.
func (r *CreateEventRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(r.Title) > maxTitleLen {
		return fmt.Errorf("title must be at most %d characters", maxTitleLen)
	}
	if len(r.Description) > maxDescriptionLen {
		return fmt.Errorf("description must be at most %d characters", maxDescriptionLen)
	}
	if len(r.Location) > maxLocationLen {
		return fmt.Errorf("location must be at most %d characters", maxLocationLen)
	}
	if len(r.Categories) > maxCategoriesLen {
		return fmt.Errorf("categories must be at most %d characters", maxCategoriesLen)
	}
	if err := validateURL(r.URL); err != nil {
		return err
	}
	if r.StartTime == "" {
		return fmt.Errorf("start_time is required")
	}
	if r.Duration != "" && r.EndTime != "" {
		return fmt.Errorf("use either duration or end_time, not both")
	}
	if r.Duration != "" {
		d, err := ParseISODuration(r.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		end, err := endFromDuration(r.StartTime, d, r.AllDay)
		if err != nil {
			return err
		}
		r.EndTime = end
	}
	if r.AllDay {
		if err := r.validateAllDayRange(); err != nil {
			return err
		}
	} else {
		if err := r.validateTimedRange(); err != nil {
			return err
		}
	}
	if err := validateRecurrence(r.RecurrenceFreq, r.RecurrenceCount, r.RecurrenceUntil,
		r.RecurrenceInterval, r.RecurrenceByDay, r.RecurrenceByMonthDay, r.RecurrenceByMonth,
		r.ExDates, r.RDates); err != nil {
		return err
	}
	if r.ReminderMinutes < 0 || r.ReminderMinutes > maxReminderMinutes {
		return fmt.Errorf("reminder_minutes must be between 0 and %d", maxReminderMinutes)
	}
	return validateCoordinates(r.Latitude, r.Longitude)
}

func (r *CreateEventRequest) validateAllDayRange() error {
	start, err := time.Parse(dateOnly, r.StartTime)
	if err != nil {
		return fmt.Errorf("start_time must be YYYY-MM-DD for all-day events")
	}
	if r.EndTime == "" || r.EndTime == r.StartTime {
		r.EndTime = start.AddDate(0, 0, 1).Format(dateOnly)
		return nil
	}
	end, err := time.Parse(dateOnly, r.EndTime)
	if err != nil {
		return fmt.Errorf("end_time must be YYYY-MM-DD for all-day events")
	}
	if end.Before(start) {
		return fmt.Errorf("end_time must not be before start_time")
	}
	if end.Sub(start) > maxEventDuration {
		return fmt.Errorf("event duration must not exceed 366 days")
	}
	return nil
}

func (r *CreateEventRequest) validateTimedRange() error {
	if r.EndTime == "" {
		return fmt.Errorf("end_time is required")
	}
	start, err := time.Parse(time.RFC3339, r.StartTime)
	if err != nil {
		return fmt.Errorf("start_time must be RFC 3339")
	}
	end, err := time.Parse(time.RFC3339, r.EndTime)
	if err != nil {
		return fmt.Errorf("end_time must be RFC 3339")
	}
	if !end.After(start) {
		return fmt.Errorf("end_time must be after start_time")
	}
	if end.Sub(start) > maxEventDuration {
		return fmt.Errorf("event duration must not exceed 366 days")
	}
	return nil
}

func endFromDuration(start string, d time.Duration, allDay bool) (string, error) {
	if allDay {
		s, err := time.Parse(dateOnly, start)
		if err != nil {
			return "", fmt.Errorf("start_time must be YYYY-MM-DD for all-day events")
		}
		return s.Add(d).Format(dateOnly), nil
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return "", fmt.Errorf("start_time must be RFC 3339")
	}
	return s.Add(d).Format(time.RFC3339), nil
}

// Validate checks an outgoing partial update the same way.
func (r *UpdateEventRequest) Validate() error {
	if r.Title != nil {
		if strings.TrimSpace(*r.Title) == "" {
			return fmt.Errorf("title cannot be empty")
		}
		if len(*r.Title) > maxTitleLen {
			return fmt.Errorf("title must be at most %d characters", maxTitleLen)
		}
	}
	if r.Description != nil && len(*r.Description) > maxDescriptionLen {
		return fmt.Errorf("description must be at most %d characters", maxDescriptionLen)
	}
	if r.Location != nil && len(*r.Location) > maxLocationLen {
		return fmt.Errorf("location must be at most %d characters", maxLocationLen)
	}
	if r.Categories != nil && len(*r.Categories) > maxCategoriesLen {
		return fmt.Errorf("categories must be at most %d characters", maxCategoriesLen)
	}
	if r.URL != nil {
		if err := validateURL(*r.URL); err != nil {
			return err
		}
	}
	if r.Duration != nil && *r.Duration != "" {
		if _, err := ParseISODuration(*r.Duration); err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
	}
	allDay := r.AllDay != nil && *r.AllDay
	if err := validateStampField(r.StartTime, "start_time", allDay); err != nil {
		return err
	}
	if err := validateStampField(r.EndTime, "end_time", allDay); err != nil {
		return err
	}
	if r.StartTime != nil && r.EndTime != nil && !allDay {
		s, err1 := time.Parse(time.RFC3339, *r.StartTime)
		e, err2 := time.Parse(time.RFC3339, *r.EndTime)
		if err1 == nil && err2 == nil {
			if !e.After(s) {
				return fmt.Errorf("end_time must be after start_time")
			}
			if e.Sub(s) > maxEventDuration {
				return fmt.Errorf("event duration must not exceed 366 days")
			}
		}
	}
	if r.RecurrenceFreq != nil && !validFreqs[*r.RecurrenceFreq] {
		return fmt.Errorf("recurrence_freq must be one of: DAILY, WEEKLY, MONTHLY, YEARLY")
	}
	if r.RecurrenceCount != nil && (*r.RecurrenceCount < 0 || *r.RecurrenceCount > maxRecurrenceCount) {
		return fmt.Errorf("recurrence_count must be between 0 and %d", maxRecurrenceCount)
	}
	if r.RecurrenceUntil != nil && *r.RecurrenceUntil != "" {
		if _, err := time.Parse(time.RFC3339, *r.RecurrenceUntil); err != nil {
			return fmt.Errorf("recurrence_until must be RFC 3339")
		}
	}
	if r.RecurrenceInterval != nil && (*r.RecurrenceInterval < 0 || *r.RecurrenceInterval > maxRecurrenceInterval) {
		return fmt.Errorf("recurrence_interval must be between 0 and %d", maxRecurrenceInterval)
	}
	if r.RecurrenceByDay != nil {
		if err := validateByDay(*r.RecurrenceByDay); err != nil {
			return err
		}
	}
	if r.RecurrenceByMonthDay != nil {
		if err := validateByMonthDay(*r.RecurrenceByMonthDay); err != nil {
			return err
		}
	}
	if r.RecurrenceByMonth != nil {
		if err := validateByMonth(*r.RecurrenceByMonth); err != nil {
			return err
		}
	}
	if r.ExDates != nil {
		if err := validateDateList(*r.ExDates, "exdates"); err != nil {
			return err
		}
	}
	if r.RDates != nil {
		if err := validateDateList(*r.RDates, "rdates"); err != nil {
			return err
		}
	}
	if r.ReminderMinutes != nil && (*r.ReminderMinutes < 0 || *r.ReminderMinutes > maxReminderMinutes) {
		return fmt.Errorf("reminder_minutes must be between 0 and %d", maxReminderMinutes)
	}
	return validateCoordinates(r.Latitude, r.Longitude)
}

func validateStampField(v *string, name string, allDay bool) error {
	if v == nil {
		return nil
	}
	if allDay {
		if _, err := time.Parse(dateOnly, *v); err != nil {
			return fmt.Errorf("%s must be YYYY-MM-DD for all-day events", name)
		}
		return nil
	}
	if _, err := ParseStamp(*v); err != nil {
		return fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", name)
	}
	return nil
}

func validateRecurrence(freq string, count int, until string, interval int, byDay, byMonthDay, byMonth, exDates, rDates string) error {
	if !validFreqs[freq] {
		return fmt.Errorf("recurrence_freq must be one of: DAILY, WEEKLY, MONTHLY, YEARLY")
	}
	if interval < 0 || interval > maxRecurrenceInterval {
		return fmt.Errorf("recurrence_interval must be between 0 and %d", maxRecurrenceInterval)
	}
	if count < 0 || count > maxRecurrenceCount {
		return fmt.Errorf("recurrence_count must be between 0 and %d", maxRecurrenceCount)
	}
	if count > 0 && until != "" {
		return fmt.Errorf("recurrence_count and recurrence_until are mutually exclusive")
	}
	if until != "" {
		if _, err := time.Parse(time.RFC3339, until); err != nil {
			return fmt.Errorf("recurrence_until must be RFC 3339")
		}
	}
	if freq == "" {
		if count > 0 || until != "" || interval > 0 || byDay != "" || byMonthDay != "" || byMonth != "" || exDates != "" || rDates != "" {
			return fmt.Errorf("recurrence fields require recurrence_freq to be set")
		}
		return nil
	}
	if err := validateByDay(byDay); err != nil {
		return err
	}
	if err := validateByMonthDay(byMonthDay); err != nil {
		return err
	}
	if err := validateByMonth(byMonth); err != nil {
		return err
	}
	if err := validateDateList(exDates, "exdates"); err != nil {
		return err
	}
	return validateDateList(rDates, "rdates")
}

func validateByDay(s string) error {
	if s == "" {
		return nil
	}
	if len(s) > maxRecurrenceListLen {
		return fmt.Errorf("recurrence_by_day must be at most %d characters", maxRecurrenceListLen)
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 2 {
			return fmt.Errorf("recurrence_by_day contains invalid entry: %q", part)
		}
		if !validWeekdayCodes[part[len(part)-2:]] {
			return fmt.Errorf("recurrence_by_day contains invalid weekday: %q", part[len(part)-2:])
		}
		if len(part) > 2 {
			offset, err := strconv.Atoi(part[:len(part)-2])
			if err != nil {
				return fmt.Errorf("recurrence_by_day contains invalid offset: %q", part[:len(part)-2])
			}
			if offset == 0 || offset < -53 || offset > 53 {
				return fmt.Errorf("recurrence_by_day offset must be between -53 and 53, not zero")
			}
		}
	}
	return nil
}

func validateByMonthDay(s string) error {
	if s == "" {
		return nil
	}
	if len(s) > maxRecurrenceListLen {
		return fmt.Errorf("recurrence_by_monthday must be at most %d characters", maxRecurrenceListLen)
	}
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("recurrence_by_monthday contains invalid number: %q", part)
		}
		if n == 0 || n < -31 || n > 31 {
			return fmt.Errorf("recurrence_by_monthday values must be between -31 and 31, not zero")
		}
	}
	return nil
}

func validateByMonth(s string) error {
	if s == "" {
		return nil
	}
	if len(s) > maxRecurrenceListLen {
		return fmt.Errorf("recurrence_by_month must be at most %d characters", maxRecurrenceListLen)
	}
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("recurrence_by_month contains invalid number: %q", part)
		}
		if n < 1 || n > 12 {
			return fmt.Errorf("recurrence_by_month values must be between 1 and 12")
		}
	}
	return nil
}

func validateDateList(s, field string) error {
	if s == "" {
		return nil
	}
	if len(s) > maxRecurrenceListLen {
		return fmt.Errorf("%s must be at most %d characters", field, maxRecurrenceListLen)
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := time.Parse(time.RFC3339, part); err != nil {
			return fmt.Errorf("%s contains invalid RFC 3339 datetime: %q", field, part)
		}
	}
	return nil
}

func validateURL(u string) error {
	if u == "" {
		return nil
	}
	if len(u) > maxURLLen {
		return fmt.Errorf("url must be at most %d characters", maxURLLen)
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("url must start with http:// or https://")
	}
	return nil
}

func validateCoordinates(lat, lon *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if lon != nil && (*lon < -180 || *lon > 180) {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}
