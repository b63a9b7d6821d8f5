package occur

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mikaelstaldal/mycal/internal/contract"
	"github.com/mikaelstaldal/mycal/internal/timeparse"
)

type ViewKind int

const (
	ViewDay ViewKind = iota
	ViewWeek
	ViewMonth
	ViewYear
)

func (v ViewKind) String() string {
	switch v {
	case ViewDay:
		return "day"
	case ViewWeek:
		return "week"
	case ViewMonth:
		return "month"
	case ViewYear:
		return "year"
	}
	return "unknown"
}

func ParseViewKind(s string) (ViewKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day":
		return ViewDay, nil
	case "week":
		return ViewWeek, nil
	case "month":
		return ViewMonth, nil
	case "year":
		return ViewYear, nil
	default:
		return ViewDay, fmt.Errorf("invalid view: %s", s)
	}
}

// PaddedRange is the range the storage collaborator should be asked for so
// chips near the window edges stay visible: a week either side of month and
// year boundaries, a day either side of day and week boundaries.
func PaddedRange(view ViewKind, anchor time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	switch view {
	case ViewWeek:
		ws, we := timeparse.WeekWindow(anchor, weekStart)
		return ws.AddDate(0, 0, -1), we.AddDate(0, 0, 1)
	case ViewMonth:
		ms, me := timeparse.MonthWindow(anchor)
		return ms.AddDate(0, 0, -7), me.AddDate(0, 0, 7)
	case ViewYear:
		ys, ye := timeparse.YearWindow(anchor)
		return ys.AddDate(0, 0, -7), ye.AddDate(0, 0, 7)
	default:
		ds, de := timeparse.DayWindow(anchor)
		return ds.AddDate(0, 0, -1), de.AddDate(0, 0, 1)
	}
}

// Window returns the visible [start, end) window for a view around anchor.
func Window(view ViewKind, anchor time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	switch view {
	case ViewWeek:
		return timeparse.WeekWindow(anchor, weekStart)
	case ViewMonth:
		return timeparse.MonthWindow(anchor)
	case ViewYear:
		return timeparse.YearWindow(anchor)
	default:
		return timeparse.DayWindow(anchor)
	}
}

// Occurrence is one placement of an event instance on one calendar day.
// Multi-day instances are placed once per visible day, the way every view
// renders them. Event carries the instance's own wire stamps; Start and End
// are the effective instants for the placement (clipped to the day for
// day/week slot layout).
type Occurrence struct {
	Event  contract.Event
	Index  int
	Day    string
	AllDay bool
	Start  time.Time
	End    time.Time
}

// Resolve turns the events fetched for a (padded) range into the concrete
// per-day occurrences visible in [windowStart, windowEnd). It never
// re-fetches: rule-bearing anchors are expanded in memory unless the input
// already contains their server-expanded repeats, and everything else is
// filtered by the membership tests. All-day membership compares calendar
// dates with an exclusive end; timed membership uses interval overlap.
func Resolve(events []contract.Event, windowStart, windowEnd time.Time, view ViewKind) []Occurrence {
	expanded := make(map[int64]bool)
	for _, ev := range events {
		if ev.RecurrenceIndex != 0 {
			expanded[ev.ID] = true
		}
	}

	var instances []contract.Event
	for _, ev := range events {
		if ev.Kind() == contract.KindAnchor && ev.IsRecurring() && !expanded[ev.ID] {
			instances = append(instances, Expand(ev, windowStart, windowEnd)...)
			continue
		}
		instances = append(instances, ev)
	}

	var out []Occurrence
	for day := dayFloor(windowStart); day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
		dayStart, dayEnd := timeparse.DayWindow(day)
		for _, inst := range instances {
			occ, ok := placeOnDay(inst, day, dayStart, dayEnd, view)
			if ok {
				out = append(out, occ)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.Event.ID < b.Event.ID
	})
	return out
}

// placeOnDay applies the membership tests for one instance against one day.
// All-day instances compare date strings, never instants, so a timezone
// offset cannot shift them across midnight.
func placeOnDay(inst contract.Event, day, dayStart, dayEnd time.Time, view ViewKind) (Occurrence, bool) {
	dayStr := timeparse.DateString(day)

	if inst.AllDay {
		if dayStr < inst.StartDate() || dayStr >= inst.EndDate() {
			return Occurrence{}, false
		}
		return Occurrence{
			Event:  inst,
			Index:  inst.RecurrenceIndex,
			Day:    dayStr,
			AllDay: true,
			Start:  dayStart,
			End:    dayEnd,
		}, true
	}

	start, err := inst.StartAt()
	if err != nil {
		return Occurrence{}, false
	}
	end, err := inst.EndAt()
	if err != nil {
		return Occurrence{}, false
	}
	if !start.Before(dayEnd) || !end.After(dayStart) {
		return Occurrence{}, false
	}

	occ := Occurrence{
		Event: inst,
		Index: inst.RecurrenceIndex,
		Day:   dayStr,
		Start: start,
		End:   end,
	}
	// Day and week slot layout positions blocks inside a single column, so
	// spans crossing midnight are clipped to the day.
	if view == ViewDay || view == ViewWeek {
		if occ.Start.Before(dayStart) {
			occ.Start = dayStart
		}
		if occ.End.After(dayEnd) {
			occ.End = dayEnd
		}
	}
	return occ, true
}

// DayOccurrences groups one day's placements into the all-day row and the
// timed slots.
type DayOccurrences struct {
	Day    string
	AllDay []Occurrence
	Timed  []Occurrence
}

// Days buckets resolved occurrences per calendar day, preserving order.
func Days(occs []Occurrence) []DayOccurrences {
	var out []DayOccurrences
	byDay := map[string]int{}
	for _, occ := range occs {
		idx, ok := byDay[occ.Day]
		if !ok {
			idx = len(out)
			byDay[occ.Day] = idx
			out = append(out, DayOccurrences{Day: occ.Day})
		}
		if occ.AllDay {
			out[idx].AllDay = append(out[idx].AllDay, occ)
		} else {
			out[idx].Timed = append(out[idx].Timed, occ)
		}
	}
	return out
}

func dayFloor(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
