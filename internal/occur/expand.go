package occur

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/mikaelstaldal/mycal/internal/contract"
)

// maxExpansions caps how many instances a single rule may produce so an
// unbounded rule cannot stall a render pass.
const maxExpansions = 1000

var freqMap = map[string]rrule.Frequency{
	"DAILY":   rrule.DAILY,
	"WEEKLY":  rrule.WEEKLY,
	"MONTHLY": rrule.MONTHLY,
	"YEARLY":  rrule.YEARLY,
}

var weekdayMap = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

// Expand materializes the instances of a rule-bearing anchor from the
// anchor's start through windowEnd, then keeps the ones overlapping
// [windowStart, windowEnd). Each instance is a copy of the anchor with its
// own start/end stamps and a recurrence index counted from the anchor in
// rule order; rdate-sourced instances are marked with index -1. Malformed
// recurrence fields degrade to the anchor alone rather than failing the
// view.
func Expand(ev contract.Event, windowStart, windowEnd time.Time) []contract.Event {
	rule, ok := buildRule(ev)
	if !ok {
		if overlaps(ev, windowStart, windowEnd) {
			return []contract.Event{ev}
		}
		return nil
	}

	duration, ok := anchorDuration(ev)
	if !ok {
		if overlaps(ev, windowStart, windowEnd) {
			return []contract.Event{ev}
		}
		return nil
	}

	exdates := parseStampSet(ev.ExDates)

	// Candidates are enumerated from the anchor so indexes stay stable as
	// the window moves; an exdated candidate still consumes its index.
	candidates := rule.Between(rule.OrigOptions.Dtstart, windowEnd, true)
	if len(candidates) > maxExpansions {
		candidates = candidates[:maxExpansions]
	}

	seen := make(map[int64]bool, len(candidates))
	out := make([]contract.Event, 0, len(candidates))
	for i, start := range candidates {
		seen[start.Unix()] = true
		if exdates[start.Unix()] {
			continue
		}
		end := start.Add(duration)
		if !end.After(windowStart) || !start.Before(windowEnd) {
			continue
		}
		out = append(out, instance(ev, start, end, i))
	}

	until := untilTime(ev)
	for _, rd := range splitList(ev.RDates) {
		start, err := contract.ParseStamp(rd)
		if err != nil {
			continue
		}
		if seen[start.Unix()] || exdates[start.Unix()] {
			continue
		}
		if !until.IsZero() && start.After(until) {
			continue
		}
		seen[start.Unix()] = true
		end := start.Add(duration)
		if !end.After(windowStart) || !start.Before(windowEnd) {
			continue
		}
		out = append(out, instance(ev, start, end, -1))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// buildRule maps the wire recurrence fields onto an rrule. A missing or
// unknown frequency, a negative interval, or a by-* field without a valid
// frequency all report !ok, which the caller treats as "no recurrence".
func buildRule(ev contract.Event) (*rrule.RRule, bool) {
	freq, known := freqMap[ev.RecurrenceFreq]
	if !known || ev.RecurrenceInterval < 0 {
		return nil, false
	}
	start, err := ev.StartAt()
	if err != nil {
		return nil, false
	}

	opt := rrule.ROption{
		Freq:    freq,
		Dtstart: start,
	}
	opt.Interval = ev.RecurrenceInterval
	if opt.Interval == 0 {
		opt.Interval = 1
	}
	if ev.RecurrenceCount > 0 {
		opt.Count = ev.RecurrenceCount
	}
	if u := untilTime(ev); !u.IsZero() {
		opt.Until = u
	}
	if wd, ok := parseByDay(ev.RecurrenceByDay, freq, start); ok {
		opt.Byweekday = wd
	} else if ev.RecurrenceByDay != "" {
		return nil, false
	}
	if md, ok := parseIntList(ev.RecurrenceByMonthDay, -31, 31); ok {
		opt.Bymonthday = md
	} else if ev.RecurrenceByMonthDay != "" {
		return nil, false
	}
	if bm, ok := parseIntList(ev.RecurrenceByMonth, 1, 12); ok {
		opt.Bymonth = bm
	} else if ev.RecurrenceByMonth != "" {
		return nil, false
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, false
	}
	return rule, true
}

// parseByDay parses comma-separated weekday codes, optionally prefixed with
// an ordinal like 2MO or -1FR. For MONTHLY rules a bare weekday inherits the
// anchor's ordinal-in-month, so "third Tuesday" series stay on the third
// Tuesday; a later month lacking that ordinal is skipped, not clamped.
func parseByDay(s string, freq rrule.Frequency, anchor time.Time) ([]rrule.Weekday, bool) {
	if s == "" {
		return nil, true
	}
	anchorNth := (anchor.Day()-1)/7 + 1
	var out []rrule.Weekday
	for _, part := range splitList(s) {
		if len(part) < 2 {
			return nil, false
		}
		wd, ok := weekdayMap[strings.ToUpper(part[len(part)-2:])]
		if !ok {
			return nil, false
		}
		if len(part) > 2 {
			n, err := strconv.Atoi(part[:len(part)-2])
			if err != nil || n == 0 {
				return nil, false
			}
			wd = wd.Nth(n)
		} else if freq == rrule.MONTHLY {
			wd = wd.Nth(anchorNth)
		}
		out = append(out, wd)
	}
	return out, true
}

func parseIntList(s string, lo, hi int) ([]int, bool) {
	if s == "" {
		return nil, true
	}
	var out []int
	for _, part := range splitList(s) {
		n, err := strconv.Atoi(part)
		if err != nil || n < lo || n > hi || n == 0 {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func untilTime(ev contract.Event) time.Time {
	if ev.RecurrenceUntil == "" {
		return time.Time{}
	}
	t, err := contract.ParseStamp(ev.RecurrenceUntil)
	if err != nil {
		return time.Time{}
	}
	return t
}

func anchorDuration(ev contract.Event) (time.Duration, bool) {
	start, err := ev.StartAt()
	if err != nil {
		return 0, false
	}
	if ev.EndTime != "" {
		end, err := ev.EndAt()
		if err != nil {
			return 0, false
		}
		return end.Sub(start), true
	}
	if ev.Duration != "" {
		d, err := contract.ParseISODuration(ev.Duration)
		if err != nil {
			return 0, false
		}
		return d, true
	}
	return 0, false
}

func instance(ev contract.Event, start, end time.Time, index int) contract.Event {
	inst := ev
	if ev.AllDay {
		inst.StartTime = start.Format("2006-01-02")
		inst.EndTime = end.Format("2006-01-02")
	} else {
		inst.StartTime = start.UTC().Format(time.RFC3339)
		inst.EndTime = end.UTC().Format(time.RFC3339)
	}
	inst.RecurrenceIndex = index
	return inst
}

func parseStampSet(s string) map[int64]bool {
	set := map[int64]bool{}
	for _, part := range splitList(s) {
		if t, err := contract.ParseStamp(part); err == nil {
			set[t.Unix()] = true
		}
	}
	return set
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func overlaps(ev contract.Event, windowStart, windowEnd time.Time) bool {
	start, err := ev.StartAt()
	if err != nil {
		return false
	}
	end, err := ev.EndAt()
	if err != nil {
		return false
	}
	return start.Before(windowEnd) && end.After(windowStart)
}
