package app

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mikaelstaldal/mycal/internal/contract"
	"github.com/mikaelstaldal/mycal/internal/occur"
	"github.com/mikaelstaldal/mycal/internal/timeparse"
)

// occurrenceRow is the wire shape of one resolved placement. Start and end
// are the effective instants for the day, so a multi-day timed event shows
// its clipped bounds in day and week views.
type occurrenceRow struct {
	Day       string `json:"day"`
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	AllDay    bool   `json:"all_day,omitempty"`
	Index     int    `json:"recurrence_index,omitempty"`
	Color     string `json:"color,omitempty"`
}

type daySummary struct {
	Date   string `json:"date"`
	Total  int    `json:"total"`
	AllDay int    `json:"all_day"`
	Timed  int    `json:"timed"`
}

func newViewCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Resolve and list the occurrences visible in a calendar window",
	}
	cmd.AddCommand(newViewKindCmd(opts, occur.ViewDay, "List the occurrences of one day"))
	cmd.AddCommand(newViewKindCmd(opts, occur.ViewWeek, "List the occurrences of one week"))
	cmd.AddCommand(newViewKindCmd(opts, occur.ViewMonth, "List the occurrences of one month"))
	cmd.AddCommand(newViewKindCmd(opts, occur.ViewYear, "List the occurrences of one year"))
	return cmd
}

func newViewKindCmd(opts *globalOptions, view occur.ViewKind, short string) *cobra.Command {
	var of string
	var summary bool
	cmd := &cobra.Command{
		Use:   view.String(),
		Short: short,
		RunE: func(c *cobra.Command, _ []string) error {
			p, svc, ro, err := buildContext(c, opts, "view."+view.String())
			if err != nil {
				return err
			}
			loc := resolveLocation(ro.TZ)
			anchor, err := timeparse.ParseDateTime(of, time.Now(), loc)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use --of as today, tomorrow, +Nd, or YYYY-MM-DD", 2)
			}
			ws, err := parseWeekStart(ro.WeekStart)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Use --week-start monday|sunday", 2)
			}

			ctx, cancel := commandContext(ro)
			defer cancel()
			fetchFrom, fetchTo := occur.PaddedRange(view, anchor, ws)
			events, err := svc.ListEvents(ctx, fetchFrom, fetchTo)
			if err != nil {
				return failService(p, err)
			}

			winStart, winEnd := occur.Window(view, anchor, ws)
			occs := occur.Resolve(events, winStart, winEnd, view)
			meta := map[string]any{
				"view":         view.String(),
				"window_start": winStart.Format(time.RFC3339),
				"window_end":   winEnd.Format(time.RFC3339),
			}
			if summary {
				rows := summarizeByDay(occs, winStart, winEnd)
				meta["count"] = len(rows)
				meta["summary"] = true
				return p.Success(rows, meta, nil)
			}
			rows := occurrenceRows(occs)
			meta["count"] = len(rows)
			return p.Success(rows, meta, nil)
		},
	}
	cmd.Flags().StringVar(&of, "of", "today", "Anchor day selector")
	cmd.Flags().BoolVar(&summary, "summary", false, "Per-day counts instead of occurrences")
	return cmd
}

func occurrenceRows(occs []occur.Occurrence) []occurrenceRow {
	rows := make([]occurrenceRow, 0, len(occs))
	for _, o := range occs {
		row := occurrenceRow{
			Day:    o.Day,
			ID:     o.Event.ID,
			Title:  o.Event.Title,
			AllDay: o.AllDay,
			Index:  o.Index,
			Color:  o.Event.Color,
		}
		if o.AllDay {
			row.StartTime = o.Event.StartTime
			row.EndTime = o.Event.EndTime
		} else {
			row.StartTime = o.Start.UTC().Format(time.RFC3339)
			row.EndTime = o.End.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return rows
}

// summarizeByDay emits one row per day of the window, zero counts included,
// so consumers can render a complete grid without re-deriving the window.
func summarizeByDay(occs []occur.Occurrence, winStart, winEnd time.Time) []daySummary {
	buckets := map[string]*daySummary{}
	for _, o := range occs {
		row, ok := buckets[o.Day]
		if !ok {
			row = &daySummary{Date: o.Day}
			buckets[o.Day] = row
		}
		row.Total++
		if o.AllDay {
			row.AllDay++
		} else {
			row.Timed++
		}
	}

	var rows []daySummary
	for d := winStart; d.Before(winEnd); d = d.AddDate(0, 0, 1) {
		key := timeparse.DateString(d)
		if row, ok := buckets[key]; ok {
			rows = append(rows, *row)
			continue
		}
		rows = append(rows, daySummary{Date: key})
	}
	return rows
}
