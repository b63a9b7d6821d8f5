package app

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mikaelstaldal/mycal/internal/contract"
	"github.com/mikaelstaldal/mycal/internal/drag"
)

func newDragCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drag",
		Short: "Gesture state machine tools",
	}
	cmd.AddCommand(newDragReplayCmd(opts))
	return cmd
}

// newDragReplayCmd replays a recorded pointer trace through the gesture
// state machine and prints the settled outcome. UI developers use it to
// check what a captured gesture would have committed.
func newDragReplayCmd(opts *globalOptions) *cobra.Command {
	var file, mode string
	var pixelsPerHour float64
	var snap, minDuration int
	var threshold float64
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded pointer trace and print the commit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, _, _, err := buildContext(cmd, opts, "drag.replay")
			if err != nil {
				return err
			}
			raw, err := readTraceInput(file)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Pass --file with a trace path, or - for stdin", 2)
			}
			var trace drag.Trace
			if err := json.Unmarshal(raw, &trace); err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "The trace must be JSON with event, mode, and steps", 2)
			}
			if mode != "" {
				trace.Mode = mode
			}
			cfg := drag.Config{
				PixelsPerHour:      pixelsPerHour,
				SnapMinutes:        snap,
				MinDurationMinutes: minDuration,
				ArmThresholdPx:     threshold,
			}
			outcome, err := drag.Replay(trace, cfg)
			if err != nil {
				return failWithHint(p, contract.ErrInvalidUsage, err, "Check the trace's mode, steps, and target event", 2)
			}
			meta := map[string]any{"gesture_id": outcome.GestureID, "state": outcome.State}
			return p.Success(outcome, meta, nil)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Trace file path, or - for stdin")
	cmd.Flags().StringVar(&mode, "mode", "", "Override the trace's mode: move|resize|move-horizontal")
	cmd.Flags().Float64Var(&pixelsPerHour, "pixels-per-hour", 0, "Vertical scale override")
	cmd.Flags().IntVar(&snap, "snap", 0, "Snap quantum in minutes")
	cmd.Flags().IntVar(&minDuration, "min-duration", 0, "Minimum duration in minutes")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Arming threshold in pixels")
	return cmd
}

func readTraceInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	if path == "" {
		return nil, os.ErrNotExist
	}
	return os.ReadFile(path)
}
