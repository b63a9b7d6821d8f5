package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikaelstaldal/mycal/internal/api"
	"github.com/mikaelstaldal/mycal/internal/contract"
	"github.com/mikaelstaldal/mycal/internal/output"
)

var clientFactory = newClient

type globalOptions struct {
	JSON          bool
	JSONL         bool
	Plain         bool
	Fields        string
	Quiet         bool
	Verbose       bool
	NoColor       bool
	Profile       string
	Config        string
	Server        string
	Username      string
	Password      string
	TZ            string
	WeekStart     string
	Timeout       time.Duration
	SchemaVersion string
}

func Execute() int {
	cmd := NewRootCommand()
	err := cmd.Execute()
	if err != nil {
		renderTopLevelError(cmd, err)
	}
	return ExitCode(err)
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{
		Profile:       "default",
		Server:        "http://localhost:8080",
		WeekStart:     "monday",
		Timeout:       15 * time.Second,
		SchemaVersion: contract.SchemaVersion,
	}

	root := &cobra.Command{
		Use:           "mycal",
		Short:         "Browse and manage calendar events from terminal workflows and agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       BuildVersionString(),
	}
	root.SetVersionTemplate("mycal {{.Version}}\n")

	root.PersistentFlags().BoolVar(&opts.JSON, "json", false, "Output structured JSON")
	root.PersistentFlags().BoolVar(&opts.JSONL, "jsonl", false, "Output newline-delimited JSON")
	root.PersistentFlags().BoolVar(&opts.Plain, "plain", false, "Output stable plain text")
	root.PersistentFlags().StringVar(&opts.Fields, "fields", "", "Projected fields, comma-separated")
	root.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Reduce success output")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose diagnostics")
	root.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "Disable color output")
	root.PersistentFlags().StringVar(&opts.Profile, "profile", "default", "Config profile")
	root.PersistentFlags().StringVar(&opts.Config, "config", "", "Config file path")
	root.PersistentFlags().StringVar(&opts.Server, "server", "http://localhost:8080", "Calendar server base URL")
	root.PersistentFlags().StringVar(&opts.Username, "username", "", "Basic-auth username")
	root.PersistentFlags().StringVar(&opts.Password, "password", "", "Basic-auth password")
	root.PersistentFlags().StringVar(&opts.TZ, "tz", "", "IANA timezone for anchors and output")
	root.PersistentFlags().StringVar(&opts.WeekStart, "week-start", "monday", "First day of the week: monday|sunday")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 15*time.Second, "Server call timeout (e.g. 10s, 1m, 0 to disable)")
	root.PersistentFlags().StringVar(&opts.SchemaVersion, "schema-version", contract.SchemaVersion, "Output schema version")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newViewCmd(opts))
	root.AddCommand(newEventsCmd(opts))
	root.AddCommand(newDragCmd(opts))
	root.AddCommand(newCompletionCmd(root))

	return root
}

func buildContext(cmd *cobra.Command, opts *globalOptions, command string) (output.Printer, api.Service, *globalOptions, error) {
	resolved, err := resolveGlobalOptions(cmd, opts)
	if err != nil {
		return output.Printer{}, nil, nil, Wrap(2, err)
	}
	if conflictCount(resolved.JSON, resolved.JSONL, resolved.Plain) > 1 {
		return output.Printer{}, nil, nil, Wrap(2, errors.New("--json, --jsonl, and --plain are mutually exclusive"))
	}
	mode := output.ModeAuto
	if resolved.JSON {
		mode = output.ModeJSON
	} else if resolved.JSONL {
		mode = output.ModeJSONL
	} else if resolved.Plain {
		mode = output.ModePlain
	}

	printer := output.Printer{
		Mode:          mode,
		Command:       command,
		Fields:        splitCSV(resolved.Fields),
		Quiet:         resolved.Quiet,
		NoColor:       resolved.NoColor,
		SchemaVersion: resolved.SchemaVersion,
		Out:           cmd.OutOrStdout(),
		Err:           cmd.ErrOrStderr(),
	}

	svc := clientFactory(resolved)
	if resolved.Verbose {
		_, _ = fmt.Fprintf(printer.Err, "mycal: command=%s server=%s mode=%s tz=%s profile=%s timeout=%s\n",
			command, resolved.Server, mode, resolved.TZ, resolved.Profile, resolved.Timeout)
	}
	return printer, svc, resolved, nil
}

func newClient(ro *globalOptions) api.Service {
	return api.NewClient(api.Config{
		BaseURL:  ro.Server,
		Username: ro.Username,
		Password: ro.Password,
		Timeout:  ro.Timeout,
	})
}

func commandContext(ro *globalOptions) (context.Context, context.CancelFunc) {
	if ro == nil || ro.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), ro.Timeout)
}

func renderTopLevelError(cmd *cobra.Command, err error) {
	var appErr AppError
	if errors.As(err, &appErr) && appErr.Printed {
		return
	}
	if wantsStructuredErrorOutput(os.Args[1:]) {
		printer := output.Printer{
			Mode:          output.ModeJSON,
			SchemaVersion: contract.SchemaVersion,
			Err:           cmd.ErrOrStderr(),
		}
		_ = printer.Error(errorCodeForExit(ExitCode(err)), err.Error(), "")
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err.Error())
}

func wantsStructuredErrorOutput(args []string) bool {
	for _, arg := range args {
		switch {
		case arg == "--":
			return false
		case arg == "--json", arg == "--jsonl":
			return true
		case strings.HasPrefix(arg, "--json="), strings.HasPrefix(arg, "--jsonl="):
			return true
		}
	}
	return false
}

func errorCodeForExit(code int) contract.ErrorCode {
	switch code {
	case 2:
		return contract.ErrInvalidUsage
	case 4:
		return contract.ErrNotFound
	case 5:
		return contract.ErrValidation
	case 6:
		return contract.ErrServerUnavailable
	case 7:
		return contract.ErrChoiceRequired
	default:
		return contract.ErrGeneric
	}
}

// failService maps a storage-collaborator error onto the printer and exit
// code contract: 404 is not-found, 400 is a validation failure, 5xx and
// transport errors mean the server is unavailable.
func failService(p output.Printer, err error) error {
	var se *api.ServerError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusNotFound:
			return failWithHint(p, contract.ErrNotFound, err, "Check the ID with `mycal events list --fields id,title,start_time`", 4)
		case se.StatusCode == http.StatusBadRequest:
			return failWithHint(p, contract.ErrValidation, err, "Fix the rejected field and retry", 5)
		case se.StatusCode >= 500:
			return failWithHint(p, contract.ErrServerUnavailable, err, "Check the calendar server and --server URL", 6)
		default:
			return failWithHint(p, contract.ErrGeneric, err, "", 1)
		}
	}
	return failWithHint(p, contract.ErrServerUnavailable, err, "Check the calendar server and --server URL", 6)
}

func failWithHint(printer output.Printer, code contract.ErrorCode, err error, hint string, exitCode int) error {
	if err == nil {
		err = errors.New("unknown error")
	}
	_ = printer.Error(code, err.Error(), hint)
	return Wrap(exitCode, err)
}

func resolveLocation(tz string) *time.Location {
	if strings.TrimSpace(tz) != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

func parseWeekStart(v string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "monday", "mon":
		return time.Monday, nil
	case "sunday", "sun":
		return time.Sunday, nil
	default:
		return time.Monday, fmt.Errorf("invalid --week-start: %s", v)
	}
}

func conflictCount(vals ...bool) int {
	total := 0
	for _, v := range vals {
		if v {
			total++
		}
	}
	return total
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
