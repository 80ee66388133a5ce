package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vk/rxcropmaturity/internal/app"
)

// Exit codes.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

func failure(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: ExitFailure, Message: err.Error()}
}

// AppFactory builds an App from a validated configuration.
type AppFactory func(outW io.Writer, cfg *app.Config) (*app.App, error)

type rootOptions struct {
	configPaths []string
	workDir     string
	logFormat   string
	logLevel    string
}

func (o *rootOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&o.configPaths, "config", "c", nil, "Path to an .hcl file or a directory of .hcl files (repeatable).")
	fs.StringVar(&o.workDir, "workdir", "", "Directory a relative case root is resolved against (default: current directory).")
	fs.StringVar(&o.logFormat, "log-format", "json", "Log output format. Options: 'text' or 'json'.")
	fs.StringVar(&o.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
}

// config validates the flags shared by all subcommands.
func (o *rootOptions) config(summaryPath string) (*app.Config, error) {
	cfg, err := app.NewConfig(app.Config{
		ConfigPaths: o.configPaths,
		WorkDir:     o.workDir,
		SummaryPath: summaryPath,
		LogFormat:   strings.ToLower(o.logFormat),
		LogLevel:    strings.ToLower(o.logLevel),
	})
	if err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

// NewRootCommand builds the command tree. Logs and command output go to outW.
func NewRootCommand(outW io.Writer, newApp AppFactory) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "rxcropmaturity",
		Short: "Run the prescribed crop maturity system test",
		Long: `rxcropmaturity checks that crops reach maturity under prescribed sowing
dates and maturity requirements.

It clones the configured case, runs it to generate growing degree-day
(GDD) requirements, derives the requirements file, then runs the original
case with prescribed calendars and validates the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	opts.addFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCommand(outW, opts, newApp),
		newValidateCommand(outW, opts, newApp),
		newCalendarsCommand(outW, opts, newApp),
	)
	return root
}

// Execute runs the command tree with args. Every returned error is an
// *ExitError.
func Execute(ctx context.Context, outW io.Writer, args []string, newApp AppFactory) error {
	root := NewRootCommand(outW, newApp)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr
		}
		// Unknown subcommands and argument count errors come from cobra.
		return usageError(err)
	}
	return nil
}

func newRunCommand(outW io.Writer, opts *rootOptions, newApp AppFactory) *cobra.Command {
	var summaryPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full test against the configured case",
		Long: `Run the full test against the configured case.

Examples:
  rxcropmaturity run -c rxcropmaturity.hcl
  rxcropmaturity run -c config/ --summary out/summary.yaml --log-format text`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(summaryPath)
			if err != nil {
				return err
			}
			if len(cfg.ConfigPaths) == 0 {
				return usageError(errors.New("run requires --config"))
			}
			a, err := newApp(outW, cfg)
			if err != nil {
				return failure(err)
			}
			st, err := a.Run(cmd.Context())
			if err != nil {
				return failure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PASS: %s (maturity requirements: %s)\n", st.BaseRoot, st.GddsFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&summaryPath, "summary", "", "Write a YAML summary of the run to this path.")
	return cmd
}

func newValidateCommand(outW io.Writer, opts *rootOptions, newApp AppFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check run length and calendar files without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config("")
			if err != nil {
				return err
			}
			if len(cfg.ConfigPaths) == 0 {
				return usageError(errors.New("validate requires --config"))
			}
			a, err := newApp(outW, cfg)
			if err != nil {
				return failure(err)
			}
			st, err := a.Validate(cmd.Context())
			if err != nil {
				return failure(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s runs %d years; seasons %d-%d\n",
				st.BaseRoot, st.Length.Years, st.FirstSeason(), st.LastSeason())
			return nil
		},
	}
}

func newCalendarsCommand(outW io.Writer, opts *rootOptions, newApp AppFactory) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "calendars [resolution]",
		Short: "Show the sowing and harvest date files for a resolution",
		Long: `Show the sowing and harvest date files for a resolution, or for every
supported resolution when none is given. Calendar blocks in --config replace
the built-in table.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config("")
			if err != nil {
				return err
			}
			a, err := newApp(outW, cfg)
			if err != nil {
				return failure(err)
			}

			resolutions := a.Calendars().Resolutions()
			if len(args) == 1 {
				resolutions = args[:1]
			}
			w := cmd.OutOrStdout()
			for _, res := range resolutions {
				files, err := a.ResolveCalendar(res, check)
				if err != nil {
					return failure(err)
				}
				fmt.Fprintf(w, "%s\n  sowing:  %s\n  harvest: %s\n", res, files.Sowing, files.Harvest)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Fail if a calendar file does not exist.")
	return cmd
}
