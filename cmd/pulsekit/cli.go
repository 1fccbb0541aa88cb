package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/pulsekit/internal/config"
	"github.com/hpungsan/pulsekit/internal/db"
	"github.com/hpungsan/pulsekit/internal/errors"
	"github.com/hpungsan/pulsekit/internal/mcp"
	"github.com/hpungsan/pulsekit/internal/ops"
	"github.com/hpungsan/pulsekit/internal/web"
)

// newCLIApp creates the CLI application with all commands. root is the
// project root holding .pulsekit; an empty root disables the run ledger.
func newCLIApp(cfg *config.Config, root string) *cli.App {
	app := &cli.App{
		Name:    "pulsekit",
		Usage:   "Extract, curate and analyze current pulses from oscilloscope captures",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Log debug output to stderr"},
			&cli.BoolFlag{Name: "no-ledger", Usage: "Do not record runs in the project ledger"},
		},
		Before: func(c *cli.Context) error {
			setupLogging(c.Bool("verbose"))
			return nil
		},
		Commands: []*cli.Command{
			initCmd(cfg, root),
			statusCmd(cfg),
			extractCmd(cfg, root),
			loadCmd(cfg),
			approveCmd(cfg),
			discoverCmd(cfg),
			saveApprovedCmd(cfg, root),
			analyzeCmd(cfg, root),
			batchCmd(cfg, root),
			historyCmd(root),
			serveCmd(cfg, root),
			mcpCmd(cfg, root),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// setupLogging installs a text logger on stderr so stdout stays pure JSON.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// initCmd creates the init command.
func initCmd(cfg *config.Config, root string) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the project folders and a default .pulsekit/config.json",
		Action: func(c *cli.Context) error {
			input := ops.InitInput{}
			if root != "" {
				input.ConfigDir = filepath.Join(root, config.DirName)
			}
			output, err := ops.Init(cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show which project folders exist and how many files they hold",
		Action: func(c *cli.Context) error {
			output, err := ops.Status(cfg)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// extractCmd creates the extract command.
func extractCmd(cfg *config.Config, root string) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Cut selected windows out of raw captures into a pulses file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "selections", Aliases: []string{"s"}, Usage: "Extraction selections file (default: <selections_dir>/selections.json)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Pulses file to write (default: <processed_dir>/<output_file>)"},
		},
		Action: func(c *cli.Context) error {
			database := recordingLedger(c, root)
			defer closeLedger(database)

			output, err := ops.Extract(c.Context, database, cfg, ops.ExtractInput{
				SelectionsPath: c.String("selections"),
				OutputPath:     c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// loadCmd creates the load command.
func loadCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Load a pulses file with its approvals",
		ArgsUsage: "<pulses-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "selections", Aliases: []string{"s"}, Usage: "Selections file (default: conventional file when it exists)"},
			&cli.BoolFlag{Name: "keep-rejected", Usage: "Keep disapproved pulses instead of dropping them"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("pulses file is required"))
			}
			output, err := ops.LoadGroup(cfg, ops.LoadGroupInput{
				PulsesPath:     c.Args().First(),
				SelectionsPath: c.String("selections"),
				KeepRejected:   c.Bool("keep-rejected"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// approveCmd creates the approve command.
func approveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "approve",
		Usage:     "Approve or reject pulses by position and save the selections",
		ArgsUsage: "<pulses-file>",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{Name: "index", Aliases: []string{"i"}, Usage: "Pulse position in the file, 0-based (repeatable or comma-separated)"},
			&cli.BoolFlag{Name: "reject", Usage: "Reject the pulses instead of approving them"},
			&cli.StringFlag{Name: "selections", Aliases: []string{"s"}, Usage: "Selections file holding the current approvals"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("pulses file is required"))
			}
			output, err := ops.Approve(cfg, ops.ApproveInput{
				PulsesPath:     c.Args().First(),
				SelectionsPath: c.String("selections"),
				Indices:        c.IntSlice("index"),
				Approved:       !c.Bool("reject"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// discoverCmd creates the discover command.
func discoverCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "Load every pulses file of the processed folder",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Folder to scan (default: processed_dir)"},
			&cli.BoolFlag{Name: "keep-rejected", Usage: "Keep disapproved pulses instead of dropping them"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Discover(c.Context, cfg, ops.DiscoverInput{
				Dir:          c.String("dir"),
				KeepRejected: c.Bool("keep-rejected"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// saveApprovedCmd creates the save-approved command.
func saveApprovedCmd(cfg *config.Config, root string) *cli.Command {
	return &cli.Command{
		Name:      "save-approved",
		Usage:     "Collect approved pulses into one file with source metadata",
		ArgsUsage: "[pulses-file...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Pulses file to write (default: timestamped file in the approved folder)"},
		},
		Action: func(c *cli.Context) error {
			database := recordingLedger(c, root)
			defer closeLedger(database)

			output, err := ops.SaveApproved(c.Context, database, cfg, ops.SaveApprovedInput{
				PulsesPaths: c.Args().Slice(),
				OutputPath:  c.String("output"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// histogramFlags are shared by analyze and batch.
func histogramFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "bins", Usage: "Histogram bin count (default: histogram_bins)"},
		&cli.Float64Flag{Name: "unit-scale", Usage: "Factor applied to charges before binning (default: unit_scale)"},
		&cli.StringFlag{Name: "unit-label", Usage: "Label of the scaled charge unit (default: unit_label)"},
	}
}

func histogramOptions(c *cli.Context) ops.HistogramOptions {
	return ops.HistogramOptions{
		Bins:      c.Int("bins"),
		UnitScale: c.Float64("unit-scale"),
		UnitLabel: c.String("unit-label"),
	}
}

// analyzeCmd creates the analyze command.
func analyzeCmd(cfg *config.Config, root string) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Pulses file (default: <processed_dir>/<output_file>)"},
		&cli.StringFlag{Name: "selections", Aliases: []string{"s"}, Usage: "Selections file (default: conventional file when it exists)"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Report file (default: timestamped file in the analysis folder)"},
	}
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Compute charge statistics of the approved pulses of one file",
		ArgsUsage: "[pulses-file]",
		Flags:     append(flags, histogramFlags()...),
		Action: func(c *cli.Context) error {
			input := ops.AnalyzeInput{
				PulsesPath:     c.String("input"),
				SelectionsPath: c.String("selections"),
				OutputPath:     c.String("output"),
				Histogram:      histogramOptions(c),
			}
			if c.NArg() > 0 {
				if input.PulsesPath != "" {
					return outputError(errors.NewInvalidRequest("give the pulses file as an argument or with --input, not both"))
				}
				input.PulsesPath = c.Args().First()
			}

			database := recordingLedger(c, root)
			defer closeLedger(database)

			output, err := ops.Analyze(database, cfg, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// batchCmd creates the batch command.
func batchCmd(cfg *config.Config, root string) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Folder to analyze (default: processed_dir)"},
	}
	return &cli.Command{
		Name:  "batch",
		Usage: "Analyze every pulses file of the processed folder",
		Flags: append(flags, histogramFlags()...),
		Action: func(c *cli.Context) error {
			database := recordingLedger(c, root)
			defer closeLedger(database)

			output, err := ops.BatchAnalyze(c.Context, database, cfg, ops.BatchAnalyzeInput{
				Dir:       c.String("dir"),
				Histogram: histogramOptions(c),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(root string) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recorded runs, or show one run",
		ArgsUsage: "[run-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by kind: extract|analyze|batch|save_approved"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultHistoryLimit, Usage: "Maximum runs to return"},
		},
		Action: func(c *cli.Context) error {
			database, err := openLedger(c, root)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer closeLedger(database)

			output, err := ops.History(database, ops.HistoryInput{
				RunID: c.Args().First(),
				Kind:  c.String("kind"),
				Limit: c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(cfg *config.Config, root string) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve project status, runs and charge reports over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8750, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("port must be between 1 and 65535, got %d", port)))
			}

			database := recordingLedger(c, root)
			defer closeLedger(database)

			if err := web.Run(web.NewServer(database, cfg, Version, c.String("bind"), port)); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(cfg *config.Config, root string) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the pulsekit tools to an MCP client over stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
				slog.Warn("ignoring unknown disabled tools", "tools", unknown, "known", mcp.AllToolNames())
			}

			database := recordingLedger(c, root)
			defer closeLedger(database)

			if err := mcp.Run(database, cfg, root, Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// openLedger opens the project run ledger. It returns nil without error when
// the ledger is disabled or no project root is known.
func openLedger(c *cli.Context, root string) (*sql.DB, error) {
	if c.Bool("no-ledger") || root == "" {
		return nil, nil
	}
	return db.Init(filepath.Join(root, config.DirName))
}

// recordingLedger opens the ledger for a command that records a run. A ledger
// that cannot be opened is logged and the command runs without it.
func recordingLedger(c *cli.Context, root string) *sql.DB {
	database, err := openLedger(c, root)
	if err != nil {
		slog.Warn("run ledger unavailable", "error", err)
		return nil
	}
	return database
}

func closeLedger(database *sql.DB) {
	if database != nil {
		database.Close()
	}
}

// outputJSON writes JSON output to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var pulseErr *errors.PulseError
	if stderrors.As(err, &pulseErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", pulseErr.Code, pulseErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
