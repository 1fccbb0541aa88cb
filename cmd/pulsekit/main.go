package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/pulsekit/internal/config"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// RootEnv overrides the directory project lookup starts from.
const RootEnv = "PULSEKIT_ROOT"

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return true
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// startDir returns $PULSEKIT_ROOT or the working directory.
func startDir() (string, error) {
	if dir := os.Getenv(RootEnv); dir != "" {
		return filepath.Abs(dir)
	}
	return os.Getwd()
}

func main() {
	// Handle --help/--version before touching the project
	if isHelpOrVersion() {
		app := newCLIApp(config.DefaultConfig(), "")
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	start, err := startDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine project root: %v\n", err)
		os.Exit(1)
	}

	// The global config is optional; without a home directory only the
	// project config applies.
	globalDir := ""
	if homeDir, err := os.UserHomeDir(); err == nil {
		globalDir = filepath.Join(homeDir, config.DirName)
	}

	cfg, root, err := config.LoadWithProject(globalDir, start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := newCLIApp(cfg.Resolve(root), root)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
