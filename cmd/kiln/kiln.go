package main

import (
	"log/slog"
	"os"

	"github.com/kilnbuild/kiln/internal"
	"github.com/kilnbuild/kiln/internal/cli"
	"github.com/kilnbuild/kiln/internal/logging"
)

// The entry point for the kiln CLI.
//
// Initializes logging, displays startup information, and executes the root
// command. The process exit code reflects the outcome: 1 for build and
// tool failures, 127 when a run's entry file is missing, or the exit
// status of the containerized process.
func main() {
	slog.SetDefault(logger())

	slog.Debug("build", "version", internal.VersionString())

	slog.Debug("kiln is running",
		"pid", os.Getpid(),
		"cwd", cwd(),
		"args", os.Args,
	)

	err := cli.Execute()
	code, report := cli.ExitCode(err)
	if report {
		slog.Error(err.Error())
	}
	os.Exit(code)
}

// Creates a buffered logger seeded from build-time linker flags.
//
// The logger is reconfigured after flag parsing via cli.Execute.
func logger() *slog.Logger {
	handler := logging.NewHandler()
	handler.SetLevel(logLevel())
	return slog.New(handler.WithGroup(internal.Name))
}

// Returns the log level derived from build-time linker flags.
func logLevel() slog.Level {
	if internal.IsDebug() {
		return slog.LevelDebug
	}
	if internal.IsQuiet() {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Returns the current working directory or "(unknown)".
func cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "(unknown)"
	}
	return cwd
}
