// Command bintest runs declarative integration-test suites against CLI
// executables. It is the thin front-end spec.md §1 calls out as external to
// the core engine: flag parsing, subcommand dispatch, and rendering all live
// here; everything else is a call into internal/schedule.
//
// Grounded on cmd/runner/main.go's shape: standard library flag package
// (no third-party CLI framework, matching the teacher), subcommand-style
// dispatch, and a SIGINT/SIGTERM signal handler that cancels a
// context.Context rather than calling os.Exit from deep in the call stack.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bintest/bintest/internal/btlog"
)

// Exit codes (spec.md §6).
const (
	exitSuccess      = 0
	exitTestFailure  = 1
	exitError        = 2
	exitUsage        = 64
	exitCanceled     = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	sub, rest := args[0], args[1:]
	switch sub {
	case "run":
		return runRun(rest)
	case "validate":
		return runValidate(rest)
	case "init":
		return runInit(rest)
	case "schema":
		return runSchema(rest)
	case "-h", "--help", "help":
		usage()
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "bintest: unknown subcommand %q\n", sub)
		usage()
		return exitUsage
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: bintest <command> [flags]

commands:
  run <path>       run a spec file or directory
  validate <path>  load and schema-check a spec without executing it
  init <path>      write a scaffold spec file
  schema           emit the JSON Schema for the spec document format
`)
}

// signalContext mirrors cmd/runner/main.go's cancellation-on-signal
// pattern: SIGINT/SIGTERM cancel ctx instead of the process exiting
// mid-teardown, so file/test teardown still runs (spec.md §8 property 6).
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func defaultLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return btlog.New(level)
}
