package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/bintest/bintest/internal/model"
	"github.com/bintest/bintest/internal/schedule"
	"github.com/bintest/bintest/internal/specfile"
)

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	filter := fs.String("filter", "", "substring match on test names, or glob on file paths")
	output := fs.String("output", "human", "output format: human, json, or junit")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	sandboxDir := fs.String("sandbox-dir", "", "override sandbox_dir policy: local or an explicit path")
	noColor := fs.Bool("no-color", false, "disable ANSI color in human output")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bintest run <path> [flags]")
		return exitUsage
	}
	path := fs.Arg(0)

	logger := defaultLogger(*verbose)

	suite, err := specfile.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bintest: %v\n", err)
		return exitError
	}

	if *sandboxDir != "" {
		suite.SandboxDir = sandboxDirFromFlag(*sandboxDir)
	}

	opts := schedule.Options{Filter: *filter, Jobs: jobsFromEnv()}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := schedule.Run(ctx, suite, opts, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bintest: %v\n", err)
		return exitError
	}

	var forceColor *bool
	if *noColor {
		off := false
		forceColor = &off
	}
	var renderErr error
	switch *output {
	case "human":
		renderErr = renderHuman(os.Stdout, result, forceColor)
	case "json":
		renderErr = renderJSON(os.Stdout, result)
	case "junit":
		renderErr = renderJUnit(os.Stdout, result)
	default:
		fmt.Fprintf(os.Stderr, "bintest: unknown output format %q\n", *output)
		return exitUsage
	}
	if renderErr != nil {
		fmt.Fprintf(os.Stderr, "bintest: render: %v\n", renderErr)
		return exitError
	}

	return result.ExitCode()
}

func jobsFromEnv() int {
	v := os.Getenv("BINTEST_JOBS")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func sandboxDirFromFlag(policy string) model.SandboxDirPolicy {
	if policy == "local" {
		return model.SandboxDirPolicy{Kind: model.SandboxLocal}
	}
	return model.SandboxDirPolicy{Kind: model.SandboxPath, Path: policy}
}
