package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bintest/bintest/internal/specfile"
)

// runValidate loads and schema-checks path without executing anything
// (spec.md §6: "load and schema-check; exit 0 on valid, non-zero
// otherwise"). specfile.Load already runs the full structural Validate
// pass before returning, so validate and run share identical SpecError
// detection (spec.md §8 property 8).
func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bintest validate <path>")
		return exitUsage
	}

	if _, err := specfile.Load(fs.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "bintest: invalid: %v\n", err)
		return exitError
	}

	fmt.Println("ok")
	return exitSuccess
}
