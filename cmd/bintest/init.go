package main

import (
	"flag"
	"fmt"
	"os"
)

const scaffold = `# binary under test; referenced in steps as ${BINARY}
binary = "/usr/bin/true"

[[tests]]
name = "example"

[tests.run]
cmd = "${BINARY}"

[tests.expect]
exit = 0
`

// runInit writes a scaffold spec file to path (spec.md §6: "write a
// scaffold spec file"). It refuses to overwrite an existing file.
func runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bintest init <path>")
		return exitUsage
	}
	path := fs.Arg(0)

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "bintest: %s already exists\n", path)
		return exitError
	}

	if err := os.WriteFile(path, []byte(scaffold), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "bintest: %v\n", err)
		return exitError
	}

	fmt.Printf("wrote scaffold to %s\n", path)
	return exitSuccess
}
