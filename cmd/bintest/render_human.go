package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/bintest/bintest/internal/resultset"
	"github.com/bintest/bintest/internal/termcolor"
)

// renderHuman prints a per-test listing followed by a suite summary table
// (files x verdict counts), the shape SPEC_FULL.md's domain-stack entry for
// tablewriter describes.
func renderHuman(w io.Writer, result *resultset.SuiteResult, forceColor *bool) error {
	styles := termcolor.Detect(w, forceColor)

	for _, f := range result.Files {
		fmt.Fprintf(w, "%s\n", f.Path)
		if f.Error != "" {
			fmt.Fprintf(w, "  %s\n", styles.Error.Sprintf("error: %s", f.Error))
			continue
		}
		for _, t := range f.Tests {
			style := styles.VerdictStyle(t.Verdict)
			line := fmt.Sprintf("  [%s] %s (%dms)", t.Verdict, t.Name, t.Duration.Milliseconds())
			fmt.Fprintln(w, style.Sprint(line))
			if t.SkipReason != "" {
				fmt.Fprintf(w, "      %s\n", styles.Dim.Sprint(t.SkipReason))
			}
			for _, s := range t.Steps {
				if s.Verdict == "passed" {
					continue
				}
				stepStyle := styles.VerdictStyle(s.Verdict)
				fmt.Fprintln(w, stepStyle.Sprintf("      step %q: %s", s.Name, s.Verdict))
				for _, a := range s.Assertions {
					if a.Passed {
						continue
					}
					fmt.Fprintf(w, "        %s: expected %q, got %q\n", a.Label, a.Expected, a.Actual)
				}
				if s.Error != "" {
					fmt.Fprintf(w, "        %s\n", s.Error)
				}
			}
		}
	}

	fmt.Fprintln(w)
	renderSummaryTable(w, result)
	return nil
}

func renderSummaryTable(w io.Writer, result *resultset.SuiteResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Passed", "Failed", "Errored", "Skipped"})

	totals := [4]int{}
	for _, f := range result.Files {
		counts := [4]int{}
		for _, t := range f.Tests {
			switch t.Verdict {
			case "passed":
				counts[0]++
			case "failed":
				counts[1]++
			case "errored":
				counts[2]++
			default:
				counts[3]++
			}
		}
		for i := range totals {
			totals[i] += counts[i]
		}
		table.Append([]string{
			f.Path,
			fmt.Sprint(counts[0]), fmt.Sprint(counts[1]), fmt.Sprint(counts[2]), fmt.Sprint(counts[3]),
		})
	}

	table.SetFooter([]string{
		"total",
		fmt.Sprint(totals[0]), fmt.Sprint(totals[1]), fmt.Sprint(totals[2]), fmt.Sprint(totals[3]),
	})
	table.Render()
}
