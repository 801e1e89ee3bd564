package main

import (
	"encoding/xml"
	"io"

	"github.com/bintest/bintest/internal/resultset"
)

// JUnit XML is the de facto interchange format for CI test reporting;
// one <testsuite> per file, one <testcase> per test, a <failure>/<error>
// child when the verdict warrants it.
type junitSuites struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Errors   int         `xml:"errors,attr"`
	Skipped  int         `xml:"skipped,attr"`
	TimeSec  float64     `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name    string        `xml:"name,attr"`
	TimeSec float64       `xml:"time,attr"`
	Failure *junitMessage `xml:"failure,omitempty"`
	Error   *junitMessage `xml:"error,omitempty"`
	Skipped *junitMessage `xml:"skipped,omitempty"`
}

type junitMessage struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

func renderJUnit(w io.Writer, result *resultset.SuiteResult) error {
	doc := junitSuites{}
	for _, f := range result.Files {
		suite := junitSuite{Name: f.Path, TimeSec: f.Duration.Seconds()}
		for _, t := range f.Tests {
			tc := junitCase{Name: t.Name, TimeSec: t.Duration.Seconds()}
			switch t.Verdict {
			case "failed":
				suite.Failures++
				tc.Failure = &junitMessage{Message: "assertion failed", Text: firstFailureText(t)}
			case "errored":
				suite.Errors++
				tc.Error = &junitMessage{Message: t.Error, Text: t.Error}
			case "skipped":
				suite.Skipped++
				tc.Skipped = &junitMessage{Message: t.SkipReason}
			}
			suite.Tests++
			suite.Cases = append(suite.Cases, tc)
		}
		doc.Suites = append(doc.Suites, suite)
	}

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(doc)
}

func firstFailureText(t resultset.TestResult) string {
	for _, s := range t.Steps {
		for _, a := range s.Assertions {
			if !a.Passed {
				return a.Label + ": expected " + a.Expected + ", got " + a.Actual
			}
		}
	}
	return "failed"
}
