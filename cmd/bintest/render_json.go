package main

import (
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/bintest/bintest/internal/resultset"
)

// jsonSuite mirrors the result JSON schema spec.md §6 summarizes, field
// names held stable across minor versions.
type jsonSuite struct {
	Suite struct {
		Files []jsonFile `json:"files"`
	} `json:"suite"`
}

type jsonFile struct {
	Path       string     `json:"path"`
	DurationMS int64      `json:"duration_ms"`
	Tests      []jsonTest `json:"tests"`
	Error      string     `json:"error,omitempty"`
}

type jsonTest struct {
	Name       string     `json:"name"`
	Verdict    string     `json:"verdict"`
	DurationMS int64      `json:"duration_ms"`
	SkipReason string     `json:"skip_reason,omitempty"`
	Steps      []jsonStep `json:"steps"`
	Error      string     `json:"error,omitempty"`
}

type jsonStep struct {
	Name       string          `json:"name"`
	Verdict    string          `json:"verdict"`
	DurationMS int64           `json:"duration_ms"`
	Assertions []jsonAssertion `json:"assertions"`
	Captured   *jsonCaptured   `json:"captured,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type jsonAssertion struct {
	Kind     string `json:"kind"`
	Verdict  string `json:"verdict"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Error    string `json:"error,omitempty"`
}

type jsonCaptured struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Exit     *int          `json:"exit,omitempty"`
	Signal   *int          `json:"signal,omitempty"`
	TimedOut bool          `json:"timed_out"`
	FSDiff   *jsonFSDiff   `json:"fs_diff,omitempty"`
}

type jsonFSDiff struct {
	Created  []string `json:"created"`
	Modified []string `json:"modified"`
	Deleted  []string `json:"deleted"`
}

func toJSONSuite(result *resultset.SuiteResult) jsonSuite {
	out := jsonSuite{}
	for _, f := range result.Files {
		jf := jsonFile{Path: f.Path, DurationMS: f.Duration.Milliseconds(), Error: f.Error}
		for _, t := range f.Tests {
			jt := jsonTest{
				Name:       t.Name,
				Verdict:    t.Verdict,
				DurationMS: t.Duration.Milliseconds(),
				SkipReason: t.SkipReason,
				Error:      t.Error,
			}
			for _, s := range t.Steps {
				jt.Steps = append(jt.Steps, toJSONStep(s))
			}
			jf.Tests = append(jf.Tests, jt)
		}
		out.Suite.Files = append(out.Suite.Files, jf)
	}
	return out
}

func toJSONStep(s resultset.StepResult) jsonStep {
	js := jsonStep{
		Name:       s.Name,
		Verdict:    s.Verdict,
		DurationMS: s.Duration.Milliseconds(),
		Error:      s.Error,
	}
	for _, a := range s.Assertions {
		verdict := "passed"
		if !a.Passed {
			verdict = "failed"
		}
		js.Assertions = append(js.Assertions, jsonAssertion{
			Kind:     a.Label,
			Verdict:  verdict,
			Expected: a.Expected,
			Actual:   a.Actual,
		})
	}
	if s.Captured != nil {
		js.Captured = toJSONCaptured(s.Captured)
	}
	return js
}

func toJSONCaptured(c *resultset.Captured) *jsonCaptured {
	jc := &jsonCaptured{
		Stdout:   encodeBytes(c.Stdout),
		Stderr:   encodeBytes(c.Stderr),
		Exit:     c.Exit,
		Signal:   c.Signal,
		TimedOut: c.TimedOut,
	}
	if c.FSDiff != nil {
		jc.FSDiff = &jsonFSDiff{Created: c.FSDiff.Created, Modified: c.FSDiff.Modified, Deleted: c.FSDiff.Deleted}
	}
	return jc
}

// encodeBytes renders captured output as UTF-8 text when valid, falling
// back to base64 so binary output never corrupts the JSON document.
func encodeBytes(b []byte) string {
	if isValidUTF8Text(b) {
		return string(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func isValidUTF8Text(b []byte) bool {
	for _, r := range string(b) {
		if r == '�' {
			return false
		}
	}
	return true
}

func renderJSON(w io.Writer, result *resultset.SuiteResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSONSuite(result))
}
