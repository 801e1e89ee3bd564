// Package termcolor decides whether a run's human-format output should use
// color and provides the small set of styles the renderer needs: one per
// verdict plus a dim style for secondary text.
//
// Grounded on internal/terminal/detector.go and internal/terminal/color.go
// (CI-environment detection, TERM-based capability sniffing) and
// internal/color/color.go (named, predefined color functions over raw
// text) from the teacher; the hand-rolled ANSI codes and TERM string list
// are replaced with golang.org/x/term's IsTerminal, github.com/mattn/go-isatty,
// and github.com/fatih/color's NoColor-aware styling, all present in the
// wider example pack.
package termcolor

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// ciEnvVars are common CI environment variables whose presence disables
// color by default, mirroring the teacher's CI-environment detection.
var ciEnvVars = []string{
	"CI", "CONTINUOUS_INTEGRATION", "GITHUB_ACTIONS", "TRAVIS", "CIRCLECI",
	"JENKINS_URL", "BUILD_NUMBER", "GITLAB_CI", "APPVEYOR", "BUILDKITE",
	"DRONE", "TF_BUILD",
}

// Styles is the small set of named styles the human-format renderer uses.
type Styles struct {
	Pass, Fail, Error, Skip, Dim *color.Color
	Enabled                      bool
}

// Detect decides whether color should be enabled for w and returns the
// corresponding Styles. force, if non-nil, overrides detection outright
// (the run subcommand's --no-color flag); otherwise the BINTEST_NO_COLOR env var, CI
// detection, and a terminal check are consulted in that order.
func Detect(w io.Writer, force *bool) Styles {
	enabled := false
	switch {
	case force != nil:
		enabled = *force
	case os.Getenv("BINTEST_NO_COLOR") != "":
		enabled = false
	case isCIEnvironment():
		enabled = false
	default:
		enabled = isTerminalWriter(w)
	}

	return newStyles(enabled)
}

func newStyles(enabled bool) Styles {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		c.EnableColor()
		if !enabled {
			c.DisableColor()
		}
		return c
	}

	return Styles{
		Pass:    mk(color.FgGreen),
		Fail:    mk(color.FgRed),
		Error:   mk(color.FgRed, color.Bold),
		Skip:    mk(color.FgYellow),
		Dim:     mk(color.FgHiBlack),
		Enabled: enabled,
	}
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) || term.IsTerminal(int(fd))
}

func isCIEnvironment() bool {
	for _, name := range ciEnvVars {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		if name == "CI" {
			return isCITruthy(v)
		}
		return true
	}
	return false
}

func isCITruthy(v string) bool {
	lower := strings.ToLower(strings.TrimSpace(v))
	return lower != "false" && lower != "0" && lower != "no"
}

// VerdictStyle returns the style matching one of the four JSON verdict
// strings ("passed", "failed", "errored", "skipped").
func (s Styles) VerdictStyle(verdict string) *color.Color {
	switch verdict {
	case "passed":
		return s.Pass
	case "failed":
		return s.Fail
	case "errored":
		return s.Error
	default:
		return s.Skip
	}
}
