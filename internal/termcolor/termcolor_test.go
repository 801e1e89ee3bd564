package termcolor_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bintest/bintest/internal/termcolor"
)

func boolp(b bool) *bool { return &b }

func TestDetectForceOverridesEverything(t *testing.T) {
	var buf bytes.Buffer
	styles := termcolor.Detect(&buf, boolp(true))
	assert.True(t, styles.Enabled)

	styles = termcolor.Detect(&buf, boolp(false))
	assert.False(t, styles.Enabled)
}

func TestDetectNonTerminalWriterDisablesColor(t *testing.T) {
	var buf bytes.Buffer
	styles := termcolor.Detect(&buf, nil)
	assert.False(t, styles.Enabled)
}

func TestVerdictStyleCoversAllFourVerdicts(t *testing.T) {
	var buf bytes.Buffer
	styles := termcolor.Detect(&buf, boolp(true))

	assert.Same(t, styles.Pass, styles.VerdictStyle("passed"))
	assert.Same(t, styles.Fail, styles.VerdictStyle("failed"))
	assert.Same(t, styles.Error, styles.VerdictStyle("errored"))
	assert.Same(t, styles.Skip, styles.VerdictStyle("skipped"))
}
