// Package resolve implements the hierarchical configuration resolver:
// given a Suite, a File, and a Test, it computes the effective value of
// every knob at the point of use following "most specific wins" (spec.md
// §4.1). It is pure: the same inputs always produce the same Effective.
//
// Modeled on internal/runner/executor/environment.go's
// BuildProcessEnvironment, which merges system -> global -> group ->
// command environment maps by additive override; here the chain is
// suite -> file -> test.
package resolve

import (
	"time"

	"github.com/bintest/bintest/internal/model"
)

const defaultTimeout = 3 * time.Second

// Effective holds every knob's resolved value for one Test, suitable for
// attaching verbatim to the result tree so effective values are
// inspectable (spec.md design notes §9).
type Effective struct {
	Binary        string
	Timeout       time.Duration
	Env           map[string]string
	InheritEnv    bool
	Serial        bool
	CaptureFSDiff bool
	Databases     map[string]model.DatabaseDef
}

// ForTest computes the Effective configuration for one Test within File
// within Suite.
func ForTest(suite *model.Suite, file *model.File, test *model.Test) Effective {
	eff := Effective{
		Timeout: defaultTimeout,
		Env:     map[string]string{},
	}

	if suite.Timeout != nil {
		eff.Timeout = *suite.Timeout
	}
	if file.Timeout != nil {
		eff.Timeout = *file.Timeout
	}

	eff.Binary = suite.Binary
	if file.Binary != "" {
		eff.Binary = file.Binary
	}

	if suite.InheritEnv != nil {
		eff.InheritEnv = *suite.InheritEnv
	}
	if file.InheritEnv != nil {
		eff.InheritEnv = *file.InheritEnv
	}

	eff.Serial = suite.Serial
	if file.Serial {
		eff.Serial = true
	}
	if test.Serial {
		eff.Serial = true
	}

	if suite.CaptureFSDiff != nil {
		eff.CaptureFSDiff = *suite.CaptureFSDiff
	}
	if file.CaptureFSDiff != nil {
		eff.CaptureFSDiff = *file.CaptureFSDiff
	}

	mergeEnv(eff.Env, suite.Env)
	mergeEnv(eff.Env, file.Env)
	mergeEnv(eff.Env, test.Env)

	eff.Databases = mergeDatabases(suite.Databases, file.Databases)

	return eff
}

// ForStep layers a Step-level timeout and env overlay onto an already
// resolved test-level Effective, returning the step's own effective
// timeout and environment map. The step's env overlay wins over the
// test-level effective env (most specific wins), and BINARY/SANDBOX are
// injected by the caller (internal/teststate), not here — this function
// only resolves configuration knobs, not runtime-injected variables.
func ForStep(eff Effective, step *model.Step) (time.Duration, map[string]string) {
	timeout := eff.Timeout
	if step.Run.Timeout != nil {
		timeout = *step.Run.Timeout
	}

	env := map[string]string{}
	mergeEnv(env, eff.Env)
	mergeEnv(env, step.Run.Env)

	return timeout, env
}

func mergeEnv(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeDatabases(suite, file map[string]model.DatabaseDef) map[string]model.DatabaseDef {
	out := make(map[string]model.DatabaseDef, len(suite)+len(file))
	for k, v := range suite {
		out[k] = v
	}
	for k, v := range file {
		out[k] = v
	}
	return out
}
