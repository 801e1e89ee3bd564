// Package schedule implements the two-level scheduler (spec.md §4.9):
// files run in parallel across a suite unless serial, and within a file
// serial tests run first in declaration order, then the remaining tests
// run in parallel with bounded concurrency.
//
// Grounded on original_source/src/runner.rs::run_suite_setup/
// run_suite_teardown (suite-level actions get their own throwaway sandbox
// and db pool) and on internal/runner/executor's worker-pool shape;
// golang.org/x/sync/errgroup (not present in the teacher's own go.mod,
// but carried by the rest of the example pack and the idiomatic Go choice
// for a bounded fan-out with first-error propagation and context
// cancellation) replaces the teacher's simpler sequential executor.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bintest/bintest/internal/dbpool"
	"github.com/bintest/bintest/internal/fsdiff"
	"github.com/bintest/bintest/internal/model"
	"github.com/bintest/bintest/internal/resolve"
	"github.com/bintest/bintest/internal/resultset"
	"github.com/bintest/bintest/internal/sandbox"
	"github.com/bintest/bintest/internal/teststate"
)

// Options configures one Run.
type Options struct {
	// Jobs overrides the default per-level concurrency (default: CPU
	// count). Zero means "use the default."
	Jobs int
	// Filter is applied after the plan is built but before any setup
	// runs (spec.md §4.9): a glob (containing *, ?, or [) matches whole
	// files by path; anything else is a substring match against test
	// names. A filtered-out test is omitted from the tree entirely.
	Filter string
}

func (o Options) jobs() int {
	if o.Jobs > 0 {
		return o.Jobs
	}
	return runtime.NumCPU()
}

// Run executes suite end to end and returns the completed result tree.
// The returned error is non-nil only for a failure that prevented the
// tree from being built at all (e.g. suite setup failed); per-file and
// per-test failures are recorded in the tree itself, not returned here.
func Run(ctx context.Context, suite *model.Suite, opts Options, logger *slog.Logger) (*resultset.SuiteResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	runTimestamp := start.UTC().Format("20060102T150405Z")

	runID := ulid.Make()
	logger = logger.With("run_id", runID.String())

	if suite.Setup != nil {
		if err := runSuiteActions(ctx, suite.Setup, suite, runTimestamp, logger); err != nil {
			return nil, fmt.Errorf("suite setup: %w", err)
		}
	}

	files := filterFiles(suite.Files, opts.Filter)

	result := &resultset.SuiteResult{}
	var mu sync.Mutex

	runOne := func(file *model.File) error {
		fr := runFile(ctx, suite, file, opts, runTimestamp, logger)
		mu.Lock()
		result.Files = append(result.Files, fr)
		mu.Unlock()
		return nil
	}

	if suite.Serial {
		for _, f := range files {
			if ctx.Err() != nil {
				result.Canceled = true
				break
			}
			_ = runOne(f)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.jobs())
		for _, f := range files {
			file := f
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				return runOne(file)
			})
		}
		_ = g.Wait()
		if ctx.Err() != nil {
			result.Canceled = true
		}
	}

	if suite.Teardown != nil {
		if err := runSuiteActions(ctx, suite.Teardown, suite, runTimestamp, logger); err != nil {
			logger.Warn("suite teardown failed", "error", err)
		}
	}

	sortFiles(result.Files, suite.Files)
	result.Duration = time.Since(start)
	return result, nil
}

// runSuiteActions executes suite-level setup/teardown against a
// throwaway sandbox and database pool, both discarded afterward
// (original_source/src/runner.rs::run_suite_setup).
func runSuiteActions(ctx context.Context, actions []model.Action, suite *model.Suite, runTimestamp string, logger *slog.Logger) error {
	box, err := sandbox.Create(suite.SandboxDir, "suite", runTimestamp, logger)
	if err != nil {
		return err
	}
	defer box.Dispose()

	pool := dbpool.New(suite.Databases, nil)
	defer pool.CloseAll()

	eff := resolve.Effective{Binary: suite.Binary, Env: suite.Env, InheritEnv: boolVal(suite.InheritEnv)}
	tctx := teststate.Context{Effective: eff, Sandbox: box, Pool: pool, Logger: logger}

	_, err = teststate.RunActions(ctx, actions, tctx, tctx.BuildEnv())
	return err
}

// perFileSnapshotName is the implicit snapshot taken once file setup
// completes, restored before every test in the file begins (spec.md §4.6).
const perFileSnapshotName = "post_setup"

func runFile(ctx context.Context, suite *model.Suite, file *model.File, opts Options, runTimestamp string, logger *slog.Logger) resultset.FileResult {
	start := time.Now()
	fr := resultset.FileResult{Path: file.Path}

	dbs := mergeDatabases(suite.Databases, file.Databases)
	if err := dbpool.ValidateIsolation(dbs); err != nil {
		fr.Error = err.Error()
		fr.Duration = time.Since(start)
		return fr
	}

	sandboxPolicy := suite.SandboxDir
	box, err := sandbox.Create(sandboxPolicy, file.Stem(), runTimestamp, logger)
	if err != nil {
		fr.Error = err.Error()
		fr.Duration = time.Since(start)
		return fr
	}
	defer box.Dispose()

	pool := dbpool.New(dbs, nil)
	defer pool.CloseAll()

	fileEff := fileEffective(suite, file)

	if file.Setup != nil {
		tctx := teststate.Context{Effective: fileEff, Sandbox: box, Pool: pool, Logger: logger}
		if _, err := teststate.RunActions(ctx, file.Setup, tctx, tctx.BuildEnv()); err != nil {
			fr.Error = fmt.Sprintf("file setup: %v", err)
			fr.Duration = time.Since(start)
			return fr
		}
	}

	perFile := perFileDatabases(dbs)
	for _, name := range perFile {
		if err := pool.Snapshot(name, perFileSnapshotName); err != nil {
			fr.Error = fmt.Sprintf("post-setup snapshot of database %q: %v", name, err)
			fr.Duration = time.Since(start)
			return fr
		}
	}

	tests := filterTests(file.Tests, opts.Filter, file.Path)
	// A per_file-isolated database is restored between tests, so tests
	// sharing it cannot run concurrently without one test's restore
	// clobbering another's in-flight state.
	serial, parallel := partitionTests(tests, len(perFile) > 0)

	var before *fsdiff.Snapshot
	if fileEff.CaptureFSDiff {
		before, _ = fsdiff.Capture(box.Root())
	}

	var mu sync.Mutex
	runTest := func(test *model.Test) {
		for _, name := range perFile {
			if err := pool.Restore(name, perFileSnapshotName); err != nil {
				mu.Lock()
				fr.Tests = append(fr.Tests, resultset.TestResult{
					Name:    test.Name,
					Verdict: "errored",
					Error:   fmt.Sprintf("restoring database %q to post-setup snapshot: %v", name, err),
				})
				mu.Unlock()
				return
			}
		}

		eff := resolve.ForTest(suite, file, test)
		tctx := teststate.Context{Effective: eff, Sandbox: box, Pool: pool, Logger: logger}
		tr := toTestResult(teststate.Run(ctx, test, tctx))

		mu.Lock()
		fr.Tests = append(fr.Tests, tr)
		mu.Unlock()
	}

	for _, test := range serial {
		if ctx.Err() != nil {
			break
		}
		runTest(test)
	}

	if ctx.Err() == nil && len(parallel) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.jobs())
		for _, t := range parallel {
			test := t
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				runTest(test)
				return nil
			})
		}
		_ = g.Wait()
	}

	if fileEff.CaptureFSDiff && before != nil {
		after, afterErr := fsdiff.Capture(box.Root())
		if afterErr == nil {
			diff := fsdiff.Compare(before, after)
			attachFSDiff(fr.Tests, diff)
		}
	}

	if file.Teardown != nil {
		tctx := teststate.Context{Effective: fileEff, Sandbox: box, Pool: pool, Logger: logger}
		if _, err := teststate.RunActions(ctx, file.Teardown, tctx, tctx.BuildEnv()); err != nil {
			logger.Warn("file teardown failed", "file", file.Path, "error", err)
		}
	}

	sortTests(fr.Tests, tests)
	fr.Duration = time.Since(start)
	return fr
}

func fileEffective(suite *model.Suite, file *model.File) resolve.Effective {
	eff := resolve.ForTest(suite, file, &model.Test{})
	return eff
}

func partitionTests(tests []*model.Test, forceSerial bool) (serial, parallel []*model.Test) {
	for _, t := range tests {
		if forceSerial || t.Serial {
			serial = append(serial, t)
		} else {
			parallel = append(parallel, t)
		}
	}
	return serial, parallel
}

// perFileDatabases returns the names of every database configured with
// isolation: per_file.
func perFileDatabases(dbs map[string]model.DatabaseDef) []string {
	var names []string
	for name, def := range dbs {
		if def.Isolation == "per_file" {
			names = append(names, name)
		}
	}
	return names
}

func toTestResult(tr *teststate.TestResult) resultset.TestResult {
	out := resultset.TestResult{
		Name:       tr.Name,
		Verdict:    tr.Verdict.JSONVerdict(),
		SkipReason: tr.Verdict.SkipReason(),
	}
	if tr.Err != nil {
		out.Error = tr.Err.Error()
	}
	for _, sr := range tr.Steps {
		step := resultset.StepResult{
			Name:       sr.Name,
			Verdict:    sr.Verdict.JSONVerdict(),
			Assertions: sr.Assertions,
		}
		if sr.Err != nil {
			step.Error = sr.Err.Error()
		}
		if sr.Outcome != nil {
			step.Captured = &resultset.Captured{
				Stdout:   sr.Outcome.Stdout,
				Stderr:   sr.Outcome.Stderr,
				Exit:     sr.Outcome.Exit,
				Signal:   sr.Outcome.Signal,
				TimedOut: sr.Outcome.TimedOut,
			}
			step.Duration = sr.Outcome.Duration
		}
		out.Steps = append(out.Steps, step)
	}
	return out
}

// attachFSDiff attaches the file-level diff to the last executed step of
// the last executed test, matching the result schema's per-step
// fs_diff placement (spec.md §6) without a dedicated file-level slot.
func attachFSDiff(tests []resultset.TestResult, diff fsdiff.Diff) {
	for i := len(tests) - 1; i >= 0; i-- {
		if len(tests[i].Steps) == 0 {
			continue
		}
		last := &tests[i].Steps[len(tests[i].Steps)-1]
		if last.Captured == nil {
			last.Captured = &resultset.Captured{}
		}
		last.Captured.FSDiff = &diff
		return
	}
}

func filterFiles(files []*model.File, filter string) []*model.File {
	if filter == "" || !isGlob(filter) {
		return files
	}
	var out []*model.File
	for _, f := range files {
		if ok, _ := filepath.Match(filter, f.Path); ok {
			out = append(out, f)
		}
	}
	return out
}

func filterTests(tests []*model.Test, filter, filePath string) []*model.Test {
	if filter == "" {
		return tests
	}
	if isGlob(filter) {
		if ok, _ := filepath.Match(filter, filePath); ok {
			return tests
		}
		return nil
	}
	var out []*model.Test
	for _, t := range tests {
		if strings.Contains(t.Name, filter) {
			out = append(out, t)
		}
	}
	return out
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[")
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

func boolVal(b *bool) bool { return b != nil && *b }

// sortFiles restores declaration order after parallel execution may have
// appended results out of order (spec.md §4.9: a "stable declaration
// order tiebreaker for logging").
func sortFiles(results []resultset.FileResult, declared []*model.File) {
	order := make(map[string]int, len(declared))
	for i, f := range declared {
		order[f.Path] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		return order[results[i].Path] < order[results[j].Path]
	})
}

func sortTests(results []resultset.TestResult, declared []*model.Test) {
	order := make(map[string]int, len(declared))
	for i, t := range declared {
		order[t.Name] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		return order[results[i].Name] < order[results[j].Name]
	})
}
