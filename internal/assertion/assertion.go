// Package assertion evaluates an ExpectSpec against a captured process
// outcome, sandbox filesystem, and database pool, producing an ordered,
// non-short-circuited list of pass/fail results (spec.md §4.7).
//
// Grounded on original_source/src/runner.rs::check_expectations for the
// evaluation order and the signal-takes-precedence-over-exit rule
// (SPEC_FULL.md supplemented feature #3); the matcher semantics come from
// the same file's Matcher::matches. The tagged-variant Matcher/SQLAssertion
// types come from internal/model, following the teacher's preference for
// Kind-tagged structs over an interface hierarchy.
package assertion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bintest/bintest/internal/bterrors"
	"github.com/bintest/bintest/internal/dbpool"
	"github.com/bintest/bintest/internal/model"
	"github.com/bintest/bintest/internal/procrun"
	"github.com/bintest/bintest/internal/sandbox"
)

// Result is one evaluated assertion: a human label, its pass/fail, and
// (on failure) the expected/actual strings for reporting.
type Result struct {
	Label    string
	Passed   bool
	Expected string
	Actual   string
}

// Evaluate runs every assertion named by spec against outcome, in
// declaration order, and returns the full result list plus any
// infrastructure error encountered along the way (a failed SQL query, for
// instance, is an error distinct from the assertions that could not run
// because of it).
func Evaluate(spec model.ExpectSpec, outcome *procrun.Outcome, box *sandbox.Sandbox, pool *dbpool.Pool) ([]Result, error) {
	var results []Result

	// Signal takes precedence over exit: if expect.signal is present, the
	// exit-code comparison is skipped entirely, even if expect.exit is also
	// set (SPEC_FULL.md supplemented feature #3).
	if spec.Signal != nil {
		results = append(results, evalSignal(*spec.Signal, outcome))
	} else if spec.Exit != nil {
		results = append(results, evalExit(*spec.Exit, outcome))
	}

	if spec.Stdout != nil {
		results = append(results, evalMatcher("stdout", *spec.Stdout, string(outcome.Stdout)))
	}
	if spec.Stderr != nil {
		results = append(results, evalMatcher("stderr", *spec.Stderr, string(outcome.Stderr)))
	}

	for _, fa := range spec.Files {
		r, err := evalFileAssertion(fa, box)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}

	if spec.Tree != nil {
		rs, err := evalTree(*spec.Tree, box)
		if err != nil {
			return results, err
		}
		results = append(results, rs...)
	}

	for _, sa := range spec.SQL {
		r, err := evalSQL(sa, pool)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}

	return results, nil
}

func evalExit(want int, outcome *procrun.Outcome) Result {
	if outcome.Exit == nil {
		return Result{Label: "exit", Passed: false, Expected: strconv.Itoa(want), Actual: "process terminated by signal, no exit code"}
	}
	got := *outcome.Exit
	return Result{Label: "exit", Passed: got == want, Expected: strconv.Itoa(want), Actual: strconv.Itoa(got)}
}

func evalSignal(want int, outcome *procrun.Outcome) Result {
	if outcome.Signal == nil {
		return Result{Label: "signal", Passed: false, Expected: strconv.Itoa(want), Actual: "process exited normally, no signal"}
	}
	got := *outcome.Signal
	return Result{Label: "signal", Passed: got == want, Expected: strconv.Itoa(want), Actual: strconv.Itoa(got)}
}

func evalMatcher(label string, m model.Matcher, actual string) Result {
	passed, expectedDesc := matches(m, actual)
	return Result{Label: label, Passed: passed, Expected: expectedDesc, Actual: actual}
}

// matches reports whether actual satisfies m, along with a human
// description of what was expected for use in failure reporting.
func matches(m model.Matcher, actual string) (bool, string) {
	switch m.Kind {
	case model.MatcherEquals:
		return actual == m.Value, m.Value
	case model.MatcherContains:
		return strings.Contains(actual, m.Value), "contains " + strconv.Quote(m.Value)
	case model.MatcherRegex:
		re, err := regexp.Compile(m.Value)
		if err != nil {
			return false, "regex " + strconv.Quote(m.Value) + " (invalid: " + err.Error() + ")"
		}
		return re.MatchString(actual), "matches " + strconv.Quote(m.Value)
	default:
		return false, ""
	}
}

func evalFileAssertion(fa model.FileAssertion, box *sandbox.Sandbox) (Result, error) {
	label := "file " + fa.Path
	path, err := box.ResolvePath(fa.Path, false)
	if err != nil {
		return Result{}, err
	}

	exists, contents, statErr := readFile(path)
	if statErr != nil && !isNotExist(statErr) {
		return Result{}, fmt.Errorf("%w: stat %s: %v", bterrors.ErrSandbox, fa.Path, statErr)
	}

	if fa.Exists != nil {
		want := *fa.Exists
		if want != exists {
			return Result{Label: label, Passed: false, Expected: existsDesc(want), Actual: existsDesc(exists)}, nil
		}
	}

	if fa.Contents != nil {
		if !exists {
			return Result{Label: label, Passed: false, Expected: "file to exist with matching contents", Actual: "file does not exist"}, nil
		}
		passed, expectedDesc := matches(*fa.Contents, contents)
		if !passed {
			return Result{Label: label, Passed: false, Expected: expectedDesc, Actual: contents}, nil
		}
	}

	return Result{Label: label, Passed: true}, nil
}

func evalTree(ta model.TreeAssertion, box *sandbox.Sandbox) ([]Result, error) {
	var results []Result

	for _, fa := range ta.Contains {
		joined := fa
		if ta.Root != "" {
			joined.Path = strings.TrimSuffix(ta.Root, "/") + "/" + fa.Path
		}
		r, err := evalFileAssertion(joined, box)
		if err != nil {
			return results, err
		}
		r.Label = "tree.contains " + joined.Path
		results = append(results, r)
	}

	for _, excluded := range ta.Excludes {
		full := excluded
		if ta.Root != "" {
			full = strings.TrimSuffix(ta.Root, "/") + "/" + excluded
		}
		path, err := box.ResolvePath(full, false)
		if err != nil {
			return results, err
		}
		exists, _, statErr := readFile(path)
		if statErr != nil && !isNotExist(statErr) {
			return results, fmt.Errorf("%w: stat %s: %v", bterrors.ErrSandbox, full, statErr)
		}
		results = append(results, Result{
			Label:    "tree.excludes " + full,
			Passed:   !exists,
			Expected: "absent",
			Actual:   existsDesc(exists),
		})
	}

	return results, nil
}

func evalSQL(sa model.SQLAssertion, pool *dbpool.Pool) (Result, error) {
	switch sa.Kind {
	case model.SQLQuery:
		return evalSQLQuery(sa, pool)
	case model.SQLTableExists, model.SQLTableNotExists:
		return evalSQLTableExists(sa, pool)
	case model.SQLRowCount:
		return evalSQLRowCount(sa, pool)
	default:
		return Result{}, fmt.Errorf("%w: unknown sql assertion kind", bterrors.ErrSpec)
	}
}

func evalSQLQuery(sa model.SQLAssertion, pool *dbpool.Pool) (Result, error) {
	label := "sql query on " + sa.Database
	rows, err := pool.Query(sa.Database, sa.Query)
	if err != nil {
		return Result{}, err
	}

	switch sa.ReturnsKind {
	case model.QueryReturnsEmpty:
		passed := len(rows.Values) == 0
		return Result{Label: label, Passed: passed, Expected: "empty result", Actual: rowsDesc(rows.Values)}, nil

	case model.QueryReturnsNull:
		passed := len(rows.Values) == 1 && len(rows.Values[0]) == 1 && rows.Values[0][0] == "NULL"
		return Result{Label: label, Passed: passed, Expected: "single NULL value", Actual: rowsDesc(rows.Values)}, nil

	case model.QueryReturnsOneRow:
		passed := len(rows.Values) == 1
		return Result{Label: label, Passed: passed, Expected: "exactly one row", Actual: fmt.Sprintf("%d row(s)", len(rows.Values))}, nil

	case model.QueryReturnsMatcher:
		actual := stringifyRows(rows.Values)
		if sa.ReturnsMatch == nil {
			return Result{Label: label, Passed: true, Actual: actual}, nil
		}
		passed, expectedDesc := matches(*sa.ReturnsMatch, actual)
		return Result{Label: label, Passed: passed, Expected: expectedDesc, Actual: actual}, nil

	default:
		return Result{}, fmt.Errorf("%w: unknown query-returns kind", bterrors.ErrSpec)
	}
}

func evalSQLTableExists(sa model.SQLAssertion, pool *dbpool.Pool) (Result, error) {
	rows, err := pool.Query(sa.Database, tableExistsQuery(sa.Table))
	if err != nil {
		return Result{}, err
	}
	exists := len(rows.Values) == 1 && rows.Values[0][0] != "0"

	want := sa.Kind == model.SQLTableExists
	label := "sql table_exists " + sa.Table
	if !want {
		label = "sql table_not_exists " + sa.Table
	}
	return Result{Label: label, Passed: exists == want, Expected: existsDesc(want), Actual: existsDesc(exists)}, nil
}

func tableExistsQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = %s", strconv.Quote(table))
}

func evalSQLRowCount(sa model.SQLAssertion, pool *dbpool.Pool) (Result, error) {
	label := "sql row_count " + sa.RowCountTable
	// #nosec G202 - table identifier is author-controlled test spec, not user input
	rows, err := pool.Query(sa.Database, fmt.Sprintf("SELECT COUNT(*) FROM %s", sa.RowCountTable))
	if err != nil {
		return Result{}, err
	}
	if len(rows.Values) != 1 || len(rows.Values[0]) != 1 {
		return Result{}, fmt.Errorf("%w: unexpected row_count query shape", bterrors.ErrSQL)
	}
	got, convErr := strconv.ParseInt(rows.Values[0][0], 10, 64)
	if convErr != nil {
		return Result{}, fmt.Errorf("%w: row_count did not return an integer: %v", bterrors.ErrSQL, convErr)
	}

	var passed bool
	var op string
	switch sa.RowCountOp {
	case model.RowCountEquals:
		passed, op = got == sa.RowCountValue, "=="
	case model.RowCountGreaterThan:
		passed, op = got > sa.RowCountValue, ">"
	case model.RowCountLessThan:
		passed, op = got < sa.RowCountValue, "<"
	}

	return Result{
		Label:    label,
		Passed:   passed,
		Expected: fmt.Sprintf("%s %d", op, sa.RowCountValue),
		Actual:   strconv.FormatInt(got, 10),
	}, nil
}

func rowsDesc(values [][]string) string {
	if len(values) == 0 {
		return "empty result"
	}
	return stringifyRows(values)
}

func stringifyRows(values [][]string) string {
	rowStrs := make([]string, len(values))
	for i, row := range values {
		rowStrs[i] = strings.Join(row, "\t")
	}
	return strings.Join(rowStrs, "\n")
}

func existsDesc(b bool) string {
	if b {
		return "present"
	}
	return "absent"
}
