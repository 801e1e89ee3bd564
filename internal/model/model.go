// Package model defines the internal typed representation of a loaded and
// validated bintest specification tree: Suite, File, Test, Step, and the
// assertion/action data carried by each.
package model

import "time"

// SandboxDirPolicy selects how a File's sandbox root is created and, at
// disposal time, whether it is removed.
type SandboxDirPolicy struct {
	// Kind is "temp", "local", or "path".
	Kind string
	// Path holds the explicit directory when Kind is "path"; empty otherwise.
	Path string
}

// SandboxTemp and friends are the recognized SandboxDirPolicy.Kind values.
const (
	SandboxTemp  = "temp"
	SandboxLocal = "local"
	SandboxPath  = "path"
)

// Suite is the root of a run.
type Suite struct {
	Binary          string
	Timeout         *time.Duration
	Env             map[string]string
	InheritEnv      *bool
	Serial          bool
	CaptureFSDiff   *bool
	SandboxDir      SandboxDirPolicy
	Setup           []Action
	Teardown        []Action
	Databases       map[string]DatabaseDef
	Files           []*File
}

// File is a single specification document within a Suite.
type File struct {
	// Path is the source path this File was loaded from, used only for
	// diagnostics and sandbox naming (file-stem), never for resolving
	// sandbox-relative paths (spec.md §3 invariant).
	Path string

	Binary        string
	Timeout       *time.Duration
	Env           map[string]string
	InheritEnv    *bool
	Serial        bool
	CaptureFSDiff *bool
	Databases     map[string]DatabaseDef
	Setup         []Action
	Teardown      []Action
	Tests         []*Test
}

// Stem returns the filename without its extension, used to name the
// file's sandbox directory under sandbox_dir: local.
func (f *File) Stem() string {
	base := f.Path
	dot := -1
	slash := -1
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' && slash == -1 {
			slash = i
		}
		if base[i] == '.' && dot == -1 && slash == -1 {
			dot = i
		}
	}
	start := 0
	if slash != -1 {
		start = slash + 1
	}
	end := len(base)
	if dot != -1 && dot > start {
		end = dot
	}
	if start >= end {
		return "file"
	}
	return base[start:end]
}

// Test is either a single implicit step (legacy Run/Expect) or an ordered
// non-empty list of Steps.
type Test struct {
	Name     string
	Serial   bool
	Env      map[string]string
	SkipIf   []Condition
	Require  []Condition
	Setup    []Action
	Teardown []Action
	Steps    []*Step
}

// Step is one run-and-assert unit within a Test.
type Step struct {
	Name     string
	Setup    []Action
	Run      RunSpec
	Expect   ExpectSpec
	Teardown []Action
}

// RunSpec describes how to invoke the binary under test for one Step.
type RunSpec struct {
	Cmd     string
	Args    []string
	Stdin   []byte
	Timeout *time.Duration
	Env     map[string]string
}

// ExpectSpec is the set of assertions to evaluate against a Step's outcome.
// A nil field means "unchecked".
type ExpectSpec struct {
	Exit   *int
	Signal *int
	Stdout *Matcher
	Stderr *Matcher
	Files  []FileAssertion
	Tree   *TreeAssertion
	SQL    []SQLAssertion
}

// MatcherKind tags the three ways a Matcher can compare text.
type MatcherKind int

// Recognized MatcherKind values.
const (
	MatcherEquals MatcherKind = iota
	MatcherContains
	MatcherRegex
)

// Matcher is a tagged choice of Equals, Contains, or Regex comparison.
type Matcher struct {
	Kind  MatcherKind
	Value string
}

// FileAssertion checks existence and/or contents of one sandbox-relative path.
type FileAssertion struct {
	Path     string
	Exists   *bool
	Contents *Matcher
}

// TreeAssertion checks a directory subtree for required and forbidden entries.
type TreeAssertion struct {
	Root     string
	Contains []FileAssertion
	Excludes []string
}

// SQLAssertionKind tags the seven SQL assertion variants.
type SQLAssertionKind int

// Recognized SQLAssertionKind values.
const (
	SQLQuery SQLAssertionKind = iota
	SQLTableExists
	SQLTableNotExists
	SQLRowCount
)

// QueryReturnsKind distinguishes how a SQLQuery assertion's result is judged.
type QueryReturnsKind int

// Recognized QueryReturnsKind values.
const (
	QueryReturnsMatcher QueryReturnsKind = iota
	QueryReturnsEmpty
	QueryReturnsNull
	QueryReturnsOneRow
)

// RowCountOp is the comparison operator for a RowCount assertion.
type RowCountOp int

// Recognized RowCountOp values.
const (
	RowCountEquals RowCountOp = iota
	RowCountGreaterThan
	RowCountLessThan
)

// SQLAssertion is a tagged variant over the seven forms spec.md §3 names.
type SQLAssertion struct {
	Kind     SQLAssertionKind
	Database string

	// SQLQuery fields
	Query        string
	ReturnsKind  QueryReturnsKind
	ReturnsMatch *Matcher

	// SQLTableExists / SQLTableNotExists field
	Table string

	// SQLRowCount fields
	RowCountTable string
	RowCountOp    RowCountOp
	RowCountValue int64
}

// ActionKind tags the eleven setup/teardown Action variants.
type ActionKind int

// Recognized ActionKind values.
const (
	ActionWriteFile ActionKind = iota
	ActionCreateDir
	ActionCopyFile
	ActionCopyDir
	ActionRemoveFile
	ActionRemoveDir
	ActionRun
	ActionSQL
	ActionSQLFile
	ActionDBSnapshot
	ActionDBRestore
)

// SQLOnError selects whether a failed statement aborts its Action (Fail) or
// is recorded and skipped (Continue).
type SQLOnError int

// Recognized SQLOnError values.
const (
	SQLOnErrorFail SQLOnError = iota
	SQLOnErrorContinue
)

// Action is a tagged variant used in Setup/Teardown lists. Exactly one
// cluster of fields is populated per Kind; see docs on each Kind's fields.
type Action struct {
	Kind ActionKind

	// WriteFile
	WriteFilePath     string
	WriteFileContents string

	// CreateDir / RemoveDir / RemoveFile
	DirPath string

	// CopyFile / CopyDir
	CopyFrom string
	CopyTo   string

	// Run (setup/teardown convenience command; may be shell-wrapped,
	// unlike the step's own RunSpec — see SPEC_FULL.md supplemented
	// features #6).
	Run      RunSpec
	RunShell bool

	// SQL
	SQLDatabase   string
	SQLStatements []string
	SQLOnError    SQLOnError

	// SQLFile (path resolved relative to the sandbox, per SPEC_FULL.md)
	SQLFilePath string

	// DBSnapshot / DBRestore
	SnapshotDatabase string
	SnapshotName     string
}

// DatabaseDef configures one logical database available to a File's pool.
type DatabaseDef struct {
	Name      string
	Driver    string // "sqlite" | "postgres"
	URL       string
	Isolation string // "" | "per_file"
}

// ConditionKind tags the three Condition variants used in SkipIf/Require.
type ConditionKind int

// Recognized ConditionKind values.
const (
	ConditionEnv ConditionKind = iota
	ConditionCmd
	ConditionSQL
)

// SQLPredicate selects how a ConditionSQL's query result is judged true/false.
type SQLPredicate int

// Recognized SQLPredicate values.
const (
	SQLPredicateNonEmpty SQLPredicate = iota
	SQLPredicateEmpty
)

// Condition is evaluated by SkipIf/Require before a Test's setup begins.
type Condition struct {
	Kind ConditionKind

	// ConditionEnv
	EnvName string

	// ConditionCmd: a single executable with arguments, never shell-wrapped.
	CmdPath string
	CmdArgs []string

	// ConditionSQL
	SQLDatabase  string
	SQLQuery     string
	SQLPredicate SQLPredicate
}
