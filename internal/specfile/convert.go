package specfile

import (
	"fmt"
	"regexp"
	"time"

	"github.com/bintest/bintest/internal/bterrors"
	"github.com/bintest/bintest/internal/model"
)

func convertSuite(doc docSuite) (*model.Suite, error) {
	suite := &model.Suite{
		Binary: doc.Binary,
		Env:    doc.Env,
		Serial: doc.Serial,
	}

	if doc.Timeout != "" {
		d, err := parseDuration(doc.Timeout, "suite.timeout")
		if err != nil {
			return nil, err
		}
		suite.Timeout = &d
	}
	suite.InheritEnv = doc.InheritEnv
	suite.CaptureFSDiff = doc.CaptureFSDiff

	policy, err := convertSandboxDir(doc.SandboxDir)
	if err != nil {
		return nil, err
	}
	suite.SandboxDir = policy

	setup, err := convertActions(doc.Setup, "suite.setup")
	if err != nil {
		return nil, err
	}
	suite.Setup = setup

	teardown, err := convertActions(doc.Teardown, "suite.teardown")
	if err != nil {
		return nil, err
	}
	suite.Teardown = teardown

	dbs, err := convertDatabases(doc.Databases, "suite.databases")
	if err != nil {
		return nil, err
	}
	suite.Databases = dbs

	return suite, nil
}

func convertFile(doc docFile, path string) (*model.File, error) {
	file := &model.File{
		Path:   path,
		Binary: doc.Binary,
		Env:    doc.Env,
		Serial: doc.Serial,
	}

	if doc.Timeout != "" {
		d, err := parseDuration(doc.Timeout, path+".timeout")
		if err != nil {
			return nil, err
		}
		file.Timeout = &d
	}
	file.InheritEnv = doc.InheritEnv
	file.CaptureFSDiff = doc.CaptureFSDiff

	setup, err := convertActions(doc.Setup, path+".setup")
	if err != nil {
		return nil, err
	}
	file.Setup = setup

	teardown, err := convertActions(doc.Teardown, path+".teardown")
	if err != nil {
		return nil, err
	}
	file.Teardown = teardown

	dbs, err := convertDatabases(doc.Databases, path+".databases")
	if err != nil {
		return nil, err
	}
	file.Databases = dbs

	seen := map[string]bool{}
	for i, dt := range doc.Tests {
		test, err := convertTest(dt, fmt.Sprintf("%s.tests[%d]", path, i))
		if err != nil {
			return nil, err
		}
		if seen[test.Name] {
			return nil, fmt.Errorf("%w: duplicate test name %q in %s", bterrors.ErrSpec, test.Name, path)
		}
		seen[test.Name] = true
		file.Tests = append(file.Tests, test)
	}

	return file, nil
}

func convertTest(dt docTest, where string) (*model.Test, error) {
	test := &model.Test{Name: dt.Name, Serial: dt.Serial, Env: dt.Env}
	if test.Name == "" {
		return nil, fmt.Errorf("%w: %s is missing a name", bterrors.ErrSpec, where)
	}

	for _, c := range dt.SkipIf {
		cond, err := convertCondition(c, where+".skip_if")
		if err != nil {
			return nil, err
		}
		test.SkipIf = append(test.SkipIf, cond)
	}
	for _, c := range dt.Require {
		cond, err := convertCondition(c, where+".require")
		if err != nil {
			return nil, err
		}
		test.Require = append(test.Require, cond)
	}

	setup, err := convertActions(dt.Setup, where+".setup")
	if err != nil {
		return nil, err
	}
	test.Setup = setup

	teardown, err := convertActions(dt.Teardown, where+".teardown")
	if err != nil {
		return nil, err
	}
	test.Teardown = teardown

	if len(dt.Steps) > 0 {
		seenSteps := map[string]bool{}
		for i, ds := range dt.Steps {
			step, err := convertStep(ds, fmt.Sprintf("%s.steps[%d]", where, i))
			if err != nil {
				return nil, err
			}
			if step.Name != "" {
				if seenSteps[step.Name] {
					return nil, fmt.Errorf("%w: duplicate step name %q in %s", bterrors.ErrSpec, step.Name, where)
				}
				seenSteps[step.Name] = true
			}
			test.Steps = append(test.Steps, step)
		}
		return test, nil
	}

	if dt.Run == nil {
		return nil, fmt.Errorf("%w: %s has neither steps nor a legacy run/expect", bterrors.ErrSpec, where)
	}
	expect := docExpect{}
	if dt.Expect != nil {
		expect = *dt.Expect
	}
	step, err := convertStep(docStep{Name: dt.Name, Run: *dt.Run, Expect: expect}, where)
	if err != nil {
		return nil, err
	}
	test.Steps = []*model.Step{step}
	return test, nil
}

func convertStep(ds docStep, where string) (*model.Step, error) {
	step := &model.Step{Name: ds.Name}

	setup, err := convertActions(ds.Setup, where+".setup")
	if err != nil {
		return nil, err
	}
	step.Setup = setup

	teardown, err := convertActions(ds.Teardown, where+".teardown")
	if err != nil {
		return nil, err
	}
	step.Teardown = teardown

	run, err := convertRunSpec(ds.Run, where+".run")
	if err != nil {
		return nil, err
	}
	step.Run = run

	expect, err := convertExpect(ds.Expect, where+".expect")
	if err != nil {
		return nil, err
	}
	step.Expect = expect

	return step, nil
}

func convertRunSpec(dr docRunSpec, where string) (model.RunSpec, error) {
	run := model.RunSpec{Cmd: dr.Cmd, Args: dr.Args, Env: dr.Env}
	if dr.Stdin != "" {
		run.Stdin = []byte(dr.Stdin)
	}
	if dr.Timeout != "" {
		d, err := parseDuration(dr.Timeout, where+".timeout")
		if err != nil {
			return run, err
		}
		run.Timeout = &d
	}
	if run.Cmd == "" {
		return run, fmt.Errorf("%w: %s.cmd is required", bterrors.ErrSpec, where)
	}
	return run, nil
}

func convertExpect(de docExpect, where string) (model.ExpectSpec, error) {
	expect := model.ExpectSpec{Exit: de.Exit, Signal: de.Signal}

	var err error
	if expect.Stdout, err = convertMatcherPtr(de.Stdout, where+".stdout"); err != nil {
		return expect, err
	}
	if expect.Stderr, err = convertMatcherPtr(de.Stderr, where+".stderr"); err != nil {
		return expect, err
	}

	for i, df := range de.Files {
		fa, err := convertFileAssertion(df, fmt.Sprintf("%s.files[%d]", where, i))
		if err != nil {
			return expect, err
		}
		expect.Files = append(expect.Files, fa)
	}

	if de.Tree != nil {
		tree, err := convertTree(*de.Tree, where+".tree")
		if err != nil {
			return expect, err
		}
		expect.Tree = tree
	}

	for i, ds := range de.SQL {
		sa, err := convertSQLAssertion(ds, fmt.Sprintf("%s.sql[%d]", where, i))
		if err != nil {
			return expect, err
		}
		expect.SQL = append(expect.SQL, sa)
	}

	return expect, nil
}

func convertMatcherPtr(dm *docMatcher, where string) (*model.Matcher, error) {
	if dm == nil {
		return nil, nil
	}
	m, err := convertMatcher(*dm, where)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func convertMatcher(dm docMatcher, where string) (model.Matcher, error) {
	set := 0
	var m model.Matcher
	if dm.Equals != nil {
		set++
		m = model.Matcher{Kind: model.MatcherEquals, Value: *dm.Equals}
	}
	if dm.Contains != nil {
		set++
		m = model.Matcher{Kind: model.MatcherContains, Value: *dm.Contains}
	}
	if dm.Regex != nil {
		set++
		if _, err := regexp.Compile(*dm.Regex); err != nil {
			return m, fmt.Errorf("%w: %s: invalid regex %q: %v", bterrors.ErrSpec, where, *dm.Regex, err)
		}
		m = model.Matcher{Kind: model.MatcherRegex, Value: *dm.Regex}
	}
	if set != 1 {
		return m, fmt.Errorf("%w: %s must set exactly one of equals/contains/regex", bterrors.ErrSpec, where)
	}
	return m, nil
}

func convertFileAssertion(df docFileA, where string) (model.FileAssertion, error) {
	fa := model.FileAssertion{Path: df.Path, Exists: df.Exists}
	contents, err := convertMatcherPtr(df.Contents, where+".contents")
	if err != nil {
		return fa, err
	}
	fa.Contents = contents
	return fa, nil
}

func convertTree(dt docTree, where string) (*model.TreeAssertion, error) {
	tree := &model.TreeAssertion{Root: dt.Root, Excludes: dt.Excludes}
	for i, df := range dt.Contains {
		fa, err := convertFileAssertion(df, fmt.Sprintf("%s.contains[%d]", where, i))
		if err != nil {
			return nil, err
		}
		tree.Contains = append(tree.Contains, fa)
	}
	return tree, nil
}

func convertSQLAssertion(ds docSQLA, where string) (model.SQLAssertion, error) {
	sa := model.SQLAssertion{Database: ds.Database}

	switch ds.Type {
	case "query":
		sa.Kind = model.SQLQuery
		sa.Query = ds.Query
		switch {
		case ds.ReturnsEmpty:
			sa.ReturnsKind = model.QueryReturnsEmpty
		case ds.ReturnsNull:
			sa.ReturnsKind = model.QueryReturnsNull
		case ds.ReturnsOneRow:
			sa.ReturnsKind = model.QueryReturnsOneRow
		case ds.Returns != nil:
			sa.ReturnsKind = model.QueryReturnsMatcher
			m, err := convertMatcher(*ds.Returns, where+".returns")
			if err != nil {
				return sa, err
			}
			sa.ReturnsMatch = &m
		default:
			sa.ReturnsKind = model.QueryReturnsMatcher
		}

	case "table_exists":
		sa.Kind = model.SQLTableExists
		sa.Table = ds.Table

	case "table_not_exists":
		sa.Kind = model.SQLTableNotExists
		sa.Table = ds.Table

	case "row_count":
		sa.Kind = model.SQLRowCount
		sa.RowCountTable = ds.RowCountTable
		switch {
		case ds.Equals != nil:
			sa.RowCountOp, sa.RowCountValue = model.RowCountEquals, *ds.Equals
		case ds.GreaterThan != nil:
			sa.RowCountOp, sa.RowCountValue = model.RowCountGreaterThan, *ds.GreaterThan
		case ds.LessThan != nil:
			sa.RowCountOp, sa.RowCountValue = model.RowCountLessThan, *ds.LessThan
		default:
			return sa, fmt.Errorf("%w: %s.row_count must set one of equals/greater_than/less_than", bterrors.ErrSpec, where)
		}

	default:
		return sa, fmt.Errorf("%w: %s has unknown sql assertion type %q", bterrors.ErrSpec, where, ds.Type)
	}

	return sa, nil
}

func convertActions(docs []docAction, where string) ([]model.Action, error) {
	var out []model.Action
	for i, d := range docs {
		a, err := convertAction(d, fmt.Sprintf("%s[%d]", where, i))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func convertAction(d docAction, where string) (model.Action, error) {
	a := model.Action{}

	switch d.Type {
	case "write_file":
		a.Kind = model.ActionWriteFile
		a.WriteFilePath, a.WriteFileContents = d.Path, d.Contents
	case "create_dir":
		a.Kind, a.DirPath = model.ActionCreateDir, d.Path
	case "copy_file":
		a.Kind, a.CopyFrom, a.CopyTo = model.ActionCopyFile, d.From, d.To
	case "copy_dir":
		a.Kind, a.CopyFrom, a.CopyTo = model.ActionCopyDir, d.From, d.To
	case "remove_file":
		a.Kind, a.DirPath = model.ActionRemoveFile, d.Path
	case "remove_dir":
		a.Kind, a.DirPath = model.ActionRemoveDir, d.Path
	case "run":
		run, err := convertRunSpec(d.Run, where+".run")
		if err != nil {
			return a, err
		}
		a.Kind, a.Run, a.RunShell = model.ActionRun, run, d.Shell
	case "sql":
		onErr, err := convertOnError(d.OnError, where+".on_error")
		if err != nil {
			return a, err
		}
		a.Kind, a.SQLDatabase, a.SQLStatements, a.SQLOnError = model.ActionSQL, d.Database, d.Statements, onErr
	case "sql_file":
		a.Kind, a.SQLDatabase, a.SQLFilePath = model.ActionSQLFile, d.Database, d.SQLFile
	case "db_snapshot":
		a.Kind, a.SnapshotDatabase, a.SnapshotName = model.ActionDBSnapshot, d.Database, d.Name
	case "db_restore":
		a.Kind, a.SnapshotDatabase, a.SnapshotName = model.ActionDBRestore, d.Database, d.Name
	default:
		return a, fmt.Errorf("%w: %s has unknown action type %q", bterrors.ErrSpec, where, d.Type)
	}

	return a, nil
}

func convertOnError(s, where string) (model.SQLOnError, error) {
	switch s {
	case "", "fail":
		return model.SQLOnErrorFail, nil
	case "continue":
		return model.SQLOnErrorContinue, nil
	default:
		return model.SQLOnErrorFail, fmt.Errorf("%w: %s has unknown on_error %q", bterrors.ErrSpec, where, s)
	}
}

func convertCondition(d docCond, where string) (model.Condition, error) {
	c := model.Condition{}
	switch d.Type {
	case "env":
		c.Kind, c.EnvName = model.ConditionEnv, d.Name
	case "cmd":
		c.Kind, c.CmdPath, c.CmdArgs = model.ConditionCmd, d.Cmd, d.Args
	case "sql":
		pred, err := convertPredicate(d.Predicate, where+".predicate")
		if err != nil {
			return c, err
		}
		c.Kind, c.SQLDatabase, c.SQLQuery, c.SQLPredicate = model.ConditionSQL, d.Database, d.Query, pred
	default:
		return c, fmt.Errorf("%w: %s has unknown condition type %q", bterrors.ErrSpec, where, d.Type)
	}
	return c, nil
}

func convertPredicate(s, where string) (model.SQLPredicate, error) {
	switch s {
	case "", "non_empty":
		return model.SQLPredicateNonEmpty, nil
	case "empty":
		return model.SQLPredicateEmpty, nil
	default:
		return 0, fmt.Errorf("%w: %s has unknown predicate %q", bterrors.ErrSpec, where, s)
	}
}

func convertDatabases(docs map[string]docDB, where string) (map[string]model.DatabaseDef, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make(map[string]model.DatabaseDef, len(docs))
	for name, d := range docs {
		if d.Driver != "sqlite" && d.Driver != "postgres" {
			return nil, fmt.Errorf("%w: %s[%s] has unknown driver %q", bterrors.ErrSpec, where, name, d.Driver)
		}
		out[name] = model.DatabaseDef{Name: name, Driver: d.Driver, URL: d.URL, Isolation: d.Isolation}
	}
	return out, nil
}

func convertSandboxDir(s string) (model.SandboxDirPolicy, error) {
	switch s {
	case "", "temp":
		return model.SandboxDirPolicy{Kind: model.SandboxTemp}, nil
	case "local":
		return model.SandboxDirPolicy{Kind: model.SandboxLocal}, nil
	default:
		return model.SandboxDirPolicy{Kind: model.SandboxPath, Path: s}, nil
	}
}

func parseDuration(s, where string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: invalid duration %q: %v", bterrors.ErrSpec, where, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s: timeout must be positive, got %q", bterrors.ErrSpec, where, s)
	}
	return d, nil
}
