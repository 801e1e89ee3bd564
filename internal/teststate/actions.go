package teststate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bintest/bintest/internal/bterrors"
	"github.com/bintest/bintest/internal/interpolate"
	"github.com/bintest/bintest/internal/model"
	"github.com/bintest/bintest/internal/procrun"
)

// runActions executes actions in order against tctx, stopping and
// returning an error at the first failure (spec.md §4.8 step 3/4: "first
// failure aborts the sequence"). Any warnings accumulated from
// on_error: continue SQL batches are returned regardless of outcome.
func runActions(ctx context.Context, actions []model.Action, tctx Context, env map[string]string) ([]string, error) {
	var warnings []string
	for i, action := range actions {
		w, err := runAction(ctx, action, tctx, env, i)
		warnings = append(warnings, w...)
		if err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

func runAction(ctx context.Context, action model.Action, tctx Context, env map[string]string, idx int) ([]string, error) {
	where := func(field string) string { return fmt.Sprintf("action[%d].%s", idx, field) }

	switch action.Kind {
	case model.ActionWriteFile:
		return nil, actionWriteFile(action, tctx, env, where)

	case model.ActionCreateDir:
		return nil, actionCreateDir(action, tctx, env, where)

	case model.ActionCopyFile:
		return nil, actionCopyFile(action, tctx, env, where)

	case model.ActionCopyDir:
		return nil, actionCopyDir(action, tctx, env, where)

	case model.ActionRemoveFile:
		return nil, actionRemove(action, tctx, env, where, false)

	case model.ActionRemoveDir:
		return nil, actionRemove(action, tctx, env, where, true)

	case model.ActionRun:
		return nil, actionRun(ctx, action, tctx, env, where)

	case model.ActionSQL:
		return actionSQL(action, tctx, env, where)

	case model.ActionSQLFile:
		return actionSQLFile(action, tctx, env, where)

	case model.ActionDBSnapshot:
		return nil, wrapAction("db_snapshot", tctx.Pool.Snapshot(action.SnapshotDatabase, action.SnapshotName))

	case model.ActionDBRestore:
		return nil, wrapAction("db_restore", tctx.Pool.Restore(action.SnapshotDatabase, action.SnapshotName))

	default:
		return nil, fmt.Errorf("%w: unknown action kind", bterrors.ErrSpec)
	}
}

func wrapAction(name string, err error) error {
	if err == nil {
		return nil
	}
	return &bterrors.ActionError{Action: name, Underlying: err}
}

func actionWriteFile(action model.Action, tctx Context, env map[string]string, where func(string) string) error {
	path, err := interpolate.Expand(action.WriteFilePath, where("write_file.path"), env)
	if err != nil {
		return err
	}
	contents, err := interpolate.Expand(action.WriteFileContents, where("write_file.contents"), env)
	if err != nil {
		return err
	}
	full, err := tctx.Sandbox.ResolvePath(path, false)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return wrapAction("write_file", err)
	}
	return wrapAction("write_file", os.WriteFile(full, []byte(contents), 0o600))
}

func actionCreateDir(action model.Action, tctx Context, env map[string]string, where func(string) string) error {
	path, err := interpolate.Expand(action.DirPath, where("create_dir.path"), env)
	if err != nil {
		return err
	}
	full, err := tctx.Sandbox.ResolvePath(path, false)
	if err != nil {
		return err
	}
	return wrapAction("create_dir", os.MkdirAll(full, 0o700))
}

func actionCopyFile(action model.Action, tctx Context, env map[string]string, where func(string) string) error {
	from, err := interpolate.Expand(action.CopyFrom, where("copy_file.from"), env)
	if err != nil {
		return err
	}
	to, err := interpolate.Expand(action.CopyTo, where("copy_file.to"), env)
	if err != nil {
		return err
	}
	fromFull, err := tctx.Sandbox.ResolvePath(from, false)
	if err != nil {
		return err
	}
	toFull, err := tctx.Sandbox.ResolvePath(to, false)
	if err != nil {
		return err
	}
	return wrapAction("copy_file", copyFile(fromFull, toFull))
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(to), 0o700); err != nil {
		return err
	}
	dst, err := os.OpenFile(to, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

func actionCopyDir(action model.Action, tctx Context, env map[string]string, where func(string) string) error {
	from, err := interpolate.Expand(action.CopyFrom, where("copy_dir.from"), env)
	if err != nil {
		return err
	}
	to, err := interpolate.Expand(action.CopyTo, where("copy_dir.to"), env)
	if err != nil {
		return err
	}
	fromFull, err := tctx.Sandbox.ResolvePath(from, false)
	if err != nil {
		return err
	}
	toFull, err := tctx.Sandbox.ResolvePath(to, false)
	if err != nil {
		return err
	}
	return wrapAction("copy_dir", copyDir(fromFull, toFull))
}

func copyDir(from, to string) error {
	return filepath.Walk(from, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, path)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o700)
		}
		return copyFile(path, target)
	})
}

func actionRemove(action model.Action, tctx Context, env map[string]string, where func(string) string, dir bool) error {
	path, err := interpolate.Expand(action.DirPath, where("path"), env)
	if err != nil {
		return err
	}
	full, err := tctx.Sandbox.ResolvePath(path, false)
	if err != nil {
		return err
	}
	name := "remove_file"
	if dir {
		name = "remove_dir"
		return wrapAction(name, os.RemoveAll(full))
	}
	return wrapAction(name, os.Remove(full))
}

// actionRun executes a setup/teardown convenience command. Unlike a
// Step's RunSpec, this may be shell: true (SPEC_FULL.md supplemented
// feature #6) — setup/teardown glue is author-trusted fixture code, not
// the binary under test.
func actionRun(ctx context.Context, action model.Action, tctx Context, env map[string]string, where func(string) string) error {
	cmd, err := interpolate.Expand(action.Run.Cmd, where("run.cmd"), env)
	if err != nil {
		return err
	}
	args, err := interpolate.ExpandAll(action.Run.Args, where("run.args"), env)
	if err != nil {
		return err
	}

	spec := procrun.Spec{Dir: tctx.Sandbox.Root(), Env: env, Stdin: action.Run.Stdin}
	if action.RunShell {
		spec.Cmd = "/bin/sh"
		spec.Args = append([]string{"-c", cmd}, args...)
	} else {
		spec.Cmd = cmd
		spec.Args = args
	}
	if action.Run.Timeout != nil {
		spec.Timeout = *action.Run.Timeout
	}

	outcome, runErr := procrun.Run(ctx, spec)
	if runErr != nil {
		return wrapAction("run", runErr)
	}
	if outcome.Exit == nil || *outcome.Exit != 0 {
		return wrapAction("run", fmt.Errorf("command %q exited non-zero: %s", cmd, bytes.TrimSpace(outcome.Stderr)))
	}
	return nil
}

func actionSQL(action model.Action, tctx Context, env map[string]string, where func(string) string) ([]string, error) {
	statements, err := interpolate.ExpandAll(action.SQLStatements, where("sql.statements"), env)
	if err != nil {
		return nil, err
	}
	warnings, sqlErr := tctx.Pool.Execute(action.SQLDatabase, statements, action.SQLOnError)
	if sqlErr != nil {
		return warnings, wrapAction("sql", sqlErr)
	}
	return warnings, nil
}

// actionSQLFile resolves its path against the sandbox (SPEC_FULL.md
// supplemented feature #1), reads it, and executes its contents as a
// single semicolon-delimited batch under on_error: fail.
func actionSQLFile(action model.Action, tctx Context, env map[string]string, where func(string) string) ([]string, error) {
	path, err := interpolate.Expand(action.SQLFilePath, where("sql_file.path"), env)
	if err != nil {
		return nil, err
	}
	full, err := tctx.Sandbox.ResolvePath(path, false)
	if err != nil {
		return nil, err
	}
	contents, readErr := os.ReadFile(full)
	if readErr != nil {
		return nil, wrapAction("sql_file", readErr)
	}
	expanded, err := interpolate.Expand(string(contents), where("sql_file.contents"), env)
	if err != nil {
		return nil, err
	}
	warnings, sqlErr := tctx.Pool.Execute(action.SQLDatabase, []string{expanded}, model.SQLOnErrorFail)
	if sqlErr != nil {
		return warnings, wrapAction("sql_file", sqlErr)
	}
	return warnings, nil
}
