package teststate

import (
	"context"
	"fmt"

	"github.com/bintest/bintest/internal/bterrors"
	"github.com/bintest/bintest/internal/interpolate"
	"github.com/bintest/bintest/internal/model"
	"github.com/bintest/bintest/internal/procrun"
)

// evaluateCondition judges one skip_if/require Condition true or false.
// Env{name}: true iff the variable is present in env. Cmd{path, args}: true
// iff the command, run with no shell interposition, exits zero. Sql{...}:
// true iff the query's emptiness matches the configured SQLPredicate.
func evaluateCondition(ctx context.Context, cond model.Condition, tctx Context, env map[string]string) (bool, error) {
	switch cond.Kind {
	case model.ConditionEnv:
		_, ok := env[cond.EnvName]
		return ok, nil

	case model.ConditionCmd:
		cmd, err := interpolate.Expand(cond.CmdPath, "condition.cmd", env)
		if err != nil {
			return false, err
		}
		args, err := interpolate.ExpandAll(cond.CmdArgs, "condition.args", env)
		if err != nil {
			return false, err
		}
		outcome, err := procrun.Run(ctx, procrun.Spec{Cmd: cmd, Args: args, Dir: tctx.Sandbox.Root(), Env: env})
		if err != nil {
			return false, err
		}
		return outcome.Exit != nil && *outcome.Exit == 0, nil

	case model.ConditionSQL:
		query, err := interpolate.Expand(cond.SQLQuery, "condition.sql.query", env)
		if err != nil {
			return false, err
		}
		rows, err := tctx.Pool.Query(cond.SQLDatabase, query)
		if err != nil {
			return false, err
		}
		empty := len(rows.Values) == 0
		switch cond.SQLPredicate {
		case model.SQLPredicateEmpty:
			return empty, nil
		case model.SQLPredicateNonEmpty:
			return !empty, nil
		default:
			return false, fmt.Errorf("%w: unknown sql predicate", bterrors.ErrSpec)
		}

	default:
		return false, fmt.Errorf("%w: unknown condition kind", bterrors.ErrSpec)
	}
}
