// Package sandbox manages the per-file isolated working directory: its
// creation under the suite's sandbox_dir policy, resolution of
// sandbox-relative paths, and its disposal (spec.md §4.3). The root it
// exposes is what internal/teststate injects as the SANDBOX env var.
//
// Grounded on internal/runner/executor/tempdir_manager.go's
// DefaultTempDirManager: the Create/Cleanup/Path lifecycle, 0700
// permissions on created directories, and "cleanup failure is logged, not
// fatal" carry over directly; only the policy selection (temp vs. local
// vs. explicit path) is new.
package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/bintest/bintest/internal/bterrors"
	"github.com/bintest/bintest/internal/model"
)

const dirPerm = 0o700

// Sandbox is the disposable working directory for one File's run.
type Sandbox struct {
	root   string
	policy model.SandboxDirPolicy
	logger *slog.Logger
}

// Create makes a sandbox root according to policy for the file named
// fileStem, under the given run timestamp (an ISO-8601 string used to
// namespace sandbox_dir: local runs, spec.md §6 "Persisted state layout").
func Create(policy model.SandboxDirPolicy, fileStem, runTimestamp string, logger *slog.Logger) (*Sandbox, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var root string
	switch policy.Kind {
	case model.SandboxTemp:
		dir, err := os.MkdirTemp("", "bintest-"+fileStem+"-")
		if err != nil {
			return nil, &bterrors.SandboxError{Path: dir, Underlying: err}
		}
		if err := os.Chmod(dir, dirPerm); err != nil {
			_ = os.RemoveAll(dir)
			return nil, &bterrors.SandboxError{Path: dir, Underlying: err}
		}
		root = dir

	case model.SandboxLocal:
		root = filepath.Join(".bintest", runTimestamp, fileStem)
		if err := os.MkdirAll(root, dirPerm); err != nil {
			return nil, &bterrors.SandboxError{Path: root, Underlying: err}
		}

	case model.SandboxPath:
		root = filepath.Join(policy.Path, fileStem)
		if err := os.MkdirAll(root, dirPerm); err != nil {
			return nil, &bterrors.SandboxError{Path: root, Underlying: err}
		}

	default:
		return nil, &bterrors.SandboxError{Path: root, Underlying: fmt.Errorf("unknown sandbox_dir kind %q", policy.Kind)}
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	logger.Info("created sandbox", "path", root, "policy", policy.Kind)
	return &Sandbox{root: root, policy: policy, logger: logger}, nil
}

// Root returns the sandbox's absolute working directory.
func (s *Sandbox) Root() string { return s.root }

// ScratchName returns a unique scratch filename: a dot, prefix, a dash and
// a random UUID. Names stay distinct even across files sharing a stem
// under sandbox_dir: local. It does not create the file.
func (s *Sandbox) ScratchName(prefix string) string {
	return fmt.Sprintf(".%s-%s", prefix, uuid.NewString())
}

// ResolvePath resolves a sandbox-relative path against the sandbox root.
// Absolute paths are rejected per spec.md §3's invariant unless allow is
// true (reserved for the narrow cases §6 documents as exceptions; none
// exist yet, so allow should always be false from current call sites).
func (s *Sandbox) ResolvePath(relPath string, allow bool) (string, error) {
	if filepath.IsAbs(relPath) {
		if !allow {
			return "", fmt.Errorf("%w: absolute path %q not permitted in sandbox-relative position", bterrors.ErrSpec, relPath)
		}
		return relPath, nil
	}
	return filepath.Join(s.root, relPath), nil
}

// Dispose removes the sandbox if policy is temp; local/explicit-path
// sandboxes are preserved. Removal failure under temp is logged and
// swallowed (spec.md §4.3: "failure logged, does not fail the suite").
func (s *Sandbox) Dispose() {
	if s.policy.Kind != model.SandboxTemp {
		return
	}
	if err := os.RemoveAll(s.root); err != nil {
		s.logger.Warn("failed to remove temporary sandbox", "path", s.root, "error", err)
	}
}
