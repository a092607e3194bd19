// Package enginerr names the execution engine's error taxonomy as sentinel
// values so callers can branch with errors.Is instead of parsing messages.
package enginerr

import "errors"

var (
	// ErrParallelNotAllowed is returned by startTask when another session
	// has active workers and worktrees are disabled.
	ErrParallelNotAllowed = errors.New("maker: another session is active and git worktrees are disabled")

	// ErrDecomposition is returned when the model's plan response cannot be
	// recovered as an array of steps.
	ErrDecomposition = errors.New("maker: could not recover a step plan from the model response")

	// ErrWorktree is returned when worktree creation fails.
	ErrWorktree = errors.New("maker: worktree creation failed")

	// ErrSecurity is returned when a linter diagnostic is security-fatal.
	ErrSecurity = errors.New("maker: linter reported a security diagnostic")

	// ErrRedFlagPersisted is returned when static red-flag checks still
	// fire after the bounded retry budget is exhausted.
	ErrRedFlagPersisted = errors.New("maker: red flags persisted after retries")

	// ErrLintUnrecoverable is returned when auto-fix is exhausted and
	// re-planning produced no rescue steps.
	ErrLintUnrecoverable = errors.New("maker: linter diagnostics could not be resolved")

	// ErrMergeConflict is returned when a worktree squash-merge surfaces
	// unmerged paths.
	ErrMergeConflict = errors.New("maker: squash-merge produced unmerged paths")

	// ErrPathTraversal is returned by the filesystem mirror for any path
	// that normalizes to contain a ".." segment.
	ErrPathTraversal = errors.New("maker: path escapes the project root")

	// ErrModel wraps a language-model transport failure.
	ErrModel = errors.New("maker: language model request failed")

	// ErrTool wraps a tool-runner failure.
	ErrTool = errors.New("maker: tool invocation failed")
)
