// Package ports declares the interfaces the execution engine programs
// against for every external collaborator named in spec §6: revision
// control, the filesystem mirror, the language-model client, language
// providers, and the tool runner. Concrete implementations live in
// pkg/rcs, pkg/fsmirror, pkg/llmclient, pkg/toolrunner and
// pkg/engine/linter/providers and are wired in by cmd/makerd, so the core
// never imports them directly.
package ports

import (
	"context"
	"encoding/json"

	"github.com/makercode/maker/pkg/engine/config"
)

// RepoStatus is the result of RCS.Status.
type RepoStatus struct {
	IsRepo        bool
	CurrentBranch string
	IsDirty       bool
	HasRemote     bool
	Ahead         int
	Behind        int
}

// WorktreeHandle is the result of RCS.CreateWorktree.
type WorktreeHandle struct {
	Branch string
	Path   string
}

// HistoryEntry is one commit in RCS.GetHistory.
type HistoryEntry struct {
	Hash    string
	Message string
}

// RCSConflict mirrors model.Conflict for the RCS adapter's own surface.
type RCSConflict struct {
	Path    string
	Content string
}

// RCS is the revision-control adapter the core drives for checkpoints,
// worktree isolation, and squash-merges (spec §6).
type RCS interface {
	Status(ctx context.Context) (RepoStatus, error)
	InitRepo(ctx context.Context) error
	EnsureGitIgnore(ctx context.Context) error
	CreateCheckpoint(ctx context.Context, msg string, paths []string, cwd string) error
	CommitAll(ctx context.Context, msg string, cwd string) error
	CreateWorktree(ctx context.Context, taskID, stepID string) (WorktreeHandle, error)
	CleanupWorktree(ctx context.Context, path, branch string) error
	// MergeSquash returns ok=false (no error) on unmerged paths; any other
	// failure is returned as an error.
	MergeSquash(ctx context.Context, branch, msg string) (ok bool, err error)
	GetHistory(ctx context.Context) ([]HistoryEntry, error)
	ListWorktrees(ctx context.Context) ([]WorktreeHandle, error)
	GetConflicts(ctx context.Context) ([]RCSConflict, error)
	ResolveConflict(ctx context.Context, path, content string) error
	SyncRemote(ctx context.Context) error
}

// FileSystem is the project-tree mirror every path travels through;
// implementations normalize paths and reject traversal (spec §6).
type FileSystem interface {
	Read(ctx context.Context, path string) (string, error)
	Write(ctx context.Context, path, content string) error
	Mkdir(ctx context.Context, path string, recursive bool) error
	List(ctx context.Context, path string) ([]string, error)
	// Watch invokes cb on every change under path until ctx is canceled.
	Watch(ctx context.Context, path string, cb func(event string)) error
	GetDirectoryTree(ctx context.Context) (TreeEntry, error)
}

// TreeEntry is one node of the project's directory tree.
type TreeEntry struct {
	Name     string
	IsDir    bool
	Children []TreeEntry
}

// LanguageProvider supplies per-language prompt guidance and lint
// diagnostics (spec §6).
type LanguageProvider interface {
	Supports(path string) bool
	GetManifestFiles() []string
	GetSystemPrompt() string
	Lint(ctx context.Context, path, root string) ([]string, error)
}

// ToolRunner executes a ToolDefinition against a call (spec §6).
type ToolRunner interface {
	Execute(ctx context.Context, def config.ToolDefinition, arguments map[string]string, cwd string, outputFile string) (stdout string, err error)
}

// LLMClient is the language-model transport (spec §6). When schema is
// non-nil the implementation must request JSON output; the core tolerates
// and strips triple-backtick code fences regardless.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, schema *json.RawMessage) (text string, err error)
}

// ConfigPersister is the delegated configuration-persistence collaborator
// (spec §6); the core never reads from a store directly.
type ConfigPersister interface {
	Load(ctx context.Context) (config.MakerConfig, error)
	Save(ctx context.Context, cfg config.MakerConfig) error
}
