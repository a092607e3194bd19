// Package rcs implements the revision-control adapter (spec §6) by
// shelling out to the system git binary, in the teacher's own
// exec.Command/CombinedOutput idiom.
package rcs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("rcs:git")

const gitIgnoreContents = ".maker/\n"

// Git is the git-backed RCS adapter. Root is the project working tree;
// every operation without an explicit cwd runs there.
type Git struct {
	Root string
}

// New returns a Git adapter rooted at root.
func New(root string) *Git {
	return &Git{Root: root}
}

func (g *Git) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if dir == "" {
		dir = g.Root
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if log.Enabled() {
		log.Printf("git %s (dir=%s): err=%v", strings.Join(args, " "), dir, err)
	}
	return output, err
}

func (g *Git) Status(ctx context.Context) (ports.RepoStatus, error) {
	if _, err := os.Stat(filepath.Join(g.Root, ".git")); err != nil {
		return ports.RepoStatus{}, nil
	}
	status := ports.RepoStatus{IsRepo: true}

	branchOut, err := g.run(ctx, "", "rev-parse", "--abbrev-ref", "HEAD")
	if err == nil {
		status.CurrentBranch = strings.TrimSpace(string(branchOut))
	}

	porcelain, err := g.run(ctx, "", "status", "--porcelain")
	if err != nil {
		return status, fmt.Errorf("rcs: git status: %w (output: %s)", err, string(porcelain))
	}
	status.IsDirty = len(strings.TrimSpace(string(porcelain))) > 0

	remoteOut, err := g.run(ctx, "", "remote")
	if err == nil {
		status.HasRemote = len(strings.TrimSpace(string(remoteOut))) > 0
	}

	if status.HasRemote && status.CurrentBranch != "" {
		countOut, err := g.run(ctx, "", "rev-list", "--left-right", "--count",
			fmt.Sprintf("HEAD...origin/%s", status.CurrentBranch))
		if err == nil {
			fields := strings.Fields(strings.TrimSpace(string(countOut)))
			if len(fields) == 2 {
				status.Ahead, _ = strconv.Atoi(fields[0])
				status.Behind, _ = strconv.Atoi(fields[1])
			}
		}
	}

	return status, nil
}

func (g *Git) InitRepo(ctx context.Context) error {
	output, err := g.run(ctx, "", "init")
	if err != nil {
		return fmt.Errorf("rcs: git init: %w (output: %s)", err, string(output))
	}
	return nil
}

func (g *Git) EnsureGitIgnore(ctx context.Context) error {
	path := filepath.Join(g.Root, ".gitignore")
	existing, err := os.ReadFile(path)
	if err == nil && strings.Contains(string(existing), ".maker/") {
		return nil
	}
	content := string(existing)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += gitIgnoreContents
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("rcs: writing .gitignore: %w", err)
	}
	return nil
}

func (g *Git) CreateCheckpoint(ctx context.Context, msg string, paths []string, cwd string) error {
	addArgs := append([]string{"add"}, addTargets(paths)...)
	if output, err := g.run(ctx, cwd, addArgs...); err != nil {
		return fmt.Errorf("rcs: git add: %w (output: %s)", err, string(output))
	}
	return g.commitIfDirty(ctx, cwd, msg)
}

func (g *Git) CommitAll(ctx context.Context, msg string, cwd string) error {
	if output, err := g.run(ctx, cwd, "add", "."); err != nil {
		return fmt.Errorf("rcs: git add: %w (output: %s)", err, string(output))
	}
	return g.commitIfDirty(ctx, cwd, msg)
}

func (g *Git) commitIfDirty(ctx context.Context, cwd, msg string) error {
	statusOutput, err := g.run(ctx, cwd, "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("rcs: git status: %w (output: %s)", err, string(statusOutput))
	}
	if len(strings.TrimSpace(string(statusOutput))) == 0 {
		return nil
	}
	output, err := g.run(ctx, cwd, "commit", "-m", msg)
	if err != nil {
		return fmt.Errorf("rcs: git commit: %w (output: %s)", err, string(output))
	}
	return nil
}

func addTargets(paths []string) []string {
	if len(paths) == 0 {
		return []string{"."}
	}
	return paths
}

func (g *Git) CreateWorktree(ctx context.Context, taskID, stepID string) (ports.WorktreeHandle, error) {
	branch := fmt.Sprintf("maker/%s/step-%s", taskID, stepID)
	path := filepath.Join(g.Root, ".maker", "worktrees", stepID)

	output, err := g.run(ctx, "", "worktree", "add", "-b", branch, path)
	if err != nil {
		return ports.WorktreeHandle{}, fmt.Errorf("rcs: git worktree add: %w (output: %s)", err, string(output))
	}
	return ports.WorktreeHandle{Branch: branch, Path: path}, nil
}

func (g *Git) CleanupWorktree(ctx context.Context, path, branch string) error {
	output, err := g.run(ctx, "", "worktree", "remove", "--force", path)
	if err != nil {
		log.Printf("worktree remove failed for %s: %v (output: %s)", path, err, string(output))
	}
	if output, err := g.run(ctx, "", "branch", "-D", branch); err != nil {
		log.Printf("branch delete failed for %s: %v (output: %s)", branch, err, string(output))
	}
	return nil
}

func (g *Git) MergeSquash(ctx context.Context, branch, msg string) (bool, error) {
	output, err := g.run(ctx, "", "merge", "--squash", branch)
	if err != nil {
		if strings.Contains(string(output), "Unmerged paths") || strings.Contains(string(output), "CONFLICT") {
			return false, nil
		}
		return false, fmt.Errorf("rcs: git merge --squash: %w (output: %s)", err, string(output))
	}
	if commitOut, err := g.run(ctx, "", "commit", "-m", msg); err != nil {
		return false, fmt.Errorf("rcs: git commit (squash): %w (output: %s)", err, string(commitOut))
	}
	return true, nil
}

func (g *Git) GetHistory(ctx context.Context) ([]ports.HistoryEntry, error) {
	output, err := g.run(ctx, "", "log", "--pretty=format:%H%x09%s")
	if err != nil {
		return nil, fmt.Errorf("rcs: git log: %w (output: %s)", err, string(output))
	}
	var entries []ports.HistoryEntry
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		entries = append(entries, ports.HistoryEntry{Hash: parts[0], Message: parts[1]})
	}
	return entries, nil
}

func (g *Git) ListWorktrees(ctx context.Context) ([]ports.WorktreeHandle, error) {
	output, err := g.run(ctx, "", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("rcs: git worktree list: %w (output: %s)", err, string(output))
	}
	var handles []ports.WorktreeHandle
	var current ports.WorktreeHandle
	for _, line := range strings.Split(string(output), "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current.Path != "" {
				handles = append(handles, current)
			}
			current = ports.WorktreeHandle{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		}
	}
	if current.Path != "" {
		handles = append(handles, current)
	}
	return handles, nil
}

func (g *Git) GetConflicts(ctx context.Context) ([]ports.RCSConflict, error) {
	output, err := g.run(ctx, "", "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("rcs: listing unmerged paths: %w (output: %s)", err, string(output))
	}
	var conflicts []ports.RCSConflict
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		content, readErr := os.ReadFile(filepath.Join(g.Root, line))
		if readErr != nil {
			continue
		}
		conflicts = append(conflicts, ports.RCSConflict{Path: line, Content: string(content)})
	}
	return conflicts, nil
}

func (g *Git) ResolveConflict(ctx context.Context, path, content string) error {
	full := filepath.Join(g.Root, path)
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("rcs: writing resolved content for %s: %w", path, err)
	}
	if output, err := g.run(ctx, "", "add", path); err != nil {
		return fmt.Errorf("rcs: git add (resolve): %w (output: %s)", err, string(output))
	}
	return nil
}

func (g *Git) SyncRemote(ctx context.Context) error {
	if output, err := g.run(ctx, "", "fetch", "origin"); err != nil {
		return fmt.Errorf("rcs: git fetch: %w (output: %s)", err, string(output))
	}
	if output, err := g.run(ctx, "", "pull", "--ff-only"); err != nil {
		return fmt.Errorf("rcs: git pull: %w (output: %s)", err, string(output))
	}
	return nil
}
