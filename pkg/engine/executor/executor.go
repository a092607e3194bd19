// Package executor drives one step through the linear flow of spec §4.8:
// worktree acquisition, risk assessment, generation (direct or voted),
// red-flag guarding, writing, linting, and checkpointing.
package executor

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/ctxassembler"
	"github.com/makercode/maker/pkg/engine/decomposer"
	"github.com/makercode/maker/pkg/engine/enginerr"
	"github.com/makercode/maker/pkg/engine/linter"
	"github.com/makercode/maker/pkg/engine/model"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/engine/redflag"
	"github.com/makercode/maker/pkg/engine/risk"
	"github.com/makercode/maker/pkg/engine/voter"
	"github.com/makercode/maker/pkg/logger"
	"github.com/makercode/maker/pkg/stringutil"
)

var log = logger.New("engine:executor")

const internalReadFilePrefix = "__INTERNAL_READ_FILE__ "

// readOnlyTools never treat the step's fileTarget as an output sink
// (spec §4.8 tool-step step 5).
var readOnlyTools = map[string]bool{
	"read_file":      true,
	"ls":             true,
	"grep":           true,
	"make_directory": true,
}

// systemTools is the built-in catalog a step's ToolCall resolves against
// before falling back to `config.tools` (spec §4.8 tool-step step 3: the
// runnable set is system_tools ∪ config.tools). read_file never reaches
// the ToolRunner — its CommandTemplate is the internalReadFilePrefix
// sentinel intercepted in Run.
var systemTools = []config.ToolDefinition{
	{Name: "ls", Description: "List tracked repository files.", CommandTemplate: "git ls-files --full-name", IsSystem: true},
	{Name: "read_file", Description: "Read a file's contents.", CommandTemplate: internalReadFilePrefix + "{{path}}", IsSystem: true},
	{Name: "grep", Description: "Search file contents in the working tree.", CommandTemplate: "grep -rn {{pattern}} .", IsSystem: true},
	{Name: "make_directory", Description: "Create a directory.", CommandTemplate: "mkdir -p {{path}}", IsSystem: true},
}

// Hooks are the per-step callbacks the Scheduler supplies so the Executor
// can report status transitions and log lines through the Notifier
// without importing the store package directly.
type Hooks struct {
	SetStatus func(model.Status)
	AppendLog func(string)
	SetTrace  func(model.Trace)
	SetRisk   func(score float64, reason string)
	SetVotes  func(candidates []model.Candidate)
}

// Executor holds every external collaborator a step execution needs.
type Executor struct {
	FS         ports.FileSystem
	RCS        ports.RCS
	LLM        ports.LLMClient
	Tools      ports.ToolRunner
	Assembler  *ctxassembler.Assembler
	Linter     *linter.Registry
	Decomposer *decomposer.Decomposer
}

// Run executes one step to a terminal Outcome (spec §4.8, §4.9).
func (e *Executor) Run(ctx context.Context, step *model.Step, session *model.Session, cfg config.MakerConfig, agent config.AgentProfile, architectCtx ctxassembler.ArchitectContext, taskID string, hooks Hooks) Outcome {
	var worktree ports.WorktreeHandle
	var hasWorktree bool

	if cfg.UseGitWorktrees {
		hooks.SetStatus(model.StatusIdle)
		wt, err := e.RCS.CreateWorktree(ctx, taskID, step.ID)
		if err != nil {
			hooks.AppendLog(fmt.Sprintf("worktree acquisition failed: %v", err))
			return Failed(enginerr.ErrWorktree.Error())
		}
		worktree = wt
		hasWorktree = true
		defer func() {
			if cleanupErr := e.RCS.CleanupWorktree(ctx, worktree.Path, worktree.Branch); cleanupErr != nil {
				log.Printf("worktree cleanup failed for %s: %v", worktree.Path, cleanupErr)
			}
		}()
	}

	if step.IsToolStep() {
		return e.runToolStep(ctx, step, hasWorktree, worktree, cfg, hooks)
	}
	return e.runCodingStep(ctx, step, session, cfg, agent, architectCtx, hasWorktree, worktree, hooks)
}

func (e *Executor) runCodingStep(ctx context.Context, step *model.Step, session *model.Session, cfg config.MakerConfig, agent config.AgentProfile, architectCtx ctxassembler.ArchitectContext, hasWorktree bool, worktree ports.WorktreeHandle, hooks Hooks) Outcome {
	hooks.SetStatus(model.StatusAnalyzing)
	score, reason := risk.Assess(step, agent)
	hooks.SetRisk(score, reason)

	taskCtx, err := e.Assembler.GetTaskContext(ctx, step.FileTarget, step.Dependencies, session.Decomposition)
	if err != nil {
		hooks.AppendLog(fmt.Sprintf("context assembly failed: %v", err))
		return Failed(err.Error())
	}

	hooks.SetStatus(model.StatusThinking)

	generate := func(ctx context.Context, a config.AgentProfile) (string, error) {
		return e.generateOnce(ctx, step, a, architectCtx, taskCtx, "", hooks)
	}

	var content string
	if risk.ShouldVote(score, cfg.RiskThreshold, agent.RiskTolerance) {
		hooks.SetStatus(model.StatusVoting)
		result, err := voter.PerformVoting(ctx, e.LLM, agent, cfg.AgentProfiles, generate)
		if err != nil {
			hooks.AppendLog(fmt.Sprintf("voting failed: %v", err))
			return Failed(err.Error())
		}
		hooks.SetVotes(result.Candidates)
		content = result.Winner.Content
	} else {
		hooks.SetStatus(model.StatusSkippedVote)
		content, err = generate(ctx, agent)
		if err != nil {
			hooks.AppendLog(fmt.Sprintf("generation failed: %v", err))
			return Failed(err.Error())
		}
	}

	content, outcome := e.runRedFlagGuard(ctx, step, agent, architectCtx, taskCtx, content, hooks)
	if outcome != nil {
		return *outcome
	}

	hooks.SetStatus(model.StatusExecuting)
	targetPath := resolveTargetPath(step.FileTarget, hasWorktree, worktree)
	if err := e.FS.Mkdir(ctx, path.Dir(targetPath), true); err != nil {
		hooks.AppendLog(fmt.Sprintf("mkdir failed: %v", err))
		return Failed(err.Error())
	}
	if err := e.FS.Write(ctx, targetPath, content); err != nil {
		hooks.AppendLog(fmt.Sprintf("write failed: %v", err))
		return Failed(err.Error())
	}

	lintOutcome := e.runLinterLoop(ctx, step, agent, architectCtx, taskCtx, targetPath, content, hasWorktree, worktree, hooks)
	if lintOutcome != nil {
		return *lintOutcome
	}

	hooks.SetStatus(model.StatusCheckpointing)
	if hasWorktree {
		if err := e.RCS.CommitAll(ctx, checkpointMessage(step), worktree.Path); err != nil {
			hooks.AppendLog(fmt.Sprintf("worktree commit failed: %v", err))
			return Failed(err.Error())
		}
		hooks.SetStatus(model.StatusMerging)
		ok, err := e.RCS.MergeSquash(ctx, worktree.Branch, checkpointMessage(step))
		if err != nil {
			hooks.AppendLog(fmt.Sprintf("merge failed: %v", err))
			return Failed(err.Error())
		}
		if !ok {
			hooks.AppendLog("squash-merge surfaced unmerged paths")
			return Failed(enginerr.ErrMergeConflict.Error())
		}
	} else if session.TotalSteps() >= 3 {
		if err := e.RCS.CreateCheckpoint(ctx, checkpointMessage(step), []string{targetPath}, ""); err != nil {
			hooks.AppendLog(fmt.Sprintf("checkpoint failed: %v", err))
			return Failed(err.Error())
		}
	}

	hooks.SetStatus(model.StatusPassed)
	return Passed()
}

func (e *Executor) runRedFlagGuard(ctx context.Context, step *model.Step, agent config.AgentProfile, architectCtx ctxassembler.ArchitectContext, taskCtx, content string, hooks Hooks) (string, *Outcome) {
	for attempt := 0; ; attempt++ {
		flags := redflag.Check(content, architectCtx.PrimaryLanguage)
		if len(flags) == 0 {
			return content, nil
		}
		if attempt >= redflag.MaxRetries {
			hooks.AppendLog(fmt.Sprintf("red flags persisted after %d retries: %v", attempt, flags))
			outcome := Failed(enginerr.ErrRedFlagPersisted.Error())
			return content, &outcome
		}
		feedback := redflag.Feedback(flags)
		hooks.AppendLog(feedback)
		regenerated, err := e.generateOnce(ctx, step, agent, architectCtx, taskCtx, feedback, hooks)
		if err != nil {
			hooks.AppendLog(fmt.Sprintf("red-flag regeneration failed: %v", err))
			outcome := Failed(err.Error())
			return content, &outcome
		}
		content = regenerated
	}
}

func (e *Executor) runLinterLoop(ctx context.Context, step *model.Step, agent config.AgentProfile, architectCtx ctxassembler.ArchitectContext, taskCtx, targetPath, content string, hasWorktree bool, worktree ports.WorktreeHandle, hooks Hooks) *Outcome {
	provider := e.Linter.For(targetPath)
	root := "."
	if hasWorktree {
		root = worktree.Path
	}

	for attempt := 0; ; attempt++ {
		res, err := linter.Lint(ctx, provider, targetPath, root)
		if err != nil {
			hooks.AppendLog(fmt.Sprintf("lint failed: %v", err))
			outcome := Failed(err.Error())
			return &outcome
		}
		if res.Security {
			hooks.AppendLog(fmt.Sprintf("security diagnostics: %v", res.Diagnostics))
			outcome := Failed(enginerr.ErrSecurity.Error())
			return &outcome
		}
		if len(res.Diagnostics) == 0 {
			return nil
		}
		hooks.AppendLog(fmt.Sprintf("lint diagnostics: %v", res.Diagnostics))

		if attempt >= linter.MaxRetries {
			return e.escalateToReplan(ctx, step, hooks)
		}

		expanded, _ := e.Assembler.ExpandContext(ctx, strings.Join(res.Diagnostics, "; "))
		feedback := strings.Join(res.Diagnostics, "\n") + "\n" + expanded
		regenerated, err := e.generateOnce(ctx, step, agent, architectCtx, taskCtx, feedback, hooks)
		if err != nil {
			hooks.AppendLog(fmt.Sprintf("lint-fix regeneration failed: %v", err))
			outcome := Failed(err.Error())
			return &outcome
		}
		content = regenerated
		if err := e.FS.Write(ctx, targetPath, content); err != nil {
			hooks.AppendLog(fmt.Sprintf("rewrite failed: %v", err))
			outcome := Failed(err.Error())
			return &outcome
		}
	}
}

func (e *Executor) escalateToReplan(ctx context.Context, step *model.Step, hooks Hooks) *Outcome {
	errorLog := strings.Join(step.Logs, "\n")
	rescues, err := e.Decomposer.Replan(ctx, step, errorLog)
	if err != nil || len(rescues) == 0 {
		hooks.AppendLog("re-plan produced no rescue steps")
		outcome := Failed(enginerr.ErrLintUnrecoverable.Error())
		return &outcome
	}
	outcome := Replan(rescues)
	return &outcome
}

func (e *Executor) generateOnce(ctx context.Context, step *model.Step, agent config.AgentProfile, architectCtx ctxassembler.ArchitectContext, taskCtx, feedback string, hooks Hooks) (string, error) {
	systemPrompt := buildSystemPrompt(agent, architectCtx)
	userPrompt := buildUserPrompt(step, taskCtx, feedback)
	started := nowMillis()
	text, err := e.LLM.Generate(ctx, systemPrompt, userPrompt, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", enginerr.ErrModel, err)
	}
	content := stripCodeFences(text)
	if hooks.SetTrace != nil {
		hooks.SetTrace(model.Trace{
			Prompt:      userPrompt,
			RawResponse: text,
			StartedAt:   started,
			FinishedAt:  nowMillis(),
		})
	}
	return content, nil
}

func (e *Executor) runToolStep(ctx context.Context, step *model.Step, hasWorktree bool, worktree ports.WorktreeHandle, cfg config.MakerConfig, hooks Hooks) Outcome {
	hooks.SetStatus(model.StatusExecuting)

	def, ok := resolveTool(step.ToolCall.ToolName, cfg.Tools)
	if !ok {
		hooks.AppendLog(fmt.Sprintf("unknown tool %q", step.ToolCall.ToolName))
		return Failed(enginerr.ErrTool.Error())
	}

	args := withArgDefaults(step.ToolCall.Arguments)

	if path, ok := internalReadFileTarget(def, args); ok {
		content, err := e.FS.Read(ctx, path)
		if err != nil {
			hooks.AppendLog(fmt.Sprintf("internal read failed: %v", err))
			return Failed(err.Error())
		}
		step.AppendLog(content)
		hooks.AppendLog(content)
		hooks.SetStatus(model.StatusPassed)
		return Passed()
	}

	cwd := "."
	if hasWorktree {
		cwd = worktree.Path
	}

	outputFile := ""
	if step.FileTarget != "" && !readOnlyTools[def.Name] {
		outputFile = step.FileTarget
	}

	stdout, err := e.Tools.Execute(ctx, def, args, cwd, outputFile)
	if err != nil {
		hooks.AppendLog(fmt.Sprintf("tool execution failed: %v", err))
		return Failed(fmt.Sprintf("%v: %v", enginerr.ErrTool, err))
	}
	hooks.AppendLog(stringutil.StripANSI(stdout))

	hooks.SetStatus(model.StatusCheckpointing)
	hooks.SetStatus(model.StatusPassed)
	return Passed()
}

func internalReadFileTarget(def config.ToolDefinition, args map[string]string) (string, bool) {
	if !strings.HasPrefix(def.CommandTemplate, internalReadFilePrefix) {
		return "", false
	}
	p, ok := args["path"]
	if !ok {
		p = "."
	}
	return p, true
}

func withArgDefaults(args map[string]string) map[string]string {
	out := make(map[string]string, len(args)+1)
	for k, v := range args {
		out[k] = sanitizeArg(v)
	}
	if _, ok := out["path"]; !ok {
		out["path"] = "."
	}
	return out
}

// sanitizeArg strips quote characters so a tool argument can never
// terminate its shell-quoted slot early (spec §4.8 tool-step step 3).
func sanitizeArg(v string) string {
	return strings.NewReplacer(`"`, "", `'`, "").Replace(v)
}

// resolveTool looks up name against the union of the configured tools and
// the built-in systemTools catalog (spec §4.8 tool-step step 3). A
// user-configured tool of the same name takes precedence, so a project can
// still override a built-in's command template.
func resolveTool(name string, tools []config.ToolDefinition) (config.ToolDefinition, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	for _, t := range systemTools {
		if t.Name == name {
			return t, true
		}
	}
	return config.ToolDefinition{}, false
}

func resolveTargetPath(fileTarget string, hasWorktree bool, worktree ports.WorktreeHandle) string {
	clean := strings.TrimPrefix(fileTarget, "./")
	if hasWorktree {
		return path.Join(worktree.Path, clean)
	}
	return clean
}

func checkpointMessage(step *model.Step) string {
	return fmt.Sprintf("MAKER: %s", step.Description)
}

func buildSystemPrompt(agent config.AgentProfile, architectCtx ctxassembler.ArchitectContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, acting as %s.\n", agent.DisplayName, agent.Role)
	if len(architectCtx.ForbiddenKeywords) > 0 {
		fmt.Fprintf(&b, "Forbidden keywords for this project: %s\n", strings.Join(architectCtx.ForbiddenKeywords, ", "))
	}
	return b.String()
}

func buildUserPrompt(step *model.Step, taskCtx, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK: %s\nTARGET FILE: %s\n\n%s\n", step.Description, step.FileTarget, taskCtx)
	if feedback != "" {
		fmt.Fprintf(&b, "\nFEEDBACK FROM A PRIOR ATTEMPT:\n%s\n", feedback)
	}
	return b.String()
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.Index(t, "\n"); idx >= 0 {
		t = t[idx+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(t), "```"))
}
