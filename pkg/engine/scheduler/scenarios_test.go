//go:build !integration

package scheduler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/ctxassembler"
	"github.com/makercode/maker/pkg/engine/decomposer"
	"github.com/makercode/maker/pkg/engine/executor"
	"github.com/makercode/maker/pkg/engine/linter"
	"github.com/makercode/maker/pkg/engine/model"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/engine/scheduler"
	"github.com/makercode/maker/pkg/engine/store"
)

type fakeFS struct {
	mu    sync.Mutex
	files map[string]string
}

func newFakeFS() *fakeFS { return &fakeFS{files: map[string]string{}} }

func (f *fakeFS) Read(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("fakeFS: %s does not exist", path)
	}
	return c, nil
}

func (f *fakeFS) Write(_ context.Context, path, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
	return nil
}

func (f *fakeFS) Mkdir(_ context.Context, _ string, _ bool) error         { return nil }
func (f *fakeFS) List(_ context.Context, _ string) ([]string, error)      { return nil, nil }
func (f *fakeFS) Watch(_ context.Context, _ string, _ func(string)) error { return nil }
func (f *fakeFS) GetDirectoryTree(_ context.Context) (ports.TreeEntry, error) {
	return ports.TreeEntry{}, nil
}

// fakeRCS records every call; CreateWorktree/CleanupWorktree also track the
// peak number of worktrees open at once, for S5's concurrency assertion.
type fakeRCS struct {
	mu      sync.Mutex
	commits []string
	merged  []string

	active int32
	peak   int32
}

func (r *fakeRCS) Status(context.Context) (ports.RepoStatus, error) { return ports.RepoStatus{}, nil }
func (r *fakeRCS) InitRepo(context.Context) error                   { return nil }
func (r *fakeRCS) EnsureGitIgnore(context.Context) error            { return nil }

func (r *fakeRCS) CreateCheckpoint(context.Context, string, []string, string) error { return nil }

func (r *fakeRCS) CommitAll(_ context.Context, msg string, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msg)
	return nil
}

func (r *fakeRCS) CreateWorktree(_ context.Context, taskID, stepID string) (ports.WorktreeHandle, error) {
	n := atomic.AddInt32(&r.active, 1)
	for {
		p := atomic.LoadInt32(&r.peak)
		if n <= p || atomic.CompareAndSwapInt32(&r.peak, p, n) {
			break
		}
	}
	return ports.WorktreeHandle{
		Branch: fmt.Sprintf("maker/%s/step-%s", taskID, stepID),
		Path:   fmt.Sprintf("/tmp/wt/%s/%s", taskID, stepID),
	}, nil
}

func (r *fakeRCS) CleanupWorktree(context.Context, string, string) error {
	atomic.AddInt32(&r.active, -1)
	return nil
}

func (r *fakeRCS) MergeSquash(_ context.Context, branch, _ string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merged = append(r.merged, branch)
	return true, nil
}

func (r *fakeRCS) GetHistory(context.Context) ([]ports.HistoryEntry, error)      { return nil, nil }
func (r *fakeRCS) ListWorktrees(context.Context) ([]ports.WorktreeHandle, error) { return nil, nil }
func (r *fakeRCS) GetConflicts(context.Context) ([]ports.RCSConflict, error)     { return nil, nil }
func (r *fakeRCS) ResolveConflict(context.Context, string, string) error         { return nil }
func (r *fakeRCS) SyncRemote(context.Context) error                              { return nil }

// fakeLLM scripts generation by whether structured output was requested and
// lets tests inject an artificial delay to force goroutines to overlap.
type fakeLLM struct {
	delay time.Duration
	fn    func(ctx context.Context, systemPrompt, userPrompt string, schema *json.RawMessage) (string, error)
}

func (l *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string, schema *json.RawMessage) (string, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	return l.fn(ctx, systemPrompt, userPrompt, schema)
}

// fakeProvider fails lint for a fixed set of paths and passes everything
// else, so a re-plan rescue targeting a different file clears immediately.
type fakeProvider struct {
	ext       string
	failPaths map[string]bool
}

func (p *fakeProvider) Supports(path string) bool  { return strings.HasSuffix(path, p.ext) }
func (p *fakeProvider) GetManifestFiles() []string { return nil }
func (p *fakeProvider) GetSystemPrompt() string    { return "" }
func (p *fakeProvider) Lint(_ context.Context, path, _ string) ([]string, error) {
	if p.failPaths[path] {
		return []string{"unused variable 'x'"}, nil
	}
	return nil, nil
}

func newTestScheduler(exec *executor.Executor, rcs *fakeRCS, cfg config.MakerConfig) (*scheduler.Scheduler, *store.Store) {
	st := store.New()
	notifier := store.NewNotifier(st)
	cfgProvider := func() config.MakerConfig { return cfg }
	archCtxProvider := func(string) ctxassembler.ArchitectContext { return ctxassembler.ArchitectContext{} }
	return scheduler.New(st, notifier, exec, rcs, cfgProvider, archCtxProvider), st
}

var devAgent = config.AgentProfile{ID: "dev-1", DisplayName: "Dev", Role: model.RoleDeveloper, RiskTolerance: 0.6}

// S1 — linear plan, no worktrees: A runs before B (dependency-gated), both
// PASS, and exactly one aggregate checkpoint covers the whole session.
func TestS1LinearPlanSingleAggregateCheckpoint(t *testing.T) {
	fs := newFakeFS()
	rcs := &fakeRCS{}
	llm := &fakeLLM{fn: func(context.Context, string, string, *json.RawMessage) (string, error) {
		return "package main\n", nil
	}}
	ex := &executor.Executor{
		FS: fs, RCS: rcs, LLM: llm, Tools: nil,
		Assembler:  ctxassembler.New(fs, nil),
		Linter:     linter.NewRegistry(),
		Decomposer: decomposer.New(llm),
	}
	cfg := config.MakerConfig{
		RiskThreshold:   0.7,
		MaxParallelism:  2,
		UseGitWorktrees: false,
		AgentProfiles:   []config.AgentProfile{devAgent},
	}
	sched, st := newTestScheduler(ex, rcs, cfg)

	stepA := &model.Step{ID: "a", Description: "add greet util", FileTarget: "src/util.ts", Status: model.StatusQueued}
	stepB := &model.Step{ID: "b", Description: "wire greet into index", FileTarget: "src/index.ts", Status: model.StatusQueued, Dependencies: []string{"a"}}
	session := model.NewSession("task-1", "add greet util")
	session.SetDecomposition([]*model.Step{stepA, stepB})

	st.Mutate(func(s *model.State) { s.Sessions["task-1"] = session })

	ctx := context.Background()
	sched.Tick(ctx)
	sched.Wait()

	snap := st.Snapshot()
	sess := snap.Sessions["task-1"]
	require.NotNil(t, sess)
	assert.Equal(t, model.StatusPassed, sess.StepByID("a").Status)
	assert.Equal(t, model.StatusPassed, sess.StepByID("b").Status)
	assert.Equal(t, 2, sess.CompletedSteps())

	rcs.mu.Lock()
	defer rcs.mu.Unlock()
	require.Len(t, rcs.commits, 1)
	assert.Contains(t, rcs.commits[0], "MAKER: Completed Task: add greet util")
}

// S4 — re-plan splice: a step that fails lint after its retry budget is
// spliced out of the session and replaced in place by its rescue steps,
// which inherit its dependencies.
func TestS4ReplanSplicesRescueStepsInPlace(t *testing.T) {
	fs := newFakeFS()
	rcs := &fakeRCS{}
	llm := &fakeLLM{fn: func(_ context.Context, _, _ string, schema *json.RawMessage) (string, error) {
		if schema != nil {
			return `[{"description":"rescue one","fileTarget":"src/x-fixed-1.ts"},` +
				`{"description":"rescue two","fileTarget":"src/x-fixed-2.ts"}]`, nil
		}
		return "var y = 1;\n", nil
	}}
	provider := &fakeProvider{ext: ".ts", failPaths: map[string]bool{"src/x.ts": true}}
	ex := &executor.Executor{
		FS: fs, RCS: rcs, LLM: llm, Tools: nil,
		Assembler:  ctxassembler.New(fs, []ports.LanguageProvider{provider}),
		Linter:     linter.NewRegistry(provider),
		Decomposer: decomposer.New(llm),
	}
	cfg := config.MakerConfig{
		RiskThreshold:  0.7,
		MaxParallelism: 2,
		AgentProfiles:  []config.AgentProfile{devAgent},
	}
	sched, st := newTestScheduler(ex, rcs, cfg)

	seed := &model.Step{ID: "seed", Status: model.StatusPassed, FileTarget: "src/seed.ts"}
	stepX := &model.Step{ID: "x", Description: "add x", FileTarget: "src/x.ts", Status: model.StatusQueued, Dependencies: []string{"seed"}}
	session := model.NewSession("task-1", "add x")
	session.SetDecomposition([]*model.Step{seed, stepX})
	st.Mutate(func(s *model.State) { s.Sessions["task-1"] = session })

	ctx := context.Background()
	sched.Tick(ctx)
	sched.Wait()

	snap := st.Snapshot()
	sess := snap.Sessions["task-1"]
	require.NotNil(t, sess)

	assert.Equal(t, -1, sess.IndexOf("x"))
	assert.Equal(t, 0, sess.ErrorCount)
	assert.Equal(t, 3, sess.TotalSteps())

	var rescueIDs []string
	for _, step := range sess.Decomposition {
		if strings.HasPrefix(step.ID, "x-rescue-") {
			rescueIDs = append(rescueIDs, step.ID)
			assert.Equal(t, []string{"seed"}, step.Dependencies)
		}
	}
	assert.Len(t, rescueIDs, 2)
}

// S5 — worktree happy path: two independent steps each get their own
// worktree and branch, both commit, squash-merge, and clean up, and the
// scheduler's parallelism cap allows both to run concurrently.
func TestS5WorktreeIsolationForIndependentSteps(t *testing.T) {
	fs := newFakeFS()
	rcs := &fakeRCS{}
	llm := &fakeLLM{delay: 20 * time.Millisecond, fn: func(context.Context, string, string, *json.RawMessage) (string, error) {
		return "package main\n", nil
	}}
	ex := &executor.Executor{
		FS: fs, RCS: rcs, LLM: llm, Tools: nil,
		Assembler:  ctxassembler.New(fs, nil),
		Linter:     linter.NewRegistry(),
		Decomposer: decomposer.New(llm),
	}
	cfg := config.MakerConfig{
		RiskThreshold:   0.7,
		MaxParallelism:  2,
		UseGitWorktrees: true,
		AgentProfiles:   []config.AgentProfile{devAgent},
	}
	sched, st := newTestScheduler(ex, rcs, cfg)

	stepA := &model.Step{ID: "a", Description: "add a", FileTarget: "src/a.go", Status: model.StatusQueued}
	stepB := &model.Step{ID: "b", Description: "add b", FileTarget: "src/b.go", Status: model.StatusQueued}
	session := model.NewSession("task-9", "add a and b")
	session.SetDecomposition([]*model.Step{stepA, stepB})
	st.Mutate(func(s *model.State) { s.Sessions["task-9"] = session })

	ctx := context.Background()
	sched.Tick(ctx)
	sched.Wait()

	snap := st.Snapshot()
	sess := snap.Sessions["task-9"]
	require.NotNil(t, sess)
	assert.Equal(t, model.StatusPassed, sess.StepByID("a").Status)
	assert.Equal(t, model.StatusPassed, sess.StepByID("b").Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&rcs.peak))
	assert.Equal(t, int32(0), atomic.LoadInt32(&rcs.active))
	assert.Equal(t, 0, snap.GlobalActiveWorkers)

	rcs.mu.Lock()
	defer rcs.mu.Unlock()
	assert.Len(t, rcs.commits, 2)
	assert.Len(t, rcs.merged, 2)
	assert.ElementsMatch(t, []string{"maker/task-9/step-a", "maker/task-9/step-b"}, rcs.merged)
}

// globalActiveWorkers never exceeds maxParallelism, even with more runnable
// steps than capacity.
func TestGlobalActiveWorkersNeverExceedsMaxParallelism(t *testing.T) {
	fs := newFakeFS()
	rcs := &fakeRCS{}
	llm := &fakeLLM{delay: 10 * time.Millisecond, fn: func(context.Context, string, string, *json.RawMessage) (string, error) {
		return "package main\n", nil
	}}
	ex := &executor.Executor{
		FS: fs, RCS: rcs, LLM: llm, Tools: nil,
		Assembler:  ctxassembler.New(fs, nil),
		Linter:     linter.NewRegistry(),
		Decomposer: decomposer.New(llm),
	}
	cfg := config.MakerConfig{
		RiskThreshold:  0.7,
		MaxParallelism: 1,
		AgentProfiles:  []config.AgentProfile{devAgent},
	}
	sched, st := newTestScheduler(ex, rcs, cfg)

	steps := make([]*model.Step, 4)
	for i := range steps {
		steps[i] = &model.Step{ID: fmt.Sprintf("s%d", i), Description: "add file", FileTarget: fmt.Sprintf("src/s%d.go", i), Status: model.StatusQueued}
	}
	session := model.NewSession("task-1", "add files")
	session.SetDecomposition(steps)
	st.Mutate(func(s *model.State) { s.Sessions["task-1"] = session })

	var maxObserved int32
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				snap := st.Snapshot()
				if int32(snap.GlobalActiveWorkers) > maxObserved {
					maxObserved = int32(snap.GlobalActiveWorkers)
				}
				time.Sleep(time.Millisecond)
			}
		}
	}()

	sched.Tick(context.Background())
	sched.Wait()
	close(stop)
	wg.Wait()

	assert.LessOrEqual(t, maxObserved, int32(cfg.MaxParallelism))
	snap := st.Snapshot()
	assert.Equal(t, 4, snap.Sessions["task-1"].CompletedSteps())
}
