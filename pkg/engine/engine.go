// Package engine implements the Engine Facade (spec §4.1): the single
// entry point that owns sessions, wires every collaborator, and exposes
// subscribe/updateConfig/startTask/executePlan/switchSession.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/ctxassembler"
	"github.com/makercode/maker/pkg/engine/decomposer"
	"github.com/makercode/maker/pkg/engine/enginerr"
	"github.com/makercode/maker/pkg/engine/executor"
	"github.com/makercode/maker/pkg/engine/linter"
	"github.com/makercode/maker/pkg/engine/model"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/engine/scheduler"
	"github.com/makercode/maker/pkg/engine/store"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("engine:facade")

// Engine owns every session and collaborator, and runs the Scheduler
// loop (spec §4.1, §2 "Engine Facade").
type Engine struct {
	mu         sync.RWMutex
	cfg        config.MakerConfig
	persister  ports.ConfigPersister

	store     *store.Store
	notifier  *store.Notifier
	assembler *ctxassembler.Assembler
	decomp    *decomposer.Decomposer
	exec      *executor.Executor
	sched     *scheduler.Scheduler

	llm   ports.LLMClient
	rcs   ports.RCS
	fs    ports.FileSystem
	tools ports.ToolRunner

	newLLMClient func(config.MakerConfig) (ports.LLMClient, error)

	archContexts map[string]ctxassembler.ArchitectContext
}

// Collaborators bundles the external implementations the caller injects
// (spec §9, "singletons -> explicit owners").
type Collaborators struct {
	RCS          ports.RCS
	FS           ports.FileSystem
	Tools        ports.ToolRunner
	Persister    ports.ConfigPersister
	Providers    []ports.LanguageProvider
	NewLLMClient func(config.MakerConfig) (ports.LLMClient, error)
}

// New constructs an Engine with the given collaborators and an initial
// configuration (loaded by the caller from persister beforehand, or
// config.Default()).
func New(cfg config.MakerConfig, collab Collaborators) (*Engine, error) {
	st := store.New()
	notifier := store.NewNotifier(st)

	llm, err := collab.NewLLMClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: building initial LLM client: %w", err)
	}

	assembler := ctxassembler.New(collab.FS, collab.Providers)
	decomp := decomposer.New(llm)
	registry := linter.NewRegistry(collab.Providers...)

	exec := &executor.Executor{
		FS:         collab.FS,
		RCS:        collab.RCS,
		LLM:        llm,
		Tools:      collab.Tools,
		Assembler:  assembler,
		Linter:     registry,
		Decomposer: decomp,
	}

	e := &Engine{
		cfg:          cfg,
		persister:    collab.Persister,
		store:        st,
		notifier:     notifier,
		assembler:    assembler,
		decomp:       decomp,
		exec:         exec,
		llm:          llm,
		rcs:          collab.RCS,
		fs:           collab.FS,
		tools:        collab.Tools,
		newLLMClient: collab.NewLLMClient,
		archContexts: make(map[string]ctxassembler.ArchitectContext),
	}

	e.sched = scheduler.New(st, notifier, exec, collab.RCS, e.currentConfig, e.architectContextFor)
	return e, nil
}

func (e *Engine) currentConfig() config.MakerConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

func (e *Engine) architectContextFor(taskID string) ctxassembler.ArchitectContext {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.archContexts[taskID]
}

// Subscribe registers a listener for engine-state snapshots (spec §4.1).
// Delivery is best-effort-latest, coalesced by the Notifier (spec §4.2).
func (e *Engine) Subscribe() (<-chan model.Snapshot, func()) {
	return e.notifier.Subscribe()
}

// UpdateConfig merges partial into the current config, rebuilding the
// model client if credentials or provider changed, and persists the
// result (spec §4.1).
func (e *Engine) UpdateConfig(ctx context.Context, partial config.MakerConfig) error {
	e.mu.Lock()
	old := e.cfg
	merged := old.Merge(partial)
	rebuild := config.CredentialsOrProviderChanged(old, merged)
	e.cfg = merged
	e.mu.Unlock()

	if rebuild {
		llm, err := e.newLLMClient(merged)
		if err != nil {
			return fmt.Errorf("engine: rebuilding LLM client: %w", err)
		}
		e.mu.Lock()
		e.llm = llm
		e.exec.LLM = llm
		e.decomp = decomposer.New(llm)
		e.exec.Decomposer = e.decomp
		e.mu.Unlock()
		log.Print("rebuilt LLM client after credential/provider change")
	}

	if e.persister != nil {
		if err := e.persister.Save(ctx, merged); err != nil {
			return fmt.Errorf("engine: persisting config: %w", err)
		}
	}
	return nil
}

// GetConfig returns the current config (spec §8, "getConfig() == setConfig
// modulo credential opacity" — ProviderCredentials remains sealed bytes).
func (e *Engine) GetConfig() config.MakerConfig {
	return e.currentConfig()
}

// StartTask creates a fresh session, ensures the RCS repo exists, and
// installs the Decomposer's initial plan (spec §4.1).
func (e *Engine) StartTask(ctx context.Context, prompt string) (string, error) {
	cfg := e.currentConfig()

	if err := e.checkParallelAllowed(cfg); err != nil {
		return "", err
	}

	status, err := e.rcs.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("engine: rcs status: %w", err)
	}
	if !status.IsRepo {
		if err := e.rcs.InitRepo(ctx); err != nil {
			return "", fmt.Errorf("engine: rcs init: %w", err)
		}
		if err := e.rcs.EnsureGitIgnore(ctx); err != nil {
			return "", fmt.Errorf("engine: rcs gitignore: %w", err)
		}
	} else if status.IsDirty && !cfg.UseGitWorktrees {
		if err := e.rcs.CreateCheckpoint(ctx, "MAKER: auto-checkpoint before task", nil, ""); err != nil {
			return "", fmt.Errorf("engine: auto-checkpoint: %w", err)
		}
	}

	taskID := uuid.New().String()
	session := model.NewSession(taskID, prompt)
	session.IsPlanning = true

	architectCtx, err := e.assembler.GetArchitectContext(ctx, prompt, cfg.Tools)
	if err != nil {
		return "", fmt.Errorf("engine: assembling architect context: %w", err)
	}

	partials, err := e.decomp.Decompose(ctx, prompt, architectCtx)
	if err != nil {
		placeholder := &model.Step{
			ID:          "placeholder",
			Description: "Decomposition failed: " + err.Error(),
			Status:      model.StatusFailed,
		}
		session.SetDecomposition([]*model.Step{placeholder})
		session.ErrorCount++
	} else {
		steps := make([]*model.Step, len(partials))
		for i, p := range partials {
			steps[i] = decomposer.NormalizeStep(p, fmt.Sprintf("step-%d", i), nil)
			steps[i].Status = model.StatusPlanning
		}
		session.SetDecomposition(steps)
	}

	e.mu.Lock()
	e.archContexts[taskID] = architectCtx
	e.mu.Unlock()

	e.store.Mutate(func(st *model.State) {
		st.Sessions[taskID] = session
		st.ActiveSessionID = taskID
	})
	e.notifier.MarkDirty()

	if err != nil {
		return taskID, enginerr.ErrDecomposition
	}
	return taskID, nil
}

func (e *Engine) checkParallelAllowed(cfg config.MakerConfig) error {
	if cfg.UseGitWorktrees {
		return nil
	}
	snap := e.store.Snapshot()
	for _, s := range snap.Sessions {
		if s.ActiveWorkers() > 0 {
			return enginerr.ErrParallelNotAllowed
		}
	}
	return nil
}

// ExecutePlan flips every PLANNING step of the active session to QUEUED
// and kicks the Scheduler (spec §4.1); steps in any other status keep it.
func (e *Engine) ExecutePlan(ctx context.Context) error {
	var taskID string
	e.store.Mutate(func(st *model.State) {
		taskID = st.ActiveSessionID
		session := st.Sessions[taskID]
		if session == nil {
			return
		}
		for _, step := range session.Decomposition {
			if step.Status == model.StatusPlanning {
				step.Status = model.StatusQueued
			}
		}
		session.IsPlanning = false
	})
	if taskID == "" {
		return fmt.Errorf("engine: no active session")
	}
	e.notifier.MarkDirty()
	e.sched.Tick(ctx)
	return nil
}

// SwitchSession is a pure pointer move (spec §4.1).
func (e *Engine) SwitchSession(id string) error {
	var ok bool
	e.store.Mutate(func(st *model.State) {
		if _, exists := st.Sessions[id]; exists {
			st.ActiveSessionID = id
			ok = true
		}
	})
	if !ok {
		return fmt.Errorf("engine: unknown session %q", id)
	}
	e.notifier.MarkDirty()
	return nil
}

// Snapshot returns the current engine-wide state (convenience for
// callers that don't want to subscribe).
func (e *Engine) Snapshot() model.Snapshot {
	return e.store.Snapshot()
}

// Close releases the Notifier's delivery loop.
func (e *Engine) Close() {
	e.notifier.Close()
}
