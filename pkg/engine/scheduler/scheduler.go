// Package scheduler implements the global scheduling loop of spec §4.11:
// walking every session for runnable steps, dispatching bounded by
// maxParallelism, and splicing re-plan rescues back into the DAG.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/makercode/maker/pkg/engine/config"
	"github.com/makercode/maker/pkg/engine/ctxassembler"
	"github.com/makercode/maker/pkg/engine/decomposer"
	"github.com/makercode/maker/pkg/engine/executor"
	"github.com/makercode/maker/pkg/engine/model"
	"github.com/makercode/maker/pkg/engine/ports"
	"github.com/makercode/maker/pkg/engine/store"
	"github.com/makercode/maker/pkg/logger"
)

var log = logger.New("engine:scheduler")

// goroutineCeiling bounds the conc pool's own internal concurrency well
// above any realistic maxParallelism; the scheduler's own counters (not
// the pool) enforce the business-level cap from spec §4.11 step 4.
const goroutineCeiling = 64

// ConfigProvider returns the live config so maxParallelism/useGitWorktrees
// changes from updateConfig take effect on the next scheduling pass.
type ConfigProvider func() config.MakerConfig

// ArchitectContextProvider resolves the per-task architect context
// assembled when the task was decomposed.
type ArchitectContextProvider func(taskID string) ctxassembler.ArchitectContext

// Scheduler drives the global loop over a Store's sessions.
type Scheduler struct {
	store    *store.Store
	notifier *store.Notifier
	exec     *executor.Executor
	rcs      ports.RCS
	cfg      ConfigProvider
	archCtx  ArchitectContextProvider
	pool     *pool.Pool
	wg       sync.WaitGroup
}

// New returns a Scheduler driving executions against store/notifier.
func New(st *store.Store, notifier *store.Notifier, exec *executor.Executor, rcs ports.RCS, cfg ConfigProvider, archCtx ArchitectContextProvider) *Scheduler {
	return &Scheduler{
		store:    st,
		notifier: notifier,
		exec:     exec,
		rcs:      rcs,
		cfg:      cfg,
		archCtx:  archCtx,
		pool:     pool.New().WithMaxGoroutines(goroutineCeiling),
	}
}

// Tick re-enters the scheduling algorithm once (spec §4.11). It is safe
// to call concurrently; each call only dispatches steps the current
// snapshot shows as runnable and under the parallelism cap.
func (s *Scheduler) Tick(ctx context.Context) {
	cfg := s.cfg()

	var dispatched []dispatchJob
	var toCheckpoint []checkpointJob

	s.store.Mutate(func(st *model.State) {
		for _, session := range st.Sessions {
			if s.finalizeIfDone(session, cfg) {
				toCheckpoint = append(toCheckpoint, checkpointJob{taskID: session.TaskID, prompt: session.OriginalPrompt})
			}
		}

		for st.GlobalActiveWorkers < cfg.MaxParallelism {
			job, ok := popNextRunnable(st, cfg)
			if !ok {
				break
			}
			dispatched = append(dispatched, job)
			st.GlobalActiveWorkers++
		}
	})

	for _, job := range toCheckpoint {
		s.checkpoint(ctx, job)
	}

	for _, job := range dispatched {
		s.dispatch(ctx, job, cfg)
	}
}

type checkpointJob struct {
	taskID string
	prompt string
}

// checkpoint issues the single aggregate commit for a small, direct-mode
// session that has just finished (spec §4.11 step 1). It runs outside
// the store lock since it performs git I/O.
func (s *Scheduler) checkpoint(ctx context.Context, job checkpointJob) {
	if s.rcs == nil {
		return
	}
	msg := fmt.Sprintf("MAKER: Completed Task: %s", job.prompt)
	if err := s.rcs.CommitAll(ctx, msg, ""); err != nil {
		if log.Enabled() {
			log.Printf("checkpoint commit for task %s failed: %v", job.taskID, err)
		}
	}
}

// Wait blocks until every in-flight step execution completes. Intended
// for tests and graceful shutdown, not the steady-state run loop.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

type dispatchJob struct {
	taskID  string
	session *model.Session
	step    *model.Step
	agent   config.AgentProfile
}

// finalizeIfDone implements spec §4.11 step 1: the single aggregate
// checkpoint for small, direct-mode sessions. It reports whether session
// just transitioned into its finalized state, so the caller can issue
// the aggregate commit once outside the store lock.
func (s *Scheduler) finalizeIfDone(session *model.Session, cfg config.MakerConfig) bool {
	if session.ActiveWorkers() != 0 {
		return false
	}
	if !session.AllTerminal() {
		return false
	}
	if session.TotalSteps() >= 3 || cfg.UseGitWorktrees {
		return false
	}
	if !session.AnyPassed() || session.IsPlanning {
		return false
	}
	session.IsPlanning = false
	return true
}

// popNextRunnable implements spec §4.11 steps 2-4: scan every session for
// the first QUEUED step whose dependencies are all satisfied.
func popNextRunnable(st *model.State, cfg config.MakerConfig) (dispatchJob, bool) {
	for _, session := range st.Sessions {
		completed := session.CompletedIDs()
		for i, step := range session.Decomposition {
			if step.Status != model.StatusQueued {
				continue
			}
			if !step.DependenciesSatisfied(completed) {
				continue
			}
			agent := roundRobinAgent(cfg.AgentProfiles, i)
			step.AssignedAgentID = agent.ID
			switch {
			case cfg.UseGitWorktrees:
				step.Status = model.StatusIdle
			case step.IsToolStep():
				// left QUEUED; the executor moves it straight to EXECUTING.
			default:
				step.Status = model.StatusAnalyzing
			}
			return dispatchJob{taskID: session.TaskID, session: session, step: step, agent: agent}, true
		}
	}
	return dispatchJob{}, false
}

func roundRobinAgent(profiles []config.AgentProfile, index int) config.AgentProfile {
	if len(profiles) == 0 {
		return config.AgentProfile{}
	}
	return profiles[index%len(profiles)]
}

// dispatch spawns a Step Executor for job, routing its status/log updates
// through the Store and Notifier, and applies the resulting Outcome on
// completion (spec §4.11 step 5).
func (s *Scheduler) dispatch(ctx context.Context, job dispatchJob, cfg config.MakerConfig) {
	stepID := job.step.ID
	taskID := job.taskID

	hooks := s.hooksFor(taskID, stepID)
	archCtx := s.archCtx(taskID)

	s.wg.Add(1)
	s.pool.Go(func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.onStepComplete(ctx, taskID, stepID, executor.Failed(fmt.Sprintf("step executor panicked: %v", r)), cfg)
			}
		}()

		var stepCopy model.Step
		var sessionCopy *model.Session
		s.store.Mutate(func(st *model.State) {
			session := st.Sessions[taskID]
			if session == nil {
				return
			}
			sessionCopy = session.Clone()
			if step := session.StepByID(stepID); step != nil {
				stepCopy = *step
			}
		})
		if sessionCopy == nil {
			return
		}

		outcome := s.exec.Run(ctx, &stepCopy, sessionCopy, cfg, job.agent, archCtx, taskID, hooks)
		s.onStepComplete(ctx, taskID, stepID, outcome, cfg)
	})
}

func (s *Scheduler) hooksFor(taskID, stepID string) executor.Hooks {
	setOnStep := func(fn func(*model.Step)) {
		s.store.Mutate(func(st *model.State) {
			session := st.Sessions[taskID]
			if session == nil {
				return
			}
			step := session.StepByID(stepID)
			if step == nil {
				return
			}
			fn(step)
		})
		s.notifier.MarkDirty()
	}

	return executor.Hooks{
		SetStatus: func(status model.Status) {
			setOnStep(func(step *model.Step) {
				if model.CanTransition(step.Status, status) {
					step.Status = status
				}
			})
		},
		AppendLog: func(line string) {
			setOnStep(func(step *model.Step) { step.AppendLog(line) })
		},
		SetTrace: func(trace model.Trace) {
			setOnStep(func(step *model.Step) { step.Trace = trace })
		},
		SetRisk: func(score float64, reason string) {
			setOnStep(func(step *model.Step) {
				step.RiskScore = score
				step.RiskReason = reason
			})
		},
		SetVotes: func(candidates []model.Candidate) {
			setOnStep(func(step *model.Step) {
				step.Candidates = candidates
				step.Votes = len(candidates)
			})
		},
	}
}

// onStepComplete implements spec §4.11 step 5.
func (s *Scheduler) onStepComplete(ctx context.Context, taskID, stepID string, outcome executor.Outcome, cfg config.MakerConfig) {
	var rescuesToSplice []decomposer.PartialStep
	var failedDeps []string
	var spliceIdx int
	shouldSplice := false

	s.store.Mutate(func(st *model.State) {
		st.GlobalActiveWorkers--
		if st.GlobalActiveWorkers < 0 {
			st.GlobalActiveWorkers = 0
		}

		session := st.Sessions[taskID]
		if session == nil {
			return
		}
		step := session.StepByID(stepID)
		if step == nil {
			return
		}

		switch {
		case outcome.IsPassed():
			step.Status = model.StatusPassed
		case outcome.IsFailed():
			step.Status = model.StatusFailed
			step.AppendLog(outcome.Reason())
			session.ErrorCount++
		case outcome.IsReplan():
			rescuesToSplice = outcome.Rescues()
			failedDeps = step.Dependencies
			spliceIdx = session.IndexOf(stepID)
			shouldSplice = spliceIdx >= 0
		}

		if shouldSplice {
			replacements := make([]*model.Step, len(rescuesToSplice))
			for i, r := range rescuesToSplice {
				replacements[i] = decomposer.NormalizeStep(r, r.ID, failedDeps)
			}
			session.Splice(spliceIdx, replacements)
		}
	})

	s.notifier.MarkDirty()
	if log.Enabled() {
		log.Printf("step %s of task %s completed (passed=%v failed=%v replan=%v)",
			stepID, taskID, outcome.IsPassed(), outcome.IsFailed(), outcome.IsReplan())
	}

	s.Tick(ctx)
}
