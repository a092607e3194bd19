package model

// Conflict is one unresolved squash-merge conflict surfaced by the RCS
// adapter after ErrMergeConflict, pending UI resolution (spec §7).
type Conflict struct {
	StepID  string
	Path    string
	Content string
}

// Session is the runtime state of one user-submitted task: its DAG of
// steps and the counters derived from it (spec §3, "Session (TaskStatus)").
type Session struct {
	TaskID           string
	OriginalPrompt   string
	Decomposition    []*Step
	stepIndex        map[string]int
	ErrorCount       int
	IsPlanning       bool
	Conflicts        []Conflict
}

// NewSession creates an empty session ready to receive a decomposition.
func NewSession(taskID, prompt string) *Session {
	return &Session{
		TaskID:         taskID,
		OriginalPrompt: prompt,
		stepIndex:      make(map[string]int),
	}
}

// SetDecomposition installs a fresh plan, replacing any prior one, and
// rebuilds the id->index lookup (spec §9, "DAG storage").
func (s *Session) SetDecomposition(steps []*Step) {
	s.Decomposition = steps
	s.reindex()
}

func (s *Session) reindex() {
	s.stepIndex = make(map[string]int, len(s.Decomposition))
	for i, step := range s.Decomposition {
		s.stepIndex[step.ID] = i
	}
}

// StepByID looks up a step by id in O(1), or returns nil.
func (s *Session) StepByID(id string) *Step {
	if i, ok := s.stepIndex[id]; ok {
		return s.Decomposition[i]
	}
	return nil
}

// IndexOf returns the slice index of a step id, or -1.
func (s *Session) IndexOf(id string) int {
	if i, ok := s.stepIndex[id]; ok {
		return i
	}
	return -1
}

// Splice replaces the step at index idx with the given replacement steps,
// preserving the rest of the slice, and reindexes (spec §4.11, §9).
func (s *Session) Splice(idx int, replacements []*Step) {
	tail := append([]*Step(nil), s.Decomposition[idx+1:]...)
	next := append(s.Decomposition[:idx], replacements...)
	s.Decomposition = append(next, tail...)
	s.reindex()
}

// TotalSteps is len(Decomposition) (spec invariant).
func (s *Session) TotalSteps() int { return len(s.Decomposition) }

// CompletedSteps counts steps with status PASSED (spec invariant).
func (s *Session) CompletedSteps() int {
	n := 0
	for _, step := range s.Decomposition {
		if step.Status == StatusPassed {
			n++
		}
	}
	return n
}

// ActiveWorkers counts steps in non-terminal, non-QUEUED, non-PLANNING
// status (spec invariant).
func (s *Session) ActiveWorkers() int {
	n := 0
	for _, step := range s.Decomposition {
		if step.Status.Active() {
			n++
		}
	}
	return n
}

// CompletedIDs returns the set of step ids currently PASSED.
func (s *Session) CompletedIDs() map[string]bool {
	out := make(map[string]bool, len(s.Decomposition))
	for _, step := range s.Decomposition {
		if step.Status == StatusPassed {
			out[step.ID] = true
		}
	}
	return out
}

// AllTerminal reports whether every step is PASSED or FAILED.
func (s *Session) AllTerminal() bool {
	for _, step := range s.Decomposition {
		if !step.Status.Terminal() {
			return false
		}
	}
	return true
}

// AnyPassed reports whether at least one step reached PASSED.
func (s *Session) AnyPassed() bool {
	for _, step := range s.Decomposition {
		if step.Status == StatusPassed {
			return true
		}
	}
	return false
}

// Clone returns an immutable-from-the-caller's-perspective deep copy for
// snapshot emission (spec §4.2, "Snapshots are immutable views").
func (s *Session) Clone() *Session {
	cp := &Session{
		TaskID:         s.TaskID,
		OriginalPrompt: s.OriginalPrompt,
		ErrorCount:     s.ErrorCount,
		IsPlanning:     s.IsPlanning,
		Conflicts:      append([]Conflict(nil), s.Conflicts...),
	}
	steps := make([]*Step, len(s.Decomposition))
	for i, step := range s.Decomposition {
		steps[i] = step.Clone()
	}
	cp.SetDecomposition(steps)
	return cp
}
