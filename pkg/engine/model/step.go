// Package model defines the core data types the execution engine schedules
// and mutates: steps, sessions, and the engine-wide state snapshot.
package model

import "fmt"

// Status is a step's position in the state machine described in spec §4.9.
type Status string

const (
	StatusPlanning      Status = "PLANNING"
	StatusQueued        Status = "QUEUED"
	StatusAnalyzing     Status = "ANALYZING"
	StatusThinking      Status = "THINKING"
	StatusVoting        Status = "VOTING"
	StatusSkippedVote   Status = "SKIPPED_VOTE"
	StatusExecuting     Status = "EXECUTING"
	StatusCheckpointing Status = "CHECKPOINTING"
	StatusMerging       Status = "MERGING"
	StatusPassed        Status = "PASSED"
	StatusFailed        Status = "FAILED"
	StatusIdle          Status = "IDLE"
)

// Terminal reports whether the status can never transition again.
func (s Status) Terminal() bool {
	return s == StatusPassed || s == StatusFailed
}

// Active reports whether a step in this status counts toward a session's
// activeWorkers (every non-terminal, non-QUEUED, non-PLANNING status).
func (s Status) Active() bool {
	switch s {
	case StatusAnalyzing, StatusThinking, StatusVoting, StatusSkippedVote,
		StatusExecuting, StatusCheckpointing, StatusMerging, StatusIdle:
		return true
	default:
		return false
	}
}

// transitions enumerates the state machine's legal edges. A step may only
// move from a status to one listed here, or to FAILED from anywhere
// non-terminal, or be spliced out entirely (handled outside this table).
var transitions = map[Status][]Status{
	StatusPlanning: {StatusQueued},
	// Coding steps dispatch into ANALYZING; tool steps skip straight to
	// EXECUTING, since §4.8's tool-step flow has no risk/voting phase.
	StatusQueued:        {StatusIdle, StatusAnalyzing, StatusExecuting},
	StatusIdle:          {StatusAnalyzing, StatusExecuting},
	StatusAnalyzing:     {StatusThinking},
	StatusThinking:      {StatusVoting, StatusSkippedVote},
	StatusVoting:        {StatusExecuting},
	StatusSkippedVote:   {StatusExecuting},
	StatusExecuting:     {StatusCheckpointing},
	StatusCheckpointing: {StatusMerging, StatusPassed},
	StatusMerging:       {StatusPassed},
}

// CanTransition reports whether moving from -> to is legal per spec §4.9.
// FAILED is reachable from any non-terminal status; PASSED/FAILED are
// terminal and accept no further transitions.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// AgentRole is the profile role attached to an AgentProfile and to a step's
// assigned role once dispatched.
type AgentRole string

const (
	RoleArchitect AgentRole = "Architect"
	RoleDeveloper AgentRole = "Developer"
	RoleQA        AgentRole = "QA"
	RoleSecurity  AgentRole = "Security"
)

// ToolCall selects a registered ToolDefinition and its arguments. Its
// presence on a Step switches the step to tool-step kind (spec §3, §9).
type ToolCall struct {
	ToolName  string
	Arguments map[string]string
}

// Candidate is one generated artifact produced during voting.
type Candidate struct {
	AgentID     string
	Content     string
	VoteCount   int
	IsConsensus bool
}

// Trace is the flight recorder for a step's last generation attempt.
type Trace struct {
	Prompt       string
	RawResponse  string
	RedFlags     []string
	StartedAt    int64 // unix millis, stamped by the caller
	FinishedAt   int64
}

// Step is one atomic unit of work inside a session's decomposition.
type Step struct {
	ID               string
	Description      string
	FileTarget       string // relative path, or "" for tool-only steps
	Status           Status
	Dependencies     []string
	RiskScore        float64
	RiskReason       string
	Role             AgentRole
	RoleDescription  string
	ToolCall         *ToolCall
	Candidates       []Candidate
	Trace            Trace
	Logs             []string
	Attempts         int
	Votes            int
	GitBranch        string
	WorktreePath     string
	AssignedAgentID  string
}

// IsToolStep reports whether this step invokes a tool rather than
// generating file content, per spec §9 ("presence implies kind").
func (s *Step) IsToolStep() bool { return s.ToolCall != nil }

// AppendLog appends one append-only narrative line.
func (s *Step) AppendLog(line string) {
	s.Logs = append(s.Logs, line)
}

// DependenciesSatisfied reports whether every dependency id is in the
// completed set.
func (s *Step) DependenciesSatisfied(completed map[string]bool) bool {
	for _, dep := range s.Dependencies {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// Clone returns a deep-enough copy for snapshot emission: slices and the
// tool call are copied so a subscriber never observes a future mutation.
func (s *Step) Clone() *Step {
	cp := *s
	cp.Dependencies = append([]string(nil), s.Dependencies...)
	cp.Candidates = append([]Candidate(nil), s.Candidates...)
	cp.Logs = append([]string(nil), s.Logs...)
	if s.ToolCall != nil {
		tc := *s.ToolCall
		tc.Arguments = make(map[string]string, len(s.ToolCall.Arguments))
		for k, v := range s.ToolCall.Arguments {
			tc.Arguments[k] = v
		}
		cp.ToolCall = &tc
	}
	return &cp
}

func (s *Step) String() string {
	return fmt.Sprintf("Step{id=%s status=%s file=%q}", s.ID, s.Status, s.FileTarget)
}
