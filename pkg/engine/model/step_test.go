//go:build !integration

package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercode/maker/pkg/engine/model"
)

func TestStatusTerminal(t *testing.T) {
	assert.True(t, model.StatusPassed.Terminal())
	assert.True(t, model.StatusFailed.Terminal())
	assert.False(t, model.StatusQueued.Terminal())
	assert.False(t, model.StatusPlanning.Terminal())
}

func TestStatusActive(t *testing.T) {
	active := []model.Status{
		model.StatusAnalyzing, model.StatusThinking, model.StatusVoting,
		model.StatusSkippedVote, model.StatusExecuting, model.StatusCheckpointing,
		model.StatusMerging, model.StatusIdle,
	}
	for _, s := range active {
		assert.Truef(t, s.Active(), "%s should be active", s)
	}

	inactive := []model.Status{model.StatusPlanning, model.StatusQueued, model.StatusPassed, model.StatusFailed}
	for _, s := range inactive {
		assert.Falsef(t, s.Active(), "%s should not be active", s)
	}
}

func TestCanTransitionHappyPath(t *testing.T) {
	assert.True(t, model.CanTransition(model.StatusPlanning, model.StatusQueued))
	assert.True(t, model.CanTransition(model.StatusQueued, model.StatusAnalyzing))
	assert.True(t, model.CanTransition(model.StatusQueued, model.StatusExecuting))
	assert.True(t, model.CanTransition(model.StatusAnalyzing, model.StatusThinking))
	assert.True(t, model.CanTransition(model.StatusThinking, model.StatusVoting))
	assert.True(t, model.CanTransition(model.StatusThinking, model.StatusSkippedVote))
	assert.True(t, model.CanTransition(model.StatusVoting, model.StatusExecuting))
	assert.True(t, model.CanTransition(model.StatusExecuting, model.StatusCheckpointing))
	assert.True(t, model.CanTransition(model.StatusCheckpointing, model.StatusMerging))
	assert.True(t, model.CanTransition(model.StatusCheckpointing, model.StatusPassed))
	assert.True(t, model.CanTransition(model.StatusMerging, model.StatusPassed))
}

func TestCanTransitionFailedReachableFromAnyNonTerminal(t *testing.T) {
	nonTerminal := []model.Status{
		model.StatusPlanning, model.StatusQueued, model.StatusIdle, model.StatusAnalyzing,
		model.StatusThinking, model.StatusVoting, model.StatusSkippedVote, model.StatusExecuting,
		model.StatusCheckpointing, model.StatusMerging,
	}
	for _, s := range nonTerminal {
		assert.Truef(t, model.CanTransition(s, model.StatusFailed), "%s -> FAILED should be legal", s)
	}
}

func TestCanTransitionTerminalStatusesAreSinks(t *testing.T) {
	assert.False(t, model.CanTransition(model.StatusPassed, model.StatusFailed))
	assert.False(t, model.CanTransition(model.StatusPassed, model.StatusQueued))
	assert.False(t, model.CanTransition(model.StatusFailed, model.StatusPassed))
}

func TestCanTransitionRejectsIllegalEdges(t *testing.T) {
	assert.False(t, model.CanTransition(model.StatusPlanning, model.StatusExecuting))
	assert.False(t, model.CanTransition(model.StatusQueued, model.StatusPassed))
	assert.False(t, model.CanTransition(model.StatusVoting, model.StatusThinking))
}

func TestStepIsToolStep(t *testing.T) {
	plain := &model.Step{ID: "s1"}
	assert.False(t, plain.IsToolStep())

	withTool := &model.Step{ID: "s2", ToolCall: &model.ToolCall{ToolName: "echo"}}
	assert.True(t, withTool.IsToolStep())
}

func TestStepDependenciesSatisfied(t *testing.T) {
	step := &model.Step{ID: "s3", Dependencies: []string{"a", "b"}}

	assert.False(t, step.DependenciesSatisfied(map[string]bool{"a": true}))
	assert.True(t, step.DependenciesSatisfied(map[string]bool{"a": true, "b": true}))

	noDeps := &model.Step{ID: "s4"}
	assert.True(t, noDeps.DependenciesSatisfied(map[string]bool{}))
}

func TestStepAppendLog(t *testing.T) {
	step := &model.Step{ID: "s5"}
	step.AppendLog("first")
	step.AppendLog("second")
	require.Equal(t, []string{"first", "second"}, step.Logs)
}

func TestStepCloneIsIndependent(t *testing.T) {
	original := &model.Step{
		ID:           "s6",
		Dependencies: []string{"a"},
		Candidates:   []model.Candidate{{AgentID: "agent-1"}},
		Logs:         []string{"line one"},
		ToolCall:     &model.ToolCall{ToolName: "echo", Arguments: map[string]string{"path": "x"}},
	}

	clone := original.Clone()
	clone.Dependencies[0] = "mutated"
	clone.Logs = append(clone.Logs, "line two")
	clone.ToolCall.Arguments["path"] = "mutated"

	assert.Equal(t, "a", original.Dependencies[0])
	assert.Len(t, original.Logs, 1)
	assert.Equal(t, "x", original.ToolCall.Arguments["path"])
}
