//go:build !integration

package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/makercode/maker/pkg/engine/model"
)

func TestRecomputeGlobalActiveWorkers(t *testing.T) {
	st := model.NewState()

	s1 := model.NewSession("t1", "prompt")
	s1.SetDecomposition(steps("a", "b"))
	s1.Decomposition[0].Status = model.StatusExecuting

	s2 := model.NewSession("t2", "prompt")
	s2.SetDecomposition(steps("c"))
	s2.Decomposition[0].Status = model.StatusThinking

	st.Sessions["t1"] = s1
	st.Sessions["t2"] = s2

	st.RecomputeGlobalActiveWorkers()
	assert.Equal(t, 2, st.GlobalActiveWorkers)
}

func TestStateSnapshotIsIndependentOfFutureMutation(t *testing.T) {
	st := model.NewState()
	s := model.NewSession("t1", "prompt")
	s.SetDecomposition(steps("a"))
	st.Sessions["t1"] = s
	st.ActiveSessionID = "t1"
	st.GlobalActiveWorkers = 1

	snap := st.Snapshot()
	assert.Equal(t, "t1", snap.ActiveSessionID)
	assert.Equal(t, 1, snap.GlobalActiveWorkers)

	st.Sessions["t1"].Decomposition[0].Status = model.StatusPassed
	st.Sessions["t2"] = model.NewSession("t2", "other")

	assert.Equal(t, model.StatusQueued, snap.Sessions["t1"].Decomposition[0].Status)
	assert.Len(t, snap.Sessions, 1)
}
