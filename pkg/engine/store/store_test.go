//go:build !integration

package store_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makercode/maker/pkg/engine/model"
	"github.com/makercode/maker/pkg/engine/store"
)

func TestMutateRecomputesGlobalActiveWorkers(t *testing.T) {
	st := store.New()

	st.Mutate(func(s *model.State) {
		session := model.NewSession("task-1", "do a thing")
		session.SetDecomposition([]*model.Step{
			{ID: "a", Status: model.StatusAnalyzing},
			{ID: "b", Status: model.StatusQueued},
		})
		s.Sessions["task-1"] = session
	})

	snap := st.Snapshot()
	assert.Equal(t, 1, snap.GlobalActiveWorkers)
}

func TestSnapshotIsIndependentOfSubsequentMutation(t *testing.T) {
	st := store.New()
	st.Mutate(func(s *model.State) {
		session := model.NewSession("task-1", "do a thing")
		session.SetDecomposition([]*model.Step{{ID: "a", Status: model.StatusQueued}})
		s.Sessions["task-1"] = session
	})

	snap := st.Snapshot()

	st.Mutate(func(s *model.State) {
		s.Sessions["task-1"].Decomposition[0].Status = model.StatusPassed
	})

	require.Contains(t, snap.Sessions, "task-1")
	assert.Equal(t, model.StatusQueued, snap.Sessions["task-1"].Decomposition[0].Status)
}

func TestMutateSerializesConcurrentCallers(t *testing.T) {
	st := store.New()
	st.Mutate(func(s *model.State) {
		s.Sessions["task-1"] = model.NewSession("task-1", "counter")
	})

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			st.Mutate(func(s *model.State) {
				s.Sessions["task-1"].ErrorCount++
			})
		}(i)
	}
	wg.Wait()

	snap := st.Snapshot()
	assert.Equal(t, n, snap.Sessions["task-1"].ErrorCount)
}
