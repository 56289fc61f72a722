package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/automata/internal/query"
)

func saveFindFixtures(t *testing.T, st *Store) {
	t.Helper()
	ctx := t.Context()

	_, err := st.SaveCycle(ctx, testRecord(1, "cycle-1"))
	require.NoError(t, err)

	failed := testRecord(2, "cycle-2")
	failed.Outcomes = []OutcomeRecord{
		{Key: "Light", Status: "rebuilt"},
		{Key: "Lamp", Status: "failed", Error: `dependency "Ghost" of "Lamp" is undefined`},
	}
	_, err = st.SaveCycle(ctx, failed)
	require.NoError(t, err)

	broken := CycleRecord{Generation: 3, CycleToken: "cycle-3", Status: "compile_failed"}
	_, err = st.SaveCycle(ctx, broken)
	require.NoError(t, err)
}

func generations(cycles []CycleSummary) []int64 {
	gens := make([]int64, 0, len(cycles))
	for _, c := range cycles {
		gens = append(gens, c.Generation)
	}
	return gens
}

func TestFindCycles(t *testing.T) {
	st := createTestStore(t)
	saveFindFixtures(t, st)

	tests := []struct {
		name   string
		filter query.Predicate
		want   []int64
	}{
		{"nil matches all", nil, []int64{3, 2, 1}},
		{"status", query.Equals{Field: query.FieldStatus, Value: "completed"}, []int64{2, 1}},
		{"key", query.HasOutcome{Key: "Lamp"}, []int64{2, 1}},
		{"key status", query.HasOutcome{Key: "Lamp", Status: "failed"}, []int64{2}},
		{"combined", query.All(
			query.Equals{Field: query.FieldStatus, Value: "completed"},
			query.HasOutcome{Key: "Lamp", Status: "reused"},
		), []int64{1}},
		{"no match", query.Equals{Field: query.FieldToken, Value: "missing"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycles, err := st.FindCycles(t.Context(), tt.filter, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, generations(cycles))
		})
	}
}

func TestFindCycles_CountsAllOutcomesOfMatch(t *testing.T) {
	st := createTestStore(t)
	saveFindFixtures(t, st)

	cycles, err := st.FindCycles(t.Context(), query.HasOutcome{Key: "Lamp", Status: "failed"}, 0)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, 1, cycles[0].Rebuilt)
	assert.Equal(t, 1, cycles[0].Failed)
}

func TestFindCycles_InvalidFilter(t *testing.T) {
	st := createTestStore(t)

	_, err := st.FindCycles(t.Context(), query.Equals{Field: "seq", Value: 1}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")
}
