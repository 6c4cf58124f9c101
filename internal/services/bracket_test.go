package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/internal/repository/repotest"
	"huddle-admin/backend/pkg/models"
)

func TestPairRound(t *testing.T) {
	tests := []struct {
		name      string
		entrants  []string
		wantPairs []Pair
		wantBye   string
	}{
		{name: "empty"},
		{name: "single entrant is a bye", entrants: []string{"a"}, wantBye: "a"},
		{name: "two", entrants: []string{"a", "b"}, wantPairs: []Pair{{"a", "b"}}},
		{name: "odd keeps last out", entrants: []string{"a", "b", "c", "d", "e"},
			wantPairs: []Pair{{"a", "b"}, {"c", "d"}}, wantBye: "e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, bye := PairRound(tt.entrants)
			assert.Equal(t, tt.wantPairs, pairs)
			assert.Equal(t, tt.wantBye, bye)
		})
	}
}

func buildMatches(t *testing.T, f *fixture, instanceID string) int {
	t.Helper()
	ctx := context.Background()
	var created int
	err := f.store.Transaction(ctx, func(tx repository.Repository) error {
		inst, err := tx.LockInstance(ctx, instanceID)
		if err != nil {
			return err
		}
		if inst.Completions, err = tx.ListCompletions(ctx, instanceID); err != nil {
			return err
		}
		created, err = BuildMatches(ctx, tx, inst)
		return err
	})
	require.NoError(t, err)
	return created
}

func TestBuildMatches_PairsByStoredIndex(t *testing.T) {
	f := newFixture(t)
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 3)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceReadyForRating)

	// Inserted out of index order on purpose.
	byIdx := map[int]string{}
	for _, idx := range []int{2, 0, 1} {
		c := &models.Completion{PromptInstanceID: inst.ID, Index: idx, Text: "text"}
		require.NoError(t, f.db.Create(c).Error)
		byIdx[idx] = c.ID
	}

	assert.Equal(t, 1, buildMatches(t, f, inst.ID))

	got := f.matches(t, inst.ID)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Round)
	assert.Equal(t, 0, got[0].Slot)
	assert.Equal(t, byIdx[0], got[0].OptionAID)
	assert.Equal(t, byIdx[1], got[0].OptionBID)
	assert.Equal(t, cfg.ID, got[0].ConfigurationID)
	assert.False(t, got[0].IsComplete)
}

func TestBuildMatches_Idempotent(t *testing.T) {
	f := newFixture(t)
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 4)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceReadyForRating)
	repotest.SeedCompletions(t, f.db, inst.ID, 4)

	assert.Equal(t, 2, buildMatches(t, f, inst.ID))
	assert.Equal(t, 0, buildMatches(t, f, inst.ID))
	assert.Len(t, f.matches(t, inst.ID), 2)
}

func TestBuildMatches_NeedsTwoCompletions(t *testing.T) {
	f := newFixture(t)
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 2)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceGenerating)
	repotest.SeedCompletions(t, f.db, inst.ID, 1)

	assert.Equal(t, 0, buildMatches(t, f, inst.ID))
	assert.Empty(t, f.matches(t, inst.ID))
}
