package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle-admin/backend/internal/repository/repotest"
	"huddle-admin/backend/pkg/models"
)

func TestForceComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 4)
	setConfigStatus(t, f.db, cfg.ID, models.ConfigurationExecuting)
	run := repotest.SeedRun(t, f.db, cfg.ID, models.RunRunning, 2)

	a := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceGenerating)
	aCompletions := repotest.SeedCompletions(t, f.db, a.ID, 3)
	b := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceGenerating)
	repotest.SeedCompletions(t, f.db, b.ID, 1)

	res, err := f.orch.ForceComplete(ctx, f.admin, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MarkedReady)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.MatchesCreated)
	require.Len(t, res.SkipReasons, 1)
	assert.Contains(t, res.SkipReasons[0], b.ID)

	assert.Equal(t, models.InstanceReadyForRating, f.reloadInstance(t, a.ID).Status)
	assert.Equal(t, models.InstanceGenerating, f.reloadInstance(t, b.ID).Status)
	assert.Equal(t, models.ConfigurationCompleted, f.reloadConfig(t, cfg.ID).Status)
	finished := f.reloadRun(t, run.ID)
	assert.Equal(t, models.RunCompleted, finished.Status)
	assert.NotNil(t, finished.CompletedAt)

	got := f.matches(t, a.ID)
	require.Len(t, got, 1)
	assert.Equal(t, aCompletions[0].ID, got[0].OptionAID)
	assert.Equal(t, aCompletions[1].ID, got[0].OptionBID)
	assert.Empty(t, f.matches(t, b.ID))

	again, err := f.orch.ForceComplete(ctx, f.admin, cfg.ID)
	require.NoError(t, err)
	assert.Zero(t, again.MarkedReady)
	assert.Zero(t, again.MatchesCreated)
	assert.Len(t, f.matches(t, a.ID), 1)
	assert.EqualValues(t, 1, repotest.Count(t, f.db, &models.RatingMatch{}, "configuration_id = ?", cfg.ID))
}

func TestForceComplete_BuildsMissingBrackets(t *testing.T) {
	f := newFixture(t)
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 2)
	setConfigStatus(t, f.db, cfg.ID, models.ConfigurationExecuting)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceReadyForRating)
	repotest.SeedCompletions(t, f.db, inst.ID, 2)

	res, err := f.orch.ForceComplete(context.Background(), f.admin, cfg.ID)
	require.NoError(t, err)
	assert.Zero(t, res.MarkedReady)
	assert.Equal(t, 1, res.MatchesCreated)
	assert.Empty(t, res.SkipReasons)
}

func TestForceComplete_RejectsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 2)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstancePending)
	repotest.SeedCompletions(t, f.db, inst.ID, 2)

	_, err := f.orch.ForceComplete(ctx, f.admin, cfg.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, models.ConfigurationDraft, f.reloadConfig(t, cfg.ID).Status)
	assert.Equal(t, models.InstancePending, f.reloadInstance(t, inst.ID).Status)
	assert.Empty(t, f.matches(t, inst.ID))

	run, err := f.orch.StartRun(ctx, f.admin, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunQueued, run.Status)
}

func TestReset_Hard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 5)
	setConfigStatus(t, f.db, cfg.ID, models.ConfigurationCompleted)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceRated)
	cs := repotest.SeedCompletions(t, f.db, inst.ID, 5)
	m := repotest.SeedMatch(t, f.db, inst, 1, 0, cs[0].ID, cs[1].ID)
	repotest.SeedMatch(t, f.db, inst, 1, 1, cs[2].ID, cs[3].ID)
	require.NoError(t, f.db.Create(&models.RatingResponse{MatchID: m.ID, RaterID: "r", CompletionID: cs[0].ID}).Error)
	repotest.SeedFinalWinner(t, f.db, inst.ID, cs[0].ID)
	repotest.SeedRun(t, f.db, cfg.ID, models.RunCompleted, 1)

	res, err := f.orch.Reset(ctx, f.admin, cfg.ID, ResetHard)
	require.NoError(t, err)
	assert.Equal(t, &ResetResult{
		Mode:               ResetHard,
		RunsCancelled:      0,
		InstancesReset:     1,
		DeletedCompletions: 5,
		DeletedMatches:     2,
		DeletedWinners:     1,
		DeletedRuns:        1,
	}, res)

	assert.Equal(t, models.ConfigurationDraft, f.reloadConfig(t, cfg.ID).Status)
	assert.Equal(t, models.InstancePending, f.reloadInstance(t, inst.ID).Status)
	assert.Zero(t, repotest.Count(t, f.db, &models.Completion{}, ""))
	assert.Zero(t, repotest.Count(t, f.db, &models.RatingMatch{}, ""))
	assert.Zero(t, repotest.Count(t, f.db, &models.RatingResponse{}, ""))
	assert.Zero(t, repotest.Count(t, f.db, &models.FinalWinner{}, ""))
	assert.Zero(t, repotest.Count(t, f.db, &models.GenerationRun{}, ""))

	_, err = f.orch.StartRun(ctx, f.admin, cfg.ID)
	assert.NoError(t, err)
}

func TestReset_Soft(t *testing.T) {
	f := newFixture(t)
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 2)
	setConfigStatus(t, f.db, cfg.ID, models.ConfigurationExecuting)
	run := repotest.SeedRun(t, f.db, cfg.ID, models.RunRunning, 2)
	a := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceGenerating)
	repotest.SeedCompletions(t, f.db, a.ID, 1)
	repotest.SeedInstance(t, f.db, cfg.ID, models.InstancePending)

	res, err := f.orch.Reset(context.Background(), f.admin, cfg.ID, ResetSoft)
	require.NoError(t, err)
	assert.Equal(t, ResetSoft, res.Mode)
	assert.EqualValues(t, 1, res.RunsCancelled)
	assert.EqualValues(t, 1, res.InstancesReset)
	assert.Zero(t, res.DeletedCompletions)

	assert.Equal(t, models.RunFailed, f.reloadRun(t, run.ID).Status)
	assert.Equal(t, models.InstancePending, f.reloadInstance(t, a.ID).Status)
	assert.Equal(t, models.ConfigurationDraft, f.reloadConfig(t, cfg.ID).Status)
	assert.EqualValues(t, 1, repotest.Count(t, f.db, &models.Completion{}, ""))
}

func TestReset_UnknownMode(t *testing.T) {
	f := newFixture(t)
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 2)

	_, err := f.orch.Reset(context.Background(), f.admin, cfg.ID, ResetMode("wipe"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestParseResetMode(t *testing.T) {
	for in, want := range map[string]ResetMode{"": ResetSoft, "soft": ResetSoft, " HARD ": ResetHard} {
		got, err := ParseResetMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseResetMode("nuke")
	assert.ErrorIs(t, err, ErrValidation)
}
