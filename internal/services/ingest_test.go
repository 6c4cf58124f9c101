package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle-admin/backend/internal/repository/repotest"
	"huddle-admin/backend/pkg/models"
)

func TestIngestCompletion_RunLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 2)
	a := repotest.SeedInstance(t, f.db, cfg.ID, models.InstancePending)
	b := repotest.SeedInstance(t, f.db, cfg.ID, models.InstancePending)

	run, err := f.orch.StartRun(ctx, f.admin, cfg.ID)
	require.NoError(t, err)

	res, err := f.orch.IngestCompletion(ctx, a.ID, CompletionInput{Text: "first", Metadata: map[string]any{"tokens": 12}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Index)
	assert.Equal(t, models.InstanceGenerating, res.InstanceStatus)
	assert.Equal(t, models.RunRunning, res.RunStatus)
	assert.Equal(t, run.ID, res.RunID)
	assert.Zero(t, res.Progress)
	assert.NotNil(t, f.reloadRun(t, run.ID).StartedAt)

	res, err = f.orch.IngestCompletion(ctx, a.ID, CompletionInput{Text: "second"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, models.InstanceReadyForRating, res.InstanceStatus)
	assert.Equal(t, 1, res.MatchesCreated)
	assert.Equal(t, 50, res.Progress)
	assert.Equal(t, models.ConfigurationExecuting, f.reloadConfig(t, cfg.ID).Status)

	_, err = f.orch.IngestCompletion(ctx, a.ID, CompletionInput{Text: "extra"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.orch.IngestCompletion(ctx, b.ID, CompletionInput{Text: "one"})
	require.NoError(t, err)
	res, err = f.orch.IngestCompletion(ctx, b.ID, CompletionInput{Text: "two"})
	require.NoError(t, err)
	assert.Equal(t, models.RunCompleted, res.RunStatus)
	assert.Equal(t, 100, res.Progress)

	finished := f.reloadRun(t, run.ID)
	assert.Equal(t, 2, finished.ProcessedCount)
	assert.NotNil(t, finished.CompletedAt)
	assert.Equal(t, models.ConfigurationCompleted, f.reloadConfig(t, cfg.ID).Status)
	assert.EqualValues(t, 2, repotest.Count(t, f.db, &models.RatingMatch{}, "configuration_id = ?", cfg.ID))
}

func TestIngestCompletion_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 2)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstancePending)

	_, err := f.orch.IngestCompletion(ctx, inst.ID, CompletionInput{Text: "  "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.orch.IngestCompletion(ctx, inst.ID, CompletionInput{Text: "no run yet"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.orch.IngestCompletion(ctx, "00000000-0000-0000-0000-000000000000", CompletionInput{Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, repotest.Count(t, f.db, &models.Completion{}, ""))
}
