package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle-admin/backend/internal/repository/repotest"
	"huddle-admin/backend/pkg/models"
)

func TestSubmitResponse_ThreeWayTournament(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rater := f.session(models.RoleRater)
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 3)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceReadyForRating)
	cs := repotest.SeedCompletions(t, f.db, inst.ID, 3)
	require.Equal(t, 1, buildMatches(t, f, inst.ID))

	view, err := f.orch.Ratings(ctx, f.admin, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, RatingSummary{TotalMatches: 1, PendingMatches: 1}, view.Summary)
	first := view.Matches[0]

	_, err = f.orch.SubmitResponse(ctx, rater, first.ID, cs[2].ID)
	assert.ErrorIs(t, err, ErrValidation)

	res, err := f.orch.SubmitResponse(ctx, rater, first.ID, cs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NextRound)
	assert.Equal(t, 1, res.MatchesCreated)
	assert.Empty(t, res.FinalWinnerID)
	assert.True(t, res.Match.IsComplete)

	_, err = f.orch.SubmitResponse(ctx, rater, first.ID, cs[0].ID)
	assert.ErrorIs(t, err, ErrConflict)

	got := f.matches(t, inst.ID)
	require.Len(t, got, 2)
	second := got[1]
	assert.Equal(t, 2, second.Round)
	assert.Equal(t, cs[1].ID, second.OptionAID)
	assert.Equal(t, cs[2].ID, second.OptionBID)

	res, err = f.orch.SubmitResponse(ctx, f.admin, second.ID, cs[2].ID)
	require.NoError(t, err)
	assert.Equal(t, cs[2].ID, res.FinalWinnerID)
	assert.Zero(t, res.MatchesCreated)

	assert.Equal(t, models.InstanceRated, f.reloadInstance(t, inst.ID).Status)
	var winner models.FinalWinner
	require.NoError(t, f.db.First(&winner, "prompt_instance_id = ?", inst.ID).Error)
	assert.Equal(t, cs[2].ID, winner.CompletionID)

	view, err = f.orch.Ratings(ctx, f.admin, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, RatingSummary{TotalMatches: 2, CompletedMatches: 2, TotalResponses: 2}, view.Summary)
}

func TestSubmitResponse_WaitsForWholeRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 4)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceReadyForRating)
	cs := repotest.SeedCompletions(t, f.db, inst.ID, 4)
	require.Equal(t, 2, buildMatches(t, f, inst.ID))
	round1 := f.matches(t, inst.ID)

	res, err := f.orch.SubmitResponse(ctx, f.admin, round1[1].ID, cs[2].ID)
	require.NoError(t, err)
	assert.Zero(t, res.NextRound)
	assert.Len(t, f.matches(t, inst.ID), 2)

	res, err = f.orch.SubmitResponse(ctx, f.admin, round1[0].ID, cs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NextRound)

	got := f.matches(t, inst.ID)
	require.Len(t, got, 3)
	assert.Equal(t, cs[1].ID, got[2].OptionAID)
	assert.Equal(t, cs[2].ID, got[2].OptionBID)
}

func TestSubmitResponse_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := repotest.SeedConfiguration(t, f.db, f.tenant.ID, 2)
	inst := repotest.SeedInstance(t, f.db, cfg.ID, models.InstanceReadyForRating)
	cs := repotest.SeedCompletions(t, f.db, inst.ID, 2)
	m := repotest.SeedMatch(t, f.db, inst, 1, 0, cs[0].ID, cs[1].ID)

	_, err := f.orch.SubmitResponse(ctx, models.Session{}, m.ID, cs[0].ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.orch.SubmitResponse(ctx, f.session(models.RoleMember), m.ID, cs[0].ID)
	assert.ErrorIs(t, err, ErrForbidden)

	other := repotest.SeedTenant(t, f.db, "other.test")
	outsider := models.Session{UserID: "r2", Role: models.RoleRater, TenantID: other.ID}
	_, err = f.orch.SubmitResponse(ctx, outsider, m.ID, cs[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.orch.Ratings(ctx, f.session(models.RoleRater), cfg.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, repotest.Count(t, f.db, &models.RatingResponse{}, ""))
}
