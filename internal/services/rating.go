package services

import (
	"context"
	"fmt"

	"huddle-admin/backend/internal/auth"
	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/pkg/models"
)

// RatingSummary counts a configuration's matches and responses.
type RatingSummary struct {
	TotalMatches     int   `json:"totalMatches"`
	CompletedMatches int   `json:"completedMatches"`
	PendingMatches   int   `json:"pendingMatches"`
	TotalResponses   int64 `json:"totalResponses"`
}

// RatingsView is the read model behind the ratings page.
type RatingsView struct {
	Matches []*models.RatingMatch `json:"matches"`
	Summary RatingSummary         `json:"summary"`
}

// Ratings lists the configuration's matches with summary counts.
func (o *Orchestrator) Ratings(ctx context.Context, sess models.Session, configID string) (*RatingsView, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	if _, err := o.repo.GetConfiguration(ctx, tenantID, configID); err != nil {
		return nil, storeErr(err, "load configuration")
	}
	matches, err := o.repo.ListMatches(ctx, configID)
	if err != nil {
		return nil, storeErr(err, "list matches")
	}
	responses, err := o.repo.CountResponses(ctx, configID)
	if err != nil {
		return nil, storeErr(err, "count responses")
	}

	view := &RatingsView{Matches: matches, Summary: RatingSummary{TotalMatches: len(matches), TotalResponses: responses}}
	if view.Matches == nil {
		view.Matches = []*models.RatingMatch{}
	}
	for _, m := range matches {
		if m.IsComplete {
			view.Summary.CompletedMatches++
		}
	}
	view.Summary.PendingMatches = view.Summary.TotalMatches - view.Summary.CompletedMatches
	return view, nil
}

// ResponseResult reports what a rating response caused.
type ResponseResult struct {
	Match          *models.RatingMatch `json:"match"`
	NextRound      int                 `json:"nextRound,omitempty"`
	MatchesCreated int                 `json:"matchesCreated"`
	FinalWinnerID  string              `json:"finalWinnerId,omitempty"`
}

// SubmitResponse records a rater's pick and decides the match. When it was
// the last open match of its round the next round is seeded from the
// surviving completions; a single survivor becomes the instance's final
// winner and the instance is RATED.
func (o *Orchestrator) SubmitResponse(ctx context.Context, sess models.Session, matchID, winnerID string) (*ResponseResult, error) {
	if sess.UserID == "" {
		return nil, ErrUnauthorized
	}
	if !auth.CanRate(sess, sess.TenantID) {
		return nil, ErrForbidden
	}

	var res *ResponseResult
	err := o.repo.Transaction(ctx, func(tx repository.Repository) error {
		match, err := tx.GetMatch(ctx, matchID)
		if err != nil {
			return storeErr(err, "load match")
		}
		// Scopes the match to the caller's tenant.
		if _, err := tx.GetConfiguration(ctx, sess.TenantID, match.ConfigurationID); err != nil {
			return storeErr(err, "load configuration")
		}
		inst, err := tx.LockInstance(ctx, match.PromptInstanceID)
		if err != nil {
			return storeErr(err, "lock instance")
		}
		if winnerID != match.OptionAID && winnerID != match.OptionBID {
			return fmt.Errorf("winner must be one of the match's options: %w", ErrValidation)
		}

		decided, err := tx.DecideMatch(ctx, match.ID, winnerID)
		if err != nil {
			return storeErr(err, "decide match")
		}
		if !decided {
			return conflictError("match already decided")
		}
		if err := tx.CreateResponse(ctx, &models.RatingResponse{
			MatchID:      match.ID,
			RaterID:      sess.UserID,
			CompletionID: winnerID,
		}); err != nil {
			return storeErr(err, "record response")
		}
		match.WinnerID = &winnerID
		match.IsComplete = true

		res = &ResponseResult{Match: match}
		return o.advanceBracket(ctx, tx, inst, match.Round, res)
	})
	if err != nil {
		return nil, err
	}
	o.metrics.matches(ctx, "progression", res.MatchesCreated)
	return res, nil
}

// advanceBracket seeds round+1 once every match of round is decided.
// Entrants are the round's winners in slot order followed by the surviving
// completions that sat the round out, in index order.
func (o *Orchestrator) advanceBracket(ctx context.Context, tx repository.Repository, inst *models.PromptInstance, round int, res *ResponseResult) error {
	matches, err := tx.ListInstanceMatches(ctx, inst.ID)
	if err != nil {
		return storeErr(err, "list instance matches")
	}
	eliminated := map[string]bool{}
	var winners []string
	for _, m := range matches {
		if m.Round > round {
			// Already seeded by a concurrent response.
			return nil
		}
		if !m.IsComplete {
			if m.Round == round {
				return nil
			}
			continue
		}
		eliminated[m.Loser()] = true
		if m.Round == round {
			winners = append(winners, *m.WinnerID)
		}
	}

	completions, err := tx.ListCompletions(ctx, inst.ID)
	if err != nil {
		return storeErr(err, "list completions")
	}
	entrants := append([]string{}, winners...)
	seen := map[string]bool{}
	for _, w := range winners {
		seen[w] = true
	}
	for _, id := range byIndex(completions) {
		if !eliminated[id] && !seen[id] {
			entrants = append(entrants, id)
		}
	}

	if len(entrants) == 1 {
		if _, err := tx.CreateFinalWinner(ctx, &models.FinalWinner{
			PromptInstanceID: inst.ID,
			CompletionID:     entrants[0],
		}); err != nil {
			return storeErr(err, "record final winner")
		}
		if _, err := tx.SetInstanceStatus(ctx, []string{inst.ID}, models.InstanceRated); err != nil {
			return storeErr(err, "mark instance rated")
		}
		res.FinalWinnerID = entrants[0]
		o.log.Info("tournament decided", "instance_id", inst.ID, "completion_id", entrants[0])
		return nil
	}

	pairs, _ := PairRound(entrants)
	next := make([]*models.RatingMatch, 0, len(pairs))
	for slot, p := range pairs {
		next = append(next, &models.RatingMatch{
			PromptInstanceID: inst.ID,
			ConfigurationID:  inst.ConfigurationID,
			Round:            round + 1,
			Slot:             slot,
			OptionAID:        p.A,
			OptionBID:        p.B,
		})
	}
	created, err := tx.InsertMatches(ctx, next)
	if err != nil {
		return storeErr(err, "seed next round")
	}
	res.NextRound = round + 1
	res.MatchesCreated = int(created)
	return nil
}
