package services

import (
	"context"
	"fmt"
	"sort"

	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/pkg/models"
)

// MinBracketSize is the smallest completion set that can be rated.
const MinBracketSize = 2

// Pair is one seeded comparison. A and B keep the order they were given in.
type Pair struct {
	A, B string
}

// PairRound pairs entrants consecutively: (0,1), (2,3), ... An odd entrant
// left at the end is returned as the bye and plays in a later round.
func PairRound(entrants []string) (pairs []Pair, bye string) {
	for i := 0; i+1 < len(entrants); i += 2 {
		pairs = append(pairs, Pair{A: entrants[i], B: entrants[i+1]})
	}
	if len(entrants)%2 == 1 {
		bye = entrants[len(entrants)-1]
	}
	return pairs, bye
}

// byIndex returns the completion ids in ascending stored index order. The
// index is the generation order and is the only ordering key.
func byIndex(completions []models.Completion) []string {
	sorted := make([]models.Completion, len(completions))
	copy(sorted, completions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	ids := make([]string, len(sorted))
	for i, c := range sorted {
		ids[i] = c.ID
	}
	return ids
}

// BuildMatches seeds round 1 of the instance's bracket and returns how many
// matches it created. Instances with fewer than two completions are not
// eligible and yield zero. If the instance already has any match nothing is
// created. Callers run it inside a transaction; the instance row lock plus
// the (instance, round, slot) unique key make concurrent callers agree on a
// single bracket.
func BuildMatches(ctx context.Context, tx repository.Repository, inst *models.PromptInstance) (int, error) {
	if len(inst.Completions) < MinBracketSize {
		return 0, nil
	}
	if _, err := tx.LockInstance(ctx, inst.ID); err != nil {
		return 0, fmt.Errorf("lock instance %s: %w", inst.ID, err)
	}
	existing, err := tx.CountMatches(ctx, inst.ID)
	if err != nil {
		return 0, fmt.Errorf("count matches for %s: %w", inst.ID, err)
	}
	if existing > 0 {
		return 0, nil
	}

	pairs, _ := PairRound(byIndex(inst.Completions))
	matches := make([]*models.RatingMatch, 0, len(pairs))
	for slot, p := range pairs {
		matches = append(matches, &models.RatingMatch{
			PromptInstanceID: inst.ID,
			ConfigurationID:  inst.ConfigurationID,
			Round:            1,
			Slot:             slot,
			OptionAID:        p.A,
			OptionBID:        p.B,
		})
	}
	created, err := tx.InsertMatches(ctx, matches)
	if err != nil {
		return 0, fmt.Errorf("insert matches for %s: %w", inst.ID, err)
	}
	return int(created), nil
}
