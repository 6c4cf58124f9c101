package services

import (
	"context"
	"fmt"
	"strings"

	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/pkg/models"
)

// ForceCompleteResult summarizes a force-complete.
type ForceCompleteResult struct {
	MarkedReady    int      `json:"markedReady"`
	Skipped        int      `json:"skipped"`
	MatchesCreated int      `json:"matchesCreated"`
	SkipReasons    []string `json:"skipReasons"`
}

// ForceComplete salvages a configuration whose generation stalled. In-flight
// instances with at least two completions become READY_FOR_RATING, the rest
// are left alone and reported as skipped. Active runs are closed as
// COMPLETED, the configuration becomes COMPLETED, and every ready instance
// without a bracket gets one. Repeating the call changes nothing further.
// A DRAFT configuration has nothing to salvage and is rejected with
// ErrInvalidTransition.
func (o *Orchestrator) ForceComplete(ctx context.Context, sess models.Session, configID string) (*ForceCompleteResult, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}

	var res *ForceCompleteResult
	err = o.repo.Transaction(ctx, func(tx repository.Repository) error {
		res = &ForceCompleteResult{SkipReasons: []string{}}
		cfg, err := tx.LockConfiguration(ctx, tenantID, configID)
		if err != nil {
			return storeErr(err, "load configuration")
		}
		// COMPLETED stays allowed so a repeated call is a no-op.
		if cfg.Status == models.ConfigurationDraft {
			return fmt.Errorf("configuration is %s, start a run first: %w", cfg.Status, ErrInvalidTransition)
		}

		inFlight, err := tx.ListInstances(ctx, cfg.ID, models.InstancePending, models.InstanceGenerating)
		if err != nil {
			return storeErr(err, "list in-flight instances")
		}
		var ready []string
		for _, inst := range inFlight {
			if n := len(inst.Completions); n < MinBracketSize {
				res.Skipped++
				res.SkipReasons = append(res.SkipReasons,
					fmt.Sprintf("instance %s has %d completion(s), at least %d are needed", inst.ID, n, MinBracketSize))
				continue
			}
			ready = append(ready, inst.ID)
		}
		if _, err := tx.SetInstanceStatus(ctx, ready, models.InstanceReadyForRating); err != nil {
			return storeErr(err, "mark instances ready")
		}
		res.MarkedReady = len(ready)

		if _, err := tx.FinishActiveRuns(ctx, cfg.ID, models.RunCompleted, o.now()); err != nil {
			return storeErr(err, "complete active runs")
		}
		if err := tx.SetConfigurationStatus(ctx, cfg.ID, models.ConfigurationCompleted); err != nil {
			return storeErr(err, "complete configuration")
		}

		rateable, err := tx.ListInstances(ctx, cfg.ID, models.InstanceReadyForRating)
		if err != nil {
			return storeErr(err, "list ready instances")
		}
		for _, inst := range rateable {
			n, err := BuildMatches(ctx, tx, inst)
			if err != nil {
				return err
			}
			res.MatchesCreated += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.metrics.recovery(ctx, "force_complete")
	o.metrics.matches(ctx, "force_complete", res.MatchesCreated)
	if res.Skipped > 0 {
		o.log.Warn("force-complete skipped instances",
			"configuration_id", configID,
			"skipped", res.Skipped,
			"reasons", strings.Join(res.SkipReasons, "; "),
		)
	}
	o.log.Info("configuration force-completed",
		"tenant_id", tenantID,
		"configuration_id", configID,
		"marked_ready", res.MarkedReady,
		"matches_created", res.MatchesCreated,
	)
	return res, nil
}

// ResetMode selects how much a reset discards.
type ResetMode string

const (
	// ResetSoft cancels active runs and returns instances to PENDING.
	ResetSoft ResetMode = "soft"
	// ResetHard also deletes completions, matches, final winners and runs.
	ResetHard ResetMode = "hard"
)

// ParseResetMode accepts "soft", "hard" or empty (soft).
func ParseResetMode(s string) (ResetMode, error) {
	switch ResetMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ResetSoft:
		return ResetSoft, nil
	case ResetHard:
		return ResetHard, nil
	default:
		return "", fmt.Errorf("unknown reset mode %q: %w", s, ErrValidation)
	}
}

// ResetResult summarizes a reset. Deleted counts are zero for soft resets.
type ResetResult struct {
	Mode               ResetMode `json:"mode"`
	RunsCancelled      int64     `json:"runsCancelled"`
	InstancesReset     int64     `json:"instancesReset"`
	DeletedCompletions int64     `json:"deletedCompletions"`
	DeletedMatches     int64     `json:"deletedMatches"`
	DeletedWinners     int64     `json:"deletedWinners"`
	DeletedRuns        int64     `json:"deletedRuns"`
}

// Reset returns a configuration to DRAFT. Every step runs in one
// transaction so a failure leaves the configuration exactly as it was.
func (o *Orchestrator) Reset(ctx context.Context, sess models.Session, configID string, mode ResetMode) (*ResetResult, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	if mode != ResetSoft && mode != ResetHard {
		return nil, fmt.Errorf("unknown reset mode %q: %w", mode, ErrValidation)
	}

	var res *ResetResult
	err = o.repo.Transaction(ctx, func(tx repository.Repository) error {
		res = &ResetResult{Mode: mode}
		cfg, err := tx.LockConfiguration(ctx, tenantID, configID)
		if err != nil {
			return storeErr(err, "load configuration")
		}

		if res.RunsCancelled, err = tx.FinishActiveRuns(ctx, cfg.ID, models.RunFailed, o.now()); err != nil {
			return storeErr(err, "cancel runs")
		}
		if res.InstancesReset, err = tx.ResetInstances(ctx, cfg.ID); err != nil {
			return storeErr(err, "reset instances")
		}
		if err := tx.SetConfigurationStatus(ctx, cfg.ID, models.ConfigurationDraft); err != nil {
			return storeErr(err, "reset configuration")
		}
		if mode == ResetSoft {
			return nil
		}

		if res.DeletedCompletions, err = tx.DeleteCompletions(ctx, cfg.ID); err != nil {
			return storeErr(err, "delete completions")
		}
		if res.DeletedMatches, err = tx.DeleteMatches(ctx, cfg.ID); err != nil {
			return storeErr(err, "delete matches")
		}
		if res.DeletedWinners, err = tx.DeleteFinalWinners(ctx, cfg.ID); err != nil {
			return storeErr(err, "delete final winners")
		}
		if res.DeletedRuns, err = tx.DeleteRuns(ctx, cfg.ID); err != nil {
			return storeErr(err, "delete runs")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.metrics.recovery(ctx, "reset_"+string(mode))
	o.log.Info("configuration reset",
		"tenant_id", tenantID,
		"configuration_id", configID,
		"mode", mode,
		"runs_cancelled", res.RunsCancelled,
		"instances_reset", res.InstancesReset,
		"deleted_completions", res.DeletedCompletions,
		"deleted_matches", res.DeletedMatches,
		"deleted_winners", res.DeletedWinners,
		"deleted_runs", res.DeletedRuns,
	)
	return res, nil
}
