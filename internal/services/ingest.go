package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/pkg/models"
)

// CompletionInput is what the generation worker posts for one instance.
type CompletionInput struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IngestResult reports the state after a completion was stored.
type IngestResult struct {
	CompletionID   string                `json:"completionId"`
	Index          int                   `json:"index"`
	InstanceStatus models.InstanceStatus `json:"instanceStatus"`
	MatchesCreated int                   `json:"matchesCreated"`
	RunID          string                `json:"runId"`
	RunStatus      models.RunStatus      `json:"runStatus"`
	Progress       int                   `json:"progress"`
}

// IngestCompletion stores the next completion of an instance on behalf of the
// worker. The instance turns GENERATING on its first completion and
// READY_FOR_RATING once it reaches the configuration's target, at which point
// its bracket is seeded and the active run's processed count advances. The
// run, and with it the configuration, completes when every instance it
// covers has been processed.
func (o *Orchestrator) IngestCompletion(ctx context.Context, instanceID string, in CompletionInput) (*IngestResult, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("completion text is required: %w", ErrValidation)
	}
	var meta datatypes.JSON
	if in.Metadata != nil {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("completion metadata: %v: %w", err, ErrValidation)
		}
		meta = datatypes.JSON(raw)
	}

	var res *IngestResult
	var configID string
	err := o.repo.Transaction(ctx, func(tx repository.Repository) error {
		inst, err := tx.LockInstance(ctx, instanceID)
		if err != nil {
			return storeErr(err, "load instance")
		}
		if inst.Status != models.InstancePending && inst.Status != models.InstanceGenerating {
			return conflictError(fmt.Sprintf("instance is %s and no longer accepts completions", inst.Status))
		}
		cfg, err := tx.GetConfigurationByID(ctx, inst.ConfigurationID)
		if err != nil {
			return storeErr(err, "load configuration")
		}
		configID = cfg.ID
		run, err := tx.ActiveRun(ctx, cfg.ID)
		if err != nil {
			return storeErr(err, "load active run")
		}
		if run == nil {
			return conflictError("configuration has no active generation run")
		}

		existing, err := tx.CountCompletions(ctx, inst.ID)
		if err != nil {
			return storeErr(err, "count completions")
		}
		completion := &models.Completion{
			PromptInstanceID: inst.ID,
			Index:            int(existing),
			Text:             in.Text,
			Metadata:         meta,
		}
		if err := tx.CreateCompletion(ctx, completion); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return conflictError("completion index already written")
			}
			return storeErr(err, "create completion")
		}

		now := o.now()
		if run.Status == models.RunQueued {
			run.Status = models.RunRunning
			run.StartedAt = &now
		}

		res = &IngestResult{CompletionID: completion.ID, Index: completion.Index, RunID: run.ID}
		if int(existing)+1 < cfg.GenerationsPerInstance {
			inst.Status = models.InstanceGenerating
		} else {
			inst.Status = models.InstanceReadyForRating
			if inst.Completions, err = tx.ListCompletions(ctx, inst.ID); err != nil {
				return storeErr(err, "list completions")
			}
			if res.MatchesCreated, err = BuildMatches(ctx, tx, inst); err != nil {
				return err
			}
			if run.ProcessedCount < run.TotalInstances {
				run.ProcessedCount++
			}
			if run.ProcessedCount >= run.TotalInstances {
				run.Status = models.RunCompleted
				run.CompletedAt = &now
				if err := tx.SetConfigurationStatus(ctx, cfg.ID, models.ConfigurationCompleted); err != nil {
					return storeErr(err, "complete configuration")
				}
			}
		}
		if _, err := tx.SetInstanceStatus(ctx, []string{inst.ID}, inst.Status); err != nil {
			return storeErr(err, "update instance")
		}
		if err := tx.UpdateRun(ctx, run); err != nil {
			return storeErr(err, "update run")
		}
		res.InstanceStatus = inst.Status
		res.RunStatus = run.Status
		res.Progress = Progress(run.ProcessedCount, run.TotalInstances)
		return nil
	})
	if err != nil {
		return nil, err
	}

	ready := res.InstanceStatus == models.InstanceReadyForRating
	o.metrics.completion(ctx, ready)
	o.metrics.matches(ctx, "ingest", res.MatchesCreated)
	o.log.Debug("completion ingested",
		"configuration_id", configID,
		"instance_id", instanceID,
		"index", res.Index,
		"instance_status", res.InstanceStatus,
		"run_status", res.RunStatus,
	)
	return res, nil
}
