package services

import (
	"context"
	"math"

	"huddle-admin/backend/pkg/models"
)

// RunProgress is one run in the queue snapshot. InstanceCounts is only filled
// for configurations whose run is still QUEUED or RUNNING.
type RunProgress struct {
	*models.GenerationRun
	Progress       int                             `json:"progress"`
	InstanceCounts map[models.InstanceStatus]int64 `json:"instanceCounts,omitempty"`
}

// QueueSummary aggregates a tenant's runs and in-flight instances.
type QueueSummary struct {
	Queued              int   `json:"queued"`
	Running             int   `json:"running"`
	Completed           int   `json:"completed"`
	Failed              int   `json:"failed"`
	PendingInstances    int64 `json:"pendingInstances"`
	GeneratingInstances int64 `json:"generatingInstances"`
}

// QueueSnapshot is the tenant-wide view of generation progress.
type QueueSnapshot struct {
	Runs    []RunProgress `json:"runs"`
	Summary QueueSummary  `json:"summary"`
}

// Progress returns processed/total as a whole percentage in [0, 100]. A run
// with no instances reports 0.
func Progress(processed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(processed) / float64(total) * 100))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// QueueSnapshot returns every run of the caller's tenant with progress and,
// for active configurations, per-status instance counts. It writes nothing.
func (o *Orchestrator) QueueSnapshot(ctx context.Context, sess models.Session) (*QueueSnapshot, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	return o.queueSnapshot(ctx, tenantID)
}

func (o *Orchestrator) queueSnapshot(ctx context.Context, tenantID string) (*QueueSnapshot, error) {
	runs, err := o.repo.ListTenantRuns(ctx, tenantID)
	if err != nil {
		return nil, storeErr(err, "list tenant runs")
	}

	snap := &QueueSnapshot{Runs: make([]RunProgress, 0, len(runs))}
	active := map[string]bool{}
	var activeIDs []string
	for _, r := range runs {
		switch r.Status {
		case models.RunQueued:
			snap.Summary.Queued++
		case models.RunRunning:
			snap.Summary.Running++
		case models.RunCompleted:
			snap.Summary.Completed++
		case models.RunFailed:
			snap.Summary.Failed++
		}
		if r.Status.IsActive() && !active[r.ConfigurationID] {
			active[r.ConfigurationID] = true
			activeIDs = append(activeIDs, r.ConfigurationID)
		}
	}

	counts, err := o.repo.CountInstancesByStatus(ctx, activeIDs)
	if err != nil {
		return nil, storeErr(err, "count instances")
	}
	byConfig := make(map[string]map[models.InstanceStatus]int64, len(activeIDs))
	for _, c := range counts {
		if byConfig[c.ConfigurationID] == nil {
			byConfig[c.ConfigurationID] = map[models.InstanceStatus]int64{}
		}
		byConfig[c.ConfigurationID][c.Status] = c.Count
		switch c.Status {
		case models.InstancePending:
			snap.Summary.PendingInstances += c.Count
		case models.InstanceGenerating:
			snap.Summary.GeneratingInstances += c.Count
		}
	}

	for _, r := range runs {
		rp := RunProgress{GenerationRun: r, Progress: Progress(r.ProcessedCount, r.TotalInstances)}
		if r.Status.IsActive() {
			rp.InstanceCounts = byConfig[r.ConfigurationID]
			if rp.InstanceCounts == nil {
				rp.InstanceCounts = map[models.InstanceStatus]int64{}
			}
		}
		snap.Runs = append(snap.Runs, rp)
	}
	return snap, nil
}
