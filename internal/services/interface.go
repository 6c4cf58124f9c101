package services

import (
	"context"

	"huddle-admin/backend/pkg/models"
)

// WorkerTrigger asks a tenant's generation worker to process its queue.
type WorkerTrigger interface {
	Trigger(ctx context.Context, sess models.Session) (*TriggerResult, error)
}

// WorkerEndpoints resolves the worker base URL serving a tenant.
type WorkerEndpoints interface {
	WorkerURL(ctx context.Context, tenantID string) (string, error)
}
