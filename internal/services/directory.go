package services

import (
	"context"

	"huddle-admin/backend/internal/hierarchy"
	"huddle-admin/backend/internal/repository"
	"huddle-admin/backend/pkg/models"
)

// Directory answers questions about a tenant's people.
type Directory struct {
	repo repository.Repository
}

// NewDirectory creates a new Directory.
func NewDirectory(repo repository.Repository) *Directory {
	return &Directory{repo: repo}
}

// Reports returns every employee that reports, directly or not, to
// managerID, nearest first.
func (d *Directory) Reports(ctx context.Context, sess models.Session, managerID string) ([]*models.Employee, error) {
	tenantID, err := authorize(sess)
	if err != nil {
		return nil, err
	}
	employees, err := d.repo.ListEmployees(ctx, tenantID)
	if err != nil {
		return nil, storeErr(err, "list employees")
	}

	byID := make(map[string]*models.Employee, len(employees))
	for _, e := range employees {
		byID[e.ID] = e
	}
	if byID[managerID] == nil {
		return nil, ErrNotFound
	}

	g := hierarchy.Build(employees,
		func(e *models.Employee) string { return e.ID },
		func(e *models.Employee) string {
			if e.ManagerID == nil {
				return ""
			}
			return *e.ManagerID
		})
	ids := hierarchy.Reports(g, managerID)
	out := make([]*models.Employee, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}
