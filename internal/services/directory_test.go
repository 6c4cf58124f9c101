package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huddle-admin/backend/pkg/models"
)

func TestDirectory_Reports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ceo := &models.Employee{TenantID: f.tenant.ID, Name: "Ada"}
	require.NoError(t, f.store.CreateEmployees(ctx, []*models.Employee{ceo}))
	vp := &models.Employee{TenantID: f.tenant.ID, Name: "Bea", ManagerID: &ceo.ID}
	require.NoError(t, f.store.CreateEmployees(ctx, []*models.Employee{vp}))
	eng := &models.Employee{TenantID: f.tenant.ID, Name: "Cy", ManagerID: &vp.ID}
	require.NoError(t, f.store.CreateEmployees(ctx, []*models.Employee{eng}))
	// Malformed data: the CEO reports to the engineer.
	require.NoError(t, f.db.Model(ceo).Update("manager_id", eng.ID).Error)

	dir := NewDirectory(f.store)
	got, err := dir.Reports(ctx, f.admin, vp.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, e := range got {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"Cy", "Ada"}, names)

	_, err = dir.Reports(ctx, f.admin, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = dir.Reports(ctx, f.session(models.RoleMember), vp.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
