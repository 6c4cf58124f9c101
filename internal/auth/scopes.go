package auth

import "huddle-admin/backend/pkg/models"

const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
)

// AllScopes defines the full set of scopes used by the Swagger UI / Frontend
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
}

// CanManage reports whether the session may administer tenantID: a
// TENANT_ADMIN of that tenant, or a SUPER_ADMIN whose session is pinned to it.
// Every orchestrator operation goes through this check.
func CanManage(s models.Session, tenantID string) bool {
	if s.UserID == "" || tenantID == "" || s.TenantID != tenantID {
		return false
	}
	switch s.Role {
	case models.RoleTenantAdmin, models.RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// CanRate reports whether the session may submit rating responses in
// tenantID. Admins can rate too.
func CanRate(s models.Session, tenantID string) bool {
	if CanManage(s, tenantID) {
		return true
	}
	return s.UserID != "" && s.TenantID == tenantID && s.Role == models.RoleRater
}
