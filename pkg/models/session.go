package models

// Role is the console role carried by an authenticated session.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleRater       Role = "RATER"
	RoleMember      Role = "MEMBER"
)

// Session is the identity resolved for a request.
type Session struct {
	UserID   string `json:"userId"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
	TenantID string `json:"tenantId"`
}
