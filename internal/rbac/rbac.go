package rbac

// Role constants
const (
	RoleOperator = "operator"
	RoleApprover = "approver"
	RoleAdmin    = "admin"
)

// Permission constants
const (
	PermCreateCampaign  = "create_campaign"
	PermRunCampaign     = "run_campaign"
	PermViewCampaign    = "view_campaign"
	PermApproveCampaign = "approve_campaign"
	PermUseAdmission    = "use_admission"
	PermManageAny       = "manage_any"
	PermIssueToken      = "issue_token"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleOperator: {
		PermCreateCampaign, PermRunCampaign, PermViewCampaign, PermUseAdmission,
	},
	RoleApprover: {
		PermViewCampaign, PermApproveCampaign,
		// Approver CANNOT run campaigns or drive actions
	},
	RoleAdmin: {
		PermCreateCampaign, PermRunCampaign, PermViewCampaign, PermApproveCampaign,
		PermUseAdmission, PermManageAny, PermIssueToken,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsKnownRole reports whether role is one of the defined roles.
func IsKnownRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
