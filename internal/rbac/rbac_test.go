package rbac

import "testing"

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role, perm string
		want       bool
	}{
		{RoleOperator, PermRunCampaign, true},
		{RoleOperator, PermApproveCampaign, false},
		{RoleOperator, PermIssueToken, false},
		{RoleApprover, PermApproveCampaign, true},
		{RoleApprover, PermRunCampaign, false},
		{RoleApprover, PermUseAdmission, false},
		{RoleAdmin, PermManageAny, true},
		{RoleAdmin, PermIssueToken, true},
		{"ghost", PermViewCampaign, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestIsKnownRole(t *testing.T) {
	if !IsKnownRole(RoleApprover) || IsKnownRole("superuser") {
		t.Fatal("IsKnownRole disagrees with RolePermissions")
	}
}
