package auth

import (
	"testing"

	"github.com/ForsunJay/TGTEST/internal/config"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
)

func newTestAuthorizer(allowAdminCreate bool) *Authorizer {
	return NewAuthorizer(config.AccessConfig{
		AdminIDs:          []int64{100, 101},
		FinControlIDs:     []int64{200},
		AllAccessAdminIDs: []int64{300},
		AllowAdminCreate:  allowAdminCreate,
		SourceAdmins: map[string][]int64{
			"rs_rf": {100},
			"cash":  {101},
		},
		ProjectAdmins: map[string][]int64{
			"mf_rf": {100},
		},
	})
}

func TestAuthorizer_Allowed(t *testing.T) {
	a := newTestAuthorizer(false)

	tests := []struct {
		name   string
		userID int64
		perm   Permission
		rc     ResourceContext
		want   bool
	}{
		{"all-access admin may do anything", 300, PermissionReject, ResourceContext{Source: "rs_rf"}, true},
		{"all-access admin may create", 300, PermissionCreate, ResourceContext{}, true},
		{"regular user may create", 1, PermissionCreate, ResourceContext{}, true},
		{"admin create denied when flag off", 100, PermissionCreate, ResourceContext{}, false},
		{"fincontrol never creates", 200, PermissionCreate, ResourceContext{}, false},
		{"approve within source scope", 100, PermissionApprove, ResourceContext{Source: "rs_rf"}, true},
		{"approve outside source scope", 101, PermissionApprove, ResourceContext{Source: "rs_rf"}, false},
		{"admin outside scope denied approve", 101, PermissionApprove, ResourceContext{Source: "rs_rf", Project: "mf_kz"}, false},
		{"reject within scope", 101, PermissionReject, ResourceContext{Source: "cash"}, true},
		{"regular user cannot approve", 1, PermissionApprove, ResourceContext{Source: "rs_rf"}, false},
		{"crypto scoped by project", 100, PermissionApprove, ResourceContext{Source: "crypto", Project: "mf_rf"}, true},
		{"crypto wrong project denied", 100, PermissionApprove, ResourceContext{Source: "crypto", Project: "mf_kz"}, false},
		{"creator may comment own request", 1, PermissionComment, ResourceContext{Source: "rs_rf", CreatorID: 1}, true},
		{"stranger may not comment", 2, PermissionComment, ResourceContext{Source: "rs_rf", CreatorID: 1}, false},
		{"scope holder may comment", 100, PermissionComment, ResourceContext{Source: "rs_rf", CreatorID: 1}, true},
		{"fincontrol views all", 200, PermissionViewAll, ResourceContext{}, true},
		{"admin views all unscoped", 100, PermissionViewAll, ResourceContext{}, true},
		{"regular user cannot view all", 1, PermissionViewAll, ResourceContext{}, false},
		{"scoped view requires scope", 101, PermissionViewAll, ResourceContext{Source: "rs_rf"}, false},
		{"creator may edit own request", 1, PermissionEdit, ResourceContext{Source: "rs_rf", CreatorID: 1}, true},
		{"edit another's request needs scope", 101, PermissionEdit, ResourceContext{Source: "rs_rf", CreatorID: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Allowed(tt.userID, tt.perm, tt.rc); got != tt.want {
				t.Errorf("Allowed(%d, %s, %+v) = %v, want %v", tt.userID, tt.perm, tt.rc, got, tt.want)
			}
		})
	}
}

func TestAuthorizer_AdminCreateFlag(t *testing.T) {
	a := newTestAuthorizer(true)

	if !a.Allowed(100, PermissionCreate, ResourceContext{}) {
		t.Error("admin create should be allowed when the flag is set")
	}
}

func TestAuthorizer_Deterministic(t *testing.T) {
	a := newTestAuthorizer(false)

	rc := ResourceContext{Source: "rs_rf", Project: "mf_rf", CreatorID: 9}
	first := a.Allowed(100, PermissionApprove, rc)
	for i := 0; i < 100; i++ {
		if a.Allowed(100, PermissionApprove, rc) != first {
			t.Fatal("Allowed() is not deterministic for identical inputs")
		}
	}
}

func TestAuthorizer_RoleOf(t *testing.T) {
	a := newTestAuthorizer(false)

	tests := []struct {
		userID int64
		want   string
	}{
		{300, entity.RoleAdmin},
		{100, entity.RoleAdmin},
		{200, entity.RoleFinControl},
		{1, entity.RoleUser},
	}

	for _, tt := range tests {
		if got := a.RoleOf(tt.userID); got != tt.want {
			t.Errorf("RoleOf(%d) = %v, want %v", tt.userID, got, tt.want)
		}
	}
}
