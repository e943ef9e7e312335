package auth

import (
	"github.com/ForsunJay/TGTEST/internal/config"
	"github.com/ForsunJay/TGTEST/internal/domain/entity"
)

// Permission is an action gated by the permission model
type Permission string

const (
	PermissionCreate  Permission = "create"
	PermissionApprove Permission = "approve"
	PermissionReject  Permission = "reject"
	PermissionEdit    Permission = "edit"
	PermissionViewAll Permission = "view_all"
	PermissionComment Permission = "comment"
)

// sourceCrypto is the one source whose approval authority is scoped per
// project rather than per source
const sourceCrypto = "crypto"

// ResourceContext carries the request attributes a permission decision
// depends on
type ResourceContext struct {
	Source    string
	Project   string
	CreatorID int64
}

// Authorizer is the single permission decision point. It is built once
// from configuration and is immutable; decisions are deterministic and
// side-effect free. Every state-mutating entry point must consult it
// before acting.
type Authorizer struct {
	admins           map[int64]bool
	finControl       map[int64]bool
	allAccess        map[int64]bool
	allowAdminCreate bool
	sourceAdmins     map[string]map[int64]bool
	projectAdmins    map[string]map[int64]bool
}

// NewAuthorizer builds an authorizer from the access configuration
func NewAuthorizer(cfg config.AccessConfig) *Authorizer {
	return &Authorizer{
		admins:           idSet(cfg.AdminIDs),
		finControl:       idSet(cfg.FinControlIDs),
		allAccess:        idSet(cfg.AllAccessAdminIDs),
		allowAdminCreate: cfg.AllowAdminCreate,
		sourceAdmins:     scopeSet(cfg.SourceAdmins),
		projectAdmins:    scopeSet(cfg.ProjectAdmins),
	}
}

// Allowed decides whether the user may perform the action described by
// perm against the resource described by rc.
func (a *Authorizer) Allowed(userID int64, perm Permission, rc ResourceContext) bool {
	// All-access admins may do anything
	if a.allAccess[userID] {
		return true
	}

	switch perm {
	case PermissionCreate:
		// Requests are user-initiated; admins create only when the
		// deployment explicitly permits it, fincontrol never creates
		if a.admins[userID] {
			return a.allowAdminCreate
		}
		if a.finControl[userID] {
			return false
		}
		return true

	case PermissionComment:
		if rc.CreatorID != 0 && rc.CreatorID == userID {
			return true
		}
		return a.inScope(userID, rc)

	case PermissionViewAll:
		if a.finControl[userID] {
			return true
		}
		if rc.Source == "" && rc.Project == "" {
			return a.admins[userID]
		}
		return a.inScope(userID, rc)

	case PermissionApprove, PermissionReject:
		return a.inScope(userID, rc)

	case PermissionEdit:
		if rc.CreatorID != 0 && rc.CreatorID == userID {
			return true
		}
		return a.inScope(userID, rc)
	}

	return false
}

// RoleOf reports the configured role of a user id
func (a *Authorizer) RoleOf(userID int64) string {
	switch {
	case a.allAccess[userID], a.admins[userID]:
		return entity.RoleAdmin
	case a.finControl[userID]:
		return entity.RoleFinControl
	default:
		return entity.RoleUser
	}
}

// inScope reports whether the user appears in the scoping table for the
// resource. The crypto source is scoped per project; every other source
// is scoped per source id.
func (a *Authorizer) inScope(userID int64, rc ResourceContext) bool {
	if rc.Source == sourceCrypto && rc.Project != "" {
		return a.projectAdmins[rc.Project][userID]
	}
	if rc.Source == "" {
		return false
	}
	return a.sourceAdmins[rc.Source][userID]
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func scopeSet(scopes map[string][]int64) map[string]map[int64]bool {
	set := make(map[string]map[int64]bool, len(scopes))
	for key, ids := range scopes {
		set[key] = idSet(ids)
	}
	return set
}
