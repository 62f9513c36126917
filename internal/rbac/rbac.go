// Package rbac holds the static role/permission model: a role→capability
// table plus the role hierarchy rules that constrain who may create or
// delete whom. Everything here is a pure function of role strings.
package rbac

import (
	"github.com/sharp-crm/crm-sub000/internal/domain"
)

// Capability identifies a single permitted action.
type Capability string

const (
	CapManageSystem   Capability = "MANAGE_SYSTEM"
	CapCreateAdmin    Capability = "CREATE_ADMIN"
	CapCreateUser     Capability = "CREATE_USER"
	CapViewTenant     Capability = "VIEW_TENANT"
	CapCreateRecord   Capability = "CREATE_RECORD"
	CapViewRecords    Capability = "VIEW_RECORDS"
	CapUpdateRecords  Capability = "UPDATE_RECORDS"
	CapDeleteRecords  Capability = "DELETE_RECORDS"
	CapRestoreRecords Capability = "RESTORE_RECORDS"
	CapPurgeRecords   Capability = "PURGE_RECORDS"
)

// capabilities is the static role→capability table. Who-may-create-whom is
// deliberately NOT expressed here: it is a relation between two roles, not a
// single-role capability, and lives in CanCreate/CanDelete below.
var capabilities = map[string][]Capability{
	domain.RoleSuperAdmin: {
		CapManageSystem, CapCreateAdmin, CapViewTenant,
		CapCreateRecord, CapViewRecords, CapUpdateRecords,
		CapDeleteRecords, CapRestoreRecords, CapPurgeRecords,
	},
	domain.RoleAdmin: {
		CapCreateUser, CapViewTenant,
		CapCreateRecord, CapViewRecords, CapUpdateRecords,
		CapDeleteRecords, CapRestoreRecords, CapPurgeRecords,
	},
	domain.RoleSalesManager: {
		CapViewTenant,
		CapCreateRecord, CapViewRecords, CapUpdateRecords,
		CapDeleteRecords, CapRestoreRecords,
	},
	domain.RoleSalesRep: {
		CapCreateRecord, CapViewRecords, CapUpdateRecords,
	},
}

// Can reports whether the given role holds the capability.
func Can(role string, cap Capability) bool {
	for _, c := range capabilities[role] {
		if c == cap {
			return true
		}
	}
	return false
}

// Capabilities returns the capability set for a role. Unknown roles have no
// capabilities.
func Capabilities(role string) []Capability {
	caps := capabilities[role]
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// CanCreate reports whether a user with creatorRole may create a user with
// targetRole:
//   - SUPER_ADMIN creates ADMIN only; each new ADMIN starts a new tenant.
//   - ADMIN creates SALES_MANAGER and SALES_REP within its own tenant.
//   - No other role creates anyone.
func CanCreate(creatorRole, targetRole string) bool {
	switch creatorRole {
	case domain.RoleSuperAdmin:
		return targetRole == domain.RoleAdmin
	case domain.RoleAdmin:
		return targetRole == domain.RoleSalesManager || targetRole == domain.RoleSalesRep
	default:
		return false
	}
}

// CanDelete reports whether the caller may soft-delete the target user.
// The hierarchy mirrors creation: admins manage their own tenant's managers
// and reps, super admins manage admins, and nobody deletes a peer at the
// top of the hierarchy or themselves.
func CanDelete(caller *domain.Identity, target *domain.User) bool {
	if caller == nil || target == nil {
		return false
	}
	if caller.UserID == target.ID {
		return false
	}
	switch caller.Role {
	case domain.RoleSuperAdmin:
		return target.Role != domain.RoleSuperAdmin
	case domain.RoleAdmin:
		if target.Role == domain.RoleAdmin || target.Role == domain.RoleSuperAdmin {
			return false
		}
		return caller.TenantID == target.TenantID
	default:
		return false
	}
}
