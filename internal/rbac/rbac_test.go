package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sharp-crm/crm-sub000/internal/domain"
)

func TestCan_CapabilityTable(t *testing.T) {
	tests := []struct {
		name string
		role string
		cap  Capability
		want bool
	}{
		{"super admin manages system", domain.RoleSuperAdmin, CapManageSystem, true},
		{"super admin creates admins", domain.RoleSuperAdmin, CapCreateAdmin, true},
		{"super admin purges records", domain.RoleSuperAdmin, CapPurgeRecords, true},
		{"super admin has no tenant user creation", domain.RoleSuperAdmin, CapCreateUser, false},
		{"admin creates tenant users", domain.RoleAdmin, CapCreateUser, true},
		{"admin purges records", domain.RoleAdmin, CapPurgeRecords, true},
		{"admin does not manage system", domain.RoleAdmin, CapManageSystem, false},
		{"admin does not create admins", domain.RoleAdmin, CapCreateAdmin, false},
		{"manager views tenant", domain.RoleSalesManager, CapViewTenant, true},
		{"manager deletes records", domain.RoleSalesManager, CapDeleteRecords, true},
		{"manager restores records", domain.RoleSalesManager, CapRestoreRecords, true},
		{"manager does not purge records", domain.RoleSalesManager, CapPurgeRecords, false},
		{"manager does not create users", domain.RoleSalesManager, CapCreateUser, false},
		{"rep creates records", domain.RoleSalesRep, CapCreateRecord, true},
		{"rep updates records", domain.RoleSalesRep, CapUpdateRecords, true},
		{"rep does not view tenant", domain.RoleSalesRep, CapViewTenant, false},
		{"rep does not delete records", domain.RoleSalesRep, CapDeleteRecords, false},
		{"rep does not restore records", domain.RoleSalesRep, CapRestoreRecords, false},
		{"unknown role has nothing", "INTERN", CapViewRecords, false},
		{"empty role has nothing", "", CapViewRecords, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.cap))
		})
	}
}

func TestCapabilities_ReturnsCopy(t *testing.T) {
	caps := Capabilities(domain.RoleSalesRep)
	assert.NotEmpty(t, caps)

	caps[0] = Capability("TAMPERED")
	assert.NotContains(t, Capabilities(domain.RoleSalesRep), Capability("TAMPERED"))
}

func TestCapabilities_UnknownRoleEmpty(t *testing.T) {
	assert.Empty(t, Capabilities("NOBODY"))
}

func TestCanCreate(t *testing.T) {
	tests := []struct {
		name        string
		creatorRole string
		targetRole  string
		want        bool
	}{
		{"super admin creates admin", domain.RoleSuperAdmin, domain.RoleAdmin, true},
		{"super admin cannot create super admin", domain.RoleSuperAdmin, domain.RoleSuperAdmin, false},
		{"super admin cannot create manager", domain.RoleSuperAdmin, domain.RoleSalesManager, false},
		{"super admin cannot create rep", domain.RoleSuperAdmin, domain.RoleSalesRep, false},
		{"admin creates manager", domain.RoleAdmin, domain.RoleSalesManager, true},
		{"admin creates rep", domain.RoleAdmin, domain.RoleSalesRep, true},
		{"admin cannot create admin", domain.RoleAdmin, domain.RoleAdmin, false},
		{"admin cannot create super admin", domain.RoleAdmin, domain.RoleSuperAdmin, false},
		{"manager creates nobody", domain.RoleSalesManager, domain.RoleSalesRep, false},
		{"rep creates nobody", domain.RoleSalesRep, domain.RoleSalesRep, false},
		{"unknown role creates nobody", "INTERN", domain.RoleSalesRep, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanCreate(tt.creatorRole, tt.targetRole))
		})
	}
}

func TestCanDelete(t *testing.T) {
	superAdmin := &domain.Identity{UserID: "u-sa", Role: domain.RoleSuperAdmin, TenantID: "t-root"}
	admin := &domain.Identity{UserID: "u-admin", Role: domain.RoleAdmin, TenantID: "t-0001"}
	manager := &domain.Identity{UserID: "u-mgr", Role: domain.RoleSalesManager, TenantID: "t-0001"}

	tests := []struct {
		name   string
		caller *domain.Identity
		target *domain.User
		want   bool
	}{
		{
			"super admin deletes admin",
			superAdmin,
			&domain.User{ID: "u-2", Role: domain.RoleAdmin, TenantID: "t-0001"},
			true,
		},
		{
			"super admin deletes rep in any tenant",
			superAdmin,
			&domain.User{ID: "u-2", Role: domain.RoleSalesRep, TenantID: "t-0099"},
			true,
		},
		{
			"super admin cannot delete a peer",
			superAdmin,
			&domain.User{ID: "u-other-sa", Role: domain.RoleSuperAdmin, TenantID: "t-root"},
			false,
		},
		{
			"admin deletes own tenant manager",
			admin,
			&domain.User{ID: "u-2", Role: domain.RoleSalesManager, TenantID: "t-0001"},
			true,
		},
		{
			"admin deletes own tenant rep",
			admin,
			&domain.User{ID: "u-2", Role: domain.RoleSalesRep, TenantID: "t-0001"},
			true,
		},
		{
			"admin cannot delete cross-tenant rep",
			admin,
			&domain.User{ID: "u-2", Role: domain.RoleSalesRep, TenantID: "t-0002"},
			false,
		},
		{
			"admin cannot delete another admin",
			admin,
			&domain.User{ID: "u-2", Role: domain.RoleAdmin, TenantID: "t-0001"},
			false,
		},
		{
			"admin cannot delete super admin",
			admin,
			&domain.User{ID: "u-sa", Role: domain.RoleSuperAdmin, TenantID: "t-root"},
			false,
		},
		{
			"nobody deletes themselves",
			admin,
			&domain.User{ID: "u-admin", Role: domain.RoleAdmin, TenantID: "t-0001"},
			false,
		},
		{
			"manager deletes nobody",
			manager,
			&domain.User{ID: "u-2", Role: domain.RoleSalesRep, TenantID: "t-0001"},
			false,
		},
		{
			"nil caller",
			nil,
			&domain.User{ID: "u-2", Role: domain.RoleSalesRep, TenantID: "t-0001"},
			false,
		},
		{
			"nil target",
			admin,
			nil,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanDelete(tt.caller, tt.target))
		})
	}
}
