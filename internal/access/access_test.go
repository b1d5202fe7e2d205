package access

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoleAllows(t *testing.T) {
	cases := []struct {
		role    Role
		perm    Permission
		allowed bool
	}{
		{RoleViewer, PermissionRead, true},
		{RoleViewer, PermissionWrite, false},
		{RoleViewer, PermissionDelete, false},
		{RoleViewer, PermissionManage, false},
		{RoleMember, PermissionRead, true},
		{RoleMember, PermissionWrite, true},
		{RoleMember, PermissionDelete, false},
		{RoleAdmin, PermissionWrite, true},
		{RoleAdmin, PermissionDelete, true},
		{RoleAdmin, PermissionManage, false},
		{RoleOwner, PermissionDelete, true},
		{RoleOwner, PermissionManage, true},
	}

	for _, tc := range cases {
		require.Equal(t, tc.allowed, RoleAllows(tc.role, tc.perm),
			"role %s perm %s", tc.role, tc.perm)
	}
}

func TestRoleAllows_Monotonic(t *testing.T) {
	// A role granted a stronger permission must hold all weaker ones.
	ordered := []Permission{PermissionRead, PermissionWrite, PermissionDelete, PermissionManage}

	for _, role := range AllRoles() {
		for i := len(ordered) - 1; i > 0; i-- {
			if RoleAllows(role, ordered[i]) {
				require.True(t, RoleAllows(role, ordered[i-1]),
					"role %s has %s but not %s", role, ordered[i], ordered[i-1])
			}
		}
	}
}

func TestRoleAllows_FailsClosed(t *testing.T) {
	require.False(t, RoleAllows(Role("superuser"), PermissionRead))
	require.False(t, RoleAllows(RoleOwner, Permission("impersonate")))
}

func TestCanAccessDialog_PersonalDialog(t *testing.T) {
	require.True(t, CanAccessDialog("u1", OwnerTypeUser, "u1", PermissionDelete, nil))
	require.False(t, CanAccessDialog("u2", OwnerTypeUser, "u1", PermissionRead, nil))
}

func TestCanAccessDialog_OrganizationDialog(t *testing.T) {
	roleOf := func(orgID string) (Role, bool) {
		if orgID == "org1" {
			return RoleViewer, true
		}
		return "", false
	}

	require.True(t, CanAccessDialog("u1", OwnerTypeOrganization, "org1", PermissionRead, roleOf))
	require.False(t, CanAccessDialog("u1", OwnerTypeOrganization, "org1", PermissionWrite, roleOf))
	require.False(t, CanAccessDialog("u1", OwnerTypeOrganization, "org2", PermissionRead, roleOf))
	require.False(t, CanAccessDialog("u1", OwnerTypeOrganization, "org1", PermissionRead, nil))
}

func TestCanAccessDialog_UnknownOwnerType(t *testing.T) {
	roleOf := func(string) (Role, bool) { return RoleOwner, true }
	require.False(t, CanAccessDialog("u1", "team", "org1", PermissionRead, roleOf))
}

func TestIsValidRole(t *testing.T) {
	for _, r := range AllRoles() {
		require.True(t, IsValidRole(r))
	}
	require.False(t, IsValidRole(Role("superuser")))
	require.False(t, IsValidRole(Role("")))
}

func TestInvitableRoles(t *testing.T) {
	require.False(t, IsInvitableRole(RoleOwner))
	for _, r := range InvitableRoles() {
		require.True(t, IsInvitableRole(r))
	}
}
