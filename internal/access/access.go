package access

// Role is a user's role within an organization.
// Roles are hierarchical: owner > admin > member > viewer.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Permission is an operation class checked against a dialog or organization.
type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionWrite  Permission = "write"
	PermissionDelete Permission = "delete"
	PermissionManage Permission = "manage"
)

// AllRoles returns every valid role, strongest first.
func AllRoles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember, RoleViewer}
}

// IsValidRole reports whether role names a known role.
func IsValidRole(role Role) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// permissionTable is the single role -> permission lookup consumed by every
// access decision. Kept monotonic: a role granted a stronger permission is
// granted all weaker ones.
var permissionTable = map[Permission]map[Role]bool{
	PermissionRead: {
		RoleViewer: true,
		RoleMember: true,
		RoleAdmin:  true,
		RoleOwner:  true,
	},
	PermissionWrite: {
		RoleMember: true,
		RoleAdmin:  true,
		RoleOwner:  true,
	},
	PermissionDelete: {
		RoleAdmin: true,
		RoleOwner: true,
	},
	PermissionManage: {
		RoleOwner: true,
	},
}

// RoleAllows reports whether role grants the given permission.
// Unknown roles and permissions fail closed.
func RoleAllows(role Role, perm Permission) bool {
	allowed, ok := permissionTable[perm]
	if !ok {
		return false
	}
	return allowed[role]
}

// CanManageMembers reports whether role may add, remove, or re-role members.
func CanManageMembers(role Role) bool {
	return role == RoleOwner || role == RoleAdmin
}

// Dialog owner kinds
const (
	OwnerTypeUser         = "user"
	OwnerTypeOrganization = "organization"
)

// RoleLookup resolves the caller's active role in an organization.
// The second return value is false when no active membership exists.
type RoleLookup func(organizationID string) (Role, bool)

// CanAccessDialog decides whether a user may perform perm on a dialog.
//
// Personal dialogs are always accessible to their owner. Organization-owned
// dialogs consult the role table through the supplied lookup. Any missing
// membership, unknown owner type, or unknown role denies.
func CanAccessDialog(userID, ownerType, ownerID string, perm Permission, roleOf RoleLookup) bool {
	switch ownerType {
	case OwnerTypeUser:
		return ownerID == userID
	case OwnerTypeOrganization:
		if roleOf == nil {
			return false
		}
		role, ok := roleOf(ownerID)
		if !ok {
			return false
		}
		return RoleAllows(role, perm)
	default:
		return false
	}
}

// InvitableRoles lists roles an invitation may carry. Ownership is never
// granted through an invitation.
func InvitableRoles() []Role {
	return []Role{RoleAdmin, RoleMember, RoleViewer}
}

// IsInvitableRole reports whether a role may be granted via invitation.
func IsInvitableRole(role Role) bool {
	for _, r := range InvitableRoles() {
		if r == role {
			return true
		}
	}
	return false
}
