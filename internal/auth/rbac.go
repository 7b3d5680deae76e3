// Package auth provides session identity and authorization for KeyGate.
package auth

import (
	"fmt"

	"github.com/keygate-dev/keygate/internal/models"
)

// Permission defines an action that can be performed.
type Permission string

const (
	// License permissions
	PermLicenseRead       Permission = "license:read"
	PermLicenseIssue      Permission = "license:issue"
	PermLicenseDeactivate Permission = "license:deactivate"
	PermLicenseDelete     Permission = "license:delete"

	// Product permissions
	PermProductRead   Permission = "product:read"
	PermProductCreate Permission = "product:create"
	PermProductUpdate Permission = "product:update"
	PermProductDelete Permission = "product:delete"

	// User management permissions
	PermUserRead   Permission = "user:read"
	PermUserBan    Permission = "user:ban"
	PermUserWarn   Permission = "user:warn"
	PermUserRole   Permission = "user:role"
	PermUserDelete Permission = "user:delete"

	// Moderation permissions
	PermModerationRead   Permission = "moderation:read"
	PermModerationDelete Permission = "moderation:delete_content"

	// Settings permissions
	PermSettingsRead   Permission = "settings:read"
	PermSettingsUpdate Permission = "settings:update"
)

// rolePermissions maps roles to their allowed permissions.
var rolePermissions = map[models.UserRole][]Permission{
	models.UserRoleAdmin: {
		// Licenses
		PermLicenseRead, PermLicenseIssue, PermLicenseDeactivate, PermLicenseDelete,
		// Products
		PermProductRead, PermProductCreate, PermProductUpdate, PermProductDelete,
		// Users
		PermUserRead, PermUserBan, PermUserWarn, PermUserRole, PermUserDelete,
		// Moderation
		PermModerationRead, PermModerationDelete,
		// Settings
		PermSettingsRead, PermSettingsUpdate,
	},
	models.UserRoleShopAccess: {
		// Licenses
		PermLicenseRead, PermLicenseIssue, PermLicenseDeactivate,
		// Products
		PermProductRead, PermProductCreate, PermProductUpdate,
	},
	models.UserRolePartner: {
		// Licenses
		PermLicenseRead,
		// Products
		PermProductRead,
	},
	models.UserRoleUser: {},
}

// HasRolePermission checks if a role has the given permission.
func HasRolePermission(role models.UserRole, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// RequireRolePermission returns ErrPermissionDenied when the role lacks the
// permission.
func RequireRolePermission(role models.UserRole, perm Permission) error {
	if !HasRolePermission(role, perm) {
		return ErrPermissionDenied
	}
	return nil
}

// ErrPermissionDenied is returned when a user lacks required permissions.
var ErrPermissionDenied = fmt.Errorf("permission denied")
