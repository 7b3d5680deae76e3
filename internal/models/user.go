package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole defines a user's role in the storefront.
type UserRole string

const (
	// UserRoleUser is the default role for storefront visitors.
	UserRoleUser UserRole = "user"
	// UserRoleShopAccess can manage licenses and products.
	UserRoleShopAccess UserRole = "shop_access"
	// UserRolePartner has read access to shop data.
	UserRolePartner UserRole = "partner"
	// UserRoleAdmin has full access including moderation.
	UserRoleAdmin UserRole = "admin"
)

// Valid returns true if the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleShopAccess, UserRolePartner, UserRoleAdmin:
		return true
	}
	return false
}

// Warning is a non-blocking notice attached to a user. Warnings are
// acknowledged in bulk, never individually.
type Warning struct {
	ID        uuid.UUID `json:"id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
}

// NewWarning creates an unread Warning.
func NewWarning(reason string) Warning {
	return Warning{
		ID:        uuid.New(),
		Reason:    reason,
		CreatedAt: time.Now(),
		IsRead:    false,
	}
}

// User is a storefront identity. There is no password; identity is a
// username resolved (or generated) on first visit and carried in the
// session cookie.
//
// The stored IsBanned flag is not authoritative on its own: a time-boxed
// ban self-expires at read time. Callers must use IsCurrentlyBanned and
// never read IsBanned directly.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Role         UserRole   `json:"role"`
	IsBanned     bool       `json:"is_banned"`
	BanReason    *string    `json:"ban_reason,omitempty"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`
	Warnings     []Warning  `json:"warnings"`
	IsOnline     bool       `json:"is_online"`
	LastSeen     *time.Time `json:"last_seen,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewUser creates a new User with the default role and no warnings.
func NewUser(username string) *User {
	return &User{
		ID:        uuid.New(),
		Username:  username,
		Role:      UserRoleUser,
		Warnings:  []Warning{},
		CreatedAt: time.Now(),
	}
}

// IsCurrentlyBanned reports whether a ban is enforced at the given instant.
// A ban with an expiry exactly equal to now is treated as expired.
func (u *User) IsCurrentlyBanned(now time.Time) bool {
	if !u.IsBanned {
		return false
	}
	return u.BanExpiresAt == nil || now.Before(*u.BanExpiresAt)
}

// UnreadWarnings returns the number of warnings not yet acknowledged.
func (u *User) UnreadWarnings() int {
	n := 0
	for _, w := range u.Warnings {
		if !w.IsRead {
			n++
		}
	}
	return n
}

// Moderator identifies who performed a moderation action.
type Moderator struct {
	ID       uuid.UUID
	Username string
}

// ResolveUserRequest is the request body for resolving or creating a
// storefront identity. Username is optional; when empty a name is generated.
type ResolveUserRequest struct {
	Username string `json:"username"`
}

// BanUserRequest is the request body for banning a user. A nil ExpiresAt
// means the ban is permanent.
type BanUserRequest struct {
	Reason    string     `json:"reason" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// WarnUserRequest is the request body for warning a user.
type WarnUserRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// UpdateRoleRequest is the request body for changing a user's role.
type UpdateRoleRequest struct {
	Role UserRole `json:"role" binding:"required"`
}

// ElevateRequest is the request body for promoting a session to admin.
type ElevateRequest struct {
	Password string `json:"password" binding:"required"`
}
