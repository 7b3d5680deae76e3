package models

import (
	"time"

	"github.com/google/uuid"
)

// ModerationActionType identifies the kind of moderation action taken.
type ModerationActionType string

const (
	ModerationDeleteProduct ModerationActionType = "delete_product"
	ModerationDeleteComment ModerationActionType = "delete_comment"
	ModerationBanUser       ModerationActionType = "ban_user"
	ModerationUnbanUser     ModerationActionType = "unban_user"
	ModerationWarnUser      ModerationActionType = "warn_user"
)

// Valid returns true if the action type is one of the known values.
func (t ModerationActionType) Valid() bool {
	switch t {
	case ModerationDeleteProduct, ModerationDeleteComment,
		ModerationBanUser, ModerationUnbanUser, ModerationWarnUser:
		return true
	}
	return false
}

// ModerationAction is one immutable audit record of a moderator's
// destructive or corrective action. Entries are append-only: they are
// never mutated or deleted.
type ModerationAction struct {
	ID                uuid.UUID            `json:"id"`
	Type              ModerationActionType `json:"type"`
	TargetID          string               `json:"target_id"`
	TargetType        string               `json:"target_type"`
	Reason            string               `json:"reason"`
	ModeratorID       uuid.UUID            `json:"moderator_id"`
	ModeratorUsername string               `json:"moderator_username"`
	CreatedAt         time.Time            `json:"created_at"`
}

// NewModerationAction creates a new ModerationAction entry.
func NewModerationAction(t ModerationActionType, targetID, targetType, reason string, mod Moderator) *ModerationAction {
	return &ModerationAction{
		ID:                uuid.New(),
		Type:              t,
		TargetID:          targetID,
		TargetType:        targetType,
		Reason:            reason,
		ModeratorID:       mod.ID,
		ModeratorUsername: mod.Username,
		CreatedAt:         time.Now(),
	}
}

// ModerationStats aggregates the moderation log for the admin dashboard.
// "Today" is bounded by UTC calendar-day boundaries.
type ModerationStats struct {
	TotalActions    int64 `json:"total_actions"`
	TodayActions    int64 `json:"today_actions"`
	DeletedProducts int64 `json:"deleted_products"`
	DeletedComments int64 `json:"deleted_comments"`
	BannedUsers     int64 `json:"banned_users"`
	UnbannedUsers   int64 `json:"unbanned_users"`
	WarnedUsers     int64 `json:"warned_users"`
}
