// Package moderation maintains the append-only moderation log and its
// real-time feed.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/models"
)

// ErrInvalidArgument is returned when a record request fails validation.
var ErrInvalidArgument = errors.New("invalid argument")

// Store defines the persistence operations the log needs.
type Store interface {
	CreateModerationAction(ctx context.Context, a *models.ModerationAction) error
	ListModerationActions(ctx context.Context, filter db.ModerationActionFilter) ([]*models.ModerationAction, error)
	CountModerationActions(ctx context.Context, filter db.ModerationActionFilter) (int64, error)
	GetModerationStats(ctx context.Context, dayStart time.Time) (*models.ModerationStats, error)
}

// Publisher fans a recorded action out to live subscribers.
type Publisher interface {
	Publish(action *models.ModerationAction)
}

// Log records moderation actions. Entries are append-only and are kept even
// when their target is later removed.
type Log struct {
	store     Store
	publisher Publisher
	logger    zerolog.Logger
}

// NewLog creates a moderation log. publisher may be nil when no live feed
// is wired.
func NewLog(store Store, publisher Publisher, logger zerolog.Logger) *Log {
	return &Log{
		store:     store,
		publisher: publisher,
		logger:    logger.With().Str("component", "moderation").Logger(),
	}
}

// Record appends an action to the log and publishes it to the feed.
func (l *Log) Record(ctx context.Context, t models.ModerationActionType, targetID, targetType, reason string, mod models.Moderator) (*models.ModerationAction, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown action type %q", ErrInvalidArgument, t)
	}
	if targetID == "" {
		return nil, fmt.Errorf("%w: target_id is required", ErrInvalidArgument)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidArgument)
	}

	action := models.NewModerationAction(t, targetID, targetType, reason, mod)
	if err := l.store.CreateModerationAction(ctx, action); err != nil {
		return nil, err
	}

	if l.publisher != nil {
		l.publisher.Publish(action)
	}

	l.logger.Info().
		Str("action_id", action.ID.String()).
		Str("type", string(action.Type)).
		Str("target_id", action.TargetID).
		Str("moderator", mod.Username).
		Msg("moderation action recorded")
	return action, nil
}

// List returns log entries matching the filter, newest first.
func (l *Log) List(ctx context.Context, filter db.ModerationActionFilter) ([]*models.ModerationAction, error) {
	return l.store.ListModerationActions(ctx, filter)
}

// Count returns the number of log entries matching the filter.
func (l *Log) Count(ctx context.Context, filter db.ModerationActionFilter) (int64, error) {
	return l.store.CountModerationActions(ctx, filter)
}

// Stats aggregates the log. The "today" bucket starts at midnight UTC.
func (l *Log) Stats(ctx context.Context) (*models.ModerationStats, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	return l.store.GetModerationStats(ctx, dayStart)
}
