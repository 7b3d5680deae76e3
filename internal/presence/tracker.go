// Package presence tracks which users are online via Redis TTL heartbeats.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "presence:user:"

// Store defines the persistence operations the tracker flushes to.
type Store interface {
	UpdateLastSeen(ctx context.Context, id uuid.UUID, online bool, lastSeen time.Time) error
	MarkStaleOffline(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds presence tracking configuration.
type Config struct {
	// TTL is how long a heartbeat keeps a user online.
	TTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{TTL: 2 * time.Minute}
}

// Tracker keeps the hot online set in Redis and periodically writes
// last-seen timestamps back to the database.
type Tracker struct {
	rdb    *redis.Client
	store  Store
	cfg    Config
	logger zerolog.Logger
}

// NewTracker creates a presence tracker.
func NewTracker(rdb *redis.Client, store Store, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Tracker{
		rdb:    rdb,
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "presence").Logger(),
	}
}

// Heartbeat marks a user online for the configured TTL and records the
// last-seen timestamp in the database.
func (t *Tracker) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	now := time.Now().UTC()
	if err := t.rdb.Set(ctx, keyPrefix+userID.String(), now.Format(time.RFC3339), t.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("presence heartbeat: %w", err)
	}
	if err := t.store.UpdateLastSeen(ctx, userID, true, now); err != nil {
		return err
	}
	return nil
}

// IsOnline reports whether a user has heartbeated within the TTL.
func (t *Tracker) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	err := t.rdb.Get(ctx, keyPrefix+userID.String()).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("presence lookup: %w", err)
	}
	return true, nil
}

// LastSeen returns the most recent heartbeat timestamp from Redis, or nil if
// none is live. The database column is the durable fallback.
func (t *Tracker) LastSeen(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	val, err := t.rdb.Get(ctx, keyPrefix+userID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("presence lookup: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, fmt.Errorf("presence parse timestamp: %w", err)
	}
	return &ts, nil
}

// FlushStale flips is_online off in the database for users whose last
// heartbeat predates the TTL window. Run on a schedule.
func (t *Tracker) FlushStale(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-t.cfg.TTL)
	marked, err := t.store.MarkStaleOffline(ctx, cutoff)
	if err != nil {
		t.logger.Error().Err(err).Msg("failed to mark stale users offline")
		return
	}
	if marked > 0 {
		t.logger.Debug().Int64("marked", marked).Msg("stale users marked offline")
	}
}
