// Package access manages storefront identities: resolving users, bans,
// warnings, and roles.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/models"
)

var (
	// ErrInvalidArgument is returned when a request fails validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUserNotFound is returned when the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Store defines the persistence operations the access service needs.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context, filter db.UserFilter) ([]*models.User, error)
	SetUserBan(ctx context.Context, id uuid.UUID, reason string, bannedAt time.Time, expiresAt *time.Time) error
	ClearUserBan(ctx context.Context, id uuid.UUID) error
	AppendWarning(ctx context.Context, id uuid.UUID, w models.Warning) error
	MarkWarningsRead(ctx context.Context, id uuid.UUID) error
	UpdateUserRole(ctx context.Context, id uuid.UUID, role models.UserRole) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// Recorder appends entries to the moderation log.
type Recorder interface {
	Record(ctx context.Context, t models.ModerationActionType, targetID, targetType, reason string, mod models.Moderator) (*models.ModerationAction, error)
}

// Service manages users and their standing.
type Service struct {
	store    Store
	recorder Recorder
	logger   zerolog.Logger
}

// NewService creates an access service.
func NewService(store Store, recorder Recorder, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		recorder: recorder,
		logger:   logger.With().Str("component", "access").Logger(),
	}
}

// ResolveOrCreateUser returns the user with the given username, creating it
// if absent. An empty username asks for a generated one. Creation retries
// with a fresh generated name when the store reports a username conflict.
func (s *Service) ResolveOrCreateUser(ctx context.Context, username string) (*models.User, error) {
	if username != "" {
		user, err := s.store.GetUserByUsername(ctx, username)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}

		user = models.NewUser(username)
		err = s.store.CreateUser(ctx, user)
		if err == nil {
			s.logger.Info().Str("user_id", user.ID.String()).Str("username", username).Msg("user created")
			return user, nil
		}
		if errors.Is(err, db.ErrDuplicate) {
			// Lost a race with another resolver for the same name
			return s.store.GetUserByUsername(ctx, username)
		}
		return nil, err
	}

	for attempt := 0; attempt < 5; attempt++ {
		user := models.NewUser(generateUsername())
		err := s.store.CreateUser(ctx, user)
		if err == nil {
			s.logger.Info().Str("user_id", user.ID.String()).Str("username", user.Username).Msg("user created with generated name")
			return user, nil
		}
		if errors.Is(err, db.ErrDuplicate) {
			continue
		}
		return nil, err
	}
	return nil, errors.New("resolve user: exhausted username generation attempts")
}

// GetUser returns a user by ID.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns users matching the filter.
func (s *Service) ListUsers(ctx context.Context, filter db.UserFilter) ([]*models.User, error) {
	return s.store.ListUsers(ctx, filter)
}

// IsCurrentlyBanned reports whether the user's ban is in force right now.
func (s *Service) IsCurrentlyBanned(ctx context.Context, id uuid.UUID) (bool, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	return user.IsCurrentlyBanned(time.Now()), nil
}

// Ban bans a user and records the action in the moderation log. A nil
// expiresAt makes the ban permanent. Banning an already-banned user
// overwrites the previous ban.
func (s *Service) Ban(ctx context.Context, id uuid.UUID, req models.BanUserRequest, mod models.Moderator) (*models.User, error) {
	if req.Reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidArgument)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidArgument)
	}

	if err := s.store.SetUserBan(ctx, id, req.Reason, time.Now(), req.ExpiresAt); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if _, err := s.recorder.Record(ctx, models.ModerationBanUser, id.String(), "user", req.Reason, mod); err != nil {
		s.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to record ban action")
	}

	s.logger.Info().
		Str("user_id", id.String()).
		Str("moderator", mod.Username).
		Bool("permanent", req.ExpiresAt == nil).
		Msg("user banned")
	return s.GetUser(ctx, id)
}

// Unban lifts a user's ban and records the action. Unbanning a user who is
// not banned is a no-op on the user but still logged.
func (s *Service) Unban(ctx context.Context, id uuid.UUID, reason string, mod models.Moderator) (*models.User, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidArgument)
	}

	if err := s.store.ClearUserBan(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if _, err := s.recorder.Record(ctx, models.ModerationUnbanUser, id.String(), "user", reason, mod); err != nil {
		s.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to record unban action")
	}

	s.logger.Info().Str("user_id", id.String()).Str("moderator", mod.Username).Msg("user unbanned")
	return s.GetUser(ctx, id)
}

// Warn appends a warning to the user and records the action.
func (s *Service) Warn(ctx context.Context, id uuid.UUID, reason string, mod models.Moderator) (*models.User, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidArgument)
	}

	if err := s.store.AppendWarning(ctx, id, models.NewWarning(reason)); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if _, err := s.recorder.Record(ctx, models.ModerationWarnUser, id.String(), "user", reason, mod); err != nil {
		s.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to record warn action")
	}

	s.logger.Info().Str("user_id", id.String()).Str("moderator", mod.Username).Msg("user warned")
	return s.GetUser(ctx, id)
}

// MarkWarningsRead acknowledges all of the user's warnings.
func (s *Service) MarkWarningsRead(ctx context.Context, id uuid.UUID) error {
	if err := s.store.MarkWarningsRead(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

// UpdateRole changes a user's role.
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, role models.UserRole) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}

	if err := s.store.UpdateUserRole(ctx, id, role); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.logger.Info().Str("user_id", id.String()).Str("role", string(role)).Msg("user role updated")
	return s.GetUser(ctx, id)
}

// DeleteUser permanently removes a user.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.logger.Info().Str("user_id", id.String()).Msg("user deleted")
	return nil
}
