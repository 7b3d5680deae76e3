package access

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/models"
)

type mockUserStore struct {
	users       map[uuid.UUID]*models.User
	createErrs  []error // consumed in order by CreateUser, nil = success
	createCalls int
	missLookups int // force this many GetUserByUsername misses
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (m *mockUserStore) CreateUser(_ context.Context, u *models.User) error {
	m.createCalls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return fmt.Errorf("create user: %w", db.ErrDuplicate)
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockUserStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", db.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	if m.missLookups > 0 {
		m.missLookups--
		return nil, fmt.Errorf("get user by username: %w", db.ErrNotFound)
	}
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user by username: %w", db.ErrNotFound)
}

func (m *mockUserStore) ListUsers(_ context.Context, _ db.UserFilter) ([]*models.User, error) {
	var out []*models.User
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockUserStore) SetUserBan(_ context.Context, id uuid.UUID, reason string, bannedAt time.Time, expiresAt *time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("set user ban: %w", db.ErrNotFound)
	}
	u.IsBanned = true
	u.BanReason = &reason
	u.BannedAt = &bannedAt
	u.BanExpiresAt = expiresAt
	return nil
}

func (m *mockUserStore) ClearUserBan(_ context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("clear user ban: %w", db.ErrNotFound)
	}
	u.IsBanned = false
	u.BanReason = nil
	u.BannedAt = nil
	u.BanExpiresAt = nil
	return nil
}

func (m *mockUserStore) AppendWarning(_ context.Context, id uuid.UUID, w models.Warning) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("append warning: %w", db.ErrNotFound)
	}
	u.Warnings = append(u.Warnings, w)
	return nil
}

func (m *mockUserStore) MarkWarningsRead(_ context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("mark warnings read: %w", db.ErrNotFound)
	}
	for i := range u.Warnings {
		u.Warnings[i].IsRead = true
	}
	return nil
}

func (m *mockUserStore) UpdateUserRole(_ context.Context, id uuid.UUID, role models.UserRole) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("update user role: %w", db.ErrNotFound)
	}
	u.Role = role
	return nil
}

func (m *mockUserStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("delete user: %w", db.ErrNotFound)
	}
	delete(m.users, id)
	return nil
}

type mockRecorder struct {
	actions []*models.ModerationAction
}

func (m *mockRecorder) Record(_ context.Context, t models.ModerationActionType, targetID, targetType, reason string, mod models.Moderator) (*models.ModerationAction, error) {
	a := models.NewModerationAction(t, targetID, targetType, reason, mod)
	m.actions = append(m.actions, a)
	return a, nil
}

func newTestService() (*Service, *mockUserStore, *mockRecorder) {
	store := newMockUserStore()
	recorder := &mockRecorder{}
	return NewService(store, recorder, zerolog.Nop()), store, recorder
}

var testMod = models.Moderator{ID: uuid.New(), Username: "AdminOne"}

func TestService_ResolveOrCreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesNamedUser", func(t *testing.T) {
		svc, _, _ := newTestService()
		user, err := svc.ResolveOrCreateUser(ctx, "KnownName1")
		if err != nil {
			t.Fatalf("ResolveOrCreateUser() error = %v", err)
		}
		if user.Username != "KnownName1" {
			t.Errorf("Username = %q, want KnownName1", user.Username)
		}
		if user.Role != models.UserRoleUser {
			t.Errorf("Role = %q, want user", user.Role)
		}
	})

	t.Run("ReturnsExistingUser", func(t *testing.T) {
		svc, _, _ := newTestService()
		first, err := svc.ResolveOrCreateUser(ctx, "KnownName1")
		if err != nil {
			t.Fatalf("first resolve error = %v", err)
		}
		second, err := svc.ResolveOrCreateUser(ctx, "KnownName1")
		if err != nil {
			t.Fatalf("second resolve error = %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("resolve created a second user: %s != %s", first.ID, second.ID)
		}
	})

	t.Run("GeneratesUsername", func(t *testing.T) {
		svc, _, _ := newTestService()
		user, err := svc.ResolveOrCreateUser(ctx, "")
		if err != nil {
			t.Fatalf("ResolveOrCreateUser() error = %v", err)
		}
		if user.Username == "" {
			t.Error("generated username is empty")
		}
	})

	t.Run("RetriesOnGeneratedNameConflict", func(t *testing.T) {
		svc, store, _ := newTestService()
		store.createErrs = []error{db.ErrDuplicate, db.ErrDuplicate, nil}

		user, err := svc.ResolveOrCreateUser(ctx, "")
		if err != nil {
			t.Fatalf("ResolveOrCreateUser() error = %v", err)
		}
		if user == nil {
			t.Fatal("user is nil")
		}
		if store.createCalls != 3 {
			t.Errorf("CreateUser called %d times, want 3", store.createCalls)
		}
	})

	t.Run("NamedConflictResolvesToWinner", func(t *testing.T) {
		svc, store, _ := newTestService()
		winner := models.NewUser("Contested1")
		store.users[winner.ID] = winner
		// Initial lookup misses, create hits the unique constraint, and the
		// retry lookup finds the racing winner.
		store.missLookups = 1

		user, err := svc.ResolveOrCreateUser(ctx, "Contested1")
		if err != nil {
			t.Fatalf("ResolveOrCreateUser() error = %v", err)
		}
		if user.ID != winner.ID {
			t.Errorf("resolved user %s, want winner %s", user.ID, winner.ID)
		}
	})
}

func TestService_Ban(t *testing.T) {
	ctx := context.Background()

	t.Run("PermanentBan", func(t *testing.T) {
		svc, _, recorder := newTestService()
		user, _ := svc.ResolveOrCreateUser(ctx, "Target1")

		banned, err := svc.Ban(ctx, user.ID, models.BanUserRequest{Reason: "fraud"}, testMod)
		if err != nil {
			t.Fatalf("Ban() error = %v", err)
		}
		if !banned.IsBanned {
			t.Error("IsBanned = false after ban")
		}
		if banned.BanExpiresAt != nil {
			t.Error("permanent ban has an expiry")
		}
		if !banned.IsCurrentlyBanned(time.Now()) {
			t.Error("IsCurrentlyBanned = false for permanent ban")
		}

		if len(recorder.actions) != 1 || recorder.actions[0].Type != models.ModerationBanUser {
			t.Errorf("ban was not recorded in the moderation log: %+v", recorder.actions)
		}
	})

	t.Run("RequiresReason", func(t *testing.T) {
		svc, _, _ := newTestService()
		user, _ := svc.ResolveOrCreateUser(ctx, "Target1")

		_, err := svc.Ban(ctx, user.ID, models.BanUserRequest{}, testMod)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("RejectsPastExpiry", func(t *testing.T) {
		svc, _, _ := newTestService()
		user, _ := svc.ResolveOrCreateUser(ctx, "Target1")
		past := time.Now().Add(-time.Minute)

		_, err := svc.Ban(ctx, user.ID, models.BanUserRequest{Reason: "x", ExpiresAt: &past}, testMod)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.Ban(ctx, uuid.New(), models.BanUserRequest{Reason: "x"}, testMod)
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("err = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("RebanOverwrites", func(t *testing.T) {
		svc, _, _ := newTestService()
		user, _ := svc.ResolveOrCreateUser(ctx, "Target1")

		if _, err := svc.Ban(ctx, user.ID, models.BanUserRequest{Reason: "first"}, testMod); err != nil {
			t.Fatalf("first Ban() error = %v", err)
		}
		later := time.Now().Add(time.Hour)
		banned, err := svc.Ban(ctx, user.ID, models.BanUserRequest{Reason: "second", ExpiresAt: &later}, testMod)
		if err != nil {
			t.Fatalf("second Ban() error = %v", err)
		}
		if *banned.BanReason != "second" {
			t.Errorf("BanReason = %q, want second", *banned.BanReason)
		}
		if banned.BanExpiresAt == nil {
			t.Error("re-ban did not overwrite expiry")
		}
	})
}

func TestService_BanExpiry(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService()
	user, _ := svc.ResolveOrCreateUser(ctx, "Target1")

	expires := time.Now().Add(time.Hour)
	if _, err := svc.Ban(ctx, user.ID, models.BanUserRequest{Reason: "temp", ExpiresAt: &expires}, testMod); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}

	stored := store.users[user.ID]

	if !stored.IsCurrentlyBanned(expires.Add(-time.Second)) {
		t.Error("ban not in force one second before expiry")
	}
	// Expiry instant itself is already expired
	if stored.IsCurrentlyBanned(expires) {
		t.Error("ban still in force at the expiry instant")
	}
	if stored.IsCurrentlyBanned(expires.Add(time.Second)) {
		t.Error("ban still in force after expiry")
	}
	// Stored flag may lag; the predicate is authoritative
	if !stored.IsBanned {
		t.Error("stored flag cleared without a sweep")
	}
}

func TestService_Unban(t *testing.T) {
	ctx := context.Background()
	svc, _, recorder := newTestService()
	user, _ := svc.ResolveOrCreateUser(ctx, "Target1")

	if _, err := svc.Ban(ctx, user.ID, models.BanUserRequest{Reason: "fraud"}, testMod); err != nil {
		t.Fatalf("Ban() error = %v", err)
	}

	unbanned, err := svc.Unban(ctx, user.ID, "appeal accepted", testMod)
	if err != nil {
		t.Fatalf("Unban() error = %v", err)
	}
	if unbanned.IsBanned {
		t.Error("IsBanned = true after unban")
	}
	if unbanned.BanReason != nil || unbanned.BannedAt != nil || unbanned.BanExpiresAt != nil {
		t.Error("unban left ban fields populated")
	}

	if len(recorder.actions) != 2 || recorder.actions[1].Type != models.ModerationUnbanUser {
		t.Errorf("unban was not recorded: %+v", recorder.actions)
	}
}

func TestService_Warnings(t *testing.T) {
	ctx := context.Background()
	svc, _, recorder := newTestService()
	user, _ := svc.ResolveOrCreateUser(ctx, "Target1")

	warned, err := svc.Warn(ctx, user.ID, "be nice", testMod)
	if err != nil {
		t.Fatalf("Warn() error = %v", err)
	}
	if warned.UnreadWarnings() != 1 {
		t.Errorf("UnreadWarnings = %d, want 1", warned.UnreadWarnings())
	}
	if len(recorder.actions) != 1 || recorder.actions[0].Type != models.ModerationWarnUser {
		t.Errorf("warn was not recorded: %+v", recorder.actions)
	}

	if _, err := svc.Warn(ctx, user.ID, "", testMod); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty reason: err = %v, want ErrInvalidArgument", err)
	}

	if err := svc.MarkWarningsRead(ctx, user.ID); err != nil {
		t.Fatalf("MarkWarningsRead() error = %v", err)
	}
	got, _ := svc.GetUser(ctx, user.ID)
	if got.UnreadWarnings() != 0 {
		t.Errorf("UnreadWarnings = %d after mark read, want 0", got.UnreadWarnings())
	}

	// Idempotent
	if err := svc.MarkWarningsRead(ctx, user.ID); err != nil {
		t.Fatalf("second MarkWarningsRead() error = %v", err)
	}
}

func TestService_UpdateRole(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	user, _ := svc.ResolveOrCreateUser(ctx, "Target1")

	updated, err := svc.UpdateRole(ctx, user.ID, models.UserRolePartner)
	if err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}
	if updated.Role != models.UserRolePartner {
		t.Errorf("Role = %q, want partner", updated.Role)
	}

	if _, err := svc.UpdateRole(ctx, user.ID, "superuser"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("bad role: err = %v, want ErrInvalidArgument", err)
	}
}

func TestService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	user, _ := svc.ResolveOrCreateUser(ctx, "Target1")

	if err := svc.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if _, err := svc.GetUser(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrUserNotFound", err)
	}
	if err := svc.DeleteUser(ctx, user.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("double delete: err = %v, want ErrUserNotFound", err)
	}
}

func TestGenerateUsername(t *testing.T) {
	for i := 0; i < 50; i++ {
		name := generateUsername()
		if len(name) < 8 {
			t.Errorf("generated username %q is suspiciously short", name)
		}
	}
}
