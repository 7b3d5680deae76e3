package db

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/keygate-dev/keygate/internal/models"
)

// dockerAvailable returns true if a Docker daemon is reachable.
func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB creates a PostgreSQL testcontainer, runs migrations, and returns a connected DB.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	if !dockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("keygate_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := zerolog.New(zerolog.NewTestWriter(t))
	cfg := DefaultConfig(connStr)
	cfg.MaxConns = 5
	cfg.MinConns = 1

	database, err := New(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	err = database.Migrate(ctx)
	require.NoError(t, err)

	return database
}

// createTestUser creates and persists a test user.
func createTestUser(t *testing.T, db *DB, username string) *models.User {
	t.Helper()
	user := models.NewUser(username)
	err := db.CreateUser(context.Background(), user)
	require.NoError(t, err)
	return user
}

// createTestLicense creates and persists a test license.
func createTestLicense(t *testing.T, db *DB, code, productID string, maxUsages int) *models.License {
	t.Helper()
	license := models.NewLicense(code, productID, models.LicenseCategoryAccount, maxUsages)
	err := db.CreateLicense(context.Background(), license)
	require.NoError(t, err)
	return license
}

func TestStore_Licenses(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		license := createTestLicense(t, db, "AAAA-BBBB-CCCC-DDDD", "prod-1", 3)

		got, err := db.GetLicenseByID(ctx, license.ID)
		require.NoError(t, err)
		assert.Equal(t, license.Code, got.Code)
		assert.Equal(t, "prod-1", got.ProductID)
		assert.Equal(t, 3, got.MaxUsages)
		assert.Equal(t, 0, got.CurrentUsages)
		assert.True(t, got.IsActive)

		byCode, err := db.GetLicenseByCode(ctx, license.Code, "prod-1")
		require.NoError(t, err)
		assert.Equal(t, license.ID, byCode.ID)
	})

	t.Run("DuplicateCodeSameProduct", func(t *testing.T) {
		createTestLicense(t, db, "DUPE-DUPE-DUPE-DUPE", "prod-dupe", 1)
		dupe := models.NewLicense("DUPE-DUPE-DUPE-DUPE", "prod-dupe", models.LicenseCategoryCheat, 1)
		err := db.CreateLicense(ctx, dupe)
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("SameCodeDifferentProduct", func(t *testing.T) {
		createTestLicense(t, db, "SHAR-EDED-CODE-0001", "prod-a", 1)
		other := models.NewLicense("SHAR-EDED-CODE-0001", "prod-b", models.LicenseCategoryAccount, 1)
		err := db.CreateLicense(ctx, other)
		require.NoError(t, err)
	})

	t.Run("RedeemIncrements", func(t *testing.T) {
		license := createTestLicense(t, db, "REDE-EMME-0000-0001", "prod-2", 2)

		got, err := db.RedeemLicense(ctx, license.Code, "prod-2")
		require.NoError(t, err)
		assert.Equal(t, 1, got.CurrentUsages)

		got, err = db.RedeemLicense(ctx, license.Code, "prod-2")
		require.NoError(t, err)
		assert.Equal(t, 2, got.CurrentUsages)

		// Ceiling reached; further redemptions are rejected
		_, err = db.RedeemLicense(ctx, license.Code, "prod-2")
		assert.ErrorIs(t, err, ErrNotFound)

		final, err := db.GetLicenseByID(ctx, license.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, final.CurrentUsages)
	})

	t.Run("RedeemWrongProduct", func(t *testing.T) {
		license := createTestLicense(t, db, "WRON-GPRO-DUCT-0001", "prod-3", 5)

		_, err := db.RedeemLicense(ctx, license.Code, "prod-other")
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := db.GetLicenseByID(ctx, license.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.CurrentUsages)
	})

	t.Run("RedeemConcurrent", func(t *testing.T) {
		license := createTestLicense(t, db, "CONC-URRE-NTLY-0001", "prod-4", 5)

		var wg sync.WaitGroup
		results := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := db.RedeemLicense(ctx, license.Code, "prod-4")
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, ErrNotFound)
			}
		}
		assert.Equal(t, 5, succeeded)

		got, err := db.GetLicenseByID(ctx, license.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.CurrentUsages)
	})

	t.Run("RedeemInactive", func(t *testing.T) {
		license := createTestLicense(t, db, "INAC-TIVE-0000-0001", "prod-5", 5)
		require.NoError(t, db.DeactivateLicense(ctx, license.ID))

		_, err := db.RedeemLicense(ctx, license.Code, "prod-5")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListActiveOnly", func(t *testing.T) {
		active := createTestLicense(t, db, "LIST-ACTI-VE00-0001", "prod-list", 1)
		exhausted := createTestLicense(t, db, "LIST-EXHA-USTED-001", "prod-list", 1)
		_, err := db.RedeemLicense(ctx, exhausted.Code, "prod-list")
		require.NoError(t, err)
		deactivated := createTestLicense(t, db, "LIST-DEAC-TIVE-0001", "prod-list", 1)
		require.NoError(t, db.DeactivateLicense(ctx, deactivated.ID))

		got, err := db.ListLicenses(ctx, LicenseFilter{ProductID: "prod-list", ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, active.ID, got[0].ID)

		all, err := db.ListLicenses(ctx, LicenseFilter{ProductID: "prod-list"})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("Delete", func(t *testing.T) {
		license := createTestLicense(t, db, "DELE-TEME-0000-0001", "prod-del", 1)
		require.NoError(t, db.DeleteLicense(ctx, license.ID))

		_, err := db.GetLicenseByID(ctx, license.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		err = db.DeleteLicense(ctx, license.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Users(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		user := createTestUser(t, db, "SwiftFalcon42")

		got, err := db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "SwiftFalcon42", got.Username)
		assert.Equal(t, models.UserRoleUser, got.Role)
		assert.False(t, got.IsBanned)
		assert.Empty(t, got.Warnings)

		byName, err := db.GetUserByUsername(ctx, "SwiftFalcon42")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		createTestUser(t, db, "TakenName1")
		err := db.CreateUser(ctx, models.NewUser("TakenName1"))
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("BanAndUnban", func(t *testing.T) {
		user := createTestUser(t, db, "BanTarget1")
		expires := time.Now().Add(time.Hour).UTC()
		require.NoError(t, db.SetUserBan(ctx, user.ID, "spamming", time.Now(), &expires))

		got, err := db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.IsBanned)
		require.NotNil(t, got.BanReason)
		assert.Equal(t, "spamming", *got.BanReason)
		require.NotNil(t, got.BanExpiresAt)

		require.NoError(t, db.ClearUserBan(ctx, user.ID))

		got, err = db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, got.IsBanned)
		assert.Nil(t, got.BanReason)
		assert.Nil(t, got.BannedAt)
		assert.Nil(t, got.BanExpiresAt)
	})

	t.Run("ClearExpiredBans", func(t *testing.T) {
		expired := createTestUser(t, db, "ExpiredBan1")
		past := time.Now().Add(-time.Hour)
		require.NoError(t, db.SetUserBan(ctx, expired.ID, "old", time.Now().Add(-2*time.Hour), &past))

		permanent := createTestUser(t, db, "PermanentBan1")
		require.NoError(t, db.SetUserBan(ctx, permanent.ID, "forever", time.Now(), nil))

		cleared, err := db.ClearExpiredBans(ctx, time.Now())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, cleared, int64(1))

		got, err := db.GetUserByID(ctx, expired.ID)
		require.NoError(t, err)
		assert.False(t, got.IsBanned)
		assert.Nil(t, got.BanExpiresAt)

		got, err = db.GetUserByID(ctx, permanent.ID)
		require.NoError(t, err)
		assert.True(t, got.IsBanned)
	})

	t.Run("Warnings", func(t *testing.T) {
		user := createTestUser(t, db, "WarnTarget1")

		require.NoError(t, db.AppendWarning(ctx, user.ID, models.NewWarning("first offense")))
		require.NoError(t, db.AppendWarning(ctx, user.ID, models.NewWarning("second offense")))

		got, err := db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, got.Warnings, 2)
		assert.Equal(t, 2, got.UnreadWarnings())

		require.NoError(t, db.MarkWarningsRead(ctx, user.ID))

		got, err = db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, got.Warnings, 2)
		assert.Equal(t, 0, got.UnreadWarnings())
		assert.Equal(t, "first offense", got.Warnings[0].Reason)

		// Idempotent on an already-read list
		require.NoError(t, db.MarkWarningsRead(ctx, user.ID))
		got, err = db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.UnreadWarnings())
	})

	t.Run("MarkWarningsReadEmpty", func(t *testing.T) {
		user := createTestUser(t, db, "NoWarnings1")
		require.NoError(t, db.MarkWarningsRead(ctx, user.ID))

		got, err := db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Warnings)
	})

	t.Run("UpdateRole", func(t *testing.T) {
		user := createTestUser(t, db, "RoleTarget1")
		require.NoError(t, db.UpdateUserRole(ctx, user.ID, models.UserRoleShopAccess))

		got, err := db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, models.UserRoleShopAccess, got.Role)
	})

	t.Run("Presence", func(t *testing.T) {
		user := createTestUser(t, db, "PresenceTarget1")
		seen := time.Now().UTC()
		require.NoError(t, db.UpdateLastSeen(ctx, user.ID, true, seen))

		got, err := db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.True(t, got.IsOnline)
		require.NotNil(t, got.LastSeen)

		marked, err := db.MarkStaleOffline(ctx, seen.Add(time.Minute))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, marked, int64(1))

		got, err = db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.False(t, got.IsOnline)
	})

	t.Run("Delete", func(t *testing.T) {
		user := createTestUser(t, db, "DeleteTarget1")
		require.NoError(t, db.DeleteUser(ctx, user.ID))

		_, err := db.GetUserByID(ctx, user.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ModerationActions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mod := models.Moderator{ID: uuid.New(), Username: "AdminOne"}

	t.Run("CreateAndList", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			a := models.NewModerationAction(models.ModerationWarnUser,
				uuid.New().String(), "user", fmt.Sprintf("reason %d", i), mod)
			require.NoError(t, db.CreateModerationAction(ctx, a))
		}
		a := models.NewModerationAction(models.ModerationDeleteComment,
			uuid.New().String(), "comment", "off topic", mod)
		require.NoError(t, db.CreateModerationAction(ctx, a))

		all, err := db.ListModerationActions(ctx, ModerationActionFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 4)

		warns, err := db.ListModerationActions(ctx, ModerationActionFilter{Type: "warn_user"})
		require.NoError(t, err)
		assert.Len(t, warns, 3)

		count, err := db.CountModerationActions(ctx, ModerationActionFilter{Type: "delete_comment"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Stats", func(t *testing.T) {
		dayStart := time.Now().UTC().Truncate(24 * time.Hour)
		stats, err := db.GetModerationStats(ctx, dayStart)
		require.NoError(t, err)
		assert.Equal(t, int64(4), stats.TotalActions)
		assert.Equal(t, int64(3), stats.WarnedUsers)
		assert.Equal(t, int64(1), stats.DeletedComments)
		assert.Equal(t, int64(0), stats.BannedUsers)
	})
}

func TestStore_ProductsAndComments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("ProductLifecycle", func(t *testing.T) {
		p := models.NewProduct("Premium Account", "lifetime", "account", 999).WithObjectKey("artifacts/premium.zip")
		require.NoError(t, db.CreateProduct(ctx, p))

		got, err := db.GetProductByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "Premium Account", got.Name)
		assert.Equal(t, "artifacts/premium.zip", got.ObjectKey)
		assert.True(t, got.IsListed)

		unlisted := false
		newPrice := int64(1499)
		require.NoError(t, db.UpdateProduct(ctx, p.ID, models.UpdateProductRequest{
			IsListed:   &unlisted,
			PriceCents: &newPrice,
		}))

		got, err = db.GetProductByID(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, got.IsListed)
		assert.Equal(t, int64(1499), got.PriceCents)
		assert.Equal(t, "Premium Account", got.Name)

		listed, err := db.ListProducts(ctx, ProductFilter{ListedOnly: true})
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("CommentsCascadeOnProductDelete", func(t *testing.T) {
		p := models.NewProduct("Gift Card", "", "gift-card", 2500)
		require.NoError(t, db.CreateProduct(ctx, p))
		author := createTestUser(t, db, "Commenter1")

		c := models.NewComment(p.ID, author.ID, author.Username, "works great")
		require.NoError(t, db.CreateComment(ctx, c))

		comments, err := db.ListCommentsByProduct(ctx, p.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, comments, 1)

		require.NoError(t, db.DeleteProduct(ctx, p.ID))

		_, err = db.GetCommentByID(ctx, c.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_SystemSettings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	settings, err := db.GetSystemSettings(ctx)
	require.NoError(t, err)
	assert.False(t, settings.MaintenanceMode)

	on := true
	msg := "back soon"
	require.NoError(t, db.UpdateSystemSettings(ctx, models.UpdateSettingsRequest{
		MaintenanceMode:    &on,
		MaintenanceMessage: &msg,
	}))

	settings, err = db.GetSystemSettings(ctx)
	require.NoError(t, err)
	assert.True(t, settings.MaintenanceMode)
	assert.Equal(t, "back soon", settings.MaintenanceMessage)
}
