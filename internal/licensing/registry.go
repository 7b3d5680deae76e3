package licensing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/models"
)

// MaxUsageCeiling is the highest allowed usage ceiling. Storefront
// convention treats 999 as "effectively unlimited".
const MaxUsageCeiling = 999

var (
	// ErrInvalidArgument is returned when a request fails validation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidLicense is returned uniformly when a code cannot be
	// redeemed, whether it is unknown, inactive, exhausted, or scoped to a
	// different product. Callers must not distinguish the cases; doing so
	// would let an attacker probe the code space.
	ErrInvalidLicense = errors.New("invalid license")
	// ErrLicenseNotFound is returned by admin operations on a missing license.
	ErrLicenseNotFound = errors.New("license not found")
)

// Store defines the persistence operations the registry needs.
type Store interface {
	CreateLicense(ctx context.Context, l *models.License) error
	GetLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	ListLicenses(ctx context.Context, filter db.LicenseFilter) ([]*models.License, error)
	CountLicenses(ctx context.Context, filter db.LicenseFilter) (int64, error)
	RedeemLicense(ctx context.Context, code, productID string) (*models.License, error)
	DeactivateLicense(ctx context.Context, id uuid.UUID) error
	DeleteLicense(ctx context.Context, id uuid.UUID) error
}

// Registry issues and validates license codes.
type Registry struct {
	store  Store
	logger zerolog.Logger
}

// NewRegistry creates a license registry.
func NewRegistry(store Store, logger zerolog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger.With().Str("component", "licensing").Logger(),
	}
}

// Issue creates a new license with a freshly generated code. Generation
// retries on the unlikely event of a code collision within the product.
func (r *Registry) Issue(ctx context.Context, req models.IssueLicenseRequest) (*models.License, error) {
	if req.ProductID == "" {
		return nil, fmt.Errorf("%w: product_id is required", ErrInvalidArgument)
	}
	if !req.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, req.Category)
	}
	if req.MaxUsages < 1 || req.MaxUsages > MaxUsageCeiling {
		return nil, fmt.Errorf("%w: max_usages must be between 1 and %d", ErrInvalidArgument, MaxUsageCeiling)
	}

	for attempt := 0; attempt < 5; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		license := models.NewLicense(code, req.ProductID, req.Category, req.MaxUsages)
		err = r.store.CreateLicense(ctx, license)
		if err == nil {
			r.logger.Info().
				Str("license_id", license.ID.String()).
				Str("product_id", license.ProductID).
				Int("max_usages", license.MaxUsages).
				Msg("license issued")
			return license, nil
		}
		if errors.Is(err, db.ErrDuplicate) {
			continue
		}
		return nil, err
	}
	return nil, errors.New("issue license: exhausted code generation attempts")
}

// Validate redeems one usage of the code against the product. A successful
// validation always consumes a usage; there is no read-only check. All
// failure modes collapse into ErrInvalidLicense.
func (r *Registry) Validate(ctx context.Context, req models.ValidateLicenseRequest) (*models.License, error) {
	if req.Code == "" || req.ProductID == "" {
		return nil, fmt.Errorf("%w: code and product_id are required", ErrInvalidArgument)
	}

	license, err := r.store.RedeemLicense(ctx, NormalizeCode(req.Code), req.ProductID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrInvalidLicense
		}
		return nil, err
	}

	r.logger.Info().
		Str("license_id", license.ID.String()).
		Str("product_id", license.ProductID).
		Int("current_usages", license.CurrentUsages).
		Int("max_usages", license.MaxUsages).
		Msg("license redeemed")
	return license, nil
}

// Get returns a license by ID.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.License, error) {
	license, err := r.store.GetLicenseByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, err
	}
	return license, nil
}

// List returns licenses matching the filter.
func (r *Registry) List(ctx context.Context, filter db.LicenseFilter) ([]*models.License, error) {
	return r.store.ListLicenses(ctx, filter)
}

// ListActive returns only consumable licenses for the filter.
func (r *Registry) ListActive(ctx context.Context, filter db.LicenseFilter) ([]*models.License, error) {
	filter.ActiveOnly = true
	return r.store.ListLicenses(ctx, filter)
}

// Count returns the number of licenses matching the filter.
func (r *Registry) Count(ctx context.Context, filter db.LicenseFilter) (int64, error) {
	return r.store.CountLicenses(ctx, filter)
}

// Deactivate retires a license. Usage counters are preserved.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeactivateLicense(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrLicenseNotFound
		}
		return err
	}
	r.logger.Info().Str("license_id", id.String()).Msg("license deactivated")
	return nil
}

// Delete permanently removes a license.
func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.store.DeleteLicense(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrLicenseNotFound
		}
		return err
	}
	r.logger.Info().Str("license_id", id.String()).Msg("license deleted")
	return nil
}
