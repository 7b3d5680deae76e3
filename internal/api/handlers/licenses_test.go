package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/licensing"
	"github.com/keygate-dev/keygate/internal/models"
)

type mockRegistry struct {
	licenses map[uuid.UUID]*models.License
	issueErr error
}

func (m *mockRegistry) Issue(_ context.Context, req models.IssueLicenseRequest) (*models.License, error) {
	if m.issueErr != nil {
		return nil, m.issueErr
	}
	l := models.NewLicense("AAAA-BBBB-CCCC-DDDD", req.ProductID, req.Category, req.MaxUsages)
	m.licenses[l.ID] = l
	return l, nil
}

func (m *mockRegistry) Get(_ context.Context, id uuid.UUID) (*models.License, error) {
	l, ok := m.licenses[id]
	if !ok {
		return nil, licensing.ErrLicenseNotFound
	}
	return l, nil
}

func (m *mockRegistry) List(_ context.Context, _ db.LicenseFilter) ([]*models.License, error) {
	var out []*models.License
	for _, l := range m.licenses {
		out = append(out, l)
	}
	return out, nil
}

func (m *mockRegistry) Count(_ context.Context, _ db.LicenseFilter) (int64, error) {
	return int64(len(m.licenses)), nil
}

func (m *mockRegistry) Deactivate(_ context.Context, id uuid.UUID) error {
	l, ok := m.licenses[id]
	if !ok {
		return licensing.ErrLicenseNotFound
	}
	l.IsActive = false
	return nil
}

func (m *mockRegistry) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.licenses[id]; !ok {
		return licensing.ErrLicenseNotFound
	}
	delete(m.licenses, id)
	return nil
}

func licensesTestRouter(t *testing.T, registry *mockRegistry, role models.UserRole) *gin.Engine {
	t.Helper()
	sessionUser := &auth.SessionUser{ID: uuid.New(), Username: "mod", Role: role}
	h := NewLicensesHandler(registry, testLogger())

	r := gin.New()
	admin := r.Group("/api/v1/admin", sessionInjector(sessionUser))
	h.RegisterRoutes(admin)
	return r
}

func TestLicensesHandler_Issue(t *testing.T) {
	t.Run("IssuesLicense", func(t *testing.T) {
		registry := &mockRegistry{licenses: map[uuid.UUID]*models.License{}}
		r := licensesTestRouter(t, registry, models.UserRoleAdmin)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/licenses",
			jsonBody(t, models.IssueLicenseRequest{
				ProductID: uuid.NewString(),
				Category:  models.LicenseCategoryGiftCard,
				MaxUsages: 5,
			}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
		}
		if got := decodeBody(t, w)["max_usages"]; got != float64(5) {
			t.Errorf("max_usages = %v, want 5", got)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		registry := &mockRegistry{
			licenses: map[uuid.UUID]*models.License{},
			issueErr: fmt.Errorf("%w: max_usages must be between 1 and 999", licensing.ErrInvalidArgument),
		}
		r := licensesTestRouter(t, registry, models.UserRoleAdmin)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/licenses",
			jsonBody(t, models.IssueLicenseRequest{
				ProductID: uuid.NewString(),
				Category:  models.LicenseCategoryGiftCard,
				MaxUsages: 5000,
			}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("ShopAccessCanIssue", func(t *testing.T) {
		registry := &mockRegistry{licenses: map[uuid.UUID]*models.License{}}
		r := licensesTestRouter(t, registry, models.UserRoleShopAccess)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/licenses",
			jsonBody(t, models.IssueLicenseRequest{
				ProductID: uuid.NewString(),
				Category:  models.LicenseCategoryAccount,
				MaxUsages: 1,
			}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
		}
	})

	t.Run("PlainUserDenied", func(t *testing.T) {
		registry := &mockRegistry{licenses: map[uuid.UUID]*models.License{}}
		r := licensesTestRouter(t, registry, models.UserRoleUser)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/licenses",
			jsonBody(t, models.IssueLicenseRequest{
				ProductID: uuid.NewString(),
				Category:  models.LicenseCategoryAccount,
				MaxUsages: 1,
			}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

func TestLicensesHandler_Lifecycle(t *testing.T) {
	registry := &mockRegistry{licenses: map[uuid.UUID]*models.License{}}
	license := models.NewLicense("AAAA-BBBB-CCCC-DDDD", uuid.NewString(), models.LicenseCategoryCheat, 3)
	registry.licenses[license.ID] = license

	r := licensesTestRouter(t, registry, models.UserRoleAdmin)

	t.Run("Get", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/licenses/"+license.ID.String(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("List", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/licenses", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if got := decodeBody(t, w)["total"]; got != float64(1) {
			t.Errorf("total = %v, want 1", got)
		}
	})

	t.Run("Deactivate", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/licenses/"+license.ID.String()+"/deactivate", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if license.IsActive {
			t.Error("license should be inactive after deactivation")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/licenses/"+license.ID.String(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("GetAfterDelete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/licenses/"+license.ID.String(), nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("InvalidID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/licenses/not-a-uuid", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}
