package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/models"
)

type mockModLog struct {
	actions []*models.ModerationAction
	stats   models.ModerationStats
}

func (m *mockModLog) List(_ context.Context, filter db.ModerationActionFilter) ([]*models.ModerationAction, error) {
	var out []*models.ModerationAction
	for _, a := range m.actions {
		if filter.Type != "" && string(a.Type) != filter.Type {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockModLog) Count(ctx context.Context, filter db.ModerationActionFilter) (int64, error) {
	actions, _ := m.List(ctx, filter)
	return int64(len(actions)), nil
}

func (m *mockModLog) Stats(_ context.Context) (*models.ModerationStats, error) {
	s := m.stats
	return &s, nil
}

type mockRecorder struct {
	recorded []*models.ModerationAction
}

func (m *mockRecorder) Record(_ context.Context, t models.ModerationActionType, targetID, targetType, reason string, mod models.Moderator) (*models.ModerationAction, error) {
	a := models.NewModerationAction(t, targetID, targetType, reason, mod)
	m.recorded = append(m.recorded, a)
	return a, nil
}

func TestModerationHandler_ListActions(t *testing.T) {
	mod := models.Moderator{ID: uuid.New(), Username: "mod"}
	log := &mockModLog{actions: []*models.ModerationAction{
		models.NewModerationAction(models.ModerationBanUser, uuid.NewString(), "user", "fraud", mod),
		models.NewModerationAction(models.ModerationDeleteComment, uuid.NewString(), "comment", "spam", mod),
	}}
	h := NewModerationHandler(log, nil, testLogger())

	r := gin.New()
	admin := r.Group("/api/v1/admin", sessionInjector(&auth.SessionUser{ID: mod.ID, Username: "mod", Role: models.UserRoleAdmin}))
	h.RegisterRoutes(admin)

	t.Run("All", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/moderation/actions", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		if got := decodeBody(t, w)["total"]; got != float64(2) {
			t.Errorf("total = %v, want 2", got)
		}
	})

	t.Run("FilterByType", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/moderation/actions?type=ban_user", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if got := decodeBody(t, w)["total"]; got != float64(1) {
			t.Errorf("total = %v, want 1", got)
		}
	})

	t.Run("BadModeratorID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/moderation/actions?moderator_id=nope", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("NonAdminDenied", func(t *testing.T) {
		plain := gin.New()
		group := plain.Group("/api/v1/admin", sessionInjector(&auth.SessionUser{ID: uuid.New(), Role: models.UserRoleUser}))
		h.RegisterRoutes(group)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/moderation/actions", nil)
		w := httptest.NewRecorder()
		plain.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

func TestModerationHandler_Stats(t *testing.T) {
	log := &mockModLog{stats: models.ModerationStats{TotalActions: 7, TodayActions: 2, BannedUsers: 3}}
	h := NewModerationHandler(log, nil, testLogger())

	r := gin.New()
	admin := r.Group("/api/v1/admin", sessionInjector(&auth.SessionUser{ID: uuid.New(), Role: models.UserRoleAdmin}))
	h.RegisterRoutes(admin)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/moderation/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if got := body["total_actions"]; got != float64(7) {
		t.Errorf("total_actions = %v, want 7", got)
	}
	if got := body["today_actions"]; got != float64(2) {
		t.Errorf("today_actions = %v, want 2", got)
	}
}

func TestProductsHandler_DeleteRecordsModeration(t *testing.T) {
	product := models.NewProduct("Contraband", "", "software", 100)
	store := &mockCatalogProducts{products: map[uuid.UUID]*models.Product{product.ID: product}}
	recorder := &mockRecorder{}
	h := NewProductsHandler(store, recorder, nil, testLogger())

	r := gin.New()
	admin := r.Group("/api/v1/admin", sessionInjector(&auth.SessionUser{ID: uuid.New(), Username: "mod", Role: models.UserRoleAdmin}))
	h.RegisterRoutes(admin)

	t.Run("MissingReason", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/products/"+product.ID.String(),
			jsonBody(t, map[string]any{}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if len(recorder.recorded) != 0 {
			t.Error("nothing should be recorded on validation failure")
		}
	})

	t.Run("DeletesAndRecords", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/products/"+product.ID.String(),
			jsonBody(t, map[string]string{"reason": "counterfeit listing"}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		if len(recorder.recorded) != 1 {
			t.Fatalf("recorded = %d, want 1", len(recorder.recorded))
		}
		action := recorder.recorded[0]
		if action.Type != models.ModerationDeleteProduct {
			t.Errorf("type = %q, want delete_product", action.Type)
		}
		if action.TargetID != product.ID.String() {
			t.Errorf("target_id = %q, want product id", action.TargetID)
		}
		if action.Reason != "counterfeit listing" {
			t.Errorf("reason = %q, want counterfeit listing", action.Reason)
		}
	})
}

func TestCommentsHandler_DeleteRecordsModeration(t *testing.T) {
	comment := models.NewComment(uuid.New(), uuid.New(), "joe", "spam spam spam")
	store := &mockCommentStore{comments: map[uuid.UUID]*models.Comment{comment.ID: comment}}
	recorder := &mockRecorder{}
	h := NewCommentsHandler(store, recorder, nil, testLogger())

	r := gin.New()
	admin := r.Group("/api/v1/admin", sessionInjector(&auth.SessionUser{ID: uuid.New(), Username: "mod", Role: models.UserRoleAdmin}))
	h.RegisterRoutes(admin)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/comments/"+comment.ID.String(),
		jsonBody(t, map[string]string{"reason": "spam"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(recorder.recorded) != 1 || recorder.recorded[0].Type != models.ModerationDeleteComment {
		t.Fatalf("recorded = %v, want one delete_comment entry", recorder.recorded)
	}
}

// mockCatalogProducts implements ProductStore for delete tests.
type mockCatalogProducts struct {
	products map[uuid.UUID]*models.Product
}

func (m *mockCatalogProducts) CreateProduct(_ context.Context, p *models.Product) error {
	m.products[p.ID] = p
	return nil
}

func (m *mockCatalogProducts) GetProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return p, nil
}

func (m *mockCatalogProducts) ListProducts(_ context.Context, _ db.ProductFilter) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockCatalogProducts) UpdateProduct(_ context.Context, id uuid.UUID, _ models.UpdateProductRequest) error {
	if _, ok := m.products[id]; !ok {
		return db.ErrNotFound
	}
	return nil
}

func (m *mockCatalogProducts) DeleteProduct(_ context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

type mockCommentStore struct {
	comments map[uuid.UUID]*models.Comment
}

func (m *mockCommentStore) GetCommentByID(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return c, nil
}

func (m *mockCommentStore) DeleteComment(_ context.Context, id uuid.UUID) error {
	if _, ok := m.comments[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.comments, id)
	return nil
}
