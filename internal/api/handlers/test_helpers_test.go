package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/api/middleware"
	"github.com/keygate-dev/keygate/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testSessions(t *testing.T) *auth.SessionStore {
	t.Helper()
	secret := []byte("0123456789abcdef0123456789abcdef")
	store, err := auth.NewSessionStore(auth.DefaultSessionConfig(secret, false), testLogger())
	if err != nil {
		t.Fatalf("NewSessionStore() error = %v", err)
	}
	return store
}

// sessionInjector fakes AuthMiddleware by placing a session user directly in
// the request context.
func sessionInjector(user *auth.SessionUser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(string(middleware.UserContextKey), user)
		}
		c.Next()
	}
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return out
}
