package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"edugate/internal/models"
	"edugate/internal/services"
)

type stubSessions struct {
	revoked map[string]bool
}

func (s *stubSessions) CreateOrRefresh(context.Context, int, string, string, time.Duration) (*models.Session, error) {
	return nil, nil
}
func (s *stubSessions) GetByToken(context.Context, string) (*models.Session, error) { return nil, nil }
func (s *stubSessions) Drop(context.Context, int, string) error                     { return nil }
func (s *stubSessions) Revoke(_ context.Context, token, _ string, _ int, _ string, _ time.Time) error {
	s.revoked[token] = true
	return nil
}
func (s *stubSessions) IsRevoked(_ context.Context, token string) (bool, error) {
	return s.revoked[token], nil
}

type stubUsers struct {
	byID map[int]*models.User
}

func (s *stubUsers) Register(context.Context, services.RegisterInput) (*models.User, error) {
	return nil, nil
}
func (s *stubUsers) GetByID(_ context.Context, id int) (*models.User, error) { return s.byID[id], nil }
func (s *stubUsers) GetByIdentifier(context.Context, string) (*models.User, error) {
	return nil, nil
}
func (s *stubUsers) Activate(context.Context, int) error               { return nil }
func (s *stubUsers) UpdatePassword(context.Context, int, string) error { return nil }

func newAuthTestRouter(t *testing.T) (*gin.Engine, services.AuthService, *stubSessions, *stubUsers) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := services.NewAuthService("test-secret", 15*time.Minute)
	sessions := &stubSessions{revoked: make(map[string]bool)}
	users := &stubUsers{byID: make(map[int]*models.User)}

	r := gin.New()
	r.GET("/protected", NewAuthMiddleware(auth, sessions, users).Handler(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("user_id")})
	})
	return r, auth, sessions, users
}

func doProtected(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	r, auth, _, users := newAuthTestRouter(t)
	users.byID[7] = &models.User{ID: 7, Status: models.StatusActive}

	token, _, err := auth.NewAccessToken(7, models.RoleStudent)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if w := doProtected(r, "Bearer "+token); w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	r, _, _, _ := newAuthTestRouter(t)
	if w := doProtected(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
	if w := doProtected(r, "Basic abc"); w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
	if w := doProtected(r, "Bearer garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
}

func TestAuthMiddlewareRejectsRevokedToken(t *testing.T) {
	r, auth, sessions, users := newAuthTestRouter(t)
	users.byID[7] = &models.User{ID: 7, Status: models.StatusActive}

	token, expiresAt, err := auth.NewAccessToken(7, models.RoleStudent)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	// logout: токен в леджере, хотя его exp ещё впереди
	_ = sessions.Revoke(context.Background(), token, models.TokenTypeAccess, 7, models.RevokeReasonLogout, expiresAt)

	if w := doProtected(r, "Bearer "+token); w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401", w.Code)
	}
}

func TestAuthMiddlewareRejectsInactiveAccount(t *testing.T) {
	r, auth, _, users := newAuthTestRouter(t)
	users.byID[7] = &models.User{ID: 7, Status: models.StatusBlocked}

	token, _, err := auth.NewAccessToken(7, models.RoleStudent)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if w := doProtected(r, "Bearer "+token); w.Code != http.StatusForbidden {
		t.Fatalf("code = %d, want 403", w.Code)
	}

	delete(users.byID, 7)
	if w := doProtected(r, "Bearer "+token); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing account code = %d, want 401", w.Code)
	}
}
