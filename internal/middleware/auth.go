package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"edugate/internal/models"
	"edugate/internal/services"
)

// AuthMiddleware — запрос аутентифицирован, только если:
// токен криптографически валиден, токена нет в леджере отозванных,
// и аккаунт в статусе active.
type AuthMiddleware struct {
	auth     services.AuthService
	sessions services.SessionService
	users    services.UserService
}

func NewAuthMiddleware(auth services.AuthService, sessions services.SessionService, users services.UserService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, sessions: sessions, users: users}
}

func (m *AuthMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}

		claims, err := m.auth.ParseAccessToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// отозванный токен не принимаем, даже если его exp ещё впереди
		revoked, err := m.sessions.IsRevoked(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication check failed"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token revoked"})
			return
		}

		user, err := m.users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil || user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account not found"})
			return
		}
		if user.Status != models.StatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Account is not active"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("access_token", tokenStr)
		if claims.ExpiresAt != nil {
			c.Set("access_expires_at", claims.ExpiresAt.Time)
		}

		c.Next()
	}
}
