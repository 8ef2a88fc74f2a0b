package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"edugate/internal/models"
	"edugate/internal/services"
	"edugate/internal/utils"
)

type AuthHandler struct {
	users    services.UserService
	auth     services.AuthService
	sessions services.SessionService
	otp      services.OTPService

	refreshTTL time.Duration
}

func NewAuthHandler(users services.UserService, auth services.AuthService, sessions services.SessionService, otp services.OTPService, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{users: users, auth: auth, sessions: sessions, otp: otp, refreshTTL: refreshTTL}
}

type registerRequest struct {
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
	Channel  string `json:"channel"` // email | sms; предпочтение доставки кода
}

// Register — аккаунт создаётся в pending, код подтверждения уходит
// выбранным каналом. Активация — только через /auth/verify.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
		case errors.Is(err, services.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration data"})
		default:
			log.Printf("[auth][register] failed: err=%v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	identifier := user.Phone
	if identifier == "" || req.Channel == "email" {
		identifier = user.Email
	}
	res, err := h.otp.Issue(c.Request.Context(), services.IssueRequest{
		Identifier: identifier,
		Purpose:    models.PurposeRegister,
		Channel:    models.Channel(req.Channel),
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		// аккаунт уже создан; код можно перезапросить
		log.Printf("[auth][register] otp issue failed: user_id=%d err=%v", user.ID, err)
		c.JSON(http.StatusCreated, gin.H{"user": user, "code_sent": false})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":      user,
		"channel":   res.Channel,
		"code_sent": res.Delivered,
	})
}

// Login — пароль + активный статус; выдаёт access JWT и opaque refresh,
// сессия пишется под отпечаток устройства.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	identifier := strings.TrimSpace(req.Identifier)
	log.Printf("[auth][login] attempt identifier=%q", identifier)

	user, err := h.users.GetByIdentifier(c.Request.Context(), identifier)
	if err != nil || user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !h.auth.CheckPassword(user.PasswordHash, strings.TrimSpace(req.Password)) {
		log.Printf("[auth][login] password mismatch: user_id=%d", user.ID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if user.Status != models.StatusActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is not active, verify it first"})
		return
	}

	accessToken, _, err := h.auth.NewAccessToken(user.ID, user.Role)
	if err != nil {
		log.Printf("[auth][login] sign access failed: user_id=%d err=%v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate access token"})
		return
	}

	refreshToken, err := utils.NewRefreshToken(32)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate refresh token"})
		return
	}

	fingerprint := utils.DeviceFingerprint(c.Request.UserAgent())
	sess, err := h.sessions.CreateOrRefresh(c.Request.Context(), user.ID, fingerprint, refreshToken, h.refreshTTL)
	if err != nil {
		log.Printf("[auth][login] session upsert failed: user_id=%d err=%v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store session"})
		return
	}
	log.Printf("[auth][login] success user_id=%d fingerprint=%s session_id=%d", user.ID, fingerprint, sess.ID)

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    user, // PasswordHash помечен json:"-", наружу не уйдёт
		"tokens": gin.H{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
		},
	})
}

// RefreshToken — ротация: старый refresh отзывается, выдаётся новая пара.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	old := strings.TrimSpace(req.RefreshToken)

	if revoked, err := h.sessions.IsRevoked(c.Request.Context(), old); err != nil || revoked {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	sess, err := h.sessions.GetByToken(c.Request.Context(), old)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), sess.UserID)
	if err != nil || user == nil || user.Status != models.StatusActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	newRefresh, err := utils.NewRefreshToken(32)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rotate refresh token"})
		return
	}
	if _, err := h.sessions.CreateOrRefresh(c.Request.Context(), user.ID, sess.Fingerprint, newRefresh, h.refreshTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rotate refresh token"})
		return
	}
	// старый токен — в леджер на его собственный остаток жизни
	if err := h.sessions.Revoke(c.Request.Context(), old, models.TokenTypeRefresh, user.ID, models.RevokeReasonRefresh, sess.ExpiresAt); err != nil {
		log.Printf("[auth][refresh] revoke old failed: user_id=%d err=%v", user.ID, err)
	}

	accessToken, _, err := h.auth.NewAccessToken(user.ID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate access token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": newRefresh,
	})
}

// Logout — гасим сессию устройства и отзываем оба токена.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := getIntFromCtx(c, "user_id")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	fingerprint := utils.DeviceFingerprint(c.Request.UserAgent())
	ctx := c.Request.Context()

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.RefreshToken != "" {
		if sess, err := h.sessions.GetByToken(ctx, req.RefreshToken); err == nil && sess.UserID == userID {
			if err := h.sessions.Revoke(ctx, sess.Token, models.TokenTypeRefresh, userID, models.RevokeReasonLogout, sess.ExpiresAt); err != nil {
				log.Printf("[auth][logout] revoke refresh failed: user_id=%d err=%v", userID, err)
			}
			fingerprint = sess.Fingerprint
		}
	}

	if err := h.sessions.Drop(ctx, userID, fingerprint); err != nil {
		log.Printf("[auth][logout] drop session failed: user_id=%d err=%v", userID, err)
	}

	access := getStringFromCtx(c, "access_token")
	if access != "" {
		exp := time.Now().Add(15 * time.Minute)
		if v, ok := c.Get("access_expires_at"); ok {
			if t, ok := v.(time.Time); ok {
				exp = t
			}
		}
		if err := h.sessions.Revoke(ctx, access, models.TokenTypeAccess, userID, models.RevokeReasonLogout, exp); err != nil {
			log.Printf("[auth][logout] revoke access failed: user_id=%d err=%v", userID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
