package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"edugate/internal/models"
	"edugate/internal/services"
)

type OTPHandler struct {
	otp    services.OTPService
	resets services.PasswordResetService
}

func NewOTPHandler(otp services.OTPService, resets services.PasswordResetService) *OTPHandler {
	return &OTPHandler{otp: otp, resets: resets}
}

type sendCodeRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Purpose    string `json:"purpose" binding:"required"`
	Channel    string `json:"channel"` // email | sms; пусто = по виду идентификатора
}

// SendCode — выдача (и перевыдача) кода: новый код вытесняет старый.
func (h *OTPHandler) SendCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.otp.Issue(c.Request.Context(), services.IssueRequest{
		Identifier: req.Identifier,
		Purpose:    models.Purpose(req.Purpose),
		Channel:    models.Channel(req.Channel),
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrResendThrottled):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try later"})
		case errors.Is(err, services.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier, purpose or channel"})
		case errors.Is(err, services.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send code"})
		}
		return
	}

	// code_sent=false — не ошибка: код действует и будет доставлен,
	// когда канал станет доступен (например, после привязки бота)
	c.JSON(http.StatusOK, gin.H{
		"message":   "Code issued",
		"channel":   res.Channel,
		"code_sent": res.Delivered,
	})
}

type verifyCodeRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Purpose    string `json:"purpose" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

func (h *OTPHandler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.otp.Verify(c.Request.Context(), req.Identifier, models.Purpose(req.Purpose), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active code, request a new one"})
		case errors.Is(err, services.ErrCodeExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "code expired, please resend"})
		case errors.Is(err, services.ErrTooManyAttempts):
			c.JSON(http.StatusBadRequest, gin.H{"error": "too many attempts, please resend"})
		case errors.Is(err, services.ErrCodeInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		case errors.Is(err, services.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		}
		return
	}

	resp := gin.H{"message": "Verified"}
	if user != nil {
		resp["user"] = user
	}
	c.JSON(http.StatusOK, resp)
}

type resetRequestRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

func (h *OTPHandler) RequestPasswordReset(c *gin.Context) {
	var req resetRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.resets.RequestReset(c.Request.Context(), req.Identifier, c.ClientIP(), c.Request.UserAgent()); err != nil {
		if errors.Is(err, services.ErrResendThrottled) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, try later"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to request reset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If the account exists, a code has been sent"})
}

type resetConfirmRequest struct {
	Identifier  string `json:"identifier" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *OTPHandler) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.resets.ConfirmReset(c.Request.Context(), req.Identifier, req.Code, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, services.ErrCodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "no active code, request a new one"})
		case errors.Is(err, services.ErrCodeExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "code expired, please resend"})
		case errors.Is(err, services.ErrTooManyAttempts):
			c.JSON(http.StatusBadRequest, gin.H{"error": "too many attempts, please resend"})
		case errors.Is(err, services.ErrCodeInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
		case errors.Is(err, services.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
