package routes

import (
	"github.com/gin-gonic/gin"

	"edugate/internal/handlers"
	"edugate/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	otpHandler *handlers.OTPHandler,
	authMW *middleware.AuthMiddleware,
	telegramHandler *handlers.TelegramHandler, // nil, если бот в режиме long-poll
) *gin.Engine {

	// ---- public
	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.POST("/verify", otpHandler.VerifyCode)
	}

	otp := r.Group("/otp")
	{
		otp.POST("/send", otpHandler.SendCode)
		otp.POST("/resend", otpHandler.SendCode)
	}

	password := r.Group("/password")
	{
		password.POST("/reset/request", otpHandler.RequestPasswordReset)
		password.POST("/reset/confirm", otpHandler.ConfirmPasswordReset)
	}

	if telegramHandler != nil {
		r.POST("/integrations/telegram/webhook", telegramHandler.Webhook)
	}

	// ---- protected
	protected := r.Group("/")
	protected.Use(authMW.Handler())
	{
		protected.POST("/auth/logout", authHandler.Logout)
	}

	return r
}
