package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"

	"edugate/internal/config"
	"edugate/internal/handlers"
	"edugate/internal/middleware"
	"edugate/internal/repositories"
	"edugate/internal/routes"
	"edugate/internal/services"
	"edugate/internal/utils"
)

func Run() {
	cfg := config.LoadConfig()

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Ошибка подключения к БД: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка закрытия БД: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	passcodeRepo := repositories.NewPasscodeRepository(db)
	bindingRepo := repositories.NewChatBindingRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	revokedRepo := repositories.NewRevokedTokenRepository(db)

	// === Services ===
	authService := services.NewAuthService(cfg.Sessions.JWTSecret, cfg.Sessions.AccessTTL())
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)
	userService := services.NewUserService(userRepo, emailService, authService)
	sessionService := services.NewSessionService(sessionRepo, revokedRepo, cfg.Sessions.MaxPerUser)

	// SMS провайдер (Eskiz) из конфига
	smsClient := utils.NewClientWithOptions(
		cfg.Eskiz.Email,
		cfg.Eskiz.Password,
		cfg.Eskiz.SenderID,
		cfg.Eskiz.DryRun,
	)

	// Telegram-бот: без токена работаем без телеграм-канала,
	// доставка в него будет откладываться
	var botManager *services.BotManager
	var webhookSource *services.WebhookSource
	if cfg.Telegram.BotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			log.Fatal("Ошибка инициализации бота: ", err)
		}
		botManager = services.NewBotManager(bot, cfg.Telegram.BotType, passcodeRepo, bindingRepo, cfg.Telegram.ResendDelay())

		var source services.UpdateSource
		switch cfg.Telegram.Mode {
		case "webhook":
			wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
			if err != nil {
				log.Fatal("Ошибка конфигурации вебхука: ", err)
			}
			if _, err := bot.Request(wh); err != nil {
				log.Fatal("Ошибка установки вебхука: ", err)
			}
			webhookSource = services.NewWebhookSource()
			source = webhookSource
		default:
			// long-poll; webhook перед этим надо снять, иначе getUpdates вернёт 409
			if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
				log.Printf("Не удалось снять вебхук: %v", err)
			}
			source = services.NewLongPollSource(bot)
		}

		go func() {
			if err := botManager.Run(ctx, source); err != nil && ctx.Err() == nil {
				log.Printf("[tg] bot loop stopped: %v", err)
			}
		}()
	}

	var chatDeliverer services.ChatDeliverer
	if botManager != nil {
		chatDeliverer = botManager
	}
	deliveryRouter := services.NewDeliveryRouter(emailService, smsClient, chatDeliverer)
	otpService := services.NewOTPService(passcodeRepo, userRepo, deliveryRouter, cfg.OTP)
	resetService := services.NewPasswordResetService(otpService, userService, emailService)

	// фоновая чистка протухших записей
	sweeper := services.NewSweeper(passcodeRepo, sessionRepo, revokedRepo, 10*time.Minute)
	go sweeper.Run(ctx)

	// === Handlers ===
	authHandler := handlers.NewAuthHandler(userService, authService, sessionService, otpService, cfg.Sessions.RefreshTTL())
	otpHandler := handlers.NewOTPHandler(otpService, resetService)
	authMW := middleware.NewAuthMiddleware(authService, sessionService, userService)

	var telegramHandler *handlers.TelegramHandler
	if webhookSource != nil {
		telegramHandler = handlers.NewTelegramHandler(webhookSource)
	}

	// === Gin ===
	router := gin.Default()
	router.Use(corsMiddleware())

	routes.SetupRoutes(router, authHandler, otpHandler, authMW, telegramHandler)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Сервер запущен на %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("Ошибка запуска сервера: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
