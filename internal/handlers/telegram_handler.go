package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"edugate/internal/services"
)

// TelegramHandler — приём вебхука бота. Используется только в режиме
// webhook; при long-poll роут не регистрируется.
type TelegramHandler struct {
	source *services.WebhookSource
}

func NewTelegramHandler(source *services.WebhookSource) *TelegramHandler {
	return &TelegramHandler{source: source}
}

func (h *TelegramHandler) Webhook(c *gin.Context) {
	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		log.Printf("[tg][webhook] bad payload: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}
	h.source.Feed(update)
	// telegram повторит доставку, если не ответить 200
	c.Status(http.StatusOK)
}
