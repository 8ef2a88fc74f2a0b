package services

import (
	"context"
	"fmt"
	"log"

	"edugate/internal/models"
)

// SMSSender — транспорт SMS (Eskiz-клиент или заглушка в тестах).
type SMSSender interface {
	SendSMS(to, text string) error
}

// ChatDeliverer — доставка кода в привязанный telegram-чат.
// Возвращает ErrDeliveryDeferred, если чат ещё не привязан.
type ChatDeliverer interface {
	DeliverPasscode(ctx context.Context, rec *models.Passcode, code string) error
}

// DeliveryRouter — выбирает канал и отдаёт код одному из адаптеров.
type DeliveryRouter struct {
	email EmailService
	sms   SMSSender
	chat  ChatDeliverer
}

func NewDeliveryRouter(email EmailService, sms SMSSender, chat ChatDeliverer) *DeliveryRouter {
	return &DeliveryRouter{email: email, sms: sms, chat: chat}
}

// Route — бизнес-правило: преподавателям SMS не шлём, их коды
// ходят только через выделенного бота.
func (r *DeliveryRouter) Route(user *models.User, preferred models.Channel) models.Channel {
	if user != nil && user.Role == models.RoleTeacher && preferred == models.ChannelSMS {
		return models.ChannelTelegram
	}
	return preferred
}

func (r *DeliveryRouter) Deliver(ctx context.Context, rec *models.Passcode, code string) error {
	switch rec.Channel {
	case models.ChannelEmail:
		if r.email == nil {
			return fmt.Errorf("email adapter not configured")
		}
		return r.email.SendPasscodeEmail(rec.Identifier, code, rec.Purpose)
	case models.ChannelSMS:
		if r.sms == nil {
			return fmt.Errorf("sms adapter not configured")
		}
		return r.sms.SendSMS(rec.Identifier, fmt.Sprintf("EduGate: код подтверждения %s", code))
	case models.ChannelTelegram:
		if r.chat == nil {
			log.Printf("[delivery] telegram adapter not configured, deferring: identifier=%s", rec.Identifier)
			return ErrDeliveryDeferred
		}
		return r.chat.DeliverPasscode(ctx, rec, code)
	default:
		return ErrInvalidInput
	}
}
