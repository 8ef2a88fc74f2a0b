package models

import "time"

// Purpose — закрытый набор сценариев, под которые выдаётся код.
type Purpose string

const (
	PurposeRegister      Purpose = "register"
	PurposeLogin         Purpose = "login"
	PurposeResetPassword Purpose = "reset_password"
	PurposeVerifyEmail   Purpose = "verify_email"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeRegister, PurposeLogin, PurposeResetPassword, PurposeVerifyEmail:
		return true
	}
	return false
}

// Channel — канал доставки кода.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelTelegram:
		return true
	}
	return false
}

// Passcode — отдельная запись на каждую выдачу кода.
// Храним только хэш кода (CodeHash), TTL и счётчик попыток.
// Активной может быть максимум одна запись на (identifier, purpose).
type Passcode struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"` // нормализованный email или телефон
	Purpose    Purpose   `json:"purpose"`
	CodeHash   string    `json:"-"`
	Channel    Channel   `json:"channel"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	ChatID     int64     `json:"chat_id,omitempty"`  // telegram chat, если доставляли ботом
	BotType    string    `json:"bot_type,omitempty"` // какой бот доставлял
	CodeSent   bool      `json:"code_sent"`
	SentAt     time.Time `json:"sent_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Verified   bool      `json:"verified"`
	Attempts   int       `json:"attempts"`
}

func (p *Passcode) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
