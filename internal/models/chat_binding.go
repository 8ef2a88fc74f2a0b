package models

import "time"

// ChatBinding — связка телефон → telegram chat_id.
// Живёт дольше одного цикла кода: однажды привязанный чат
// переиспользуется для всех последующих доставок.
type ChatBinding struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"` // нормализованный, с ведущим +
	ChatID    int64     `json:"chat_id"`
	BotType   string    `json:"bot_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
