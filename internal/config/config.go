package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type OTPConfig struct {
	CodeLength      int  `yaml:"code_length"`       // по умолчанию 6
	TTLSeconds      int  `yaml:"ttl_seconds"`       // по умолчанию 1800
	MaxAttempts     int  `yaml:"max_attempts"`      // по умолчанию 5
	HashCodes       bool `yaml:"hash_codes"`        // хранить bcrypt-хэш вместо кода
	BcryptCost      int  `yaml:"bcrypt_cost"`       // 0 = bcrypt.DefaultCost
	ResendCooldownS int  `yaml:"resend_cooldown_s"` // пауза между выдачами, по умолчанию 60
}

func (c OTPConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }
func (c OTPConfig) ResendCooldown() time.Duration {
	return time.Duration(c.ResendCooldownS) * time.Second
}

type TelegramConfig struct {
	BotToken     string `yaml:"bot_token"`
	BotType      string `yaml:"bot_type"` // метка бота в метаданных доставки
	Mode         string `yaml:"mode"`     // longpoll | webhook
	WebhookURL   string `yaml:"webhook_url"`
	ResendDelayS int    `yaml:"resend_delay_s"` // пауза до повторной отправки кода в чат
}

func (c TelegramConfig) ResendDelay() time.Duration {
	return time.Duration(c.ResendDelayS) * time.Second
}

type SessionConfig struct {
	MaxPerUser      int    `yaml:"max_per_user"`      // по умолчанию 2
	AccessTTLMin    int    `yaml:"access_ttl_min"`    // по умолчанию 15
	RefreshTTLHours int    `yaml:"refresh_ttl_hours"` // по умолчанию 720
	JWTSecret       string `yaml:"jwt_secret"`
}

func (c SessionConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}
func (c SessionConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLHours) * time.Hour
}

type EskizConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	SenderID string `yaml:"sender_id"`
	DryRun   bool   `yaml:"dry_run"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
	} `yaml:"email"`
	Eskiz    EskizConfig    `yaml:"eskiz"`
	Telegram TelegramConfig `yaml:"telegram"`
	OTP      OTPConfig      `yaml:"otp"`
	Sessions SessionConfig  `yaml:"sessions"`
}

func LoadConfig() *Config {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		panic("Failed to open config.yaml: " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse config.yaml: " + err.Error())
	}

	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.OTP.CodeLength <= 0 {
		cfg.OTP.CodeLength = 6
	}
	if cfg.OTP.TTLSeconds <= 0 {
		cfg.OTP.TTLSeconds = 1800
	}
	if cfg.OTP.MaxAttempts <= 0 {
		cfg.OTP.MaxAttempts = 5
	}
	if cfg.OTP.ResendCooldownS <= 0 {
		cfg.OTP.ResendCooldownS = 60
	}
	if cfg.Telegram.Mode == "" {
		cfg.Telegram.Mode = "longpoll"
	}
	if cfg.Telegram.ResendDelayS <= 0 {
		cfg.Telegram.ResendDelayS = 60
	}
	if cfg.Telegram.BotType == "" {
		cfg.Telegram.BotType = "teacher_bot"
	}
	if cfg.Sessions.MaxPerUser <= 0 {
		cfg.Sessions.MaxPerUser = 2
	}
	if cfg.Sessions.AccessTTLMin <= 0 {
		cfg.Sessions.AccessTTLMin = 15
	}
	if cfg.Sessions.RefreshTTLHours <= 0 {
		cfg.Sessions.RefreshTTLHours = 30 * 24
	}
}
