package services

import (
	"context"
	"errors"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// LongPollSource — вытягивает апдейты через getUpdates.
type LongPollSource struct {
	bot     botAPI
	timeout int // секунды long-poll

	// паузы между повторами при ошибках транспорта
	retryDelay    time.Duration
	conflictDelay time.Duration
}

func NewLongPollSource(bot botAPI) *LongPollSource {
	return &LongPollSource{
		bot:           bot,
		timeout:       30,
		retryDelay:    3 * time.Second,
		conflictDelay: 30 * time.Second,
	}
}

func (s *LongPollSource) Run(ctx context.Context, handle func(tgbotapi.Update)) error {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cfg := tgbotapi.NewUpdate(offset)
		cfg.Timeout = s.timeout

		updates, err := s.bot.GetUpdates(cfg)
		if err != nil {
			var tgErr *tgbotapi.Error
			if errors.As(err, &tgErr) {
				switch tgErr.Code {
				case 401, 404:
					// плохой токен — крутиться дальше бессмысленно
					log.Printf("[tg][poll] fatal: code=%d msg=%s", tgErr.Code, tgErr.Message)
					return err
				case 409:
					// второй poller на том же токене: ретраим, но с длинной паузой
					log.Printf("[tg][poll] conflict (another poller?), backing off %s", s.conflictDelay)
					if !sleepCtx(ctx, s.conflictDelay) {
						return ctx.Err()
					}
					continue
				}
			}
			log.Printf("[tg][poll] transient error: %v, retry in %s", err, s.retryDelay)
			if !sleepCtx(ctx, s.retryDelay) {
				return ctx.Err()
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			handle(u)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// WebhookSource — апдейты приходят push-ем в HTTP-хендлер и
// складываются в канал через Feed.
type WebhookSource struct {
	ch chan tgbotapi.Update
}

func NewWebhookSource() *WebhookSource {
	return &WebhookSource{ch: make(chan tgbotapi.Update, 64)}
}

// Feed — вызывается из HTTP-хендлера вебхука.
func (s *WebhookSource) Feed(u tgbotapi.Update) {
	select {
	case s.ch <- u:
	default:
		log.Printf("[tg][webhook] queue full, update dropped: update_id=%d", u.UpdateID)
	}
}

func (s *WebhookSource) Run(ctx context.Context, handle func(tgbotapi.Update)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-s.ch:
			handle(u)
		}
	}
}
