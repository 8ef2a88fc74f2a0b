package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"edugate/internal/config"
	"edugate/internal/models"
	"edugate/internal/repositories"
	"edugate/internal/utils"
)

type IssueRequest struct {
	Identifier string
	Purpose    models.Purpose
	Channel    models.Channel // предпочтительный канал; роутер может заменить
	IP         string
	UserAgent  string
}

type IssueResult struct {
	RecordID  int64
	Channel   models.Channel // фактический канал после маршрутизации
	Delivered bool           // false = доставка отложена, код при этом действует
}

type OTPService interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
	// Verify — возвращает владельца кода; при purpose=register
	// дополнительно активирует аккаунт.
	//
	// Код, вытесненный повторной выдачей, даёт ErrCodeInvalid, а не
	// ErrCodeNotFound: запись ищется по (identifier, purpose), и старый
	// код просто не сходится с хэшем новой записи, сжигая попытку.
	// ErrCodeNotFound остаётся за случаем "записи нет вообще" —
	// например, после успешной проверки.
	Verify(ctx context.Context, identifier string, purpose models.Purpose, code string) (*models.User, error)
}

type otpService struct {
	passcodes repositories.PasscodeRepository
	users     repositories.UserRepository
	router    *DeliveryRouter
	hasher    codeHasher
	cfg       config.OTPConfig

	// сериализация read-modify-write по (identifier, purpose)
	locks keyedLocks
	now   func() time.Time
}

func NewOTPService(
	passcodes repositories.PasscodeRepository,
	users repositories.UserRepository,
	router *DeliveryRouter,
	cfg config.OTPConfig,
) OTPService {
	return &otpService{
		passcodes: passcodes,
		users:     users,
		router:    router,
		hasher:    newCodeHasher(cfg.HashCodes, cfg.BcryptCost),
		cfg:       cfg,
		now:       time.Now,
	}
}

func lockKey(identifier string, purpose models.Purpose) string {
	return identifier + "|" + string(purpose)
}

func (s *otpService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	identifier := utils.NormalizeIdentifier(req.Identifier)
	if identifier == "" || !req.Purpose.Valid() {
		return nil, ErrInvalidInput
	}
	if req.Channel == "" {
		if utils.IsEmail(identifier) {
			req.Channel = models.ChannelEmail
		} else {
			req.Channel = models.ChannelSMS
		}
	}
	if !req.Channel.Valid() {
		return nil, ErrInvalidInput
	}

	unlock := s.locks.Lock(lockKey(identifier, req.Purpose))
	defer unlock()

	now := s.now()

	// back-off: пока жив недавно отправленный код, новый не выдаём
	if active, err := s.passcodes.FindActive(ctx, identifier, req.Purpose); err != nil {
		return nil, err
	} else if active != nil && now.Sub(active.SentAt) < s.cfg.ResendCooldown() {
		return nil, ErrResendThrottled
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	code, err := utils.NumericCode(s.cfg.CodeLength)
	if err != nil {
		return nil, err
	}
	codeHash, err := s.hasher.Hash(code)
	if err != nil {
		return nil, err
	}

	rec := &models.Passcode{
		Identifier: identifier,
		Purpose:    req.Purpose,
		CodeHash:   codeHash,
		Channel:    s.router.Route(user, req.Channel),
		IP:         req.IP,
		UserAgent:  req.UserAgent,
		SentAt:     now,
		ExpiresAt:  now.Add(s.cfg.TTL()),
	}
	id, err := s.passcodes.Issue(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.ID = id

	res := &IssueResult{RecordID: id, Channel: rec.Channel}

	// доставка намеренно не роняет выдачу: запись уже существует
	// и может быть доставлена позже (например, после привязки чата)
	if err := s.router.Deliver(ctx, rec, code); err != nil {
		if errors.Is(err, ErrDeliveryDeferred) {
			log.Printf("[otp][issue] delivery deferred: identifier=%s purpose=%s channel=%s", identifier, req.Purpose, rec.Channel)
		} else {
			log.Printf("[otp][issue] delivery failed: identifier=%s purpose=%s channel=%s err=%v", identifier, req.Purpose, rec.Channel, err)
		}
		return res, nil
	}

	if err := s.passcodes.MarkCodeSent(ctx, id); err != nil {
		log.Printf("[otp][issue] mark sent failed: id=%d err=%v", id, err)
	}
	res.Delivered = true
	log.Printf("[otp][issue] ok: identifier=%s purpose=%s channel=%s id=%d", identifier, req.Purpose, rec.Channel, id)
	return res, nil
}

func (s *otpService) Verify(ctx context.Context, identifier string, purpose models.Purpose, code string) (*models.User, error) {
	identifier = utils.NormalizeIdentifier(identifier)
	if identifier == "" || code == "" || !purpose.Valid() {
		return nil, ErrInvalidInput
	}

	unlock := s.locks.Lock(lockKey(identifier, purpose))
	defer unlock()

	rec, err := s.passcodes.FindActive(ctx, identifier, purpose)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrCodeNotFound
	}
	now := s.now()
	if rec.Expired(now) {
		return nil, ErrCodeExpired
	}
	if rec.Attempts >= s.cfg.MaxAttempts {
		// даже верный код после исчерпания попыток не принимаем
		return nil, ErrTooManyAttempts
	}

	if !s.hasher.Compare(rec.CodeHash, code) {
		attempts, incErr := s.passcodes.IncrementAttempts(ctx, rec.ID)
		if incErr != nil {
			return nil, incErr
		}
		if attempts >= s.cfg.MaxAttempts {
			return nil, ErrTooManyAttempts
		}
		return nil, ErrCodeInvalid
	}

	if err := s.passcodes.MarkVerified(ctx, rec.ID); err != nil {
		return nil, err
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if purpose == models.PurposeRegister && user != nil && user.Status == models.StatusPending {
		if err := s.users.SetStatus(ctx, user.ID, models.StatusActive); err != nil {
			return nil, fmt.Errorf("activate user %d: %w", user.ID, err)
		}
		user.Status = models.StatusActive
		log.Printf("[otp][verify] user activated: id=%d identifier=%s", user.ID, identifier)
	}
	log.Printf("[otp][verify] ok: identifier=%s purpose=%s", identifier, purpose)
	return user, nil
}

// keyedLocks — мьютекс на строковый ключ. Ключей немного и они
// короткоживущие, поэтому записи не удаляем.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}
