package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"edugate/internal/models"
	"edugate/internal/repositories"
)

// In-memory репозитории для юнит-тестов сервисного слоя.

type memPasscodeRepo struct {
	mu   sync.Mutex
	seq  int64
	recs map[int64]*models.Passcode
	now  func() time.Time
}

func newMemPasscodeRepo(now func() time.Time) *memPasscodeRepo {
	if now == nil {
		now = time.Now
	}
	return &memPasscodeRepo{recs: make(map[int64]*models.Passcode), now: now}
}

func (r *memPasscodeRepo) Issue(_ context.Context, p *models.Passcode) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.recs {
		if rec.Identifier == p.Identifier && rec.Purpose == p.Purpose && !rec.Verified {
			delete(r.recs, id)
		}
	}
	r.seq++
	cp := *p
	cp.ID = r.seq
	r.recs[cp.ID] = &cp
	return cp.ID, nil
}

func (r *memPasscodeRepo) findLatest(match func(*models.Passcode) bool) *models.Passcode {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Passcode
	for _, rec := range r.recs {
		if !rec.Verified && match(rec) {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	cp := *out[0]
	return &cp
}

func (r *memPasscodeRepo) FindActive(_ context.Context, identifier string, purpose models.Purpose) (*models.Passcode, error) {
	return r.findLatest(func(p *models.Passcode) bool {
		return p.Identifier == identifier && p.Purpose == purpose
	}), nil
}

func (r *memPasscodeRepo) FindActiveByIdentifier(_ context.Context, identifier string) (*models.Passcode, error) {
	now := r.now()
	return r.findLatest(func(p *models.Passcode) bool {
		return p.Identifier == identifier && p.ExpiresAt.After(now)
	}), nil
}

func (r *memPasscodeRepo) IncrementAttempts(_ context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.recs[id]
	rec.Attempts++
	return rec.Attempts, nil
}

func (r *memPasscodeRepo) MarkVerified(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recs[id]; ok {
		rec.Verified = true
	}
	return nil
}

func (r *memPasscodeRepo) SetChat(_ context.Context, id int64, chatID int64, botType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recs[id]; ok {
		rec.ChatID = chatID
		rec.BotType = botType
	}
	return nil
}

func (r *memPasscodeRepo) MarkCodeSent(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.recs[id]; ok {
		rec.CodeSent = true
	}
	return nil
}

func (r *memPasscodeRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := r.now()
	for id, rec := range r.recs {
		if !rec.ExpiresAt.After(now) {
			delete(r.recs, id)
			n++
		}
	}
	return n, nil
}

func (r *memPasscodeRepo) activeCount(identifier string, purpose models.Purpose) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	now := r.now()
	for _, rec := range r.recs {
		if rec.Identifier == identifier && rec.Purpose == purpose && !rec.Verified && rec.ExpiresAt.After(now) {
			n++
		}
	}
	return n
}

type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[int]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int]*models.User)}
}

func (r *memUserRepo) add(u models.User) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	u.ID = r.seq
	u.CreatedAt = time.Now()
	r.users[u.ID] = &u
	cp := u
	return &cp
}

func (r *memUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ex := range r.users {
		if (u.Email != "" && ex.Email == u.Email) || (u.Phone != "" && ex.Phone == u.Phone) {
			return repositories.ErrDuplicate
		}
	}
	r.seq++
	u.ID = r.seq
	u.CreatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *memUserRepo) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Phone == phone })
}

func (r *memUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == identifier || u.Phone == identifier })
}

func (r *memUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) SetStatus(_ context.Context, id int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.Status = status
	}
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id int, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.PasswordHash = hash
	}
	return nil
}

type memBindingRepo struct {
	mu      sync.Mutex
	seq     int64
	byPhone map[string]*models.ChatBinding
}

func newMemBindingRepo() *memBindingRepo {
	return &memBindingRepo{byPhone: make(map[string]*models.ChatBinding)}
}

func (r *memBindingRepo) Upsert(_ context.Context, phone string, chatID int64, botType string) (*models.ChatBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.byPhone[phone]; ok {
		b.ChatID = chatID
		b.BotType = botType
		b.UpdatedAt = time.Now()
		cp := *b
		return &cp, nil
	}
	r.seq++
	b := &models.ChatBinding{ID: r.seq, Phone: phone, ChatID: chatID, BotType: botType, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.byPhone[phone] = b
	cp := *b
	return &cp, nil
}

func (r *memBindingRepo) GetByPhone(_ context.Context, phone string) (*models.ChatBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.byPhone[phone]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (r *memBindingRepo) GetByChatID(_ context.Context, chatID int64) (*models.ChatBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.byPhone {
		if b.ChatID == chatID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memBindingRepo) Delete(_ context.Context, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPhone, phone)
	return nil
}

type memSessionRepo struct {
	mu   sync.Mutex
	seq  int64
	recs map[int64]*models.Session
	now  func() time.Time
}

func newMemSessionRepo(now func() time.Time) *memSessionRepo {
	if now == nil {
		now = time.Now
	}
	return &memSessionRepo{recs: make(map[int64]*models.Session), now: now}
}

func (r *memSessionRepo) Upsert(_ context.Context, s *models.Session) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.UserID == s.UserID && rec.Fingerprint == s.Fingerprint {
			rec.Token = s.Token
			rec.ExpiresAt = s.ExpiresAt
			cp := *rec
			return &cp, nil
		}
	}
	r.seq++
	cp := *s
	cp.ID = r.seq
	cp.CreatedAt = r.now()
	r.recs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *memSessionRepo) GetByUserAndFingerprint(_ context.Context, userID int, fingerprint string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.UserID == userID && rec.Fingerprint == fingerprint {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) GetByToken(_ context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.Token == token && rec.ExpiresAt.After(r.now()) {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessionRepo) CountByUser(_ context.Context, userID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.recs {
		if rec.UserID == userID && rec.ExpiresAt.After(r.now()) {
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) DeleteOldest(_ context.Context, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var oldest *models.Session
	for _, rec := range r.recs {
		if rec.UserID != userID || !rec.ExpiresAt.After(now) {
			continue
		}
		if oldest == nil || rec.CreatedAt.Before(oldest.CreatedAt) {
			oldest = rec
		}
	}
	if oldest != nil {
		delete(r.recs, oldest.ID)
	}
	return nil
}

func (r *memSessionRepo) Delete(_ context.Context, userID int, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.recs {
		if rec.UserID == userID && rec.Fingerprint == fingerprint {
			delete(r.recs, id)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.recs {
		if rec.Token == token {
			delete(r.recs, id)
		}
	}
	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.recs {
		if !rec.ExpiresAt.After(r.now()) {
			delete(r.recs, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) all(userID int) []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Session
	for _, rec := range r.recs {
		if rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memRevokedRepo struct {
	mu   sync.Mutex
	recs map[string]*models.RevokedToken
	now  func() time.Time
}

func newMemRevokedRepo(now func() time.Time) *memRevokedRepo {
	if now == nil {
		now = time.Now
	}
	return &memRevokedRepo{recs: make(map[string]*models.RevokedToken), now: now}
}

func (r *memRevokedRepo) Insert(_ context.Context, t *models.RevokedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.recs[t.Token]; !ok {
		cp := *t
		cp.RevokedAt = r.now()
		r.recs[t.Token] = &cp
	}
	return nil
}

func (r *memRevokedRepo) Exists(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.recs[token]
	return ok && t.ExpiresAt.After(r.now()), nil
}

func (r *memRevokedRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, rec := range r.recs {
		if !rec.ExpiresAt.After(r.now()) {
			delete(r.recs, token)
			n++
		}
	}
	return n, nil
}

// fakeClock — управляемое время для проверок TTL и пауз.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{t: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Заглушки транспортов доставки.

type fakeEmail struct {
	mu        sync.Mutex
	passcodes []string // адреса, на которые ушёл код
	err       error
}

func (f *fakeEmail) SendPasscodeEmail(email, code string, purpose models.Purpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.passcodes = append(f.passcodes, email)
	return nil
}

func (f *fakeEmail) SendWelcomeEmail(email, fullName string) error { return nil }
func (f *fakeEmail) SendPasswordChangedEmail(email string) error   { return nil }

type fakeSMS struct {
	mu   sync.Mutex
	sent []string // номера получателей
	err  error
}

func (f *fakeSMS) SendSMS(to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}
