package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"edugate/internal/models"
	"edugate/internal/repositories"
	"edugate/internal/utils"
)

// botAPI — узкий срез tgbotapi.BotAPI, чтобы подменять в тестах.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// UpdateSource — источник входящих апдейтов бота. Две реализации:
// long-poll и webhook. Одновременно против одного токена запускать
// можно только одну, иначе telegram отвечает 409.
type UpdateSource interface {
	Run(ctx context.Context, handle func(tgbotapi.Update)) error
}

const (
	stageAwaitingContact = "awaiting_contact"
	stageOTPSent         = "otp_sent"
)

type chatState struct {
	stage string
	phone string
}

// pendingCode — код, ожидающий привязки чата: хранится открытым
// текстом в памяти, потому что в БД лежит только хэш.
type pendingCode struct {
	recordID  int64
	code      string
	expiresAt time.Time
}

// BotManager — приём событий бота, привязка телефон→чат и доставка
// кодов. Состояние диалога и отложенные коды живут в памяти процесса:
// годится для одного инстанса, привязки при этом переживают рестарт
// в таблице chat_bindings.
type BotManager struct {
	bot       botAPI
	botType   string
	passcodes repositories.PasscodeRepository
	bindings  repositories.ChatBindingRepository

	resendDelay time.Duration

	mu      sync.Mutex
	state   map[int64]*chatState
	pending map[string]pendingCode // phone -> код, ждущий чат
	timers  map[string]*time.Timer // chatID:phone -> одноразовый повтор
	seen    *updateRing

	now func() time.Time
}

func NewBotManager(
	bot botAPI,
	botType string,
	passcodes repositories.PasscodeRepository,
	bindings repositories.ChatBindingRepository,
	resendDelay time.Duration,
) *BotManager {
	return &BotManager{
		bot:         bot,
		botType:     botType,
		passcodes:   passcodes,
		bindings:    bindings,
		resendDelay: resendDelay,
		state:       make(map[int64]*chatState),
		pending:     make(map[string]pendingCode),
		timers:      make(map[string]*time.Timer),
		seen:        newUpdateRing(512),
		now:         time.Now,
	}
}

// DeliverPasscode — реализация ChatDeliverer для DeliveryRouter.
// Без привязки код откладывается до появления чата.
func (m *BotManager) DeliverPasscode(ctx context.Context, rec *models.Passcode, code string) error {
	phone := rec.Identifier
	b, err := m.bindings.GetByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if b == nil {
		m.mu.Lock()
		m.prunePendingLocked()
		m.pending[phone] = pendingCode{recordID: rec.ID, code: code, expiresAt: rec.ExpiresAt}
		m.mu.Unlock()
		log.Printf("[tg][deliver] chat not bound yet, deferred: phone=%s", phone)
		return ErrDeliveryDeferred
	}

	if err := m.sendCode(b.ChatID, code); err != nil {
		return err
	}
	if err := m.passcodes.SetChat(ctx, rec.ID, b.ChatID, m.botType); err != nil {
		log.Printf("[tg][deliver] set chat failed: id=%d err=%v", rec.ID, err)
	}
	if err := m.passcodes.MarkCodeSent(ctx, rec.ID); err != nil {
		log.Printf("[tg][deliver] mark sent failed: id=%d err=%v", rec.ID, err)
	}
	m.scheduleResend(b.ChatID, phone, rec.ID, code)
	log.Printf("[tg][deliver] ok: phone=%s chat_id=%d", phone, b.ChatID)
	return nil
}

// Run — крутит источник апдейтов до фатальной ошибки или отмены.
func (m *BotManager) Run(ctx context.Context, src UpdateSource) error {
	return src.Run(ctx, func(u tgbotapi.Update) {
		m.HandleUpdate(ctx, u)
	})
}

var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{7,17}$`)

// HandleUpdate — один входящий апдейт. Контакт и текст с номером могут
// прийти дублями через разные события транспорта, поэтому сначала
// дедуп по update_id.
func (m *BotManager) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	m.mu.Lock()
	dup := !m.seen.Add(u.UpdateID)
	m.mu.Unlock()
	if dup {
		log.Printf("[tg][update] duplicate skipped: update_id=%d", u.UpdateID)
		return
	}

	chatID := msg.Chat.ID

	if msg.IsCommand() && msg.Command() == "start" {
		m.mu.Lock()
		m.state[chatID] = &chatState{stage: stageAwaitingContact}
		m.mu.Unlock()
		m.sendContactRequest(chatID)
		return
	}

	phone := ""
	switch {
	case msg.Contact != nil:
		phone = utils.NormalizePhone(msg.Contact.PhoneNumber)
	case phoneRe.MatchString(msg.Text):
		phone = utils.NormalizePhone(msg.Text)
	}
	if phone == "" {
		m.reply(chatID, "Отправьте свой контакт кнопкой ниже или напишите номер телефона.")
		return
	}

	m.bindPhone(ctx, chatID, phone)
}

func (m *BotManager) bindPhone(ctx context.Context, chatID int64, phone string) {
	m.mu.Lock()
	if st, ok := m.state[chatID]; ok && st.stage == stageOTPSent && st.phone == phone {
		// код в этом диалоге уже отправлен, второй контакт игнорируем
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if _, err := m.bindings.Upsert(ctx, phone, chatID, m.botType); err != nil {
		log.Printf("[tg][bind] upsert failed: phone=%s chat_id=%d err=%v", phone, chatID, err)
		m.reply(chatID, "Не получилось сохранить привязку, попробуйте ещё раз.")
		return
	}
	log.Printf("[tg][bind] ok: phone=%s chat_id=%d", phone, chatID)

	m.mu.Lock()
	m.prunePendingLocked()
	pc, hasPending := m.pending[phone]
	if hasPending {
		delete(m.pending, phone)
	}
	m.mu.Unlock()

	if hasPending {
		if err := m.sendCode(chatID, pc.code); err != nil {
			log.Printf("[tg][bind] send deferred code failed: phone=%s err=%v", phone, err)
			return
		}
		if err := m.passcodes.SetChat(ctx, pc.recordID, chatID, m.botType); err != nil {
			log.Printf("[tg][bind] set chat failed: id=%d err=%v", pc.recordID, err)
		}
		if err := m.passcodes.MarkCodeSent(ctx, pc.recordID); err != nil {
			log.Printf("[tg][bind] mark sent failed: id=%d err=%v", pc.recordID, err)
		}
		m.mu.Lock()
		m.state[chatID] = &chatState{stage: stageOTPSent, phone: phone}
		m.mu.Unlock()
		m.scheduleResend(chatID, phone, pc.recordID, pc.code)
		return
	}

	// привязка есть, отложенного кода нет: подсказываем, что делать
	rec, err := m.passcodes.FindActiveByIdentifier(ctx, phone)
	if err != nil {
		log.Printf("[tg][bind] find active failed: phone=%s err=%v", phone, err)
		return
	}
	switch {
	case rec != nil && rec.CodeSent:
		m.reply(chatID, "Код уже отправлен. Если он не пришёл, запросите новый в приложении.")
	case rec != nil:
		// активная запись есть, но открытый текст утерян (например, рестарт
		// процесса) — восстановить из хэша нельзя, только перевыпуск
		m.reply(chatID, "Телефон привязан. Запросите код в приложении ещё раз, и он придёт сюда.")
	default:
		m.reply(chatID, "Телефон привязан! Теперь коды подтверждения будут приходить в этот чат.")
	}
}

// prunePendingLocked — выбрасывает отложенные коды с вышедшим сроком:
// телефоны, которые так и не привязались, не должны копить записи.
// Вызывается под m.mu.
func (m *BotManager) prunePendingLocked() {
	now := m.now()
	for phone, pc := range m.pending {
		if now.After(pc.expiresAt) {
			delete(m.pending, phone)
		}
	}
}

// scheduleResend — один отложенный повтор на (chatID, phone).
// Повторная постановка заменяет таймер, а не добавляет второй.
func (m *BotManager) scheduleResend(chatID int64, phone string, recordID int64, code string) {
	if m.resendDelay <= 0 {
		return
	}
	key := fmt.Sprintf("%d:%s", chatID, phone)

	m.mu.Lock()
	if t, ok := m.timers[key]; ok {
		t.Stop()
	}
	m.timers[key] = time.AfterFunc(m.resendDelay, func() {
		m.mu.Lock()
		delete(m.timers, key)
		m.mu.Unlock()
		m.resendIfStillActive(phone, chatID, recordID, code)
	})
	m.mu.Unlock()
}

func (m *BotManager) resendIfStillActive(phone string, chatID int64, recordID int64, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rec, err := m.passcodes.FindActiveByIdentifier(ctx, phone)
	if err != nil {
		log.Printf("[tg][resend] lookup failed: phone=%s err=%v", phone, err)
		return
	}
	if rec == nil || rec.ID != recordID {
		// подтверждён, протух или вытеснен новым кодом
		return
	}
	if err := m.sendCode(chatID, code); err != nil {
		log.Printf("[tg][resend] send failed: phone=%s err=%v", phone, err)
		return
	}
	log.Printf("[tg][resend] ok: phone=%s chat_id=%d", phone, chatID)
}

// CancelResend — снимает отложенный повтор (например, после verify).
func (m *BotManager) CancelResend(chatID int64, phone string) {
	key := fmt.Sprintf("%d:%s", chatID, phone)
	m.mu.Lock()
	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
	}
	m.mu.Unlock()
}

func (m *BotManager) sendCode(chatID int64, code string) error {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Ваш код подтверждения: <b>%s</b>", code))
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	if _, err := m.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send code: %w", err)
	}
	return nil
}

func (m *BotManager) sendContactRequest(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Здравствуйте! Поделитесь контактом, чтобы получать коды подтверждения в этот чат.")
	msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonContact("Поделиться контактом"),
		),
	)
	if _, err := m.bot.Send(msg); err != nil {
		log.Printf("[tg][start] send failed: chat_id=%d err=%v", chatID, err)
	}
}

func (m *BotManager) reply(chatID int64, text string) {
	if _, err := m.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("[tg][reply] send failed: chat_id=%d err=%v", chatID, err)
	}
}

// updateRing — ограниченное множество последних update_id.
// Терпит повторную доставку апдейта транспортом.
type updateRing struct {
	order []int
	set   map[int]struct{}
	next  int
}

func newUpdateRing(size int) *updateRing {
	return &updateRing{
		order: make([]int, size),
		set:   make(map[int]struct{}, size),
	}
}

// Add — false, если id уже встречался.
func (r *updateRing) Add(id int) bool {
	if _, ok := r.set[id]; ok {
		return false
	}
	old := r.order[r.next]
	if _, ok := r.set[old]; ok {
		delete(r.set, old)
	}
	r.order[r.next] = id
	r.set[id] = struct{}{}
	r.next = (r.next + 1) % len(r.order)
	return true
}
