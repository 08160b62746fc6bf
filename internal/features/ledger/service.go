// Package ledger — service.go содержит бизнес-логику записи событий.
// Валидация, вывод dedup-ключа, структурное аудит-логирование каждой
// операции и рассылка уведомлений об изменении баланса.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"unifarm.app/ledger/internal/common"
)

// Store — хранилище леджера. Реализуется *Repository (PostgreSQL).
type Store interface {
	Record(ctx context.Context, e *Entry, final EntryStatus) (*RecordResult, error)
	Finalize(ctx context.Context, id int64) (*Entry, error)
	RejectRefund(ctx context.Context, id int64) (*Entry, decimal.Decimal, error)
	GetByID(ctx context.Context, id int64) (*Entry, error)
	ListByUser(ctx context.Context, userID, cursor int64, limit int) ([]*Entry, error)
}

// Notifier — advisory-уведомление об изменении баланса (at-least-once,
// fire-and-forget). Не часть контракта консистентности.
type Notifier interface {
	BalanceChanged(userID int64, currency common.Currency, balance decimal.Decimal)
}

// Service управляет записью событий в леджер.
type Service struct {
	store          Store
	notifier       Notifier
	dedupPrefixLen int
}

// NewService создаёт новый сервис леджера.
func NewService(store Store, notifier Notifier, dedupPrefixLen int) *Service {
	return &Service{
		store:          store,
		notifier:       notifier,
		dedupPrefixLen: dedupPrefixLen,
	}
}

// Record записывает событие и применяет его к балансу.
// Возвращает запись и флаг "это был повтор".
//
// Повтор депозита (тот же dedup-ключ) — НЕ ошибка: вызывающий получает
// существующую запись и обязан трактовать это как успех идемпотентного
// реплея.
func (s *Service) Record(ctx context.Context, ev Event) (*Entry, bool, error) {
	return s.record(ctx, ev, StatusCompleted)
}

// RecordHold записывает событие, применяет дельту, но оставляет запись
// в pending — для выводов, ожидающих подтверждения оператором.
func (s *Service) RecordHold(ctx context.Context, ev Event) (*Entry, bool, error) {
	return s.record(ctx, ev, StatusPending)
}

func (s *Service) record(ctx context.Context, ev Event, final EntryStatus) (*Entry, bool, error) {
	if ev.Amount.IsZero() {
		return nil, false, common.ErrInvalidAmount
	}
	if _, err := common.ParseCurrency(string(ev.Currency)); err != nil {
		return nil, false, err
	}

	e := &Entry{
		UserID:   ev.UserID,
		Type:     ev.Type,
		Currency: ev.Currency,
		Amount:   common.TruncateMoney(ev.Amount),
		Metadata: ev.Metadata,
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	if ev.Type == TypeDeposit {
		if key := DedupKey(ev.TxHash, s.dedupPrefixLen); key != "" {
			e.DedupKey = &key
			e.Metadata[MetaTxHash] = ev.TxHash
		}
	}

	// Корреляционный id операции: по нему связываются все строки
	// аудит-лога одной записи.
	opID := uuid.NewString()
	auditLog := log.WithFields(log.Fields{
		"op_id":    opID,
		"user_id":  ev.UserID,
		"type":     ev.Type,
		"currency": ev.Currency,
		"amount":   e.Amount.String(),
	})
	auditLog.Debug("Запись события в леджер")

	res, err := s.store.Record(ctx, e, final)
	if errors.Is(err, common.ErrInsufficientFunds) {
		auditLog.Warn("Операция отклонена: недостаточно средств")
		return nil, false, err
	}
	if err != nil {
		auditLog.WithError(err).Error("Ошибка записи в леджер")
		return nil, false, fmt.Errorf("запись события: %w", err)
	}

	if res.Duplicate {
		auditLog.WithFields(log.Fields{
			"entry_id":  res.Entry.ID,
			"dedup_key": derefStr(e.DedupKey),
		}).Warn("Дублирование предотвращено: возвращаем существующую запись")
		return res.Entry, true, nil
	}

	auditLog.WithFields(log.Fields{
		"entry_id":    res.Entry.ID,
		"new_balance": res.NewBalance.String(),
		"status":      res.Entry.Status,
	}).Info("Запись леджера зафиксирована")

	s.notify(ev.UserID, ev.Currency, res.NewBalance)
	return res.Entry, false, nil
}

// Approve подтверждает pending-вывод: запись переходит в completed.
func (s *Service) Approve(ctx context.Context, entryID int64) (*Entry, error) {
	e, err := s.store.Finalize(ctx, entryID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"entry_id": e.ID,
		"user_id":  e.UserID,
	}).Info("Вывод подтверждён")
	return e, nil
}

// Reject отклоняет pending-вывод: средства возвращаются на баланс,
// запись помечается failed.
func (s *Service) Reject(ctx context.Context, entryID int64) (*Entry, error) {
	e, newBalance, err := s.store.RejectRefund(ctx, entryID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"entry_id": e.ID,
		"user_id":  e.UserID,
		"refund":   e.Amount.Neg().String(),
	}).Info("Вывод отклонён, средства возвращены")

	s.notify(e.UserID, e.Currency, newBalance)
	return e, nil
}

// Entry возвращает запись по id.
func (s *Service) Entry(ctx context.Context, id int64) (*Entry, error) {
	return s.store.GetByID(ctx, id)
}

// History возвращает страницу истории транзакций пользователя.
func (s *Service) History(ctx context.Context, userID, cursor int64, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListByUser(ctx, userID, cursor, limit)
}

// notify рассылает уведомление об изменении баланса.
// Fire-and-forget: падение уведомления не влияет на операцию.
func (s *Service) notify(userID int64, cur common.Currency, balance decimal.Decimal) {
	if s.notifier == nil {
		return
	}
	s.notifier.BalanceChanged(userID, cur, balance)
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
