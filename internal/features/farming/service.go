package farming

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"unifarm.app/ledger/internal/common"
	"unifarm.app/ledger/internal/config"
	"unifarm.app/ledger/internal/features/ledger"
)

// Distributor раздаёт реферальные награды от начисленного дохода.
// Реализуется сервисом рефералов; интерфейс разрывает цикл пакетов.
type Distributor interface {
	Distribute(ctx context.Context, sourceUserID int64, sourceEntryID int64, cur common.Currency, amount decimal.Decimal) error
}

// Alerter отправляет оповещения операторам о проблемах начисления.
type Alerter interface {
	Alert(ctx context.Context, text string)
}

// Service — бизнес-логика фарминга: депозиты, начисление дохода,
// реферальная раздача после начисления.
type Service struct {
	repo        *Repository
	notifier    ledger.Notifier
	distributor Distributor
	alerter     Alerter
	cfg         *config.Config
}

// NewService создаёт сервис фарминга.
func NewService(repo *Repository, notifier ledger.Notifier, distributor Distributor, alerter Alerter, cfg *config.Config) *Service {
	return &Service{repo: repo, notifier: notifier, distributor: distributor, alerter: alerter, cfg: cfg}
}

// rate возвращает дневную ставку тарифа из конфигурации.
func (s *Service) rate(kind Kind) decimal.Decimal {
	if kind == KindBoost {
		return s.cfg.BoostDailyRate
	}
	return s.cfg.FarmingDailyRate
}

// Deposit переводит amount с баланса пользователя в принципал фарминга.
// Перед пополнением досчитывается накопленный доход по старому
// принципалу, чтобы новая сумма не получила ставку задним числом.
func (s *Service) Deposit(ctx context.Context, userID int64, kind Kind, amount decimal.Decimal) (*State, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("сумма %s: %w", amount, common.ErrInvalidAmount)
	}
	amount = common.TruncateMoney(amount)

	// Досчитываем хвост по текущему принципалу. Отсутствие состояния —
	// первый депозит, начислять нечего.
	if _, err := s.Settle(ctx, userID, kind, time.Now()); err != nil && !errors.Is(err, common.ErrFarmingInactive) {
		return nil, err
	}

	entry, newBalance, err := s.repo.AddDeposit(ctx, userID, kind, amount, s.rate(kind))
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"kind":     kind,
		"amount":   common.FormatAmount(amount, kind.Currency()),
		"entry_id": entry.ID,
	}).Info("Депозит фарминга принят")

	if s.notifier != nil {
		s.notifier.BalanceChanged(userID, kind.Currency(), newBalance)
	}
	return s.repo.Get(ctx, userID, kind)
}

// Settle начисляет доход по одному состоянию и раздаёт реферальные
// награды от начисленной суммы. Ноль прошедших периодов — no-op.
func (s *Service) Settle(ctx context.Context, userID int64, kind Kind, now time.Time) (Accrual, error) {
	acc, entry, newBalance, err := s.repo.Settle(ctx, userID, kind, now, s.cfg.AccrualMaxPeriods)
	if err != nil {
		return Accrual{}, err
	}
	if acc.Periods == 0 {
		return acc, nil
	}

	if acc.Capped {
		// Бэклог больше суточного лимита: платим лимит, остальное
		// требует ручного разбора — оператору виднее, чем тихая
		// выплата за весь простой.
		log.WithFields(log.Fields{
			"user_id": userID,
			"kind":    kind,
			"periods": acc.Periods,
		}).Warn("Бэклог начисления упёрся в суточный лимит")
		if s.alerter != nil {
			s.alerter.Alert(ctx, fmt.Sprintf(
				"Начисление достигло лимита %d периодов: user_id=%d kind=%s",
				s.cfg.AccrualMaxPeriods, userID, kind,
			))
		}
	}

	if entry == nil {
		// Периоды прошли, но доход усёкся в ноль.
		return acc, nil
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"kind":     kind,
		"periods":  acc.Periods,
		"credit":   common.FormatAmount(acc.Credit, kind.Currency()),
		"entry_id": entry.ID,
	}).Info("Доход фарминга начислен")

	if s.notifier != nil {
		s.notifier.BalanceChanged(userID, kind.Currency(), newBalance)
	}

	if s.distributor != nil {
		if derr := s.distributor.Distribute(ctx, userID, entry.ID, kind.Currency(), acc.Credit); derr != nil {
			// Доход уже начислен; сбой раздачи не должен его откатывать.
			log.WithError(derr).WithFields(log.Fields{
				"user_id":  userID,
				"entry_id": entry.ID,
			}).Error("Ошибка раздачи реферальных наград")
		}
	}
	return acc, nil
}

// Claim начисляет накопленный доход по запросу пользователя и
// возвращает актуальное состояние.
func (s *Service) Claim(ctx context.Context, userID int64, kind Kind) (Accrual, *State, error) {
	acc, err := s.Settle(ctx, userID, kind, time.Now())
	if err != nil {
		return Accrual{}, nil, err
	}
	st, err := s.repo.Get(ctx, userID, kind)
	if err != nil {
		return Accrual{}, nil, err
	}
	return acc, st, nil
}

// State возвращает состояние фарминга пользователя.
func (s *Service) State(ctx context.Context, userID int64, kind Kind) (*State, error) {
	return s.repo.Get(ctx, userID, kind)
}

// ListActive отдаёт активные состояния для планировщика.
func (s *Service) ListActive(ctx context.Context) ([]ActiveRef, error) {
	return s.repo.ListActive(ctx)
}

// AuditOrphans проверяет согласованность идентификаторов между
// farming_state и accounts. Ненулевое число сирот — ошибка схемы.
func (s *Service) AuditOrphans(ctx context.Context) error {
	n, err := s.repo.CountOrphans(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		err := fmt.Errorf("%d строк farming_state без аккаунта: %w", n, common.ErrSchemaTypeMismatch)
		log.WithError(err).Error("Аудит идентификаторов провален")
		if s.alerter != nil {
			s.alerter.Alert(ctx, fmt.Sprintf("Аудит схемы: %d строк farming_state без аккаунта", n))
		}
		return err
	}
	return nil
}
