// Package wallet — внешние денежные операции: депозиты из блокчейна,
// заявки на вывод и их модерация, запрос баланса и истории.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/tonkeeper/tongo/ton"

	"unifarm.app/ledger/internal/common"
	"unifarm.app/ledger/internal/features/account"
	"unifarm.app/ledger/internal/features/farming"
	"unifarm.app/ledger/internal/features/ledger"
)

// BalanceCache — best-effort кеш последних известных балансов.
type BalanceCache interface {
	CachedBalance(ctx context.Context, userID int64, cur common.Currency) (decimal.Decimal, bool)
}

// StateSource отдаёт состояния фарминга для сводки баланса.
// Реализуется сервисом фарминга.
type StateSource interface {
	State(ctx context.Context, userID int64, kind farming.Kind) (*farming.State, error)
}

// Balances — сводка средств аккаунта: балансы и фарминг-принципалы.
type Balances struct {
	UNI     decimal.Decimal  `json:"uni"`
	TON     decimal.Decimal  `json:"ton"`
	Farming []*farming.State `json:"farming"`
}

// Service оформляет денежные операции поверх леджера.
type Service struct {
	ledger   *ledger.Service
	accounts *account.Repository
	cache    BalanceCache
	states   StateSource
}

// NewService создаёт сервис кошелька. cache и states могут быть nil.
func NewService(l *ledger.Service, accounts *account.Repository, cache BalanceCache, states StateSource) *Service {
	return &Service{ledger: l, accounts: accounts, cache: cache, states: states}
}

// Deposit зачисляет внешний депозит. txHash — хеш транзакции блокчейна;
// повтор того же хеша возвращает исходную запись без второго зачисления.
func (s *Service) Deposit(ctx context.Context, userID int64, cur common.Currency, amount decimal.Decimal, txHash string) (*ledger.Entry, bool, error) {
	if !amount.IsPositive() {
		return nil, false, fmt.Errorf("сумма %s: %w", amount, common.ErrInvalidAmount)
	}
	return s.ledger.Record(ctx, ledger.Event{
		UserID:   userID,
		Type:     ledger.TypeDeposit,
		Currency: cur,
		Amount:   amount,
		TxHash:   txHash,
		Metadata: map[string]any{ledger.MetaSource: "onchain"},
	})
}

// Withdraw оформляет заявку на вывод: средства удерживаются сразу,
// запись остаётся pending до решения оператора. destination — адрес
// TON-кошелька в любом поддерживаемом формате.
func (s *Service) Withdraw(ctx context.Context, userID int64, cur common.Currency, amount decimal.Decimal, destination string) (*ledger.Entry, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("сумма %s: %w", amount, common.ErrInvalidAmount)
	}
	acc, err := ton.ParseAccountID(destination)
	if err != nil {
		return nil, fmt.Errorf("адрес %q: %w", destination, common.ErrInvalidAddress)
	}

	entry, _, err := s.ledger.RecordHold(ctx, ledger.Event{
		UserID:   userID,
		Type:     ledger.TypeWithdrawal,
		Currency: cur,
		Amount:   amount.Neg(),
		Metadata: map[string]any{
			ledger.MetaSource:      "withdrawal_request",
			ledger.MetaDestination: acc.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"entry_id":    entry.ID,
		"destination": acc.ToHuman(true, false),
	}).Info("Заявка на вывод принята")
	return entry, nil
}

// Approve подтверждает pending-вывод.
func (s *Service) Approve(ctx context.Context, entryID int64) (*ledger.Entry, error) {
	return s.ledger.Approve(ctx, entryID)
}

// Reject отклоняет pending-вывод и возвращает средства.
func (s *Service) Reject(ctx context.Context, entryID int64) (*ledger.Entry, error) {
	return s.ledger.Reject(ctx, entryID)
}

// Balances возвращает сводку средств. Балансы — сначала из кеша, при
// промахе по любой из валют из БД; плюс активные состояния фарминга.
func (s *Service) Balances(ctx context.Context, userID int64) (*Balances, error) {
	out := &Balances{}

	cached := false
	if s.cache != nil {
		uni, okUNI := s.cache.CachedBalance(ctx, userID, common.CurrencyUNI)
		tonBal, okTON := s.cache.CachedBalance(ctx, userID, common.CurrencyTON)
		if okUNI && okTON {
			out.UNI, out.TON = uni, tonBal
			cached = true
		}
	}
	if !cached {
		acc, err := s.accounts.GetByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		out.UNI, out.TON = acc.BalanceUNI, acc.BalanceTON
	}

	if s.states != nil {
		for _, kind := range []farming.Kind{farming.KindFarming, farming.KindBoost} {
			st, err := s.states.State(ctx, userID, kind)
			if errors.Is(err, common.ErrFarmingInactive) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out.Farming = append(out.Farming, st)
		}
	}
	return out, nil
}

// History возвращает страницу истории транзакций.
func (s *Service) History(ctx context.Context, userID, cursor int64, limit int) ([]*ledger.Entry, error) {
	return s.ledger.History(ctx, userID, cursor, limit)
}

// Entry возвращает одну запись истории по её id.
func (s *Service) Entry(ctx context.Context, entryID int64) (*ledger.Entry, error) {
	return s.ledger.Entry(ctx, entryID)
}
