package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"unifarm.app/ledger/internal/common"
	"unifarm.app/ledger/internal/config"
	"unifarm.app/ledger/internal/features/ledger"
)

// ReferrerSource отдаёт пригласившего для пользователя.
// Реализуется репозиторием аккаунтов.
type ReferrerSource interface {
	ReferrerOf(ctx context.Context, userID int64) (*int64, error)
}

// Recorder записывает реферальные награды в леджер.
// Реализуется сервисом леджера.
type Recorder interface {
	Record(ctx context.Context, ev ledger.Event) (*ledger.Entry, bool, error)
}

// EarningsSource отдаёт суммарный реферальный доход пользователя.
type EarningsSource interface {
	SumByType(ctx context.Context, userID int64, typ ledger.EntryType, cur common.Currency) (decimal.Decimal, error)
}

// Service раздаёт награды вверх по реферальной цепочке.
type Service struct {
	refs     ReferrerSource
	recorder Recorder
	earnings EarningsSource
	schedule Schedule
	baseRate decimal.Decimal
}

// NewService создаёт сервис реферальных наград.
func NewService(refs ReferrerSource, recorder Recorder, earnings EarningsSource, cfg *config.Config) *Service {
	return &Service{
		refs:     refs,
		recorder: recorder,
		earnings: earnings,
		schedule: DefaultSchedule(),
		baseRate: cfg.ReferralBaseRate,
	}
}

// Distribute раздаёт награды от начисленного дохода sourceUserID.
//
// База — amount*baseRate; реферер уровня L получает долю базы по
// таблице. Цепочка обходится вверх не глубже MaxDepth; повторное
// появление пользователя в цепочке (цикл в данных) обрывает обход,
// иначе награды ходили бы по кругу и возвращались источнику. Сбой на
// одном уровне логируется и пропускается: остальная цепочка своё
// получает, источник дохода не откатывается.
func (s *Service) Distribute(ctx context.Context, sourceUserID int64, sourceEntryID int64, cur common.Currency, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	base := amount.Mul(s.baseRate)

	current := sourceUserID
	visited := map[int64]struct{}{sourceUserID: {}}
	var failed int
	for level := 1; level <= MaxDepth; level++ {
		refID, err := s.refs.ReferrerOf(ctx, current)
		if err != nil {
			if errors.Is(err, common.ErrAccountNotFound) {
				// Разрыв в цепочке: дальше подниматься не по кому.
				log.WithFields(log.Fields{
					"user_id": current,
					"level":   level,
				}).Warn("Реферальная цепочка оборвана, аккаунт не найден")
				break
			}
			return fmt.Errorf("ошибка обхода цепочки на уровне %d: %w", level, err)
		}
		if refID == nil {
			break
		}
		if _, seen := visited[*refID]; seen {
			log.WithFields(log.Fields{
				"referrer_id":    *refID,
				"level":          level,
				"source_user_id": sourceUserID,
			}).Warn("Цикл в реферальной цепочке, обход остановлен")
			break
		}
		visited[*refID] = struct{}{}

		payout := common.TruncateMoney(base.Mul(s.schedule.Share(level)))
		if payout.IsPositive() {
			ev := ledger.Event{
				UserID:   *refID,
				Type:     ledger.TypeReferralReward,
				Currency: cur,
				Amount:   payout,
				Metadata: map[string]any{
					ledger.MetaLevel:         level,
					ledger.MetaSourceEntryID: sourceEntryID,
					ledger.MetaSourceUserID:  sourceUserID,
				},
			}
			if _, _, err := s.recorder.Record(ctx, ev); err != nil {
				failed++
				log.WithError(err).WithFields(log.Fields{
					"referrer_id":     *refID,
					"level":           level,
					"source_user_id":  sourceUserID,
					"source_entry_id": sourceEntryID,
				}).Error("Ошибка выплаты реферальной награды")
			}
		}
		current = *refID
	}

	if failed > 0 {
		return fmt.Errorf("не выплачено %d реферальных наград от записи %d", failed, sourceEntryID)
	}
	return nil
}

// Stats собирает сводку реферальной сети пользователя.
func (s *Service) Stats(ctx context.Context, userID int64, refCode string, levelCounts map[int]int64) (*Stats, error) {
	uni, err := s.earnings.SumByType(ctx, userID, ledger.TypeReferralReward, common.CurrencyUNI)
	if err != nil {
		return nil, err
	}
	ton, err := s.earnings.SumByType(ctx, userID, ledger.TypeReferralReward, common.CurrencyTON)
	if err != nil {
		return nil, err
	}
	return &Stats{
		UserID:         userID,
		RefCode:        refCode,
		DirectCount:    levelCounts[1],
		LevelCounts:    levelCounts,
		TotalEarnedUNI: uni,
		TotalEarnedTON: ton,
	}, nil
}
