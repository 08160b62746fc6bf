// Package notify рассылает advisory-уведомления об изменениях баланса
// и алерты операторам. Уведомления не входят в контракт консистентности:
// потеря сообщения ничего не ломает, источник правды — леджер.
package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"unifarm.app/ledger/internal/common"
)

// Channel — канал Pub/Sub с обновлениями балансов.
const Channel = "balance:updates"

// cacheTTL ограничивает жизнь кешированного баланса: кеш best-effort,
// чтение при промахе всегда идёт в PostgreSQL.
const cacheTTL = 5 * time.Minute

// BalanceUpdate — полезная нагрузка сообщения в канале.
type BalanceUpdate struct {
	UserID   int64           `json:"user_id"`
	Currency common.Currency `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	At       time.Time       `json:"at"`
}

// Publisher публикует обновления баланса в Redis и кеширует последнее
// известное значение.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher создаёт паблишер поверх клиента Redis.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func balanceKey(userID int64, cur common.Currency) string {
	return "balance:" + strconv.FormatInt(userID, 10) + ":" + string(cur)
}

// BalanceChanged публикует новое значение баланса и обновляет кеш.
// Fire-and-forget: ошибки логируются и глотаются.
func (p *Publisher) BalanceChanged(userID int64, cur common.Currency, balance decimal.Decimal) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload, err := json.Marshal(BalanceUpdate{
		UserID:   userID,
		Currency: cur,
		Balance:  balance,
		At:       time.Now().UTC(),
	})
	if err != nil {
		log.WithError(err).Error("Ошибка сериализации уведомления о балансе")
		return
	}

	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, balanceKey(userID, cur), balance.String(), cacheTTL)
	pipe.Publish(ctx, Channel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"user_id":  userID,
			"currency": cur,
		}).Warn("Не удалось опубликовать обновление баланса")
		// Свежее значение в кеш не легло — сбрасываем старое, чтобы
		// чтения до истечения TTL не отдавали устаревший баланс.
		p.Invalidate(ctx, userID)
	}
}

// CachedBalance возвращает закешированный баланс, если он есть.
func (p *Publisher) CachedBalance(ctx context.Context, userID int64, cur common.Currency) (decimal.Decimal, bool) {
	val, err := p.rdb.Get(ctx, balanceKey(userID, cur)).Result()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Debug("Ошибка чтения кеша баланса")
		}
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Invalidate сбрасывает кеш балансов пользователя.
func (p *Publisher) Invalidate(ctx context.Context, userID int64) {
	keys := []string{
		balanceKey(userID, common.CurrencyUNI),
		balanceKey(userID, common.CurrencyTON),
	}
	if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
		log.WithError(err).Debug("Ошибка сброса кеша баланса")
	}
}

// NoopNotifier — заглушка для окружений без Redis.
type NoopNotifier struct{}

func (NoopNotifier) BalanceChanged(int64, common.Currency, decimal.Decimal) {}
