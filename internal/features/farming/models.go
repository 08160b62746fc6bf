// Package farming начисляет периодический доход на фарминг-депозиты.
// models.go описывает состояние фарминга.
//
// Одно и то же ядро обслуживает два тарифа: основной фарминг (принципал
// в UNI, доход в UNI) и boost (покупается за TON, доход в TON, ставка выше).
package farming

import (
	"time"

	"github.com/shopspring/decimal"

	"unifarm.app/ledger/internal/common"
)

// Kind — тариф фарминга.
type Kind string

const (
	KindFarming Kind = "farming"
	KindBoost   Kind = "boost"
)

// ParseKind проверяет строку тарифа из внешнего запроса.
// Пустая строка трактуется как основной фарминг.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindFarming, "":
		return KindFarming, true
	case KindBoost:
		return KindBoost, true
	}
	return "", false
}

// Currency возвращает валюту принципала и дохода тарифа.
func (k Kind) Currency() common.Currency {
	if k == KindBoost {
		return common.CurrencyTON
	}
	return common.CurrencyUNI
}

// State — состояние фарминга одного пользователя по одному тарифу.
// last_settled_at — единственный источник правды о том, сколько дохода
// причитается: никакого состояния в памяти планировщика нет, рестарт
// после падения ничего не теряет.
type State struct {
	UserID        int64           `db:"user_id" json:"user_id"`
	Kind          Kind            `db:"kind" json:"kind"`
	Deposit       decimal.Decimal `db:"deposit" json:"deposit"`       // Принципал
	DailyRate     decimal.Decimal `db:"daily_rate" json:"daily_rate"` // Доля в день: 0.01 = 1%
	LastSettledAt time.Time       `db:"last_settled_at" json:"last_settled_at"`
	Active        bool            `db:"active" json:"active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ActiveRef — ссылка на активное состояние для обхода планировщиком.
type ActiveRef struct {
	UserID int64
	Kind   Kind
}
