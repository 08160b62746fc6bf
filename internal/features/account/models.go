// Package account управляет аккаунтами: идентичность, балансы,
// реферальная привязка. models.go описывает структуры аккаунтов.
package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account представляет аккаунт пользователя.
// user_id — стабильный целочисленный идентификатор (канонический тип
// BIGINT на всех таблицах; строковые id на границе схемы отклоняются).
type Account struct {
	UserID     int64           `db:"user_id" json:"user_id"`
	RefCode    string          `db:"ref_code" json:"ref_code"`       // Собственный реферальный код
	ReferrerID *int64          `db:"referrer_id" json:"referrer_id"` // Пригласивший; назначается один раз, nil — аккаунт без атрибуции
	BalanceUNI decimal.Decimal `db:"balance_uni" json:"balance_uni"`
	BalanceTON decimal.Decimal `db:"balance_ton" json:"balance_ton"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}
