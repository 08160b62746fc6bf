// Package common — money.go задаёт единые правила работы с деньгами.
// Все суммы в сервисе — decimal.Decimal с фиксированной точностью 6 знаков.
// Правило округления одно на весь сервис: усечение (truncate) до 6 знаков.
// Любое другое округление накапливало бы дрейф на 20 уровнях рефералки.
package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale — число знаков после запятой у минимальной единицы валюты.
const MoneyScale = 6

// Currency — валюта баланса. Поддерживаются только UNI и TON.
type Currency string

const (
	CurrencyUNI Currency = "UNI"
	CurrencyTON Currency = "TON"
)

// ParseCurrency валидирует строку валюты.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case CurrencyUNI:
		return CurrencyUNI, nil
	case CurrencyTON:
		return CurrencyTON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
}

// TruncateMoney приводит сумму к минимальной единице валюты.
// Усечение, не округление: 0.0000009 → 0.000000.
func TruncateMoney(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(MoneyScale)
}

// FormatAmount форматирует сумму для логов и уведомлений.
// Пример: FormatAmount(d, CurrencyUNI) → "12.5 UNI"
func FormatAmount(d decimal.Decimal, c Currency) string {
	return fmt.Sprintf("%s %s", d.String(), c)
}

// FormatDateTime форматирует время для ответов API и логов.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
