package farming

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deposit = decimal.NewFromInt(100)
	rate    = decimal.RequireFromString("0.01") // 1% в день
)

func TestCompute_FullPeriodsOnly(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := last.Add(37 * time.Minute)

	acc := Compute(deposit, rate, last, now, PeriodsPerDay)

	// 37 минут = 7 полных периодов, хвост в 2 минуты не оплачивается.
	assert.Equal(t, 7, acc.Periods)
	assert.Equal(t, last.Add(35*time.Minute), acc.SettledThrough)
	assert.False(t, acc.Capped)

	// 100 * 0.01 / 288 * 7, усечённое до 6 знаков.
	expected := deposit.Mul(rate).
		Div(decimal.NewFromInt(PeriodsPerDay)).
		Mul(decimal.NewFromInt(7)).
		Truncate(6)
	assert.True(t, acc.Credit.Equal(expected), "credit=%s expected=%s", acc.Credit, expected)
}

func TestCompute_LessThanOnePeriod(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	acc := Compute(deposit, rate, last, last.Add(4*time.Minute), PeriodsPerDay)

	assert.Equal(t, 0, acc.Periods)
	assert.True(t, acc.Credit.IsZero())
	assert.Equal(t, last, acc.SettledThrough)
}

func TestCompute_SecondCallAfterAdvanceIsNoop(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := last.Add(37 * time.Minute)

	first := Compute(deposit, rate, last, now, PeriodsPerDay)
	require.Equal(t, 7, first.Periods)

	// Повторный расчёт с тем же "сейчас" от нового last_settled_at
	// видит только неоплаченный двухминутный хвост.
	second := Compute(deposit, rate, first.SettledThrough, now, PeriodsPerDay)
	assert.Equal(t, 0, second.Periods)
	assert.True(t, second.Credit.IsZero())
}

func TestCompute_CapsBacklog(t *testing.T) {
	last := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := last.Add(72 * time.Hour) // трое суток простоя

	acc := Compute(deposit, rate, last, now, PeriodsPerDay)

	assert.Equal(t, PeriodsPerDay, acc.Periods)
	assert.True(t, acc.Capped)
	// Сдвиг соответствует оплаченным периодам, остаток хвоста
	// останется на следующие тики.
	assert.Equal(t, last.Add(24*time.Hour), acc.SettledThrough)
}

func TestCompute_FullDayEqualsDailyRate(t *testing.T) {
	last := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	acc := Compute(deposit, rate, last, last.Add(24*time.Hour), PeriodsPerDay)

	require.Equal(t, PeriodsPerDay, acc.Periods)
	// За полные сутки доход не превышает deposit*rate и отличается от
	// него не больше чем на потерю усечения.
	daily := deposit.Mul(rate)
	assert.True(t, acc.Credit.LessThanOrEqual(daily))
	assert.True(t, daily.Sub(acc.Credit).LessThan(decimal.RequireFromString("0.000001")))
}

func TestCompute_TinyDepositTruncatesToZero(t *testing.T) {
	tiny := decimal.RequireFromString("0.000001")

	acc := Compute(tiny, rate, time.Unix(0, 0), time.Unix(0, 0).Add(SettlementPeriod), PeriodsPerDay)

	assert.Equal(t, 1, acc.Periods)
	assert.True(t, acc.Credit.IsZero())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("")
	assert.True(t, ok)
	assert.Equal(t, KindFarming, k)

	k, ok = ParseKind("boost")
	assert.True(t, ok)
	assert.Equal(t, KindBoost, k)

	_, ok = ParseKind("margin")
	assert.False(t, ok)
}

func TestKindCurrency(t *testing.T) {
	assert.Equal(t, "UNI", string(KindFarming.Currency()))
	assert.Equal(t, "TON", string(KindBoost.Currency()))
}
