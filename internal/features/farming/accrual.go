// Package farming — accrual.go считает причитающийся доход.
// Чистая арифметика без I/O; применяется репозиторием внутри транзакции.
package farming

import (
	"time"

	"github.com/shopspring/decimal"

	"unifarm.app/ledger/internal/common"
)

// SettlementPeriod — шаг выплаты. Доход по дневной ставке выплачивается
// 5-минутными порциями (1/288 суток): без крупных непредсказуемых
// разовых сумм, и цена любой одиночной ошибки расчёта ограничена.
const SettlementPeriod = 5 * time.Minute

// PeriodsPerDay — число периодов выплаты в сутках.
const PeriodsPerDay = 288

// Accrual — результат расчёта одного начисления.
type Accrual struct {
	// Periods — сколько полных периодов прошло с последнего расчёта
	// (после ограничения maxPeriods). 0 — начислять нечего.
	Periods int
	// Credit — сумма к зачислению за все периоды разом, усечённая
	// до минимальной единицы валюты.
	Credit decimal.Decimal
	// SettledThrough — новое значение last_settled_at: сдвиг ровно на
	// Periods*SettlementPeriod, а НЕ на "сейчас". Неполный хвост
	// интервала не теряется и не оплачивается дважды, даже если расчёт
	// запоздал или вызван повторно для пересекающихся окон.
	SettledThrough time.Time
	// Capped — хвост был больше maxPeriods и обрезан. Сигнал для алерта:
	// произвольно большой бэклог молча не выплачивается.
	Capped bool
}

// Compute считает начисление для депозита deposit по ставке dailyRate
// (доля в день) за интервал (lastSettledAt, now].
//
// floor((now-last)/period) периодов; за каждый платится
// deposit*dailyRate/288. Второй конкурентный вызов с тем же "сейчас"
// после применения первого увидит ноль периодов — безопасный no-op.
func Compute(deposit, dailyRate decimal.Decimal, lastSettledAt, now time.Time, maxPeriods int) Accrual {
	elapsed := now.Sub(lastSettledAt)
	if elapsed < SettlementPeriod {
		return Accrual{Credit: decimal.Zero, SettledThrough: lastSettledAt}
	}

	periods := int(elapsed / SettlementPeriod)
	capped := false
	if maxPeriods > 0 && periods > maxPeriods {
		periods = maxPeriods
		capped = true
	}

	perPeriod := deposit.Mul(dailyRate).Div(decimal.NewFromInt(PeriodsPerDay))
	credit := common.TruncateMoney(perPeriod.Mul(decimal.NewFromInt(int64(periods))))

	return Accrual{
		Periods:        periods,
		Credit:         credit,
		SettledThrough: lastSettledAt.Add(time.Duration(periods) * SettlementPeriod),
		Capped:         capped,
	}
}
