// Package referral раздаёт многоуровневые награды от дохода фарминга.
// models.go задаёт таблицу долей по уровням.
package referral

import "github.com/shopspring/decimal"

// MaxDepth — глубина реферальной цепочки.
const MaxDepth = 20

// Schedule — доля реферальной базы по уровню, 1-индексация.
// Уровень 1 получает 100% базы, дальше доля линейно падает от 20%
// до пола в 2%: уровень L — max(2, 22-L) процентов.
type Schedule [MaxDepth + 1]decimal.Decimal

// DefaultSchedule строит стандартную таблицу долей.
func DefaultSchedule() Schedule {
	var s Schedule
	s[1] = decimal.NewFromInt(1)
	for lvl := 2; lvl <= MaxDepth; lvl++ {
		pct := 22 - lvl
		if pct < 2 {
			pct = 2
		}
		s[lvl] = decimal.NewFromInt(int64(pct)).Div(decimal.NewFromInt(100))
	}
	return s
}

// Share возвращает долю для уровня; вне диапазона — ноль.
func (s Schedule) Share(level int) decimal.Decimal {
	if level < 1 || level > MaxDepth {
		return decimal.Zero
	}
	return s[level]
}

// Stats — сводка реферальной сети пользователя.
type Stats struct {
	UserID         int64           `json:"user_id"`
	RefCode        string          `json:"ref_code"`
	DirectCount    int64           `json:"direct_count"`
	LevelCounts    map[int]int64   `json:"level_counts"`
	TotalEarnedUNI decimal.Decimal `json:"total_earned_uni"`
	TotalEarnedTON decimal.Decimal `json:"total_earned_ton"`
}
