package referral

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedule_Level1IsFullBase(t *testing.T) {
	s := DefaultSchedule()
	assert.True(t, s.Share(1).Equal(decimal.NewFromInt(1)))
}

func TestDefaultSchedule_LinearDecay(t *testing.T) {
	s := DefaultSchedule()

	// Уровень 2 — 20%, дальше минус процент за уровень.
	assert.True(t, s.Share(2).Equal(decimal.RequireFromString("0.2")))
	assert.True(t, s.Share(3).Equal(decimal.RequireFromString("0.19")))
	assert.True(t, s.Share(10).Equal(decimal.RequireFromString("0.12")))
}

func TestDefaultSchedule_FloorAtTwoPercent(t *testing.T) {
	s := DefaultSchedule()

	assert.True(t, s.Share(20).Equal(decimal.RequireFromString("0.02")))
	// Хвост таблицы не проваливается ниже пола.
	for lvl := 2; lvl <= MaxDepth; lvl++ {
		assert.True(t, s.Share(lvl).GreaterThanOrEqual(decimal.RequireFromString("0.02")),
			"уровень %d ниже пола", lvl)
	}
}

func TestDefaultSchedule_NonIncreasing(t *testing.T) {
	s := DefaultSchedule()
	for lvl := 2; lvl < MaxDepth; lvl++ {
		assert.True(t, s.Share(lvl+1).LessThanOrEqual(s.Share(lvl)),
			"доля уровня %d больше доли уровня %d", lvl+1, lvl)
	}
}

func TestSchedule_OutOfRange(t *testing.T) {
	s := DefaultSchedule()
	assert.True(t, s.Share(0).IsZero())
	assert.True(t, s.Share(-1).IsZero())
	assert.True(t, s.Share(MaxDepth+1).IsZero())
}
