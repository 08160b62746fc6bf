package referral

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifarm.app/ledger/internal/common"
	"unifarm.app/ledger/internal/config"
	"unifarm.app/ledger/internal/features/ledger"
)

// fakeRefs — реферальная цепочка в памяти: user -> referrer.
type fakeRefs struct {
	parents map[int64]int64
	missing map[int64]bool
}

func (f *fakeRefs) ReferrerOf(_ context.Context, userID int64) (*int64, error) {
	if f.missing[userID] {
		return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrAccountNotFound)
	}
	p, ok := f.parents[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type recordedPayout struct {
	userID int64
	amount decimal.Decimal
	level  any
}

type fakeRecorder struct {
	payouts []recordedPayout
	failFor map[int64]bool
	nextID  int64
}

func (f *fakeRecorder) Record(_ context.Context, ev ledger.Event) (*ledger.Entry, bool, error) {
	if f.failFor[ev.UserID] {
		return nil, false, errors.New("хранилище недоступно")
	}
	f.payouts = append(f.payouts, recordedPayout{
		userID: ev.UserID,
		amount: ev.Amount,
		level:  ev.Metadata[ledger.MetaLevel],
	})
	f.nextID++
	return &ledger.Entry{ID: f.nextID}, false, nil
}

func newTestService(refs *fakeRefs, rec *fakeRecorder) *Service {
	cfg := &config.Config{ReferralBaseRate: decimal.RequireFromString("0.05")}
	return NewService(refs, rec, nil, cfg)
}

func TestDistribute_TwoLevelChain(t *testing.T) {
	// 3 пригласил 2, 2 пригласил 1: доход у 3 поднимается к 2 и 1.
	refs := &fakeRefs{parents: map[int64]int64{3: 2, 2: 1}}
	rec := &fakeRecorder{}
	svc := newTestService(refs, rec)

	err := svc.Distribute(context.Background(), 3, 100, common.CurrencyUNI, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, rec.payouts, 2)

	// База = 10 * 0.05 = 0.5. Уровень 1 — 100% базы, уровень 2 — 20%.
	assert.Equal(t, int64(2), rec.payouts[0].userID)
	assert.True(t, rec.payouts[0].amount.Equal(decimal.RequireFromString("0.5")),
		"уровень 1: %s", rec.payouts[0].amount)
	assert.Equal(t, 1, rec.payouts[0].level)

	assert.Equal(t, int64(1), rec.payouts[1].userID)
	assert.True(t, rec.payouts[1].amount.Equal(decimal.RequireFromString("0.1")),
		"уровень 2: %s", rec.payouts[1].amount)
	assert.Equal(t, 2, rec.payouts[1].level)
}

func TestDistribute_NoReferrer(t *testing.T) {
	refs := &fakeRefs{parents: map[int64]int64{}}
	rec := &fakeRecorder{}
	svc := newTestService(refs, rec)

	err := svc.Distribute(context.Background(), 3, 100, common.CurrencyUNI, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.Empty(t, rec.payouts)
}

func TestDistribute_BrokenChainStops(t *testing.T) {
	// Реферер уровня 2 не существует: цепочка обрывается без ошибки,
	// уровень 1 своё получил.
	refs := &fakeRefs{
		parents: map[int64]int64{3: 2, 2: 99},
		missing: map[int64]bool{2: true},
	}
	rec := &fakeRecorder{}
	svc := newTestService(refs, rec)

	err := svc.Distribute(context.Background(), 3, 100, common.CurrencyUNI, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.Len(t, rec.payouts, 1)
	assert.Equal(t, int64(2), rec.payouts[0].userID)
}

func TestDistribute_CycleStopsAtRepeat(t *testing.T) {
	// Повреждённые данные: 1 и 2 ссылаются друг на друга. Обход
	// останавливается на первом повторе — источник сам себе не платит.
	refs := &fakeRefs{parents: map[int64]int64{1: 2, 2: 1}}
	rec := &fakeRecorder{}
	svc := newTestService(refs, rec)

	err := svc.Distribute(context.Background(), 1, 100, common.CurrencyUNI, decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.Len(t, rec.payouts, 1)
	assert.Equal(t, int64(2), rec.payouts[0].userID)
	for _, p := range rec.payouts {
		assert.NotEqual(t, int64(1), p.userID, "источник получил собственную награду")
	}
}

func TestDistribute_LongCycleStopsAtRepeat(t *testing.T) {
	// Цикл длиннее одного ребра: 1 -> 2 -> 3 -> 1. Выплаты получают
	// только 2 и 3, после чего обход обрывается.
	refs := &fakeRefs{parents: map[int64]int64{1: 2, 2: 3, 3: 1}}
	rec := &fakeRecorder{}
	svc := newTestService(refs, rec)

	err := svc.Distribute(context.Background(), 1, 100, common.CurrencyUNI, decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.Len(t, rec.payouts, 2)
	assert.Equal(t, int64(2), rec.payouts[0].userID)
	assert.Equal(t, int64(3), rec.payouts[1].userID)
}

func TestDistribute_FailedPayoutSkipsAndContinues(t *testing.T) {
	refs := &fakeRefs{parents: map[int64]int64{4: 3, 3: 2, 2: 1}}
	rec := &fakeRecorder{failFor: map[int64]bool{3: true}}
	svc := newTestService(refs, rec)

	err := svc.Distribute(context.Background(), 4, 100, common.CurrencyUNI, decimal.NewFromInt(100))
	// Сбой уровня 1 не мешает выплатам уровней 2 и 3, но виден вызывающему.
	require.Error(t, err)
	require.Len(t, rec.payouts, 2)
	assert.Equal(t, int64(2), rec.payouts[0].userID)
	assert.Equal(t, int64(1), rec.payouts[1].userID)
}

func TestDistribute_ZeroAmountIsNoop(t *testing.T) {
	refs := &fakeRefs{parents: map[int64]int64{3: 2}}
	rec := &fakeRecorder{}
	svc := newTestService(refs, rec)

	require.NoError(t, svc.Distribute(context.Background(), 3, 100, common.CurrencyUNI, decimal.Zero))
	assert.Empty(t, rec.payouts)
}

func TestDistribute_TruncatesPayouts(t *testing.T) {
	refs := &fakeRefs{parents: map[int64]int64{3: 2}}
	rec := &fakeRecorder{}
	svc := newTestService(refs, rec)

	// База = 0.0000019*0.05 = 0.000000095 — усечение в ноль, выплаты нет.
	err := svc.Distribute(context.Background(), 3, 100, common.CurrencyUNI,
		decimal.RequireFromString("0.0000019"))
	require.NoError(t, err)
	assert.Empty(t, rec.payouts)
}
