package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifarm.app/ledger/internal/common"
)

// fakeStore записывает вызовы и отдаёт заранее заданные результаты.
type fakeStore struct {
	lastEntry  *Entry
	lastFinal  EntryStatus
	result     *RecordResult
	recordErr  error
	finalized  []int64
	rejectErr  error
	listLimits []int
}

func (f *fakeStore) Record(_ context.Context, e *Entry, final EntryStatus) (*RecordResult, error) {
	f.lastEntry = e
	f.lastFinal = final
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	if f.result != nil {
		return f.result, nil
	}
	e.ID = 1
	e.Status = final
	return &RecordResult{Entry: e, NewBalance: decimal.NewFromInt(100)}, nil
}

func (f *fakeStore) Finalize(_ context.Context, id int64) (*Entry, error) {
	f.finalized = append(f.finalized, id)
	return &Entry{ID: id, Status: StatusCompleted}, nil
}

func (f *fakeStore) RejectRefund(_ context.Context, id int64) (*Entry, decimal.Decimal, error) {
	if f.rejectErr != nil {
		return nil, decimal.Zero, f.rejectErr
	}
	e := &Entry{
		ID:       id,
		UserID:   7,
		Currency: common.CurrencyUNI,
		Amount:   decimal.NewFromInt(-5),
		Status:   StatusFailed,
	}
	return e, decimal.NewFromInt(55), nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*Entry, error) {
	return &Entry{ID: id}, nil
}

func (f *fakeStore) ListByUser(_ context.Context, _, _ int64, limit int) ([]*Entry, error) {
	f.listLimits = append(f.listLimits, limit)
	return nil, nil
}

type fakeNotifier struct {
	calls []struct {
		userID  int64
		cur     common.Currency
		balance decimal.Decimal
	}
}

func (f *fakeNotifier) BalanceChanged(userID int64, cur common.Currency, balance decimal.Decimal) {
	f.calls = append(f.calls, struct {
		userID  int64
		cur     common.Currency
		balance decimal.Decimal
	}{userID, cur, balance})
}

func TestServiceRecord_Completed(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, 64)

	entry, duplicate, err := svc.Record(context.Background(), Event{
		UserID:   7,
		Type:     TypeFarmingReward,
		Currency: common.CurrencyUNI,
		Amount:   decimal.RequireFromString("1.23456789"),
	})
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, StatusCompleted, store.lastFinal)
	// Сумма усекается до 6 знаков до записи.
	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("1.234567")))
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, int64(7), notifier.calls[0].userID)
}

func TestServiceRecord_DerivesDedupKeyForDeposits(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, 64)

	_, _, err := svc.Record(context.Background(), Event{
		UserID:   7,
		Type:     TypeDeposit,
		Currency: common.CurrencyTON,
		Amount:   decimal.NewFromInt(3),
		TxHash:   "te6ccgeb_1717171717171_x7f3k9",
	})
	require.NoError(t, err)
	require.NotNil(t, store.lastEntry.DedupKey)
	assert.Equal(t, "te6ccgeb", *store.lastEntry.DedupKey)
	assert.Equal(t, "te6ccgeb_1717171717171_x7f3k9", store.lastEntry.Metadata[MetaTxHash])
}

func TestServiceRecord_NoDedupKeyForOtherTypes(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, 64)

	_, _, err := svc.Record(context.Background(), Event{
		UserID:   7,
		Type:     TypeBonus,
		Currency: common.CurrencyUNI,
		Amount:   decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Nil(t, store.lastEntry.DedupKey)
}

func TestServiceRecord_DuplicateIsSuccess(t *testing.T) {
	existing := &Entry{ID: 42, Status: StatusCompleted}
	store := &fakeStore{result: &RecordResult{Entry: existing, Duplicate: true}}
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, 64)

	entry, duplicate, err := svc.Record(context.Background(), Event{
		UserID:   7,
		Type:     TypeDeposit,
		Currency: common.CurrencyUNI,
		Amount:   decimal.NewFromInt(5),
		TxHash:   "te6abc",
	})
	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, int64(42), entry.ID)
	// Повтор не меняет баланс — уведомления нет.
	assert.Empty(t, notifier.calls)
}

func TestServiceRecord_ZeroAmount(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, 64)

	_, _, err := svc.Record(context.Background(), Event{
		UserID:   7,
		Type:     TypeDeposit,
		Currency: common.CurrencyUNI,
		Amount:   decimal.Zero,
	})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestServiceRecord_UnknownCurrency(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, 64)

	_, _, err := svc.Record(context.Background(), Event{
		UserID:   7,
		Type:     TypeDeposit,
		Currency: common.Currency("BTC"),
		Amount:   decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, common.ErrInvalidCurrency)
}

func TestServiceRecord_InsufficientFunds(t *testing.T) {
	store := &fakeStore{recordErr: common.ErrInsufficientFunds}
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, 64)

	_, _, err := svc.Record(context.Background(), Event{
		UserID:   7,
		Type:     TypeWithdrawal,
		Currency: common.CurrencyUNI,
		Amount:   decimal.NewFromInt(-1000),
	})
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)
	assert.Empty(t, notifier.calls)
}

func TestServiceRecordHold_Pending(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, 64)

	_, _, err := svc.RecordHold(context.Background(), Event{
		UserID:   7,
		Type:     TypeWithdrawal,
		Currency: common.CurrencyTON,
		Amount:   decimal.NewFromInt(-2),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, store.lastFinal)
}

func TestServiceReject_NotifiesRefundedBalance(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	svc := NewService(store, notifier, 64)

	entry, err := svc.Reject(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, entry.Status)
	require.Len(t, notifier.calls, 1)
	assert.True(t, notifier.calls[0].balance.Equal(decimal.NewFromInt(55)))
}

func TestServiceEntry_ById(t *testing.T) {
	svc := NewService(&fakeStore{}, nil, 64)

	entry, err := svc.Entry(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), entry.ID)
}

func TestServiceHistory_ClampsLimit(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, 64)

	_, _ = svc.History(context.Background(), 7, 0, 0)
	_, _ = svc.History(context.Background(), 7, 0, 500)
	_, _ = svc.History(context.Background(), 7, 0, 50)

	assert.Equal(t, []int{20, 20, 50}, store.listLimits)
}
