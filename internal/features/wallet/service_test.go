package wallet

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifarm.app/ledger/internal/common"
	"unifarm.app/ledger/internal/features/ledger"
)

type fakeStore struct {
	lastEntry *ledger.Entry
	lastFinal ledger.EntryStatus
}

func (f *fakeStore) Record(_ context.Context, e *ledger.Entry, final ledger.EntryStatus) (*ledger.RecordResult, error) {
	f.lastEntry = e
	f.lastFinal = final
	e.ID = 1
	e.Status = final
	return &ledger.RecordResult{Entry: e, NewBalance: decimal.NewFromInt(10)}, nil
}

func (f *fakeStore) Finalize(_ context.Context, id int64) (*ledger.Entry, error) {
	return &ledger.Entry{ID: id, Status: ledger.StatusCompleted}, nil
}

func (f *fakeStore) RejectRefund(_ context.Context, id int64) (*ledger.Entry, decimal.Decimal, error) {
	return &ledger.Entry{ID: id, Status: ledger.StatusFailed}, decimal.NewFromInt(10), nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*ledger.Entry, error) {
	return &ledger.Entry{ID: id}, nil
}

func (f *fakeStore) ListByUser(context.Context, int64, int64, int) ([]*ledger.Entry, error) {
	return nil, nil
}

func newTestService(store *fakeStore) *Service {
	return NewService(ledger.NewService(store, nil, 64), nil, nil, nil)
}

// Raw-форма TON-адреса: workchain 0 и 32 байта в hex.
var testAddress = "0:" + strings.Repeat("0", 64)

func TestWithdraw_HoldsPending(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	entry, err := svc.Withdraw(context.Background(), 7, common.CurrencyTON,
		decimal.NewFromInt(3), testAddress)
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPending, entry.Status)
	// Сумма вывода пишется отрицательной: баланс удержан сразу.
	assert.True(t, store.lastEntry.Amount.Equal(decimal.NewFromInt(-3)))
	assert.Equal(t, ledger.StatusPending, store.lastFinal)
	assert.Equal(t, testAddress, store.lastEntry.Metadata[ledger.MetaDestination])
}

func TestWithdraw_InvalidAddress(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Withdraw(context.Background(), 7, common.CurrencyTON,
		decimal.NewFromInt(3), "не-адрес")
	assert.ErrorIs(t, err, common.ErrInvalidAddress)
}

func TestWithdraw_InvalidAmount(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Withdraw(context.Background(), 7, common.CurrencyTON,
		decimal.Zero, testAddress)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = svc.Withdraw(context.Background(), 7, common.CurrencyTON,
		decimal.NewFromInt(-1), testAddress)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestDeposit_CompletedWithDedup(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	hash := "te6ccgeb_1717171717171_x7f3k9"
	entry, duplicate, err := svc.Deposit(context.Background(), 7, common.CurrencyUNI,
		decimal.NewFromInt(5), hash)
	require.NoError(t, err)

	assert.False(t, duplicate)
	assert.Equal(t, ledger.StatusCompleted, entry.Status)
	require.NotNil(t, store.lastEntry.DedupKey)
	assert.Equal(t, "te6ccgeb", *store.lastEntry.DedupKey)
}

func TestDeposit_InvalidAmount(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, _, err := svc.Deposit(context.Background(), 7, common.CurrencyUNI,
		decimal.Zero, "te6abc")
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}
