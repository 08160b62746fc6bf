// Package farming — repository.go выполняет операции с таблицей farming_state.
// Начисление (кредит баланса + запись леджера + сдвиг last_settled_at)
// собрано в одну транзакцию БД: конкурентный вызов для того же
// пользователя ждёт на блокировке строки и видит уже сдвинутый
// таймстамп — ноль периодов, no-op.
package farming

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"unifarm.app/ledger/internal/common"
	"unifarm.app/ledger/internal/features/ledger"
)

// Repository предоставляет методы для работы с состоянием фарминга.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий фарминга.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const stateColumns = `user_id, kind, deposit, daily_rate, last_settled_at, active, created_at, updated_at`

// Get возвращает состояние фарминга пользователя по тарифу.
func (r *Repository) Get(ctx context.Context, userID int64, kind Kind) (*State, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+stateColumns+` FROM farming_state WHERE user_id = $1 AND kind = $2`,
		userID, kind,
	)
	s, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user_id=%d kind=%s: %w", userID, kind, common.ErrFarmingInactive)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения состояния фарминга: %w", err)
	}
	return s, nil
}

// AddDeposit переводит средства с баланса в принципал фарминга.
// Списание баланса, запись леджера и обновление состояния — одна
// транзакция. Для нового состояния отсчёт дохода начинается с "сейчас".
func (r *Repository) AddDeposit(ctx context.Context, userID int64, kind Kind, amount, dailyRate decimal.Decimal) (*ledger.Entry, decimal.Decimal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Сначала блокируем/обновляем состояние фарминга, потом баланс —
	// единый порядок взятия блокировок во всех путях начисления.
	_, err = tx.Exec(ctx, `
		INSERT INTO farming_state (user_id, kind, deposit, daily_rate, last_settled_at, active)
		VALUES ($1, $2, $3, $4, NOW(), TRUE)
		ON CONFLICT (user_id, kind) DO UPDATE
		SET deposit = farming_state.deposit + EXCLUDED.deposit,
		    daily_rate = EXCLUDED.daily_rate,
		    active = TRUE,
		    updated_at = NOW()
	`, userID, kind, amount, dailyRate)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("ошибка обновления состояния фарминга: %w", err)
	}

	newBalance, err := ledger.ApplyDeltaTx(ctx, tx, userID, kind.Currency(), amount.Neg())
	if err != nil {
		return nil, decimal.Zero, err
	}

	entry := &ledger.Entry{
		UserID:   userID,
		Type:     ledger.TypeWithdrawal,
		Currency: kind.Currency(),
		Amount:   amount.Neg(),
		Status:   ledger.StatusCompleted,
		Metadata: map[string]any{ledger.MetaSource: string(kind) + "_deposit"},
	}
	if err := ledger.InsertEntryTx(ctx, tx, entry); err != nil {
		return nil, decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, decimal.Zero, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return entry, newBalance, nil
}

// Settle начисляет доход за прошедшие полные периоды.
//
// Атомарно в одной транзакции:
//  1. Блокируем строку состояния (FOR UPDATE).
//  2. Считаем периоды от last_settled_at до now.
//  3. Кредитуем баланс, вставляем одну запись FARMING_REWARD
//     (metadata.periods — сколько периодов оплачено этой записью).
//  4. Сдвигаем last_settled_at ровно на periods*период.
//
// Ноль периодов — no-op без изменений, entry == nil.
func (r *Repository) Settle(ctx context.Context, userID int64, kind Kind, now time.Time, maxPeriods int) (Accrual, *ledger.Entry, decimal.Decimal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Accrual{}, nil, decimal.Zero, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+stateColumns+` FROM farming_state
		 WHERE user_id = $1 AND kind = $2 AND active FOR UPDATE`,
		userID, kind,
	)
	st, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Accrual{}, nil, decimal.Zero, fmt.Errorf("user_id=%d kind=%s: %w", userID, kind, common.ErrFarmingInactive)
	}
	if err != nil {
		return Accrual{}, nil, decimal.Zero, fmt.Errorf("ошибка чтения состояния фарминга: %w", err)
	}

	acc := Compute(st.Deposit, st.DailyRate, st.LastSettledAt, now, maxPeriods)
	if acc.Periods == 0 {
		// Ничего не прошло — транзакция откатывается без изменений.
		return acc, nil, decimal.Zero, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE farming_state SET last_settled_at = $3, updated_at = NOW()
		WHERE user_id = $1 AND kind = $2
	`, userID, kind, acc.SettledThrough); err != nil {
		return Accrual{}, nil, decimal.Zero, fmt.Errorf("ошибка сдвига last_settled_at: %w", err)
	}

	// Депозит настолько мал, что доход за прошедшие периоды усёкся
	// в ноль: сдвигаем таймстамп без записи и кредита, чтобы не
	// пересчитывать тот же хвост на каждом тике.
	if acc.Credit.IsZero() {
		if err := tx.Commit(ctx); err != nil {
			return Accrual{}, nil, decimal.Zero, fmt.Errorf("ошибка фиксации транзакции: %w", err)
		}
		return acc, nil, decimal.Zero, nil
	}

	newBalance, err := ledger.ApplyDeltaTx(ctx, tx, userID, kind.Currency(), acc.Credit)
	if err != nil {
		return Accrual{}, nil, decimal.Zero, err
	}

	entry := &ledger.Entry{
		UserID:   userID,
		Type:     ledger.TypeFarmingReward,
		Currency: kind.Currency(),
		Amount:   acc.Credit,
		Status:   ledger.StatusCompleted,
		Metadata: map[string]any{
			ledger.MetaSource:  string(kind),
			ledger.MetaPeriods: acc.Periods,
		},
	}
	if err := ledger.InsertEntryTx(ctx, tx, entry); err != nil {
		return Accrual{}, nil, decimal.Zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Accrual{}, nil, decimal.Zero, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return acc, entry, newBalance, nil
}

// ListActive возвращает все активные состояния для обхода планировщиком.
// Join к accounts отфильтровывает строки без аккаунта — их считает
// CountOrphans и это жёсткая ошибка, а не повод молча пропустить.
func (r *Repository) ListActive(ctx context.Context) ([]ActiveRef, error) {
	rows, err := r.db.Query(ctx, `
		SELECT fs.user_id, fs.kind
		FROM farming_state fs
		JOIN accounts a USING (user_id)
		WHERE fs.active AND fs.deposit > 0
		ORDER BY fs.user_id, fs.kind
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения активных фармеров: %w", err)
	}
	defer rows.Close()

	var refs []ActiveRef
	for rows.Next() {
		var ref ActiveRef
		if err := rows.Scan(&ref.UserID, &ref.Kind); err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// CountOrphans считает строки farming_state, у которых нет аккаунта.
// Такие строки невидимы для планировщика — исторически это был баг
// рассинхронизации типов идентификаторов между таблицами, и он должен
// всплывать как ошибка схемы, а не тихо съедать чьи-то начисления.
func (r *Repository) CountOrphans(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM farming_state fs
		LEFT JOIN accounts a USING (user_id)
		WHERE a.user_id IS NULL
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка аудита идентификаторов: %w", err)
	}
	return n, nil
}

func scanState(row pgx.Row) (*State, error) {
	var s State
	err := row.Scan(
		&s.UserID, &s.Kind, &s.Deposit, &s.DailyRate,
		&s.LastSettledAt, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
