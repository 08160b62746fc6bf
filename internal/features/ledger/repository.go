// Package ledger — repository.go выполняет все операции с таблицами
// accounts (балансы) и ledger_entries.
//
// Ключевой инвариант: запись леджера и изменение баланса фиксируются
// в ОДНОЙ транзакции БД. Либо происходит и то и другое, либо ничего.
// Сериализация мутаций по одному аккаунту обеспечивается блокировкой
// строки (SELECT ... FOR UPDATE): вторая мутация того же аккаунта ждёт,
// мутации разных аккаунтов идут параллельно.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"unifarm.app/ledger/internal/common"
)

// Repository предоставляет методы для работы с леджером.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий леджера.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const entryColumns = `id, user_id, type, currency, amount, status, dedup_key, metadata, created_at`

// Record атомарно записывает событие в леджер и применяет дельту к балансу.
//
// Поведение:
//   - Запись вставляется со статусом pending. Если dedup-ключ уже занят,
//     вставка не происходит (уникальный индекс на уровне БД закрывает
//     гонку конкурентных доставок) — возвращается существующая запись
//     с флагом Duplicate, баланс не меняется.
//   - Затем в той же транзакции применяется дельта. Недостаток средств —
//     запись фиксируется как failed, баланс не тронут, возвращается
//     ErrInsufficientFunds.
//   - При успехе запись переводится в final (completed, либо pending для
//     выводов, ожидающих подтверждения) и транзакция фиксируется.
//
// Любая ошибка хранилища откатывает транзакцию целиком: частичное
// применение — нарушение корректности, а не допустимая деградация.
func (r *Repository) Record(ctx context.Context, e *Entry, final EntryStatus) (*RecordResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Вставка "insert-if-not-duplicate" одним запросом: проверка и вставка
	// не разнесены на два шага, иначе между ними пролезает второй webhook.
	err = tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (user_id, type, currency, amount, status, dedup_key, metadata)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6)
		ON CONFLICT (dedup_key) WHERE dedup_key IS NOT NULL DO NOTHING
		RETURNING id, created_at
	`, e.UserID, e.Type, e.Currency, e.Amount, e.DedupKey, e.Metadata).Scan(&e.ID, &e.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Конфликт по dedup-ключу: возвращаем уже существующую запись.
		existing, gerr := r.getByDedupKey(ctx, tx, *e.DedupKey)
		if gerr != nil {
			return nil, gerr
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			return nil, fmt.Errorf("ошибка фиксации транзакции: %w", cerr)
		}
		return &RecordResult{Entry: existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка вставки записи леджера: %w", err)
	}
	e.Status = StatusPending

	newBalance, err := ApplyDeltaTx(ctx, tx, e.UserID, e.Currency, e.Amount)
	if errors.Is(err, common.ErrInsufficientFunds) {
		// Баланс не тронут. Запись остаётся в истории как failed —
		// это аудиторский след отклонённой операции.
		if _, uerr := tx.Exec(ctx,
			`UPDATE ledger_entries SET status = 'failed' WHERE id = $1`, e.ID,
		); uerr != nil {
			return nil, fmt.Errorf("ошибка пометки записи failed: %w", uerr)
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			return nil, fmt.Errorf("ошибка фиксации транзакции: %w", cerr)
		}
		e.Status = StatusFailed
		return nil, common.ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE ledger_entries SET status = $2 WHERE id = $1`, e.ID, final,
	); err != nil {
		return nil, fmt.Errorf("ошибка финализации записи: %w", err)
	}
	e.Status = final

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return &RecordResult{Entry: e, NewBalance: newBalance}, nil
}

// ApplyDeltaTx применяет дельту к балансу аккаунта внутри внешней транзакции.
// Блокирует строку аккаунта (FOR UPDATE), проверка неотрицательности и запись
// происходят под одной блокировкой — TOCTOU-гонки нет.
//
// Используется и другими репозиториями (фарминг), которым нужно изменить
// баланс в собственной транзакционной границе.
func ApplyDeltaTx(ctx context.Context, tx pgx.Tx, userID int64, cur common.Currency, delta decimal.Decimal) (decimal.Decimal, error) {
	var balanceUNI, balanceTON decimal.Decimal
	err := tx.QueryRow(ctx,
		`SELECT balance_uni, balance_ton FROM accounts WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&balanceUNI, &balanceTON)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("user_id=%d: %w", userID, common.ErrAccountNotFound)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка чтения баланса: %w", err)
	}

	current := balanceUNI
	column := "balance_uni"
	if cur == common.CurrencyTON {
		current = balanceTON
		column = "balance_ton"
	}

	newBalance := current.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, common.ErrInsufficientFunds
	}

	// column — одно из двух фиксированных имён, не пользовательский ввод.
	query := fmt.Sprintf(
		`UPDATE accounts SET %s = $2, updated_at = NOW() WHERE user_id = $1`, column,
	)
	if _, err := tx.Exec(ctx, query, userID, newBalance); err != nil {
		return decimal.Zero, fmt.Errorf("ошибка обновления баланса: %w", err)
	}
	return newBalance, nil
}

// InsertEntryTx вставляет запись леджера внутри внешней транзакции.
// Для репозиториев, которые собирают собственную транзакционную границу
// (начисление фарминга: кредит + запись + сдвиг таймстампа одним коммитом).
func InsertEntryTx(ctx context.Context, tx pgx.Tx, e *Entry) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (user_id, type, currency, amount, status, dedup_key, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, e.UserID, e.Type, e.Currency, e.Amount, e.Status, e.DedupKey, e.Metadata).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка вставки записи леджера: %w", err)
	}
	return nil
}

// Finalize переводит pending-запись в completed (подтверждение вывода).
func (r *Repository) Finalize(ctx context.Context, id int64) (*Entry, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE ledger_entries SET status = 'completed'
		WHERE id = $1 AND status = 'pending'
		RETURNING `+entryColumns,
		id,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.classifyFinalizeMiss(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка подтверждения записи %d: %w", id, err)
	}
	return e, nil
}

// RejectRefund отклоняет pending-вывод: возвращает средства на баланс
// и помечает запись failed. Возврат и пометка — одна транзакция.
// Вторым значением возвращается баланс после возврата.
func (r *Repository) RejectRefund(ctx context.Context, id int64) (*Entry, decimal.Decimal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, decimal.Zero, fmt.Errorf("id=%d: %w", id, common.ErrEntryNotFound)
	}
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("ошибка чтения записи %d: %w", id, err)
	}
	if e.Status != StatusPending {
		return nil, decimal.Zero, fmt.Errorf("id=%d: %w", id, common.ErrEntryNotPending)
	}

	// Сумма вывода отрицательная, компенсация — её отрицание.
	newBalance, err := ApplyDeltaTx(ctx, tx, e.UserID, e.Currency, e.Amount.Neg())
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("ошибка возврата средств: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE ledger_entries SET status = 'failed' WHERE id = $1`, id,
	); err != nil {
		return nil, decimal.Zero, fmt.Errorf("ошибка пометки записи failed: %w", err)
	}
	e.Status = StatusFailed

	if err := tx.Commit(ctx); err != nil {
		return nil, decimal.Zero, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return e, newBalance, nil
}

// GetByID возвращает запись леджера по id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id,
	)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("id=%d: %w", id, common.ErrEntryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения записи %d: %w", id, err)
	}
	return e, nil
}

// ListByUser возвращает страницу истории пользователя.
// Курсорная пагинация по id: cursor == 0 — первая страница, дальше
// передаётся id последней полученной записи.
func (r *Repository) ListByUser(ctx context.Context, userID, cursor int64, limit int) ([]*Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE user_id = $1 AND ($2 = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`, userID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения истории: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumByType возвращает сумму completed-записей пользователя по типу
// и валюте. COALESCE даёт ноль при пустой выборке.
func (r *Repository) SumByType(ctx context.Context, userID int64, typ EntryType, cur common.Currency) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE user_id = $1 AND type = $2 AND currency = $3 AND status = 'completed'
	`, userID, typ, cur).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка суммирования записей: %w", err)
	}
	return sum, nil
}

func (r *Repository) getByDedupKey(ctx context.Context, tx pgx.Tx, key string) (*Entry, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE dedup_key = $1`, key,
	)
	e, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения дубликата по dedup-ключу: %w", err)
	}
	return e, nil
}

func (r *Repository) classifyFinalizeMiss(ctx context.Context, id int64) error {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка проверки записи %d: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("id=%d: %w", id, common.ErrEntryNotFound)
	}
	return fmt.Errorf("id=%d: %w", id, common.ErrEntryNotPending)
}

// scanEntry читает запись из строки результата (pgx.Row или pgx.Rows).
func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.UserID, &e.Type, &e.Currency, &e.Amount,
		&e.Status, &e.DedupKey, &e.Metadata, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
