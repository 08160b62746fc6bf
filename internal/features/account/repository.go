// Package account — repository.go отвечает за все операции с таблицей accounts.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unifarm.app/ledger/internal/common"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const accountColumns = `user_id, ref_code, referrer_id, balance_uni, balance_ton, created_at, updated_at`

// Create регистрирует новый аккаунт с нулевыми балансами.
// Повторная регистрация того же user_id — ErrAccountExists.
func (r *Repository) Create(ctx context.Context, userID int64, refCode string) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO accounts (user_id, ref_code, balance_uni, balance_ton)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, refCode)
	if err != nil {
		return fmt.Errorf("ошибка создания аккаунта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user_id=%d: %w", userID, common.ErrAccountExists)
	}
	return nil
}

// GetByUserID возвращает аккаунт пользователя.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID,
	)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения аккаунта: %w", err)
	}
	return a, nil
}

// GetByRefCode находит владельца реферального кода.
func (r *Repository) GetByRefCode(ctx context.Context, refCode string) (*Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE ref_code = $1`, refCode,
	)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ref_code=%q: %w", refCode, common.ErrRefCodeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска по реферальному коду: %w", err)
	}
	return a, nil
}

// SetReferrer назначает реферера. Назначение происходит не более одного
// раза: условие referrer_id IS NULL прямо в UPDATE закрывает гонку двух
// конкурентных привязок. Привязка, которая сделала бы пользователя
// собственным предком (цепочка referrer_id ведёт от пригласившего
// обратно к нему), отклоняется тем же запросом: предки пригласившего
// собираются рекурсивным CTE вглубь до maxDepth.
func (r *Repository) SetReferrer(ctx context.Context, userID, referrerID int64, maxDepth int) error {
	tag, err := r.db.Exec(ctx, `
		WITH RECURSIVE upline AS (
			SELECT user_id, referrer_id, 1 AS depth
			FROM accounts WHERE user_id = $2
			UNION ALL
			SELECT a.user_id, a.referrer_id, u.depth + 1
			FROM accounts a
			JOIN upline u ON a.user_id = u.referrer_id
			WHERE u.depth < $3
		)
		UPDATE accounts SET referrer_id = $2, updated_at = NOW()
		WHERE user_id = $1 AND referrer_id IS NULL
		  AND NOT EXISTS (SELECT 1 FROM upline WHERE user_id = $1)
	`, userID, referrerID, maxDepth)
	if err != nil {
		return fmt.Errorf("ошибка назначения реферера: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainSetReferrerRefusal(ctx, userID, referrerID)
	}
	return nil
}

// explainSetReferrerRefusal выясняет, почему UPDATE не тронул ни строки:
// аккаунта нет, реферер уже назначен или привязка замкнула бы цепочку.
func (r *Repository) explainSetReferrerRefusal(ctx context.Context, userID, referrerID int64) error {
	var referrer *int64
	err := r.db.QueryRow(ctx,
		`SELECT referrer_id FROM accounts WHERE user_id = $1`, userID,
	).Scan(&referrer)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("user_id=%d: %w", userID, common.ErrAccountNotFound)
	}
	if err != nil {
		return fmt.Errorf("ошибка проверки аккаунта: %w", err)
	}
	if referrer != nil {
		return fmt.Errorf("user_id=%d: %w", userID, common.ErrReferrerAlreadySet)
	}
	return fmt.Errorf("user_id=%d referrer_id=%d: %w", userID, referrerID, common.ErrReferralCycle)
}

// ReferrerOf возвращает referrer_id пользователя (nil — без атрибуции).
// Это один шаг обхода реферальной цепочки.
func (r *Repository) ReferrerOf(ctx context.Context, userID int64) (*int64, error) {
	var referrerID *int64
	err := r.db.QueryRow(ctx,
		`SELECT referrer_id FROM accounts WHERE user_id = $1`, userID,
	).Scan(&referrerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения реферера: %w", err)
	}
	return referrerID, nil
}

// CountReferralsByLevel считает приглашённых по уровням вглубь до
// maxDepth. Ограничение глубины обязательно: оно же защищает рекурсию
// от циклов в повреждённых данных.
func (r *Repository) CountReferralsByLevel(ctx context.Context, userID int64, maxDepth int) (map[int]int64, error) {
	rows, err := r.db.Query(ctx, `
		WITH RECURSIVE downline AS (
			SELECT user_id, 1 AS level FROM accounts WHERE referrer_id = $1
			UNION ALL
			SELECT a.user_id, d.level + 1
			FROM accounts a
			JOIN downline d ON a.referrer_id = d.user_id
			WHERE d.level < $2
		)
		SELECT level, COUNT(*) FROM downline GROUP BY level ORDER BY level
	`, userID, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта рефералов по уровням: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var level int
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.UserID, &a.RefCode, &a.ReferrerID,
		&a.BalanceUNI, &a.BalanceTON,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
