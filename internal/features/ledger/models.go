// Package ledger — единственный источник правды о движениях средств.
// models.go описывает структуры записей леджера.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"unifarm.app/ledger/internal/common"
)

// EntryType — тип записи леджера.
type EntryType string

const (
	TypeDeposit        EntryType = "DEPOSIT"         // Пополнение из блокчейна
	TypeWithdrawal     EntryType = "WITHDRAWAL"      // Вывод средств (и списания принципала)
	TypeFarmingReward  EntryType = "FARMING_REWARD"  // Доход фарминга (и boost)
	TypeReferralReward EntryType = "REFERRAL_REWARD" // Реферальная комиссия
	TypeBonus          EntryType = "BONUS"           // Системные бонусы (регистрация и т.п.)
)

// EntryStatus — статус записи.
// Запись создаётся pending и переводится в completed только после того,
// как изменение баланса зафиксировано в той же транзакции БД.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
)

// Ключи metadata. Metadata хранится как JSONB и делает каждую запись
// трассируемой до породившего её события.
const (
	MetaSource        = "source"          // откуда запись: farming, boost, seed, refund...
	MetaLevel         = "level"           // уровень реферальной выплаты (1..20)
	MetaSourceEntryID = "source_entry_id" // id записи, породившей выплату
	MetaSourceUserID  = "source_user_id"  // чей доход распределялся
	MetaPeriods       = "periods"         // сколько 5-минутных периодов оплачено
	MetaTxHash        = "tx_hash"         // исходный хеш внешней транзакции
	MetaDestination   = "destination"     // адрес назначения вывода
)

// Entry — одна запись леджера. После перехода в completed запись неизменяема.
type Entry struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	Type      EntryType       `db:"type" json:"type"`
	Currency  common.Currency `db:"currency" json:"currency"`
	Amount    decimal.Decimal `db:"amount" json:"amount"` // Знаковая: кредит > 0, дебет < 0
	Status    EntryStatus     `db:"status" json:"status"`
	DedupKey  *string         `db:"dedup_key" json:"dedup_key,omitempty"` // Только для DEPOSIT, иначе NULL
	Metadata  map[string]any  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Event — входное событие для записи в леджер.
type Event struct {
	UserID   int64
	Type     EntryType
	Currency common.Currency
	Amount   decimal.Decimal
	TxHash   string // Сырой хеш внешней транзакции (только DEPOSIT)
	Metadata map[string]any
}

// RecordResult — результат атомарной записи в леджер.
type RecordResult struct {
	Entry      *Entry
	NewBalance decimal.Decimal
	// Duplicate == true: запись с таким dedup-ключом уже существовала,
	// Entry указывает на неё, баланс не менялся.
	Duplicate bool
}
