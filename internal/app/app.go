// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт пулы соединений, репозитории, сервисы,
// обработчики и собирает HTTP-сервер с планировщиком.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"unifarm.app/ledger/internal/api"
	"unifarm.app/ledger/internal/config"
	"unifarm.app/ledger/internal/db/postgres"
	"unifarm.app/ledger/internal/db/redis"
	"unifarm.app/ledger/internal/features/account"
	"unifarm.app/ledger/internal/features/farming"
	"unifarm.app/ledger/internal/features/ledger"
	"unifarm.app/ledger/internal/features/referral"
	"unifarm.app/ledger/internal/features/wallet"
	"unifarm.app/ledger/internal/jobs"
	"unifarm.app/ledger/internal/notify"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *api.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	Redis     *goredis.Client
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Redis (кеш балансов + pub/sub). Опционален ===
	var (
		rdb      *goredis.Client
		notifier ledger.Notifier = notify.NoopNotifier{}
		cache    wallet.BalanceCache
	)
	if cfg.RedisEnabled {
		rdb, err = redis.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
		}
		pub := notify.NewPublisher(rdb)
		notifier = pub
		cache = pub
	}

	// === 3. Telegram-алерты. Опциональны ===
	var alerter farming.Alerter = notify.NoopAlerter{}
	if cfg.TelegramBotToken != "" && len(cfg.AlertChatIDs) > 0 {
		botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
		}
		log.Infof("Алерты авторизованы как @%s", botAPI.Self.UserName)
		alerter = notify.NewTelegramAlerter(botAPI, cfg.AlertChatIDs)
	}

	// === 4. Репозитории ===
	ledgerRepo := ledger.NewRepository(pool)
	accountRepo := account.NewRepository(pool)
	farmingRepo := farming.NewRepository(pool)

	// === 5. Сервисы ===
	ledgerService := ledger.NewService(ledgerRepo, notifier, cfg.DedupPrefixLen)
	accountService := account.NewService(accountRepo, ledgerService, cfg)
	referralService := referral.NewService(accountRepo, ledgerService, ledgerRepo, cfg)
	farmingService := farming.NewService(farmingRepo, notifier, referralService, alerter, cfg)
	walletService := wallet.NewService(ledgerService, accountRepo, cache, farmingService)

	// === 6. Обработчики ===
	handlers := api.Handlers{
		Account:  account.NewHandler(accountService),
		Wallet:   wallet.NewHandler(walletService),
		Farming:  farming.NewHandler(farmingService),
		Referral: referral.NewHandler(referralService, accountService, accountRepo),
	}

	// === 7. HTTP-сервер и планировщик ===
	server := api.NewServer(cfg, pool, handlers)
	scheduler := jobs.NewScheduler(farmingService, cfg)

	return &App{
		Server:    server,
		Scheduler: scheduler,
		DB:        pool,
		Redis:     rdb,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Accounts},
		{2, migration002LedgerEntries},
		{3, migration003FarmingState},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    user_id BIGINT PRIMARY KEY CHECK (user_id > 0),
    ref_code VARCHAR(32) UNIQUE NOT NULL,
    referrer_id BIGINT REFERENCES accounts(user_id),
    balance_uni NUMERIC(30, 6) NOT NULL DEFAULT 0 CHECK (balance_uni >= 0),
    balance_ton NUMERIC(30, 6) NOT NULL DEFAULT 0 CHECK (balance_ton >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_accounts_referrer_id ON accounts(referrer_id);
`

var migration002LedgerEntries = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES accounts(user_id),
    type VARCHAR(32) NOT NULL,
    currency VARCHAR(8) NOT NULL,
    amount NUMERIC(30, 6) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    dedup_key VARCHAR(128),
    metadata JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_dedup_key
    ON ledger_entries(dedup_key) WHERE dedup_key IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_ledger_entries_user_id ON ledger_entries(user_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_status ON ledger_entries(status) WHERE status = 'pending';
`

// farming_state намеренно без FK на accounts: исторически таблицы
// заполнялись разными путями, и рассинхронизацию идентификаторов
// ловит аудит планировщика, а не каскад БД.
var migration003FarmingState = `
CREATE TABLE IF NOT EXISTS farming_state (
    user_id BIGINT NOT NULL,
    kind VARCHAR(16) NOT NULL,
    deposit NUMERIC(30, 6) NOT NULL DEFAULT 0 CHECK (deposit >= 0),
    daily_rate NUMERIC(10, 6) NOT NULL,
    last_settled_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_farming_state_active ON farming_state(active) WHERE active;
`
