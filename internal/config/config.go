// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"ledger"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"unifarm_ledger"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis (кеш баланса + pub/sub уведомления) ---
	RedisHost     string `envconfig:"REDIS_HOST" default:"redis"`
	RedisPort     string `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Telegram-алерты (опционально) ---
	// Токен бота и чат, куда сыпятся алерты планировщика.
	// Пустой токен = алерты только в лог.
	TelegramBotToken   string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramAlertChats string `envconfig:"TELEGRAM_ALERT_CHATS" default:""`
	AlertChatIDs       []int64 `envconfig:"-"` // заполним вручную из TelegramAlertChats

	// --- Ledger ---
	// Начальный баланс нового аккаунта (бонус за регистрацию).
	SeedBalanceUNI decimal.Decimal `envconfig:"SEED_BALANCE_UNI" default:"10"`
	SeedBalanceTON decimal.Decimal `envconfig:"SEED_BALANCE_TON" default:"0"`
	// Длина канонического префикса tx hash для dedup-ключа депозитов.
	DedupPrefixLen int `envconfig:"DEDUP_PREFIX_LEN" default:"64"`

	// --- Farming ---
	// Дневная ставка основного фарминга (доля: 0.01 = 1% в день).
	FarmingDailyRate decimal.Decimal `envconfig:"FARMING_DAILY_RATE" default:"0.01"`
	// Дневная ставка boost-тарифа (покупается за TON).
	BoostDailyRate decimal.Decimal `envconfig:"BOOST_DAILY_RATE" default:"0.02"`
	// Максимум периодов, начисляемых за один Settle (сутки = 288 периодов
	// по 5 минут). Больший хвост — алерт, а не молчаливая выплата.
	AccrualMaxPeriods int `envconfig:"ACCRUAL_MAX_PERIODS" default:"288"`
	// Сколько аккаунтов обрабатываем параллельно за один тик планировщика.
	AccrualWorkers int `envconfig:"ACCRUAL_WORKERS" default:"8"`

	// --- Referral ---
	// Базовая реферальная ставка (доля от суммы награды: 0.05 = 5%).
	ReferralBaseRate decimal.Decimal `envconfig:"REFERRAL_BASE_RATE" default:"0.05"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.AccrualMaxPeriods <= 0 {
		return fmt.Errorf("ACCRUAL_MAX_PERIODS должен быть > 0")
	}
	if c.AccrualWorkers <= 0 {
		return fmt.Errorf("ACCRUAL_WORKERS должен быть > 0")
	}
	if c.DedupPrefixLen <= 0 {
		return fmt.Errorf("DEDUP_PREFIX_LEN должен быть > 0")
	}
	if c.FarmingDailyRate.IsNegative() || c.BoostDailyRate.IsNegative() {
		return fmt.Errorf("ставки фарминга не могут быть отрицательными")
	}
	if c.ReferralBaseRate.IsNegative() || c.ReferralBaseRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("REFERRAL_BASE_RATE должна быть в диапазоне [0, 1]")
	}
	if c.SeedBalanceUNI.IsNegative() || c.SeedBalanceTON.IsNegative() {
		return fmt.Errorf("начальный баланс не может быть отрицательным")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.TelegramAlertChats)
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_ALERT_CHATS parse: %w", err)
	}
	cfg.AlertChatIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
