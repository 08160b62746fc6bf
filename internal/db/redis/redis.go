// Package redis управляет подключением к Redis.
// Redis используется для кеша балансов и pub/sub уведомлений
// об изменении баланса. Сервис полностью работоспособен и без Redis
// (REDIS_ENABLED=false) — кеш и уведомления просто отключаются.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"unifarm.app/ledger/internal/config"
)

// Connect создаёт клиент Redis и проверяет соединение.
func Connect(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       0,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	log.Info("Подключение к Redis установлено")
	return rdb, nil
}
