// Package jobs содержит планировщик периодического начисления дохода.
// Каждые 5 минут обходим все активные состояния фарминга и досчитываем
// пропущенные периоды. Планировщик не хранит состояние в памяти:
// сколько причитается, целиком определяет last_settled_at в БД,
// поэтому рестарт в любой момент безопасен.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"unifarm.app/ledger/internal/config"
	"unifarm.app/ledger/internal/features/farming"
)

// Scheduler запускает тики начисления по крону.
type Scheduler struct {
	cron    *cron.Cron
	farming *farming.Service
	cfg     *config.Config

	// защита от наложения тиков при медленной БД
	running sync.Mutex
}

// NewScheduler создаёт планировщик начислений.
func NewScheduler(farmingService *farming.Service, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		farming: farmingService,
		cfg:     cfg,
	}
}

// Start регистрирует задачи и запускает крон.
func (s *Scheduler) Start() error {
	// Тик начисления: каждые 5 минут.
	if _, err := s.cron.AddFunc("*/5 * * * *", func() {
		s.RunTick(context.Background())
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Info("Планировщик начислений запущен")
	return nil
}

// Stop останавливает крон и дожидается завершения текущего тика.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running.Lock()
	s.running.Unlock()
	log.Info("Планировщик начислений остановлен")
}

// RunTick выполняет один проход начисления по всем активным состояниям.
func (s *Scheduler) RunTick(ctx context.Context) {
	if !s.running.TryLock() {
		log.Warn("Предыдущий тик начисления ещё не завершён, пропускаем")
		return
	}
	defer s.running.Unlock()

	started := time.Now()

	// Аудит согласованности схемы перед начислением: строки фарминга
	// без аккаунта означают рассинхронизацию идентификаторов, и платить
	// при ней нельзя.
	if err := s.farming.AuditOrphans(ctx); err != nil {
		log.WithError(err).Error("Тик начисления прерван аудитом схемы")
		return
	}

	refs, err := s.farming.ListActive(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения активных состояний фарминга")
		return
	}
	if len(refs) == 0 {
		return
	}

	now := time.Now()
	var (
		mu      sync.Mutex
		settled int
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.AccrualWorkers)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			acc, err := s.farming.Settle(gctx, ref.UserID, ref.Kind, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Ошибка одного аккаунта не валит тик целиком.
				failed++
				log.WithError(err).WithFields(log.Fields{
					"user_id": ref.UserID,
					"kind":    ref.Kind,
				}).Error("Ошибка начисления")
				return nil
			}
			if acc.Periods > 0 {
				settled++
			}
			return nil
		})
	}
	_ = g.Wait()

	log.WithFields(log.Fields{
		"total":    len(refs),
		"settled":  settled,
		"failed":   failed,
		"duration": time.Since(started).String(),
	}).Info("Тик начисления завершён")
}
