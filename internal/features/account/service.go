// Package account — service.go содержит бизнес-логику аккаунтов:
// регистрация с начальным бонусом, однократная привязка реферера,
// генерация реферальных кодов.
package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"unifarm.app/ledger/internal/common"
	"unifarm.app/ledger/internal/config"
	"unifarm.app/ledger/internal/features/ledger"
)

// Store — операции репозитория аккаунтов, нужные сервису.
type Store interface {
	Create(ctx context.Context, userID int64, refCode string) error
	GetByUserID(ctx context.Context, userID int64) (*Account, error)
	GetByRefCode(ctx context.Context, refCode string) (*Account, error)
	SetReferrer(ctx context.Context, userID, referrerID int64, maxDepth int) error
	ReferrerOf(ctx context.Context, userID int64) (*int64, error)
}

// Service управляет аккаунтами.
type Service struct {
	repo   Store
	ledger *ledger.Service
	cfg    *config.Config
}

// NewService создаёт новый сервис аккаунтов.
func NewService(repo Store, ledgerService *ledger.Service, cfg *config.Config) *Service {
	return &Service{
		repo:   repo,
		ledger: ledgerService,
		cfg:    cfg,
	}
}

// Register создаёт аккаунт, начисляет стартовый бонус и, если передан
// чужой реферальный код, привязывает реферера.
//
// Реферер назначается только здесь, при создании аккаунта, и навсегда.
func (s *Service) Register(ctx context.Context, userID int64, inviterCode string) (*Account, error) {
	refCode, err := GenerateRefCode(userID)
	if err != nil {
		return nil, fmt.Errorf("генерация реферального кода: %w", err)
	}

	if err := s.repo.Create(ctx, userID, refCode); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"ref_code": refCode,
	}).Info("Аккаунт зарегистрирован")

	// Стартовый бонус — обычная запись леджера: баланс никогда не
	// меняется мимо леджера, даже на регистрации.
	if s.cfg.SeedBalanceUNI.IsPositive() {
		if _, _, err := s.ledger.Record(ctx, ledger.Event{
			UserID:   userID,
			Type:     ledger.TypeBonus,
			Currency: common.CurrencyUNI,
			Amount:   s.cfg.SeedBalanceUNI,
			Metadata: map[string]any{ledger.MetaSource: "seed"},
		}); err != nil {
			return nil, fmt.Errorf("начисление стартового бонуса UNI: %w", err)
		}
	}
	if s.cfg.SeedBalanceTON.IsPositive() {
		if _, _, err := s.ledger.Record(ctx, ledger.Event{
			UserID:   userID,
			Type:     ledger.TypeBonus,
			Currency: common.CurrencyTON,
			Amount:   s.cfg.SeedBalanceTON,
			Metadata: map[string]any{ledger.MetaSource: "seed"},
		}); err != nil {
			return nil, fmt.Errorf("начисление стартового бонуса TON: %w", err)
		}
	}

	if inviterCode != "" {
		if err := s.LinkReferrer(ctx, userID, inviterCode); err != nil {
			// Кривой код не должен ломать регистрацию: аккаунт просто
			// остаётся без атрибуции.
			log.WithError(err).WithField("user_id", userID).
				Warn("Не удалось привязать реферера при регистрации")
		}
	}

	return s.repo.GetByUserID(ctx, userID)
}

// Глубина проверки предков при привязке реферера. Совпадает с глубиной
// выплатной цепочки: более дальнее кольцо на выплаты не влияет.
const maxUplineDepth = 20

// LinkReferrer однократно привязывает реферера по его коду. Привязка,
// замыкающая цепочку (пользователь среди предков пригласившего),
// отклоняется на уровне репозитория.
func (s *Service) LinkReferrer(ctx context.Context, userID int64, inviterCode string) error {
	inviter, err := s.repo.GetByRefCode(ctx, inviterCode)
	if err != nil {
		return err
	}
	if inviter.UserID == userID {
		return common.ErrSelfReferral
	}
	if err := s.ensureNoCycle(ctx, userID, inviter.UserID); err != nil {
		return err
	}

	if err := s.repo.SetReferrer(ctx, userID, inviter.UserID, maxUplineDepth); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"user_id":     userID,
		"referrer_id": inviter.UserID,
	}).Info("Реферер привязан")
	return nil
}

// ensureNoCycle поднимается по предкам пригласившего: если среди них
// есть сам пользователь, привязка замкнула бы цепочку. Тот же инвариант
// повторно держит SQL-условие в SetReferrer, закрывающее гонку.
func (s *Service) ensureNoCycle(ctx context.Context, userID, inviterID int64) error {
	current := inviterID
	for depth := 0; depth < maxUplineDepth; depth++ {
		ref, err := s.repo.ReferrerOf(ctx, current)
		if err != nil {
			if errors.Is(err, common.ErrAccountNotFound) {
				return nil
			}
			return fmt.Errorf("ошибка обхода предков реферера: %w", err)
		}
		if ref == nil {
			return nil
		}
		if *ref == userID {
			return fmt.Errorf("user_id=%d referrer_id=%d: %w", userID, inviterID, common.ErrReferralCycle)
		}
		current = *ref
	}
	return nil
}

// Get возвращает аккаунт.
func (s *Service) Get(ctx context.Context, userID int64) (*Account, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Exists сообщает, зарегистрирован ли аккаунт.
func (s *Service) Exists(ctx context.Context, userID int64) (bool, error) {
	_, err := s.repo.GetByUserID(ctx, userID)
	if errors.Is(err, common.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const refCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateRefCode собирает реферальный код: последние цифры user_id
// плюс случайная часть. Код человекочитаемый (без путающихся символов).
func GenerateRefCode(userID int64) (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("источник случайности недоступен: %w", err)
	}
	for i, b := range buf {
		buf[i] = refCodeAlphabet[int(b)%len(refCodeAlphabet)]
	}
	return fmt.Sprintf("REF%d%s", userID%10000, buf), nil
}
