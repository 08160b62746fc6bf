// auth.go — авторизация административных маршрутов по паролю Argon2id.
// Пароль передаётся заголовком X-Admin-Password и сверяется с хешем из
// конфигурации. Защита от brute-force: 3 неудачные попытки с одного IP —
// блокировка на час.
package api

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"unifarm.app/ledger/internal/api/respond"
	"unifarm.app/ledger/internal/common"
)

const (
	adminPasswordHeader = "X-Admin-Password"
	maxAuthAttempts     = 3
	authAttemptsWindow  = 1 * time.Hour
)

// AdminAuth проверяет пароль администратора на каждом запросе.
type AdminAuth struct {
	passwordHash string

	mu       sync.Mutex
	failures map[string][]time.Time
}

// NewAdminAuth создаёт проверку админ-доступа по хешу Argon2id.
func NewAdminAuth(passwordHash string) *AdminAuth {
	return &AdminAuth{
		passwordHash: passwordHash,
		failures:     make(map[string][]time.Time),
	}
}

// Middleware возвращает gin-обёртку авторизации.
func (a *AdminAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if a.blocked(ip) {
			log.WithField("ip", ip).Warn("Админ-доступ заблокирован: превышен лимит попыток")
			respond.Error(c, common.ErrTooManyAttempts)
			return
		}

		password := c.GetHeader(adminPasswordHeader)
		if password == "" || !verifyArgon2id(password, a.passwordHash) {
			a.recordFailure(ip)
			log.WithField("ip", ip).Warn("Неудачная попытка админ-авторизации")
			respond.Error(c, common.ErrNotAdmin)
			return
		}
		c.Next()
	}
}

func (a *AdminAuth) blocked(ip string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-authAttemptsWindow)
	var recent []time.Time
	for _, t := range a.failures[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) == 0 {
		delete(a.failures, ip)
	} else {
		a.failures[ip] = recent
	}
	return len(recent) >= maxAuthAttempts
}

func (a *AdminAuth) recordFailure(ip string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[ip] = append(a.failures[ip], time.Now())
}

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени (защита от timing attack)
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}
