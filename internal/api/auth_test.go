package api

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
)

// encodeArgon2id строит хеш в том же формате, что scripts/generate_hash.go.
func encodeArgon2id(t *testing.T, password string) string {
	t.Helper()

	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)

	var (
		memory      uint32 = 65536
		iterations  uint32 = 3
		parallelism uint8  = 2
	)
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, 32)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func TestVerifyArgon2id_CorrectPassword(t *testing.T) {
	encoded := encodeArgon2id(t, "секретный-пароль")

	assert.True(t, verifyArgon2id("секретный-пароль", encoded))
	assert.False(t, verifyArgon2id("другой-пароль", encoded))
	assert.False(t, verifyArgon2id("", encoded))
}

func TestVerifyArgon2id_MalformedHash(t *testing.T) {
	assert.False(t, verifyArgon2id("пароль", ""))
	assert.False(t, verifyArgon2id("пароль", "not-a-hash"))
	assert.False(t, verifyArgon2id("пароль", "$argon2id$v=19$broken"))
	assert.False(t, verifyArgon2id("пароль", "$argon2id$v=19$m=65536,t=3,p=2$!!!$AAAA"))
}

func TestAdminAuth_BlocksAfterFailures(t *testing.T) {
	auth := NewAdminAuth(encodeArgon2id(t, "пароль"))
	ip := "10.0.0.1"

	for i := 0; i < maxAuthAttempts; i++ {
		assert.False(t, auth.blocked(ip), "попытка %d", i)
		auth.recordFailure(ip)
	}
	assert.True(t, auth.blocked(ip))

	// Другой клиент не задет блокировкой.
	assert.False(t, auth.blocked("10.0.0.2"))
}
