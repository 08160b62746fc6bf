package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupKey_Empty(t *testing.T) {
	assert.Equal(t, "", DedupKey("", 64))
	assert.Equal(t, "", DedupKey("   ", 64))
}

func TestDedupKey_PlainHash(t *testing.T) {
	assert.Equal(t, "abc123", DedupKey("abc123", 64))
	assert.Equal(t, "abc123", DedupKey("  abc123  ", 64))
}

func TestDedupKey_StripsBocSuffix(t *testing.T) {
	base := "te6ccgebaqeaagaaab"
	observed := base + "_1717171717171_x7f3k9"

	assert.Equal(t, base, DedupKey(observed, 64))
	// Два наблюдения одной транзакции с разными суффиксами дают один ключ.
	other := base + "_1717171799999_abc123"
	assert.Equal(t, DedupKey(observed, 64), DedupKey(other, 64))
}

func TestDedupKey_SuffixOnlyForBocHashes(t *testing.T) {
	// Без префикса "te6" суффикс не срезается: это часть самого хеша.
	raw := "deadbeef_1717171717171_x7f3k9"
	assert.Equal(t, raw, DedupKey(raw, 64))
}

func TestDedupKey_ShortSuffixNotStripped(t *testing.T) {
	// 12 цифр вместо 13 — не суффикс наблюдения.
	raw := "te6ccgeb_171717171717_abc"
	assert.Equal(t, raw, DedupKey(raw, 64))
}

func TestDedupKey_TruncatesToPrefixLen(t *testing.T) {
	long := "te6" + strings.Repeat("a", 200)
	key := DedupKey(long, 64)
	assert.Len(t, key, 64)
	assert.Equal(t, long[:64], key)
}

func TestDedupKey_DifferentHashesDifferentKeys(t *testing.T) {
	assert.NotEqual(t, DedupKey("te6aaaa", 64), DedupKey("te6bbbb", 64))
}
