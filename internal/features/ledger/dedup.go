// Package ledger — dedup.go выводит dedup-ключ депозита из хеша
// внешней транзакции.
//
// Один и тот же он-чейн перевод наблюдается несколькими путями доставки
// (webhook кошелька, ручная сверка, повторная доставка), и наблюдения
// различаются хвостовыми байтами: к BOC дописывается суффикс вида
// "_<timestamp>_<random>". Поэтому ключ строится не из сырой строки,
// а из канонизированного префикса фиксированной длины — близкие
// наблюдения одной транзакции схлопываются в один ключ.
package ledger

import (
	"regexp"
	"strings"
)

// bocSuffixRe — суффикс наблюдения: "_" + 13 цифр unix-миллисекунд + "_" + id.
var bocSuffixRe = regexp.MustCompile(`_\d{13}_[a-z0-9]+$`)

// DedupKey возвращает канонический dedup-ключ для хеша внешней транзакции.
// Пустой вход даёт пустой ключ (запись будет без дедупликации).
//
// Шаги канонизации:
//  1. Обрезаем пробелы.
//  2. Для BOC-подобных хешей (префикс "te6") срезаем суффикс наблюдения.
//  3. Усекаем до prefixLen символов.
func DedupKey(txHash string, prefixLen int) string {
	s := strings.TrimSpace(txHash)
	if s == "" {
		return ""
	}

	if strings.HasPrefix(s, "te6") {
		s = bocSuffixRe.ReplaceAllString(s, "")
	}

	if prefixLen > 0 && len(s) > prefixLen {
		s = s[:prefixLen]
	}
	return s
}
