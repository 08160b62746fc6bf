// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам различать типы проблем
// и возвращать клиенту корректный HTTP-статус.
package common

import "errors"

// Ошибки леджера (записи, балансы)
var (
	// ErrInsufficientFunds — недостаточно средств на счёте
	ErrInsufficientFunds = errors.New("недостаточно средств на счёте")
	// ErrDuplicateDeposit — депозит с таким dedup-ключом уже записан
	ErrDuplicateDeposit = errors.New("депозит уже записан")
	// ErrInvalidAmount — некорректная сумма (ноль или неверный знак)
	ErrInvalidAmount = errors.New("некорректная сумма операции")
	// ErrInvalidCurrency — валюта не UNI и не TON
	ErrInvalidCurrency = errors.New("неизвестная валюта")
	// ErrEntryNotFound — запись леджера не найдена
	ErrEntryNotFound = errors.New("запись леджера не найдена")
	// ErrEntryNotPending — запись уже финализирована (completed/failed)
	ErrEntryNotPending = errors.New("запись леджера уже финализирована")
)

// Ошибки аккаунтов и рефералов
var (
	// ErrAccountNotFound — аккаунт не найден в базе
	ErrAccountNotFound = errors.New("аккаунт не найден")
	// ErrAccountExists — аккаунт с таким user_id уже зарегистрирован
	ErrAccountExists = errors.New("аккаунт уже зарегистрирован")
	// ErrReferrerAlreadySet — реферер назначается один раз и навсегда
	ErrReferrerAlreadySet = errors.New("реферер уже назначен")
	// ErrRefCodeNotFound — реферальный код никому не принадлежит
	ErrRefCodeNotFound = errors.New("реферальный код не найден")
	// ErrSelfReferral — нельзя указать самого себя как реферера
	ErrSelfReferral = errors.New("нельзя быть реферером самому себе")
	// ErrReferralCycle — привязка сделала бы пользователя собственным
	// предком в реферальном дереве
	ErrReferralCycle = errors.New("привязка замкнула бы реферальную цепочку")
)

// Ошибки фарминга
var (
	// ErrFarmingInactive — у пользователя нет активного фарминг-депозита
	ErrFarmingInactive = errors.New("фарминг не активен")
	// ErrSchemaTypeMismatch — состояние фарминга не совпадает с аккаунтами
	// по идентификатору. Это жёсткая ошибка валидации схемы: такие строки
	// невидимы для планировщика, молча игнорировать их нельзя.
	ErrSchemaTypeMismatch = errors.New("рассинхронизация идентификаторов farming_state и accounts")
)

// Ошибки вывода средств
var (
	// ErrInvalidAddress — адрес назначения не является TON-адресом
	ErrInvalidAddress = errors.New("некорректный адрес назначения")
)

// Ошибки админ-доступа
var (
	// ErrNotAdmin — неверный админ-пароль
	ErrNotAdmin = errors.New("нет прав администратора")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите")
)
