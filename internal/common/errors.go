// Package common — errors.go определяет ошибки, общие для всех модулей.
// Обработчики различают по ним типы проблем и отправляют пользователю
// понятные сообщения.
package common

import (
	"errors"
	"fmt"
)

// Ошибки хранилища и чтения с цепочки. Пользователю не показываются.
var (
	// ErrStorageCorrupt — запись в хранилище не разбирается. Восстанавливается как пустая.
	ErrStorageCorrupt = errors.New("повреждённая запись в хранилище")
	// ErrChainRead — не удалось прочитать состояние или события контракта.
	ErrChainRead = errors.New("ошибка чтения из сети")
)

// Ошибки кошелька и сессий
var (
	// ErrWalletUnavailable — для адреса нет ключа подписи, доступен только просмотр
	ErrWalletUnavailable = errors.New("кошелёк недоступен")
	// ErrInvalidAddress — строка не похожа на адрес 0x...
	ErrInvalidAddress = errors.New("некорректный адрес кошелька")
	// ErrNotConnected — пользователь не подключил адрес
	ErrNotConnected = errors.New("кошелёк не подключён")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессии нет или она истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)

// ClaimErrorKind — подтип ошибки отправки ежедневного клейма.
type ClaimErrorKind int

const (
	ClaimUnknown ClaimErrorKind = iota
	ClaimAlreadyClaimedToday
	ClaimUserRejected
	ClaimInsufficientFunds
	ClaimNetworkMismatch
)

// String возвращает машинное имя подтипа (для логов и JSON).
func (k ClaimErrorKind) String() string {
	switch k {
	case ClaimAlreadyClaimedToday:
		return "already_claimed_today"
	case ClaimUserRejected:
		return "user_rejected"
	case ClaimInsufficientFunds:
		return "insufficient_funds"
	case ClaimNetworkMismatch:
		return "network_mismatch"
	default:
		return "unknown"
	}
}

// ClaimError — ошибка записи в цепочку. Все подтипы восстановимы: можно повторить.
type ClaimError struct {
	Kind ClaimErrorKind
	Err  error
}

// NewClaimError создаёт ошибку клейма указанного подтипа.
func NewClaimError(kind ClaimErrorKind, err error) *ClaimError {
	return &ClaimError{Kind: kind, Err: err}
}

func (e *ClaimError) Error() string {
	if e.Err == nil {
		return "claim failed: " + e.Kind.String()
	}
	return fmt.Sprintf("claim failed (%s): %v", e.Kind, e.Err)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

// UserMessage возвращает текст для пользователя. У каждого подтипа свой.
func (e *ClaimError) UserMessage() string {
	switch e.Kind {
	case ClaimAlreadyClaimedToday:
		return "⚠️ Сегодня клейм уже был. Возвращайся завтра!"
	case ClaimUserRejected:
		return "❌ Транзакция отменена"
	case ClaimInsufficientFunds:
		return "❌ Недостаточно средств на газ"
	case ClaimNetworkMismatch:
		return "❌ Узел подключён не к той сети, клейм невозможен"
	default:
		return "❌ Не удалось выполнить клейм, попробуй ещё раз"
	}
}

// AsClaimError достаёт *ClaimError из цепочки ошибок.
func AsClaimError(err error) (*ClaimError, bool) {
	var ce *ClaimError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
