// Package chain — errors.go раскладывает ошибки отправки клейма по подтипам.
package chain

import (
	"context"
	"errors"
	"strings"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// ErrReverted — транзакция попала в блок, но завершилась откатом.
var ErrReverted = errors.New("transaction reverted")

// ClassifyClaimError приводит ошибку записи к common.ClaimError.
// Узлы возвращают причины текстом, поэтому разбор идёт по подстрокам.
func ClassifyClaimError(err error) *common.ClaimError {
	if err == nil {
		return nil
	}
	if ce, ok := common.AsClaimError(err); ok {
		return ce
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already logged in"),
		strings.Contains(msg, "already claimed"):
		return common.NewClaimError(common.ClaimAlreadyClaimedToday, err)

	case errors.Is(err, context.Canceled),
		strings.Contains(msg, "action_rejected"),
		strings.Contains(msg, "rejected"),
		strings.Contains(msg, "denied"):
		return common.NewClaimError(common.ClaimUserRejected, err)

	case strings.Contains(msg, "insufficient funds"):
		return common.NewClaimError(common.ClaimInsufficientFunds, err)

	case strings.Contains(msg, "chain id"),
		strings.Contains(msg, "chainid"),
		strings.Contains(msg, "wrong network"):
		return common.NewClaimError(common.ClaimNetworkMismatch, err)

	default:
		return common.NewClaimError(common.ClaimUnknown, err)
	}
}
