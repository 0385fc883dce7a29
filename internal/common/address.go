package common

import (
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ParseAddress проверяет, что s — EVM-адрес вида 0x + 40 hex-символов,
// и возвращает его в нормализованном виде.
func ParseAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return "", ErrInvalidAddress
	}
	if !ethcommon.IsHexAddress(s) {
		return "", ErrInvalidAddress
	}
	return NormalizeAddress(s), nil
}
