// Package chain — граница с контрактом ежедневного клейма.
// abi.go описывает ABI контракта и разбор событий Login.
package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DailyLoginABI — минимальный ABI контракта: клейм, чтение последнего клейма
// и событие Login.
const DailyLoginABI = `[
	{"type":"function","name":"dailyLogin","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"lastLoginTs","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"Login","anonymous":false,
	 "inputs":[{"name":"user","type":"address","indexed":true},
	           {"name":"timestamp","type":"uint256","indexed":false}]}
]`

const (
	methodDailyLogin  = "dailyLogin"
	methodLastLoginTs = "lastLoginTs"
	eventLogin        = "Login"
)

// LoginEvent — одно событие Login из журнала контракта.
type LoginEvent struct {
	Address   string // Адрес в нижнем регистре
	Timestamp int64  // Unix-время клейма из события
	Block     uint64
	LogIndex  uint
	TxHash    string
}

// ParseABI разбирает ABI контракта.
func ParseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(DailyLoginABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// decodeLoginLog разбирает лог события Login: user из индексированного топика,
// timestamp из данных.
func decodeLoginLog(contractABI abi.ABI, lg types.Log) (LoginEvent, error) {
	event, ok := contractABI.Events[eventLogin]
	if !ok {
		return LoginEvent{}, fmt.Errorf("event %s not found in ABI", eventLogin)
	}
	if len(lg.Topics) == 0 || lg.Topics[0] != event.ID {
		return LoginEvent{}, fmt.Errorf("log is not a %s event", eventLogin)
	}

	values := make(map[string]interface{})

	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopicsIntoMap(values, indexed, lg.Topics[1:]); err != nil {
		return LoginEvent{}, fmt.Errorf("failed to parse topics: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, lg.Data); err != nil {
		return LoginEvent{}, fmt.Errorf("failed to unpack data: %w", err)
	}

	user, ok := values["user"].(common.Address)
	if !ok {
		return LoginEvent{}, fmt.Errorf("unexpected user type: %T", values["user"])
	}
	ts, ok := values["timestamp"].(*big.Int)
	if !ok || !ts.IsInt64() {
		return LoginEvent{}, fmt.Errorf("unexpected timestamp: %v", values["timestamp"])
	}

	return LoginEvent{
		Address:   strings.ToLower(user.Hex()),
		Timestamp: ts.Int64(),
		Block:     lg.BlockNumber,
		LogIndex:  lg.Index,
		TxHash:    lg.TxHash.Hex(),
	}, nil
}
