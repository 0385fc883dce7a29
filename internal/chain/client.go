// Package chain — client.go работает с контрактом через JSON-RPC узла:
// чтение последнего клейма, сканирование событий и отправка клейма.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/daily-login-bot/internal/common"
)

// ClaimInterval — минимальный интервал между клеймами по правилам контракта.
const ClaimInterval = 24 * time.Hour

// maxLogRange — максимум блоков в одном eth_getLogs. Публичные узлы
// отвечают ошибкой на более широкие диапазоны.
const maxLogRange = 10000

// gasMarginPercent — запас к оценке газа.
const gasMarginPercent = 20

// Backend — методы узла, которые нужны клиенту. *ethclient.Client подходит.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
}

// Options — параметры клиента из конфига.
type Options struct {
	ContractAddress string
	ChainID         int64
	ReceiptPoll     time.Duration // Период опроса квитанции
	ClaimTimeout    time.Duration // Общий лимит ожидания клейма
}

// Client — клиент контракта ежедневного клейма.
type Client struct {
	backend  Backend
	abi      abi.ABI
	contract ethcommon.Address
	chainID  *big.Int
	wallet   *Wallet

	receiptPoll  time.Duration
	claimTimeout time.Duration

	close func()
}

// Dial подключается к узлу по RPC_URL.
func Dial(ctx context.Context, rpcURL string, opts Options, wallet *Wallet) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	c, err := NewClient(ec, opts, wallet)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.close = ec.Close
	return c, nil
}

// NewClient создаёт клиент поверх готового backend.
func NewClient(backend Backend, opts Options, wallet *Wallet) (*Client, error) {
	if !ethcommon.IsHexAddress(opts.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", opts.ContractAddress)
	}
	parsed, err := ParseABI()
	if err != nil {
		return nil, err
	}
	if opts.ReceiptPoll <= 0 {
		opts.ReceiptPoll = 2 * time.Second
	}
	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = 3 * time.Minute
	}
	if wallet == nil {
		wallet = &Wallet{}
	}
	return &Client{
		backend:      backend,
		abi:          parsed,
		contract:     ethcommon.HexToAddress(opts.ContractAddress),
		chainID:      big.NewInt(opts.ChainID),
		wallet:       wallet,
		receiptPoll:  opts.ReceiptPoll,
		claimTimeout: opts.ClaimTimeout,
	}, nil
}

// Close закрывает RPC-соединение.
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// Wallet возвращает ключи подписи клиента.
func (c *Client) Wallet() *Wallet {
	return c.wallet
}

// CanSign сообщает, есть ли ключ для адреса.
func (c *Client) CanSign(address string) bool {
	return c.wallet.Has(address)
}

// GetLastClaimTimestamp читает lastLoginTs(address). 0 — клеймов не было.
func (c *Client) GetLastClaimTimestamp(ctx context.Context, address string) (int64, error) {
	data, err := c.abi.Pack(methodLastLoginTs, ethcommon.HexToAddress(address))
	if err != nil {
		return 0, fmt.Errorf("failed to pack method call: %w", err)
	}

	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: lastLoginTs: %v", common.ErrChainRead, err)
	}
	if len(result) == 0 {
		return 0, nil
	}

	out, err := c.abi.Unpack(methodLastLoginTs, result)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to unpack result: %v", common.ErrChainRead, err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	ts, ok := out[0].(*big.Int)
	if !ok || !ts.IsInt64() {
		return 0, fmt.Errorf("%w: unexpected lastLoginTs value %v", common.ErrChainRead, out[0])
	}
	return ts.Int64(), nil
}

// NextClaimTime возвращает момент, с которого контракт примет следующий клейм.
// Для last == 0 — нулевое время (клеймить можно сразу).
func NextClaimTime(last int64) time.Time {
	if last <= 0 {
		return time.Time{}
	}
	return time.Unix(last, 0).Add(ClaimInterval)
}

// QueryLoginEvents сканирует события Login за последние lookbackBlocks блоков.
// Диапазон режется на куски по maxLogRange. События старше окна не видны,
// так что отсутствие адреса в результате не означает отсутствие клейма.
func (c *Client) QueryLoginEvents(ctx context.Context, lookbackBlocks uint64) ([]LoginEvent, error) {
	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: block number: %v", common.ErrChainRead, err)
	}

	var from uint64
	if head > lookbackBlocks {
		from = head - lookbackBlocks
	}

	eventID := c.abi.Events[eventLogin].ID
	var events []LoginEvent

	for start := from; start <= head; start += maxLogRange {
		end := start + maxLogRange - 1
		if end > head {
			end = head
		}

		logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []ethcommon.Address{c.contract},
			Topics:    [][]ethcommon.Hash{{eventID}},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: logs %d-%d: %v", common.ErrChainRead, start, end, err)
		}

		for _, lg := range logs {
			if lg.Removed {
				continue
			}
			ev, err := decodeLoginLog(c.abi, lg)
			if err != nil {
				log.WithError(err).WithFields(log.Fields{
					"block": lg.BlockNumber,
					"tx":    lg.TxHash.Hex(),
				}).Warn("Событие Login не разобрано")
				continue
			}
			events = append(events, ev)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Block != events[j].Block {
			return events[i].Block < events[j].Block
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	log.WithFields(log.Fields{
		"from":   from,
		"to":     head,
		"events": len(events),
	}).Debug("События Login получены")
	return events, nil
}

// SubmitDailyClaim подписывает и отправляет dailyLogin() от имени адреса
// и ждёт квитанцию. Возвращает хэш транзакции.
// Ошибки приводятся к common.ClaimError, кроме common.ErrWalletUnavailable.
func (c *Client) SubmitDailyClaim(ctx context.Context, address string) (string, error) {
	key, ok := c.wallet.Key(address)
	if !ok {
		return "", common.ErrWalletUnavailable
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	ctx, cancel := context.WithTimeout(ctx, c.claimTimeout)
	defer cancel()

	nodeChainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return "", ClassifyClaimError(fmt.Errorf("failed to query network: %w", err))
	}
	if nodeChainID.Cmp(c.chainID) != 0 {
		return "", common.NewClaimError(common.ClaimNetworkMismatch,
			fmt.Errorf("node chain id %s, expected %s", nodeChainID, c.chainID))
	}

	data, err := c.abi.Pack(methodDailyLogin)
	if err != nil {
		return "", fmt.Errorf("failed to pack method call: %w", err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", ClassifyClaimError(fmt.Errorf("failed to get nonce: %w", err))
	}

	// Оценка газа заодно прогоняет вызов: откат «already logged in» виден здесь
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.contract, Data: data})
	if err != nil {
		return "", ClassifyClaimError(fmt.Errorf("failed to estimate gas: %w", err))
	}
	gas += gas * gasMarginPercent / 100

	tipCap, feeCap, err := c.suggestFees(ctx)
	if err != nil {
		return "", ClassifyClaimError(err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &c.contract,
		Value:     big.NewInt(0),
		Data:      data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return "", ClassifyClaimError(fmt.Errorf("failed to send transaction: %w", err))
	}

	txHash := signedTx.Hash()
	logger := log.WithFields(log.Fields{
		"address": address,
		"tx":      txHash.Hex(),
	})
	logger.Info("Клейм отправлен, ждём квитанцию")

	// Отправленную транзакцию не отменить: ждём до лимита даже если
	// вызывающий ушёл.
	waitCtx, waitCancel := context.WithTimeout(context.WithoutCancel(ctx), c.claimTimeout)
	defer waitCancel()

	receipt, err := c.waitReceipt(waitCtx, txHash)
	if err != nil {
		return txHash.Hex(), common.NewClaimError(common.ClaimUnknown, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return txHash.Hex(), common.NewClaimError(common.ClaimUnknown, ErrReverted)
	}

	logger.WithField("block", receipt.BlockNumber).Info("Клейм подтверждён")
	return txHash.Hex(), nil
}

// suggestFees считает комиссии EIP-1559: tip от узла, потолок = 2*baseFee + tip.
func (c *Client) suggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	tipCap, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	feeCap := new(big.Int).Set(tipCap)
	if header.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(header.BaseFee, big.NewInt(2)))
	} else {
		feeCap.Mul(feeCap, big.NewInt(2))
	}
	return tipCap, feeCap, nil
}

// waitReceipt опрашивает квитанцию до её появления или истечения ctx.
func (c *Client) waitReceipt(ctx context.Context, hash ethcommon.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			log.WithError(err).WithField("tx", hash.Hex()).Debug("Квитанция пока недоступна")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transaction receipt not found: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
