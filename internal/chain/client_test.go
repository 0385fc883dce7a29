package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/daily-login-bot/internal/common"
)

const testContract = "0xE6466700214a9cc8b76653af4a1D99ECE009645d"

// fakeBackend — узел в памяти.
type fakeBackend struct {
	mu sync.Mutex

	chainID   int64
	head      uint64
	logs      []types.Log
	callData  []byte
	callErr   error
	filterErr error
	gasErr    error
	sendErr   error
	status    uint64

	queries []ethereum.FilterQuery
	sent    []*types.Transaction
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callData, f.callErr
}

func (f *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	var out []types.Log
	for _, lg := range f.logs {
		if lg.BlockNumber >= q.FromBlock.Uint64() && lg.BlockNumber <= q.ToBlock.Uint64() {
			out = append(out, lg)
		}
	}
	return out, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, ethcommon.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 50_000, f.gasErr
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash ethcommon.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			return &types.Receipt{Status: f.status, TxHash: hash, BlockNumber: big.NewInt(int64(f.head + 1))}, nil
		}
	}
	return nil, ethereum.NotFound
}

func loginLog(t *testing.T, user string, ts int64, block uint64, index uint) types.Log {
	t.Helper()
	parsed, err := ParseABI()
	require.NoError(t, err)
	event := parsed.Events[eventLogin]

	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(ts))
	require.NoError(t, err)

	return types.Log{
		Address:     ethcommon.HexToAddress(testContract),
		Topics:      []ethcommon.Hash{event.ID, ethcommon.BytesToHash(ethcommon.HexToAddress(user).Bytes())},
		Data:        data,
		BlockNumber: block,
		Index:       index,
	}
}

func newTestClient(t *testing.T, backend *fakeBackend, wallet *Wallet) *Client {
	t.Helper()
	c, err := NewClient(backend, Options{
		ContractAddress: testContract,
		ChainID:         1270,
		ReceiptPoll:     time.Millisecond,
		ClaimTimeout:    time.Second,
	}, wallet)
	require.NoError(t, err)
	return c
}

func TestGetLastClaimTimestamp(t *testing.T) {
	parsed, err := ParseABI()
	require.NoError(t, err)
	packed, err := parsed.Methods[methodLastLoginTs].Outputs.Pack(big.NewInt(1704067200))
	require.NoError(t, err)

	c := newTestClient(t, &fakeBackend{callData: packed}, nil)
	ts, err := c.GetLastClaimTimestamp(context.Background(), "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Equal(t, int64(1704067200), ts)

	c = newTestClient(t, &fakeBackend{}, nil)
	ts, err = c.GetLastClaimTimestamp(context.Background(), "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	assert.Zero(t, ts)

	c = newTestClient(t, &fakeBackend{callErr: errors.New("timeout")}, nil)
	_, err = c.GetLastClaimTimestamp(context.Background(), "0x00000000000000000000000000000000000000aa")
	assert.ErrorIs(t, err, common.ErrChainRead)
}

func TestQueryLoginEventsChunksAndDecodes(t *testing.T) {
	userA := "0x00000000000000000000000000000000000000aa"
	userB := "0x00000000000000000000000000000000000000bb"
	backend := &fakeBackend{
		head: 25_000,
		logs: []types.Log{
			loginLog(t, userB, 1704070000, 20_500, 0),
			loginLog(t, userA, 1704067200, 5, 1),
			loginLog(t, userA, 1704067300, 5, 0),
		},
	}
	c := newTestClient(t, backend, nil)

	events, err := c.QueryLoginEvents(context.Background(), 30_000)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Len(t, backend.queries, 3)
	assert.Equal(t, uint64(0), backend.queries[0].FromBlock.Uint64())
	assert.Equal(t, uint64(9_999), backend.queries[0].ToBlock.Uint64())
	assert.Equal(t, uint64(25_000), backend.queries[2].ToBlock.Uint64())

	// порядок: блок, затем индекс лога
	assert.Equal(t, userA, events[0].Address)
	assert.Equal(t, int64(1704067300), events[0].Timestamp)
	assert.Equal(t, int64(1704067200), events[1].Timestamp)
	assert.Equal(t, userB, events[2].Address)
}

func TestQueryLoginEventsReadFailure(t *testing.T) {
	c := newTestClient(t, &fakeBackend{head: 100, filterErr: errors.New("limit exceeded")}, nil)
	_, err := c.QueryLoginEvents(context.Background(), 10)
	assert.ErrorIs(t, err, common.ErrChainRead)
}

func testWallet(t *testing.T) (*Wallet, string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := ethcommon.Bytes2Hex(crypto.FromECDSA(key))
	w, err := ParseWallet([]string{"0x" + hexKey, ""})
	require.NoError(t, err)
	return w, strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}

func TestSubmitDailyClaim(t *testing.T) {
	ctx := context.Background()
	wallet, addr := testWallet(t)

	t.Run("success", func(t *testing.T) {
		backend := &fakeBackend{chainID: 1270, head: 10, status: types.ReceiptStatusSuccessful}
		c := newTestClient(t, backend, wallet)

		hash, err := c.SubmitDailyClaim(ctx, addr)
		require.NoError(t, err)
		require.Len(t, backend.sent, 1)
		assert.Equal(t, backend.sent[0].Hash().Hex(), hash)

		tx := backend.sent[0]
		assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
		assert.Equal(t, uint64(7), tx.Nonce())
		assert.Equal(t, uint64(60_000), tx.Gas())
		assert.Equal(t, int64(1270), tx.ChainId().Int64())
	})

	t.Run("no key for address", func(t *testing.T) {
		c := newTestClient(t, &fakeBackend{chainID: 1270}, wallet)
		_, err := c.SubmitDailyClaim(ctx, "0x00000000000000000000000000000000000000aa")
		assert.ErrorIs(t, err, common.ErrWalletUnavailable)
	})

	t.Run("wrong network", func(t *testing.T) {
		c := newTestClient(t, &fakeBackend{chainID: 1}, wallet)
		_, err := c.SubmitDailyClaim(ctx, addr)
		ce, ok := common.AsClaimError(err)
		require.True(t, ok)
		assert.Equal(t, common.ClaimNetworkMismatch, ce.Kind)
	})

	t.Run("already claimed surfaces at gas estimation", func(t *testing.T) {
		c := newTestClient(t, &fakeBackend{chainID: 1270, gasErr: errors.New("execution reverted: Already logged in today")}, wallet)
		_, err := c.SubmitDailyClaim(ctx, addr)
		ce, ok := common.AsClaimError(err)
		require.True(t, ok)
		assert.Equal(t, common.ClaimAlreadyClaimedToday, ce.Kind)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		c := newTestClient(t, &fakeBackend{chainID: 1270, sendErr: errors.New("insufficient funds for gas * price + value")}, wallet)
		_, err := c.SubmitDailyClaim(ctx, addr)
		ce, ok := common.AsClaimError(err)
		require.True(t, ok)
		assert.Equal(t, common.ClaimInsufficientFunds, ce.Kind)
	})

	t.Run("reverted receipt", func(t *testing.T) {
		backend := &fakeBackend{chainID: 1270, status: types.ReceiptStatusFailed}
		c := newTestClient(t, backend, wallet)
		hash, err := c.SubmitDailyClaim(ctx, addr)
		assert.NotEmpty(t, hash)
		assert.ErrorIs(t, err, ErrReverted)
	})
}

func TestClassifyClaimError(t *testing.T) {
	tests := []struct {
		err  error
		want common.ClaimErrorKind
	}{
		{errors.New("execution reverted: already logged in"), common.ClaimAlreadyClaimedToday},
		{errors.New("ACTION_REJECTED"), common.ClaimUserRejected},
		{errors.New("user denied transaction signature"), common.ClaimUserRejected},
		{context.Canceled, common.ClaimUserRejected},
		{errors.New("insufficient funds for gas"), common.ClaimInsufficientFunds},
		{errors.New("invalid chain id for signer"), common.ClaimNetworkMismatch},
		{errors.New("nonce too low"), common.ClaimUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyClaimError(tt.err).Kind)
		})
	}

	assert.Nil(t, ClassifyClaimError(nil))

	wrapped := common.NewClaimError(common.ClaimNetworkMismatch, nil)
	assert.Same(t, wrapped, ClassifyClaimError(wrapped))
}

func TestNextClaimTime(t *testing.T) {
	assert.True(t, NextClaimTime(0).IsZero())
	assert.Equal(t, time.Unix(1704067200, 0).Add(24*time.Hour), NextClaimTime(1704067200))
}

func TestParseWallet(t *testing.T) {
	w, addr := testWallet(t)
	assert.False(t, w.Empty())
	assert.True(t, w.Has(strings.ToUpper(addr[:2])+addr[2:]))
	assert.Equal(t, []string{addr}, w.Addresses())

	_, err := ParseWallet([]string{"not-a-key"})
	assert.Error(t, err)

	var empty *Wallet
	assert.True(t, empty.Empty())
	assert.False(t, empty.Has(addr))
}
