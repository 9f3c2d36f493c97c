package position

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"testing"

	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/AlexNa-Holdings/kobonest/eth"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	alice     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	vaultAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	nairaAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	usdcAddr  = common.HexToAddress("0x3333333333333333333333333333333333333333")
	poolAddr  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	aToken    = common.HexToAddress("0x5555555555555555555555555555555555555555")

	depositID = eth.VAULT.Events[eth.EVENT_FUNDS_RECEIVED].ID
	supplyID  = eth.VAULT.Events[eth.EVENT_FUNDS_SUPPLIED].ID
)

func testConfig() *cmn.SConfig {
	c := cmn.DefaultConfig()
	c.VaultAddress = vaultAddr.Hex()
	c.NairaTokenAddress = nairaAddr.Hex()
	c.UsdcTokenAddress = usdcAddr.Hex()
	c.AavePoolAddress = poolAddr.Hex()
	return c
}

type logQuery struct {
	EventID common.Hash
	From    uint64
	To      uint64
}

// fakeChain is an in-memory vault: logs, height and contract values, with
// error injection and query recording.
type fakeChain struct {
	mu sync.Mutex

	height  uint64
	logs    []types.Log
	queries []logQuery

	failQuery func(q logQuery) error // nil or error to inject
	gate      chan struct{}          // when set, GetLogs waits on it
	onPending func(user common.Address)

	symbol        string
	decimals      uint8
	pending       *big.Int
	liquidityRate *big.Int
	poolBalance   *big.Int
	mockPrincipal *big.Int
	mockBalance   *big.Int
	mockAprBps    *big.Int
	readErr       error

	liveReads int
	mockReads int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		symbol:        "cNGN",
		decimals:      6,
		pending:       new(big.Int),
		liquidityRate: new(big.Int),
		poolBalance:   new(big.Int),
		mockPrincipal: new(big.Int),
		mockBalance:   new(big.Int),
		mockAprBps:    new(big.Int),
	}
}

func (f *fakeChain) setHeight(h uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height = h
}

func (f *fakeChain) addLog(l types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
	sort.SliceStable(f.logs, func(i, j int) bool { return f.logs[i].BlockNumber < f.logs[j].BlockNumber })
}

func (f *fakeChain) queryLog() []logQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logQuery(nil), f.queries...)
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.height, nil
}

func (f *fakeChain) GetLogs(ctx context.Context, address common.Address, eventID common.Hash, user common.Address, from, to uint64) ([]types.Log, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	q := logQuery{EventID: eventID, From: from, To: to}
	f.queries = append(f.queries, q)
	if f.failQuery != nil {
		if err := f.failQuery(q); err != nil {
			return nil, err
		}
	}

	userTopic := common.BytesToHash(user.Bytes())
	var res []types.Log
	for _, l := range f.logs {
		if l.Address != address || len(l.Topics) < 2 || l.Topics[0] != eventID || l.Topics[1] != userTopic {
			continue
		}
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		res = append(res, l)
	}
	return res, nil
}

func (f *fakeChain) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.symbol, nil
}

func (f *fakeChain) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.decimals, nil
}

func (f *fakeChain) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveReads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	if token != aToken {
		return nil, errors.New("unexpected token")
	}
	return f.poolBalance, nil
}

func (f *fakeChain) PendingNaira(ctx context.Context, user common.Address) (*big.Int, error) {
	f.mu.Lock()
	hook := f.onPending
	f.mu.Unlock()
	if hook != nil {
		hook(user)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.pending, nil
}

func (f *fakeChain) ReserveData(ctx context.Context, asset common.Address) (*big.Int, common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveReads++
	if f.readErr != nil {
		return nil, common.Address{}, f.readErr
	}
	return f.liquidityRate, aToken, nil
}

func (f *fakeChain) MockPosition(ctx context.Context, asset, user common.Address) (*big.Int, *big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mockReads++
	if f.readErr != nil {
		return nil, nil, f.readErr
	}
	return f.mockPrincipal, f.mockBalance, nil
}

func (f *fakeChain) MockAprBps(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mockReads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.mockAprBps, nil
}

func txHash(n uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(n + 1))
}

func vaultLog(t *testing.T, eventID common.Hash, user common.Address, block uint64, amount int64) types.Log {
	t.Helper()
	var name string
	switch eventID {
	case depositID:
		name = eth.EVENT_FUNDS_RECEIVED
	case supplyID:
		name = eth.EVENT_FUNDS_SUPPLIED
	}
	data, err := eth.VAULT.Events[name].Inputs.NonIndexed().Pack(big.NewInt(amount))
	require.NoError(t, err)

	return types.Log{
		Address:     vaultAddr,
		Topics:      []common.Hash{eventID, common.BytesToHash(user.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash(block),
	}
}

func depositLog(t *testing.T, user common.Address, block uint64, amount int64) types.Log {
	return vaultLog(t, depositID, user, block, amount)
}

func supplyLog(t *testing.T, user common.Address, block uint64, amount int64) types.Log {
	return vaultLog(t, supplyID, user, block, amount)
}
