package position

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ray(percentTenths int64) *big.Int {
	// percentTenths/10 percent expressed in ray: p% = p * 1e25
	return new(big.Int).Mul(big.NewInt(percentTenths), new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil))
}

func TestYieldNeverNegative(t *testing.T) {
	assert.Equal(t, int64(0), Yield(big.NewInt(900), big.NewInt(1000)).Int64())
	assert.Equal(t, int64(0), Yield(big.NewInt(1000), big.NewInt(1000)).Int64())
	assert.Equal(t, int64(5), Yield(big.NewInt(1005), big.NewInt(1000)).Int64())
}

func TestAggregateYieldScenario(t *testing.T) {
	cfg := testConfig()
	cfg.UseMockAave = true

	reads := placeholderReads(cfg)
	reads.MockPrincipal = big.NewInt(1_000_000)
	reads.MockBalance = big.NewInt(1_050_000)

	s := Aggregate(nil, nil, reads, cfg)
	assert.Equal(t, int64(50_000), s.Yield.Int64())
	assert.Equal(t, int64(67_500_000), s.YieldDisplay.Int64())
	assert.Equal(t, int64(1_350_000_000), s.PrincipalDisplay.Int64())
}

func TestAggregateLiveMode(t *testing.T) {
	cfg := testConfig()

	deposits := []DepositActivity{
		{Amount: big.NewInt(2_000_000_000), TxHash: common.HexToHash("0x02"), Block: 2},
		{Amount: big.NewInt(1_350_000_000), TxHash: common.HexToHash("0x01"), Block: 1},
	}
	supplies := []SupplyActivity{
		{Amount: big.NewInt(1_000_000), TxHash: common.HexToHash("0x01"), Block: 1},
		{Amount: big.NewInt(500_000), TxHash: common.HexToHash("0x03"), Block: 3},
	}

	reads := placeholderReads(cfg)
	reads.PoolTokenBalance = big.NewInt(1_400_000) // below principal
	reads.LiquidityRate = ray(35)
	reads.PendingNaira = big.NewInt(7_000)
	reads.MockPrincipal = big.NewInt(99) // must be ignored in live mode

	s := Aggregate(deposits, supplies, reads, cfg)
	assert.True(t, s.Ready)
	assert.False(t, s.Mock)
	assert.Equal(t, int64(3_350_000_000), s.TotalDeposited.Int64())
	assert.Equal(t, int64(1_500_000), s.Principal.Int64())
	assert.Equal(t, int64(1_400_000), s.CurrentBalance.Int64())
	assert.Equal(t, int64(0), s.Yield.Int64(), "loss reports zero yield")
	assert.InDelta(t, 3.5, s.AprPercent, 1e-9)

	// principal*rate + pending + yield*rate
	assert.Equal(t, int64(1_500_000*1350+7_000), s.TotalBalance.Int64())
}

func TestAggregateMockMode(t *testing.T) {
	cfg := testConfig()
	cfg.UseMockAave = true

	reads := placeholderReads(cfg)
	reads.MockPrincipal = big.NewInt(2_000_000)
	reads.MockBalance = big.NewInt(2_100_000)
	reads.MockAprBps = big.NewInt(450)
	// live pool values and supplies are not the source in mock mode
	reads.LiquidityRate = ray(99)
	reads.PoolTokenBalance = big.NewInt(1)
	supplies := []SupplyActivity{{Amount: big.NewInt(5)}}

	s := Aggregate(nil, supplies, reads, cfg)
	assert.True(t, s.Mock)
	assert.Equal(t, int64(2_000_000), s.Principal.Int64())
	assert.Equal(t, int64(2_100_000), s.CurrentBalance.Int64())
	assert.Equal(t, int64(100_000), s.Yield.Int64())
	assert.InDelta(t, 4.5, s.AprPercent, 1e-9)
	assert.Equal(t, int64(2_100_000*1350), s.TotalBalance.Int64())
}

func TestReadLiveSources(t *testing.T) {
	ctx := context.Background()

	chain := newFakeChain()
	chain.liquidityRate = ray(21)
	chain.poolBalance = big.NewInt(123)
	chain.pending = big.NewInt(77)

	cfg := testConfig()
	reads := ReadLive(ctx, chain, cfg, cfg.Contracts(), alice)
	assert.Equal(t, "cNGN", reads.Symbol)
	assert.Equal(t, 6, reads.Decimals)
	assert.Equal(t, int64(77), reads.PendingNaira.Int64())
	assert.Equal(t, int64(123), reads.PoolTokenBalance.Int64())
	assert.Equal(t, 2, chain.liveReads)
	assert.Equal(t, 0, chain.mockReads)

	cfg.UseMockAave = true
	chain.mockPrincipal = big.NewInt(10)
	chain.mockBalance = big.NewInt(11)
	chain.mockAprBps = big.NewInt(300)
	reads = ReadLive(ctx, chain, cfg, cfg.Contracts(), alice)
	assert.Equal(t, int64(10), reads.MockPrincipal.Int64())
	assert.Equal(t, int64(300), reads.MockAprBps.Int64())
	assert.Equal(t, 2, chain.liveReads, "mock mode never reads the live pool")
	assert.Equal(t, 2, chain.mockReads)
}

func TestReadLivePlaceholders(t *testing.T) {
	chain := newFakeChain()
	chain.readErr = errors.New("header not found")

	cfg := testConfig()
	cfg.TokenDecimals = 6
	reads := ReadLive(context.Background(), chain, cfg, cfg.Contracts(), alice)

	assert.Equal(t, DEFAULT_SYMBOL, reads.Symbol)
	assert.Equal(t, 6, reads.Decimals)
	require.NotNil(t, reads.PendingNaira)
	assert.Zero(t, reads.PendingNaira.Sign())
	assert.Zero(t, reads.PoolTokenBalance.Sign())
	assert.Zero(t, reads.LiquidityRate.Sign())

	s := Aggregate(nil, nil, reads, cfg)
	assert.Zero(t, s.TotalBalance.Sign())
	assert.Zero(t, s.AprPercent)
}

func TestReadLiveNotReady(t *testing.T) {
	chain := newFakeChain()
	cfg := testConfig()
	cfg.VaultAddress = ""

	ReadLive(context.Background(), chain, cfg, cfg.Contracts(), alice)
	assert.Zero(t, chain.liveReads)
	assert.Zero(t, chain.mockReads)
}
