package position

import (
	"context"
	"math/big"
	"time"

	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const DEFAULT_SYMBOL = "NAIRA"

// RAY_PERCENT_EXP turns a ray (1e27) rate into percent: rate / 1e25.
const RAY_PERCENT_EXP = -25

type ContractReader interface {
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	PendingNaira(ctx context.Context, user common.Address) (*big.Int, error)
	ReserveData(ctx context.Context, asset common.Address) (*big.Int, common.Address, error)
	MockPosition(ctx context.Context, asset, user common.Address) (*big.Int, *big.Int, error)
	MockAprBps(ctx context.Context) (*big.Int, error)
}

// LiveReads are the point-in-time contract values. A failed read leaves a
// zero placeholder.
type LiveReads struct {
	Symbol       string
	Decimals     int
	PendingNaira *big.Int

	// live pool
	LiquidityRate    *big.Int
	PoolTokenBalance *big.Int

	// simulated pool
	MockPrincipal *big.Int
	MockBalance   *big.Int
	MockAprBps    *big.Int
}

func placeholderReads(cfg *cmn.SConfig) LiveReads {
	return LiveReads{
		Symbol:           DEFAULT_SYMBOL,
		Decimals:         cfg.TokenDecimals,
		PendingNaira:     new(big.Int),
		LiquidityRate:    new(big.Int),
		PoolTokenBalance: new(big.Int),
		MockPrincipal:    new(big.Int),
		MockBalance:      new(big.Int),
		MockAprBps:       new(big.Int),
	}
}

// ReadLive gathers the live values for user. Token metadata, the pending
// balance and the pool reads run concurrently; live and simulated pool
// sources are never mixed.
func ReadLive(ctx context.Context, r ContractReader, cfg *cmn.SConfig, contracts cmn.Contracts, user common.Address) LiveReads {
	reads := placeholderReads(cfg)
	if !contracts.Ready() {
		return reads
	}

	var g errgroup.Group

	g.Go(func() error {
		if sym, err := r.TokenSymbol(ctx, *contracts.NairaToken); err == nil && sym != "" {
			reads.Symbol = sym
		} else if err != nil {
			log.Debug().Err(err).Msg("symbol read failed")
		}
		if dec, err := r.TokenDecimals(ctx, *contracts.NairaToken); err == nil {
			reads.Decimals = int(dec)
		} else {
			log.Debug().Err(err).Msg("decimals read failed")
		}
		return nil
	})

	g.Go(func() error {
		if p, err := r.PendingNaira(ctx, user); err == nil && p != nil {
			reads.PendingNaira = p
		} else if err != nil {
			log.Debug().Err(err).Msg("pendingNaira read failed")
		}
		return nil
	})

	g.Go(func() error {
		if cfg.UseMockAave {
			if principal, balance, err := r.MockPosition(ctx, *contracts.UsdcToken, user); err == nil {
				reads.MockPrincipal, reads.MockBalance = principal, balance
			} else {
				log.Debug().Err(err).Msg("mock position read failed")
			}
			if bps, err := r.MockAprBps(ctx); err == nil && bps != nil {
				reads.MockAprBps = bps
			} else if err != nil {
				log.Debug().Err(err).Msg("mock apr read failed")
			}
			return nil
		}

		rate, aToken, err := r.ReserveData(ctx, *contracts.UsdcToken)
		if err != nil {
			log.Debug().Err(err).Msg("reserve data read failed")
			return nil
		}
		reads.LiquidityRate = rate
		if bal, err := r.BalanceOf(ctx, aToken, user); err == nil && bal != nil {
			reads.PoolTokenBalance = bal
		} else if err != nil {
			log.Debug().Err(err).Msg("pool token balance read failed")
		}
		return nil
	})

	_ = g.Wait()
	return reads
}

// Snapshot is the derived position. Settlement amounts are in pool units,
// display amounts are settlement amounts times the exchange rate.
type Snapshot struct {
	Ready    bool
	Account  *common.Address
	Mock     bool
	Symbol   string
	Decimals int

	TotalDeposited    *big.Int
	Principal         *big.Int
	CurrentBalance    *big.Int
	Yield             *big.Int
	PrincipalDisplay  *big.Int
	YieldDisplay      *big.Int
	PendingConversion *big.Int
	TotalBalance      *big.Int
	AprPercent        float64

	Sync      SyncState
	Deposits  []DepositActivity
	UpdatedAt time.Time
}

// Aggregate is a pure function of the activity and the live reads.
func Aggregate(deposits []DepositActivity, supplies []SupplyActivity, reads LiveReads, cfg *cmn.SConfig) *Snapshot {
	s := &Snapshot{
		Ready:             true,
		Mock:              cfg.UseMockAave,
		Symbol:            reads.Symbol,
		Decimals:          reads.Decimals,
		TotalDeposited:    SumDeposits(deposits),
		PendingConversion: orZero(reads.PendingNaira),
		Deposits:          deposits,
	}

	var apr decimal.Decimal
	if cfg.UseMockAave {
		s.Principal = orZero(reads.MockPrincipal)
		s.CurrentBalance = orZero(reads.MockBalance)
		apr = decimal.NewFromBigInt(orZero(reads.MockAprBps), -2)
	} else {
		s.Principal = SumSupplies(supplies)
		s.CurrentBalance = orZero(reads.PoolTokenBalance)
		apr = decimal.NewFromBigInt(orZero(reads.LiquidityRate), RAY_PERCENT_EXP)
	}
	s.AprPercent = apr.InexactFloat64()

	s.Yield = Yield(s.CurrentBalance, s.Principal)

	rate := big.NewInt(cfg.NairaPerUsdc)
	s.PrincipalDisplay = new(big.Int).Mul(s.Principal, rate)
	s.YieldDisplay = new(big.Int).Mul(s.Yield, rate)

	s.TotalBalance = new(big.Int).Add(s.PrincipalDisplay, s.PendingConversion)
	s.TotalBalance.Add(s.TotalBalance, s.YieldDisplay)

	return s
}

// Yield is balance minus principal, never negative.
func Yield(balance, principal *big.Int) *big.Int {
	y := new(big.Int).Sub(balance, principal)
	if y.Sign() < 0 {
		return new(big.Int)
	}
	return y
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
