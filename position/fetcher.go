package position

import (
	"context"
	"fmt"

	"github.com/AlexNa-Holdings/kobonest/eth"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const MAX_RANGE = 9000

type LogSource interface {
	GetLogs(ctx context.Context, address common.Address, eventID common.Hash, user common.Address, from, to uint64) ([]types.Log, error)
}

// BlockRange is inclusive on both ends.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitRange partitions [from, to] into consecutive ranges of at most max
// blocks. A zero max means no limit.
func SplitRange(from, to, max uint64) []BlockRange {
	if from > to {
		return nil
	}
	if max == 0 {
		return []BlockRange{{From: from, To: to}}
	}

	var ranges []BlockRange
	for start := from; ; {
		end := start + max - 1
		if end > to || end < start {
			end = to
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges
		}
		start = end + 1
	}
}

type Fetcher struct {
	src      LogSource
	maxRange uint64
}

func NewFetcher(src LogSource, maxRange uint64) *Fetcher {
	if maxRange == 0 {
		maxRange = MAX_RANGE
	}
	return &Fetcher{src: src, maxRange: maxRange}
}

// FetchLogs returns the logs of a single event over [from, to], one
// provider query per chunk, in ascending block order.
func (f *Fetcher) FetchLogs(ctx context.Context, address common.Address, eventID common.Hash, user common.Address, from, to uint64) ([]types.Log, error) {
	var all []types.Log
	for _, r := range SplitRange(from, to, f.maxRange) {
		logs, err := f.src.GetLogs(ctx, address, eventID, user, r.From, r.To)
		if err != nil {
			return nil, fmt.Errorf("logs [%d,%d]: %w", r.From, r.To, err)
		}
		all = append(all, logs...)
	}
	return all, nil
}

type VaultLogs struct {
	Deposits []types.Log // FundsReceived
	Supplies []types.Log // FundsSupplied
}

// FetchVaultLogs fetches deposit and supply events of user. The two queries
// of a chunk run concurrently, chunks run one after another. Any failed
// query fails the whole fetch.
func (f *Fetcher) FetchVaultLogs(ctx context.Context, vault, user common.Address, from, to uint64) (*VaultLogs, error) {
	depositID := eth.VAULT.Events[eth.EVENT_FUNDS_RECEIVED].ID
	supplyID := eth.VAULT.Events[eth.EVENT_FUNDS_SUPPLIED].ID

	res := &VaultLogs{}
	ranges := SplitRange(from, to, f.maxRange)

	for _, r := range ranges {
		var deposits, supplies []types.Log

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			deposits, err = f.src.GetLogs(gctx, vault, depositID, user, r.From, r.To)
			return
		})
		g.Go(func() (err error) {
			supplies, err = f.src.GetLogs(gctx, vault, supplyID, user, r.From, r.To)
			return
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("vault logs [%d,%d]: %w", r.From, r.To, err)
		}

		res.Deposits = append(res.Deposits, deposits...)
		res.Supplies = append(res.Supplies, supplies...)
	}

	log.Trace().Msgf("FetchVaultLogs [%d,%d] in %d chunks: %d deposits, %d supplies",
		from, to, len(ranges), len(res.Deposits), len(res.Supplies))
	return res, nil
}
