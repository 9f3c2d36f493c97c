package position

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to uint64
		max      uint64
		want     []BlockRange
	}{
		{"single block", 100, 100, 9000, []BlockRange{{100, 100}}},
		{"three chunks", 0, 20000, 9000, []BlockRange{{0, 8999}, {9000, 17999}, {18000, 20000}}},
		{"exact window", 0, 8999, 9000, []BlockRange{{0, 8999}}},
		{"one past window", 0, 9000, 9000, []BlockRange{{0, 8999}, {9000, 9000}}},
		{"empty", 5, 4, 9000, nil},
		{"no limit", 3, 50000, 0, []BlockRange{{3, 50000}}},
		{"near max uint64", math.MaxUint64 - 5, math.MaxUint64, 4,
			[]BlockRange{{math.MaxUint64 - 5, math.MaxUint64 - 2}, {math.MaxUint64 - 1, math.MaxUint64}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitRange(tt.from, tt.to, tt.max))
		})
	}
}

func TestFetchVaultLogsChunked(t *testing.T) {
	chain := newFakeChain()
	for _, b := range []uint64{5, 8999, 9000, 12000, 17999, 18000, 20000} {
		chain.addLog(depositLog(t, alice, b, int64(b)))
	}
	chain.addLog(supplyLog(t, alice, 9001, 10))
	chain.addLog(supplyLog(t, alice, 19000, 20))
	chain.addLog(depositLog(t, bob, 100, 1)) // other user

	f := NewFetcher(chain, 9000)
	res, err := f.FetchVaultLogs(context.Background(), vaultAddr, alice, 0, 20000)
	require.NoError(t, err)

	var blocks []uint64
	for _, l := range res.Deposits {
		blocks = append(blocks, l.BlockNumber)
	}
	assert.Equal(t, []uint64{5, 8999, 9000, 12000, 17999, 18000, 20000}, blocks)
	require.Len(t, res.Supplies, 2)
	assert.Equal(t, uint64(9001), res.Supplies[0].BlockNumber)

	queries := chain.queryLog()
	require.Len(t, queries, 6, "two queries per chunk")
	for i := 0; i < 6; i += 2 {
		// the pair of a chunk may complete in any order, chunks never interleave
		assert.Equal(t, queries[i].From, queries[i+1].From)
		assert.Equal(t, queries[i].To, queries[i+1].To)
		assert.NotEqual(t, queries[i].EventID, queries[i+1].EventID)
	}
	assert.Equal(t, uint64(0), queries[0].From)
	assert.Equal(t, uint64(9000), queries[2].From)
	assert.Equal(t, uint64(18000), queries[4].From)
	assert.Equal(t, uint64(20000), queries[5].To)

	unchunked, err := NewFetcher(chain, math.MaxUint64).FetchVaultLogs(context.Background(), vaultAddr, alice, 0, 20000)
	require.NoError(t, err)
	assert.Equal(t, unchunked.Deposits, res.Deposits)
	assert.Equal(t, unchunked.Supplies, res.Supplies)
}

func TestFetchVaultLogsFailsAsWhole(t *testing.T) {
	chain := newFakeChain()
	chain.addLog(depositLog(t, alice, 10, 1))
	chain.addLog(depositLog(t, alice, 9500, 2))

	boom := errors.New("query returned more than 10000 results")
	chain.failQuery = func(q logQuery) error {
		if q.From == 9000 && q.EventID == supplyID {
			return boom
		}
		return nil
	}

	res, err := NewFetcher(chain, 9000).FetchVaultLogs(context.Background(), vaultAddr, alice, 0, 20000)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, res)

	for _, q := range chain.queryLog() {
		assert.Less(t, q.From, uint64(18000), "no chunk after the failed one is queried")
	}
}

func TestFetchLogsSingleEvent(t *testing.T) {
	chain := newFakeChain()
	chain.addLog(supplyLog(t, alice, 1, 1))
	chain.addLog(supplyLog(t, alice, 15, 2))
	chain.addLog(depositLog(t, alice, 16, 3))

	logs, err := NewFetcher(chain, 10).FetchLogs(context.Background(), vaultAddr, supplyID, alice, 0, 25)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, uint64(15), logs[1].BlockNumber)
	assert.Len(t, chain.queryLog(), 3)
}
