package position

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastSynced(t *testing.T, tr *Tracker) uint64 {
	t.Helper()
	s := tr.State()
	require.NotNil(t, s.LastSyncedBlock)
	return *s.LastSyncedBlock
}

func TestInitialSyncFromDeployBlock(t *testing.T) {
	cfg := testConfig()
	cfg.VaultDeployBlock = 100

	chain := newFakeChain()
	chain.setHeight(100)
	chain.addLog(depositLog(t, alice, 100, 42))

	tr := NewTracker(cfg, chain)
	tr.SetAccount(&alice)
	assert.True(t, tr.State().Loading)

	require.NoError(t, tr.Sync(context.Background(), 0))

	queries := chain.queryLog()
	require.Len(t, queries, 2, "one chunk, one query per event kind")
	for _, q := range queries {
		assert.Equal(t, uint64(100), q.From)
		assert.Equal(t, uint64(100), q.To)
	}

	s := tr.State()
	assert.True(t, s.HasCompletedInitialSync)
	assert.False(t, s.Loading)
	assert.Equal(t, uint64(100), lastSynced(t, tr))
	require.Len(t, tr.Deposits(), 1)
	assert.Equal(t, int64(42), tr.Deposits()[0].Amount.Int64())
}

func TestDeployBlockAboveHead(t *testing.T) {
	cfg := testConfig()
	cfg.VaultDeployBlock = 500

	chain := newFakeChain()
	chain.setHeight(300)

	tr := NewTracker(cfg, chain)
	tr.SetAccount(&alice)
	require.NoError(t, tr.Sync(context.Background(), 300))
	assert.Empty(t, chain.queryLog())
	assert.True(t, tr.State().HasCompletedInitialSync)
	assert.Equal(t, uint64(499), lastSynced(t, tr))

	// heights below the deploy block scan nothing
	require.NoError(t, tr.Sync(context.Background(), 450))
	assert.Empty(t, chain.queryLog())

	chain.addLog(depositLog(t, alice, 505, 7))
	chain.setHeight(510)
	require.NoError(t, tr.Sync(context.Background(), 510))

	queries := chain.queryLog()
	require.NotEmpty(t, queries)
	for _, q := range queries {
		assert.Equal(t, uint64(500), q.From)
		assert.Equal(t, uint64(510), q.To)
	}
	assert.Equal(t, uint64(510), lastSynced(t, tr))
	require.Len(t, tr.Deposits(), 1)
}

func TestInitialSyncChunks(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(20000)

	tr := NewTracker(testConfig(), chain)
	tr.SetAccount(&alice)
	require.NoError(t, tr.Sync(context.Background(), 0))

	var ranges []BlockRange
	for i, q := range chain.queryLog() {
		if i%2 == 0 {
			ranges = append(ranges, BlockRange{From: q.From, To: q.To})
		}
	}
	assert.Equal(t, []BlockRange{{0, 8999}, {9000, 17999}, {18000, 20000}}, ranges)
}

func TestPollingAdvancesCursor(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(1000)
	chain.addLog(depositLog(t, alice, 500, 1))

	tr := NewTracker(testConfig(), chain)
	tr.SetAccount(&alice)
	ctx := context.Background()
	require.NoError(t, tr.Sync(ctx, 0))
	assert.Equal(t, uint64(1000), lastSynced(t, tr))

	for _, h := range []uint64{1001, 1005, 1010} {
		chain.addLog(depositLog(t, alice, h, int64(h)))
		require.NoError(t, tr.Sync(ctx, h))
		assert.Equal(t, h, lastSynced(t, tr))
	}

	queries := chain.queryLog()
	last := queries[len(queries)-1]
	assert.Equal(t, uint64(1006), last.From, "scans exactly [cursor+1, height]")
	assert.Equal(t, uint64(1010), last.To)

	deposits := tr.Deposits()
	require.Len(t, deposits, 4)
	assert.Equal(t, uint64(1010), deposits[0].Block)
	assert.Equal(t, uint64(500), deposits[3].Block)

	// height not above the cursor is a no-op
	n := len(chain.queryLog())
	require.NoError(t, tr.Sync(ctx, 1010))
	require.NoError(t, tr.Sync(ctx, 900))
	assert.Len(t, chain.queryLog(), n)
}

func TestFailedPollKeepsCursor(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(50)

	tr := NewTracker(testConfig(), chain)
	tr.SetAccount(&alice)
	ctx := context.Background()
	require.NoError(t, tr.Sync(ctx, 0))
	require.NoError(t, tr.Sync(ctx, 60))

	chain.addLog(depositLog(t, alice, 65, 9))
	boom := errors.New("connection reset")
	chain.failQuery = func(q logQuery) error { return boom }

	assert.ErrorIs(t, tr.Sync(ctx, 70), boom)
	assert.Equal(t, uint64(60), lastSynced(t, tr), "cursor stays at last success")
	assert.Empty(t, tr.Deposits())

	chain.failQuery = nil
	require.NoError(t, tr.Sync(ctx, 71))
	assert.Equal(t, uint64(71), lastSynced(t, tr))
	require.Len(t, tr.Deposits(), 1)

	last := chain.queryLog()[len(chain.queryLog())-1]
	assert.Equal(t, uint64(61), last.From, "failed range is retried")
}

func TestInitialSyncFailureStaysLoading(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(10)
	chain.failQuery = func(q logQuery) error { return errors.New("503 Service Unavailable") }

	tr := NewTracker(testConfig(), chain)
	tr.SetAccount(&alice)
	assert.Error(t, tr.Sync(context.Background(), 10))

	s := tr.State()
	assert.True(t, s.Loading)
	assert.False(t, s.HasCompletedInitialSync)
	assert.Nil(t, s.LastSyncedBlock)

	chain.failQuery = nil
	require.NoError(t, tr.Sync(context.Background(), 11))
	assert.False(t, tr.State().Loading)
}

func TestNotReady(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(10)

	tr := NewTracker(testConfig(), chain)
	assert.ErrorIs(t, tr.Sync(context.Background(), 10), ErrNotReady, "no account")
	assert.False(t, tr.State().Loading)

	cfg := testConfig()
	cfg.AavePoolAddress = "not an address"
	tr = NewTracker(cfg, chain)
	tr.SetAccount(&alice)
	assert.ErrorIs(t, tr.Sync(context.Background(), 10), ErrNotReady)
	assert.False(t, tr.State().Loading)

	assert.Empty(t, chain.queryLog(), "no reads attempted")
}

func TestAccountChangeResets(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(100)
	chain.addLog(depositLog(t, alice, 10, 1))
	chain.addLog(depositLog(t, bob, 20, 2))

	tr := NewTracker(testConfig(), chain)
	tr.SetAccount(&alice)
	require.NoError(t, tr.Sync(context.Background(), 0))
	require.Len(t, tr.Deposits(), 1)

	tr.SetAccount(&alice) // same account, nothing changes
	assert.Len(t, tr.Deposits(), 1)

	tr.SetAccount(&bob)
	s := tr.State()
	assert.Empty(t, tr.Deposits())
	assert.Nil(t, s.LastSyncedBlock)
	assert.False(t, s.HasCompletedInitialSync)

	require.NoError(t, tr.Sync(context.Background(), 0))
	require.Len(t, tr.Deposits(), 1)
	assert.Equal(t, uint64(20), tr.Deposits()[0].Block)

	tr.SetAccount(nil)
	assert.Empty(t, tr.Deposits())
	assert.Nil(t, tr.Account())
}

func TestInFlightScan(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(100)
	chain.addLog(depositLog(t, alice, 10, 1))
	chain.gate = make(chan struct{})

	tr := NewTracker(testConfig(), chain)
	tr.SetAccount(&alice)

	done := make(chan error, 1)
	go func() { done <- tr.Sync(context.Background(), 0) }()

	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.inFlight
	}, 2*time.Second, time.Millisecond)

	assert.ErrorIs(t, tr.Sync(context.Background(), 101), ErrScanInFlight)

	// switch account while alice's scan is still running
	tr.SetAccount(&bob)
	close(chain.gate)
	require.NoError(t, <-done)

	assert.Empty(t, tr.Deposits(), "stale scan is discarded")
	assert.Nil(t, tr.State().LastSyncedBlock)
	assert.Equal(t, bob, *tr.Account())

	require.NoError(t, tr.Sync(context.Background(), 0))
	assert.Equal(t, uint64(100), lastSynced(t, tr))
}
