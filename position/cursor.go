package position

import (
	"context"
	"errors"
	"sync"

	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

var ErrNotReady = errors.New("not ready: no account or contracts not configured")
var ErrScanInFlight = errors.New("scan already in flight")

type ChainReader interface {
	LogSource
	BlockNumber(ctx context.Context) (uint64, error)
}

type SyncState struct {
	LastSyncedBlock         *uint64
	HasCompletedInitialSync bool
	Loading                 bool
}

// Tracker keeps the activity of one account in step with the chain. Sync is
// safe to call redundantly from any goroutine.
type Tracker struct {
	cfg       *cmn.SConfig
	contracts cmn.Contracts
	chain     ChainReader
	fetcher   *Fetcher

	mu            sync.Mutex
	account       *common.Address
	generation    uint64 // bumped on every account change
	activity      *Activity
	lastSynced    *uint64
	initialSynced bool
	inFlight      bool
}

func NewTracker(cfg *cmn.SConfig, chain ChainReader) *Tracker {
	return &Tracker{
		cfg:       cfg,
		contracts: cfg.Contracts(),
		chain:     chain,
		fetcher:   NewFetcher(chain, cfg.MaxLogRange),
		activity:  NewActivity(),
	}
}

// SetAccount switches the tracked account. Any change discards activity and
// cursor, and results of scans started for the previous account.
func (t *Tracker) SetAccount(a *common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if (a == nil && t.account == nil) || (a != nil && t.account != nil && *a == *t.account) {
		return
	}

	if a != nil {
		acc := *a
		t.account = &acc
	} else {
		t.account = nil
	}
	t.reset_locked()
}

func (t *Tracker) reset_locked() {
	t.generation++
	t.activity = NewActivity()
	t.lastSynced = nil
	t.initialSynced = false
	t.inFlight = false
}

// Generation identifies the current account; it changes on every switch.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

func (t *Tracker) Account() *common.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.account == nil {
		return nil
	}
	a := *t.account
	return &a
}

// Sync brings the activity up to height. The first successful call scans
// from the deploy block to the current chain height; later calls scan
// [cursor+1, height]. On failure nothing changes and the caller retries on
// the next tick.
func (t *Tracker) Sync(ctx context.Context, height uint64) error {
	t.mu.Lock()
	if t.account == nil || !t.contracts.Ready() {
		if t.lastSynced != nil || t.initialSynced {
			t.reset_locked()
		}
		t.mu.Unlock()
		return ErrNotReady
	}
	if t.inFlight {
		t.mu.Unlock()
		return ErrScanInFlight
	}

	account := *t.account
	gen := t.generation
	initial := !t.initialSynced
	var from uint64
	if initial {
		from = t.cfg.VaultDeployBlock
	} else {
		if height <= *t.lastSynced {
			t.mu.Unlock()
			return nil
		}
		from = *t.lastSynced + 1
	}
	t.inFlight = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if gen == t.generation {
			t.inFlight = false
		}
		t.mu.Unlock()
	}()

	to := height
	if initial {
		latest, err := t.chain.BlockNumber(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("initial sync: BlockNumber failed")
			return err
		}
		to = latest
	}

	var deposits []DepositActivity
	var supplies []SupplyActivity
	if from <= to {
		logs, err := t.fetcher.FetchVaultLogs(ctx, *t.contracts.Vault, account, from, to)
		if err != nil {
			log.Debug().Err(err).Uint64("from", from).Uint64("to", to).Bool("initial", initial).Msg("sync failed")
			return err
		}
		deposits = ReduceDeposits(logs.Deposits)
		supplies = ReduceSupplies(logs.Supplies)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.generation {
		log.Debug().Str("account", account.Hex()).Msg("discarding scan for previous account")
		return nil
	}

	added := t.activity.Merge(deposits, supplies)
	cursor := to
	if initial && from > to {
		// chain behind the deploy block: polls resume at the deploy block
		cursor = from - 1
	}
	if t.lastSynced == nil || cursor > *t.lastSynced {
		t.lastSynced = &cursor
	}
	t.initialSynced = true

	log.Debug().Str("account", account.Hex()).Uint64("from", from).Uint64("to", cursor).Int("new", added).Msg("synced")
	return nil
}

func (t *Tracker) State() SyncState {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := SyncState{
		HasCompletedInitialSync: t.initialSynced,
		Loading:                 t.account != nil && t.contracts.Ready() && !t.initialSynced,
	}
	if t.lastSynced != nil {
		n := *t.lastSynced
		s.LastSyncedBlock = &n
	}
	return s
}

func (t *Tracker) Deposits() []DepositActivity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activity.Deposits()
}

func (t *Tracker) Supplies() []SupplyActivity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activity.Supplies()
}
