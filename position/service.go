package position

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AlexNa-Holdings/kobonest/bus"
	"github.com/AlexNa-Holdings/kobonest/cmn"
	"github.com/rs/zerolog/log"
)

type Chain interface {
	ChainReader
	ContractReader
}

// Service drives the Tracker from block ticks and account changes and
// publishes a fresh Snapshot on position/updated after every tick.
type Service struct {
	cfg       *cmn.SConfig
	contracts cmn.Contracts
	chain     Chain
	tracker   *Tracker
	bus       *bus.Bus

	mu       sync.Mutex
	height   uint64
	snapshot *Snapshot
}

func NewService(cfg *cmn.SConfig, chain Chain, b *bus.Bus) *Service {
	return &Service{
		cfg:       cfg,
		contracts: cfg.Contracts(),
		chain:     chain,
		tracker:   NewTracker(cfg, chain),
		bus:       b,
	}
}

func (s *Service) Tracker() *Tracker { return s.tracker }

// Loop consumes eth and session messages until ctx is done.
func (s *Service) Loop(ctx context.Context) {
	ch := s.bus.Subscribe("eth", "session")
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			s.process(ctx, msg)
		}
	}
}

func (s *Service) process(ctx context.Context, msg *bus.Message) {
	switch msg.Topic {
	case "eth":
		switch msg.Type {
		case "block":
			b, ok := msg.Data.(*bus.B_EthBlock)
			if !ok {
				log.Error().Msgf("position: invalid block data %T", msg.Data)
				return
			}
			s.mu.Lock()
			if b.Height > s.height {
				s.height = b.Height
			}
			s.mu.Unlock()
			go s.Tick(ctx, b.Height)
		}
	case "session":
		switch msg.Type {
		case "account-changed":
			a, ok := msg.Data.(*bus.B_SessionAccount)
			if !ok {
				log.Error().Msgf("position: invalid account data %T", msg.Data)
				return
			}
			s.tracker.SetAccount(a.Account)
			s.publish(s.Refresh(ctx)) // show the reset state right away
			go s.Tick(ctx, s.Height())
		}
	}
}

func (s *Service) Height() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// Tick runs one sync step and publishes the resulting snapshot. It never
// fails: errors leave the state for the next tick to retry.
func (s *Service) Tick(ctx context.Context, height uint64) {
	err := s.tracker.Sync(ctx, height)
	switch {
	case err == nil:
	case errors.Is(err, ErrScanInFlight):
		return
	case errors.Is(err, ErrNotReady):
		log.Trace().Msg("position: not ready")
	default:
		log.Warn().Err(err).Uint64("height", height).Msg("position sync failed, will retry")
	}

	s.publish(s.Refresh(ctx))
}

// Refresh re-reads live values and recomputes the snapshot. It returns nil,
// and keeps the stored snapshot, when the account changed during the reads.
func (s *Service) Refresh(ctx context.Context) *Snapshot {
	gen := s.tracker.Generation()
	account := s.tracker.Account()

	var snap *Snapshot
	if account == nil || !s.contracts.Ready() {
		snap = Aggregate(nil, nil, placeholderReads(s.cfg), s.cfg)
		snap.Ready = false
	} else {
		reads := ReadLive(ctx, s.chain, s.cfg, s.contracts, *account)
		snap = Aggregate(s.tracker.Deposits(), s.tracker.Supplies(), reads, s.cfg)
	}
	snap.Account = account
	snap.Sync = s.tracker.State()
	snap.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.tracker.Generation() {
		log.Debug().Msg("position: discarding snapshot for previous account")
		return nil
	}
	s.snapshot = snap
	return snap
}

func (s *Service) publish(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.bus.Send("position", "updated", snap)
}

// Snapshot returns the last computed snapshot, or nil before the first tick.
func (s *Service) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}
