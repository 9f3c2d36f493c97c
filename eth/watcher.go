package eth

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/AlexNa-Holdings/kobonest/bus"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

var ErrWatcherStarted = errors.New("block watcher already started")

type HeightSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

type headSubscriber interface {
	SupportsSubscriptions() bool
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// Watcher publishes strictly increasing chain heights on eth/block.
type Watcher struct {
	src     HeightSource
	chainID uint64
	every   time.Duration
	bus     *bus.Bus

	started atomic.Bool
	last    atomic.Uint64
}

func NewWatcher(src HeightSource, chainID uint64, every time.Duration, b *bus.Bus) *Watcher {
	return &Watcher{src: src, chainID: chainID, every: every, bus: b}
}

// Run blocks until ctx is done. A Watcher cannot be restarted.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrWatcherStarted
	}

	if hs, ok := w.src.(headSubscriber); ok && hs.SupportsSubscriptions() {
		err := w.subscribe(ctx, hs)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("head subscription ended, falling back to polling")
	}

	return w.poll(ctx)
}

func (w *Watcher) subscribe(ctx context.Context, hs headSubscriber) error {
	heads := make(chan *types.Header, 16)
	sub, err := hs.SubscribeNewHead(ctx, heads)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case h := <-heads:
			if h != nil && h.Number != nil {
				w.publish(h.Number.Uint64())
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	ticker := time.NewTicker(w.every)
	defer ticker.Stop()

	for {
		n, err := w.src.BlockNumber(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("BlockNumber failed")
		} else {
			w.publish(n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) publish(height uint64) {
	for {
		last := w.last.Load()
		if height <= last {
			return
		}
		if w.last.CompareAndSwap(last, height) {
			break
		}
	}
	w.bus.Send("eth", "block", &bus.B_EthBlock{ChainID: w.chainID, Height: height})
}

// Last is the highest height published so far.
func (w *Watcher) Last() uint64 {
	return w.last.Load()
}
