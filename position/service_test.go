package position

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/AlexNa-Holdings/kobonest/bus"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSnapshot(t *testing.T, ch chan *bus.Message, ok func(*Snapshot) bool) *Snapshot {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case msg := <-ch:
			s, isSnap := msg.Data.(*Snapshot)
			require.True(t, isSnap)
			if ok(s) {
				return s
			}
		case <-timeout:
			t.Fatal("no matching snapshot published")
			return nil
		}
	}
}

func TestServicePublishesSnapshots(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(200)
	chain.addLog(depositLog(t, alice, 150, 2_700_000))
	chain.addLog(supplyLog(t, alice, 151, 2_000))
	chain.liquidityRate = ray(30)
	chain.poolBalance = big.NewInt(2_100)

	b := bus.New()
	go b.ProcessMessages()

	updates := b.Subscribe("position")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := NewService(testConfig(), chain, b)
	go svc.Loop(ctx)

	// Loop subscribes asynchronously
	require.Eventually(t, func() bool {
		b.M.Lock()
		defer b.M.Unlock()
		return len(b.Subscribers["session"]) > 0
	}, 2*time.Second, time.Millisecond)

	b.Send("session", "account-changed", &bus.B_SessionAccount{Account: &alice})

	s := waitSnapshot(t, updates, func(s *Snapshot) bool { return s.Sync.HasCompletedInitialSync })
	assert.True(t, s.Ready)
	require.NotNil(t, s.Account)
	assert.Equal(t, alice, *s.Account)
	require.Len(t, s.Deposits, 1)
	assert.Equal(t, int64(2_000), s.Principal.Int64())
	assert.Equal(t, int64(100), s.Yield.Int64())
	assert.Equal(t, uint64(200), *s.Sync.LastSyncedBlock)

	chain.addLog(depositLog(t, alice, 205, 1_350))
	b.Send("eth", "block", &bus.B_EthBlock{Height: 210})

	s = waitSnapshot(t, updates, func(s *Snapshot) bool {
		return s.Sync.LastSyncedBlock != nil && *s.Sync.LastSyncedBlock == 210
	})
	require.Len(t, s.Deposits, 2)
	assert.Equal(t, uint64(205), s.Deposits[0].Block)
	assert.Equal(t, uint64(210), svc.Height())
	assert.NotNil(t, svc.Snapshot())
}

func TestServiceWithoutAccount(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(10)

	b := bus.New()
	go b.ProcessMessages()
	updates := b.Subscribe("position")

	svc := NewService(testConfig(), chain, b)
	svc.Tick(context.Background(), 10)

	s := waitSnapshot(t, updates, func(*Snapshot) bool { return true })
	assert.False(t, s.Ready)
	assert.Nil(t, s.Account)
	assert.Zero(t, s.TotalBalance.Sign())
	assert.Empty(t, chain.queryLog())
}

func TestTickDropsSnapshotOfPreviousAccount(t *testing.T) {
	chain := newFakeChain()
	chain.setHeight(10)
	chain.pending = big.NewInt(777)

	reading := make(chan struct{})
	release := make(chan struct{})
	chain.onPending = func(user common.Address) {
		if user == alice {
			close(reading)
			<-release
		}
	}

	b := bus.New()
	go b.ProcessMessages()
	updates := b.Subscribe("position")

	svc := NewService(testConfig(), chain, b)
	svc.Tracker().SetAccount(&alice)

	done := make(chan struct{})
	go func() {
		svc.Tick(context.Background(), 10)
		close(done)
	}()
	<-reading

	svc.Tracker().SetAccount(&bob)
	fresh := svc.Refresh(context.Background())
	require.NotNil(t, fresh)
	require.NotNil(t, fresh.Account)
	assert.Equal(t, bob, *fresh.Account)

	close(release)
	<-done

	s := svc.Snapshot()
	require.NotNil(t, s)
	require.NotNil(t, s.Account)
	assert.Equal(t, bob, *s.Account)

	select {
	case msg := <-updates:
		t.Fatalf("snapshot of previous account published: %+v", msg.Data)
	case <-time.After(100 * time.Millisecond):
	}
}
