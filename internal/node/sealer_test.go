package node

import (
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"
	"github.com/thep2p/go-eth-devkit/internal/testutils"
)

type feedPool struct {
	feed event.Feed
}

func (p *feedPool) SubscribeTransactions(ch chan<- core.NewTxsEvent, reorgs bool) event.Subscription {
	return p.feed.Subscribe(ch)
}

type countingBeacon struct {
	commits atomic.Int32
	delay   time.Duration
}

func (b *countingBeacon) Commit() common.Hash {
	time.Sleep(b.delay)
	n := b.commits.Add(1)
	return common.BigToHash(big.NewInt(int64(n)))
}

func newTxsEvent() core.NewTxsEvent {
	return core.NewTxsEvent{Txs: []*types.Transaction{types.NewTx(&types.LegacyTx{})}}
}

// TestSealer_CommitsOnNewTransactions checks that a pool announcement leads to a
// sealed block and that nothing is sealed without one.
func TestSealer_CommitsOnNewTransactions(t *testing.T) {
	pool := &feedPool{}
	beacon := &countingBeacon{}
	s := newSealer(testutils.Logger(t), pool, beacon)
	require.NoError(t, s.Start())

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, beacon.commits.Load())

	pool.feed.Send(newTxsEvent())
	require.Eventually(t, func() bool { return beacon.commits.Load() == 1 }, time.Second, 5*time.Millisecond)

	pool.feed.Send(newTxsEvent())
	require.Eventually(t, func() bool { return beacon.commits.Load() == 2 }, time.Second, 5*time.Millisecond)

	testutils.RequireCallMustReturnWithinTimeout(t, func() { _ = s.Stop() }, time.Second, "sealer did not stop")
}

// TestSealer_CoalescesBursts checks that announcements arriving during a commit
// never block the pool and collapse into a single follow-up commit.
func TestSealer_CoalescesBursts(t *testing.T) {
	pool := &feedPool{}
	beacon := &countingBeacon{delay: 100 * time.Millisecond}
	s := newSealer(testutils.Logger(t), pool, beacon)
	require.NoError(t, s.Start())

	testutils.RequireCallMustReturnWithinTimeout(t, func() {
		for i := 0; i < 20; i++ {
			pool.feed.Send(newTxsEvent())
		}
	}, time.Second, "pool blocked on a commit in progress")

	require.Eventually(t, func() bool { return beacon.commits.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.LessOrEqual(t, beacon.commits.Load(), int32(2))

	require.NoError(t, s.Stop())
}

// TestSealer_StopsCommitting checks that no block is sealed after Stop.
func TestSealer_StopsCommitting(t *testing.T) {
	pool := &feedPool{}
	beacon := &countingBeacon{}
	s := newSealer(testutils.Logger(t), pool, beacon)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())

	// the subscription is gone, so Send reaches no one
	require.Zero(t, pool.feed.Send(newTxsEvent()))
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, beacon.commits.Load())
}
