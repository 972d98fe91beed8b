package node

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog"
)

// txSource announces transactions entering the pool. *txpool.TxPool satisfies it.
type txSource interface {
	SubscribeTransactions(ch chan<- core.NewTxsEvent, reorgs bool) event.Subscription
}

// committer seals a block with whatever the pool holds. *catalyst.SimulatedBeacon satisfies it.
type committer interface {
	Commit() common.Hash
}

// sealer produces a block whenever transactions enter the pool. A simulated
// beacon with a zero period never seals on its own, so a dev node running on
// demand registers a sealer next to it.
//
// Pool announcements are coalesced: a burst of events while a block is being
// sealed yields a single follow-up commit. The pool never blocks on a commit in
// progress.
type sealer struct {
	logger zerolog.Logger
	pool   txSource
	beacon committer

	sub  event.Subscription
	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

func newSealer(logger zerolog.Logger, pool txSource, beacon committer) *sealer {
	return &sealer{
		logger: logger.With().Str("component", "sealer").Logger(),
		pool:   pool,
		beacon: beacon,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start implements node.Lifecycle.
func (s *sealer) Start() error {
	txs := make(chan core.NewTxsEvent, 64)
	s.sub = s.pool.SubscribeTransactions(txs, true)

	s.wg.Add(2)
	go s.listen(txs)
	go s.seal()
	return nil
}

// Stop implements node.Lifecycle. It waits for a commit in progress to finish.
func (s *sealer) Stop() error {
	close(s.done)
	s.sub.Unsubscribe()
	s.wg.Wait()
	return nil
}

func (s *sealer) listen(txs <-chan core.NewTxsEvent) {
	defer s.wg.Done()
	for {
		select {
		case ev := <-txs:
			s.logger.Debug().Int("txs", len(ev.Txs)).Msg("transactions pending")
			select {
			case s.wake <- struct{}{}:
			default:
			}
		case <-s.sub.Err():
			return
		case <-s.done:
			return
		}
	}
}

func (s *sealer) seal() {
	defer s.wg.Done()
	for {
		select {
		case <-s.wake:
			hash := s.beacon.Commit()
			s.logger.Debug().Str("block", hash.Hex()).Msg("block sealed")
		case <-s.done:
			return
		}
	}
}
