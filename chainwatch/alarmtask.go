// Package chainwatch adapts the teacher's AlarmTask into the ChainObserver
// collaborator consumed by the core (spec.md §6): it delivers Block(n)
// notifications sourced from an Ethereum client's head subscription. Block
// events are delivered to every registered payment in strictly increasing
// block-number order; skipping is allowed, regression is forbidden
// (spec.md §5).
package chainwatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"

	"github.com/smartraiden/mcore/primitives"
)

// BlockCallback is notified on every new head. Returning a non-nil error
// unregisters the callback, mirroring the teacher's stop-on-error contract.
type BlockCallback func(blockNumber primitives.BlockNumber) error

// AlarmTask polls an Ethereum client for new blocks and fans them out to
// every registered callback, in strictly increasing order.
type AlarmTask struct {
	client          *ethclient.Client
	lastBlockNumber primitives.BlockNumber
	shouldStop      chan struct{}
	waitTime        time.Duration
	callbacks       []BlockCallback
	lock            sync.Mutex
}

// NewAlarmTask builds an AlarmTask bound to client.
func NewAlarmTask(client *ethclient.Client) *AlarmTask {
	return &AlarmTask{
		client:          client,
		waitTime:        time.Second,
		lastBlockNumber: -1,
		shouldStop:      make(chan struct{}),
	}
}

// RegisterCallback registers a new callback. The callback runs in the
// AlarmTask goroutine and must not block, or block-change notifications
// will be delayed for every other registered payment.
func (t *AlarmTask) RegisterCallback(cb BlockCallback) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.callbacks = append(t.callbacks, cb)
}

func (t *AlarmTask) removeCallback(target int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.callbacks = append(t.callbacks[:target], t.callbacks[target+1:]...)
}

func (t *AlarmTask) run() {
	log.Debug(fmt.Sprintf("starting alarm task at block %d", t.lastBlockNumber))
	for {
		err := t.waitNewBlock()
		if err == nil {
			// waitNewBlock returns nil only once Stop was called.
			return
		}
		time.Sleep(t.waitTime)
	}
}

func (t *AlarmTask) waitNewBlock() error {
	current := t.lastBlockNumber
	headerCh := make(chan *types.Header, 1)

	h, err := t.client.HeaderByNumber(context.Background(), nil)
	if err != nil {
		return err
	}
	headerCh <- h

	sub, err := t.client.SubscribeNewHead(context.Background(), headerCh)
	if err != nil {
		log.Warn("chainwatch: SubscribeNewHead failed", "err", err)
		return err
	}

	for {
		select {
		case h, ok := <-headerCh:
			if !ok {
				return errors.New("chainwatch: header channel closed unexpectedly")
			}
			blockNumber := primitives.BlockNumber(h.Number.Int64())
			if current != -1 && blockNumber <= current {
				log.Warn("chainwatch: received non-increasing block, dropping", "got", blockNumber, "last", current)
				continue
			}
			if current != -1 && blockNumber != current+1 {
				log.Warn(fmt.Sprintf("chainwatch: alarm missed %d blocks", int64(blockNumber-current)))
			}
			current = blockNumber
			t.lastBlockNumber = current

			t.lock.Lock()
			callbacks := make([]BlockCallback, len(t.callbacks))
			copy(callbacks, t.callbacks)
			t.lock.Unlock()

			var dead []int
			for i, cb := range callbacks {
				if cbErr := cb(current); cbErr != nil {
					dead = append(dead, i)
				}
			}
			for i := len(dead) - 1; i >= 0; i-- {
				t.removeCallback(dead[i])
			}
		case <-t.shouldStop:
			sub.Unsubscribe()
			close(headerCh)
			return nil
		}
	}
}

// Start begins polling in a background goroutine.
func (t *AlarmTask) Start() {
	go t.run()
}

// Stop halts polling.
func (t *AlarmTask) Stop() {
	t.shouldStop <- struct{}{}
	close(t.shouldStop)
}
