// Package dispatcher routes external events (received message, block
// advance, on-chain confirmation) to the appropriate role machine and
// returns the resulting side-effects (spec.md §2). It is the single
// serialization point the concurrency model in spec.md §5 relies on:
// events per payment are processed in the order they arrive here, and a
// payment's state is exclusively owned by the dispatcher keyed by
// secrethash (mediator, target) or by payment identifier alone
// (initiator); the initiator address is not part of that key.
package dispatcher

import (
	"sync"

	"github.com/smartraiden/mcore/mediatedtransfer"
	"github.com/smartraiden/mcore/mediatedtransfer/initiator"
	"github.com/smartraiden/mcore/mediatedtransfer/mediator"
	"github.com/smartraiden/mcore/mediatedtransfer/target"
	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/transfer/route"
)

// Dispatcher owns every in-flight payment's state, keyed per spec.md §3
// "Ownership & lifecycle". A single mutex serializes every Dispatch call,
// so events for the same payment are strictly ordered, and unrelated
// payments also wait on one another (spec.md §5: "no ordering guarantee"
// across payments, "totally ordered" within one).
type Dispatcher struct {
	mu sync.Mutex

	initiators map[primitives.Identifier]*initiator.State
	mediators  map[primitives.SecretHash]*mediatedtransfer.MediatorTransferState
	targets    map[primitives.SecretHash]*mediatedtransfer.TargetTransferState

	initiatorCfg initiator.Config
	mediatorCfg  mediator.Config
	targetCfg    target.Config
}

// New builds an empty Dispatcher using the given per-role configs, derived
// from the shared environment options (spec.md §6).
func New(initiatorCfg initiator.Config, mediatorCfg mediator.Config, targetCfg target.Config) *Dispatcher {
	return &Dispatcher{
		initiators:   make(map[primitives.Identifier]*initiator.State),
		mediators:    make(map[primitives.SecretHash]*mediatedtransfer.MediatorTransferState),
		targets:      make(map[primitives.SecretHash]*mediatedtransfer.TargetTransferState),
		initiatorCfg: initiatorCfg,
		mediatorCfg:  mediatorCfg,
		targetCfg:    targetCfg,
	}
}

// DispatchInitInitiator handles ActionInitInitiator: stores the new
// initiator state keyed by payment identifier and returns the outgoing
// SendLockedTransfer.
func (d *Dispatcher) DispatchInitInitiator(change *mediatedtransfer.ActionInitInitiatorStateChange, excludedChannels map[primitives.Keccak256]bool) ([]mediatedtransfer.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, events, err := initiator.Init(change, d.initiatorCfg, excludedChannels)
	if err != nil {
		return nil, err
	}
	if state != nil {
		d.initiators[change.Description.Identifier] = state
	}
	return events, nil
}

// DispatchReceiveSecretRequest routes a SecretRequest to the initiator
// owning its payment identifier. Unknown identifiers are silently dropped,
// matching the "invalid secret request is silently dropped" failure
// semantics (spec.md §4.1).
func (d *Dispatcher) DispatchReceiveSecretRequest(change *mediatedtransfer.ReceiveSecretRequestStateChange, nextHop primitives.Address) []mediatedtransfer.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.initiators[change.Identifier]
	if !ok {
		return nil
	}
	newState, events := initiator.ReceiveSecretRequest(state, change, nextHop)
	d.initiators[change.Identifier] = newState
	return events
}

// DispatchInitMediator handles ActionInitMediator, storing the resulting
// MediatorTransferState keyed by secrethash. forwardRoute is nil when no
// viable forward route exists, triggering the refund path (spec.md §4.2).
func (d *Dispatcher) DispatchInitMediator(change *mediatedtransfer.ActionInitMediatorStateChange, fee *primitives.Fee, forwardRoute *route.State) ([]mediatedtransfer.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, events, err := mediator.Init(change, d.mediatorCfg, fee, forwardRoute)
	if err != nil {
		return nil, err
	}
	d.mediators[change.FromTransfer.Lock.SecretHash] = state
	return events, nil
}

// DispatchInitTarget handles ActionInitTarget, storing the resulting
// TargetTransferState keyed by secrethash.
func (d *Dispatcher) DispatchInitTarget(change *mediatedtransfer.ActionInitTargetStateChange) []mediatedtransfer.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	state, events := target.Init(change)
	d.targets[change.FromTransfer.Lock.SecretHash] = state
	return events
}

// DispatchReceiveSecretReveal routes a SecretReveal to every role machine
// that owns secretHash: a mediator, and/or a target. A payment may only
// have one of {mediator, target} active for a given secrethash on this
// node, but both maps are checked for uniformity with the dispatch table.
func (d *Dispatcher) DispatchReceiveSecretReveal(secretHash primitives.SecretHash, change *mediatedtransfer.ReceiveSecretRevealStateChange) ([]mediatedtransfer.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var events []mediatedtransfer.Event

	if mstate, ok := d.mediators[secretHash]; ok {
		newState, mevents, err := mediator.ReceiveSecretReveal(mstate, change)
		if err != nil {
			return nil, err
		}
		d.mediators[secretHash] = newState
		events = append(events, mevents...)
	}

	if tstate, ok := d.targets[secretHash]; ok {
		newState, tevents, err := target.ReceiveSecretReveal(tstate, change)
		if err != nil {
			return nil, err
		}
		d.targets[secretHash] = newState
		events = append(events, tevents...)
	}

	return events, nil
}

// DispatchReceiveBalanceProof routes a received balance proof to the
// mediator or target owning secretHash (never both: a payer-side proof only
// makes sense against a mediator's upstream pair; a target has no payer
// side to forward from, so the proof always closes its own transfer).
func (d *Dispatcher) DispatchReceiveBalanceProof(secretHash primitives.SecretHash, change *mediatedtransfer.ReceiveBalanceProofStateChange) ([]mediatedtransfer.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if mstate, ok := d.mediators[secretHash]; ok {
		newState, events, err := mediator.ReceiveBalanceProof(mstate, change)
		if err != nil {
			return nil, err
		}
		d.mediators[secretHash] = newState
		return events, nil
	}

	if tstate, ok := d.targets[secretHash]; ok {
		newState, events, err := target.ReceiveBalanceProof(tstate, change.BalanceProof)
		if err != nil {
			return nil, err
		}
		if newState.State == mediatedtransfer.TargetCompleted {
			// Terminal: drop the entry so a later DispatchBlock can't find it
			// and spuriously drive it through waiting_close/expired.
			delete(d.targets, secretHash)
		} else {
			d.targets[secretHash] = newState
		}
		return events, nil
	}

	return nil, nil
}

// DispatchContractChannelClose routes an on-chain channel-close observation
// to every mediator pair using that channel as its payer side.
func (d *Dispatcher) DispatchContractChannelClose(secretHash primitives.SecretHash, channelIdentifier primitives.Keccak256) []mediatedtransfer.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	mstate, ok := d.mediators[secretHash]
	if !ok {
		return nil
	}
	newState, events := mediator.ContractChannelClose(mstate, channelIdentifier)
	d.mediators[secretHash] = newState
	return events
}

// DispatchContractChannelWithdraw routes an on-chain withdraw observation to
// the mediator owning secretHash.
func (d *Dispatcher) DispatchContractChannelWithdraw(secretHash primitives.SecretHash, channelIdentifier primitives.Keccak256, secret primitives.Secret) ([]mediatedtransfer.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mstate, ok := d.mediators[secretHash]
	if !ok {
		return nil, nil
	}
	newState, events, err := mediator.ContractChannelWithdraw(mstate, channelIdentifier, secret)
	if err != nil {
		return nil, err
	}
	d.mediators[secretHash] = newState
	return events, nil
}

// DispatchBlock advances every in-flight payment by one block, in the
// strictly increasing order required by spec.md §5.
func (d *Dispatcher) DispatchBlock(blockNumber primitives.BlockNumber) []mediatedtransfer.Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	var events []mediatedtransfer.Event

	for secretHash, mstate := range d.mediators {
		newState, mevents := mediator.Block(mstate, blockNumber)
		d.mediators[secretHash] = newState
		events = append(events, mevents...)
	}

	for secretHash, tstate := range d.targets {
		newState, tevents := target.Block(tstate, blockNumber, d.targetCfg)
		d.targets[secretHash] = newState
		events = append(events, tevents...)
	}

	for identifier, istate := range d.initiators {
		change := &mediatedtransfer.BlockStateChange{BlockNumber: blockNumber}
		newState, ievents := initiator.Block(istate, change, d.initiatorCfg)
		d.initiators[identifier] = newState
		events = append(events, ievents...)
	}

	return events
}
