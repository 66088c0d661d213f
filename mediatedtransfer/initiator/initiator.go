// Package initiator implements the initiator role's transition function
// (spec.md §4.1): ActionInitInitiator, ReceiveSecretRequest,
// ReceiveSecretReveal, ActionCancelRoute, Block.
package initiator

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/smartraiden/mcore/mediatedtransfer"
	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/transfer"
	"github.com/smartraiden/mcore/transfer/mtree"
)

// Config carries the environment options consumed by the initiator
// machine (spec.md §6).
type Config struct {
	RevealTimeout      primitives.BlockNumber
	ConfirmationBlocks primitives.BlockNumber
}

// State is the per-payment working state: the payment container plus the
// transfer state for the currently active route attempt. A payment holds
// at most one active InitiatorTransferState at a time (spec.md §9: no
// concurrent initiator transfers per payment until the upstream refund
// policy is resolved).
type State struct {
	Payment  *mediatedtransfer.InitiatorPaymentState
	Transfer *mediatedtransfer.InitiatorTransferState
}

// nextHop is supplied by the caller (it knows the channel topology); the
// core never looks up routing tables itself.
type nextHop = primitives.Address

// Init handles ActionInitInitiator: select the first viable route and emit
// a fresh SendLockedTransfer with expiration = current_block +
// reveal_timeout*2 (spec.md §4.1).
func Init(change *mediatedtransfer.ActionInitInitiatorStateChange, cfg Config, excludedChannels map[primitives.Keccak256]bool) (*State, []mediatedtransfer.Event, error) {
	route := change.Routes.NextViable(excludedChannels)
	if route == nil {
		return nil, []mediatedtransfer.Event{
			mediatedtransfer.EventTransferFailed{
				Identifier: change.Description.Identifier,
				SecretHash: change.Description.SecretHash,
				Reason:     "no viable route",
			},
		}, nil
	}

	expiration := change.BlockNumber + 2*cfg.RevealTimeout

	lock, err := transfer.NewHashTimeLockState(change.Description.Amount, expiration, change.Description.SecretHash)
	if err != nil {
		return nil, nil, err
	}

	locksRoot := mtree.MerkleRoot([]*mtree.Lock{{
		Amount:     lock.Amount,
		Expiration: lock.Expiration,
		SecretHash: lock.SecretHash,
	}})

	balanceProof, err := transfer.NewBalanceProofUnsignedState(
		1,
		primitives.NewAmount(0),
		locksRoot,
		route.ChannelIdentifier,
		primitives.Keccak256{},
		true,
	)
	if err != nil {
		return nil, nil, err
	}

	lockedTransfer, err := mediatedtransfer.NewLockedTransferUnsignedState(
		change.Description.Identifier,
		change.Description.Token,
		balanceProof,
		lock,
		change.Description.Initiator,
		change.Description.Target,
	)
	if err != nil {
		return nil, nil, err
	}

	payment := mediatedtransfer.NewInitiatorPaymentState(change.OurAddress)
	transferState, err := mediatedtransfer.NewInitiatorTransferState(change.Description, route.ChannelIdentifier, route.NodeAddress)
	if err != nil {
		return nil, nil, err
	}
	transferState.Transfer = lockedTransfer

	events := []mediatedtransfer.Event{
		mediatedtransfer.SendLockedTransferEvent{
			Recipient: route.NodeAddress,
			Transfer:  lockedTransfer,
		},
	}

	return &State{Payment: payment, Transfer: transferState}, events, nil
}

// ReceiveSecretRequest handles ReceiveSecretRequest: accept iff
// amount == lock.amount && secrethash == lock.secrethash && sender == target.
// Invalid requests are silently dropped (spec.md §4.1 Failure semantics).
func ReceiveSecretRequest(state *State, change *mediatedtransfer.ReceiveSecretRequestStateChange, nextHopAddr nextHop) (*State, []mediatedtransfer.Event) {
	lock := state.Transfer.Transfer.Lock
	target := state.Transfer.Transfer.Target

	if !change.Amount.Eq(lock.Amount) || change.SecretHash != lock.SecretHash || change.Sender != target {
		log.Debug("initiator: dropping invalid secret request",
			"identifier", change.Identifier, "sender", change.Sender.Hex())
		return state, nil
	}

	cp := *state.Transfer
	cp.SecretRequest = change
	newTransferState := &cp

	revealEvent := mediatedtransfer.SendRevealSecretEvent{
		Recipient: nextHopAddr,
		Secret:    state.Transfer.TransferDescription.Secret,
	}
	newTransferState.RevealSecret = &revealEvent

	return &State{Payment: state.Payment, Transfer: newTransferState}, []mediatedtransfer.Event{revealEvent}
}

// ReceiveSecretReveal handles a SecretReveal arriving from the next hop:
// emit a balance proof that unlocks the lock.
func ReceiveSecretReveal(state *State, change *mediatedtransfer.ReceiveSecretRevealStateChange) (*State, []mediatedtransfer.Event, error) {
	transferState := state.Transfer.Transfer
	lock := transferState.Lock

	if primitives.HashSecret(change.Secret) != lock.SecretHash {
		// mismatched hash is a protocol error: logged but not fatal.
		log.Warn("initiator: secret does not match lock, dropping", "secrethash", lock.SecretHash.Hex())
		return state, nil, nil
	}

	newAmount, err := primitives.AddAmount(transferState.BalanceProof.TransferredAmount, lock.Amount)
	if err != nil {
		return nil, nil, err
	}

	newLocksRoot := primitives.EmptyMerkleRoot // the sole lock is removed once unlocked
	newBalanceProof, err := transfer.NewBalanceProofUnsignedState(
		transferState.BalanceProof.Nonce+1,
		newAmount,
		newLocksRoot,
		transferState.BalanceProof.ChannelIdentifier,
		primitives.Keccak256{},
		false,
	)
	if err != nil {
		return nil, nil, err
	}

	event := mediatedtransfer.SendBalanceProofEvent{
		Recipient:    state.Transfer.NextHopAddress,
		SecretHash:   lock.SecretHash,
		BalanceProof: newBalanceProof,
	}

	completed := mediatedtransfer.EventTransferCompleted{
		Identifier: state.Transfer.TransferDescription.Identifier,
		SecretHash: state.Transfer.TransferDescription.SecretHash,
	}

	return state, []mediatedtransfer.Event{event, completed}, nil
}

// CancelRoute handles ActionCancelRoute or a Block past
// lock.expiration+confirmation_blocks: mark the channel cancelled. A new
// route retry requires the external caller to supply a fresh
// TransferDescriptionWithSecretState with a different secret — the
// original secret must never be reused on a new route (linkability
// attack prevention, spec.md §4.1).
func CancelRoute(state *State, channelIdentifier primitives.Keccak256) *State {
	return &State{
		Payment:  state.Payment.WithCancelledChannel(channelIdentifier),
		Transfer: state.Transfer,
	}
}

// Block handles a block advance: expiry past lock.expiration+confirmation
// is a normal transition, not an error (spec.md §4.1).
func Block(state *State, change *mediatedtransfer.BlockStateChange, cfg Config) (*State, []mediatedtransfer.Event) {
	lock := state.Transfer.Transfer.Lock
	if change.BlockNumber < lock.Expiration+cfg.ConfirmationBlocks {
		return state, nil
	}
	newState := CancelRoute(state, state.Transfer.ChannelIdentifier)
	return newState, []mediatedtransfer.Event{
		mediatedtransfer.EventUnlockFailed{
			SecretHash: state.Transfer.TransferDescription.SecretHash,
			Reason:     "lock expired without secret reveal",
		},
	}
}
