// Package target implements the target role's transition function
// (spec.md §4.3): secret_request -> reveal_secret -> waiting_close ->
// expired, plus completion on an unlocking balance proof.
package target

import (
	"github.com/smartraiden/mcore/mediatedtransfer"
	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/transfer"
)

// Config carries the environment options consumed by the target machine.
type Config struct {
	RevealTimeout primitives.BlockNumber
}

// Init handles receipt of a LockedTransfer addressed to us: transition to
// secret_request and emit SendSecretRequest.
func Init(change *mediatedtransfer.ActionInitTargetStateChange) (*mediatedtransfer.TargetTransferState, []mediatedtransfer.Event) {
	state := mediatedtransfer.NewTargetTransferState(change.FromRoute.NodeAddress, change.FromTransfer)

	event := mediatedtransfer.SendSecretRequestEvent{
		Recipient:  change.FromTransfer.Initiator,
		Identifier: change.FromTransfer.Identifier,
		Amount:     change.FromTransfer.Lock.Amount,
		SecretHash: change.FromTransfer.Lock.SecretHash,
	}

	return state, []mediatedtransfer.Event{event}
}

// ReceiveSecretReveal handles a SecretReveal matching our lock's
// secrethash: store the secret, advance to reveal_secret, and propagate
// the reveal backward to the payer.
func ReceiveSecretReveal(state *mediatedtransfer.TargetTransferState, change *mediatedtransfer.ReceiveSecretRevealStateChange) (*mediatedtransfer.TargetTransferState, []mediatedtransfer.Event, error) {
	if state.Secret != nil {
		// A secret is accepted exactly once; a second identical reveal is a
		// no-op (spec.md §4.2 invariant 4, applied symmetrically to the target).
		return state, nil, nil
	}

	newState, err := state.WithSecret(change.Secret)
	if err != nil {
		return state, nil, nil
	}

	event := mediatedtransfer.SendRevealSecretEvent{
		Recipient: *state.Route,
		Secret:    change.Secret,
	}

	return newState, []mediatedtransfer.Event{event}, nil
}

// ReceiveBalanceProof handles an unlocking balance proof: the payment
// completes, and the state is marked TargetCompleted so Block becomes a
// no-op from here on (spec.md §4.3 "complete; no further transitions").
func ReceiveBalanceProof(state *mediatedtransfer.TargetTransferState, balanceProof *transfer.BalanceProofSignedState) (*mediatedtransfer.TargetTransferState, []mediatedtransfer.Event, error) {
	lock := state.Transfer.Lock
	if err := verifyUnlock(state.Transfer.BalanceProof, balanceProof, lock.Amount); err != nil {
		return state, nil, err
	}

	event := mediatedtransfer.EventTransferCompleted{
		Identifier: state.Transfer.Identifier,
		SecretHash: lock.SecretHash,
	}

	return state.WithState(mediatedtransfer.TargetCompleted), []mediatedtransfer.Event{event}, nil
}

// Block handles a block advance (spec.md §4.3):
//   - n >= lock.expiration - reveal_timeout without balance proof: waiting_close
//   - n >= lock.expiration without resolution: expired
//
// A target already TargetExpired or TargetCompleted is terminal (spec.md
// §4.3 "complete; no further transitions") and ignores every later block.
func Block(state *mediatedtransfer.TargetTransferState, blockNumber primitives.BlockNumber, cfg Config) (*mediatedtransfer.TargetTransferState, []mediatedtransfer.Event) {
	if state.State == mediatedtransfer.TargetExpired || state.State == mediatedtransfer.TargetCompleted {
		return state, nil
	}

	lock := state.Transfer.Lock

	if blockNumber >= lock.Expiration {
		return state.WithState(mediatedtransfer.TargetExpired), []mediatedtransfer.Event{
			mediatedtransfer.EventUnlockFailed{SecretHash: lock.SecretHash, Reason: "lock expired"},
		}
	}

	if blockNumber >= lock.Expiration-cfg.RevealTimeout && state.State != mediatedtransfer.TargetWaitingClose {
		return state.WithState(mediatedtransfer.TargetWaitingClose), []mediatedtransfer.Event{
			mediatedtransfer.ContractSendChannelCloseEvent{ChannelIdentifier: state.Transfer.BalanceProof.ChannelIdentifier},
		}
	}

	return state, nil
}

// verifyUnlock checks that a balance proof actually unlocks the lock:
// nonce advances by exactly one and transferred_amount increases by exactly
// lock.Amount. The new locksroot is not inspected.
func verifyUnlock(previous *transfer.BalanceProofSignedState, next *transfer.BalanceProofSignedState, lockAmount *primitives.TokenAmount) error {
	if next.Nonce != previous.Nonce+1 {
		return mediatedtransfer.NewProtocolViolation("non-monotonic nonce: got %d, expected %d", next.Nonce, previous.Nonce+1)
	}
	delta, err := primitives.SubAmount(next.TransferredAmount, previous.TransferredAmount)
	if err != nil {
		return mediatedtransfer.NewProtocolViolation("transferred_amount decreased")
	}
	if !delta.Eq(lockAmount) {
		return mediatedtransfer.NewProtocolViolation("transferred_amount delta %s does not match lock amount %s", delta.String(), lockAmount.String())
	}
	return nil
}
