// Package mediator implements the mediator role's transition function
// (spec.md §4.2), the hardest surface in the core: two independent finite
// state machines per MediationPairState (payer side, payee side), the
// refund path, and the five safety invariants that must hold across every
// transition.
package mediator

import (
	"github.com/ethereum/go-ethereum/log"

	"github.com/smartraiden/mcore/mediatedtransfer"
	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/transfer"
	"github.com/smartraiden/mcore/transfer/mtree"
	"github.com/smartraiden/mcore/transfer/route"
)

// Config carries the environment options consumed by the mediator machine.
type Config struct {
	RevealTimeout      primitives.BlockNumber
	ConfirmationBlocks primitives.BlockNumber
}

// buildPayeeTransfer derives the outgoing (payee) half of a mediation pair
// from an incoming (payer) signed transfer, enforcing the two value/timing
// safety invariants (spec.md §4.2):
//
//  1. No value creation: payee.lock.amount <= payer.lock.amount.
//  2. Timing safety: payee.lock.expiration + reveal_timeout <= payer.lock.expiration.
//
// Both the forward-mediation path (NewMediationPair) and the refund path
// (Init's no-forward-route branch) go through this helper so neither can
// drift from the other and skip invariant 2 — a refund pair is still a
// MediationPairState and the invariant is not stated as forward-only.
func buildPayeeTransfer(payerTransfer *mediatedtransfer.LockedTransferSignedState, payeeAddress primitives.Address, fee *primitives.Fee, channelIdentifier primitives.Keccak256, cfg Config) (*mediatedtransfer.LockedTransferUnsignedState, error) {
	payerLock := payerTransfer.Lock

	payeeAmount, err := primitives.SubAmount(payerLock.Amount, fee)
	if err != nil {
		return nil, mediatedtransfer.NewProtocolViolation("fee %s exceeds payer lock amount %s", fee.String(), payerLock.Amount.String())
	}

	payeeExpiration := payerLock.Expiration - cfg.RevealTimeout - 1
	if payeeExpiration+cfg.RevealTimeout > payerLock.Expiration {
		return nil, mediatedtransfer.NewInternalInvariantError("timing safety violated while building mediation pair")
	}

	payeeLock, err := transfer.NewHashTimeLockState(payeeAmount, payeeExpiration, payerLock.SecretHash)
	if err != nil {
		return nil, err
	}

	locksRoot := mtree.MerkleRoot([]*mtree.Lock{{
		Amount:     payeeLock.Amount,
		Expiration: payeeLock.Expiration,
		SecretHash: payeeLock.SecretHash,
	}})

	payeeBalanceProof, err := transfer.NewBalanceProofUnsignedState(
		1,
		primitives.NewAmount(0),
		locksRoot,
		channelIdentifier,
		primitives.Keccak256{},
		true,
	)
	if err != nil {
		return nil, err
	}

	return mediatedtransfer.NewLockedTransferUnsignedState(
		payerTransfer.Identifier,
		payerTransfer.Token,
		payeeBalanceProof,
		payeeLock,
		payerTransfer.Initiator,
		payerTransfer.Target,
	)
}

// NewMediationPair builds the forward-mediation pair: buildPayeeTransfer's
// output sent onward to payeeAddress as a fresh SendLockedTransfer.
func NewMediationPair(payerTransfer *mediatedtransfer.LockedTransferSignedState, payeeAddress primitives.Address, fee *primitives.Fee, channelIdentifier primitives.Keccak256, cfg Config) (*mediatedtransfer.MediationPairState, mediatedtransfer.Event, error) {
	payeeTransfer, err := buildPayeeTransfer(payerTransfer, payeeAddress, fee, channelIdentifier, cfg)
	if err != nil {
		return nil, nil, err
	}

	pair, err := mediatedtransfer.NewMediationPairState(payerTransfer, payeeAddress, payeeTransfer)
	if err != nil {
		return nil, nil, err
	}

	event := mediatedtransfer.SendLockedTransferEvent{
		Recipient: payeeAddress,
		Transfer:  payeeTransfer,
	}

	return pair, event, nil
}

// Init handles ActionInitMediator: try the next viable forward route. If
// none exists, emit SendRefundTransfer to the payer and build a pair where
// the original payer becomes the new payee (spec.md §4.2 Refund handling).
func Init(change *mediatedtransfer.ActionInitMediatorStateChange, cfg Config, fee *primitives.Fee, forwardRoute *route.State) (*mediatedtransfer.MediatorTransferState, []mediatedtransfer.Event, error) {
	state := mediatedtransfer.NewMediatorTransferState(change.FromTransfer.Lock.SecretHash)

	if forwardRoute == nil {
		// The refund pair is still a MediationPairState and invariant 2 is
		// not stated as forward-only: the refunded lock must leave the same
		// reveal_timeout margin under the incoming lock's expiration that a
		// forward pair would, via the same buildPayeeTransfer used by
		// NewMediationPair — never the incoming lock's own expiration, or
		// the mediator could end up unable to claim upstream before the
		// payer's lock settles.
		refundTransfer, err := buildPayeeTransfer(change.FromTransfer, change.FromRoute.NodeAddress, primitives.NewAmount(0), change.FromRoute.ChannelIdentifier, cfg)
		if err != nil {
			return nil, nil, err
		}

		refundEvent := mediatedtransfer.SendRefundTransferEvent{
			Recipient: change.FromRoute.NodeAddress,
			Transfer:  refundTransfer,
		}

		// The refund pair: the original payer is now this pair's payee; a
		// later pair (once a live alternative route appears) will have this
		// same refunded transfer as its own payer side when the secret is
		// revealed via the refund path.
		refundPair, err := mediatedtransfer.NewMediationPairState(change.FromTransfer, change.FromRoute.NodeAddress, refundTransfer)
		if err != nil {
			return nil, nil, err
		}

		state = state.WithTransfersPair([]*mediatedtransfer.MediationPairState{refundPair})
		return state, []mediatedtransfer.Event{refundEvent}, nil
	}

	pair, sendEvent, err := NewMediationPair(change.FromTransfer, forwardRoute.NodeAddress, fee, forwardRoute.ChannelIdentifier, cfg)
	if err != nil {
		return nil, nil, err
	}

	state = state.WithTransfersPair([]*mediatedtransfer.MediationPairState{pair})
	return state, []mediatedtransfer.Event{sendEvent}, nil
}

// ReceiveSecretReveal handles a SecretReveal from a payee: validate the
// hash, mark that pair's payee side secret_revealed, and propagate the
// reveal to the corresponding payer (spec.md §4.2 table row 1-2).
//
// A secret is accepted exactly once per MediatorTransferState; a second
// reveal with a matching hash is a no-op, a mismatched hash is logged as a
// protocol error but not fatal (invariant 4).
func ReceiveSecretReveal(state *mediatedtransfer.MediatorTransferState, change *mediatedtransfer.ReceiveSecretRevealStateChange) (*mediatedtransfer.MediatorTransferState, []mediatedtransfer.Event, error) {
	if primitives.HashSecret(change.Secret) != state.SecretHash {
		log.Warn("mediator: secret does not match secrethash, dropping", "secrethash", state.SecretHash.Hex())
		return state, nil, nil
	}

	alreadyKnown := state.Secret != nil

	newState := state
	if !alreadyKnown {
		var err error
		newState, err = state.WithSecret(change.Secret)
		if err != nil {
			return state, nil, err
		}
	}

	var events []mediatedtransfer.Event
	pairs := make([]*mediatedtransfer.MediationPairState, len(newState.TransfersPair))
	copy(pairs, newState.TransfersPair)

	for i, pair := range pairs {
		if pair.PayeeAddress != change.Sender {
			continue
		}
		if pair.PayeeState != mediatedtransfer.PayeePending {
			// already revealed, no-op
			continue
		}
		pairs[i] = pair.WithPayeeState(mediatedtransfer.PayeeSecretRevealed)

		if pairs[i].PayerState == mediatedtransfer.PayerPending {
			pairs[i] = pairs[i].WithPayerState(mediatedtransfer.PayerSecretRevealed)
			events = append(events, mediatedtransfer.SendRevealSecretEvent{
				Recipient: pairs[i].PayerTransfer.BalanceProof.Sender,
				Secret:    change.Secret,
			})
		}
	}

	newState = newState.WithTransfersPair(pairs)
	return newState, events, nil
}

// ReceiveBalanceProof handles a balance proof received from the payer side
// of a pair: the lock is removed from the channel's pending set once
// payer_balance_proof is reached (invariant 5: no double-claim), and the
// mediator forwards an equivalent balance proof to the payee.
func ReceiveBalanceProof(state *mediatedtransfer.MediatorTransferState, change *mediatedtransfer.ReceiveBalanceProofStateChange) (*mediatedtransfer.MediatorTransferState, []mediatedtransfer.Event, error) {
	pairs := make([]*mediatedtransfer.MediationPairState, len(state.TransfersPair))
	copy(pairs, state.TransfersPair)

	var events []mediatedtransfer.Event

	for i, pair := range pairs {
		if change.NodeAddress != pair.PayerTransfer.BalanceProof.Sender {
			continue
		}
		if pair.PayerState != mediatedtransfer.PayerPending && pair.PayerState != mediatedtransfer.PayerSecretRevealed {
			continue
		}

		if err := verifyUnlockingProof(&pair.PayerTransfer.BalanceProof.BalanceProofUnsignedState, change.BalanceProof, pair.PayerTransfer.Lock.Amount); err != nil {
			return state, nil, err
		}

		// The unlocking proof's locksroot no longer holds this lock, so the
		// stored payer transfer is a copy with the new proof rather than a
		// value from the builder, which rejects an empty locksroot.
		newPayerTransfer := *pair.PayerTransfer
		newPayerTransfer.BalanceProof = change.BalanceProof

		pairs[i] = pair.WithPayerTransfer(&newPayerTransfer).WithPayerState(mediatedtransfer.PayerBalanceProof)

		if pairs[i].PayeeState != mediatedtransfer.PayeeExpired && pairs[i].PayeeState != mediatedtransfer.PayeeBalanceProof {
			payeeBalanceProof, err := nextPayeeBalanceProof(pairs[i].PayeeTransfer.BalanceProof, pairs[i].PayeeTransfer.Lock)
			if err != nil {
				return state, nil, err
			}
			updatedPayeeTransfer := *pairs[i].PayeeTransfer
			updatedPayeeTransfer.BalanceProof = payeeBalanceProof
			pairs[i] = pairs[i].WithPayeeState(mediatedtransfer.PayeeBalanceProof)
			pairs[i].PayeeTransfer = &updatedPayeeTransfer

			events = append(events, mediatedtransfer.SendBalanceProofEvent{
				Recipient:    pairs[i].PayeeAddress,
				SecretHash:   state.SecretHash,
				BalanceProof: payeeBalanceProof,
			})
		}
	}

	return state.WithTransfersPair(pairs), events, nil
}

// nextPayeeBalanceProof computes the updated, unlocking payee-side balance
// proof: nonce+1, transferred_amount increased by exactly lock.amount, and
// the locksroot recomputed with the lock removed (invariant 3: monotonic nonce).
func nextPayeeBalanceProof(previous *transfer.BalanceProofUnsignedState, lock *transfer.HashTimeLockState) (*transfer.BalanceProofUnsignedState, error) {
	newAmount, err := primitives.AddAmount(previous.TransferredAmount, lock.Amount)
	if err != nil {
		return nil, err
	}
	return transfer.NewBalanceProofUnsignedState(
		previous.Nonce+1,
		newAmount,
		primitives.EmptyMerkleRoot,
		previous.ChannelIdentifier,
		primitives.Keccak256{},
		false,
	)
}

// verifyUnlockingProof enforces invariant 3 (monotonic nonce) against a
// received balance proof: any received proof with a non-monotonic nonce is
// rejected as a protocol violation.
func verifyUnlockingProof(previous *transfer.BalanceProofUnsignedState, next *transfer.BalanceProofSignedState, lockAmount *primitives.TokenAmount) error {
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

// Block advances every pending pair side past expiration to its <side>_expired
// state (spec.md §4.2 table row 5). Side that is not pending is unaffected.
func Block(state *mediatedtransfer.MediatorTransferState, blockNumber primitives.BlockNumber) (*mediatedtransfer.MediatorTransferState, []mediatedtransfer.Event) {
	pairs := make([]*mediatedtransfer.MediationPairState, len(state.TransfersPair))
	copy(pairs, state.TransfersPair)

	var events []mediatedtransfer.Event

	for i, pair := range pairs {
		if pair.PayerState == mediatedtransfer.PayerPending && blockNumber >= pair.PayerTransfer.Lock.Expiration {
			pairs[i] = pairs[i].WithPayerState(mediatedtransfer.PayerExpired)
			events = append(events, mediatedtransfer.EventUnlockFailed{SecretHash: state.SecretHash, Reason: "payer lock expired"})
		}
		if pairs[i].PayeeState == mediatedtransfer.PayeePending && blockNumber >= pairs[i].PayeeTransfer.Lock.Expiration {
			pairs[i] = pairs[i].WithPayeeState(mediatedtransfer.PayeeExpired)
			events = append(events, mediatedtransfer.EventUnlockFailed{SecretHash: state.SecretHash, Reason: "payee lock expired"})
		}
	}

	return state.WithTransfersPair(pairs), events
}

// ContractChannelClose handles a unilateral on-chain close observed for a
// pair's payer-side channel: transition to payer_waiting_close and, if the
// secret is already known, emit ContractSendWithdraw.
func ContractChannelClose(state *mediatedtransfer.MediatorTransferState, channelIdentifier primitives.Keccak256) (*mediatedtransfer.MediatorTransferState, []mediatedtransfer.Event) {
	pairs := make([]*mediatedtransfer.MediationPairState, len(state.TransfersPair))
	copy(pairs, state.TransfersPair)

	var events []mediatedtransfer.Event

	for i, pair := range pairs {
		if pair.PayerTransfer.BalanceProof.ChannelIdentifier != channelIdentifier {
			continue
		}
		if pair.PayerState != mediatedtransfer.PayerPending && pair.PayerState != mediatedtransfer.PayerSecretRevealed {
			continue
		}
		pairs[i] = pairs[i].WithPayerState(mediatedtransfer.PayerWaitingClose)

		if state.Secret != nil {
			events = append(events, mediatedtransfer.ContractSendWithdrawEvent{
				ChannelIdentifier: channelIdentifier,
				Secret:            *state.Secret,
			})
		}
	}

	return state.WithTransfersPair(pairs), events
}

// ContractChannelWithdraw handles an on-chain withdraw observed for a pair's
// payer-side channel: secretHash must already be known (the withdraw proves
// someone else presented it on-chain) and the pair moves
// payer_waiting_close -> payer_waiting_withdraw -> payer_contract_withdraw in
// one step, since the core only learns about the withdraw after it settles
// (spec.md §4.2 payer states).
func ContractChannelWithdraw(state *mediatedtransfer.MediatorTransferState, channelIdentifier primitives.Keccak256, secret primitives.Secret) (*mediatedtransfer.MediatorTransferState, []mediatedtransfer.Event, error) {
	if primitives.HashSecret(secret) != state.SecretHash {
		return state, nil, mediatedtransfer.NewProtocolViolation("contract withdraw secret does not match secrethash %s", state.SecretHash.Hex())
	}

	newState := state
	if newState.Secret == nil {
		var err error
		newState, err = newState.WithSecret(secret)
		if err != nil {
			return state, nil, err
		}
	}

	pairs := make([]*mediatedtransfer.MediationPairState, len(newState.TransfersPair))
	copy(pairs, newState.TransfersPair)

	for i, pair := range pairs {
		if pair.PayerTransfer.BalanceProof.ChannelIdentifier != channelIdentifier {
			continue
		}
		if pair.PayerState == mediatedtransfer.PayerExpired || pair.PayerState == mediatedtransfer.PayerBalanceProof {
			continue
		}
		pairs[i] = pairs[i].WithPayerState(mediatedtransfer.PayerContractWithdraw)
	}

	return newState.WithTransfersPair(pairs), nil, nil
}
