// Package transfer holds the channel-level substates shared by every
// transfer role: the hash-time-lock, and the unsigned/signed balance proof.
// These are exclusively owned by whichever transfer state embeds them and
// are replaced wholesale on transition, never mutated in place.
package transfer

import (
	"fmt"

	"github.com/smartraiden/mcore/primitives"
)

// HashTimeLockState is {amount, expiration, secrethash}. The lock is valid
// until the chain head reaches expiration.
type HashTimeLockState struct {
	Amount      *primitives.TokenAmount
	Expiration  primitives.BlockNumber
	SecretHash  primitives.SecretHash
}

// NewHashTimeLockState validates and builds a HashTimeLockState. Validated
// builders make invalid states unrepresentable rather than relying on
// runtime isinstance-style guards (spec.md §9 redesign note).
func NewHashTimeLockState(amount *primitives.TokenAmount, expiration primitives.BlockNumber, secretHash primitives.SecretHash) (*HashTimeLockState, error) {
	if amount == nil {
		return nil, fmt.Errorf("transfer: lock amount must not be nil")
	}
	if expiration <= 0 {
		return nil, fmt.Errorf("transfer: lock expiration must be positive, got %d", expiration)
	}
	return &HashTimeLockState{Amount: amount, Expiration: expiration, SecretHash: secretHash}, nil
}

// Expired reports whether the chain head has reached the lock's expiration.
func (l *HashTimeLockState) Expired(blockNumber primitives.BlockNumber) bool {
	return blockNumber >= l.Expiration
}

// Equal performs structural comparison, the Go analogue of the teacher's
// hand-written __eq__ methods (spec.md §9: derive equality from fields).
func (l *HashTimeLockState) Equal(other *HashTimeLockState) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.Amount.Eq(other.Amount) &&
		l.Expiration == other.Expiration &&
		l.SecretHash == other.SecretHash
}

// BalanceProofUnsignedState is {nonce, transferred_amount, locksroot,
// channel_identifier, message_hash}, not yet attested by a counterparty
// signature.
type BalanceProofUnsignedState struct {
	Nonce              primitives.Nonce
	TransferredAmount  *primitives.TransferredAmount
	LocksRoot          primitives.LocksRoot
	ChannelIdentifier  primitives.Keccak256
	MessageHash        primitives.Keccak256
}

// NewBalanceProofUnsignedState validates nonce >= 1 and the locksroot
// invariant: if any pending lock exists the locksroot must not be the empty
// Merkle root. hasPendingLocks is supplied by the caller because this
// package does not itself track the lock set.
func NewBalanceProofUnsignedState(nonce primitives.Nonce, transferredAmount *primitives.TransferredAmount, locksRoot primitives.LocksRoot, channelIdentifier, messageHash primitives.Keccak256, hasPendingLocks bool) (*BalanceProofUnsignedState, error) {
	if nonce < 1 {
		return nil, fmt.Errorf("transfer: nonce must be >= 1, got %d", nonce)
	}
	if transferredAmount == nil {
		return nil, fmt.Errorf("transfer: transferred_amount must not be nil")
	}
	if hasPendingLocks && locksRoot == primitives.EmptyMerkleRoot {
		return nil, fmt.Errorf("transfer: locksroot must not be empty when locks are pending")
	}
	return &BalanceProofUnsignedState{
		Nonce:             nonce,
		TransferredAmount: transferredAmount,
		LocksRoot:         locksRoot,
		ChannelIdentifier: channelIdentifier,
		MessageHash:       messageHash,
	}, nil
}

// Equal performs structural comparison.
func (b *BalanceProofUnsignedState) Equal(other *BalanceProofUnsignedState) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Nonce == other.Nonce &&
		b.TransferredAmount.Eq(other.TransferredAmount) &&
		b.LocksRoot == other.LocksRoot &&
		b.ChannelIdentifier == other.ChannelIdentifier &&
		b.MessageHash == other.MessageHash
}

// BalanceProofSignedState is the unsigned fields plus {signature, sender},
// where sender = recover(message_hash, signature). The invariant that
// sender equals the channel counterparty is enforced by the caller that
// knows which channel this proof belongs to (VerifySender below).
type BalanceProofSignedState struct {
	BalanceProofUnsignedState
	Signature primitives.Signature
	Sender    primitives.Address
}

// NewBalanceProofSignedState validates the unsigned fields and attaches the
// recovered sender.
func NewBalanceProofSignedState(unsigned *BalanceProofUnsignedState, signature primitives.Signature, sender primitives.Address) (*BalanceProofSignedState, error) {
	if unsigned == nil {
		return nil, fmt.Errorf("transfer: balance proof must not be nil")
	}
	return &BalanceProofSignedState{
		BalanceProofUnsignedState: *unsigned,
		Signature:                 signature,
		Sender:                    sender,
	}, nil
}

// VerifySender checks the invariant that the recovered signer is the
// expected channel counterparty. A mismatch is a validation error (§7):
// the event is rejected, no state changes, and a diagnostic is emitted.
func (b *BalanceProofSignedState) VerifySender(expectedCounterparty primitives.Address) error {
	if b.Sender != expectedCounterparty {
		return fmt.Errorf("transfer: balance proof sender %s does not match counterparty %s", b.Sender.Hex(), expectedCounterparty.Hex())
	}
	return nil
}

// Equal performs structural comparison.
func (b *BalanceProofSignedState) Equal(other *BalanceProofSignedState) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.BalanceProofUnsignedState.Equal(&other.BalanceProofUnsignedState) &&
		b.Signature == other.Signature &&
		b.Sender == other.Sender
}
