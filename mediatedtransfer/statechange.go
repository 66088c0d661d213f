package mediatedtransfer

import (
	"encoding/gob"

	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/transfer"
	"github.com/smartraiden/mcore/transfer/route"
)

// ActionInitInitiatorStateChange starts a mediated transfer. The init
// state must contain all data required to do useful work; there must not
// be a follow-up event requesting more data (ported verbatim from the
// teacher's transfer/mediatedtransfer/statechange.go).
type ActionInitInitiatorStateChange struct {
	OurAddress  primitives.Address
	Description *TransferDescriptionWithSecretState
	Routes      *route.RoutesState
	BlockNumber primitives.BlockNumber
}

// ActionInitMediatorStateChange is the initial state for a new mediator.
type ActionInitMediatorStateChange struct {
	OurAddress  primitives.Address
	FromTransfer *LockedTransferSignedState
	Routes      *route.RoutesState
	FromRoute   *route.State
	BlockNumber primitives.BlockNumber
}

// ActionInitTargetStateChange is the initial state for a new target.
type ActionInitTargetStateChange struct {
	OurAddress  primitives.Address
	FromTransfer *LockedTransferSignedState
	FromRoute   *route.State
	BlockNumber primitives.BlockNumber
}

// ActionCancelRouteStateChange cancels the current route, not the transfer
// itself; used for timeouts (teacher: ActionCancelRouteStateChange).
type ActionCancelRouteStateChange struct {
	SecretHash primitives.SecretHash
	ChannelIdentifier primitives.Keccak256
}

// ActionCancelPaymentStateChange cancels the payment outright. A
// cancellation past the point of no return (secret already revealed by the
// payee) is ignored (spec.md §5 Cancellation).
type ActionCancelPaymentStateChange struct {
	SecretHash primitives.SecretHash
}

// ReceiveSecretRequestStateChange is a SecretRequest message received.
type ReceiveSecretRequestStateChange struct {
	Identifier primitives.Identifier
	Amount     *primitives.TokenAmount
	SecretHash primitives.SecretHash
	Sender     primitives.Address
}

// ReceiveSecretRevealStateChange is a SecretReveal message received.
type ReceiveSecretRevealStateChange struct {
	Secret primitives.Secret
	Sender primitives.Address
}

// ReceiveBalanceProofStateChange is a balance proof received for secrethash.
type ReceiveBalanceProofStateChange struct {
	SecretHash   primitives.SecretHash
	NodeAddress  primitives.Address
	BalanceProof *transfer.BalanceProofSignedState
}

// BlockStateChange advances the chain head. Block events are delivered to
// every payment in strictly increasing block-number order (spec.md §5);
// regression is forbidden, skipping is allowed.
type BlockStateChange struct {
	BlockNumber primitives.BlockNumber
}

// ContractChannelCloseStateChange is observed when a channel is closed
// unilaterally on-chain.
type ContractChannelCloseStateChange struct {
	ChannelIdentifier primitives.Keccak256
	BlockNumber       primitives.BlockNumber
}

// ContractChannelWithdrawStateChange is observed when a lock is withdrawn
// on-chain using the revealed secret.
type ContractChannelWithdrawStateChange struct {
	ChannelIdentifier primitives.Keccak256
	Secret            primitives.Secret
	BlockNumber       primitives.BlockNumber
}

func init() {
	gob.Register(&ActionInitInitiatorStateChange{})
	gob.Register(&ActionInitMediatorStateChange{})
	gob.Register(&ActionInitTargetStateChange{})
	gob.Register(&ActionCancelRouteStateChange{})
	gob.Register(&ActionCancelPaymentStateChange{})
	gob.Register(&ReceiveSecretRequestStateChange{})
	gob.Register(&ReceiveSecretRevealStateChange{})
	gob.Register(&ReceiveBalanceProofStateChange{})
	gob.Register(&BlockStateChange{})
	gob.Register(&ContractChannelCloseStateChange{})
	gob.Register(&ContractChannelWithdrawStateChange{})
}
