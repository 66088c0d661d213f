package mediatedtransfer

import (
	"encoding/gob"

	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/transfer"
)

// Event is the marker interface for every side-effect a transition function
// may return. The core never performs I/O itself (spec.md §5): all
// transport sends and on-chain actions are values returned from a
// transition, to be carried out by the dispatcher's external collaborators.
type Event interface {
	isEvent()
}

// SendLockedTransferEvent asks the transport to deliver a fresh
// LockedTransfer to Recipient.
type SendLockedTransferEvent struct {
	Recipient primitives.Address
	Transfer  *LockedTransferUnsignedState
}

func (SendLockedTransferEvent) isEvent() {}

// SendSecretRequestEvent asks the transport to deliver a SecretRequest,
// sent by the target to the initiator.
type SendSecretRequestEvent struct {
	Recipient  primitives.Address
	Identifier primitives.Identifier
	Amount     *primitives.TokenAmount
	SecretHash primitives.SecretHash
}

func (SendSecretRequestEvent) isEvent() {}

// SendRevealSecretEvent asks the transport to deliver a RevealSecret. The
// secret races backward along the route: target -> mediator -> initiator.
type SendRevealSecretEvent struct {
	Recipient primitives.Address
	Secret    primitives.Secret
}

func (SendRevealSecretEvent) isEvent() {}

// SendBalanceProofEvent asks the transport to deliver an updated,
// unlocking balance proof to Recipient.
type SendBalanceProofEvent struct {
	Recipient    primitives.Address
	SecretHash   primitives.SecretHash
	BalanceProof *transfer.BalanceProofUnsignedState
}

func (SendBalanceProofEvent) isEvent() {}

// SendRefundTransferEvent asks the transport to deliver a RefundTransfer to
// the payer when the mediator has no viable forward route.
type SendRefundTransferEvent struct {
	Recipient primitives.Address
	Transfer  *LockedTransferUnsignedState
}

func (SendRefundTransferEvent) isEvent() {}

// ContractSendChannelCloseEvent asks the chain collaborator to close a
// channel unilaterally (payer_waiting_close transition).
type ContractSendChannelCloseEvent struct {
	ChannelIdentifier primitives.Keccak256
}

func (ContractSendChannelCloseEvent) isEvent() {}

// ContractSendWithdrawEvent asks the chain collaborator to submit the
// revealed secret on-chain to withdraw a lock.
type ContractSendWithdrawEvent struct {
	ChannelIdentifier primitives.Keccak256
	Secret            primitives.Secret
}

func (ContractSendWithdrawEvent) isEvent() {}

// EventTransferCompleted signals the payment as a whole has finished
// successfully (target reached payee_balance_proof / transfer unlocked).
type EventTransferCompleted struct {
	Identifier primitives.Identifier
	SecretHash primitives.SecretHash
}

func (EventTransferCompleted) isEvent() {}

// EventTransferFailed signals the payment failed irrecoverably (no routes
// left, or final expiry without resolution).
type EventTransferFailed struct {
	Identifier primitives.Identifier
	SecretHash primitives.SecretHash
	Reason     string
}

func (EventTransferFailed) isEvent() {}

// EventUnlockFailed signals a lock could not be unlocked before its
// expiration and the corresponding side expired.
type EventUnlockFailed struct {
	SecretHash primitives.SecretHash
	Reason     string
}

func (EventUnlockFailed) isEvent() {}

func init() {
	gob.Register(&SendLockedTransferEvent{})
	gob.Register(&SendSecretRequestEvent{})
	gob.Register(&SendRevealSecretEvent{})
	gob.Register(&SendBalanceProofEvent{})
	gob.Register(&SendRefundTransferEvent{})
	gob.Register(&ContractSendChannelCloseEvent{})
	gob.Register(&ContractSendWithdrawEvent{})
	gob.Register(&EventTransferCompleted{})
	gob.Register(&EventTransferFailed{})
	gob.Register(&EventUnlockFailed{})
}
