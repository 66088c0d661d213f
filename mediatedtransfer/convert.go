package mediatedtransfer

import (
	"github.com/smartraiden/mcore/encoding"
	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/transfer"
)

// NewLockedTransferSignedFromMessage builds a LockedTransferSignedState
// directly from a wire LockedTransfer message, ported from the Python
// ancestor's lockedtransfersigned_from_message
// (original_source/raiden/transfer/mediated_transfer/state.py).
func NewLockedTransferSignedFromMessage(message *encoding.LockedTransfer) (*LockedTransferSignedState, error) {
	unsignedBalanceProof, err := transfer.NewBalanceProofUnsignedState(
		message.Nonce,
		message.TransferredAmount,
		message.LocksRoot,
		message.Channel,
		message.MessageHash(),
		message.LocksRoot != primitives.EmptyMerkleRoot,
	)
	if err != nil {
		return nil, err
	}

	balanceProof, err := transfer.NewBalanceProofSignedState(unsignedBalanceProof, message.Signature, message.Sender)
	if err != nil {
		return nil, err
	}

	lock, err := transfer.NewHashTimeLockState(message.Amount, message.Expiration, message.SecretHash)
	if err != nil {
		return nil, err
	}

	return NewLockedTransferSignedState(
		message.Identifier,
		message.Token,
		balanceProof,
		lock,
		message.Initiator,
		message.Target,
	)
}
