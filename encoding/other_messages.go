package encoding

import (
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/signer"
)

// DirectTransfer shares the LockedTransfer layout minus the lock fields
// (expiration, locksroot, secrethash, amount, fee) and the target and
// initiator addresses — a direct payment with no hash-time-lock (spec.md §6).
type DirectTransfer struct {
	Nonce             primitives.Nonce
	Identifier        primitives.Identifier
	Token             primitives.Address
	Channel           primitives.Keccak256
	Recipient         primitives.Address
	TransferredAmount *uint256.Int
	Signature         primitives.Signature
	Sender            primitives.Address
}

func (m *DirectTransfer) Pack() []byte {
	buf := make([]byte, 0, 1+3+8+8+20*2+32+32)
	buf = append(buf, CmdDirectTransfer, 0, 0, 0)
	buf = appendUint64(buf, uint64(m.Nonce))
	buf = appendUint64(buf, uint64(m.Identifier))
	buf = append(buf, m.Token[:]...)
	buf = append(buf, m.Channel[:]...)
	buf = append(buf, m.Recipient[:]...)
	buf = appendUint256BE(buf, m.TransferredAmount)
	return buf
}

func (m *DirectTransfer) MessageHash() primitives.Keccak256 {
	return gethcrypto.Keccak256Hash(m.Pack())
}

func (m *DirectTransfer) Sign(s signer.Signer) error {
	hash := m.MessageHash()
	sig, err := s.Sign(hash)
	if err != nil {
		return err
	}
	m.Signature = sig
	m.Sender = s.Address()
	return nil
}

func (m *DirectTransfer) ToMapping() map[string]string {
	return map[string]string{
		"nonce":              fmt.Sprintf("%d", m.Nonce),
		"identifier":         fmt.Sprintf("%d", m.Identifier),
		"token":              m.Token.Hex(),
		"channel":            m.Channel.Hex(),
		"recipient":          m.Recipient.Hex(),
		"transferred_amount": m.TransferredAmount.String(),
		"signature":          bytesToHex(m.Signature[:]),
		"sender":             m.Sender.Hex(),
	}
}

func DirectTransferFromMapping(m map[string]string) (*DirectTransfer, error) {
	nonce, err := parseUint64(m["nonce"])
	if err != nil {
		return nil, fmt.Errorf("encoding: nonce: %w", err)
	}
	identifier, err := parseUint64(m["identifier"])
	if err != nil {
		return nil, fmt.Errorf("encoding: identifier: %w", err)
	}
	transferredAmount, err := parseUint256(m["transferred_amount"])
	if err != nil {
		return nil, fmt.Errorf("encoding: transferred_amount: %w", err)
	}
	sig, err := parseSignature(m["signature"])
	if err != nil {
		return nil, fmt.Errorf("encoding: signature: %w", err)
	}
	return &DirectTransfer{
		Nonce:             primitives.Nonce(nonce),
		Identifier:        primitives.Identifier(identifier),
		Token:             parseAddress(m["token"]),
		Channel:           parseHash(m["channel"]),
		Recipient:         parseAddress(m["recipient"]),
		TransferredAmount: transferredAmount,
		Signature:         sig,
		Sender:            parseAddress(m["sender"]),
	}, nil
}

func (m *DirectTransfer) Equal(other *DirectTransfer) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Nonce == other.Nonce &&
		m.Identifier == other.Identifier &&
		m.Token == other.Token &&
		m.Channel == other.Channel &&
		m.Recipient == other.Recipient &&
		m.TransferredAmount.Eq(other.TransferredAmount) &&
		m.Signature == other.Signature &&
		m.Sender == other.Sender
}

// RefundTransfer shares LockedTransfer's full layout (spec.md §6): it is
// itself a locked transfer, sent back to the payer when a mediator has no
// viable forward route.
type RefundTransfer struct {
	LockedTransfer
}

func (m *RefundTransfer) Pack() []byte {
	buf := packLockedLayout(
		CmdRefundTransfer,
		uint64(m.Nonce), uint64(m.Identifier), int64(m.Expiration),
		m.Token, m.Channel, m.Recipient, m.Target, m.Initiator,
		m.LocksRoot, m.SecretHash,
		m.TransferredAmount, m.Amount, m.Fee,
	)
	return buf
}

func (m *RefundTransfer) MessageHash() primitives.Keccak256 {
	return gethcrypto.Keccak256Hash(m.Pack())
}

func (m *RefundTransfer) Sign(s signer.Signer) error {
	hash := m.MessageHash()
	sig, err := s.Sign(hash)
	if err != nil {
		return err
	}
	m.Signature = sig
	m.Sender = s.Address()
	return nil
}

func (m *RefundTransfer) ToMapping() map[string]string {
	return m.LockedTransfer.ToMapping()
}

func RefundTransferFromMapping(m map[string]string) (*RefundTransfer, error) {
	lt, err := LockedTransferFromMapping(m)
	if err != nil {
		return nil, err
	}
	return &RefundTransfer{LockedTransfer: *lt}, nil
}

func (m *RefundTransfer) Equal(other *RefundTransfer) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.LockedTransfer.Equal(&other.LockedTransfer)
}

// SecretRequest is sent by the target to the initiator, requesting
// confirmation of the amount and secrethash before revealing the secret.
type SecretRequest struct {
	Identifier primitives.Identifier
	Amount     *uint256.Int
	SecretHash primitives.SecretHash
	Signature  primitives.Signature
	Sender     primitives.Address
}

func (m *SecretRequest) Pack() []byte {
	buf := make([]byte, 0, 1+3+8+32+32)
	buf = append(buf, CmdSecretRequest, 0, 0, 0)
	buf = appendUint64(buf, uint64(m.Identifier))
	buf = appendUint256BE(buf, m.Amount)
	buf = append(buf, m.SecretHash[:]...)
	return buf
}

func (m *SecretRequest) MessageHash() primitives.Keccak256 {
	return gethcrypto.Keccak256Hash(m.Pack())
}

func (m *SecretRequest) Sign(s signer.Signer) error {
	hash := m.MessageHash()
	sig, err := s.Sign(hash)
	if err != nil {
		return err
	}
	m.Signature = sig
	m.Sender = s.Address()
	return nil
}

// RevealSecret carries the preimage backward along the route.
type RevealSecret struct {
	Secret    primitives.Secret
	Signature primitives.Signature
	Sender    primitives.Address
}

func (m *RevealSecret) Pack() []byte {
	buf := make([]byte, 0, 1+3+32)
	buf = append(buf, CmdRevealSecret, 0, 0, 0)
	buf = append(buf, m.Secret[:]...)
	return buf
}

func (m *RevealSecret) MessageHash() primitives.Keccak256 {
	return gethcrypto.Keccak256Hash(m.Pack())
}

func (m *RevealSecret) Sign(s signer.Signer) error {
	hash := m.MessageHash()
	sig, err := s.Sign(hash)
	if err != nil {
		return err
	}
	m.Signature = sig
	m.Sender = s.Address()
	return nil
}
