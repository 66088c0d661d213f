// Package encoding implements the wire message format (spec.md §6): a
// fixed-layout byte record followed by a 65-byte signature, plus the
// canonical mapping representation (to_mapping/from_mapping) every message
// and state value supports for text-based transports (spec.md §4.4).
package encoding

import (
	"encoding/binary"
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/signer"
)

// Command identifiers, analogous to the teacher's cmdid byte.
const (
	CmdDirectTransfer  byte = 0x04
	CmdLockedTransfer  byte = 0x05
	CmdRefundTransfer  byte = 0x06
	CmdSecretRequest   byte = 0x03
	CmdRevealSecret    byte = 0x0b
)

// LockedTransfer is the wire layout from spec.md §6:
//
//	cmdid:1  pad:3  nonce:8  identifier:8  expiration:32
//	 token:20  channel:20  recipient:20  target:20  initiator:20
//	 locksroot:32  secrethash:32  transferred_amount:32 amount:32
//	 fee:32  signature:65
type LockedTransfer struct {
	Nonce             primitives.Nonce
	Identifier        primitives.Identifier
	Expiration        primitives.BlockNumber
	Token             primitives.Address
	Channel           primitives.Keccak256
	Recipient         primitives.Address
	Target            primitives.Address
	Initiator         primitives.Address
	LocksRoot         primitives.LocksRoot
	SecretHash        primitives.SecretHash
	TransferredAmount *uint256.Int
	Amount            *uint256.Int
	Fee               *uint256.Int
	Signature         primitives.Signature
	Sender            primitives.Address
}

// packLockedLayout writes the fields shared by LockedTransfer/RefundTransfer,
// cmdid first, big-endian throughout.
func packLockedLayout(cmdid byte, nonce uint64, identifier uint64, expiration int64, token, channel, recipient, target, initiator [20]byte, locksroot, secrethash [32]byte, transferredAmount, amount, fee *uint256.Int) []byte {
	buf := make([]byte, 0, 1+3+8+8+32+20*5+32*2+32*3)
	buf = append(buf, cmdid, 0, 0, 0)
	buf = appendUint64(buf, nonce)
	buf = appendUint64(buf, identifier)
	buf = appendUint256BE(buf, uint64ToUint256(uint64(expiration)))
	buf = append(buf, token[:]...)
	buf = append(buf, channel[:]...)
	buf = append(buf, recipient[:]...)
	buf = append(buf, target[:]...)
	buf = append(buf, initiator[:]...)
	buf = append(buf, locksroot[:]...)
	buf = append(buf, secrethash[:]...)
	buf = appendUint256BE(buf, transferredAmount)
	buf = appendUint256BE(buf, amount)
	buf = appendUint256BE(buf, fee)
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendUint256BE(buf []byte, v *uint256.Int) []byte {
	b := v.Bytes32()
	return append(buf, b[:]...)
}

func uint64ToUint256(v uint64) *uint256.Int {
	return new(uint256.Int).SetUint64(v)
}

// Pack encodes the record without its trailing signature.
func (m *LockedTransfer) Pack() []byte {
	return packLockedLayout(
		CmdLockedTransfer,
		uint64(m.Nonce), uint64(m.Identifier), int64(m.Expiration),
		m.Token, m.Channel, m.Recipient, m.Target, m.Initiator,
		m.LocksRoot, m.SecretHash,
		m.TransferredAmount, m.Amount, m.Fee,
	)
}

// MessageHash returns keccak256(bytes_without_signature).
func (m *LockedTransfer) MessageHash() primitives.Keccak256 {
	return gethcrypto.Keccak256Hash(m.Pack())
}

// Sign computes the message hash, signs it, and records the signature and
// recovered sender (which for a local signer equals the signer's address).
func (m *LockedTransfer) Sign(s signer.Signer) error {
	hash := m.MessageHash()
	sig, err := s.Sign(hash)
	if err != nil {
		return err
	}
	m.Signature = sig
	m.Sender = s.Address()
	return nil
}

// Verify recovers the sender from the signature and checks it matches the
// recorded Sender, the invariant BalanceProofSignedState relies on.
func (m *LockedTransfer) Verify() error {
	recovered, err := signer.Recover(m.MessageHash(), m.Signature)
	if err != nil {
		return err
	}
	if recovered != m.Sender {
		return fmt.Errorf("encoding: recovered sender %s does not match %s", recovered.Hex(), m.Sender.Hex())
	}
	return nil
}

// ToMapping implements the canonical mapping representation (spec.md §4.4):
// numeric fields as decimal strings, binary fields as 0x-hex.
func (m *LockedTransfer) ToMapping() map[string]string {
	return map[string]string{
		"nonce":              fmt.Sprintf("%d", m.Nonce),
		"identifier":         fmt.Sprintf("%d", m.Identifier),
		"expiration":         fmt.Sprintf("%d", m.Expiration),
		"token":              m.Token.Hex(),
		"channel":            m.Channel.Hex(),
		"recipient":          m.Recipient.Hex(),
		"target":             m.Target.Hex(),
		"initiator":          m.Initiator.Hex(),
		"locksroot":          m.LocksRoot.Hex(),
		"secrethash":         m.SecretHash.Hex(),
		"transferred_amount": m.TransferredAmount.String(),
		"amount":             m.Amount.String(),
		"fee":                m.Fee.String(),
		"signature":          bytesToHex(m.Signature[:]),
		"sender":             m.Sender.Hex(),
	}
}

// LockedTransferFromMapping inverts ToMapping, round-tripping the full
// domain including the boundary values 0, UINT64_MAX and UINT256_MAX
// (spec.md §4.4, §8).
func LockedTransferFromMapping(m map[string]string) (*LockedTransfer, error) {
	nonce, err := parseUint64(m["nonce"])
	if err != nil {
		return nil, fmt.Errorf("encoding: nonce: %w", err)
	}
	identifier, err := parseUint64(m["identifier"])
	if err != nil {
		return nil, fmt.Errorf("encoding: identifier: %w", err)
	}
	expiration, err := parseInt64(m["expiration"])
	if err != nil {
		return nil, fmt.Errorf("encoding: expiration: %w", err)
	}
	transferredAmount, err := parseUint256(m["transferred_amount"])
	if err != nil {
		return nil, fmt.Errorf("encoding: transferred_amount: %w", err)
	}
	amount, err := parseUint256(m["amount"])
	if err != nil {
		return nil, fmt.Errorf("encoding: amount: %w", err)
	}
	fee, err := parseUint256(m["fee"])
	if err != nil {
		return nil, fmt.Errorf("encoding: fee: %w", err)
	}
	sig, err := parseSignature(m["signature"])
	if err != nil {
		return nil, fmt.Errorf("encoding: signature: %w", err)
	}

	return &LockedTransfer{
		Nonce:             primitives.Nonce(nonce),
		Identifier:        primitives.Identifier(identifier),
		Expiration:        primitives.BlockNumber(expiration),
		Token:             parseAddress(m["token"]),
		Channel:           parseHash(m["channel"]),
		Recipient:         parseAddress(m["recipient"]),
		Target:            parseAddress(m["target"]),
		Initiator:         parseAddress(m["initiator"]),
		LocksRoot:         parseHash(m["locksroot"]),
		SecretHash:        parseHash(m["secrethash"]),
		TransferredAmount: transferredAmount,
		Amount:            amount,
		Fee:               fee,
		Signature:         sig,
		Sender:            parseAddress(m["sender"]),
	}, nil
}

// Equal performs structural comparison, the round-trip law's comparator.
func (m *LockedTransfer) Equal(other *LockedTransfer) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.Nonce == other.Nonce &&
		m.Identifier == other.Identifier &&
		m.Expiration == other.Expiration &&
		m.Token == other.Token &&
		m.Channel == other.Channel &&
		m.Recipient == other.Recipient &&
		m.Target == other.Target &&
		m.Initiator == other.Initiator &&
		m.LocksRoot == other.LocksRoot &&
		m.SecretHash == other.SecretHash &&
		m.TransferredAmount.Eq(other.TransferredAmount) &&
		m.Amount.Eq(other.Amount) &&
		m.Fee.Eq(other.Fee) &&
		m.Signature == other.Signature &&
		m.Sender == other.Sender
}
