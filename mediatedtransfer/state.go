// Package mediatedtransfer holds the per-role state containers that drive a
// single logical payment through the initiator, mediator and target
// machines, plus the incoming state changes and outgoing side-effect
// events those machines exchange with the dispatcher.
//
// Every value here is immutable once built: substates are replaced
// wholesale on transition, never mutated in place (spec.md §9 redesign
// note on mutable containers).
package mediatedtransfer

import (
	"fmt"

	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/transfer"
)

// LockedTransferUnsignedState is a transfer created by the local node that
// contains a hash-time-lock and may be sent.
type LockedTransferUnsignedState struct {
	Identifier   primitives.Identifier
	Token        primitives.Address
	BalanceProof *transfer.BalanceProofUnsignedState
	Lock         *transfer.HashTimeLockState
	Initiator    primitives.Address
	Target       primitives.Address
}

// NewLockedTransferUnsignedState is a validated builder: at least this
// transfer's own lock must be present in the balance proof's locksroot, so
// it must not be the empty Merkle root (ported from the Python
// LockedTransferUnsignedState.__init__ guard).
func NewLockedTransferUnsignedState(
	identifier primitives.Identifier,
	token primitives.Address,
	balanceProof *transfer.BalanceProofUnsignedState,
	lock *transfer.HashTimeLockState,
	initiator, target primitives.Address,
) (*LockedTransferUnsignedState, error) {
	if lock == nil {
		return nil, fmt.Errorf("mediatedtransfer: lock must not be nil")
	}
	if balanceProof == nil {
		return nil, fmt.Errorf("mediatedtransfer: balance_proof must not be nil")
	}
	if balanceProof.LocksRoot == primitives.EmptyMerkleRoot {
		return nil, fmt.Errorf("mediatedtransfer: balance_proof must not be empty")
	}
	return &LockedTransferUnsignedState{
		Identifier:   identifier,
		Token:        token,
		BalanceProof: balanceProof,
		Lock:         lock,
		Initiator:    initiator,
		Target:       target,
	}, nil
}

// Equal performs structural comparison.
func (l *LockedTransferUnsignedState) Equal(other *LockedTransferUnsignedState) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.Identifier == other.Identifier &&
		l.Token == other.Token &&
		l.BalanceProof.Equal(other.BalanceProof) &&
		l.Lock.Equal(other.Lock) &&
		l.Initiator == other.Initiator &&
		l.Target == other.Target
}

// LockedTransferSignedState is a received transfer carrying a hash-time-lock
// and a signed balance proof.
type LockedTransferSignedState struct {
	Identifier   primitives.Identifier
	Token        primitives.Address
	BalanceProof *transfer.BalanceProofSignedState
	Lock         *transfer.HashTimeLockState
	Initiator    primitives.Address
	Target       primitives.Address
}

// NewLockedTransferSignedState validates the same locksroot invariant as
// the unsigned variant.
func NewLockedTransferSignedState(
	identifier primitives.Identifier,
	token primitives.Address,
	balanceProof *transfer.BalanceProofSignedState,
	lock *transfer.HashTimeLockState,
	initiator, target primitives.Address,
) (*LockedTransferSignedState, error) {
	if lock == nil {
		return nil, fmt.Errorf("mediatedtransfer: lock must not be nil")
	}
	if balanceProof == nil {
		return nil, fmt.Errorf("mediatedtransfer: balance_proof must not be nil")
	}
	if balanceProof.LocksRoot == primitives.EmptyMerkleRoot {
		return nil, fmt.Errorf("mediatedtransfer: balance_proof must not be empty")
	}
	return &LockedTransferSignedState{
		Identifier:   identifier,
		Token:        token,
		BalanceProof: balanceProof,
		Lock:         lock,
		Initiator:    initiator,
		Target:       target,
	}, nil
}

// Equal performs structural comparison.
func (l *LockedTransferSignedState) Equal(other *LockedTransferSignedState) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.Identifier == other.Identifier &&
		l.Token == other.Token &&
		l.BalanceProof.Equal(other.BalanceProof) &&
		l.Lock.Equal(other.Lock) &&
		l.Initiator == other.Initiator &&
		l.Target == other.Target
}

// TransferDescriptionWithSecretState is the user-originated payment intent.
type TransferDescriptionWithSecretState struct {
	Identifier primitives.Identifier
	Amount     *primitives.TokenAmount
	Registry   primitives.Address
	Token      primitives.Address
	Initiator  primitives.Address
	Target     primitives.Address
	Secret     primitives.Secret
	SecretHash primitives.SecretHash
}

// NewTransferDescriptionWithSecretState derives secrethash = keccak256(secret).
func NewTransferDescriptionWithSecretState(
	identifier primitives.Identifier,
	amount *primitives.TokenAmount,
	registry, token, initiator, target primitives.Address,
	secret primitives.Secret,
) *TransferDescriptionWithSecretState {
	return &TransferDescriptionWithSecretState{
		Identifier: identifier,
		Amount:     amount,
		Registry:   registry,
		Token:      token,
		Initiator:  initiator,
		Target:     target,
		Secret:     secret,
		SecretHash: primitives.HashSecret(secret),
	}
}

// Equal performs structural comparison.
func (d *TransferDescriptionWithSecretState) Equal(other *TransferDescriptionWithSecretState) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Identifier == other.Identifier &&
		d.Amount.Eq(other.Amount) &&
		d.Registry == other.Registry &&
		d.Token == other.Token &&
		d.Initiator == other.Initiator &&
		d.Target == other.Target &&
		d.Secret == other.Secret &&
		d.SecretHash == other.SecretHash
}

// InitiatorTransferState tracks the lifecycle of one route attempt by the
// initiator: created when the initiator commits to a route, transfer is set
// once the locked transfer is sent, secretrequest upon receipt from the
// target, revealsecret upon broadcast.
type InitiatorTransferState struct {
	TransferDescription *TransferDescriptionWithSecretState
	ChannelIdentifier   primitives.Keccak256
	NextHopAddress      primitives.Address
	Transfer            *LockedTransferUnsignedState
	SecretRequest       *ReceiveSecretRequestStateChange
	RevealSecret        *SendRevealSecretEvent
}

// NewInitiatorTransferState requires a non-nil transfer description — the
// Go analogue of the Python isinstance guard in InitiatorTransferState.__init__.
// nextHopAddress is the immediate channel partner on channelIdentifier (the
// route's own node, not necessarily the payment's final target): the
// outgoing balance proof unlocking this transfer is always owed to that
// neighbor, never skipped ahead to the target (spec.md §4.1).
func NewInitiatorTransferState(description *TransferDescriptionWithSecretState, channelIdentifier primitives.Keccak256, nextHopAddress primitives.Address) (*InitiatorTransferState, error) {
	if description == nil {
		return nil, fmt.Errorf("mediatedtransfer: transfer_description must not be nil")
	}
	return &InitiatorTransferState{
		TransferDescription: description,
		ChannelIdentifier:   channelIdentifier,
		NextHopAddress:      nextHopAddress,
	}, nil
}

// InitiatorPaymentState is the container for one or more
// InitiatorTransferStates when a payment needs retry across alternate
// routes. Concurrent initiator transfers per payment are forbidden until
// the upstream unlock-refund policy referenced in spec.md §9 is resolved,
// so CancelledChannels only ever grows behind a single active transfer.
type InitiatorPaymentState struct {
	Initiator         primitives.Address
	CancelledChannels []primitives.Keccak256
}

// NewInitiatorPaymentState builds an empty payment container.
func NewInitiatorPaymentState(initiator primitives.Address) *InitiatorPaymentState {
	return &InitiatorPaymentState{Initiator: initiator}
}

// WithCancelledChannel returns a new InitiatorPaymentState with channel
// appended to CancelledChannels — the persistent-sequence pattern replacing
// the Python mutable list append (spec.md §9).
func (p *InitiatorPaymentState) WithCancelledChannel(channel primitives.Keccak256) *InitiatorPaymentState {
	next := make([]primitives.Keccak256, len(p.CancelledChannels), len(p.CancelledChannels)+1)
	copy(next, p.CancelledChannels)
	next = append(next, channel)
	return &InitiatorPaymentState{Initiator: p.Initiator, CancelledChannels: next}
}

// PayerState is the tagged variant for a MediationPairState's payer side.
// Tagged variants replace the Python string-typed state fields so
// exhaustive switches surface missing transitions at build time (spec.md §9).
type PayerState int

const (
	PayerPending PayerState = iota
	PayerSecretRevealed
	PayerWaitingClose
	PayerWaitingWithdraw
	PayerContractWithdraw
	PayerBalanceProof
	PayerExpired
)

func (s PayerState) String() string {
	switch s {
	case PayerPending:
		return "payer_pending"
	case PayerSecretRevealed:
		return "payer_secret_revealed"
	case PayerWaitingClose:
		return "payer_waiting_close"
	case PayerWaitingWithdraw:
		return "payer_waiting_withdraw"
	case PayerContractWithdraw:
		return "payer_contract_withdraw"
	case PayerBalanceProof:
		return "payer_balance_proof"
	case PayerExpired:
		return "payer_expired"
	default:
		return "payer_unknown"
	}
}

// PayeeState is the tagged variant for a MediationPairState's payee side.
type PayeeState int

const (
	PayeePending PayeeState = iota
	PayeeSecretRevealed
	PayeeRefundWithdraw
	PayeeContractWithdraw
	PayeeBalanceProof
	PayeeExpired
)

func (s PayeeState) String() string {
	switch s {
	case PayeePending:
		return "payee_pending"
	case PayeeSecretRevealed:
		return "payee_secret_revealed"
	case PayeeRefundWithdraw:
		return "payee_refund_withdraw"
	case PayeeContractWithdraw:
		return "payee_contract_withdraw"
	case PayeeBalanceProof:
		return "payee_balance_proof"
	case PayeeExpired:
		return "payee_expired"
	default:
		return "payee_unknown"
	}
}

// MediationPairState is the central mediator datum: the linked pair of
// (incoming, outgoing) locked transfers at a mediator, with two
// independent finite state machines, one per side (spec.md §4.2).
type MediationPairState struct {
	PayerTransfer *LockedTransferSignedState
	PayeeAddress  primitives.Address
	PayeeTransfer *LockedTransferUnsignedState
	PayerState    PayerState
	PayeeState    PayeeState
}

// NewMediationPairState builds a pair with both sides in their pending
// initial state.
func NewMediationPairState(payerTransfer *LockedTransferSignedState, payeeAddress primitives.Address, payeeTransfer *LockedTransferUnsignedState) (*MediationPairState, error) {
	if payerTransfer == nil {
		return nil, fmt.Errorf("mediatedtransfer: payer_transfer must not be nil")
	}
	if payeeTransfer == nil {
		return nil, fmt.Errorf("mediatedtransfer: payee_transfer must not be nil")
	}
	return &MediationPairState{
		PayerTransfer: payerTransfer,
		PayeeAddress:  payeeAddress,
		PayeeTransfer: payeeTransfer,
		PayerState:    PayerPending,
		PayeeState:    PayeePending,
	}, nil
}

// WithPayerState returns a copy of the pair with a new payer-side state —
// mediation pairs are replaced wholesale, never mutated (spec.md §9).
func (m *MediationPairState) WithPayerState(s PayerState) *MediationPairState {
	cp := *m
	cp.PayerState = s
	return &cp
}

// WithPayeeState returns a copy of the pair with a new payee-side state.
func (m *MediationPairState) WithPayeeState(s PayeeState) *MediationPairState {
	cp := *m
	cp.PayeeState = s
	return &cp
}

// WithPayerTransfer returns a copy of the pair with an updated payer
// transfer (e.g. after the balance proof unlocks the lock).
func (m *MediationPairState) WithPayerTransfer(t *LockedTransferSignedState) *MediationPairState {
	cp := *m
	cp.PayerTransfer = t
	return &cp
}

// MediatorTransferState tracks the secret and the ordered sequence of
// mediation pairs for one secrethash. Secret is nil until learned; once
// set, all downstream state machines may progress toward withdrawal.
type MediatorTransferState struct {
	SecretHash    primitives.SecretHash
	Secret        *primitives.Secret
	TransfersPair []*MediationPairState
}

// NewMediatorTransferState builds an empty mediator state for secretHash.
func NewMediatorTransferState(secretHash primitives.SecretHash) *MediatorTransferState {
	return &MediatorTransferState{SecretHash: secretHash}
}

// WithSecret returns a copy with the secret set, validating it hashes to
// this MediatorTransferState's secrethash (§4.2 invariant 4: secret
// integrity).
func (m *MediatorTransferState) WithSecret(secret primitives.Secret) (*MediatorTransferState, error) {
	if primitives.HashSecret(secret) != m.SecretHash {
		return nil, fmt.Errorf("mediatedtransfer: secret does not hash to %s", m.SecretHash.Hex())
	}
	cp := *m
	s := secret
	cp.Secret = &s
	return &cp, nil
}

// WithTransfersPair returns a copy with a replaced pairs sequence — the
// persistent-sequence pattern for what was a mutable Python list append.
func (m *MediatorTransferState) WithTransfersPair(pairs []*MediationPairState) *MediatorTransferState {
	cp := *m
	cp.TransfersPair = pairs
	return &cp
}

// TargetState is the tagged variant for TargetTransferState.State,
// replacing the Python valid_states string tuple.
type TargetState int

const (
	TargetSecretRequest TargetState = iota
	TargetRevealSecret
	TargetWaitingClose
	TargetExpired
	TargetCompleted
)

func (s TargetState) String() string {
	switch s {
	case TargetSecretRequest:
		return "secret_request"
	case TargetRevealSecret:
		return "reveal_secret"
	case TargetWaitingClose:
		return "waiting_close"
	case TargetExpired:
		return "expired"
	case TargetCompleted:
		return "completed"
	default:
		return "target_unknown"
	}
}

// TargetTransferState tracks the target's view of one incoming payment.
// The Python source's `hahslock` slot is a documented typo with no
// consumer (spec.md §9 Open Questions) and is intentionally omitted here.
type TargetTransferState struct {
	Route    *primitives.Address // the route the LockedTransfer arrived from, keyed by sender
	Transfer *LockedTransferSignedState
	Secret   *primitives.Secret
	State    TargetState
}

// NewTargetTransferState builds a target state in its initial secret_request phase.
func NewTargetTransferState(route primitives.Address, transferState *LockedTransferSignedState) *TargetTransferState {
	return &TargetTransferState{
		Route:    &route,
		Transfer: transferState,
		State:    TargetSecretRequest,
	}
}

// WithSecret returns a copy with the secret set and state advanced to
// reveal_secret, validating the secret against the transfer's lock.
func (t *TargetTransferState) WithSecret(secret primitives.Secret) (*TargetTransferState, error) {
	if primitives.HashSecret(secret) != t.Transfer.Lock.SecretHash {
		return nil, fmt.Errorf("mediatedtransfer: secret does not hash to %s", t.Transfer.Lock.SecretHash.Hex())
	}
	cp := *t
	s := secret
	cp.Secret = &s
	cp.State = TargetRevealSecret
	return &cp, nil
}

// WithState returns a copy with a replaced lifecycle state.
func (t *TargetTransferState) WithState(s TargetState) *TargetTransferState {
	cp := *t
	cp.State = s
	return &cp
}
