package target

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smartraiden/mcore/mediatedtransfer"
	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/testutil"
	"github.com/smartraiden/mcore/transfer"
	"github.com/smartraiden/mcore/transfer/mtree"
	"github.com/smartraiden/mcore/transfer/route"
)

func buildIncomingTransfer(t *testing.T, payer *testutil.SigningFixture, initiator, targetAddr primitives.Address, amount uint64, secretHash primitives.SecretHash, expiration primitives.BlockNumber, channel primitives.Keccak256) *mediatedtransfer.LockedTransferSignedState {
	t.Helper()
	lock, err := transfer.NewHashTimeLockState(primitives.NewAmount(amount), expiration, secretHash)
	require.NoError(t, err)

	locksRoot := mtree.MerkleRoot([]*mtree.Lock{{Amount: lock.Amount, Expiration: lock.Expiration, SecretHash: lock.SecretHash}})
	unsigned, err := transfer.NewBalanceProofUnsignedState(1, primitives.NewAmount(0), locksRoot, channel, primitives.Keccak256{}, true)
	require.NoError(t, err)
	signed, err := transfer.NewBalanceProofSignedState(unsigned, primitives.Signature{1}, payer.Addr)
	require.NoError(t, err)

	lt, err := mediatedtransfer.NewLockedTransferSignedState(testutil.NewIdentifier(), payer.Addr, signed, lock, initiator, targetAddr)
	require.NoError(t, err)
	return lt
}

func TestInitEmitsSecretRequest(t *testing.T) {
	payer := testutil.NewSigningFixture()
	initiator := testutil.NewSigningFixture().Addr
	targetAddr := testutil.NewSigningFixture().Addr
	_, secretHash := testutil.NewSecret()
	channel := testutil.NewChannelIdentifier()

	lt := buildIncomingTransfer(t, payer, initiator, targetAddr, 100, secretHash, 1000, channel)
	change := &mediatedtransfer.ActionInitTargetStateChange{
		OurAddress:   targetAddr,
		FromTransfer: lt,
		FromRoute:    &route.State{NodeAddress: payer.Addr, ChannelIdentifier: channel, Available: true},
		BlockNumber:  10,
	}

	state, events := Init(change)
	require.Len(t, events, 1)
	req, ok := events[0].(mediatedtransfer.SendSecretRequestEvent)
	require.True(t, ok)
	require.Equal(t, initiator, req.Recipient)
	require.Equal(t, mediatedtransfer.TargetSecretRequest, state.State)
}

func TestReceiveSecretRevealAndBalanceProofCompletes(t *testing.T) {
	payer := testutil.NewSigningFixture()
	initiator := testutil.NewSigningFixture().Addr
	targetAddr := testutil.NewSigningFixture().Addr
	secret, secretHash := testutil.NewSecret()
	channel := testutil.NewChannelIdentifier()

	lt := buildIncomingTransfer(t, payer, initiator, targetAddr, 100, secretHash, 1000, channel)
	change := &mediatedtransfer.ActionInitTargetStateChange{
		OurAddress: targetAddr, FromTransfer: lt, FromRoute: &route.State{NodeAddress: payer.Addr, ChannelIdentifier: channel, Available: true}, BlockNumber: 10,
	}
	state, _ := Init(change)

	state, events, err := ReceiveSecretReveal(state, &mediatedtransfer.ReceiveSecretRevealStateChange{Secret: secret, Sender: payer.Addr})
	require.NoError(t, err)
	require.Len(t, events, 1)
	reveal, ok := events[0].(mediatedtransfer.SendRevealSecretEvent)
	require.True(t, ok)
	require.Equal(t, payer.Addr, reveal.Recipient)
	require.Equal(t, mediatedtransfer.TargetRevealSecret, state.State)

	newAmount, err := primitives.AddAmount(primitives.NewAmount(0), primitives.NewAmount(100))
	require.NoError(t, err)
	unlockedUnsigned, err := transfer.NewBalanceProofUnsignedState(2, newAmount, primitives.EmptyMerkleRoot, channel, primitives.Keccak256{}, false)
	require.NoError(t, err)
	unlocked, err := transfer.NewBalanceProofSignedState(unlockedUnsigned, primitives.Signature{2}, payer.Addr)
	require.NoError(t, err)

	state, events, err = ReceiveBalanceProof(state, unlocked)
	require.NoError(t, err)
	require.Len(t, events, 1)
	_, ok = events[0].(mediatedtransfer.EventTransferCompleted)
	require.True(t, ok)
	require.Equal(t, mediatedtransfer.TargetCompleted, state.State)
}

func TestReceiveSecretRevealIsNoOpOnceKnown(t *testing.T) {
	payer := testutil.NewSigningFixture()
	initiator := testutil.NewSigningFixture().Addr
	targetAddr := testutil.NewSigningFixture().Addr
	secret, secretHash := testutil.NewSecret()
	channel := testutil.NewChannelIdentifier()

	lt := buildIncomingTransfer(t, payer, initiator, targetAddr, 100, secretHash, 1000, channel)
	state, _ := Init(&mediatedtransfer.ActionInitTargetStateChange{
		OurAddress: targetAddr, FromTransfer: lt, FromRoute: &route.State{NodeAddress: payer.Addr, ChannelIdentifier: channel, Available: true}, BlockNumber: 10,
	})

	state, _, err := ReceiveSecretReveal(state, &mediatedtransfer.ReceiveSecretRevealStateChange{Secret: secret, Sender: payer.Addr})
	require.NoError(t, err)

	again, events, err := ReceiveSecretReveal(state, &mediatedtransfer.ReceiveSecretRevealStateChange{Secret: secret, Sender: payer.Addr})
	require.NoError(t, err)
	require.Nil(t, events)
	require.Same(t, state, again)
}

func TestBlockTransitionsThroughWaitingCloseToExpired(t *testing.T) {
	payer := testutil.NewSigningFixture()
	initiator := testutil.NewSigningFixture().Addr
	targetAddr := testutil.NewSigningFixture().Addr
	_, secretHash := testutil.NewSecret()
	channel := testutil.NewChannelIdentifier()

	lt := buildIncomingTransfer(t, payer, initiator, targetAddr, 100, secretHash, 1000, channel)
	state, _ := Init(&mediatedtransfer.ActionInitTargetStateChange{
		OurAddress: targetAddr, FromTransfer: lt, FromRoute: &route.State{NodeAddress: payer.Addr, ChannelIdentifier: channel, Available: true}, BlockNumber: 10,
	})
	cfg := Config{RevealTimeout: 5}

	state, events := Block(state, 995, cfg)
	require.Len(t, events, 1)
	_, ok := events[0].(mediatedtransfer.ContractSendChannelCloseEvent)
	require.True(t, ok)
	require.Equal(t, mediatedtransfer.TargetWaitingClose, state.State)

	state, events = Block(state, 1000, cfg)
	require.Len(t, events, 1)
	_, ok = events[0].(mediatedtransfer.EventUnlockFailed)
	require.True(t, ok)
	require.Equal(t, mediatedtransfer.TargetExpired, state.State)
}

// TestBlockIgnoresCompletedTarget: once ReceiveBalanceProof marks a target
// TargetCompleted, further blocks past the reveal_timeout/expiration
// threshold must not re-trigger waiting_close or expired transitions
// (spec.md §4.3 "complete; no further transitions").
func TestBlockIgnoresCompletedTarget(t *testing.T) {
	payer := testutil.NewSigningFixture()
	initiator := testutil.NewSigningFixture().Addr
	targetAddr := testutil.NewSigningFixture().Addr
	secret, secretHash := testutil.NewSecret()
	channel := testutil.NewChannelIdentifier()

	lt := buildIncomingTransfer(t, payer, initiator, targetAddr, 100, secretHash, 1000, channel)
	state, _ := Init(&mediatedtransfer.ActionInitTargetStateChange{
		OurAddress: targetAddr, FromTransfer: lt, FromRoute: &route.State{NodeAddress: payer.Addr, ChannelIdentifier: channel, Available: true}, BlockNumber: 10,
	})
	cfg := Config{RevealTimeout: 5}

	state, _, err := ReceiveSecretReveal(state, &mediatedtransfer.ReceiveSecretRevealStateChange{Secret: secret, Sender: payer.Addr})
	require.NoError(t, err)

	newAmount, err := primitives.AddAmount(primitives.NewAmount(0), primitives.NewAmount(100))
	require.NoError(t, err)
	unlockedUnsigned, err := transfer.NewBalanceProofUnsignedState(2, newAmount, primitives.EmptyMerkleRoot, channel, primitives.Keccak256{}, false)
	require.NoError(t, err)
	unlocked, err := transfer.NewBalanceProofSignedState(unlockedUnsigned, primitives.Signature{2}, payer.Addr)
	require.NoError(t, err)

	state, _, err = ReceiveBalanceProof(state, unlocked)
	require.NoError(t, err)
	require.Equal(t, mediatedtransfer.TargetCompleted, state.State)

	state, events := Block(state, 995, cfg)
	require.Nil(t, events)
	require.Equal(t, mediatedtransfer.TargetCompleted, state.State)

	state, events = Block(state, 1000, cfg)
	require.Nil(t, events)
	require.Equal(t, mediatedtransfer.TargetCompleted, state.State)
}
