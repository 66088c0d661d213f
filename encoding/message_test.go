package encoding

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/smartraiden/mcore/primitives"
	"github.com/smartraiden/mcore/testutil"
)

func boundaryAmounts() []*uint256.Int {
	return []*uint256.Int{primitives.NewAmount(0), primitives.UINT256Max()}
}

func boundaryUint64() []uint64 {
	return []uint64{0, primitives.UINT64Max}
}

// TestLockedTransferRoundTripBoundaryGrid walks the Cartesian boundary grid
// from spec.md §8: identifier, nonce, transferred_amount, amount and fee
// each at their minimum and maximum representable value.
func TestLockedTransferRoundTripBoundaryGrid(t *testing.T) {
	fixture := testutil.NewSigningFixture()
	_, secretHash := testutil.NewSecret()

	for _, identifier := range boundaryUint64() {
		for _, nonce := range boundaryUint64() {
			for _, transferred := range boundaryAmounts() {
				for _, amount := range boundaryAmounts() {
					for _, fee := range boundaryAmounts() {
						m := &LockedTransfer{
							Nonce:             primitives.Nonce(nonce),
							Identifier:        primitives.Identifier(identifier),
							Expiration:        1000,
							Token:             fixture.Addr,
							Channel:           primitives.Keccak256{1},
							Recipient:         fixture.Addr,
							Target:            fixture.Addr,
							Initiator:         fixture.Addr,
							LocksRoot:         primitives.Keccak256{2},
							SecretHash:        secretHash,
							TransferredAmount: transferred,
							Amount:            amount,
							Fee:               fee,
						}
						require.NoError(t, m.Sign(fixture.Signer))

						mapping := m.ToMapping()
						restored, err := LockedTransferFromMapping(mapping)
						require.NoError(t, err)
						require.True(t, m.Equal(restored), "round-trip must preserve every field at nonce=%d identifier=%d", nonce, identifier)
						require.NoError(t, restored.Verify())
					}
				}
			}
		}
	}
}

func TestLockedTransferVerifyRejectsTamperedAmount(t *testing.T) {
	fixture := testutil.NewSigningFixture()
	_, secretHash := testutil.NewSecret()

	m := &LockedTransfer{
		Nonce:             1,
		Identifier:        1,
		Expiration:        1000,
		Token:             fixture.Addr,
		Channel:           primitives.Keccak256{1},
		Recipient:         fixture.Addr,
		Target:            fixture.Addr,
		Initiator:         fixture.Addr,
		LocksRoot:         primitives.EmptyMerkleRoot,
		SecretHash:        secretHash,
		TransferredAmount: primitives.NewAmount(10),
		Amount:            primitives.NewAmount(5),
		Fee:               primitives.NewAmount(0),
	}
	require.NoError(t, m.Sign(fixture.Signer))
	require.NoError(t, m.Verify())

	m.Amount = primitives.NewAmount(999)
	require.Error(t, m.Verify(), "tampering with a signed field must break verification")
}

func TestDirectTransferRoundTrip(t *testing.T) {
	fixture := testutil.NewSigningFixture()

	m := &DirectTransfer{
		Nonce:             1,
		Identifier:        42,
		Token:             fixture.Addr,
		Channel:           primitives.Keccak256{3},
		Recipient:         fixture.Addr,
		TransferredAmount: primitives.NewAmount(100),
	}
	require.NoError(t, m.Sign(fixture.Signer))

	restored, err := DirectTransferFromMapping(m.ToMapping())
	require.NoError(t, err)
	require.True(t, m.Equal(restored))
}

func TestRefundTransferRoundTrip(t *testing.T) {
	fixture := testutil.NewSigningFixture()
	_, secretHash := testutil.NewSecret()

	m := &RefundTransfer{LockedTransfer: LockedTransfer{
		Nonce:             1,
		Identifier:        7,
		Expiration:        500,
		Token:             fixture.Addr,
		Channel:           primitives.Keccak256{4},
		Recipient:         fixture.Addr,
		Target:            fixture.Addr,
		Initiator:         fixture.Addr,
		LocksRoot:         primitives.EmptyMerkleRoot,
		SecretHash:        secretHash,
		TransferredAmount: primitives.NewAmount(0),
		Amount:            primitives.NewAmount(50),
		Fee:               primitives.NewAmount(1),
	}}
	require.NoError(t, m.Sign(fixture.Signer))

	restored, err := RefundTransferFromMapping(m.ToMapping())
	require.NoError(t, err)
	require.True(t, m.Equal(restored))
}
