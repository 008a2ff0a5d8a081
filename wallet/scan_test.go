package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/silentcashu/swallet/cashu"
	"github.com/silentcashu/swallet/cashu/nuts/nut03"
	"github.com/silentcashu/swallet/wallet/wallettest"
)

func TestScanDiscoversSilentPayment(t *testing.T) {
	fm := wallettest.NewFakeMint()
	defer fm.Close()

	alice := newTestWallet(t, fm.URL())
	bob := newTestWallet(t, fm.URL())

	funding, err := fm.Faucet(100)
	require.NoError(t, err)
	require.NoError(t, alice.db.AddProofs(funding))

	_, err = alice.Pay(bob.Address(), 30)
	require.NoError(t, err)

	result, err := bob.Scan()
	require.NoError(t, err)
	require.EqualValues(t, 30, result.Restored.Amount())
	require.EqualValues(t, 30, bob.Balance())
}

func TestScanIsIdempotent(t *testing.T) {
	fm := wallettest.NewFakeMint()
	defer fm.Close()

	alice := newTestWallet(t, fm.URL())
	bob := newTestWallet(t, fm.URL())

	funding, err := fm.Faucet(50)
	require.NoError(t, err)
	require.NoError(t, alice.db.AddProofs(funding))

	_, err = alice.Pay(bob.Address(), 20)
	require.NoError(t, err)

	first, err := bob.Scan()
	require.NoError(t, err)
	require.EqualValues(t, 20, first.Restored.Amount())

	second, err := bob.Scan()
	require.NoError(t, err)
	require.Empty(t, second.Restored)
	require.EqualValues(t, 20, bob.Balance())
}

func TestScanIgnoresMalformedCandidates(t *testing.T) {
	fm := wallettest.NewFakeMint()
	defer fm.Close()

	bob := newTestWallet(t, fm.URL())

	// Put candidates on the mint's spent-secret list that the scanner must
	// skip: one of the wrong length, one of 66 characters that are not hex,
	// and one of 66 hex characters that is not a curve point.
	_, err := PostSwap(fm.URL(), nut03.PostSwapRequest{Inputs: cashu.Proofs{
		{Secret: "too-short"},
		{Secret: strings.Repeat("z", 66)},
		{Secret: "02" + strings.Repeat("ff", 32)},
	}})
	require.NoError(t, err)

	result, err := bob.Scan()
	require.NoError(t, err)
	require.Empty(t, result.Restored)
}
