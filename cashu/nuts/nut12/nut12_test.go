package nut12

import (
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"

	"github.com/silentcashu/swallet/cashu"
	"github.com/silentcashu/swallet/crypto"
)

// mintDLEQ emulates the mint side of NUT-12 to produce a valid (e, s, r)
// triple for a known blinded message/signature pair.
func mintDLEQ(t *testing.T, k *secp256k1.PrivateKey, B_, C_ *secp256k1.PublicKey, r *secp256k1.PrivateKey) cashu.DLEQProof {
	t.Helper()

	p, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	var r1j, r2j, bPoint secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&p.Key, &r1j)
	r1j.ToAffine()
	R1 := secp256k1.NewPublicKey(&r1j.X, &r1j.Y)

	B_.AsJacobian(&bPoint)
	secp256k1.ScalarMultNonConst(&p.Key, &bPoint, &r2j)
	r2j.ToAffine()
	R2 := secp256k1.NewPublicKey(&r2j.X, &r2j.Y)

	A := k.PubKey()
	digest := crypto.DomainHash("DLEQ", crypto.Compress(R1), crypto.Compress(R2), crypto.Compress(A), crypto.Compress(B_))
	var eScalar secp256k1.ModNScalar
	eScalar.SetBytes(&digest)

	var sScalar secp256k1.ModNScalar
	sScalar.Mul2(&eScalar, &k.Key).Add(&p.Key)

	dleq := cashu.DLEQProof{
		E: hex.EncodeToString(secp256k1.NewPrivateKey(&eScalar).Serialize()),
		S: hex.EncodeToString(secp256k1.NewPrivateKey(&sScalar).Serialize()),
	}
	if r != nil {
		dleq.R = hex.EncodeToString(r.Serialize())
	}
	return dleq
}

func TestVerifyBlindSignatureDLEQ(t *testing.T) {
	k, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	A := k.PubKey()

	B_, _, err := crypto.BlindMessage([]byte("some_secret"), nil)
	require.NoError(t, err)
	C_ := crypto.SignBlindedMessage(B_, k)

	dleq := mintDLEQ(t, k, B_, C_, nil)

	ok := VerifyBlindSignatureDLEQ(dleq, A,
		hex.EncodeToString(crypto.Compress(B_)), hex.EncodeToString(crypto.Compress(C_)))
	require.True(t, ok)
}

func TestVerifyProofDLEQ(t *testing.T) {
	k, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	A := k.PubKey()

	secret := "proof_secret_under_test"
	B_, r, err := crypto.BlindMessage([]byte(secret), nil)
	require.NoError(t, err)
	C_ := crypto.SignBlindedMessage(B_, k)
	C := crypto.UnblindSignature(C_, r, A)

	dleq := mintDLEQ(t, k, B_, C_, r)

	proof := cashu.Proof{
		Secret: secret,
		C:      hex.EncodeToString(crypto.Compress(C)),
		DLEQ:   &dleq,
	}

	require.True(t, VerifyProofDLEQ(proof, A))
}

func TestVerifyProofsDLEQSkipsMissing(t *testing.T) {
	proofs := cashu.Proofs{{Amount: 4, Secret: "no_dleq_here", C: "02" + hex_00s()}}
	keyset := crypto.WalletKeyset{PublicKeys: map[uint64]*secp256k1.PublicKey{}}
	require.True(t, VerifyProofsDLEQ(proofs, keyset))
}

func hex_00s() string {
	b := make([]byte, 32)
	return hex.EncodeToString(b)
}
