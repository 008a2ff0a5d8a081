// Package nut12 verifies the mint's DLEQ proofs attached to blind
// signatures and unblinded proofs, per NUT-12.
package nut12

import (
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/silentcashu/swallet/cashu"
	"github.com/silentcashu/swallet/crypto"
)

// VerifyProofsDLEQ verifies the DLEQ proof on every proof that carries one.
// Proofs without a DLEQ proof are skipped, not rejected: not every mint
// attaches one.
func VerifyProofsDLEQ(proofs cashu.Proofs, keyset crypto.WalletKeyset) bool {
	for _, proof := range proofs {
		if proof.DLEQ == nil {
			continue
		}

		pubkey, ok := keyset.PublicKeys[proof.Amount]
		if !ok {
			return false
		}

		if !VerifyProofDLEQ(proof, pubkey) {
			return false
		}
	}
	return true
}

// VerifyProofDLEQ verifies proof.DLEQ against mint public key A for the
// proof's denomination.
func VerifyProofDLEQ(proof cashu.Proof, A *secp256k1.PublicKey) bool {
	e, s, r, err := ParseDLEQ(*proof.DLEQ)
	if err != nil || r == nil {
		return false
	}

	B_, _, err := crypto.BlindMessage([]byte(proof.Secret), r)
	if err != nil {
		return false
	}

	CBytes, err := hex.DecodeString(proof.C)
	if err != nil {
		return false
	}
	C, err := crypto.Decompress(CBytes)
	if err != nil {
		return false
	}

	// C_ = C + r*A = k*B_, the blind signature the mint produced over B_,
	// so the DLEQ proof can be checked against (B_, C_).
	rA := crypto.PointMul(&r.Key, A)
	C_ := crypto.PointAdd(C, rA)

	return crypto.VerifyDLEQ(e, s, A, B_, C_)
}

// VerifyBlindSignatureDLEQ verifies the DLEQ proof the mint returns alongside
// a freshly issued blind signature, before the client unblinds it.
func VerifyBlindSignatureDLEQ(dleq cashu.DLEQProof, A *secp256k1.PublicKey, B_str, C_str string) bool {
	e, s, _, err := ParseDLEQ(dleq)
	if err != nil {
		return false
	}

	B_bytes, err := hex.DecodeString(B_str)
	if err != nil {
		return false
	}
	B_, err := crypto.Decompress(B_bytes)
	if err != nil {
		return false
	}

	C_bytes, err := hex.DecodeString(C_str)
	if err != nil {
		return false
	}
	C_, err := crypto.Decompress(C_bytes)
	if err != nil {
		return false
	}

	return crypto.VerifyDLEQ(e, s, A, B_, C_)
}

// ParseDLEQ decodes the hex-encoded (e, s, r) triple. r is optional: the
// wire representation omits it when a mint returns a DLEQ proof without
// revealing the blinding factor it was verified against.
func ParseDLEQ(dleq cashu.DLEQProof) (*secp256k1.PrivateKey, *secp256k1.PrivateKey, *secp256k1.PrivateKey, error) {
	ebytes, err := hex.DecodeString(dleq.E)
	if err != nil {
		return nil, nil, nil, err
	}
	e := secp256k1.PrivKeyFromBytes(ebytes)

	sbytes, err := hex.DecodeString(dleq.S)
	if err != nil {
		return nil, nil, nil, err
	}
	s := secp256k1.PrivKeyFromBytes(sbytes)

	if dleq.R == "" {
		return e, s, nil, nil
	}

	rbytes, err := hex.DecodeString(dleq.R)
	if err != nil {
		return nil, nil, nil, err
	}
	r := secp256k1.PrivKeyFromBytes(rbytes)

	return e, s, r, nil
}
