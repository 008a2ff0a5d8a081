// Package crypto implements the secp256k1 curve and hash primitives the
// blind diffie-hellman key exchange (BDHKE) scheme and the silent-payment
// derivation are built on.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// domainSeparator is the tag prepended to the secret before hashing it to a
// curve point, matching the standard Cashu Y-coordinate derivation.
const domainSeparator = "Secp256k1_HashToCurve_Cashu_"

// maxHashToCurveIterations bounds the counter loop. Failure beyond this is
// astronomically unlikely for SHA-256 over curve-valid x-coordinates.
const maxHashToCurveIterations = 1 << 16

var ErrHashToCurveExhausted = errors.New("crypto: hash_to_curve exhausted counter space")

// HashToCurve deterministically derives the point Y from secret. It tries
// successive 4-byte little-endian counters appended to the domain-separated
// hash until a valid compressed point decodes.
func HashToCurve(secret []byte) (*secp256k1.PublicKey, error) {
	msgHash := sha256.Sum256(append([]byte(domainSeparator), secret...))

	counter := make([]byte, 4)
	for i := uint32(0); i < maxHashToCurveIterations; i++ {
		binary.LittleEndian.PutUint32(counter, i)

		h := sha256.New()
		h.Write(msgHash[:])
		h.Write(counter)
		candidate := h.Sum(nil)

		pkBytes := append([]byte{0x02}, candidate...)
		if point, err := secp256k1.ParsePubKey(pkBytes); err == nil {
			return point, nil
		}
	}

	return nil, ErrHashToCurveExhausted
}

// BlindMessage computes B_ = Y + rG for secret, using r if provided or a
// fresh uniform scalar otherwise. It returns the blinded message and the
// blinding factor used.
func BlindMessage(secret []byte, r *secp256k1.PrivateKey) (*secp256k1.PublicKey, *secp256k1.PrivateKey, error) {
	Y, err := HashToCurve(secret)
	if err != nil {
		return nil, nil, err
	}

	if r == nil {
		r, err = secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, nil, err
		}
	}

	var ypoint, rpoint, blindedMessage secp256k1.JacobianPoint
	Y.AsJacobian(&ypoint)
	r.PubKey().AsJacobian(&rpoint)

	// blindedMessage = Y + rG
	secp256k1.AddNonConst(&ypoint, &rpoint, &blindedMessage)
	blindedMessage.ToAffine()
	B_ := secp256k1.NewPublicKey(&blindedMessage.X, &blindedMessage.Y)

	return B_, r, nil
}

// SignBlindedMessage computes C_ = kB_, the mint's blind signature over B_.
func SignBlindedMessage(B_ *secp256k1.PublicKey, k *secp256k1.PrivateKey) *secp256k1.PublicKey {
	var bpoint, result secp256k1.JacobianPoint
	B_.AsJacobian(&bpoint)

	// result = k * B_
	secp256k1.ScalarMultNonConst(&k.Key, &bpoint, &result)
	result.ToAffine()
	return secp256k1.NewPublicKey(&result.X, &result.Y)
}

// UnblindSignature computes C = C_ - rK, the client's unblinded signature.
func UnblindSignature(C_ *secp256k1.PublicKey, r *secp256k1.PrivateKey, K *secp256k1.PublicKey) *secp256k1.PublicKey {
	var Kpoint, rKPoint, CPoint secp256k1.JacobianPoint
	K.AsJacobian(&Kpoint)

	var rNeg secp256k1.ModNScalar
	rNeg.NegateVal(&r.Key)
	secp256k1.ScalarMultNonConst(&rNeg, &Kpoint, &rKPoint)

	var C_Point secp256k1.JacobianPoint
	C_.AsJacobian(&C_Point)
	secp256k1.AddNonConst(&C_Point, &rKPoint, &CPoint)
	CPoint.ToAffine()

	return secp256k1.NewPublicKey(&CPoint.X, &CPoint.Y)
}

// Verify checks that k * HashToCurve(secret) == C.
func Verify(secret []byte, k *secp256k1.PrivateKey, C *secp256k1.PublicKey) (bool, error) {
	Y, err := HashToCurve(secret)
	if err != nil {
		return false, err
	}

	var Ypoint, result secp256k1.JacobianPoint
	Y.AsJacobian(&Ypoint)
	secp256k1.ScalarMultNonConst(&k.Key, &Ypoint, &result)
	result.ToAffine()
	pk := secp256k1.NewPublicKey(&result.X, &result.Y)

	return C.IsEqual(pk), nil
}

// VerifyDLEQ checks the mint's DLEQ proof (e, s) over a blind signature,
// proving that C_ = k*B_ for the same k backing public key A, without
// revealing k. To check an unblinded proof, nut12.VerifyProofDLEQ first
// rebuilds B_ and C_ from the proof's secret, C and blinding factor r.
func VerifyDLEQ(e, s *secp256k1.PrivateKey, A, B_, C_ *secp256k1.PublicKey) bool {
	var Apoint, B_point secp256k1.JacobianPoint
	A.AsJacobian(&Apoint)
	B_.AsJacobian(&B_point)

	// R1 = s*G - e*A
	var sG, eA, R1 secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s.Key, &sG)
	secp256k1.ScalarMultNonConst(&e.Key, &Apoint, &eA)
	var eANeg secp256k1.JacobianPoint
	negateJacobian(&eA, &eANeg)
	secp256k1.AddNonConst(&sG, &eANeg, &R1)
	R1.ToAffine()

	// R2 = s*B_ - e*C_
	var sB_, eC_, R2 secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&s.Key, &B_point, &sB_)
	var C_point secp256k1.JacobianPoint
	C_.AsJacobian(&C_point)
	secp256k1.ScalarMultNonConst(&e.Key, &C_point, &eC_)
	var eC_Neg secp256k1.JacobianPoint
	negateJacobian(&eC_, &eC_Neg)
	secp256k1.AddNonConst(&sB_, &eC_Neg, &R2)
	R2.ToAffine()

	R1pub := secp256k1.NewPublicKey(&R1.X, &R1.Y)
	R2pub := secp256k1.NewPublicKey(&R2.X, &R2.Y)

	digest := DomainHash("DLEQ", Compress(R1pub), Compress(R2pub), Compress(A), Compress(B_))
	var eprime secp256k1.ModNScalar
	eprime.SetBytes(&digest)

	return eprime.Equals(&e.Key)
}

func negateJacobian(p, out *secp256k1.JacobianPoint) {
	out.X.Set(&p.X)
	out.Y.Set(&p.Y)
	out.Y.Negate(1)
	out.Y.Normalize()
	out.Z.Set(&p.Z)
}

// ECDH returns the 33-byte compressed form of priv*pub. Silent-payment
// derivation treats this full compressed point as the shared secret, not
// its x-only serialization — senders and scanners must agree on this.
func ECDH(priv *secp256k1.PrivateKey, pub *secp256k1.PublicKey) []byte {
	var pubPoint, sharedPoint secp256k1.JacobianPoint
	pub.AsJacobian(&pubPoint)

	secp256k1.ScalarMultNonConst(&priv.Key, &pubPoint, &sharedPoint)
	sharedPoint.ToAffine()
	shared := secp256k1.NewPublicKey(&sharedPoint.X, &sharedPoint.Y)

	return shared.SerializeCompressed()
}

// DomainHash computes sha256(tag || parts...).
func DomainHash(tag string, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(tag))
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ScalarFromBytes reduces b modulo the curve order, rejecting an all-zero
// result.
func ScalarFromBytes(b []byte) (*secp256k1.ModNScalar, error) {
	var s secp256k1.ModNScalar
	s.SetByteSlice(b)
	if s.IsZero() {
		return nil, errors.New("crypto: scalar reduces to zero")
	}
	return &s, nil
}

// Decompress parses a 33-byte compressed point, failing if it is not a
// valid point on the curve.
func Decompress(b []byte) (*secp256k1.PublicKey, error) {
	return secp256k1.ParsePubKey(b)
}

// Compress serializes a point to its 33-byte compressed form.
func Compress(p *secp256k1.PublicKey) []byte {
	return p.SerializeCompressed()
}

// PointAdd returns P+Q.
func PointAdd(P, Q *secp256k1.PublicKey) *secp256k1.PublicKey {
	var pj, qj, rj secp256k1.JacobianPoint
	P.AsJacobian(&pj)
	Q.AsJacobian(&qj)
	secp256k1.AddNonConst(&pj, &qj, &rj)
	rj.ToAffine()
	return secp256k1.NewPublicKey(&rj.X, &rj.Y)
}

// PointMul returns s*P.
func PointMul(s *secp256k1.ModNScalar, P *secp256k1.PublicKey) *secp256k1.PublicKey {
	var pj, rj secp256k1.JacobianPoint
	P.AsJacobian(&pj)
	secp256k1.ScalarMultNonConst(s, &pj, &rj)
	rj.ToAffine()
	return secp256k1.NewPublicKey(&rj.X, &rj.Y)
}
