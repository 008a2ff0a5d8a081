package crypto

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// MaxSilentOutputs bounds how many denominations per silent payment a
// scanner is willing to probe (K in spec terms). A sender emitting more
// denominations than this produces undiscoverable outputs — a documented
// privacy-vs-cost tradeoff, not a bug.
const MaxSilentOutputs = 8

// tweakTag and the related tags below are the domain separators used
// for the tweak, output secret, and blinding factor derivations. The index k
// is encoded as a single byte, so implementations wanting MaxSilentOutputs
// above 255 must revise this encoding.
const (
	tweakTag  = "silent_output"
	secretTag = "output"
	blindTag  = "blinder"
)

// OutputData is the client-side construction record for one silent output.
// It is deterministic in (sharedSecret, spendPub, index, amount, keysetId):
// the sender computes it to build a blinded message; the scanner recomputes
// the identical record to restore the resulting proof.
type OutputData struct {
	BlindedMessagePoint *secp256k1.PublicKey // B_
	BlindingFactor      *secp256k1.PrivateKey // r
	Secret              []byte                // 64 ASCII hex chars, UTF-8 encoded
	Amount              uint64
	KeysetId            string
}

// SecretHex returns the secret as the hex string the mint sees on the wire.
func (od OutputData) SecretHex() string {
	return string(od.Secret)
}

// DeriveSilentTweak computes the per-index tweak scalar from the ECDH shared
// secret. index must fit in a single byte (see MaxSilentOutputs).
func DeriveSilentTweak(sharedSecret []byte, index uint8) *secp256k1.ModNScalar {
	digest := DomainHash(tweakTag, sharedSecret, []byte{index})
	var scalar secp256k1.ModNScalar
	scalar.SetBytes(&digest)
	return &scalar
}

// DeriveSilentOutputPoint computes spend_pub + tweak_k*G, the public key
// that will own the k'th silent output.
func DeriveSilentOutputPoint(sharedSecret []byte, spendPub *secp256k1.PublicKey, index uint8) *secp256k1.PublicKey {
	tweak := DeriveSilentTweak(sharedSecret, index)

	var tweakPointJ secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(tweak, &tweakPointJ)
	tweakPointJ.ToAffine()
	tweakPoint := secp256k1.NewPublicKey(&tweakPointJ.X, &tweakPointJ.Y)

	return PointAdd(spendPub, tweakPoint)
}

// DeriveSilentSecret computes the 32-byte output secret digest and its
// 64-char hex ASCII encoding for the k'th silent output.
func DeriveSilentSecret(sharedSecret []byte, spendPub *secp256k1.PublicKey, index uint8) (digest [32]byte, hexSecret []byte) {
	outputPoint := DeriveSilentOutputPoint(sharedSecret, spendPub, index)
	digest = DomainHash(secretTag, Compress(outputPoint))
	hexSecret = []byte(hex.EncodeToString(digest[:]))
	return digest, hexSecret
}

// DeriveSilentBlindingFactor computes the deterministic blinding factor
// int(sha256("blinder" || output_secret_bytes || [k])) mod n.
func DeriveSilentBlindingFactor(secretDigest [32]byte, index uint8) *secp256k1.PrivateKey {
	blinderDigest := DomainHash(blindTag, secretDigest[:], []byte{index})
	priv, _ := btcec.PrivKeyFromBytes(blinderDigest[:])
	return priv
}

// CreateSilentOutput deterministically derives the OutputData for the k'th
// silent output addressed to spendPub, given the sender/scanner's shared
// ECDH secret. Equal inputs always produce bitwise-equal output: this is
// what lets the scanner rederive exactly what the sender sent with no side
// channel.
func CreateSilentOutput(amount uint64, keysetId string, sharedSecret []byte, spendPub *secp256k1.PublicKey, index uint8) (OutputData, error) {
	secretDigest, hexSecret := DeriveSilentSecret(sharedSecret, spendPub, index)
	r := DeriveSilentBlindingFactor(secretDigest, index)

	B_, r, err := BlindMessage(hexSecret, r)
	if err != nil {
		return OutputData{}, err
	}

	return OutputData{
		BlindedMessagePoint: B_,
		BlindingFactor:      r,
		Secret:              hexSecret,
		Amount:              amount,
		KeysetId:            keysetId,
	}, nil
}
