package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/silentcashu/swallet/cashu"
	"github.com/silentcashu/swallet/cashu/nuts/nut13"
	"github.com/silentcashu/swallet/crypto"
)

// createBlindedMessages splits amount into denominations and builds one
// deterministic blinded message per denomination, using the wallet's
// NUT-13 per-keyset counter. Deriving from the seed instead of from
// crypto/rand makes every output recoverable from the mnemonic alone.
func (w *Wallet) createBlindedMessages(amount uint64, keysetId string) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {
	splitAmounts := cashu.AmountSplit(amount)

	keysetPath, err := nut13.DeriveKeysetPath(w.master, keysetId)
	if err != nil {
		return nil, nil, nil, err
	}
	counter := w.db.KeysetCounter(keysetId)

	blindedMessages := make(cashu.BlindedMessages, len(splitAmounts))
	secrets := make([]string, len(splitAmounts))
	rs := make([]*secp256k1.PrivateKey, len(splitAmounts))

	for i, amt := range splitAmounts {
		secret, r, err := deterministicSecretAndBlinding(keysetPath, counter)
		if err != nil {
			return nil, nil, nil, err
		}
		counter++

		B_, r, err := crypto.BlindMessage([]byte(secret), r)
		if err != nil {
			return nil, nil, nil, err
		}

		blindedMessages[i] = cashu.NewBlindedMessage(keysetId, amt, B_)
		secrets[i] = secret
		rs[i] = r
	}

	if err := w.db.IncrementKeysetCounter(keysetId, counter); err != nil {
		return nil, nil, nil, err
	}

	return blindedMessages, secrets, rs, nil
}

// randomBlindedMessage builds a single blinded message for the given secret
// with a uniformly random blinding factor, used for the signal proof output
// whose secret must be the sender's ephemeral pubkey, not a deterministic
// derivation.
func randomBlindedMessage(keysetId string, amount uint64, secret []byte) (cashu.BlindedMessage, *secp256k1.PrivateKey, error) {
	B_, r, err := crypto.BlindMessage(secret, nil)
	if err != nil {
		return cashu.BlindedMessage{}, nil, err
	}
	return cashu.NewBlindedMessage(keysetId, amount, B_), r, nil
}

func deterministicSecretAndBlinding(keysetPath *hdkeychain.ExtendedKey, counter uint32) (string, *secp256k1.PrivateKey, error) {
	secret, err := nut13.DeriveSecret(keysetPath, counter)
	if err != nil {
		return "", nil, err
	}
	r, err := nut13.DeriveBlindingFactor(keysetPath, counter)
	if err != nil {
		return "", nil, err
	}
	return secret, r, nil
}

// constructProofs unblinds signatures against the known blinding factors
// and the keyset's public keys, producing spendable proofs.
func constructProofs(signatures cashu.BlindedSignatures, secrets []string, rs []*secp256k1.PrivateKey, keyset crypto.WalletKeyset) (cashu.Proofs, error) {
	if len(signatures) != len(secrets) || len(signatures) != len(rs) {
		return nil, errors.New("constructProofs: mismatched lengths")
	}

	proofs := make(cashu.Proofs, len(signatures))
	for i, sig := range signatures {
		C_bytes, err := hex.DecodeString(sig.C_)
		if err != nil {
			return nil, err
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			return nil, err
		}

		K, ok := keyset.PublicKeys[sig.Amount]
		if !ok {
			return nil, errors.New("constructProofs: unknown denomination in keyset")
		}

		C := crypto.UnblindSignature(C_, rs[i], K)
		proofs[i] = cashu.Proof{
			Amount: sig.Amount,
			Id:     sig.Id,
			Secret: secrets[i],
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
	}

	return proofs, nil
}

func randomSecretHex() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
