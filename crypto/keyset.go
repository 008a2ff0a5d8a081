package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// WalletKeyset is the wallet-side cached view of one of the mint's keysets:
// its public keys per denomination, as reported over NUT-01/NUT-02. The
// wallet never holds the mint's private keys — it only unblinds and
// verifies against the public half.
type WalletKeyset struct {
	Id          string
	MintURL     string
	Unit        string
	Active      bool
	PublicKeys  map[uint64]*secp256k1.PublicKey
	InputFeePpk uint
}

// KeysetsMap indexes cached keysets by mint URL then by keyset id.
type KeysetsMap map[string]map[string]WalletKeyset

// MapPubKeys parses a NUT-01 amount->hex-pubkey map into a map of live curve
// points.
func MapPubKeys(keys map[uint64]string) (map[uint64]*secp256k1.PublicKey, error) {
	pubkeys := make(map[uint64]*secp256k1.PublicKey, len(keys))
	for amount, keyHex := range keys {
		keyBytes, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid key for amount %v: %v", amount, err)
		}
		pubkey, err := secp256k1.ParsePubKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("invalid key for amount %v: %v", amount, err)
		}
		pubkeys[amount] = pubkey
	}
	return pubkeys, nil
}

// DeriveKeysetId reproduces the NUT-02 keyset id from its public keys:
// sort by denomination ascending, hash the concatenated compressed pubkeys,
// and prefix with the keyset version byte "00".
func DeriveKeysetId(keys map[uint64]*secp256k1.PublicKey) string {
	amounts := make([]uint64, 0, len(keys))
	for amount := range keys {
		amounts = append(amounts, amount)
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })

	pubkeys := make([]byte, 0, len(keys)*33)
	for _, amount := range amounts {
		pubkeys = append(pubkeys, keys[amount].SerializeCompressed()...)
	}

	hash := sha256.Sum256(pubkeys)
	return "00" + hex.EncodeToString(hash[:])[:14]
}
