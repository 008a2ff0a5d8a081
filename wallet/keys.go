package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"

	"github.com/silentcashu/swallet/crypto"
	"github.com/silentcashu/swallet/wallet/storage"
)

// silentKeysPurpose is the BIP-32 purpose field under which scan/spend keys
// are derived, reusing the same registered purpose as the rest of the
// wallet's NUT-13 deterministic secrets, in dedicated hardened subtrees.
const silentKeysPurpose = 129372

// newMnemonic generates a fresh BIP-39 mnemonic, used only as an entropy
// source for SilentKeys and the wallet's deterministic secrets.
func newMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func masterKeyFromMnemonic(mnemonic string) (*hdkeychain.ExtendedKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")
	return hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
}

// deriveSilentKeys derives Bob's scan and spend private keys from the
// wallet's seed, under m/129372'/0'/2' (scan) and m/129372'/0'/3' (spend) —
// dedicated hardened subtrees analogous to the teacher's P2PK derivation at
// m/129372'/0'/1'.
func deriveSilentKeys(master *hdkeychain.ExtendedKey) (scanPriv, spendPriv *secp256k1.PrivateKey, err error) {
	purpose, err := master.Derive(hdkeychain.HardenedKeyStart + silentKeysPurpose)
	if err != nil {
		return nil, nil, err
	}
	coinType, err := purpose.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, nil, err
	}

	scanBranch, err := coinType.Derive(hdkeychain.HardenedKeyStart + 2)
	if err != nil {
		return nil, nil, err
	}
	scanKey, err := scanBranch.Derive(0)
	if err != nil {
		return nil, nil, err
	}
	scanPriv, err = scanKey.ECPrivKey()
	if err != nil {
		return nil, nil, err
	}

	spendBranch, err := coinType.Derive(hdkeychain.HardenedKeyStart + 3)
	if err != nil {
		return nil, nil, err
	}
	spendKey, err := spendBranch.Derive(0)
	if err != nil {
		return nil, nil, err
	}
	spendPriv, err = spendKey.ECPrivKey()
	if err != nil {
		return nil, nil, err
	}

	return scanPriv, spendPriv, nil
}

// SilentKeys is Bob's long-lived receiving identity. Open derives and
// persists it when the wallet is first opened, not on the first Address
// call; it is immutable thereafter.
type SilentKeys struct {
	ScanPriv  *secp256k1.PrivateKey
	SpendPriv *secp256k1.PrivateKey
}

func (k SilentKeys) ScanPub() *secp256k1.PublicKey  { return k.ScanPriv.PubKey() }
func (k SilentKeys) SpendPub() *secp256k1.PublicKey { return k.SpendPriv.PubKey() }

// loadOrCreateSilentKeys returns the wallet's persisted SilentKeys, deriving
// and saving them on first use.
func loadOrCreateSilentKeys(db storage.DB, master *hdkeychain.ExtendedKey) (*SilentKeys, error) {
	if stored := db.GetSilentKeys(); stored != nil {
		scanBytes, err := hex.DecodeString(stored.ScanPrivHex)
		if err != nil {
			return nil, err
		}
		spendBytes, err := hex.DecodeString(stored.SpendPrivHex)
		if err != nil {
			return nil, err
		}
		scanPriv := secp256k1.PrivKeyFromBytes(scanBytes)
		spendPriv := secp256k1.PrivKeyFromBytes(spendBytes)
		return &SilentKeys{ScanPriv: scanPriv, SpendPriv: spendPriv}, nil
	}

	scanPriv, spendPriv, err := deriveSilentKeys(master)
	if err != nil {
		return nil, fmt.Errorf("deriving silent keys: %w", err)
	}

	toSave := storage.SilentKeys{
		ScanPrivHex:  hex.EncodeToString(scanPriv.Serialize()),
		SpendPrivHex: hex.EncodeToString(spendPriv.Serialize()),
	}
	if err := db.SaveSilentKeys(toSave); err != nil {
		return nil, fmt.Errorf("persisting silent keys: %w", err)
	}

	return &SilentKeys{ScanPriv: scanPriv, SpendPriv: spendPriv}, nil
}

// ECDHWithScan computes the shared secret between the wallet's scan key and
// an ephemeral pubkey observed on the mint's spent-secret list.
func (k SilentKeys) ECDHWithScan(ephemeralPub *secp256k1.PublicKey) []byte {
	return crypto.ECDH(k.ScanPriv, ephemeralPub)
}
