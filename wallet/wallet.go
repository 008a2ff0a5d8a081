// Package wallet implements the client half of Silent Cashu Payments: a
// Proof Store, a Pay Engine that constructs silently-addressed outputs via
// a two-phase swap, and a Scan Engine that discovers and restores them.
package wallet

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/silentcashu/swallet/cashu"
	"github.com/silentcashu/swallet/crypto"
	"github.com/silentcashu/swallet/wallet/storage"
)

// Wallet is a single-mint, single-db-path façade: one Wallet instance per
// (db path, mint URL) pair, matching the Proof Store's own singleton scope.
type Wallet struct {
	db     storage.DB
	logger *slog.Logger

	mintURL string
	unit    cashu.Unit

	master *hdkeychain.ExtendedKey
	keys   *SilentKeys

	activeKeyset    crypto.WalletKeyset
	inactiveKeysets map[string]crypto.WalletKeyset
}

// Open loads or initializes the wallet state at dbPath and binds it to
// mintURL. A fresh mnemonic and a fresh SilentKeys identity are generated
// on first use and persisted; subsequent opens reuse them.
func Open(dbPath, mintURL string) (*Wallet, error) {
	db, err := storage.InitBolt(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening proof store: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mnemonic := db.GetMnemonic()
	if mnemonic == "" {
		mnemonic, err = newMnemonic()
		if err != nil {
			return nil, fmt.Errorf("generating mnemonic: %w", err)
		}
		if err := db.SaveMnemonic(mnemonic); err != nil {
			return nil, fmt.Errorf("persisting mnemonic: %w", err)
		}
	}

	master, err := masterKeyFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}

	silentKeys, err := loadOrCreateSilentKeys(db, master)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		db:              db,
		logger:          logger,
		mintURL:         mintURL,
		unit:            cashu.Sat,
		master:          master,
		keys:            silentKeys,
		inactiveKeysets: make(map[string]crypto.WalletKeyset),
	}

	activeKeyset, err := GetMintActiveKeyset(mintURL, cashu.Sat)
	if err != nil {
		return nil, fmt.Errorf("fetching mint's active keyset: %w", err)
	}
	w.activeKeyset = *activeKeyset

	inactive, err := GetMintInactiveKeysets(mintURL)
	if err != nil {
		logger.Warn("could not fetch inactive keysets", "mint", mintURL, "error", err)
	} else {
		for id, ks := range inactive {
			if cached := db.GetKeyset(id); cached != nil {
				if full, err := loadCachedKeyset(cached); err == nil {
					ks = *full
				}
			}
			w.inactiveKeysets[id] = ks
		}
	}

	return w, nil
}

// Balance returns the sum of every proof currently held.
func (w *Wallet) Balance() uint64 {
	return w.db.GetBalance()
}

// Address returns this wallet's receiving CashuAddress.
func (w *Wallet) Address() string {
	return Format(w.mintURL, w.keys.ScanPub(), w.keys.SpendPub())
}

// Close releases the underlying proof store.
func (w *Wallet) Close() error {
	return w.db.Close()
}

// selectProofs greedily collects stored proofs until their sum covers
// amount, returning the selected proofs and their total.
func (w *Wallet) selectProofs(amount uint64) (cashu.Proofs, uint64) {
	all := w.db.ListProofs()
	selected := make(cashu.Proofs, 0, len(all))
	var total uint64
	for _, p := range all {
		if total >= amount {
			break
		}
		selected = append(selected, p)
		total += p.Amount
	}
	return selected, total
}
