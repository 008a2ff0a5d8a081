package wallet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/silentcashu/swallet/cashu"
	"github.com/silentcashu/swallet/crypto"
)

// cachedKeyset is the JSON-friendly shape of a crypto.WalletKeyset, whose
// PublicKeys values don't marshal on their own.
type cachedKeyset struct {
	Id          string            `json:"id"`
	MintURL     string            `json:"mint_url"`
	Unit        string            `json:"unit"`
	Active      bool              `json:"active"`
	InputFeePpk uint              `json:"input_fee_ppk"`
	PublicKeys  map[uint64]string `json:"public_keys"`
}

// persistKeyset caches a keyset's public key material as JSON so it can be
// reloaded without a round-trip to the mint.
func persistKeyset(db interface {
	SaveKeyset(keysetId string, data []byte) error
}, keyset *crypto.WalletKeyset) error {
	keys := make(map[uint64]string, len(keyset.PublicKeys))
	for amount, pub := range keyset.PublicKeys {
		keys[amount] = hex.EncodeToString(pub.SerializeCompressed())
	}

	data, err := json.Marshal(cachedKeyset{
		Id:          keyset.Id,
		MintURL:     keyset.MintURL,
		Unit:        keyset.Unit,
		Active:      keyset.Active,
		InputFeePpk: keyset.InputFeePpk,
		PublicKeys:  keys,
	})
	if err != nil {
		return err
	}
	return db.SaveKeyset(keyset.Id, data)
}

// loadCachedKeyset decodes a cachedKeyset previously stored by
// persistKeyset back into a crypto.WalletKeyset.
func loadCachedKeyset(data []byte) (*crypto.WalletKeyset, error) {
	var cached cachedKeyset
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	keys, err := crypto.MapPubKeys(cached.PublicKeys)
	if err != nil {
		return nil, err
	}

	return &crypto.WalletKeyset{
		Id:          cached.Id,
		MintURL:     cached.MintURL,
		Unit:        cached.Unit,
		Active:      cached.Active,
		PublicKeys:  keys,
		InputFeePpk: cached.InputFeePpk,
	}, nil
}

// GetMintActiveKeyset gets the active keyset with the specified unit.
func GetMintActiveKeyset(mintURL string, unit cashu.Unit) (*crypto.WalletKeyset, error) {
	keysets, err := GetAllKeysets(mintURL)
	if err != nil {
		return nil, fmt.Errorf("error getting active keysets from mint: %v", err)
	}

	keysetsResponse, err := GetActiveKeysets(mintURL)
	if err != nil {
		return nil, fmt.Errorf("error getting active keysets from mint: %v", err)
	}

	for i, keyset := range keysetsResponse.Keysets {
		if keyset.Unit != unit.String() {
			continue
		}

		var inputFeePpk uint
		for _, response := range keysets.Keysets {
			if response.Id == keyset.Id {
				inputFeePpk = response.InputFeePpk
				break
			}
		}

		if _, err := hex.DecodeString(keyset.Id); err != nil {
			continue
		}

		keys, err := crypto.MapPubKeys(keysetsResponse.Keysets[i].Keys)
		if err != nil {
			return nil, err
		}
		id := crypto.DeriveKeysetId(keys)
		if id != keyset.Id {
			return nil, fmt.Errorf("got invalid keyset: derived id '%v' but mint reported '%v'", id, keyset.Id)
		}

		return &crypto.WalletKeyset{
			Id:          id,
			MintURL:     mintURL,
			Unit:        keyset.Unit,
			Active:      true,
			PublicKeys:  keys,
			InputFeePpk: inputFeePpk,
		}, nil
	}

	return nil, errors.New("could not find an active keyset for the unit")
}

func GetMintInactiveKeysets(mintURL string) (map[string]crypto.WalletKeyset, error) {
	keysetsResponse, err := GetAllKeysets(mintURL)
	if err != nil {
		return nil, fmt.Errorf("error getting keysets from mint: %v", err)
	}

	inactiveKeysets := make(map[string]crypto.WalletKeyset)
	for _, keysetRes := range keysetsResponse.Keysets {
		if _, err := hex.DecodeString(keysetRes.Id); err != nil {
			continue
		}
		if keysetRes.Active || keysetRes.Unit != cashu.Sat.String() {
			continue
		}

		keyset := crypto.WalletKeyset{
			Id:          keysetRes.Id,
			MintURL:     mintURL,
			Unit:        keysetRes.Unit,
			Active:      keysetRes.Active,
			InputFeePpk: keysetRes.InputFeePpk,
		}
		inactiveKeysets[keyset.Id] = keyset
	}
	return inactiveKeysets, nil
}

// activeSatKeyset returns the active sat keyset for mintURL. If the mint's
// reported active keyset has rotated since the last call, it inactivates
// the previous one and persists the change.
func (w *Wallet) activeSatKeyset() (*crypto.WalletKeyset, error) {
	allKeysets, err := GetAllKeysets(w.mintURL)
	if err != nil {
		return nil, err
	}

	activeChanged := true
	for _, keyset := range allKeysets.Keysets {
		if keyset.Active && keyset.Id == w.activeKeyset.Id {
			activeChanged = false
			break
		}
	}

	if !activeChanged {
		return &w.activeKeyset, nil
	}

	w.logger.Warn("mint active keyset rotated", "mint", w.mintURL, "previous_id", w.activeKeyset.Id)

	previous := w.activeKeyset
	previous.Active = false
	w.inactiveKeysets[previous.Id] = previous
	if err := persistKeyset(w.db, &previous); err != nil {
		return nil, fmt.Errorf("persisting rotated keyset: %w", err)
	}

	for _, keyset := range allKeysets.Keysets {
		if !keyset.Active || keyset.Unit != w.unit.String() {
			continue
		}
		if _, err := hex.DecodeString(keyset.Id); err != nil {
			continue
		}

		keysetKeys, err := GetKeysetById(w.mintURL, keyset.Id)
		if err != nil {
			return nil, err
		}

		keys, err := crypto.MapPubKeys(keysetKeys.Keysets[0].Keys)
		if err != nil {
			return nil, err
		}

		w.activeKeyset = crypto.WalletKeyset{
			Id:          keyset.Id,
			MintURL:     w.mintURL,
			Unit:        keyset.Unit,
			Active:      true,
			PublicKeys:  keys,
			InputFeePpk: keyset.InputFeePpk,
		}
		if err := persistKeyset(w.db, &w.activeKeyset); err != nil {
			return nil, fmt.Errorf("persisting new active keyset: %w", err)
		}
		break
	}

	return &w.activeKeyset, nil
}
