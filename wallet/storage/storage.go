// Package storage implements the wallet's persistent state: proofs,
// silent-payment key material, the mnemonic, and cached mint metadata.
package storage

import (
	"time"

	"github.com/silentcashu/swallet/cashu"
)

// MintMetaTTL is how long a cached mint metadata entry remains valid before
// a fresh fetch is required.
const MintMetaTTL = time.Hour

// DBProof is the on-disk shape of a cashu.Proof. Rows are keyed by the
// proof's secret; its Y coordinate (hash_to_curve(secret), compressed hex)
// is stored alongside as a field.
type DBProof struct {
	Y      string           `json:"y"`
	Amount uint64           `json:"amount"`
	Id     string           `json:"id"`
	Secret string           `json:"secret"`
	C      string           `json:"c"`
	DLEQ   *cashu.DLEQProof `json:"dleq,omitempty"`
}

// SilentKeys is the on-disk representation of Bob's long-lived silent
// payment identity.
type SilentKeys struct {
	ScanPrivHex  string `json:"scan_priv"`
	SpendPrivHex string `json:"spend_priv"`
}

// MintMetadata is the cached view of a mint's keysets, keys, and info blob.
type MintMetadata struct {
	Keysets  []byte    `json:"keysets"`
	Keys     []byte    `json:"keys"`
	Info     []byte    `json:"info"`
	CachedAt time.Time `json:"cached_at"`
}

// Expired reports whether this cache entry is older than MintMetaTTL.
func (m MintMetadata) Expired(now time.Time) bool {
	return now.Sub(m.CachedAt) >= MintMetaTTL
}

// DB is the Proof Store contract: a single local store holding proofs,
// the wallet's mnemonic, its silent-payment keys, mint-keyset bookkeeping,
// and cached mint metadata.
type DB interface {
	// GetBalance sums the amount of every stored proof.
	GetBalance() uint64
	// AddProofs upserts proofs by secret; duplicates replace.
	AddProofs(cashu.Proofs) error
	// RemoveProofs deletes proofs matching the given secrets. Missing
	// secrets are ignored.
	RemoveProofs(secrets []string) error
	// ListProofs returns every stored proof.
	ListProofs() cashu.Proofs
	// ProofsForKeyset returns stored proofs issued under the given keyset id.
	ProofsForKeyset(keysetId string) cashu.Proofs

	// SaveMnemonic persists the wallet's mnemonic. It fails if one is
	// already stored: this is an insert, not an upsert.
	SaveMnemonic(mnemonic string) error
	// GetMnemonic returns the stored mnemonic, or "" if none.
	GetMnemonic() string

	// SaveSilentKeys upserts Bob's silent-payment key material.
	SaveSilentKeys(SilentKeys) error
	// GetSilentKeys returns the stored silent-payment keys, or nil if none.
	GetSilentKeys() *SilentKeys

	// SaveKeyset upserts a mint keyset's cached public key material.
	SaveKeyset(keysetId string, data []byte) error
	// GetKeyset returns the cached keyset data, or nil if not cached.
	GetKeyset(keysetId string) []byte
	// KeysetCounter returns the next-secret counter for a keyset, 0 if unset.
	KeysetCounter(keysetId string) uint32
	// IncrementKeysetCounter advances a keyset's counter to at least n.
	IncrementKeysetCounter(keysetId string, n uint32) error

	// GetCachedMintMeta returns the cached metadata for url iff it has not
	// expired, else nil.
	GetCachedMintMeta(url string) *MintMetadata
	// CacheMintMeta replaces the cached metadata for url.
	CacheMintMeta(url string, meta MintMetadata) error

	Close() error
}
