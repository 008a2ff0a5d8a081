package storage

import (
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/silentcashu/swallet/cashu"
)

func newTestDB(t *testing.T) *BoltDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallet.db")
	db, err := InitBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAddListRemoveProofs(t *testing.T) {
	db := newTestDB(t)

	proofs := cashu.Proofs{
		{Amount: 4, Id: "00aabbccddeeff00", Secret: "secret-one", C: "02" + zeros()},
		{Amount: 8, Id: "00aabbccddeeff00", Secret: "secret-two", C: "03" + zeros()},
	}
	require.NoError(t, db.AddProofs(proofs))

	require.EqualValues(t, 12, db.GetBalance())
	require.Len(t, db.ListProofs(), 2)
	require.Len(t, db.ProofsForKeyset("00aabbccddeeff00"), 2)
	require.Len(t, db.ProofsForKeyset("nonexistent"), 0)

	require.NoError(t, db.RemoveProofs([]string{"secret-one"}))
	require.EqualValues(t, 8, db.GetBalance())
	require.Len(t, db.ListProofs(), 1)
}

func TestMnemonicInsertOnly(t *testing.T) {
	db := newTestDB(t)

	require.Empty(t, db.GetMnemonic())
	require.NoError(t, db.SaveMnemonic("abandon abandon abandon"))
	require.Equal(t, "abandon abandon abandon", db.GetMnemonic())
	require.Error(t, db.SaveMnemonic("another mnemonic"))
}

func TestSilentKeysRoundtrip(t *testing.T) {
	db := newTestDB(t)

	require.Nil(t, db.GetSilentKeys())

	keys := SilentKeys{ScanPrivHex: "aa", SpendPrivHex: "bb"}
	require.NoError(t, db.SaveSilentKeys(keys))

	got := db.GetSilentKeys()
	require.NotNil(t, got)
	require.Equal(t, keys, *got)
}

func TestKeysetCounterMonotonic(t *testing.T) {
	db := newTestDB(t)

	require.EqualValues(t, 0, db.KeysetCounter("ks1"))
	require.NoError(t, db.IncrementKeysetCounter("ks1", 5))
	require.EqualValues(t, 5, db.KeysetCounter("ks1"))

	// Incrementing to a lower value is a no-op: counters never go
	// backwards.
	require.NoError(t, db.IncrementKeysetCounter("ks1", 2))
	require.EqualValues(t, 5, db.KeysetCounter("ks1"))
}

func TestKeysetCache(t *testing.T) {
	db := newTestDB(t)

	require.Nil(t, db.GetKeyset("ks1"))
	require.NoError(t, db.SaveKeyset("ks1", []byte("cached-bytes")))
	require.Equal(t, []byte("cached-bytes"), db.GetKeyset("ks1"))
}

func TestMintMetaExpiry(t *testing.T) {
	db := newTestDB(t)

	require.Nil(t, db.GetCachedMintMeta("https://mint.example"))

	meta := MintMetadata{Keys: []byte("keys"), CachedAt: time.Now()}
	require.NoError(t, db.CacheMintMeta("https://mint.example", meta))

	got := db.GetCachedMintMeta("https://mint.example")
	require.NotNil(t, got)
	require.Equal(t, []byte("keys"), got.Keys)

	stale := MintMetadata{Keys: []byte("old"), CachedAt: time.Now().Add(-2 * MintMetaTTL)}
	require.NoError(t, db.CacheMintMeta("https://stale.example", stale))
	require.Nil(t, db.GetCachedMintMeta("https://stale.example"))
}

func zeros() string {
	return hex.EncodeToString(make([]byte, 32))
}
