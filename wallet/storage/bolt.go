package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/silentcashu/swallet/crypto"

	"github.com/silentcashu/swallet/cashu"
)

const (
	proofsBucket         = "proofs"
	configBucket         = "config"
	silentKeysBucket     = "silent_payment_keys"
	keysetsBucket        = "mint_keysets"
	keysetCountersBucket = "keyset_counters"
	mintMetaBucket       = "mint_metadata"

	mnemonicKey = "mnemonic"
)

// BoltDB is the bbolt-backed Proof Store.
type BoltDB struct {
	bolt *bolt.DB
}

// InitBolt opens (creating if necessary) the wallet database at path and
// idempotently creates its buckets.
func InitBolt(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open: %v", err)
	}

	boltdb := &BoltDB{bolt: db}
	if err := boltdb.initBuckets(); err != nil {
		return nil, fmt.Errorf("initBuckets: %v", err)
	}

	return boltdb, nil
}

func (db *BoltDB) initBuckets() error {
	buckets := []string{
		proofsBucket, configBucket, silentKeysBucket,
		keysetsBucket, keysetCountersBucket, mintMetaBucket,
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) GetBalance() uint64 {
	var balance uint64
	db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		return b.ForEach(func(_, v []byte) error {
			var proof DBProof
			if err := json.Unmarshal(v, &proof); err != nil {
				return nil
			}
			balance += proof.Amount
			return nil
		})
	})
	return balance
}

func (db *BoltDB) AddProofs(proofs cashu.Proofs) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		for _, proof := range proofs {
			Y, err := crypto.HashToCurve([]byte(proof.Secret))
			if err != nil {
				return fmt.Errorf("hashing secret to curve: %w", err)
			}

			dbProof := DBProof{
				Y:      fmt.Sprintf("%x", Y.SerializeCompressed()),
				Amount: proof.Amount,
				Id:     proof.Id,
				Secret: proof.Secret,
				C:      proof.C,
				DLEQ:   proof.DLEQ,
			}

			data, err := json.Marshal(dbProof)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(proof.Secret), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) RemoveProofs(secrets []string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		for _, secret := range secrets {
			if err := b.Delete([]byte(secret)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) ListProofs() cashu.Proofs {
	proofs := cashu.Proofs{}
	db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		return b.ForEach(func(_, v []byte) error {
			var dbProof DBProof
			if err := json.Unmarshal(v, &dbProof); err != nil {
				return nil
			}
			proofs = append(proofs, dbProofToProof(dbProof))
			return nil
		})
	})
	return proofs
}

func (db *BoltDB) ProofsForKeyset(keysetId string) cashu.Proofs {
	proofs := cashu.Proofs{}
	db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(proofsBucket))
		return b.ForEach(func(_, v []byte) error {
			var dbProof DBProof
			if err := json.Unmarshal(v, &dbProof); err != nil {
				return nil
			}
			if dbProof.Id == keysetId {
				proofs = append(proofs, dbProofToProof(dbProof))
			}
			return nil
		})
	})
	return proofs
}

func dbProofToProof(p DBProof) cashu.Proof {
	return cashu.Proof{Amount: p.Amount, Id: p.Id, Secret: p.Secret, C: p.C, DLEQ: p.DLEQ}
}

func (db *BoltDB) SaveMnemonic(mnemonic string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(configBucket))
		if b.Get([]byte(mnemonicKey)) != nil {
			return errors.New("mnemonic already saved for this wallet")
		}
		return b.Put([]byte(mnemonicKey), []byte(mnemonic))
	})
}

func (db *BoltDB) GetMnemonic() string {
	var mnemonic string
	db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(configBucket))
		mnemonic = string(b.Get([]byte(mnemonicKey)))
		return nil
	})
	return mnemonic
}

const silentKeysKey = "silent_keys"

func (db *BoltDB) SaveSilentKeys(keys SilentKeys) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(silentKeysBucket))
		return b.Put([]byte(silentKeysKey), data)
	})
}

func (db *BoltDB) GetSilentKeys() *SilentKeys {
	var keys *SilentKeys
	db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(silentKeysBucket))
		data := b.Get([]byte(silentKeysKey))
		if data == nil {
			return nil
		}
		var k SilentKeys
		if err := json.Unmarshal(data, &k); err != nil {
			return nil
		}
		keys = &k
		return nil
	})
	return keys
}

func (db *BoltDB) SaveKeyset(keysetId string, data []byte) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(keysetsBucket))
		return b.Put([]byte(keysetId), data)
	})
}

func (db *BoltDB) GetKeyset(keysetId string) []byte {
	var data []byte
	db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(keysetsBucket))
		if v := b.Get([]byte(keysetId)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data
}

func (db *BoltDB) KeysetCounter(keysetId string) uint32 {
	var counter uint32
	db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(keysetCountersBucket))
		if v := b.Get([]byte(keysetId)); v != nil && len(v) == 4 {
			counter = binary.BigEndian.Uint32(v)
		}
		return nil
	})
	return counter
}

func (db *BoltDB) IncrementKeysetCounter(keysetId string, n uint32) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(keysetCountersBucket))
		current := uint32(0)
		if v := b.Get([]byte(keysetId)); v != nil && len(v) == 4 {
			current = binary.BigEndian.Uint32(v)
		}
		if n <= current {
			return nil
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, n)
		return b.Put([]byte(keysetId), buf)
	})
}

func (db *BoltDB) GetCachedMintMeta(url string) *MintMetadata {
	var meta *MintMetadata
	db.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(mintMetaBucket))
		data := b.Get([]byte(url))
		if data == nil {
			return nil
		}
		var m MintMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil
		}
		if m.Expired(time.Now()) {
			return nil
		}
		meta = &m
		return nil
	})
	return meta
}

func (db *BoltDB) CacheMintMeta(url string, meta MintMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(mintMetaBucket))
		return b.Put([]byte(url), data)
	})
}

func (db *BoltDB) Close() error {
	return db.bolt.Close()
}
