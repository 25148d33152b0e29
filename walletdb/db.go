// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package walletdb implements the wallet's document store as a single
// encrypted bbolt file.  Rows are msgpack-encoded, sealed with
// chacha20poly1305 under a key derived from the store passphrase, and keyed
// by an insertion sequence so queries iterate in insertion order.  Entities
// embed a UUID id used for point lookups and deletes.
package walletdb

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/internal/zero"
	"github.com/pingpongsneak/bamboo/record"
)

// Naming follows the store conventions: put writes a sealed row; the typed
// Insert*/Update*/Fetch*/Delete* methods and the unexported fetch* helpers
// work on decoded entities and seal or open rows internally.

// Bucket names.
var (
	bucketMeta      = []byte("meta")
	bucketKeySets   = []byte("keysets")
	bucketTxns      = []byte("transactions")
	bucketWalletTxs = []byte("wallettxs")
)

// Meta keys.
var (
	keyKDFParams = []byte("kdf")
	keyCheck     = []byte("check")
)

// checkProbe is sealed into the meta bucket at creation and opened on every
// subsequent Open to detect a wrong passphrase before any row is touched.
var checkProbe = []byte("bamboo")

// Big endian sequence keys keep cursor scans in insertion order.
var byteOrder = binary.BigEndian

// DB is an open wallet store.
type DB struct {
	db  *bolt.DB
	key [32]byte
}

// Open opens (or creates) the wallet store at path, deriving the row
// encryption key from passphrase.  A wrong passphrase for an existing store
// fails with a Passphrase error.
func Open(path string, passphrase []byte) (*DB, error) {
	const op errors.Op = "walletdb.Open"

	bdb, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.E(op, errors.Store, err)
	}

	d := &DB{db: bdb}
	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketKeySets, bucketTxns, bucketWalletTxs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.E(errors.Store, err)
			}
		}
		meta := tx.Bucket(bucketMeta)

		var params *argon2idParams
		if raw := meta.Get(keyKDFParams); raw != nil {
			params, err = unmarshalArgon2idParams(raw)
			if err != nil {
				return err
			}
		} else {
			params, err = newArgon2idParams(rand.Reader)
			if err != nil {
				return errors.E(errors.Store, err)
			}
			if err := meta.Put(keyKDFParams, params.marshal()); err != nil {
				return errors.E(errors.Store, err)
			}
		}
		d.key = params.deriveKey(passphrase)

		if raw := meta.Get(keyCheck); raw != nil {
			pt, err := d.openRow(raw)
			if err != nil || !bytes.Equal(pt, checkProbe) {
				return errors.E(errors.Passphrase, "wrong store passphrase")
			}
			return nil
		}
		sealed, err := d.sealRow(checkProbe)
		if err != nil {
			return err
		}
		return meta.Put(keyCheck, sealed)
	})
	if err != nil {
		bdb.Close()
		zero.Bytea32(&d.key)
		return nil, errors.E(op, err)
	}
	return d, nil
}

// Close releases the store and clears the row encryption key.
func (d *DB) Close() error {
	zero.Bytea32(&d.key)
	return d.db.Close()
}

// sealRow encrypts a row with a fresh random nonce: nonce || AEAD output.
func (d *DB) sealRow(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(d.key[:])
	if err != nil {
		return nil, errors.E(errors.Store, err)
	}
	out := make([]byte, chacha20poly1305.NonceSize, chacha20poly1305.NonceSize+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := rand.Read(out); err != nil {
		return nil, errors.E(errors.Store, err)
	}
	return aead.Seal(out, out[:chacha20poly1305.NonceSize], plaintext, nil), nil
}

// openRow reverses sealRow.
func (d *DB) openRow(sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSize+chacha20poly1305.Overhead {
		return nil, errors.E(errors.Store, "sealed row too short")
	}
	aead, err := chacha20poly1305.New(d.key[:])
	if err != nil {
		return nil, errors.E(errors.Store, err)
	}
	pt, err := aead.Open(nil, sealed[:chacha20poly1305.NonceSize], sealed[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return nil, errors.E(errors.Store, "row authentication failed")
	}
	return pt, nil
}

// put appends an encoded entity to the bucket under the next sequence key.
func put(b *bolt.Bucket, sealed []byte) error {
	seq, err := b.NextSequence()
	if err != nil {
		return errors.E(errors.Store, err)
	}
	var k [8]byte
	byteOrder.PutUint64(k[:], seq)
	if err := b.Put(k[:], sealed); err != nil {
		return errors.E(errors.Store, err)
	}
	return nil
}

// insert encodes, seals and appends an entity.
func (d *DB) insert(bucket []byte, entity interface{}) error {
	raw, err := msgpack.Marshal(entity)
	if err != nil {
		return errors.E(errors.Encoding, err)
	}
	sealed, err := d.sealRow(raw)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucket), sealed)
	})
}

// forEachRow decrypts and decodes every row of the bucket in insertion
// order, invoking f with the bucket key and decoded plaintext.
func (d *DB) forEachRow(tx *bolt.Tx, bucket []byte, f func(k, plaintext []byte) error) error {
	return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
		pt, err := d.openRow(v)
		if err != nil {
			return err
		}
		return f(k, pt)
	})
}

// InsertKeySet persists a new key set.
func (d *DB) InsertKeySet(ks *record.KeySet) error {
	const op errors.Op = "walletdb.InsertKeySet"
	if err := d.insert(bucketKeySets, ks); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// KeySets returns all key sets in insertion order.
func (d *DB) KeySets() ([]record.KeySet, error) {
	const op errors.Op = "walletdb.KeySets"
	var out []record.KeySet
	err := d.db.View(func(tx *bolt.Tx) error {
		return d.forEachRow(tx, bucketKeySets, func(_, pt []byte) error {
			var ks record.KeySet
			if err := msgpack.Unmarshal(pt, &ks); err != nil {
				return errors.E(errors.Encoding, err)
			}
			out = append(out, ks)
			return nil
		})
	})
	if err != nil {
		return nil, errors.E(op, err)
	}
	return out, nil
}

// FirstKeySet returns the first persisted key set.
func (d *DB) FirstKeySet() (*record.KeySet, error) {
	const op errors.Op = "walletdb.FirstKeySet"
	sets, err := d.KeySets()
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, errors.E(op, errors.NotExist, "no key sets")
	}
	return &sets[0], nil
}

// LastKeySet returns the most recently persisted key set.
func (d *DB) LastKeySet() (*record.KeySet, error) {
	const op errors.Op = "walletdb.LastKeySet"
	sets, err := d.KeySets()
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, errors.E(op, errors.NotExist, "no key sets")
	}
	ks := sets[len(sets)-1]
	for i := range sets[:len(sets)-1] {
		sets[i].Zero()
	}
	return &ks, nil
}

// InsertWalletTx persists a wallet transaction.  At most one row may exist
// per id; a second insert for a live session id fails with Exist, enforcing
// the one-draft-per-session invariant at the store level.
func (d *DB) InsertWalletTx(w *record.WalletTx) error {
	const op errors.Op = "walletdb.InsertWalletTx"
	existing, err := d.fetchWalletTx(w.ID)
	if err != nil && !errors.Is(errors.NotExist, err) {
		return errors.E(op, err)
	}
	if existing != nil {
		return errors.E(op, errors.Exist, "a draft already exists for this session")
	}
	if err := d.insert(bucketWalletTxs, w); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// UpdateWalletTx replaces the row whose id matches w.ID.
func (d *DB) UpdateWalletTx(w *record.WalletTx) error {
	const op errors.Op = "walletdb.UpdateWalletTx"
	raw, err := msgpack.Marshal(w)
	if err != nil {
		return errors.E(op, errors.Encoding, err)
	}
	sealed, err := d.sealRow(raw)
	if err != nil {
		return errors.E(op, err)
	}
	found := false
	err = d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWalletTxs)
		var key []byte
		err := d.forEachRow(tx, bucketWalletTxs, func(k, pt []byte) error {
			var row record.WalletTx
			if err := msgpack.Unmarshal(pt, &row); err != nil {
				return errors.E(errors.Encoding, err)
			}
			if row.ID == w.ID {
				key = append([]byte(nil), k...)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if key == nil {
			return nil
		}
		found = true
		return b.Put(key, sealed)
	})
	if err != nil {
		return errors.E(op, err)
	}
	if !found {
		return errors.E(op, errors.NotExist, "no wallet transaction with this id")
	}
	return nil
}

// WalletTxs returns all wallet transactions in insertion order.
func (d *DB) WalletTxs() ([]record.WalletTx, error) {
	const op errors.Op = "walletdb.WalletTxs"
	var out []record.WalletTx
	err := d.db.View(func(tx *bolt.Tx) error {
		return d.forEachRow(tx, bucketWalletTxs, func(_, pt []byte) error {
			var w record.WalletTx
			if err := msgpack.Unmarshal(pt, &w); err != nil {
				return errors.E(errors.Encoding, err)
			}
			out = append(out, w)
			return nil
		})
	})
	if err != nil {
		return nil, errors.E(op, err)
	}
	return out, nil
}

func (d *DB) fetchWalletTx(id uuid.UUID) (*record.WalletTx, error) {
	rows, err := d.WalletTxs()
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ID == id {
			return &rows[i], nil
		}
	}
	return nil, errors.E(errors.NotExist, "no wallet transaction with this id")
}

// FetchWalletTx returns the wallet transaction with the given id.
func (d *DB) FetchWalletTx(id uuid.UUID) (*record.WalletTx, error) {
	const op errors.Op = "walletdb.FetchWalletTx"
	w, err := d.fetchWalletTx(id)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return w, nil
}

// DeleteWalletTx removes the wallet transaction with the given id.  Deleting
// a missing row is not an error; rollback paths call this unconditionally.
func (d *DB) DeleteWalletTx(id uuid.UUID) error {
	const op errors.Op = "walletdb.DeleteWalletTx"
	err := d.deleteByID(bucketWalletTxs, func(pt []byte) (bool, error) {
		var w record.WalletTx
		if err := msgpack.Unmarshal(pt, &w); err != nil {
			return false, errors.E(errors.Encoding, err)
		}
		return w.ID == id, nil
	})
	if err != nil {
		return errors.E(op, err)
	}
	return nil
}

// InsertTransaction persists a built transaction keyed by its session id.
func (d *DB) InsertTransaction(t *record.Transaction) error {
	const op errors.Op = "walletdb.InsertTransaction"
	if existing, _ := d.fetchTransaction(t.ID); existing != nil {
		return errors.E(op, errors.Exist, "a transaction already exists for this session")
	}
	if err := d.insert(bucketTxns, t); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Transactions returns all persisted transactions in insertion order.
func (d *DB) Transactions() ([]record.Transaction, error) {
	const op errors.Op = "walletdb.Transactions"
	var out []record.Transaction
	err := d.db.View(func(tx *bolt.Tx) error {
		return d.forEachRow(tx, bucketTxns, func(_, pt []byte) error {
			var t record.Transaction
			if err := msgpack.Unmarshal(pt, &t); err != nil {
				return errors.E(errors.Encoding, err)
			}
			out = append(out, t)
			return nil
		})
	})
	if err != nil {
		return nil, errors.E(op, err)
	}
	return out, nil
}

func (d *DB) fetchTransaction(id uuid.UUID) (*record.Transaction, error) {
	rows, err := d.Transactions()
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ID == id {
			return &rows[i], nil
		}
	}
	return nil, errors.E(errors.NotExist, "no transaction with this id")
}

// FetchTransaction returns the transaction with the given session id.
func (d *DB) FetchTransaction(id uuid.UUID) (*record.Transaction, error) {
	const op errors.Op = "walletdb.FetchTransaction"
	t, err := d.fetchTransaction(id)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return t, nil
}

// DeleteTransaction removes the transaction with the given session id.
func (d *DB) DeleteTransaction(id uuid.UUID) error {
	const op errors.Op = "walletdb.DeleteTransaction"
	err := d.deleteByID(bucketTxns, func(pt []byte) (bool, error) {
		var t record.Transaction
		if err := msgpack.Unmarshal(pt, &t); err != nil {
			return false, errors.E(errors.Encoding, err)
		}
		return t.ID == id, nil
	})
	if err != nil {
		return errors.E(op, err)
	}
	return nil
}

// deleteByID removes every row of the bucket for which match returns true.
func (d *DB) deleteByID(bucket []byte, match func(pt []byte) (bool, error)) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		var keys [][]byte
		err := d.forEachRow(tx, bucket, func(k, pt []byte) error {
			ok, err := match(pt)
			if err != nil {
				return err
			}
			if ok {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return errors.E(errors.Store, err)
			}
		}
		return nil
	})
}
