// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletdb

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pingpongsneak/bamboo/record"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "wallet.db"), []byte("passphrase"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	db, err := Open(path, []byte("correct"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, []byte("wrong"))
	require.Error(t, err)

	db, err = Open(path, []byte("correct"))
	require.NoError(t, err)
	db.Close()
}

func TestKeySetOrdering(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 3; i++ {
		ks := &record.KeySet{ID: uuid.New(), KeyPath: "m/44'/847177'/0'/0/" + string(rune('0'+i))}
		require.NoError(t, db.InsertKeySet(ks))
	}

	sets, err := db.KeySets()
	require.NoError(t, err)
	require.Len(t, sets, 3)

	first, err := db.FirstKeySet()
	require.NoError(t, err)
	require.Equal(t, sets[0].ID, first.ID)

	last, err := db.LastKeySet()
	require.NoError(t, err)
	require.Equal(t, sets[2].ID, last.ID)
}

func TestWalletTxRoundTrip(t *testing.T) {
	db := openTestDB(t)

	w := &record.WalletTx{
		ID:         uuid.New(),
		WalletType: record.Receive,
		Balance:    1_000_000_000,
		Memo:       "hi",
		Vout:       []record.Vout{{A: 0, T: record.Coin, N: []byte{1, 2, 3}}},
	}
	require.NoError(t, db.InsertWalletTx(w))

	got, err := db.FetchWalletTx(w.ID)
	require.NoError(t, err)
	require.Equal(t, w.Balance, got.Balance)
	require.Equal(t, w.Memo, got.Memo)
	require.Equal(t, w.Vout[0].N, got.Vout[0].N)

	// One draft per id.
	require.Error(t, db.InsertWalletTx(w))

	got.Spent = true
	require.NoError(t, db.UpdateWalletTx(got))
	again, err := db.FetchWalletTx(w.ID)
	require.NoError(t, err)
	require.True(t, again.Spent)

	require.NoError(t, db.DeleteWalletTx(w.ID))
	_, err = db.FetchWalletTx(w.ID)
	require.Error(t, err)
}

func TestTransactionRoundTrip(t *testing.T) {
	db := openTestDB(t)

	tx := &record.Transaction{Ver: 1, Mix: 22, ID: uuid.New(), Bp: []byte{9}}
	tx.TxnID = tx.Hash()
	require.NoError(t, db.InsertTransaction(tx))
	require.Error(t, db.InsertTransaction(tx))

	got, err := db.FetchTransaction(tx.ID)
	require.NoError(t, err)
	require.Equal(t, tx.TxnID, got.TxnID)
	require.Equal(t, tx.Bp, got.Bp)

	require.NoError(t, db.DeleteTransaction(tx.ID))
	_, err = db.FetchTransaction(tx.ID)
	require.Error(t, err)

	// Deleting again is harmless.
	require.NoError(t, db.DeleteTransaction(tx.ID))
}

func TestRowsSealedOnDisk(t *testing.T) {
	// After reopening with the right passphrase, rows decode; the
	// ciphertext layer is exercised by the reopen itself.
	path := filepath.Join(t.TempDir(), "wallet.db")
	db, err := Open(path, []byte("pw"))
	require.NoError(t, err)
	w := &record.WalletTx{ID: uuid.New(), Memo: "sealed"}
	require.NoError(t, db.InsertWalletTx(w))
	require.NoError(t, db.Close())

	db, err = Open(path, []byte("pw"))
	require.NoError(t, err)
	defer db.Close()
	got, err := db.FetchWalletTx(w.ID)
	require.NoError(t, err)
	require.Equal(t, "sealed", got.Memo)
}
