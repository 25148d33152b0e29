// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/record"
)

func TestSessionStoreAddOrUpdate(t *testing.T) {
	store := NewSessionStore()
	id := uuid.New()

	first := store.AddOrUpdate(Session{ID: id, Type: record.SessionCoin})
	require.Equal(t, id, first.WalletTx.ID, "draft id must follow the session id")

	patch := Session{
		ID: id,
		WalletTx: record.WalletTx{
			Payment:          3_000_000_000,
			Memo:             "for coffee",
			SenderAddress:    "sender",
			RecipientAddress: "recipient",
			DateTime:         time.Unix(1700000000, 0),
		},
	}
	merged := store.AddOrUpdate(patch)
	require.Equal(t, uint64(3_000_000_000), merged.WalletTx.Payment)
	require.Equal(t, "for coffee", merged.WalletTx.Memo)
	require.Equal(t, id, merged.WalletTx.ID)
	require.Equal(t, record.SessionCoin, merged.Type, "session identity comes from the incumbent")

	got, ok := store.Get(id)
	require.True(t, ok)
	require.Equal(t, merged.WalletTx, got.WalletTx)
}

func TestSessionMergeKeepsSpending(t *testing.T) {
	store := NewSessionStore()
	id := uuid.New()
	store.AddOrUpdate(Session{ID: id})

	spending := record.Vout{P: [33]byte{1, 2, 3}}
	store.AddOrUpdate(Session{ID: id, WalletTx: record.WalletTx{Spending: spending, Payment: 5}})

	// A later patch without a spending selection must not clear it.
	merged := store.AddOrUpdate(Session{ID: id, WalletTx: record.WalletTx{Payment: 6}})
	require.Equal(t, spending, merged.WalletTx.Spending)
	require.Equal(t, uint64(6), merged.WalletTx.Payment)
}

func TestSessionLastError(t *testing.T) {
	store := NewSessionStore()
	id := uuid.New()
	store.AddOrUpdate(Session{ID: id})

	store.SetLastError(id, errors.E(errors.Op("wallet.Send"), errors.RPC, errors.New("boom")))
	sess, ok := store.Get(id)
	require.True(t, ok)
	require.Contains(t, string(sess.LastError), `"success":false`)
	require.Contains(t, string(sess.LastError), "boom")

	store.ClearLastError(id)
	sess, _ = store.Get(id)
	require.Nil(t, sess.LastError)
}

func TestSessionGetUnknown(t *testing.T) {
	store := NewSessionStore()
	_, ok := store.Get(uuid.New())
	require.False(t, ok)
}
