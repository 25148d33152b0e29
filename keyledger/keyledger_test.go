// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyledger

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pingpongsneak/bamboo/internal/netparams"
	"github.com/pingpongsneak/bamboo/record"
	"github.com/pingpongsneak/bamboo/walletdb"
)

// The BIP-39 reference vector mnemonic.
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon about"

const testPassphrase = "TREZOR"

func createTestWallet(t *testing.T) (string, *walletdb.DB) {
	t.Helper()
	id, db, err := CreateWallet(t.TempDir(), []byte(testMnemonic),
		[]byte(testPassphrase), &netparams.MainNetParams)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return id, db
}

func TestCreateWalletIDFormat(t *testing.T) {
	id, _ := createTestWallet(t)
	require.Regexp(t, regexp.MustCompile(`^id_[0-9a-f]{64}$`), id)
}

func TestCreateWalletRejectsBadMnemonic(t *testing.T) {
	_, _, err := CreateWallet(t.TempDir(), []byte("not a mnemonic"),
		[]byte("x"), &netparams.MainNetParams)
	require.Error(t, err)
}

func TestAddressDeterministic(t *testing.T) {
	// Two wallets created from the same mnemonic and passphrase derive the
	// same stealth address, regardless of their distinct wallet ids.
	_, db1 := createTestWallet(t)
	_, db2 := createTestWallet(t)

	a1, err := Addresses(db1)
	require.NoError(t, err)
	a2, err := Addresses(db2)
	require.NoError(t, err)
	require.Len(t, a1, 1)
	require.Equal(t, a1, a2)
}

func TestUnlockIdempotent(t *testing.T) {
	_, db := createTestWallet(t)

	spend1, scan1, err := Unlock(db, &netparams.MainNetParams)
	require.NoError(t, err)
	spend2, scan2, err := Unlock(db, &netparams.MainNetParams)
	require.NoError(t, err)

	s1, s2 := spend1.Bytes(), spend2.Bytes()
	require.Equal(t, s1, s2)
	c1, c2 := scan1.Bytes(), scan2.Bytes()
	require.Equal(t, c1, c2)
	require.NotEqual(t, s1, c1)

	spend1.Zero()
	scan1.Zero()
	spend2.Zero()
	scan2.Zero()
}

func TestKeySetInvariant(t *testing.T) {
	// The persisted stealth address must equal the address recomputed from
	// the spend child at the key path and the scan child one index later.
	_, db := createTestWallet(t)
	first, err := db.FirstKeySet()
	require.NoError(t, err)
	defer first.Zero()

	require.Equal(t, HDPath+"0", first.KeyPath)

	master := masterFromKeySet(first, &netparams.MainNetParams)
	defer master.Zero()
	addr, err := stealthFromMaster(master, first.KeyPath, &netparams.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, first.StealthAddress, addr)
}

func TestAddKeySetBumpsAccount(t *testing.T) {
	_, db := createTestWallet(t)
	require.NoError(t, AddKeySet(db, &netparams.MainNetParams))

	last, err := db.LastKeySet()
	require.NoError(t, err)
	defer last.Zero()
	require.Equal(t, "m/44'/847177'/1'/0/0", last.KeyPath)

	sets, err := db.KeySets()
	require.NoError(t, err)
	require.Len(t, sets, 2)
	require.NotEqual(t, sets[0].StealthAddress, sets[1].StealthAddress)
	for i := range sets {
		sets[i].Zero()
	}
}

func TestBumpHelpers(t *testing.T) {
	p, err := bumpLastSegment("m/44'/847177'/0'/0/0", 1)
	require.NoError(t, err)
	require.Equal(t, "m/44'/847177'/0'/0/1", p)

	p, err = bumpAccountSegment("m/44'/847177'/3'/0/0")
	require.NoError(t, err)
	require.Equal(t, "m/44'/847177'/4'/0/0", p)

	_, err = bumpAccountSegment("m/44'")
	require.Error(t, err)
}

func TestNextKeySet(t *testing.T) {
	_, db := createTestWallet(t)

	// With no wallet transactions the call is a no-op returning the
	// current address.
	first, err := db.FirstKeySet()
	require.NoError(t, err)
	addr, err := NextKeySet(db, &netparams.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, first.StealthAddress, addr)
	sets, err := db.KeySets()
	require.NoError(t, err)
	require.Len(t, sets, 1)
	first.Zero()

	// Once a transaction exists, the final path segment advances past the
	// scan child.
	require.NoError(t, db.InsertWalletTx(&record.WalletTx{ID: uuid.New()}))
	addr2, err := NextKeySet(db, &netparams.MainNetParams)
	require.NoError(t, err)
	require.NotEqual(t, addr, addr2)

	last, err := db.LastKeySet()
	require.NoError(t, err)
	defer last.Zero()
	require.Equal(t, HDPath+"2", last.KeyPath)
}

func TestCreateMnemonic(t *testing.T) {
	m, err := CreateMnemonic("english", 24)
	require.NoError(t, err)
	require.Len(t, strings.Fields(m), 24)

	m2, err := CreateMnemonic("", 12)
	require.NoError(t, err)
	require.Len(t, strings.Fields(m2), 12)

	_, err = CreateMnemonic("klingon", 12)
	require.Error(t, err)
	_, err = CreateMnemonic("english", 13)
	require.Error(t, err)
}
