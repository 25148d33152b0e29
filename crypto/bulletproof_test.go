// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBulletproofRoundTrip(t *testing.T) {
	amounts := []uint64{0, 1, 72000, 6999928000, 1 << 40, ^uint64(0)}
	for _, amount := range amounts {
		blind := testScalar(t)
		var nonce [32]byte
		nonce[0] = byte(amount)

		proof, err := BulletproofGen(amount, blind, nonce)
		require.NoError(t, err, "amount %d", amount)

		commit := Commit(amount, blind)
		require.True(t, BulletproofVerify(commit, proof), "amount %d", amount)
	}
}

func TestBulletproofWrongCommit(t *testing.T) {
	blind := testScalar(t)
	var nonce [32]byte
	proof, err := BulletproofGen(5000, blind, nonce)
	require.NoError(t, err)

	// A commitment to a different amount under the same blind must not
	// verify.
	require.False(t, BulletproofVerify(Commit(5001, blind), proof))

	// Nor a commitment under a different blind.
	require.False(t, BulletproofVerify(Commit(5000, testScalar(t)), proof))
}

func TestBulletproofDeterministic(t *testing.T) {
	blind := testScalar(t)
	nonce := [32]byte{7}
	p1, err := BulletproofGen(42, blind, nonce)
	require.NoError(t, err)
	p2, err := BulletproofGen(42, blind, nonce)
	require.NoError(t, err)
	require.Equal(t, p1.Serialize(), p2.Serialize())
}

func TestBulletproofTamper(t *testing.T) {
	blind := testScalar(t)
	var nonce [32]byte
	proof, err := BulletproofGen(9000, blind, nonce)
	require.NoError(t, err)
	commit := Commit(9000, blind)

	tampered := *proof
	tampered.That[0] ^= 1
	require.False(t, BulletproofVerify(commit, &tampered))

	tampered = *proof
	tampered.L[17][31] ^= 1
	require.False(t, BulletproofVerify(commit, &tampered))
}

func TestRangeProofSerialization(t *testing.T) {
	blind := testScalar(t)
	var nonce [32]byte
	proof, err := BulletproofGen(77, blind, nonce)
	require.NoError(t, err)

	raw := proof.Serialize()
	require.Len(t, raw, RangeProofLen)

	parsed, err := ParseRangeProof(raw)
	require.NoError(t, err)
	require.Equal(t, proof, parsed)

	_, err = ParseRangeProof(raw[:len(raw)-1])
	require.Error(t, err)
}
