// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crypto

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

func testScalar(t *testing.T) *secp256k1.ModNScalar {
	t.Helper()
	s, err := RandomScalar()
	require.NoError(t, err)
	return s
}

func TestCommitSumBalances(t *testing.T) {
	// A commitment to a sum with the sum of the blinds must equal the sum
	// of the individual commitments.
	b1, b2 := testScalar(t), testScalar(t)
	bSum := sAdd(b1, b2)

	c1 := Commit(400, b1)
	c2 := Commit(600, b2)
	cSum := Commit(1000, bSum)

	require.True(t, VerifyCommitSum([][PointBytes]byte{cSum}, [][PointBytes]byte{c1, c2}))
	require.False(t, VerifyCommitSum([][PointBytes]byte{cSum}, [][PointBytes]byte{c1}))

	got, err := CommitSum([][PointBytes]byte{c1, c2}, nil)
	require.NoError(t, err)
	require.Equal(t, cSum, got)
}

func TestCommitSumSubtracts(t *testing.T) {
	b1, b2 := testScalar(t), testScalar(t)
	c1 := Commit(1000, b1)
	c2 := Commit(400, b2)

	diff, err := CommitSum([][PointBytes]byte{c1}, [][PointBytes]byte{c2})
	require.NoError(t, err)

	bDiff := sSub(b1, b2)
	require.Equal(t, Commit(600, bDiff), diff)
}

func TestCommitSumInfinity(t *testing.T) {
	b := testScalar(t)
	c := Commit(123, b)
	_, err := CommitSum([][PointBytes]byte{c}, [][PointBytes]byte{c})
	require.Error(t, err)
}

func TestBlindSwitchDomainSeparation(t *testing.T) {
	b := testScalar(t)
	s1 := BlindSwitch(100, b)
	s2 := BlindSwitch(101, b)
	require.False(t, scalarsEqual(s1, s2))
	require.False(t, scalarsEqual(s1, b))

	// Deterministic for the same inputs.
	require.True(t, scalarsEqual(s1, BlindSwitch(100, b)))
}

func TestCommitZeroAmount(t *testing.T) {
	// A zero amount commits to the blind alone.
	b := testScalar(t)
	require.Equal(t, PubKeyOf(b), Commit(0, b))
}
