// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crypto

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

// buildTestRing constructs a ring whose true column holds a spend of amount
// split into the given outputs, mirroring the builder's usage: row 0 is
// one-time keys, the last row the commitment differences derived by
// MLSAGPrepare.
func buildTestRing(t *testing.T, cols, index int, amount uint64,
	outAmounts []uint64) (m []byte, sk []*secp256k1.ModNScalar) {

	t.Helper()
	const rows = 2

	m = make([]byte, rows*cols*PointBytes)
	pcmIn := make([][PointBytes]byte, cols)

	skOnetime := testScalar(t)
	blindIn := testScalar(t)
	for i := 0; i < cols; i++ {
		if i == index {
			pk := PubKeyOf(skOnetime)
			copy(m[i*PointBytes:], pk[:])
			pcmIn[i] = Commit(amount, blindIn)
			continue
		}
		pk := PubKeyOf(testScalar(t))
		copy(m[i*PointBytes:], pk[:])
		pcmIn[i] = Commit(amount, testScalar(t))
	}

	pcmOut := make([][PointBytes]byte, len(outAmounts))
	blinds := []*secp256k1.ModNScalar{blindIn}
	for i, a := range outAmounts {
		b := testScalar(t)
		pcmOut[i] = Commit(a, b)
		blinds = append(blinds, b)
	}

	blindSum := new(secp256k1.ModNScalar)
	err := MLSAGPrepare(m, blindSum, cols, rows, pcmIn, pcmOut, blinds)
	require.NoError(t, err)

	return m, []*secp256k1.ModNScalar{skOnetime, blindSum}
}

func TestMLSAGRoundTrip(t *testing.T) {
	const cols, rows = 22, 2
	for _, index := range []int{0, 7, cols - 1} {
		m, sk := buildTestRing(t, cols, index, 1000, []uint64{10, 600, 390})

		seed := [32]byte{1}
		preimage := [32]byte{2}
		ki, pc, ss, err := MLSAGGenerate(m, sk, index, seed, preimage, cols, rows)
		require.NoError(t, err)
		require.Len(t, ss, cols*rows*ScalarBytes)

		require.True(t, MLSAGVerify(preimage, m, ki, pc, ss, cols, rows),
			"index %d", index)
	}
}

func TestMLSAGRejectsTamper(t *testing.T) {
	const cols, rows = 8, 2
	m, sk := buildTestRing(t, cols, 3, 500, []uint64{500})

	seed := [32]byte{9}
	preimage := [32]byte{8}
	ki, pc, ss, err := MLSAGGenerate(m, sk, 3, seed, preimage, cols, rows)
	require.NoError(t, err)

	// Flip one signature scalar bit.
	ss[5] ^= 1
	require.False(t, MLSAGVerify(preimage, m, ki, pc, ss, cols, rows))
	ss[5] ^= 1
	require.True(t, MLSAGVerify(preimage, m, ki, pc, ss, cols, rows))

	// A different message must not verify.
	other := preimage
	other[0] ^= 1
	require.False(t, MLSAGVerify(other, m, ki, pc, ss, cols, rows))

	// Nor a foreign key image.
	badKi := PubKeyOf(testScalar(t))
	require.False(t, MLSAGVerify(preimage, m, badKi, pc, ss, cols, rows))
}

func TestMLSAGRejectsUnbalancedOutputs(t *testing.T) {
	// When the outputs do not sum to the input amount, the true column's
	// commitment difference is not a multiple of G alone, so the prepared
	// blind sum is not a valid ring secret and signing produces an
	// unverifiable signature.
	const cols, rows = 8, 2
	m, sk := buildTestRing(t, cols, 2, 1000, []uint64{10, 600, 391})

	seed := [32]byte{3}
	preimage := [32]byte{4}
	ki, pc, ss, err := MLSAGGenerate(m, sk, 2, seed, preimage, cols, rows)
	require.NoError(t, err)
	require.False(t, MLSAGVerify(preimage, m, ki, pc, ss, cols, rows))
}

func TestMLSAGKeyImageDeterministic(t *testing.T) {
	const cols, rows = 8, 2
	m, sk := buildTestRing(t, cols, 1, 100, []uint64{100})

	ki1, _, _, err := MLSAGGenerate(m, sk, 1, [32]byte{1}, [32]byte{2}, cols, rows)
	require.NoError(t, err)
	ki2, _, _, err := MLSAGGenerate(m, sk, 1, [32]byte{5}, [32]byte{6}, cols, rows)
	require.NoError(t, err)

	// The key image depends only on the one-time key, not the signature
	// randomness or message.
	require.Equal(t, ki1, ki2)
}
