// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pingpongsneak/bamboo/crypto"
	"github.com/pingpongsneak/bamboo/internal/uniformprng"
	"github.com/pingpongsneak/bamboo/record"
)

func TestRingColumnUniform(t *testing.T) {
	// Chi-square test over the same unbiased draw path the assembler uses
	// for its true-input column.
	const draws = 110000
	src, err := uniformprng.RandSource(rand.Reader)
	require.NoError(t, err)

	var counts [nCols]int
	for i := 0; i < draws; i++ {
		counts[src.Uint32n(nCols)]++
	}

	expected := float64(draws) / nCols
	var chi2 float64
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	// 21 degrees of freedom; the 99.9th percentile is about 46.8.
	require.Less(t, chi2, 46.8, "column draw distribution is not uniform")
}

func TestAssembleRing(t *testing.T) {
	spendPriv, scanPriv := testKeys(t)
	defer spendPriv.Zero()
	defer scanPriv.Zero()

	spending, payload := craftOutputFor(t, spendPriv, scanPriv, 1_000_000_000, "")
	pool := makeDecoyPool(t, 40)

	src, err := uniformprng.RandSource(rand.Reader)
	require.NoError(t, err)
	r, err := assembleRing(src, spendPriv, scanPriv, &spending, &payload, pool)
	require.NoError(t, err)
	defer r.zero()

	require.GreaterOrEqual(t, r.index, 0)
	require.Less(t, r.index, nCols)

	// The true column carries the spending output's commitment and key.
	require.Equal(t, spending.C, r.pcmIn[r.index])
	require.Equal(t, spending.P, r.pkIn[r.index])

	// No other column repeats the true input's (C,P) pair, and no column
	// is empty.
	for i := 0; i < nCols; i++ {
		require.NotEqual(t, [33]byte{}, r.pkIn[i], "column %d unfilled", i)
		if i == r.index {
			continue
		}
		pair := r.pcmIn[i] == spending.C && r.pkIn[i] == spending.P
		require.False(t, pair, "column %d duplicates the true input", i)
	}

	// Row 0 of the matrix mirrors pkIn.
	for i := 0; i < nCols; i++ {
		require.Equal(t, r.pkIn[i][:], r.m[i*crypto.PointBytes:(i+1)*crypto.PointBytes])
	}
}

func TestAssembleRingAllCollisions(t *testing.T) {
	// Every decoy candidate equals the true (C,P): the assembler must fail
	// cleanly after bounded retries, never emit a duplicate column.
	spendPriv, scanPriv := testKeys(t)
	defer spendPriv.Zero()
	defer scanPriv.Zero()

	spending, payload := craftOutputFor(t, spendPriv, scanPriv, 500, "")
	poisoned := record.Transaction{Vout: []record.Vout{spending, spending}}
	pool := []record.Transaction{poisoned}

	src, err := uniformprng.RandSource(rand.Reader)
	require.NoError(t, err)
	_, err = assembleRing(src, spendPriv, scanPriv, &spending, &payload, pool)
	require.Error(t, err)
}

func TestAssembleRingEmptyPool(t *testing.T) {
	spendPriv, scanPriv := testKeys(t)
	defer spendPriv.Zero()
	defer scanPriv.Zero()

	spending, payload := craftOutputFor(t, spendPriv, scanPriv, 500, "")
	src, err := uniformprng.RandSource(rand.Reader)
	require.NoError(t, err)
	_, err = assembleRing(src, spendPriv, scanPriv, &spending, &payload, nil)
	require.Error(t, err)
}
