// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crypto

import (
	"encoding/binary"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/pingpongsneak/bamboo/errors"
)

// Commit computes the Pedersen commitment C = amount*H + blind*G.
func Commit(amount uint64, blind *secp256k1.ModNScalar) [PointBytes]byte {
	genOnce.Do(initGens)

	bG := baseMult(blind)
	if amount == 0 {
		return serializePoint(bG)
	}
	aH := scalarMult(scalarFromUint64(amount), &valuePt)
	var c secp256k1.JacobianPoint
	addPoints(aH, bG, &c)
	return serializePoint(&c)
}

// BlindSwitch derives the blinding factor actually used for an output from a
// caller-chosen blind and the committed amount.  Input and output blinds
// occupy separate domains so they can never be correlated across the
// commitment balance equation.
func BlindSwitch(amount uint64, blind *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], amount)
	b := blind.Bytes()
	return hashToScalar(tagBlindSwtch, b[:], amt[:])
}

// CommitSum returns the sum of the pos commitments minus the sum of the neg
// commitments.  An error is returned if any operand fails to decode or the
// result is the point at infinity, which has no serialization.
func CommitSum(pos, neg [][PointBytes]byte) ([PointBytes]byte, error) {
	const op errors.Op = "crypto.CommitSum"
	genOnce.Do(initGens)

	var zero [PointBytes]byte
	var sum secp256k1.JacobianPoint
	for i := range pos {
		p, err := parsePoint(pos[i][:])
		if err != nil {
			return zero, errors.E(op, err)
		}
		addPoints(&sum, p, &sum)
	}
	for i := range neg {
		p, err := parsePoint(neg[i][:])
		if err != nil {
			return zero, errors.E(op, err)
		}
		addPoints(&sum, negatePoint(p), &sum)
	}
	if isInfinity(&sum) {
		return zero, errors.E(op, errors.Crypto, "commitment sum is the point at infinity")
	}
	return serializePoint(&sum), nil
}

// VerifyCommitSum reports whether the lhs and rhs commitment sets sum to the
// same group element.
func VerifyCommitSum(lhs, rhs [][PointBytes]byte) bool {
	genOnce.Do(initGens)

	sumSide := func(side [][PointBytes]byte) (*secp256k1.JacobianPoint, bool) {
		var sum secp256k1.JacobianPoint
		for i := range side {
			p, err := parsePoint(side[i][:])
			if err != nil {
				return nil, false
			}
			addPoints(&sum, p, &sum)
		}
		return &sum, true
	}

	l, ok := sumSide(lhs)
	if !ok {
		return false
	}
	r, ok := sumSide(rhs)
	if !ok {
		return false
	}
	return pointsEqual(l, r)
}
