// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package crypto provides the confidential-transaction primitives used by the
// wallet: Pedersen commitments, range proofs, MLSAG ring signatures, dual-key
// stealth addresses, and the sealed box protecting output payloads.
//
// All group arithmetic is performed on the secp256k1 curve.  Points serialize
// as 33-byte compressed encodings and scalars as 32-byte big-endian values
// reduced modulo the group order.  Every operation returns an explicit error;
// nothing in this package panics on untrusted input.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/pingpongsneak/bamboo/errors"
)

const (
	// PointBytes is the length of a compressed curve point encoding.
	PointBytes = 33

	// ScalarBytes is the length of a serialized scalar.
	ScalarBytes = 32
)

// Domain-separation tags.  These are consensus-critical: peers derive the
// same generators and challenges from the same tags.
const (
	tagValueGen   = "bamboo/H"
	tagVectorGenG = "bamboo/bp/G"
	tagVectorGenH = "bamboo/bp/H"
	tagBlindSwtch = "bamboo/switch"
	tagStealth    = "bamboo/stealth"
	tagBox        = "bamboo/box"
	tagKeyImage   = "bamboo/keyimage"
	tagMLSAGRing  = "bamboo/mlsag"
	tagBpY        = "bamboo/bp/y"
	tagBpZ        = "bamboo/bp/z"
	tagBpX        = "bamboo/bp/x"
)

var (
	genOnce  sync.Once
	basePt   secp256k1.JacobianPoint // G
	valuePt  secp256k1.JacobianPoint // H, hash-to-curve of G's encoding
	vecGensG [rangeBits]secp256k1.JacobianPoint
	vecGensH [rangeBits]secp256k1.JacobianPoint
)

// initGens derives the value generator H and the range proof generator
// vectors.  H is obtained by hashing the compressed encoding of G to the
// curve, so no party knows its discrete log with respect to G.
func initGens() {
	var one secp256k1.ModNScalar
	one.SetInt(1)
	secp256k1.ScalarBaseMultNonConst(&one, &basePt)
	basePt.ToAffine()

	g := serializePoint(&basePt)
	valuePt = *hashToPoint(tagValueGen, g[:])

	var idx [4]byte
	for i := 0; i < rangeBits; i++ {
		binary.BigEndian.PutUint32(idx[:], uint32(i))
		vecGensG[i] = *hashToPoint(tagVectorGenG, idx[:])
		vecGensH[i] = *hashToPoint(tagVectorGenH, idx[:])
	}
}

// hashToPoint maps arbitrary data onto the curve by hashing with the tag and
// incrementing a counter until the digest decodes as a valid x coordinate.
// Roughly half of all candidates succeed, so the loop terminates quickly.
func hashToPoint(tag string, data []byte) *secp256k1.JacobianPoint {
	var ctr [4]byte
	candidate := make([]byte, PointBytes)
	candidate[0] = 0x02
	for i := uint32(0); ; i++ {
		binary.BigEndian.PutUint32(ctr[:], i)
		h := sha256.New()
		h.Write([]byte(tag))
		h.Write(data)
		h.Write(ctr[:])
		copy(candidate[1:], h.Sum(nil))
		pub, err := secp256k1.ParsePubKey(candidate)
		if err != nil {
			continue
		}
		var p secp256k1.JacobianPoint
		pub.AsJacobian(&p)
		return &p
	}
}

// hashToScalar hashes the tag and parts to a scalar reduced mod the group
// order.
func hashToScalar(tag string, parts ...[]byte) *secp256k1.ModNScalar {
	h := sha256.New()
	h.Write([]byte(tag))
	for _, p := range parts {
		h.Write(p)
	}
	var s secp256k1.ModNScalar
	s.SetByteSlice(h.Sum(nil))
	return &s
}

// scalarFromUint64 widens v into a scalar.
func scalarFromUint64(v uint64) *secp256k1.ModNScalar {
	var b [ScalarBytes]byte
	binary.BigEndian.PutUint64(b[24:], v)
	var s secp256k1.ModNScalar
	s.SetBytes(&b)
	return &s
}

// randScalar draws a uniformly distributed non-zero scalar from rand.
func randScalar(rand io.Reader) (*secp256k1.ModNScalar, error) {
	var b [ScalarBytes]byte
	var s secp256k1.ModNScalar
	for {
		if _, err := io.ReadFull(rand, b[:]); err != nil {
			return nil, err
		}
		s.SetBytes(&b)
		if !s.IsZero() {
			return &s, nil
		}
	}
}

// RandomScalar draws a uniformly distributed non-zero scalar from the
// system's cryptographic randomness source.
func RandomScalar() (*secp256k1.ModNScalar, error) {
	const op errors.Op = "crypto.RandomScalar"
	s, err := randScalar(rand.Reader)
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	return s, nil
}

// serializePoint returns the 33-byte compressed encoding of p.  The point at
// infinity has no compressed encoding; callers must reject it beforehand.
func serializePoint(p *secp256k1.JacobianPoint) [PointBytes]byte {
	affine := *p
	affine.ToAffine()
	pub := secp256k1.NewPublicKey(&affine.X, &affine.Y)
	var out [PointBytes]byte
	copy(out[:], pub.SerializeCompressed())
	return out
}

// parsePoint decodes a compressed point encoding.
func parsePoint(b []byte) (*secp256k1.JacobianPoint, error) {
	pub, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, errors.E(errors.Encoding, err)
	}
	var p secp256k1.JacobianPoint
	pub.AsJacobian(&p)
	return &p, nil
}

// isInfinity reports whether p is the point at infinity.
func isInfinity(p *secp256k1.JacobianPoint) bool {
	return (p.X.IsZero() && p.Y.IsZero()) || p.Z.IsZero()
}

// addPoints sets result to p1 + p2.
func addPoints(p1, p2, result *secp256k1.JacobianPoint) {
	secp256k1.AddNonConst(p1, p2, result)
}

// negatePoint returns -p.
func negatePoint(p *secp256k1.JacobianPoint) *secp256k1.JacobianPoint {
	neg := *p
	neg.Y.Negate(1)
	neg.Y.Normalize()
	return &neg
}

// baseMult returns k*G.
func baseMult(k *secp256k1.ModNScalar) *secp256k1.JacobianPoint {
	var p secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &p)
	return &p
}

// scalarMult returns k*P.
func scalarMult(k *secp256k1.ModNScalar, p *secp256k1.JacobianPoint) *secp256k1.JacobianPoint {
	var r secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(k, p, &r)
	return &r
}

// PubKeyOf returns the compressed public key of the scalar s, that is s*G.
func PubKeyOf(s *secp256k1.ModNScalar) [PointBytes]byte {
	return serializePoint(baseMult(s))
}

// scalarsEqual compares two scalars by their canonical encodings.
func scalarsEqual(a, b *secp256k1.ModNScalar) bool {
	ab, bb := a.Bytes(), b.Bytes()
	return ab == bb
}

// pointsEqual compares two points by their affine coordinates.
func pointsEqual(a, b *secp256k1.JacobianPoint) bool {
	if isInfinity(a) || isInfinity(b) {
		return isInfinity(a) && isInfinity(b)
	}
	return serializePoint(a) == serializePoint(b)
}
