// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/internal/uniformprng"
)

// rangeBits is the bit width of committed amounts.  Proofs assert that the
// committed value lies in [0, 2^rangeBits).
const rangeBits = 64

// RangeProofLen is the length of a serialized range proof.
const RangeProofLen = 4*PointBytes + 3*ScalarBytes + 2*rangeBits*ScalarBytes

// RangeProof is a zero-knowledge proof that a Pedersen commitment commits to
// a value in [0, 2^64).  It follows the Bulletproofs polynomial identity
// t(x) = <l(x), r(x)> with the l and r vectors transmitted in full; the
// logarithmic inner-product compression is not applied.
type RangeProof struct {
	A    [PointBytes]byte
	S    [PointBytes]byte
	T1   [PointBytes]byte
	T2   [PointBytes]byte
	TauX [ScalarBytes]byte
	Mu   [ScalarBytes]byte
	That [ScalarBytes]byte
	L    [rangeBits][ScalarBytes]byte
	R    [rangeBits][ScalarBytes]byte
}

// Serialize returns the canonical byte encoding of the proof.
func (p *RangeProof) Serialize() []byte {
	out := make([]byte, 0, RangeProofLen)
	out = append(out, p.A[:]...)
	out = append(out, p.S[:]...)
	out = append(out, p.T1[:]...)
	out = append(out, p.T2[:]...)
	out = append(out, p.TauX[:]...)
	out = append(out, p.Mu[:]...)
	out = append(out, p.That[:]...)
	for i := 0; i < rangeBits; i++ {
		out = append(out, p.L[i][:]...)
	}
	for i := 0; i < rangeBits; i++ {
		out = append(out, p.R[i][:]...)
	}
	return out
}

// ParseRangeProof decodes a proof serialized by Serialize.
func ParseRangeProof(b []byte) (*RangeProof, error) {
	const op errors.Op = "crypto.ParseRangeProof"
	if len(b) != RangeProofLen {
		return nil, errors.E(op, errors.Encoding, "bad range proof length")
	}
	var p RangeProof
	copy(p.A[:], b)
	b = b[PointBytes:]
	copy(p.S[:], b)
	b = b[PointBytes:]
	copy(p.T1[:], b)
	b = b[PointBytes:]
	copy(p.T2[:], b)
	b = b[PointBytes:]
	copy(p.TauX[:], b)
	b = b[ScalarBytes:]
	copy(p.Mu[:], b)
	b = b[ScalarBytes:]
	copy(p.That[:], b)
	b = b[ScalarBytes:]
	for i := 0; i < rangeBits; i++ {
		copy(p.L[i][:], b)
		b = b[ScalarBytes:]
	}
	for i := 0; i < rangeBits; i++ {
		copy(p.R[i][:], b)
		b = b[ScalarBytes:]
	}
	return &p, nil
}

// Scalar arithmetic convenience wrappers.  ModNScalar methods mutate their
// receiver, so fresh copies are taken throughout.

func sSet(a *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	return new(secp256k1.ModNScalar).Set(a)
}

func sAdd(a, b *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	return sSet(a).Add(b)
}

func sMul(a, b *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	return sSet(a).Mul(b)
}

func sNeg(a *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	return sSet(a).Negate()
}

func sSub(a, b *secp256k1.ModNScalar) *secp256k1.ModNScalar {
	return sSet(a).Add(sNeg(b))
}

// drawScalar reads a deterministic scalar from the prng stream.
func drawScalar(src *uniformprng.Source) *secp256k1.ModNScalar {
	var b [ScalarBytes]byte
	src.Read(b[:])
	var s secp256k1.ModNScalar
	s.SetBytes(&b)
	return &s
}

// innerProduct returns <a, b>.
func innerProduct(a, b []*secp256k1.ModNScalar) *secp256k1.ModNScalar {
	t := new(secp256k1.ModNScalar)
	for i := range a {
		t.Add(sMul(a[i], b[i]))
	}
	return t
}

// scalarCommit commits to the scalar value v: v*H + blind*G.
func scalarCommit(v, blind *secp256k1.ModNScalar) *secp256k1.JacobianPoint {
	vH := scalarMult(v, &valuePt)
	bG := baseMult(blind)
	var c secp256k1.JacobianPoint
	addPoints(vH, bG, &c)
	return &c
}

// bpChallenges recomputes the Fiat-Shamir challenges from the proof
// transcript.
func bpChallenges(commit []byte, p *RangeProof) (y, z, x *secp256k1.ModNScalar) {
	y = hashToScalar(tagBpY, commit, p.A[:], p.S[:])
	yb := y.Bytes()
	z = hashToScalar(tagBpZ, yb[:])
	zb := z.Bytes()
	x = hashToScalar(tagBpX, zb[:], p.T1[:], p.T2[:])
	return
}

// BulletproofGen proves that Commit(amount, blind) commits to a 64-bit
// value.  The proof is deterministic given (amount, blind, nonce): all
// blinding randomness is drawn from a stream keyed by nonce.
func BulletproofGen(amount uint64, blind *secp256k1.ModNScalar, nonce [32]byte) (*RangeProof, error) {
	const op errors.Op = "crypto.BulletproofGen"
	genOnce.Do(initGens)

	V := Commit(amount, blind)
	src := uniformprng.NewSource(&nonce)

	alpha := drawScalar(src)
	rho := drawScalar(src)
	tau1 := drawScalar(src)
	tau2 := drawScalar(src)

	one := new(secp256k1.ModNScalar)
	one.SetInt(1)
	negOne := sNeg(one)

	// Bit decomposition: aL holds the bits of amount, aR = aL - 1^n.
	aL := make([]*secp256k1.ModNScalar, rangeBits)
	aR := make([]*secp256k1.ModNScalar, rangeBits)
	sL := make([]*secp256k1.ModNScalar, rangeBits)
	sR := make([]*secp256k1.ModNScalar, rangeBits)
	for i := 0; i < rangeBits; i++ {
		if amount>>uint(i)&1 == 1 {
			aL[i] = sSet(one)
			aR[i] = new(secp256k1.ModNScalar)
		} else {
			aL[i] = new(secp256k1.ModNScalar)
			aR[i] = sSet(negOne)
		}
		sL[i] = drawScalar(src)
		sR[i] = drawScalar(src)
	}

	// A = alpha*G + <aL, Gv> + <aR, Hv>; S likewise over sL, sR.
	commitVectors := func(b *secp256k1.ModNScalar, l, r []*secp256k1.ModNScalar) [PointBytes]byte {
		acc := *baseMult(b)
		for i := 0; i < rangeBits; i++ {
			if !l[i].IsZero() {
				addPoints(&acc, scalarMult(l[i], &vecGensG[i]), &acc)
			}
			if !r[i].IsZero() {
				addPoints(&acc, scalarMult(r[i], &vecGensH[i]), &acc)
			}
		}
		return serializePoint(&acc)
	}

	var proof RangeProof
	proof.A = commitVectors(alpha, aL, aR)
	proof.S = commitVectors(rho, sL, sR)

	y := hashToScalar(tagBpY, V[:], proof.A[:], proof.S[:])
	yb := y.Bytes()
	z := hashToScalar(tagBpZ, yb[:])
	zSq := sMul(z, z)

	// l(X) = aL - z*1 + sL*X
	// r(X) = y^n o (aR + z*1 + sR*X) + z^2*2^n
	l0 := make([]*secp256k1.ModNScalar, rangeBits)
	l1 := sL
	r0 := make([]*secp256k1.ModNScalar, rangeBits)
	r1 := make([]*secp256k1.ModNScalar, rangeBits)
	yPow := sSet(one)
	twoPow := sSet(one)
	two := new(secp256k1.ModNScalar)
	two.SetInt(2)
	for i := 0; i < rangeBits; i++ {
		l0[i] = sSub(aL[i], z)
		r0[i] = sAdd(sMul(yPow, sAdd(aR[i], z)), sMul(zSq, twoPow))
		r1[i] = sMul(yPow, sR[i])
		yPow = sMul(yPow, y)
		twoPow = sMul(twoPow, two)
	}

	// t(X) = <l(X), r(X)> = t0 + t1*X + t2*X^2
	t1 := sAdd(innerProduct(l0, r1), innerProduct(l1, r0))
	t2 := innerProduct(l1, r1)

	proof.T1 = serializePoint(scalarCommit(t1, tau1))
	proof.T2 = serializePoint(scalarCommit(t2, tau2))

	zb := z.Bytes()
	x := hashToScalar(tagBpX, zb[:], proof.T1[:], proof.T2[:])
	xSq := sMul(x, x)

	lVec := make([]*secp256k1.ModNScalar, rangeBits)
	rVec := make([]*secp256k1.ModNScalar, rangeBits)
	for i := 0; i < rangeBits; i++ {
		lVec[i] = sAdd(l0[i], sMul(x, l1[i]))
		rVec[i] = sAdd(r0[i], sMul(x, r1[i]))
		proof.L[i] = lVec[i].Bytes()
		proof.R[i] = rVec[i].Bytes()
	}

	proof.That = innerProduct(lVec, rVec).Bytes()
	tauX := sAdd(sAdd(sMul(tau1, x), sMul(tau2, xSq)), sMul(zSq, blind))
	proof.TauX = tauX.Bytes()
	proof.Mu = sAdd(alpha, sMul(rho, x)).Bytes()

	if !BulletproofVerify(V, &proof) {
		return nil, errors.E(op, errors.CryptoVerify, "generated range proof fails verification")
	}
	return &proof, nil
}

// BulletproofVerify reports whether proof establishes that commit hides a
// value in [0, 2^64).
func BulletproofVerify(commit [PointBytes]byte, proof *RangeProof) bool {
	genOnce.Do(initGens)

	V, err := parsePoint(commit[:])
	if err != nil {
		return false
	}
	A, err := parsePoint(proof.A[:])
	if err != nil {
		return false
	}
	S, err := parsePoint(proof.S[:])
	if err != nil {
		return false
	}
	T1, err := parsePoint(proof.T1[:])
	if err != nil {
		return false
	}
	T2, err := parsePoint(proof.T2[:])
	if err != nil {
		return false
	}

	y, z, x := bpChallenges(commit[:], proof)
	zSq := sMul(z, z)
	zCu := sMul(zSq, z)
	xSq := sMul(x, x)

	var tauX, mu, that secp256k1.ModNScalar
	tauX.SetBytes(&proof.TauX)
	mu.SetBytes(&proof.Mu)
	that.SetBytes(&proof.That)

	lVec := make([]*secp256k1.ModNScalar, rangeBits)
	rVec := make([]*secp256k1.ModNScalar, rangeBits)
	for i := 0; i < rangeBits; i++ {
		lVec[i] = new(secp256k1.ModNScalar)
		lVec[i].SetBytes(&proof.L[i])
		rVec[i] = new(secp256k1.ModNScalar)
		rVec[i].SetBytes(&proof.R[i])
	}

	// t_hat must equal <l, r>.
	if !scalarsEqual(&that, innerProduct(lVec, rVec)) {
		return false
	}

	one := new(secp256k1.ModNScalar)
	one.SetInt(1)
	two := new(secp256k1.ModNScalar)
	two.SetInt(2)

	// delta(y,z) = (z - z^2)*<1, y^n> - z^3*<1, 2^n>
	sumY := new(secp256k1.ModNScalar)
	sumTwo := new(secp256k1.ModNScalar)
	yPow := sSet(one)
	twoPow := sSet(one)
	for i := 0; i < rangeBits; i++ {
		sumY.Add(yPow)
		sumTwo.Add(twoPow)
		yPow = sMul(yPow, y)
		twoPow = sMul(twoPow, two)
	}
	delta := sSub(sMul(sSub(z, zSq), sumY), sMul(zCu, sumTwo))

	// t_hat*H + tauX*G == z^2*V + delta*H + x*T1 + x^2*T2
	lhs := scalarCommit(&that, &tauX)
	rhs := scalarMult(zSq, V)
	addPoints(rhs, scalarMult(delta, &valuePt), rhs)
	addPoints(rhs, scalarMult(x, T1), rhs)
	addPoints(rhs, scalarMult(xSq, T2), rhs)
	if !pointsEqual(lhs, rhs) {
		return false
	}

	// A + x*S == mu*G + <l + z*1, Gv> + <y^-n o (r - z^2*2^n) - z*1, Hv>
	yInv := new(secp256k1.ModNScalar).InverseValNonConst(y)
	var left secp256k1.JacobianPoint
	addPoints(A, scalarMult(x, S), &left)

	right := *baseMult(&mu)
	yInvPow := sSet(one)
	twoPow = sSet(one)
	for i := 0; i < rangeBits; i++ {
		gCoeff := sAdd(lVec[i], z)
		if !gCoeff.IsZero() {
			addPoints(&right, scalarMult(gCoeff, &vecGensG[i]), &right)
		}
		hCoeff := sSub(sMul(yInvPow, sSub(rVec[i], sMul(zSq, twoPow))), z)
		if !hCoeff.IsZero() {
			addPoints(&right, scalarMult(hCoeff, &vecGensH[i]), &right)
		}
		yInvPow = sMul(yInvPow, yInv)
		twoPow = sMul(twoPow, two)
	}

	return pointsEqual(&left, &right)
}
