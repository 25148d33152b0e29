// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/internal/uniformprng"
)

// The ring matrix m is nRows*nCols compressed points.  Row j occupies bytes
// [j*nCols*33, (j+1)*nCols*33); the point for column i sits at offset i*33
// within the row.  Row 0 holds the candidate one-time public keys and is the
// linkable row; the last row holds the commitment-difference points filled in
// by MLSAGPrepare.
//
// The signature scalars ss are stored column-major: s[j][i] lives at offset
// (i*nRows+j)*32.

func matrixPoint(m []byte, nCols, row, col int) ([]byte, error) {
	off := (row*nCols + col) * PointBytes
	if off+PointBytes > len(m) {
		return nil, errors.E(errors.Encoding, "ring matrix too short")
	}
	return m[off : off+PointBytes], nil
}

// MLSAGPrepare fills the last row of the ring matrix with the points
// pcmIn[i] - sum(pcmOut) and folds the aggregate blind difference
// sum(blinds[0]) - sum(blinds[1:]) into blindSum.  blinds[0] is the blind of
// the true input; the remainder are the output blinds.  When the committed
// amounts balance, the true column's last-row point equals blindSum*G, making
// blindSum a valid ring secret for that row.
func MLSAGPrepare(m []byte, blindSum *secp256k1.ModNScalar, nCols, nRows int,
	pcmIn, pcmOut [][PointBytes]byte, blinds []*secp256k1.ModNScalar) error {

	const op errors.Op = "crypto.MLSAGPrepare"
	genOnce.Do(initGens)

	if len(m) != nRows*nCols*PointBytes {
		return errors.E(op, errors.Encoding, "ring matrix length mismatch")
	}
	if len(pcmIn) != nCols {
		return errors.E(op, errors.Invalid, "input commitment count mismatch")
	}
	if len(blinds) < 1 {
		return errors.E(op, errors.Invalid, "missing input blind")
	}

	var sumOut secp256k1.JacobianPoint
	for i := range pcmOut {
		p, err := parsePoint(pcmOut[i][:])
		if err != nil {
			return errors.E(op, err)
		}
		addPoints(&sumOut, p, &sumOut)
	}
	negSumOut := negatePoint(&sumOut)

	lastRow := (nRows - 1) * nCols * PointBytes
	for i := 0; i < nCols; i++ {
		p, err := parsePoint(pcmIn[i][:])
		if err != nil {
			return errors.E(op, err)
		}
		var diff secp256k1.JacobianPoint
		addPoints(p, negSumOut, &diff)
		if isInfinity(&diff) {
			return errors.E(op, errors.Crypto, "commitment difference is the point at infinity")
		}
		enc := serializePoint(&diff)
		copy(m[lastRow+i*PointBytes:], enc[:])
	}

	blindSum.Set(blinds[0])
	for _, b := range blinds[1:] {
		blindSum.Add(sNeg(b))
	}
	return nil
}

// ringChallenge hashes one ring step into the next challenge scalar.
func ringChallenge(preimage []byte, ls []*secp256k1.JacobianPoint, r *secp256k1.JacobianPoint) *secp256k1.ModNScalar {
	parts := make([][]byte, 0, len(ls)+2)
	parts = append(parts, preimage)
	for _, l := range ls {
		enc := serializePoint(l)
		parts = append(parts, append([]byte(nil), enc[:]...))
	}
	encR := serializePoint(r)
	parts = append(parts, encR[:])
	return hashToScalar(tagMLSAGRing, parts...)
}

// MLSAGGenerate produces a ring signature over the matrix m proving knowledge
// of the column index secrets sk without revealing index.  Row 0 is linkable:
// the returned key image commits to the true one-time key and detects double
// spends.  All signature randomness is drawn deterministically from seed.
//
// The return values are the 33-byte key image, the 32-byte initial ring
// challenge, and the nCols*nRows*32-byte signature scalar vector.
func MLSAGGenerate(m []byte, sk []*secp256k1.ModNScalar, index int, seed, preimage [32]byte,
	nCols, nRows int) ([PointBytes]byte, [ScalarBytes]byte, []byte, error) {

	const op errors.Op = "crypto.MLSAGGenerate"
	genOnce.Do(initGens)

	var ki [PointBytes]byte
	var pc [ScalarBytes]byte
	if len(m) != nRows*nCols*PointBytes {
		return ki, pc, nil, errors.E(op, errors.Encoding, "ring matrix length mismatch")
	}
	if len(sk) != nRows {
		return ki, pc, nil, errors.E(op, errors.Invalid, "secret key count mismatch")
	}
	if index < 0 || index >= nCols {
		return ki, pc, nil, errors.E(op, errors.Invalid, "ring index out of range")
	}

	// Parse the full matrix up front so a malformed decoy cannot abort the
	// signature half way through.
	pts := make([][]*secp256k1.JacobianPoint, nRows)
	for j := 0; j < nRows; j++ {
		pts[j] = make([]*secp256k1.JacobianPoint, nCols)
		for i := 0; i < nCols; i++ {
			enc, err := matrixPoint(m, nCols, j, i)
			if err != nil {
				return ki, pc, nil, errors.E(op, err)
			}
			p, err := parsePoint(enc)
			if err != nil {
				return ki, pc, nil, errors.E(op, err)
			}
			pts[j][i] = p
		}
	}

	truePub, _ := matrixPoint(m, nCols, 0, index)
	hp := hashToPoint(tagKeyImage, truePub)
	keyImage := scalarMult(sk[0], hp)
	ki = serializePoint(keyImage)

	src := uniformprng.NewSource(&seed)
	alphas := make([]*secp256k1.ModNScalar, nRows)
	ls := make([]*secp256k1.JacobianPoint, nRows)
	for j := 0; j < nRows; j++ {
		alphas[j] = drawScalar(src)
		ls[j] = baseMult(alphas[j])
	}
	r := scalarMult(alphas[0], hp)

	cs := make([]*secp256k1.ModNScalar, nCols)
	cs[(index+1)%nCols] = ringChallenge(preimage[:], ls, r)

	ss := make([]byte, nCols*nRows*ScalarBytes)
	putS := func(row, col int, s *secp256k1.ModNScalar) {
		b := s.Bytes()
		copy(ss[(col*nRows+row)*ScalarBytes:], b[:])
	}

	for i := (index + 1) % nCols; i != index; i = (i + 1) % nCols {
		c := cs[i]
		for j := 0; j < nRows; j++ {
			s := drawScalar(src)
			putS(j, i, s)
			var l secp256k1.JacobianPoint
			addPoints(baseMult(s), scalarMult(c, pts[j][i]), &l)
			ls[j] = &l
			if j == 0 {
				var rr secp256k1.JacobianPoint
				enc := serializePoint(pts[0][i])
				hpi := hashToPoint(tagKeyImage, enc[:])
				addPoints(scalarMult(s, hpi), scalarMult(c, keyImage), &rr)
				r = &rr
			}
		}
		cs[(i+1)%nCols] = ringChallenge(preimage[:], ls, r)
	}

	// Close the ring: s[j][index] = alpha[j] - c[index]*sk[j].
	for j := 0; j < nRows; j++ {
		putS(j, index, sSub(alphas[j], sMul(cs[index], sk[j])))
	}

	pc = cs[0].Bytes()
	return ki, pc, ss, nil
}

// MLSAGVerify reports whether the ring signature (ki, pc, ss) over the matrix
// m and message preimage is valid.
func MLSAGVerify(preimage [32]byte, m []byte, ki [PointBytes]byte, pc [ScalarBytes]byte,
	ss []byte, nCols, nRows int) bool {

	genOnce.Do(initGens)

	if len(m) != nRows*nCols*PointBytes || len(ss) != nCols*nRows*ScalarBytes {
		return false
	}
	keyImage, err := parsePoint(ki[:])
	if err != nil {
		return false
	}

	var c0 secp256k1.ModNScalar
	c0.SetBytes(&pc)
	c := sSet(&c0)

	ls := make([]*secp256k1.JacobianPoint, nRows)
	for i := 0; i < nCols; i++ {
		var r *secp256k1.JacobianPoint
		for j := 0; j < nRows; j++ {
			enc, err := matrixPoint(m, nCols, j, i)
			if err != nil {
				return false
			}
			p, err := parsePoint(enc)
			if err != nil {
				return false
			}
			var s secp256k1.ModNScalar
			var sb [ScalarBytes]byte
			copy(sb[:], ss[(i*nRows+j)*ScalarBytes:])
			s.SetBytes(&sb)

			var l secp256k1.JacobianPoint
			addPoints(baseMult(&s), scalarMult(c, p), &l)
			ls[j] = &l
			if j == 0 {
				hpi := hashToPoint(tagKeyImage, enc)
				var rr secp256k1.JacobianPoint
				addPoints(scalarMult(&s, hpi), scalarMult(c, keyImage), &rr)
				r = &rr
			}
		}
		c = ringChallenge(preimage[:], ls, r)
	}

	return scalarsEqual(c, &c0)
}
