// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/pingpongsneak/bamboo/crypto"
	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/internal/uniformprng"
	"github.com/pingpongsneak/bamboo/record"
)

const (
	// nRows is the MLSAG row count: row 0 holds one-time public keys, the
	// last row the commitment-difference points.
	nRows = 2

	// nCols is the ring width, the anonymity-set size of every spend.
	nCols = 22

	// maxDecoyDraws bounds the retries when a drawn decoy collides with an
	// already placed ring member.
	maxDecoyDraws = 128
)

// ring is the assembled MLSAG input matrix together with the secrets of the
// true column.  The caller owns sk0 and blind0 and must zero both when the
// build ends.
type ring struct {
	m      []byte
	pcmIn  [][crypto.PointBytes]byte
	pkIn   [][crypto.PointBytes]byte
	index  int
	sk0    *secp256k1.ModNScalar
	blind0 *secp256k1.ModNScalar
}

// assembleRing places the true spend at a uniformly random column and fills
// the remaining columns with decoys drawn from the pool, guaranteeing that
// no decoy shares a (C,P) pair with any already placed member.
func assembleRing(prng *uniformprng.Source, spend, scan *secp256k1.ModNScalar,
	spending *record.Vout, payload *record.OutputPayload,
	pool []record.Transaction) (*ring, error) {

	const op errors.Op = "wallet.assembleRing"

	if len(pool) == 0 {
		return nil, errors.E(op, errors.Invalid, "empty decoy pool")
	}

	r := &ring{
		m:     make([]byte, nRows*nCols*crypto.PointBytes),
		pcmIn: make([][crypto.PointBytes]byte, nCols),
		pkIn:  make([][crypto.PointBytes]byte, nCols),
		index: int(prng.Uint32n(nCols)),
	}

	onetime, err := crypto.Uncover(scan, spend, spending.E)
	if err != nil {
		return nil, errors.E(op, err)
	}
	r.sk0 = onetime

	var blind secp256k1.ModNScalar
	blind.SetBytes(&payload.Blind)
	r.blind0 = &blind

	r.pcmIn[r.index] = crypto.Commit(payload.Amount, r.blind0)
	r.pkIn[r.index] = crypto.PubKeyOf(r.sk0)
	copy(r.m[r.index*crypto.PointBytes:], r.pkIn[r.index][:])

	placed := func(c, p [crypto.PointBytes]byte) bool {
		for i := 0; i < nCols; i++ {
			if i == r.index || r.pkIn[i] != ([crypto.PointBytes]byte{}) {
				if r.pcmIn[i] == c && r.pkIn[i] == p {
					return true
				}
			}
		}
		return false
	}

	for i := 0; i < nCols; i++ {
		if i == r.index {
			continue
		}
		var ok bool
		for draw := 0; draw < maxDecoyDraws; draw++ {
			tx := &pool[prng.Uint32n(uint32(len(pool)))]
			if len(tx.Vout) < 2 {
				continue
			}
			v := &tx.Vout[prng.Uint32n(2)]
			if placed(v.C, v.P) {
				continue
			}
			r.pcmIn[i] = v.C
			r.pkIn[i] = v.P
			copy(r.m[i*crypto.PointBytes:], v.P[:])
			ok = true
			break
		}
		if !ok {
			r.zero()
			return nil, errors.E(op, errors.Bug, "exhausted decoy draws without a non-colliding member")
		}
	}
	return r, nil
}

// zero clears the ring secrets.
func (r *ring) zero() {
	if r.sk0 != nil {
		r.sk0.Zero()
	}
	if r.blind0 != nil {
		r.blind0.Zero()
	}
}
