// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"runtime"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/pingpongsneak/bamboo/crypto"
	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/record"
)

// Uncovered pairs an output addressed to this wallet with its decrypted
// payload.
type Uncovered struct {
	Vout    record.Vout
	Payload record.OutputPayload
}

// scanOutputs filters candidate outputs down to those whose one-time key
// uncovers under this wallet's spend and scan secrets, decrypting the sealed
// amount/blind/memo payload of each retained output.  Outputs that fail to
// uncover belong to other wallets and are skipped silently; a retained
// output whose payload will not decrypt is an error, since the one-time key
// match proves it was addressed here.
func scanOutputs(spend, scan *secp256k1.ModNScalar, vouts []record.Vout) ([]Uncovered, error) {
	const op errors.Op = "wallet.scanOutputs"

	// Uncovering is pure curve arithmetic, so candidate outputs are
	// scanned across cores.  Results keep their input order.
	results := make([]*Uncovered, len(vouts))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range vouts {
		i := i
		g.Go(func() error {
			v := &vouts[i]
			onetime, err := crypto.Uncover(scan, spend, v.E)
			if err != nil {
				return nil
			}
			candidate := crypto.PubKeyOf(onetime)
			onetime.Zero()
			if candidate != v.P {
				return nil
			}

			plaintext, err := crypto.BoxOpen(scan, v.N)
			if err != nil {
				return errors.E(op, err)
			}
			var payload record.OutputPayload
			if err := msgpack.Unmarshal(plaintext, &payload); err != nil {
				return errors.E(op, errors.Encoding, err)
			}
			results[i] = &Uncovered{Vout: *v, Payload: payload}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var kept []Uncovered
	for _, r := range results {
		if r != nil {
			kept = append(kept, *r)
		}
	}
	return kept, nil
}

// decryptPayload opens one output's sealed payload with the scan key.
func decryptPayload(scan *secp256k1.ModNScalar, v *record.Vout) (*record.OutputPayload, error) {
	const op errors.Op = "wallet.decryptPayload"
	plaintext, err := crypto.BoxOpen(scan, v.N)
	if err != nil {
		return nil, errors.E(op, err)
	}
	var payload record.OutputPayload
	if err := msgpack.Unmarshal(plaintext, &payload); err != nil {
		return nil, errors.E(op, errors.Encoding, err)
	}
	return &payload, nil
}
