// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crypto

import (
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/pingpongsneak/bamboo/errors"
)

// StealthAddress is the dual-key address published by a wallet.  Payments to
// it derive a fresh one-time key per output, so outputs are unlinkable
// without the scan secret.
type StealthAddress struct {
	SpendPub [PointBytes]byte
	ScanPub  [PointBytes]byte
	NetID    byte
}

// StealthPayment carries the per-output key material a sender attaches to an
// output: the derived one-time public key and the ephemeral public key the
// recipient needs to uncover it.
type StealthPayment struct {
	OneTimePub [PointBytes]byte
	EphemPub   [PointBytes]byte
}

// NewStealthAddress builds an address from the spend and scan public keys.
func NewStealthAddress(spendPub, scanPub [PointBytes]byte, netID byte) *StealthAddress {
	return &StealthAddress{SpendPub: spendPub, ScanPub: scanPub, NetID: netID}
}

// Encode returns the Base58Check string form: version || spend pub || scan
// pub || checksum.
func (a *StealthAddress) Encode() string {
	payload := make([]byte, 0, 2*PointBytes)
	payload = append(payload, a.SpendPub[:]...)
	payload = append(payload, a.ScanPub[:]...)
	return base58.CheckEncode(payload, a.NetID)
}

// DecodeStealthAddress parses the Base58Check string form of an address.
func DecodeStealthAddress(s string) (*StealthAddress, error) {
	const op errors.Op = "crypto.DecodeStealthAddress"
	payload, version, err := base58.CheckDecode(s)
	if err != nil {
		return nil, errors.E(op, errors.Encoding, err)
	}
	if len(payload) != 2*PointBytes {
		return nil, errors.E(op, errors.Encoding, "bad stealth address payload length")
	}
	a := &StealthAddress{NetID: version}
	copy(a.SpendPub[:], payload[:PointBytes])
	copy(a.ScanPub[:], payload[PointBytes:])
	if _, err := parsePoint(a.SpendPub[:]); err != nil {
		return nil, errors.E(op, err)
	}
	if _, err := parsePoint(a.ScanPub[:]); err != nil {
		return nil, errors.E(op, err)
	}
	return a, nil
}

// sharedSecretScalar derives the stealth tweak f = H_s(tag || dh) from a
// Diffie-Hellman point.
func sharedSecretScalar(dh *secp256k1.JacobianPoint) *secp256k1.ModNScalar {
	enc := serializePoint(dh)
	return hashToScalar(tagStealth, enc[:])
}

// CreatePayment derives the one-time public key P = H_s(r*Scan)*G + Spend for
// a payment to addr using the ephemeral secret r.  The returned
// StealthPayment holds P together with the ephemeral public key R = r*G that
// must be published alongside the output.
func CreatePayment(addr *StealthAddress, ephem *secp256k1.ModNScalar) ([PointBytes]byte, *StealthPayment, error) {
	const op errors.Op = "crypto.CreatePayment"
	genOnce.Do(initGens)

	var zero [PointBytes]byte
	scanPt, err := parsePoint(addr.ScanPub[:])
	if err != nil {
		return zero, nil, errors.E(op, err)
	}
	spendPt, err := parsePoint(addr.SpendPub[:])
	if err != nil {
		return zero, nil, errors.E(op, err)
	}

	f := sharedSecretScalar(scalarMult(ephem, scanPt))
	var onetime secp256k1.JacobianPoint
	addPoints(baseMult(f), spendPt, &onetime)
	if isInfinity(&onetime) {
		return zero, nil, errors.E(op, errors.Crypto, "degenerate one-time key")
	}

	p := serializePoint(&onetime)
	return p, &StealthPayment{
		OneTimePub: p,
		EphemPub:   PubKeyOf(ephem),
	}, nil
}

// Uncover recovers the one-time private key for an output paid to this
// wallet: H_s(scan*R) + spend.  The caller owns the returned scalar and must
// zero it when done.
func Uncover(scan, spend *secp256k1.ModNScalar, ephemPub [PointBytes]byte) (*secp256k1.ModNScalar, error) {
	const op errors.Op = "crypto.Uncover"
	genOnce.Do(initGens)

	ephemPt, err := parsePoint(ephemPub[:])
	if err != nil {
		return nil, errors.E(op, err)
	}
	f := sharedSecretScalar(scalarMult(scan, ephemPt))
	return f.Add(spend), nil
}
