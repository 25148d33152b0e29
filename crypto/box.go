// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pingpongsneak/bamboo/errors"
)

// The sealed box is an ECIES construction over secp256k1: a fresh ephemeral
// key performs Diffie-Hellman against the recipient's scan key, the shared
// point is hashed into a chacha20poly1305 key, and the ciphertext layout is
// ephemeral pub (33) || nonce (12) || AEAD output.

// boxOverhead is the ciphertext expansion of BoxSeal.
const boxOverhead = PointBytes + chacha20poly1305.NonceSize + chacha20poly1305.Overhead

func boxKey(dh *secp256k1.JacobianPoint) [32]byte {
	enc := serializePoint(dh)
	h := sha256.New()
	h.Write([]byte(tagBox))
	h.Write(enc[:])
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// BoxSeal encrypts plaintext to the holder of the scan private key matching
// scanPub.  Only the recipient can open the box; the sender retains no
// decryption capability.
func BoxSeal(scanPub [PointBytes]byte, plaintext []byte) ([]byte, error) {
	const op errors.Op = "crypto.BoxSeal"
	genOnce.Do(initGens)

	scanPt, err := parsePoint(scanPub[:])
	if err != nil {
		return nil, errors.E(op, err)
	}
	ephem, err := randScalar(rand.Reader)
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	key := boxKey(scalarMult(ephem, scanPt))
	ephemPub := PubKeyOf(ephem)
	ephem.Zero()

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	defer func() { key = [32]byte{} }()

	out := make([]byte, 0, boxOverhead+len(plaintext))
	out = append(out, ephemPub[:]...)
	var nonce [chacha20poly1305.NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	out = append(out, nonce[:]...)
	return aead.Seal(out, nonce[:], plaintext, nil), nil
}

// BoxOpen decrypts a box sealed to the scan key.  Authentication failure,
// truncation, and malformed ephemeral keys all return a Crypto error.
func BoxOpen(scanPriv *secp256k1.ModNScalar, box []byte) ([]byte, error) {
	const op errors.Op = "crypto.BoxOpen"
	genOnce.Do(initGens)

	if len(box) < boxOverhead {
		return nil, errors.E(op, errors.Crypto, "sealed box too short")
	}
	ephemPt, err := parsePoint(box[:PointBytes])
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	key := boxKey(scalarMult(scanPriv, ephemPt))
	defer func() { key = [32]byte{} }()

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	nonce := box[PointBytes : PointBytes+chacha20poly1305.NonceSize]
	ct := box[PointBytes+chacha20poly1305.NonceSize:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, errors.E(op, errors.Crypto, "sealed box authentication failed")
	}
	return pt, nil
}
