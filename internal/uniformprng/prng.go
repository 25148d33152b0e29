// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package uniformprng provides deterministic, uniformly distributed draws
// from a chacha20 keystream.  The wallet uses it for the ring column draw
// and decoy selection, and for deriving range proof and ring signature
// randomness from a caller-supplied seed, where replaying the seed must
// replay the exact draw sequence.
package uniformprng

import (
	"encoding/binary"
	"io"
	"math/bits"

	"golang.org/x/crypto/chacha20"
)

// blockLen is the amount of keystream buffered per cipher invocation.  A
// draw that does not fit in the bytes left in the block discards them and
// starts a fresh block.
const blockLen = 64

// Source yields cryptographically-secure pseudorandom values with uniform
// distribution.  A Source is deterministic in its seed and not safe for
// concurrent use.
type Source struct {
	stream *chacha20.Cipher
	block  [blockLen]byte
	avail  int
}

var zeroNonce [chacha20.NonceSize]byte

// NewSource seeds a Source from a 32-byte key.
func NewSource(seed *[32]byte) *Source {
	stream, _ := chacha20.NewUnauthenticatedCipher(seed[:], zeroNonce[:])
	return &Source{stream: stream}
}

// RandSource creates a Source with seed randomness read from rand.
func RandSource(rand io.Reader) (*Source, error) {
	seed := new([32]byte)
	_, err := io.ReadFull(rand, seed[:])
	if err != nil {
		return nil, err
	}
	return NewSource(seed), nil
}

// refill buffers the next keystream block.
func (s *Source) refill() {
	s.block = [blockLen]byte{}
	s.stream.XORKeyStream(s.block[:], s.block[:])
	s.avail = blockLen
}

// take returns the next n buffered keystream bytes, n <= blockLen.
func (s *Source) take(n int) []byte {
	if s.avail < n {
		s.refill()
	}
	off := blockLen - s.avail
	s.avail -= n
	return s.block[off : off+n]
}

// Uint32 returns a pseudo-random uint32.
func (s *Source) Uint32() uint32 {
	return binary.LittleEndian.Uint32(s.take(4))
}

// Uint64 returns a pseudo-random uint64.
func (s *Source) Uint64() uint64 {
	return binary.LittleEndian.Uint64(s.take(8))
}

// Uint32n returns a pseudo-random uint32 in range [0,n).  Candidates are
// masked down to the next power of two and rejected until one lands under
// n, so no modulo bias is introduced into the ring column or decoy draws.
func (s *Source) Uint32n(n uint32) uint32 {
	if n < 2 {
		return 0
	}
	mask := uint32(1)<<uint(bits.Len32(n-1)) - 1
	for {
		v := s.Uint32() & mask
		if v < n {
			return v
		}
	}
}

// Read fills b with pseudo-random bytes.  It never fails.
func (s *Source) Read(b []byte) (int, error) {
	total := len(b)
	for len(b) > blockLen {
		copy(b, s.take(blockLen))
		b = b[blockLen:]
	}
	if len(b) > 0 {
		copy(b, s.take(len(b)))
	}
	return total, nil
}
