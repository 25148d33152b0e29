// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletdb

import (
	"encoding/binary"
	"io"
	"runtime"

	"golang.org/x/crypto/argon2"

	"github.com/pingpongsneak/bamboo/errors"
)

// argon2idParams describes the difficulty and parallelism requirements for
// the Argon2id KDF deriving the row encryption key from the store
// passphrase.
type argon2idParams struct {
	Salt    [16]byte
	Time    uint32
	Memory  uint32
	Threads uint8
}

// newArgon2idParams returns the minimum recommended parameters for the
// Argon2id KDF with a random salt read from rand.
func newArgon2idParams(rand io.Reader) (*argon2idParams, error) {
	ncpu := runtime.NumCPU()
	if ncpu > 256 {
		ncpu = 256
	}
	p := &argon2idParams{
		Time:    1,
		Memory:  64 * 1024, // 64 MiB
		Threads: uint8(ncpu),
	}
	_, err := rand.Read(p.Salt[:])
	return p, err
}

// kdfMarshaledLen is the length of the marshaled KDF parameters.
const kdfMarshaledLen = 25

func (p *argon2idParams) marshal() []byte {
	b := make([]byte, kdfMarshaledLen)
	copy(b, p.Salt[:])
	binary.LittleEndian.PutUint32(b[16:16+4], p.Time)
	binary.LittleEndian.PutUint32(b[16+4:16+8], p.Memory)
	b[16+8] = p.Threads
	return b
}

func unmarshalArgon2idParams(data []byte) (*argon2idParams, error) {
	if len(data) != kdfMarshaledLen {
		return nil, errors.E(errors.Encoding, "bad KDF parameter length")
	}
	p := new(argon2idParams)
	copy(p.Salt[:], data[:16])
	p.Time = binary.LittleEndian.Uint32(data[16 : 16+4])
	p.Memory = binary.LittleEndian.Uint32(data[16+4 : 16+8])
	p.Threads = data[16+8]
	return p, nil
}

// deriveKey stretches the passphrase into the 32-byte row encryption key.
func (p *argon2idParams) deriveKey(passphrase []byte) [32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey(passphrase, p.Salt[:], p.Time, p.Memory, p.Threads, 32))
	return key
}
