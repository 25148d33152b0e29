// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package zero provides functions to clear sensitive key material from
// memory.  Every owner of a mnemonic, seed, root key, chain code, or
// spend/scan scalar is expected to defer one of these on all exit paths.
package zero

// Bytes sets all bytes in the passed slice to zero.  This is used to
// explicitly clear private key material from memory.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Bytea32 clears the 32-byte array passed as a parameter.
func Bytea32(b *[32]byte) {
	*b = [32]byte{}
}

// Bytea64 clears the 64-byte array passed as a parameter.
func Bytea64(b *[64]byte) {
	*b = [64]byte{}
}
