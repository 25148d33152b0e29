// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package record defines the wallet's persisted and wire-visible data types:
// confidential outputs, transactions, wallet transaction records, and HD key
// sets.  All byte strings have fixed widths; variable-length fields are
// length-prefixed in the canonical hash encoding.
package record

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// CoinType classifies an output.
type CoinType uint8

// Output coin types.
const (
	Coin CoinType = iota + 1
	Coinstake
	Fee
	Coinbase
)

func (t CoinType) String() string {
	switch t {
	case Coin:
		return "coin"
	case Coinstake:
		return "coinstake"
	case Fee:
		return "fee"
	case Coinbase:
		return "coinbase"
	default:
		return "unknown"
	}
}

// WalletType distinguishes received from sent wallet transactions.
type WalletType uint8

// Wallet transaction directions.
const (
	Receive WalletType = iota + 1
	Send
)

// SessionType selects the kind of transaction a session builds.
type SessionType uint8

// Session types.
const (
	SessionCoin SessionType = iota + 1
	SessionCoinstake
)

// Vout is a single confidential output.  The amount A is exposed only where
// policy dictates: fee outputs and coinbase rewards carry a cleartext amount,
// the payment output of a coinstake session carries the payment amount, and
// all other payment outputs and every change output carry A=0 with the
// amount sealed inside N.
type Vout struct {
	A uint64   `json:"a" msgpack:"a"`
	C [33]byte `json:"c" msgpack:"c"`
	E [33]byte `json:"e" msgpack:"e"`
	L uint32   `json:"l" msgpack:"l"`
	N []byte   `json:"n" msgpack:"n"`
	P [33]byte `json:"p" msgpack:"p"`
	S []byte   `json:"s" msgpack:"s"`
	T CoinType `json:"t" msgpack:"t"`
}

// RctRecord carries the ring signature of a transaction: the signed preimage
// I, the ring matrix M, the initial ring challenge P, and the signature
// scalar vector S.
type RctRecord struct {
	I [32]byte `json:"i" msgpack:"i"`
	M []byte   `json:"m" msgpack:"m"`
	P [32]byte `json:"p" msgpack:"p"`
	S []byte   `json:"s" msgpack:"s"`
}

// VinRecord carries the key image and the serialized ring member offsets of
// the single transaction input.
type VinRecord struct {
	KImage   [33]byte `json:"kimage" msgpack:"kimage"`
	KOffsets []byte   `json:"koffsets" msgpack:"koffsets"`
}

// Transaction is the wire-visible confidential transaction.  Vout always
// holds exactly three entries in order fee, payment, change.
type Transaction struct {
	TxnID [32]byte  `json:"txnid" msgpack:"txnid"`
	Ver   uint16    `json:"ver" msgpack:"ver"`
	Mix   uint16    `json:"mix" msgpack:"mix"`
	Bp    []byte    `json:"bp" msgpack:"bp"`
	Rct   RctRecord `json:"rct" msgpack:"rct"`
	Vin   VinRecord `json:"vin" msgpack:"vin"`
	Vout  []Vout    `json:"vout" msgpack:"vout"`
	ID    uuid.UUID `json:"id" msgpack:"id"`
}

// Hash computes the canonical content hash over every field except TxnID.
// Variable-length fields are length-prefixed so no two distinct transactions
// share an encoding.
func (t *Transaction) Hash() [32]byte {
	h := sha256.New()
	var scratch [8]byte

	writeUint := func(v uint64) {
		binary.BigEndian.PutUint64(scratch[:], v)
		h.Write(scratch[:])
	}
	writeBytes := func(b []byte) {
		writeUint(uint64(len(b)))
		h.Write(b)
	}

	writeUint(uint64(t.Ver))
	writeUint(uint64(t.Mix))
	writeBytes(t.Bp)
	h.Write(t.Rct.I[:])
	writeBytes(t.Rct.M)
	h.Write(t.Rct.P[:])
	writeBytes(t.Rct.S)
	h.Write(t.Vin.KImage[:])
	writeBytes(t.Vin.KOffsets)
	writeUint(uint64(len(t.Vout)))
	for i := range t.Vout {
		v := &t.Vout[i]
		writeUint(v.A)
		h.Write(v.C[:])
		h.Write(v.E[:])
		writeUint(uint64(v.L))
		writeBytes(v.N)
		h.Write(v.P[:])
		writeBytes(v.S)
		writeUint(uint64(v.T))
	}
	h.Write(t.ID[:])

	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// WalletTx is the wallet-side record of a transaction.  For sends, Vout
// holds the three built outputs; for receives it holds the outputs uncovered
// by the scanner.
type WalletTx struct {
	ID               uuid.UUID  `msgpack:"id"`
	TxID             [32]byte   `msgpack:"txid"`
	DateTime         time.Time  `msgpack:"datetime"`
	WalletType       WalletType `msgpack:"wallettype"`
	Balance          uint64     `msgpack:"balance"`
	Payment          uint64     `msgpack:"payment"`
	Change           uint64     `msgpack:"change"`
	Fee              uint64     `msgpack:"fee"`
	Reward           uint64     `msgpack:"reward"`
	Memo             string     `msgpack:"memo"`
	SenderAddress    string     `msgpack:"senderaddress"`
	RecipientAddress string     `msgpack:"recipientaddress"`
	Spending         Vout       `msgpack:"spending"`
	Spent            bool       `msgpack:"spent"`
	Vout             []Vout     `msgpack:"vout"`
}

// KeySet is a persisted HD key set.  RootKey and ChainCode identify the
// wallet's master node; KeyPath locates the spend child and KeyPath+1 the
// scan child.  Instances are immutable once persisted and their secret
// fields must be zeroed as soon as the owning scope ends.
type KeySet struct {
	ID             uuid.UUID `msgpack:"id"`
	ChainCode      [32]byte  `msgpack:"chaincode"`
	RootKey        [32]byte  `msgpack:"rootkey"`
	KeyPath        string    `msgpack:"keypath"`
	StealthAddress string    `msgpack:"stealthaddress"`
}

// Zero clears the secret key material of the key set.
func (k *KeySet) Zero() {
	k.ChainCode = [32]byte{}
	k.RootKey = [32]byte{}
}

// OutputPayload is the plaintext sealed inside a Vout's N field for the
// recipient's scan key.
type OutputPayload struct {
	Amount uint64   `msgpack:"amount"`
	Blind  [32]byte `msgpack:"blind"`
	Memo   string   `msgpack:"memo"`
}
