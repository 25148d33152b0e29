// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netparams holds the network parameters distinguishing the main
// network from the test network.
package netparams

import "github.com/btcsuite/btcd/chaincfg"

// Params is used to group parameters for the various bamboo networks.
type Params struct {
	// Name uniquely identifies the network.
	Name string

	// StealthAddrID is the version byte prepended to Base58Check-encoded
	// stealth addresses on this network.
	StealthAddrID byte

	// HDParams supplies the BIP-32 extended key version bytes used when
	// deriving and reconstructing the wallet's HD tree on this network.
	HDParams *chaincfg.Params

	// DefaultNodePort is the port the node HTTP endpoint listens on by
	// default.
	DefaultNodePort string

	// DefaultWalletPort is the port the wallet API binds by default.
	DefaultWalletPort string
}

// MainNetParams contains parameters specific running the wallet on the main
// network.
var MainNetParams = Params{
	Name:              "mainnet",
	StealthAddrID:     0x42,
	HDParams:          &chaincfg.MainNetParams,
	DefaultNodePort:   "7946",
	DefaultWalletPort: "8646",
}

// TestNetParams contains parameters specific running the wallet on the test
// network.
var TestNetParams = Params{
	Name:              "testnet",
	StealthAddrID:     0x74,
	HDParams:          &chaincfg.TestNet3Params,
	DefaultNodePort:   "17946",
	DefaultWalletPort: "18646",
}
