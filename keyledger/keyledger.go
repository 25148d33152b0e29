// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keyledger manages the wallet's HD key tree: root derivation from a
// BIP-39 mnemonic, key set persistence, and unlocking the spend and scan
// secrets.  Secret material never outlives the function that derived it;
// every path, including error paths, zeroes before release.
package keyledger

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"

	"github.com/pingpongsneak/bamboo/crypto"
	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/internal/netparams"
	"github.com/pingpongsneak/bamboo/internal/zero"
	"github.com/pingpongsneak/bamboo/record"
	"github.com/pingpongsneak/bamboo/walletdb"
)

// HDPath is the derivation path prefix of the wallet's key sets.  The coin
// type segment is registered for bamboo; the account segment increments per
// added key set.
const HDPath = "m/44'/847177'/0'/0/"

// WalletIDPrefix starts every wallet identifier.
const WalletIDPrefix = "id_"

// derivePath walks a BIP-32 textual path from the extended key k.  Hardened
// segments carry a trailing apostrophe.  The input key is not zeroed; every
// intermediate key is.
func derivePath(k *hdkeychain.ExtendedKey, path string) (*hdkeychain.ExtendedKey, error) {
	const op errors.Op = "keyledger.derivePath"
	segs := strings.Split(path, "/")
	if len(segs) == 0 || segs[0] != "m" {
		return nil, errors.E(op, errors.Invalid, "derivation path must start with m")
	}
	cur := k
	for _, seg := range segs[1:] {
		if seg == "" {
			continue
		}
		hardened := strings.HasSuffix(seg, "'")
		if hardened {
			seg = seg[:len(seg)-1]
		}
		n, err := strconv.ParseUint(seg, 10, 32)
		if err != nil {
			return nil, errors.E(op, errors.Invalid, err)
		}
		idx := uint32(n)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		next, err := cur.Derive(idx)
		if cur != k {
			cur.Zero()
		}
		if err != nil {
			return nil, errors.E(op, errors.Crypto, err)
		}
		cur = next
	}
	if cur == k {
		return nil, errors.E(op, errors.Invalid, "empty derivation path")
	}
	return cur, nil
}

// bumpLastSegment returns path with its final index incremented by n.
func bumpLastSegment(path string, n uint32) (string, error) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", errors.E(errors.Invalid, "malformed derivation path")
	}
	last, err := strconv.ParseUint(path[i+1:], 10, 32)
	if err != nil {
		return "", errors.E(errors.Invalid, err)
	}
	return path[:i+1] + strconv.FormatUint(last+uint64(n), 10), nil
}

// bumpAccountSegment returns path with the account segment (index 2)
// incremented.
func bumpAccountSegment(path string) (string, error) {
	segs := strings.Split(path, "/")
	if len(segs) < 4 {
		return "", errors.E(errors.Invalid, "malformed derivation path")
	}
	acct := segs[3]
	hardened := strings.HasSuffix(acct, "'")
	if hardened {
		acct = acct[:len(acct)-1]
	}
	n, err := strconv.ParseUint(acct, 10, 32)
	if err != nil {
		return "", errors.E(errors.Invalid, err)
	}
	segs[3] = strconv.FormatUint(n+1, 10)
	if hardened {
		segs[3] += "'"
	}
	return strings.Join(segs, "/"), nil
}

// masterFromKeySet reconstructs the master extended key from a key set's
// stored root scalar and chain code.  The caller must Zero the returned key.
func masterFromKeySet(ks *record.KeySet, net *netparams.Params) *hdkeychain.ExtendedKey {
	version := net.HDParams.HDPrivateKeyID
	var parentFP [4]byte
	return hdkeychain.NewExtendedKey(version[:], append([]byte(nil), ks.RootKey[:]...),
		append([]byte(nil), ks.ChainCode[:]...), parentFP[:], 0, 0, true)
}

// stealthFromMaster derives the spend child at path and the scan child at
// path+1 and returns the encoded stealth address.
func stealthFromMaster(master *hdkeychain.ExtendedKey, path string, net *netparams.Params) (string, error) {
	scanPath, err := bumpLastSegment(path, 1)
	if err != nil {
		return "", err
	}
	spendKey, err := derivePath(master, path)
	if err != nil {
		return "", err
	}
	defer spendKey.Zero()
	scanKey, err := derivePath(master, scanPath)
	if err != nil {
		return "", err
	}
	defer scanKey.Zero()

	spendPub, err := spendKey.ECPubKey()
	if err != nil {
		return "", errors.E(errors.Crypto, err)
	}
	scanPub, err := scanKey.ECPubKey()
	if err != nil {
		return "", errors.E(errors.Crypto, err)
	}
	var spend33, scan33 [crypto.PointBytes]byte
	copy(spend33[:], spendPub.SerializeCompressed())
	copy(scan33[:], scanPub.SerializeCompressed())
	return crypto.NewStealthAddress(spend33, scan33, net.StealthAddrID).Encode(), nil
}

// newKeySet builds a key set for path from the master key material.
func newKeySet(rootKey, chainCode []byte, path string, net *netparams.Params) (*record.KeySet, error) {
	ks := &record.KeySet{
		ID:      uuid.New(),
		KeyPath: path,
	}
	copy(ks.RootKey[:], rootKey)
	copy(ks.ChainCode[:], chainCode)

	master := masterFromKeySet(ks, net)
	defer master.Zero()
	addr, err := stealthFromMaster(master, path, net)
	if err != nil {
		ks.Zero()
		return nil, err
	}
	ks.StealthAddress = addr
	return ks, nil
}

// CreateWallet derives the wallet root from the BIP-39 mnemonic and
// passphrase, persists the initial key set at HDPath+"0" into a new store
// under dataDir, and returns the wallet id.  The mnemonic, seed, and all
// intermediate key material are zeroed before return.
func CreateWallet(dataDir string, mnemonic, passphrase []byte, net *netparams.Params) (string, *walletdb.DB, error) {
	const op errors.Op = "keyledger.CreateWallet"

	defer zero.Bytes(mnemonic)
	if !bip39.IsMnemonicValid(string(mnemonic)) {
		return "", nil, errors.E(op, errors.Seed, "invalid mnemonic")
	}

	seed := bip39.NewSeed(string(mnemonic), string(passphrase))
	defer zero.Bytes(seed)

	master, err := hdkeychain.NewMaster(seed, net.HDParams)
	if err != nil {
		return "", nil, errors.E(op, errors.Seed, err)
	}
	defer master.Zero()

	var idBytes [32]byte
	if _, err := rand.Read(idBytes[:]); err != nil {
		return "", nil, errors.E(op, errors.Crypto, err)
	}
	walletID := WalletIDPrefix + hex.EncodeToString(idBytes[:])

	db, err := walletdb.Open(WalletPath(dataDir, walletID), passphrase)
	if err != nil {
		return "", nil, errors.E(op, err)
	}

	priv, err := master.ECPrivKey()
	if err != nil {
		db.Close()
		return "", nil, errors.E(op, errors.Crypto, err)
	}
	rootKey := priv.Key.Bytes()
	priv.Zero()
	defer zero.Bytea32(&rootKey)
	chainCode := master.ChainCode()

	ks, err := newKeySet(rootKey[:], chainCode, HDPath+"0", net)
	if err != nil {
		db.Close()
		return "", nil, errors.E(op, err)
	}
	defer ks.Zero()

	if err := db.InsertKeySet(ks); err != nil {
		db.Close()
		return "", nil, errors.E(op, err)
	}
	return walletID, db, nil
}

// WalletPath returns the store file path of a wallet id under dataDir.
func WalletPath(dataDir, walletID string) string {
	return filepath.Join(dataDir, walletID+".db")
}

// AddKeySet reads the last key set, increments the account segment of its
// path, and persists the new set.  Secret material from both sets is zeroed
// before return.
func AddKeySet(db *walletdb.DB, net *netparams.Params) error {
	const op errors.Op = "keyledger.AddKeySet"
	last, err := db.LastKeySet()
	if err != nil {
		return errors.E(op, err)
	}
	defer last.Zero()

	path, err := bumpAccountSegment(last.KeyPath)
	if err != nil {
		return errors.E(op, err)
	}
	ks, err := newKeySet(last.RootKey[:], last.ChainCode[:], path, net)
	if err != nil {
		return errors.E(op, err)
	}
	defer ks.Zero()
	if err := db.InsertKeySet(ks); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// NextKeySet bumps the final path segment of the last key set, but only once
// the wallet holds at least one transaction; with none it is a no-op and
// returns the existing set's address.
func NextKeySet(db *walletdb.DB, net *netparams.Params) (string, error) {
	const op errors.Op = "keyledger.NextKeySet"
	last, err := db.LastKeySet()
	if err != nil {
		return "", errors.E(op, err)
	}
	defer last.Zero()

	txs, err := db.WalletTxs()
	if err != nil {
		return "", errors.E(op, err)
	}
	if len(txs) == 0 {
		return last.StealthAddress, nil
	}

	path, err := bumpLastSegment(last.KeyPath, 2)
	if err != nil {
		return "", errors.E(op, err)
	}
	ks, err := newKeySet(last.RootKey[:], last.ChainCode[:], path, net)
	if err != nil {
		return "", errors.E(op, err)
	}
	defer ks.Zero()
	if err := db.InsertKeySet(ks); err != nil {
		return "", errors.E(op, err)
	}
	return ks.StealthAddress, nil
}

// Unlock derives the spend and scan private keys of the first persisted key
// set.  The two returned scalars are owned by the caller, who must zero them
// when the enclosing scope ends.
func Unlock(db *walletdb.DB, net *netparams.Params) (spend, scan *secp256k1.ModNScalar, err error) {
	const op errors.Op = "keyledger.Unlock"
	first, err := db.FirstKeySet()
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	defer first.Zero()

	master := masterFromKeySet(first, net)
	defer master.Zero()

	scanPath, err := bumpLastSegment(first.KeyPath, 1)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}

	deriveScalar := func(path string) (*secp256k1.ModNScalar, error) {
		k, err := derivePath(master, path)
		if err != nil {
			return nil, err
		}
		defer k.Zero()
		priv, err := k.ECPrivKey()
		if err != nil {
			return nil, errors.E(errors.Crypto, err)
		}
		s := new(secp256k1.ModNScalar).Set(&priv.Key)
		priv.Zero()
		return s, nil
	}

	spend, err = deriveScalar(first.KeyPath)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	scan, err = deriveScalar(scanPath)
	if err != nil {
		spend.Zero()
		return nil, nil, errors.E(op, err)
	}
	return spend, scan, nil
}

// Addresses returns the stealth address of every persisted key set.
func Addresses(db *walletdb.DB) ([]string, error) {
	const op errors.Op = "keyledger.Addresses"
	sets, err := db.KeySets()
	if err != nil {
		return nil, errors.E(op, err)
	}
	addrs := make([]string, 0, len(sets))
	for i := range sets {
		addrs = append(addrs, sets[i].StealthAddress)
		sets[i].Zero()
	}
	return addrs, nil
}

// CreateMnemonic generates a fresh BIP-39 mnemonic.  Only the English
// wordlist ships with the wallet; wordcount must be a multiple of 3 in
// [12, 24].
func CreateMnemonic(lang string, wordcount int) (string, error) {
	const op errors.Op = "keyledger.CreateMnemonic"
	if lang != "" && !strings.EqualFold(lang, "english") {
		return "", errors.E(op, errors.Invalid, "unsupported wordlist language")
	}
	if wordcount < 12 || wordcount > 24 || wordcount%3 != 0 {
		return "", errors.E(op, errors.Invalid, "word count must be a multiple of 3 in [12, 24]")
	}
	entropy, err := bip39.NewEntropy(wordcount / 3 * 32)
	if err != nil {
		return "", errors.E(op, errors.Crypto, err)
	}
	defer zero.Bytes(entropy)
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errors.E(op, errors.Crypto, err)
	}
	return mnemonic, nil
}
