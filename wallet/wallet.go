// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements the confidential-payments wallet: session
// management, output scanning, balance accounting, and the transaction
// builder that assembles, proves, and signs obfuscated spends.
package wallet

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/internal/netparams"
	"github.com/pingpongsneak/bamboo/keyledger"
	"github.com/pingpongsneak/bamboo/record"
	"github.com/pingpongsneak/bamboo/rpc/client"
	"github.com/pingpongsneak/bamboo/safeguard"
	"github.com/pingpongsneak/bamboo/walletdb"
)

// NodeClient is the wallet's view of the remote node.
type NodeClient interface {
	Peer(ctx context.Context) (*client.PeerInfo, error)
	Outputs(ctx context.Context, paymentID string) ([]record.Vout, error)
	Safeguard(ctx context.Context) ([]record.Transaction, error)
	Submit(ctx context.Context, tx *record.Transaction) (bool, error)
}

// Config collects the wallet's collaborators.
type Config struct {
	// DataDir is the directory holding the per-wallet store files.
	DataDir string

	// Net selects main or test network parameters.
	Net *netparams.Params

	// Node is the RPC client to the remote node.
	Node NodeClient

	// Decoys supplies the ring decoy pool.
	Decoys safeguard.DecoyProvider

	// Clock stamps locktimes and wallet transactions.  Defaults to the
	// system clock.
	Clock clock.Clock
}

// Wallet is the user-facing API surface.
type Wallet struct {
	dataDir  string
	net      *netparams.Params
	node     NodeClient
	decoys   safeguard.DecoyProvider
	clock    clock.Clock
	sessions *SessionStore
}

// New returns a wallet facade over the given collaborators.
func New(cfg *Config) *Wallet {
	c := cfg.Clock
	if c == nil {
		c = clock.NewDefaultClock()
	}
	return &Wallet{
		dataDir:  cfg.DataDir,
		net:      cfg.Net,
		node:     cfg.Node,
		decoys:   cfg.Decoys,
		clock:    c,
		sessions: NewSessionStore(),
	}
}

// Sessions exposes the session store for draft staging and error
// inspection.
func (w *Wallet) Sessions() *SessionStore {
	return w.sessions
}

// unlock derives the session wallet's spend and scan secrets.  Both scalars
// are confined to the caller's scope.
func (w *Wallet) unlock(sess *Session) (spend, scan *secp256k1.ModNScalar, err error) {
	return keyledger.Unlock(sess.DB, w.net)
}

// fail records err on the session and returns it.
func (w *Wallet) fail(id uuid.UUID, err error) error {
	w.sessions.SetLastError(id, err)
	log.Errorf("session %s: %v", id, err)
	return err
}

// session fetches the session snapshot or fails with NotExist.
func (w *Wallet) session(op errors.Op, id uuid.UUID) (Session, error) {
	sess, ok := w.sessions.Get(id)
	if !ok {
		return Session{}, errors.E(op, errors.NotExist, "unknown session id")
	}
	return sess, nil
}

// CreateWallet derives a new wallet from the mnemonic and passphrase,
// persists its first key set, and returns the wallet id.  The mnemonic
// buffer is zeroed before return.
func (w *Wallet) CreateWallet(mnemonic, passphrase []byte) (string, error) {
	const op errors.Op = "wallet.CreateWallet"
	walletID, db, err := keyledger.CreateWallet(w.dataDir, mnemonic, passphrase, w.net)
	if err != nil {
		return "", errors.E(op, err)
	}
	db.Close()
	log.Infof("created wallet %s", walletID)
	return walletID, nil
}

// CreateMnemonic generates a fresh BIP-39 mnemonic.
func (w *Wallet) CreateMnemonic(lang string, wordcount int) (string, error) {
	return keyledger.CreateMnemonic(lang, wordcount)
}

// WalletList enumerates the wallet ids present under the data directory.
func (w *Wallet) WalletList() ([]string, error) {
	const op errors.Op = "wallet.WalletList"
	entries, err := os.ReadDir(w.dataDir)
	if err != nil {
		return nil, errors.E(op, errors.Store, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, keyledger.WalletIDPrefix) && filepath.Ext(name) == ".db" {
			ids = append(ids, strings.TrimSuffix(name, ".db"))
		}
	}
	return ids, nil
}

// OpenSession opens a wallet store and registers a new session over it.
func (w *Wallet) OpenSession(walletID string, passphrase []byte, st record.SessionType) (uuid.UUID, error) {
	const op errors.Op = "wallet.OpenSession"
	db, err := walletdb.Open(keyledger.WalletPath(w.dataDir, walletID), passphrase)
	if err != nil {
		return uuid.UUID{}, errors.E(op, err)
	}
	sess := Session{ID: uuid.New(), Type: st, DB: db}
	w.sessions.AddOrUpdate(sess)
	return sess.ID, nil
}

// CloseSession drops the session and closes its store handle.
func (w *Wallet) CloseSession(id uuid.UUID) error {
	const op errors.Op = "wallet.CloseSession"
	sess, err := w.session(op, id)
	if err != nil {
		return err
	}
	w.sessions.Delete(id)
	return sess.DB.Close()
}

// Addresses returns the stealth address of every key set in the session's
// wallet.
func (w *Wallet) Addresses(id uuid.UUID) ([]string, error) {
	const op errors.Op = "wallet.Addresses"
	sess, err := w.session(op, id)
	if err != nil {
		return nil, err
	}
	addrs, err := keyledger.Addresses(sess.DB)
	if err != nil {
		return nil, w.fail(id, errors.E(op, err))
	}
	return addrs, nil
}

// KeySetInfo is the non-secret projection of a persisted key set.
type KeySetInfo struct {
	KeyPath        string
	StealthAddress string
}

// KeySets lists the session wallet's key sets without their secrets.
func (w *Wallet) KeySets(id uuid.UUID) ([]KeySetInfo, error) {
	const op errors.Op = "wallet.KeySets"
	sess, err := w.session(op, id)
	if err != nil {
		return nil, err
	}
	sets, err := sess.DB.KeySets()
	if err != nil {
		return nil, w.fail(id, errors.E(op, err))
	}
	infos := make([]KeySetInfo, 0, len(sets))
	for i := range sets {
		infos = append(infos, KeySetInfo{
			KeyPath:        sets[i].KeyPath,
			StealthAddress: sets[i].StealthAddress,
		})
		sets[i].Zero()
	}
	return infos, nil
}

// LastKeySet returns the most recent key set's non-secret fields.
func (w *Wallet) LastKeySet(id uuid.UUID) (*KeySetInfo, error) {
	const op errors.Op = "wallet.LastKeySet"
	sess, err := w.session(op, id)
	if err != nil {
		return nil, err
	}
	ks, err := sess.DB.LastKeySet()
	if err != nil {
		return nil, w.fail(id, errors.E(op, err))
	}
	defer ks.Zero()
	return &KeySetInfo{KeyPath: ks.KeyPath, StealthAddress: ks.StealthAddress}, nil
}

// NextKeySet advances the wallet's receive path once a transaction exists
// and returns the address to hand out.
func (w *Wallet) NextKeySet(id uuid.UUID) (string, error) {
	const op errors.Op = "wallet.NextKeySet"
	sess, err := w.session(op, id)
	if err != nil {
		return "", err
	}
	addr, err := keyledger.NextKeySet(sess.DB, w.net)
	if err != nil {
		return "", w.fail(id, errors.E(op, err))
	}
	return addr, nil
}

// AddKeySet derives and persists a key set under the next account index.
func (w *Wallet) AddKeySet(id uuid.UUID) error {
	const op errors.Op = "wallet.AddKeySet"
	sess, err := w.session(op, id)
	if err != nil {
		return err
	}
	if err := keyledger.AddKeySet(sess.DB, w.net); err != nil {
		return w.fail(id, errors.E(op, err))
	}
	return nil
}

// AvailableBalance returns the session wallet's spendable balance.
func (w *Wallet) AvailableBalance(id uuid.UUID) (uint64, error) {
	const op errors.Op = "wallet.AvailableBalance"
	sess, err := w.session(op, id)
	if err != nil {
		return 0, err
	}
	spend, scan, err := w.unlock(&sess)
	if err != nil {
		return 0, w.fail(id, errors.E(op, err))
	}
	defer spend.Zero()
	defer scan.Zero()
	balance, err := available(sess.DB, scan)
	if err != nil {
		return 0, w.fail(id, errors.E(op, err))
	}
	return balance, nil
}

// History returns the wallet's ordered balance sheet.
func (w *Wallet) History(id uuid.UUID) ([]BalanceSheet, error) {
	const op errors.Op = "wallet.History"
	sess, err := w.session(op, id)
	if err != nil {
		return nil, err
	}
	spend, scan, err := w.unlock(&sess)
	if err != nil {
		return nil, w.fail(id, errors.E(op, err))
	}
	defer spend.Zero()
	defer scan.Zero()
	sheets, err := history(sess.DB, scan)
	if err != nil {
		return nil, w.fail(id, errors.E(op, err))
	}
	return sheets, nil
}

// TotalAmount sums the cached change of every send from address.
func (w *Wallet) TotalAmount(id uuid.UUID, address string) (uint64, error) {
	const op errors.Op = "wallet.TotalAmount"
	sess, err := w.session(op, id)
	if err != nil {
		return 0, err
	}
	total, err := totalAmount(sess.DB, address)
	if err != nil {
		return 0, w.fail(id, errors.E(op, err))
	}
	return total, nil
}

// Count returns the number of stored wallet transactions.
func (w *Wallet) Count(id uuid.UUID) (int, error) {
	const op errors.Op = "wallet.Count"
	sess, err := w.session(op, id)
	if err != nil {
		return 0, err
	}
	txs, err := sess.DB.WalletTxs()
	if err != nil {
		return 0, w.fail(id, errors.E(op, err))
	}
	return len(txs), nil
}

// ReceivePayment fetches the outputs published under paymentID, keeps those
// addressed to this wallet, and records the receipt.  A payment id already
// stored as a receive fails with DuplicatePayment.
func (w *Wallet) ReceivePayment(ctx context.Context, id uuid.UUID, paymentID string) error {
	const op errors.Op = "wallet.ReceivePayment"
	sess, err := w.session(op, id)
	if err != nil {
		return err
	}

	txID, err := parsePaymentID(paymentID)
	if err != nil {
		return w.fail(id, errors.E(op, err))
	}

	stored, err := sess.DB.WalletTxs()
	if err != nil {
		return w.fail(id, errors.E(op, err))
	}
	for i := range stored {
		if stored[i].WalletType == record.Receive && stored[i].TxID == txID {
			return w.fail(id, errors.E(op, errors.DuplicatePayment, "payment id already received"))
		}
	}

	vouts, err := w.node.Outputs(ctx, paymentID)
	if err != nil {
		return w.fail(id, errors.E(op, err))
	}

	spend, scan, err := w.unlock(&sess)
	if err != nil {
		return w.fail(id, errors.E(op, err))
	}
	defer spend.Zero()
	defer scan.Zero()

	kept, err := scanOutputs(spend, scan, vouts)
	if err != nil {
		return w.fail(id, errors.E(op, err))
	}
	if len(kept) == 0 {
		return w.fail(id, errors.E(op, errors.NotExist, "no outputs addressed to this wallet"))
	}

	recv := record.WalletTx{
		ID:         uuid.New(),
		TxID:       txID,
		DateTime:   w.clock.Now(),
		WalletType: record.Receive,
		Memo:       kept[0].Payload.Memo,
	}
	for i := range kept {
		recv.Balance += kept[i].Payload.Amount
		recv.Vout = append(recv.Vout, kept[i].Vout)
	}
	if err := sess.DB.InsertWalletTx(&recv); err != nil {
		return w.fail(id, errors.E(op, err))
	}
	w.sessions.ClearLastError(id)
	log.Infof("received %d output(s) under payment %s", len(kept), paymentID)
	return nil
}

// CreatePayment runs change calculation and the full transaction build for
// the session's staged draft.  On success the built transaction and its
// wallet record are persisted and the merged draft is stored back on the
// session.
func (w *Wallet) CreatePayment(ctx context.Context, id uuid.UUID) error {
	const op errors.Op = "wallet.CreatePayment"
	sess, err := w.session(op, id)
	if err != nil {
		return err
	}
	draft := &sess.WalletTx
	if draft.Payment == 0 {
		return w.fail(id, errors.E(op, errors.Invalid, "draft has no payment amount"))
	}
	if draft.SenderAddress == "" || draft.RecipientAddress == "" {
		return w.fail(id, errors.E(op, errors.Invalid, "draft is missing sender or recipient address"))
	}
	draft.ID = sess.ID

	if err := w.calculateChange(&sess); err != nil {
		return w.fail(id, errors.E(op, err))
	}
	if _, err := w.build(ctx, &sess); err != nil {
		return w.fail(id, errors.E(op, err))
	}
	w.sessions.AddOrUpdate(sess)
	w.sessions.ClearLastError(id)
	return nil
}

// Send submits the session's built transaction to the node.  Any transport
// failure or rejection rolls the persisted rows back and records the error.
func (w *Wallet) Send(ctx context.Context, id uuid.UUID) error {
	const op errors.Op = "wallet.Send"
	sess, err := w.session(op, id)
	if err != nil {
		return err
	}
	tx, err := sess.DB.FetchTransaction(sess.ID)
	if err != nil {
		return w.fail(id, errors.E(op, err))
	}

	accepted, err := w.node.Submit(ctx, tx)
	if err == nil && !accepted {
		err = errors.E(errors.RPC, "node rejected transaction")
	}
	if err != nil {
		if rbErr := rollBackOne(&sess); rbErr != nil {
			log.Errorf("rollback after failed send: %v", rbErr)
		}
		return w.fail(id, errors.E(op, err))
	}

	sess.WalletTx.Spent = true
	if err := sess.DB.UpdateWalletTx(&sess.WalletTx); err != nil {
		return w.fail(id, errors.E(op, err))
	}
	w.sessions.AddOrUpdate(sess)
	w.sessions.ClearLastError(id)
	log.Infof("sent transaction %x", tx.TxnID[:8])
	return nil
}

// parsePaymentID decodes the 64-hex-character payment id.
func parsePaymentID(paymentID string) ([32]byte, error) {
	var txID [32]byte
	raw, err := hex.DecodeString(paymentID)
	if err != nil || len(raw) != len(txID) {
		return txID, errors.E(errors.Encoding, "payment id must be 64 hex characters")
	}
	copy(txID[:], raw)
	return txID, nil
}

// WaitForNode blocks until the node answers a peer query, polling once per
// second.  It is used at daemon startup before sessions are accepted.
func (w *Wallet) WaitForNode(ctx context.Context) (*client.PeerInfo, error) {
	const op errors.Op = "wallet.WaitForNode"
	for {
		info, err := w.node.Peer(ctx)
		if err == nil {
			return info, nil
		}
		if errors.Is(errors.Cancelled, err) {
			return nil, errors.E(op, err)
		}
		select {
		case <-ctx.Done():
			return nil, errors.E(op, errors.Cancelled, ctx.Err())
		case <-time.After(time.Second):
		}
	}
}
