// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pingpongsneak/bamboo/crypto"
	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/internal/netparams"
	"github.com/pingpongsneak/bamboo/keyledger"
	"github.com/pingpongsneak/bamboo/record"
	"github.com/pingpongsneak/bamboo/rpc/client"
	"github.com/pingpongsneak/bamboo/safeguard"
)

// The BIP-39 reference vectors used for the two test wallets.
const (
	senderMnemonic = "abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon about"
	recipientMnemonic = "legal winner thank year wave sausage worth useful " +
		"legal winner thank yellow"
	testPassphrase = "TREZOR"
)

// fakeNode is an in-memory NodeClient.
type fakeNode struct {
	outputs   []record.Vout
	submitErr error
	reject    bool
	submitted []*record.Transaction
}

func (f *fakeNode) Peer(context.Context) (*client.PeerInfo, error) {
	return &client.PeerInfo{Name: "testnode", Version: "0.0.0"}, nil
}

func (f *fakeNode) Outputs(context.Context, string) ([]record.Vout, error) {
	return f.outputs, nil
}

func (f *fakeNode) Safeguard(context.Context) ([]record.Transaction, error) {
	return nil, nil
}

func (f *fakeNode) Submit(_ context.Context, tx *record.Transaction) (bool, error) {
	if f.submitErr != nil {
		return false, f.submitErr
	}
	f.submitted = append(f.submitted, tx)
	return !f.reject, nil
}

// testKeys derives a throwaway spend/scan pair.
func testKeys(t *testing.T) (spend, scan *secp256k1.ModNScalar) {
	t.Helper()
	spend, err := crypto.RandomScalar()
	require.NoError(t, err)
	scan, err = crypto.RandomScalar()
	require.NoError(t, err)
	return spend, scan
}

// craftOutputFor builds a confidential output addressed to the holder of
// the given secrets, returning it with its decrypted payload.
func craftOutputFor(t *testing.T, spendPriv, scanPriv *secp256k1.ModNScalar,
	amount uint64, memo string) (record.Vout, record.OutputPayload) {

	t.Helper()
	addr := crypto.NewStealthAddress(crypto.PubKeyOf(spendPriv),
		crypto.PubKeyOf(scanPriv), netparams.MainNetParams.StealthAddrID)
	return craftOutput(t, addr, amount, memo)
}

// craftOutput acts as a remote sender paying amount to addr.
func craftOutput(t *testing.T, addr *crypto.StealthAddress, amount uint64,
	memo string) (record.Vout, record.OutputPayload) {

	t.Helper()
	blind, err := crypto.RandomScalar()
	require.NoError(t, err)
	ephem, err := crypto.RandomScalar()
	require.NoError(t, err)

	onetimePub, payment, err := crypto.CreatePayment(addr, ephem)
	require.NoError(t, err)

	payload := record.OutputPayload{Amount: amount, Memo: memo}
	payload.Blind = blind.Bytes()
	plaintext, err := msgpack.Marshal(&payload)
	require.NoError(t, err)
	sealed, err := crypto.BoxSeal(addr.ScanPub, plaintext)
	require.NoError(t, err)

	return record.Vout{
		A: 0,
		C: crypto.Commit(amount, blind),
		E: payment.EphemPub,
		N: sealed,
		P: onetimePub,
		T: record.Coin,
	}, payload
}

// makeDecoyPool builds n historical transactions with two outputs each.
func makeDecoyPool(t *testing.T, n int) []record.Transaction {
	t.Helper()
	pool := make([]record.Transaction, n)
	for i := range pool {
		var v [2]record.Vout
		for j := range v {
			owner, err := crypto.RandomScalar()
			require.NoError(t, err)
			blind, err := crypto.RandomScalar()
			require.NoError(t, err)
			v[j] = record.Vout{
				C: crypto.Commit(uint64(1000*(i+j+1)), blind),
				P: crypto.PubKeyOf(owner),
				T: record.Coin,
			}
		}
		pool[i] = record.Transaction{Vout: v[:]}
		pool[i].TxnID = pool[i].Hash()
	}
	return pool
}

// testHarness wires a wallet facade over temp storage, a fake node, and a
// ready decoy pool.
type testHarness struct {
	w      *Wallet
	node   *fakeNode
	sessID uuid.UUID
	addr   string
	clock  *clock.TestClock
}

func newTestHarness(t *testing.T, mnemonic string) *testHarness {
	t.Helper()

	feed := safeguard.NewFeed()
	feed.Merge(makeDecoyPool(t, 40))

	node := &fakeNode{}
	tc := clock.NewTestClock(time.Unix(1700000000, 0))
	w := New(&Config{
		DataDir: t.TempDir(),
		Net:     &netparams.MainNetParams,
		Node:    node,
		Decoys:  feed,
		Clock:   tc,
	})

	walletID, err := w.CreateWallet([]byte(mnemonic), []byte(testPassphrase))
	require.NoError(t, err)

	sessID, err := w.OpenSession(walletID, []byte(testPassphrase), record.SessionCoin)
	require.NoError(t, err)
	t.Cleanup(func() { w.CloseSession(sessID) })

	addrs, err := w.Addresses(sessID)
	require.NoError(t, err)
	require.Len(t, addrs, 1)

	return &testHarness{w: w, node: node, sessID: sessID, addr: addrs[0], clock: tc}
}

// receive funds the harness wallet with one confidential output.
func (h *testHarness) receive(t *testing.T, amount uint64, memo, paymentID string) {
	t.Helper()
	addr, err := crypto.DecodeStealthAddress(h.addr)
	require.NoError(t, err)
	vout, _ := craftOutput(t, addr, amount, memo)
	h.node.outputs = []record.Vout{vout}
	require.NoError(t, h.w.ReceivePayment(context.Background(), h.sessID, paymentID))
}

// stage places a payment draft on the session.
func (h *testHarness) stage(t *testing.T, payment uint64, memo, recipient string) {
	t.Helper()
	h.w.Sessions().AddOrUpdate(Session{
		ID: h.sessID,
		WalletTx: record.WalletTx{
			Payment:          payment,
			Memo:             memo,
			SenderAddress:    h.addr,
			RecipientAddress: recipient,
		},
	})
}

func paymentID(b byte) string {
	var raw [32]byte
	raw[0] = b
	return hex.EncodeToString(raw[:])
}

func TestFeeConstant(t *testing.T) {
	require.Equal(t, uint64(72000), feeFor(feeNByte))
}

func TestReceiveDecrypts(t *testing.T) {
	h := newTestHarness(t, senderMnemonic)
	h.receive(t, 1_000_000_000, "hi", paymentID(1))

	balance, err := h.w.AvailableBalance(h.sessID)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000_000), balance)

	count, err := h.w.Count(h.sessID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	sheets, err := h.w.History(h.sessID)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	require.Equal(t, uint64(1_000_000_000), sheets[0].MoneyIn)
	require.Equal(t, "hi", sheets[0].Memo)
}

func TestReceiveDuplicateRejected(t *testing.T) {
	h := newTestHarness(t, senderMnemonic)
	h.receive(t, 1_000_000_000, "hi", paymentID(1))

	addr, err := crypto.DecodeStealthAddress(h.addr)
	require.NoError(t, err)
	vout, _ := craftOutput(t, addr, 5, "again")
	h.node.outputs = []record.Vout{vout}

	err = h.w.ReceivePayment(context.Background(), h.sessID, paymentID(1))
	require.True(t, errors.Is(errors.DuplicatePayment, err), "got %v", err)
}

func TestReceiveIgnoresForeignOutputs(t *testing.T) {
	h := newTestHarness(t, senderMnemonic)

	// An output addressed to someone else never uncovers.
	spend, scan := testKeys(t)
	defer spend.Zero()
	defer scan.Zero()
	foreign, _ := craftOutputFor(t, spend, scan, 777, "")
	h.node.outputs = []record.Vout{foreign}

	err := h.w.ReceivePayment(context.Background(), h.sessID, paymentID(2))
	require.Error(t, err)

	balance, err := h.w.AvailableBalance(h.sessID)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestPaymentBalances(t *testing.T) {
	h := newTestHarness(t, senderMnemonic)
	recipient := newTestHarness(t, recipientMnemonic)

	h.receive(t, 10_000_000_000, "", paymentID(1))
	h.stage(t, 3_000_000_000, "for coffee", recipient.addr)

	require.NoError(t, h.w.CreatePayment(context.Background(), h.sessID))

	sess, ok := h.w.Sessions().Get(h.sessID)
	require.True(t, ok)
	draft := sess.WalletTx
	require.Equal(t, uint64(10_000_000_000), draft.Balance)
	require.Equal(t, uint64(72000), draft.Fee)
	require.Equal(t, uint64(6_999_928_000), draft.Change)
	require.False(t, draft.Spent)

	tx, err := sess.DB.FetchTransaction(h.sessID)
	require.NoError(t, err)
	require.Equal(t, uint16(1), tx.Ver)
	require.Equal(t, uint16(22), tx.Mix)
	require.Len(t, tx.Vout, 3)
	require.Equal(t, tx.Hash(), tx.TxnID)

	// The three output commitments balance against their own sum.
	pcmOut := [][33]byte{tx.Vout[0].C, tx.Vout[1].C, tx.Vout[2].C}
	sum, err := crypto.CommitSum(pcmOut, nil)
	require.NoError(t, err)
	require.True(t, crypto.VerifyCommitSum([][33]byte{sum}, pcmOut))

	// The change range proof verifies against the change commitment.
	proof, err := crypto.ParseRangeProof(tx.Bp)
	require.NoError(t, err)
	require.True(t, crypto.BulletproofVerify(tx.Vout[2].C, proof))

	// The ring signature verifies.
	require.True(t, crypto.MLSAGVerify(tx.Rct.I, tx.Rct.M, tx.Vin.KImage,
		tx.Rct.P, tx.Rct.S, nCols, nRows))

	// Fee output exposes the fee and locks 21 hours out; change locks 5
	// minutes out.
	now := uint32(h.clock.Now().Unix())
	require.Equal(t, uint64(72000), tx.Vout[0].A)
	require.Equal(t, record.Fee, tx.Vout[0].T)
	require.Equal(t, now+21*3600, tx.Vout[0].L)
	require.Equal(t, lockTimeScript(tx.Vout[0].L), tx.Vout[0].S)
	require.Zero(t, tx.Vout[1].A)
	require.Equal(t, record.Coin, tx.Vout[1].T)
	require.Zero(t, tx.Vout[1].L)
	require.Equal(t, now+5*60, tx.Vout[2].L)

	// The recipient's scanner uncovers the payment output and decrypts
	// amount and memo.
	recipSess, ok := recipient.w.Sessions().Get(recipient.sessID)
	require.True(t, ok)
	spend, scan, err := keyledger.Unlock(recipSess.DB, &netparams.MainNetParams)
	require.NoError(t, err)
	defer spend.Zero()
	defer scan.Zero()
	kept, err := scanOutputs(spend, scan, tx.Vout)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	require.Equal(t, uint64(3_000_000_000), kept[0].Payload.Amount)
	require.Equal(t, "for coffee", kept[0].Payload.Memo)

	// A new available-balance query returns the change.
	balance, err := h.w.AvailableBalance(h.sessID)
	require.NoError(t, err)
	require.Equal(t, uint64(6_999_928_000), balance)
}

func TestInsufficientFunds(t *testing.T) {
	h := newTestHarness(t, senderMnemonic)
	recipient := newTestHarness(t, recipientMnemonic)

	h.receive(t, 1_000_000_000, "", paymentID(1))
	h.stage(t, 2_000_000_000, "", recipient.addr)

	err := h.w.CreatePayment(context.Background(), h.sessID)
	require.True(t, errors.Is(errors.InsufficientFunds, err), "got %v", err)

	sess, ok := h.w.Sessions().Get(h.sessID)
	require.True(t, ok)
	require.Contains(t, string(sess.LastError), `"success":false`)

	_, err = sess.DB.FetchTransaction(h.sessID)
	require.True(t, errors.Is(errors.NotExist, err), "transaction must not persist")
}

func TestSendRollsBackOnFailure(t *testing.T) {
	h := newTestHarness(t, senderMnemonic)
	recipient := newTestHarness(t, recipientMnemonic)

	h.receive(t, 10_000_000_000, "", paymentID(1))
	h.stage(t, 3_000_000_000, "", recipient.addr)
	require.NoError(t, h.w.CreatePayment(context.Background(), h.sessID))

	h.node.submitErr = errors.E(errors.RPC, "connection refused")
	err := h.w.Send(context.Background(), h.sessID)
	require.Error(t, err)

	sess, ok := h.w.Sessions().Get(h.sessID)
	require.True(t, ok)
	require.NotNil(t, sess.LastError)

	// No Transaction or WalletTransaction row keyed by the session id
	// survives the rollback; the receive row is untouched.
	txs, err := sess.DB.Transactions()
	require.NoError(t, err)
	require.Empty(t, txs)

	wtxs, err := sess.DB.WalletTxs()
	require.NoError(t, err)
	require.Len(t, wtxs, 1)
	require.Equal(t, record.Receive, wtxs[0].WalletType)
}

func TestSendSuccess(t *testing.T) {
	h := newTestHarness(t, senderMnemonic)
	recipient := newTestHarness(t, recipientMnemonic)

	h.receive(t, 10_000_000_000, "", paymentID(1))
	h.stage(t, 3_000_000_000, "", recipient.addr)
	require.NoError(t, h.w.CreatePayment(context.Background(), h.sessID))
	require.NoError(t, h.w.Send(context.Background(), h.sessID))

	require.Len(t, h.node.submitted, 1)

	sess, _ := h.w.Sessions().Get(h.sessID)
	wtx, err := sess.DB.FetchWalletTx(h.sessID)
	require.NoError(t, err)
	require.True(t, wtx.Spent)
	require.Nil(t, sess.LastError)
}

func TestBuildWaitsForSafeguard(t *testing.T) {
	h := newTestHarness(t, senderMnemonic)
	recipient := newTestHarness(t, recipientMnemonic)

	h.receive(t, 10_000_000_000, "", paymentID(1))
	h.stage(t, 3_000_000_000, "", recipient.addr)

	// Swap in a provider that never becomes ready; a cancelled build must
	// fail with Cancelled and persist nothing.
	h.w.decoys = safeguard.NewFeed()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := h.w.CreatePayment(ctx, h.sessID)
	require.True(t, errors.Is(errors.Cancelled, err), "got %v", err)

	sess, _ := h.w.Sessions().Get(h.sessID)
	_, err = sess.DB.FetchTransaction(h.sessID)
	require.Error(t, err)
}

func TestTotalAmount(t *testing.T) {
	h := newTestHarness(t, senderMnemonic)
	recipient := newTestHarness(t, recipientMnemonic)

	h.receive(t, 10_000_000_000, "", paymentID(1))
	h.stage(t, 3_000_000_000, "", recipient.addr)
	require.NoError(t, h.w.CreatePayment(context.Background(), h.sessID))

	sess, _ := h.w.Sessions().Get(h.sessID)
	total, err := h.w.TotalAmount(h.sessID, sess.WalletTx.SenderAddress)
	require.NoError(t, err)
	require.Equal(t, uint64(6_999_928_000), total)
}
