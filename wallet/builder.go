// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"crypto/rand"
	"io"
	"sort"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pingpongsneak/bamboo/crypto"
	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/internal/uniformprng"
	"github.com/pingpongsneak/bamboo/record"
)

const (
	// txVersion is the only transaction version built by this wallet.
	txVersion = 1

	// feeNByte is the assumed serialized size used for fee purposes.
	feeNByte = 6000

	// feeAtomicPerByte is the fee rate of 1.2e-8 coins per byte expressed
	// in atomic units (1e9 atomic units per coin).
	feeAtomicPerByte = 12

	// outCommitCount is the number of output commitments: fee, payment,
	// change.
	outCommitCount = 3

	// feeLockOffset and changeLockOffset are the locktime horizons applied
	// to the fee and change outputs.
	feeLockOffset    = 21 * time.Hour
	changeLockOffset = 5 * time.Minute

	// opCheckLockTimeVerify is the script opcode enforcing an output's
	// locktime.
	opCheckLockTimeVerify = 0xb1

	// safeguardPollInterval is the cadence of the pre-build readiness wait
	// on the decoy provider.
	safeguardPollInterval = 100 * time.Millisecond
)

// feeFor returns the fee in atomic units for a transaction of nByte bytes.
func feeFor(nByte uint64) uint64 {
	return nByte * feeAtomicPerByte
}

// lockTimeScript builds `OP_PUSH <L> OP_CHECKLOCKTIMEVERIFY` for the 32-bit
// unix locktime.
func lockTimeScript(lockTime uint32) []byte {
	return []byte{
		0x04,
		byte(lockTime), byte(lockTime >> 8), byte(lockTime >> 16), byte(lockTime >> 24),
		opCheckLockTimeVerify,
	}
}

// changeSlot returns the decrypted amount of the transaction's change slot:
// output 0 while no change has been cached, output 2 afterwards.
func changeSlot(scan *secp256k1.ModNScalar, tx *record.WalletTx) (uint64, *record.Vout, error) {
	idx := 0
	if tx.Change != 0 {
		idx = 2
	}
	if idx >= len(tx.Vout) {
		return 0, nil, errors.E(errors.Bug, "transaction has no output at its change slot")
	}
	payload, err := decryptPayload(scan, &tx.Vout[idx])
	if err != nil {
		return 0, nil, err
	}
	return payload.Amount, &tx.Vout[idx], nil
}

// calculateChange selects the output the session will spend and fills the
// draft's balance, fee, change, and spending fields.  The stored draft is
// not persisted here; Build does that once the transaction exists.
func (w *Wallet) calculateChange(sess *Session) error {
	const op errors.Op = "wallet.CalculateChange"

	spend, scan, err := w.unlock(sess)
	if err != nil {
		return errors.E(op, err)
	}
	defer spend.Zero()
	defer scan.Zero()

	balance, err := available(sess.DB, scan)
	if err != nil {
		return errors.E(op, err)
	}

	draft := &sess.WalletTx
	var fee uint64
	if sess.Type == record.SessionCoin {
		fee = feeFor(feeNByte)
	}
	if balance < draft.Payment+fee {
		return errors.E(op, errors.InsufficientFunds,
			errors.Errorf("balance %d does not cover payment %d plus fee %d",
				balance, draft.Payment, fee))
	}

	txs, err := sess.DB.WalletTxs()
	if err != nil {
		return errors.E(op, err)
	}

	type candidate struct {
		change uint64
		vout   *record.Vout
		tx     *record.WalletTx
	}
	var candidates []candidate
	for i := range txs {
		change, vout, err := changeSlot(scan, &txs[i])
		if err != nil {
			return errors.E(op, err)
		}
		if change >= draft.Payment+fee {
			candidates = append(candidates, candidate{change: change, vout: vout, tx: &txs[i]})
		}
	}
	if len(candidates) == 0 {
		return errors.E(op, errors.InsufficientFunds, "no single output covers payment plus fee")
	}

	// Order descending by change and take the tail: the smallest output
	// that still covers payment plus fee is spent.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].change > candidates[j].change
	})
	chosen := candidates[len(candidates)-1]

	draft.Balance = balance
	draft.Fee = fee
	if sess.Type != record.SessionCoinstake {
		draft.Reward = 0
	}
	draft.Change = balance - draft.Payment - fee
	draft.Spending = *chosen.vout
	draft.Vout = chosen.tx.Vout
	draft.Spent = balance == draft.Payment
	return nil
}

// waitForSafeguard blocks until the decoy provider reports readiness,
// polling at a fixed cadence.  Only explicit cancellation interrupts the
// wait.
func (w *Wallet) waitForSafeguard(ctx context.Context) error {
	const op errors.Op = "wallet.waitForSafeguard"
	for !w.decoys.Ready() {
		select {
		case <-ctx.Done():
			return errors.E(op, errors.Cancelled, ctx.Err())
		case <-time.After(safeguardPollInterval):
		}
	}
	return nil
}

// sealPayload seals an amount/blind/memo payload to a scan public key.
func sealPayload(scanPub [crypto.PointBytes]byte, amount uint64,
	blind *secp256k1.ModNScalar, memo string) ([]byte, error) {

	payload := record.OutputPayload{Amount: amount, Memo: memo}
	payload.Blind = blind.Bytes()
	plaintext, err := msgpack.Marshal(&payload)
	if err != nil {
		return nil, errors.E(errors.Encoding, err)
	}
	return crypto.BoxSeal(scanPub, plaintext)
}

// makeStealthVout derives a fresh one-time key for addr and assembles one
// confidential output.
func makeStealthVout(addr *crypto.StealthAddress, exposed uint64,
	commit [crypto.PointBytes]byte, lockTime uint32, sealed []byte,
	coinType record.CoinType) (record.Vout, error) {

	ephem, err := crypto.RandomScalar()
	if err != nil {
		return record.Vout{}, err
	}
	defer ephem.Zero()
	onetimePub, payment, err := crypto.CreatePayment(addr, ephem)
	if err != nil {
		return record.Vout{}, err
	}

	v := record.Vout{
		A: exposed,
		C: commit,
		E: payment.EphemPub,
		L: lockTime,
		N: sealed,
		P: onetimePub,
		T: coinType,
	}
	if lockTime != 0 {
		v.S = lockTimeScript(lockTime)
	}
	return v, nil
}

// offsets serializes the ring members into the Vin KOffsets buffer.  Both
// the commitment and the key of column i are written at positions computed
// from the same counter, so successive columns overwrite the previous
// column's key; the resulting layout is all commitments followed by the
// final column's key.  Peers parse exactly this byte pattern, so it is
// preserved verbatim; flagged for review.
func offsets(pcmIn, pkIn [][crypto.PointBytes]byte) []byte {
	out := make([]byte, nRows*nCols*crypto.PointBytes)
	k := 0
	for i := 0; i < nCols; i++ {
		copy(out[(i+k)*crypto.PointBytes:], pcmIn[i][:])
		copy(out[(i+k)*crypto.PointBytes+crypto.PointBytes:], pkIn[i][:])
	}
	return out
}

// build assembles, proves, signs, and persists the session's transaction.
func (w *Wallet) build(ctx context.Context, sess *Session) (*record.Transaction, error) {
	const op errors.Op = "wallet.Build"

	if err := w.waitForSafeguard(ctx); err != nil {
		return nil, errors.E(op, err)
	}

	draft := &sess.WalletTx
	senderAddr, err := crypto.DecodeStealthAddress(draft.SenderAddress)
	if err != nil {
		return nil, errors.E(op, err)
	}
	recipientAddr, err := crypto.DecodeStealthAddress(draft.RecipientAddress)
	if err != nil {
		return nil, errors.E(op, err)
	}

	spend, scan, err := w.unlock(sess)
	if err != nil {
		return nil, errors.E(op, err)
	}
	defer spend.Zero()
	defer scan.Zero()

	spendingPayload, err := decryptPayload(scan, &draft.Spending)
	if err != nil {
		return nil, errors.E(op, err)
	}
	defer func() { spendingPayload.Blind = [32]byte{} }()

	prng, err := uniformprng.RandSource(rand.Reader)
	if err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	rng, err := assembleRing(prng, spend, scan, &draft.Spending, spendingPayload, w.decoys.Snapshot())
	if err != nil {
		return nil, errors.E(op, err)
	}
	defer rng.zero()

	// Output blinds pass through the blind switch so input and output
	// blind spaces cannot be correlated.
	blindOut := make([]*secp256k1.ModNScalar, outCommitCount)
	amounts := [outCommitCount]uint64{draft.Fee, draft.Payment, draft.Change}
	for i := range blindOut {
		r, err := crypto.RandomScalar()
		if err != nil {
			return nil, errors.E(op, err)
		}
		blindOut[i] = crypto.BlindSwitch(amounts[i], r)
		r.Zero()
		defer blindOut[i].Zero()
	}

	pcmOut := make([][crypto.PointBytes]byte, outCommitCount)
	for i := range pcmOut {
		pcmOut[i] = crypto.Commit(amounts[i], blindOut[i])
	}

	outSum, err := crypto.CommitSum(pcmOut, nil)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if !crypto.VerifyCommitSum([][crypto.PointBytes]byte{outSum}, pcmOut) {
		return nil, errors.E(op, errors.CryptoVerify, "output commitment sum does not balance")
	}

	var bpNonce [32]byte
	if _, err := io.ReadFull(rand.Reader, bpNonce[:]); err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	proof, err := crypto.BulletproofGen(draft.Change, blindOut[2], bpNonce)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if !crypto.BulletproofVerify(pcmOut[2], proof) {
		return nil, errors.E(op, errors.CryptoVerify, "change range proof fails verification")
	}

	blindSum := new(secp256k1.ModNScalar)
	defer blindSum.Zero()
	blinds := append([]*secp256k1.ModNScalar{rng.blind0}, blindOut...)
	if err := crypto.MLSAGPrepare(rng.m, blindSum, nCols, nRows, rng.pcmIn, pcmOut, blinds); err != nil {
		return nil, errors.E(op, err)
	}

	var seed, preimage [32]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	if _, err := io.ReadFull(rand.Reader, preimage[:]); err != nil {
		return nil, errors.E(op, errors.Crypto, err)
	}
	sk := []*secp256k1.ModNScalar{rng.sk0, blindSum}
	kimage, pc, ss, err := crypto.MLSAGGenerate(rng.m, sk, rng.index, seed, preimage, nCols, nRows)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if !crypto.MLSAGVerify(preimage, rng.m, kimage, pc, ss, nCols, nRows) {
		return nil, errors.E(op, errors.CryptoVerify, "ring signature fails verification")
	}

	now := w.clock.Now()
	feeLock := uint32(now.Add(feeLockOffset).Unix())
	changeLock := uint32(now.Add(changeLockOffset).Unix())

	// Fee output.  Coin sessions expose the fee; coinstake sessions expose
	// the reward and mark the output coinbase.
	feeExposed := draft.Fee
	feeType := record.Fee
	if sess.Type == record.SessionCoinstake {
		feeExposed = draft.Reward
		feeType = record.Coinbase
	}
	feeSealed, err := sealPayload(senderAddr.ScanPub, draft.Fee, blindOut[0], "")
	if err != nil {
		return nil, errors.E(op, err)
	}
	feeVout, err := makeStealthVout(senderAddr, feeExposed, pcmOut[0], feeLock, feeSealed, feeType)
	if err != nil {
		return nil, errors.E(op, err)
	}

	// Payment output.  The amount stays sealed except for coinstake.
	payExposed := uint64(0)
	payType := record.Coin
	if sess.Type == record.SessionCoinstake {
		payExposed = draft.Payment
		payType = record.Coinstake
	}
	paySealed, err := sealPayload(recipientAddr.ScanPub, draft.Payment, blindOut[1], draft.Memo)
	if err != nil {
		return nil, errors.E(op, err)
	}
	payVout, err := makeStealthVout(recipientAddr, payExposed, pcmOut[1], 0, paySealed, payType)
	if err != nil {
		return nil, errors.E(op, err)
	}

	// Change output, locked five minutes out.
	changeSealed, err := sealPayload(senderAddr.ScanPub, draft.Change, blindOut[2], "")
	if err != nil {
		return nil, errors.E(op, err)
	}
	changeVout, err := makeStealthVout(senderAddr, 0, pcmOut[2], changeLock, changeSealed, record.Coin)
	if err != nil {
		return nil, errors.E(op, err)
	}

	tx := &record.Transaction{
		Ver: txVersion,
		Mix: nCols,
		Bp:  proof.Serialize(),
		Rct: record.RctRecord{I: preimage, M: rng.m, P: pc, S: ss},
		Vin: record.VinRecord{KImage: kimage, KOffsets: offsets(rng.pcmIn, rng.pkIn)},
		Vout: []record.Vout{
			feeVout,
			payVout,
			changeVout,
		},
		ID: sess.ID,
	}
	tx.TxnID = tx.Hash()

	if err := sess.DB.InsertTransaction(tx); err != nil {
		return nil, errors.E(op, err)
	}

	draft.TxID = tx.TxnID
	draft.WalletType = record.Send
	draft.DateTime = now
	draft.Vout = tx.Vout
	if err := sess.DB.InsertWalletTx(draft); err != nil {
		sess.DB.DeleteTransaction(sess.ID)
		return nil, errors.E(op, err)
	}

	log.Infof("built transaction %x for session %s", tx.TxnID[:8], sess.ID)
	return tx, nil
}

// rollBackOne deletes the transaction and wallet transaction rows keyed by
// the session id.
func rollBackOne(sess *Session) error {
	const op errors.Op = "wallet.RollBackOne"
	if err := sess.DB.DeleteTransaction(sess.ID); err != nil {
		return errors.E(op, err)
	}
	if err := sess.DB.DeleteWalletTx(sess.ID); err != nil {
		return errors.E(op, err)
	}
	return nil
}
