// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/pingpongsneak/bamboo/errors"
	"github.com/pingpongsneak/bamboo/record"
	"github.com/pingpongsneak/bamboo/walletdb"
)

// The wallet keeps a single spendable coin: each send consumes the previous
// change output in full and produces a new one.  Available balance is
// therefore the decrypted change of the most recent send, or the sum of
// received outputs when nothing has been sent yet.  This is a model
// assumption of the whole wallet, not a general balance computation.

// BalanceSheet is one display row of the wallet's money-in/money-out
// history.
type BalanceSheet struct {
	DateTime string
	Memo     string
	MoneyIn  uint64
	MoneyOut uint64
	Fee      uint64
	Balance  uint64
	TxID     [32]byte
}

// available computes the spendable balance for the store.
func available(db *walletdb.DB, scan *secp256k1.ModNScalar) (uint64, error) {
	const op errors.Op = "wallet.available"

	txs, err := db.WalletTxs()
	if err != nil {
		return 0, errors.E(op, err)
	}

	var received uint64
	var lastSend *record.WalletTx
	for i := range txs {
		switch txs[i].WalletType {
		case record.Receive:
			for j := range txs[i].Vout {
				payload, err := decryptPayload(scan, &txs[i].Vout[j])
				if err != nil {
					return 0, errors.E(op, err)
				}
				received += payload.Amount
			}
		case record.Send:
			lastSend = &txs[i]
		}
	}

	if lastSend == nil {
		return received, nil
	}
	if len(lastSend.Vout) != 3 {
		return 0, errors.E(op, errors.Bug, "send transaction without three outputs")
	}
	payload, err := decryptPayload(scan, &lastSend.Vout[2])
	if err != nil {
		return 0, errors.E(op, err)
	}
	return payload.Amount, nil
}

// totalAmount sums the cached change of every send originated by address.
func totalAmount(db *walletdb.DB, address string) (uint64, error) {
	const op errors.Op = "wallet.totalAmount"
	txs, err := db.WalletTxs()
	if err != nil {
		return 0, errors.E(op, err)
	}
	var total uint64
	for i := range txs {
		if txs[i].SenderAddress == address {
			total += txs[i].Change
		}
	}
	return total, nil
}

// history folds the stored transactions into ordered display rows.  Receives
// add money in; sends subtract what left the wallet, which is the previously
// held amount minus the change that came back and the fee.
func history(db *walletdb.DB, scan *secp256k1.ModNScalar) ([]BalanceSheet, error) {
	const op errors.Op = "wallet.history"

	txs, err := db.WalletTxs()
	if err != nil {
		return nil, errors.E(op, err)
	}

	var sheets []BalanceSheet
	var running uint64
	for i := range txs {
		tx := &txs[i]
		sheet := BalanceSheet{
			DateTime: tx.DateTime.UTC().Format("2006-01-02 15:04:05"),
			Memo:     tx.Memo,
			TxID:     tx.TxID,
		}
		switch tx.WalletType {
		case record.Receive:
			var in uint64
			for j := range tx.Vout {
				payload, err := decryptPayload(scan, &tx.Vout[j])
				if err != nil {
					return nil, errors.E(op, err)
				}
				in += payload.Amount
			}
			running += in
			sheet.MoneyIn = in
		case record.Send:
			out := tx.Payment
			running = running - tx.Payment - tx.Fee
			sheet.MoneyOut = out
			sheet.Fee = tx.Fee
		}
		sheet.Balance = running
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}
