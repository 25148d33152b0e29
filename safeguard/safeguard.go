// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package safeguard maintains the pool of historical transactions the ring
// assembler draws decoys from.  The pool is an injected dependency of the
// transaction builder: producers feed it from the node, consumers take
// snapshots and check readiness.
package safeguard

import (
	"context"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/pingpongsneak/bamboo/record"
)

var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}

// DecoyProvider supplies ring decoys.  Snapshot returns the current pool
// contents; Ready reports whether the pool has finished its initial
// download and may be drawn from.
type DecoyProvider interface {
	Snapshot() []record.Transaction
	Ready() bool
}

// Feed is the production DecoyProvider.  A fetch function pulls pages of
// historical transactions from the node; Run polls it until cancelled.
type Feed struct {
	mu    sync.RWMutex
	pool  []record.Transaction
	ready bool
}

// NewFeed returns an empty, not yet ready feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Snapshot returns a copy of the current pool.
func (f *Feed) Snapshot() []record.Transaction {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]record.Transaction, len(f.pool))
	copy(out, f.pool)
	return out
}

// Ready reports whether the initial download has completed.
func (f *Feed) Ready() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ready
}

// Merge appends transactions to the pool, dropping entries whose id is
// already present, and marks the feed ready.
func (f *Feed) Merge(txs []record.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[[32]byte]struct{}, len(f.pool))
	for i := range f.pool {
		seen[f.pool[i].TxnID] = struct{}{}
	}
	for i := range txs {
		if _, ok := seen[txs[i].TxnID]; ok {
			continue
		}
		seen[txs[i].TxnID] = struct{}{}
		f.pool = append(f.pool, txs[i])
	}
	f.ready = true
}

// Run polls fetch at the given interval until ctx is cancelled, merging each
// page into the pool.  Fetch failures are logged and retried on the next
// tick; the feed stays not-ready until the first successful page.
func (f *Feed) Run(ctx context.Context, interval time.Duration,
	fetch func(context.Context) ([]record.Transaction, error)) {

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		txs, err := fetch(ctx)
		if err != nil {
			log.Warnf("safeguard fetch: %v", err)
		} else {
			f.Merge(txs)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
