// Copyright (c) 2023-2026 The Bamboo developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/pingpongsneak/bamboo/record"
	"github.com/pingpongsneak/bamboo/walletdb"
)

// Session is the in-flight state of one wallet conversation: the open store
// handle, the current wallet transaction draft, and the last structured
// failure.  Sessions are values; the store holds the latest snapshot per id
// and every update goes through the merge path.
type Session struct {
	ID        uuid.UUID
	Type      record.SessionType
	DB        *walletdb.DB
	WalletTx  record.WalletTx
	LastError json.RawMessage
}

// SessionStore maps session ids to their latest snapshot.  Reads return a
// copy; writes merge field-by-field into the incumbent, so concurrent
// writers cannot interleave partial drafts.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]Session)}
}

// Get returns a snapshot of the session with the given id.
func (s *SessionStore) Get(id uuid.UUID) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// AddOrUpdate inserts the session if its id is unknown, otherwise merges the
// incoming draft into the existing snapshot.  The merged result is returned.
func (s *SessionStore) AddOrUpdate(incoming Session) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.sessions[incoming.ID]
	if !ok {
		incoming.WalletTx.ID = incoming.ID
		s.sessions[incoming.ID] = incoming
		return incoming
	}
	merged := merge(existing, incoming)
	s.sessions[incoming.ID] = merged
	return merged
}

// merge copies the draft fields of patch into old and returns the new
// snapshot.  The session identity, store handle, and type always come from
// the incumbent; the draft id is forced to the session id.
func merge(old, patch Session) Session {
	next := old
	w := &next.WalletTx
	p := &patch.WalletTx

	w.Balance = p.Balance
	w.Change = p.Change
	w.DateTime = p.DateTime
	w.Fee = p.Fee
	w.Memo = p.Memo
	w.Payment = p.Payment
	w.Reward = p.Reward
	w.RecipientAddress = p.RecipientAddress
	w.SenderAddress = p.SenderAddress
	w.Spent = p.Spent
	w.TxID = p.TxID
	w.WalletType = p.WalletType
	w.ID = old.ID
	if len(p.Vout) > 0 {
		w.Vout = p.Vout
	}
	// An empty Spending slot in the patch leaves the incumbent's selection
	// intact; CalculateChange is the only writer of this field.
	if p.Spending.P != ([33]byte{}) {
		w.Spending = p.Spending
	}
	return next
}

// Delete removes the session snapshot.  The store handle is not closed;
// ownership of the database stays with the caller.
func (s *SessionStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// sessionError is the structured object recorded on every failure.
type sessionError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SetLastError records a structured {success:false, message} object on the
// session.
func (s *SessionStore) SetLastError(id uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	raw, jerr := json.Marshal(&sessionError{Success: false, Message: err.Error()})
	if jerr != nil {
		raw = []byte(`{"success":false,"message":"unknown error"}`)
	}
	sess.LastError = raw
	s.sessions[id] = sess
}

// ClearLastError removes any recorded failure from the session.
func (s *SessionStore) ClearLastError(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.LastError = nil
	s.sessions[id] = sess
}
