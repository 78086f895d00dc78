// This file is part of overlay, a peer-to-peer overlay network library.
// Copyright (C) 2026 The overlay authors.
//
// overlay is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// overlay is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

package dispatch

import (
	"sync"
	"sync/atomic"

	"overlay/addr"
	"overlay/wire"
)

// PendingTable tracks outstanding requests awaiting a response, keyed
// by message id. A response frame is delivered to its waiter
// atomically with respect to other waiters: each id has its own slot,
// so resolving one id never blocks resolution of another.
type PendingTable struct {
	mu      sync.Mutex
	waiters map[uint64]*ResponseResult
	nextID  uint64
}

// NewPendingTable returns an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{waiters: make(map[uint64]*ResponseResult)}
}

// NextMessageID returns a process-unique, non-zero message id.
func (t *PendingTable) NextMessageID() uint64 {
	return atomic.AddUint64(&t.nextID, 1)
}

// Register installs r as the waiter for id. Overwrites any prior
// registration for the same id, which cannot legitimately happen since
// ids are minted fresh per request.
func (t *PendingTable) Register(id uint64, r *ResponseResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waiters[id] = r
}

// Resolve delivers frame to the waiter registered for frame's message
// id, if any, and removes the registration. Returns false if no
// waiter was registered (the response arrived after a failed send
// removed it, or for an id nobody is waiting on).
func (t *PendingTable) Resolve(frame *wire.Frame) bool {
	t.mu.Lock()
	r, ok := t.waiters[frame.ID]
	if ok {
		delete(t.waiters, frame.ID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	r.completeResponse(ResponseSuccess, frame)
	return true
}

// Fail completes the waiter for id as ConnectionFailure, e.g. because
// the peer's connection was dropped while the request was in flight.
func (t *PendingTable) Fail(id uint64) {
	t.mu.Lock()
	r, ok := t.waiters[id]
	if ok {
		delete(t.waiters, id)
	}
	t.mu.Unlock()
	if ok {
		r.completeResponse(ResponseConnectionFailure, nil)
	}
}

// Remove drops the registration for id without completing it; used
// when the caller itself completes r (e.g. a failed send before any
// response could possibly arrive).
func (t *PendingTable) Remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.waiters, id)
}

// Message is the event delivered to the consumer for every decoded
// frame of kind User.
type Message struct {
	Sender           addr.Node
	Payload          []byte
	MessageID        uint64
	AwaitingResponse bool
	InResponseTo     bool
}
