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

// Package peer holds the per-peer connection state and the two tables
// (outbound "sending" and inbound "receiving") that track it, keyed
// by addr.Node. The tables are independent: a peer may have an
// outbound entry, an inbound entry, both, or neither.
package peer

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"overlay/addr"
)

// Connection is the state kept for one peer on one side (outbound or
// inbound) of the mesh. It is owned by whichever table holds it. Conn
// is set once at construction; every other field is atomic or guarded
// by its own mutex, because the framed reader, the writers and the
// approval handshake touch them without holding the table lock.
type Connection struct {
	Conn net.Conn

	approved   atomic.Bool
	lastPingAt int64 // unix nanoseconds, accessed atomically

	// writeMu serializes writer tasks against each other so at most
	// one frame is ever in flight on the underlying stream at a time.
	writeMu sync.Mutex

	// ---- inbound framing state (Reader-owned; see FrameBuffer) ----
	frameMu sync.Mutex
	buf     []byte
	expect  int // -1 until the length prefix of the next frame is known
}

// Write sends a fully-encoded frame. Exclusive across concurrent
// writer tasks targeting the same connection.
func (c *Connection) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.Write(b)
}

func newConnection(conn net.Conn) *Connection {
	c := &Connection{
		Conn:   conn,
		expect: -1,
	}
	c.TouchPing()
	return c
}

// Buffer gives the framed reader exclusive, locked access to this
// connection's incremental frame accumulator.
func (c *Connection) Buffer(f func(buf *[]byte, expect *int)) {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	f(&c.buf, &c.expect)
}

// TouchPing stamps the last-seen-alive time for liveness tracking.
// Safe to call from the dispatcher while the Ping task concurrently
// reads LastPingAt.
func (c *Connection) TouchPing() {
	atomic.StoreInt64(&c.lastPingAt, time.Now().UnixNano())
}

// LastPingAt returns the last time this connection was known alive.
func (c *Connection) LastPingAt() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastPingAt))
}

// Approved reports whether the approval handshake has completed for
// this connection. Safe to call concurrently with MarkApproved.
func (c *Connection) Approved() bool {
	return c.approved.Load()
}

//----------------------------------------------------------------------
// slot: placeholder used while an outbound connection is being opened
//----------------------------------------------------------------------

type slot struct {
	done chan struct{} // closed once resolved, one way or another
	conn *Connection   // valid for reading only after done is closed
}

//----------------------------------------------------------------------
// OutboundTable — the "sending" table
//----------------------------------------------------------------------

// Dialer opens a fresh TCP connection to a peer. Implementations set
// TCP_NODELAY on success, per the no-Nagle transport requirement.
type Dialer func(ctx context.Context, to addr.Node) (net.Conn, error)

// OutboundTable is the table of connections this node has dialed out.
type OutboundTable struct {
	mu    sync.Mutex
	conns map[addr.Node]*slot
}

// NewOutboundTable creates an empty outbound table.
func NewOutboundTable() *OutboundTable {
	return &OutboundTable{conns: make(map[addr.Node]*slot)}
}

// EnsureOutbound returns a live connection to target, dialing one if
// none exists yet. Concurrent callers for the same target converge on
// a single dial: the first caller becomes the "opener" and performs
// the TCP handshake; every other concurrent caller waits (without
// holding the table lock) for the opener to finish, then observes its
// result. A failed dial removes the placeholder and every waiter
// observes a nil connection.
func (t *OutboundTable) EnsureOutbound(ctx context.Context, target addr.Node, dial Dialer) *Connection {
	t.mu.Lock()
	s, exists := t.conns[target]
	opener := false
	if !exists {
		s = &slot{done: make(chan struct{})}
		t.conns[target] = s
		opener = true
	}
	t.mu.Unlock()

	if !opener {
		select {
		case <-s.done:
			return s.conn
		case <-ctx.Done():
			return nil
		}
	}

	conn, err := dial(ctx, target)
	if err != nil {
		t.mu.Lock()
		// only remove if it is still our placeholder
		if cur, ok := t.conns[target]; ok && cur == s {
			delete(t.conns, target)
		}
		t.mu.Unlock()
		close(s.done)
		return nil
	}
	pc := newConnection(conn)
	t.mu.Lock()
	s.conn = pc
	t.mu.Unlock()
	close(s.done)
	return pc
}

// EnsureApproved returns the outbound connection to target only if it
// is both present and approved. It never dials.
func (t *OutboundTable) EnsureApproved(target addr.Node) *Connection {
	t.mu.Lock()
	s, ok := t.conns[target]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-s.done:
	default:
		return nil // still being opened
	}
	if s.conn != nil && s.conn.Approved() {
		return s.conn
	}
	return nil
}

// MarkApproved flips the approved flag on an existing outbound entry.
func (t *OutboundTable) MarkApproved(target addr.Node) {
	t.mu.Lock()
	s, ok := t.conns[target]
	t.mu.Unlock()
	if ok && s.conn != nil {
		s.conn.approved.Store(true)
	}
}

// Get returns the live connection for target, if any (approved or not).
func (t *OutboundTable) Get(target addr.Node) *Connection {
	t.mu.Lock()
	s, ok := t.conns[target]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-s.done:
		return s.conn
	default:
		return nil
	}
}

// Remove drops the outbound entry for target, e.g. after a write
// failure, and returns the connection that was removed (if any) so
// the caller can close it.
func (t *OutboundTable) Remove(target addr.Node) *Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.conns[target]
	if !ok {
		return nil
	}
	delete(t.conns, target)
	select {
	case <-s.done:
		return s.conn
	default:
		return nil
	}
}

// ApprovedNeighbors returns the addresses of all approved outbound peers.
func (t *OutboundTable) ApprovedNeighbors() []addr.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []addr.Node
	for a, s := range t.conns {
		select {
		case <-s.done:
			if s.conn != nil && s.conn.Approved() {
				out = append(out, a)
			}
		default:
		}
	}
	return out
}

// Range calls f for every resolved (non-pending) outbound entry.
func (t *OutboundTable) Range(f func(a addr.Node, c *Connection)) {
	t.mu.Lock()
	snapshot := make(map[addr.Node]*slot, len(t.conns))
	for k, v := range t.conns {
		snapshot[k] = v
	}
	t.mu.Unlock()
	for a, s := range snapshot {
		select {
		case <-s.done:
			if s.conn != nil {
				f(a, s.conn)
			}
		default:
		}
	}
}

//----------------------------------------------------------------------
// InboundTable — the "receiving" table
//----------------------------------------------------------------------

// InboundTable is the table of connections accepted from remote peers.
type InboundTable struct {
	mu    sync.Mutex
	conns map[addr.Node]*Connection
}

// NewInboundTable creates an empty inbound table.
func NewInboundTable() *InboundTable {
	return &InboundTable{conns: make(map[addr.Node]*Connection)}
}

// Put installs a freshly accepted connection.
func (t *InboundTable) Put(from addr.Node, conn net.Conn) *Connection {
	pc := newConnection(conn)
	t.mu.Lock()
	t.conns[from] = pc
	t.mu.Unlock()
	return pc
}

// Get returns the inbound connection from a peer, if any.
func (t *InboundTable) Get(from addr.Node) (*Connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[from]
	return c, ok
}

// Remove drops the inbound entry for from.
func (t *InboundTable) Remove(from addr.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, from)
}

// Rekey moves the connection stored under oldKey to newKey, used once
// the framed reader learns a peer's declared listening port from its
// first frame (inbound connections are first indexed by the ephemeral
// TCP source address, which is not the peer's identity). A no-op if
// oldKey is absent.
func (t *InboundTable) Rekey(oldKey, newKey addr.Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[oldKey]
	if !ok {
		return
	}
	delete(t.conns, oldKey)
	t.conns[newKey] = c
}

// Range calls f for every inbound connection. f must not block on I/O
// or attempt to acquire the table lock.
func (t *InboundTable) Range(f func(a addr.Node, c *Connection)) {
	t.mu.Lock()
	snapshot := make(map[addr.Node]*Connection, len(t.conns))
	for k, v := range t.conns {
		snapshot[k] = v
	}
	t.mu.Unlock()
	for a, c := range snapshot {
		f(a, c)
	}
}
