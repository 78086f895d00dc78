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
	"context"
	"fmt"
	"net"
	"sync"

	"overlay/addr"
	"overlay/logging"
	"overlay/peer"
	"overlay/wire"
)

// SendRequest is one entry in the shared send queue.
type SendRequest struct {
	Dest          addr.Node
	Frame         *wire.Frame
	NeedsApproved bool // use ensure_approved instead of ensure_outbound
	MessageID     uint64
	Result        sendCompleter
}

// Sender owns the shared FIFO send queue and the writer tasks it
// spawns. One Sender serves both the mesh/chord overlay traffic and
// the node's own Approval/Neighbors/Ping housekeeping frames.
type Sender struct {
	outbound *peer.OutboundTable
	inbound  *peer.InboundTable
	pending  *PendingTable
	dial     peer.Dialer
	self     func() (ips []net.IP, port uint16)
	log      logging.Sink

	queue chan *SendRequest
	wg    sync.WaitGroup
}

// NewSender constructs a Sender bound to the given tables and dialer.
// self returns the current set of local IPv4 addresses and the node's
// listening port, used to detect self-sends.
func NewSender(outbound *peer.OutboundTable, inbound *peer.InboundTable, pending *PendingTable, dial peer.Dialer, self func() ([]net.IP, uint16), log logging.Sink) *Sender {
	if log == nil {
		log = logging.NopSink{}
	}
	return &Sender{
		outbound: outbound,
		inbound:  inbound,
		pending:  pending,
		dial:     dial,
		self:     self,
		log:      log,
		queue:    make(chan *SendRequest, 256),
	}
}

// Enqueue appends req to the send queue. Never blocks on I/O itself;
// the actual write happens on a dedicated writer task.
func (s *Sender) Enqueue(req *SendRequest) {
	s.queue <- req
}

// Run is the Sender task: it drains the queue and dispatches each
// request to its own writer goroutine without awaiting completion,
// until ctx is cancelled. On cancellation it waits (best-effort) for
// inflight writers to drain.
func (s *Sender) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case req := <-s.queue:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.write(ctx, req)
			}()
		}
	}
}

func (s *Sender) write(ctx context.Context, req *SendRequest) {
	ips, port := s.self()
	req.Frame.SenderPort = port
	if req.Dest.IsLocal(ips, port) {
		s.fail(req, SelfFailure)
		return
	}

	var conn *peer.Connection
	if req.NeedsApproved {
		conn = s.outbound.EnsureApproved(req.Dest)
	} else {
		conn = s.outbound.EnsureOutbound(ctx, req.Dest, s.dial)
	}
	if conn == nil {
		s.fail(req, ConnectionFailure)
		return
	}

	_, err := conn.Write(wire.Encode(req.Frame))
	if err != nil {
		s.log.Write(fmt.Sprintf("write to %s failed: %v", req.Dest, err), logging.Warning)
		s.teardown(req.Dest)
		s.fail(req, ConnectionFailure)
		return
	}

	s.succeed(req)
}

// fail completes req's result handle as outcome and clears any
// pending-response registration so a later stray reply cannot
// resurrect a completed handle.
func (s *Sender) fail(req *SendRequest, outcome SendOutcome) {
	if req.MessageID != 0 {
		s.pending.Remove(req.MessageID)
	}
	req.Result.completeSend(outcome)
}

func (s *Sender) succeed(req *SendRequest) {
	req.Result.completeSend(SendSuccess)
}

// Send enqueues a fire-and-forget frame of the given kind to dest and
// returns a handle for its send outcome.
func (s *Sender) Send(dest addr.Node, kind wire.Kind, payload []byte, needsApproved bool) *SendResult {
	sr := NewSendResult()
	frame := &wire.Frame{Kind: kind, AwaitResponse: false, Payload: payload}
	s.Enqueue(&SendRequest{Dest: dest, Frame: frame, NeedsApproved: needsApproved, Result: sr})
	return sr
}

// Request enqueues a frame of the given kind to dest that awaits a
// response, registers the pending-response slot, and returns a handle
// that resolves once the send (and later the response) completes.
func (s *Sender) Request(dest addr.Node, kind wire.Kind, payload []byte, needsApproved bool) *ResponseResult {
	id := s.pending.NextMessageID()
	rr := NewResponseResult()
	s.pending.Register(id, rr)
	frame := &wire.Frame{Kind: kind, ID: id, AwaitResponse: true, Payload: payload}
	s.Enqueue(&SendRequest{Dest: dest, Frame: frame, NeedsApproved: needsApproved, MessageID: id, Result: rr})
	return rr
}

// teardown drops dest's outbound connection and matching inbound
// FrameBuffer state after a write failure, per the writer contract.
func (s *Sender) teardown(dest addr.Node) {
	if conn := s.outbound.Remove(dest); conn != nil {
		conn.Conn.Close()
	}
	s.inbound.Remove(dest)
}
