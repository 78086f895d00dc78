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
	"strings"

	"overlay/addr"
	"overlay/logging"
	"overlay/peer"
	"overlay/wire"
)

// SystemHandler forwards System-kind frames to an overlay strategy
// (Mesh has none; Chord answers successor/predecessor/id/findsuccessor
// and reacts to notify). Whenever hasReply is true, reply (even an
// empty one) is sent back to sender with the same message id.
type SystemHandler interface {
	HandleSystem(ctx context.Context, sender addr.Node, payload []byte) (reply string, hasReply bool)
}

// ApprovalQueues is where the dispatcher enqueues addresses newly
// approved in each direction, consumed by the approval-queue
// processor task running the per-role overlay hooks.
type ApprovalQueues struct {
	Grantor   chan addr.Node // we approved this peer (ApprovalGranted)
	Requester chan addr.Node // we were approved by this peer (ApprovalRequestGranted)
}

// NewApprovalQueues returns a pair of reasonably-buffered queues.
func NewApprovalQueues() *ApprovalQueues {
	return &ApprovalQueues{
		Grantor:   make(chan addr.Node, 64),
		Requester: make(chan addr.Node, 64),
	}
}

// Dispatcher routes decoded frames per kind, per section 4.5: the
// response-table store always happens before kind-specific handling.
type Dispatcher struct {
	Outbound    *peer.OutboundTable
	Inbound     *peer.InboundTable
	Pending     *PendingTable
	Sender      *Sender
	Approvals   *ApprovalQueues
	System      SystemHandler
	OverlayType string // "mesh" or "chord"; compared against a remote's Approval payload
	OnMessage   func(Message)
	Log         logging.Sink
}

// Dispatch handles one decoded frame received from sender (the peer
// IP observed on the stream paired with the frame's own sender_port).
func (d *Dispatcher) Dispatch(ctx context.Context, sender addr.Node, frame *wire.Frame) {
	if frame.InResponseTo() {
		d.Pending.Resolve(frame)
	}

	switch frame.Kind {
	case wire.Approval:
		d.handleApproval(ctx, sender, frame)
	case wire.Neighbors:
		d.handleNeighbors(sender, frame)
	case wire.Ping:
		d.handlePing(sender)
	case wire.System:
		d.handleSystemFrame(ctx, sender, frame)
	case wire.User:
		d.handleUser(sender, frame)
	case wire.Unknown:
		// silently dropped
	}
}

func (d *Dispatcher) reply(sender addr.Node, id uint64, kind wire.Kind, payload string) {
	sr := NewSendResult()
	f := &wire.Frame{Kind: kind, ID: id, AwaitResponse: false, Payload: []byte(payload)}
	d.Sender.Enqueue(&SendRequest{Dest: sender, Frame: f, Result: sr})
}

// handleApproval runs the dial (ensure_outbound) on its own goroutine:
// the dispatcher must never block waiting on network I/O while other
// peers' frames are pending dispatch.
func (d *Dispatcher) handleApproval(ctx context.Context, sender addr.Node, frame *wire.Frame) {
	if frame.InResponseTo() {
		// the response itself was already delivered via the pending
		// table above; nothing else to do here.
		return
	}
	declared := string(frame.Payload)
	if declared != d.OverlayType {
		d.reply(sender, frame.ID, wire.Approval, "failure")
		return
	}
	go func() {
		conn := d.Outbound.EnsureOutbound(ctx, sender, d.Sender.dial)
		if conn == nil {
			d.reply(sender, frame.ID, wire.Approval, "failure")
			return
		}
		d.Outbound.MarkApproved(sender)
		d.reply(sender, frame.ID, wire.Approval, "approved")
		select {
		case d.Approvals.Grantor <- sender:
		default:
			d.Log.Write("grantor approval queue full, dropping event for "+sender.String(), logging.Warning)
		}
	}()
}

func (d *Dispatcher) handleNeighbors(sender addr.Node, frame *wire.Frame) {
	if frame.InResponseTo() {
		return
	}
	neighbors := d.Outbound.ApprovedNeighbors()
	var sb strings.Builder
	for _, n := range neighbors {
		sb.WriteString(n.String())
		sb.WriteByte(';')
	}
	if sb.Len() == 0 {
		sb.WriteByte(';')
	}
	d.reply(sender, frame.ID, wire.Neighbors, sb.String())
}

func (d *Dispatcher) handlePing(sender addr.Node) {
	if conn := d.Outbound.EnsureApproved(sender); conn != nil {
		conn.TouchPing()
	}
}

// handleSystemFrame hands the frame to the overlay's System handler on
// its own goroutine. This MUST NOT run inline on the dispatch task:
// resolving a findsuccessor request can require further outgoing
// requests whose responses are themselves delivered through this same
// dispatcher, so handling it synchronously here would deadlock the
// dispatcher against itself.
func (d *Dispatcher) handleSystemFrame(ctx context.Context, sender addr.Node, frame *wire.Frame) {
	if frame.InResponseTo() || d.System == nil {
		return
	}
	go func() {
		reply, hasReply := d.System.HandleSystem(ctx, sender, frame.Payload)
		if hasReply {
			d.reply(sender, frame.ID, wire.System, reply)
		}
	}()
}

func (d *Dispatcher) handleUser(sender addr.Node, frame *wire.Frame) {
	if d.OnMessage == nil {
		return
	}
	d.OnMessage(Message{
		Sender:           sender,
		Payload:          frame.Payload,
		MessageID:        frame.ID,
		AwaitingResponse: frame.AwaitResponse,
		InResponseTo:     frame.InResponseTo(),
	})
}
