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

package overlay

import (
	"context"
	"strings"

	"overlay/addr"
	"overlay/dispatch"
	"overlay/logging"
	"overlay/peer"
	"overlay/wire"
)

// Mesh is the fully-connected overlay: every approved pair of peers
// eventually holds a mutual, approved connection.
type Mesh struct {
	Sender    *dispatch.Sender
	Outbound  *peer.OutboundTable
	Approvals *dispatch.ApprovalQueues
	Self      func() addr.Node
	Log       logging.Sink
}

// Type reports the overlay type string exchanged during approval.
func (m *Mesh) Type() string { return "mesh" }

// ApprovalGranted runs when this node approved a new member.
func (m *Mesh) ApprovalGranted(ctx context.Context, peer addr.Node) {
	m.expandFrom(ctx, peer)
}

// ApprovalRequestGranted runs when this node was approved by a member.
func (m *Mesh) ApprovalRequestGranted(ctx context.Context, peer addr.Node) {
	m.expandFrom(ctx, peer)
}

// expandFrom asks peer for its neighbor list and attempts to become
// mutually approved with every entry that is not self, maintaining
// the network-wide full-mesh invariant.
func (m *Mesh) expandFrom(ctx context.Context, peer addr.Node) {
	rr := m.Sender.Request(peer, wire.Neighbors, nil, true)
	outcome, resp := rr.Wait()
	if outcome != dispatch.ResponseSuccess {
		return
	}
	self := m.Self()
	for _, entry := range strings.Split(string(resp.Payload), ";") {
		if entry == "" {
			continue
		}
		n, err := addr.Parse(entry)
		if err != nil || n == self {
			continue
		}
		go GetApproval(n, m.Sender, m.Outbound, m.Type(), m.Approvals)
	}
}

// UpdateNetwork retries get_approval on any seed not currently
// approved. Already-approved neighbors need no further action: the
// mesh invariant is maintained purely by expandFrom above and by the
// liveness/reconnection machinery shared with Chord.
func (m *Mesh) UpdateNetwork(ctx context.Context, seeds []addr.Node) {
	self := m.Self()
	for _, s := range seeds {
		if s == self {
			continue
		}
		if m.Outbound.EnsureApproved(s) != nil {
			continue
		}
		go GetApproval(s, m.Sender, m.Outbound, m.Type(), m.Approvals)
	}
}

// HandleSystem implements dispatch.SystemHandler. Mesh has no System
// traffic of its own.
func (m *Mesh) HandleSystem(ctx context.Context, sender addr.Node, payload []byte) (string, bool) {
	return "", false
}
