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

// Package overlay implements the two membership/topology strategies a
// node can run on top of the shared transport and dispatch layers:
// Mesh (full connectivity) and Chord (ring with finger-table lookups).
package overlay

import (
	"overlay/addr"
	"overlay/dispatch"
	"overlay/peer"
	"overlay/wire"
)

// GetApproval implements get_approval(addr): it returns true
// immediately for an already-approved peer, otherwise opens an
// outbound connection and runs the Approval handshake, marking the
// connection approved and enqueueing the requester-side hook event on
// success.
func GetApproval(target addr.Node, sender *dispatch.Sender, outbound *peer.OutboundTable, overlayType string, approvals *dispatch.ApprovalQueues) bool {
	if outbound.EnsureApproved(target) != nil {
		return true
	}
	rr := sender.Request(target, wire.Approval, []byte(overlayType), false)
	outcome, resp := rr.Wait()
	if outcome != dispatch.ResponseSuccess || string(resp.Payload) != "approved" {
		return false
	}
	outbound.MarkApproved(target)
	select {
	case approvals.Requester <- target:
	default:
	}
	return true
}
