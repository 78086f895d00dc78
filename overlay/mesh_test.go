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
	"net"
	"testing"

	"overlay/addr"
	"overlay/peer"
)

func TestMeshType(t *testing.T) {
	m := &Mesh{}
	if m.Type() != "mesh" {
		t.Fatalf("expected mesh, got %q", m.Type())
	}
}

func TestMeshHandleSystemHasNoTraffic(t *testing.T) {
	m := &Mesh{}
	reply, hasReply := m.HandleSystem(context.Background(), addr.Node{}, []byte("anything"))
	if hasReply || reply != "" {
		t.Fatalf("mesh must never answer System traffic, got (%q, %v)", reply, hasReply)
	}
}

func TestMeshUpdateNetworkSkipsSelfAndAlreadyApproved(t *testing.T) {
	self := addr.New(net.IPv4(127, 0, 0, 1), 5000)
	already := addr.New(net.IPv4(127, 0, 0, 1), 5001)

	outbound := peer.NewOutboundTable()
	dialed := false
	conn := outbound.EnsureOutbound(context.Background(), already, func(ctx context.Context, to addr.Node) (net.Conn, error) {
		dialed = true
		client, _ := net.Pipe()
		return client, nil
	})
	if conn == nil {
		t.Fatal("setup: expected a connection")
	}
	outbound.MarkApproved(already)
	dialed = false // reset: any further dial during UpdateNetwork would indicate a re-approval attempt

	m := &Mesh{
		Outbound: outbound,
		Self:     func() addr.Node { return self },
	}
	m.UpdateNetwork(context.Background(), []addr.Node{self, already})

	if dialed {
		t.Fatal("UpdateNetwork must not re-dial an already-approved neighbor")
	}
}
