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
)

func newTestChord(id uint32) *Chord {
	self := addr.New(net.IPv4(127, 0, 0, 1), 5000)
	return NewChord(nil, nil, nil, func() addr.Node { return self }, id, nil)
}

func TestFindSuccessorAnswersLocallyWhenIDPrecedesSuccessor(t *testing.T) {
	c := newTestChord(10)
	succAddr := addr.New(net.IPv4(127, 0, 0, 1), 5001)
	c.setSuccessor(ring{Node: succAddr, ID: 20})

	found := c.FindSuccessor(context.Background(), 15)
	if found == nil {
		t.Fatal("expected a local answer")
	}
	if found.Node != succAddr || found.ID != 20 {
		t.Fatalf("unexpected answer: %+v", found)
	}
}

func TestFindSuccessorIncludesSuccessorIDItself(t *testing.T) {
	c := newTestChord(10)
	succAddr := addr.New(net.IPv4(127, 0, 0, 1), 5001)
	c.setSuccessor(ring{Node: succAddr, ID: 20})

	found := c.FindSuccessor(context.Background(), 20)
	if found == nil || found.ID != 20 {
		t.Fatalf("expected inclusive match on successor id, got %+v", found)
	}
}

func TestFindSuccessorNilWhenRingEmpty(t *testing.T) {
	c := newTestChord(10)
	if found := c.FindSuccessor(context.Background(), 99); found != nil {
		t.Fatalf("expected nil with no successor set, got %+v", found)
	}
}

func TestClosestPrecedingFingerPrefersHighestQualifyingEntry(t *testing.T) {
	c := newTestChord(0)
	low := ring{Node: addr.New(net.IPv4(127, 0, 0, 1), 5001), ID: 10}
	high := ring{Node: addr.New(net.IPv4(127, 0, 0, 1), 5002), ID: 90}
	c.fingers[0] = low
	c.fingers[5] = high
	c.setSuccessor(ring{Node: addr.New(net.IPv4(127, 0, 0, 1), 5003), ID: 100})

	found := c.closestPrecedingFinger(200)
	if found == nil || found.ID != 90 {
		t.Fatalf("expected the highest qualifying finger (90), got %+v", found)
	}
}

func TestClosestPrecedingFingerFallsBackToSuccessor(t *testing.T) {
	c := newTestChord(0)
	succ := ring{Node: addr.New(net.IPv4(127, 0, 0, 1), 5003), ID: 100}
	c.setSuccessor(succ)

	found := c.closestPrecedingFinger(50)
	if found == nil || found.ID != succ.ID {
		t.Fatalf("expected fallback to successor, got %+v", found)
	}
}

func TestNotifyAdoptsCloserPredecessor(t *testing.T) {
	c := newTestChord(50)
	first := ring{Node: addr.New(net.IPv4(127, 0, 0, 1), 5001), ID: 10}
	c.notify(first)
	if p := c.getPredecessor(); p.ID != 10 {
		t.Fatalf("expected predecessor 10, got %+v", p)
	}

	closer := ring{Node: addr.New(net.IPv4(127, 0, 0, 1), 5002), ID: 30}
	c.notify(closer)
	if p := c.getPredecessor(); p.ID != 30 {
		t.Fatalf("expected predecessor to advance to 30, got %+v", p)
	}

	farther := ring{Node: addr.New(net.IPv4(127, 0, 0, 1), 5003), ID: 5}
	c.notify(farther)
	if p := c.getPredecessor(); p.ID != 30 {
		t.Fatalf("predecessor should not regress to 5, got %+v", p)
	}
}

func TestHandleSystemAnswersIDAndSuccessorAndPredecessor(t *testing.T) {
	c := newTestChord(42)
	succAddr := addr.New(net.IPv4(127, 0, 0, 1), 5001)
	c.setSuccessor(ring{Node: succAddr, ID: 99})
	predAddr := addr.New(net.IPv4(127, 0, 0, 1), 5002)
	c.setPredecessor(ring{Node: predAddr, ID: 7})

	if reply, ok := c.HandleSystem(context.Background(), addr.Node{}, []byte("id")); !ok || reply != "42" {
		t.Fatalf("id: got (%q, %v)", reply, ok)
	}
	if reply, ok := c.HandleSystem(context.Background(), addr.Node{}, []byte("successor")); !ok || reply == "" {
		t.Fatalf("successor: got (%q, %v)", reply, ok)
	}
	if reply, ok := c.HandleSystem(context.Background(), addr.Node{}, []byte("predecessor")); !ok || reply == "" {
		t.Fatalf("predecessor: got (%q, %v)", reply, ok)
	}
}

func TestHandleSystemNotifyHasNoReplyAndUpdatesPredecessor(t *testing.T) {
	c := newTestChord(42)
	sender := addr.New(net.IPv4(127, 0, 0, 1), 5009)

	reply, hasReply := c.HandleSystem(context.Background(), sender, []byte("notify|17"))
	if hasReply {
		t.Fatalf("notify must not produce a reply, got %q", reply)
	}
	if p := c.getPredecessor(); p.Node != sender || p.ID != 17 {
		t.Fatalf("expected predecessor to become sender with id 17, got %+v", p)
	}
}

func TestHandleSystemFindSuccessorAnswersFromLocalRing(t *testing.T) {
	c := newTestChord(10)
	succAddr := addr.New(net.IPv4(127, 0, 0, 1), 5001)
	c.setSuccessor(ring{Node: succAddr, ID: 20})

	reply, ok := c.HandleSystem(context.Background(), addr.Node{}, []byte("findsuccessor|15"))
	if !ok {
		t.Fatal("expected a reply")
	}
	if reply == "" {
		t.Fatal("expected a non-empty ip:port|id reply")
	}
}

func TestHandleSystemUnknownMessageIgnored(t *testing.T) {
	c := newTestChord(10)
	reply, ok := c.HandleSystem(context.Background(), addr.Node{}, []byte("garbage"))
	if ok || reply != "" {
		t.Fatalf("expected no reply for an unrecognized message, got (%q, %v)", reply, ok)
	}
}
