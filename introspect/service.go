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

package introspect

import (
	"net/http"
	"time"

	"overlay/addr"
	"overlay/node"
)

// Service is the gorilla/rpc JSON-RPC receiver mounted by NewHandler.
// Every method is read-only.
type Service struct {
	node *node.Node
}

// EmptyArgs is used by methods that take no parameters; gorilla/rpc
// requires a non-nil args pointer even when unused.
type EmptyArgs struct{}

// NeighborsReply lists the node's currently approved outbound peers.
type NeighborsReply struct {
	Neighbors []string `json:"neighbors"`
}

// Neighbors returns the approved neighbor list.
func (s *Service) Neighbors(r *http.Request, args *EmptyArgs, reply *NeighborsReply) error {
	for _, n := range s.node.GetNeighbors() {
		reply.Neighbors = append(reply.Neighbors, n.String())
	}
	return nil
}

// RemoteNeighborsArgs names the peer whose own neighbor list to fetch.
type RemoteNeighborsArgs struct {
	Target string `json:"target"`
}

// RemoteNeighborsReply carries the remote peer's answer, if any.
type RemoteNeighborsReply struct {
	Outcome   string   `json:"outcome"`
	Neighbors []string `json:"neighbors,omitempty"`
}

// RemoteNeighbors asks a peer for its approved neighbor list.
func (s *Service) RemoteNeighbors(r *http.Request, args *RemoteNeighborsArgs, reply *RemoteNeighborsReply) error {
	target, err := addr.Parse(args.Target)
	if err != nil {
		return err
	}
	outcome, frame := s.node.GetRemoteNeighbors(target).Wait()
	reply.Outcome = outcome.String()
	if frame == nil {
		return nil
	}
	for _, entry := range splitNeighborList(string(frame.Payload)) {
		reply.Neighbors = append(reply.Neighbors, entry)
	}
	return nil
}

func splitNeighborList(payload string) []string {
	var out []string
	start := 0
	for i := 0; i < len(payload); i++ {
		if payload[i] == ';' {
			if i > start {
				out = append(out, payload[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// ChordReply reports this node's position in the ring, if it is
// running the chord overlay.
type ChordReply struct {
	IsChord     bool     `json:"is_chord"`
	ID          uint32   `json:"id,omitempty"`
	Successor   string   `json:"successor,omitempty"`
	Predecessor string   `json:"predecessor,omitempty"`
	Fingers     []string `json:"fingers,omitempty"`
}

// Chord reports ring position and finger table. IsChord is false (and
// every other field empty) when the node runs the mesh overlay.
func (s *Service) Chord(r *http.Request, args *EmptyArgs, reply *ChordReply) error {
	id, err := s.node.Id()
	if err == node.ErrNotChord {
		return nil
	}
	if err != nil {
		return err
	}
	reply.IsChord = true
	reply.ID = id
	if succ, ok, err := s.node.Successor(); err == nil && ok {
		reply.Successor = succ.String()
	}
	if pred, ok, err := s.node.Predecessor(); err == nil && ok {
		reply.Predecessor = pred.String()
	}
	fingers, set, err := s.node.GetFingers()
	if err != nil {
		return err
	}
	for i, f := range fingers {
		if set[i] {
			reply.Fingers = append(reply.Fingers, f.String())
		}
	}
	return nil
}

// StatsReply mirrors node.Stats for JSON-RPC transport.
type StatsReply struct {
	ApprovedNeighbors int `json:"approved_neighbors"`
	InboundPeers      int `json:"inbound_peers"`
}

// Stats reports current peer counts.
func (s *Service) Stats(r *http.Request, args *EmptyArgs, reply *StatsReply) error {
	st := s.node.Stats()
	reply.ApprovedNeighbors = st.ApprovedNeighbors
	reply.InboundPeers = st.InboundPeers
	return nil
}

// PingStatusArgs names the peer whose liveness to check.
type PingStatusArgs struct {
	Target string `json:"target"`
}

// PingStatusReply reports the last time a neighbor was seen alive.
type PingStatusReply struct {
	Known     bool      `json:"known"`
	LastPing  time.Time `json:"last_ping,omitempty"`
}

// PingStatus reports the last-ping time recorded for target.
func (s *Service) PingStatus(r *http.Request, args *PingStatusArgs, reply *PingStatusReply) error {
	target, err := addr.Parse(args.Target)
	if err != nil {
		return err
	}
	t, ok := s.node.PingAt(target)
	reply.Known = ok
	if ok {
		reply.LastPing = t
	}
	return nil
}
