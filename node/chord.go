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

package node

import (
	"context"

	"overlay/addr"
	"overlay/dispatch"
	"overlay/overlay"
)

// Id returns this node's stable 31-bit Chord identifier. Only valid
// when running the chord overlay.
func (n *Node) Id() (uint32, error) {
	if n.chord == nil {
		return 0, ErrNotChord
	}
	return n.chord.ID, nil
}

// Successor returns the current successor address, if known.
func (n *Node) Successor() (addr.Node, bool, error) {
	if n.chord == nil {
		return addr.Node{}, false, ErrNotChord
	}
	a, ok := n.chord.Successor()
	return a, ok, nil
}

// Predecessor returns the current predecessor address, if known.
func (n *Node) Predecessor() (addr.Node, bool, error) {
	if n.chord == nil {
		return addr.Node{}, false, ErrNotChord
	}
	a, ok := n.chord.Predecessor()
	return a, ok, nil
}

// GetFingers returns a defensive copy of the 31-entry finger table and
// its parallel set mask; see overlay.Chord.GetFingers.
func (n *Node) GetFingers() (entries [overlay.FingerCount]addr.Node, set [overlay.FingerCount]bool, err error) {
	if n.chord == nil {
		return entries, set, ErrNotChord
	}
	entries, set = n.chord.GetFingers()
	return entries, set, nil
}

// SendChordMessage resolves the owner of id via find_successor and
// forwards a fire-and-forget User frame to it.
func (n *Node) SendChordMessage(ctx context.Context, id uint32, payload []byte) (*dispatch.SendResult, error) {
	if n.chord == nil {
		return nil, ErrNotChord
	}
	return n.chord.SendChordMessage(ctx, id, payload), nil
}

// SendChordMessageAwaitResponse is the request/response counterpart
// of SendChordMessage.
func (n *Node) SendChordMessageAwaitResponse(ctx context.Context, id uint32, payload []byte) (*dispatch.ResponseResult, error) {
	if n.chord == nil {
		return nil, ErrNotChord
	}
	return n.chord.SendChordMessageAwaitResponse(ctx, id, payload), nil
}
