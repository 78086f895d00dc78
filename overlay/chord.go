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
	"fmt"
	"strconv"
	"strings"
	"sync"

	"context"

	"overlay/addr"
	"overlay/chordid"
	"overlay/dispatch"
	"overlay/logging"
	"overlay/peer"
	"overlay/wire"
)

// FingerCount is the number of entries in a Chord finger table: one
// per bit of the 31-bit identifier space.
const FingerCount = 31

// ring holds an (address, id) pair, or the unset state (ID == -1)
// meaning "no entry known yet".
type ring struct {
	Node addr.Node
	ID   int64
}

var unset = ring{ID: -1}

// Chord is the ring overlay: each node owns a stable 31-bit id and
// maintains a successor, a predecessor, and a finger table, converging
// toward the classic Chord invariants via periodic stabilization.
type Chord struct {
	Sender    *dispatch.Sender
	Outbound  *peer.OutboundTable
	Approvals *dispatch.ApprovalQueues
	Self      func() addr.Node
	ID        uint32
	Log       logging.Sink

	mu          sync.Mutex
	successor   ring
	predecessor ring

	fingerMu sync.Mutex
	fingers  [FingerCount]ring
}

// NewChord builds a Chord strategy with an empty ring state (as if
// this node were alone).
func NewChord(sender *dispatch.Sender, outbound *peer.OutboundTable, approvals *dispatch.ApprovalQueues, self func() addr.Node, id uint32, log logging.Sink) *Chord {
	if log == nil {
		log = logging.NopSink{}
	}
	c := &Chord{
		Sender:    sender,
		Outbound:  outbound,
		Approvals: approvals,
		Self:      self,
		ID:        id,
		Log:       log,
	}
	c.successor = unset
	c.predecessor = unset
	for i := range c.fingers {
		c.fingers[i] = unset
	}
	return c
}

// Type reports the overlay type string exchanged during approval.
func (c *Chord) Type() string { return "chord" }

// Join runs the Chord join state machine against seed. It returns
// joined=false when the seed refused approval (the caller then treats
// this node as having created a new network); joined=true once this
// node has recorded a successor and is ready to serve traffic.
func (c *Chord) Join(ctx context.Context, seed addr.Node) (joined bool) {
	if !GetApproval(seed, c.Sender, c.Outbound, c.Type(), c.Approvals) {
		return false
	}
	found := c.findSuccessorRemote(seed, c.ID)
	if found == nil {
		// the seed has no successor of its own: it is alone, so it
		// becomes our successor; fetch its id directly.
		idStr, outcome := c.systemRequest(seed, "id")
		if outcome != dispatch.ResponseSuccess {
			return false
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return false
		}
		c.setSuccessor(ring{Node: seed, ID: id})
	} else {
		c.setSuccessor(*found)
	}
	return true
}

func (c *Chord) setSuccessor(r ring) {
	c.mu.Lock()
	c.successor = r
	c.mu.Unlock()
}

func (c *Chord) getSuccessor() ring {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.successor
}

func (c *Chord) setPredecessor(r ring) {
	c.mu.Lock()
	c.predecessor = r
	c.mu.Unlock()
}

func (c *Chord) getPredecessor() ring {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.predecessor
}

// Successor returns the current successor address, or false if unset.
func (c *Chord) Successor() (addr.Node, bool) {
	r := c.getSuccessor()
	return r.Node, r.ID >= 0
}

// Predecessor returns the current predecessor address, or false if unset.
func (c *Chord) Predecessor() (addr.Node, bool) {
	r := c.getPredecessor()
	return r.Node, r.ID >= 0
}

// GetFingers returns a defensive copy of the finger table, alongside a
// parallel set mask: set[i] is false for a slot that has never
// resolved, in which case entries[i] is the addr.Node zero value and
// must not be mistaken for a real address.
func (c *Chord) GetFingers() (entries [FingerCount]addr.Node, set [FingerCount]bool) {
	c.fingerMu.Lock()
	defer c.fingerMu.Unlock()
	for i, f := range c.fingers {
		if f.ID >= 0 {
			entries[i] = f.Node
			set[i] = true
		}
	}
	return entries, set
}

// systemRequest sends a System request to target and waits for its
// response, returning the raw payload string.
func (c *Chord) systemRequest(target addr.Node, payload string) (string, dispatch.ResponseOutcome) {
	rr := c.Sender.Request(target, wire.System, []byte(payload), true)
	outcome, resp := rr.Wait()
	if outcome != dispatch.ResponseSuccess {
		return "", outcome
	}
	return string(resp.Payload), outcome
}

// findSuccessorRemote asks target's findsuccessor RPC for id and
// parses the "ip:port|id" reply. Returns nil if the RPC fails or the
// remote replied empty (it has no successor of its own yet).
func (c *Chord) findSuccessorRemote(target addr.Node, id uint32) *ring {
	payload, outcome := c.systemRequest(target, fmt.Sprintf("findsuccessor|%d", id))
	if outcome != dispatch.ResponseSuccess || payload == "" {
		return nil
	}
	parts := strings.SplitN(payload, "|", 2)
	if len(parts) != 2 {
		return nil
	}
	n, err := addr.Parse(parts[0])
	if err != nil {
		return nil
	}
	nid, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	return &ring{Node: n, ID: nid}
}

// FindSuccessor is the local half of find_successor(id): it answers
// directly from local state when possible, and otherwise recurses
// through the closest preceding finger. Returns nil when this node has
// no successor yet (the caller, whether local or remote, then treats
// this node as its own answer).
func (c *Chord) FindSuccessor(ctx context.Context, id uint32) *ring {
	succ := c.getSuccessor()
	if succ.ID < 0 {
		return nil
	}
	if chordid.BetweenInclusiveMax(int64(c.ID), succ.ID, id) {
		r := succ
		return &r
	}
	next := c.closestPrecedingFinger(id)
	if next == nil || next.Node == c.selfNode() {
		r := succ
		return &r
	}
	remote := c.findSuccessorRemote(next.Node, id)
	if remote == nil {
		// the callee replied empty (no successor of its own) or the
		// lookup failed: either way the callee is taken as the answer.
		return next
	}
	return remote
}

func (c *Chord) selfNode() addr.Node {
	if c.Self == nil {
		return addr.Node{}
	}
	return c.Self()
}

// closestPrecedingFinger scans the finger table from high to low for
// the first entry whose id lies in (self.id, id) modular, falling back
// to the current successor when none qualifies.
func (c *Chord) closestPrecedingFinger(id uint32) *ring {
	c.fingerMu.Lock()
	defer c.fingerMu.Unlock()
	for i := FingerCount - 1; i >= 0; i-- {
		f := c.fingers[i]
		if f.ID < 0 {
			continue
		}
		if chordid.Between(int64(c.ID), int64(id), uint32(f.ID)) {
			r := f
			return &r
		}
	}
	succ := c.getSuccessor()
	if succ.ID < 0 {
		return nil
	}
	return &succ
}

// ApprovalGranted and ApprovalRequestGranted: in Chord, topology is
// driven entirely by Join/stabilize/fix_fingers, so newly-approved
// peers need no extra action beyond what the join sequence already did.
func (c *Chord) ApprovalGranted(ctx context.Context, peer addr.Node)        {}
func (c *Chord) ApprovalRequestGranted(ctx context.Context, peer addr.Node) {}

// UpdateNetwork runs one stabilize + fix_fingers cycle.
func (c *Chord) UpdateNetwork(ctx context.Context, seeds []addr.Node) {
	c.stabilize(ctx)
	c.fixFingers(ctx)
}

// stabilize asks the successor for its predecessor and adopts it if
// it lies strictly between us and our current successor, then
// notifies the (possibly updated) successor.
func (c *Chord) stabilize(ctx context.Context) {
	succ := c.getSuccessor()
	if succ.ID < 0 {
		return
	}
	payload, outcome := c.systemRequest(succ.Node, "predecessor")
	if outcome == dispatch.ResponseSuccess && payload != "" {
		if n, err := addr.Parse(payload); err == nil {
			idPayload, idOutcome := c.systemRequest(n, "id")
			if idOutcome == dispatch.ResponseSuccess {
				if pid, err := strconv.ParseInt(strings.TrimSpace(idPayload), 10, 64); err == nil {
					if chordid.Between(int64(c.ID), succ.ID, uint32(pid)) {
						succ = ring{Node: n, ID: pid}
						c.setSuccessor(succ)
					}
				}
			}
		}
	}
	c.Sender.Send(succ.Node, wire.System, []byte(fmt.Sprintf("notify|%d", c.ID)), true)
}

// notify is the receiver side of stabilize: adopt peer as predecessor
// if we have none, or if it lies strictly between our current
// predecessor and ourselves.
func (c *Chord) notify(peer ring) {
	pred := c.getPredecessor()
	if pred.ID < 0 || chordid.Between(pred.ID, int64(c.ID), uint32(peer.ID)) {
		c.setPredecessor(peer)
	}
}

// fixFingers recomputes every finger table entry. An entry is left
// unchanged only when this node has no successor; when a remote
// lookup inside FindSuccessor fails, the entry is set to the finger
// that was asked.
func (c *Chord) fixFingers(ctx context.Context) {
	for i := 0; i < FingerCount; i++ {
		target := chordid.Modulus(int64(c.ID) + (int64(1) << uint(i)))
		found := c.FindSuccessor(ctx, target)
		if found == nil {
			continue
		}
		c.fingerMu.Lock()
		c.fingers[i] = *found
		c.fingerMu.Unlock()
	}
}

// HandleSystem implements dispatch.SystemHandler: it answers the
// System message grammar (successor/predecessor/id/findsuccessor,
// notify) on its own goroutine per call (see dispatch.Dispatcher).
func (c *Chord) HandleSystem(ctx context.Context, sender addr.Node, payload []byte) (reply string, hasReply bool) {
	msg := string(payload)
	switch {
	case msg == "successor":
		succ := c.getSuccessor()
		if succ.ID < 0 {
			return "", true
		}
		return succ.Node.String(), true
	case msg == "predecessor":
		pred := c.getPredecessor()
		if pred.ID < 0 {
			return "", true
		}
		return pred.Node.String(), true
	case msg == "id":
		return strconv.FormatUint(uint64(c.ID), 10), true
	case strings.HasPrefix(msg, "notify|"):
		idStr := strings.TrimPrefix(msg, "notify|")
		id64, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return "", false
		}
		c.notify(ring{Node: sender, ID: id64})
		return "", false
	case strings.HasPrefix(msg, "findsuccessor|"):
		idStr := strings.TrimPrefix(msg, "findsuccessor|")
		id64, err := strconv.ParseUint(idStr, 10, 32)
		if err != nil {
			return "", true
		}
		found := c.FindSuccessor(ctx, uint32(id64))
		if found == nil {
			return "", true
		}
		return fmt.Sprintf("%s|%d", found.Node, found.ID), true
	default:
		return "", false
	}
}

// SendChordMessage resolves the owner of id via find_successor and
// forwards a fire-and-forget User frame to it. If the resolved owner
// is this node itself, the Sender's own self-check completes the
// result as SelfFailure.
func (c *Chord) SendChordMessage(ctx context.Context, id uint32, payload []byte) *dispatch.SendResult {
	owner := c.resolveOwner(ctx, id)
	return c.Sender.Send(owner, wire.User, payload, true)
}

// SendChordMessageAwaitResponse is the request/response counterpart
// of SendChordMessage.
func (c *Chord) SendChordMessageAwaitResponse(ctx context.Context, id uint32, payload []byte) *dispatch.ResponseResult {
	owner := c.resolveOwner(ctx, id)
	return c.Sender.Request(owner, wire.User, payload, true)
}

// resolveOwner finds which node is responsible for id, falling back
// to this node itself when the ring has no known successor yet.
func (c *Chord) resolveOwner(ctx context.Context, id uint32) addr.Node {
	found := c.FindSuccessor(ctx, id)
	if found == nil {
		return c.selfNode()
	}
	return found.Node
}
