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

// Package node wires the wire codec, peer connection tables, framed
// reader, send queue, dispatcher, and a pluggable mesh/chord overlay
// into one runnable node, and exposes the library's public surface:
// Connect/Disconnect, sending and receiving messages, and the
// overlay-specific accessors.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"overlay/addr"
	"overlay/chordid"
	"overlay/dispatch"
	"overlay/logging"
	"overlay/overlay"
	"overlay/peer"
	"overlay/transport"
	"overlay/wire"
)

// Default maintenance intervals, per the ping/liveness and update-loop
// contracts.
const (
	DefaultPingFrequency   = 10 * time.Second
	DefaultUpdateFrequency = 30 * time.Second
	connectionTimeoutRatio = 2 // CONNECTION_TIMEOUT = ratio * PING_FREQUENCY
)

// Overlay types a Node can run.
const (
	Mesh  = "mesh"
	Chord = "chord"
)

var (
	ErrUnknownOverlayType = errors.New("node: overlay type must be \"mesh\" or \"chord\"")
	ErrAlreadyConnected   = errors.New("node: already connected")
	ErrNotConnected       = errors.New("node: not connected")
	ErrNotChord           = errors.New("node: this accessor is only available when running the chord overlay")
)

// JoinResult reports how Connect's initial join attempt went, neither
// of which is itself an error condition.
type JoinResult int

const (
	NewNetworkCreated JoinResult = iota
	ConnectionSuccessful
)

func (r JoinResult) String() string {
	if r == ConnectionSuccessful {
		return "ConnectionSuccessful"
	}
	return "NewNetworkCreated"
}

// Message is the event delivered to a subscriber for every received
// User frame.
type Message = dispatch.Message

// strategy is the subset of the overlay's Mesh/Chord surface the node
// runtime needs: a type tag for the approval handshake, the two
// approval hooks, periodic maintenance, and the System message
// handler. Both overlay.Mesh and overlay.Chord satisfy it.
type strategy interface {
	Type() string
	ApprovalGranted(ctx context.Context, peer addr.Node)
	ApprovalRequestGranted(ctx context.Context, peer addr.Node)
	UpdateNetwork(ctx context.Context, seeds []addr.Node)
	HandleSystem(ctx context.Context, sender addr.Node, payload []byte) (reply string, hasReply bool)
}

// Node is a running (or not-yet-connected) overlay participant.
type Node struct {
	overlayType string
	log         logging.Sink
	pingFreq    time.Duration
	updateFreq  time.Duration

	mu        sync.Mutex
	onMessage func(Message)

	// set by Connect; nil before it and after Disconnect
	listenPort uint16
	listener   net.Listener
	outbound   *peer.OutboundTable
	inbound    *peer.InboundTable
	pending    *dispatch.PendingTable
	sender     *dispatch.Sender
	dispatcher *dispatch.Dispatcher
	approvals  *dispatch.ApprovalQueues
	strategy   strategy
	chord      *overlay.Chord // non-nil iff overlayType == Chord
	seeds      []addr.Node
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithLogger injects the event sink used for the node's own
// diagnostic messages. Default: logging.NewConsoleSink().
func WithLogger(log logging.Sink) Option {
	return func(n *Node) { n.log = log }
}

// WithPingFrequency overrides the default 10s ping/liveness interval.
func WithPingFrequency(d time.Duration) Option {
	return func(n *Node) { n.pingFreq = d }
}

// WithUpdateFrequency overrides the default 30s overlay maintenance
// interval (stabilize/fix_fingers for chord, reconnection for mesh).
func WithUpdateFrequency(d time.Duration) Option {
	return func(n *Node) { n.updateFreq = d }
}

// New builds a Node configured to run overlayType ("mesh" or
// "chord"), not yet connected.
func New(overlayType string, opts ...Option) (*Node, error) {
	if overlayType != Mesh && overlayType != Chord {
		return nil, ErrUnknownOverlayType
	}
	n := &Node{
		overlayType: overlayType,
		log:         logging.NewConsoleSink(),
		pingFreq:    DefaultPingFrequency,
		updateFreq:  DefaultUpdateFrequency,
		onMessage:   func(Message) {},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Connect binds the listening port, brings up every background task,
// and attempts to join the network through seeds (tried in order
// until one grants approval). An empty seed list, or a seed list none
// of which approves us, yields NewNetworkCreated — this node is then
// the sole member of a fresh network rather than an error condition.
func (n *Node) Connect(ctx context.Context, port uint16, seeds []addr.Node) (JoinResult, error) {
	n.mu.Lock()
	if n.cancel != nil {
		n.mu.Unlock()
		return 0, ErrAlreadyConnected
	}
	n.mu.Unlock()

	ln, err := transport.Listen(port)
	if err != nil {
		return 0, fmt.Errorf("node: listen on %d: %w", port, err)
	}
	// port may have been 0 (pick any free port); use the port the OS
	// actually bound for everything downstream, including the address
	// advertised to peers.
	port = uint16(ln.Addr().(*net.TCPAddr).Port)

	runCtx, cancel := context.WithCancel(ctx)

	outbound := peer.NewOutboundTable()
	inbound := peer.NewInboundTable()
	pending := dispatch.NewPendingTable()
	approvals := dispatch.NewApprovalQueues()

	sender := dispatch.NewSender(outbound, inbound, pending, transport.Dial, n.selfFunc(port), n.log)

	dispatcher := &dispatch.Dispatcher{
		Outbound:    outbound,
		Inbound:     inbound,
		Pending:     pending,
		Sender:      sender,
		Approvals:   approvals,
		OverlayType: n.overlayType,
		Log:         n.log,
	}
	dispatcher.OnMessage = func(m Message) {
		n.mu.Lock()
		cb := n.onMessage
		n.mu.Unlock()
		cb(m)
	}

	selfAddrFn := func() addr.Node {
		ips, _ := addr.LocalIPv4Addresses()
		ip := net.IPv4zero
		if len(ips) > 0 {
			ip = ips[0]
		}
		return addr.New(ip, port)
	}

	var strat strategy
	var chordImpl *overlay.Chord
	if n.overlayType == Chord {
		id, err := chordid.New([]byte(fmt.Sprintf(":%d", port)))
		if err != nil {
			cancel()
			ln.Close()
			return 0, fmt.Errorf("node: derive chord id: %w", err)
		}
		chordImpl = overlay.NewChord(sender, outbound, approvals, selfAddrFn, id, n.log)
		strat = chordImpl
	} else {
		strat = &overlay.Mesh{
			Sender:    sender,
			Outbound:  outbound,
			Approvals: approvals,
			Self:      selfAddrFn,
			Log:       n.log,
		}
	}
	dispatcher.System = strat

	n.mu.Lock()
	n.listenPort = port
	n.listener = ln
	n.outbound = outbound
	n.inbound = inbound
	n.pending = pending
	n.sender = sender
	n.dispatcher = dispatcher
	n.approvals = approvals
	n.strategy = strat
	n.chord = chordImpl
	n.seeds = seeds
	n.cancel = cancel
	n.mu.Unlock()

	n.startTasks(runCtx, ln)

	return n.join(runCtx, seeds), nil
}

func (n *Node) startTasks(ctx context.Context, ln net.Listener) {
	n.wg.Add(1)
	go func() { defer n.wg.Done(); transport.Accept(ctx, ln, n.inbound, n.log) }()

	reader := &transport.Reader{Inbound: n.inbound, Dispatch: n.dispatcher.Dispatch, Log: n.log}
	n.wg.Add(1)
	go func() { defer n.wg.Done(); reader.Run(ctx) }()

	n.wg.Add(1)
	go func() { defer n.wg.Done(); n.sender.Run(ctx) }()

	n.wg.Add(1)
	go func() { defer n.wg.Done(); n.pingLoop(ctx) }()

	n.wg.Add(1)
	go func() { defer n.wg.Done(); n.updateLoop(ctx) }()

	n.wg.Add(1)
	go func() { defer n.wg.Done(); n.approvalQueueLoop(ctx) }()
}

func (n *Node) selfFunc(port uint16) func() ([]net.IP, uint16) {
	return func() ([]net.IP, uint16) {
		ips, _ := addr.LocalIPv4Addresses()
		return ips, port
	}
}

// join runs the initial admission sequence against each seed in turn,
// stopping at the first that grants approval.
func (n *Node) join(ctx context.Context, seeds []addr.Node) JoinResult {
	for _, seed := range seeds {
		var ok bool
		if n.overlayType == Chord {
			ok = n.chord.Join(ctx, seed)
		} else {
			ok = overlay.GetApproval(seed, n.sender, n.outbound, n.overlayType, n.approvals)
		}
		if ok {
			return ConnectionSuccessful
		}
	}
	return NewNetworkCreated
}

func (n *Node) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(n.pingFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, nb := range n.outbound.ApprovedNeighbors() {
				n.sender.Send(nb, wire.Ping, nil, true)
			}
			n.evictTimedOutPeers()
		}
	}
}

// evictTimedOutPeers drops any approved outbound connection whose
// last-ping time is older than CONNECTION_TIMEOUT (2x ping frequency).
// The mesh update cycle requests approval again only from evicted
// seeds; other evicted peers, and any evicted chord peer, are not
// redialed by the update loop.
func (n *Node) evictTimedOutPeers() {
	timeout := connectionTimeoutRatio * n.pingFreq
	var stale []addr.Node
	n.outbound.Range(func(a addr.Node, c *peer.Connection) {
		if c.Approved() && time.Since(c.LastPingAt()) > timeout {
			stale = append(stale, a)
		}
	})
	for _, a := range stale {
		if c := n.outbound.Remove(a); c != nil {
			c.Conn.Close()
		}
		n.inbound.Remove(a)
		n.log.Write("evicted timed-out peer "+a.String(), logging.Info)
	}
}

func (n *Node) updateLoop(ctx context.Context) {
	ticker := time.NewTicker(n.updateFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.strategy.UpdateNetwork(ctx, n.seeds)
		}
	}
}

func (n *Node) approvalQueueLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-n.approvals.Grantor:
			go n.strategy.ApprovalGranted(ctx, p)
		case p := <-n.approvals.Requester:
			go n.strategy.ApprovalRequestGranted(ctx, p)
		}
	}
}

// Disconnect stops every background task and closes all connections.
// Safe to call even if Connect was never called.
func (n *Node) Disconnect() {
	n.mu.Lock()
	cancel := n.cancel
	listener := n.listener
	outbound := n.outbound
	inbound := n.inbound
	n.cancel = nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if listener != nil {
		listener.Close()
	}
	n.wg.Wait()

	if outbound != nil {
		outbound.Range(func(_ addr.Node, c *peer.Connection) { c.Conn.Close() })
	}
	if inbound != nil {
		inbound.Range(func(_ addr.Node, c *peer.Connection) { c.Conn.Close() })
	}
}

// GetNeighbors returns the currently approved outbound peers.
func (n *Node) GetNeighbors() []addr.Node {
	if n.outbound == nil {
		return nil
	}
	return n.outbound.ApprovedNeighbors()
}

// GetRemoteNeighbors asks a peer for its own approved neighbor list.
func (n *Node) GetRemoteNeighbors(target addr.Node) *dispatch.ResponseResult {
	return n.sender.Request(target, wire.Neighbors, nil, true)
}

// SendMessage is a fire-and-forget User send.
func (n *Node) SendMessage(dst addr.Node, payload []byte) *dispatch.SendResult {
	return n.sender.Send(dst, wire.User, payload, true)
}

// SendMessageAwaitResponse sends a User frame and waits for a reply.
func (n *Node) SendMessageAwaitResponse(dst addr.Node, payload []byte) *dispatch.ResponseResult {
	return n.sender.Request(dst, wire.User, payload, true)
}

// SendResponse answers a previously received Message with the same
// message id, fire-and-forget.
func (n *Node) SendResponse(msg Message, payload []byte) *dispatch.SendResult {
	sr := dispatch.NewSendResult()
	frame := &wire.Frame{Kind: wire.User, ID: msg.MessageID, AwaitResponse: false, Payload: payload}
	n.sender.Enqueue(&dispatch.SendRequest{Dest: msg.Sender, Frame: frame, Result: sr})
	return sr
}

// OnMessage installs the callback invoked for every received User
// frame. Only one callback is active at a time; a later call replaces
// the previous one.
func (n *Node) OnMessage(callback func(Message)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if callback == nil {
		callback = func(Message) {}
	}
	n.onMessage = callback
}

// Stats is additive telemetry for the introspection endpoint; it
// carries no wire-format implications.
type Stats struct {
	ApprovedNeighbors int
	InboundPeers      int
}

// Stats reports current peer counts.
func (n *Node) Stats() Stats {
	if n.outbound == nil {
		return Stats{}
	}
	inboundCount := 0
	n.inbound.Range(func(addr.Node, *peer.Connection) { inboundCount++ })
	return Stats{
		ApprovedNeighbors: len(n.outbound.ApprovedNeighbors()),
		InboundPeers:      inboundCount,
	}
}

// OverlayType reports "mesh" or "chord".
func (n *Node) OverlayType() string {
	return n.overlayType
}

// ListenPort reports the port the listener actually bound (which differs
// from the one passed to Connect when that was 0), or 0 if not yet
// connected.
func (n *Node) ListenPort() uint16 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listenPort
}

// PingAt returns the last-seen-alive time for an approved neighbor,
// used by the introspection endpoint. ok is false if the peer has no
// outbound connection.
func (n *Node) PingAt(target addr.Node) (t time.Time, ok bool) {
	if n.outbound == nil {
		return time.Time{}, false
	}
	conn := n.outbound.Get(target)
	if conn == nil {
		return time.Time{}, false
	}
	return conn.LastPingAt(), true
}
