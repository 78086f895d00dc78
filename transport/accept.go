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

package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"overlay/addr"
	"overlay/logging"
	"overlay/peer"
)

// Listen opens the node's listening socket. Failure to bind is the
// one fatal condition in the whole system; every other failure
// degrades to reconnection attempts.
func Listen(port uint16) (net.Listener, error) {
	return net.Listen("tcp4", fmt.Sprintf(":%d", port))
}

// Accept runs the Accept task: it blocks on ln until ctx is
// cancelled, inserting every inbound connection into the inbound
// table under a provisional key (the observed IP and the ephemeral
// TCP source port). The framed reader re-keys each connection to its
// peer's declared (ip, listening port) once the first frame arrives.
func Accept(ctx context.Context, ln net.Listener, inbound *peer.InboundTable, log logging.Sink) {
	if log == nil {
		log = logging.NopSink{}
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	var retryDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() { //nolint:staticcheck // Temporary is deprecated but still the idiom for retryable accept errors
				if retryDelay == 0 {
					retryDelay = 5 * time.Millisecond
				} else {
					retryDelay *= 2
				}
				if max := time.Second; retryDelay > max {
					retryDelay = max
				}
				log.Write(fmt.Sprintf("accept failed (temporary, retrying in %v): %v", retryDelay, err), logging.Warning)
				time.Sleep(retryDelay)
				continue
			}
			log.Write(fmt.Sprintf("accept failed: %v", err), logging.Warning)
			continue
		}
		retryDelay = 0
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		key := provisionalKey(conn)
		inbound.Put(key, conn)
		log.Write("accepted inbound connection from "+key.String(), logging.Debug)
	}
}

func provisionalKey(conn net.Conn) addr.Node {
	ra, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return addr.New(net.IPv4zero, 0)
	}
	return addr.New(ra.IP, uint16(ra.Port))
}
