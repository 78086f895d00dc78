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
	"overlay/wire"
)

const (
	readChunk   = 1024
	pollTimeout = 20 * time.Millisecond
	scanRest    = 5 * time.Millisecond
)

// Reader is the Reader task: it scans every inbound peer in its map,
// performs non-blocking reads, drives each connection's FrameBuffer
// state machine, and hands decoded frames to Dispatch. A single
// Reader goroutine dispatches frames serially, preserving per-peer
// ordering without needing a lock around dispatch itself.
type Reader struct {
	Inbound  *peer.InboundTable
	Dispatch func(ctx context.Context, sender addr.Node, frame *wire.Frame)
	Log      logging.Sink
}

// Run scans the inbound table in a loop until ctx is cancelled.
func (r *Reader) Run(ctx context.Context) {
	log := r.Log
	if log == nil {
		log = logging.NopSink{}
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.Inbound.Range(func(key addr.Node, conn *peer.Connection) {
			r.pump(ctx, key, conn)
		})
		time.Sleep(scanRest)
	}
}

// pump performs one non-blocking read attempt on conn and advances
// its FrameBuffer, dispatching every complete frame it yields.
func (r *Reader) pump(ctx context.Context, key addr.Node, conn *peer.Connection) {
	log := r.Log
	if log == nil {
		log = logging.NopSink{}
	}

	_ = conn.Conn.SetReadDeadline(time.Now().Add(pollTimeout))
	chunk := make([]byte, readChunk)
	n, err := conn.Conn.Read(chunk)
	if n > 0 {
		conn.Buffer(func(buf *[]byte, expect *int) {
			*buf = append(*buf, chunk[:n]...)
		})
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			// no data available right now; still try to drain any
			// frames already fully buffered from a prior read.
		} else {
			r.dropConnection(key, conn, log)
			return
		}
	}

	currentKey := key
	for {
		var frame *wire.Frame
		var malformed bool
		conn.Buffer(func(buf *[]byte, expect *int) {
			if *expect == -1 {
				total, _, ok, derr := wire.TryDecodeLength(*buf)
				if derr != nil {
					malformed = true
					return
				}
				if !ok {
					return
				}
				*expect = total
			}
			if len(*buf) < *expect {
				return
			}
			raw := (*buf)[:*expect]
			f, derr := wire.Decode(raw)
			*buf = append([]byte(nil), (*buf)[*expect:]...)
			*expect = -1
			if derr != nil {
				malformed = true
				return
			}
			frame = f
		})
		if malformed {
			r.dropConnection(currentKey, conn, log)
			return
		}
		if frame == nil {
			return
		}

		sender := addr.New(currentKey.IP(), frame.SenderPort)
		if sender != currentKey {
			r.Inbound.Rekey(currentKey, sender)
			currentKey = sender
		}
		r.Dispatch(ctx, sender, frame)
	}
}

func (r *Reader) dropConnection(key addr.Node, conn *peer.Connection, log logging.Sink) {
	conn.Conn.Close()
	r.Inbound.Remove(key)
	log.Write(fmt.Sprintf("dropped inbound connection from %s", key), logging.Debug)
}
