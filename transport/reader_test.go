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
	"net"
	"sync"
	"testing"
	"time"

	"overlay/addr"
	"overlay/peer"
	"overlay/wire"
)

func TestReaderDispatchesFramesInOrder(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	inbound := peer.NewInboundTable()
	provisional := addr.New(net.ParseIP("127.0.0.1"), 40000)
	inbound.Put(provisional, server)

	var mu sync.Mutex
	var got []string

	r := &Reader{
		Inbound: inbound,
		Dispatch: func(ctx context.Context, sender addr.Node, frame *wire.Frame) {
			mu.Lock()
			got = append(got, string(frame.Payload))
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)

	go func() {
		f1 := wire.Encode(&wire.Frame{Kind: wire.User, SenderPort: 6000, Payload: []byte("one")})
		f2 := wire.Encode(&wire.Frame{Kind: wire.User, SenderPort: 6000, Payload: []byte("two")})
		client.Write(append(f1, f2...))
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for frames to be dispatched")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if got[0] != "one" || got[1] != "two" {
		t.Fatalf("got %v, want [one two]", got)
	}

	canonical := addr.New(net.ParseIP("127.0.0.1"), 6000)
	if _, ok := inbound.Get(canonical); !ok {
		t.Fatal("expected connection rekeyed to sender's declared port")
	}
}
