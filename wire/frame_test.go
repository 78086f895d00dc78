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

package wire

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncodeUserMessageExample(t *testing.T) {
	f := &Frame{Kind: User, ID: 0, AwaitResponse: false, SenderPort: 5000, Payload: []byte("hi")}
	got := Encode(f)
	want := "12f0u5000:hi"
	if string(got) != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []*Frame{
		{Kind: User, ID: 0, AwaitResponse: false, SenderPort: 5000, Payload: []byte("hi")},
		{Kind: Approval, ID: 42, AwaitResponse: true, SenderPort: 1, Payload: []byte("mesh")},
		{Kind: System, ID: 123456789, AwaitResponse: false, SenderPort: 65535, Payload: []byte("findsuccessor|77")},
		{Kind: Neighbors, ID: 7, AwaitResponse: false, SenderPort: 9999, Payload: []byte(";")},
		{Kind: Ping, ID: 0, AwaitResponse: true, SenderPort: 22, Payload: nil},
	}
	for _, f := range cases {
		enc := Encode(f)
		total, _, err := DecodeLength(enc)
		if err != nil {
			t.Fatalf("DecodeLength: %v", err)
		}
		if total != len(enc) {
			t.Fatalf("length prefix %d != actual length %d for %q", total, len(enc), enc)
		}
		got, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Kind != f.Kind || got.ID != f.ID || got.AwaitResponse != f.AwaitResponse ||
			got.SenderPort != f.SenderPort || !bytes.Equal(got.Payload, f.Payload) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, f)
		}
	}
}

func TestUnknownKind(t *testing.T) {
	f := &Frame{Kind: Kind('z'), ID: 0, SenderPort: 1}
	// force an actual 'z' onto the wire by hand since Encode maps Unknown to '?'
	enc := []byte("6f0z1:")
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != Unknown {
		t.Fatalf("kind = %v, want Unknown", got.Kind)
	}
	_ = f
}

func TestInResponseTo(t *testing.T) {
	resp := &Frame{ID: 9, AwaitResponse: false}
	if !resp.InResponseTo() {
		t.Error("expected InResponseTo true for non-zero id, not awaiting response")
	}
	req := &Frame{ID: 9, AwaitResponse: true}
	if req.InResponseTo() {
		t.Error("expected InResponseTo false when awaiting response")
	}
	unused := &Frame{ID: 0, AwaitResponse: false}
	if unused.InResponseTo() {
		t.Error("expected InResponseTo false for id 0")
	}
}

func TestEmptyNeighborList(t *testing.T) {
	f := &Frame{Kind: Neighbors, Payload: []byte(";")}
	enc := Encode(f)
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got.Payload) != ";" {
		t.Fatalf("payload = %q, want %q", got.Payload, ";")
	}
}

func TestTryDecodeLengthIncremental(t *testing.T) {
	f := &Frame{Kind: User, ID: 0, AwaitResponse: false, SenderPort: 5000, Payload: []byte("hi")}
	enc := Encode(f)

	// partial digit run only: not enough to know the length yet
	if _, _, ok, err := TryDecodeLength(enc[:1]); ok || err != nil {
		t.Fatalf("expected incomplete, got ok=%v err=%v", ok, err)
	}
	// full prefix known once the terminator byte ('f' or 't') is present
	total, prefixLen, ok, err := TryDecodeLength(enc)
	if err != nil || !ok {
		t.Fatalf("TryDecodeLength: ok=%v err=%v", ok, err)
	}
	if total != len(enc) {
		t.Fatalf("total = %d, want %d", total, len(enc))
	}
	if prefixLen != 2 { // "12" is two digits
		t.Fatalf("prefixLen = %d, want 2", prefixLen)
	}
}

func TestTryDecodeLengthMalformed(t *testing.T) {
	if _, _, ok, err := TryDecodeLength([]byte("x")); ok || err == nil {
		t.Fatalf("expected malformed-length error, got ok=%v err=%v", ok, err)
	}
}

func TestMalformedLength(t *testing.T) {
	_, _, err := DecodeLength([]byte("notanumber"))
	if err == nil {
		t.Fatal("expected error for non-numeric length prefix")
	}
}

// TestDigitCountBoundary covers the cusp where adding the length
// prefix's own digit count bumps it from one digit to two (total
// length 9 -> 10) and other such boundaries.
func TestDigitCountBoundary(t *testing.T) {
	for _, payloadLen := range []int{3, 4, 6, 7, 8, 9, 92, 93, 96, 97, 98} {
		f := &Frame{Kind: User, ID: 0, AwaitResponse: false, SenderPort: 1, Payload: []byte(strings.Repeat("x", payloadLen))}
		enc := Encode(f)
		total, _, err := DecodeLength(enc)
		if err != nil {
			t.Fatalf("payloadLen=%d: DecodeLength: %v", payloadLen, err)
		}
		if total != len(enc) {
			t.Fatalf("payloadLen=%d: length prefix %d != actual %d (%q)", payloadLen, total, len(enc), enc)
		}
		got, err := Decode(enc)
		if err != nil {
			t.Fatalf("payloadLen=%d: Decode: %v", payloadLen, err)
		}
		if string(got.Payload) != string(f.Payload) {
			t.Fatalf("payloadLen=%d: payload mismatch", payloadLen)
		}
	}
}
