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

package addr

import (
	"net"
	"testing"
)

func TestParseLiteralIPv4(t *testing.T) {
	n, err := Parse("198.51.100.7:9000")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n.Port != 9000 {
		t.Errorf("port = %d, want 9000", n.Port)
	}
	if n.String() != "198.51.100.7:9000" {
		t.Errorf("String() = %q", n.String())
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{"", "noport", "1.2.3.4", "host:notaport"}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", c)
		}
	}
}

func TestEquals(t *testing.T) {
	a := New(net.ParseIP("10.0.0.1"), 100)
	b := New(net.ParseIP("10.0.0.1"), 100)
	c := New(net.ParseIP("10.0.0.2"), 100)
	d := New(net.ParseIP("10.0.0.1"), 101)
	if !a.Equals(b) {
		t.Error("a should equal b")
	}
	if a.Equals(c) {
		t.Error("a should not equal c (different IP)")
	}
	if a.Equals(d) {
		t.Error("a should not equal d (different port)")
	}
}

func TestIsLocal(t *testing.T) {
	self := New(net.ParseIP("192.168.1.5"), 7000)
	locals := []net.IP{net.ParseIP("192.168.1.5"), net.ParseIP("127.0.0.1")}
	if !self.IsLocal(locals, 7000) {
		t.Error("expected IsLocal true for matching ip+port")
	}
	if self.IsLocal(locals, 7001) {
		t.Error("expected IsLocal false for mismatched port")
	}
	other := New(net.ParseIP("192.168.1.9"), 7000)
	if other.IsLocal(locals, 7000) {
		t.Error("expected IsLocal false for unlisted ip")
	}
}
