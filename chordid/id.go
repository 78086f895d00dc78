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

// Package chordid derives a node's Chord identifier: a positive
// 31-bit integer, stable for the process's lifetime, used as the
// position in the identifier ring. Derivation (not mere randomness)
// is used so the id is reproducible from its inputs for testing while
// still being effectively unpredictable across nodes.
package chordid

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"

	"overlay/util"
)

// Space is the size of the identifier ring: ids lie in [0, Space).
const Space = 1 << 31

// Modulus returns x mod Space as a non-negative value, accepting
// negative inputs so callers can do ordinary signed arithmetic
// (e.g. self.id - 1) before reducing.
func Modulus(x int64) uint32 {
	m := x % Space
	if m < 0 {
		m += Space
	}
	return uint32(m)
}

// New derives a fresh 31-bit identifier from a random seed, with
// context (the node passes ":<listening port>") as the HKDF info input.
// This is a key-derivation use of HKDF, not message encryption or
// authentication: the output never leaves the process and carries no
// cryptographic authenticity claim.
func New(context []byte) (uint32, error) {
	return Derive(util.NewRndArray(32), context)
}

// Derive is the deterministic core of New, exposed so tests can pin
// the seed and assert on the resulting id.
func Derive(seed, context []byte) (uint32, error) {
	h := hkdf.New(sha256.New, seed, nil, context)
	var buf [4]byte
	if _, err := io.ReadFull(h, buf[:]); err != nil {
		return 0, err
	}
	id := binary.BigEndian.Uint32(buf[:]) & 0x7fffffff // 31 bits, non-negative
	return id, nil
}

// Between is the modular "x in (min, max)" predicate over the ring,
// per the join/stabilize contract: negative min or max mean
// "unbounded", and x<0 is never in range.
func Between(min, max int64, x uint32) bool {
	if int64(x) < 0 {
		return false
	}
	if min < 0 || max < 0 {
		return true
	}
	xi := int64(x)
	if min < max {
		return min < xi && xi < max
	}
	return xi > min || xi < max
}

// BetweenInclusiveMax is Between but with max included, used by
// find_successor's "id in (self.id, successor_id]" test.
func BetweenInclusiveMax(min, max int64, x uint32) bool {
	if max >= 0 && int64(x) == max {
		return true
	}
	return Between(min, max, x)
}
