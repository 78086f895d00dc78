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

// Package util holds small, dependency-free helpers shared by other
// packages in the module.
package util

import "crypto/rand"

// RndArray fills a buffer with cryptographically random content.
func RndArray(b []byte) {
	rand.Read(b) //nolint:errcheck // crypto/rand.Read never errors on this platform
}

// NewRndArray creates a new buffer of the given size, filled with
// random content. Used to seed chord identifier derivation.
func NewRndArray(size int) []byte {
	b := make([]byte, size)
	RndArray(b)
	return b
}
