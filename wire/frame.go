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

// Package wire implements the on-the-wire frame format: an ASCII,
// length-prefixed textual codec for the overlay's custom protocol.
//
// One frame looks like:
//
//	<len><rf><id><kind><port>:<payload>
//
// See Encode and Decode for the exact field grammar.
package wire

import (
	"errors"
	"strconv"
)

// Kind classifies a frame for dispatch.
type Kind byte

// Frame kinds. The wire byte for each is its lower-case initial;
// anything else decodes to Unknown.
const (
	Approval  Kind = 'a'
	Neighbors Kind = 'n'
	Ping      Kind = 'p'
	System    Kind = 's'
	User      Kind = 'u'
	Unknown   Kind = 0
)

func (k Kind) byte() byte {
	if k == Unknown {
		return '?'
	}
	return byte(k)
}

// String renders the kind for logging.
func (k Kind) String() string {
	switch k {
	case Approval:
		return "Approval"
	case Neighbors:
		return "Neighbors"
	case Ping:
		return "Ping"
	case System:
		return "System"
	case User:
		return "User"
	default:
		return "Unknown"
	}
}

// Frame is the decoded form of one wire message.
type Frame struct {
	Kind          Kind
	ID            uint64
	AwaitResponse bool
	SenderPort    uint16
	Payload       []byte
}

// InResponseTo reports whether this frame is itself a response to an
// earlier request: it carries a non-zero id but is not, itself,
// awaiting a reply.
func (f *Frame) InResponseTo() bool {
	return f.ID != 0 && !f.AwaitResponse
}

// Errors returned by Decode. ErrMalformedLength is the one decode
// failure that is fatal to the owning connection (spec: "malformed
// length prefix -> peer connection closed"); every other field simply
// degrades to Unknown/zero values per the decoder contract.
var (
	ErrTruncated       = errors.New("wire: frame truncated")
	ErrMalformedLength = errors.New("wire: malformed length prefix")
)

func kindFromByte(b byte) Kind {
	switch Kind(b) {
	case Approval, Neighbors, Ping, System, User:
		return Kind(b)
	default:
		return Unknown
	}
}

// Encode renders f as the on-wire byte sequence. The length prefix is
// computed so that including its own digit count never invalidates
// the total: the encoder iterates until the digit count of the length
// stabilizes (see package doc and spec boundary behavior around
// digit-count transitions, e.g. total length 9 -> 10).
func Encode(f *Frame) []byte {
	rf := byte('f')
	if f.AwaitResponse {
		rf = 't'
	}
	idStr := strconv.FormatUint(f.ID, 10)
	portStr := strconv.FormatUint(uint64(f.SenderPort), 10)

	// everything on the wire after the length prefix itself
	bodyLen := 1 /*rf*/ + len(idStr) + 1 /*kind*/ + len(portStr) + 1 /*colon*/ + len(f.Payload)

	digits := 1
	total := bodyLen + digits
	for len(strconv.Itoa(total)) != digits {
		digits = len(strconv.Itoa(total))
		total = bodyLen + digits
	}

	buf := make([]byte, 0, total)
	buf = append(buf, strconv.Itoa(total)...)
	buf = append(buf, rf)
	buf = append(buf, idStr...)
	buf = append(buf, f.Kind.byte())
	buf = append(buf, portStr...)
	buf = append(buf, ':')
	buf = append(buf, f.Payload...)
	return buf
}

// scanDigits reads a run of ASCII digits starting at i, returning the
// parsed value (0 for an empty run) and the index of the first
// non-digit byte.
func scanDigits(b []byte, i int) (val uint64, next int) {
	start := i
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i > start {
		val, _ = strconv.ParseUint(string(b[start:i]), 10, 64)
	}
	return val, i
}

// DecodeLength reads just the leading length prefix of a buffer,
// returning the total frame length and the number of bytes the prefix
// itself occupied. Used by the framed reader to learn how many more
// bytes to wait for before a full frame is available.
func DecodeLength(b []byte) (total int, prefixLen int, err error) {
	if len(b) == 0 {
		return 0, 0, ErrTruncated
	}
	v, next := scanDigits(b, 0)
	if next == 0 {
		return 0, 0, ErrMalformedLength
	}
	return int(v), next, nil
}

// maxLengthDigits bounds how many digits the length prefix may run to
// before a stream is considered corrupt rather than merely incomplete.
const maxLengthDigits = 20

// TryDecodeLength is the incremental counterpart to DecodeLength, for
// a framed reader that only has part of a stream buffered so far. ok
// is false when the buffer does not yet contain enough bytes to know
// the digit run has ended (i.e. more data must arrive before the
// length is even known); err is non-nil only for a genuinely
// malformed prefix (no leading digit, or an implausibly long one).
func TryDecodeLength(b []byte) (total, prefixLen int, ok bool, err error) {
	if len(b) == 0 {
		return 0, 0, false, nil
	}
	if b[0] < '0' || b[0] > '9' {
		return 0, 0, false, ErrMalformedLength
	}
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
		if i > maxLengthDigits {
			return 0, 0, false, ErrMalformedLength
		}
	}
	if i == len(b) {
		// digit run not yet terminated by a following byte
		return 0, 0, false, nil
	}
	val, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0, 0, false, ErrMalformedLength
	}
	return int(val), i, true, nil
}

// Decode parses a single complete frame (exactly total bytes, as
// returned by a prior DecodeLength) into a Frame.
func Decode(b []byte) (*Frame, error) {
	total, i, err := DecodeLength(b)
	if err != nil {
		return nil, err
	}
	if total != len(b) {
		return nil, ErrTruncated
	}
	if i >= len(b) {
		return nil, ErrTruncated
	}
	rf := b[i]
	i++

	id, i2 := scanDigits(b, i)
	i = i2
	if i >= len(b) {
		return nil, ErrTruncated
	}
	kind := kindFromByte(b[i])
	i++

	portStart := i
	for i < len(b) && b[i] != ':' {
		i++
	}
	if i >= len(b) {
		return nil, ErrTruncated
	}
	var port uint64
	if i > portStart {
		port, _ = strconv.ParseUint(string(b[portStart:i]), 10, 64)
	}
	i++ // skip ':'

	f := &Frame{
		Kind:          kind,
		ID:            id,
		AwaitResponse: rf == 't',
		SenderPort:    uint16(port),
		Payload:       append([]byte(nil), b[i:]...),
	}
	return f, nil
}
