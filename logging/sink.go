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

// Package logging is the node's logger collaborator: a small Sink
// interface plus a handful of concrete backends. Sinks are a log
// trail only — nothing here feeds back into overlay state, and a
// sink that is slow or unreachable must never stall a caller.
package logging

// Level classifies a log entry, in increasing order of severity.
type Level int

// Log levels, matching the external interface's Error/Warning/Info/Debug set.
const (
	Debug Level = iota
	Info
	Warning
	Error
)

// String renders the level for display.
func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Sink receives log entries. Write must be safe to call concurrently
// from every node task (Accept, Reader, Sender and its writers, Ping,
// Update, approval processor, System-frame handler goroutines).
type Sink interface {
	Write(message string, level Level)
}

// NopSink discards everything. Useful as a default when the caller
// does not care to observe log output at all.
type NopSink struct{}

// Write implements Sink.
func (NopSink) Write(string, Level) {}
