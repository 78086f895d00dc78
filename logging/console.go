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

package logging

import (
	"github.com/bfix/gospel/logger"
)

// ConsoleSink writes log entries through gospel/logger, the same
// process-wide console logger the rest of the dependency stack uses.
type ConsoleSink struct{}

// NewConsoleSink returns the default sink: stderr via gospel/logger.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{}
}

// Write implements Sink.
func (s *ConsoleSink) Write(message string, level Level) {
	logger.Println(toGospel(level), "[overlay] "+message)
}

func toGospel(level Level) int {
	switch level {
	case Debug:
		return logger.DBG
	case Info:
		return logger.INFO
	case Warning:
		return logger.WARN
	case Error:
		return logger.ERROR
	default:
		return logger.INFO
	}
}
