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
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSink appends log entries to a local SQLite database. Writes
// are serialized through a buffered channel and a single background
// writer so that a slow disk never blocks the caller.
type SQLiteSink struct {
	db      *sql.DB
	entries chan logEntry
	once    sync.Once
}

type logEntry struct {
	at      time.Time
	message string
	level   Level
}

// NewSQLiteSink opens (creating if absent) the database at path and
// ensures the log table exists.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	const schema = `CREATE TABLE IF NOT EXISTS overlay_log (
		at INTEGER NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	s := &SQLiteSink{db: db, entries: make(chan logEntry, 256)}
	go s.drain()
	return s, nil
}

// Write implements Sink. A full backlog drops the entry rather than
// blocking the caller; log trails are best-effort.
func (s *SQLiteSink) Write(message string, level Level) {
	select {
	case s.entries <- logEntry{at: time.Now(), message: message, level: level}:
	default:
	}
}

func (s *SQLiteSink) drain() {
	for e := range s.entries {
		_, _ = s.db.Exec(
			"INSERT INTO overlay_log (at, level, message) VALUES (?, ?, ?)",
			e.at.Unix(), e.level.String(), e.message,
		)
	}
}

// Close stops accepting new entries and closes the underlying database.
func (s *SQLiteSink) Close() error {
	s.once.Do(func() { close(s.entries) })
	return s.db.Close()
}
