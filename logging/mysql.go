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

	_ "github.com/go-sql-driver/mysql"
)

// MySQLSink appends log entries to a shared MySQL table, for
// deployments that centralize logs from many overlay nodes. Same
// buffered, non-blocking write discipline as SQLiteSink.
type MySQLSink struct {
	db      *sql.DB
	entries chan logEntry
	once    sync.Once
}

// NewMySQLSink connects using dsn (as accepted by go-sql-driver/mysql)
// and ensures the log table exists.
func NewMySQLSink(dsn string) (*MySQLSink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	const schema = `CREATE TABLE IF NOT EXISTS overlay_log (
		at BIGINT NOT NULL,
		level VARCHAR(16) NOT NULL,
		message TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	s := &MySQLSink{db: db, entries: make(chan logEntry, 256)}
	go s.drain()
	return s, nil
}

// Write implements Sink.
func (s *MySQLSink) Write(message string, level Level) {
	select {
	case s.entries <- logEntry{at: time.Now(), message: message, level: level}:
	default:
	}
}

func (s *MySQLSink) drain() {
	for e := range s.entries {
		_, _ = s.db.Exec(
			"INSERT INTO overlay_log (at, level, message) VALUES (?, ?, ?)",
			e.at.Unix(), e.level.String(), e.message,
		)
	}
}

// Close stops accepting new entries and closes the underlying database.
func (s *MySQLSink) Close() error {
	s.once.Do(func() { close(s.entries) })
	return s.db.Close()
}
