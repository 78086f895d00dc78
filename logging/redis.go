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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisSink publishes log entries to a Redis pub/sub channel, for
// tailing a running node's log trail from another process. Writes are
// serialized through a buffered channel and a single background
// publisher so that a slow or unreachable Redis server never blocks
// the caller.
type RedisSink struct {
	client  *redis.Client
	channel string
	entries chan logEntry
	once    sync.Once
}

// NewRedisSink connects to a Redis server at addr and publishes to
// channel on every Write.
func NewRedisSink(addr, channel string) *RedisSink {
	s := &RedisSink{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		entries: make(chan logEntry, 256),
	}
	go s.drain()
	return s
}

// Write implements Sink. A full backlog drops the entry rather than
// blocking the caller; log trails are best-effort.
func (s *RedisSink) Write(message string, level Level) {
	select {
	case s.entries <- logEntry{at: time.Now(), message: message, level: level}:
	default:
	}
}

func (s *RedisSink) drain() {
	for e := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		line := fmt.Sprintf("%s %s", e.level, e.message)
		_ = s.client.Publish(ctx, s.channel, line).Err()
		cancel()
	}
}

// Close stops accepting new entries and releases the Redis client's
// connections.
func (s *RedisSink) Close() error {
	s.once.Do(func() { close(s.entries) })
	return s.client.Close()
}
