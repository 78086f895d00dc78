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

// Package introspect exposes a read-only HTTP/JSON-RPC surface over a
// running node.Node: neighbor list, chord ring position, and
// last-ping timestamps. It never mutates overlay state and is never
// started automatically — the embedding application mounts the
// returned http.Handler on whatever listener it chooses.
package introspect

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/rpc"
	"github.com/gorilla/rpc/json"

	"overlay/node"
)

// NewHandler builds the introspection HTTP handler for n. Routes:
//
//	POST /rpc         JSON-RPC (gorilla/rpc json codec), methods below
//	GET  /healthz     plain-text "ok", for load balancer probes
//
// JSON-RPC methods (registered under the "Introspect" service name):
// Introspect.Neighbors, Introspect.RemoteNeighbors, Introspect.Chord,
// Introspect.Stats, Introspect.PingStatus.
func NewHandler(n *node.Node) http.Handler {
	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(json.NewCodec(), "application/json")
	_ = rpcServer.RegisterService(&Service{node: n}, "Introspect")

	router := mux.NewRouter()
	router.Handle("/rpc", rpcServer).Methods(http.MethodPost)
	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	return router
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
