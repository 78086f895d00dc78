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

package introspect

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"overlay/node"
)

func rpcCall(t *testing.T, h http.Handler, method string, params interface{}) map[string]interface{} {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"method": method,
		"params": []interface{}{params},
		"id":     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s: status %d: %s", method, rec.Code, rec.Body.String())
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("%s: decode response: %v (%s)", method, err, rec.Body.String())
	}
	if decoded["error"] != nil {
		t.Fatalf("%s: rpc error: %v", method, decoded["error"])
	}
	result, _ := decoded["result"].(map[string]interface{})
	return result
}

func TestHealthzReportsOK(t *testing.T) {
	n, err := node.New(node.Mesh)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(n)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected 200 \"ok\", got %d %q", rec.Code, rec.Body.String())
	}
}

func TestNeighborsEmptyBeforeConnect(t *testing.T) {
	n, err := node.New(node.Mesh)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(n)

	result := rpcCall(t, h, "Introspect.Neighbors", struct{}{})
	if result["neighbors"] != nil {
		t.Fatalf("expected no neighbors, got %v", result["neighbors"])
	}
}

func TestChordReportsIsChordFalseOnMeshNode(t *testing.T) {
	n, err := node.New(node.Mesh)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(n)

	result := rpcCall(t, h, "Introspect.Chord", struct{}{})
	if result["is_chord"] != false {
		t.Fatalf("expected is_chord=false, got %v", result["is_chord"])
	}
}

func TestStatsAfterConnect(t *testing.T) {
	n, err := node.New(node.Mesh)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := n.Connect(ctx, 0, nil); err != nil {
		t.Fatal(err)
	}
	defer n.Disconnect()

	h := NewHandler(n)
	result := rpcCall(t, h, "Introspect.Stats", struct{}{})
	if result["approved_neighbors"] != float64(0) {
		t.Fatalf("expected 0 approved neighbors, got %v", result["approved_neighbors"])
	}
}

func TestPingStatusUnknownPeer(t *testing.T) {
	n, err := node.New(node.Mesh)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := n.Connect(ctx, 0, nil); err != nil {
		t.Fatal(err)
	}
	defer n.Disconnect()

	h := NewHandler(n)
	result := rpcCall(t, h, "Introspect.PingStatus", map[string]string{"target": "127.0.0.1:9"})
	if result["known"] != false {
		t.Fatalf("expected known=false for an unconnected peer, got %v", result["known"])
	}
}
