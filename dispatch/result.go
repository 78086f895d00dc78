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

// Package dispatch implements the send path (queue, writer, result
// handles) and the receive path (frame routing) that sit between the
// wire codec and the overlay strategies.
package dispatch

import (
	"overlay/wire"
)

// SendOutcome is the terminal state of a SendResult.
type SendOutcome int

// Send outcomes.
const (
	SendPending SendOutcome = iota
	SendSuccess
	ConnectionFailure
	SelfFailure
)

func (o SendOutcome) String() string {
	switch o {
	case SendPending:
		return "Pending"
	case SendSuccess:
		return "Success"
	case ConnectionFailure:
		return "ConnectionFailure"
	case SelfFailure:
		return "SelfFailure"
	default:
		return "Unknown"
	}
}

// ResponseOutcome is the terminal state of the response half of a
// ResponseResult.
type ResponseOutcome int

// Response outcomes.
const (
	ResponsePending ResponseOutcome = iota
	ResponseSuccess
	ResponseConnectionFailure
	ResponseTimeout
)

func (o ResponseOutcome) String() string {
	switch o {
	case ResponsePending:
		return "Pending"
	case ResponseSuccess:
		return "Success"
	case ResponseConnectionFailure:
		return "ConnectionFailure"
	case ResponseTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Progress tracks how far a send has advanced, independent of its
// final outcome. It only ever moves forward.
type Progress int

// Progress stages, in order. Handles are only ever set to Queued,
// WaitingForResponse and Complete: a SendResult goes from Queued to
// Complete, a ResponseResult through WaitingForResponse after a
// successful send. Sending and Sent are defined but never set.
const (
	Queued Progress = iota
	Sending
	Sent
	WaitingForResponse
	Complete
)

// sendCompleter is satisfied by both SendResult and ResponseResult so
// the writer can complete either kind of handle uniformly.
type sendCompleter interface {
	completeSend(SendOutcome)
}

// SendResult is the handle returned for a fire-and-forget send
// (User/Ping/Neighbors-reply/...). It is completed exactly once.
type SendResult struct {
	Progress Progress
	Outcome  SendOutcome

	done chan struct{}
}

// NewSendResult returns a pending handle.
func NewSendResult() *SendResult {
	return &SendResult{Progress: Queued, done: make(chan struct{})}
}

// completeSend marks the result finished. Safe to call at most once.
func (r *SendResult) completeSend(outcome SendOutcome) {
	r.Outcome = outcome
	r.Progress = Complete
	close(r.done)
}

// Wait blocks until the send completes and returns its outcome.
func (r *SendResult) Wait() SendOutcome {
	<-r.done
	return r.Outcome
}

// ResponseResult is the handle returned for a send that awaits a
// response (SendMessageAwaitResponse, SendChordMessageAwaitResponse,
// and the overlay's own internal request/response RPCs).
type ResponseResult struct {
	Progress        Progress
	SendOutcome     SendOutcome
	ResponseOutcome ResponseOutcome
	Response        *wire.Frame

	done chan struct{}
}

// NewResponseResult returns a pending handle.
func NewResponseResult() *ResponseResult {
	return &ResponseResult{Progress: Queued, done: make(chan struct{})}
}

// completeSend records the outcome of the send itself. A failure here
// is terminal: the response will never arrive.
func (r *ResponseResult) completeSend(outcome SendOutcome) {
	r.SendOutcome = outcome
	if outcome != SendSuccess {
		// a failed send (including SelfFailure) never gets a response
		r.ResponseOutcome = ResponseConnectionFailure
		r.Progress = Complete
		close(r.done)
		return
	}
	r.Progress = WaitingForResponse
}

// completeResponse records the arrival (or failure) of the response.
// Must only be called after completeSend(SendSuccess).
func (r *ResponseResult) completeResponse(outcome ResponseOutcome, frame *wire.Frame) {
	r.ResponseOutcome = outcome
	r.Response = frame
	r.Progress = Complete
	close(r.done)
}

// Wait blocks until both the send and its response (or failure) complete.
func (r *ResponseResult) Wait() (ResponseOutcome, *wire.Frame) {
	<-r.done
	return r.ResponseOutcome, r.Response
}
