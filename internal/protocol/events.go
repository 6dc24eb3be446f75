// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol decodes the gateway's streaming chat wire format.
package protocol

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventKind identifies the variant of a decoded stream event.
type EventKind int

const (
	// EventDelta carries an incremental content fragment.
	EventDelta EventKind = iota
	// EventCompletion marks the end of a successful generation, optionally
	// carrying the server-assigned thread identifier.
	EventCompletion
	// EventFailure marks a server-signaled error; it terminates the logical
	// stream for the request.
	EventFailure
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventCompletion:
		return "completion"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is a single decoded stream event.
//
// Events are transient: they are produced by the Decoder, consumed by the
// generation controller, and never stored.
type Event struct {
	Kind EventKind

	// Content is the incremental text for EventDelta.
	Content string

	// ThreadID is the server-assigned thread identifier, present only on
	// EventCompletion and only for the first exchange of a session.
	ThreadID string

	// Message is the server-signaled error text for EventFailure.
	Message string
}

// IsTerminal returns true if no further events follow this one.
func (e Event) IsTerminal() bool {
	return e.Kind == EventCompletion || e.Kind == EventFailure
}

// =============================================================================
// WIRE RECORD
// =============================================================================

// record is the JSON payload of one "data: " line.
// A record may carry content, a done marker (optionally with the thread
// identifier), or an error, and a single record may combine content with the
// done marker.
type record struct {
	Content  string `json:"content"`
	Done     bool   `json:"done"`
	ThreadID string `json:"thread_id"`
	Error    string `json:"error"`
}
