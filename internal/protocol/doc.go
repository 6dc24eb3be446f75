// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol decodes the gateway's streaming chat wire format.
//
// The gateway answers POST /chat with a chunked body of server-sent-event
// style lines. Each significant line has the form "data: <json>" where the
// JSON record carries optional content, done, thread_id, and error fields.
// This package turns that byte stream into a lazy sequence of typed events.
//
// # Key Types
//
//   - Decoder: per-request line decoder with cooperative cancellation
//   - Event: tagged variant (delta, completion, failure)
//   - DropObserver: hook invoked when a malformed line is dropped
//
// # Robustness
//
// A malformed record never aborts the stream: the offending line is dropped,
// the observer is notified, and decoding continues with the next line. End
// of stream without a terminal event is the caller's signal that the
// connection dropped mid-generation.
package protocol
