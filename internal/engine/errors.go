// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import "errors"

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

var (
	// ErrEmptyMessage indicates the user text was empty after trimming.
	// Rejected synchronously; the transcript is unchanged.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrGenerationActive indicates another generation is in flight for the
	// session. Rejected synchronously; the transcript is unchanged.
	ErrGenerationActive = errors.New("a generation is already active")

	// ErrAuthRequired indicates no gateway bearer token is available.
	// Rejected before any network call.
	ErrAuthRequired = errors.New("authentication required")

	// ErrMissingAPIKey indicates no usable key exists for the requested
	// (provider, model) pair. Rejected before any network call.
	ErrMissingAPIKey = errors.New("no API key for requested provider/model")

	// ErrInvalidRetryTarget indicates the retry target has no preceding user
	// turn, or is not an assistant turn.
	ErrInvalidRetryTarget = errors.New("invalid retry target")

	// ErrConnectionDropped indicates the stream ended without a terminal
	// completion or failure event.
	ErrConnectionDropped = errors.New("connection dropped mid-generation")

	// ErrCancelled indicates the generation was cancelled by the user.
	ErrCancelled = errors.New("generation cancelled")
)

// ServerError is a failure signaled by the backend inside the stream.
// It aborts the generation exactly like a transport failure.
type ServerError struct {
	Message string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return "server signaled error: " + e.Message
}
