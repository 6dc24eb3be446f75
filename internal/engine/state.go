// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

// =============================================================================
// GENERATION STATE MACHINE
// =============================================================================

// State is the lifecycle state of a single generation.
//
// Transitions: Idle → Requesting → Streaming → {Completed | Failed |
// Cancelled}. Requesting becomes Streaming on the first decoded event;
// Streaming is the only state in which content deltas are accepted. Events
// arriving in any other state are ignored and logged as unexpected.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// accepting returns true if stream events may be applied in this state.
func (s State) accepting() bool {
	return s == StateRequesting || s == StateStreaming
}
