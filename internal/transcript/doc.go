// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript contains the conversation transcript data structures.
//
// This package defines the ordered, observable message store that backs a
// chat session. The store is the single owner of its messages: streaming
// content is appended through it, completion freezes content through it, and
// retry paths remove messages through it, so the user-turn/assistant-turn
// ordering invariant can be enforced in one place.
//
// # Key Types
//
//   - Store: insertion-ordered message sequence with O(1) ID lookup
//   - Message: single message with role, content, and streaming state
//   - Change / Listener: synchronous change-notification surface
//
// # Usage
//
// Create a store and append a user turn:
//
//	store := transcript.NewStore()
//	store.Subscribe(func(c transcript.Change) { ... })
//	store.Append(transcript.NewUserMessage("Hello!"))
package transcript
