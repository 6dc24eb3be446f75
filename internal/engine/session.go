// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"sync"

	"github.com/jeranaias/parley/internal/transcript"
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds the binding state for one ongoing conversation: the
// transcript, the server-assigned thread identifier, the in-flight
// generation marker, and the default provider/model selection for the next
// turn.
//
// Invariants: at most one transcript message is streaming at any time, and
// when one exists its ID equals the active generation ID. The thread ID is
// unset until the backend assigns one and immutable afterwards.
type Session struct {
	mu sync.Mutex

	store       *transcript.Store
	threadID    string
	activeGenID string

	defaultProvider string
	defaultModel    string
}

// NewSession creates a session over a fresh transcript with the given
// default provider/model selection.
func NewSession(provider, model string) *Session {
	return &Session{
		store:           transcript.NewStore(),
		defaultProvider: provider,
		defaultModel:    model,
	}
}

// NewSessionForThread creates a session already bound to a server thread,
// for reopening an existing conversation.
func NewSessionForThread(threadID, provider, model string) *Session {
	s := NewSession(provider, model)
	s.threadID = threadID
	return s
}

// Store returns the session's transcript store.
func (s *Session) Store() *transcript.Store {
	return s.store
}

// ThreadID returns the server-assigned thread identifier, or "" if the
// session is not yet bound.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// setThreadID records the thread binding. Only the ThreadBinder calls this.
func (s *Session) setThreadID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadID = id
}

// ActiveGenerationID returns the in-flight generation ID, or "" when idle.
func (s *Session) ActiveGenerationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeGenID
}

// setActive marks a generation as in flight.
func (s *Session) setActive(genID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeGenID = genID
}

// clearActive clears the in-flight generation marker.
func (s *Session) clearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeGenID = ""
}

// Defaults returns the provider/model selection used for the next new turn.
func (s *Session) Defaults() (provider, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultProvider, s.defaultModel
}

// SetDefaults updates the provider/model selection for subsequent turns.
// Selecting for the next turn is allowed while a generation is streaming;
// it touches none of the in-flight state.
func (s *Session) SetDefaults(provider, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultProvider = provider
	s.defaultModel = model
}
