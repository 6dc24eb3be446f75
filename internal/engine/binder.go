// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import "log"

// =============================================================================
// THREAD BINDER
// =============================================================================

// ThreadObserver is notified exactly once, when the session first receives
// its backend-assigned thread identifier. Conversation-list bookkeeping
// hangs off this hook; the engine itself never fetches the list.
type ThreadObserver func(threadID string)

// Binder reconciles a locally-started session with the thread identifier the
// backend assigns on first completion. First bind wins: once a session is
// bound, later candidates are ignored.
type Binder struct {
	session  *Session
	observer ThreadObserver
}

// NewBinder creates a binder for the session. A nil observer is allowed.
func NewBinder(session *Session, observer ThreadObserver) *Binder {
	return &Binder{session: session, observer: observer}
}

// BindIfUnset binds the session to candidateID if no thread is bound yet.
// Idempotent: a second call with the same id is a no-op; a second call with
// a differing id is ignored and logged, since the backend should never
// reassign a bound thread.
func (b *Binder) BindIfUnset(candidateID string) {
	if candidateID == "" {
		return
	}
	if bound := b.session.ThreadID(); bound != "" {
		if bound != candidateID {
			log.Printf("engine: ignoring thread rebind %s -> %s", bound, candidateID)
		}
		return
	}
	b.session.setThreadID(candidateID)
	if b.observer != nil {
		b.observer(candidateID)
	}
}
