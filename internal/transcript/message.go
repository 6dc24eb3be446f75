// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript contains the conversation transcript data structures.
package transcript

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a transcript.
//
// Message identity is stable for the lifetime of a session. Content is
// append-only while IsStreaming is true and frozen once streaming completes.
// Messages are owned exclusively by the Store; callers must go through the
// Store's mutation surface rather than mutating a Message directly.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`

	// Content
	Content string `json:"content"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`

	// Generation tags (assistant messages only)
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// NewUserMessage creates a new user message with a generated ID.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates a new streaming assistant placeholder tagged
// with the provider and model that will produce it.
func NewAssistantMessage(provider, model string) *Message {
	return &Message{
		ID:          generateID(),
		Role:        RoleAssistant,
		CreatedAt:   time.Now(),
		IsStreaming: true,
		Provider:    provider,
		Model:       model,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// appendContent appends streamed text to a streaming message.
// No-op once the message is complete.
func (m *Message) appendContent(text string) {
	if m.IsStreaming {
		m.streamContent.WriteString(text)
	}
}

// finalize completes streaming and freezes the content.
func (m *Message) finalize() {
	if !m.IsStreaming {
		return
	}
	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false
}

// DisplayContent returns the content to display (streaming or final).
func (m *Message) DisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.DisplayContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
// UUIDs keep IDs collision-free under rapid message creation, unlike
// timestamp-derived identifiers.
func generateID() string {
	return "msg_" + uuid.NewString()
}
