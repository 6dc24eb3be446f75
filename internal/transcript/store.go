// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import "errors"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound indicates the message ID is not in the store.
	ErrNotFound = errors.New("message not found")

	// ErrNotStreaming indicates a streaming-only mutation was attempted on a
	// completed message.
	ErrNotStreaming = errors.New("message is not streaming")
)

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// ChangeKind identifies the type of store mutation.
type ChangeKind int

const (
	// ChangeAppended indicates a message was appended to the transcript.
	ChangeAppended ChangeKind = iota
	// ChangeContent indicates streamed content was added to a message.
	ChangeContent
	// ChangeCompleted indicates a streaming message was finalized.
	ChangeCompleted
	// ChangeRemoved indicates a message was removed from the transcript.
	ChangeRemoved
)

// String returns the string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAppended:
		return "appended"
	case ChangeContent:
		return "content"
	case ChangeCompleted:
		return "completed"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change describes a single store mutation delivered to subscribers.
type Change struct {
	Kind      ChangeKind
	MessageID string

	// Delta carries the appended text for ChangeContent notifications.
	Delta string
}

// Listener receives change notifications. Listeners are invoked synchronously
// on the mutating goroutine and must not mutate the store re-entrantly.
type Listener func(Change)

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// Store holds the ordered message sequence for one session.
//
// Ordering is insertion order and is never reshuffled. Lookups are O(1)
// amortized via an ID index. The Store is the sole owner of its messages;
// all mutation goes through this surface, and subscribers observe every
// transition.
type Store struct {
	messages  []*Message
	byID      map[string]*Message
	position  map[string]int
	listeners []Listener
}

// NewStore creates an empty transcript store.
func NewStore() *Store {
	return &Store{
		byID:     make(map[string]*Message),
		position: make(map[string]int),
	}
}

// Subscribe registers a listener for change notifications.
func (s *Store) Subscribe(fn Listener) {
	s.listeners = append(s.listeners, fn)
}

// notify delivers a change to all subscribers.
func (s *Store) notify(c Change) {
	for _, fn := range s.listeners {
		fn(c)
	}
}

// =============================================================================
// MUTATION SURFACE
// =============================================================================

// Append adds a message to the end of the transcript.
func (s *Store) Append(msg *Message) {
	s.position[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	s.byID[msg.ID] = msg
	s.notify(Change{Kind: ChangeAppended, MessageID: msg.ID})
}

// AppendContent appends streamed text to a streaming message, preserving
// arrival order. Returns ErrNotFound for unknown IDs and ErrNotStreaming for
// completed messages.
func (s *Store) AppendContent(id, delta string) error {
	msg, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !msg.IsStreaming {
		return ErrNotStreaming
	}
	msg.appendContent(delta)
	s.notify(Change{Kind: ChangeContent, MessageID: id, Delta: delta})
	return nil
}

// UpdateContent replaces the full content of a streaming message.
func (s *Store) UpdateContent(id, content string) error {
	msg, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if !msg.IsStreaming {
		return ErrNotStreaming
	}
	msg.streamContent.Reset()
	msg.streamContent.WriteString(content)
	s.notify(Change{Kind: ChangeContent, MessageID: id, Delta: content})
	return nil
}

// MarkComplete finalizes a streaming message, freezing its content.
func (s *Store) MarkComplete(id string) error {
	msg, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	msg.finalize()
	s.notify(Change{Kind: ChangeCompleted, MessageID: id})
	return nil
}

// Remove deletes a message by ID, preserving the relative order of the
// remaining messages.
func (s *Store) Remove(id string) error {
	pos, ok := s.position[id]
	if !ok {
		return ErrNotFound
	}
	s.messages = append(s.messages[:pos], s.messages[pos+1:]...)
	delete(s.byID, id)
	delete(s.position, id)
	for i := pos; i < len(s.messages); i++ {
		s.position[s.messages[i].ID] = i
	}
	s.notify(Change{Kind: ChangeRemoved, MessageID: id})
	return nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

// Get returns a message by ID, or nil if absent.
func (s *Store) Get(id string) *Message {
	return s.byID[id]
}

// MessageBefore returns the message immediately preceding the given ID in
// transcript order, or nil if the ID is first or unknown.
func (s *Store) MessageBefore(id string) *Message {
	pos, ok := s.position[id]
	if !ok || pos == 0 {
		return nil
	}
	return s.messages[pos-1]
}

// Messages returns the messages in transcript order. The returned slice is a
// copy; the messages themselves remain owned by the store.
func (s *Store) Messages() []*Message {
	out := make([]*Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// IsEmpty returns true if there are no messages.
func (s *Store) IsEmpty() bool {
	return len(s.messages) == 0
}

// StreamingCount returns the number of messages currently streaming.
// The session invariant is that this is never greater than one.
func (s *Store) StreamingCount() int {
	n := 0
	for _, m := range s.messages {
		if m.IsStreaming {
			n++
		}
	}
	return n
}
