// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"strings"
	"testing"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello")

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want %q", msg.Role, RoleUser)
	}
	if msg.Content != "hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "hello")
	}
	if msg.IsStreaming {
		t.Error("user messages should not be streaming")
	}
	if !strings.HasPrefix(msg.ID, "msg_") {
		t.Errorf("ID = %q, want msg_ prefix", msg.ID)
	}
}

func TestNewAssistantMessage(t *testing.T) {
	msg := NewAssistantMessage("openai", "gpt-4")

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want %q", msg.Role, RoleAssistant)
	}
	if !msg.IsStreaming {
		t.Error("assistant placeholder should start streaming")
	}
	if msg.Provider != "openai" || msg.Model != "gpt-4" {
		t.Errorf("tags = %q/%q, want openai/gpt-4", msg.Provider, msg.Model)
	}
	if !msg.IsEmpty() {
		t.Error("assistant placeholder should start empty")
	}
}

func TestMessage_IDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		msg := NewUserMessage("x")
		if seen[msg.ID] {
			t.Fatalf("duplicate message ID %q", msg.ID)
		}
		seen[msg.ID] = true
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short content unchanged", "hi", 10, "hi"},
		{"long content truncated", "hello world", 8, "hello..."},
		{"unicode safe", "héllo wörld", 8, "héllo..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewUserMessage(tc.content)
			if got := msg.Preview(tc.maxLen); got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.maxLen, got, tc.want)
			}
		})
	}
}

// =============================================================================
// STORE MUTATION TESTS
// =============================================================================

func TestStore_AppendPreservesOrder(t *testing.T) {
	store := NewStore()
	first := NewUserMessage("one")
	second := NewAssistantMessage("openai", "gpt-4")
	third := NewUserMessage("two")

	store.Append(first)
	store.Append(second)
	store.Append(third)

	msgs := store.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Len = %d, want 3", len(msgs))
	}
	if msgs[0].ID != first.ID || msgs[1].ID != second.ID || msgs[2].ID != third.ID {
		t.Error("messages not in insertion order")
	}
}

func TestStore_AppendContent(t *testing.T) {
	store := NewStore()
	msg := NewAssistantMessage("openai", "gpt-4")
	store.Append(msg)

	if err := store.AppendContent(msg.ID, "Hi"); err != nil {
		t.Fatalf("AppendContent: %v", err)
	}
	if err := store.AppendContent(msg.ID, " there"); err != nil {
		t.Fatalf("AppendContent: %v", err)
	}

	if got := msg.DisplayContent(); got != "Hi there" {
		t.Errorf("DisplayContent = %q, want %q", got, "Hi there")
	}
}

func TestStore_AppendContentAfterComplete(t *testing.T) {
	store := NewStore()
	msg := NewAssistantMessage("openai", "gpt-4")
	store.Append(msg)
	store.AppendContent(msg.ID, "done")
	store.MarkComplete(msg.ID)

	if err := store.AppendContent(msg.ID, "more"); err != ErrNotStreaming {
		t.Errorf("AppendContent after complete = %v, want ErrNotStreaming", err)
	}
	if msg.Content != "done" {
		t.Errorf("Content = %q, want frozen %q", msg.Content, "done")
	}
}

func TestStore_MarkComplete(t *testing.T) {
	store := NewStore()
	msg := NewAssistantMessage("anthropic", "claude-3-haiku")
	store.Append(msg)
	store.AppendContent(msg.ID, "answer")

	if err := store.MarkComplete(msg.ID); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	if msg.IsStreaming {
		t.Error("message still streaming after MarkComplete")
	}
	if msg.Content != "answer" {
		t.Errorf("Content = %q, want %q", msg.Content, "answer")
	}
	if store.StreamingCount() != 0 {
		t.Errorf("StreamingCount = %d, want 0", store.StreamingCount())
	}
}

func TestStore_UpdateContent(t *testing.T) {
	store := NewStore()
	msg := NewAssistantMessage("openai", "gpt-4")
	store.Append(msg)
	store.AppendContent(msg.ID, "partial")

	if err := store.UpdateContent(msg.ID, "replaced"); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if got := msg.DisplayContent(); got != "replaced" {
		t.Errorf("DisplayContent = %q, want %q", got, "replaced")
	}
}

func TestStore_RemovePreservesOrder(t *testing.T) {
	store := NewStore()
	a := NewUserMessage("a")
	b := NewAssistantMessage("openai", "gpt-4")
	c := NewUserMessage("c")
	store.Append(a)
	store.Append(b)
	store.Append(c)

	if err := store.Remove(b.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	msgs := store.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Len after remove = %d, want 2", len(msgs))
	}
	if msgs[0].ID != a.ID || msgs[1].ID != c.ID {
		t.Error("relative order not preserved after remove")
	}
	if store.Get(b.ID) != nil {
		t.Error("removed message still resolvable")
	}

	// Positions must stay consistent after removal.
	if got := store.MessageBefore(c.ID); got == nil || got.ID != a.ID {
		t.Error("MessageBefore stale after remove")
	}
}

func TestStore_RemoveUnknown(t *testing.T) {
	store := NewStore()
	if err := store.Remove("msg_nope"); err != ErrNotFound {
		t.Errorf("Remove unknown = %v, want ErrNotFound", err)
	}
}

// =============================================================================
// LOOKUP TESTS
// =============================================================================

func TestStore_MessageBefore(t *testing.T) {
	store := NewStore()
	user := NewUserMessage("hello")
	assistant := NewAssistantMessage("openai", "gpt-4")
	store.Append(user)
	store.Append(assistant)

	got := store.MessageBefore(assistant.ID)
	if got == nil || got.ID != user.ID {
		t.Error("MessageBefore should return the preceding user turn")
	}
	if store.MessageBefore(user.ID) != nil {
		t.Error("MessageBefore on first message should be nil")
	}
	if store.MessageBefore("msg_unknown") != nil {
		t.Error("MessageBefore on unknown ID should be nil")
	}
}

// =============================================================================
// NOTIFICATION TESTS
// =============================================================================

func TestStore_Notifications(t *testing.T) {
	store := NewStore()
	var changes []Change
	store.Subscribe(func(c Change) { changes = append(changes, c) })

	msg := NewAssistantMessage("openai", "gpt-4")
	store.Append(msg)
	store.AppendContent(msg.ID, "Hi")
	store.MarkComplete(msg.ID)
	store.Remove(msg.ID)

	wantKinds := []ChangeKind{ChangeAppended, ChangeContent, ChangeCompleted, ChangeRemoved}
	if len(changes) != len(wantKinds) {
		t.Fatalf("got %d changes, want %d", len(changes), len(wantKinds))
	}
	for i, want := range wantKinds {
		if changes[i].Kind != want {
			t.Errorf("change[%d].Kind = %v, want %v", i, changes[i].Kind, want)
		}
		if changes[i].MessageID != msg.ID {
			t.Errorf("change[%d].MessageID = %q, want %q", i, changes[i].MessageID, msg.ID)
		}
	}
	if changes[1].Delta != "Hi" {
		t.Errorf("content change Delta = %q, want %q", changes[1].Delta, "Hi")
	}
}
