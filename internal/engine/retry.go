// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"fmt"

	"github.com/jeranaias/parley/internal/transcript"
)

// =============================================================================
// RETRY COORDINATOR
// =============================================================================

// Retrier replays a finished assistant turn, optionally diverting it to a
// different provider/model. Retry is user-initiated only; nothing in the
// engine retries on its own.
type Retrier struct {
	session    *Session
	controller *Controller
}

// NewRetrier wires a retrier over a session and its controller.
func NewRetrier(session *Session, controller *Controller) *Retrier {
	return &Retrier{session: session, controller: controller}
}

// RetrySameModel regenerates the given assistant turn with the session's
// current default provider/model.
func (r *Retrier) RetrySameModel(ctx context.Context, assistantID string) (string, error) {
	provider, model := r.session.Defaults()
	return r.retry(ctx, assistantID, provider, model, false)
}

// RetryWithModel regenerates the given assistant turn against a different
// provider/model. The session's defaults move to the diverted pair only if
// the regeneration completes; a failed divert leaves them untouched.
func (r *Retrier) RetryWithModel(ctx context.Context, assistantID, provider, model string) (string, error) {
	return r.retry(ctx, assistantID, provider, model, true)
}

// retry validates the target, reruns preflight, removes the old assistant
// turn, and starts a fresh generation from the preceding user turn. The
// transcript is left untouched on every pre-network rejection.
func (r *Retrier) retry(ctx context.Context, assistantID, provider, model string, divert bool) (string, error) {
	store := r.session.Store()

	target := store.Get(assistantID)
	if target == nil || target.Role != transcript.RoleAssistant || target.IsStreaming {
		return "", fmt.Errorf("%w: %s", ErrInvalidRetryTarget, assistantID)
	}

	prompt := store.MessageBefore(assistantID)
	if prompt == nil || prompt.Role != transcript.RoleUser {
		return "", fmt.Errorf("%w: no user turn precedes %s", ErrInvalidRetryTarget, assistantID)
	}

	if err := r.controller.Preflight(provider, model); err != nil {
		return "", err
	}

	// Validation passed; from here the old turn comes out. The preserved
	// user turn is re-appended by Start, so the pair stays adjacent.
	userText := prompt.Content
	if err := store.Remove(assistantID); err != nil {
		return "", fmt.Errorf("failed to remove retry target: %w", err)
	}
	if err := store.Remove(prompt.ID); err != nil {
		return "", fmt.Errorf("failed to remove prompt turn: %w", err)
	}

	genID, err := r.controller.Start(ctx, userText, provider, model)
	if err != nil {
		return "", err
	}
	if divert {
		r.session.SetDefaults(provider, model)
	}
	return genID, nil
}
