// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/jeranaias/parley/internal/protocol"
	"github.com/jeranaias/parley/internal/transcript"
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// ChatRequest is one generation request handed to the gateway.
type ChatRequest struct {
	Message  string
	ThreadID string
	Provider string
	Model    string
}

// Gateway opens streaming generation requests. The returned body carries the
// raw "data: " line stream and is owned by the caller.
type Gateway interface {
	StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error)
}

// Credentials answers the two questions the controller asks before any
// network call: is a gateway bearer token available, and is there a usable
// key for a (provider, model) pair.
type Credentials interface {
	Token() (string, bool)
	HasModelKey(provider, model string) bool
}

// =============================================================================
// GENERATION CONTROLLER
// =============================================================================

// Controller orchestrates one in-flight generation per session.
//
// Start is synchronous: it appends the user turn and the assistant
// placeholder, opens the gateway stream, applies decoded events to the
// transcript, and returns once the generation reaches a terminal state. At
// most one generation is in flight per session; Start rejects while one is
// active. Cancel may be called from another goroutine.
//
// The ordering invariant — a user turn immediately followed by its assistant
// turn — holds after every transition, including failure paths: a failed
// generation removes its placeholder but preserves the user turn so retry
// remains possible.
type Controller struct {
	session *Session
	gateway Gateway
	creds   Credentials
	binder  *Binder

	// mu guards the cancel handle and state; transcript mutation stays on
	// the goroutine running Start.
	mu     sync.Mutex
	cancel context.CancelFunc
	state  State
}

// NewController creates a controller for a session. The credential source is
// injected here; the engine never reads ambient process-wide storage.
func NewController(session *Session, gateway Gateway, creds Credentials, binder *Binder) *Controller {
	return &Controller{
		session: session,
		gateway: gateway,
		creds:   creds,
		binder:  binder,
		state:   StateIdle,
	}
}

// State returns the current generation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Busy returns true while a generation is in flight.
func (c *Controller) Busy() bool {
	return c.session.ActiveGenerationID() != ""
}

// =============================================================================
// PREFLIGHT
// =============================================================================

// Preflight runs every synchronous rejection check without mutating any
// state: at-most-one-active-generation, bearer token presence, and
// per-model key presence. Callers that must leave the transcript untouched
// on rejection (retry paths) run this before removing anything.
func (c *Controller) Preflight(provider, model string) error {
	if c.Busy() {
		return ErrGenerationActive
	}
	if _, ok := c.creds.Token(); !ok {
		return ErrAuthRequired
	}
	if !c.creds.HasModelKey(provider, model) {
		return fmt.Errorf("%w: %s/%s", ErrMissingAPIKey, provider, model)
	}
	return nil
}

// =============================================================================
// START
// =============================================================================

// Start runs one generation: appends the user turn, appends a streaming
// assistant placeholder tagged with provider/model, opens the gateway
// request, and applies stream events until a terminal state.
//
// Returns the generation ID (the placeholder assistant message ID) and, for
// every failure path, an error from the package taxonomy. Failures are never
// retried automatically; the caller decides.
func (c *Controller) Start(ctx context.Context, userText, provider, model string) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return "", ErrEmptyMessage
	}
	if err := c.Preflight(provider, model); err != nil {
		return "", err
	}

	store := c.session.Store()
	store.Append(transcript.NewUserMessage(userText))

	placeholder := transcript.NewAssistantMessage(provider, model)
	store.Append(placeholder)
	c.session.setActive(placeholder.ID)

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancel = cancel
	c.state = StateRequesting
	c.mu.Unlock()

	body, err := c.gateway.StreamChat(genCtx, ChatRequest{
		Message:  userText,
		ThreadID: c.session.ThreadID(),
		Provider: provider,
		Model:    model,
	})
	if err != nil {
		return "", c.fail(placeholder.ID, genCtx, fmt.Errorf("failed to open generation stream: %w", err))
	}
	defer body.Close()

	return c.consume(genCtx, body, placeholder.ID)
}

// consume drains the decoder, applying events to the transcript.
func (c *Controller) consume(ctx context.Context, body io.Reader, genID string) (string, error) {
	dec := protocol.NewDecoder(body)
	store := c.session.Store()

	for {
		ev, err := dec.Next(ctx)
		if err != nil {
			if err == io.EOF {
				// End of stream with no terminal event observed.
				return "", c.fail(genID, ctx, ErrConnectionDropped)
			}
			return "", c.fail(genID, ctx, fmt.Errorf("stream read failed: %w", err))
		}

		// First decoded event moves Requesting to Streaming.
		if c.State() == StateRequesting {
			c.setState(StateStreaming)
		}

		if !c.State().accepting() {
			log.Printf("engine: ignoring unexpected %s event in state %s", ev.Kind, c.State())
			continue
		}

		switch ev.Kind {
		case protocol.EventDelta:
			if err := store.AppendContent(genID, ev.Content); err != nil {
				return "", c.fail(genID, ctx, fmt.Errorf("failed to apply delta: %w", err))
			}

		case protocol.EventCompletion:
			if err := store.MarkComplete(genID); err != nil {
				return "", c.fail(genID, ctx, fmt.Errorf("failed to complete message: %w", err))
			}
			if ev.ThreadID != "" {
				c.binder.BindIfUnset(ev.ThreadID)
			}
			c.finish(StateCompleted)
			return genID, nil

		case protocol.EventFailure:
			return "", c.fail(genID, ctx, &ServerError{Message: ev.Message})
		}
	}
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel requests a best-effort abort of the given generation's transport.
// Returns false for an unknown or stale generation ID, so a double cancel is
// harmless. Bookkeeping is identical to a stream failure: the placeholder is
// removed, the user turn survives.
func (c *Controller) Cancel(generationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generationID == "" || c.session.ActiveGenerationID() != generationID || c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// =============================================================================
// TERMINAL TRANSITIONS
// =============================================================================

// fail removes the placeholder assistant message, clears the in-flight
// marker, and maps cancellation onto ErrCancelled. The user turn is
// preserved so the exchange can be retried.
func (c *Controller) fail(genID string, ctx context.Context, cause error) error {
	if err := c.session.Store().Remove(genID); err != nil {
		log.Printf("engine: failed to remove placeholder %s: %v", genID, err)
	}

	if ctx.Err() != nil || errors.Is(cause, context.Canceled) {
		c.finish(StateCancelled)
		return fmt.Errorf("%w: %v", ErrCancelled, cause)
	}
	c.finish(StateFailed)
	return cause
}

// finish clears the in-flight generation and the cancel handle.
func (c *Controller) finish(terminal State) {
	c.session.clearActive()
	c.mu.Lock()
	c.cancel = nil
	c.state = terminal
	c.mu.Unlock()
}
