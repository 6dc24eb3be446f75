// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/parley/internal/transcript"
)

// =============================================================================
// TEST FAKES
// =============================================================================

type fakeCreds struct {
	hasToken bool
	keys     map[string]bool
}

func (f *fakeCreds) Token() (string, bool) {
	if !f.hasToken {
		return "", false
	}
	return "tok_test", true
}

func (f *fakeCreds) HasModelKey(provider, model string) bool {
	return f.keys[provider+"/"+model]
}

func allCreds() *fakeCreds {
	return &fakeCreds{hasToken: true, keys: map[string]bool{
		"openai/gpt-4":             true,
		"anthropic/claude-3-haiku": true,
	}}
}

// scriptedGateway pops one canned response per StreamChat call and records
// every request it sees.
type scriptedGateway struct {
	mu        sync.Mutex
	responses []scriptedResponse
	requests  []ChatRequest
}

type scriptedResponse struct {
	body string
	err  error
}

func (g *scriptedGateway) StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.responses) == 0 {
		return nil, errors.New("scripted gateway exhausted")
	}
	next := g.responses[0]
	g.responses = g.responses[1:]
	if next.err != nil {
		return nil, next.err
	}
	return io.NopCloser(strings.NewReader(next.body)), nil
}

// blockingGateway delivers a first chunk, then blocks until the request
// context is cancelled.
type blockingGateway struct {
	first     string
	delivered chan struct{}
}

func (g *blockingGateway) StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	return io.NopCloser(&blockingReader{ctx: ctx, first: g.first, delivered: g.delivered}), nil
}

type blockingReader struct {
	ctx       context.Context
	first     string
	delivered chan struct{}
	sent      bool
}

func (r *blockingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		n := copy(p, r.first)
		close(r.delivered)
		return n, nil
	}
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

func newTestController(gw Gateway, creds Credentials) (*Controller, *Session) {
	session := NewSession("openai", "gpt-4")
	binder := NewBinder(session, nil)
	return NewController(session, gw, creds, binder), session
}

// =============================================================================
// CONTROLLER TESTS
// =============================================================================

func TestStartStreamsFullExchange(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{{
		body: "data: {\"content\":\"Hi\"}\n" +
			"data: {\"content\":\" there\"}\n" +
			"data: {\"done\":true,\"thread_id\":\"t1\"}\n",
	}}}
	ctrl, session := newTestController(gw, allCreds())

	genID, err := ctrl.Start(context.Background(), "hello", "openai", "gpt-4")
	require.NoError(t, err)

	msgs := session.Store().Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, transcript.RoleUser, msgs[0].Role)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, transcript.RoleAssistant, msgs[1].Role)
	require.Equal(t, "Hi there", msgs[1].Content)
	require.False(t, msgs[1].IsStreaming)
	require.Equal(t, "openai", msgs[1].Provider)
	require.Equal(t, "gpt-4", msgs[1].Model)
	require.Equal(t, msgs[1].ID, genID)

	require.Equal(t, "t1", session.ThreadID())
	require.Equal(t, "", session.ActiveGenerationID())
	require.Equal(t, StateCompleted, ctrl.State())

	require.Len(t, gw.requests, 1)
	require.Equal(t, "hello", gw.requests[0].Message)
	require.Equal(t, "", gw.requests[0].ThreadID)
}

func TestStartCarriesBoundThread(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{
		{body: "data: {\"content\":\"a\"}\ndata: {\"done\":true,\"thread_id\":\"t1\"}\n"},
		{body: "data: {\"content\":\"b\"}\ndata: {\"done\":true}\n"},
	}}
	ctrl, session := newTestController(gw, allCreds())

	_, err := ctrl.Start(context.Background(), "first", "openai", "gpt-4")
	require.NoError(t, err)
	_, err = ctrl.Start(context.Background(), "second", "openai", "gpt-4")
	require.NoError(t, err)

	require.Len(t, gw.requests, 2)
	require.Equal(t, "t1", gw.requests[1].ThreadID)
	require.Equal(t, "t1", session.ThreadID())
}

func TestStartRejectsEmptyMessage(t *testing.T) {
	ctrl, session := newTestController(&scriptedGateway{}, allCreds())

	_, err := ctrl.Start(context.Background(), "   \n\t ", "openai", "gpt-4")
	require.ErrorIs(t, err, ErrEmptyMessage)
	require.True(t, session.Store().IsEmpty())
}

func TestStartRejectsWhileActive(t *testing.T) {
	gw := &scriptedGateway{}
	ctrl, session := newTestController(gw, allCreds())
	session.setActive("gen_busy")

	_, err := ctrl.Start(context.Background(), "hello", "openai", "gpt-4")
	require.ErrorIs(t, err, ErrGenerationActive)
	require.True(t, session.Store().IsEmpty())
	require.Empty(t, gw.requests)
}

func TestStartRequiresToken(t *testing.T) {
	creds := allCreds()
	creds.hasToken = false
	ctrl, session := newTestController(&scriptedGateway{}, creds)

	_, err := ctrl.Start(context.Background(), "hello", "openai", "gpt-4")
	require.ErrorIs(t, err, ErrAuthRequired)
	require.True(t, session.Store().IsEmpty())
}

func TestStartRequiresModelKey(t *testing.T) {
	ctrl, session := newTestController(&scriptedGateway{}, allCreds())

	_, err := ctrl.Start(context.Background(), "hello", "openai", "o1-preview")
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.True(t, session.Store().IsEmpty())
}

func TestConnectionDropRemovesPlaceholder(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{
		{body: "data: {\"content\":\"Hi\"}\n"},
	}}
	ctrl, session := newTestController(gw, allCreds())

	_, err := ctrl.Start(context.Background(), "hello", "openai", "gpt-4")
	require.ErrorIs(t, err, ErrConnectionDropped)

	msgs := session.Store().Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, transcript.RoleUser, msgs[0].Role)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "", session.ActiveGenerationID())
	require.Equal(t, StateFailed, ctrl.State())
	require.Equal(t, "", session.ThreadID())
}

func TestServerSignaledErrorRemovesPlaceholder(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{
		{body: "data: {\"content\":\"par\"}\ndata: {\"error\":\"model overloaded\"}\n"},
	}}
	ctrl, session := newTestController(gw, allCreds())

	_, err := ctrl.Start(context.Background(), "hello", "openai", "gpt-4")
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	require.Equal(t, "model overloaded", serverErr.Message)

	require.Equal(t, 1, session.Store().Len())
	require.Equal(t, StateFailed, ctrl.State())
}

func TestRequestErrorRemovesPlaceholder(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{
		{err: errors.New("502 bad gateway")},
	}}
	ctrl, session := newTestController(gw, allCreds())

	_, err := ctrl.Start(context.Background(), "hello", "openai", "gpt-4")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")

	msgs := session.Store().Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, transcript.RoleUser, msgs[0].Role)
}

func TestMalformedLinesDoNotAlterContent(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{{
		body: "data: {\"content\":\"Hi\"}\n" +
			"data: {not json at all\n" +
			"data: {\"content\":\" there\"}\n" +
			"data: {\"done\":true}\n",
	}}}
	ctrl, session := newTestController(gw, allCreds())

	genID, err := ctrl.Start(context.Background(), "hello", "openai", "gpt-4")
	require.NoError(t, err)
	require.Equal(t, "Hi there", session.Store().Get(genID).Content)
}

func TestCancelAbortsGeneration(t *testing.T) {
	delivered := make(chan struct{})
	gw := &blockingGateway{first: "data: {\"content\":\"Hi\"}\n", delivered: delivered}
	ctrl, session := newTestController(gw, allCreds())

	// The store runs on the generation goroutine; observe the first delta
	// through a subscription rather than polling.
	deltaSeen := make(chan string, 1)
	session.Store().Subscribe(func(c transcript.Change) {
		if c.Kind == transcript.ChangeContent {
			select {
			case deltaSeen <- c.MessageID:
			default:
			}
		}
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.Start(context.Background(), "hello", "openai", "gpt-4")
		errCh <- err
	}()

	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never started")
	}

	var genID string
	select {
	case genID = <-deltaSeen:
	case <-time.After(5 * time.Second):
		t.Fatal("first delta never arrived")
	}
	require.True(t, ctrl.Cancel(genID))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not terminate after cancel")
	}

	msgs := session.Store().Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, transcript.RoleUser, msgs[0].Role)
	require.Equal(t, StateCancelled, ctrl.State())

	// Stale ID after termination.
	require.False(t, ctrl.Cancel(genID))
}

func TestCancelUnknownGeneration(t *testing.T) {
	ctrl, _ := newTestController(&scriptedGateway{}, allCreds())
	require.False(t, ctrl.Cancel("gen_nope"))
	require.False(t, ctrl.Cancel(""))
}

// =============================================================================
// RETRY TESTS
// =============================================================================

func completedExchange(t *testing.T, gw *scriptedGateway) (*Retrier, *Controller, *Session, string) {
	t.Helper()
	ctrl, session := newTestController(gw, allCreds())
	genID, err := ctrl.Start(context.Background(), "hello", "openai", "gpt-4")
	require.NoError(t, err)
	return NewRetrier(session, ctrl), ctrl, session, genID
}

func TestRetrySameModelReplacesTurn(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{
		{body: "data: {\"content\":\"Hi there\"}\ndata: {\"done\":true,\"thread_id\":\"t1\"}\n"},
		{body: "data: {\"content\":\"Hello again\"}\ndata: {\"done\":true}\n"},
	}}
	retrier, _, session, genID := completedExchange(t, gw)

	newID, err := retrier.RetrySameModel(context.Background(), genID)
	require.NoError(t, err)
	require.NotEqual(t, genID, newID)

	msgs := session.Store().Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[0].Content)
	require.Equal(t, "Hello again", msgs[1].Content)
	require.NotContains(t, msgs[1].Content, "Hi there")

	require.Len(t, gw.requests, 2)
	require.Equal(t, "hello", gw.requests[1].Message)
	require.Equal(t, "t1", gw.requests[1].ThreadID)
}

func TestRetryWithModelDivertsAndUpdatesDefaults(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{
		{body: "data: {\"content\":\"Hi there\"}\ndata: {\"done\":true,\"thread_id\":\"t1\"}\n"},
		{body: "data: {\"content\":\"Bonjour\"}\ndata: {\"done\":true}\n"},
	}}
	retrier, _, session, genID := completedExchange(t, gw)

	newID, err := retrier.RetryWithModel(context.Background(), genID, "anthropic", "claude-3-haiku")
	require.NoError(t, err)

	msg := session.Store().Get(newID)
	require.Equal(t, "Bonjour", msg.Content)
	require.Equal(t, "anthropic", msg.Provider)
	require.Equal(t, "claude-3-haiku", msg.Model)

	provider, model := session.Defaults()
	require.Equal(t, "anthropic", provider)
	require.Equal(t, "claude-3-haiku", model)
}

func TestRetryWithModelFailureKeepsDefaults(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{
		{body: "data: {\"content\":\"Hi there\"}\ndata: {\"done\":true,\"thread_id\":\"t1\"}\n"},
		{body: "data: {\"error\":\"overloaded\"}\n"},
	}}
	retrier, _, session, genID := completedExchange(t, gw)

	_, err := retrier.RetryWithModel(context.Background(), genID, "anthropic", "claude-3-haiku")
	require.Error(t, err)

	provider, model := session.Defaults()
	require.Equal(t, "openai", provider)
	require.Equal(t, "gpt-4", model)

	// Failed regeneration leaves just the preserved user turn.
	msgs := session.Store().Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, transcript.RoleUser, msgs[0].Role)
}

func TestRetryRejectsInvalidTargets(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{
		{body: "data: {\"content\":\"Hi there\"}\ndata: {\"done\":true,\"thread_id\":\"t1\"}\n"},
	}}
	retrier, _, session, _ := completedExchange(t, gw)
	userID := session.Store().Messages()[0].ID

	tests := []struct {
		name   string
		target string
	}{
		{"unknown id", "msg_nope"},
		{"user turn", userID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := retrier.RetrySameModel(context.Background(), tt.target)
			require.ErrorIs(t, err, ErrInvalidRetryTarget)
			require.Equal(t, 2, session.Store().Len())
		})
	}
}

func TestRetryPreflightLeavesTranscriptUntouched(t *testing.T) {
	gw := &scriptedGateway{responses: []scriptedResponse{
		{body: "data: {\"content\":\"Hi there\"}\ndata: {\"done\":true,\"thread_id\":\"t1\"}\n"},
	}}
	retrier, _, session, genID := completedExchange(t, gw)

	// Divert to a model without a stored key.
	_, err := retrier.RetryWithModel(context.Background(), genID, "google", "gemini-pro")
	require.ErrorIs(t, err, ErrMissingAPIKey)

	msgs := session.Store().Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "Hi there", msgs[1].Content)

	provider, model := session.Defaults()
	require.Equal(t, "openai", provider)
	require.Equal(t, "gpt-4", model)
}

// =============================================================================
// BINDER TESTS
// =============================================================================

func TestBinderFirstBindWins(t *testing.T) {
	session := NewSession("openai", "gpt-4")
	var notified []string
	binder := NewBinder(session, func(id string) { notified = append(notified, id) })

	binder.BindIfUnset("")
	require.Equal(t, "", session.ThreadID())

	binder.BindIfUnset("t1")
	require.Equal(t, "t1", session.ThreadID())

	binder.BindIfUnset("t1")
	binder.BindIfUnset("t2")
	require.Equal(t, "t1", session.ThreadID())
	require.Equal(t, []string{"t1"}, notified)
}

func TestBinderNilObserver(t *testing.T) {
	session := NewSession("openai", "gpt-4")
	binder := NewBinder(session, nil)
	binder.BindIfUnset("t1")
	require.Equal(t, "t1", session.ThreadID())
}
