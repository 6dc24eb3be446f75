// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// =============================================================================
// CHAT STREAMING
// =============================================================================

// ChatParams describes one generation request.
type ChatParams struct {
	// Message is the user's turn.
	Message string

	// ThreadID is the server-assigned conversation identifier; empty for a
	// session the backend has not yet bound.
	ThreadID string

	// Provider and Model select who serves the generation.
	Provider string
	Model    string
}

// chatRequest is the wire body for POST /chat.
type chatRequest struct {
	Message   string  `json:"message"`
	ThreadID  *string `json:"thread_id"`
	Provider  string  `json:"provider"`
	ModelName string  `json:"model_name"`
	Stream    bool    `json:"stream"`
}

// StreamChat opens a streaming generation request and returns the raw
// response body for the protocol decoder to consume. The caller owns the
// returned body and must close it.
//
// A non-2xx response is a synchronous failure: the body is drained, mapped
// to a typed error, and closed before returning.
func (c *Client) StreamChat(ctx context.Context, params ChatParams) (io.ReadCloser, error) {
	if !c.HasToken() {
		return nil, ErrNoToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody := chatRequest{
		Message:   params.Message,
		Provider:  params.Provider,
		ModelName: params.Model,
		Stream:    true,
	}
	if params.ThreadID != "" {
		reqBody.ThreadID = &params.ThreadID
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, true)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	c.logRequest(http.MethodPost, "/chat")
	start := time.Now()
	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logResponse(resp, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := readResponse(resp)
		resp.Body.Close()
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	return resp.Body, nil
}
