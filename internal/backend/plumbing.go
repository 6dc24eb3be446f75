// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

// credentialsRequest is the wire body for the auth endpoints.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse is the gateway's auth payload.
type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges account credentials for a bearer token and configures the
// client with it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp tokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login",
		credentialsRequest{Username: username, Password: password}, &resp, false)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("gateway returned empty token")
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// Register creates an account and returns its bearer token, configuring the
// client with it.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	var resp tokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/register",
		credentialsRequest{Username: username, Password: password}, &resp, false)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("gateway returned empty token")
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// =============================================================================
// CONVERSATION LISTING
// =============================================================================

// ConversationInfo is one entry in the conversation sidebar listing.
type ConversationInfo struct {
	ThreadID     string    `json:"thread_id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// conversationsResponse is the wire shape of GET /conversations.
type conversationsResponse struct {
	Conversations []ConversationInfo `json:"conversations"`
}

// Conversations fetches the account's conversation listing.
func (c *Client) Conversations(ctx context.Context) ([]ConversationInfo, error) {
	if !c.HasToken() {
		return nil, ErrNoToken
	}
	var resp conversationsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// =============================================================================
// PROVIDER CATALOG
// =============================================================================

// ProviderInfo is one entry in the gateway's provider catalog.
type ProviderInfo struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// providersResponse is the wire shape of GET /providers.
type providersResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

// Providers fetches the gateway's provider/model catalog.
func (c *Client) Providers(ctx context.Context) ([]ProviderInfo, error) {
	var resp providersResponse
	if err := c.doJSON(ctx, http.MethodGet, "/providers", nil, &resp, c.HasToken()); err != nil {
		return nil, err
	}
	return resp.Providers, nil
}
