// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"

	"github.com/jeranaias/parley/internal/backend"
	"github.com/jeranaias/parley/internal/engine"
	"github.com/jeranaias/parley/internal/vault"
)

// =============================================================================
// ENGINE ADAPTERS
// =============================================================================

// gatewayAdapter bridges the backend client to the engine's Gateway
// contract. The engine stays free of HTTP details; the backend stays free of
// engine types.
type gatewayAdapter struct {
	client *backend.Client
}

func (g *gatewayAdapter) StreamChat(ctx context.Context, req engine.ChatRequest) (io.ReadCloser, error) {
	return g.client.StreamChat(ctx, backend.ChatParams{
		Message:  req.Message,
		ThreadID: req.ThreadID,
		Provider: req.Provider,
		Model:    req.Model,
	})
}

// credentials answers the engine's preflight questions. An environment
// token (PARLEY_TOKEN) shadows the vault-stored one so ephemeral
// environments work without a persisted vault.
type credentials struct {
	vault    *vault.Vault
	envToken string
}

func (c *credentials) Token() (string, bool) {
	if c.envToken != "" {
		return c.envToken, true
	}
	if c.vault == nil {
		return "", false
	}
	return c.vault.Token()
}

func (c *credentials) HasModelKey(provider, model string) bool {
	if c.vault == nil {
		return false
	}
	return c.vault.HasModelKey(provider, model)
}
