// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend implements the HTTP client for the Parley chat gateway.
//
// The gateway multiplexes several upstream LLM providers behind one bearer
// authenticated API. Provider-specific request formatting happens server
// side; this client only speaks the gateway's own wire protocol.
//
// # Key Types
//
//   - Client: pooled HTTP client with client-side rate limiting
//   - ChatParams: one streaming generation request (POST /chat)
//   - ConversationInfo / ProviderInfo: sidebar and catalog listings
//
// # Usage
//
// Log in and open a generation stream:
//
//	client := backend.NewClient("https://gateway.example")
//	_, err := client.Login(ctx, user, pass)
//	body, err := client.StreamChat(ctx, backend.ChatParams{
//	    Message:  "Hello",
//	    Provider: "openai",
//	    Model:    "gpt-4",
//	})
//
// # Security
//
// Bearer tokens are attached per request and never logged; request and
// response bodies are never logged. All connections require TLS 1.2+.
package backend
