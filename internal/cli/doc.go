// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the interactive command-line surface for parley.
//
// The App type runs a readline-style REPL over the generation engine:
// plain input becomes a chat turn streamed to stdout, and slash commands
// manage models, credentials, retries, and conversations.
//
// # Key Types
//
//   - App: the interactive session loop and slash command dispatch
//   - LineReader: liner-backed input with persistent history
//
// # Usage
//
// Wire an App from loaded config and collaborators, then run it:
//
//	reader := cli.NewLineReader(historyPath)
//	defer reader.Close()
//	app := cli.NewApp(cfg, client, vlt, reader)
//	return app.Run()
//
// # Commands Overview
//
//   - /model, /models, /providers: model selection
//   - /retry, /divert: regenerate the last assistant turn
//   - /keys: per-model API keys in the encrypted vault
//   - /login, /register: gateway authentication
//   - /conversations, /history, /new: conversation management
package cli
