// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine orchestrates chat generations for a single session.
//
// A session holds the transcript, the bound thread identifier, and the
// default provider/model pair. The Controller runs at most one generation at
// a time: it appends the user turn and a streaming assistant placeholder,
// opens the gateway request, decodes the event stream, and applies each
// event to the transcript. The Retrier replaces a finished assistant turn
// with a fresh generation, optionally diverting to another model. The Binder
// captures the backend-assigned thread identifier on first completion.
//
// The engine performs no automatic retries and holds no credentials of its
// own; both the gateway transport and the credential source are injected as
// interfaces at construction.
package engine
