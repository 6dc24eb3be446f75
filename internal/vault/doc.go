// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vault stores gateway credentials and per-model API keys at rest.
//
// The vault is a single SQLite database holding the gateway bearer token and
// per-(provider, model) API keys. Every secret is sealed with AES-256-GCM
// under a PBKDF2-SHA-256 derived key before it touches disk.
//
// # Key Types
//
//   - Vault: encrypted CRUD surface over stored credentials
//   - CredentialMeta: listing entry without the secret
//
// # Security
//
// Secrets are never logged and never stored in plaintext. Key material is
// zeroed after cipher initialization. A wrong passphrase surfaces as
// ErrDecryptionFailed on read, not at open time.
package vault
