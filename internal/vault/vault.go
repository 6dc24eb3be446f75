// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vault stores gateway credentials and per-model API keys at rest.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/pbkdf2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// CONSTANTS
// =============================================================================

// NonceSize is the size of the nonce/IV for AES-GCM (12 bytes / 96 bits).
const NonceSize = 12

// KeySize is the size of the AES-256 key (32 bytes / 256 bits).
const KeySize = 32

// SaltSize is the size of the salt for key derivation (32 bytes).
const SaltSize = 32

// PBKDF2Iterations is the number of iterations for PBKDF2-SHA-256 key
// derivation. OWASP 2023 recommends 600,000+ to resist brute force on
// modern hardware.
const PBKDF2Iterations = 600000

// tokenProvider is the reserved provider name under which the gateway bearer
// token is stored.
const tokenProvider = "_gateway"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDecryptionFailed indicates decryption failed (wrong passphrase or
	// tampered data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

	// ErrClosed indicates the vault has been closed.
	ErrClosed = errors.New("vault is closed")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS vault_meta (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL,
	secret     BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (provider, model)
);
`

// =============================================================================
// VAULT TYPE
// =============================================================================

// CredentialMeta describes a stored credential without exposing the secret.
type CredentialMeta struct {
	Provider  string
	Model     string
	UpdatedAt time.Time
}

// Vault is an encrypted credential store backed by SQLite.
//
// Secrets are sealed with AES-256-GCM under a key derived from the user's
// passphrase via PBKDF2-SHA-256; only ciphertext touches disk. The vault
// answers the two credential questions the session engine asks before any
// network call: is there a gateway bearer token, and is there a usable key
// for a (provider, model) pair.
type Vault struct {
	db   *sql.DB
	aead cipher.AEAD
}

// Open opens (or creates) a vault at path, unsealing it with passphrase.
// Opening an existing vault with the wrong passphrase succeeds, but every
// secret read will fail with ErrDecryptionFailed.
func Open(path, passphrase string) (*Vault, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	salt, err := loadOrCreateSalt(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	key := deriveKey(passphrase, salt)
	// SECURITY: Zero key material to prevent memory disclosure.
	defer ZeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &Vault{db: db, aead: aead}, nil
}

// Close releases the underlying database.
func (v *Vault) Close() error {
	if v.db == nil {
		return nil
	}
	err := v.db.Close()
	v.db = nil
	return err
}

// =============================================================================
// KEY DERIVATION AND SEALING
// =============================================================================

// deriveKey derives the AES-256 key from a passphrase and salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// ZeroBytes securely zeros sensitive byte slices to prevent memory disclosure.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// loadOrCreateSalt reads the vault salt, generating one on first open.
func loadOrCreateSalt(db *sql.DB) ([]byte, error) {
	var salt []byte
	err := db.QueryRow("SELECT value FROM vault_meta WHERE key = 'salt'").Scan(&salt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read vault salt: %w", err)
	}

	salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := db.Exec("INSERT INTO vault_meta (key, value) VALUES ('salt', ?)", salt); err != nil {
		return nil, fmt.Errorf("failed to store vault salt: %w", err)
	}
	return salt, nil
}

// seal encrypts a secret as nonce||ciphertext.
func (v *Vault) seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// unseal decrypts a nonce||ciphertext blob.
func (v *Vault) unseal(sealed []byte) (string, error) {
	if len(sealed) < NonceSize {
		return "", ErrDecryptionFailed
	}
	plaintext, err := v.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// =============================================================================
// CREDENTIAL CRUD
// =============================================================================

// PutKey stores an API key for a (provider, model) pair. An empty model
// stores a provider-wide key usable by any of the provider's models.
func (v *Vault) PutKey(provider, model, apiKey string) error {
	if v.db == nil {
		return ErrClosed
	}
	sealed, err := v.seal(apiKey)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = v.db.Exec(`
		INSERT INTO credentials (provider, model, secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (provider, model)
		DO UPDATE SET secret = excluded.secret, updated_at = excluded.updated_at`,
		provider, model, sealed, now, now)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// GetKey returns the API key for a (provider, model) pair, falling back to
// the provider-wide key when no model-specific one exists.
func (v *Vault) GetKey(provider, model string) (string, bool, error) {
	if v.db == nil {
		return "", false, ErrClosed
	}
	for _, m := range []string{model, ""} {
		var sealed []byte
		err := v.db.QueryRow(
			"SELECT secret FROM credentials WHERE provider = ? AND model = ?",
			provider, m).Scan(&sealed)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to read credential: %w", err)
		}
		secret, err := v.unseal(sealed)
		if err != nil {
			return "", false, err
		}
		return secret, true, nil
	}
	return "", false, nil
}

// HasModelKey reports whether a usable key exists for a (provider, model)
// pair. A key that fails to unseal (wrong passphrase) is not usable.
func (v *Vault) HasModelKey(provider, model string) bool {
	_, ok, err := v.GetKey(provider, model)
	return err == nil && ok
}

// DeleteKey removes a stored credential. Returns true if one was removed.
func (v *Vault) DeleteKey(provider, model string) (bool, error) {
	if v.db == nil {
		return false, ErrClosed
	}
	res, err := v.db.Exec(
		"DELETE FROM credentials WHERE provider = ? AND model = ?", provider, model)
	if err != nil {
		return false, fmt.Errorf("failed to delete credential: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListKeys returns metadata for all stored credentials, without secrets.
func (v *Vault) ListKeys() ([]CredentialMeta, error) {
	if v.db == nil {
		return nil, ErrClosed
	}
	rows, err := v.db.Query(`
		SELECT provider, model, updated_at FROM credentials
		WHERE provider != ?
		ORDER BY provider, model`, tokenProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var out []CredentialMeta
	for rows.Next() {
		var meta CredentialMeta
		if err := rows.Scan(&meta.Provider, &meta.Model, &meta.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// =============================================================================
// GATEWAY TOKEN
// =============================================================================

// SetToken stores the gateway bearer token.
func (v *Vault) SetToken(token string) error {
	return v.PutKey(tokenProvider, "", token)
}

// Token returns the stored gateway bearer token, if any.
func (v *Vault) Token() (string, bool) {
	token, ok, err := v.GetKey(tokenProvider, "")
	if err != nil || !ok {
		return "", false
	}
	return token, true
}

// ClearToken removes the stored gateway bearer token.
func (v *Vault) ClearToken() error {
	_, err := v.DeleteKey(tokenProvider, "")
	return err
}
