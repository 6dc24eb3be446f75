// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/parley/internal/config"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// LineReader provides input history and line editing for the interactive
// prompt.
// USABILITY: Supports arrow keys for history navigation and line editing.
type LineReader struct {
	line        *liner.State
	historyFile string
}

// NewLineReader creates a LineReader with history loaded from the given
// file. An empty path disables history persistence.
func NewLineReader(historyFile string) *LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &LineReader{
		line:        line,
		historyFile: historyFile,
	}
	r.loadHistory()
	return r
}

// loadHistory loads input history from file.
func (r *LineReader) loadHistory() {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
// Supports history navigation with arrow keys.
func (r *LineReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}

	return input, nil
}

// ReadPassword reads a line without echoing it.
// SECURITY: Used for passphrases and API keys.
func (r *LineReader) ReadPassword(prompt string) (string, error) {
	return r.line.PasswordPrompt(prompt)
}

// saveHistory persists input history with secure permissions.
func (r *LineReader) saveHistory() {
	if r.historyFile == "" {
		return
	}
	if err := config.EnsureConfigDir(); err != nil {
		return
	}

	// 0600: history can contain message content
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	r.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (r *LineReader) Close() {
	r.saveHistory()
	r.line.Close()
}
