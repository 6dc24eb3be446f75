// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Interactive chat session loop for the parley CLI.
//
// Runs the REPL that drives the generation engine: reads user turns,
// streams assistant output as it arrives, and dispatches slash commands.
//
// Interactive Commands (during chat):
//   /help, /h             Show available commands
//   /model [prov/model]   Show or switch the default model
//   /models               List models for the current provider
//   /providers            List providers advertised by the gateway
//   /retry                Regenerate the last assistant turn
//   /divert prov/model    Regenerate the last turn on a different model
//   /keys ...             Manage per-model API keys in the vault
//   /login, /register     Authenticate against the gateway
//   /conversations        List server-side conversations
//   /history              Show the current transcript
//   /new                  Start a fresh conversation
//   /quit, /q             Exit
//   Ctrl+C                Cancel the current generation
//   Ctrl+D                Exit
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/jeranaias/parley/internal/backend"
	"github.com/jeranaias/parley/internal/catalog"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/engine"
	"github.com/jeranaias/parley/internal/transcript"
	"github.com/jeranaias/parley/internal/vault"
)

// =============================================================================
// APP STATE
// =============================================================================

// App holds the state for one interactive session.
type App struct {
	cfg     *config.Config
	client  *backend.Client
	vault   *vault.Vault
	catalog *catalog.Catalog
	reader  *LineReader

	session    *engine.Session
	controller *engine.Controller
	retrier    *engine.Retrier

	quiet bool
}

// NewApp wires an interactive session over the given collaborators. The
// vault may be nil when running with PARLEY_TOKEN only.
func NewApp(cfg *config.Config, client *backend.Client, v *vault.Vault, reader *LineReader) *App {
	app := &App{
		cfg:     cfg,
		client:  client,
		vault:   v,
		catalog: catalog.New(),
		reader:  reader,
	}
	app.resetSession()
	return app
}

// resetSession replaces the engine state with a fresh unbound session.
func (a *App) resetSession() {
	session := engine.NewSession(a.cfg.Chat.DefaultProvider, a.cfg.Chat.DefaultModel)
	binder := engine.NewBinder(session, func(threadID string) {
		if !a.quiet {
			fmt.Printf("\n[conversation %s]\n", threadID)
		}
	})
	creds := &credentials{vault: a.vault, envToken: a.cfg.Gateway.Token}
	controller := engine.NewController(session, &gatewayAdapter{client: a.client}, creds, binder)

	a.session = session
	a.controller = controller
	a.retrier = engine.NewRetrier(session, controller)

	// Stream assistant output as it lands in the transcript.
	session.Store().Subscribe(func(c transcript.Change) {
		switch c.Kind {
		case transcript.ChangeContent:
			fmt.Print(c.Delta)
		case transcript.ChangeCompleted:
			fmt.Println()
		}
	})
}

// =============================================================================
// MAIN LOOP
// =============================================================================

// Run starts the interactive loop and blocks until the user exits.
func (a *App) Run() error {
	if !a.quiet {
		a.printWelcome()
	}

	// First Ctrl+C cancels an in-flight generation; at the prompt, liner
	// turns it into ErrPromptAborted instead.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if genID := a.session.ActiveGenerationID(); genID != "" {
				a.controller.Cancel(genID)
			}
		}
	}()

	for {
		input, err := a.reader.ReadInput("parley> ")
		if err != nil {
			if err == liner.ErrPromptAborted {
				// Ctrl+C at the prompt: ignore, print a fresh prompt.
				fmt.Println()
				continue
			}
			// EOF (Ctrl+D) or terminal error - exit gracefully
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := a.handleSlashCommand(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[error] %v\n", err)
			}
			if !shouldContinue {
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		a.send(input)
	}
}

// send runs one generation and reports failures to the user.
func (a *App) send(input string) {
	provider, model := a.session.Defaults()
	_, err := a.controller.Start(context.Background(), input, provider, model)
	if err != nil {
		a.reportGenerationError(err)
	}
}

// reportGenerationError maps engine errors to user-facing messages.
func (a *App) reportGenerationError(err error) {
	switch {
	case errors.Is(err, engine.ErrCancelled):
		fmt.Fprintln(os.Stderr, "\n[cancelled]")
	case errors.Is(err, engine.ErrAuthRequired):
		fmt.Fprintln(os.Stderr, "[error] not logged in - use /login <username>")
	case errors.Is(err, engine.ErrMissingAPIKey):
		fmt.Fprintf(os.Stderr, "[error] %v - use /keys set <provider> [model]\n", err)
	case errors.Is(err, engine.ErrConnectionDropped):
		fmt.Fprintln(os.Stderr, "\n[error] connection dropped - /retry to try again")
	default:
		fmt.Fprintf(os.Stderr, "\n[error] %v\n", err)
	}
}

// lastAssistantID returns the most recent completed assistant turn, the
// target for /retry and /divert.
func (a *App) lastAssistantID() (string, bool) {
	msgs := a.session.Store().Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == transcript.RoleAssistant && !msgs[i].IsStreaming {
			return msgs[i].ID, true
		}
	}
	return "", false
}

// printWelcome shows the session banner.
func (a *App) printWelcome() {
	provider, model := a.session.Defaults()
	fmt.Printf("parley %s - chat gateway client\n", a.cfg.Version)
	fmt.Printf("model: %s/%s  gateway: %s\n", provider, model, a.cfg.Gateway.URL)
	fmt.Println("type /help for commands")
	fmt.Println()
}
