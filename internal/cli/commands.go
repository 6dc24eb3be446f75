// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/transcript"
	"github.com/jeranaias/parley/internal/util"
)

// =============================================================================
// SLASH COMMAND DISPATCH
// =============================================================================

// handleSlashCommand dispatches an interactive slash command. The returned
// bool is false when the session should end.
func (a *App) handleSlashCommand(input string) (bool, error) {
	fields := strings.Fields(input)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/help", "/h":
		a.printHelp()
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/model", "/m":
		return true, a.cmdModel(args)

	case "/models":
		return true, a.cmdModels()

	case "/providers":
		return true, a.cmdProviders()

	case "/retry", "/r":
		return true, a.cmdRetry()

	case "/divert", "/d":
		return true, a.cmdDivert(args)

	case "/keys", "/k":
		return true, a.cmdKeys(args)

	case "/login":
		return true, a.cmdLogin(args, false)

	case "/register":
		return true, a.cmdLogin(args, true)

	case "/conversations", "/conv":
		return true, a.cmdConversations()

	case "/history":
		return true, a.cmdHistory()

	case "/new":
		a.resetSession()
		fmt.Println("started a new conversation")
		return true, nil

	default:
		return true, fmt.Errorf("unknown command %s - type /help", cmd)
	}
}

// printHelp lists the interactive commands.
func (a *App) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /model [prov/model]    show or switch the default model")
	fmt.Println("  /models                list models for the current provider")
	fmt.Println("  /providers             list providers advertised by the gateway")
	fmt.Println("  /retry                 regenerate the last assistant turn")
	fmt.Println("  /divert prov/model     regenerate the last turn on a different model")
	fmt.Println("  /keys list             list stored API keys")
	fmt.Println("  /keys set prov [model] store an API key in the vault")
	fmt.Println("  /keys delete prov [model]")
	fmt.Println("  /login username        log in to the gateway")
	fmt.Println("  /register username     create a gateway account")
	fmt.Println("  /conversations         list server-side conversations")
	fmt.Println("  /history               show the current transcript")
	fmt.Println("  /new                   start a fresh conversation")
	fmt.Println("  /quit                  exit")
	fmt.Println("  Ctrl+C                 cancel the current generation")
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// parseSelection accepts "provider/model" or "provider model".
func parseSelection(args []string) (provider, model string, err error) {
	switch len(args) {
	case 1:
		parts := strings.SplitN(args[0], "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", "", fmt.Errorf("expected provider/model, got %q", args[0])
		}
		return parts[0], parts[1], nil
	case 2:
		return args[0], args[1], nil
	default:
		return "", "", fmt.Errorf("expected provider/model")
	}
}

func (a *App) cmdModel(args []string) error {
	if len(args) == 0 {
		provider, model := a.session.Defaults()
		fmt.Printf("current model: %s/%s\n", provider, model)
		return nil
	}

	provider, model, err := parseSelection(args)
	if err != nil {
		return err
	}
	if err := a.catalog.Validate(provider, model); err != nil {
		return err
	}

	a.session.SetDefaults(provider, model)
	fmt.Printf("switched to %s/%s\n", provider, model)
	return nil
}

func (a *App) cmdModels() error {
	provider, current := a.session.Defaults()
	models := a.catalog.Models(provider)
	if len(models) == 0 {
		return fmt.Errorf("no known models for provider %s", provider)
	}

	fmt.Printf("models for %s:\n", provider)
	for _, m := range models {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		fmt.Printf("  %s %s\n", marker, m.ID)
	}
	return nil
}

func (a *App) cmdProviders() error {
	// Refresh the catalog from the gateway when reachable; fall back to the
	// built-in registry otherwise.
	infos, err := a.client.Providers(context.Background())
	if err == nil {
		for _, info := range infos {
			a.catalog.RefreshProvider(info.Name, info.Models)
		}
	}

	for _, p := range a.catalog.Providers() {
		fmt.Printf("  %s (%d models)\n", p, len(a.catalog.Models(p)))
	}
	return nil
}

// =============================================================================
// RETRY / DIVERT
// =============================================================================

func (a *App) cmdRetry() error {
	targetID, ok := a.lastAssistantID()
	if !ok {
		return fmt.Errorf("nothing to retry yet")
	}
	_, err := a.retrier.RetrySameModel(context.Background(), targetID)
	if err != nil {
		a.reportGenerationError(err)
	}
	return nil
}

func (a *App) cmdDivert(args []string) error {
	provider, model, err := parseSelection(args)
	if err != nil {
		return err
	}
	if err := a.catalog.Validate(provider, model); err != nil {
		return err
	}

	targetID, ok := a.lastAssistantID()
	if !ok {
		return fmt.Errorf("nothing to retry yet")
	}

	if _, err := a.retrier.RetryWithModel(context.Background(), targetID, provider, model); err != nil {
		a.reportGenerationError(err)
		return nil
	}
	fmt.Printf("default model is now %s/%s\n", provider, model)
	return nil
}

// =============================================================================
// KEY MANAGEMENT
// =============================================================================

func (a *App) cmdKeys(args []string) error {
	if a.vault == nil {
		return fmt.Errorf("vault is not open")
	}
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "list":
		metas, err := a.vault.ListKeys()
		if err != nil {
			return err
		}
		if len(metas) == 0 {
			fmt.Println("no stored keys")
			return nil
		}
		for _, m := range metas {
			scope := m.Provider
			if m.Model != "" {
				scope = m.Provider + "/" + m.Model
			}
			fmt.Printf("  %s (updated %s)\n", scope, m.UpdatedAt.Format("2006-01-02"))
		}
		return nil

	case "set":
		if len(args) < 2 {
			return fmt.Errorf("usage: /keys set <provider> [model]")
		}
		provider := args[1]
		model := ""
		if len(args) > 2 {
			model = args[2]
		}

		key, err := a.reader.ReadPassword("API key: ")
		if err != nil {
			return err
		}
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("empty key")
		}
		if err := a.vault.PutKey(provider, model, key); err != nil {
			return err
		}
		fmt.Println("key stored")
		return nil

	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: /keys delete <provider> [model]")
		}
		provider := args[1]
		model := ""
		if len(args) > 2 {
			model = args[2]
		}
		removed, err := a.vault.DeleteKey(provider, model)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no such key")
		}
		fmt.Println("key deleted")
		return nil

	default:
		return fmt.Errorf("usage: /keys [list|set|delete]")
	}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func (a *App) cmdLogin(args []string, register bool) error {
	if len(args) != 1 {
		if register {
			return fmt.Errorf("usage: /register <username>")
		}
		return fmt.Errorf("usage: /login <username>")
	}
	username := args[0]

	password, err := a.reader.ReadPassword("password: ")
	if err != nil {
		return err
	}

	var token string
	if register {
		token, err = a.client.Register(context.Background(), username, password)
	} else {
		token, err = a.client.Login(context.Background(), username, password)
	}
	if err != nil {
		return err
	}

	// Persist the token so the next run skips login.
	if a.vault != nil {
		if err := a.vault.SetToken(token); err != nil {
			fmt.Printf("warning: token not persisted: %v\n", err)
		}
	}

	fmt.Printf("logged in as %s\n", username)
	return nil
}

// =============================================================================
// CONVERSATIONS & HISTORY
// =============================================================================

func (a *App) cmdConversations() error {
	convs, err := a.client.Conversations(context.Background())
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("no conversations")
		return nil
	}

	width := a.cfg.REPL.PreviewWidth
	if width <= 0 {
		width = config.Default().REPL.PreviewWidth
	}
	current := a.session.ThreadID()
	for _, conv := range convs {
		marker := " "
		if conv.ThreadID == current {
			marker = "*"
		}
		title := util.TruncateRunes(util.CollapseNewlines(conv.Title), width)
		fmt.Printf("  %s %-12s %s (%d messages)\n", marker, conv.ThreadID, title, conv.MessageCount)
	}
	return nil
}

func (a *App) cmdHistory() error {
	msgs := a.session.Store().Messages()
	if len(msgs) == 0 {
		fmt.Println("empty transcript")
		return nil
	}
	for _, m := range msgs {
		label := m.Role.DisplayName()
		if m.Role == transcript.RoleAssistant && m.Model != "" {
			label = fmt.Sprintf("%s (%s/%s)", label, m.Provider, m.Model)
		}
		fmt.Printf("%s: %s\n", label, m.DisplayContent())
	}
	return nil
}
