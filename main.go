// parley - A terminal client for the Parley chat gateway.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/parley/internal/backend"
	"github.com/jeranaias/parley/internal/cli"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/vault"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to config file (default ~/.parley/config.toml)")
		gatewayURL  = flag.String("url", "", "gateway base URL (overrides config)")
		model       = flag.String("model", "", "default model as provider/model (overrides config)")
		noVault     = flag.Bool("no-vault", false, "skip the credential vault (requires PARLEY_TOKEN)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("parley %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return nil
	}

	// Configuration: file, then env, then flags.
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
		if err != nil {
			return err
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			return err
		}
	}
	if *gatewayURL != "" {
		cfg.Gateway.URL = *gatewayURL
	}
	if *model != "" {
		provider, name, ok := splitSelection(*model)
		if !ok {
			return fmt.Errorf("invalid --model %q, expected provider/model", *model)
		}
		cfg.Chat.DefaultProvider = provider
		cfg.Chat.DefaultModel = name
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.SetGlobal(cfg)

	// Live-reload the chat defaults when the config file changes on disk.
	if tomlPath, pathErr := config.ConfigPathTOML(); pathErr == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if w, werr := config.NewWatcher(tomlPath, func(next *config.Config) {
				config.SetGlobal(next)
			}); werr == nil {
				if w.Watch() == nil {
					defer w.Close()
				}
			}
		}
	}

	// Gateway client.
	client := backend.NewClient(cfg.Gateway.URL).
		WithTimeout(time.Duration(cfg.Gateway.TimeoutSecs) * time.Second).
		WithRateLimit(cfg.Gateway.RequestsPerMinute)
	if cfg.Gateway.Token != "" {
		client.SetToken(cfg.Gateway.Token)
	}

	// Credential vault, unlocked with a passphrase prompt.
	var vlt *vault.Vault
	if !*noVault {
		vaultPath, err := cfg.VaultPath()
		if err != nil {
			return err
		}
		passphrase, err := cli.PromptPassphrase("vault passphrase: ")
		if err != nil {
			return err
		}
		vlt, err = vault.Open(vaultPath, passphrase)
		if err != nil {
			return fmt.Errorf("failed to open vault: %w", err)
		}
		defer vlt.Close()

		// A previously persisted token logs the session in automatically.
		if !client.HasToken() {
			if token, ok := vlt.Token(); ok {
				client.SetToken(token)
			}
		}
	}

	historyPath, err := cfg.HistoryPath()
	if err != nil {
		historyPath = ""
	}
	reader := cli.NewLineReader(historyPath)
	defer reader.Close()

	app := cli.NewApp(cfg, client, vlt, reader)
	return app.Run()
}

// splitSelection parses "provider/model".
func splitSelection(s string) (provider, model string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if i == 0 || i == len(s)-1 {
				return "", "", false
			}
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
