// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog contains the provider and model registry.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo contains detailed information about a model.
// This is used for model selection and for the divert-to-model listing.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Provider identifies who serves the model (openai, anthropic, ...)
	Provider string `json:"provider"`

	// Tier categorizes the model's capability level
	Tier string `json:"tier"`

	// MaxTokens is the maximum context window size
	MaxTokens int `json:"max_tokens"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description"`
}

// Selection is a (provider, model) pair.
type Selection struct {
	Provider string
	Model    string
}

// String returns the selection in "provider/model" form.
func (s Selection) String() string {
	return s.Provider + "/" + s.Model
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// registry is the built-in set of known models, keyed by provider.
// The gateway's GET /providers listing can extend it at runtime.
var registry = map[string][]ModelInfo{
	"openai": {
		{
			ID:          "gpt-4",
			Name:        "GPT-4",
			Provider:    "openai",
			Tier:        "Powerful",
			MaxTokens:   128000,
			Description: "Strong general reasoning",
		},
		{
			ID:          "gpt-4o",
			Name:        "GPT-4o",
			Provider:    "openai",
			Tier:        "Balanced",
			MaxTokens:   128000,
			Description: "Fast multimodal model",
		},
		{
			ID:          "gpt-4o-mini",
			Name:        "GPT-4o Mini",
			Provider:    "openai",
			Tier:        "Fast",
			MaxTokens:   128000,
			Description: "Low latency, low cost",
		},
	},
	"anthropic": {
		{
			ID:          "claude-3-haiku",
			Name:        "Claude 3 Haiku",
			Provider:    "anthropic",
			Tier:        "Fast",
			MaxTokens:   200000,
			Description: "Fast and efficient for simple tasks",
		},
		{
			ID:          "claude-3-sonnet",
			Name:        "Claude 3 Sonnet",
			Provider:    "anthropic",
			Tier:        "Balanced",
			MaxTokens:   200000,
			Description: "Best balance of speed and capability",
		},
		{
			ID:          "claude-3-opus",
			Name:        "Claude 3 Opus",
			Provider:    "anthropic",
			Tier:        "Powerful",
			MaxTokens:   200000,
			Description: "Most capable for complex reasoning",
		},
	},
	"google": {
		{
			ID:          "gemini-pro",
			Name:        "Gemini Pro",
			Provider:    "google",
			Tier:        "Balanced",
			MaxTokens:   32000,
			Description: "General-purpose Gemini model",
		},
	},
	"meta": {
		{
			ID:          "llama-3-70b-instruct",
			Name:        "Llama 3 70B Instruct",
			Provider:    "meta",
			Tier:        "Balanced",
			MaxTokens:   8192,
			Description: "Open-weights instruct model",
		},
	},
}

// =============================================================================
// CATALOG TYPE
// =============================================================================

// Catalog is a mutable view over the model registry. The zero state is the
// built-in registry; RefreshProvider merges gateway-advertised models in.
type Catalog struct {
	models map[string][]ModelInfo
}

// New creates a catalog seeded with the built-in registry.
func New() *Catalog {
	models := make(map[string][]ModelInfo, len(registry))
	for provider, infos := range registry {
		models[provider] = append([]ModelInfo(nil), infos...)
	}
	return &Catalog{models: models}
}

// Providers returns the known provider names, sorted.
func (c *Catalog) Providers() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns the models for a provider.
func (c *Catalog) Models(provider string) []ModelInfo {
	return append([]ModelInfo(nil), c.models[strings.ToLower(provider)]...)
}

// Lookup returns the model entry for a (provider, model) pair.
func (c *Catalog) Lookup(provider, model string) (ModelInfo, bool) {
	for _, info := range c.models[strings.ToLower(provider)] {
		if info.ID == model {
			return info, true
		}
	}
	return ModelInfo{}, false
}

// DefaultModel returns the first registered model for a provider.
func (c *Catalog) DefaultModel(provider string) (string, bool) {
	infos := c.models[strings.ToLower(provider)]
	if len(infos) == 0 {
		return "", false
	}
	return infos[0].ID, true
}

// Alternates returns every registered selection except the given one, for
// presenting divert targets.
func (c *Catalog) Alternates(provider, model string) []Selection {
	var out []Selection
	for _, name := range c.Providers() {
		for _, info := range c.models[name] {
			if name == strings.ToLower(provider) && info.ID == model {
				continue
			}
			out = append(out, Selection{Provider: name, Model: info.ID})
		}
	}
	return out
}

// RefreshProvider merges a gateway-advertised model listing for a provider.
// Models already present keep their metadata; unknown IDs are appended with
// minimal entries.
func (c *Catalog) RefreshProvider(provider string, modelIDs []string) {
	provider = strings.ToLower(provider)
	known := make(map[string]bool, len(c.models[provider]))
	for _, info := range c.models[provider] {
		known[info.ID] = true
	}
	for _, id := range modelIDs {
		if id == "" || known[id] {
			continue
		}
		c.models[provider] = append(c.models[provider], ModelInfo{
			ID:       id,
			Name:     id,
			Provider: provider,
		})
		known[id] = true
	}
}

// Validate returns an error if the (provider, model) pair is unknown.
func (c *Catalog) Validate(provider, model string) error {
	if _, ok := c.models[strings.ToLower(provider)]; !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	if _, ok := c.Lookup(provider, model); !ok {
		return fmt.Errorf("unknown model %q for provider %q", model, provider)
	}
	return nil
}
