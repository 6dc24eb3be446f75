// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import "testing"

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestCatalog_EssentialProviders(t *testing.T) {
	c := New()
	for _, provider := range []string{"openai", "anthropic", "google", "meta"} {
		if len(c.Models(provider)) == 0 {
			t.Errorf("provider %q missing from registry", provider)
		}
	}
}

func TestCatalog_ModelsHaveRequiredFields(t *testing.T) {
	c := New()
	for _, provider := range c.Providers() {
		for _, info := range c.Models(provider) {
			if info.ID == "" {
				t.Errorf("%s: model with empty ID", provider)
			}
			if info.Provider != provider {
				t.Errorf("%s: model %q has Provider %q", provider, info.ID, info.Provider)
			}
		}
	}
}

// =============================================================================
// LOOKUP TESTS
// =============================================================================

func TestCatalog_Lookup(t *testing.T) {
	c := New()

	info, ok := c.Lookup("anthropic", "claude-3-haiku")
	if !ok {
		t.Fatal("Lookup(anthropic, claude-3-haiku) should succeed")
	}
	if info.Name != "Claude 3 Haiku" {
		t.Errorf("Name = %q, want 'Claude 3 Haiku'", info.Name)
	}

	if _, ok := c.Lookup("anthropic", "no-such-model"); ok {
		t.Error("Lookup of unknown model should fail")
	}
	if _, ok := c.Lookup("nobody", "gpt-4"); ok {
		t.Error("Lookup of unknown provider should fail")
	}
}

func TestCatalog_DefaultModel(t *testing.T) {
	c := New()
	model, ok := c.DefaultModel("openai")
	if !ok || model != "gpt-4" {
		t.Errorf("DefaultModel(openai) = %q/%v, want gpt-4/true", model, ok)
	}
	if _, ok := c.DefaultModel("nobody"); ok {
		t.Error("DefaultModel of unknown provider should fail")
	}
}

func TestCatalog_Alternates(t *testing.T) {
	c := New()
	alts := c.Alternates("openai", "gpt-4")

	for _, alt := range alts {
		if alt.Provider == "openai" && alt.Model == "gpt-4" {
			t.Error("Alternates should exclude the current selection")
		}
	}

	found := false
	for _, alt := range alts {
		if alt.Provider == "anthropic" && alt.Model == "claude-3-haiku" {
			found = true
		}
	}
	if !found {
		t.Error("Alternates should include other providers' models")
	}
}

// =============================================================================
// REFRESH TESTS
// =============================================================================

func TestCatalog_RefreshProvider(t *testing.T) {
	c := New()
	before := len(c.Models("openai"))

	c.RefreshProvider("openai", []string{"gpt-4", "gpt-5-preview", ""})

	models := c.Models("openai")
	if len(models) != before+1 {
		t.Fatalf("model count = %d, want %d (one new, dupes and blanks skipped)", len(models), before+1)
	}
	if _, ok := c.Lookup("openai", "gpt-5-preview"); !ok {
		t.Error("refreshed model should be resolvable")
	}

	// Existing entries keep their metadata.
	info, _ := c.Lookup("openai", "gpt-4")
	if info.Name != "GPT-4" {
		t.Errorf("refresh should not overwrite metadata, Name = %q", info.Name)
	}
}

func TestCatalog_Validate(t *testing.T) {
	c := New()
	if err := c.Validate("anthropic", "claude-3-opus"); err != nil {
		t.Errorf("Validate(known) = %v, want nil", err)
	}
	if err := c.Validate("anthropic", "bogus"); err == nil {
		t.Error("Validate(unknown model) should fail")
	}
	if err := c.Validate("bogus", "gpt-4"); err == nil {
		t.Error("Validate(unknown provider) should fail")
	}
}
