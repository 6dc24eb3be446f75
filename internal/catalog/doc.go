// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog contains the provider and model registry.
//
// The catalog seeds a built-in set of known providers and models and can be
// refreshed from the gateway's GET /providers listing. The engine consults it
// to validate divert targets and to resolve per-provider default models.
package catalog
