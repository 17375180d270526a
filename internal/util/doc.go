// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by several packages.
//
//   - WriteFileAtomic: crash-safe writes for the config file and exports
//   - FuzzyMatch, Closest: model name suggestions
package util
