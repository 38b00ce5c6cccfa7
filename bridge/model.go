// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package bridge

import "strings"

// Normalize maps a caller-supplied model token to the identifier Ollama
// expects. An absent token resolves to the configured default model.
// Known aliases map to their canonical form. A token in "major.minor"
// style (contains a dot, no colon) is coerced to Ollama's "name:tag"
// convention by rewriting every dot to a colon. Anything else passes
// through unchanged.
//
// Normalize is total and deterministic, and a no-op on canonical tokens.
// Both bridges apply it the same way.
func (br *Bridge) Normalize(model *string) string {
	if model == nil {
		return br.Cfg.DefaultModel
	}

	m := *model
	if canonical, ok := br.Cfg.Aliases[m]; ok {
		return canonical
	}

	if strings.Contains(m, ".") && !strings.Contains(m, ":") {
		return strings.ReplaceAll(m, ".", ":")
	}

	return m
}
