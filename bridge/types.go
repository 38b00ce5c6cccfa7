// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package bridge

type (
	// Msg is one chat message, forwarded to Ollama unchanged.
	Msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	// ChatReq is the body accepted by both chat endpoints.
	// Stream is bound for compatibility with the front-end but never
	// consulted: the endpoint selects buffered vs streaming mode.
	ChatReq struct {
		Messages []Msg   `json:"messages"`
		Model    *string `json:"model,omitempty"`
		Stream   *bool   `json:"stream,omitempty"`
	}

	// ollamaReq is the body sent to the Ollama chat endpoint.
	ollamaReq struct {
		Model    string `json:"model"`
		Messages []Msg  `json:"messages"`
		Stream   bool   `json:"stream"`
	}

	// ChatResp is the buffered endpoint response. Upstream failures are
	// delivered through Content as well, not as HTTP errors.
	ChatResp struct {
		Content string `json:"content"`
	}
)
