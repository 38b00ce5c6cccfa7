// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

// Package bridge translates front-end chat requests into Ollama API calls,
// in buffered or streaming mode.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/LM4eu/ollamabridge/conf"
	"github.com/LM4eu/ollamabridge/gbe"
	"github.com/labstack/echo/v4"
)

// Bridge holds the state shared by all handlers: the configuration and one
// long-lived upstream HTTP client. Both are read-only after New, so the
// handlers need no locking. The client has no timeout: a stream may
// legitimately outlive any fixed deadline, the caller connection controls
// the request lifetime instead.
type Bridge struct {
	Cfg    *conf.Cfg
	client *http.Client
}

// New creates the Bridge around a single pooled upstream client.
func New(cfg *conf.Cfg) *Bridge {
	return &Bridge{
		Cfg:    cfg,
		client: &http.Client{},
	}
}

func (br *Bridge) chatURL() string { return br.Cfg.OllamaURL + "/api/chat" }
func (br *Bridge) tagsURL() string { return br.Cfg.OllamaURL + "/api/tags" }

// sendChat posts one chat request to the Ollama chat endpoint.
// The body is built fresh per call: model already normalized, messages
// forwarded unchanged, stream fixed by the calling bridge.
func (br *Bridge) sendChat(ctx context.Context, model string, messages []Msg, stream bool) (*http.Response, error) {
	body, err := json.Marshal(ollamaReq{Model: model, Messages: messages, Stream: stream})
	if err != nil {
		return nil, gbe.Wrap(err, gbe.ServerErr, "cannot marshal upstream request", "model", model)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, br.chatURL(), bytes.NewReader(body))
	if err != nil {
		return nil, gbe.Wrap(err, gbe.ServerErr, "cannot build upstream request", "url", br.chatURL())
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if stream {
		req.Header.Set("Accept", "application/x-ndjson")
	} else {
		req.Header.Set("Accept", echo.MIMEApplicationJSON)
	}

	return br.client.Do(req)
}
