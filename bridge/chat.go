// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package bridge

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/LM4eu/ollamabridge/gbe"
	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
)

// chatHandler is the buffered chat endpoint: one upstream round trip,
// one JSON answer. Whatever happens upstream, the caller gets HTTP 200
// and a content string; failures travel in-band as message text so the
// front-end always has something to display.
func (br *Bridge) chatHandler(c echo.Context) error {
	req := &ChatReq{}
	err := c.Bind(req)
	if err != nil {
		return gbe.Wrap(err, gbe.Invalid, "invalid chat request")
	}

	model := br.Normalize(req.Model)
	slog.Info("using model", "model", model)

	resp, err := br.sendChat(c.Request().Context(), model, req.Messages, false)
	if err != nil {
		slog.Error("cannot reach Ollama", "url", br.chatURL(), "err", err)
		return c.JSON(http.StatusOK, ChatResp{Content: "Error contacting Ollama API: " + err.Error()})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("cannot read Ollama response body", "err", err)
		return c.JSON(http.StatusOK, ChatResp{Content: "Failed to read response body: " + err.Error()})
	}

	// Invalid JSON => return the raw body so the front-end can surface it.
	body := string(raw)
	if !gjson.Valid(body) {
		slog.Warn("invalid JSON from Ollama", "body", body)
		return c.JSON(http.StatusOK, ChatResp{Content: body})
	}

	content, found := ExtractContent(gjson.Parse(body))
	if !found {
		content = body
	}

	return c.JSON(http.StatusOK, ChatResp{Content: content})
}
