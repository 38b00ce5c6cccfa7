// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package bridge

import (
	"io"
	"net/http"

	"github.com/LM4eu/ollamabridge/gbe"
	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"
)

// modelsHandler lists the models known to the Ollama instance.
// Unlike the chat bridges, this endpoint surfaces upstream failures as
// HTTP errors: it serves tooling, not the always-answer chat UI.
func (br *Bridge) modelsHandler(c echo.Context) error {
	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, br.tagsURL(), nil)
	if err != nil {
		return gbe.Wrap(err, gbe.ServerErr, "cannot build tags request", "url", br.tagsURL())
	}

	resp, err := br.client.Do(req)
	if err != nil {
		return gbe.Wrap(err, gbe.UpstreamErr, "cannot reach Ollama", "url", br.tagsURL())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gbe.New(gbe.UpstreamErr, "Ollama tags endpoint failed", "status", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gbe.Wrap(err, gbe.UpstreamErr, "cannot read Ollama tags response")
	}

	names := []string{}
	for _, m := range gjson.GetBytes(raw, "models.#.name").Array() {
		names = append(names, m.String())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"models": names,
		"count":  len(names),
	})
}
