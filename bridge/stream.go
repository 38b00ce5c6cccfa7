// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/LM4eu/ollamabridge/gbe"
	"github.com/labstack/echo/v4"
)

// relayCap bounds the handoff between the upstream reader and the SSE
// writer: the reader suspends on a full channel, the writer on an empty
// one, smoothing rate differences without unbounded buffering.
const relayCap = 16

// ErrEventPrefix tags the final event when the upstream stream breaks
// after a successful start. The stream protocol cannot carry an
// out-of-band error once started, so the marker travels in-band.
const ErrEventPrefix = "__ERR__:"

// streamHandler is the streaming chat endpoint. It relays the upstream
// byte stream as server-sent events, one event per upstream chunk,
// preserving arrival order and chunk boundaries, without buffering the
// answer. Failures travel in-band: pre-stream failures as a single
// terminal event, mid-stream failures as a final ErrEventPrefix event.
func (br *Bridge) streamHandler(c echo.Context) error {
	req := &ChatReq{}
	err := c.Bind(req)
	if err != nil {
		return gbe.Wrap(err, gbe.Invalid, "invalid chat request")
	}

	model := br.Normalize(req.Model)
	slog.Info("using model (stream)", "model", model)

	ctx := c.Request().Context()
	resp, err := br.sendChat(ctx, model, req.Messages, true)
	if err != nil {
		slog.Error("cannot reach Ollama", "url", br.chatURL(), "err", err)
		return oneEventStream(c, "Error contacting Ollama API: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, er := io.ReadAll(resp.Body)
		resp.Body.Close()
		txt := "unknown error from ollama"
		if er == nil {
			txt = string(raw)
		}
		slog.Error("Ollama refused the chat request", "status", resp.StatusCode)
		return oneEventStream(c, txt)
	}

	events := make(chan string, relayCap)
	go relay(ctx, resp.Body, events)

	activeStreams.Inc()
	defer activeStreams.Dec()

	startEventStream(c)
	for payload := range events {
		er := writeEvent(c.Response(), payload)
		if er != nil {
			// Consumer is gone: stop writing. The request context is
			// canceled on return, which unblocks the relay goroutine.
			return nil
		}
		// The final error sentinel is not an upstream chunk.
		if !strings.HasPrefix(payload, ErrEventPrefix) {
			relayedChunks.Inc()
		}
	}
	return nil
}

// relay reads raw chunks from the upstream body and hands each one over
// the bounded channel, preserving order and chunk boundaries. A chunk
// that is not valid UTF-8 degrades to an empty payload rather than
// failing the stream. The relay ends on upstream EOF, on an upstream
// read error (one final tagged event), or silently when the consumer
// disconnects (context canceled).
func relay(ctx context.Context, body io.ReadCloser, events chan<- string) {
	defer close(events)
	defer body.Close()

	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			payload := ""
			if chunk := buf[:n]; utf8.Valid(chunk) {
				payload = string(chunk)
			}
			select {
			case events <- payload:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				select {
				case events <- ErrEventPrefix + err.Error():
				case <-ctx.Done():
				}
			}
			return
		}
	}
}

// startEventStream sets the SSE headers before the first event.
func startEventStream(c echo.Context) {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
}

// writeEvent writes one SSE event and flushes it to the client.
// A multi-line payload stays a single event: one "data:" field per line.
func writeEvent(w *echo.Response, payload string) error {
	for _, line := range strings.Split(payload, "\n") {
		_, err := w.Write([]byte("data: " + line + "\n"))
		if err != nil {
			return err
		}
	}
	_, err := w.Write([]byte("\n"))
	if err != nil {
		return err
	}
	w.Flush()
	return nil
}

// oneEventStream emits a degenerate stream: a single event, then the end.
func oneEventStream(c echo.Context, payload string) error {
	startEventStream(c)
	return writeEvent(c.Response(), payload)
}
