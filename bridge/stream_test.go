// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package bridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// parseEvents decodes an SSE body into its event payloads, reassembling
// multi-line payloads from their "data:" fields.
func parseEvents(t *testing.T, body string) []string {
	t.Helper()
	var events []string
	for _, block := range strings.Split(body, "\n\n") {
		if block == "" {
			continue
		}
		var lines []string
		for _, line := range strings.Split(block, "\n") {
			require.True(t, strings.HasPrefix(line, "data: "), "unexpected SSE line: %q", line)
			lines = append(lines, strings.TrimPrefix(line, "data: "))
		}
		events = append(events, strings.Join(lines, "\n"))
	}
	return events
}

func newStreamRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestStreamChunkFidelity(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, chunk := range []string{"a", "b", "c"} {
			_, _ = w.Write([]byte(chunk))
			flusher.Flush()
			// let each chunk travel on its own
			time.Sleep(20 * time.Millisecond)
		}
	}))
	defer upstream.Close()

	br := New(testCfg(upstream.URL))
	c, rec := newEchoCtx(newStreamRequest(t, `{"messages":[{"role":"user","content":"hi"}]}`))

	require.NoError(t, br.streamHandler(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	require.Equal(t, []string{"a", "b", "c"}, parseEvents(t, rec.Body.String()))
}

func TestStreamMultiLineChunkStaysOneEvent(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{\"a\":1}\n{\"b\":2}"))
	}))
	defer upstream.Close()

	br := New(testCfg(upstream.URL))
	c, rec := newEchoCtx(newStreamRequest(t, `{"messages":[]}`))

	require.NoError(t, br.streamHandler(c))
	require.Equal(t, []string{"{\"a\":1}\n{\"b\":2}"}, parseEvents(t, rec.Body.String()))
}

func TestStreamUpstreamUnreachable(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	br := New(testCfg(url))
	c, rec := newEchoCtx(newStreamRequest(t, `{"messages":[]}`))

	require.NoError(t, br.streamHandler(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// exactly one event, then the stream ends
	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	require.True(t, strings.HasPrefix(events[0], "Error contacting Ollama API: "), events[0])
}

func TestStreamUpstreamErrorStatus(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer upstream.Close()

	br := New(testCfg(upstream.URL))
	c, rec := newEchoCtx(newStreamRequest(t, `{"messages":[]}`))

	require.NoError(t, br.streamHandler(c))
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	require.Contains(t, events[0], "model not found")
}

func TestStreamMidStreamFailure(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		// Promise more bytes than delivered: the client hits an
		// unexpected EOF after the first chunk.
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("a"))
		flusher.Flush()
		time.Sleep(20 * time.Millisecond)
	}))
	defer upstream.Close()

	br := New(testCfg(upstream.URL))
	c, rec := newEchoCtx(newStreamRequest(t, `{"messages":[]}`))

	require.NoError(t, br.streamHandler(c))

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	require.Equal(t, "a", events[0])
	require.True(t, strings.HasPrefix(events[1], ErrEventPrefix), events[1])
}

func TestStreamInvalidUTF8ChunkBecomesEmptyEvent(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	defer upstream.Close()

	br := New(testCfg(upstream.URL))
	c, rec := newEchoCtx(newStreamRequest(t, `{"messages":[]}`))

	require.NoError(t, br.streamHandler(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// The chunk is still delivered as one event, with an empty payload.
	require.Equal(t, []string{""}, parseEvents(t, rec.Body.String()))
}

func TestStreamConsumerDisconnect(t *testing.T) {
	t.Parallel()

	upstreamDone := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(upstreamDone)
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for {
			_, err := w.Write([]byte("tick"))
			if err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))
	defer upstream.Close()

	gw := httptest.NewServer(New(testCfg(upstream.URL)).NewEcho())
	defer gw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gw.URL+"/api/chat/stream", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Receive one event, then walk away mid-stream.
	buf := make([]byte, 64)
	_, err = resp.Body.Read(buf)
	require.NoError(t, err)
	cancel()

	// The relay notices the canceled request and releases the upstream.
	select {
	case <-upstreamDone:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream still held after the consumer left")
	}
}

// No t.Parallel: reads the process-wide chunk counter.
func TestStreamErrorEventNotCountedAsChunk(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("a"))
		flusher.Flush()
		time.Sleep(20 * time.Millisecond)
	}))
	defer upstream.Close()

	br := New(testCfg(upstream.URL))
	c, rec := newEchoCtx(newStreamRequest(t, `{"messages":[]}`))

	before := testutil.ToFloat64(relayedChunks)
	require.NoError(t, br.streamHandler(c))

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	require.True(t, strings.HasPrefix(events[1], ErrEventPrefix), events[1])

	// Only the data chunk counts, not the error sentinel.
	require.Equal(t, before+1, testutil.ToFloat64(relayedChunks))
}

func TestStreamNormalizesModel(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "llama3:8b", gjson.GetBytes(body, "model").String())
		require.True(t, gjson.GetBytes(body, "stream").Bool())
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer upstream.Close()

	br := New(testCfg(upstream.URL))
	c, rec := newEchoCtx(newStreamRequest(t, `{"messages":[],"model":"llama3.1"}`))

	require.NoError(t, br.streamHandler(c))
	events := parseEvents(t, rec.Body.String())
	require.Equal(t, []string{`{"done":true}`}, events)
}
