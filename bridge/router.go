// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package bridge

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/LM4eu/ollamabridge/gbe"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewEcho builds the echo engine with the gateway routes and middleware.
func (br *Bridge) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware logger
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${method} ${status} ${uri}  ${latency_human} ${remote_ip} ${error}\n",
	}))

	if l, ok := e.Logger.(*log.Logger); ok {
		l.SetHeader("[${time_rfc3339}] ${level}")
	}

	// Middleware CORS: the browser front-end may be served from anywhere,
	// so the default whitelist is "*".
	origins := []string{"*"}
	if br.Cfg.Origins != "" {
		origins = strings.Split(br.Cfg.Origins, ",")
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodOptions, http.MethodPost},
	}))

	e.Use(metricsMiddleware)

	// Middleware unified errors
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				return gbe.ErrorHandler(err, c)
			}
			return nil
		}
	})

	// ------------- Chat -------------
	grp := e.Group("/api")
	br.setupAPIKeyAuth(grp)
	grp.POST("/chat", br.chatHandler)
	grp.POST("/chat/stream", br.streamHandler)

	// ------------ Models ------------
	mgrp := e.Group("/models")
	br.setupAPIKeyAuth(mgrp)
	mgrp.GET("", br.modelsHandler)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	slog.Info("Listen POST /api/chat (buffered)")
	slog.Info("Listen POST /api/chat/stream (SSE)")
	slog.Info("Listen GET  /models")
	slog.Info("Listen GET  /metrics")

	return e
}

// setupAPIKeyAuth guards grp with the configured API key. No key
// configured disables the check: the browser front-end talks to the
// gateway unauthenticated by default.
func (br *Bridge) setupAPIKeyAuth(grp *echo.Group) {
	key := br.Cfg.APIKey
	if key == "" {
		return
	}

	grp.Use(middleware.KeyAuth(func(received string, _ echo.Context) (bool, error) {
		if received == key {
			return true, nil
		}
		slog.Warn("received API key is not the configured one")
		return false, nil
	}))
}
