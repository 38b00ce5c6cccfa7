// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package gbe

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorHandler is the centralized error handler for the echo middleware.
// The two chat bridges never return errors here: their failures are
// delivered in-band. This handler serves the endpoints that do surface
// protocol errors (models, malformed request bodies).
func ErrorHandler(err error, c echo.Context) error {
	c.Logger().Error(err)

	// echo's own errors (auth, routing) keep their status codes.
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		return c.JSON(echoErr.Code, echoErr)
	}

	var gbErr *Error
	if !errors.As(err, &gbErr) {
		gbErr = Wrap(err, ServerErr, "internal server error")
	}
	return c.JSON(statusCode(gbErr.Code), gbErr)
}

// statusCode deduces the HTTP status code from a Code.
func statusCode(code Code) int {
	switch code {
	case Invalid:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case UpstreamErr:
		return http.StatusBadGateway
	case ConfigErr, ServerErr:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
