// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/LM4eu/ollamabridge/bridge"
	"github.com/LM4eu/ollamabridge/conf"
	"github.com/joho/godotenv"
)

func main() {
	cfg := getCfg()
	if cfg != nil {
		startServer(cfg)
	}
}

// Config is created from lower to higher priority:
// (1) defaults, (2) config file, (3) env vars and (4) flags.
func getCfg() *conf.Cfg {
	quiet := flag.Bool("q", false, "quiet mode (disable verbose output)")
	debugMode := flag.Bool("debug", false, "debug mode (log at debug level)")
	addr := flag.String("addr", "", "listen address, precedes the config file (example: :8080)")
	cfgFile := flag.String("config", "", "config file (default: ./"+conf.BridgeYML+" when present)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(versionInfo())
		return nil
	}

	verbose := !*quiet
	switch {
	case *debugMode:
		slog.SetLogLoggerLevel(slog.LevelDebug)
	case verbose:
		slog.SetLogLoggerLevel(slog.LevelInfo)
	default:
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}

	// Load the optional .env before conf reads the environment.
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("Cannot load .env", "err", err)
	}

	cfg, err := conf.Read(*cfgFile)
	if err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	cfg.Verbose = verbose
	cfg.Debug = *debugMode
	if *addr != "" {
		cfg.Addr = *addr
	}

	if verbose {
		cfg.Print()
	}

	return cfg
}

func versionInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "ollamabridge (unknown version)"
	}
	return info.Main.Path + " " + info.Main.Version
}

// startServer creates and runs the HTTP server (API).
func startServer(cfg *conf.Cfg) {
	br := bridge.New(cfg)
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: br.NewEcho(),
	}

	slog.Info("-------------------------------------------")
	slog.Info("Starting HTTP server", "url", url(server.Addr), "origins", cfg.Origins, "ollama", cfg.OllamaURL)
	slog.Info("CTRL+C to stop")
	err := server.ListenAndServe()
	slog.Info("Server stop", "err", err)
}

func url(addr string) string {
	if addr != "" && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
