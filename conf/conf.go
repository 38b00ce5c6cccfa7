// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

// Package conf reads and validates the gateway configuration.
package conf

import (
	"log/slog"
	"net"
	"net/url"
	"os"
	"slices"
	"strings"
	"syscall"

	"github.com/LM4eu/ollamabridge/gbe"
	"gopkg.in/yaml.v3"
)

// Cfg holds all settings. It is read once at startup and then shared
// read-only by every handler.
type Cfg struct {
	Addr         string            `mapstructure:"addr"          yaml:"addr"`
	OllamaURL    string            `mapstructure:"ollama_url"    yaml:"ollama_url"`
	DefaultModel string            `mapstructure:"default_model" yaml:"default_model"`
	Aliases      map[string]string `mapstructure:"aliases"       yaml:"aliases"`
	Origins      string            `mapstructure:"origins"       yaml:"origins"`
	APIKey       string            `mapstructure:"api_key"       yaml:"-"`
	Verbose      bool              `mapstructure:"-"             yaml:"-"`
	Debug        bool              `mapstructure:"-"             yaml:"-"`
}

// BridgeYML is the default config filename.
const BridgeYML = "ollamabridge.yml"

// Do not use the bad ports: they are blocked by web browsers,
// as specified by the Fetch standard: fetch.spec.whatwg.org/#port-blocking.
var badPorts = []string{
	"0", "1", "7", "9", "11", "13", "15", "17", "19", "20", "21", "22", "23", "25", "37", "42", "43",
	"53", "69", "77", "79", "87", "95", "101", "102", "103", "104", "109", "110", "111", "113",
	"115", "117", "119", "123", "135", "137", "139", "143", "161", "179", "389", "427", "465",
	"512", "513", "514", "515", "526", "530", "531", "532", "540", "548", "554", "556", "563", "587",
	"601", "636", "989", "990", "993", "995", "1719", "1720", "1723", "2049", "3659", "4045", "4190",
	"5060", "5061", "6000", "6566", "6665", "6666", "6667", "6668", "6669", "6679", "6697", "10080",
}

// defaultCfg returns a fresh copy so that each Read gets its own maps.
func defaultCfg() *Cfg {
	return &Cfg{
		Addr:         ":8080",
		OllamaURL:    "http://127.0.0.1:11434",
		DefaultModel: "llama3:8b",
		Aliases: map[string]string{
			// common alias from the front-end
			"llama3.1": "llama3:8b",
		},
		Origins: "*",
		APIKey:  "",
	}
}

// Print the effective configuration.
func (cfg *Cfg) Print() {
	slog.Info("-----------------------------")

	printEnvVar("OB_ADDR", false)
	printEnvVar("OB_OLLAMA_URL", false)
	printEnvVar("OB_DEFAULT_MODEL", false)
	printEnvVar("OB_ORIGINS", false)
	printEnvVar("OB_API_KEY", true)

	slog.Info("-----------------------------")

	yml, err := yaml.Marshal(cfg)
	if err != nil {
		slog.Error("Failed yaml.Marshal", "err", err)
		return
	}

	_, _ = os.Stdout.Write(yml)

	slog.Info("-----------------------------")
}

func printEnvVar(key string, confidential bool) {
	v, set := syscall.Getenv(key)
	switch {
	case !set:
		slog.Info("env", key, "(unset)")
	case v == "":
		slog.Info("env", key, "(empty)")
	case confidential:
		slog.Info("env", key+"-length", len(v))
	default:
		slog.Info("env", key, v)
	}
}

func (cfg *Cfg) validate() error {
	err := cfg.validatePort()
	if err != nil {
		return err
	}

	u, err := url.Parse(cfg.OllamaURL)
	if err != nil {
		return gbe.Wrap(err, gbe.ConfigErr, "Verify OB_OLLAMA_URL or 'ollama_url' in "+BridgeYML, "url", cfg.OllamaURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return gbe.New(gbe.ConfigErr, "'ollama_url' must be http(s)://host[:port]", "url", cfg.OllamaURL)
	}

	if cfg.DefaultModel == "" {
		return gbe.New(gbe.ConfigErr, "'default_model' must not be empty")
	}

	return nil
}

// validatePort prevents the bad ports: they are blocked by web browsers,
// as specified by the Fetch standard: http://fetch.spec.whatwg.org/#bad-port
func (cfg *Cfg) validatePort() error {
	_, port, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return gbe.Wrap(err, gbe.ConfigErr, "Cannot split 'addr'", "addr", cfg.Addr)
	}
	if slices.Contains(badPorts, port) {
		const msg = "Chrome/Firefox block the bad ports"
		return gbe.New(gbe.ConfigErr, msg, "port", port, "reference", "https://fetch.spec.whatwg.org/#port-blocking")
	}
	return nil
}

// trim cleans each parameter.
func (cfg *Cfg) trim() {
	cfg.Addr = strings.TrimSpace(cfg.Addr)

	cfg.OllamaURL = strings.TrimSpace(cfg.OllamaURL)
	cfg.OllamaURL = strings.TrimSuffix(cfg.OllamaURL, "/")

	cfg.DefaultModel = strings.TrimSpace(cfg.DefaultModel)

	cfg.Origins = strings.TrimSpace(cfg.Origins)
	cfg.Origins = strings.Trim(cfg.Origins, ",")
}
