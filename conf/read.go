// Copyright 2025 The contributors of Ollamabridge.
// This file is part of Ollamabridge, a chat gateway for Ollama, under the MIT License.
// SPDX-License-Identifier: MIT

package conf

import (
	"errors"
	"strings"

	"github.com/LM4eu/ollamabridge/gbe"
	"github.com/spf13/viper"
)

// Read loads the configuration: defaults, then the optional config file,
// then the env vars (OB_ prefix). A non-empty file argument makes the
// config file mandatory.
func Read(file string) (*Cfg, error) {
	v := viper.New()

	def := defaultCfg()
	v.SetDefault("addr", def.Addr)
	v.SetDefault("ollama_url", def.OllamaURL)
	v.SetDefault("default_model", def.DefaultModel)
	v.SetDefault("aliases", def.Aliases)
	v.SetDefault("origins", def.Origins)
	v.SetDefault("api_key", def.APIKey)

	v.SetEnvPrefix("OB")
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(strings.TrimSuffix(BridgeYML, ".yml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, gbe.Wrap(err, gbe.ConfigErr, "Cannot read config", "file", v.ConfigFileUsed())
		}
		// no config file => defaults and env vars only
	}

	cfg := &Cfg{}
	err = v.Unmarshal(cfg)
	if err != nil {
		return nil, gbe.Wrap(err, gbe.ConfigErr, "Cannot parse config", "file", v.ConfigFileUsed())
	}

	cfg.trim()

	err = cfg.validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
