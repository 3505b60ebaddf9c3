// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Service Configuration
// =============================================================================

// ServiceConfig is the top-level configuration for the dialogd server.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type ServiceConfig struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string `yaml:"listen_addr" validate:"required"`

	// DatabaseDSN is the postgres connection string for the course catalog.
	// Empty disables the database-backed executor (the server still runs;
	// every query yields empty rows).
	DatabaseDSN string `yaml:"database_dsn"`

	// LexiconPath optionally overrides the embedded lexicon.
	LexiconPath string `yaml:"lexicon_path"`

	// Cache configures the fuzzy-resolution cache.
	Cache CacheConfig `yaml:"cache"`

	// Sessions bounds in-memory session state.
	Sessions SessionConfig `yaml:"sessions"`

	// Providers configures the external collaborators by role.
	Providers ProvidersConfig `yaml:"providers"`
}

// CacheConfig controls the on-disk fuzzy-resolution cache.
type CacheConfig struct {
	// Dir is the BadgerDB directory. Empty disables the cache.
	Dir string `yaml:"dir"`

	// TTL bounds how long a name-to-codes resolution stays valid.
	TTL time.Duration `yaml:"ttl"`
}

// SessionConfig bounds the in-memory session registry.
type SessionConfig struct {
	// MaxSessions caps concurrently tracked sessions. Zero means the
	// default.
	MaxSessions int `yaml:"max_sessions" validate:"gte=0"`

	// IdleTimeout evicts sessions with no activity for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// ProvidersConfig names a provider per collaborator role.
type ProvidersConfig struct {
	// Classifier resolves intents. Kinds: "http", "heuristic".
	Classifier RoleConfig `yaml:"classifier"`

	// Extractor pulls entities from text. Kinds: "http", "heuristic".
	Extractor RoleConfig `yaml:"extractor"`

	// Answerer generates the natural-language reply. Kinds: "openai",
	// "echo".
	Answerer RoleConfig `yaml:"answerer"`
}

// RoleConfig selects and parameterizes one provider role.
type RoleConfig struct {
	// Kind selects the implementation.
	Kind string `yaml:"kind"`

	// Endpoint is the base URL for http providers.
	Endpoint string `yaml:"endpoint"`

	// Model names the LLM for the answerer role.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// Timeout bounds a single provider call. Zero means the default.
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults applied by Load for absent fields.
const (
	DefaultListenAddr  = ":8091"
	DefaultMaxSessions = 1024
	DefaultIdleTimeout = 30 * time.Minute
	DefaultCacheTTL    = 24 * time.Hour
)

// Load reads, defaults, and validates a ServiceConfig.
//
// Inputs:
//
//	path - YAML file path. Empty loads pure defaults.
//
// Outputs:
//
//	*ServiceConfig - The validated configuration.
//	error - Non-nil if reading, parsing, or validation fails.
func Load(path string) (*ServiceConfig, error) {
	cfg := &ServiceConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parsing %s: %w", path, err)
		}
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.Sessions.MaxSessions == 0 {
		cfg.Sessions.MaxSessions = DefaultMaxSessions
	}
	if cfg.Sessions.IdleTimeout == 0 {
		cfg.Sessions.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Providers.Classifier.Kind == "" {
		cfg.Providers.Classifier.Kind = "heuristic"
	}
	if cfg.Providers.Extractor.Kind == "" {
		cfg.Providers.Extractor.Kind = "heuristic"
	}
	if cfg.Providers.Answerer.Kind == "" {
		cfg.Providers.Answerer.Kind = "openai"
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: validation: %w", err)
	}
	return cfg, nil
}
