// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
)

// =============================================================================
// Provider Factory
// =============================================================================

// NewClassifier resolves the classifier role from config.
//
// Kinds: "http" (external model server), "heuristic" (keyword fallback).
func NewClassifier(cfg config.RoleConfig, lex *config.Lexicon) (IntentClassifier, error) {
	switch cfg.Kind {
	case "heuristic", "":
		return NewHeuristicClassifier(lex), nil
	case "http":
		return NewHTTPModelClient(cfg.Endpoint, cfg.Timeout)
	default:
		return nil, fmt.Errorf("NewClassifier: unknown kind %q", cfg.Kind)
	}
}

// NewExtractor resolves the extractor role from config.
//
// Kinds: "http", "heuristic".
func NewExtractor(cfg config.RoleConfig, lex *config.Lexicon) (EntityExtractor, error) {
	switch cfg.Kind {
	case "heuristic", "":
		return NewHeuristicExtractor(lex), nil
	case "http":
		return NewHTTPModelClient(cfg.Endpoint, cfg.Timeout)
	default:
		return nil, fmt.Errorf("NewExtractor: unknown kind %q", cfg.Kind)
	}
}

// NewAnswerer resolves the answerer role from config.
//
// Kinds: "openai", "echo". When the openai key is absent the factory
// degrades to the echo answerer with a warning instead of refusing to
// start; a catalog-only deployment is still useful.
func NewAnswerer(cfg config.RoleConfig, log *slog.Logger) (AnswerGenerator, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Kind {
	case "openai", "":
		ans, err := NewOpenAIAnswerer(cfg.APIKeyEnv, cfg.Model, cfg.Timeout)
		if err != nil {
			log.Warn("openai answerer unavailable, falling back to echo answerer",
				slog.String("error", err.Error()))
			return EchoAnswerer{}, nil
		}
		return ans, nil
	case "echo":
		return EchoAnswerer{}, nil
	default:
		return nil, fmt.Errorf("NewAnswerer: unknown kind %q", cfg.Kind)
	}
}

// EchoAnswerer renders the facts block directly, without an LLM. Used in
// tests and in deployments without an API key.
type EchoAnswerer struct{}

// Answer implements AnswerGenerator.
func (EchoAnswerer) Answer(_ context.Context, _ string, _ string, facts string) (string, error) {
	if facts == "" {
		return "I can help you look up campus courses. Ask me about a course by its code.", nil
	}
	return "Here is what I found:\n" + facts, nil
}
