// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/entities"
)

// =============================================================================
// Model Server Clients
// =============================================================================

// HTTPModelClient talks to an external model server exposing
// POST {base}/classify and POST {base}/extract. Both endpoints take
// {"text": ...} and return JSON in the shapes of Classification and
// entities.Set respectively.
//
// Thread Safety: Safe for concurrent use.
type HTTPModelClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPModelClient creates a client for the given base URL.
func NewHTTPModelClient(baseURL string, timeout time.Duration) (*HTTPModelClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("NewHTTPModelClient: baseURL must not be empty")
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPModelClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}, nil
}

// Classify implements IntentClassifier. Empty text short-circuits to
// (chitchat, 0.0) without a network call.
func (c *HTTPModelClient) Classify(ctx context.Context, text string) (Classification, error) {
	if strings.TrimSpace(text) == "" {
		return Classification{PrimaryIntent: "chitchat", Confidence: 0.0}, nil
	}
	var out Classification
	if err := c.post(ctx, "/classify", text, &out); err != nil {
		return Classification{}, err
	}
	if out.PrimaryIntent == "" {
		return Classification{}, fmt.Errorf("HTTPModelClient.Classify: empty primary_intent in response")
	}
	return out, nil
}

// Extract implements EntityExtractor.
func (c *HTTPModelClient) Extract(ctx context.Context, text string) (entities.Set, error) {
	var out entities.Set
	if err := c.post(ctx, "/extract", text, &out); err != nil {
		return entities.Set{}, err
	}
	return out, nil
}

func (c *HTTPModelClient) post(ctx context.Context, path, text string, out any) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("HTTPModelClient: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPModelClient: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPModelClient: calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("HTTPModelClient: reading %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTPModelClient: %s returned status %d: %s", path, resp.StatusCode, truncate(string(raw), 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("HTTPModelClient: decoding %s response: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
