// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultServerURL = "http://localhost:8091"

// turnResponse mirrors the server's TurnResult.
type turnResponse struct {
	SessionID          string   `json:"session_id"`
	Answer             string   `json:"answer"`
	Intent             string   `json:"intent"`
	IsMultiQuery       bool     `json:"is_multi_query"`
	SubqueryCount      int      `json:"subquery_count"`
	FuzzyResolvedCodes []string `json:"fuzzy_resolved_codes"`
	ContextSummary     string   `json:"context_summary"`
}

type resetResponse struct {
	SessionID      string `json:"session_id"`
	ContextSummary string `json:"context_summary"`
}

func serverBaseURL() string {
	if serverFlag != "" {
		return strings.TrimRight(serverFlag, "/")
	}
	if env := os.Getenv("CHATALOGUE_SERVER"); env != "" {
		return strings.TrimRight(env, "/")
	}
	return defaultServerURL
}

// sendTurn posts one utterance to the server and returns the turn result.
func sendTurn(utterance, sessionID string) (turnResponse, error) {
	var out turnResponse
	body, err := json.Marshal(map[string]string{
		"utterance":  utterance,
		"session_id": sessionID,
	})
	if err != nil {
		return out, fmt.Errorf("failed to create request body: %w", err)
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Post(serverBaseURL()+"/v1/dialog/process", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return out, fmt.Errorf("failed to reach dialog server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("failed to read server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to parse server response: %w", err)
	}
	return out, nil
}

// sendReset clears the session's context on the server.
func sendReset(sessionID string) (resetResponse, error) {
	var out resetResponse
	body, _ := json.Marshal(map[string]string{"session_id": sessionID})

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(serverBaseURL()+"/v1/dialog/reset", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return out, fmt.Errorf("failed to reach dialog server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, fmt.Errorf("failed to read server response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to parse server response: %w", err)
	}
	return out, nil
}

// =============================================================================
// Session Persistence
// =============================================================================

// sessionFile holds the last session ID so consecutive commands continue
// the same conversation.
func sessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".chatalogue", "last_session")
}

func loadSessionID() string {
	if sessionFlag != "" {
		return sessionFlag
	}
	path := sessionFile()
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveSessionID(id string) {
	path := sessionFile()
	if path == "" || id == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
}
