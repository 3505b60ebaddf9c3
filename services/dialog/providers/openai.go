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
	"os"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

// Answer generation parameters. Answers are short factual readouts of
// catalog rows, so the token budget and temperature stay tight.
const (
	answerModelDefault = "gpt-4o-mini"
	answerMaxTokens    = 150
	answerTemperature  = 0.2
)

// answerSystemPrompt frames the assistant and binds it to the facts block.
const answerSystemPrompt = `You are a helpful campus course assistant chatbot.

DATABASE USAGE RULES:
- When DATABASE RESULTS are provided, answer ONLY from those results.
- Never invent course numbers, instructors, rooms, or meeting times.
- If the results are empty, say you could not find a matching course and
  suggest the user check the course code.
- Keep answers short and conversational: one or two sentences.

EXAMPLES:
- Results show one row for MET CS 575 with instructor Smith ->
  "MET CS 575 is taught by Smith."
- Results are empty ->
  "I couldn't find that course. Could you double-check the course code?"`

type openaiRequest struct {
	Model               string          `json:"model"`
	Messages            []openaiMessage `json:"messages"`
	Temperature         *float32        `json:"temperature,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// OpenAI Answerer
// =============================================================================

// OpenAIAnswerer generates the natural-language reply via the OpenAI Chat
// Completions REST API, using raw net/http without third-party SDKs.
//
// Description:
//
//	The pipeline hands it the utterance, the compressed context summary,
//	and the formatted facts block; the system prompt pins the model to
//	the facts. Calls are paced by a token-bucket limiter so a chatty
//	client cannot burn the account's rate limit.
//
// Thread Safety: Safe for concurrent use.
type OpenAIAnswerer struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	apiKey     string
	model      string
	baseURL    string
}

// NewOpenAIAnswerer creates an answerer from the environment.
//
// Inputs:
//
//	apiKeyEnv - Environment variable holding the API key; empty means
//	OPENAI_API_KEY.
//	model - Model name; empty means gpt-4o-mini.
//	timeout - Per-call HTTP timeout; zero means 30s.
//
// Outputs:
//
//	*OpenAIAnswerer - The configured answerer.
//	error - Non-nil if the API key is missing.
func NewOpenAIAnswerer(apiKeyEnv, model string, timeout time.Duration) (*OpenAIAnswerer, error) {
	if apiKeyEnv == "" {
		apiKeyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("NewOpenAIAnswerer: %s is not set", apiKeyEnv)
	}
	if model == "" {
		model = answerModelDefault
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIAnswerer{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultOpenAIBaseURL,
	}, nil
}

// Answer implements AnswerGenerator.
func (a *OpenAIAnswerer) Answer(ctx context.Context, utterance, contextSummary, facts string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("OpenAIAnswerer.Answer: rate wait: %w", err)
	}

	user := "CONVERSATION CONTEXT: " + contextSummary + "\n\n"
	if facts != "" {
		user += "DATABASE RESULTS:\n" + facts + "\n\n"
	}
	user += "USER QUESTION: " + utterance

	temp := float32(answerTemperature)
	maxTok := answerMaxTokens
	body, err := json.Marshal(openaiRequest{
		Model: a.model,
		Messages: []openaiMessage{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: user},
		},
		Temperature:         &temp,
		MaxCompletionTokens: &maxTok,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAIAnswerer.Answer: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("OpenAIAnswerer.Answer: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAIAnswerer.Answer: calling API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("OpenAIAnswerer.Answer: reading response: %w", err)
	}

	var parsed openaiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("OpenAIAnswerer.Answer: decoding response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("OpenAIAnswerer.Answer: API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAIAnswerer.Answer: unexpected status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("OpenAIAnswerer.Answer: response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
