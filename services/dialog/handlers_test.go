// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := testService(t, Deps{})
	handlers := NewHandlers(svc, nil)

	r := gin.New()
	RegisterRoutes(r.Group("/v1"), handlers)
	RegisterHealthRoutes(r, handlers)
	return r, svc
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProcessEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/dialog/process", `{"utterance": "hello there"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var result TurnResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.SessionID == "" {
		t.Error("response must carry the assigned session ID")
	}
	if result.Answer == "" {
		t.Error("response must carry an answer")
	}
}

func TestProcessEndpointRejectsMissingUtterance(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/dialog/process", `{"session_id": "s"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestResetEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/dialog/process", `{"session_id": "s1", "utterance": "hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("process status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/v1/dialog/reset", `{"session_id": "s1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "No active context") {
		t.Errorf("reset body = %s", w.Body.String())
	}
}

func TestGetSessionEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	if w := doJSON(t, r, http.MethodGet, "/v1/dialog/sessions/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown session", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, "/v1/dialog/process", `{"session_id": "s2", "utterance": "hello"}`); w.Code != http.StatusOK {
		t.Fatalf("process status = %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/v1/dialog/sessions/s2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["session_id"] != "s2" {
		t.Errorf("session_id = %v", body["session_id"])
	}
	if _, ok := body["context_summary"]; !ok {
		t.Error("snapshot must include the compressed context summary")
	}
}

func TestHealthEndpoints(t *testing.T) {
	r, _ := testRouter(t)

	if w := doJSON(t, r, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Errorf("readyz status = %d", w.Code)
	}
}
