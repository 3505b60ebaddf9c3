// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/session"
)

// Handlers carries the service dependencies for the HTTP surface.
type Handlers struct {
	svc *Service
	log *slog.Logger
}

// NewHandlers builds the handler set for a Service.
func NewHandlers(svc *Service, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{svc: svc, log: log}
}

// ProcessRequest is the body of POST /dialog/process.
type ProcessRequest struct {
	// SessionID resumes an existing conversation; empty starts a new one.
	SessionID string `json:"session_id"`

	// Utterance is the user's text for this turn.
	Utterance string `json:"utterance" binding:"required"`
}

// ResetRequest is the body of POST /dialog/reset.
type ResetRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Process runs one turn.
func (h *Handlers) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	result, err := h.svc.ProcessTurn(c.Request.Context(), req.SessionID, req.Utterance)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrTooManySessions) {
			status = http.StatusServiceUnavailable
		}
		h.log.Error("turn failed", slog.String("error", err.Error()))
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reset clears a session's conversational context.
func (h *Handlers) Reset(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}

	summary, err := h.svc.Reset(req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": req.SessionID, "context_summary": summary})
}

// GetSession returns a read-only snapshot of a session's context.
func (h *Handlers) GetSession(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.svc.Sessions().Snapshot(id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	knownCourses := make([]string, 0, len(snap.KnownFacts))
	for code := range snap.KnownFacts {
		knownCourses = append(knownCourses, code)
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":        snap.ID,
		"active_course":     snap.ActiveCourse,
		"active_section":    snap.ActiveSection,
		"active_instructor": snap.ActiveInstructor,
		"active_weekdays":   snap.ActiveWeekdays,
		"turn_count":        snap.TurnCount,
		"last_intent":       snap.LastIntent,
		"history_length":    len(snap.History),
		"known_courses":     knownCourses,
		"context_summary":   snap.Compress(),
	})
}

// Healthz reports liveness.
func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports readiness.
func (h *Handlers) Readyz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"sessions": h.svc.Sessions().Len(),
	})
}
