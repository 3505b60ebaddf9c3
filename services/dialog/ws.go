// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsMaxMessage   = 4096
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The chat socket serves first-party clients; cross-origin embedding
	// is not supported.
	CheckOrigin: func(r *http.Request) bool {
		return r.Header.Get("Origin") == "" || r.Host == "" ||
			r.Header.Get("Origin") == "http://"+r.Host ||
			r.Header.Get("Origin") == "https://"+r.Host
	},
}

// wsTurnRequest is one inbound chat frame.
type wsTurnRequest struct {
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
}

// ChatSocket serves a websocket chat session.
//
// Description:
//
//	Each inbound frame runs one turn with the same semantics as
//	POST /dialog/process, and produces exactly one outbound TurnResult
//	frame. The session pins to the first frame's session ID (or the
//	first turn's generated one), so a socket is one conversation. One
//	goroutine per socket; turns on a socket are naturally serialized by
//	the read loop.
func (h *Handlers) ChatSocket(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	sessionID := ""
	for {
		var req wsTurnRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}
		if sessionID == "" {
			sessionID = req.SessionID
		}

		result, err := h.svc.ProcessTurn(c.Request.Context(), sessionID, req.Utterance)
		if err != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = conn.WriteJSON(errorResponse{Error: err.Error()})
			continue
		}
		sessionID = result.SessionID

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(result); err != nil {
			return
		}
	}
}
