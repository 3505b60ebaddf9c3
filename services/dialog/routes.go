// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialog

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the dialog API on a router group.
//
// Description:
//
//	Registers the HTTP surface of the dialog service:
//
//	POST /dialog/process - Run one conversational turn.
//	POST /dialog/reset - Clear a session's context.
//	GET  /dialog/sessions/:id - Read-only session snapshot.
//	GET  /dialog/ws - Websocket chat: one utterance frame in, one answer
//	frame out, same turn semantics as /dialog/process.
//
// Inputs:
//
//	rg - The router group to mount on (e.g. /v1).
//	handlers - The handler set; must not be nil.
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	d := rg.Group("/dialog")
	d.POST("/process", handlers.Process)
	d.POST("/reset", handlers.Reset)
	d.GET("/sessions/:id", handlers.GetSession)
	d.GET("/ws", handlers.ChatSocket)
}

// RegisterHealthRoutes mounts liveness and readiness off the root.
func RegisterHealthRoutes(r *gin.Engine, handlers *Handlers) {
	r.GET("/healthz", handlers.Healthz)
	r.GET("/readyz", handlers.Readyz)
}
