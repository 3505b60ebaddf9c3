// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager errors.
var (
	// ErrSessionNotFound is returned when a known session ID is required
	// but absent.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when the session cap is reached.
	ErrTooManySessions = errors.New("too many active sessions")
)

const sweepInterval = time.Minute

type sessionEntry struct {
	mu       sync.Mutex
	ctx      *Context
	lastSeen time.Time
}

// Manager owns every live Context and serializes turns per session.
//
// Description:
//
//	Contexts are created lazily on first Acquire. Acquire locks the
//	session for the duration of one turn, so two concurrent requests for
//	the same session run back to back while independent sessions run
//	fully in parallel. Idle sessions are swept out after the configured
//	timeout.
//
// Thread Safety: Safe for concurrent use.
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*sessionEntry
	maxSessions int
	idleTimeout time.Duration
	log         *slog.Logger
}

// NewManager builds a Manager with the given bounds.
func NewManager(maxSessions int, idleTimeout time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		sessions:    make(map[string]*sessionEntry),
		maxSessions: maxSessions,
		idleTimeout: idleTimeout,
		log:         log,
	}
}

// Acquire locks the session with the given ID for one turn, creating it
// when id is empty or unknown.
//
// Outputs:
//
//	*Context - The session's context, exclusively held.
//	func() - Release; must be called exactly once when the turn ends.
//	error - ErrTooManySessions when the cap would be exceeded.
func (m *Manager) Acquire(id string) (*Context, func(), error) {
	m.mu.Lock()
	if id == "" {
		id = uuid.NewString()
	}
	entry, ok := m.sessions[id]
	if !ok {
		if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
			m.mu.Unlock()
			return nil, nil, ErrTooManySessions
		}
		entry = &sessionEntry{ctx: NewContext(id)}
		m.sessions[id] = entry
		m.log.Debug("session created", slog.String("session_id", id))
	}
	entry.lastSeen = time.Now()
	m.mu.Unlock()

	entry.mu.Lock()
	return entry.ctx, entry.mu.Unlock, nil
}

// Snapshot returns a deep copy of a session's context for read-only
// callers, without blocking an in-flight turn beyond the copy itself.
func (m *Manager) Snapshot(id string) (*Context, error) {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	cp := *entry.ctx
	cp.ActiveWeekdays = append([]string(nil), entry.ctx.ActiveWeekdays...)
	cp.History = append([]HistoryEntry(nil), entry.ctx.History...)
	cp.KnownFacts = make(map[string]Facts, len(entry.ctx.KnownFacts))
	for k, v := range entry.ctx.KnownFacts {
		cp.KnownFacts[k] = v
	}
	return &cp, nil
}

// Len reports the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StartSweeper evicts idle sessions until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context) {
	if m.idleTimeout <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *Manager) sweep() {
	cutoff := time.Now().Add(-m.idleTimeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, entry := range m.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			m.log.Debug("session evicted", slog.String("session_id", id))
		}
	}
}
