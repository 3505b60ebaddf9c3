// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session owns per-conversation state and the rules that decide
// when carried-over context fills in for, or must yield to, what the user
// just said.
//
// A Context is an explicit value owned by the Manager and threaded through
// each turn; nothing in this package is process-global. Callers serialize
// turns per session (the Manager's Acquire does this); a Context is never
// shared across sessions.
package session

import (
	"strings"
	"time"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/parse"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
)

// Limits on conversational state.
const (
	// HistoryLimit bounds the in-memory history ring.
	HistoryLimit = 10

	// TurnLimit forces a reset once a topic has run this many turns;
	// long-lived context drifts from what the user is actually asking.
	TurnLimit = 10
)

// EmptySummary is the canonical compressed form of a fresh context.
const EmptySummary = "No active context"

// Facts is what the catalog last reported about one course.
type Facts struct {
	Instructor string `json:"instructor,omitempty"`
	Location   string `json:"location,omitempty"`
	Days       string `json:"days,omitempty"`
	Times      string `json:"times,omitempty"`
	Section    string `json:"section,omitempty"`
}

// HistoryEntry is one completed turn in the bounded history ring.
type HistoryEntry struct {
	Utterance string    `json:"utterance"`
	Answer    string    `json:"answer"`
	Intent    string    `json:"intent"`
	At        time.Time `json:"at"`
}

// Context is the mutable conversational state of one session.
//
// Thread Safety: Not self-synchronizing. The Manager hands a Context to at
// most one turn at a time; see Manager.Acquire.
type Context struct {
	ID               string                `json:"id"`
	ActiveCourse     string                `json:"active_course"`
	ActiveSection    string                `json:"active_section"`
	ActiveInstructor string                `json:"active_instructor"`
	ActiveWeekdays   []string              `json:"active_weekdays"`
	KnownFacts       map[string]Facts      `json:"known_facts"`
	TurnCount        int                   `json:"turn_count"`
	LastIntent       string                `json:"last_intent"`
	History          []HistoryEntry        `json:"history"`
}

// NewContext returns a fresh Context for the given session ID.
func NewContext(id string) *Context {
	return &Context{ID: id, KnownFacts: make(map[string]Facts)}
}

// Reset clears every field atomically with respect to the session's turn
// serialization: callers hold the session for the whole turn, so no
// partially cleared state is ever observable.
func (c *Context) Reset() {
	c.ActiveCourse = ""
	c.ActiveSection = ""
	c.ActiveInstructor = ""
	c.ActiveWeekdays = nil
	c.KnownFacts = make(map[string]Facts)
	c.TurnCount = 0
	c.LastIntent = ""
	c.History = nil
}

// Update folds one completed turn into the context.
//
// Description:
//
//	Runs exactly once per turn, and only after every external call for
//	the turn succeeded; a failed or abandoned turn must not move the
//	actives or pollute known facts with partial data.
//
// Inputs:
//
//	rec - The turn's resolved semantic record.
//	results - Position-preserving catalog rows per subquery.
//	utterance, answer - The turn's text for the history ring.
func (c *Context) Update(rec *parse.Record, results [][]providers.Row, utterance, answer string) {
	if codes := rec.Entities.CourseCodes; len(codes) > 0 {
		c.ActiveCourse = codes[0]
		// Sections only accumulate: a follow-up course stated without a
		// section tail keeps the last explicit one until a reset.
		if s := deriveSection(codes[0]); s != "" {
			c.ActiveSection = s
		}
	}
	if instrs := rec.Entities.Instructors; len(instrs) > 0 {
		c.ActiveInstructor = instrs[0]
	}
	if days := rec.Entities.Weekdays; len(days) > 0 {
		c.ActiveWeekdays = append([]string(nil), days...)
	}
	c.LastIntent = rec.PrimaryIntent

	for _, rows := range results {
		if len(rows) == 0 {
			continue
		}
		first := rows[0]
		code := strings.TrimSpace(first["course_number"])
		if code == "" {
			continue
		}
		facts := c.KnownFacts[code]
		upsert(&facts.Instructor, first["instructor"])
		upsert(&facts.Location, first["location"])
		upsert(&facts.Days, first["days"])
		upsert(&facts.Times, first["times"])
		upsert(&facts.Section, first["section"])
		c.KnownFacts[code] = facts
	}

	c.History = append(c.History, HistoryEntry{
		Utterance: utterance,
		Answer:    answer,
		Intent:    rec.PrimaryIntent,
		At:        time.Now(),
	})
	if len(c.History) > HistoryLimit {
		c.History = c.History[len(c.History)-HistoryLimit:]
	}

	c.TurnCount++
}

// Compress renders the one-line context summary handed to the answer
// generator.
func (c *Context) Compress() string {
	if c.ActiveCourse == "" && c.ActiveInstructor == "" {
		return EmptySummary
	}

	facts := c.KnownFacts[c.ActiveCourse]
	parts := make([]string, 0, 4)
	if c.ActiveCourse != "" {
		parts = append(parts, "Course: "+c.ActiveCourse)
	}
	if instr := firstNonEmpty(c.ActiveInstructor, facts.Instructor); instr != "" {
		parts = append(parts, "Instructor: "+instr)
	}
	if facts.Location != "" {
		parts = append(parts, "Location: "+facts.Location)
	}
	if t := strings.TrimSpace(facts.Days + " " + facts.Times); t != "" {
		parts = append(parts, "Time: "+t)
	}
	return strings.Join(parts, " | ")
}

// deriveSection pulls a section token off the end of a course code:
// "MET CS 575 A1" yields "A1", "CS 575" yields "".
func deriveSection(course string) string {
	tokens := strings.Fields(course)
	if len(tokens) <= 2 {
		return ""
	}
	last := tokens[len(tokens)-1]
	r := rune(last[0])
	if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
		return last
	}
	return ""
}

func upsert(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
