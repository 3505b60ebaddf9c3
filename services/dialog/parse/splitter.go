// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parse

import (
	"log/slog"
	"strings"
)

// =============================================================================
// Clause Splitter
// =============================================================================

// interrogatives are the tokens that mark the text after an " and " as an
// independent question rather than a noun-phrase conjunction.
var interrogatives = map[string]struct{}{
	"who": {}, "what": {}, "when": {}, "where": {}, "which": {}, "how": {},
}

// Splitter segments an utterance into independently-intentful clauses.
//
// Description:
//
//	"who teaches CS 575? and when does it meet" carries two intents and
//	must become two clauses, while "CS 575 and MA 226" is one clause about
//	two courses. Splitting is conservative: an " and " only splits when a
//	question word follows within three words, and course-name
//	distribution falls back silently to the unsplit clause when the name
//	lookup gives nothing usable.
//
// Thread Safety: Stateless; safe for concurrent use.
type Splitter struct {
	log *slog.Logger
}

// NewSplitter builds a Splitter.
func NewSplitter(log *slog.Logger) *Splitter {
	if log == nil {
		log = slog.Default()
	}
	return &Splitter{log: log}
}

// Split segments utterance into ordered, non-empty, trimmed clauses.
//
// Inputs:
//
//	utterance - The raw user text.
//	courseNames - Recognized course names from whole-utterance extraction;
//	used to duplicate a shared predicate across "X and Y" name lists.
//
// Outputs:
//
//	[]string - Clauses in left-to-right order; empty for empty input
//	(callers substitute the raw utterance).
func (s *Splitter) Split(utterance string, courseNames []string) []string {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return nil
	}

	var clauses []string
	for _, segment := range strings.Split(trimmed, "?") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		for _, piece := range splitOnAndInterrogative(segment) {
			clauses = append(clauses, s.distributeCourseNames(piece, courseNames)...)
		}
	}

	return collapseConsecutive(clauses)
}

// splitOnAndInterrogative splits at each " and " that introduces a new
// question, scanning left to right.
func splitOnAndInterrogative(segment string) []string {
	lower := strings.ToLower(segment)
	search := 0
	for {
		rel := strings.Index(lower[search:], " and ")
		if rel < 0 {
			return []string{strings.TrimSpace(segment)}
		}
		idx := search + rel
		rest := segment[idx+len(" and "):]
		if startsInterrogative(rest) {
			out := []string{strings.TrimSpace(segment[:idx])}
			return append(out, splitOnAndInterrogative(rest)...)
		}
		search = idx + len(" and ")
	}
}

// startsInterrogative reports whether a question word appears within the
// first three words of text.
func startsInterrogative(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		if i >= 3 {
			break
		}
		if _, ok := interrogatives[strings.Trim(w, ",.!?;:")]; ok {
			return true
		}
	}
	return false
}

// distributeCourseNames turns "who teaches X and Y" into one clause per
// recognized course name, reusing the shared predicate before the first
// name. Anything unexpected falls back to the unsplit clause.
func (s *Splitter) distributeCourseNames(clause string, courseNames []string) []string {
	if len(courseNames) < 2 {
		return []string{clause}
	}

	lower := strings.ToLower(clause)
	type hit struct {
		pos  int
		text string
	}
	var hits []hit
	for _, name := range courseNames {
		pos := strings.Index(lower, strings.ToLower(name))
		if pos < 0 {
			continue
		}
		hits = append(hits, hit{pos: pos, text: clause[pos : pos+len(name)]})
	}
	if len(hits) < 2 {
		return []string{clause}
	}

	// Insertion sort by position; hit counts are tiny.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	// Everything between the names must be connective filler, or this is
	// not a name list and we leave the clause alone.
	for i := 0; i < len(hits)-1; i++ {
		gap := lower[hits[i].pos+len(hits[i].text) : hits[i+1].pos]
		if strings.TrimFunc(gap, func(r rune) bool {
			return r == ' ' || r == ',' || r == '&'
		}) != "" && !strings.Contains(gap, "and") {
			return []string{clause}
		}
	}

	predicate := strings.TrimSpace(clause[:hits[0].pos])
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if predicate == "" {
			out = append(out, h.text)
			continue
		}
		out = append(out, predicate+" "+h.text)
	}
	s.log.Debug("distributed shared predicate across course names",
		slog.String("clause", clause),
		slog.Int("course_names", len(out)),
	)
	return out
}

// collapseConsecutive drops case-insensitive repeats that follow each
// other, keeping the first occurrence.
func collapseConsecutive(clauses []string) []string {
	out := make([]string, 0, len(clauses))
	prev := ""
	for _, c := range clauses {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if prev != "" && strings.EqualFold(c, prev) {
			continue
		}
		out = append(out, c)
		prev = c
	}
	return out
}
