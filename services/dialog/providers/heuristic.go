// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"regexp"
	"strings"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/entities"
)

// =============================================================================
// Heuristic Classifier
// =============================================================================

// HeuristicClassifier is the keyword-driven fallback used when no model
// endpoint is configured. Confidences are calibrated low enough that the
// context-injection and override rules keep working the way they do with
// a trained classifier.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type HeuristicClassifier struct {
	lex   *config.Lexicon
	codes *codeMatcher
}

// NewHeuristicClassifier builds the fallback classifier.
func NewHeuristicClassifier(lex *config.Lexicon) *HeuristicClassifier {
	return &HeuristicClassifier{lex: lex, codes: newCodeMatcher(lex)}
}

// Classify resolves an intent from keyword signals. Empty text classifies
// as (chitchat, 0.0) and never errors.
func (h *HeuristicClassifier) Classify(_ context.Context, text string) (Classification, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Classification{PrimaryIntent: "chitchat", Confidence: 0.0}, nil
	}
	lower := strings.ToLower(trimmed)

	if containsAnyWord(lower, "hi", "hello", "hey") {
		return classified("greeting", 0.9), nil
	}
	if strings.Contains(lower, "bye") || strings.Contains(lower, "see you") {
		return classified("goodbye", 0.9), nil
	}
	if strings.Contains(lower, "thank") {
		return classified("thanks", 0.9), nil
	}

	hasCode := h.codes.hasMatch(trimmed)
	for _, grp := range h.lex.AttributeKeywords {
		if !containsAnyPhrase(lower, grp.Keywords) {
			continue
		}
		switch grp.Attribute {
		case "instructor":
			return classified("instructor_lookup", pick(hasCode, 0.85, 0.6)), nil
		case "location":
			return classified("course_location", pick(hasCode, 0.8, 0.55)), nil
		case "time", "schedule":
			return classified("schedule_query", pick(hasCode, 0.8, 0.55)), nil
		case "sections", "info":
			return classified("course_info", pick(hasCode, 0.75, 0.5)), nil
		}
	}

	if hasCode {
		return classified("course_info", 0.6), nil
	}
	return classified("chitchat", 0.35), nil
}

func classified(in string, conf float64) Classification {
	return Classification{
		PrimaryIntent: in,
		Confidence:    conf,
		TopK:          []IntentScore{{Intent: in, Confidence: conf}},
	}
}

func containsAnyWord(lower string, words ...string) bool {
	for _, tok := range strings.Fields(lower) {
		tok = strings.Trim(tok, ",.!?;:")
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}

func containsAnyPhrase(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func pick(cond bool, yes, no float64) float64 {
	if cond {
		return yes
	}
	return no
}

// =============================================================================
// Heuristic Extractor
// =============================================================================

var (
	sectionMention = regexp.MustCompile(`(?i)\bsection\s+([a-z]\d{1,2})\b`)
	timeMention    = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:am|pm)\b`)

	instructorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:professor|prof|dr|instructor|teacher)\.?\s+([a-z]+)`),
		regexp.MustCompile(`(?i)\b(?:does|did|will|can)\s+([a-z]+)\s+teach`),
		regexp.MustCompile(`(?i)\btaught\s+by\s+([a-z]+)`),
		regexp.MustCompile(`(?i)\b([a-z]+)'s\s+(?:class|course|section)\b`),
		regexp.MustCompile(`(?i)\babout\s+([a-z]+)\b`),
	}

	// titleRun matches a capitalized multi-word phrase with lowercase
	// connectives, the shape of catalog course titles in running text.
	titleRun = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+(?:[A-Z][a-z]+|of|to|and|in|for))+\b`)

	weekdayShorthand = map[string][]string{
		"mwf": {"Mon", "Wed", "Fri"},
		"tr":  {"Tue", "Thu"},
		"mw":  {"Mon", "Wed"},
		"tf":  {"Tue", "Fri"},
		"wf":  {"Wed", "Fri"},
	}

	weekdayNames = []struct {
		prefix string
		day    string
	}{
		{"mon", "Mon"}, {"tue", "Tue"}, {"wed", "Wed"}, {"thu", "Thu"},
		{"fri", "Fri"}, {"sat", "Sat"}, {"sun", "Sun"},
	}
)

// HeuristicExtractor is the regex fallback for entity extraction.
//
// Description:
//
//	Over-generation is acceptable: everything it emits passes through the
//	entity validator. It recognizes course codes in spaced, compact, and
//	glued spellings ("MET CS 575", "CS575", "METCS575"), weekday phrases
//	including the compact shorthands, section mentions, and the
//	instructor phrasings campus users actually type.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type HeuristicExtractor struct {
	lex   *config.Lexicon
	codes *codeMatcher
}

// NewHeuristicExtractor builds the fallback extractor.
func NewHeuristicExtractor(lex *config.Lexicon) *HeuristicExtractor {
	return &HeuristicExtractor{lex: lex, codes: newCodeMatcher(lex)}
}

// Extract pulls raw entity candidates from text. Never errors; text with
// nothing recognizable yields an all-empty set.
func (h *HeuristicExtractor) Extract(_ context.Context, text string) (entities.Set, error) {
	out := entities.Set{
		CourseCodes: h.codes.extract(text),
		Weekdays:    extractWeekdays(text),
		Times:       entities.Dedup(timeMention.FindAllString(text, -1)),
	}

	for _, m := range sectionMention.FindAllStringSubmatch(text, -1) {
		out.Sections = append(out.Sections, strings.ToUpper(m[1]))
	}
	out.Sections = entities.Dedup(out.Sections)

	out.Instructors = h.extractInstructors(text)
	out.CourseNames = h.extractCourseNames(text, out.CourseCodes)
	return out, nil
}

func (h *HeuristicExtractor) extractInstructors(text string) []string {
	var out []string
	for _, pat := range instructorPatterns {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			name := strings.ToLower(m[1])
			if len(name) < 3 || h.lex.IsInstructorStopword(name) || !isAlpha(name) {
				continue
			}
			out = append(out, capitalize(name))
		}
	}
	return entities.Dedup(out)
}

// extractCourseNames finds capitalized title runs that are not course
// codes and not weekday mentions.
func (h *HeuristicExtractor) extractCourseNames(text string, codes []string) []string {
	var out []string
	for _, run := range titleRun.FindAllString(text, -1) {
		if len(run) < 5 {
			continue
		}
		if h.codes.hasMatch(run) {
			continue
		}
		lower := strings.ToLower(run)
		if isWeekdayPhrase(lower) {
			continue
		}
		skip := false
		for _, code := range codes {
			if strings.Contains(strings.ToLower(code), lower) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, run)
		}
	}
	return entities.Dedup(out)
}

func extractWeekdays(text string) []string {
	lower := strings.ToLower(text)
	for _, tok := range strings.Fields(lower) {
		tok = strings.Trim(tok, ",.!?;:")
		if days, ok := weekdayShorthand[tok]; ok {
			// Compact shorthand names the full meeting pattern; nothing
			// else in the utterance adds days.
			return append([]string(nil), days...)
		}
	}
	if strings.Contains(lower, "weekend") {
		return []string{"Sat", "Sun"}
	}

	var out []string
	for _, tok := range strings.Fields(lower) {
		tok = strings.Trim(tok, ",.!?;:")
		for _, wd := range weekdayNames {
			if strings.HasPrefix(tok, wd.prefix) {
				out = append(out, wd.day)
				break
			}
		}
	}
	return entities.Dedup(out)
}

func isWeekdayPhrase(lower string) bool {
	for _, tok := range strings.Fields(lower) {
		ok := false
		for _, wd := range weekdayNames {
			if strings.HasPrefix(tok, wd.prefix) {
				ok = true
				break
			}
		}
		if !ok && tok != "and" {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return s != ""
}

// =============================================================================
// Course Code Matching
// =============================================================================

// codeMatcher recognizes course codes in every spelling the catalog's
// users produce. Patterns run in specificity order and later matches
// never overlap an earlier claim.
type codeMatcher struct {
	patterns []*regexp.Regexp
}

func newCodeMatcher(lex *config.Lexicon) *codeMatcher {
	prefixes := strings.Join(lex.SubjectPrefixes, "|")
	return &codeMatcher{patterns: []*regexp.Regexp{
		// MET CS 575 A1
		regexp.MustCompile(`(?i)\b(` + prefixes + `)\s+([A-Za-z]{2})\s*(\d{3})\s+([A-Za-z]\d{1,2})\b`),
		// MET CS 575
		regexp.MustCompile(`(?i)\b(` + prefixes + `)\s+([A-Za-z]{2})\s*(\d{3})\b`),
		// METCS575
		regexp.MustCompile(`(?i)\b(` + prefixes + `)([A-Za-z]{2})(\d{3})\b`),
		// CS 575 A1 / CS575 B3
		regexp.MustCompile(`(?i)\b([A-Za-z]{2})\s*(\d{3})\s+([A-Za-z]\d{1,2})\b`),
		// CS 575 / CS575
		regexp.MustCompile(`(?i)\b([A-Za-z]{2})\s*(\d{3})\b`),
	}}
}

func (c *codeMatcher) hasMatch(text string) bool {
	for _, pat := range c.patterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}

// extract returns normalized uppercase spaced codes ("MET CS 575 A1"),
// first-seen order, overlaps resolved in favor of the more specific
// pattern.
func (c *codeMatcher) extract(text string) []string {
	type span struct{ lo, hi int }
	var claimed []span
	overlaps := func(lo, hi int) bool {
		for _, s := range claimed {
			if lo < s.hi && hi > s.lo {
				return true
			}
		}
		return false
	}

	type found struct {
		pos  int
		code string
	}
	var hits []found
	for _, pat := range c.patterns {
		for _, idx := range pat.FindAllStringSubmatchIndex(text, -1) {
			if overlaps(idx[0], idx[1]) {
				continue
			}
			claimed = append(claimed, span{idx[0], idx[1]})

			var parts []string
			for g := 1; g*2 < len(idx); g++ {
				if idx[g*2] < 0 {
					continue
				}
				parts = append(parts, strings.ToUpper(text[idx[g*2]:idx[g*2+1]]))
			}
			hits = append(hits, found{pos: idx[0], code: strings.Join(parts, " ")})
		}
	}

	// Order by position in the text, not by pattern specificity.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
	codes := make([]string, 0, len(hits))
	for _, h := range hits {
		codes = append(codes, h.code)
	}
	return entities.Dedup(codes)
}
