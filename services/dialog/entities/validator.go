// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entities

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
)

// =============================================================================
// Entity Validator
// =============================================================================

// Validator strips false positives from raw extracted entity sets.
//
// Description:
//
//	Upstream extraction (NER model or regex fallback) over-generates:
//	stopwords captured as instructor names, subject prefixes mistaken for
//	people, single-letter buildings. The validator only ever removes
//	candidates, preserves relative order, and is idempotent, so it can be
//	applied at any pipeline stage without coordination.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Validator struct {
	lex *config.Lexicon
	log *slog.Logger
}

// NewValidator builds a Validator over the given lexicon.
func NewValidator(lex *config.Lexicon, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{lex: lex, log: log}
}

// Validate filters every entity kind of raw and returns the cleaned set.
// Rules only remove, never add; each list keeps case-insensitive
// first-seen order.
func (v *Validator) Validate(raw Set) Set {
	out := Set{
		CourseCodes: Dedup(raw.CourseCodes),
		CourseNames: v.validCourseNames(raw.CourseNames),
		Times:       Dedup(raw.Times),
		Sections:    Dedup(raw.Sections),
	}
	// Instructor checks run against the accepted codes and names, so order
	// matters here.
	out.Instructors = v.validInstructors(raw.Instructors, out.CourseCodes, out.CourseNames)
	out.Weekdays = v.validShortTokens(raw.Weekdays, v.lex.IsWeekdayStopword)
	out.Buildings = v.validShortTokens(raw.Buildings, v.lex.IsBuildingStopword)
	return out
}

func (v *Validator) validInstructors(candidates, codes, names []string) []string {
	out := make([]string, 0, len(candidates))
	for _, cand := range Dedup(candidates) {
		if v.rejectInstructor(cand, codes, names) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func (v *Validator) rejectInstructor(cand string, codes, names []string) bool {
	switch {
	case v.lex.IsSubjectPrefix(cand), v.lex.IsInstructorStopword(cand):
		v.log.Debug("instructor candidate rejected", slog.String("candidate", cand), slog.String("reason", "stopword"))
		return true
	case len(cand) < 2, isNumeric(cand):
		v.log.Debug("instructor candidate rejected", slog.String("candidate", cand), slog.String("reason", "too_short_or_numeric"))
		return true
	case tokenOfAny(cand, codes), tokenOfAny(cand, names):
		v.log.Debug("instructor candidate rejected", slog.String("candidate", cand), slog.String("reason", "part_of_course"))
		return true
	}
	return false
}

func (v *Validator) validCourseNames(candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, cand := range Dedup(candidates) {
		if len(cand) < 5 || isNumeric(cand) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// validShortTokens drops candidates under two characters and, when a
// stoplist check is supplied, stoplisted ones.
func (v *Validator) validShortTokens(candidates []string, stoplisted func(string) bool) []string {
	out := make([]string, 0, len(candidates))
	for _, cand := range Dedup(candidates) {
		if len(cand) < 2 {
			continue
		}
		if stoplisted != nil && stoplisted(cand) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

// tokenOfAny reports whether cand appears as a whitespace token inside any
// accepted string, case-insensitively.
func tokenOfAny(cand string, accepted []string) bool {
	lower := strings.ToLower(cand)
	for _, a := range accepted {
		for _, tok := range strings.Fields(strings.ToLower(a)) {
			if tok == lower {
				return true
			}
		}
	}
	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
