// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package planner expands a resolved semantic record into the ordered
// subquery descriptors the query builder consumes, and orchestrates the
// two-stage fuzzy-search protocol that turns course-name references into
// course codes.
package planner

import (
	"github.com/artisticdrake/CHATALOGUE/services/dialog/intent"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/parse"
)

// Descriptor is the canonical unit describing one potential catalog
// lookup. Absent entities are explicit empty strings or slices, never
// missing fields.
type Descriptor struct {
	ClauseIndex int      `json:"clause_index"`
	ClauseText  string   `json:"clause_text"`
	Intent      string   `json:"intent"`
	Confidence  float64  `json:"confidence"`
	CourseCode  string   `json:"course_code"`
	Instructor  string   `json:"instructor"`
	Weekdays    []string `json:"weekdays"`
	Attributes  []string `json:"attributes"`

	// Executable marks descriptors that warrant a catalog lookup; inert
	// descriptors contribute an empty row list at their position.
	Executable bool `json:"executable"`
}

// Plan expands the record into ordered descriptors.
//
// Description:
//
//	One descriptor per (clause x course_code x instructor_name); empty
//	entity lists stand in as a single placeholder so every clause yields
//	at least one descriptor and result positions stay aligned with
//	clauses. A clause without weekdays of its own falls back to the
//	record-level days, so context-injected weekdays reach the predicate.
//	Ordering is stable: clause order, then course-code order, then
//	instructor order.
func Plan(rec *parse.Record) []Descriptor {
	var out []Descriptor
	for i, clause := range rec.Clauses {
		codes := orPlaceholder(clause.Entities.CourseCodes)
		instructors := orPlaceholder(clause.Entities.Instructors)
		days := clause.Entities.Weekdays
		if len(days) == 0 {
			days = rec.Entities.Weekdays
		}

		for _, code := range codes {
			for _, instr := range instructors {
				d := Descriptor{
					ClauseIndex: i,
					ClauseText:  clause.Text,
					Intent:      clause.Intent,
					Confidence:  clause.Confidence,
					CourseCode:  code,
					Instructor:  instr,
					Weekdays:    append([]string(nil), days...),
					Attributes:  append([]string(nil), clause.RequestedAttributes...),
				}
				d.Executable = executable(d)
				out = append(out, d)
			}
		}
	}
	return out
}

// executable: a course-related intent always runs; chitchat and unknown
// run only when they actually carry something to look up.
func executable(d Descriptor) bool {
	if intent.IsCourseRelated(d.Intent) {
		return true
	}
	if d.Intent != intent.Chitchat && d.Intent != intent.Unknown {
		return false
	}
	return d.CourseCode != "" || d.Instructor != "" || len(d.Weekdays) > 0
}

// orPlaceholder substitutes the single empty-string placeholder for an
// absent entity list so the cartesian product never collapses to zero.
func orPlaceholder(items []string) []string {
	if len(items) == 0 {
		return []string{""}
	}
	return items
}
