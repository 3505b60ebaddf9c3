// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package querybuild converts subquery entities into executable query
// plans over the course catalog. Building is a pure transformation: a plan
// describes columns, predicates, and ordering, and never touches a
// database.
package querybuild

import (
	"regexp"
	"strings"
)

// =============================================================================
// Plan Types
// =============================================================================

// Operator is a predicate kind in a QueryPlan condition.
type Operator string

const (
	// OpContains matches when the column contains the value, after both
	// sides are normalized (lowercased, spaces stripped).
	OpContains Operator = "contains"

	// OpEquals matches the column exactly.
	OpEquals Operator = "equals"
)

// Condition is one WHERE predicate. Conditions in a plan are conjoined.
type Condition struct {
	Column          string   `json:"column"`
	Operator        Operator `json:"operator"`
	Value           string   `json:"value"`
	CaseInsensitive bool     `json:"case_insensitive"`
}

// Ordering is one ORDER BY term.
type Ordering struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// QueryPlan is the full description of one catalog lookup. Derived fresh
// every turn, never persisted.
type QueryPlan struct {
	SelectColumns []string    `json:"select_columns"`
	Where         []Condition `json:"where"`
	OrderBy       []Ordering  `json:"order_by"`
}

// =============================================================================
// Fixed Tables
// =============================================================================

// identColumns always open select_columns so every result row can be
// attributed to a specific course section and teacher.
var identColumns = []string{"course_number", "section", "instructor"}

var allColumns = []string{
	"course_number", "course_name", "section", "instructor",
	"location", "days", "times",
}

// attributeColumns maps a requested attribute to the catalog columns that
// answer it. Unknown attributes fall back to allColumns.
var attributeColumns = map[string][]string{
	"location":      {"location"},
	"instructor":    {"instructor"},
	"time":          {"days", "times"},
	"schedule":      {"days", "times", "location"},
	"course_name":   {"course_name"},
	"course_number": {"course_number"},
}

// sectionTail matches a trailing section token such as "B3" or "A12".
var sectionTail = regexp.MustCompile(`^[A-Z]\d{1,2}$`)

// DayCode maps a weekday mention to the catalog's single-letter day code.
// Thursday is "R" in the catalog, so prefix matching on "thu" must win
// over "t". Returns "" for unrecognized input.
func DayCode(day string) string {
	lower := strings.ToLower(strings.TrimSpace(day))
	switch {
	case strings.HasPrefix(lower, "thu"):
		return "r"
	case strings.HasPrefix(lower, "mon"):
		return "m"
	case strings.HasPrefix(lower, "tue"):
		return "t"
	case strings.HasPrefix(lower, "wed"):
		return "w"
	case strings.HasPrefix(lower, "fri"):
		return "f"
	case strings.HasPrefix(lower, "sat"):
		return "sa"
	case strings.HasPrefix(lower, "sun"):
		return "su"
	}
	return ""
}

// =============================================================================
// Builder
// =============================================================================

// Build derives the QueryPlan for one subquery's entities.
//
// Description:
//
//	Select columns start from the identification set and grow via the
//	attribute table, deduplicated in first-seen order. A course code whose
//	last token looks like a section splits into an exact section predicate
//	plus a normalized contains predicate on the remainder; a malformed
//	code degrades to a contains search on the raw trimmed string. Each
//	weekday becomes its own contains predicate, conjoined, so all
//	requested days must co-occur in the catalog row.
//
// Inputs:
//
//	courseCode - Course code or "" when none applies.
//	instructor - Instructor name or "".
//	weekdays - Weekday mentions in any accepted spelling.
//	attrs - Requested-attribute tokens.
//
// Outputs:
//
//	*QueryPlan - Never nil; a plan with no conditions selects the whole
//	catalog in fixed order.
func Build(courseCode, instructor string, weekdays, attrs []string) *QueryPlan {
	plan := &QueryPlan{
		SelectColumns: selectColumns(attrs),
		OrderBy: []Ordering{
			{Column: "course_number", Direction: "ASC"},
			{Column: "section", Direction: "ASC"},
		},
	}

	if code := strings.TrimSpace(courseCode); code != "" {
		number, section := splitSectionTail(code)
		plan.Where = append(plan.Where, Condition{
			Column:          "course_number",
			Operator:        OpContains,
			Value:           Normalize(number),
			CaseInsensitive: true,
		})
		if section != "" {
			plan.Where = append(plan.Where, Condition{
				Column:   "section",
				Operator: OpEquals,
				Value:    section,
			})
		}
	}

	if name := strings.ToLower(strings.TrimSpace(instructor)); name != "" {
		plan.Where = append(plan.Where, Condition{
			Column:          "instructor",
			Operator:        OpContains,
			Value:           name,
			CaseInsensitive: true,
		})
	}

	for _, day := range weekdays {
		code := DayCode(day)
		if code == "" {
			continue
		}
		plan.Where = append(plan.Where, Condition{
			Column:          "days",
			Operator:        OpContains,
			Value:           code,
			CaseInsensitive: true,
		})
	}

	return plan
}

func selectColumns(attrs []string) []string {
	cols := make([]string, 0, len(allColumns))
	seen := make(map[string]struct{}, len(allColumns))
	add := func(names []string) {
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			cols = append(cols, n)
		}
	}
	add(identColumns)
	for _, attr := range attrs {
		mapped, ok := attributeColumns[strings.ToLower(strings.TrimSpace(attr))]
		if !ok {
			mapped = allColumns
		}
		add(mapped)
	}
	return cols
}

// splitSectionTail separates a trailing section token from a course code.
// "MA 226 B3" yields ("MA 226", "B3"); "CS 575" yields ("CS 575", "").
func splitSectionTail(code string) (number, section string) {
	tokens := strings.Fields(code)
	if len(tokens) >= 2 {
		last := strings.ToUpper(tokens[len(tokens)-1])
		if sectionTail.MatchString(last) {
			return strings.Join(tokens[:len(tokens)-1], " "), last
		}
	}
	return code, ""
}

// Normalize lowercases, turns hyphens into spaces, and collapses runs of
// whitespace so "MET-CS  575" and "met cs 575" compare equal.
func Normalize(s string) string {
	lower := strings.ToLower(strings.ReplaceAll(s, "-", " "))
	return strings.Join(strings.Fields(lower), " ")
}
