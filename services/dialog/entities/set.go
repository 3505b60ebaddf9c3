// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entities

import "strings"

// Set holds every entity kind the extractor can produce for one span of
// text. Absent kinds are empty slices, never nil semantics the caller must
// special-case; all lists are ordered and duplicate-free (case-insensitive,
// first seen wins).
type Set struct {
	Instructors []string `json:"instructors"`
	CourseCodes []string `json:"course_codes"`
	CourseNames []string `json:"course_names"`
	Weekdays    []string `json:"weekdays"`
	Times       []string `json:"times"`
	Buildings   []string `json:"buildings"`
	Sections    []string `json:"sections"`
}

// IsEmpty reports whether no entity of any kind is present.
func (s Set) IsEmpty() bool {
	return len(s.Instructors) == 0 &&
		len(s.CourseCodes) == 0 &&
		len(s.CourseNames) == 0 &&
		len(s.Weekdays) == 0 &&
		len(s.Times) == 0 &&
		len(s.Buildings) == 0 &&
		len(s.Sections) == 0
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (s Set) Clone() Set {
	return Set{
		Instructors: append([]string(nil), s.Instructors...),
		CourseCodes: append([]string(nil), s.CourseCodes...),
		CourseNames: append([]string(nil), s.CourseNames...),
		Weekdays:    append([]string(nil), s.Weekdays...),
		Times:       append([]string(nil), s.Times...),
		Buildings:   append([]string(nil), s.Buildings...),
		Sections:    append([]string(nil), s.Sections...),
	}
}

// Dedup returns items with case-insensitive duplicates removed, preserving
// first-seen order. Empty and whitespace-only items are dropped.
func Dedup(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		trimmed := strings.TrimSpace(it)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
