// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

// Intent labels emitted by the classifier and consumed throughout the
// pipeline. The vocabulary is open: classifiers may emit labels outside
// this list, which the pipeline treats like Unknown.
const (
	CourseInfo       = "course_info"
	InstructorLookup = "instructor_lookup"
	CourseLocation   = "course_location"
	CourseTime       = "course_time"
	ScheduleQuery    = "schedule_query"
	EventQuery       = "event_query"
	TimeQuery        = "time_query"
	Greeting         = "greeting"
	Goodbye          = "goodbye"
	Thanks           = "thanks"
	Chitchat         = "chitchat"
	Unknown          = "unknown"
)

var courseRelated = map[string]struct{}{
	CourseInfo:       {},
	InstructorLookup: {},
	CourseLocation:   {},
	CourseTime:       {},
	ScheduleQuery:    {},
	EventQuery:       {},
	TimeQuery:        {},
}

var safe = map[string]struct{}{
	Greeting: {},
	Goodbye:  {},
	Thanks:   {},
	Chitchat: {},
}

// IsCourseRelated reports whether the intent implies a catalog lookup.
func IsCourseRelated(in string) bool {
	_, ok := courseRelated[in]
	return ok
}

// IsSafe reports whether the intent is social small talk that must never
// be overridden into a lookup.
func IsSafe(in string) bool {
	_, ok := safe[in]
	return ok
}

// ForAttribute maps a requested attribute to its lookup intent, in fixed
// priority order: instructor, then location, then time/schedule, then
// sections. The boolean is false when no attribute maps.
func ForAttribute(attrs []string) (string, bool) {
	has := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		has[a] = struct{}{}
	}
	if _, ok := has["instructor"]; ok {
		return InstructorLookup, true
	}
	if _, ok := has["location"]; ok {
		return CourseLocation, true
	}
	if _, ok := has["time"]; ok {
		return ScheduleQuery, true
	}
	if _, ok := has["schedule"]; ok {
		return ScheduleQuery, true
	}
	if _, ok := has["sections"]; ok {
		return CourseInfo, true
	}
	return "", false
}
