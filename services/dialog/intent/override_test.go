// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"testing"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	lex, err := config.DefaultLexicon()
	if err != nil {
		t.Fatalf("DefaultLexicon: %v", err)
	}
	return NewEngine(lex, nil)
}

func TestDecide(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name          string
		in            Input
		wantOverride  bool
		wantNewIntent string
		wantReason    string
	}{
		{
			name:       "safe intent is never overridden",
			in:         Input{Utterance: "thanks a lot", Intent: Greeting, Confidence: 0.9},
			wantReason: "safe_intent",
		},
		{
			name: "safe intent with an attribute signal falls through",
			in: Input{
				Utterance:           "where does it meet",
				Intent:              Chitchat,
				Confidence:          0.3,
				ContextCourse:       "CS 575",
				RequestedAttributes: []string{"time", "location"},
			},
			wantOverride:  true,
			wantNewIntent: CourseLocation,
			wantReason:    "attribute_priority",
		},
		{
			name:       "confident course intent stands",
			in:         Input{Utterance: "who teaches CS 575", Intent: InstructorLookup, Confidence: 0.85},
			wantReason: "confident_course_intent",
		},
		{
			name: "topic change keyword blocks the override",
			in: Input{
				Utterance:     "what about something else entirely",
				Intent:        Unknown,
				Confidence:    0.2,
				ContextCourse: "CS 575",
			},
			wantReason: "topic_change_keyword",
		},
		{
			name: "fresh entities block the override",
			in: Input{
				Utterance:      "MA 226 maybe",
				Intent:         Unknown,
				Confidence:     0.2,
				HasNewEntities: true,
				ContextCourse:  "CS 575",
			},
			wantReason: "new_entities",
		},
		{
			name:       "no context anchor blocks the override",
			in:         Input{Utterance: "hmm okay sure", Intent: Unknown, Confidence: 0.2},
			wantReason: "no_context_anchor",
		},
		{
			name: "instructor attribute wins the priority order",
			in: Input{
				Utterance:           "ok but the professor location",
				Intent:              Unknown,
				Confidence:          0.2,
				ContextCourse:       "CS 575",
				RequestedAttributes: []string{"location", "instructor"},
			},
			wantOverride:  true,
			wantNewIntent: InstructorLookup,
			wantReason:    "attribute_priority",
		},
		{
			name: "keyword group fires when no attribute was detected",
			in: Input{
				Utterance:     "hmm when though",
				Intent:        Unknown,
				Confidence:    0.2,
				ContextCourse: "CS 575",
			},
			wantOverride:  true,
			wantNewIntent: ScheduleQuery,
			wantReason:    "keyword_group",
		},
		{
			name: "very low confidence with an active course defaults to course info",
			in: Input{
				Utterance:     "hmm okay sure",
				Intent:        Unknown,
				Confidence:    0.2,
				ContextCourse: "CS 575",
			},
			wantOverride:  true,
			wantNewIntent: CourseInfo,
			wantReason:    "low_confidence_default",
		},
		{
			name: "no signal keeps the classification",
			in: Input{
				Utterance:     "zzz qqq",
				Intent:        Unknown,
				Confidence:    0.35,
				ContextCourse: "CS 575",
			},
			wantReason: "no_signal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Decide(tt.in)
			if got.Override != tt.wantOverride {
				t.Errorf("Override = %v, want %v", got.Override, tt.wantOverride)
			}
			if got.NewIntent != tt.wantNewIntent {
				t.Errorf("NewIntent = %q, want %q", got.NewIntent, tt.wantNewIntent)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestForAttribute(t *testing.T) {
	tests := []struct {
		attrs  []string
		want   string
		wantOK bool
	}{
		{[]string{"instructor"}, InstructorLookup, true},
		{[]string{"location", "instructor"}, InstructorLookup, true},
		{[]string{"location", "time"}, CourseLocation, true},
		{[]string{"time"}, ScheduleQuery, true},
		{[]string{"schedule"}, ScheduleQuery, true},
		{[]string{"sections"}, CourseInfo, true},
		{[]string{"info"}, "", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		got, ok := ForAttribute(tt.attrs)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ForAttribute(%v) = (%q, %v), want (%q, %v)", tt.attrs, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestIntentPredicates(t *testing.T) {
	for _, in := range []string{CourseInfo, InstructorLookup, CourseLocation, ScheduleQuery, TimeQuery} {
		if !IsCourseRelated(in) {
			t.Errorf("IsCourseRelated(%s) = false", in)
		}
	}
	for _, in := range []string{Greeting, Goodbye, Thanks, Chitchat} {
		if !IsSafe(in) {
			t.Errorf("IsSafe(%s) = false", in)
		}
		if IsCourseRelated(in) {
			t.Errorf("IsCourseRelated(%s) = true", in)
		}
	}
	if IsSafe(Unknown) || IsCourseRelated(Unknown) {
		t.Error("unknown must be neither safe nor course-related")
	}
}
