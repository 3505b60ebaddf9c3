// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parse

import (
	"context"
	"errors"
	"testing"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/entities"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
)

// scriptedClassifier answers from a fixed text-to-classification table and
// falls back to chitchat for anything unscripted.
type scriptedClassifier struct {
	byText map[string]providers.Classification
	err    error
}

func (s *scriptedClassifier) Classify(_ context.Context, text string) (providers.Classification, error) {
	if s.err != nil {
		return providers.Classification{}, s.err
	}
	if cls, ok := s.byText[text]; ok {
		return cls, nil
	}
	return providers.Classification{PrimaryIntent: "chitchat", Confidence: 0.35}, nil
}

type scriptedExtractor struct {
	byText map[string]entities.Set
	err    error
}

func (s *scriptedExtractor) Extract(_ context.Context, text string) (entities.Set, error) {
	if s.err != nil {
		return entities.Set{}, s.err
	}
	return s.byText[text], nil
}

func testBuilder(t *testing.T, cls *scriptedClassifier, ext *scriptedExtractor) *Builder {
	t.Helper()
	lex, err := config.DefaultLexicon()
	if err != nil {
		t.Fatalf("DefaultLexicon: %v", err)
	}
	validator := entities.NewValidator(lex, nil)
	return NewBuilder(cls, ext, validator, NewSplitter(nil), lex, nil)
}

func TestBuildSingleClauseReusesWholeUtterance(t *testing.T) {
	utterance := "who teaches CS 575"
	cls := &scriptedClassifier{byText: map[string]providers.Classification{
		utterance: {PrimaryIntent: "instructor_lookup", Confidence: 0.9},
	}}
	ext := &scriptedExtractor{byText: map[string]entities.Set{
		utterance: {CourseCodes: []string{"CS 575"}},
	}}

	rec, err := testBuilder(t, cls, ext).Build(context.Background(), utterance)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if rec.Version != RecordVersion {
		t.Errorf("Version = %d, want %d", rec.Version, RecordVersion)
	}
	if len(rec.Clauses) != 1 {
		t.Fatalf("got %d clauses, want 1", len(rec.Clauses))
	}
	c := rec.Clauses[0]
	if c.Intent != "instructor_lookup" || c.Confidence != 0.9 {
		t.Errorf("clause = (%s, %v), want whole-utterance classification", c.Intent, c.Confidence)
	}
	if len(c.Entities.CourseCodes) != 1 || c.Entities.CourseCodes[0] != "CS 575" {
		t.Errorf("clause codes = %v, want [CS 575]", c.Entities.CourseCodes)
	}
	if rec.IsMultiQuery {
		t.Error("single clause must not be multi-query")
	}
}

func TestBuildMultiClauseClassifiesEachClause(t *testing.T) {
	utterance := "who teaches CS 575 and when does it meet"
	cls := &scriptedClassifier{byText: map[string]providers.Classification{
		utterance:            {PrimaryIntent: "instructor_lookup", Confidence: 0.9},
		"who teaches CS 575": {PrimaryIntent: "instructor_lookup", Confidence: 0.9},
		"when does it meet":  {PrimaryIntent: "chitchat", Confidence: 0.3},
	}}
	ext := &scriptedExtractor{byText: map[string]entities.Set{
		utterance:            {CourseCodes: []string{"CS 575"}},
		"who teaches CS 575": {CourseCodes: []string{"CS 575"}},
	}}

	rec, err := testBuilder(t, cls, ext).Build(context.Background(), utterance)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(rec.Clauses) != 2 {
		t.Fatalf("got %d clauses, want 2", len(rec.Clauses))
	}
	if rec.Clauses[0].Intent != "instructor_lookup" {
		t.Errorf("clause 0 intent = %s", rec.Clauses[0].Intent)
	}
	if rec.Clauses[1].Intent != "chitchat" {
		t.Errorf("clause 1 intent = %s", rec.Clauses[1].Intent)
	}
	if !rec.Clauses[1].Entities.IsEmpty() {
		t.Errorf("clause 1 entities = %+v, want empty", rec.Clauses[1].Entities)
	}
	if got := rec.Clauses[1].RequestedAttributes; len(got) != 1 || got[0] != "time" {
		t.Errorf("clause 1 attributes = %v, want [time]", got)
	}
	if !rec.IsMultiQuery {
		t.Error("two clauses with distinct intents must be multi-query")
	}
}

func TestBuildBlankUtteranceDegradesToChitchat(t *testing.T) {
	b := testBuilder(t, &scriptedClassifier{}, &scriptedExtractor{})

	for _, utterance := range []string{"", "   ", "\t\n"} {
		rec, err := b.Build(context.Background(), utterance)
		if err != nil {
			t.Fatalf("Build(%q) must not error, got %v", utterance, err)
		}
		if rec.PrimaryIntent != "chitchat" || rec.Confidence != 0.0 {
			t.Errorf("Build(%q) = (%s, %v), want (chitchat, 0.0)", utterance, rec.PrimaryIntent, rec.Confidence)
		}
		if len(rec.Clauses) != 1 {
			t.Fatalf("Build(%q) clauses = %d, want 1", utterance, len(rec.Clauses))
		}
		if !rec.Entities.IsEmpty() || !rec.Clauses[0].Entities.IsEmpty() {
			t.Errorf("Build(%q) carried entities: %+v", utterance, rec.Entities)
		}
	}
}

func TestBuildDegradesOnCollaboratorFailure(t *testing.T) {
	cls := &scriptedClassifier{err: errors.New("model server down")}
	ext := &scriptedExtractor{err: errors.New("model server down")}

	rec, err := testBuilder(t, cls, ext).Build(context.Background(), "who teaches CS 575")
	if err != nil {
		t.Fatalf("Build must absorb collaborator failures, got %v", err)
	}
	if rec.PrimaryIntent != "chitchat" || rec.Confidence != 0.0 {
		t.Errorf("got (%s, %v), want degraded (chitchat, 0.0)", rec.PrimaryIntent, rec.Confidence)
	}
	if !rec.Entities.IsEmpty() {
		t.Errorf("entities = %+v, want empty on extractor failure", rec.Entities)
	}
}

func TestBuildAbortsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testBuilder(t, &scriptedClassifier{}, &scriptedExtractor{}).Build(ctx, "who teaches CS 575")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestAttachSections(t *testing.T) {
	tests := []struct {
		name         string
		in           entities.Set
		wantCodes    []string
		wantSections []string
	}{
		{
			name:         "bare section attaches to first code",
			in:           entities.Set{CourseCodes: []string{"CS 575"}, Sections: []string{"B3"}},
			wantCodes:    []string{"CS 575 B3"},
			wantSections: []string{},
		},
		{
			name:         "code already carrying a section is skipped",
			in:           entities.Set{CourseCodes: []string{"MA 226 A1", "CS 575"}, Sections: []string{"B3"}},
			wantCodes:    []string{"MA 226 A1", "CS 575 B3"},
			wantSections: []string{},
		},
		{
			name:         "section without a code stays put",
			in:           entities.Set{Sections: []string{"B3"}},
			wantCodes:    nil,
			wantSections: []string{"B3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ents := tt.in.Clone()
			attachSections(&ents)
			if !equalStrings(ents.CourseCodes, tt.wantCodes) {
				t.Errorf("codes = %v, want %v", ents.CourseCodes, tt.wantCodes)
			}
			if !equalStrings(ents.Sections, tt.wantSections) {
				t.Errorf("sections = %v, want %v", ents.Sections, tt.wantSections)
			}
		})
	}
}

func equalStrings(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
