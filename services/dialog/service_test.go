// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/entities"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/querybuild"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/session"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeClassifier struct {
	byText map[string]providers.Classification
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (providers.Classification, error) {
	if cls, ok := f.byText[text]; ok {
		return cls, nil
	}
	return providers.Classification{PrimaryIntent: "chitchat", Confidence: 0.35}, nil
}

type fakeExtractor struct {
	byText map[string]entities.Set
}

func (f *fakeExtractor) Extract(_ context.Context, text string) (entities.Set, error) {
	return f.byText[text], nil
}

// fakeExecutor captures the plans it is handed and answers each executable
// plan with one scripted row. Indexes in failAt fail individually: their
// positions stay empty and the aggregate error is non-nil, matching the
// catalog's partial-failure contract. A non-nil err fails the whole call.
type fakeExecutor struct {
	row    providers.Row
	err    error
	failAt map[int]bool
	plans  []*querybuild.QueryPlan
}

func (f *fakeExecutor) Execute(_ context.Context, plans []*querybuild.QueryPlan) ([][]providers.Row, error) {
	f.plans = plans
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]providers.Row, len(plans))
	var failed []error
	for i, p := range plans {
		out[i] = []providers.Row{}
		if p == nil {
			continue
		}
		if f.failAt[i] {
			failed = append(failed, fmt.Errorf("plan %d: catalog timeout", i))
			continue
		}
		out[i] = []providers.Row{f.row}
	}
	return out, errors.Join(failed...)
}

type stubSearcher struct {
	hits map[string][]providers.CourseHit
}

func (s *stubSearcher) SearchByName(_ context.Context, term string) ([]providers.CourseHit, error) {
	return s.hits[term], nil
}

type fakeAnswerer struct {
	err   error
	facts string
}

func (f *fakeAnswerer) Answer(_ context.Context, _, _, facts string) (string, error) {
	f.facts = facts
	if f.err != nil {
		return "", f.err
	}
	return "ANSWER", nil
}

func testService(t *testing.T, deps Deps) *Service {
	t.Helper()
	lex, err := config.DefaultLexicon()
	if err != nil {
		t.Fatalf("DefaultLexicon: %v", err)
	}
	deps.Lexicon = lex
	if deps.Sessions == nil {
		deps.Sessions = session.NewManager(16, time.Minute, nil)
	}
	if deps.Classifier == nil {
		deps.Classifier = &fakeClassifier{}
	}
	if deps.Extractor == nil {
		deps.Extractor = &fakeExtractor{}
	}
	if deps.Executor == nil {
		deps.Executor = &fakeExecutor{row: providers.Row{"course_number": "CS 101"}}
	}
	if deps.Searcher == nil {
		deps.Searcher = &stubSearcher{}
	}
	if deps.Answerer == nil {
		deps.Answerer = &fakeAnswerer{}
	}
	return New(deps)
}

func planFilters(plan *querybuild.QueryPlan, column string) []string {
	var vals []string
	for _, cond := range plan.Where {
		if cond.Column == column {
			vals = append(vals, cond.Value)
		}
	}
	return vals
}

// =============================================================================
// Turns
// =============================================================================

func TestProcessTurnMultiClauseFollowUp(t *testing.T) {
	utterance := "who teaches CS 101 and when does it meet"
	executor := &fakeExecutor{row: providers.Row{
		"course_number": "CS 101", "instructor": "Smith", "days": "TR", "times": "9:30-10:45",
	}}
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			utterance:            {PrimaryIntent: "instructor_lookup", Confidence: 0.9},
			"who teaches CS 101": {PrimaryIntent: "instructor_lookup", Confidence: 0.9},
			"when does it meet":  {PrimaryIntent: "chitchat", Confidence: 0.3},
		}},
		Extractor: &fakeExtractor{byText: map[string]entities.Set{
			utterance:            {CourseCodes: []string{"CS 101"}},
			"who teaches CS 101": {CourseCodes: []string{"CS 101"}},
		}},
		Executor: executor,
	})

	result, err := svc.ProcessTurn(context.Background(), "", utterance)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	if !result.IsMultiQuery {
		t.Error("two clauses with distinct intents must report multi-query")
	}
	if result.SubqueryCount != 2 {
		t.Errorf("SubqueryCount = %d, want 2", result.SubqueryCount)
	}
	if result.Intent != "instructor_lookup" {
		t.Errorf("Intent = %s, want instructor_lookup", result.Intent)
	}
	if result.Answer != "ANSWER" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(executor.plans) != 2 {
		t.Fatalf("executor saw %d plans, want 2", len(executor.plans))
	}
	// The entity-free follow-up clause inherits the course from clause one.
	for i, plan := range executor.plans {
		if plan == nil {
			t.Fatalf("plan %d is nil, want executable", i)
		}
		if got := planFilters(plan, "course_number"); len(got) != 1 || got[0] != "cs 101" {
			t.Errorf("plan %d course filter = %v, want [cs 101]", i, got)
		}
	}
	if !strings.Contains(result.ContextSummary, "CS 101") {
		t.Errorf("ContextSummary = %q, want the active course recorded", result.ContextSummary)
	}
}

func TestProcessTurnInjectsContextForPronounFollowUp(t *testing.T) {
	executor := &fakeExecutor{row: providers.Row{"course_number": "CS 101", "location": "CAS 313"}}
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			"tell me about CS 101": {PrimaryIntent: "course_info", Confidence: 0.9},
			"where does it meet":   {PrimaryIntent: "chitchat", Confidence: 0.3},
		}},
		Extractor: &fakeExtractor{byText: map[string]entities.Set{
			"tell me about CS 101": {CourseCodes: []string{"CS 101"}},
		}},
		Executor: executor,
	})

	first, err := svc.ProcessTurn(context.Background(), "", "tell me about CS 101")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}

	second, err := svc.ProcessTurn(context.Background(), first.SessionID, "where does it meet")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}

	if second.Intent != "course_location" {
		t.Errorf("Intent = %s, want course_location from the attribute override", second.Intent)
	}
	if second.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0 after override", second.Confidence)
	}
	if len(executor.plans) != 1 {
		t.Fatalf("executor saw %d plans, want 1", len(executor.plans))
	}
	if got := planFilters(executor.plans[0], "course_number"); len(got) != 1 || got[0] != "cs 101" {
		t.Errorf("course filter = %v, want the injected active course", got)
	}
}

func TestProcessTurnResetsOnTopicChange(t *testing.T) {
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			"tell me about CS 575": {PrimaryIntent: "course_info", Confidence: 0.9},
			"what about MA 226":    {PrimaryIntent: "course_info", Confidence: 0.8},
		}},
		Extractor: &fakeExtractor{byText: map[string]entities.Set{
			"tell me about CS 575": {CourseCodes: []string{"CS 575"}},
			"what about MA 226":    {CourseCodes: []string{"MA 226"}},
		}},
		Executor: &fakeExecutor{row: providers.Row{"course_number": "CS 575"}},
	})

	first, err := svc.ProcessTurn(context.Background(), "", "tell me about CS 575")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if _, err := svc.ProcessTurn(context.Background(), first.SessionID, "what about MA 226"); err != nil {
		t.Fatalf("second turn: %v", err)
	}

	snap, err := svc.Sessions().Snapshot(first.SessionID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.ActiveCourse != "MA 226" {
		t.Errorf("ActiveCourse = %q, want MA 226 after topic change", snap.ActiveCourse)
	}
	if snap.TurnCount != 1 {
		t.Errorf("TurnCount = %d, want 1 (reset before the new topic's turn)", snap.TurnCount)
	}
}

func TestProcessTurnFuzzyResolution(t *testing.T) {
	utterance := "who teaches Data Structures"
	executor := &fakeExecutor{row: providers.Row{"course_number": "MET CS 526", "instructor": "Lee"}}
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			utterance: {PrimaryIntent: "instructor_lookup", Confidence: 0.9},
		}},
		Extractor: &fakeExtractor{byText: map[string]entities.Set{
			utterance: {CourseNames: []string{"Data Structures"}},
		}},
		Searcher: &stubSearcher{hits: map[string][]providers.CourseHit{
			"Data Structures": {{CourseNumber: "MET CS 526", CourseName: "Data Structures and Algorithms"}},
		}},
		Executor: executor,
	})

	result, err := svc.ProcessTurn(context.Background(), "", utterance)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	if len(result.FuzzyResolvedCodes) != 1 || result.FuzzyResolvedCodes[0] != "MET CS 526" {
		t.Errorf("FuzzyResolvedCodes = %v, want [MET CS 526]", result.FuzzyResolvedCodes)
	}
	if len(executor.plans) != 1 {
		t.Fatalf("executor saw %d plans, want 1 after replanning", len(executor.plans))
	}
	if got := planFilters(executor.plans[0], "course_number"); len(got) != 1 || got[0] != "met cs 526" {
		t.Errorf("course filter = %v, want the resolved code", got)
	}
}

func TestProcessTurnChitchatSkipsCatalog(t *testing.T) {
	executor := &fakeExecutor{row: providers.Row{"course_number": "CS 101"}}
	answerer := &fakeAnswerer{}
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			"hello there": {PrimaryIntent: "greeting", Confidence: 0.9},
		}},
		Executor: executor,
		Answerer: answerer,
	})

	result, err := svc.ProcessTurn(context.Background(), "", "hello there")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if result.SubqueryCount != 1 {
		t.Errorf("SubqueryCount = %d, want the single inert descriptor", result.SubqueryCount)
	}
	if len(executor.plans) != 1 || executor.plans[0] != nil {
		t.Errorf("plans = %v, want one nil plan for the inert descriptor", executor.plans)
	}
	if answerer.facts != "" {
		t.Errorf("facts = %q, want empty for pure conversation", answerer.facts)
	}
}

// =============================================================================
// Failure Isolation
// =============================================================================

func TestProcessTurnExecutionFailureDegrades(t *testing.T) {
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			"tell me about CS 575": {PrimaryIntent: "course_info", Confidence: 0.9},
		}},
		Extractor: &fakeExtractor{byText: map[string]entities.Set{
			"tell me about CS 575": {CourseCodes: []string{"CS 575"}},
		}},
		Executor: &fakeExecutor{err: errors.New("database gone")},
	})

	result, err := svc.ProcessTurn(context.Background(), "", "tell me about CS 575")
	if err != nil {
		t.Fatalf("execution failure must not fail the turn, got %v", err)
	}
	if result.Answer != "ANSWER" {
		t.Errorf("Answer = %q, want the generated answer", result.Answer)
	}

	// A degraded turn must not move the context.
	snap, err := svc.Sessions().Snapshot(result.SessionID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TurnCount != 0 || snap.ActiveCourse != "" {
		t.Errorf("context moved on a degraded turn: %+v", snap)
	}
}

func TestProcessTurnFailedSubqueryKeepsSiblingsAndContext(t *testing.T) {
	utterance := "who teaches CS 101 and when does it meet"
	executor := &fakeExecutor{
		row:    providers.Row{"course_number": "CS 101", "instructor": "Smith"},
		failAt: map[int]bool{1: true},
	}
	answerer := &fakeAnswerer{}
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			utterance:            {PrimaryIntent: "instructor_lookup", Confidence: 0.9},
			"who teaches CS 101": {PrimaryIntent: "instructor_lookup", Confidence: 0.9},
			"when does it meet":  {PrimaryIntent: "chitchat", Confidence: 0.3},
		}},
		Extractor: &fakeExtractor{byText: map[string]entities.Set{
			utterance:            {CourseCodes: []string{"CS 101"}},
			"who teaches CS 101": {CourseCodes: []string{"CS 101"}},
		}},
		Executor: executor,
		Answerer: answerer,
	})

	result, err := svc.ProcessTurn(context.Background(), "", utterance)
	if err != nil {
		t.Fatalf("a failed subquery must not fail the turn, got %v", err)
	}
	if result.Answer != "ANSWER" {
		t.Errorf("Answer = %q, want the generated answer", result.Answer)
	}
	if len(executor.plans) != 2 {
		t.Fatalf("executor saw %d plans, want 2", len(executor.plans))
	}

	// The surviving subquery's rows still reach the answerer; the failed
	// one contributes its empty position.
	if !strings.Contains(answerer.facts, "Smith") {
		t.Errorf("facts = %q, want the surviving subquery's rows", answerer.facts)
	}
	if !strings.Contains(answerer.facts, "No matching courses") {
		t.Errorf("facts = %q, want an explicit no-match for the failed subquery", answerer.facts)
	}

	// A turn with any failed subquery must not move the context.
	snap, err := svc.Sessions().Snapshot(result.SessionID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TurnCount != 0 || snap.ActiveCourse != "" {
		t.Errorf("context moved after a failed subquery: %+v", snap)
	}
}

func TestProcessTurnInjectedWeekdaysReachThePlan(t *testing.T) {
	executor := &fakeExecutor{row: providers.Row{"course_number": "CS 101", "days": "MW"}}
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			"does CS 101 meet on Monday": {PrimaryIntent: "schedule_query", Confidence: 0.9},
			"is CS 101 one of them":      {PrimaryIntent: "schedule_query", Confidence: 0.7},
		}},
		Extractor: &fakeExtractor{byText: map[string]entities.Set{
			"does CS 101 meet on Monday": {CourseCodes: []string{"CS 101"}, Weekdays: []string{"Monday"}},
			"is CS 101 one of them":      {CourseCodes: []string{"CS 101"}},
		}},
		Executor: executor,
	})

	first, err := svc.ProcessTurn(context.Background(), "", "does CS 101 meet on Monday")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}

	// The follow-up states the course but not the days; the active
	// weekdays must come back as a days predicate, not just sit on the
	// record.
	if _, err := svc.ProcessTurn(context.Background(), first.SessionID, "is CS 101 one of them"); err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if len(executor.plans) != 1 {
		t.Fatalf("executor saw %d plans, want 1", len(executor.plans))
	}
	if got := planFilters(executor.plans[0], "days"); len(got) != 1 || got[0] != "m" {
		t.Errorf("days filter = %v, want the injected Monday predicate", got)
	}
}

func TestProcessTurnAnswerFailureSubstitutesApology(t *testing.T) {
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			"tell me about CS 575": {PrimaryIntent: "course_info", Confidence: 0.9},
		}},
		Extractor: &fakeExtractor{byText: map[string]entities.Set{
			"tell me about CS 575": {CourseCodes: []string{"CS 575"}},
		}},
		Answerer: &fakeAnswerer{err: errors.New("llm quota exhausted")},
	})

	result, err := svc.ProcessTurn(context.Background(), "", "tell me about CS 575")
	if err != nil {
		t.Fatalf("answer failure must not fail the turn, got %v", err)
	}
	if result.Answer != ApologyAnswer {
		t.Errorf("Answer = %q, want the apology", result.Answer)
	}

	snap, err := svc.Sessions().Snapshot(result.SessionID)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TurnCount != 0 {
		t.Errorf("TurnCount = %d, context must not move when answering failed", snap.TurnCount)
	}
}

func TestProcessTurnSessionCap(t *testing.T) {
	svc := testService(t, Deps{Sessions: session.NewManager(1, time.Minute, nil)})

	if _, err := svc.ProcessTurn(context.Background(), "a", "hello"); err != nil {
		t.Fatalf("first session: %v", err)
	}
	_, err := svc.ProcessTurn(context.Background(), "b", "hello")
	if !errors.Is(err, session.ErrTooManySessions) {
		t.Fatalf("got %v, want ErrTooManySessions", err)
	}
}

// =============================================================================
// Reset
// =============================================================================

func TestResetClearsContext(t *testing.T) {
	svc := testService(t, Deps{
		Classifier: &fakeClassifier{byText: map[string]providers.Classification{
			"tell me about CS 575": {PrimaryIntent: "course_info", Confidence: 0.9},
		}},
		Extractor: &fakeExtractor{byText: map[string]entities.Set{
			"tell me about CS 575": {CourseCodes: []string{"CS 575"}},
		}},
	})

	result, err := svc.ProcessTurn(context.Background(), "", "tell me about CS 575")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if result.ContextSummary == session.EmptySummary {
		t.Fatalf("ContextSummary = %q before reset", result.ContextSummary)
	}

	summary, err := svc.Reset(result.SessionID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if summary != session.EmptySummary {
		t.Errorf("summary = %q, want %q", summary, session.EmptySummary)
	}
}
