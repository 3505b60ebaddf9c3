// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dialog wires the semantic-resolution pipeline into a service:
// one synchronous turn from raw utterance to answer, plus the HTTP
// surface dialogd mounts.
package dialog

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/entities"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/intent"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/parse"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/planner"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/querybuild"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/session"
)

var dialogTracer = otel.Tracer("chatalogue.dialog.pipeline")

// ApologyAnswer is the fixed user-safe string substituted when answer
// generation fails; the only user-visible failure of a turn.
const ApologyAnswer = "I'm sorry, I'm having trouble answering right now. Please try again."

// =============================================================================
// Metrics
// =============================================================================

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatalogue",
			Subsystem: "dialog",
			Name:      "turns_total",
			Help:      "Completed turns by status.",
		},
		[]string{"status"},
	)

	turnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chatalogue",
			Subsystem: "dialog",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn latency including external calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
)

// =============================================================================
// Service
// =============================================================================

// TurnResult is what one completed turn reports back to the caller.
type TurnResult struct {
	SessionID          string   `json:"session_id"`
	Answer             string   `json:"answer"`
	Intent             string   `json:"intent"`
	Confidence         float64  `json:"confidence"`
	IsMultiQuery       bool     `json:"is_multi_query"`
	SubqueryCount      int      `json:"subquery_count"`
	FuzzyResolvedCodes []string `json:"fuzzy_resolved_codes,omitempty"`
	ContextSummary     string   `json:"context_summary"`
}

// Deps are the collaborators a Service is wired from.
type Deps struct {
	Log        *slog.Logger
	Lexicon    *config.Lexicon
	Sessions   *session.Manager
	Classifier providers.IntentClassifier
	Extractor  providers.EntityExtractor
	Executor   providers.QueryExecutor
	Searcher   providers.CourseSearcher
	Answerer   providers.AnswerGenerator
}

// Service runs the dialog pipeline.
//
// Description:
//
//	One logical thread of control per turn: the whole pipeline is
//	synchronous and blocking, external calls included. Session state is
//	serialized by the session manager, so two requests for the same
//	session queue while independent sessions run in parallel. A cancelled
//	turn discards its partial work; the context update runs only after
//	every external call succeeded.
//
// Thread Safety: Safe for concurrent use across sessions.
type Service struct {
	log      *slog.Logger
	sessions *session.Manager
	builder  *parse.Builder
	resolver *session.Resolver
	override *intent.Engine
	fuzzy    *planner.Orchestrator
	executor providers.QueryExecutor
	answerer providers.AnswerGenerator
}

// New wires a Service from its collaborators.
func New(deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	validator := entities.NewValidator(deps.Lexicon, log)
	splitter := parse.NewSplitter(log)
	return &Service{
		log:      log,
		sessions: deps.Sessions,
		builder:  parse.NewBuilder(deps.Classifier, deps.Extractor, validator, splitter, deps.Lexicon, log),
		resolver: session.NewResolver(deps.Lexicon, log),
		override: intent.NewEngine(deps.Lexicon, log),
		fuzzy:    planner.NewOrchestrator(deps.Searcher, log),
		executor: deps.Executor,
		answerer: deps.Answerer,
	}
}

// Sessions exposes the session manager for handlers.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// ProcessTurn runs one turn end to end.
//
// Outputs:
//
//	TurnResult - The answer and turn metadata.
//	error - Non-nil only for cancellation or session exhaustion; pipeline
//	stage failures degrade per the error-handling rules instead.
func (s *Service) ProcessTurn(ctx context.Context, sessionID, utterance string) (TurnResult, error) {
	start := time.Now()
	ctx, span := dialogTracer.Start(ctx, "dialog.ProcessTurn")
	defer span.End()

	sess, release, err := s.sessions.Acquire(sessionID)
	if err != nil {
		turnsTotal.WithLabelValues("rejected").Inc()
		return TurnResult{}, err
	}
	defer release()
	span.SetAttributes(attribute.String("session_id", sess.ID))

	rec, err := s.builder.Build(ctx, utterance)
	if err != nil {
		turnsTotal.WithLabelValues("cancelled").Inc()
		span.SetStatus(codes.Error, err.Error())
		return TurnResult{}, err
	}
	statedEntities := rec.HasNewEntities()

	if reset, cause := s.resolver.ShouldReset(sess, rec, utterance); reset {
		s.resolver.ResetWithCause(sess, cause)
	}

	if d := s.resolver.ShouldInject(sess, rec, utterance); d.Inject {
		s.resolver.Inject(sess, rec)
	}
	s.resolver.ResolveClauses(rec)

	decision := s.override.Decide(intent.Input{
		Utterance:           utterance,
		Intent:              rec.PrimaryIntent,
		Confidence:          rec.Confidence,
		HasNewEntities:      statedEntities,
		ContextCourse:       sess.ActiveCourse,
		ContextInstructor:   sess.ActiveInstructor,
		RequestedAttributes: rec.RequestedAttributes,
	})
	if decision.Override {
		rec.PrimaryIntent = decision.NewIntent
		rec.Confidence = 1.0
		s.resolver.Inject(sess, rec)
	}

	descriptors := planner.Plan(rec)

	var resolvedCodes []string
	if planner.NeedsSearch(rec) {
		resolvedCodes, err = s.fuzzy.Resolve(ctx, rec)
		if err != nil {
			turnsTotal.WithLabelValues("cancelled").Inc()
			span.SetStatus(codes.Error, err.Error())
			return TurnResult{}, err
		}
		if len(resolvedCodes) > 0 {
			descriptors = planner.Plan(rec)
		}
	}

	plans := make([]*querybuild.QueryPlan, len(descriptors))
	for i, d := range descriptors {
		if d.Executable {
			plans[i] = querybuild.Build(d.CourseCode, d.Instructor, d.Weekdays, d.Attributes)
		}
	}

	results, execErr := s.executor.Execute(ctx, plans)
	if execErr != nil {
		if ctx.Err() != nil {
			turnsTotal.WithLabelValues("cancelled").Inc()
			return TurnResult{}, ctx.Err()
		}
		s.log.Error("catalog execution failed for turn",
			slog.String("session_id", sess.ID),
			slog.String("error", execErr.Error()),
		)
	}
	// Executors report partial failure as position-preserving results plus
	// an aggregate error; surviving subqueries' rows still feed the answer.
	// Only a wholesale failure leaves the grid to fill in here.
	if len(results) != len(plans) {
		results = make([][]providers.Row, len(plans))
		for i := range results {
			results[i] = []providers.Row{}
		}
	}

	facts := FormatResults(descriptors, results)
	summary := sess.Compress()

	answer, ansErr := s.answerer.Answer(ctx, utterance, summary, facts)
	if ansErr != nil {
		if ctx.Err() != nil {
			turnsTotal.WithLabelValues("cancelled").Inc()
			return TurnResult{}, ctx.Err()
		}
		s.log.Warn("answer generation failed, substituting apology",
			slog.String("session_id", sess.ID),
			slog.String("error", ansErr.Error()),
		)
		answer = ApologyAnswer
	}

	// The context moves only when every external call for the turn
	// succeeded; partial turns must not disturb the actives or facts.
	status := "degraded"
	if execErr == nil && ansErr == nil {
		sess.Update(rec, results, utterance, answer)
		status = "ok"
	}

	turnsTotal.WithLabelValues(status).Inc()
	turnDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("intent", rec.PrimaryIntent),
		attribute.Int("subqueries", len(descriptors)),
		attribute.Bool("is_multi_query", rec.IsMultiQuery),
		attribute.Int("fuzzy_resolved", len(resolvedCodes)),
		attribute.String("status", status),
	)

	return TurnResult{
		SessionID:          sess.ID,
		Answer:             answer,
		Intent:             rec.PrimaryIntent,
		Confidence:         rec.Confidence,
		IsMultiQuery:       rec.IsMultiQuery,
		SubqueryCount:      len(descriptors),
		FuzzyResolvedCodes: resolvedCodes,
		ContextSummary:     sess.Compress(),
	}, nil
}

// Reset clears a session's context explicitly.
func (s *Service) Reset(sessionID string) (string, error) {
	sess, release, err := s.sessions.Acquire(sessionID)
	if err != nil {
		return "", err
	}
	defer release()
	s.resolver.ResetWithCause(sess, "explicit")
	return sess.Compress(), nil
}
