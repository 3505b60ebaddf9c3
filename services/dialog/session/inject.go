// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/intent"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/parse"
)

// =============================================================================
// Metrics
// =============================================================================

var (
	injectionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatalogue",
			Subsystem: "dialog",
			Name:      "context_injection_decisions_total",
			Help:      "Context injection decisions by rule reason.",
		},
		[]string{"reason", "injected"},
	)

	contextResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatalogue",
			Subsystem: "dialog",
			Name:      "context_resets_total",
			Help:      "Context resets by cause.",
		},
		[]string{"cause"},
	)
)

// Confidence thresholds for the injection cascade.
const (
	// trustNewEntityConfidence: above this, a turn that states its own
	// entities is self-contained and context stays out of it.
	trustNewEntityConfidence = 0.85

	// uncertainConfidence: below this, an entity-free turn is assumed to
	// lean on what came before.
	uncertainConfidence = 0.50

	// courseIntentConfidence: a course-related intent above this floor,
	// with nothing to look up, needs the active course filled in.
	courseIntentConfidence = 0.30
)

// InjectDecision is the outcome of one injection evaluation.
type InjectDecision struct {
	Inject bool
	Reason string
}

// Resolver applies the context-injection and reset rules of one session
// to a turn's semantic record.
//
// Description:
//
//	Injection rules are an ordered (predicate, outcome, reason) list,
//	first match wins; precedence is part of the contract and each rule is
//	testable on its own. The weird cases carry the design: a confident
//	turn with fresh entities never inherits (rule 1), an entity conflict
//	means topic change rather than continuity (rule 2), and an explicit
//	pronoun always reaches back (rule 3) even at high confidence.
//
// Thread Safety: Stateless apart from the lexicon; safe for concurrent
// use across sessions. Per-session serialization is the Manager's job.
type Resolver struct {
	lex *config.Lexicon
	log *slog.Logger
}

// NewResolver builds a Resolver over the given lexicon.
func NewResolver(lex *config.Lexicon, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{lex: lex, log: log}
}

// =============================================================================
// Injection Decision
// =============================================================================

type injectRule struct {
	name string
	eval func(c *Context, rec *parse.Record, utterance string) (InjectDecision, bool)
}

// ShouldInject decides whether the session's context should be injected
// into the record. Rules run in strict priority; the first match wins.
func (r *Resolver) ShouldInject(c *Context, rec *parse.Record, utterance string) InjectDecision {
	for _, rule := range r.injectRules() {
		d, ok := rule.eval(c, rec, utterance)
		if !ok {
			continue
		}
		d.Reason = rule.name
		injectionDecisions.WithLabelValues(d.Reason, boolLabel(d.Inject)).Inc()
		r.log.Debug("context injection decision",
			slog.String("session_id", c.ID),
			slog.Bool("inject", d.Inject),
			slog.String("reason", d.Reason),
			slog.Float64("confidence", rec.Confidence),
		)
		return d
	}
	return InjectDecision{Reason: "no_rule"}
}

func (r *Resolver) injectRules() []injectRule {
	return []injectRule{
		{"high_confidence_new_entity", func(_ *Context, rec *parse.Record, _ string) (InjectDecision, bool) {
			if rec.Confidence > trustNewEntityConfidence && rec.HasNewEntities() {
				return InjectDecision{Inject: false}, true
			}
			return InjectDecision{}, false
		}},
		{"entity_conflict", func(c *Context, rec *parse.Record, _ string) (InjectDecision, bool) {
			if conflicts(firstOf(rec.Entities.CourseCodes), c.ActiveCourse) ||
				conflicts(firstOf(rec.Entities.Instructors), c.ActiveInstructor) {
				return InjectDecision{Inject: false}, true
			}
			return InjectDecision{}, false
		}},
		{"referential_pronoun", func(_ *Context, _ *parse.Record, utterance string) (InjectDecision, bool) {
			if r.hasReferentialPronoun(utterance) {
				return InjectDecision{Inject: true}, true
			}
			return InjectDecision{}, false
		}},
		{"low_confidence_no_entities", func(_ *Context, rec *parse.Record, _ string) (InjectDecision, bool) {
			if rec.Confidence < uncertainConfidence && !rec.HasNewEntities() {
				return InjectDecision{Inject: true}, true
			}
			return InjectDecision{}, false
		}},
		{"course_intent_without_entities", func(_ *Context, rec *parse.Record, _ string) (InjectDecision, bool) {
			if intent.IsCourseRelated(rec.PrimaryIntent) && !rec.HasNewEntities() &&
				rec.Confidence > courseIntentConfidence {
				return InjectDecision{Inject: true}, true
			}
			return InjectDecision{}, false
		}},
		{"no_signal", func(*Context, *parse.Record, string) (InjectDecision, bool) {
			return InjectDecision{Inject: false}, true
		}},
	}
}

// hasReferentialPronoun reports an explicit back-reference: "it", "them",
// "those", or a "this"/"that" not followed by a temporal word ("this
// week" points at the calendar, not at a course).
func (r *Resolver) hasReferentialPronoun(utterance string) bool {
	tokens := strings.Fields(strings.ToLower(utterance))
	for i, tok := range tokens {
		tok = strings.Trim(tok, ",.!?;:'\"")
		switch tok {
		case "it", "them", "those":
			return true
		case "this", "that":
			if i+1 >= len(tokens) {
				return true
			}
			next := strings.Trim(tokens[i+1], ",.!?;:'\"")
			if !r.lex.IsTemporalFollower(next) {
				return true
			}
		}
	}
	return false
}

// conflicts reports whether a newly stated entity and the active one are
// about different things: both present and neither string contains the
// other (case-insensitive). The containment check is intentionally the
// plain fixed heuristic; "CS 1" vs "CS 10" is a known weakness.
func conflicts(stated, active string) bool {
	if stated == "" || active == "" {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(stated))
	b := strings.ToLower(strings.TrimSpace(active))
	return !strings.Contains(a, b) && !strings.Contains(b, a)
}

// =============================================================================
// Injection Application
// =============================================================================

// Inject fills the record's missing entities from the session's actives.
//
// Description:
//
//	Priority order: a course code subsumes instructor and section, so a
//	course injection ends the turn's injection; otherwise the active
//	instructor (unless the turn is itself an instructor lookup, where
//	injecting the answer-in-waiting would beg the question) and then the
//	active weekdays fill in. Clause-level entities follow via
//	ResolveClauses.
func (r *Resolver) Inject(c *Context, rec *parse.Record) {
	if len(rec.Entities.CourseCodes) == 0 && c.ActiveCourse != "" {
		rec.Entities.CourseCodes = []string{c.ActiveCourse}
		r.injectIntoBareClause(rec, func(cl *parse.Clause) {
			cl.Entities.CourseCodes = []string{c.ActiveCourse}
		})
		r.log.Debug("injected active course", slog.String("session_id", c.ID), slog.String("course", c.ActiveCourse))
		return
	}

	if len(rec.Entities.Instructors) == 0 && c.ActiveInstructor != "" &&
		rec.PrimaryIntent != intent.InstructorLookup {
		rec.Entities.Instructors = []string{c.ActiveInstructor}
		r.injectIntoBareClause(rec, func(cl *parse.Clause) {
			cl.Entities.Instructors = []string{c.ActiveInstructor}
		})
	}

	if len(rec.Entities.Weekdays) == 0 && len(c.ActiveWeekdays) > 0 {
		rec.Entities.Weekdays = append([]string(nil), c.ActiveWeekdays...)
	}
}

// injectIntoBareClause applies fill to clauses that stated no entities of
// their own; clauses with their own entities are never touched.
func (r *Resolver) injectIntoBareClause(rec *parse.Record, fill func(*parse.Clause)) {
	for i := range rec.Clauses {
		cl := &rec.Clauses[i]
		if !cl.Entities.IsEmpty() {
			continue
		}
		fill(cl)
		cl.Inherited = true
	}
}

// =============================================================================
// Intra-turn Clause Resolution
// =============================================================================

// ResolveClauses resolves pronoun-style follow-up clauses inside one
// turn: "who teaches CS 101 and when does it meet" should hand clause two
// the course from clause one and remap its small-talk intent to a lookup.
//
// Description:
//
//	A clause qualifies when it stated no entities and its own
//	classification is weak (chitchat/unknown or confidence under 0.5). A
//	qualifying clause inherits from the nearest earlier clause with
//	entities, falling back to the record's whole-utterance entities. Its
//	intent remaps through the attribute priority table when the clause
//	asks for an attribute, else defaults to a course-info lookup.
func (r *Resolver) ResolveClauses(rec *parse.Record) {
	for i := range rec.Clauses {
		cl := &rec.Clauses[i]
		if !cl.Entities.IsEmpty() {
			continue
		}
		weak := cl.Intent == intent.Chitchat || cl.Intent == intent.Unknown ||
			cl.Confidence < uncertainConfidence
		if !weak {
			continue
		}

		source := rec.Entities
		for j := i - 1; j >= 0; j-- {
			if !rec.Clauses[j].Entities.IsEmpty() {
				source = rec.Clauses[j].Entities
				break
			}
		}
		if source.IsEmpty() {
			continue
		}
		cl.Entities = source.Clone()
		cl.Inherited = true

		if newIntent, ok := intent.ForAttribute(cl.RequestedAttributes); ok {
			cl.Intent = newIntent
		} else {
			cl.Intent = intent.CourseInfo
		}
		r.log.Debug("resolved follow-up clause",
			slog.String("clause", cl.Text),
			slog.String("intent", cl.Intent),
		)
	}
	rec.RecomputeMultiQuery()
}

// =============================================================================
// Reset Policy
// =============================================================================

// ShouldReset reports whether the context must be cleared before this
// turn resolves, and why.
func (r *Resolver) ShouldReset(c *Context, rec *parse.Record, utterance string) (bool, string) {
	switch {
	case r.lex.HasTopicChangeKeyword(utterance):
		return true, "topic_change_keyword"
	case conflicts(firstOf(rec.Entities.CourseCodes), c.ActiveCourse):
		return true, "course_conflict"
	case c.TurnCount > TurnLimit:
		return true, "turn_limit"
	}
	return false, ""
}

// ResetWithCause clears the context and records the cause.
func (r *Resolver) ResetWithCause(c *Context, cause string) {
	contextResets.WithLabelValues(cause).Inc()
	r.log.Info("context reset",
		slog.String("session_id", c.ID),
		slog.String("cause", cause),
		slog.Int("turn_count", c.TurnCount),
	)
	c.Reset()
}

func firstOf(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[0]
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
