// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package intent

import (
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
)

// =============================================================================
// Metrics
// =============================================================================

var overrideDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "chatalogue",
		Subsystem: "dialog",
		Name:      "intent_override_decisions_total",
		Help:      "Intent override decisions by outcome reason.",
	},
	[]string{"reason", "overridden"},
)

// =============================================================================
// Override Engine
// =============================================================================

// Input carries everything one override decision depends on.
type Input struct {
	Utterance           string
	Intent              string
	Confidence          float64
	HasNewEntities      bool
	ContextCourse       string
	ContextInstructor   string
	RequestedAttributes []string
}

// Decision is the outcome of one override evaluation.
type Decision struct {
	// Override is true when NewIntent should replace the classified intent.
	Override bool

	// NewIntent is the replacement intent. Empty when Override is false.
	NewIntent string

	// Reason names the rule that produced this decision.
	Reason string
}

// Confidence floor and ceiling constants for the override cascade.
const (
	// keepConfidence: at or above this, a course-related classification
	// stands on its own.
	keepConfidence = 0.40

	// defaultConfidence: below this, with an active course, an unresolved
	// intent defaults to a course-info lookup.
	defaultConfidence = 0.30
)

// Engine remaps a classified intent using context and keyword signals.
//
// Description:
//
//	The classifier sees one turn at a time, so follow-ups like "when does
//	it meet" often land in chitchat. The engine re-examines low-signal
//	classifications against conversational context. Guards run first, in
//	order, and any match keeps the classifier's answer; only then do the
//	remap rules fire. Evaluation is an ordered rule list so precedence
//	stays explicit and each rule tests independently.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Engine struct {
	lex *config.Lexicon
	log *slog.Logger
}

// NewEngine builds an override Engine over the given lexicon.
func NewEngine(lex *config.Lexicon, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{lex: lex, log: log}
}

type rule struct {
	name string
	eval func(Input) (Decision, bool)
}

// Decide evaluates the override cascade for one turn. First match wins.
func (e *Engine) Decide(in Input) Decision {
	for _, r := range e.rules() {
		if d, ok := r.eval(in); ok {
			d.Reason = r.name
			overrideDecisions.WithLabelValues(d.Reason, boolLabel(d.Override)).Inc()
			e.log.Debug("intent override decision",
				slog.String("intent", in.Intent),
				slog.Float64("confidence", in.Confidence),
				slog.Bool("override", d.Override),
				slog.String("new_intent", d.NewIntent),
				slog.String("reason", d.Reason),
			)
			return d
		}
	}
	// The final rule always matches; unreachable.
	return Decision{Reason: "no_rule"}
}

func (e *Engine) rules() []rule {
	return []rule{
		{"safe_intent", func(in Input) (Decision, bool) {
			if IsSafe(in.Intent) && len(in.RequestedAttributes) == 0 {
				return Decision{}, true
			}
			return Decision{}, false
		}},
		{"confident_course_intent", func(in Input) (Decision, bool) {
			if in.Confidence >= keepConfidence && IsCourseRelated(in.Intent) {
				return Decision{}, true
			}
			return Decision{}, false
		}},
		{"topic_change_keyword", func(in Input) (Decision, bool) {
			if e.lex.HasTopicChangeKeyword(in.Utterance) {
				return Decision{}, true
			}
			return Decision{}, false
		}},
		{"new_entities", func(in Input) (Decision, bool) {
			if in.HasNewEntities {
				return Decision{}, true
			}
			return Decision{}, false
		}},
		{"no_context_anchor", func(in Input) (Decision, bool) {
			if in.ContextCourse == "" && in.ContextInstructor == "" {
				return Decision{}, true
			}
			return Decision{}, false
		}},
		{"attribute_priority", func(in Input) (Decision, bool) {
			if newIntent, ok := ForAttribute(in.RequestedAttributes); ok {
				return Decision{Override: true, NewIntent: newIntent}, true
			}
			return Decision{}, false
		}},
		{"keyword_group", func(in Input) (Decision, bool) {
			lower := strings.ToLower(in.Utterance)
			for _, grp := range e.lex.IntentKeywords {
				for _, kw := range grp.Keywords {
					if strings.Contains(lower, kw) {
						return Decision{Override: true, NewIntent: grp.Intent}, true
					}
				}
			}
			return Decision{}, false
		}},
		{"low_confidence_default", func(in Input) (Decision, bool) {
			if in.Confidence < defaultConfidence && in.ContextCourse != "" {
				return Decision{Override: true, NewIntent: CourseInfo}, true
			}
			return Decision{}, false
		}},
		{"no_signal", func(Input) (Decision, bool) {
			return Decision{}, true
		}},
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
