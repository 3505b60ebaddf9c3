// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package planner

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/entities"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/intent"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/parse"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
)

var fuzzyTracer = otel.Tracer("chatalogue.dialog.planner")

var (
	fuzzySearches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatalogue",
		Subsystem: "dialog",
		Name:      "fuzzy_searches_total",
		Help:      "Fuzzy course-name search rounds.",
	})

	fuzzyResolvedCodes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatalogue",
		Subsystem: "dialog",
		Name:      "fuzzy_resolved_codes_total",
		Help:      "Course codes resolved via fuzzy search.",
	})
)

// Orchestrator runs the two-stage fuzzy-search protocol.
//
// Description:
//
//	Stage 1 detects the need: the user referenced a course by title
//	("Intro to Something") with no code to query. Stage 2 searches the
//	catalog by name, accumulates the distinct codes in first-seen order,
//	injects them into the record and into any clause lacking codes but
//	holding a name, and hands the record back for replanning. A name
//	resolving to nothing contributes nothing; the dependent descriptors
//	simply stay inert.
//
// Thread Safety: Safe for concurrent use; all state is per-call.
type Orchestrator struct {
	searcher providers.CourseSearcher
	log      *slog.Logger
}

// NewOrchestrator builds an Orchestrator over the given searcher.
func NewOrchestrator(searcher providers.CourseSearcher, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{searcher: searcher, log: log}
}

// NeedsSearch reports whether the record requires name resolution:
// zero course codes, at least one course-name query, and a course-related
// primary intent. Clauses are re-checked individually, so a multi-clause
// turn where only one clause named a course by title still qualifies.
func NeedsSearch(rec *parse.Record) bool {
	if needsSearchSet(rec.Entities, rec.PrimaryIntent) {
		return true
	}
	for _, cl := range rec.Clauses {
		if needsSearchSet(cl.Entities, cl.Intent) {
			return true
		}
	}
	return false
}

func needsSearchSet(ents entities.Set, in string) bool {
	return len(ents.CourseCodes) == 0 &&
		len(ents.CourseNames) > 0 &&
		intent.IsCourseRelated(in)
}

// Resolve performs stage 2 over every course-name query in the record.
//
// Outputs:
//
//	[]string - The distinct codes resolved, in first-seen order.
//	error - Non-nil only when ctx is cancelled; search failures for a
//	single name degrade to that name contributing nothing.
func (o *Orchestrator) Resolve(ctx context.Context, rec *parse.Record) ([]string, error) {
	ctx, span := fuzzyTracer.Start(ctx, "planner.FuzzyResolve")
	defer span.End()
	fuzzySearches.Inc()

	names := collectNames(rec)
	var codes []string
	seen := make(map[string]struct{})
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hits, err := o.searcher.SearchByName(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.log.Warn("fuzzy search failed for name",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, hit := range hits {
			if _, ok := seen[hit.CourseNumber]; ok || hit.CourseNumber == "" {
				continue
			}
			seen[hit.CourseNumber] = struct{}{}
			codes = append(codes, hit.CourseNumber)
		}
	}

	if len(codes) > 0 {
		inject(rec, codes)
		fuzzyResolvedCodes.Add(float64(len(codes)))
	}

	span.SetAttributes(
		attribute.Int("name_queries", len(names)),
		attribute.Int("resolved_codes", len(codes)),
	)
	return codes, nil
}

// collectNames gathers name queries from the record and from clauses that
// would themselves qualify for a search, deduplicated in first-seen order.
func collectNames(rec *parse.Record) []string {
	names := append([]string(nil), rec.Entities.CourseNames...)
	for _, cl := range rec.Clauses {
		if needsSearchSet(cl.Entities, cl.Intent) {
			names = append(names, cl.Entities.CourseNames...)
		}
	}
	return entities.Dedup(names)
}

// inject adds the resolved codes to the record and to every clause that
// holds a course name but no codes of its own.
func inject(rec *parse.Record, codes []string) {
	if len(rec.Entities.CourseCodes) == 0 {
		rec.Entities.CourseCodes = append([]string(nil), codes...)
	}
	for i := range rec.Clauses {
		cl := &rec.Clauses[i]
		if len(cl.Entities.CourseCodes) == 0 && len(cl.Entities.CourseNames) > 0 {
			cl.Entities.CourseCodes = append([]string(nil), codes...)
		}
	}
}
