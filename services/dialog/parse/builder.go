// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parse

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/entities"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/intent"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
)

var builderTracer = otel.Tracer("chatalogue.dialog.parse")

// sectionSuffix matches a section token at the end of a course code.
var sectionSuffix = regexp.MustCompile(`[A-Z]\d{1,2}$`)

// =============================================================================
// Record Builder
// =============================================================================

// Builder assembles the versioned semantic Record for one turn.
//
// Description:
//
//	Runs whole-utterance classification and extraction, validates the
//	entities, splits clauses, then classifies and extracts per clause.
//	Collaborator failures are recovered locally with empty or default
//	substitutes (spoken text must never 500 because a model hiccuped);
//	only context cancellation aborts the build.
//
// Thread Safety: Safe for concurrent use; all state is per-call.
type Builder struct {
	classifier providers.IntentClassifier
	extractor  providers.EntityExtractor
	validator  *entities.Validator
	splitter   *Splitter
	lex        *config.Lexicon
	log        *slog.Logger
}

// NewBuilder wires a Builder from its collaborators.
func NewBuilder(
	classifier providers.IntentClassifier,
	extractor providers.EntityExtractor,
	validator *entities.Validator,
	splitter *Splitter,
	lex *config.Lexicon,
	log *slog.Logger,
) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		classifier: classifier,
		extractor:  extractor,
		validator:  validator,
		splitter:   splitter,
		lex:        lex,
		log:        log,
	}
}

// Build produces the validated Record for utterance.
//
// Outputs:
//
//	*Record - Never nil on success.
//	error - Non-nil only when ctx is cancelled or the built record is
//	malformed; collaborator failures degrade instead.
func (b *Builder) Build(ctx context.Context, utterance string) (*Record, error) {
	ctx, span := builderTracer.Start(ctx, "parse.Build")
	defer span.End()

	if strings.TrimSpace(utterance) == "" {
		// A blank frame still converses: treat it as empty chitchat
		// rather than failing shape validation on an empty clause.
		span.SetAttributes(attribute.String("primary_intent", intent.Chitchat))
		return blankRecord(utterance), nil
	}

	cls, err := b.classify(ctx, utterance)
	if err != nil {
		return nil, err
	}
	raw, err := b.extract(ctx, utterance)
	if err != nil {
		return nil, err
	}
	ents := b.validator.Validate(raw)
	attachSections(&ents)

	rec := &Record{
		Version:             RecordVersion,
		Utterance:           utterance,
		PrimaryIntent:       cls.PrimaryIntent,
		Confidence:          cls.Confidence,
		TopK:                cls.TopK,
		Entities:            ents,
		RequestedAttributes: DetectAttributes(utterance, b.lex),
	}

	clauseTexts := b.splitter.Split(utterance, ents.CourseNames)
	if len(clauseTexts) == 0 {
		clauseTexts = []string{utterance}
	}

	for _, text := range clauseTexts {
		clause := Clause{
			Text:                text,
			RequestedAttributes: DetectAttributes(text, b.lex),
		}
		if len(clauseTexts) == 1 {
			// Single clause spans the whole utterance; reuse its results.
			clause.Intent = cls.PrimaryIntent
			clause.Confidence = cls.Confidence
			clause.Entities = ents.Clone()
		} else {
			ccls, err := b.classify(ctx, text)
			if err != nil {
				return nil, err
			}
			craw, err := b.extract(ctx, text)
			if err != nil {
				return nil, err
			}
			clause.Intent = ccls.PrimaryIntent
			clause.Confidence = ccls.Confidence
			clause.Entities = b.validator.Validate(craw)
			attachSections(&clause.Entities)
		}
		rec.Clauses = append(rec.Clauses, clause)
	}

	rec.RecomputeMultiQuery()
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("primary_intent", rec.PrimaryIntent),
		attribute.Float64("confidence", rec.Confidence),
		attribute.Int("clauses", len(rec.Clauses)),
		attribute.Bool("is_multi_query", rec.IsMultiQuery),
	)
	return rec, nil
}

// blankRecord is the degenerate parse for a blank utterance: (chitchat,
// 0.0) with a single inert clause, mirroring what the classifier reports
// for empty text.
func blankRecord(utterance string) *Record {
	return &Record{
		Version:             RecordVersion,
		Utterance:           utterance,
		PrimaryIntent:       intent.Chitchat,
		RequestedAttributes: []string{},
		Clauses: []Clause{{
			Text:                utterance,
			Intent:              intent.Chitchat,
			RequestedAttributes: []string{},
		}},
	}
}

// classify wraps the classifier with local failure recovery: any error
// that is not a cancellation degrades to (chitchat, 0.0).
func (b *Builder) classify(ctx context.Context, text string) (providers.Classification, error) {
	if err := ctx.Err(); err != nil {
		return providers.Classification{}, err
	}
	cls, err := b.classifier.Classify(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return providers.Classification{}, ctx.Err()
		}
		b.log.Warn("intent classification failed, defaulting to chitchat",
			slog.String("error", err.Error()))
		return providers.Classification{PrimaryIntent: intent.Chitchat, Confidence: 0.0}, nil
	}
	if cls.PrimaryIntent == "" {
		cls.PrimaryIntent = intent.Chitchat
	}
	return cls, nil
}

// extract wraps the extractor; failures degrade to an empty set.
func (b *Builder) extract(ctx context.Context, text string) (entities.Set, error) {
	if err := ctx.Err(); err != nil {
		return entities.Set{}, err
	}
	raw, err := b.extractor.Extract(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return entities.Set{}, ctx.Err()
		}
		b.log.Warn("entity extraction failed, continuing with empty set",
			slog.String("error", err.Error()))
		return entities.Set{}, nil
	}
	return raw, nil
}

// attachSections appends a bare extracted section ("section b3") to the
// first course code that does not already carry a section suffix; a
// section without any course code stays in Sections for the query builder.
func attachSections(ents *entities.Set) {
	if len(ents.Sections) == 0 || len(ents.CourseCodes) == 0 {
		return
	}
	section := strings.ToUpper(ents.Sections[0])
	for i, code := range ents.CourseCodes {
		if sectionSuffix.MatchString(strings.ToUpper(strings.TrimSpace(code))) {
			continue
		}
		ents.CourseCodes[i] = strings.TrimSpace(code) + " " + section
		ents.Sections = ents.Sections[1:]
		return
	}
}
