// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package providers defines the external collaborators of the dialog
// pipeline and their concrete implementations. The pipeline core never
// talks to a model server, an LLM, or the catalog database directly; it
// goes through these interfaces so deployments can swap implementations
// per role.
package providers

import (
	"context"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/entities"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/querybuild"
)

// =============================================================================
// Wire Types
// =============================================================================

// IntentScore is one (intent, confidence) pair from the classifier's
// top-k output.
type IntentScore struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Classification is the classifier's verdict for one span of text.
type Classification struct {
	PrimaryIntent string        `json:"primary_intent"`
	Confidence    float64       `json:"confidence"`
	TopK          []IntentScore `json:"top_k,omitempty"`
}

// Row is one catalog result row, keyed by column name.
type Row map[string]string

// CourseHit is one fuzzy-search result.
type CourseHit struct {
	CourseNumber string `json:"course_number"`
	CourseName   string `json:"course_name"`
}

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// IntentClassifier resolves the intent of a span of text.
//
// Description:
//
//	Empty text must classify as (chitchat, 0.0) rather than erroring.
//	Implementations may be slow (remote model call); the caller owns
//	timeout and cancellation via ctx.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// EntityExtractor pulls raw entity candidates from a span of text.
//
// Description:
//
//	Output lists are ordered as encountered and may contain false
//	positives; the entity validator cleans them downstream. An absent
//	model yields an all-empty set, never an error.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) (entities.Set, error)
}

// QueryExecutor runs query plans against the course catalog.
//
// Description:
//
//	Output is position-preserving: result index i corresponds to plans[i].
//	A nil plan maps to an empty row list at its position, as does a plan
//	whose execution fails; one plan's failure never affects its siblings.
//	When any plan fails, implementations still return the full result
//	slice alongside a non-nil aggregate error, so callers keep surviving
//	rows while knowing the turn is partial. A nil result slice means the
//	whole call failed (cancellation, lost connection).
type QueryExecutor interface {
	Execute(ctx context.Context, plans []*querybuild.QueryPlan) ([][]Row, error)
}

// CourseSearcher resolves a course-name reference to catalog courses.
type CourseSearcher interface {
	SearchByName(ctx context.Context, term string) ([]CourseHit, error)
}

// AnswerGenerator produces the natural-language reply for one turn.
//
// Description:
//
//	Callable with an empty facts block (pure chitchat). Never retried by
//	the pipeline; a failure becomes a fixed apology string at the service
//	boundary.
type AnswerGenerator interface {
	Answer(ctx context.Context, utterance, contextSummary, facts string) (string, error)
}
