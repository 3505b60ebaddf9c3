// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parse

import (
	"fmt"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/entities"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
)

// RecordVersion is bumped whenever the Record shape changes so persisted
// or logged records stay attributable.
const RecordVersion = 1

// Clause is one independently-intentful segment of the utterance with its
// own classification and entities.
type Clause struct {
	Text                string       `json:"text"`
	Intent              string       `json:"intent"`
	Confidence          float64      `json:"confidence"`
	Entities            entities.Set `json:"entities"`
	RequestedAttributes []string     `json:"requested_attributes"`

	// Inherited is true once context injection filled this clause's
	// entities; stated and inherited entities behave differently in
	// override decisions.
	Inherited bool `json:"inherited"`
}

// Record is the versioned semantic parse for one turn. It is built and
// validated once at the pipeline boundary; later stages mutate entities
// in place (context injection, fuzzy code resolution) but never reshape
// the record.
type Record struct {
	Version             int                      `json:"version"`
	Utterance           string                   `json:"utterance"`
	PrimaryIntent       string                   `json:"primary_intent"`
	Confidence          float64                  `json:"confidence"`
	TopK                []providers.IntentScore  `json:"top_k,omitempty"`
	Entities            entities.Set             `json:"entities"`
	RequestedAttributes []string                 `json:"requested_attributes"`
	Clauses             []Clause                 `json:"clauses"`
	IsMultiQuery        bool                     `json:"is_multi_query"`
}

// HasNewEntities reports whether the turn itself stated any entity. Only
// meaningful before context injection mutates the record.
func (r *Record) HasNewEntities() bool {
	return !r.Entities.IsEmpty()
}

// RecomputeMultiQuery refreshes IsMultiQuery: true iff at least two
// clauses carry at least two distinct clause-level intents.
func (r *Record) RecomputeMultiQuery() {
	if len(r.Clauses) < 2 {
		r.IsMultiQuery = false
		return
	}
	distinct := make(map[string]struct{}, len(r.Clauses))
	for _, c := range r.Clauses {
		distinct[c.Intent] = struct{}{}
	}
	r.IsMultiQuery = len(distinct) >= 2
}

// Validate checks the shape invariants the rest of the pipeline assumes.
func (r *Record) Validate() error {
	if r.Version != RecordVersion {
		return fmt.Errorf("record version %d, want %d", r.Version, RecordVersion)
	}
	if len(r.Clauses) == 0 {
		return fmt.Errorf("record has no clauses")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v out of [0,1]", r.Confidence)
	}
	for i, c := range r.Clauses {
		if c.Text == "" {
			return fmt.Errorf("clause %d has empty text", i)
		}
	}
	return nil
}
