// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Lexicon
// =============================================================================

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// =============================================================================
// Lexicon Types
// =============================================================================

// Lexicon holds the word lists and keyword groups the pipeline's heuristic
// stages depend on.
//
// Description:
//
//	Drives entity validation (stopwords, subject prefixes), topic-change
//	detection, referential-pronoun disambiguation, attribute detection,
//	and intent keyword remapping.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Lexicon struct {
	// SubjectPrefixes are the school codes that open a full course code
	// (e.g. "MET" in "MET CS 575").
	SubjectPrefixes []string `yaml:"subject_prefixes"`

	// InstructorStopwords are tokens never accepted as instructor names.
	InstructorStopwords []string `yaml:"instructor_stopwords"`

	// BuildingStopwords are tokens never accepted as building names.
	BuildingStopwords []string `yaml:"building_stopwords"`

	// WeekdayStopwords are tokens never accepted as weekday references.
	WeekdayStopwords []string `yaml:"weekday_stopwords"`

	// TopicChangeKeywords signal the user is abandoning the active topic.
	TopicChangeKeywords []string `yaml:"topic_change_keywords"`

	// TemporalFollowers make "this"/"that" temporal instead of referential
	// (e.g. "this week" does not refer back to a course).
	TemporalFollowers []string `yaml:"temporal_followers"`

	// AttributeKeywords map keyword groups to requested-attribute tokens.
	AttributeKeywords []AttributeGroup `yaml:"attribute_keywords"`

	// IntentKeywords map keyword groups to override intents.
	IntentKeywords []IntentGroup `yaml:"intent_keywords"`

	prefixSet   map[string]struct{}
	stopSet     map[string]struct{}
	buildingSet map[string]struct{}
	weekdaySet  map[string]struct{}
	temporalSet map[string]struct{}
}

// AttributeGroup binds a requested-attribute token to its trigger keywords.
type AttributeGroup struct {
	Attribute string   `yaml:"attribute"`
	Keywords  []string `yaml:"keywords"`
}

// IntentGroup binds an override intent to its trigger keywords.
type IntentGroup struct {
	Intent   string   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

// =============================================================================
// Loading
// =============================================================================

var (
	lexiconMu      sync.RWMutex
	cachedLexicon  *Lexicon
	lexiconLoadErr error
)

// DefaultLexicon returns the embedded lexicon, loading it on first call.
//
// Thread Safety: Safe for concurrent use.
func DefaultLexicon() (*Lexicon, error) {
	lexiconMu.RLock()
	if cachedLexicon != nil || lexiconLoadErr != nil {
		lex, err := cachedLexicon, lexiconLoadErr
		lexiconMu.RUnlock()
		return lex, err
	}
	lexiconMu.RUnlock()

	lexiconMu.Lock()
	defer lexiconMu.Unlock()
	if cachedLexicon == nil && lexiconLoadErr == nil {
		cachedLexicon, lexiconLoadErr = LoadLexicon(defaultLexiconYAML)
	}
	return cachedLexicon, lexiconLoadErr
}

// LoadLexiconFile loads a lexicon override from disk, falling back to the
// embedded defaults when path is empty.
func LoadLexiconFile(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadLexiconFile: reading %s: %w", path, err)
	}
	return LoadLexicon(data)
}

// LoadLexicon parses and validates a Lexicon from YAML bytes.
//
// Inputs:
//
//	data - Raw YAML bytes. Must not be empty.
//
// Outputs:
//
//	*Lexicon - The validated lexicon with lookup sets built.
//	error - Non-nil if parsing or validation fails.
func LoadLexicon(data []byte) (*Lexicon, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadLexicon: empty YAML data")
	}

	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("LoadLexicon: parsing YAML: %w", err)
	}

	if len(lex.SubjectPrefixes) == 0 {
		return nil, fmt.Errorf("LoadLexicon: subject_prefixes must not be empty")
	}
	for i, g := range lex.AttributeKeywords {
		if g.Attribute == "" {
			return nil, fmt.Errorf("attribute_keywords[%d]: attribute must not be empty", i)
		}
		if len(g.Keywords) == 0 {
			return nil, fmt.Errorf("attribute_keywords[%d] (%s): keywords must not be empty", i, g.Attribute)
		}
	}
	for i, g := range lex.IntentKeywords {
		if g.Intent == "" {
			return nil, fmt.Errorf("intent_keywords[%d]: intent must not be empty", i)
		}
		if len(g.Keywords) == 0 {
			return nil, fmt.Errorf("intent_keywords[%d] (%s): keywords must not be empty", i, g.Intent)
		}
	}

	lex.prefixSet = toSet(lex.SubjectPrefixes, strings.ToUpper)
	lex.stopSet = toSet(lex.InstructorStopwords, strings.ToLower)
	lex.buildingSet = toSet(lex.BuildingStopwords, strings.ToLower)
	lex.weekdaySet = toSet(lex.WeekdayStopwords, strings.ToLower)
	lex.temporalSet = toSet(lex.TemporalFollowers, strings.ToLower)

	slog.Debug("lexicon loaded",
		slog.Int("subject_prefixes", len(lex.SubjectPrefixes)),
		slog.Int("instructor_stopwords", len(lex.InstructorStopwords)),
		slog.Int("attribute_groups", len(lex.AttributeKeywords)),
		slog.Int("intent_groups", len(lex.IntentKeywords)),
	)
	return &lex, nil
}

func toSet(items []string, norm func(string) string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[norm(it)] = struct{}{}
	}
	return set
}

// =============================================================================
// Lookups
// =============================================================================

// IsSubjectPrefix reports whether token is a known school prefix code.
func (l *Lexicon) IsSubjectPrefix(token string) bool {
	_, ok := l.prefixSet[strings.ToUpper(token)]
	return ok
}

// IsInstructorStopword reports whether token can never be an instructor name.
func (l *Lexicon) IsInstructorStopword(token string) bool {
	_, ok := l.stopSet[strings.ToLower(token)]
	return ok
}

// IsBuildingStopword reports whether token can never be a building name.
func (l *Lexicon) IsBuildingStopword(token string) bool {
	_, ok := l.buildingSet[strings.ToLower(token)]
	return ok
}

// IsWeekdayStopword reports whether token can never be a weekday reference.
func (l *Lexicon) IsWeekdayStopword(token string) bool {
	_, ok := l.weekdaySet[strings.ToLower(token)]
	return ok
}

// IsTemporalFollower reports whether token makes a preceding "this"/"that"
// temporal rather than referential.
func (l *Lexicon) IsTemporalFollower(token string) bool {
	_, ok := l.temporalSet[strings.ToLower(token)]
	return ok
}

// HasTopicChangeKeyword reports whether the lowercased utterance contains
// any topic-change keyword. Multi-word keywords match as substrings;
// single words match on token boundaries so "no" does not fire on "know".
func (l *Lexicon) HasTopicChangeKeyword(utterance string) bool {
	lower := strings.ToLower(utterance)
	var tokens []string
	for _, kw := range l.TopicChangeKeywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		if tokens == nil {
			tokens = strings.FieldsFunc(lower, func(r rune) bool {
				return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '\''
			})
		}
		for _, tok := range tokens {
			if tok == kw {
				return true
			}
		}
	}
	return false
}
