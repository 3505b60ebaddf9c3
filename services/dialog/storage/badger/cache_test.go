// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badgerstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
)

type countingSearcher struct {
	hits  []providers.CourseHit
	err   error
	calls int
}

func (c *countingSearcher) SearchByName(_ context.Context, _ string) ([]providers.CourseHit, error) {
	c.calls++
	return c.hits, c.err
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCachingSearcherCachesNonEmptyResults(t *testing.T) {
	db := openTestDB(t)
	inner := &countingSearcher{hits: []providers.CourseHit{{CourseNumber: "MET CS 526"}}}
	s := NewCachingSearcher(db, inner, time.Minute, nil)

	for i := 0; i < 3; i++ {
		hits, err := s.SearchByName(context.Background(), "Data Structures")
		if err != nil {
			t.Fatalf("SearchByName: %v", err)
		}
		if len(hits) != 1 || hits[0].CourseNumber != "MET CS 526" {
			t.Fatalf("hits = %v", hits)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1 (cache hit after first)", inner.calls)
	}
}

func TestCachingSearcherNormalizesTerms(t *testing.T) {
	db := openTestDB(t)
	inner := &countingSearcher{hits: []providers.CourseHit{{CourseNumber: "MET CS 526"}}}
	s := NewCachingSearcher(db, inner, time.Minute, nil)

	if _, err := s.SearchByName(context.Background(), "Data Structures"); err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	if _, err := s.SearchByName(context.Background(), "  data   STRUCTURES "); err != nil {
		t.Fatalf("SearchByName: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, case and spacing variants must share an entry", inner.calls)
	}
}

func TestCachingSearcherDoesNotCacheEmptyResults(t *testing.T) {
	db := openTestDB(t)
	inner := &countingSearcher{}
	s := NewCachingSearcher(db, inner, time.Minute, nil)

	for i := 0; i < 2; i++ {
		if _, err := s.SearchByName(context.Background(), "Nothing Here"); err != nil {
			t.Fatalf("SearchByName: %v", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner called %d times, empty results must not be cached", inner.calls)
	}
}

func TestCachingSearcherPropagatesErrors(t *testing.T) {
	db := openTestDB(t)
	inner := &countingSearcher{err: errors.New("backend down")}
	s := NewCachingSearcher(db, inner, time.Minute, nil)

	if _, err := s.SearchByName(context.Background(), "Data Structures"); err == nil {
		t.Fatal("expected the inner error to surface")
	}
}
