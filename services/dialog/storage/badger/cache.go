// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badgerstore caches fuzzy course-name resolutions in BadgerDB.
// The cache is strictly optional: dialogd opens it best-effort and runs
// uncached when the directory cannot be opened.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
)

const keyPrefix = "fuzzy:"

// Config controls the cache database.
type Config struct {
	// Dir is the BadgerDB directory.
	Dir string

	// TTL bounds how long a cached resolution stays valid. Course titles
	// change between semesters, so entries must age out.
	TTL time.Duration

	// InMemory runs without disk; used by tests.
	InMemory bool
}

// DB wraps the cache database handle.
type DB struct {
	inner *badger.DB
}

// Open opens the cache database.
func Open(cfg Config) (*DB, error) {
	opts := badger.DefaultOptions(cfg.Dir).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore.Open: %w", err)
	}
	return &DB{inner: db}, nil
}

// Close flushes and closes the database.
func (d *DB) Close() error { return d.inner.Close() }

// CachingSearcher wraps a CourseSearcher with a TTL cache keyed by the
// normalized search term.
//
// Description:
//
//	Cache failures never fail a search: a read error falls through to the
//	inner searcher and a write error is logged and dropped. Only
//	successful non-empty resolutions are cached, so a course added to the
//	catalog becomes findable without waiting out a negative entry.
//
// Thread Safety: Safe for concurrent use.
type CachingSearcher struct {
	db    *DB
	inner providers.CourseSearcher
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachingSearcher wraps inner with the cache.
func NewCachingSearcher(db *DB, inner providers.CourseSearcher, ttl time.Duration, log *slog.Logger) *CachingSearcher {
	if log == nil {
		log = slog.Default()
	}
	return &CachingSearcher{db: db, inner: inner, ttl: ttl, log: log}
}

// SearchByName implements providers.CourseSearcher.
func (s *CachingSearcher) SearchByName(ctx context.Context, term string) ([]providers.CourseHit, error) {
	key := cacheKey(term)
	if hits, ok := s.get(key); ok {
		return hits, nil
	}

	hits, err := s.inner.SearchByName(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		s.put(key, hits)
	}
	return hits, nil
}

func (s *CachingSearcher) get(key []byte) ([]providers.CourseHit, bool) {
	var hits []providers.CourseHit
	err := s.db.inner.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &hits)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.log.Warn("resolution cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	return hits, true
}

func (s *CachingSearcher) put(key []byte, hits []providers.CourseHit) {
	val, err := json.Marshal(hits)
	if err != nil {
		return
	}
	err = s.db.inner.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, val)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		s.log.Warn("resolution cache write failed", slog.String("error", err.Error()))
	}
}

func cacheKey(term string) []byte {
	norm := strings.Join(strings.Fields(strings.ToLower(term)), " ")
	return []byte(keyPrefix + norm)
}
