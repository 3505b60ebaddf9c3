// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store is the gorm-backed course catalog. It implements the
// pipeline's QueryExecutor and CourseSearcher collaborators over the
// public_classes table.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/querybuild"
)

// CourseRow mirrors one row of the catalog table.
type CourseRow struct {
	CourseNumber string `gorm:"column:course_number"`
	CourseName   string `gorm:"column:course_name"`
	Section      string `gorm:"column:section"`
	Instructor   string `gorm:"column:instructor"`
	Location     string `gorm:"column:location"`
	Days         string `gorm:"column:days"`
	Times        string `gorm:"column:times"`
}

// TableName pins the model to the catalog table.
func (CourseRow) TableName() string { return querybuild.CatalogTable }

// catalogColumns is the allowlist for plan-supplied column names. Plans
// are built from fixed tables, but the store still refuses anything else
// before interpolating a name into SQL.
var catalogColumns = map[string]struct{}{
	"course_number": {}, "course_name": {}, "section": {},
	"instructor": {}, "location": {}, "days": {}, "times": {},
}

// Catalog executes query plans and fuzzy name searches against postgres.
//
// Thread Safety: Safe for concurrent use; gorm pools connections.
type Catalog struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects to the catalog database.
func Open(dsn string, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store.Open: connecting: %w", err)
	}
	return &Catalog{db: db, log: log}, nil
}

// Close releases the underlying connection pool.
func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Execute implements providers.QueryExecutor.
//
// Description:
//
//	Position-preserving: result i corresponds to plans[i]. A nil plan
//	yields an empty row list at its position. A malformed plan or a plan
//	whose execution fails also yields an empty row list, keeps its
//	siblings' rows intact, and contributes to the joined error so the
//	caller can tell a partial turn from a clean one. Results are nil only
//	on context cancellation.
func (c *Catalog) Execute(ctx context.Context, plans []*querybuild.QueryPlan) ([][]providers.Row, error) {
	results := make([][]providers.Row, len(plans))
	var failures []error
	for i, plan := range plans {
		results[i] = []providers.Row{}
		if plan == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := c.runPlan(ctx, plan)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn("query plan failed, returning empty rows",
				slog.Int("plan_index", i),
				slog.String("error", err.Error()),
			)
			failures = append(failures, fmt.Errorf("plan %d: %w", i, err))
			continue
		}
		results[i] = rows
	}
	return results, errors.Join(failures...)
}

func (c *Catalog) runPlan(ctx context.Context, plan *querybuild.QueryPlan) ([]providers.Row, error) {
	cols, err := checkColumns(plan.SelectColumns)
	if err != nil {
		return nil, err
	}

	q := c.db.WithContext(ctx).Model(&CourseRow{}).Select(cols)
	for _, cond := range plan.Where {
		if _, ok := catalogColumns[cond.Column]; !ok {
			return nil, fmt.Errorf("condition column %q not in catalog", cond.Column)
		}
		switch cond.Operator {
		case querybuild.OpContains:
			needle := "%" + strings.ReplaceAll(strings.ToLower(cond.Value), " ", "") + "%"
			q = q.Where(fmt.Sprintf("REPLACE(LOWER(%s), ' ', '') LIKE ?", cond.Column), needle)
		case querybuild.OpEquals:
			q = q.Where(fmt.Sprintf("%s = ?", cond.Column), cond.Value)
		default:
			return nil, fmt.Errorf("unknown operator %q", cond.Operator)
		}
	}
	for _, ord := range plan.OrderBy {
		if _, ok := catalogColumns[ord.Column]; !ok {
			return nil, fmt.Errorf("order column %q not in catalog", ord.Column)
		}
		q = q.Order(ord.Column + " " + ord.Direction)
	}

	var found []CourseRow
	if err := q.Find(&found).Error; err != nil {
		return nil, err
	}

	out := make([]providers.Row, 0, len(found))
	for _, r := range found {
		out = append(out, rowToMap(r, plan.SelectColumns))
	}
	return out, nil
}

// SearchByName implements providers.CourseSearcher: a normalized contains
// match on course_name, returning distinct (course_number, course_name)
// pairs in catalog order.
func (c *Catalog) SearchByName(ctx context.Context, term string) ([]providers.CourseHit, error) {
	needle := "%" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(term)), " ", "") + "%"
	var found []CourseRow
	err := c.db.WithContext(ctx).
		Model(&CourseRow{}).
		Distinct("course_number", "course_name").
		Where("REPLACE(LOWER(course_name), ' ', '') LIKE ?", needle).
		Order("course_number ASC").
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("store.SearchByName: %w", err)
	}

	hits := make([]providers.CourseHit, 0, len(found))
	for _, r := range found {
		hits = append(hits, providers.CourseHit{
			CourseNumber: r.CourseNumber,
			CourseName:   r.CourseName,
		})
	}
	return hits, nil
}

func checkColumns(cols []string) (string, error) {
	for _, col := range cols {
		if _, ok := catalogColumns[col]; !ok {
			return "", fmt.Errorf("select column %q not in catalog", col)
		}
	}
	return strings.Join(cols, ", "), nil
}

func rowToMap(r CourseRow, cols []string) providers.Row {
	full := providers.Row{
		"course_number": r.CourseNumber,
		"course_name":   r.CourseName,
		"section":       r.Section,
		"instructor":    r.Instructor,
		"location":      r.Location,
		"days":          r.Days,
		"times":         r.Times,
	}
	out := make(providers.Row, len(cols))
	for _, col := range cols {
		out[col] = full[col]
	}
	return out
}
