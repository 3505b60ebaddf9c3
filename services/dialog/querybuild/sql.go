// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package querybuild

import "strings"

// CatalogTable is the table every plan runs against.
const CatalogTable = "public_classes"

// RenderSQL emits the parameterized SQL for a plan, for executors that
// take raw statements and for logging. Column names come from the fixed
// tables in this package, never from user input.
//
// Outputs:
//
//	string - The SQL text with ? placeholders.
//	[]any - Arguments in placeholder order.
func RenderSQL(plan *QueryPlan) (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(plan.SelectColumns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(CatalogTable)

	args := make([]any, 0, len(plan.Where))
	for i, cond := range plan.Where {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		frag, arg := renderCondition(cond)
		sb.WriteString(frag)
		args = append(args, arg)
	}

	for i, ord := range plan.OrderBy {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(ord.Column)
		sb.WriteString(" ")
		sb.WriteString(ord.Direction)
	}

	return sb.String(), args
}

// renderCondition emits one predicate fragment and its argument.
//
// Contains predicates compare space-stripped lowercase forms on both
// sides so "MET CS575" in the catalog matches "met cs 575" in the query.
func renderCondition(cond Condition) (string, any) {
	switch cond.Operator {
	case OpContains:
		if cond.CaseInsensitive {
			return "REPLACE(LOWER(" + cond.Column + "), ' ', '') LIKE ?",
				"%" + strings.ReplaceAll(strings.ToLower(cond.Value), " ", "") + "%"
		}
		return "REPLACE(" + cond.Column + ", ' ', '') LIKE ?",
			"%" + strings.ReplaceAll(cond.Value, " ", "") + "%"
	default:
		return cond.Column + " = ?", cond.Value
	}
}
