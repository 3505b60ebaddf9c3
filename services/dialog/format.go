// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dialog

import (
	"fmt"
	"strings"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/planner"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
)

// factColumns fixes the label order of a rendered fact line.
var factColumns = []struct {
	key   string
	label string
}{
	{"course_number", "Course"},
	{"course_name", "Name"},
	{"section", "Section"},
	{"instructor", "Instructor"},
	{"location", "Location"},
	{"days", "Days"},
	{"times", "Times"},
}

// FormatResults renders catalog rows into the facts block handed to the
// answer generator.
//
// Description:
//
//	Results are grouped under their source clause when the turn had more
//	than one, so the model can attribute rows to the right question. An
//	executable subquery with zero rows renders an explicit no-match line;
//	a turn with no executable subqueries renders nothing at all, which
//	tells the answerer this is pure conversation.
func FormatResults(descriptors []planner.Descriptor, results [][]providers.Row) string {
	multiClause := false
	for _, d := range descriptors {
		if d.ClauseIndex > 0 {
			multiClause = true
			break
		}
	}

	var sb strings.Builder
	wroteAny := false
	lastClause := -1
	for i, d := range descriptors {
		if !d.Executable {
			continue
		}
		var rows []providers.Row
		if i < len(results) {
			rows = results[i]
		}

		if multiClause && d.ClauseIndex != lastClause {
			if wroteAny {
				sb.WriteString("\n")
			}
			sb.WriteString("For: " + d.ClauseText + "\n")
			lastClause = d.ClauseIndex
		}

		if len(rows) == 0 {
			sb.WriteString(noMatchLine(d))
			wroteAny = true
			continue
		}
		for n, row := range rows {
			sb.WriteString(fmt.Sprintf("%d. %s\n", n+1, factLine(row)))
			wroteAny = true
		}
	}

	if !wroteAny {
		return ""
	}
	return strings.TrimRight(sb.String(), "\n")
}

func factLine(row providers.Row) string {
	parts := make([]string, 0, len(factColumns))
	for _, col := range factColumns {
		if v := strings.TrimSpace(row[col.key]); v != "" {
			parts = append(parts, col.label+": "+v)
		}
	}
	if len(parts) == 0 {
		return "(empty row)"
	}
	return strings.Join(parts, " | ")
}

func noMatchLine(d planner.Descriptor) string {
	subject := strings.TrimSpace(strings.Join([]string{d.CourseCode, d.Instructor}, " "))
	if subject == "" {
		return "No matching courses found.\n"
	}
	return "No matching courses found for " + subject + ".\n"
}
