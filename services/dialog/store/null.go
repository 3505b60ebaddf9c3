// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/providers"
	"github.com/artisticdrake/CHATALOGUE/services/dialog/querybuild"
)

// Null is the catalog used when no database is configured: every plan
// yields empty rows and every name search resolves nothing. The rest of
// the pipeline behaves exactly as it does for a course the catalog does
// not know.
type Null struct{}

// Execute implements providers.QueryExecutor.
func (Null) Execute(_ context.Context, plans []*querybuild.QueryPlan) ([][]providers.Row, error) {
	results := make([][]providers.Row, len(plans))
	for i := range results {
		results[i] = []providers.Row{}
	}
	return results, nil
}

// SearchByName implements providers.CourseSearcher.
func (Null) SearchByName(context.Context, string) ([]providers.CourseHit, error) {
	return nil, nil
}
