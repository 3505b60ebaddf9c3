// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package parse

import (
	"strings"

	"github.com/artisticdrake/CHATALOGUE/services/dialog/config"
)

// DetectAttributes scans text for the lexicon's attribute keyword groups
// and returns the matched attribute tokens in first-match order, without
// duplicates.
func DetectAttributes(text string, lex *config.Lexicon) []string {
	lower := strings.ToLower(text)
	var out []string
	seen := make(map[string]struct{})
	for _, grp := range lex.AttributeKeywords {
		if _, ok := seen[grp.Attribute]; ok {
			continue
		}
		for _, kw := range grp.Keywords {
			if strings.Contains(lower, kw) {
				seen[grp.Attribute] = struct{}{}
				out = append(out, grp.Attribute)
				break
			}
		}
	}
	return out
}
