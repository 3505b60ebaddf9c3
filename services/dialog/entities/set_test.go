// Copyright (C) 2025 Artistic Drake (maintainers@chatalogue.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package entities

import (
	"reflect"
	"testing"
)

func TestDedup(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"first seen wins", []string{"CS 575", "cs 575", "MA 226"}, []string{"CS 575", "MA 226"}},
		{"blank entries dropped", []string{"", "  ", "Smith"}, []string{"Smith"}},
		{"surrounding whitespace trimmed", []string{" Smith ", "smith"}, []string{"Smith"}},
		{"nil stays empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedup(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dedup(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsEmpty(t *testing.T) {
	if !(Set{}).IsEmpty() {
		t.Error("zero Set must be empty")
	}
	if (Set{Sections: []string{"B3"}}).IsEmpty() {
		t.Error("Set with a section must not be empty")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := Set{CourseCodes: []string{"CS 575"}, Instructors: []string{"Smith"}}
	cp := orig.Clone()
	cp.CourseCodes[0] = "MA 226"
	cp.Instructors = append(cp.Instructors, "Lee")

	if orig.CourseCodes[0] != "CS 575" {
		t.Errorf("clone mutation leaked into original: %v", orig.CourseCodes)
	}
	if len(orig.Instructors) != 1 {
		t.Errorf("clone append leaked into original: %v", orig.Instructors)
	}
}
