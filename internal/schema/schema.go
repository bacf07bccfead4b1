// Package schema derives the filterable, visualizable, and completable
// field sets from the document store's index mapping.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldMapping is one field's type entry in the store mapping, including
// nested sub-fields (multi-fields).
type FieldMapping struct {
	Type   string                  `json:"type"`
	Fields map[string]FieldMapping `json:"fields"`
}

// Schema holds the field sets derived from an index mapping.
type Schema struct {
	// AllFields is every mapped field, sorted.
	AllFields []string
	// KeywordFields is every field usable for exact-match filtering and
	// terms aggregation: keyword-typed directly or via a sub-field. Sorted.
	KeywordFields []string
	// CompletionFields is every field carrying a completion sub-field.
	CompletionFields []string
	// Properties is the raw per-field mapping.
	Properties map[string]FieldMapping
}

type indexMapping struct {
	Mappings struct {
		Properties map[string]FieldMapping `json:"properties"`
	} `json:"mappings"`
}

// Parse reads a mapping response of the form
// {"<index>": {"mappings": {"properties": {...}}}} and derives the schema.
// Multi-index responses use the first entry.
func Parse(raw json.RawMessage) (Schema, error) {
	var indexes map[string]indexMapping
	if err := json.Unmarshal(raw, &indexes); err != nil {
		return Schema{}, fmt.Errorf("decode mapping: %w", err)
	}

	var properties map[string]FieldMapping
	for _, im := range indexes {
		properties = im.Mappings.Properties
		break
	}

	s := Schema{Properties: properties}
	for field, meta := range properties {
		s.AllFields = append(s.AllFields, field)
		if isKeyword(meta) {
			s.KeywordFields = append(s.KeywordFields, field)
		}
		if _, ok := meta.Fields["completion"]; ok {
			s.CompletionFields = append(s.CompletionFields, field)
		}
	}
	sort.Strings(s.AllFields)
	sort.Strings(s.KeywordFields)
	sort.Strings(s.CompletionFields)
	return s, nil
}

func isKeyword(meta FieldMapping) bool {
	if meta.Type == "keyword" {
		return true
	}
	for _, sub := range meta.Fields {
		if sub.Type == "keyword" {
			return true
		}
	}
	return false
}

// HasCompletion reports whether field supports prefix completion.
func (s Schema) HasCompletion(field string) bool {
	for _, f := range s.CompletionFields {
		if f == field {
			return true
		}
	}
	return false
}

// MergeOrder reconciles a persisted field ordering with the current schema
// field set: persisted fields that still exist keep their order, fields new
// to the schema are appended in schema order, and removed fields are
// dropped. Applied only when the set size changed, so a pure reorder by the
// analyst is never undone.
func MergeOrder(persisted, current []string) []string {
	if len(persisted) == len(current) {
		return persisted
	}

	currentSet := make(map[string]struct{}, len(current))
	for _, f := range current {
		currentSet[f] = struct{}{}
	}
	persistedSet := make(map[string]struct{}, len(persisted))
	for _, f := range persisted {
		persistedSet[f] = struct{}{}
	}

	merged := make([]string, 0, len(current))
	for _, f := range persisted {
		if _, ok := currentSet[f]; ok {
			merged = append(merged, f)
		}
	}
	for _, f := range current {
		if _, ok := persistedSet[f]; !ok {
			merged = append(merged, f)
		}
	}
	return merged
}
